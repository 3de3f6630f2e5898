package database

// 单个文件的处理结果
const (
	StatusUpdated = "updated"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
	StatusMissing = "missing"
)

// FileOutcome 记录一次运行中单个文件的结果
type FileOutcome struct {
	FileName  string
	NeteaseID int64
	Format    string
	Status    string
	Message   string
}

// HistoryStore 定义更新历史存储接口
type HistoryStore interface {
	BeginRun(folder string) (string, error)             // 开始一次运行，返回运行 ID
	RecordFile(runID string, outcome FileOutcome) error // 记录单个文件结果
	FinishRun(runID string, updated, failed int) error  // 写入汇总
	Close() error                                       // 关闭数据库连接
}

// NopStore 在未启用历史记录时使用
type NopStore struct{}

func (NopStore) BeginRun(string) (string, error)      { return "", nil }
func (NopStore) RecordFile(string, FileOutcome) error { return nil }
func (NopStore) FinishRun(string, int, int) error     { return nil }
func (NopStore) Close() error                         { return nil }
