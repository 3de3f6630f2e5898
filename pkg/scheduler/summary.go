package scheduler

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/yleoer/music-tagger/pkg/database"
)

// FileResult 是单个文件的处理结果
type FileResult struct {
	FileName  string
	NeteaseID int64 // 0 表示匹配记录中没有 neteaseId
	Format    string
	Status    string
	Written   int
	Warnings  int
	Message   string
}

func (r FileResult) with(status, message string) FileResult {
	r.Status = status
	r.Message = message
	return r
}

func (r FileResult) outcome() database.FileOutcome {
	return database.FileOutcome{
		FileName:  r.FileName,
		NeteaseID: r.NeteaseID,
		Format:    r.Format,
		Status:    r.Status,
		Message:   r.Message,
	}
}

// Summary 汇总一次目录更新
type Summary struct {
	Folder    string
	Updated   int
	Failed    int
	Skipped   int // 无详情或不支持的格式
	Missing   int // 匹配记录引用的文件不存在
	Unmatched int // 目录中没有匹配记录的音频文件
	Results   []FileResult
}

func (s *Summary) add(r FileResult) {
	s.Results = append(s.Results, r)
	switch r.Status {
	case database.StatusUpdated:
		s.Updated++
	case database.StatusFailed:
		s.Failed++
	case database.StatusMissing:
		s.Missing++
	default:
		s.Skipped++
	}
}

// String 返回最终的汇总行
func (s *Summary) String() string {
	return fmt.Sprintf("更新完成：updated: %d, failed: %d", s.Updated, s.Failed)
}

// Table 以表格列出每个文件的结果
func (s *Summary) Table() string {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"File", "NetEase ID", "Format", "Status", "Fields", "Warnings", "Message"})
	for _, r := range s.Results {
		id := ""
		if r.NeteaseID != 0 {
			id = fmt.Sprint(r.NeteaseID)
		}
		t.AppendRow(table.Row{r.FileName, id, r.Format, r.Status, r.Written, r.Warnings, r.Message})
	}
	t.AppendFooter(table.Row{
		"", "", "", fmt.Sprintf("updated %d", s.Updated), fmt.Sprintf("failed %d", s.Failed),
		fmt.Sprintf("skipped %d", s.Skipped), fmt.Sprintf("missing %d, unmatched %d", s.Missing, s.Unmatched),
	})
	return t.Render()
}
