package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/samber/lo"

	"github.com/yleoer/music-tagger/pkg/config"
	"github.com/yleoer/music-tagger/pkg/database"
	"github.com/yleoer/music-tagger/pkg/match"
	"github.com/yleoer/music-tagger/pkg/processor"
	"github.com/yleoer/music-tagger/pkg/scanner"
	"github.com/yleoer/music-tagger/pkg/util"
)

// TaskScheduler 负责按匹配记录更新目录中的音频文件
type TaskScheduler struct {
	cfg          *config.Config
	dispatcher   *processor.Dispatcher
	scanner      *scanner.FolderScanner
	history      database.HistoryStore
	logger       *log.Logger
	runMutex     sync.Mutex // 同一时间只有一次更新
	pending      *time.Timer
	pendingMutex sync.Mutex // 保护 pending
	inflight     sync.WaitGroup
}

// NewTaskScheduler 创建一个新的 TaskScheduler 实例。history 为 nil 时不记录历史。
func NewTaskScheduler(
	cfg *config.Config,
	dispatcher *processor.Dispatcher,
	folderScanner *scanner.FolderScanner,
	history database.HistoryStore,
	logger *log.Logger,
) *TaskScheduler {
	if history == nil {
		history = database.NopStore{}
	}
	return &TaskScheduler{
		cfg:        cfg,
		dispatcher: dispatcher,
		scanner:    folderScanner,
		history:    history,
		logger:     logger,
	}
}

// UpdateFolder 读取 folder 中的匹配记录并逐个更新文件。
// 只有匹配记录文件缺失（ErrMatchFileNotFound）或无法解析时返回 error；单个文件的失败只计入 Summary。
func (ts *TaskScheduler) UpdateFolder(ctx context.Context, folder string) (*Summary, error) {
	ts.runMutex.Lock()
	defer ts.runMutex.Unlock()

	matchFile, err := match.Load(folder, ts.cfg.MatchFile)
	if errors.Is(err, match.ErrMatchFileNotFound) {
		ts.logger.Printf("WARN: %v. Nothing to update.", err)
		return nil, err
	}
	if err != nil {
		ts.logger.Printf("ERROR: %v", err)
		return nil, err
	}
	records := matchFile.Merged()
	summary := &Summary{Folder: folder}
	if records.Len() == 0 {
		ts.logger.Printf("No match data in %s, nothing to update.", matchFile.Path)
		return summary, nil
	}
	ts.logger.Printf("-> Updating %d matched files in %s", records.Len(), folder)

	runID, err := ts.history.BeginRun(folder)
	if err != nil {
		ts.logger.Printf("WARN: Failed to record update history: %v", err)
	}
	for _, record := range records.Records() {
		if err := ctx.Err(); err != nil {
			ts.logger.Printf("Update of %s cancelled: %v", folder, err)
			return summary, err
		}
		result := ts.updateFile(ctx, folder, record)
		summary.add(result)
		if err := ts.history.RecordFile(runID, result.outcome()); err != nil {
			ts.logger.Printf("WARN: Failed to record history for %s: %v", result.FileName, err)
		}
	}

	if unmatched, err := ts.scanner.Unmatched(folder, records.Names()); err != nil {
		ts.logger.Printf("WARN: %v", err)
	} else {
		summary.Unmatched = len(unmatched)
	}

	if err := ts.history.FinishRun(runID, summary.Updated, summary.Failed); err != nil {
		ts.logger.Printf("WARN: Failed to record update history: %v", err)
	}
	ts.logger.Println(summary.String())
	fmt.Fprintln(ts.logger.Writer(), summary.Table())
	return summary, nil
}

// updateFile 更新单个文件，任何错误（包括 panic）都只影响该文件
func (ts *TaskScheduler) updateFile(ctx context.Context, folder string, record match.Record) (result FileResult) {
	result = FileResult{FileName: record.FileName, NeteaseID: record.NeteaseID, Format: util.AudioFormat(record.FileName)}
	if !record.HasDetail() {
		ts.logger.Printf("  -> %s: no netease detail. Skipping.", record.FileName)
		return result.with(database.StatusSkipped, "no netease detail")
	}
	path := filepath.Join(folder, record.FileName)
	if !util.FileExists(path) {
		ts.logger.Printf("WARN: %s: file not found. Skipping.", record.FileName)
		return result.with(database.StatusMissing, "file not found")
	}
	if !ts.dispatcher.Supports(path) {
		ts.logger.Printf("  -> %s: unsupported format %q. Skipping.", record.FileName, filepath.Ext(path))
		return result.with(database.StatusSkipped, processor.ErrUnsupportedFormat.Error())
	}

	defer func() {
		if r := recover(); r != nil {
			ts.logger.Printf("ERROR: %s: update panicked: %v", record.FileName, r)
			result = result.with(database.StatusFailed, fmt.Sprint(r))
		}
	}()
	report, err := ts.dispatcher.Update(ctx, path, record.Detail)
	result.Written = report.Written
	result.Warnings = len(report.Warnings)
	if err != nil {
		ts.logger.Printf("ERROR: %s: %v", record.FileName, err)
		return result.with(database.StatusFailed, err.Error())
	}
	ts.logger.Printf("  -> %s: updated %d fields from song %d (%d warnings).", record.FileName, report.Written, record.NeteaseID, len(report.Warnings))
	warnings := lo.Map(report.Warnings, func(err error, _ int) string { return err.Error() })
	return result.with(database.StatusUpdated, strings.Join(warnings, "; "))
}

// Watch 监听 folder 中匹配记录文件的变化，变化稳定后重新执行 UpdateFolder，直到 ctx 结束
func (ts *TaskScheduler) Watch(ctx context.Context, folder string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(folder); err != nil {
		return fmt.Errorf("failed to watch %s: %w", folder, err)
	}
	matchName := ts.matchFileName()
	ts.logger.Printf("Monitoring %s for changes to %s...", folder, matchName)

	defer func() {
		ts.stopPending()
		ts.inflight.Wait()
	}()
	for {
		select {
		case <-ctx.Done():
			ts.logger.Println("Watch stopped.")
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != matchName || !event.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			ts.logger.Printf("Watcher event: %s, on %s", event.Op.String(), event.Name)
			ts.TriggerUpdate(ctx, folder)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			ts.logger.Printf("ERROR: Watcher error: %v", err)
		}
	}
}

// TriggerUpdate 延迟执行一次更新，期间的重复触发会重置计时器
func (ts *TaskScheduler) TriggerUpdate(ctx context.Context, folder string) {
	ts.pendingMutex.Lock()
	defer ts.pendingMutex.Unlock()
	if ts.pending != nil && ts.pending.Stop() {
		ts.inflight.Done()
	}
	ts.inflight.Add(1)
	ts.pending = time.AfterFunc(ts.cfg.WatchDebounce, func() {
		defer ts.inflight.Done()
		if _, err := ts.UpdateFolder(ctx, folder); err != nil {
			ts.logger.Printf("ERROR: Update of %s failed: %v", folder, err)
		}
	})
	ts.logger.Printf("Scheduled update for %s in %v", folder, ts.cfg.WatchDebounce)
}

func (ts *TaskScheduler) stopPending() {
	ts.pendingMutex.Lock()
	defer ts.pendingMutex.Unlock()
	if ts.pending != nil && ts.pending.Stop() {
		ts.inflight.Done()
	}
	ts.pending = nil
}

func (ts *TaskScheduler) matchFileName() string {
	if ts.cfg.MatchFile == "" {
		return match.DefaultFileName
	}
	return ts.cfg.MatchFile
}
