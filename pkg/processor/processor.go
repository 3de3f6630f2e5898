// Package processor 将抽象标签写入 MP3（ID3v2 帧）和 FLAC（Vorbis Comment）文件。
package processor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"

	"github.com/tidwall/gjson"

	"github.com/yleoer/music-tagger/pkg/tags"
	"github.com/yleoer/music-tagger/pkg/util"
)

const (
	FormatMP3  = "mp3"
	FormatFLAC = "flac"
)

var (
	// ErrUnsupportedFormat 表示没有对应扩展名的处理器
	ErrUnsupportedFormat = errors.New("unsupported file format")
	// ErrInvalidContainer 表示文件内容不是扩展名对应的格式
	ErrInvalidContainer = errors.New("unrecognized audio container")
)

// Processor 更新单个音频文件的标签。
// 返回 error 表示该文件处理失败（例如无法打开）；字段级问题记录在 Report.Warnings 中。
type Processor interface {
	Update(ctx context.Context, path string, detail gjson.Result) (Report, error)
}

// Report 汇总单个文件的写入情况
type Report struct {
	Format      string
	Written     int     // 成功写入的字段数
	Warnings    []error // 字段级或保存失败，不影响文件计数
	Saved       bool
	CoverNotice bool // 缺少封面且封面下载未启用
}

func (r *Report) warn(err error) {
	r.Warnings = append(r.Warnings, err)
}

// Options 是两种处理器共用的配置
type Options struct {
	// TouchOnSaveFailure 为 true 时，即使保存失败也刷新文件修改时间
	TouchOnSaveFailure bool
	// Cover 为 nil 时不下载封面，只输出提示
	Cover CoverFetcher
}

// DefaultOptions 保持始终刷新时间戳、不下载封面
func DefaultOptions() Options {
	return Options{TouchOnSaveFailure: true}
}

type base struct {
	projector *tags.Projector
	opts      Options
	logger    *log.Logger
}

func (b *base) warnf(report *Report, path string, format string, args ...any) {
	err := fmt.Errorf(format, args...)
	report.warn(err)
	b.logger.Printf("WARN: %s: %v", filepath.Base(path), err)
}

func (b *base) recordIssues(report *Report, path string, issues []*tags.FieldError) {
	for _, issue := range issues {
		report.warn(issue)
		b.logger.Printf("WARN: %s: failed to build %v", filepath.Base(path), issue)
	}
}

// cleanup 在每次更新结束后执行，刷新文件修改时间
func (b *base) cleanup(path string, report *Report) {
	if !report.Saved && !b.opts.TouchOnSaveFailure {
		return
	}
	if err := util.TouchFile(path); err != nil {
		b.warnf(report, path, "failed to refresh timestamp: %w", err)
	}
}

// Dispatcher 按扩展名选择处理器
type Dispatcher struct {
	processors map[string]Processor
}

// NewDispatcher 创建包含 MP3 和 FLAC 处理器的 Dispatcher
func NewDispatcher(projector *tags.Projector, opts Options, logger *log.Logger) *Dispatcher {
	return &Dispatcher{processors: map[string]Processor{
		FormatMP3:  NewMP3Processor(projector, opts, logger),
		FormatFLAC: NewFLACProcessor(projector, opts, logger),
	}}
}

// Supports 判断文件扩展名是否受支持
func (d *Dispatcher) Supports(path string) bool {
	_, ok := d.processors[util.AudioFormat(path)]
	return ok
}

// Update 按扩展名分派
func (d *Dispatcher) Update(ctx context.Context, path string, detail gjson.Result) (Report, error) {
	p, ok := d.processors[util.AudioFormat(path)]
	if !ok {
		return Report{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
	return p.Update(ctx, path, detail)
}
