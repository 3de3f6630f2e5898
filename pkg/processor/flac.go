package processor

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/go-flac/flacpicture"
	"github.com/go-flac/flacvorbis"
	"github.com/go-flac/go-flac"
	"github.com/tidwall/gjson"

	"github.com/yleoer/music-tagger/pkg/tags"
)

// FLACProcessor 写入 Vorbis Comment 标签
type FLACProcessor struct {
	base
}

// NewFLACProcessor 创建 FLACProcessor
func NewFLACProcessor(projector *tags.Projector, opts Options, logger *log.Logger) *FLACProcessor {
	return &FLACProcessor{base{projector: projector, opts: opts, logger: logger}}
}

// Update 更新 FLAC 文件的 Vorbis Comment。
// 本次写入的字段会替换同名的已有字段，其余已有字段保留。
func (p *FLACProcessor) Update(ctx context.Context, path string, detail gjson.Result) (report Report, err error) {
	report.Format = FormatFLAC
	defer p.cleanup(path, &report)

	f, err := flac.ParseFile(path)
	if err != nil {
		return report, fmt.Errorf("failed to open flac file: %w", err)
	}

	res := p.projector.Project(detail, tags.CommentBased)
	p.recordIssues(&report, path, res.Issues)

	cmtIdx, existing := findVorbisComment(f)
	if cmtIdx >= 0 && existing == nil {
		p.warnf(&report, path, "existing vorbis comment is unreadable and will be replaced")
	}

	keys := make(map[string]bool, len(res.Tags))
	for _, name := range res.Tags.Keys() {
		keys[strings.ToUpper(name)] = true
	}

	cmt := flacvorbis.New()
	if existing != nil {
		cmt.Vendor = existing.Vendor
		for _, comment := range existing.Comments {
			field, _, _ := strings.Cut(comment, "=")
			if !keys[strings.ToUpper(field)] {
				cmt.Comments = append(cmt.Comments, comment)
			}
		}
	}
	for _, name := range res.Tags.Keys() {
		key := strings.ToUpper(name)
		var failed error
		for _, value := range res.Tags.Strings(name) {
			if err := cmt.Add(key, value); err != nil {
				failed = err
				break
			}
		}
		if failed != nil {
			p.warnf(&report, path, "failed to set %s: %w", key, failed)
			continue
		}
		report.Written++
	}

	block := cmt.Marshal()
	if cmtIdx < 0 {
		f.Meta = append(f.Meta, &block)
	} else {
		f.Meta[cmtIdx] = &block
	}

	p.handleCover(ctx, path, detail, hasPictureBlock(f), func(data []byte, mime string) error {
		if err := checkImageMime(mime); err != nil {
			return err
		}
		pic, err := flacpicture.NewFromImageData(flacpicture.PictureTypeFrontCover, "Cover", data, mime)
		if err != nil {
			return err
		}
		picBlock := pic.Marshal()
		f.Meta = append(f.Meta, &picBlock)
		return nil
	}, &report)

	if err := f.Save(path); err != nil {
		p.warnf(&report, path, "failed to save flac tags: %w", err)
		return report, nil
	}
	report.Saved = true
	return report, nil
}

func findVorbisComment(f *flac.File) (int, *flacvorbis.MetaDataBlockVorbisComment) {
	for idx, block := range f.Meta {
		if block.Type != flac.VorbisComment {
			continue
		}
		cmt, err := flacvorbis.ParseFromMetaDataBlock(*block)
		if err != nil {
			return idx, nil
		}
		return idx, cmt
	}
	return -1, nil
}

func hasPictureBlock(f *flac.File) bool {
	for _, block := range f.Meta {
		if block.Type == flac.Picture {
			return true
		}
	}
	return false
}
