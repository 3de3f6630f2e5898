package processor

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/tidwall/gjson"

	"github.com/yleoer/music-tagger/pkg/metadata"
)

// CoverFetcher 根据地址获取封面图片
type CoverFetcher interface {
	FetchCover(ctx context.Context, url string) ([]byte, error)
}

// coverEmbedder 将图片写入容器
type coverEmbedder func(data []byte, mime string) error

// handleCover 在文件没有封面时处理专辑封面：未配置 CoverFetcher 时只输出提示
func (b *base) handleCover(ctx context.Context, path string, detail gjson.Result, hasPicture bool, embed coverEmbedder, report *Report) {
	url, ok := metadata.CoverURL(detail)
	if !ok || hasPicture {
		return
	}
	if b.opts.Cover == nil {
		report.CoverNotice = true
		b.logger.Printf("  -> %s: no embedded cover art; cover download is disabled", filepath.Base(path))
		return
	}
	data, err := b.opts.Cover.FetchCover(ctx, url)
	if err != nil {
		b.warnf(report, path, "failed to fetch cover %s: %w", url, err)
		return
	}
	if len(data) == 0 {
		b.warnf(report, path, "empty cover data from %s", url)
		return
	}
	if err := embed(data, http.DetectContentType(data)); err != nil {
		b.warnf(report, path, "failed to embed cover: %w", err)
		return
	}
	b.logger.Printf("  -> %s: cover art embedded", filepath.Base(path))
}

func checkImageMime(mime string) error {
	switch mime {
	case "image/jpeg", "image/png":
		return nil
	default:
		return fmt.Errorf("unsupported cover type %s", mime)
	}
}
