package processor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/bogem/id3v2/v2"
	"github.com/tidwall/gjson"

	"github.com/yleoer/music-tagger/pkg/metadata"
	"github.com/yleoer/music-tagger/pkg/tags"
)

const (
	id3Version     = 4
	neteaseInfoKey = "NETEASE_INFO"
	commentLang    = "eng"
	listSep        = "; "
)

// 抽象标签到 ID3v2.4 帧的映射，按写入顺序排列
var id3Frames = []struct {
	tag string
	id  string
}{
	{tags.Title, "TIT2"},
	{tags.Artist, "TPE1"},
	{tags.Album, "TALB"},
	{tags.AlbumArtist, "TPE2"},
	{tags.Date, "TDRC"},
	{tags.TrackNumber, "TRCK"},
	{tags.DiscNumber, "TPOS"},
	{tags.Genre, "TCON"},
	{tags.ArtistSort, "TSOP"},
	{tags.AlbumSort, "TSOA"},
	{tags.Version, "TIT3"}, // 副标题/版本
}

// MP3Processor 写入 ID3v2 标签
type MP3Processor struct {
	base
}

// NewMP3Processor 创建 MP3Processor
func NewMP3Processor(projector *tags.Projector, opts Options, logger *log.Logger) *MP3Processor {
	return &MP3Processor{base{projector: projector, opts: opts, logger: logger}}
}

// Update 更新 MP3 文件的 ID3v2 标签。文件没有标签时会新建。
func (p *MP3Processor) Update(ctx context.Context, path string, detail gjson.Result) (report Report, err error) {
	report.Format = FormatMP3
	defer p.cleanup(path, &report)

	if err := checkMP3Header(path); err != nil {
		return report, fmt.Errorf("failed to open mp3 file: %w", err)
	}
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return report, fmt.Errorf("failed to open mp3 file: %w", err)
	}
	defer tag.Close()
	tag.SetDefaultEncoding(id3v2.EncodingUTF8)

	res := p.projector.Project(detail, tags.FrameBased)
	p.recordIssues(&report, path, res.Issues)

	for _, frame := range id3Frames {
		value, ok := res.Tags[frame.tag]
		if !ok {
			continue
		}
		if err := setTextFrame(tag, frame.id, value); err != nil {
			p.warnf(&report, path, "failed to set %s (%s): %w", frame.tag, frame.id, err)
			continue
		}
		report.Written++
	}

	if info, ok := res.Tags[tags.NeteaseInfo]; ok {
		tag.AddUserDefinedTextFrame(id3v2.UserDefinedTextFrame{
			Encoding:    id3v2.EncodingUTF8,
			Description: neteaseInfoKey,
			Value:       info.Join(listSep),
		})
		report.Written++
	}

	if text, err := commentText(detail); err != nil {
		p.warnf(&report, path, "failed to build comment: %w", err)
	} else {
		tag.AddCommentFrame(id3v2.CommentFrame{
			Encoding: id3v2.EncodingUTF8,
			Language: commentLang,
			Text:     text,
		})
		report.Written++
	}

	hasPicture := len(tag.GetFrames(tag.CommonID("Attached picture"))) > 0
	p.handleCover(ctx, path, detail, hasPicture, func(data []byte, mime string) error {
		if err := checkImageMime(mime); err != nil {
			return err
		}
		tag.AddAttachedPicture(id3v2.PictureFrame{
			Encoding:    id3v2.EncodingUTF8,
			MimeType:    mime,
			PictureType: id3v2.PTFrontCover,
			Description: "Cover",
			Picture:     data,
		})
		return nil
	}, &report)

	tag.SetVersion(id3Version)
	if err := tag.Save(); err != nil {
		p.warnf(&report, path, "failed to save mp3 tags: %w", err)
		return report, nil
	}
	report.Saved = true
	return report, nil
}

// checkMP3Header 要求文件以 ID3v2 标签或 MPEG 帧同步 (0xFF 0xE?) 开头，
// 否则 id3v2 会把任意文件当作没有标签的 MP3 写入
func checkMP3Header(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	head := make([]byte, 3)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return err
	}
	head = head[:n]
	if bytes.HasPrefix(head, []byte("ID3")) {
		return nil
	}
	if n >= 2 && head[0] == 0xFF && head[1]&0xE0 == 0xE0 {
		return nil
	}
	return fmt.Errorf("%w: no ID3v2 tag or MPEG frame sync", ErrInvalidContainer)
}

// setTextFrame 写入或替换文本帧，多值用 "; " 拼接
func setTextFrame(tag *id3v2.Tag, id string, value tags.Value) error {
	if value.Kind() == tags.KindFields {
		return fmt.Errorf("composite value cannot be written as a frame")
	}
	text := value.Join(listSep)
	if text == "" {
		return fmt.Errorf("empty value")
	}
	tag.AddTextFrame(id, id3v2.EncodingUTF8, text)
	return nil
}

// commentText 生成 COMM 内容：原创/翻唱类型，以及完整的原曲信息
func commentText(detail gjson.Result) (string, error) {
	lines := []string{metadata.LabelCoverType + metadata.CoverTypeLabel(detail.Get(metadata.FieldCoverType))}

	origin := detail.Get(metadata.FieldOriginSong)
	if metadata.Truthy(origin) {
		if !origin.IsObject() {
			return "", fmt.Errorf("%s: expected an object, got %s", metadata.FieldOriginSong, origin.Raw)
		}
		song := metadata.ParseOriginSong(origin)
		if song.Name != "" && len(song.Artists) > 0 {
			lines = append(lines, metadata.LabelOriginalSong+song.Name+" - "+strings.Join(song.Artists, ", "))
		}
	}
	return strings.Join(lines, "\n"), nil
}
