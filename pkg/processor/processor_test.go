package processor

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bogem/id3v2/v2"
	"github.com/go-flac/flacvorbis"
	"github.com/go-flac/go-flac"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/yleoer/music-tagger/pkg/tags"
)

const detailJSON = `{
	"name": "Song",
	"id": 186016,
	"no": 4,
	"cd": "01",
	"publishTime": 1136073600000,
	"fee": 1,
	"mv": 0,
	"alia": ["Live"],
	"originCoverType": 2,
	"originSongSimpleData": {"name": "X", "artists": [{"name": "Y"}]},
	"ar": [{"name": "A", "alias": ["a1"]}, {"name": "B"}],
	"al": {"name": "Album", "tns": ["TN"], "artists": [{"name": "AA"}], "picUrl": "http://p1/cover.jpg"}
}`

var testLogger = log.New(io.Discard, "", 0)

func newProjector() *tags.Projector {
	return tags.NewProjector(tags.WithLocation(time.UTC))
}

// writeMP3 写入一个没有 ID3 标签的最小 MP3 文件
func writeMP3(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	data := append([]byte{0xFF, 0xFB, 0x90, 0x64}, make([]byte, 412)...)
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

// writeFLAC 写入只有 STREAMINFO 块的最小 FLAC 文件
func writeFLAC(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	var buf bytes.Buffer
	buf.WriteString("fLaC")
	buf.Write([]byte{0x80, 0x00, 0x00, 0x22}) // last block, STREAMINFO, length 34
	buf.Write(make([]byte, 34))
	buf.Write([]byte{0xFF, 0xF8, 0x00, 0x00})
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
	return path
}

func ageFile(t *testing.T, path string) time.Time {
	t.Helper()
	old := time.Now().Add(-72 * time.Hour).Truncate(time.Second)
	require.NoError(t, os.Chtimes(path, old, old))
	return old
}

func modTime(t *testing.T, path string) time.Time {
	t.Helper()
	info, err := os.Stat(path)
	require.NoError(t, err)
	return info.ModTime()
}

func readID3(t *testing.T, path string) *id3v2.Tag {
	t.Helper()
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	require.NoError(t, err)
	t.Cleanup(func() { tag.Close() })
	return tag
}

func readVorbis(t *testing.T, path string) map[string][]string {
	t.Helper()
	f, err := flac.ParseFile(path)
	require.NoError(t, err)
	_, cmt := findVorbisComment(f)
	require.NotNil(t, cmt)
	out := map[string][]string{}
	for _, c := range cmt.Comments {
		k, v, _ := strings.Cut(c, "=")
		out[k] = append(out[k], v)
	}
	return out
}

type fakeFetcher struct {
	data []byte
	err  error
	urls []string
}

func (f *fakeFetcher) FetchCover(_ context.Context, url string) ([]byte, error) {
	f.urls = append(f.urls, url)
	return f.data, f.err
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestMP3UpdateWritesFrames(t *testing.T) {
	path := writeMP3(t, t.TempDir(), "song.mp3")
	old := ageFile(t, path)

	var logs bytes.Buffer
	p := NewMP3Processor(newProjector(), DefaultOptions(), log.New(&logs, "", 0))
	report, err := p.Update(context.Background(), path, gjson.Parse(detailJSON))
	require.NoError(t, err)
	assert.True(t, report.Saved)
	assert.Empty(t, report.Warnings)
	assert.True(t, report.CoverNotice)
	assert.Contains(t, logs.String(), "cover download is disabled")
	assert.True(t, modTime(t, path).After(old))

	tag := readID3(t, path)
	assert.EqualValues(t, 4, tag.Version())
	want := map[string]string{
		"TIT2": "Song",
		"TPE1": "A; B",
		"TALB": "Album",
		"TPE2": "AA",
		"TDRC": "2006-01-01",
		"TRCK": "4",
		"TPOS": "01",
		"TCON": "VIP",
		"TSOP": "a1",
		"TSOA": "TN",
		"TIT3": "Live - 翻唱 - 原曲: X - Y",
	}
	for id, text := range want {
		assert.Equal(t, text, tag.GetTextFrame(id).Text, id)
	}

	udtfs := tag.GetFrames("TXXX")
	require.Len(t, udtfs, 1)
	udtf, ok := udtfs[0].(id3v2.UserDefinedTextFrame)
	require.True(t, ok)
	assert.Equal(t, "NETEASE_INFO", udtf.Description)
	assert.Equal(t, "NeteaseMusic ID: 186016", udtf.Value)

	comments := tag.GetFrames("COMM")
	require.Len(t, comments, 1)
	comment, ok := comments[0].(id3v2.CommentFrame)
	require.True(t, ok)
	assert.Equal(t, "类型: 翻唱\n原曲: X - Y", comment.Text)
	assert.Equal(t, len(want)+2, report.Written)
}

func TestMP3UpdateReplacesExistingFrames(t *testing.T) {
	path := writeMP3(t, t.TempDir(), "song.mp3")
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	require.NoError(t, err)
	tag.SetTitle("Old Title")
	tag.SetArtist("Old Artist")
	tag.AddTextFrame("TCOM", id3v2.EncodingUTF8, "Composer")
	require.NoError(t, tag.Save())
	require.NoError(t, tag.Close())

	p := NewMP3Processor(newProjector(), DefaultOptions(), testLogger)
	_, err = p.Update(context.Background(), path, gjson.Parse(`{"name":"New","ar":[{"name":"N"}]}`))
	require.NoError(t, err)

	got := readID3(t, path)
	assert.Len(t, got.GetFrames("TIT2"), 1)
	assert.Equal(t, "New", got.Title())
	assert.Equal(t, "N", got.Artist())
	assert.Equal(t, "Composer", got.GetTextFrame("TCOM").Text)
	comment := got.GetFrames("COMM")
	require.Len(t, comment, 1)
	assert.Equal(t, "类型: 未知", comment[0].(id3v2.CommentFrame).Text)
}

func TestMP3FaultIsolation(t *testing.T) {
	path := writeMP3(t, t.TempDir(), "song.mp3")
	p := NewMP3Processor(newProjector(), DefaultOptions(), testLogger)
	detail := `{"name":"T","al":{"name":"Al"},"ar":[{"name":"A"}],"alia":12,"originCoverType":1,"originSongSimpleData":[1]}`
	report, err := p.Update(context.Background(), path, gjson.Parse(detail))
	require.NoError(t, err)
	assert.True(t, report.Saved)
	assert.Len(t, report.Warnings, 2, "version and comment fail independently")

	tag := readID3(t, path)
	assert.Equal(t, "T", tag.Title())
	assert.Equal(t, "A", tag.Artist())
	assert.Equal(t, "Al", tag.Album())
	assert.Empty(t, tag.GetFrames("TIT3"))
	assert.Empty(t, tag.GetFrames("COMM"))
}

func TestMP3CoverEmbedded(t *testing.T) {
	path := writeMP3(t, t.TempDir(), "song.mp3")
	fetcher := &fakeFetcher{data: pngBytes(t)}
	opts := DefaultOptions()
	opts.Cover = fetcher
	p := NewMP3Processor(newProjector(), opts, testLogger)

	report, err := p.Update(context.Background(), path, gjson.Parse(detailJSON))
	require.NoError(t, err)
	assert.False(t, report.CoverNotice)
	assert.Equal(t, []string{"http://p1/cover.jpg"}, fetcher.urls)

	pics := readID3(t, path).GetFrames("APIC")
	require.Len(t, pics, 1)
	pic := pics[0].(id3v2.PictureFrame)
	assert.Equal(t, "image/png", pic.MimeType)

	// 已有封面时不再获取
	_, err = p.Update(context.Background(), path, gjson.Parse(detailJSON))
	require.NoError(t, err)
	assert.Len(t, fetcher.urls, 1)
}

func TestMP3CoverFetchFailureIsWarning(t *testing.T) {
	path := writeMP3(t, t.TempDir(), "song.mp3")
	opts := DefaultOptions()
	opts.Cover = &fakeFetcher{err: errors.New("offline")}
	p := NewMP3Processor(newProjector(), opts, testLogger)

	report, err := p.Update(context.Background(), path, gjson.Parse(detailJSON))
	require.NoError(t, err)
	assert.True(t, report.Saved)
	require.Len(t, report.Warnings, 1)
	assert.Contains(t, report.Warnings[0].Error(), "offline")
}

func TestFLACUpdate(t *testing.T) {
	path := writeFLAC(t, t.TempDir(), "song.flac")
	old := ageFile(t, path)

	p := NewFLACProcessor(newProjector(), DefaultOptions(), testLogger)
	report, err := p.Update(context.Background(), path, gjson.Parse(detailJSON))
	require.NoError(t, err)
	assert.True(t, report.Saved)
	assert.Empty(t, report.Warnings)
	assert.True(t, report.CoverNotice)
	assert.True(t, modTime(t, path).After(old))

	got := readVorbis(t, path)
	assert.Equal(t, []string{"Song"}, got["TITLE"])
	assert.Equal(t, []string{"A", "B"}, got["ARTIST"])
	assert.Equal(t, []string{"AA"}, got["ALBUMARTIST"])
	assert.Equal(t, []string{"4"}, got["TRACKNUMBER"])
	assert.Equal(t, []string{"Live", "翻唱", "原曲: X - Y"}, got["VERSION"])
	assert.Equal(t, []string{"a1"}, got["ARTISTSORT"])
	assert.Equal(t, []string{"VIP"}, got["GENRE"])
	assert.Equal(t, []string{"NeteaseMusic ID: 186016"}, got["DESCRIPTION"])
	assert.Equal(t, []string{"X"}, got["ORIGINALNAME"])
	assert.Equal(t, []string{"Y"}, got["ORIGINALARTIST"])
	assert.NotContains(t, got, "ORIGINAL")
	assert.NotContains(t, got, "NETEASE_INFO")
}

func TestFLACUpdateKeepsUnrelatedComments(t *testing.T) {
	path := writeFLAC(t, t.TempDir(), "song.flac")
	f, err := flac.ParseFile(path)
	require.NoError(t, err)
	cmt := flacvorbis.New()
	require.NoError(t, cmt.Add("TITLE", "old"))
	require.NoError(t, cmt.Add("title", "old lower"))
	require.NoError(t, cmt.Add("COMMENT", "keep me"))
	block := cmt.Marshal()
	f.Meta = append(f.Meta, &block)
	require.NoError(t, f.Save(path))

	p := NewFLACProcessor(newProjector(), DefaultOptions(), testLogger)
	_, err = p.Update(context.Background(), path, gjson.Parse(`{"name":"new"}`))
	require.NoError(t, err)

	got := readVorbis(t, path)
	assert.Equal(t, []string{"new"}, got["TITLE"])
	assert.NotContains(t, got, "title")
	assert.Equal(t, []string{"keep me"}, got["COMMENT"])
}

func TestFLACCoverEmbedded(t *testing.T) {
	path := writeFLAC(t, t.TempDir(), "song.flac")
	fetcher := &fakeFetcher{data: pngBytes(t)}
	opts := DefaultOptions()
	opts.Cover = fetcher
	p := NewFLACProcessor(newProjector(), opts, testLogger)

	report, err := p.Update(context.Background(), path, gjson.Parse(detailJSON))
	require.NoError(t, err)
	assert.Empty(t, report.Warnings)

	f, err := flac.ParseFile(path)
	require.NoError(t, err)
	assert.True(t, hasPictureBlock(f))

	_, err = p.Update(context.Background(), path, gjson.Parse(detailJSON))
	require.NoError(t, err)
	assert.Len(t, fetcher.urls, 1)
}

func TestFLACOpenFailureStillTouches(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.flac")
	require.NoError(t, os.WriteFile(path, []byte("not a flac file at all"), 0644))
	old := ageFile(t, path)

	p := NewFLACProcessor(newProjector(), DefaultOptions(), testLogger)
	report, err := p.Update(context.Background(), path, gjson.Parse(detailJSON))
	require.Error(t, err)
	assert.False(t, report.Saved)
	assert.True(t, modTime(t, path).After(old))
}

func TestCleanupRespectsTouchOption(t *testing.T) {
	path := writeMP3(t, t.TempDir(), "song.mp3")
	old := ageFile(t, path)

	b := &base{opts: Options{TouchOnSaveFailure: false}, logger: testLogger}
	b.cleanup(path, &Report{Saved: false})
	assert.True(t, modTime(t, path).Equal(old))

	b.cleanup(path, &Report{Saved: true})
	assert.True(t, modTime(t, path).After(old))
}

func TestDispatcher(t *testing.T) {
	dir := t.TempDir()
	d := NewDispatcher(newProjector(), DefaultOptions(), testLogger)

	assert.True(t, d.Supports("a.MP3"))
	assert.True(t, d.Supports("a.flac"))
	assert.False(t, d.Supports("a.m4a"))

	_, err := d.Update(context.Background(), filepath.Join(dir, "a.m4a"), gjson.Parse(detailJSON))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	path := writeFLAC(t, dir, "b.FLAC")
	report, err := d.Update(context.Background(), path, gjson.Parse(`{"name":"x"}`))
	require.NoError(t, err)
	assert.Equal(t, FormatFLAC, report.Format)
}

func TestCommentText(t *testing.T) {
	text, err := commentText(gjson.Parse(`{"originCoverType":1,"originSongSimpleData":{"name":"X","artists":[]}}`))
	require.NoError(t, err)
	assert.Equal(t, "类型: 原创", text)

	text, err = commentText(gjson.Parse(`{}`))
	require.NoError(t, err)
	assert.Equal(t, "类型: 未知", text)

	text, err = commentText(gjson.Parse(`{"originSongSimpleData":{"name":"X","artists":[{"name":"Y"},{"name":"Z"}]}}`))
	require.NoError(t, err)
	assert.Equal(t, "类型: 未知\n原曲: X - Y, Z", text)
}

func TestMP3RejectsNonMPEGContent(t *testing.T) {
	cases := map[string][]byte{
		"empty.mp3": nil,
		"text.mp3":  []byte("this is a plain text file"),
		"flac.mp3":  []byte("fLaC\x00\x00\x00\x22"),
	}
	p := NewMP3Processor(newProjector(), DefaultOptions(), testLogger)
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			require.NoError(t, os.WriteFile(path, data, 0644))

			report, err := p.Update(context.Background(), path, gjson.Parse(detailJSON))
			assert.ErrorIs(t, err, ErrInvalidContainer)
			assert.False(t, report.Saved)

			info, err := os.Stat(path)
			require.NoError(t, err)
			assert.EqualValues(t, len(data), info.Size(), "file content is left alone")
		})
	}
}

func TestMP3AcceptsExistingTag(t *testing.T) {
	path := writeMP3(t, t.TempDir(), "song.mp3")
	p := NewMP3Processor(newProjector(), DefaultOptions(), testLogger)
	_, err := p.Update(context.Background(), path, gjson.Parse(detailJSON))
	require.NoError(t, err)

	// 第二次更新时文件以 "ID3" 开头
	report, err := p.Update(context.Background(), path, gjson.Parse(detailJSON))
	require.NoError(t, err)
	assert.True(t, report.Saved)
}

// dirSwapFetcher 在获取封面时把目标文件替换成同名目录，使随后的保存失败
type dirSwapFetcher struct {
	path string
	data []byte
}

func (f *dirSwapFetcher) FetchCover(context.Context, string) ([]byte, error) {
	if err := os.Remove(f.path); err != nil {
		return nil, err
	}
	if err := os.Mkdir(f.path, 0755); err != nil {
		return nil, err
	}
	return f.data, nil
}

func TestSaveFailureIsWarning(t *testing.T) {
	cases := []struct {
		name  string
		write func(t *testing.T, dir, name string) string
		file  string
		newP  func(opts Options) Processor
	}{
		{"mp3", writeMP3, "song.mp3", func(opts Options) Processor {
			return NewMP3Processor(newProjector(), opts, testLogger)
		}},
		{"flac", writeFLAC, "song.flac", func(opts Options) Processor {
			return NewFLACProcessor(newProjector(), opts, testLogger)
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := tc.write(t, t.TempDir(), tc.file)
			opts := DefaultOptions()
			opts.Cover = &dirSwapFetcher{path: path, data: pngBytes(t)}

			report, err := tc.newP(opts).Update(context.Background(), path, gjson.Parse(detailJSON))
			require.NoError(t, err, "a failed save does not fail the file")
			assert.False(t, report.Saved)
			require.Len(t, report.Warnings, 1)
			assert.Contains(t, report.Warnings[0].Error(), "failed to save")
			assert.Positive(t, report.Written)
			assert.DirExists(t, path)
		})
	}
}
