package tags

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/tidwall/gjson"

	"github.com/yleoer/music-tagger/pkg/metadata"
)

// Env 是转换函数可以使用的环境
type Env struct {
	Location *time.Location
}

// Transform 将提取到的字段转换为标签值。返回空 Value 表示不写该标签。
type Transform func(env Env, v gjson.Result) (Value, error)

// Rule 描述一个基础标签：从哪个字段读取，以及两种标签结构各自如何转换
type Rule struct {
	Tag     string
	Path    string
	Frame   Transform
	Comment Transform
}

// For 返回 schema 对应的转换函数
func (r Rule) For(schema Schema) Transform {
	if schema == FrameBased {
		return r.Frame
	}
	return r.Comment
}

// Rules 是基础标签表。新增标签只需追加一行。
var Rules = []Rule{
	{Tag: Title, Path: metadata.FieldName, Frame: asString, Comment: asString},
	{Tag: Album, Path: metadata.FieldAlbumName, Frame: asString, Comment: asString},
	{Tag: TrackNumber, Path: metadata.FieldTrackNo, Frame: positiveNumber, Comment: positiveNumber},
	{Tag: DiscNumber, Path: metadata.FieldDiscNo, Frame: truthyString, Comment: truthyString},
	{Tag: Date, Path: metadata.FieldPublishTime, Frame: publishDate, Comment: publishDate},
	{Tag: Artist, Path: metadata.FieldArtists, Frame: artistNames, Comment: artistNames},
	{Tag: AlbumArtist, Path: metadata.FieldAlbumArtists, Frame: artistNames, Comment: artistNames},
	{Tag: Original, Path: metadata.FieldOriginSong, Frame: originalComposite, Comment: originalFields},
}

func asString(_ Env, v gjson.Result) (Value, error) {
	if v.IsObject() || v.IsArray() {
		return Value{}, fmt.Errorf("expected a scalar, got %s", v.Raw)
	}
	return Scalar(v.String()), nil
}

func positiveNumber(_ Env, v gjson.Result) (Value, error) {
	if v.Type != gjson.Number {
		return Value{}, fmt.Errorf("expected a number, got %s", v.Raw)
	}
	if v.Float() <= 0 {
		return Value{}, nil
	}
	return Scalar(formatNumber(v)), nil
}

func truthyString(_ Env, v gjson.Result) (Value, error) {
	if !metadata.Truthy(v) {
		return Value{}, nil
	}
	if v.Type == gjson.Number {
		return Scalar(formatNumber(v)), nil
	}
	return Scalar(v.String()), nil
}

func publishDate(env Env, v gjson.Result) (Value, error) {
	if v.Type != gjson.Number {
		return Value{}, fmt.Errorf("expected epoch milliseconds, got %s", v.Raw)
	}
	if v.Float() <= 0 {
		return Value{}, nil
	}
	loc := env.Location
	if loc == nil {
		loc = time.Local
	}
	return Scalar(time.UnixMilli(v.Int()).In(loc).Format(time.DateOnly)), nil
}

func artistNames(_ Env, v gjson.Result) (Value, error) {
	names, err := namesOf(v)
	if err != nil {
		return Value{}, err
	}
	return List(names...), nil
}

// originalComposite 将原曲信息合并为 "Name - A, B"
func originalComposite(_ Env, v gjson.Result) (Value, error) {
	song := metadata.ParseOriginSong(v)
	if song.Name == "" || len(song.Artists) == 0 {
		return Value{}, nil
	}
	return Scalar(song.Name + " - " + strings.Join(song.Artists, ", ")), nil
}

// originalFields 将原曲信息拆为 originalartist 与 originalname 两个子字段
func originalFields(_ Env, v gjson.Result) (Value, error) {
	if !metadata.Truthy(v) {
		return Value{}, nil
	}
	song := metadata.ParseOriginSong(v)
	return Fields(Tags{
		OriginalArtist: List(song.Artists...),
		OriginalName:   Scalar(song.Name),
	}), nil
}

// namesOf 读取 [{name: ...}] 中的 name；元素缺少 name 或为 null 时报错
func namesOf(v gjson.Result) ([]string, error) {
	if !v.IsArray() {
		return nil, fmt.Errorf("expected a list of artists, got %s", v.Raw)
	}
	items := v.Array()
	for i, item := range items {
		if name := item.Get("name"); !name.Exists() || name.Type == gjson.Null {
			return nil, fmt.Errorf("artist #%d has no name", i)
		}
	}
	return lo.Map(items, func(item gjson.Result, _ int) string {
		return item.Get("name").String()
	}), nil
}

// stringsOf 读取字符串数组，元素为对象或数组时报错
func stringsOf(v gjson.Result) ([]string, error) {
	if !v.IsArray() {
		return nil, fmt.Errorf("expected a list, got %s", v.Raw)
	}
	var out []string
	for _, item := range v.Array() {
		if item.IsObject() || item.IsArray() {
			return nil, fmt.Errorf("expected a list of strings, got element %s", item.Raw)
		}
		out = append(out, item.String())
	}
	return out, nil
}

func formatNumber(v gjson.Result) string {
	return strconv.FormatFloat(v.Float(), 'f', -1, 64)
}
