package tags

import (
	"fmt"
	"sort"
	"strings"
)

// Schema 表示目标标签结构
type Schema int

const (
	// FrameBased 对应 MP3 的 ID3v2：每个帧一个值，多值需要拼接
	FrameBased Schema = iota
	// CommentBased 对应 FLAC 的 Vorbis Comment：字段名大写，原生支持多值
	CommentBased
)

func (s Schema) String() string {
	switch s {
	case FrameBased:
		return "frame"
	case CommentBased:
		return "comment"
	default:
		return fmt.Sprintf("Schema(%d)", int(s))
	}
}

// 抽象标签名
const (
	Title          = "title"
	Album          = "album"
	TrackNumber    = "tracknumber"
	DiscNumber     = "discnumber"
	Date           = "date"
	Artist         = "artist"
	AlbumArtist    = "albumartist"
	Version        = "version"
	ArtistSort     = "artistsort"
	AlbumSort      = "albumsort"
	Genre          = "genre"
	NeteaseInfo    = "netease_info"
	Description    = "description"
	Original       = "original"
	OriginalArtist = "originalartist"
	OriginalName   = "originalname"
)

// Kind 区分 Value 的三种形态
type Kind int

const (
	KindNone Kind = iota
	KindScalar
	KindList
	KindFields // 尚未展开的子映射，只在投影过程中出现
)

// Value 是单个标签的值：单值、有序多值，或待展开的子映射
type Value struct {
	kind   Kind
	text   string
	items  []string
	fields Tags
}

// Scalar 创建单值，空字符串视为空值
func Scalar(text string) Value {
	if text == "" {
		return Value{}
	}
	return Value{kind: KindScalar, text: text}
}

// List 创建多值，空列表视为空值
func List(items ...string) Value {
	if len(items) == 0 {
		return Value{}
	}
	return Value{kind: KindList, items: append([]string(nil), items...)}
}

// Fields 创建子映射，没有任何非空字段时视为空值
func Fields(fields Tags) Value {
	clean := Tags{}
	for k, v := range fields {
		if !v.Empty() {
			clean[k] = v
		}
	}
	if len(clean) == 0 {
		return Value{}
	}
	return Value{kind: KindFields, fields: clean}
}

func (v Value) Kind() Kind   { return v.kind }
func (v Value) Empty() bool  { return v.kind == KindNone }
func (v Value) IsList() bool { return v.kind == KindList }

// Strings 返回全部值；单值返回一个元素
func (v Value) Strings() []string {
	switch v.kind {
	case KindScalar:
		return []string{v.text}
	case KindList:
		return append([]string(nil), v.items...)
	default:
		return nil
	}
}

// First 返回第一个值
func (v Value) First() string {
	if s := v.Strings(); len(s) > 0 {
		return s[0]
	}
	return ""
}

// Join 用 sep 拼接多值；单值原样返回
func (v Value) Join(sep string) string {
	return strings.Join(v.Strings(), sep)
}

// SubFields 返回子映射（仅 KindFields）
func (v Value) SubFields() Tags {
	return v.fields
}

func (v Value) String() string {
	switch v.kind {
	case KindScalar:
		return v.text
	case KindList:
		return "[" + strings.Join(v.items, ", ") + "]"
	case KindFields:
		return fmt.Sprint(map[string]Value(v.fields))
	default:
		return ""
	}
}

// Tags 是抽象标签名到值的映射
type Tags map[string]Value

// Keys 返回排序后的标签名
func (t Tags) Keys() []string {
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Strings 返回某个标签的全部值，不存在时返回 nil
func (t Tags) Strings(name string) []string {
	return t[name].Strings()
}

func (t Tags) set(name string, v Value) {
	if v.Empty() {
		return
	}
	t[name] = v
}
