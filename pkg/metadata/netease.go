package metadata

import "github.com/tidwall/gjson"

// 网易云歌曲详情中用到的字段路径
const (
	FieldName         = "name"
	FieldAlbumName    = "al.name"
	FieldAlbumArtists = "al.artists"
	FieldAlbumTns     = "al.tns"
	FieldAlbumPicURL  = "al.picUrl"
	FieldTrackNo      = "no"
	FieldDiscNo       = "cd"
	FieldPublishTime  = "publishTime"
	FieldArtists      = "ar"
	FieldAlias        = "alia"
	FieldCoverType    = "originCoverType"
	FieldOriginSong   = "originSongSimpleData"
	FieldFee          = "fee"
	FieldID           = "id"
	FieldMV           = "mv"
)

// 原创/翻唱类型
const (
	CoverTypeUnknown  = 0
	CoverTypeOriginal = 1
	CoverTypeCover    = 2
)

// 写入标签时使用的本地化文本
const (
	LabelOriginalSong = "原曲: "
	LabelCoverType    = "类型: "
	LabelNeteaseID    = "NeteaseMusic ID: "
	LabelMVID         = "MV ID: "
)

var coverTypeLabels = map[int64]string{
	CoverTypeUnknown:  "未知",
	CoverTypeOriginal: "原创",
	CoverTypeCover:    "翻唱",
}

// 付费类型
var feeLabels = map[int64]string{
	0: "免费",
	1: "VIP",
	4: "专辑",
	8: "试听",
}

// CoverTypeLabel 返回原创/翻唱类型的中文标签，未知或非数字返回“未知”
func CoverTypeLabel(code gjson.Result) string {
	if code.Type == gjson.Number {
		if label, ok := coverTypeLabels[code.Int()]; ok {
			return label
		}
	}
	return coverTypeLabels[CoverTypeUnknown]
}

// FeeLabel 返回付费类型标签；未知代码返回 ok=false
func FeeLabel(code gjson.Result) (string, bool) {
	if code.Type != gjson.Number || code.Float() != float64(code.Int()) {
		return "", false
	}
	label, ok := feeLabels[code.Int()]
	return label, ok
}

// OriginSong 是 originSongSimpleData 的简化表示
type OriginSong struct {
	Name    string
	Artists []string
}

// ParseOriginSong 读取原曲信息。缺少 name 或 artists 的元素会被忽略。
func ParseOriginSong(v gjson.Result) OriginSong {
	var song OriginSong
	if !v.IsObject() {
		return song
	}
	song.Name = v.Get("name").String()
	for _, ar := range v.Get("artists").Array() {
		if name := ar.Get("name"); name.Exists() && name.Type != gjson.Null {
			song.Artists = append(song.Artists, name.String())
		}
	}
	return song
}

// CoverURL 返回专辑封面地址
func CoverURL(detail gjson.Result) (string, bool) {
	v, ok := Lookup(detail, FieldAlbumPicURL)
	if !ok || !Truthy(v) {
		return "", false
	}
	return v.String(), true
}
