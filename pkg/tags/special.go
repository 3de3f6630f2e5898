package tags

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
	"github.com/tidwall/gjson"

	"github.com/yleoer/music-tagger/pkg/metadata"
)

const (
	versionSep = " - "
	infoSep    = "; "
)

type step struct {
	tag   string
	apply func(pr *projection) error
}

// specialCases 返回基础标签表之后需要执行的步骤，各步骤互不影响
func specialCases(schema Schema) []step {
	if schema == FrameBased {
		return []step{
			{Version, frameVersion},
			{ArtistSort, artistSort},
			{AlbumSort, albumSort},
			{Genre, genre},
			{NeteaseInfo, catalogInfo},
		}
	}
	return []step{
		{Version, commentVersion},
		{ArtistSort, artistSort},
		{AlbumSort, albumSort},
		{Genre, genre},
		{Description, catalogInfo},
		{Original, reconcileOriginal},
	}
}

// versionParts 收集别名和原创/翻唱标签，并报告是否为翻唱
func versionParts(detail gjson.Result) (parts []string, isCover bool, err error) {
	if alia, ok := metadata.Lookup(detail, metadata.FieldAlias); ok && metadata.Truthy(alia) {
		aliases, err := stringsOf(alia)
		if err != nil {
			return nil, false, fmt.Errorf("%s: %w", metadata.FieldAlias, err)
		}
		parts = append(parts, aliases...)
	}
	if metadata.Has(detail, metadata.FieldCoverType) {
		code := detail.Get(metadata.FieldCoverType)
		parts = append(parts, metadata.CoverTypeLabel(code))
		isCover = code.Type == gjson.Number && code.Int() == metadata.CoverTypeCover
	}
	return parts, isCover, nil
}

// frameVersion：翻唱时把 "原曲: Name - Artists" 并入 TIT3，并移除临时的 original
func frameVersion(pr *projection) error {
	parts, isCover, err := versionParts(pr.detail)
	if err != nil {
		return err
	}
	original, hasOriginal := pr.tags[Original]
	if isCover && hasOriginal {
		parts = append(parts, metadata.LabelOriginalSong+original.First())
	}
	if len(parts) == 0 {
		return nil
	}
	pr.tags.set(Version, Scalar(strings.Join(parts, versionSep)))
	if isCover && hasOriginal {
		delete(pr.tags, Original)
	}
	return nil
}

// commentVersion：翻唱时追加原曲描述，original 子字段仍保留给 reconcileOriginal
func commentVersion(pr *projection) error {
	parts, isCover, err := versionParts(pr.detail)
	if err != nil {
		return err
	}
	if original, ok := pr.tags[Original]; isCover && ok && original.Kind() == KindFields {
		sub := original.SubFields()
		text := strings.Join(lo.Compact([]string{sub[OriginalName].First(), sub[OriginalArtist].Join(", ")}), versionSep)
		parts = append(parts, metadata.LabelOriginalSong+text)
	}
	pr.tags.set(Version, List(parts...))
	return nil
}

// artistSort 汇总所有歌手的别名
func artistSort(pr *projection) error {
	ar, ok := metadata.Lookup(pr.detail, metadata.FieldArtists)
	if !ok {
		return nil
	}
	if !ar.IsArray() {
		return fmt.Errorf("%s: expected a list, got %s", metadata.FieldArtists, ar.Raw)
	}
	var aliases []string
	for _, artist := range ar.Array() {
		alias := artist.Get("alias")
		if !metadata.Truthy(alias) {
			continue
		}
		names, err := stringsOf(alias)
		if err != nil {
			return fmt.Errorf("alias of %s: %w", artist.Get("name").String(), err)
		}
		aliases = append(aliases, names...)
	}
	if len(aliases) == 0 {
		return nil
	}
	if pr.schema == FrameBased {
		pr.tags.set(ArtistSort, Scalar(aliases[0]))
	} else {
		pr.tags.set(ArtistSort, List(aliases...))
	}
	return nil
}

// albumSort 使用专辑译名
func albumSort(pr *projection) error {
	tns, ok := metadata.Lookup(pr.detail, metadata.FieldAlbumTns)
	if !ok || !metadata.Truthy(tns) {
		return nil
	}
	names, err := stringsOf(tns)
	if err != nil {
		return fmt.Errorf("%s: %w", metadata.FieldAlbumTns, err)
	}
	if len(names) == 0 {
		return nil
	}
	if pr.schema == FrameBased {
		pr.tags.set(AlbumSort, Scalar(names[0]))
	} else {
		pr.tags.set(AlbumSort, List(names...))
	}
	return nil
}

// genre 由付费类型得出，未知代码不写
func genre(pr *projection) error {
	label, ok := metadata.FeeLabel(pr.detail.Get(metadata.FieldFee))
	if !ok {
		return nil
	}
	if pr.schema == FrameBased {
		pr.tags.set(Genre, Scalar(label))
	} else {
		pr.tags.set(Genre, List(label))
	}
	return nil
}

// catalogInfo 写入网易云歌曲 ID 与 MV ID
func catalogInfo(pr *projection) error {
	var parts []string
	if id := pr.detail.Get(metadata.FieldID); id.Exists() && id.Type != gjson.Null {
		text := id.String()
		if id.Type == gjson.Number {
			text = formatNumber(id)
		}
		parts = append(parts, metadata.LabelNeteaseID+text)
	}
	if mv := pr.detail.Get(metadata.FieldMV); mv.Exists() && mv.Type != gjson.Null {
		if mv.Type != gjson.Number {
			return fmt.Errorf("%s: expected a number, got %s", metadata.FieldMV, mv.Raw)
		}
		if mv.Float() > 0 {
			parts = append(parts, metadata.LabelMVID+formatNumber(mv))
		}
	}
	if len(parts) == 0 {
		return nil
	}
	if pr.schema == FrameBased {
		pr.tags.set(NeteaseInfo, Scalar(strings.Join(parts, infoSep)))
	} else {
		pr.tags.set(Description, List(parts...))
	}
	return nil
}

// reconcileOriginal 将 original 子映射展开为 originalartist 和 originalname
func reconcileOriginal(pr *projection) error {
	original, ok := pr.tags[Original]
	if !ok {
		return nil
	}
	delete(pr.tags, Original)
	if original.Kind() != KindFields {
		return fmt.Errorf("unexpected %s value %s", Original, original)
	}
	for name, v := range original.SubFields() {
		pr.tags.set(name, v)
	}
	return nil
}
