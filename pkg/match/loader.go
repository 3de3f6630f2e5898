package match

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/yleoer/music-tagger/pkg/util"
)

// DefaultFileName 是匹配工具写出的记录文件名
const DefaultFileName = ".matched.json"

var (
	ErrMatchFileNotFound  = errors.New("match file not found")
	ErrMalformedMatchFile = errors.New("malformed match file")
)

// File 是 .matched.json 的内容
type File struct {
	Path        string
	Files       []Record // 自动匹配
	ManualMatch []Record // 手动匹配
	raw         string
}

// Merged 返回合并后的记录，手动匹配优先
func (f *File) Merged() *Set {
	return Merge(f.Files, f.ManualMatch)
}

// Load 读取 folder 下的匹配记录文件。fileName 为空时使用 DefaultFileName。
func Load(folder, fileName string) (*File, error) {
	if fileName == "" {
		fileName = DefaultFileName
	}
	path := filepath.Join(folder, fileName)
	content, err := util.ReadTextFileContent(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrMatchFileNotFound, path)
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return Parse(path, content)
}

// LoadOrEmpty 与 Load 相同，但记录文件不存在时返回一个空的 File，保存时会新建
func LoadOrEmpty(folder, fileName string) (*File, error) {
	f, err := Load(folder, fileName)
	if errors.Is(err, ErrMatchFileNotFound) {
		if fileName == "" {
			fileName = DefaultFileName
		}
		return &File{Path: filepath.Join(folder, fileName)}, nil
	}
	return f, err
}

// Parse 解析匹配记录文件内容。files/manualMatch 缺失或不是数组时视为空。
func Parse(path, content string) (*File, error) {
	if !gjson.Valid(content) {
		return nil, fmt.Errorf("%w: %s", ErrMalformedMatchFile, path)
	}
	root := gjson.Parse(content)
	if !root.IsObject() {
		return nil, fmt.Errorf("%w: %s: top level is not an object", ErrMalformedMatchFile, path)
	}
	return &File{
		raw:         content,
		Path:        path,
		Files:       parseRecords(root.Get("files")),
		ManualMatch: parseRecords(root.Get("manualMatch")),
	}, nil
}

func parseRecords(list gjson.Result) []Record {
	if !list.IsArray() {
		return nil
	}
	var records []Record
	list.ForEach(func(_, item gjson.Result) bool {
		if !item.IsObject() {
			return true
		}
		fileName := item.Get("fileName")
		if fileName.Type != gjson.String {
			return true
		}
		records = append(records, Record{
			FileName:  fileName.Str,
			NeteaseID: item.Get("neteaseId").Int(),
			Detail:    item.Get("neteaseDetail"),
			Raw:       item.Raw,
		})
		return true
	})
	return records
}

// Marshal 将记录写回 JSON。文件中的其他顶层字段和每条记录的原始内容都保持不变。
func (f *File) Marshal() ([]byte, error) {
	doc := f.raw
	if doc == "" {
		doc = "{}"
	}
	sections := []struct {
		key     string
		records []Record
	}{
		{"files", f.Files},
		{"manualMatch", f.ManualMatch},
	}
	var err error
	for _, section := range sections {
		if doc, err = sjson.SetRaw(doc, section.key, "[]"); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", section.key, err)
		}
		for _, r := range section.records {
			raw, err := r.marshal()
			if err != nil {
				return nil, err
			}
			if doc, err = sjson.SetRaw(doc, section.key+".-1", raw); err != nil {
				return nil, fmt.Errorf("failed to write %s: %w", r.FileName, err)
			}
		}
	}
	return []byte(doc), nil
}

// Save 将记录写回 f.Path
func (f *File) Save() error {
	data, err := f.Marshal()
	if err != nil {
		return err
	}
	if err := os.WriteFile(f.Path, data, 0644); err != nil {
		return fmt.Errorf("failed to save %s: %w", f.Path, err)
	}
	f.raw = string(data)
	return nil
}

func (r Record) marshal() (string, error) {
	if r.Raw != "" {
		return r.Raw, nil
	}
	raw, err := sjson.Set("{}", "fileName", r.FileName)
	if err != nil {
		return "", err
	}
	if r.NeteaseID != 0 {
		if raw, err = sjson.Set(raw, "neteaseId", r.NeteaseID); err != nil {
			return "", err
		}
	}
	if r.Detail.Exists() {
		if raw, err = sjson.SetRaw(raw, "neteaseDetail", r.Detail.Raw); err != nil {
			return "", err
		}
	}
	return raw, nil
}
