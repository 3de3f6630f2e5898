// Package match 读取并合并 .matched.json 中的自动匹配与手动匹配记录。
package match

import (
	"github.com/tidwall/gjson"

	"github.com/yleoer/music-tagger/pkg/metadata"
)

// Record 是一条匹配记录：本地文件名与网易云歌曲详情的对应关系
type Record struct {
	FileName  string
	NeteaseID int64
	Detail    gjson.Result // neteaseDetail，可能缺失
	Raw       string       // 记录的原始 JSON，写回时原样保留
}

// HasDetail 判断记录是否带有可用的歌曲详情
func (r Record) HasDetail() bool {
	return r.Detail.IsObject() && metadata.Truthy(r.Detail)
}

// Set 是按文件名去重后的匹配记录，保持文件名首次出现的顺序
type Set struct {
	names  []string
	byName map[string]Record
}

func newSet() *Set {
	return &Set{byName: make(map[string]Record)}
}

func (s *Set) put(r Record) {
	if _, exists := s.byName[r.FileName]; !exists {
		s.names = append(s.names, r.FileName)
	}
	s.byName[r.FileName] = r
}

// Len 返回记录数
func (s *Set) Len() int { return len(s.names) }

// Get 按文件名查找记录
func (s *Set) Get(fileName string) (Record, bool) {
	r, ok := s.byName[fileName]
	return r, ok
}

// Names 返回全部文件名
func (s *Set) Names() []string {
	return append([]string(nil), s.names...)
}

// Records 按顺序返回全部记录
func (s *Set) Records() []Record {
	out := make([]Record, 0, len(s.names))
	for _, name := range s.names {
		out = append(out, s.byName[name])
	}
	return out
}

// Merge 合并两组匹配记录：先放入自动匹配，再用手动匹配整条覆盖同名记录。
// 没有文件名的记录会被跳过。
func Merge(auto, manual []Record) *Set {
	set := newSet()
	for _, group := range [][]Record{auto, manual} {
		for _, r := range group {
			if r.FileName == "" {
				continue
			}
			set.put(r)
		}
	}
	return set
}
