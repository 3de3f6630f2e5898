package scanner

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"

	"github.com/samber/lo"

	"github.com/yleoer/music-tagger/pkg/util"
)

// FolderScanner 列出目录中的音频文件
type FolderScanner struct {
	logger *log.Logger
}

// NewFolderScanner 创建一个新的 FolderScanner 实例
func NewFolderScanner(logger *log.Logger) *FolderScanner {
	return &FolderScanner{logger: logger}
}

// ListAudioFiles 返回 folder 下一级的音频文件名（不含子目录），按名称排序
func (s *FolderScanner) ListAudioFiles(folder string) ([]string, error) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", folder, err)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !util.IsAudioFile(entry.Name()) {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Unmatched 返回目录中没有匹配记录引用的音频文件
func (s *FolderScanner) Unmatched(folder string, matched []string) ([]string, error) {
	names, err := s.ListAudioFiles(folder)
	if err != nil {
		return nil, err
	}
	unmatched, _ := lo.Difference(names, matched)
	for _, name := range unmatched {
		s.logger.Printf("  -> %s has no match record.", filepath.Base(name))
	}
	return unmatched, nil
}
