package match

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/yleoer/music-tagger/pkg/util"
)

// ErrSameFolder 表示合并的目标目录与源目录相同
var ErrSameFolder = errors.New("target and source folders are the same")

// 同名的附属文件：song.mp3 -> song.lrc、song.zh.lrc
var siblingExtRe = regexp.MustCompile(`^(?:\.[0-9a-zA-Z]+)+$`)

// MergeOptions 控制目录合并
type MergeOptions struct {
	Copy      bool // 复制文件而不是移动
	Overwrite bool // 覆盖目标目录中的同名文件
	AudioOnly bool // 只处理音频文件，忽略歌词等附属文件
}

// MergeReport 汇总一次目录合并
type MergeReport struct {
	Records     int // 写入目标记录文件的记录数
	Transferred int // 复制或移动的文件数
	Skipped     int // 目标已存在而跳过的文件数
	Missing     int // 源目录中不存在的记录
}

// FolderMerger 将一个目录的匹配记录及其文件合并到另一个目录
type FolderMerger struct {
	fileName string
	logger   *log.Logger
}

// NewFolderMerger 创建 FolderMerger，fileName 为空时使用 DefaultFileName
func NewFolderMerger(fileName string, logger *log.Logger) *FolderMerger {
	if fileName == "" {
		fileName = DefaultFileName
	}
	return &FolderMerger{fileName: fileName, logger: logger}
}

// folderState 是合并过程中两个目录的文件状态
type folderState struct {
	targetDir, sourceDir string
	targetNames          map[string]bool
	sourceNames          map[string]bool
	sourceSorted         []string
	opts                 MergeOptions
	report               *MergeReport
}

// MergeFolder 将 sourceDir 中的匹配记录及其音频、同名附属文件合并到 targetDir。
// 目标中的同名记录被整条替换；移动（非复制）成功的记录会从源记录文件中删除。
func (m *FolderMerger) MergeFolder(targetDir, sourceDir string, opts MergeOptions) (*MergeReport, error) {
	if sameFolder(targetDir, sourceDir) {
		return nil, fmt.Errorf("%w: %s", ErrSameFolder, targetDir)
	}
	target, err := LoadOrEmpty(targetDir, m.fileName)
	if err != nil {
		return nil, err
	}
	source, err := LoadOrEmpty(sourceDir, m.fileName)
	if err != nil {
		return nil, err
	}

	st := &folderState{targetDir: targetDir, sourceDir: sourceDir, opts: opts, report: &MergeReport{}}
	if st.targetNames, _, err = listFiles(targetDir); err != nil {
		return nil, err
	}
	if st.sourceNames, st.sourceSorted, err = listFiles(sourceDir); err != nil {
		return nil, err
	}

	var targetChanged, sourceChanged bool
	sections := []struct {
		target, source *[]Record
	}{
		{&target.Files, &source.Files},
		{&target.ManualMatch, &source.ManualMatch},
	}
	for _, section := range sections {
		merged, remaining, added := m.mergeSection(st, *section.target, *section.source)
		if added > 0 {
			targetChanged = true
			*section.target = merged
		}
		if len(remaining) != len(*section.source) {
			sourceChanged = true
			*section.source = remaining
		}
		st.report.Records += added
	}

	if targetChanged {
		if err := target.Save(); err != nil {
			return st.report, err
		}
	}
	if sourceChanged {
		if err := source.Save(); err != nil {
			return st.report, err
		}
	}
	m.logger.Printf("Merge completed: %d records, %d files transferred, %d skipped, %d missing.",
		st.report.Records, st.report.Transferred, st.report.Skipped, st.report.Missing)
	return st.report, nil
}

// mergeSection 合并一组记录，返回新的目标记录、留在源目录的记录和写入目标的记录数
func (m *FolderMerger) mergeSection(st *folderState, targetRecords, sourceRecords []Record) ([]Record, []Record, int) {
	merged := Merge(targetRecords, nil)
	var remaining []Record
	added := 0
	for _, r := range sourceRecords {
		if !st.sourceNames[r.FileName] {
			m.logger.Printf("WARN: %s does not exist in %s", r.FileName, st.sourceDir)
			st.report.Missing++
			remaining = append(remaining, r)
			continue
		}
		m.logger.Printf("-> Merging %s", r.FileName)
		recordMoved := false
		for _, name := range siblings(st.sourceSorted, r.FileName) {
			audio := util.IsAudioFile(name)
			if st.opts.AudioOnly && !audio {
				continue
			}
			if !st.opts.Overwrite && st.targetNames[name] {
				m.logger.Printf("  -> %s already exists. Skipping.", name)
				st.report.Skipped++
				continue
			}
			if err := transferFile(filepath.Join(st.sourceDir, name), filepath.Join(st.targetDir, name), st.opts.Copy); err != nil {
				m.logger.Printf("ERROR: %s: %v", name, err)
				continue
			}
			st.targetNames[name] = true
			st.report.Transferred++
			if !st.opts.Copy {
				delete(st.sourceNames, name)
			}
			if audio {
				if _, exists := merged.Get(r.FileName); exists {
					m.logger.Printf("  -> Replacing existing record for %s", r.FileName)
				}
				merged.put(r)
				added++
				recordMoved = recordMoved || !st.opts.Copy
			}
			m.logger.Printf("  -> %s %s", transferVerb(st.opts.Copy), name)
		}
		if !recordMoved {
			remaining = append(remaining, r)
		}
	}
	return merged.Records(), remaining, added
}

// siblings 返回与 fileName 同名（去掉扩展名后）的文件，包括它自己
func siblings(sorted []string, fileName string) []string {
	base := strings.TrimSuffix(fileName, filepath.Ext(fileName))
	var out []string
	for _, name := range sorted {
		if !strings.HasPrefix(name, base) {
			continue
		}
		rest := strings.TrimSpace(name[len(base):])
		if rest == "" || siblingExtRe.MatchString(rest) {
			out = append(out, name)
		}
	}
	return out
}

func listFiles(dir string) (map[string]bool, []string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}
	names := make(map[string]bool, len(entries))
	var sorted []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names[entry.Name()] = true
		sorted = append(sorted, entry.Name())
	}
	sort.Strings(sorted)
	return names, sorted, nil
}

// transferFile 复制或移动文件；跨设备移动时退回到复制后删除
func transferFile(src, dst string, copyOnly bool) error {
	if !copyOnly {
		if err := os.Rename(src, dst); err == nil {
			return nil
		}
	}
	if err := copyFile(src, dst); err != nil {
		return err
	}
	if !copyOnly {
		return os.Remove(src)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to copy %s: %w", filepath.Base(src), err)
	}
	return out.Close()
}

func transferVerb(copyOnly bool) string {
	if copyOnly {
		return "Copied"
	}
	return "Moved"
}

func sameFolder(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}
