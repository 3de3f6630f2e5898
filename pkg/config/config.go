package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/yleoer/music-tagger/pkg/match"
)

type Config struct {
	MatchFile          string        `json:"match_file"`            // 匹配记录文件名，位于目标目录下
	ConvertT2S         bool          `json:"t2s"`                   // 写入前将繁体转换为简体
	HistoryDB          string        `json:"history_db"`            // 更新历史 SQLite 路径，为空时不记录
	TouchOnSaveFailure bool          `json:"touch_on_save_failure"` // 保存失败时是否仍刷新修改时间
	Watch              bool          `json:"watch"`                 // 更新后继续监听匹配记录文件
	WatchDebounce      time.Duration `json:"-"`                     // 监听模式下的延迟
}

const (
	keyMatchFile          = "match_file"
	keyT2S                = "t2s"
	keyHistoryDB          = "history_db"
	keyTouchOnSaveFailure = "touch_on_save_failure"
	keyWatch              = "watch"
	keyWatchDebounce      = "watch_debounce"

	watchDebounce = 2 * time.Second
)

// 命令行参数与配置键的对应关系
var flagKeys = map[string]string{
	"match-file":            keyMatchFile,
	"t2s":                   keyT2S,
	"history-db":            keyHistoryDB,
	"touch-on-save-failure": keyTouchOnSaveFailure,
	"watch":                 keyWatch,
	"watch-debounce":        keyWatchDebounce,
}

// RegisterFlags 注册命令行参数
func RegisterFlags(flags *pflag.FlagSet) {
	flags.String("match-file", match.DefaultFileName, "match record file name inside the folder")
	flags.Bool("t2s", false, "convert Traditional Chinese to Simplified before writing")
	flags.String("history-db", "", "SQLite file for update history (disabled when empty)")
	flags.Bool("touch-on-save-failure", true, "refresh the modification time even if saving tags fails")
	flags.Bool("watch", false, "keep watching the match file and re-run on changes")
	flags.String("watch-debounce", watchDebounce.String(), "delay before re-running after a change")
}

// LoadConfig 按 命令行参数 > 环境变量 (.env) > 默认值 加载配置
func LoadConfig(flags *pflag.FlagSet) (*Config, error) {
	// 尝试加载 .env 文件
	_ = godotenv.Load()

	v := viper.New()
	v.SetDefault(keyMatchFile, match.DefaultFileName)
	v.SetDefault(keyT2S, false)
	v.SetDefault(keyHistoryDB, "")
	v.SetDefault(keyTouchOnSaveFailure, true)
	v.SetDefault(keyWatch, false)
	v.SetDefault(keyWatchDebounce, watchDebounce.String())
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			flag := flags.Lookup(name)
			if flag == nil {
				continue
			}
			if err := v.BindPFlag(key, flag); err != nil {
				return nil, fmt.Errorf("failed to bind flag --%s: %w", name, err)
			}
		}
	}

	cfg := &Config{
		MatchFile:          v.GetString(keyMatchFile),
		ConvertT2S:         v.GetBool(keyT2S),
		HistoryDB:          v.GetString(keyHistoryDB),
		TouchOnSaveFailure: v.GetBool(keyTouchOnSaveFailure),
		Watch:              v.GetBool(keyWatch),
		WatchDebounce:      parseDurationOrDefault(v.GetString(keyWatchDebounce), watchDebounce),
	}

	if cfg.MatchFile == "" {
		cfg.MatchFile = match.DefaultFileName
	}
	if filepath.Base(cfg.MatchFile) != cfg.MatchFile {
		return nil, fmt.Errorf("match file must be a file name, got %s", cfg.MatchFile)
	}
	// 确认历史数据库目录存在
	if cfg.HistoryDB != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.HistoryDB), 0755); err != nil {
			return nil, fmt.Errorf("failed to create history directory for %s: %w", cfg.HistoryDB, err)
		}
	}
	log.Printf("Configuration loaded: MatchFile=%s, T2S=%t, HistoryDB=%s, TouchOnSaveFailure=%t, Watch=%t",
		cfg.MatchFile, cfg.ConvertT2S, cfg.HistoryDB, cfg.TouchOnSaveFailure, cfg.Watch)
	return cfg, nil
}

func parseDurationOrDefault(s string, defaultValue time.Duration) time.Duration {
	if s == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		log.Printf("Warning: Could not parse duration '%s', using default '%v'. Error: %v", s, defaultValue, err)
		return defaultValue
	}
	return d
}
