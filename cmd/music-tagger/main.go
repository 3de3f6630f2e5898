package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/yleoer/music-tagger/pkg/config"
	"github.com/yleoer/music-tagger/pkg/converter"
	"github.com/yleoer/music-tagger/pkg/database"
	"github.com/yleoer/music-tagger/pkg/match"
	"github.com/yleoer/music-tagger/pkg/processor"
	"github.com/yleoer/music-tagger/pkg/scanner"
	"github.com/yleoer/music-tagger/pkg/scheduler"
	"github.com/yleoer/music-tagger/pkg/tags"
	"github.com/yleoer/music-tagger/pkg/util"
)

func main() {
	// 1. 初始化日志器，所有输出都写到标准输出
	log.SetOutput(os.Stdout)
	logger := log.New(os.Stdout, "[MusicTagger] ", log.LstdFlags)
	if err := newRootCommand(logger).ExecuteContext(context.Background()); err != nil {
		logger.Printf("ERROR: %v", err)
		os.Exit(1)
	}
}

func newRootCommand(logger *log.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "music-tagger <folder>",
		Short:         "Write NetEase Cloud Music metadata from .matched.json into MP3/FLAC tags",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			// 2. 加载配置
			cfg, err := config.LoadConfig(cmd.Flags())
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			return run(cmd.Context(), cfg, args[0], logger)
		},
	}
	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stdout)
	config.RegisterFlags(cmd.Flags())
	cmd.AddCommand(newMergeCommand(logger))
	return cmd
}

// newMergeCommand 将源目录的匹配记录及文件合并到目标目录
func newMergeCommand(logger *log.Logger) *cobra.Command {
	var opts match.MergeOptions
	var matchFile string
	cmd := &cobra.Command{
		Use:   "merge <target> <source>",
		Short: "Move matched files and their records from source into target",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, dir := range args {
				if !util.IsDirectory(dir) {
					return fmt.Errorf("%s is not a directory", dir)
				}
			}
			_, err := match.NewFolderMerger(matchFile, logger).MergeFolder(args[0], args[1], opts)
			return err
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&matchFile, "match-file", match.DefaultFileName, "match record file name inside both folders")
	flags.BoolVar(&opts.Copy, "copy", false, "copy files instead of moving them")
	flags.BoolVar(&opts.Overwrite, "overwrite", false, "overwrite files that already exist in target")
	flags.BoolVar(&opts.AudioOnly, "audio-only", false, "transfer only audio files, not lyrics or other siblings")
	return cmd
}

func run(ctx context.Context, cfg *config.Config, folder string, logger *log.Logger) error {
	if !util.IsDirectory(folder) {
		return fmt.Errorf("%s is not a directory", folder)
	}

	// 3. 初始化所有依赖服务
	// 3.1 繁简体转换器
	var textConverter converter.TextConverter = converter.Identity{}
	if cfg.ConvertT2S {
		c, err := converter.NewOpenCCConverter(logger)
		if err != nil {
			return err
		}
		textConverter = c
	}
	// 3.2 更新历史
	var history database.HistoryStore = database.NopStore{}
	if cfg.HistoryDB != "" {
		store, err := database.NewSQLiteStore(cfg.HistoryDB, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer store.Close()
		history = store
	}
	// 3.3 标签投影与 MP3/FLAC 处理器
	projector := tags.NewProjector(tags.WithConverter(textConverter))
	opts := processor.DefaultOptions()
	opts.TouchOnSaveFailure = cfg.TouchOnSaveFailure
	dispatcher := processor.NewDispatcher(projector, opts, logger)

	// 4. 初始化任务调度器并执行一次更新
	taskScheduler := scheduler.NewTaskScheduler(cfg, dispatcher, scanner.NewFolderScanner(logger), history, logger)
	// 匹配记录文件不存在时已记录日志，不视为失败；格式错误仍然退出
	if _, err := taskScheduler.UpdateFolder(ctx, folder); err != nil && !errors.Is(err, match.ErrMatchFileNotFound) {
		return err
	}
	if !cfg.Watch {
		return nil
	}

	// 5. 监听匹配记录文件，Ctrl+C 退出
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	logger.Println("Application is running. Press Ctrl+C to exit.")
	return taskScheduler.Watch(ctx, folder)
}
