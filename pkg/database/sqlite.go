package database

import (
	"crypto/rand"
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/oklog/ulid/v2"
)

// sqliteStore 是 HistoryStore 接口的 SQLite 实现
type sqliteStore struct {
	db     *sql.DB
	logger *log.Logger
}

const createTablesSQL = `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		folder TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		finished_at DATETIME,
		updated INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0
	);
	CREATE TABLE IF NOT EXISTS file_results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id),
		file_name TEXT NOT NULL,
		netease_id INTEGER,
		format TEXT NOT NULL,
		status TEXT NOT NULL,
		message TEXT NOT NULL DEFAULT '',
		recorded_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`

// NewSQLiteStore 初始化 SQLite 数据库并返回 HistoryStore 接口实例
func NewSQLiteStore(dataSourceName string, log *log.Logger) (HistoryStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	if _, err := db.Exec(createTablesSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create history tables: %w", err)
	}
	log.Printf("SQLite database initialized at: %s", dataSourceName)
	return &sqliteStore{db: db, logger: log}, nil
}

// Close 关闭数据库连接
func (s *sqliteStore) Close() error {
	if s.db != nil {
		err := s.db.Close()
		s.logger.Println("SQLite database connection closed.")
		return err
	}
	return nil
}

// BeginRun 插入一条运行记录，ID 为 ULID，按时间可排序
func (s *sqliteStore) BeginRun(folder string) (string, error) {
	now := time.Now()
	id, err := ulid.New(ulid.Timestamp(now), rand.Reader)
	if err != nil {
		return "", fmt.Errorf("failed to generate run id: %w", err)
	}
	if _, err := s.db.Exec("INSERT INTO runs (id, folder, started_at) VALUES (?, ?, ?)", id.String(), folder, now); err != nil {
		s.logger.Printf("ERROR: Failed to record run for %s: %v", folder, err)
		return "", fmt.Errorf("failed to begin run for %s: %w", folder, err)
	}
	return id.String(), nil
}

// RecordFile 记录单个文件的结果
func (s *sqliteStore) RecordFile(runID string, outcome FileOutcome) error {
	var neteaseID sql.NullInt64
	if outcome.NeteaseID != 0 {
		neteaseID = sql.NullInt64{Int64: outcome.NeteaseID, Valid: true}
	}
	_, err := s.db.Exec(
		"INSERT INTO file_results (run_id, file_name, netease_id, format, status, message) VALUES (?, ?, ?, ?, ?, ?)",
		runID, outcome.FileName, neteaseID, outcome.Format, outcome.Status, outcome.Message,
	)
	if err != nil {
		return fmt.Errorf("failed to record %s: %w", outcome.FileName, err)
	}
	return nil
}

// FinishRun 写入运行的汇总计数
func (s *sqliteStore) FinishRun(runID string, updated, failed int) error {
	res, err := s.db.Exec("UPDATE runs SET finished_at = ?, updated = ?, failed = ? WHERE id = ?", time.Now(), updated, failed, runID)
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", runID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("run %s not found", runID)
	}
	return nil
}
