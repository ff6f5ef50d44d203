// Package diagnostics persists a small operator-facing log of every
// generation (chat-completion) call the pipeline issues: which stage made
// it, which model, how long it took, and whether it succeeded.
package diagnostics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"yt-studio/pkg/logger"
)

// ProviderCallLog records one GenerationClient call for operator diagnostics
// across restarts. Not read by the job state machine; the job's own Job/View
// records stay purely in memory per the pipeline's design.
type ProviderCallLog struct {
	ID        uint      `gorm:"primaryKey"`
	CreatedAt time.Time
	JobID     string `gorm:"index"`
	Stage     string `gorm:"index"`
	Model     string
	LatencyMs int64
	Outcome   string // "ok" or "error"
	ErrorText string
}

// Store wraps the gorm/sqlite connection backing the ProviderCallLog table.
type Store struct {
	db *gorm.DB
}

// Open creates (or reuses) a sqlite database under dataRoot/diagnostics.db
// and auto-migrates the ProviderCallLog schema.
func Open(dataRoot string) (*Store, error) {
	if err := os.MkdirAll(dataRoot, 0o755); err != nil {
		return nil, fmt.Errorf("diagnostics: failed to create data root: %w", err)
	}
	path := filepath.Join(dataRoot, "diagnostics.db")

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("diagnostics: failed to open %s: %w", path, err)
	}
	if err := db.AutoMigrate(&ProviderCallLog{}); err != nil {
		return nil, fmt.Errorf("diagnostics: failed to migrate schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Record persists one call outcome. Failures to write are logged and
// swallowed: diagnostics must never fail a job.
func (s *Store) Record(jobID, stage, model string, latency time.Duration, err error) {
	if s == nil {
		return
	}
	entry := ProviderCallLog{
		JobID:     jobID,
		Stage:     stage,
		Model:     model,
		LatencyMs: latency.Milliseconds(),
		Outcome:   "ok",
	}
	if err != nil {
		entry.Outcome = "error"
		entry.ErrorText = err.Error()
	}
	if dbErr := s.db.Create(&entry).Error; dbErr != nil {
		logger.Warn("Failed to record provider call log", "error", dbErr)
	}
}

// Close releases the underlying sql.DB connection.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// RecentFailures returns up to limit most-recent failed calls, newest first,
// for an operator-facing diagnostics endpoint or CLI.
func (s *Store) RecentFailures(limit int) ([]ProviderCallLog, error) {
	var rows []ProviderCallLog
	err := s.db.Where("outcome = ?", "error").Order("created_at desc").Limit(limit).Find(&rows).Error
	return rows, err
}
