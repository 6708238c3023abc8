package store

import (
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"repricer/models"
)

// AuditStore keeps a local history of job runs in sqlite so operators can
// inspect what the schedulers have been doing across restarts.
type AuditStore struct {
	db *gorm.DB
}

// NewAuditStore opens (creating if needed) the sqlite database at path and
// migrates the run-history schema.
func NewAuditStore(path string) (*AuditStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create audit db directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Error),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open audit db at %s: %w", path, err)
	}

	if err := db.AutoMigrate(&models.JobRun{}); err != nil {
		return nil, fmt.Errorf("failed to migrate audit schema: %w", err)
	}

	return &AuditStore{db: db}, nil
}

// Record inserts one job-run row
func (s *AuditStore) Record(run *models.JobRun) error {
	if err := s.db.Create(run).Error; err != nil {
		return fmt.Errorf("failed to record job run: %w", err)
	}
	return nil
}

// RecentRuns returns the most recent runs, newest first
func (s *AuditStore) RecentRuns(limit int) ([]models.JobRun, error) {
	if limit <= 0 {
		limit = 50
	}
	var runs []models.JobRun
	if err := s.db.Order("started_at DESC").Limit(limit).Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("failed to load recent runs: %w", err)
	}
	return runs, nil
}

// Close closes the underlying sqlite handle
func (s *AuditStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
