package services

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/customer-voice-api/internal/repo"
)

// newSvcDB opens a migrated SQLite file under t.TempDir().
func newSvcDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := repo.OpenSQLite(filepath.Join(t.TempDir(), "svc.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.Logger = logger.Discard
	if sqlDB, err := db.DB(); err == nil {
		t.Cleanup(func() { _ = sqlDB.Close() })
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func ptr[T any](v T) *T { return &v }

func ts(year int, month time.Month, day, hour int) *Timestamp {
	return &Timestamp{time.Date(year, month, day, hour, 0, 0, 0, time.UTC)}
}

func batch(sourceID string, items ...IngestItem) *IngestBatch {
	return &IngestBatch{SourceID: sourceID, Reviews: items}
}

func item(id, body string) IngestItem {
	return IngestItem{SourceReviewID: id, Body: body, PublishedAt: ts(2024, 5, 1, 10)}
}

func mustIngest(t *testing.T, s *IngestService, b *IngestBatch) *IngestResult {
	t.Helper()
	res, err := s.Ingest(context.Background(), b)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	return res
}
