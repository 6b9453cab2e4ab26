package repo

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/customer-voice-api/internal/domain"
)

// newTestDB opens a throwaway SQLite file; migrate=false leaves it empty so
// error paths can be exercised.
func newTestDB(t *testing.T, migrate bool) *gorm.DB {
	t.Helper()
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "repo_test.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.Logger = logger.Default.LogMode(logger.Silent)
	// Ensure the file handle is released before TempDir cleanup (Windows needs this).
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if migrate {
		if err := AutoMigrate(db); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

func seedSource(t *testing.T, db *gorm.DB, name string) *domain.Source {
	t.Helper()
	s, err := CreateSource(context.Background(), db, uuid.NewString(), SourceMetadata{Name: &name})
	if err != nil {
		t.Fatalf("seed source: %v", err)
	}
	return s
}

type reviewSeed struct {
	sourceID     string
	competitorID *string
	extID        string
	body         string
	label        domain.SentimentLabel
	score        float64
	published    time.Time
	topics       map[string]float64
}

func seedReview(t *testing.T, db *gorm.DB, s reviewSeed) *domain.Review {
	t.Helper()
	ctx := context.Background()
	if s.extID == "" {
		s.extID = uuid.NewString()
	}
	if s.label == "" {
		s.label = domain.SentimentNeutral
	}
	if s.body == "" {
		s.body = "review body"
	}
	r := &domain.Review{
		ID:             uuid.NewString(),
		SourceID:       s.sourceID,
		CompetitorID:   s.competitorID,
		SourceReviewID: s.extID,
		Body:           s.body,
		SentimentLabel: s.label,
		SentimentScore: s.score,
		PublishedAt:    s.published.UTC(),
	}
	ok, err := InsertReview(ctx, db, r)
	if err != nil || !ok {
		t.Fatalf("seed review: ok=%v err=%v", ok, err)
	}
	for label, conf := range s.topics {
		topic, err := UpsertTopic(ctx, db, label)
		if err != nil {
			t.Fatalf("upsert topic: %v", err)
		}
		if err := InsertReviewTopic(ctx, db, r.ID, topic, conf); err != nil {
			t.Fatalf("insert review topic: %v", err)
		}
	}
	return r
}

func ptr[T any](v T) *T { return &v }
