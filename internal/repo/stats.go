package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/customer-voice-api/internal/domain"
)

// ReviewsStats returns how many reviews match f and the newest created_at
// among them; the pair versions insights responses for ETags. newest is nil
// when nothing matches.
func ReviewsStats(ctx context.Context, db *gorm.DB, f ReviewFilter) (count int64, newest *time.Time, err error) {
	base := db.WithContext(ctx).Model(&domain.Review{}).Scopes(f.Scope)

	if err = base.Session(&gorm.Session{}).Count(&count).Error; err != nil || count == 0 {
		return 0, nil, err
	}

	// SQLite returns MAX(created_at) as text, so read the newest row instead.
	var latest domain.Review
	err = base.Session(&gorm.Session{}).
		Select("created_at").
		Order("created_at DESC").
		Take(&latest).Error
	if err != nil {
		return 0, nil, err
	}
	return count, &latest.CreatedAt, nil
}

// Watermark versions an insights response: the matching reviews plus the
// source and competitor rows its aggregates and review views depend on.
// Renaming a source bumps SourcesUpdated; deleting a competitor lowers
// Competitors even though the detached reviews keep their created_at.
type Watermark struct {
	Reviews            int64
	NewestReview       *time.Time
	Sources            int64
	SourcesUpdated     *time.Time
	Competitors        int64
	CompetitorsUpdated *time.Time
}

// InsightsWatermark collects the Watermark for the reviews matching f.
func InsightsWatermark(ctx context.Context, db *gorm.DB, f ReviewFilter) (Watermark, error) {
	var (
		w   Watermark
		err error
	)
	if w.Reviews, w.NewestReview, err = ReviewsStats(ctx, db, f); err != nil {
		return Watermark{}, err
	}
	if w.Sources, w.SourcesUpdated, err = tableStats(ctx, db, &domain.Source{}); err != nil {
		return Watermark{}, err
	}
	if w.Competitors, w.CompetitorsUpdated, err = tableStats(ctx, db, &domain.Competitor{}); err != nil {
		return Watermark{}, err
	}
	return w, nil
}

// tableStats counts the rows of model and reads the newest updated_at.
func tableStats(ctx context.Context, db *gorm.DB, model any) (int64, *time.Time, error) {
	base := db.WithContext(ctx).Model(model)
	var n int64
	if err := base.Session(&gorm.Session{}).Count(&n).Error; err != nil || n == 0 {
		return 0, nil, err
	}
	var ts []time.Time
	if err := base.Session(&gorm.Session{}).Order("updated_at DESC").Limit(1).Pluck("updated_at", &ts).Error; err != nil {
		return 0, nil, err
	}
	if len(ts) == 0 {
		return n, nil, nil
	}
	return n, &ts[0], nil
}
