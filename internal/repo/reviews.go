package repo

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/customer-voice-api/internal/domain"
)

// ReviewExists reports whether (sourceID, sourceReviewID) is already stored.
func ReviewExists(ctx context.Context, db *gorm.DB, sourceID, sourceReviewID string) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Review{}).
		Where("source_id = ? AND source_review_id = ?", sourceID, sourceReviewID).
		Limit(1).
		Count(&n).Error
	return n > 0, err
}

// InsertReview writes r unless its dedupe key already exists. It reports
// whether a row was written; false means another writer got there first.
// Associations are not saved.
func InsertReview(ctx context.Context, db *gorm.DB, r *domain.Review) (bool, error) {
	res := db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "source_id"}, {Name: "source_review_id"}},
			DoNothing: true,
		}).
		Create(r)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// CountReviews returns the number of reviews matching f.
func CountReviews(ctx context.Context, db *gorm.DB, f ReviewFilter) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Model(&domain.Review{}).Scopes(f.Scope).Count(&total).Error
	return total, err
}

// ListReviewsPage returns reviews matching f, newest published first, with
// their topic assignments preloaded.
func ListReviewsPage(ctx context.Context, db *gorm.DB, f ReviewFilter, offset, limit int) ([]domain.Review, error) {
	out := []domain.Review{}
	err := db.WithContext(ctx).
		Model(&domain.Review{}).
		Scopes(f.Scope).
		Preload("Topics", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("topic_confidence DESC, topic_label ASC")
		}).
		Order("published_at DESC, id ASC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// SampleBodies returns up to limit review bodies carrying topicLabel, newest
// first, among the reviews matching f.
func SampleBodies(ctx context.Context, db *gorm.DB, f ReviewFilter, topicLabel string, limit int) ([]string, error) {
	out := []string{}
	err := db.WithContext(ctx).
		Model(&domain.Review{}).
		Scopes(f.Scope).
		Joins("JOIN review_topics ON review_topics.review_id = reviews.id").
		Where("review_topics.topic_label = ?", topicLabel).
		Order("reviews.published_at DESC, reviews.id ASC").
		Limit(limit).
		Pluck("reviews.body", &out).Error
	return out, err
}
