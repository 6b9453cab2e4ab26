package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/customer-voice-api/internal/domain"
)

// UpsertTopic returns the topic with the given label, creating it on first
// use. Concurrent creators converge on the same row.
func UpsertTopic(ctx context.Context, db *gorm.DB, label string) (*domain.Topic, error) {
	var t domain.Topic
	err := db.WithContext(ctx).Where("topic_label = ?", label).First(&t).Error
	if err == nil {
		return &t, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	t = domain.Topic{ID: uuid.NewString(), TopicLabel: label, CreatedAt: now, UpdatedAt: now}
	if err := db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "topic_label"}}, DoNothing: true}).
		Create(&t).Error; err != nil {
		return nil, err
	}
	// Re-read: a concurrent insert may own the row.
	if err := db.WithContext(ctx).Where("topic_label = ?", label).First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

// InsertReviewTopic links a review to a topic.
func InsertReviewTopic(ctx context.Context, db *gorm.DB, reviewID string, topic *domain.Topic, confidence float64) error {
	rt := &domain.ReviewTopic{
		ReviewID:        reviewID,
		TopicID:         topic.ID,
		TopicLabel:      topic.TopicLabel,
		TopicConfidence: confidence,
		CreatedAt:       time.Now().UTC(),
	}
	return db.WithContext(ctx).Omit(clause.Associations).Create(rt).Error
}
