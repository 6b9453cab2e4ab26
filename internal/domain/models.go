// Package domain defines the persistence models for sources, competitors,
// reviews, topics, and digests. These types are mapped with GORM and are
// shared by the repository, aggregation, and service layers.
package domain

import (
	"time"

	"gorm.io/datatypes"
)

// SentimentLabel is the discrete polarity attached to a review.
type SentimentLabel string

const (
	SentimentPositive SentimentLabel = "Positive"
	SentimentNeutral  SentimentLabel = "Neutral"
	SentimentNegative SentimentLabel = "Negative"
)

// Valid reports whether l is one of the three supported labels.
func (l SentimentLabel) Valid() bool {
	switch l {
	case SentimentPositive, SentimentNeutral, SentimentNegative:
		return true
	}
	return false
}

// DefaultSourceName is used when a batch creates a source without metadata.
const DefaultSourceName = "Unnamed Source"

// Source is a named origin of reviews (app store, survey tool, ...).
// The (platform, external_id) pair is unique when both are present.
type Source struct {
	ID         string    `json:"source_id"   gorm:"type:char(36);primaryKey"`
	Name       string    `json:"name"        gorm:"type:varchar(255);not null"`
	Platform   *string   `json:"platform"    gorm:"type:varchar(64);uniqueIndex:ux_sources_platform_external,priority:1"`
	ExternalID *string   `json:"external_id" gorm:"type:varchar(255);uniqueIndex:ux_sources_platform_external,priority:2"`
	URL        *string   `json:"url"         gorm:"type:text"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName returns the database table name for Source.
func (Source) TableName() string { return "sources" }

// Competitor is a tracked rival product. Reviews that reference a
// competitor are competitor feedback; reviews without one describe the
// operator's own product.
//
// Tags is stored as a JSON array of strings.
type Competitor struct {
	ID          string         `json:"competitor_id" gorm:"type:char(36);primaryKey"`
	Name        string         `json:"name"          gorm:"type:varchar(255);not null;uniqueIndex:ux_competitors_name"`
	URL         *string        `json:"url"           gorm:"type:text"`
	Description *string        `json:"description"   gorm:"type:text"`
	Tags        datatypes.JSON `json:"tags"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// TableName returns the database table name for Competitor.
func (Competitor) TableName() string { return "competitors" }

// Review is a single piece of customer feedback. Rows are created by
// ingestion only and never mutated afterwards.
//
// Fields:
//   - SourceID + SourceReviewID: dedupe key (unique index).
//   - CompetitorID: nil for the operator's own product.
//   - Rating: optional star rating in [0, 5].
//   - SentimentLabel / SentimentScore: classifier output for title+body.
//   - PublishedAt: when the review was published at its origin (UTC).
//   - Topics: per-review topic assignments.
type Review struct {
	ID             string         `json:"review_id"        gorm:"type:char(36);primaryKey"`
	SourceID       string         `json:"source_id"        gorm:"type:char(36);not null;index:idx_reviews_source;uniqueIndex:ux_reviews_source_review,priority:1"`
	CompetitorID   *string        `json:"competitor_id"    gorm:"type:char(36);index:idx_reviews_competitor"`
	SourceReviewID string         `json:"source_review_id" gorm:"type:varchar(255);not null;uniqueIndex:ux_reviews_source_review,priority:2"`
	Title          *string        `json:"title"            gorm:"type:text"`
	Body           string         `json:"body"             gorm:"type:text;not null"`
	Rating         *float64       `json:"rating"           gorm:"check:rating IS NULL OR (rating >= 0 AND rating <= 5)"`
	Language       *string        `json:"language"         gorm:"type:varchar(16)"`
	Location       *string        `json:"location"         gorm:"type:varchar(255)"`
	SentimentLabel SentimentLabel `json:"sentiment_label"  gorm:"type:varchar(16);not null;index:idx_reviews_sentiment_label;check:sentiment_label IN ('Positive','Neutral','Negative')"`
	SentimentScore float64        `json:"sentiment_score"  gorm:"not null"`
	PublishedAt    time.Time      `json:"published_at"     gorm:"not null;index:idx_reviews_published_at"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`

	Source     Source        `json:"-" gorm:"foreignKey:SourceID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Competitor *Competitor   `json:"-" gorm:"foreignKey:CompetitorID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL"`
	Topics     []ReviewTopic `json:"topics,omitempty" gorm:"foreignKey:ReviewID;references:ID"`
}

// TableName returns the database table name for Review.
func (Review) TableName() string { return "reviews" }

// Topic is a canonical topic label, unique across the store.
type Topic struct {
	ID          string    `json:"topic_id"    gorm:"type:char(36);primaryKey"`
	TopicLabel  string    `json:"topic_label" gorm:"type:varchar(255);not null;uniqueIndex:ux_topics_label"`
	Description *string   `json:"description" gorm:"type:text"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName returns the database table name for Topic.
func (Topic) TableName() string { return "topics" }

// ReviewTopic joins a review to a topic with the classifier confidence.
// A review carries a given topic label at most once.
type ReviewTopic struct {
	ReviewID        string    `json:"-"                gorm:"type:char(36);primaryKey;uniqueIndex:ux_review_topic_label,priority:1"`
	TopicID         string    `json:"-"                gorm:"type:char(36);primaryKey"`
	TopicLabel      string    `json:"topic_label"      gorm:"type:varchar(255);not null;index:idx_review_topics_label;uniqueIndex:ux_review_topic_label,priority:2"`
	TopicConfidence float64   `json:"topic_confidence" gorm:"not null;check:topic_confidence >= 0 AND topic_confidence <= 1"`
	CreatedAt       time.Time `json:"-"`

	Review Review `json:"-" gorm:"foreignKey:ReviewID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Topic  Topic  `json:"-" gorm:"foreignKey:TopicID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for ReviewTopic.
func (ReviewTopic) TableName() string { return "review_topics" }

// Digest is an append-only snapshot of sentiment, topics, and competitor
// standing over a time window. Snapshot columns hold JSON documents.
type Digest struct {
	ID                 string         `json:"digest_id"           gorm:"type:char(36);primaryKey"`
	TimeframeStart     time.Time      `json:"timeframe_start"     gorm:"not null"`
	TimeframeEnd       time.Time      `json:"timeframe_end"       gorm:"not null"`
	GeneratedAt        time.Time      `json:"generated_at"        gorm:"not null;index:idx_digests_generated_at"`
	Summary            datatypes.JSON `json:"summary"             gorm:"not null"`
	SentimentSnapshot  datatypes.JSON `json:"sentiment_snapshot"  gorm:"not null"`
	TopicsSnapshot     datatypes.JSON `json:"topics_snapshot"     gorm:"not null"`
	CompetitorSnapshot datatypes.JSON `json:"competitor_snapshot"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

// TableName returns the database table name for Digest.
func (Digest) TableName() string { return "digests" }
