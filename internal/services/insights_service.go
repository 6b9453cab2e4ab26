// Package services – InsightsService
//
// InsightsService serves the analytics view: a paginated page of matching
// reviews plus aggregates (trend, topics, sources) that always cover the full
// filtered set, independent of the page.
package services

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/customer-voice-api/internal/classifier"
	"github.com/tbourn/customer-voice-api/internal/domain"
	"github.com/tbourn/customer-voice-api/internal/insights"
	"github.com/tbourn/customer-voice-api/internal/repo"
	"github.com/tbourn/customer-voice-api/internal/utils"
)

// Page size bounds of the review listing.
const (
	DefaultInsightsPageSize = 25
	MaxInsightsPageSize     = 100
)

// InsightsQuery is a validated filter plus the page to list.
type InsightsQuery struct {
	Filter repo.ReviewFilter
	Page   utils.Page
}

// ReviewView is the API representation of a stored review.
type ReviewView struct {
	ReviewID       string                  `json:"review_id"`
	SourceID       string                  `json:"source_id"`
	CompetitorID   *string                 `json:"competitor_id,omitempty"`
	SourceReviewID string                  `json:"source_review_id"`
	Title          string                  `json:"title"`
	Body           string                  `json:"body"`
	Sentiment      classifier.Sentiment    `json:"sentiment"`
	Topics         []classifier.TopicScore `json:"topics"`
	Rating         *float64                `json:"rating"`
	Language       *string                 `json:"language,omitempty"`
	Location       *string                 `json:"location,omitempty"`
	PublishedAt    time.Time               `json:"published_at"`
	CreatedAt      time.Time               `json:"created_at"`
}

// NewReviewView maps a stored review (with preloaded topics).
func NewReviewView(r domain.Review) ReviewView {
	v := ReviewView{
		ReviewID:       r.ID,
		SourceID:       r.SourceID,
		CompetitorID:   r.CompetitorID,
		SourceReviewID: r.SourceReviewID,
		Body:           r.Body,
		Sentiment:      classifier.Sentiment{Label: r.SentimentLabel, Score: r.SentimentScore},
		Topics:         make([]classifier.TopicScore, 0, len(r.Topics)),
		Rating:         r.Rating,
		Language:       r.Language,
		Location:       r.Location,
		PublishedAt:    r.PublishedAt.UTC(),
		CreatedAt:      r.CreatedAt.UTC(),
	}
	if r.Title != nil {
		v.Title = *r.Title
	}
	for _, t := range r.Topics {
		v.Topics = append(v.Topics, classifier.TopicScore{Label: t.TopicLabel, Confidence: t.TopicConfidence})
	}
	return v
}

// InsightsReport is the body of GET /insights.
type InsightsReport struct {
	Pagination        Pagination                `json:"pagination"`
	SentimentSummary  insights.SentimentSummary `json:"sentiment_summary"`
	SentimentTrend    []insights.TrendPoint     `json:"sentiment_trend"`
	TopicDistribution []insights.TopicStat      `json:"topic_distribution"`
	SourceBreakdown   []insights.SourceStat     `json:"source_breakdown"`
	RecentReviews     []ReviewView              `json:"recent_reviews"`
}

// InsightsService reads the analytics view.
type InsightsService struct {
	DB     *gorm.DB
	Engine *insights.Engine
}

// NewInsightsService returns an InsightsService over db.
func NewInsightsService(db *gorm.DB, e *insights.Engine) *InsightsService {
	if e == nil {
		e = insights.New()
	}
	return &InsightsService{DB: db, Engine: e}
}

// Report lists one page of reviews matching q and the aggregates over all
// of them. Pages past the end yield an empty list.
func (s *InsightsService) Report(ctx context.Context, q InsightsQuery) (*InsightsReport, error) {
	tr := otel.Tracer("services/InsightsService")
	ctx, span := tr.Start(ctx, "Report",
		trace.WithAttributes(
			attribute.Int("page", q.Page.Number),
			attribute.Int("page_size", q.Page.Size),
		),
	)
	defer span.End()

	page := utils.NewPage(q.Page.Number, q.Page.Size, DefaultInsightsPageSize, MaxInsightsPageSize)
	f := q.Filter

	total, err := repo.CountReviews(ctx, s.DB, f)
	if err != nil {
		return nil, err
	}
	rows, err := repo.ListReviewsPage(ctx, s.DB, f, page.Offset(), page.Size)
	if err != nil {
		return nil, err
	}
	summary, err := s.Engine.SentimentSummary(ctx, s.DB, f)
	if err != nil {
		return nil, err
	}
	trend, err := s.Engine.SentimentTrend(ctx, s.DB, f)
	if err != nil {
		return nil, err
	}
	topics, err := s.Engine.TopicDistribution(ctx, s.DB, f)
	if err != nil {
		return nil, err
	}
	sources, err := s.Engine.SourceBreakdown(ctx, s.DB, f)
	if err != nil {
		return nil, err
	}

	recent := make([]ReviewView, 0, len(rows))
	for _, r := range rows {
		recent = append(recent, NewReviewView(r))
	}
	span.SetAttributes(attribute.Int64("total", total))
	return &InsightsReport{
		Pagination:        newPagination(page, total),
		SentimentSummary:  summary,
		SentimentTrend:    trend,
		TopicDistribution: topics,
		SourceBreakdown:   sources,
		RecentReviews:     recent,
	}, nil
}

// Stats returns the watermark of the data behind a report for f, used to
// derive cache validators.
func (s *InsightsService) Stats(ctx context.Context, f repo.ReviewFilter) (repo.Watermark, error) {
	return repo.InsightsWatermark(ctx, s.DB, f)
}
