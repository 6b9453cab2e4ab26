// Package services – IngestService
//
// This file implements batch ingestion of reviews. A batch targets one
// source; each review is deduplicated on (source_id, source_review_id),
// cleaned, classified, and stored together with its topic assignments. The
// whole batch runs in one transaction: a storage failure rolls everything
// back and surfaces as a *StorageError.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/customer-voice-api/internal/classifier"
	"github.com/tbourn/customer-voice-api/internal/domain"
	"github.com/tbourn/customer-voice-api/internal/observability"
	"github.com/tbourn/customer-voice-api/internal/repo"
	"github.com/tbourn/customer-voice-api/internal/utils"
)

// IngestAccepted is the message returned with every successful batch.
const IngestAccepted = "Reviews accepted for processing."

// Timestamp is an ISO-8601 instant that also accepts values without a zone
// (read as UTC).
type Timestamp struct{ time.Time }

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		return nil
	}
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return utils.ErrBadTimestamp
	}
	v, err := utils.ParseTimestamp(s[1 : len(s)-1])
	if err != nil {
		return err
	}
	t.Time = v
	return nil
}

// SourceMetadata describes the source a batch belongs to.
type SourceMetadata struct {
	ExternalID *string `json:"external_id" example:"com.example.app"`
	Name       *string `json:"name" example:"App Store"`
	Platform   *string `json:"platform" example:"ios"`
	URL        *string `json:"url" example:"https://apps.apple.com/app/id123"`
}

// IngestItem is one review in a batch.
type IngestItem struct {
	SourceReviewID string     `json:"source_review_id" example:"rev-1001"`
	Title          *string    `json:"title" example:"Great dashboards"`
	Body           string     `json:"body" example:"Love the sentiment chart and fast insights!"`
	Rating         *float64   `json:"rating" example:"4.5"`
	AuthorName     *string    `json:"author_name,omitempty"`
	Language       *string    `json:"language" example:"en"`
	Location       *string    `json:"location" example:"US"`
	PublishedAt    *Timestamp `json:"published_at" swaggertype:"string" format:"date-time" example:"2024-05-01T10:30:00Z"`
}

// IngestBatch is the body of POST /ingest. CompetitorID marks every review
// of the batch as feedback about that competitor.
type IngestBatch struct {
	SourceID                string          `json:"source_id" format:"uuid" example:"2f1c7c52-4c0e-4a77-9f77-2c8f1f3a9d10"`
	CompetitorID            *string         `json:"competitor_id,omitempty" format:"uuid"`
	OverwriteSourceMetadata bool            `json:"overwrite_source_metadata"`
	SourceMetadata          *SourceMetadata `json:"source_metadata,omitempty"`
	Reviews                 []IngestItem    `json:"reviews"`
}

// IngestResult summarizes a committed batch.
type IngestResult struct {
	IngestedCount  int      `json:"ingested_count" example:"1"`
	DuplicateCount int      `json:"duplicate_count" example:"0"`
	ReviewIDs      []string `json:"review_ids"`
	Message        string   `json:"message" example:"Reviews accepted for processing."`
}

// IngestService validates, classifies, and stores review batches.
type IngestService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Classifier tags each review; classifier.Default() when nil.
	Classifier classifier.Classifier
}

// NewIngestService returns an IngestService using c, or the default
// keyword classifier when c is nil.
func NewIngestService(db *gorm.DB, c classifier.Classifier) *IngestService {
	if c == nil {
		c = classifier.Default()
	}
	return &IngestService{DB: db, Classifier: c}
}

// Validate reports every field-level problem of b at once.
func (s *IngestService) Validate(b *IngestBatch) error {
	verr := &ValidationError{Message: "Request validation failed."}
	if _, err := uuid.Parse(b.SourceID); err != nil {
		verr.add("source_id", "must be a UUID")
	}
	if b.CompetitorID != nil {
		if _, err := uuid.Parse(*b.CompetitorID); err != nil {
			verr.add("competitor_id", "must be a UUID")
		}
	}
	if len(b.Reviews) == 0 {
		verr.add("reviews", "must contain at least one review")
	}
	for i, r := range b.Reviews {
		field := func(name string) string { return fmt.Sprintf("reviews.%d.%s", i, name) }
		if strings.TrimSpace(r.SourceReviewID) == "" {
			verr.add(field("source_review_id"), "is required")
		}
		// Bodies are stored as plain text, so markup alone is empty.
		if strings.TrimSpace(classifier.PlainText(r.Body)) == "" {
			verr.add(field("body"), "body is required")
		}
		if r.Rating != nil && (*r.Rating < 0 || *r.Rating > 5) {
			verr.add(field("rating"), "must be between 0 and 5")
		}
		if r.PublishedAt == nil || r.PublishedAt.IsZero() {
			verr.add(field("published_at"), "is required")
		}
	}
	return verr.orNil()
}

// Ingest stores b atomically. Reviews whose (source_id, source_review_id)
// already exists, including repeats within b, are counted as duplicates.
func (s *IngestService) Ingest(ctx context.Context, b *IngestBatch) (*IngestResult, error) {
	tr := otel.Tracer("services/IngestService")
	ctx, span := tr.Start(ctx, "Ingest",
		trace.WithAttributes(
			attribute.String("source.id", b.SourceID),
			attribute.Int("batch.size", len(b.Reviews)),
		),
	)
	defer span.End()

	if err := s.Validate(b); err != nil {
		return nil, err
	}
	cls := s.Classifier
	if cls == nil {
		cls = classifier.Default()
	}

	res := &IngestResult{ReviewIDs: []string{}, Message: IngestAccepted}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.resolveSource(ctx, tx, b); err != nil {
			return err
		}
		if b.CompetitorID != nil {
			if _, err := repo.GetCompetitor(ctx, tx, *b.CompetitorID); err != nil {
				if errors.Is(err, repo.ErrNotFound) {
					return &ValidationError{
						Message: "Request validation failed.",
						Details: []FieldIssue{{Field: "competitor_id", Issue: "unknown competitor"}},
					}
				}
				return &StorageError{Op: "load competitor", Err: err}
			}
		}

		for _, item := range b.Reviews {
			exists, err := repo.ReviewExists(ctx, tx, b.SourceID, item.SourceReviewID)
			if err != nil {
				return &StorageError{Op: "check duplicate", Err: err}
			}
			if exists {
				res.DuplicateCount++
				continue
			}

			id, inserted, err := s.insert(ctx, tx, cls, b, item)
			if err != nil {
				return err
			}
			if !inserted {
				res.DuplicateCount++
				continue
			}
			res.ReviewIDs = append(res.ReviewIDs, id)
		}
		return nil
	})
	if err != nil {
		var serr *StorageError
		if errors.As(err, &serr) {
			observability.IngestBatchesFailed.Inc()
			span.RecordError(err)
		}
		return nil, err
	}

	res.IngestedCount = len(res.ReviewIDs)
	observability.ReviewsIngested.Add(float64(res.IngestedCount))
	observability.ReviewsDuplicate.Add(float64(res.DuplicateCount))
	span.SetAttributes(
		attribute.Int("ingested", res.IngestedCount),
		attribute.Int("duplicates", res.DuplicateCount),
	)
	return res, nil
}

// resolveSource creates the batch source on first use, or overwrites its
// metadata when asked to.
func (s *IngestService) resolveSource(ctx context.Context, tx *gorm.DB, b *IngestBatch) error {
	meta := repo.SourceMetadata{}
	if m := b.SourceMetadata; m != nil {
		meta = repo.SourceMetadata{Name: m.Name, Platform: m.Platform, ExternalID: m.ExternalID, URL: m.URL}
	}

	_, err := repo.GetSource(ctx, tx, b.SourceID)
	switch {
	case errors.Is(err, repo.ErrNotFound):
		_, err = repo.CreateSource(ctx, tx, b.SourceID, meta)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repo.ErrDuplicate) {
			return sourceError("create source", err)
		}
		// A concurrent batch created the same source first; use it.
		if _, err := repo.GetSource(ctx, tx, b.SourceID); err != nil {
			return &StorageError{Op: "load source", Err: err}
		}
	case err != nil:
		return &StorageError{Op: "load source", Err: err}
	}

	if b.OverwriteSourceMetadata && b.SourceMetadata != nil {
		if err := repo.UpdateSourceMetadata(ctx, tx, b.SourceID, meta); err != nil {
			return sourceError("update source", err)
		}
	}
	return nil
}

func sourceError(op string, err error) error {
	if repo.IsUniqueViolation(err) {
		return ErrSourceConflict
	}
	return &StorageError{Op: op, Err: err}
}

// insert classifies item and writes it with its topics. inserted is false
// when a concurrent batch stored the same dedupe key first.
func (s *IngestService) insert(ctx context.Context, tx *gorm.DB, cls classifier.Classifier, b *IngestBatch, item IngestItem) (id string, inserted bool, err error) {
	body := classifier.PlainText(item.Body)
	title := ""
	if item.Title != nil {
		title = *item.Title
	}
	sent := cls.Score(title + "\n" + body)
	topics := cls.Topics(body)

	r := &domain.Review{
		ID:             uuid.NewString(),
		SourceID:       b.SourceID,
		CompetitorID:   b.CompetitorID,
		SourceReviewID: item.SourceReviewID,
		Title:          item.Title,
		Body:           body,
		Rating:         item.Rating,
		Language:       item.Language,
		Location:       item.Location,
		SentimentLabel: sent.Label,
		SentimentScore: sent.Score,
		PublishedAt:    item.PublishedAt.UTC(),
	}
	ok, err := repo.InsertReview(ctx, tx, r)
	if err != nil {
		return "", false, &StorageError{Op: "insert review", Err: err}
	}
	if !ok {
		return "", false, nil
	}

	for _, t := range topics {
		topic, err := repo.UpsertTopic(ctx, tx, t.Label)
		if err != nil {
			return "", false, &StorageError{Op: "upsert topic", Err: err}
		}
		if err := repo.InsertReviewTopic(ctx, tx, r.ID, topic, t.Confidence); err != nil {
			return "", false, &StorageError{Op: "insert review topic", Err: err}
		}
	}
	return r.ID, true, nil
}
