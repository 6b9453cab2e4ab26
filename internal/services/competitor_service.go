// Package services – CompetitorService
//
// CompetitorService manages tracked rival products and compares their
// feedback with the operator's own reviews. Names are trimmed and must be
// unique; a duplicate yields ErrDuplicateCompetitor.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tbourn/customer-voice-api/internal/domain"
	"github.com/tbourn/customer-voice-api/internal/insights"
	"github.com/tbourn/customer-voice-api/internal/repo"
	"github.com/tbourn/customer-voice-api/internal/utils"
)

// CompetitorRepo defines the repository contract required by CompetitorService.
type CompetitorRepo interface {
	// CreateCompetitor inserts a competitor; unique violations are returned raw.
	CreateCompetitor(ctx context.Context, db *gorm.DB, name string, url, description *string, tags datatypes.JSON) (*domain.Competitor, error)

	// GetCompetitor fetches one competitor or returns repo.ErrNotFound.
	GetCompetitor(ctx context.Context, db *gorm.DB, id string) (*domain.Competitor, error)

	// CountCompetitors returns the total number of competitors.
	CountCompetitors(ctx context.Context, db *gorm.DB) (int64, error)

	// ListCompetitorsPage returns a page of competitors, newest first.
	ListCompetitorsPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Competitor, error)

	// UpdateCompetitor applies a patch and returns the refreshed row.
	UpdateCompetitor(ctx context.Context, db *gorm.DB, id string, p repo.CompetitorPatch) (*domain.Competitor, error)

	// DeleteCompetitor removes a competitor.
	DeleteCompetitor(ctx context.Context, db *gorm.DB, id string) error
}

// CompetitorInput carries the writable competitor fields. Nil means "not
// supplied"; on update only supplied fields change.
type CompetitorInput struct {
	Name        *string
	URL         *string
	Description *string
	Tags        []string
}

// CompetitorComparison is the body of GET /competitors/{id}/comparison.
type CompetitorComparison struct {
	Competitor *domain.Competitor `json:"competitor"`
	insights.Comparison
}

// CompetitorList is one page of competitors.
type CompetitorList struct {
	Pagination Pagination          `json:"pagination"`
	Items      []domain.Competitor `json:"items"`
}

// CompetitorService provides competitor CRUD and comparison.
type CompetitorService struct {
	DB     *gorm.DB
	Repo   CompetitorRepo
	Engine *insights.Engine
}

// NewCompetitorService constructs a CompetitorService.
func NewCompetitorService(db *gorm.DB, r CompetitorRepo, e *insights.Engine) *CompetitorService {
	if e == nil {
		e = insights.New()
	}
	return &CompetitorService{DB: db, Repo: r, Engine: e}
}

// Create inserts a competitor. The name is required.
func (s *CompetitorService) Create(ctx context.Context, in CompetitorInput) (*domain.Competitor, error) {
	name := ""
	if in.Name != nil {
		name = strings.TrimSpace(*in.Name)
	}
	if name == "" {
		return nil, &ValidationError{
			Message: "Request validation failed.",
			Details: []FieldIssue{{Field: "name", Issue: "is required"}},
		}
	}
	tags, err := encodeTags(in.Tags)
	if err != nil {
		return nil, err
	}
	c, err := s.Repo.CreateCompetitor(ctx, s.DB, name, in.URL, in.Description, tags)
	if err != nil {
		if repo.IsUniqueViolation(err) {
			return nil, ErrDuplicateCompetitor
		}
		return nil, err
	}
	return c, nil
}

// Get returns one competitor.
func (s *CompetitorService) Get(ctx context.Context, id string) (*domain.Competitor, error) {
	c, err := s.Repo.GetCompetitor(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrCompetitorNotFound
		}
		return nil, err
	}
	return c, nil
}

// ListPage returns a page of competitors, newest first.
func (s *CompetitorService) ListPage(ctx context.Context, page utils.Page) (*CompetitorList, error) {
	total, err := s.Repo.CountCompetitors(ctx, s.DB)
	if err != nil {
		return nil, err
	}
	out := &CompetitorList{Pagination: newPagination(page, total), Items: []domain.Competitor{}}
	if total == 0 {
		return out, nil
	}
	items, err := s.Repo.ListCompetitorsPage(ctx, s.DB, page.Offset(), page.Size)
	if err != nil {
		return nil, err
	}
	out.Items = items
	return out, nil
}

// Update applies the supplied fields of in. A blank name is rejected.
func (s *CompetitorService) Update(ctx context.Context, id string, in CompetitorInput) (*domain.Competitor, error) {
	p := repo.CompetitorPatch{URL: in.URL, Description: in.Description}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, &ValidationError{
				Message: "Request validation failed.",
				Details: []FieldIssue{{Field: "name", Issue: "must not be blank"}},
			}
		}
		p.Name = &name
	}
	if in.Tags != nil {
		tags, err := encodeTags(in.Tags)
		if err != nil {
			return nil, err
		}
		p.Tags = tags
	}

	c, err := s.Repo.UpdateCompetitor(ctx, s.DB, id, p)
	switch {
	case errors.Is(err, repo.ErrNotFound):
		return nil, ErrCompetitorNotFound
	case err != nil && repo.IsUniqueViolation(err):
		return nil, ErrDuplicateCompetitor
	}
	return c, err
}

// Delete removes a competitor; its reviews are kept and detached.
func (s *CompetitorService) Delete(ctx context.Context, id string) error {
	if err := s.Repo.DeleteCompetitor(ctx, s.DB, id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrCompetitorNotFound
		}
		return err
	}
	return nil
}

// Compare contrasts the competitor with the operator's own reviews inside
// window (only Start/End are used).
func (s *CompetitorService) Compare(ctx context.Context, id string, window repo.ReviewFilter) (*CompetitorComparison, error) {
	tr := otel.Tracer("services/CompetitorService")
	ctx, span := tr.Start(ctx, "Compare", trace.WithAttributes(attribute.String("competitor.id", id)))
	defer span.End()

	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	cmp, err := s.Engine.CompareCompetitor(ctx, s.DB, id, window)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return &CompetitorComparison{Competitor: c, Comparison: *cmp}, nil
}

// encodeTags trims tags, drops blanks, and renders them as a JSON array.
func encodeTags(tags []string) (datatypes.JSON, error) {
	clean := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			clean = append(clean, t)
		}
	}
	b, err := json.Marshal(clean)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}
