// Package handlers exposes the REST endpoints of the feedback API:
//   - POST   /ingest                        (review batches, idempotent replays)
//   - POST   /analyze                       (ad-hoc classification)
//   - GET    /insights                      (paginated reviews + aggregates, ETag)
//   - GET    /sources                       (paginated sources)
//   - CRUD   /competitors, GET /competitors/{id}/comparison
//   - POST   /digest/run, GET /digests, GET /digests/{id}
//
// Handlers are transport-thin: they bind and validate input, call application
// services, and translate results into HTTP responses (including conditional
// and replayed responses).
package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/customer-voice-api/internal/classifier"
	"github.com/tbourn/customer-voice-api/internal/digest"
	"github.com/tbourn/customer-voice-api/internal/domain"
	"github.com/tbourn/customer-voice-api/internal/repo"
	"github.com/tbourn/customer-voice-api/internal/services"
	"github.com/tbourn/customer-voice-api/internal/utils"
)

//
// Service contracts (context-aware)
//

// IngestService validates and stores review batches.
type IngestService interface {
	Validate(b *services.IngestBatch) error
	Ingest(ctx context.Context, b *services.IngestBatch) (*services.IngestResult, error)
}

// InsightsService serves the analytics view.
type InsightsService interface {
	Report(ctx context.Context, q services.InsightsQuery) (*services.InsightsReport, error)
	// Stats returns the matching count and newest created_at for ETags.
	Stats(ctx context.Context, f repo.ReviewFilter) (repo.Watermark, error)
}

// SourceService lists review sources.
type SourceService interface {
	ListPage(ctx context.Context, page utils.Page) (*services.SourceList, error)
}

// CompetitorService manages competitors and comparisons.
type CompetitorService interface {
	Create(ctx context.Context, in services.CompetitorInput) (*domain.Competitor, error)
	Get(ctx context.Context, id string) (*domain.Competitor, error)
	ListPage(ctx context.Context, page utils.Page) (*services.CompetitorList, error)
	Update(ctx context.Context, id string, in services.CompetitorInput) (*domain.Competitor, error)
	Delete(ctx context.Context, id string) error
	Compare(ctx context.Context, id string, window repo.ReviewFilter) (*services.CompetitorComparison, error)
}

// DigestService runs and reads digests.
type DigestService interface {
	Run(ctx context.Context, req digest.Request) (*digest.Payload, error)
	Get(ctx context.Context, id string) (*digest.Payload, error)
	ListPage(ctx context.Context, page utils.Page) (*services.DigestList, error)
}

// IdempotencyStore persists responses of idempotent writes. Lookup returns
// repo.ErrNotFound when nothing unexpired is stored for (scope, key).
type IdempotencyStore interface {
	Lookup(ctx context.Context, scope, key string, now time.Time) (*domain.Idempotency, error)
	Save(ctx context.Context, scope, key string, status int, body []byte) error
}

//
// Handler wiring
//

// Deps lists the collaborators of Handlers. Idempotency may be nil, which
// disables replays.
type Deps struct {
	Ingest      IngestService
	Analyzer    classifier.Classifier
	Insights    InsightsService
	Sources     SourceService
	Competitors CompetitorService
	Digests     DigestService
	Idempotency IdempotencyStore
}

// Handlers groups the HTTP endpoints. It depends on abstract service
// interfaces to keep transport concerns separate from business logic.
type Handlers struct {
	ingest      IngestService
	analyzer    classifier.Classifier
	insights    InsightsService
	sources     SourceService
	competitors CompetitorService
	digests     DigestService
	idem        IdempotencyStore
}

// New constructs Handlers from d. A nil Analyzer uses classifier.Default().
func New(d Deps) *Handlers {
	if d.Analyzer == nil {
		d.Analyzer = classifier.Default()
	}
	return &Handlers{
		ingest:      d.Ingest,
		analyzer:    d.Analyzer,
		insights:    d.Insights,
		sources:     d.Sources,
		competitors: d.Competitors,
		digests:     d.Digests,
		idem:        d.Idempotency,
	}
}

//
// Helpers
//

// ListParams are the pagination query parameters of list endpoints.
type ListParams struct {
	Page     *int `form:"page" binding:"omitempty,min=1"`
	PageSize *int `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// page resolves p against the given default size.
func (p ListParams) page(defaultSize int) utils.Page {
	n, size := 1, defaultSize
	if p.Page != nil {
		n = *p.Page
	}
	if p.PageSize != nil {
		size = *p.PageSize
	}
	return utils.NewPage(n, size, defaultSize, services.MaxInsightsPageSize)
}

// bindList binds and validates pagination; it writes the error response and
// returns false on failure.
func bindList(c *gin.Context, defaultSize int) (utils.Page, bool) {
	var p ListParams
	if err := c.ShouldBindQuery(&p); err != nil {
		failBind(c, err)
		return utils.Page{}, false
	}
	return p.page(defaultSize), true
}
