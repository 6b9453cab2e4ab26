// Package services – DigestService
//
// DigestService runs the digest assembler for the HTTP endpoint and reads
// the persisted history back.
package services

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"gorm.io/gorm"

	"github.com/tbourn/customer-voice-api/internal/digest"
	"github.com/tbourn/customer-voice-api/internal/observability"
	"github.com/tbourn/customer-voice-api/internal/repo"
	"github.com/tbourn/customer-voice-api/internal/utils"
)

// DigestList is one page of persisted digests, newest first.
type DigestList struct {
	Pagination Pagination        `json:"pagination"`
	Items      []*digest.Payload `json:"items"`
}

// DigestService wraps digest.Assembler.
type DigestService struct {
	DB        *gorm.DB
	Assembler *digest.Assembler
	// Trigger labels the digests_generated_total counter ("http", "cli").
	Trigger string
}

// Run assembles and persists a digest.
func (s *DigestService) Run(ctx context.Context, req digest.Request) (*digest.Payload, error) {
	ctx, span := otel.Tracer("services/DigestService").Start(ctx, "Run")
	defer span.End()

	p, err := s.Assembler.Run(ctx, s.DB, req)
	if err != nil {
		if !errors.Is(err, digest.ErrInvalidTimeframe) {
			span.RecordError(err)
		}
		return nil, err
	}
	observability.DigestsGenerated.WithLabelValues(s.trigger(), "true").Inc()
	return p, nil
}

// Preview assembles a digest without storing it.
func (s *DigestService) Preview(ctx context.Context, req digest.Request) (*digest.Payload, error) {
	tf, err := s.Assembler.Window(req.Start, req.End)
	if err != nil {
		return nil, err
	}
	p, err := s.Assembler.Assemble(ctx, s.DB, tf, req.IncludeCompetitors)
	if err != nil {
		return nil, err
	}
	observability.DigestsGenerated.WithLabelValues(s.trigger(), "false").Inc()
	return p, nil
}

// Get decodes one persisted digest.
func (s *DigestService) Get(ctx context.Context, id string) (*digest.Payload, error) {
	row, err := repo.GetDigest(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrDigestNotFound
		}
		return nil, err
	}
	return digest.FromRow(row)
}

// ListPage returns decoded digests, newest first.
func (s *DigestService) ListPage(ctx context.Context, page utils.Page) (*DigestList, error) {
	total, err := repo.CountDigests(ctx, s.DB)
	if err != nil {
		return nil, err
	}
	out := &DigestList{Pagination: newPagination(page, total), Items: []*digest.Payload{}}
	if total == 0 {
		return out, nil
	}
	rows, err := repo.ListDigestsPage(ctx, s.DB, page.Offset(), page.Size)
	if err != nil {
		return nil, err
	}
	for i := range rows {
		p, err := digest.FromRow(&rows[i])
		if err != nil {
			return nil, err
		}
		out.Items = append(out.Items, p)
	}
	return out, nil
}

func (s *DigestService) trigger() string {
	if s.Trigger == "" {
		return "http"
	}
	return s.Trigger
}
