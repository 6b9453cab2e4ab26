package services

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/customer-voice-api/internal/domain"
	"github.com/tbourn/customer-voice-api/internal/repo"
	"github.com/tbourn/customer-voice-api/internal/utils"
)

// SourceList is one page of review sources.
type SourceList struct {
	Pagination Pagination      `json:"pagination"`
	Items      []domain.Source `json:"items"`
}

// SourceService lists the sources created by ingestion.
type SourceService struct {
	DB *gorm.DB
}

// ListPage returns a page of sources ordered by name.
func (s *SourceService) ListPage(ctx context.Context, page utils.Page) (*SourceList, error) {
	total, err := repo.CountSources(ctx, s.DB)
	if err != nil {
		return nil, err
	}
	out := &SourceList{Pagination: newPagination(page, total), Items: []domain.Source{}}
	if total == 0 {
		return out, nil
	}
	items, err := repo.ListSourcesPage(ctx, s.DB, page.Offset(), page.Size)
	if err != nil {
		return nil, err
	}
	out.Items = items
	return out, nil
}
