package services

import "github.com/tbourn/customer-voice-api/internal/utils"

// Pagination carries page metadata for list responses.
type Pagination struct {
	Page       int   `json:"page" example:"1"`
	PageSize   int   `json:"page_size" example:"25"`
	TotalItems int64 `json:"total_items" example:"42"`
	TotalPages int   `json:"total_pages" example:"2"`
	HasNext    bool  `json:"has_next" example:"true"`
}

func newPagination(p utils.Page, total int64) Pagination {
	return Pagination{
		Page:       p.Number,
		PageSize:   p.Size,
		TotalItems: total,
		TotalPages: p.TotalPages(total),
		HasNext:    p.HasNext(total),
	}
}
