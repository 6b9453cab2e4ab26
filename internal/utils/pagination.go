package utils

// Page is a 1-based page request.
type Page struct {
	Number int
	Size   int
}

// NewPage bounds number to >= 1 and size to [1, limit], substituting def for
// a non-positive size. A non-positive limit leaves size unbounded.
func NewPage(number, size, def, limit int) Page {
	number = max(number, 1)
	if size <= 0 {
		size = def
	}
	if limit > 0 {
		size = min(size, limit)
	}
	return Page{Number: number, Size: max(size, 1)}
}

// Offset is the number of rows skipped before this page.
func (p Page) Offset() int { return (p.Number - 1) * p.Size }

// TotalPages is ceil(total / size); zero when total is zero.
func (p Page) TotalPages(total int64) int {
	if p.Size <= 0 || total <= 0 {
		return 0
	}
	return int((total + int64(p.Size) - 1) / int64(p.Size))
}

// HasNext reports whether rows remain after this page.
func (p Page) HasNext(total int64) bool {
	return int64(p.Offset()+p.Size) < total
}
