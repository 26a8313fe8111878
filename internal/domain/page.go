package domain

import "math"

const (
	defaultPageLimit = 20
	maxPageLimit     = 100

	// MaxPage keeps (Page-1)*Limit inside an int32 for every allowed limit.
	MaxPage = math.MaxInt32 / maxPageLimit
)

// PaginationParams carries page/limit values from the HTTP layer to the repo layer.
// Page is 1-indexed.
type PaginationParams struct {
	Page  int
	Limit int
}

// NewPaginationParams builds a PaginationParams from optional query params.
// Nil or non-positive values fall back to page=1, limit=20. Limit is capped at
// 100 and page at MaxPage.
func NewPaginationParams(page, limit *int) PaginationParams {
	p := PaginationParams{Page: 1, Limit: defaultPageLimit}
	if page != nil && *page >= 1 {
		p.Page = min(*page, MaxPage)
	}
	if limit != nil && *limit >= 1 {
		p.Limit = min(*limit, maxPageLimit)
	}
	return p
}

// Offset returns the zero-based row offset for a SQL OFFSET clause.
func (p PaginationParams) Offset() int {
	page := min(max(p.Page, 1), MaxPage)
	limit := min(max(p.Limit, 0), maxPageLimit)
	return (page - 1) * limit
}
