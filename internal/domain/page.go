package domain

// Trip listing page bounds. The OpenAPI document advertises the same values.
const (
	DefaultTripPageLimit = 20
	MaxTripPageLimit     = 100
)

// PaginationParams selects one page of the trip list, newest trip first.
// Page counts from 1.
type PaginationParams struct {
	Page  int
	Limit int
}

// NewPaginationParams reads the optional page and limit query values.
// Missing or non-positive values fall back to page 1 and DefaultTripPageLimit;
// a larger limit is clamped to MaxTripPageLimit.
func NewPaginationParams(page, limit *int) PaginationParams {
	p := PaginationParams{Page: 1, Limit: DefaultTripPageLimit}
	if page != nil && *page > 0 {
		p.Page = *page
	}
	if limit != nil && *limit > 0 {
		p.Limit = min(*limit, MaxTripPageLimit)
	}
	return p
}

// Offset is the number of trips skipped before this page.
func (p PaginationParams) Offset() int {
	return (p.Page - 1) * p.Limit
}
