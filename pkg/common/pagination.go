package common

import (
	"net/http"
	"strconv"

	"github.com/kondrei/TalkieMartin-BE/pkg/errors"
)

// MaxPerPage bounds an explicit page size.
const MaxPerPage = 100

// MaxCurrentPage keeps the offset of any page far from integer overflow
const MaxCurrentPage = 1_000_000

// PaginationParams represents pagination parameters. PerPage of zero means
// no page size was requested and the whole collection is one page.
type PaginationParams struct {
	CurrentPage int `json:"currentPage" validate:"min=1,max=1000000"`
	PerPage     int `json:"perPage,omitempty" validate:"min=0,max=100"`
}

// DefaultPaginationParams returns default pagination parameters
func DefaultPaginationParams() PaginationParams {
	return PaginationParams{CurrentPage: 1}
}

// ExtractPaginationParams extracts currentPage and perPage from the query
// string. Malformed or out of range values are rejected rather than clamped.
func ExtractPaginationParams(r *http.Request) (PaginationParams, error) {
	params := DefaultPaginationParams()
	query := r.URL.Query()

	if raw := query.Get("currentPage"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 || page > MaxCurrentPage {
			return params, errors.NewValidationError("currentPage must be an integer between 1 and 1000000").
				WithDetail("currentPage", raw)
		}
		params.CurrentPage = page
	}

	if raw := query.Get("perPage"); raw != "" {
		perPage, err := strconv.Atoi(raw)
		if err != nil || perPage < 1 || perPage > MaxPerPage {
			return params, errors.NewValidationError("perPage must be an integer between 1 and 100").
				WithDetail("perPage", raw)
		}
		params.PerPage = perPage
	}

	return params.Normalize(), nil
}

// Normalize forces CurrentPage to 1 when no page size is set, since an
// unbounded listing has exactly one page.
func (p PaginationParams) Normalize() PaginationParams {
	if p.CurrentPage < 1 || p.PerPage <= 0 {
		p.CurrentPage = 1
	}
	if p.PerPage < 0 {
		p.PerPage = 0
	}
	return p
}

// Bounded reports whether a page size was requested
func (p PaginationParams) Bounded() bool {
	return p.PerPage > 0
}

// CalculateOffset calculates the number of records to skip
func (p PaginationParams) CalculateOffset() int {
	if !p.Bounded() || p.CurrentPage < 1 {
		return 0
	}
	return (p.CurrentPage - 1) * p.PerPage
}

// Limit returns the page size, 0 for unbounded
func (p PaginationParams) Limit() int {
	if !p.Bounded() {
		return 0
	}
	return p.PerPage
}

// CalculateTotalPages calculates total number of pages. Without a page size
// a non-empty collection is reported as a single page.
func CalculateTotalPages(total, perPage int) int {
	if total <= 0 {
		return 0
	}
	if perPage <= 0 {
		return 1
	}
	pages := total / perPage
	if total%perPage > 0 {
		pages++
	}
	return pages
}

// BuildPaginationMeta builds pagination metadata
func BuildPaginationMeta(params PaginationParams, total int) *PaginationInfo {
	params = params.Normalize()
	totalPages := CalculateTotalPages(total, params.PerPage)

	return &PaginationInfo{
		CurrentPage: params.CurrentPage,
		PerPage:     params.PerPage,
		Total:       total,
		Pages:       totalPages,
		HasNext:     params.CurrentPage < totalPages,
		HasPrev:     params.CurrentPage > 1,
	}
}
