package pagination

import (
	"net/http"
	"strconv"
)

const (
	defaultPerPage = 20
	maxPerPage     = 100
)

// Params is a page request. Page is 1-based.
type Params struct {
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
}

// Offset is the number of rows to skip.
func (p Params) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// FromRequest reads ?page= and ?per_page=. Missing or invalid values fall
// back to page 1 and 20 per page; per_page is capped at 100.
func FromRequest(r *http.Request) Params {
	p := Params{Page: 1, PerPage: defaultPerPage}
	q := r.URL.Query()

	if v, err := strconv.Atoi(q.Get("page")); err == nil && v > 0 {
		p.Page = v
	}
	if v, err := strconv.Atoi(q.Get("per_page")); err == nil && v > 0 {
		p.PerPage = min(v, maxPerPage)
	}
	return p
}

// Result is a page of T with totals.
type Result[T any] struct {
	Data       []T  `json:"data"`
	TotalCount int  `json:"total_count"`
	Page       int  `json:"page"`
	PerPage    int  `json:"per_page"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
}

// NewResult builds a Result. A nil data slice is returned as empty.
func NewResult[T any](data []T, totalCount int, params Params) Result[T] {
	totalPages := (totalCount + params.PerPage - 1) / params.PerPage
	if data == nil {
		data = []T{}
	}
	return Result[T]{
		Data:       data,
		TotalCount: totalCount,
		Page:       params.Page,
		PerPage:    params.PerPage,
		TotalPages: totalPages,
		HasNext:    params.Page < totalPages,
	}
}
