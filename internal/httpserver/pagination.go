package httpserver

import (
	"fmt"
	"net/http"
	"strconv"
)

// DefaultListLimit and MaxListLimit bound the lesson list endpoint
// (spec: limit≤200, offset≥0).
const (
	DefaultListLimit = 25
	MaxListLimit     = 200
)

// OffsetParams holds parsed offset-pagination query parameters.
type OffsetParams struct {
	Limit  int
	Offset int
}

// ParseOffsetParams extracts limit/offset query parameters from the request,
// rejecting a limit outside [1, MaxListLimit] and a negative offset.
func ParseOffsetParams(r *http.Request) (OffsetParams, error) {
	p := OffsetParams{Limit: DefaultListLimit, Offset: 0}

	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return p, fmt.Errorf("limit must be a positive integer")
		}
		if n > MaxListLimit {
			return p, fmt.Errorf("limit must be at most %d", MaxListLimit)
		}
		p.Limit = n
	}

	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return p, fmt.Errorf("offset must be a non-negative integer")
		}
		p.Offset = n
	}

	return p, nil
}

// OffsetPage is the response envelope for an offset-paginated list. Callers
// with a domain-specific field name (e.g. "lessons" instead of "items")
// should build their own response struct from the same four values.
type OffsetPage[T any] struct {
	Items  []T `json:"items"`
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// NewOffsetPage builds an OffsetPage from a result set and total count.
func NewOffsetPage[T any](items []T, params OffsetParams, total int) OffsetPage[T] {
	return OffsetPage[T]{
		Items:  items,
		Total:  total,
		Limit:  params.Limit,
		Offset: params.Offset,
	}
}
