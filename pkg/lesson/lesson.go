// Package lesson implements the Lesson Engine (spec §4.5): CRUD, recall
// search, and bulk export/import of tenant-scoped lessons.
package lesson

import "time"

// CreateRequest is the JSON body for POST /v1/lessons.
type CreateRequest struct {
	Problem    string         `json:"problem" validate:"required"`
	Resolution string         `json:"resolution" validate:"required"`
	Context    string         `json:"context"`
	Tags       []string       `json:"tags"`
	Confidence float64        `json:"confidence" validate:"gte=0,lte=1"`
	Source     string         `json:"source"`
	Project    string         `json:"project"`
	Embedding  []float32      `json:"embedding" validate:"omitempty,len=384"`
	ExpiresAt  *time.Time     `json:"expires_at"`
	Meta       map[string]any `json:"meta"`
}

// UpdateRequest is the JSON body for PATCH /v1/lessons/{id}. Every field is
// a pointer so absence is distinguishable from zero value; Upvotes/Downvotes
// accept either a literal count or the atomic-delta strings "+1"/"-1" (spec
// §4.5).
type UpdateRequest struct {
	Confidence *float64        `json:"confidence" validate:"omitempty,gte=0,lte=1"`
	Tags       *[]string       `json:"tags"`
	Meta       *map[string]any `json:"meta"`
	Upvotes    *VoteValue      `json:"upvotes"`
	Downvotes  *VoteValue      `json:"downvotes"`
}

// RateRequest is the JSON body for POST /v1/lessons/{id}/rate.
type RateRequest struct {
	Delta int `json:"delta" validate:"required,oneof=1 -1"`
}

// RateResponse reports the lesson's reputation after an atomic delta.
type RateResponse struct {
	Reputation int `json:"reputation"`
}

// SearchRequest is the JSON body for POST /v1/lessons/search.
type SearchRequest struct {
	Embedding     []float32 `json:"embedding" validate:"required,len=384"`
	Tags          []string  `json:"tags"`
	Project       string    `json:"project"`
	Limit         int       `json:"limit" validate:"omitempty,gte=1,lte=50"`
	MinConfidence float64   `json:"min_confidence" validate:"omitempty,gte=0,lte=1"`
}

// SearchResult is a single recall hit: a Response plus its composite score.
type SearchResult struct {
	Response
	Score float64 `json:"score"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Lessons []SearchResult `json:"lessons"`
}

// ImportItem is one lesson in an import batch; a present ID upserts.
type ImportItem struct {
	ID         string         `json:"id"`
	Problem    string         `json:"problem" validate:"required"`
	Resolution string         `json:"resolution" validate:"required"`
	Context    string         `json:"context"`
	Tags       []string       `json:"tags"`
	Confidence float64        `json:"confidence" validate:"gte=0,lte=1"`
	Source     string         `json:"source"`
	Project    string         `json:"project"`
	Embedding  []float32      `json:"embedding" validate:"omitempty,len=384"`
	ExpiresAt  *time.Time     `json:"expires_at"`
	Upvotes    int            `json:"upvotes"`
	Downvotes  int            `json:"downvotes"`
	Meta       map[string]any `json:"meta"`

	// CreatedAt/UpdatedAt, when present, are preserved verbatim so a
	// purge-then-import or cross-tenant Export→Import round-trip reproduces
	// the original timestamps (spec §8); absent on either leaves the
	// column's now() default in place.
	CreatedAt *time.Time `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}

// ImportRequest is the JSON body for POST /v1/lessons/import.
type ImportRequest struct {
	Lessons []ImportItem `json:"lessons" validate:"required,dive"`
}

// ImportResponse reports how many rows were upserted.
type ImportResponse struct {
	Imported int `json:"imported"`
}

// ExportItem carries the embedding; Response never does (spec §4.5: export
// "returns all in-scope lessons WITH embeddings").
type ExportItem struct {
	Response
	Embedding []float32 `json:"embedding,omitempty"`
}

// ExportResponse wraps a full in-scope export.
type ExportResponse struct {
	Lessons []ExportItem `json:"lessons"`
}

// ListResponse is the paginated list envelope (spec §4.5).
type ListResponse struct {
	Lessons []Response `json:"lessons"`
	Total   int        `json:"total"`
	Limit   int        `json:"limit"`
	Offset  int        `json:"offset"`
}

// Response is the public JSON shape of a lesson, without its embedding.
type Response struct {
	ID         string         `json:"id"`
	Problem    string         `json:"problem"`
	Resolution string         `json:"resolution"`
	Context    string         `json:"context,omitempty"`
	Tags       []string       `json:"tags"`
	Confidence float64        `json:"confidence"`
	Source     string         `json:"source,omitempty"`
	Project    string         `json:"project,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	ExpiresAt  *time.Time     `json:"expires_at,omitempty"`
	Upvotes    int            `json:"upvotes"`
	Downvotes  int            `json:"downvotes"`
	Reputation int            `json:"reputation"`
	Meta       map[string]any `json:"meta"`
}

// Row is the full persisted shape of a lessons row, embedding included.
type Row struct {
	ID         string
	Tenant     string
	Problem    string
	Resolution string
	Context    *string
	Tags       []string
	Confidence float64
	Source     *string
	Project    *string
	Embedding  []float32
	CreatedAt  time.Time
	UpdatedAt  time.Time
	ExpiresAt  *time.Time
	Upvotes    int
	Downvotes  int
	Reputation int
	Meta       map[string]any
}

// ToResponse converts a Row to its public DTO (no embedding).
func (r *Row) ToResponse() Response {
	resp := Response{
		ID:         r.ID,
		Problem:    r.Problem,
		Resolution: r.Resolution,
		Tags:       ensureSlice(r.Tags),
		Confidence: r.Confidence,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
		ExpiresAt:  r.ExpiresAt,
		Upvotes:    r.Upvotes,
		Downvotes:  r.Downvotes,
		Reputation: r.Reputation,
		Meta:       ensureMap(r.Meta),
	}
	if r.Context != nil {
		resp.Context = *r.Context
	}
	if r.Source != nil {
		resp.Source = *r.Source
	}
	if r.Project != nil {
		resp.Project = *r.Project
	}
	return resp
}

func ensureSlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func ensureMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
