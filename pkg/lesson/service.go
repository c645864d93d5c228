package lesson

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lorehq/loreserver/internal/audit"
	"github.com/lorehq/loreserver/internal/idgen"
	"github.com/lorehq/loreserver/internal/telemetry"
)

// ErrNoFields is returned by Update when the request carries no updatable
// field; the handler maps it to a 422.
var ErrNoFields = errNoFields

// Service encapsulates lesson business logic: project-scope resolution,
// scoring, and the audit side-effects of mutating endpoints (spec §4.5,
// §4.7).
type Service struct {
	store  *Store
	pool   *pgxpool.Pool
	audit  *audit.Writer
	logger *slog.Logger
}

// NewService creates a Service backed by pool.
func NewService(pool *pgxpool.Pool, auditWriter *audit.Writer, logger *slog.Logger) *Service {
	return &Service{
		store:  NewStore(pool),
		pool:   pool,
		audit:  auditWriter,
		logger: logger,
	}
}

// scopedProject resolves the effective project filter for a request: a
// credential pinned to a project always wins over a body-supplied one
// (spec §4.5: "the credential's project, when set, overrides and
// constrains every read").
func scopedProject(credentialProject, bodyProject string) *string {
	if credentialProject != "" {
		return &credentialProject
	}
	if bodyProject != "" {
		return &bodyProject
	}
	return nil
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Create inserts a new lesson, applying the credential's project override.
func (s *Service) Create(ctx context.Context, tenant, credentialProject string, req CreateRequest) (Response, error) {
	project := scopedProject(credentialProject, req.Project)

	row, err := s.store.Create(ctx, CreateParams{
		ID:         idgen.New(),
		Tenant:     tenant,
		Problem:    req.Problem,
		Resolution: req.Resolution,
		Context:    optionalString(req.Context),
		Tags:       req.Tags,
		Confidence: req.Confidence,
		Source:     optionalString(req.Source),
		Project:    project,
		Embedding:  req.Embedding,
		ExpiresAt:  req.ExpiresAt,
		Meta:       req.Meta,
	})
	if err != nil {
		return Response{}, fmt.Errorf("creating lesson: %w", err)
	}
	telemetry.LessonsSavedTotal.Inc()
	return row.ToResponse(), nil
}

// Get fetches a single lesson scoped to tenant and credential project.
// Returns pgx.ErrNoRows on a cross-project or unknown id (spec §4.5: "a
// cross-project id access yields 404, never 403").
func (s *Service) Get(ctx context.Context, tenant, credentialProject, id string) (Response, error) {
	project := scopedProject(credentialProject, "")
	row, err := s.store.Get(ctx, tenant, project, id)
	if err != nil {
		return Response{}, err
	}
	return row.ToResponse(), nil
}

// List returns a page of in-scope lessons.
func (s *Service) List(ctx context.Context, tenant, credentialProject string, f ListFilter) (ListResponse, error) {
	if credentialProject != "" {
		p := credentialProject
		f.Project = &p
	}

	rows, total, err := s.store.List(ctx, tenant, f)
	if err != nil {
		return ListResponse{}, fmt.Errorf("listing lessons: %w", err)
	}

	items := make([]Response, 0, len(rows))
	for i := range rows {
		items = append(items, rows[i].ToResponse())
	}
	return ListResponse{
		Lessons: items,
		Total:   total,
		Limit:   f.Limit,
		Offset:  f.Offset,
	}, nil
}

// Update applies a partial update, resolving VoteValue's delta/literal
// distinction into the store's atomic-increment-or-set parameters.
func (s *Service) Update(ctx context.Context, tenant, credentialProject, id string, req UpdateRequest) (Response, error) {
	project := scopedProject(credentialProject, "")

	p := UpdateParams{
		Confidence: req.Confidence,
		Tags:       req.Tags,
		Meta:       req.Meta,
	}
	if req.Upvotes != nil {
		p.UpvotesDelta = req.Upvotes.Delta
		p.UpvotesSet = req.Upvotes.Literal
	}
	if req.Downvotes != nil {
		p.DownvotesDelta = req.Downvotes.Delta
		p.DownvotesSet = req.Downvotes.Literal
	}

	row, err := s.store.Update(ctx, tenant, project, id, p)
	if err != nil {
		return Response{}, err
	}
	return row.ToResponse(), nil
}

// Delete removes a lesson scoped to tenant and credential project.
func (s *Service) Delete(ctx context.Context, tenant, credentialProject, id string) error {
	project := scopedProject(credentialProject, "")
	return s.store.Delete(ctx, tenant, project, id)
}

// Rate applies an atomic reputation delta and writes the audit row in the
// same transaction (spec §4.7: rate "writes both a lesson mutation and an
// audit row in one transaction").
func (s *Service) Rate(ctx context.Context, tenant, credentialProject, id, initiatedBy string, delta int) (RateResponse, error) {
	project := scopedProject(credentialProject, "")

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return RateResponse{}, fmt.Errorf("beginning rate transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	scopeSQL, args := scopeFilter(tenant, project)
	args = append(args, delta, id)
	query := fmt.Sprintf(
		`UPDATE lessons SET reputation = reputation + $%d, updated_at = now()
		  WHERE %s AND id = $%d RETURNING reputation`,
		len(args)-1, scopeSQL, len(args),
	)

	var reputation int
	if err := tx.QueryRow(ctx, query, args...).Scan(&reputation); err != nil {
		return RateResponse{}, err
	}

	if err := audit.WriteTx(ctx, tx, audit.Event{
		Tenant:      tenant,
		EventType:   "lesson_rated",
		LessonID:    &id,
		InitiatedBy: initiatedBy,
	}); err != nil {
		return RateResponse{}, fmt.Errorf("writing rate audit row: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return RateResponse{}, fmt.Errorf("committing rate transaction: %w", err)
	}
	return RateResponse{Reputation: reputation}, nil
}

// Search runs the composite recall scoring query and reshapes results into
// the wire SearchResult form.
func (s *Service) Search(ctx context.Context, tenant, credentialProject string, req SearchRequest) (SearchResponse, error) {
	project := scopedProject(credentialProject, req.Project)
	telemetry.RecallQueriesTotal.Inc()

	start := time.Now()
	rows, err := s.store.Search(ctx, tenant, req.Embedding, SearchFilter{
		Project:       project,
		Tags:          req.Tags,
		Limit:         req.Limit,
		MinConfidence: req.MinConfidence,
	})
	telemetry.VectorSearchLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		return SearchResponse{}, fmt.Errorf("searching lessons: %w", err)
	}

	results := make([]SearchResult, 0, len(rows))
	for i := range rows {
		results = append(results, SearchResult{
			Response: rows[i].Row.ToResponse(),
			Score:    rows[i].Score,
		})
	}
	return SearchResponse{Lessons: results}, nil
}

// Export returns every in-scope lesson with its embedding.
func (s *Service) Export(ctx context.Context, tenant, credentialProject string) (ExportResponse, error) {
	project := scopedProject(credentialProject, "")

	rows, err := s.store.Export(ctx, tenant, project)
	if err != nil {
		return ExportResponse{}, fmt.Errorf("exporting lessons: %w", err)
	}

	items := make([]ExportItem, 0, len(rows))
	for i := range rows {
		items = append(items, ExportItem{
			Response:  rows[i].ToResponse(),
			Embedding: rows[i].Embedding,
		})
	}
	return ExportResponse{Lessons: items}, nil
}

// Import upserts a batch of lessons in a single transaction, preserving
// tenant ownership on conflict (spec §4.5).
func (s *Service) Import(ctx context.Context, tenant, credentialProject string, req ImportRequest) (ImportResponse, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return ImportResponse{}, fmt.Errorf("beginning import transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, item := range req.Lessons {
		id := item.ID
		if id == "" {
			id = idgen.New()
		}
		project := scopedProject(credentialProject, item.Project)

		err := s.store.ImportUpsert(ctx, tx, tenant, CreateParams{
			ID:         id,
			Tenant:     tenant,
			Problem:    item.Problem,
			Resolution: item.Resolution,
			Context:    optionalString(item.Context),
			Tags:       item.Tags,
			Confidence: item.Confidence,
			Source:     optionalString(item.Source),
			Project:    project,
			Embedding:  item.Embedding,
			ExpiresAt:  item.ExpiresAt,
			Upvotes:    item.Upvotes,
			Downvotes:  item.Downvotes,
			Meta:       item.Meta,
			CreatedAt:  item.CreatedAt,
			UpdatedAt:  item.UpdatedAt,
		})
		if err != nil {
			return ImportResponse{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return ImportResponse{}, fmt.Errorf("committing import transaction: %w", err)
	}
	telemetry.LessonsSavedTotal.Add(float64(len(req.Lessons)))
	return ImportResponse{Imported: len(req.Lessons)}, nil
}

// IsNotFound reports whether err signals a scoped miss (unknown id or a
// cross-project/cross-tenant access, both surfaced as 404).
func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
