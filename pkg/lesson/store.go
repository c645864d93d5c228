package lesson

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// errNoFields is returned when an Update call has no fields to set; the
// service re-exports it as ErrNoFields and the handler maps it to a 422.
var errNoFields = errors.New("lesson: update has no fields to set")

const baseColumns = `id, tenant_id, problem, resolution, context, tags, confidence,
	source, project, created_at, updated_at, expires_at, upvotes, downvotes,
	reputation, meta`

// Store provides lesson persistence (spec §4.5), grounded on the teacher's
// pkg/incident store and original_source's routes/lessons.py SQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a Store backed by pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// CreateParams holds the fields needed to insert a lesson row. Project has
// already had the credential's project-scope override applied by the
// caller (spec §4.5).
type CreateParams struct {
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
	ExpiresAt  *time.Time
	Upvotes    int
	Downvotes  int
	Meta       map[string]any

	// CreatedAt/UpdatedAt override the column defaults; only ImportUpsert
	// honors them, so an Export→Import round-trip reproduces the original
	// timestamps (spec §8). Plain Create leaves these nil and gets now().
	CreatedAt *time.Time
	UpdatedAt *time.Time
}

func scanBaseRow(row pgx.Row) (Row, error) {
	var r Row
	err := row.Scan(
		&r.ID, &r.Tenant, &r.Problem, &r.Resolution, &r.Context, &r.Tags,
		&r.Confidence, &r.Source, &r.Project, &r.CreatedAt, &r.UpdatedAt,
		&r.ExpiresAt, &r.Upvotes, &r.Downvotes, &r.Reputation, &r.Meta,
	)
	return r, err
}

// scopeFilter builds the tenant (+ optional project) WHERE fragment shared
// by every scoped query, starting parameter numbering at 1.
func scopeFilter(tenant string, project *string) (string, []any) {
	if project != nil {
		return "tenant_id = $1 AND project = $2", []any{tenant, *project}
	}
	return "tenant_id = $1", []any{tenant}
}

// Create inserts a new lesson row.
func (s *Store) Create(ctx context.Context, p CreateParams) (Row, error) {
	tagsJSON, err := json.Marshal(ensureSlice(p.Tags))
	if err != nil {
		return Row{}, fmt.Errorf("marshaling tags: %w", err)
	}
	metaJSON, err := json.Marshal(ensureMap(p.Meta))
	if err != nil {
		return Row{}, fmt.Errorf("marshaling meta: %w", err)
	}

	var embeddingArg any
	if p.Embedding != nil {
		embeddingArg = encodeVector(p.Embedding)
	}

	query := `INSERT INTO lessons
		(id, tenant_id, problem, resolution, context, tags, confidence, source,
		 project, embedding, expires_at, upvotes, downvotes, reputation, meta)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7, $8, $9, $10::vector, $11, 0, 0, 0, $12::jsonb)
		RETURNING ` + baseColumns

	row := s.pool.QueryRow(ctx, query,
		p.ID, p.Tenant, p.Problem, p.Resolution, p.Context, tagsJSON, p.Confidence,
		p.Source, p.Project, embeddingArg, p.ExpiresAt, metaJSON,
	)
	return scanBaseRow(row)
}

// Get fetches a single lesson scoped to tenant (+project). Returns
// pgx.ErrNoRows on scoped miss.
func (s *Store) Get(ctx context.Context, tenant string, project *string, id string) (Row, error) {
	scopeSQL, args := scopeFilter(tenant, project)
	args = append(args, id)
	query := fmt.Sprintf(`SELECT %s FROM lessons WHERE %s AND id = $%d`, baseColumns, scopeSQL, len(args))
	return scanBaseRow(s.pool.QueryRow(ctx, query, args...))
}

// ListFilter narrows List's result set.
type ListFilter struct {
	Project       *string
	Text          string
	Category      string
	MinReputation *int
	Limit         int
	Offset        int
}

// List returns a page of lessons plus the total matching count.
func (s *Store) List(ctx context.Context, tenant string, f ListFilter) ([]Row, int, error) {
	where := []string{"tenant_id = $1"}
	args := []any{tenant}

	if f.Project != nil {
		args = append(args, *f.Project)
		where = append(where, fmt.Sprintf("project = $%d", len(args)))
	}
	if f.Text != "" {
		args = append(args, "%"+f.Text+"%")
		idx := len(args)
		where = append(where, fmt.Sprintf("(problem ILIKE $%d OR resolution ILIKE $%d)", idx, idx))
	}
	if f.Category != "" {
		catJSON, _ := json.Marshal([]string{f.Category})
		args = append(args, catJSON)
		where = append(where, fmt.Sprintf("tags @> $%d::jsonb", len(args)))
	}
	if f.MinReputation != nil {
		args = append(args, *f.MinReputation)
		where = append(where, fmt.Sprintf("reputation >= $%d", len(args)))
	}

	whereSQL := joinAnd(where)

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM lessons WHERE `+whereSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting lessons: %w", err)
	}

	args = append(args, f.Limit, f.Offset)
	query := fmt.Sprintf(
		`SELECT %s FROM lessons WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		baseColumns, whereSQL, len(args)-1, len(args),
	)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing lessons: %w", err)
	}
	defer rows.Close()

	var items []Row
	for rows.Next() {
		r, err := scanBaseRow(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning lesson row: %w", err)
		}
		items = append(items, r)
	}
	return items, total, rows.Err()
}

// UpdateParams mirrors UpdateRequest, pre-resolved so Store doesn't depend
// on HTTP-layer wire shapes.
type UpdateParams struct {
	Confidence     *float64
	Tags           *[]string
	Meta           *map[string]any
	UpvotesDelta   *int
	UpvotesSet     *int
	DownvotesDelta *int
	DownvotesSet   *int
}

// Update applies a dynamic SET clause built from the non-nil fields of p,
// scoped to tenant (+project). Returns pgx.ErrNoRows on scoped miss.
func (s *Store) Update(ctx context.Context, tenant string, project *string, id string, p UpdateParams) (Row, error) {
	scopeSQL, args := scopeFilter(tenant, project)

	var sets []string
	addSet := func(expr string, val any) {
		args = append(args, val)
		sets = append(sets, fmt.Sprintf(expr, len(args)))
	}

	if p.Confidence != nil {
		addSet("confidence = $%d", *p.Confidence)
	}
	if p.Tags != nil {
		tagsJSON, _ := json.Marshal(*p.Tags)
		addSet("tags = $%d::jsonb", tagsJSON)
	}
	if p.Meta != nil {
		metaJSON, _ := json.Marshal(*p.Meta)
		addSet("meta = $%d::jsonb", metaJSON)
	}
	if p.UpvotesDelta != nil {
		args = append(args, *p.UpvotesDelta)
		sets = append(sets, fmt.Sprintf("upvotes = upvotes + $%d", len(args)))
	} else if p.UpvotesSet != nil {
		addSet("upvotes = $%d", *p.UpvotesSet)
	}
	if p.DownvotesDelta != nil {
		args = append(args, *p.DownvotesDelta)
		sets = append(sets, fmt.Sprintf("downvotes = downvotes + $%d", len(args)))
	} else if p.DownvotesSet != nil {
		addSet("downvotes = $%d", *p.DownvotesSet)
	}

	if len(sets) == 0 {
		return Row{}, errNoFields
	}
	sets = append(sets, "updated_at = now()")

	args = append(args, id)
	query := fmt.Sprintf(
		`UPDATE lessons SET %s WHERE %s AND id = $%d RETURNING %s`,
		joinComma(sets), scopeSQL, len(args), baseColumns,
	)
	return scanBaseRow(s.pool.QueryRow(ctx, query, args...))
}

// Delete removes a lesson scoped to tenant (+project). Returns
// pgx.ErrNoRows when nothing matched (spec §4.5: "404 if scoped miss").
func (s *Store) Delete(ctx context.Context, tenant string, project *string, id string) error {
	scopeSQL, args := scopeFilter(tenant, project)
	args = append(args, id)
	query := fmt.Sprintf(`DELETE FROM lessons WHERE %s AND id = $%d`, scopeSQL, len(args))

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("deleting lesson: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// SearchFilter narrows Search's candidate set before scoring.
type SearchFilter struct {
	Project       *string
	Tags          []string
	Limit         int
	MinConfidence float64
}

// searchRow is a Row plus its composite score (spec §4.5's recall formula),
// computed in SQL so ordering and the tie-break happen server-side.
type searchRow struct {
	Row
	Score float64
}

// Search ranks lessons against a query embedding using the composite score
//
//	(1 - cosine_distance) * confidence * exp(-0.01 * age_days)
//	  * max(1.0 + 0.1*(upvotes-downvotes), 0.1)
//
// tie-broken updated_at DESC, id ASC, and post-filters on MinConfidence
// after scoring (spec §4.5, §9).
func (s *Store) Search(ctx context.Context, tenant string, embedding []float32, f SearchFilter) ([]searchRow, error) {
	args := []any{tenant, encodeVector(embedding)}
	where := []string{
		"tenant_id = $1",
		"embedding IS NOT NULL",
		"(expires_at IS NULL OR expires_at > now())",
	}

	if f.Project != nil {
		args = append(args, *f.Project)
		where = append(where, fmt.Sprintf("project = $%d", len(args)))
	}
	if len(f.Tags) > 0 {
		tagsJSON, _ := json.Marshal(f.Tags)
		args = append(args, tagsJSON)
		where = append(where, fmt.Sprintf("tags @> $%d::jsonb", len(args)))
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 10
	}
	args = append(args, limit)

	query := fmt.Sprintf(`
		SELECT %s,
		       greatest(
		         (1 - (embedding <=> $2::vector)) * confidence
		           * exp(-0.01 * extract(epoch from (now() - updated_at)) / 86400.0)
		           * greatest(1.0 + (upvotes - downvotes) * 0.1, 0.1),
		         0
		       ) AS score
		  FROM lessons
		 WHERE %s
		 ORDER BY score DESC, updated_at DESC, id ASC
		 LIMIT $%d`,
		baseColumns, joinAnd(where), len(args),
	)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("searching lessons: %w", err)
	}
	defer rows.Close()

	var out []searchRow
	for rows.Next() {
		var r Row
		var score float64
		err := rows.Scan(
			&r.ID, &r.Tenant, &r.Problem, &r.Resolution, &r.Context, &r.Tags,
			&r.Confidence, &r.Source, &r.Project, &r.CreatedAt, &r.UpdatedAt,
			&r.ExpiresAt, &r.Upvotes, &r.Downvotes, &r.Reputation, &r.Meta,
			&score,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning search row: %w", err)
		}
		if f.MinConfidence > 0 && r.Confidence < f.MinConfidence {
			continue
		}
		out = append(out, searchRow{Row: r, Score: roundScore(score)})
	}
	return out, rows.Err()
}

func roundScore(v float64) float64 {
	const scale = 1e6
	rounded := float64(int64(v*scale+0.5)) / scale
	if rounded < 0 {
		return 0
	}
	return rounded
}

// Export returns every lesson in scope, embeddings included.
func (s *Store) Export(ctx context.Context, tenant string, project *string) ([]Row, error) {
	scopeSQL, args := scopeFilter(tenant, project)
	query := fmt.Sprintf(
		`SELECT %s, embedding::text FROM lessons WHERE %s ORDER BY created_at ASC`,
		baseColumns, scopeSQL,
	)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("exporting lessons: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		var embeddingText *string
		err := rows.Scan(
			&r.ID, &r.Tenant, &r.Problem, &r.Resolution, &r.Context, &r.Tags,
			&r.Confidence, &r.Source, &r.Project, &r.CreatedAt, &r.UpdatedAt,
			&r.ExpiresAt, &r.Upvotes, &r.Downvotes, &r.Reputation, &r.Meta,
			&embeddingText,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning export row: %w", err)
		}
		if embeddingText != nil {
			vec, err := decodeVector(*embeddingText)
			if err != nil {
				return nil, fmt.Errorf("decoding embedding: %w", err)
			}
			r.Embedding = vec
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ImportUpsert inserts or updates one lesson inside an existing
// transaction. ON CONFLICT is scoped to the owning tenant so an import
// batch can never overwrite another tenant's row sharing the same id
// (spec §4.5: "import preserves tenant ownership on conflict").
func (s *Store) ImportUpsert(ctx context.Context, tx pgx.Tx, tenant string, p CreateParams) error {
	tagsJSON, err := json.Marshal(ensureSlice(p.Tags))
	if err != nil {
		return fmt.Errorf("marshaling tags: %w", err)
	}
	metaJSON, err := json.Marshal(ensureMap(p.Meta))
	if err != nil {
		return fmt.Errorf("marshaling meta: %w", err)
	}

	var embeddingArg any
	if p.Embedding != nil {
		embeddingArg = encodeVector(p.Embedding)
	}

	query := `INSERT INTO lessons
		(id, tenant_id, problem, resolution, context, tags, confidence, source,
		 project, embedding, expires_at, upvotes, downvotes, reputation, meta,
		 created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7, $8, $9, $10::vector, $11, $12, $13, 0, $14::jsonb,
		        COALESCE($15::timestamptz, now()), COALESCE($16::timestamptz, now()))
		ON CONFLICT (id) DO UPDATE SET
			problem = EXCLUDED.problem,
			resolution = EXCLUDED.resolution,
			context = EXCLUDED.context,
			tags = EXCLUDED.tags,
			confidence = EXCLUDED.confidence,
			source = EXCLUDED.source,
			project = EXCLUDED.project,
			embedding = EXCLUDED.embedding,
			expires_at = EXCLUDED.expires_at,
			upvotes = EXCLUDED.upvotes,
			downvotes = EXCLUDED.downvotes,
			meta = EXCLUDED.meta,
			created_at = COALESCE($15::timestamptz, lessons.created_at),
			updated_at = COALESCE($16::timestamptz, now())
		WHERE lessons.tenant_id = EXCLUDED.tenant_id`

	_, err = tx.Exec(ctx, query,
		p.ID, tenant, p.Problem, p.Resolution, p.Context, tagsJSON, p.Confidence,
		p.Source, p.Project, embeddingArg, p.ExpiresAt, p.Upvotes, p.Downvotes, metaJSON,
		p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upserting lesson %s: %w", p.ID, err)
	}
	return nil
}

func joinAnd(clauses []string) string {
	out := clauses[0]
	for _, c := range clauses[1:] {
		out += " AND " + c
	}
	return out
}

func joinComma(clauses []string) string {
	out := clauses[0]
	for _, c := range clauses[1:] {
		out += ", " + c
	}
	return out
}
