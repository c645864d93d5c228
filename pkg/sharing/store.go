package sharing

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lorehq/loreserver/internal/audit"
	"github.com/lorehq/loreserver/internal/idgen"
)

// Store provides sharing-domain persistence, grounded on
// original_source/src/lore/server/routes/sharing.py's SQL, translated from
// org_id to this repo's tenant_id convention.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a Store backed by pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// GetConfig returns the tenant's sharing config, lazily creating the
// default row on first access (mirrors the original's
// "INSERT ... ON CONFLICT (org_id) DO NOTHING" then re-read pattern).
func (s *Store) GetConfig(ctx context.Context, tenant string) (Config, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT enabled, human_review_enabled, rate_limit_per_hour, volume_alert_threshold, updated_at
		   FROM sharing_config WHERE tenant_id = $1`, tenant)

	var c Config
	err := row.Scan(&c.Enabled, &c.HumanReviewEnabled, &c.RateLimitPerHour, &c.VolumeAlertThreshold, &c.UpdatedAt)
	if err == nil {
		return c, nil
	}
	if err != pgx.ErrNoRows {
		return Config{}, fmt.Errorf("reading sharing config: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO sharing_config (id, tenant_id) VALUES ($1, $2) ON CONFLICT (tenant_id) DO NOTHING`,
		idgen.New(), tenant)
	if err != nil {
		return Config{}, fmt.Errorf("creating default sharing config: %w", err)
	}

	row = s.pool.QueryRow(ctx,
		`SELECT enabled, human_review_enabled, rate_limit_per_hour, volume_alert_threshold, updated_at
		   FROM sharing_config WHERE tenant_id = $1`, tenant)
	if err := row.Scan(&c.Enabled, &c.HumanReviewEnabled, &c.RateLimitPerHour, &c.VolumeAlertThreshold, &c.UpdatedAt); err != nil {
		return Config{}, fmt.Errorf("reading sharing config: %w", err)
	}
	return c, nil
}

// UpdateConfig applies a partial update, creating the row first if absent.
func (s *Store) UpdateConfig(ctx context.Context, tenant string, u ConfigUpdate) (Config, error) {
	var existing string
	err := s.pool.QueryRow(ctx, `SELECT id FROM sharing_config WHERE tenant_id = $1`, tenant).Scan(&existing)
	if err == pgx.ErrNoRows {
		_, err = s.pool.Exec(ctx, `INSERT INTO sharing_config (id, tenant_id) VALUES ($1, $2)`, idgen.New(), tenant)
	}
	if err != nil {
		return Config{}, fmt.Errorf("ensuring sharing config row: %w", err)
	}

	sets := []string{"updated_at = now()"}
	args := []any{tenant}
	addSet := func(expr string, val any) {
		args = append(args, val)
		sets = append(sets, fmt.Sprintf(expr, len(args)))
	}
	if u.Enabled != nil {
		addSet("enabled = $%d", *u.Enabled)
	}
	if u.HumanReviewEnabled != nil {
		addSet("human_review_enabled = $%d", *u.HumanReviewEnabled)
	}
	if u.RateLimitPerHour != nil {
		addSet("rate_limit_per_hour = $%d", *u.RateLimitPerHour)
	}
	if u.VolumeAlertThreshold != nil {
		addSet("volume_alert_threshold = $%d", *u.VolumeAlertThreshold)
	}

	query := fmt.Sprintf(
		`UPDATE sharing_config SET %s WHERE tenant_id = $1
		 RETURNING enabled, human_review_enabled, rate_limit_per_hour, volume_alert_threshold, updated_at`,
		joinComma(sets),
	)

	var c Config
	row := s.pool.QueryRow(ctx, query, args...)
	if err := row.Scan(&c.Enabled, &c.HumanReviewEnabled, &c.RateLimitPerHour, &c.VolumeAlertThreshold, &c.UpdatedAt); err != nil {
		return Config{}, fmt.Errorf("updating sharing config: %w", err)
	}
	return c, nil
}

// ListAgentConfigs returns every per-agent sharing override for a tenant.
func (s *Store) ListAgentConfigs(ctx context.Context, tenant string) ([]AgentConfig, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT agent_id, enabled, categories, updated_at FROM agent_sharing_config
		  WHERE tenant_id = $1 ORDER BY agent_id`, tenant)
	if err != nil {
		return nil, fmt.Errorf("listing agent configs: %w", err)
	}
	defer rows.Close()

	var out []AgentConfig
	for rows.Next() {
		var a AgentConfig
		var categoriesJSON []byte
		if err := rows.Scan(&a.AgentID, &a.Enabled, &categoriesJSON, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning agent config: %w", err)
		}
		if err := json.Unmarshal(categoriesJSON, &a.Categories); err != nil {
			return nil, fmt.Errorf("decoding agent categories: %w", err)
		}
		a.Categories = ensureStrings(a.Categories)
		out = append(out, a)
	}
	return out, rows.Err()
}

// GetAgentConfig returns one agent's sharing override, or the zero-value
// default (enabled=false, no category restriction) when the agent has never
// been configured — an agent with no row simply inherits the tenant-level
// config rather than 404ing.
func (s *Store) GetAgentConfig(ctx context.Context, tenant, agentID string) (AgentConfig, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT agent_id, enabled, categories, updated_at FROM agent_sharing_config
		  WHERE tenant_id = $1 AND agent_id = $2`, tenant, agentID)

	var a AgentConfig
	var categoriesJSON []byte
	err := row.Scan(&a.AgentID, &a.Enabled, &categoriesJSON, &a.UpdatedAt)
	if err == pgx.ErrNoRows {
		return AgentConfig{AgentID: agentID, Categories: []string{}}, nil
	}
	if err != nil {
		return AgentConfig{}, fmt.Errorf("reading agent config: %w", err)
	}
	if err := json.Unmarshal(categoriesJSON, &a.Categories); err != nil {
		return AgentConfig{}, fmt.Errorf("decoding agent categories: %w", err)
	}
	a.Categories = ensureStrings(a.Categories)
	return a, nil
}

// UpsertAgentConfig creates or updates one agent's sharing override.
// Absent fields keep their existing values on conflict.
func (s *Store) UpsertAgentConfig(ctx context.Context, tenant, agentID string, u AgentConfigUpdate) (AgentConfig, error) {
	enabled := false
	if u.Enabled != nil {
		enabled = *u.Enabled
	}
	categories := []string{}
	if u.Categories != nil {
		categories = *u.Categories
	}
	categoriesJSON, err := json.Marshal(categories)
	if err != nil {
		return AgentConfig{}, fmt.Errorf("marshaling categories: %w", err)
	}

	query := `INSERT INTO agent_sharing_config (id, tenant_id, agent_id, enabled, categories, updated_at)
		VALUES ($1, $2, $3, $4, $5::jsonb, now())
		ON CONFLICT (tenant_id, agent_id) DO UPDATE SET
			enabled = CASE WHEN $6 THEN $4 ELSE agent_sharing_config.enabled END,
			categories = CASE WHEN $7 THEN $5::jsonb ELSE agent_sharing_config.categories END,
			updated_at = now()
		RETURNING agent_id, enabled, categories, updated_at`

	var a AgentConfig
	var categoriesOut []byte
	row := s.pool.QueryRow(ctx, query,
		idgen.New(), tenant, agentID, enabled, categoriesJSON,
		u.Enabled != nil, u.Categories != nil,
	)
	if err := row.Scan(&a.AgentID, &a.Enabled, &categoriesOut, &a.UpdatedAt); err != nil {
		return AgentConfig{}, fmt.Errorf("upserting agent config: %w", err)
	}
	if err := json.Unmarshal(categoriesOut, &a.Categories); err != nil {
		return AgentConfig{}, fmt.Errorf("decoding agent categories: %w", err)
	}
	a.Categories = ensureStrings(a.Categories)
	return a, nil
}

// ListDenyRules returns every deny-list rule for a tenant, oldest first.
func (s *Store) ListDenyRules(ctx context.Context, tenant string) ([]DenyRule, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, pattern, is_regex, reason, created_at FROM deny_list_rules
		  WHERE tenant_id = $1 ORDER BY created_at`, tenant)
	if err != nil {
		return nil, fmt.Errorf("listing deny rules: %w", err)
	}
	defer rows.Close()

	var out []DenyRule
	for rows.Next() {
		var d DenyRule
		var reason *string
		if err := rows.Scan(&d.ID, &d.Pattern, &d.IsRegex, &reason, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning deny rule: %w", err)
		}
		if reason != nil {
			d.Reason = *reason
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// CreateDenyRule inserts a new deny-list rule.
func (s *Store) CreateDenyRule(ctx context.Context, tenant string, c DenyRuleCreate) (DenyRule, error) {
	var reason *string
	if c.Reason != "" {
		reason = &c.Reason
	}

	row := s.pool.QueryRow(ctx,
		`INSERT INTO deny_list_rules (id, tenant_id, pattern, is_regex, reason)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, pattern, is_regex, reason, created_at`,
		idgen.New(), tenant, c.Pattern, c.IsRegex, reason,
	)

	var d DenyRule
	var reasonOut *string
	if err := row.Scan(&d.ID, &d.Pattern, &d.IsRegex, &reasonOut, &d.CreatedAt); err != nil {
		return DenyRule{}, fmt.Errorf("creating deny rule: %w", err)
	}
	if reasonOut != nil {
		d.Reason = *reasonOut
	}
	return d, nil
}

// DeleteDenyRule removes a deny-list rule scoped to tenant. Returns
// pgx.ErrNoRows when nothing matched.
func (s *Store) DeleteDenyRule(ctx context.Context, tenant, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM deny_list_rules WHERE id = $1 AND tenant_id = $2`, id, tenant)
	if err != nil {
		return fmt.Errorf("deleting deny rule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// Stats aggregates lesson counts and audit-event totals for a tenant.
func (s *Store) Stats(ctx context.Context, tenant string) (Stats, error) {
	var count int
	var last *time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT count(*), max(created_at) FROM lessons WHERE tenant_id = $1`, tenant,
	).Scan(&count, &last)
	if err != nil {
		return Stats{}, fmt.Errorf("counting lessons: %w", err)
	}

	summary, err := audit.EventTypeCounts(ctx, s.pool, tenant)
	if err != nil {
		return Stats{}, err
	}

	return Stats{
		CountShared:  count,
		LastShared:   last,
		AuditSummary: summary,
	}, nil
}

// Purge irreversibly deletes every in-scope row for a tenant's lessons and
// sharing data in one transaction, returning the count of lessons removed.
// The caller is responsible for writing the terminal "purge" audit event
// from a connection outside this transaction (spec §4.7: "the audit
// survives the purge").
func (s *Store) Purge(ctx context.Context, tenant string) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("beginning purge transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var deletedLessons int
	if err := tx.QueryRow(ctx, `SELECT count(*) FROM lessons WHERE tenant_id = $1`, tenant).Scan(&deletedLessons); err != nil {
		return 0, fmt.Errorf("counting lessons to purge: %w", err)
	}

	for _, table := range []string{"lessons", "audit_events", "deny_list_rules", "agent_sharing_config", "sharing_config"} {
		if _, err := tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE tenant_id = $1`, table), tenant); err != nil {
			return 0, fmt.Errorf("purging %s: %w", table, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("committing purge transaction: %w", err)
	}
	return deletedLessons, nil
}

func joinComma(clauses []string) string {
	out := clauses[0]
	for _, c := range clauses[1:] {
		out += ", " + c
	}
	return out
}
