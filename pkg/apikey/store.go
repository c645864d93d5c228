package apikey

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const rowColumns = `id, tenant_id, project, is_root, role, key_hash, key_prefix, description, last_used_at, revoked_at, created_at`

// ErrAlreadyRevoked is returned by Revoke when the target key has already
// been revoked.
var ErrAlreadyRevoked = errors.New("api key already revoked")

// ErrLastRootKey is returned by Revoke when the target is the tenant's only
// remaining active root credential (spec §4.6).
var ErrLastRootKey = errors.New("cannot revoke the last active root credential")

// Store provides database operations for API keys.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a Store backed by pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// CreateParams holds parameters for creating an API key.
type CreateParams struct {
	TenantID    string
	Project     *string
	IsRoot      bool
	Role        *string
	KeyHash     string
	KeyPrefix   string
	Description string
}

func scanRow(row pgx.Row) (Row, error) {
	var r Row
	err := row.Scan(
		&r.ID, &r.TenantID, &r.Project, &r.IsRoot, &r.Role, &r.KeyHash,
		&r.KeyPrefix, &r.Description, &r.LastUsedAt, &r.RevokedAt, &r.CreatedAt,
	)
	return r, err
}

// List returns every key (including revoked ones) for tenantID, newest first.
func (s *Store) List(ctx context.Context, tenantID string) ([]Row, error) {
	query := `SELECT ` + rowColumns + ` FROM api_keys WHERE tenant_id = $1 ORDER BY created_at DESC`
	rows, err := s.pool.Query(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("listing api keys: %w", err)
	}
	defer rows.Close()

	var items []Row
	for rows.Next() {
		r, err := scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning api key row: %w", err)
		}
		items = append(items, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating api key rows: %w", err)
	}
	return items, nil
}

// Create inserts a new API key and returns the created row. id is minted by
// the caller (idgen.New()), not the database.
func (s *Store) Create(ctx context.Context, id string, p CreateParams) (Row, error) {
	query := `INSERT INTO api_keys (id, tenant_id, project, is_root, role, key_hash, key_prefix, description)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	RETURNING ` + rowColumns

	row := s.pool.QueryRow(ctx, query,
		id, p.TenantID, p.Project, p.IsRoot, p.Role, p.KeyHash, p.KeyPrefix, p.Description,
	)
	return scanRow(row)
}

// Revoke sets revoked_at=now() for the given key, scoped to tenantID,
// refusing a repeat revoke or the tenant's last active root credential
// (spec §4.6). Returns pgx.ErrNoRows if the key doesn't exist in scope.
func (s *Store) Revoke(ctx context.Context, id, tenantID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning revoke transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var isRoot bool
	var revokedAt any
	err = tx.QueryRow(ctx,
		`SELECT is_root, revoked_at FROM api_keys WHERE id = $1 AND tenant_id = $2 FOR UPDATE`,
		id, tenantID,
	).Scan(&isRoot, &revokedAt)
	if err != nil {
		return err
	}
	if revokedAt != nil {
		return ErrAlreadyRevoked
	}

	if isRoot {
		var activeRoots int
		if err := tx.QueryRow(ctx,
			`SELECT count(*) FROM api_keys WHERE tenant_id = $1 AND is_root AND revoked_at IS NULL`,
			tenantID,
		).Scan(&activeRoots); err != nil {
			return fmt.Errorf("counting active root keys: %w", err)
		}
		if activeRoots <= 1 {
			return ErrLastRootKey
		}
	}

	if _, err := tx.Exec(ctx, `UPDATE api_keys SET revoked_at = now() WHERE id = $1`, id); err != nil {
		return fmt.Errorf("revoking api key: %w", err)
	}

	return tx.Commit(ctx)
}
