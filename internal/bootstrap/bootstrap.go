// Package bootstrap implements the single unauthenticated endpoint that
// creates the first tenant and its root credential (spec §4.10).
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lorehq/loreserver/internal/idgen"
	"github.com/lorehq/loreserver/pkg/apikey"
)

// ErrAlreadyBootstrapped is returned when a tenant row already exists; the
// service is designed to be bootstrapped exactly once (spec §4.10: "aborts
// with 409 if any tenant row exists").
var ErrAlreadyBootstrapped = errors.New("bootstrap: a tenant already exists")

// Request is the JSON body for POST /v1/org/init.
type Request struct {
	Name string `json:"name" validate:"required"`
}

// Response returns the newly created tenant and its root credential's raw
// secret, shown exactly once.
type Response struct {
	TenantID  string `json:"tenant_id"`
	Name      string `json:"name"`
	KeyID     string `json:"key_id"`
	KeyPrefix string `json:"key_prefix"`
	Secret    string `json:"secret"`
}

// Service performs the one-time tenant+root-credential bootstrap.
type Service struct {
	pool *pgxpool.Pool
}

// NewService creates a Service backed by pool.
func NewService(pool *pgxpool.Pool) *Service {
	return &Service{pool: pool}
}

// Init creates the tenant and its root credential inside one transaction,
// aborting with ErrAlreadyBootstrapped if any tenant row already exists.
func (s *Service) Init(ctx context.Context, req Request) (Response, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Response{}, fmt.Errorf("beginning bootstrap transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM tenants)`).Scan(&exists); err != nil {
		return Response{}, fmt.Errorf("checking existing tenants: %w", err)
	}
	if exists {
		return Response{}, ErrAlreadyBootstrapped
	}

	tenantID := idgen.New()
	if _, err := tx.Exec(ctx, `INSERT INTO tenants (id, name) VALUES ($1, $2)`, tenantID, req.Name); err != nil {
		return Response{}, fmt.Errorf("creating tenant: %w", err)
	}

	raw, hash, prefix := apikey.GenerateSecret()
	keyID := idgen.New()
	if _, err := tx.Exec(ctx,
		`INSERT INTO api_keys (id, tenant_id, is_root, key_hash, key_prefix, description)
		 VALUES ($1, $2, true, $3, $4, 'root credential')`,
		keyID, tenantID, hash, prefix,
	); err != nil {
		return Response{}, fmt.Errorf("creating root credential: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Response{}, fmt.Errorf("committing bootstrap transaction: %w", err)
	}

	return Response{
		TenantID:  tenantID,
		Name:      req.Name,
		KeyID:     keyID,
		KeyPrefix: prefix,
		Secret:    raw,
	}, nil
}
