package apikey

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lorehq/loreserver/internal/idgen"
)

const secretPrefix = "lore_sk_"

// Service encapsulates API key business logic.
type Service struct {
	store  *Store
	logger *slog.Logger

	// invalidate is called synchronously on revoke so the resolver's cache
	// can never serve a just-revoked key (spec §4.2/§4.6).
	invalidate func(keyID string)
}

// NewService creates a Service backed by pool. invalidate may be nil.
func NewService(pool *pgxpool.Pool, logger *slog.Logger, invalidate func(string)) *Service {
	if invalidate == nil {
		invalidate = func(string) {}
	}
	return &Service{
		store:      NewStore(pool),
		logger:     logger,
		invalidate: invalidate,
	}
}

// List returns every key for the given tenant.
func (s *Service) List(ctx context.Context, tenantID string) ([]Response, error) {
	rows, err := s.store.List(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("listing api keys: %w", err)
	}

	items := make([]Response, 0, len(rows))
	for i := range rows {
		items = append(items, rows[i].ToResponse())
	}
	return items, nil
}

// Create mints a new 64-hex-char secret, stores its hash, and returns the
// raw secret once (spec §4.6).
func (s *Service) Create(ctx context.Context, tenantID string, req CreateRequest) (CreateResponse, error) {
	raw, hash, prefix := GenerateSecret()

	var role *string
	if req.Role != "" {
		role = &req.Role
	}
	var project *string
	if req.Project != "" {
		project = &req.Project
	}

	row, err := s.store.Create(ctx, idgen.New(), CreateParams{
		TenantID:    tenantID,
		Project:     project,
		IsRoot:      false,
		Role:        role,
		KeyHash:     hash,
		KeyPrefix:   prefix,
		Description: req.Description,
	})
	if err != nil {
		return CreateResponse{}, fmt.Errorf("creating api key: %w", err)
	}

	return CreateResponse{
		Response: row.ToResponse(),
		Secret:   raw,
	}, nil
}

// Revoke soft-deletes the key and synchronously evicts it from the resolver
// cache. See Store.Revoke for the last-root-credential protection.
func (s *Service) Revoke(ctx context.Context, id, tenantID string) error {
	if err := s.store.Revoke(ctx, id, tenantID); err != nil {
		return err
	}
	s.invalidate(id)
	return nil
}

// GenerateSecret mints a random 64-hex-char secret with the lore_sk_ prefix,
// its SHA-256 hash, and a 12-char display prefix (spec §4.6). Exported for
// the bootstrap package's root-credential minting.
func GenerateSecret() (raw, hash, prefix string) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand failed: " + err.Error())
	}
	raw = secretPrefix + hex.EncodeToString(b)
	h := sha256.Sum256([]byte(raw))
	hash = hex.EncodeToString(h[:])
	prefix = raw[:12]
	return
}
