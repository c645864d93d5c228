package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	cacheTTL          = 60 * time.Second
	cacheMaxEntries   = 10_000
	lastUsedDebounce  = 60 * time.Second
)

// apiKeyRow is the persisted shape of an api_keys row relevant to
// resolution.
type apiKeyRow struct {
	ID        string
	Tenant    string
	Project   *string
	IsRoot    bool
	Role      *string
	Hash      string
	RevokedAt *time.Time
}

type cacheEntry struct {
	row      apiKeyRow
	cachedAt time.Time
}

// APIKeyResolver resolves opaque `lore_sk_...` bearer tokens to Principals,
// implementing the cache/debounce/eviction contract of spec §4.2 (grounded
// on original_source's auth.py in-process cache).
type APIKeyResolver struct {
	pool   *pgxpool.Pool
	logger *slog.Logger

	mu       sync.Mutex
	cache    map[string]cacheEntry
	lastUsed map[string]time.Time
}

// NewAPIKeyResolver constructs a resolver backed by pool.
func NewAPIKeyResolver(pool *pgxpool.Pool, logger *slog.Logger) *APIKeyResolver {
	return &APIKeyResolver{
		pool:     pool,
		logger:   logger,
		cache:    make(map[string]cacheEntry),
		lastUsed: make(map[string]time.Time),
	}
}

// Resolve validates rawKey (the full secret including the lore_sk_ prefix)
// and returns the Principal it authenticates.
func (a *APIKeyResolver) Resolve(ctx context.Context, rawKey string) (*Principal, error) {
	hash := hashKey(rawKey)

	if row, ok := a.getCached(hash); ok {
		return a.principalFromRow(row)
	}

	row, err := a.lookup(ctx, hash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidAPIKey
		}
		return nil, err
	}

	if subtle.ConstantTimeCompare([]byte(row.Hash), []byte(hash)) != 1 {
		return nil, ErrInvalidAPIKey
	}

	a.putCached(hash, row)

	principal, err := a.principalFromRow(row)
	if err != nil {
		return nil, err
	}

	a.maybeTouchLastUsed(row.ID)

	return principal, nil
}

// InvalidateKey synchronously drops every cache entry for keyID, called on
// revoke so a freshly revoked key can never be served stale (spec §4.2).
func (a *APIKeyResolver) InvalidateKey(keyID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for hash, entry := range a.cache {
		if entry.row.ID == keyID {
			delete(a.cache, hash)
		}
	}
}

func (a *APIKeyResolver) getCached(hash string) (apiKeyRow, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	entry, ok := a.cache[hash]
	if !ok {
		return apiKeyRow{}, false
	}
	if time.Since(entry.cachedAt) >= cacheTTL {
		delete(a.cache, hash)
		return apiKeyRow{}, false
	}
	return entry.row, true
}

func (a *APIKeyResolver) putCached(hash string, row apiKeyRow) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.cache) >= cacheMaxEntries {
		a.evictOldestHalfLocked()
	}
	a.cache[hash] = cacheEntry{row: row, cachedAt: time.Now()}
}

// evictOldestHalfLocked drops the oldest half of cache entries by insertion
// time. Caller holds a.mu.
func (a *APIKeyResolver) evictOldestHalfLocked() {
	type keyed struct {
		hash string
		at   time.Time
	}
	entries := make([]keyed, 0, len(a.cache))
	for h, e := range a.cache {
		entries = append(entries, keyed{hash: h, at: e.cachedAt})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].at.Before(entries[j].at) })
	for _, e := range entries[:len(entries)/2] {
		delete(a.cache, e.hash)
	}
}

func (a *APIKeyResolver) principalFromRow(row apiKeyRow) (*Principal, error) {
	if row.RevokedAt != nil {
		return nil, ErrKeyRevoked
	}

	role := RoleWriter
	switch {
	case row.Role != nil && *row.Role != "":
		role = *row.Role
	case row.IsRoot:
		role = RoleAdmin
	}

	project := ""
	if row.Project != nil {
		project = *row.Project
	}

	return &Principal{
		Tenant:  row.Tenant,
		Role:    role,
		Project: project,
		KeyID:   row.ID,
	}, nil
}

func (a *APIKeyResolver) lookup(ctx context.Context, hash string) (apiKeyRow, error) {
	var row apiKeyRow
	err := a.pool.QueryRow(ctx,
		`SELECT id, tenant_id, project, is_root, role, key_hash, revoked_at
		   FROM api_keys
		  WHERE key_hash = $1`,
		hash,
	).Scan(&row.ID, &row.Tenant, &row.Project, &row.IsRoot, &row.Role, &row.Hash, &row.RevokedAt)
	return row, err
}

// maybeTouchLastUsed schedules a fire-and-forget, debounced last_used_at
// write: at most one per credential per lastUsedDebounce window.
func (a *APIKeyResolver) maybeTouchLastUsed(keyID string) {
	a.mu.Lock()
	last, scheduled := a.lastUsed[keyID]
	if scheduled && time.Since(last) < lastUsedDebounce {
		a.mu.Unlock()
		return
	}
	a.lastUsed[keyID] = time.Now()
	a.mu.Unlock()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := a.pool.Exec(ctx, `UPDATE api_keys SET last_used_at = now() WHERE id = $1`, keyID); err != nil {
			a.logger.Debug("api key resolver: failed to update last_used_at", "key_id", keyID, "error", err)
		}
	}()
}

func hashKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
