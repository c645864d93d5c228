// Package ratelimit implements the per-credential sliding-window limiter of
// spec §4.3: max N requests in W seconds, keyed by the raw bearer string so
// unauthenticated requests are limited by whatever they present.
package ratelimit

import "context"

// Result is the outcome of a single Allow check.
type Result struct {
	Allowed      bool
	RetryAfterS  int
	Remaining    int
	Limit        int
}

// Limiter is implemented identically by the memory and shared-store backends.
type Limiter interface {
	// Allow admits or rejects one request for the given key, recording it
	// against the window if admitted.
	Allow(ctx context.Context, key string) (Result, error)
}
