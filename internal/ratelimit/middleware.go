package ratelimit

import (
	"net/http"
	"strconv"

	"github.com/lorehq/loreserver/internal/httpserver"
)

// Middleware builds HTTP middleware enforcing limiter against the raw
// Authorization header value, so even unauthenticated callers are bounded by
// whatever credential (or lack of one) they present. It runs ahead of auth
// resolution in the request pipeline (spec §4.4) so rejection stays cheap.
func Middleware(limiter Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("Authorization")
			if key == "" {
				key = "anonymous:" + r.RemoteAddr
			}

			result, err := limiter.Allow(r.Context(), key)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))

			if !result.Allowed {
				w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfterS))
				httpserver.RespondError(w, http.StatusTooManyRequests, "rate_limit_exceeded", "too many requests, retry later")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
