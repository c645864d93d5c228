package auth

import (
	"net/http"

	"github.com/lorehq/loreserver/internal/httpserver"
)

// RequireRole returns middleware rejecting requests whose Principal has a
// lower privilege level than min (reader ⊂ writer ⊂ admin, spec §4.2).
// Middleware always resolves a Principal or short-circuits with an auth
// error first, so a nil Principal here would be a wiring bug rather than an
// expected case — HasRole on a nil receiver still safely denies.
func RequireRole(min string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := FromContext(r.Context())
			if !p.HasRole(min) {
				httpserver.RespondError(w, http.StatusForbidden, ErrInsufficientRole.Code, ErrInsufficientRole.Message)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
