package auth

import (
	"net/http"
	"strings"

	"github.com/lorehq/loreserver/internal/httpserver"
)

// Middleware resolves the Authorization header into a Principal and stores
// it on the request context, along with the tenant for access logging. It
// is the last stage of the request pipeline before handlers (spec §4.4).
func Middleware(resolver *Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bearer := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")

			principal, err := resolver.Resolve(r.Context(), bearer)
			if err != nil {
				respondAuthError(w, err)
				return
			}

			ctx := WithPrincipal(r.Context(), principal)
			ctx = httpserver.WithTenant(ctx, principal.Tenant)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func respondAuthError(w http.ResponseWriter, err error) {
	if authErr, ok := err.(*Error); ok {
		httpserver.RespondError(w, authErr.Status, authErr.Code, authErr.Message)
		return
	}
	httpserver.RespondError(w, http.StatusUnauthorized, ErrInvalidAPIKey.Code, err.Error())
}
