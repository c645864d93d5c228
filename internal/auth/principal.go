// Package auth resolves a bearer token into a Principal (spec §4.2): API
// keys and JWTs share one resolver contract, one context-storage convention,
// and one role hierarchy.
package auth

import (
	"context"
	"net/http"
)

const (
	RoleReader = "reader"
	RoleWriter = "writer"
	RoleAdmin  = "admin"
)

// roleLevel orders the hierarchy reader ⊂ writer ⊂ admin (spec §4.2).
var roleLevel = map[string]int{
	RoleReader: 10,
	RoleWriter: 20,
	RoleAdmin:  30,
}

// Principal is the resolved identity behind a request.
type Principal struct {
	Tenant string
	Role   string

	// Project is non-empty only for API-key principals scoped to a single
	// project; JWT principals never carry a project (spec §4.2).
	Project string

	// KeyID identifies the API key row this principal resolved from, empty
	// for JWT principals.
	KeyID string
}

// HasRole reports whether p's role is at least min in the hierarchy.
func (p *Principal) HasRole(min string) bool {
	if p == nil {
		return false
	}
	return roleLevel[p.Role] >= roleLevel[min]
}

type contextKey string

const principalKey contextKey = "principal"

// WithPrincipal stores p in ctx.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// FromContext retrieves the resolved Principal, or nil if unauthenticated.
func FromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey).(*Principal)
	return p
}

// FromRequest is a convenience wrapper over FromContext.
func FromRequest(r *http.Request) *Principal {
	return FromContext(r.Context())
}
