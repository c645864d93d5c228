package auth

import (
	"fmt"
	"log/slog"

	"github.com/golang-jwt/jwt/v5"
)

// IdentityProviderClient validates bearer JWTs against one OIDC issuer,
// constructed once per process (spec §4.8).
type IdentityProviderClient struct {
	issuer    string
	audience  string
	roleClaim string
	orgClaim  string
	jwks      *jwksCache
	logger    *slog.Logger
}

// NewIdentityProviderClient builds a client for the given issuer. roleClaim
// and orgClaim name the token claims carrying role and tenant respectively.
func NewIdentityProviderClient(issuer, audience, roleClaim, orgClaim string, logger *slog.Logger) *IdentityProviderClient {
	return &IdentityProviderClient{
		issuer:    issuer,
		audience:  audience,
		roleClaim: roleClaim,
		orgClaim:  orgClaim,
		jwks:      newJWKSCache(issuer + "/.well-known/jwks.json"),
		logger:    logger,
	}
}

// allowedSigningMethods is an explicit allowlist of asymmetric algorithms —
// no symmetric methods, no "none" (spec §4.8).
var allowedSigningMethods = map[string]bool{
	"RS256": true,
	"RS384": true,
	"RS512": true,
}

// Validate parses and verifies tokenString, then derives a Principal.
// Any IdP unreachability or validation failure is treated uniformly as
// ErrInvalidToken; the validator never propagates lower-level errors across
// its boundary (spec §4.8).
func (c *IdentityProviderClient) Validate(tokenString string) (*Principal, error) {
	claims := jwt.MapClaims{}

	parser := jwt.NewParser(jwt.WithValidMethods([]string{"RS256", "RS384", "RS512"}))
	token, err := parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		alg, _ := t.Header["alg"].(string)
		if !allowedSigningMethods[alg] {
			return nil, fmt.Errorf("signing method %q not allowed", alg)
		}
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, fmt.Errorf("token header missing kid")
		}
		return c.jwks.keyForKid(kid)
	})
	if err != nil || !token.Valid {
		c.logger.Warn("jwt validation failed", "error", err)
		return nil, ErrInvalidToken
	}

	if c.issuer != "" {
		if iss, ok := claims["iss"].(string); !ok || iss != c.issuer {
			c.logger.Warn("jwt validation failed: issuer mismatch")
			return nil, ErrInvalidToken
		}
	}

	if c.audience != "" && !audienceMatches(claims["aud"], c.audience) {
		c.logger.Warn("jwt validation failed: audience mismatch")
		return nil, ErrInvalidToken
	}

	tenant, _ := claims[c.orgClaim].(string)
	if tenant == "" {
		return nil, ErrMissingOrgClaim
	}

	role := RoleReader
	if raw, ok := claims[c.roleClaim].(string); ok {
		switch raw {
		case RoleReader, RoleWriter, RoleAdmin:
			role = raw
		}
	}

	return &Principal{Tenant: tenant, Role: role}, nil
}

func audienceMatches(aud any, expected string) bool {
	switch v := aud.(type) {
	case string:
		return v == expected
	case []interface{}:
		for _, a := range v {
			if s, ok := a.(string); ok && s == expected {
				return true
			}
		}
	}
	return false
}
