package auth

import "context"

const (
	ModeAPIKeyOnly   = "api-key-only"
	ModeOIDCRequired = "oidc-required"
	ModeDual         = "dual"
)

const apiKeyPrefix = "lore_sk_"

// Resolver dispatches a bearer token to the API-key or JWT path by prefix
// and enforces the configured AUTH_MODE (spec §4.2).
type Resolver struct {
	apiKeys *APIKeyResolver
	idp     *IdentityProviderClient
	mode    string
}

// NewResolver builds a combined resolver. idp may be nil when no OIDC
// issuer is configured.
func NewResolver(apiKeys *APIKeyResolver, idp *IdentityProviderClient, mode string) *Resolver {
	return &Resolver{apiKeys: apiKeys, idp: idp, mode: mode}
}

// Resolve validates bearer (the raw token, Authorization prefix already
// stripped) and returns the Principal it authenticates.
func (r *Resolver) Resolve(ctx context.Context, bearer string) (*Principal, error) {
	if bearer == "" {
		return nil, ErrMissingAPIKey
	}

	isAPIKey := len(bearer) > len(apiKeyPrefix) && bearer[:len(apiKeyPrefix)] == apiKeyPrefix

	if isAPIKey {
		if r.mode == ModeOIDCRequired {
			return nil, ErrAPIKeyNotAllowed
		}
		return r.apiKeys.Resolve(ctx, bearer)
	}

	if r.mode == ModeAPIKeyOnly || r.idp == nil {
		return nil, ErrOIDCNotConfigured
	}
	return r.idp.Validate(bearer)
}
