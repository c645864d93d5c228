// Package apikey implements key management (spec §4.6): minting, listing,
// and revoking the opaque bearer credentials the auth resolver validates.
package apikey

import "time"

// CreateRequest is the JSON body for POST /v1/keys.
type CreateRequest struct {
	Description string `json:"description"`
	Role        string `json:"role" validate:"omitempty,oneof=reader writer admin"`
	Project     string `json:"project"`
}

// Response is the JSON shape for a single key, never including the secret.
type Response struct {
	ID          string     `json:"id"`
	KeyPrefix   string     `json:"key_prefix"`
	Description string     `json:"description"`
	Role        string     `json:"role"`
	Project     string     `json:"project,omitempty"`
	IsRoot      bool       `json:"is_root"`
	LastUsedAt  *time.Time `json:"last_used_at,omitempty"`
	RevokedAt   *time.Time `json:"revoked_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// CreateResponse additionally carries the raw secret, shown exactly once.
type CreateResponse struct {
	Response
	Secret string `json:"secret"`
}

// Row is the persisted shape of an api_keys row.
type Row struct {
	ID          string
	TenantID    string
	Project     *string
	IsRoot      bool
	Role        *string
	KeyHash     string
	KeyPrefix   string
	Description string
	LastUsedAt  *time.Time
	RevokedAt   *time.Time
	CreatedAt   time.Time
}

// ToResponse converts a Row to its public DTO.
func (r *Row) ToResponse() Response {
	role := "writer"
	if r.Role != nil && *r.Role != "" {
		role = *r.Role
	} else if r.IsRoot {
		role = "admin"
	}

	resp := Response{
		ID:          r.ID,
		KeyPrefix:   r.KeyPrefix,
		Description: r.Description,
		Role:        role,
		IsRoot:      r.IsRoot,
		LastUsedAt:  r.LastUsedAt,
		RevokedAt:   r.RevokedAt,
		CreatedAt:   r.CreatedAt,
	}
	if r.Project != nil {
		resp.Project = *r.Project
	}
	return resp
}
