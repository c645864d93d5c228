// Package sharing implements the sharing/community configuration, deny
// list, audit listing, stats, and purge surfaces of spec §4.7: an org's
// policy for letting its lessons flow into shared/community recall, plus
// the audit trail and the irreversible tenant-data purge.
package sharing

import "time"

// Config is the tenant-wide sharing policy.
type Config struct {
	Enabled              bool      `json:"enabled"`
	HumanReviewEnabled   bool      `json:"human_review_enabled"`
	RateLimitPerHour     int       `json:"rate_limit_per_hour"`
	VolumeAlertThreshold int       `json:"volume_alert_threshold"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// ConfigUpdate is the JSON body for PUT /v1/sharing/config; every field is
// optional so a partial update only touches what's set.
type ConfigUpdate struct {
	Enabled              *bool `json:"enabled"`
	HumanReviewEnabled   *bool `json:"human_review_enabled"`
	RateLimitPerHour     *int  `json:"rate_limit_per_hour" validate:"omitempty,gte=0"`
	VolumeAlertThreshold *int  `json:"volume_alert_threshold" validate:"omitempty,gte=0"`
}

// AgentConfig is a single agent's participation in sharing: whether it
// shares at all, and which lesson categories it's allowed to share.
type AgentConfig struct {
	AgentID    string    `json:"agent_id"`
	Enabled    bool      `json:"enabled"`
	Categories []string  `json:"categories"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// AgentConfigUpdate is the JSON body for PUT /v1/sharing/agents/{agent_id}.
type AgentConfigUpdate struct {
	Enabled    *bool     `json:"enabled"`
	Categories *[]string `json:"categories"`
}

// DenyRule blocks lessons matching Pattern (literal substring, or a regex
// when IsRegex is set) from ever being shared.
type DenyRule struct {
	ID        string    `json:"id"`
	Pattern   string    `json:"pattern"`
	IsRegex   bool      `json:"is_regex"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// DenyRuleCreate is the JSON body for POST /v1/sharing/deny-list.
type DenyRuleCreate struct {
	Pattern string `json:"pattern" validate:"required"`
	IsRegex bool   `json:"is_regex"`
	Reason  string `json:"reason"`
}

// Stats summarizes a tenant's sharing activity.
type Stats struct {
	CountShared  int            `json:"count_shared"`
	LastShared   *time.Time     `json:"last_shared,omitempty"`
	AuditSummary map[string]int `json:"audit_summary"`
}

// PurgeRequest is the JSON body for POST /v1/sharing/purge; Confirmation
// must be the literal string "PURGE" (spec §4.7).
type PurgeRequest struct {
	Confirmation string `json:"confirmation" validate:"required"`
}

// PurgeResponse reports what an irreversible purge removed.
type PurgeResponse struct {
	DeletedLessons int    `json:"deleted_lessons"`
	Status         string `json:"status"`
}

func ensureStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
