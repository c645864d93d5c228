package sharing

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lorehq/loreserver/internal/audit"
)

// Service wraps Store with the audit side-effects spec §4.7 requires
// around every sharing-policy mutation and the purge endpoint.
type Service struct {
	store  *Store
	pool   *pgxpool.Pool
	audit  *audit.Writer
	logger *slog.Logger
}

// NewService creates a Service backed by pool.
func NewService(pool *pgxpool.Pool, auditWriter *audit.Writer, logger *slog.Logger) *Service {
	return &Service{
		store:  NewStore(pool),
		pool:   pool,
		audit:  auditWriter,
		logger: logger,
	}
}

// GetConfig returns the tenant's sharing config.
func (s *Service) GetConfig(ctx context.Context, tenant string) (Config, error) {
	return s.store.GetConfig(ctx, tenant)
}

// UpdateConfig applies a partial sharing config update.
func (s *Service) UpdateConfig(ctx context.Context, tenant, initiatedBy string, u ConfigUpdate) (Config, error) {
	cfg, err := s.store.UpdateConfig(ctx, tenant, u)
	if err != nil {
		return Config{}, err
	}
	s.logAsync(ctx, tenant, "sharing_config_updated", initiatedBy, nil)
	return cfg, nil
}

// ListAgentConfigs returns every per-agent sharing override.
func (s *Service) ListAgentConfigs(ctx context.Context, tenant string) ([]AgentConfig, error) {
	return s.store.ListAgentConfigs(ctx, tenant)
}

// GetAgentConfig returns one agent's sharing override.
func (s *Service) GetAgentConfig(ctx context.Context, tenant, agentID string) (AgentConfig, error) {
	return s.store.GetAgentConfig(ctx, tenant, agentID)
}

// UpsertAgentConfig creates or updates one agent's sharing override.
func (s *Service) UpsertAgentConfig(ctx context.Context, tenant, agentID, initiatedBy string, u AgentConfigUpdate) (AgentConfig, error) {
	cfg, err := s.store.UpsertAgentConfig(ctx, tenant, agentID, u)
	if err != nil {
		return AgentConfig{}, err
	}
	s.logAsync(ctx, tenant, "agent_sharing_config_updated", initiatedBy, nil)
	return cfg, nil
}

// ListDenyRules returns every deny-list rule for a tenant.
func (s *Service) ListDenyRules(ctx context.Context, tenant string) ([]DenyRule, error) {
	return s.store.ListDenyRules(ctx, tenant)
}

// CreateDenyRule inserts a new deny-list rule.
func (s *Service) CreateDenyRule(ctx context.Context, tenant, initiatedBy string, c DenyRuleCreate) (DenyRule, error) {
	rule, err := s.store.CreateDenyRule(ctx, tenant, c)
	if err != nil {
		return DenyRule{}, err
	}
	s.logAsync(ctx, tenant, "deny_rule_created", initiatedBy, nil)
	return rule, nil
}

// DeleteDenyRule removes a deny-list rule.
func (s *Service) DeleteDenyRule(ctx context.Context, tenant, initiatedBy, id string) error {
	if err := s.store.DeleteDenyRule(ctx, tenant, id); err != nil {
		return err
	}
	s.logAsync(ctx, tenant, "deny_rule_deleted", initiatedBy, nil)
	return nil
}

// ListAudit returns a tenant's audit trail.
func (s *Service) ListAudit(ctx context.Context, tenant string, f audit.ListFilter) ([]audit.Record, error) {
	return audit.List(ctx, s.pool, tenant, f)
}

// Stats aggregates lesson and audit-event counts for a tenant.
func (s *Service) Stats(ctx context.Context, tenant string) (Stats, error) {
	return s.store.Stats(ctx, tenant)
}

// Purge irreversibly deletes every in-scope row for a tenant, then writes
// the terminal "purge" audit event from a connection outside the purge
// transaction so the event survives the deletion it describes (spec §4.7).
func (s *Service) Purge(ctx context.Context, tenant, initiatedBy string) (PurgeResponse, error) {
	deleted, err := s.store.Purge(ctx, tenant)
	if err != nil {
		return PurgeResponse{}, err
	}

	if err := audit.WriteDirect(ctx, s.pool, audit.Event{
		Tenant:      tenant,
		EventType:   "purge",
		InitiatedBy: initiatedBy,
	}); err != nil {
		s.logger.Error("writing terminal purge audit event", "error", err, "tenant", tenant)
	}

	return PurgeResponse{DeletedLessons: deleted, Status: "purged"}, nil
}

// logAsync fires an audit event through the buffered writer for
// non-transactional config mutations; it never blocks the caller.
func (s *Service) logAsync(ctx context.Context, tenant, eventType, initiatedBy string, lessonID *string) {
	if s.audit == nil {
		return
	}
	s.audit.Log(ctx, audit.Event{
		Tenant:      tenant,
		EventType:   eventType,
		LessonID:    lessonID,
		InitiatedBy: initiatedBy,
	})
}
