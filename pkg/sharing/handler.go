package sharing

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lorehq/loreserver/internal/audit"
	"github.com/lorehq/loreserver/internal/auth"
	"github.com/lorehq/loreserver/internal/httpserver"
)

// Handler provides HTTP handlers for the sharing/audit/stats/purge surface
// (spec §4.7). The caller mounts Routes under an authenticated router and
// requires admin for every route, purge included.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler creates a Handler.
func NewHandler(pool *pgxpool.Pool, auditWriter *audit.Writer, logger *slog.Logger) *Handler {
	return &Handler{
		logger:  logger,
		service: NewService(pool, auditWriter, logger),
	}
}

// Routes mounts the sharing routes.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/config", h.handleGetConfig)
	r.Put("/config", h.handleUpdateConfig)
	r.Get("/agents", h.handleListAgentConfigs)
	r.Get("/agents/{agentID}", h.handleGetAgentConfig)
	r.Put("/agents/{agentID}", h.handleUpsertAgentConfig)
	r.Get("/deny-list", h.handleListDenyRules)
	r.Post("/deny-list", h.handleCreateDenyRule)
	r.Delete("/deny-list/{id}", h.handleDeleteDenyRule)
	r.Get("/audit", h.handleListAudit)
	r.Get("/stats", h.handleStats)
	r.Post("/purge", h.handlePurge)
	return r
}

func (h *Handler) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	p := auth.FromRequest(r)
	cfg, err := h.service.GetConfig(r.Context(), p.Tenant)
	if err != nil {
		h.logger.Error("getting sharing config", "error", err)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to get sharing config")
		return
	}
	httpserver.Respond(w, http.StatusOK, cfg)
}

func (h *Handler) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	var req ConfigUpdate
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	p := auth.FromRequest(r)
	cfg, err := h.service.UpdateConfig(r.Context(), p.Tenant, p.KeyID, req)
	if err != nil {
		h.logger.Error("updating sharing config", "error", err)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to update sharing config")
		return
	}
	httpserver.Respond(w, http.StatusOK, cfg)
}

func (h *Handler) handleListAgentConfigs(w http.ResponseWriter, r *http.Request) {
	p := auth.FromRequest(r)
	items, err := h.service.ListAgentConfigs(r.Context(), p.Tenant)
	if err != nil {
		h.logger.Error("listing agent configs", "error", err)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to list agent configs")
		return
	}
	httpserver.Respond(w, http.StatusOK, items)
}

func (h *Handler) handleGetAgentConfig(w http.ResponseWriter, r *http.Request) {
	p := auth.FromRequest(r)
	agentID := chi.URLParam(r, "agentID")

	cfg, err := h.service.GetAgentConfig(r.Context(), p.Tenant, agentID)
	if err != nil {
		h.logger.Error("getting agent config", "error", err, "agent_id", agentID)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to get agent config")
		return
	}
	httpserver.Respond(w, http.StatusOK, cfg)
}

func (h *Handler) handleUpsertAgentConfig(w http.ResponseWriter, r *http.Request) {
	var req AgentConfigUpdate
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	p := auth.FromRequest(r)
	agentID := chi.URLParam(r, "agentID")

	cfg, err := h.service.UpsertAgentConfig(r.Context(), p.Tenant, agentID, p.KeyID, req)
	if err != nil {
		h.logger.Error("upserting agent config", "error", err, "agent_id", agentID)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to update agent config")
		return
	}
	httpserver.Respond(w, http.StatusOK, cfg)
}

func (h *Handler) handleListDenyRules(w http.ResponseWriter, r *http.Request) {
	p := auth.FromRequest(r)
	rules, err := h.service.ListDenyRules(r.Context(), p.Tenant)
	if err != nil {
		h.logger.Error("listing deny rules", "error", err)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to list deny rules")
		return
	}
	httpserver.Respond(w, http.StatusOK, rules)
}

func (h *Handler) handleCreateDenyRule(w http.ResponseWriter, r *http.Request) {
	var req DenyRuleCreate
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	p := auth.FromRequest(r)
	rule, err := h.service.CreateDenyRule(r.Context(), p.Tenant, p.KeyID, req)
	if err != nil {
		h.logger.Error("creating deny rule", "error", err)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to create deny rule")
		return
	}
	httpserver.Respond(w, http.StatusCreated, rule)
}

func (h *Handler) handleDeleteDenyRule(w http.ResponseWriter, r *http.Request) {
	p := auth.FromRequest(r)
	id := chi.URLParam(r, "id")

	err := h.service.DeleteDenyRule(r.Context(), p.Tenant, p.KeyID, id)
	switch {
	case err == nil:
		httpserver.Respond(w, http.StatusNoContent, nil)
	case errors.Is(err, pgx.ErrNoRows):
		httpserver.RespondError(w, http.StatusNotFound, "not_found", "deny rule not found")
	default:
		h.logger.Error("deleting deny rule", "error", err, "id", id)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to delete deny rule")
	}
}

func (h *Handler) handleListAudit(w http.ResponseWriter, r *http.Request) {
	p := auth.FromRequest(r)
	q := r.URL.Query()

	f := audit.ListFilter{EventType: q.Get("event_type")}
	if v := q.Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			httpserver.RespondError(w, http.StatusBadRequest, "invalid_query", "from must be RFC3339")
			return
		}
		f.From = &t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			httpserver.RespondError(w, http.StatusBadRequest, "invalid_query", "to must be RFC3339")
			return
		}
		f.To = &t
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			httpserver.RespondError(w, http.StatusBadRequest, "invalid_query", "limit must be a positive integer")
			return
		}
		f.Limit = n
	}

	records, err := h.service.ListAudit(r.Context(), p.Tenant, f)
	if err != nil {
		h.logger.Error("listing audit events", "error", err)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to list audit events")
		return
	}
	httpserver.Respond(w, http.StatusOK, records)
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	p := auth.FromRequest(r)
	stats, err := h.service.Stats(r.Context(), p.Tenant)
	if err != nil {
		h.logger.Error("getting sharing stats", "error", err)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to get sharing stats")
		return
	}
	httpserver.Respond(w, http.StatusOK, stats)
}

func (h *Handler) handlePurge(w http.ResponseWriter, r *http.Request) {
	var req PurgeRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}
	if req.Confirmation != "PURGE" {
		httpserver.RespondError(w, http.StatusBadRequest, "confirmation_required", `confirmation must be "PURGE"`)
		return
	}

	p := auth.FromRequest(r)
	resp, err := h.service.Purge(r.Context(), p.Tenant, p.KeyID)
	if err != nil {
		h.logger.Error("purging tenant data", "error", err, "tenant", p.Tenant)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to purge tenant data")
		return
	}
	httpserver.Respond(w, http.StatusOK, resp)
}
