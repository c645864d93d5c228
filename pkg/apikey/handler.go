package apikey

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lorehq/loreserver/internal/audit"
	"github.com/lorehq/loreserver/internal/auth"
	"github.com/lorehq/loreserver/internal/httpserver"
)

// Handler provides HTTP handlers for key management (spec §4.6), all
// mounted under an admin-only router by the caller.
type Handler struct {
	logger  *slog.Logger
	audit   *audit.Writer
	service *Service
}

// NewHandler creates a Handler. invalidate is wired to the auth resolver's
// cache eviction so a revoke takes effect immediately.
func NewHandler(logger *slog.Logger, auditWriter *audit.Writer, pool *pgxpool.Pool, invalidate func(string)) *Handler {
	return &Handler{
		logger:  logger,
		audit:   auditWriter,
		service: NewService(pool, logger, invalidate),
	}
}

// Routes mounts the key management routes. The caller applies
// auth.RequireRole(auth.RoleAdmin) to the parent router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.handleCreate)
	r.Get("/", h.handleList)
	r.Delete("/{id}", h.handleRevoke)
	return r
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	p := auth.FromRequest(r)
	resp, err := h.service.Create(r.Context(), p.Tenant, req)
	if err != nil {
		h.logger.Error("creating api key", "error", err)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to create api key")
		return
	}

	if h.audit != nil {
		h.audit.Log(r.Context(), audit.Event{
			Tenant:      p.Tenant,
			EventType:   "key_created",
			InitiatedBy: p.KeyID,
		})
	}

	httpserver.Respond(w, http.StatusCreated, resp)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	p := auth.FromRequest(r)

	items, err := h.service.List(r.Context(), p.Tenant)
	if err != nil {
		h.logger.Error("listing api keys", "error", err)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to list api keys")
		return
	}

	httpserver.Respond(w, http.StatusOK, map[string]any{
		"keys":  items,
		"count": len(items),
	})
}

func (h *Handler) handleRevoke(w http.ResponseWriter, r *http.Request) {
	p := auth.FromRequest(r)
	keyID := chi.URLParam(r, "id")

	err := h.service.Revoke(r.Context(), keyID, p.Tenant)
	switch {
	case err == nil:
	case errors.Is(err, pgx.ErrNoRows):
		httpserver.RespondError(w, http.StatusNotFound, "not_found", "api key not found")
		return
	case errors.Is(err, ErrAlreadyRevoked):
		httpserver.RespondError(w, http.StatusConflict, "key_revoked", "api key already revoked")
		return
	case errors.Is(err, ErrLastRootKey):
		httpserver.RespondError(w, http.StatusConflict, "last_root_key", "cannot revoke the last active root credential")
		return
	default:
		h.logger.Error("revoking api key", "error", err, "id", keyID)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to revoke api key")
		return
	}

	if h.audit != nil {
		h.audit.Log(r.Context(), audit.Event{
			Tenant:      p.Tenant,
			EventType:   "key_revoked",
			InitiatedBy: p.KeyID,
		})
	}

	httpserver.Respond(w, http.StatusNoContent, nil)
}
