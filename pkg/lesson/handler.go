package lesson

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lorehq/loreserver/internal/audit"
	"github.com/lorehq/loreserver/internal/auth"
	"github.com/lorehq/loreserver/internal/httpserver"
)

// Handler provides HTTP handlers for the Lesson Engine (spec §4.5). The
// caller mounts Routes under an authenticated router and applies
// auth.RequireRole per spec §4.5's role table.
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

// Routes mounts the lesson routes. The caller applies the base reader role
// check around this router; Routes itself escalates Create/Update/Delete/
// Import/Rate to writer, per spec §4.5's role table (read and search/export
// stay at reader).
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.handleList)
	r.Post("/search", h.handleSearch)
	r.Get("/export", h.handleExport)
	r.Get("/{id}", h.handleGet)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRole(auth.RoleWriter))
		r.Post("/", h.handleCreate)
		r.Post("/import", h.handleImport)
		r.Patch("/{id}", h.handleUpdate)
		r.Delete("/{id}", h.handleDelete)
		r.Post("/{id}/rate", h.handleRate)
	})

	return r
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	p := auth.FromRequest(r)
	resp, err := h.service.Create(r.Context(), p.Tenant, p.Project, req)
	if err != nil {
		h.logger.Error("creating lesson", "error", err)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to create lesson")
		return
	}
	httpserver.Respond(w, http.StatusCreated, resp)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	p := auth.FromRequest(r)
	id := chi.URLParam(r, "id")

	resp, err := h.service.Get(r.Context(), p.Tenant, p.Project, id)
	if err != nil {
		if IsNotFound(err) {
			httpserver.RespondError(w, http.StatusNotFound, "not_found", "lesson not found")
			return
		}
		h.logger.Error("getting lesson", "error", err, "id", id)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to get lesson")
		return
	}
	httpserver.Respond(w, http.StatusOK, resp)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	p := auth.FromRequest(r)

	params, err := httpserver.ParseOffsetParams(r)
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "invalid_query", err.Error())
		return
	}

	q := r.URL.Query()
	f := ListFilter{
		Text:     q.Get("q"),
		Category: q.Get("category"),
		Limit:    params.Limit,
		Offset:   params.Offset,
	}
	if v := q.Get("min_reputation"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			httpserver.RespondError(w, http.StatusBadRequest, "invalid_query", "min_reputation must be an integer")
			return
		}
		f.MinReputation = &n
	}

	resp, err := h.service.List(r.Context(), p.Tenant, p.Project, f)
	if err != nil {
		h.logger.Error("listing lessons", "error", err)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to list lessons")
		return
	}
	httpserver.Respond(w, http.StatusOK, resp)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var req UpdateRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	p := auth.FromRequest(r)
	id := chi.URLParam(r, "id")

	resp, err := h.service.Update(r.Context(), p.Tenant, p.Project, id, req)
	switch {
	case err == nil:
		httpserver.Respond(w, http.StatusOK, resp)
	case errors.Is(err, ErrNoFields):
		httpserver.RespondError(w, http.StatusUnprocessableEntity, "validation_error", "at least one field must be set")
	case IsNotFound(err):
		httpserver.RespondError(w, http.StatusNotFound, "not_found", "lesson not found")
	default:
		h.logger.Error("updating lesson", "error", err, "id", id)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to update lesson")
	}
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	p := auth.FromRequest(r)
	id := chi.URLParam(r, "id")

	err := h.service.Delete(r.Context(), p.Tenant, p.Project, id)
	switch {
	case err == nil:
		httpserver.Respond(w, http.StatusNoContent, nil)
	case IsNotFound(err):
		httpserver.RespondError(w, http.StatusNotFound, "not_found", "lesson not found")
	default:
		h.logger.Error("deleting lesson", "error", err, "id", id)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to delete lesson")
	}
}

func (h *Handler) handleRate(w http.ResponseWriter, r *http.Request) {
	var req RateRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	p := auth.FromRequest(r)
	id := chi.URLParam(r, "id")

	resp, err := h.service.Rate(r.Context(), p.Tenant, p.Project, id, p.KeyID, req.Delta)
	switch {
	case err == nil:
		httpserver.Respond(w, http.StatusOK, resp)
	case IsNotFound(err):
		httpserver.RespondError(w, http.StatusNotFound, "not_found", "lesson not found")
	default:
		h.logger.Error("rating lesson", "error", err, "id", id)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to rate lesson")
	}
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	p := auth.FromRequest(r)
	resp, err := h.service.Search(r.Context(), p.Tenant, p.Project, req)
	if err != nil {
		h.logger.Error("searching lessons", "error", err)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to search lessons")
		return
	}
	httpserver.Respond(w, http.StatusOK, resp)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	p := auth.FromRequest(r)

	resp, err := h.service.Export(r.Context(), p.Tenant, p.Project)
	if err != nil {
		h.logger.Error("exporting lessons", "error", err)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to export lessons")
		return
	}
	httpserver.Respond(w, http.StatusOK, resp)
}

func (h *Handler) handleImport(w http.ResponseWriter, r *http.Request) {
	var req ImportRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	p := auth.FromRequest(r)
	resp, err := h.service.Import(r.Context(), p.Tenant, p.Project, req)
	if err != nil {
		h.logger.Error("importing lessons", "error", err)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to import lessons")
		return
	}
	httpserver.Respond(w, http.StatusOK, resp)
}
