package bootstrap

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lorehq/loreserver/internal/httpserver"
)

// Handler provides the unauthenticated bootstrap endpoint.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler creates a Handler.
func NewHandler(pool *pgxpool.Pool, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, service: NewService(pool)}
}

// Routes mounts the bootstrap route. The caller must NOT apply auth
// middleware to this router (spec §4.10: "unauthenticated").
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/init", h.handleInit)
	return r
}

func (h *Handler) handleInit(w http.ResponseWriter, r *http.Request) {
	var req Request
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	resp, err := h.service.Init(r.Context(), req)
	switch {
	case err == nil:
		httpserver.Respond(w, http.StatusCreated, resp)
	case errors.Is(err, ErrAlreadyBootstrapped):
		httpserver.RespondError(w, http.StatusConflict, "conflict", "this server has already been bootstrapped")
	default:
		h.logger.Error("bootstrapping org", "error", err)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to bootstrap organization")
	}
}
