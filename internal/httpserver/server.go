package httpserver

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/lorehq/loreserver/internal/platform"
)

// Server holds the HTTP server dependencies. V1Router is where domain
// handlers are mounted; it already carries request-id, body-size-cap,
// rate-limit and access-log middleware (request pipeline, spec §4.4) — auth
// and RBAC middleware are layered on by the caller per-route.
type Server struct {
	Router  *chi.Mux
	V1Router chi.Router
	Logger  *slog.Logger
	DB      *pgxpool.Pool
	Redis   *redis.Client
	Metrics *prometheus.Registry

	startedAt time.Time
}

// Options configures the base server.
type Options struct {
	CORSAllowedOrigins []string
	MetricsEnabled     bool
	RateLimit          func(http.Handler) http.Handler // per-credential sliding window, may be nil
}

// NewServer wires the request pipeline and health/metrics endpoints. Domain
// handlers are mounted on the returned Server's V1Router by the caller.
func NewServer(opts Options, logger *slog.Logger, db *pgxpool.Pool, rdb *redis.Client, metricsReg *prometheus.Registry) *Server {
	s := &Server{
		Router:    chi.NewRouter(),
		Logger:    logger,
		DB:        db,
		Redis:     rdb,
		Metrics:   metricsReg,
		startedAt: time.Now(),
	}

	s.Router.Use(RequestID)
	s.Router.Use(middleware.Recoverer)
	s.Router.Use(Metrics)
	s.Router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	s.Router.Get("/healthz", s.handleHealthz)
	s.Router.Get("/readyz", s.handleReadyz)

	if opts.MetricsEnabled {
		s.Router.Handle("/metrics", promhttp.HandlerFor(metricsReg, promhttp.HandlerOpts{}))
	}

	s.Router.Route("/v1", func(r chi.Router) {
		r.Use(BodySizeCap)
		if opts.RateLimit != nil {
			r.Use(opts.RateLimit)
		}
		r.Use(Logger(logger))
		s.V1Router = r
	})

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	Respond(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReadyz additionally verifies the pgvector extension is installed,
// per spec §4.1's readiness probe.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := s.DB.Ping(ctx); err != nil {
		s.Logger.Error("readiness check: database ping failed", "error", err)
		RespondError(w, http.StatusServiceUnavailable, "internal_error", "database not ready")
		return
	}

	installed, err := platform.VectorExtensionInstalled(ctx, s.DB)
	if err != nil {
		s.Logger.Error("readiness check: vector extension probe failed", "error", err)
		RespondError(w, http.StatusServiceUnavailable, "internal_error", "vector extension check failed")
		return
	}
	if !installed {
		RespondError(w, http.StatusServiceUnavailable, "internal_error", "pgvector extension not installed")
		return
	}

	if s.Redis != nil {
		if err := s.Redis.Ping(ctx).Err(); err != nil {
			s.Logger.Error("readiness check: redis ping failed", "error", err)
			RespondError(w, http.StatusServiceUnavailable, "internal_error", "redis not ready")
			return
		}
	}

	Respond(w, http.StatusOK, map[string]string{"status": "ready"})
}
