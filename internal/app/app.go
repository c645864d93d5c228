// Package app wires configuration, infrastructure, and domain handlers into
// a running server (spec §4.1, §4.4).
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/lorehq/loreserver/internal/audit"
	"github.com/lorehq/loreserver/internal/auth"
	"github.com/lorehq/loreserver/internal/bootstrap"
	"github.com/lorehq/loreserver/internal/config"
	"github.com/lorehq/loreserver/internal/httpserver"
	"github.com/lorehq/loreserver/internal/platform"
	"github.com/lorehq/loreserver/internal/ratelimit"
	"github.com/lorehq/loreserver/internal/telemetry"
	"github.com/lorehq/loreserver/pkg/apikey"
	"github.com/lorehq/loreserver/pkg/lesson"
	"github.com/lorehq/loreserver/pkg/sharing"
)

// Run reads configuration, connects to infrastructure, applies migrations,
// and serves HTTP until ctx is cancelled.
func Run(ctx context.Context, cfg *config.Config) error {
	logger := telemetry.NewLogger(cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(logger)

	logger.Info("starting loreserver", "listen", cfg.ListenAddr(), "auth_mode", cfg.AuthMode)

	if err := platform.RunMigrations(cfg.DatabaseURL, cfg.MigrationsDir); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("migrations applied")

	db, err := platform.NewPostgresPool(ctx, cfg.DatabaseURL, cfg.DBMinConns, cfg.DBMaxConns)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()

	rdb, err := platform.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer rdb.Close()

	var limiter ratelimit.Limiter
	window := time.Duration(cfg.RateLimitWindowSecs) * time.Second
	if cfg.RateLimitBackend == "redis" {
		limiter = ratelimit.NewRedisLimiter(rdb, logger, cfg.RateLimitMax, window)
	} else {
		limiter = ratelimit.NewMemoryLimiter(cfg.RateLimitMax, window)
	}

	return serve(ctx, cfg, logger, db, rdb, limiter)
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *pgxpool.Pool, rdb *redis.Client, limiter ratelimit.Limiter) error {
	metricsReg := telemetry.NewMetricsRegistry(telemetry.All()...)
	telemetry.DBPoolSize.Set(float64(cfg.DBMaxConns))

	srv := httpserver.NewServer(httpserver.Options{
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		MetricsEnabled:     cfg.MetricsEnabled,
		RateLimit:          ratelimit.Middleware(limiter),
	}, logger, db, rdb, metricsReg)

	auditWriter := audit.NewWriter(db, logger)
	auditWriter.Start(ctx)
	defer auditWriter.Close()

	apiKeyResolver := auth.NewAPIKeyResolver(db, logger)

	var idp *auth.IdentityProviderClient
	if cfg.OIDCIssuer != "" {
		idp = auth.NewIdentityProviderClient(cfg.OIDCIssuer, cfg.OIDCAudience, cfg.OIDCRoleClaim, cfg.OIDCOrgClaim, logger)
		logger.Info("oidc authentication enabled", "issuer", cfg.OIDCIssuer)
	} else if cfg.AuthMode != "api-key-only" {
		logger.Info("oidc authentication disabled (OIDC_ISSUER not set)")
	}

	resolver := auth.NewResolver(apiKeyResolver, idp, cfg.AuthMode)

	// Bootstrap is the one unauthenticated route; it's mounted on the base
	// router rather than V1Router, which already carries auth middleware.
	bootstrapHandler := bootstrap.NewHandler(db, logger)
	srv.Router.Route("/v1/org", func(r chi.Router) {
		r.Use(httpserver.BodySizeCap)
		r.Mount("/", bootstrapHandler.Routes())
	})

	srv.V1Router.Use(auth.Middleware(resolver))

	apikeyHandler := apikey.NewHandler(logger, auditWriter, db, apiKeyResolver.InvalidateKey)
	srv.V1Router.Route("/keys", func(r chi.Router) {
		r.Use(auth.RequireRole(auth.RoleAdmin))
		r.Mount("/", apikeyHandler.Routes())
	})

	lessonHandler := lesson.NewHandler(db, auditWriter, logger)
	srv.V1Router.Route("/lessons", func(r chi.Router) {
		r.Use(auth.RequireRole(auth.RoleReader))
		r.Mount("/", lessonHandler.Routes())
	})

	sharingHandler := sharing.NewHandler(db, auditWriter, logger)
	srv.V1Router.Route("/sharing", func(r chi.Router) {
		r.Use(auth.RequireRole(auth.RoleAdmin))
		r.Mount("/", sharingHandler.Routes())
	})

	httpSrv := &http.Server{
		Addr:         cfg.ListenAddr(),
		Handler:      srv,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server listening", "addr", cfg.ListenAddr())
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
