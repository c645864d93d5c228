package httpserver

import (
	"context"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/lorehq/loreserver/internal/telemetry"
)

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	tenantKey    contextKey = "tenant_id"
)

// RequestIDFromContext extracts the request ID from the context.
func RequestIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// WithTenant stashes the resolved tenant ID in the context for the access
// logger to pick up, without creating an import cycle with internal/auth.
func WithTenant(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantKey, tenantID)
}

// TenantFromContext extracts the tenant ID stashed by WithTenant, or "" if
// the request carries no authenticated tenant yet.
func TenantFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(tenantKey).(string); ok {
		return v
	}
	return ""
}

// RequestID trusts X-Request-Id if present, otherwise generates a UUID-4,
// stores it in the request context, and echoes it on the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.New().String()
		}
		ctx := context.WithValue(r.Context(), requestIDKey, id)
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

const maxBodyBytes = 1 << 20 // 1,048,576 bytes

// BodySizeCap rejects requests whose declared Content-Length exceeds the
// 1 MiB cap with 413 request_too_large. If the header is absent or
// unparsable the cap is advisory only: the body itself is still wrapped in
// http.MaxBytesReader so an oversized body fails during decode instead.
// This runs before authentication by design (see SPEC_FULL.md §9): denial of
// service protection must be cheap to reject without doing any auth work.
func BodySizeCap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength > maxBodyBytes {
			RespondError(w, http.StatusRequestEntityTooLarge, "request_too_large", "request body exceeds the 1 MiB limit")
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		next.ServeHTTP(w, r)
	})
}

// excludedFromMetrics are paths never fed into labeled metrics, to bound
// cardinality. They sit outside /v1, so the access Logger does not see them
// either.
var excludedFromMetrics = map[string]bool{
	"/metrics": true,
	"/healthz": true,
	"/readyz":  true,
}

// Logger writes one structured access log line per request.
func Logger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(sw, r)

			logger.Info("http request",
				"request_id", RequestIDFromContext(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"status", sw.status,
				"latency_ms", time.Since(start).Milliseconds(),
				"tenant", TenantFromContext(r.Context()),
			)
		})
	}
}

// Metrics records request count and duration to Prometheus, using the
// normalized route pattern (not the raw path) as the path label.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		routePath := NormalizePath(r.URL.Path)
		if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
			if pattern := routeCtx.RoutePattern(); pattern != "" {
				routePath = pattern
			}
		}

		if excludedFromMetrics[r.URL.Path] {
			return
		}

		status := strconv.Itoa(sw.status)
		telemetry.HTTPRequestsTotal.WithLabelValues(r.Method, routePath, status).Inc()
		telemetry.HTTPRequestDuration.WithLabelValues(r.Method, routePath).Observe(time.Since(start).Seconds())
	})
}

var (
	numericSegment = regexp.MustCompile(`^[0-9]+$`)
	hexIDSegment   = regexp.MustCompile(`^[0-9a-fA-F]{24}$`)
	ulidSegment    = regexp.MustCompile(`^[0-9A-HJKMNP-TV-Za-hjkmnp-tv-z]{26}$`)
)

// NormalizePath replaces purely numeric, UUID, 24-hex, and ULID path
// segments with ":id" so per-entity paths don't blow up metric cardinality.
func NormalizePath(path string) string {
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		if seg == "" {
			continue
		}
		if numericSegment.MatchString(seg) || hexIDSegment.MatchString(seg) || ulidSegment.MatchString(seg) {
			segments[i] = ":id"
			continue
		}
		if _, err := uuid.Parse(seg); err == nil {
			segments[i] = ":id"
		}
	}
	return strings.Join(segments, "/")
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}
