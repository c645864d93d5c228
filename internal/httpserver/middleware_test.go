package httpserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/v1/lessons", "/v1/lessons"},
		{"/v1/lessons/01HQZX3K1Y8E4G6S8N2V7J5B3R", "/v1/lessons/:id"},
		{"/v1/lessons/123", "/v1/lessons/:id"},
		{"/v1/lessons/550e8400-e29b-41d4-a716-446655440000", "/v1/lessons/:id"},
		{"/v1/lessons/123/rate", "/v1/lessons/:id/rate"},
		{"/healthz", "/healthz"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := NormalizePath(tt.in); got != tt.want {
				t.Errorf("NormalizePath(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestRequestID_GeneratesWhenAbsent(t *testing.T) {
	var gotID string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = RequestIDFromContext(r.Context())
	})

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	RequestID(next).ServeHTTP(w, r)

	if gotID == "" {
		t.Error("expected a generated request ID")
	}
	if w.Header().Get("X-Request-Id") != gotID {
		t.Errorf("response header = %q, want %q", w.Header().Get("X-Request-Id"), gotID)
	}
}

func TestRequestID_TrustsIncomingHeader(t *testing.T) {
	var gotID string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = RequestIDFromContext(r.Context())
	})

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Request-Id", "fixed-id-123")
	w := httptest.NewRecorder()
	RequestID(next).ServeHTTP(w, r)

	if gotID != "fixed-id-123" {
		t.Errorf("RequestIDFromContext() = %q, want fixed-id-123", gotID)
	}
}

func TestWithTenant_TenantFromContext(t *testing.T) {
	ctx := WithTenant(context.Background(), "tenant-1")
	if got := TenantFromContext(ctx); got != "tenant-1" {
		t.Errorf("TenantFromContext() = %q, want tenant-1", got)
	}
}

func TestTenantFromContext_Unset(t *testing.T) {
	if got := TenantFromContext(context.Background()); got != "" {
		t.Errorf("TenantFromContext() on bare context = %q, want empty", got)
	}
}

func TestBodySizeCap_RejectsOversizedContentLength(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not run when Content-Length exceeds the cap")
	})

	r := httptest.NewRequest(http.MethodPost, "/", nil)
	r.ContentLength = maxBodyBytes + 1
	w := httptest.NewRecorder()
	BodySizeCap(next).ServeHTTP(w, r)

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want %d", w.Code, http.StatusRequestEntityTooLarge)
	}
}

func TestBodySizeCap_AllowsWithinLimit(t *testing.T) {
	ran := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ran = true
	})

	r := httptest.NewRequest(http.MethodPost, "/", nil)
	r.ContentLength = 100
	w := httptest.NewRecorder()
	BodySizeCap(next).ServeHTTP(w, r)

	if !ran {
		t.Error("handler should run when Content-Length is within the cap")
	}
}
