package auth

import (
	"context"
	"net/http"
	"testing"
)

func TestPrincipal_HasRole(t *testing.T) {
	tests := []struct {
		role string
		min  string
		want bool
	}{
		{RoleReader, RoleReader, true},
		{RoleReader, RoleWriter, false},
		{RoleReader, RoleAdmin, false},
		{RoleWriter, RoleReader, true},
		{RoleWriter, RoleWriter, true},
		{RoleWriter, RoleAdmin, false},
		{RoleAdmin, RoleReader, true},
		{RoleAdmin, RoleWriter, true},
		{RoleAdmin, RoleAdmin, true},
	}

	for _, tt := range tests {
		p := &Principal{Role: tt.role}
		if got := p.HasRole(tt.min); got != tt.want {
			t.Errorf("Principal{Role: %q}.HasRole(%q) = %v, want %v", tt.role, tt.min, got, tt.want)
		}
	}
}

func TestPrincipal_HasRole_NilSafe(t *testing.T) {
	var p *Principal
	if p.HasRole(RoleReader) {
		t.Error("a nil Principal must never satisfy any role")
	}
}

func TestWithPrincipal_FromContext(t *testing.T) {
	p := &Principal{Tenant: "t1", Role: RoleWriter}
	ctx := WithPrincipal(context.Background(), p)

	got := FromContext(ctx)
	if got != p {
		t.Errorf("FromContext() = %v, want %v", got, p)
	}
}

func TestFromContext_Unset(t *testing.T) {
	if got := FromContext(context.Background()); got != nil {
		t.Errorf("FromContext() on bare context = %v, want nil", got)
	}
}

func TestFromRequest(t *testing.T) {
	p := &Principal{Tenant: "t1", Role: RoleAdmin}
	r, _ := http.NewRequest(http.MethodGet, "/", nil)
	r = r.WithContext(WithPrincipal(r.Context(), p))

	if got := FromRequest(r); got != p {
		t.Errorf("FromRequest() = %v, want %v", got, p)
	}
}
