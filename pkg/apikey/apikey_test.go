package apikey

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"
)

func TestGenerateSecret_Format(t *testing.T) {
	raw, hash, prefix := GenerateSecret()

	if !strings.HasPrefix(raw, secretPrefix) {
		t.Errorf("raw secret %q does not start with %q", raw, secretPrefix)
	}
	hexPart := strings.TrimPrefix(raw, secretPrefix)
	if len(hexPart) != 64 {
		t.Errorf("hex part length = %d, want 64", len(hexPart))
	}
	if _, err := hex.DecodeString(hexPart); err != nil {
		t.Errorf("hex part %q is not valid hex: %v", hexPart, err)
	}

	wantHash := sha256.Sum256([]byte(raw))
	if hash != hex.EncodeToString(wantHash[:]) {
		t.Errorf("hash does not match sha256(raw)")
	}

	if prefix != raw[:12] {
		t.Errorf("prefix = %q, want first 12 chars of raw %q", prefix, raw[:12])
	}
	if len(prefix) != 12 {
		t.Errorf("prefix length = %d, want 12", len(prefix))
	}
}

func TestGenerateSecret_Unique(t *testing.T) {
	raw1, _, _ := GenerateSecret()
	raw2, _, _ := GenerateSecret()
	if raw1 == raw2 {
		t.Error("two calls to GenerateSecret produced the same secret")
	}
}

func TestRow_ToResponse_RoleDefaulting(t *testing.T) {
	tests := []struct {
		name     string
		row      Row
		wantRole string
	}{
		{
			name:     "explicit role wins",
			row:      Row{Role: strPtr("reader")},
			wantRole: "reader",
		},
		{
			name:     "root key defaults to admin",
			row:      Row{IsRoot: true},
			wantRole: "admin",
		},
		{
			name:     "non-root key defaults to writer",
			row:      Row{},
			wantRole: "writer",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := tt.row.ToResponse()
			if resp.Role != tt.wantRole {
				t.Errorf("Role = %q, want %q", resp.Role, tt.wantRole)
			}
		})
	}
}

func TestRow_ToResponse_NeverIncludesSecret(t *testing.T) {
	row := Row{ID: "k1", KeyHash: "deadbeef", KeyPrefix: "lore_sk_dead"}
	resp := row.ToResponse()
	if resp.KeyPrefix != "lore_sk_dead" {
		t.Errorf("KeyPrefix = %q, want %q", resp.KeyPrefix, "lore_sk_dead")
	}
}

func strPtr(s string) *string { return &s }
