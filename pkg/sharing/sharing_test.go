package sharing

import "testing"

func TestEnsureStrings_Nil(t *testing.T) {
	got := ensureStrings(nil)
	if got == nil {
		t.Fatal("ensureStrings(nil) should return an empty slice, not nil")
	}
	if len(got) != 0 {
		t.Errorf("length = %d, want 0", len(got))
	}
}

func TestEnsureStrings_Passthrough(t *testing.T) {
	in := []string{"a", "b"}
	got := ensureStrings(in)
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("ensureStrings() = %v, want %v", got, in)
	}
}
