package lesson

import (
	"encoding/json"
	"testing"
)

func TestVoteValue_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		wantDelta   *int
		wantLiteral *int
		wantErr     bool
	}{
		{name: "plus one delta", input: `"+1"`, wantDelta: intPtr(1)},
		{name: "minus one delta", input: `"-1"`, wantDelta: intPtr(-1)},
		{name: "literal count", input: `5`, wantLiteral: intPtr(5)},
		{name: "literal zero", input: `0`, wantLiteral: intPtr(0)},
		{name: "invalid delta string", input: `"+2"`, wantErr: true},
		{name: "invalid value", input: `"bogus"`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var v VoteValue
			err := json.Unmarshal([]byte(tt.input), &v)
			if (err != nil) != tt.wantErr {
				t.Fatalf("UnmarshalJSON() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if tt.wantDelta != nil {
				if v.Delta == nil || *v.Delta != *tt.wantDelta {
					t.Errorf("Delta = %v, want %v", v.Delta, *tt.wantDelta)
				}
			}
			if tt.wantLiteral != nil {
				if v.Literal == nil || *v.Literal != *tt.wantLiteral {
					t.Errorf("Literal = %v, want %v", v.Literal, *tt.wantLiteral)
				}
			}
		})
	}
}

func intPtr(i int) *int { return &i }
