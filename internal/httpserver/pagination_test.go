package httpserver

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestParseOffsetParams(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantLimit  int
		wantOffset int
		wantErr    bool
	}{
		{
			name:       "defaults",
			query:      "",
			wantLimit:  DefaultListLimit,
			wantOffset: 0,
		},
		{
			name:       "custom limit and offset",
			query:      "limit=50&offset=20",
			wantLimit:  50,
			wantOffset: 20,
		},
		{
			name:    "limit over max",
			query:   "limit=500",
			wantErr: true,
		},
		{
			name:    "zero limit",
			query:   "limit=0",
			wantErr: true,
		},
		{
			name:    "negative offset",
			query:   "offset=-1",
			wantErr: true,
		},
		{
			name:    "non-numeric limit",
			query:   "limit=abc",
			wantErr: true,
		},
		{
			name:    "non-numeric offset",
			query:   "offset=abc",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/?"+tt.query, nil)
			p, err := ParseOffsetParams(r)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseOffsetParams() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr {
				return
			}
			if p.Limit != tt.wantLimit {
				t.Errorf("Limit = %d, want %d", p.Limit, tt.wantLimit)
			}
			if p.Offset != tt.wantOffset {
				t.Errorf("Offset = %d, want %d", p.Offset, tt.wantOffset)
			}
		})
	}
}

func TestNewOffsetPage(t *testing.T) {
	type item struct{ Name string }

	items := []item{{Name: "a"}, {Name: "b"}}
	params := OffsetParams{Limit: 25, Offset: 0}

	page := NewOffsetPage(items, params, 2)

	if len(page.Items) != 2 {
		t.Errorf("Items length = %d, want 2", len(page.Items))
	}
	if page.Total != 2 {
		t.Errorf("Total = %d, want 2", page.Total)
	}
	if page.Limit != params.Limit {
		t.Errorf("Limit = %d, want %d", page.Limit, params.Limit)
	}
	if page.Offset != params.Offset {
		t.Errorf("Offset = %d, want %d", page.Offset, params.Offset)
	}
}

func TestNewOffsetPage_Empty(t *testing.T) {
	var items []struct{}
	page := NewOffsetPage(items, OffsetParams{Limit: 25, Offset: 0}, 0)

	if len(page.Items) != 0 {
		t.Errorf("Items length = %d, want 0", len(page.Items))
	}
	if page.Total != 0 {
		t.Errorf("Total = %d, want 0", page.Total)
	}
}
