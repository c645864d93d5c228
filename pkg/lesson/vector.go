package lesson

import (
	"fmt"
	"strconv"
	"strings"
)

// encodeVector renders a float32 slice as a pgvector text literal
// ("[0.1,0.2,...]"), the format `vector(384)` columns accept via an
// explicit `::vector` cast.
func encodeVector(v []float32) string {
	parts := make([]string, len(v))
	for i, f := range v {
		parts[i] = strconv.FormatFloat(float64(f), 'g', -1, 32)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// decodeVector parses a pgvector text representation (as returned by
// `embedding::text`) back into a float32 slice.
func decodeVector(s string) ([]float32, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	if s == "" {
		return []float32{}, nil
	}
	parts := strings.Split(s, ",")
	out := make([]float32, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, fmt.Errorf("parsing vector component %q: %w", p, err)
		}
		out[i] = float32(f)
	}
	return out, nil
}
