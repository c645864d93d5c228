package lesson

import "testing"

func TestEncodeDecodeVector_RoundTrip(t *testing.T) {
	v := []float32{0.1, -0.2, 3.5, 0}
	encoded := encodeVector(v)

	decoded, err := decodeVector(encoded)
	if err != nil {
		t.Fatalf("decodeVector() error = %v", err)
	}
	if len(decoded) != len(v) {
		t.Fatalf("decoded length = %d, want %d", len(decoded), len(v))
	}
	for i := range v {
		if decoded[i] != v[i] {
			t.Errorf("decoded[%d] = %v, want %v", i, decoded[i], v[i])
		}
	}
}

func TestEncodeVector_Format(t *testing.T) {
	got := encodeVector([]float32{1, 2, 3})
	want := "[1,2,3]"
	if got != want {
		t.Errorf("encodeVector() = %q, want %q", got, want)
	}
}

func TestDecodeVector_Empty(t *testing.T) {
	out, err := decodeVector("[]")
	if err != nil {
		t.Fatalf("decodeVector() error = %v", err)
	}
	if len(out) != 0 {
		t.Errorf("length = %d, want 0", len(out))
	}
}

func TestDecodeVector_InvalidComponent(t *testing.T) {
	_, err := decodeVector("[1,notanumber,3]")
	if err == nil {
		t.Error("expected an error for a non-numeric component")
	}
}
