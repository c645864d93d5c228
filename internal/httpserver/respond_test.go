package httpserver

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
)

func TestRespond_WritesStatusAndBody(t *testing.T) {
	w := httptest.NewRecorder()
	Respond(w, 201, map[string]string{"id": "abc"})

	if w.Code != 201 {
		t.Errorf("status = %d, want 201", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body["id"] != "abc" {
		t.Errorf("body id = %q, want abc", body["id"])
	}
}

func TestRespond_NilDataWritesNoBody(t *testing.T) {
	w := httptest.NewRecorder()
	Respond(w, 204, nil)

	if w.Code != 204 {
		t.Errorf("status = %d, want 204", w.Code)
	}
	if w.Body.Len() != 0 {
		t.Errorf("body length = %d, want 0", w.Body.Len())
	}
}

func TestRespondError_Envelope(t *testing.T) {
	w := httptest.NewRecorder()
	RespondError(w, 404, "not_found", "lesson not found")

	if w.Code != 404 {
		t.Errorf("status = %d, want 404", w.Code)
	}

	var body ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body.Error != "not_found" {
		t.Errorf("Error = %q, want not_found", body.Error)
	}
	if body.Message != "lesson not found" {
		t.Errorf("Message = %q, want %q", body.Message, "lesson not found")
	}
}
