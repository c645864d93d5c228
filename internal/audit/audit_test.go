package audit

import (
	"context"
	"log/slog"
	"testing"
)

func TestLog_EnqueuesEvent(t *testing.T) {
	w := NewWriter(nil, slog.Default())

	lessonID := "lesson-1"
	w.Log(context.Background(), Event{
		Tenant:      "tenant-1",
		EventType:   "lesson_created",
		LessonID:    &lessonID,
		InitiatedBy: "key-1",
	})

	e := <-w.entries
	if e.Tenant != "tenant-1" {
		t.Errorf("Tenant = %q, want %q", e.Tenant, "tenant-1")
	}
	if e.EventType != "lesson_created" {
		t.Errorf("EventType = %q, want %q", e.EventType, "lesson_created")
	}
	if e.LessonID == nil || *e.LessonID != lessonID {
		t.Errorf("LessonID = %v, want %q", e.LessonID, lessonID)
	}
}

func TestLog_DropsWhenFull(t *testing.T) {
	w := NewWriter(nil, slog.Default())
	// Don't start the background goroutine — nothing drains the channel.

	for i := 0; i < bufferSize; i++ {
		w.Log(context.Background(), Event{Tenant: "t", EventType: "lesson_created"})
	}

	// The next log should be dropped (non-blocking), not deadlock the test.
	w.Log(context.Background(), Event{Tenant: "t", EventType: "dropped"})

	if len(w.entries) != bufferSize {
		t.Errorf("buffer size = %d, want %d", len(w.entries), bufferSize)
	}
}
