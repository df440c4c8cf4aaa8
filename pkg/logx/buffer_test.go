package logx

import (
	"testing"
	"time"
)

func TestRingWrapAround(t *testing.T) {
	r := NewRing(3)
	for i := 0; i < 5; i++ {
		r.Append(Event{Time: time.Now(), Level: "info", Message: string(rune('a' + i))})
	}

	if r.Total() != 5 {
		t.Fatalf("total = %d, want 5", r.Total())
	}
	last := r.Last(10)
	if len(last) != 3 {
		t.Fatalf("len = %d, want capacity 3", len(last))
	}
	// Oldest first, newest last.
	if last[0].Message != "c" || last[2].Message != "e" {
		t.Fatalf("wrong order: %+v", last)
	}

	if got := r.Last(2); len(got) != 2 || got[1].Message != "e" {
		t.Fatalf("Last(2) = %+v", got)
	}
	if got := r.Last(0); len(got) != 0 {
		t.Fatalf("Last(0) = %+v", got)
	}
}

func TestRingWriterDecodesZerologLines(t *testing.T) {
	r := NewRing(8)
	w := &ringWriter{ring: r}

	line := []byte(`{"level":"warn","time":"2026-01-10T12:00:00.000Z","message":"cycle abandoned","kind":"capture"}` + "\n")
	if _, err := w.Write(line); err != nil {
		t.Fatalf("write: %v", err)
	}

	last := r.Last(1)
	if len(last) != 1 {
		t.Fatalf("no event recorded")
	}
	e := last[0]
	if e.Level != "warn" {
		t.Fatalf("level = %q", e.Level)
	}
	if e.Message == "" || e.Message == string(line) {
		t.Fatalf("message not decoded: %q", e.Message)
	}
}

func TestServiceKeepsRingAcrossApply(t *testing.T) {
	svc, log := New(Config{Level: "debug", Console: false, BufferSize: 16})
	defer svc.Close()

	log.Info("first")
	svc.Apply(Config{Level: "info", Console: false, BufferSize: 16})
	log.Info("second")

	if svc.Ring().Total() < 2 {
		t.Fatalf("ring lost events across Apply: total=%d", svc.Ring().Total())
	}
}
