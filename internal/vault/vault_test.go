package vault

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestPutGetRoundTrip(t *testing.T) {
	v := New()
	v.Put("passcode", "hunter2", time.Minute)

	s, err := v.Get("passcode")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if s.Reveal() != "hunter2" {
		t.Fatalf("reveal = %q", s.Reveal())
	}
}

func TestGetUnknownKind(t *testing.T) {
	v := New()
	if _, err := v.Get("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTTLIsAbsolute(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	v := New(WithClock(func() time.Time { return now }))

	v.Put("passcode", "hunter2", 30*time.Minute)

	// Reads do not extend the deadline.
	now = now.Add(29 * time.Minute)
	if _, err := v.Get("passcode"); err != nil {
		t.Fatalf("get before expiry: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if _, err := v.Get("passcode"); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}

	// The expired read deleted the entry.
	if _, err := v.Get("passcode"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expired entry lingered: %v", err)
	}
}

func TestOverwriteResetsDeadline(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	v := New(WithClock(func() time.Time { return now }))

	v.Put("passcode", "old", time.Minute)
	now = now.Add(50 * time.Second)
	v.Put("passcode", "new", time.Minute)
	now = now.Add(30 * time.Second)

	s, err := v.Get("passcode")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if s.Reveal() != "new" {
		t.Fatalf("reveal = %q, want overwritten value", s.Reveal())
	}
}

func TestSweepDeletesExpired(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	v := New(WithClock(func() time.Time { return now }))

	v.Put("a", "1", time.Minute)
	v.Put("b", "2", time.Hour)
	now = now.Add(10 * time.Minute)

	if n := v.Sweep(); n != 1 {
		t.Fatalf("swept = %d, want 1", n)
	}
	if v.Len() != 1 {
		t.Fatalf("len = %d, want 1", v.Len())
	}
}

func TestDefaultTTLApplies(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	v := New(WithClock(func() time.Time { return now }))

	// ttl <= 0 falls back to the vault default of 30 minutes.
	v.Put("passcode", "x", 0)
	now = now.Add(29 * time.Minute)
	if _, err := v.Get("passcode"); err != nil {
		t.Fatalf("get: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if _, err := v.Get("passcode"); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestSecretNeverSerializes(t *testing.T) {
	s := NewSecret("hunter2")

	for name, got := range map[string]string{
		"String":   s.String(),
		"GoString": s.GoString(),
		"Sprintf":  fmt.Sprintf("%v %s %#v", s, s, s),
	} {
		if strings.Contains(got, "hunter2") {
			t.Fatalf("%s leaked the secret: %q", name, got)
		}
	}

	b, err := json.Marshal(struct {
		Passcode Secret `json:"passcode"`
	}{s})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(b), "hunter2") {
		t.Fatalf("JSON leaked the secret: %s", b)
	}
	txt, err := s.MarshalText()
	if err != nil {
		t.Fatalf("marshal text: %v", err)
	}
	if strings.Contains(string(txt), "hunter2") {
		t.Fatalf("text leaked the secret: %s", txt)
	}
}
