package session

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestNewRequiresMeetingID(t *testing.T) {
	if _, err := New("", "", "", "web"); err == nil {
		t.Fatalf("empty meeting id accepted")
	}
	s, err := New("123456789", "", "", "web")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if s.DisplayName != "Poll Generator" {
		t.Fatalf("display name default = %q", s.DisplayName)
	}
}

func TestNewRejectsUnknownClientVariant(t *testing.T) {
	for _, client := range []string{"", "mobile", "WEB"} {
		if _, err := New("123456789", "", "", client); err == nil {
			t.Fatalf("client %q accepted", client)
		}
	}
	for _, client := range []string{"web", "desktop"} {
		if _, err := New("123456789", "", "", client); err != nil {
			t.Fatalf("client %q rejected: %v", client, err)
		}
	}
}

func TestSessionMarshalOmitsPasscode(t *testing.T) {
	s, err := New("123456789", "hunter2", "Bot", "web")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	b, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(b), "hunter2") {
		t.Fatalf("passcode leaked: %s", b)
	}
	if s := s.String(); strings.Contains(s, "hunter2") {
		t.Fatalf("String leaked the passcode: %s", s)
	}
}

func TestNewPollEnforcesFourOptions(t *testing.T) {
	seg := &TranscriptSegment{CapturedAt: time.Now(), Text: "x"}

	for _, opts := range [][]string{
		nil,
		{"a"},
		{"a", "b", "c"},
		{"a", "b", "c", "d", "e"},
	} {
		if _, err := NewPoll("q?", opts, seg); !errors.Is(err, ErrMalformedPoll) {
			t.Fatalf("options %v accepted (err=%v)", opts, err)
		}
	}

	if _, err := NewPoll("q?", []string{"a", "b", "", "d"}, seg); err == nil {
		t.Fatalf("blank option accepted")
	}
	if _, err := NewPoll("  ", []string{"a", "b", "c", "d"}, seg); err == nil {
		t.Fatalf("blank question accepted")
	}

	p, err := NewPoll("q?", []string{"a", "b", "c", "d"}, seg)
	if err != nil {
		t.Fatalf("valid poll rejected: %v", err)
	}
	if !p.SourceCapturedAt.Equal(seg.CapturedAt) {
		t.Fatalf("source link missing")
	}
	if p.GeneratedAt.IsZero() {
		t.Fatalf("generated_at not stamped")
	}
}
