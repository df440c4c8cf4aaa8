package script

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/Srinivas26k/ZoomPollMaster/internal/automation"
	"github.com/Srinivas26k/ZoomPollMaster/internal/config"
	"github.com/Srinivas26k/ZoomPollMaster/internal/session"
	"github.com/Srinivas26k/ZoomPollMaster/pkg/logx"
)

// helperDriver builds a Driver whose helper is a shell one-liner dumping the
// request it received to a file and answering with the given response.
func helperDriver(t *testing.T, respond string) (*Driver, string) {
	t.Helper()
	reqFile := filepath.Join(t.TempDir(), "request.json")
	cfg := config.Default()
	cfg.Driver.Command = "sh"
	cfg.Driver.Args = []string{"-c", "cat > " + reqFile + "; echo '" + respond + "'"}
	return New(cfg, logx.Nop()), reqFile
}

func readRequest(t *testing.T, path string) request {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read request dump: %v", err)
	}
	var req request
	if err := json.Unmarshal(bytes.TrimSpace(b), &req); err != nil {
		t.Fatalf("decode request dump: %v", err)
	}
	return req
}

func TestJoinSendsSessionClient(t *testing.T) {
	d, reqFile := helperDriver(t, `{"ok":true}`)
	// Config default is web; the session overrides to desktop.
	s, err := session.New("123456789", "", "Bot", "desktop")
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	if err := d.JoinMeeting(context.Background(), s); err != nil {
		t.Fatalf("join: %v", err)
	}
	req := readRequest(t, reqFile)
	if req.Op != "join" || req.ClientType != "desktop" {
		t.Fatalf("helper got op=%q client=%q, want join/desktop", req.Op, req.ClientType)
	}
}

func TestPostUsesJoinedClient(t *testing.T) {
	d, reqFile := helperDriver(t, `{"ok":true}`)
	s, err := session.New("123456789", "", "Bot", "desktop")
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	if err := d.JoinMeeting(context.Background(), s); err != nil {
		t.Fatalf("join: %v", err)
	}

	p, err := session.NewPoll("what was the main topic?", []string{"a", "b", "c", "d"}, nil)
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if err := d.PostPoll(context.Background(), p); err != nil {
		t.Fatalf("post: %v", err)
	}
	req := readRequest(t, reqFile)
	if req.Op != "post_poll" || req.ClientType != "desktop" {
		t.Fatalf("helper got op=%q client=%q, want post_poll/desktop", req.Op, req.ClientType)
	}
}

func TestHelperFailureIsTransportError(t *testing.T) {
	d, _ := helperDriver(t, `{"ok":false,"error":"captions pane not found"}`)
	s, err := session.New("123456789", "", "Bot", "web")
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	_, err = d.CaptureTranscript(context.Background(), s)
	if err == nil {
		t.Fatalf("expected error from failing helper")
	}
	if !automation.Retryable(err) {
		t.Fatalf("helper failure should be retryable, got %v", err)
	}
}
