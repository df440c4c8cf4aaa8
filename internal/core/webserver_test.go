package core

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Srinivas26k/ZoomPollMaster/internal/config"
	"github.com/Srinivas26k/ZoomPollMaster/internal/eventbus"
	"github.com/Srinivas26k/ZoomPollMaster/internal/orchestrator"
	"github.com/Srinivas26k/ZoomPollMaster/internal/schedule"
	"github.com/Srinivas26k/ZoomPollMaster/internal/session"
	"github.com/Srinivas26k/ZoomPollMaster/internal/storage"
	"github.com/Srinivas26k/ZoomPollMaster/internal/vault"
	"github.com/Srinivas26k/ZoomPollMaster/pkg/logx"
)

type stubAdapter struct{}

func (stubAdapter) JoinMeeting(context.Context, *session.Session) error { return nil }
func (stubAdapter) LeaveMeeting(context.Context) error                  { return nil }
func (stubAdapter) CaptureTranscript(_ context.Context, s *session.Session) (*session.TranscriptSegment, error) {
	return &session.TranscriptSegment{CapturedAt: time.Now(), Text: "t", MeetingID: s.MeetingID}, nil
}
func (stubAdapter) GeneratePoll(context.Context, string) (*session.Poll, error) {
	return session.NewPoll("q?", []string{"a", "b", "c", "d"}, nil)
}
func (stubAdapter) PostPoll(context.Context, *session.Poll) error { return nil }

func newTestServer(t *testing.T) (*httptest.Server, *orchestrator.Orchestrator) {
	t.Helper()
	cfg := config.Default()
	cfg.SaveTranscripts = false

	orch := orchestrator.New(stubAdapter{}, schedule.NewTable(), vault.New(), eventbus.New(),
		func() *config.Config { return cfg }, logx.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = orch.Run(ctx) }()
	t.Cleanup(cancel)

	store, err := storage.Open(nil, logx.Nop())
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}
	ws := newWebServer(orch, logx.NewRing(16), store, func() *config.Config { return cfg }, logx.Nop())
	ws.secret = "test-secret"

	srv := httptest.NewServer(ws.routes())
	t.Cleanup(srv.Close)
	return srv, orch
}

// testEnvelope mirrors envelope with raw data for further decoding.
type testEnvelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func request(t *testing.T, srv *httptest.Server, method, path, token, body string) (*http.Response, testEnvelope) {
	t.Helper()
	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}
	req, err := http.NewRequest(method, srv.URL+path, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	var env testEnvelope
	_ = json.NewDecoder(resp.Body).Decode(&env)
	return resp, env
}

func TestHealthzNeedsNoAuth(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status = %d", resp.StatusCode)
	}
}

func TestBearerAuthRequired(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, _ := request(t, srv, http.MethodGet, "/api/status", "", "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("missing token: status = %d", resp.StatusCode)
	}
	resp, _ = request(t, srv, http.MethodGet, "/api/status", "wrong", "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("wrong token: status = %d", resp.StatusCode)
	}
	resp, env := request(t, srv, http.MethodGet, "/api/status", "test-secret", "")
	if resp.StatusCode != http.StatusOK || !env.Success {
		t.Fatalf("valid token rejected: %d %+v", resp.StatusCode, env)
	}
}

func TestJoinThenStatus(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, env := request(t, srv, http.MethodPost, "/api/join", "test-secret",
		`{"meeting_id":"123456789","passcode":"hunter2"}`)
	if resp.StatusCode != http.StatusOK || !env.Success {
		t.Fatalf("join failed: %d %+v", resp.StatusCode, env)
	}

	// A second join conflicts.
	resp, _ = request(t, srv, http.MethodPost, "/api/join", "test-secret",
		`{"meeting_id":"111111111"}`)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("second join status = %d, want 409", resp.StatusCode)
	}

	_, env = request(t, srv, http.MethodGet, "/api/status", "test-secret", "")
	var st orchestrator.Status
	if err := json.Unmarshal(env.Data, &st); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if st.State != orchestrator.StateConnected {
		t.Fatalf("state = %s, want connected", st.State)
	}
	if raw, _ := json.Marshal(env); strings.Contains(string(raw), "hunter2") {
		t.Fatalf("status leaked the passcode")
	}
}

func TestTriggerErrorMapping(t *testing.T) {
	srv, _ := newTestServer(t)

	// No session yet: misuse, 400.
	resp, _ := request(t, srv, http.MethodPost, "/api/capture", "test-secret", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("capture without session status = %d, want 400", resp.StatusCode)
	}
	resp, _ = request(t, srv, http.MethodPost, "/api/stop", "test-secret", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("stop while idle status = %d, want 400", resp.StatusCode)
	}
}
