// Package script implements automation.Adapter by spawning an external helper
// process per phase. The helper owns the actual UI work against the Zoom
// client and the browser; this side only speaks a small JSON protocol with it
// over stdin/stdout, so helpers can be swapped without touching the daemon.
package script

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/Srinivas26k/ZoomPollMaster/internal/automation"
	"github.com/Srinivas26k/ZoomPollMaster/internal/config"
	"github.com/Srinivas26k/ZoomPollMaster/internal/session"
	"github.com/Srinivas26k/ZoomPollMaster/pkg/logx"
)

// request is what the helper reads from stdin.
type request struct {
	Op          string   `json:"op"`
	ClientType  string   `json:"client_type,omitempty"`
	MeetingID   string   `json:"meeting_id,omitempty"`
	Passcode    string   `json:"passcode,omitempty"`
	DisplayName string   `json:"display_name,omitempty"`
	Prompt      string   `json:"prompt,omitempty"`
	Question    string   `json:"question,omitempty"`
	Options     []string `json:"options,omitempty"`
}

// response is the helper's stdout envelope.
type response struct {
	OK         bool     `json:"ok"`
	Error      string   `json:"error,omitempty"`
	Transcript string   `json:"transcript,omitempty"`
	Question   string   `json:"question,omitempty"`
	Options    []string `json:"options,omitempty"`
}

// Driver runs one helper invocation per adapter call. The orchestrator
// serializes adapter calls, so the session-scoped fields need no lock.
type Driver struct {
	command string
	args    []string
	client  string // configured default variant
	prompt  string
	waits   config.WaitTimes
	log     logx.Logger

	// activeClient is the variant of the joined session; it may differ from
	// the configured default when join overrides it.
	activeClient string
	lastCapture  time.Time
}

func New(cfg *config.Config, log logx.Logger) *Driver {
	return &Driver{
		command: cfg.Driver.Command,
		args:    cfg.Driver.Args,
		client:  cfg.ZoomClientType,
		prompt:  cfg.Prompt(),
		waits:   cfg.WaitTimes,
		log:     log,
	}
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

// joinBudget covers launch, join screen and meeting load end to end.
func (d *Driver) joinBudget() time.Duration {
	return ms(d.waits.ZoomLaunchMS) + ms(d.waits.JoinScreenMS) + ms(d.waits.MeetingLoadMS)
}

func (d *Driver) run(ctx context.Context, budget time.Duration, req request) (*response, error) {
	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", req.Op, err)
	}

	cmd := exec.CommandContext(ctx, d.command, d.args...)
	cmd.Stdin = bytes.NewReader(payload)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if s := strings.TrimSpace(stderr.String()); s != "" {
			err = fmt.Errorf("%w: %s", err, s)
		}
		return nil, &automation.TransportError{Op: req.Op, Err: err}
	}

	var resp response
	if err := json.Unmarshal(bytes.TrimSpace(out), &resp); err != nil {
		return nil, &automation.MalformedResponseError{Op: req.Op, Detail: fmt.Sprintf("bad helper output: %v", err)}
	}
	if !resp.OK {
		msg := resp.Error
		if msg == "" {
			msg = "helper reported failure"
		}
		return nil, &automation.TransportError{Op: req.Op, Err: fmt.Errorf("%s", msg)}
	}
	return &resp, nil
}

// clientType resolves the variant for session-less ops (leave, post).
func (d *Driver) clientType() string {
	if d.activeClient != "" {
		return d.activeClient
	}
	return d.client
}

func (d *Driver) JoinMeeting(ctx context.Context, s *session.Session) error {
	client := s.Client
	if client == "" {
		client = d.client
	}
	d.log.Info("joining meeting via helper",
		logx.String("meeting_id", s.MeetingID),
		logx.String("client", client))
	_, err := d.run(ctx, d.joinBudget(), request{
		Op:          "join",
		ClientType:  client,
		MeetingID:   s.MeetingID,
		Passcode:    s.Passcode,
		DisplayName: s.DisplayName,
	})
	if err == nil {
		d.activeClient = client
		d.lastCapture = time.Now()
	}
	return err
}

func (d *Driver) LeaveMeeting(ctx context.Context) error {
	_, err := d.run(ctx, ms(d.waits.UIActionMS), request{Op: "leave", ClientType: d.clientType()})
	if err == nil {
		d.activeClient = ""
	}
	return err
}

func (d *Driver) CaptureTranscript(ctx context.Context, s *session.Session) (*session.TranscriptSegment, error) {
	client := s.Client
	if client == "" {
		client = d.client
	}
	resp, err := d.run(ctx, ms(d.waits.UIActionMS), request{
		Op:         "capture_transcript",
		ClientType: client,
		MeetingID:  s.MeetingID,
	})
	if err != nil {
		return nil, err
	}
	text := strings.TrimSpace(resp.Transcript)
	if text == "" {
		return nil, &automation.MalformedResponseError{Op: "capture_transcript", Detail: "empty transcript"}
	}

	now := time.Now()
	dur := now.Sub(d.lastCapture)
	if d.lastCapture.IsZero() || dur < 0 {
		dur = 0
	}
	d.lastCapture = now
	return &session.TranscriptSegment{
		CapturedAt: now,
		Duration:   dur,
		Text:       text,
		MeetingID:  s.MeetingID,
	}, nil
}

func (d *Driver) GeneratePoll(ctx context.Context, transcript string) (*session.Poll, error) {
	resp, err := d.run(ctx, ms(d.waits.MeetingLoadMS)+ms(d.waits.UIActionMS), request{
		Op:     "generate_poll",
		Prompt: strings.ReplaceAll(d.prompt, "{transcript}", transcript),
	})
	if err != nil {
		return nil, err
	}
	p, err := session.NewPoll(resp.Question, resp.Options, nil)
	if err != nil {
		return nil, &automation.MalformedResponseError{Op: "generate_poll", Detail: err.Error()}
	}
	return p, nil
}

func (d *Driver) PostPoll(ctx context.Context, p *session.Poll) error {
	_, err := d.run(ctx, ms(d.waits.UIActionMS), request{
		Op:         "post_poll",
		ClientType: d.clientType(),
		Question:   p.Question,
		Options:    p.Options,
	})
	return err
}
