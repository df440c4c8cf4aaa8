// Package automation defines the adapter boundary to the Zoom client and the
// poll generation backend. The orchestrator only ever talks to an Adapter;
// the concrete drivers live in the script and openai subpackages.
package automation

import (
	"context"
	"errors"
	"fmt"

	"github.com/Srinivas26k/ZoomPollMaster/internal/session"
)

// Adapter performs the three phases of an automation cycle against a live
// meeting. Implementations must honour ctx cancellation; a blocked UI
// interaction is abandoned when the deadline passes.
type Adapter interface {
	// JoinMeeting brings the client into the meeting. Called once per session.
	JoinMeeting(ctx context.Context, s *session.Session) error
	// LeaveMeeting tears the client down. Best effort.
	LeaveMeeting(ctx context.Context) error
	// CaptureTranscript grabs the most recent caption window.
	CaptureTranscript(ctx context.Context, s *session.Session) (*session.TranscriptSegment, error)
	// GeneratePoll turns transcript text into a four-option poll.
	GeneratePoll(ctx context.Context, transcript string) (*session.Poll, error)
	// PostPoll launches the poll in the meeting.
	PostPoll(ctx context.Context, p *session.Poll) error
}

// TransportError wraps a failure reaching the underlying client or service
// (process spawn, HTTP, timeout). Retryable.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }

// MalformedResponseError reports a reply that arrived but could not be used
// (bad JSON, wrong option count, empty question). Retryable: a fresh attempt
// against a generative backend may well produce a valid reply.
type MalformedResponseError struct {
	Op     string
	Detail string
}

func (e *MalformedResponseError) Error() string { return fmt.Sprintf("%s: %s", e.Op, e.Detail) }

// Retryable reports whether the cycle should re-attempt after err. Context
// cancellation is terminal; transport and malformed-response failures are not.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var te *TransportError
	var me *MalformedResponseError
	return errors.As(err, &te) || errors.As(err, &me)
}
