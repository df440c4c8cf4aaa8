package orchestrator

import (
	"time"

	"github.com/Srinivas26k/ZoomPollMaster/internal/schedule"
	"github.com/Srinivas26k/ZoomPollMaster/internal/session"
)

// Status is a point-in-time snapshot for the CLI and the web mirror. The
// session marshals without its passcode and the vault never appears here.
type Status struct {
	State     State  `json:"state"`
	Error     bool   `json:"error"`
	LastError string `json:"last_error,omitempty"`

	Session             *session.Session `json:"session,omitempty"`
	TranscriptAvailable bool             `json:"transcript_available"`
	PollAvailable       bool             `json:"poll_available"`
	LastCaptureTime     *time.Time       `json:"last_capture_time,omitempty"`

	NextTranscriptTime *time.Time `json:"next_transcript_time,omitempty"`
	NextPollTime       *time.Time `json:"next_poll_time,omitempty"`

	Entries []schedule.EntrySnapshot `json:"schedule,omitempty"`
	Stats   Stats                    `json:"stats"`
}

func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	st := Status{
		State:               o.state,
		Error:               o.errFlag,
		LastError:           o.lastErr,
		Session:             o.sess,
		TranscriptAvailable: o.segment != nil,
		PollAvailable:       o.poll != nil,
		Stats:               o.stats,
	}
	if o.segment != nil {
		t := o.segment.CapturedAt
		st.LastCaptureTime = &t
	}
	o.mu.Unlock()

	if t, ok := o.table.NextFire(schedule.KindCapture); ok {
		st.NextTranscriptTime = &t
	}
	if t, ok := o.table.NextFire(schedule.KindPost); ok {
		st.NextPollTime = &t
	}
	st.Entries = o.table.Snapshot()
	return st
}

func (o *Orchestrator) CurrentState() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}
