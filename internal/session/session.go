// Package session holds the data owned by the orchestrator for the lifetime
// of one joined meeting: the Session itself and the artifacts derived from
// it (TranscriptSegment, Poll). All of it is destroyed together on leave.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// NumPollOptions is the contract with the generation service: a poll has
// exactly four answer options. Anything else is a malformed response and
// never reaches storage.
const NumPollOptions = 4

var ErrMalformedPoll = errors.New("poll must have exactly 4 options")

// Session is the active meeting being automated. Exactly one exists at a
// time; created by join, destroyed by leave.
type Session struct {
	MeetingID   string
	Passcode    string
	DisplayName string
	Client      string // web|desktop
	CreatedAt   time.Time
}

func New(meetingID, passcode, displayName, client string) (*Session, error) {
	if strings.TrimSpace(meetingID) == "" {
		return nil, errors.New("meeting id is required")
	}
	switch client {
	case "web", "desktop":
	default:
		return nil, fmt.Errorf("client must be \"web\" or \"desktop\", got %q", client)
	}
	if strings.TrimSpace(displayName) == "" {
		displayName = "Poll Generator"
	}
	return &Session{
		MeetingID:   meetingID,
		Passcode:    passcode,
		DisplayName: displayName,
		Client:      client,
		CreatedAt:   time.Now(),
	}, nil
}

// MarshalJSON omits the passcode; it has no business in status payloads or logs.
func (s *Session) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		MeetingID   string    `json:"meeting_id"`
		DisplayName string    `json:"display_name"`
		Client      string    `json:"client"`
		CreatedAt   time.Time `json:"created_at"`
	}{s.MeetingID, s.DisplayName, s.Client, s.CreatedAt})
}

func (s *Session) String() string {
	return fmt.Sprintf("session(meeting=%s client=%s)", s.MeetingID, s.Client)
}

// TranscriptSegment is the text captured from the meeting in one cycle.
// Duration nominally equals the capture interval; manual captures may be
// shorter.
type TranscriptSegment struct {
	CapturedAt time.Time     `json:"captured_at"`
	Duration   time.Duration `json:"duration"`
	Text       string        `json:"text"`
	MeetingID  string        `json:"meeting_id"`
}

// Poll is a generated multiple-choice question ready for posting.
type Poll struct {
	Question    string    `json:"question"`
	Options     []string  `json:"options"`
	GeneratedAt time.Time `json:"generated_at"`

	// SourceCapturedAt links the poll back to the segment it came from.
	SourceCapturedAt time.Time `json:"source_captured_at"`
}

// NewPoll validates the 4-option invariant before anything is stored.
func NewPoll(question string, options []string, source *TranscriptSegment) (*Poll, error) {
	if strings.TrimSpace(question) == "" {
		return nil, errors.New("poll question is empty")
	}
	if len(options) != NumPollOptions {
		return nil, fmt.Errorf("%w (got %d)", ErrMalformedPoll, len(options))
	}
	for i, o := range options {
		if strings.TrimSpace(o) == "" {
			return nil, fmt.Errorf("poll option %d is empty", i+1)
		}
	}
	p := &Poll{
		Question:    question,
		Options:     append([]string(nil), options...),
		GeneratedAt: time.Now(),
	}
	if source != nil {
		p.SourceCapturedAt = source.CapturedAt
	}
	return p, nil
}
