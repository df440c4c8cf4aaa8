// Package storage is the optional history store: captured segments, generated
// polls and cycle outcomes land in a local sqlite file for later inspection.
// The orchestrator never reads from it; it is fed asynchronously off the
// event bus and losing it costs history, not liveness.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/Srinivas26k/ZoomPollMaster/internal/config"
	"github.com/Srinivas26k/ZoomPollMaster/internal/session"
	"github.com/Srinivas26k/ZoomPollMaster/pkg/logx"
)

var ErrDisabled = errors.New("storage is disabled")

// CycleRecord is one completed, abandoned or skipped cycle.
type CycleRecord struct {
	At      time.Time
	Kind    string
	Outcome string // completed|abandoned|skipped
	Detail  string
}

// PollRecord is a stored poll row.
type PollRecord struct {
	ID          int64     `json:"id"`
	GeneratedAt time.Time `json:"generated_at"`
	Question    string    `json:"question"`
	Options     []string  `json:"options"`
	PostedAt    time.Time `json:"posted_at,omitzero"`
}

type Store interface {
	RecordTranscript(ctx context.Context, seg *session.TranscriptSegment) error
	RecordPoll(ctx context.Context, p *session.Poll) error
	MarkPollPosted(ctx context.Context, p *session.Poll) error
	RecordCycle(ctx context.Context, rec CycleRecord) error
	RecentPolls(ctx context.Context, limit int) ([]PollRecord, error)
	Close() error
}

// Open returns the configured store, or a no-op one when storage is off.
func Open(cfg *config.StorageConfig, log logx.Logger) (Store, error) {
	if cfg == nil || cfg.Driver == "" || cfg.Driver == "off" {
		return noopStore{}, nil
	}
	return openSQLite(cfg, log)
}

type noopStore struct{}

func (noopStore) RecordTranscript(context.Context, *session.TranscriptSegment) error { return nil }
func (noopStore) RecordPoll(context.Context, *session.Poll) error                    { return nil }
func (noopStore) MarkPollPosted(context.Context, *session.Poll) error                { return nil }
func (noopStore) RecordCycle(context.Context, CycleRecord) error                     { return nil }
func (noopStore) RecentPolls(context.Context, int) ([]PollRecord, error) {
	return nil, ErrDisabled
}
func (noopStore) Close() error { return nil }
