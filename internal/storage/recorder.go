package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/Srinivas26k/ZoomPollMaster/internal/eventbus"
	"github.com/Srinivas26k/ZoomPollMaster/internal/session"
	"github.com/Srinivas26k/ZoomPollMaster/pkg/logx"
)

// Recorder drains the event bus into the store. It runs on its own goroutine
// so a slow disk never backs up into the worker; the bus drops events for
// slow subscribers, which is acceptable here.
type Recorder struct {
	store Store
	bus   eventbus.Bus
	log   logx.Logger
}

func NewRecorder(store Store, bus eventbus.Bus, log logx.Logger) *Recorder {
	return &Recorder{store: store, bus: bus, log: log}
}

func (r *Recorder) Run(ctx context.Context) error {
	events, unsubscribe := r.bus.Subscribe(64)
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e, ok := <-events:
			if !ok {
				return nil
			}
			if err := r.record(ctx, e); err != nil {
				r.log.Warn("history write failed", logx.String("event", e.Type), logx.Err(err))
			}
		}
	}
}

func (r *Recorder) record(ctx context.Context, e eventbus.Event) error {
	switch e.Type {
	case eventbus.TypeTranscriptStored:
		if seg, ok := e.Data.(*session.TranscriptSegment); ok {
			return r.store.RecordTranscript(ctx, seg)
		}
	case eventbus.TypePollStored:
		if p, ok := e.Data.(*session.Poll); ok {
			return r.store.RecordPoll(ctx, p)
		}
	case eventbus.TypePollPosted:
		if p, ok := e.Data.(*session.Poll); ok {
			return r.store.MarkPollPosted(ctx, p)
		}
	case eventbus.TypeCycleCompleted, eventbus.TypeCycleAbandoned, eventbus.TypeCycleSkipped:
		return r.store.RecordCycle(ctx, cycleRecordFrom(e))
	}
	return nil
}

func cycleRecordFrom(e eventbus.Event) CycleRecord {
	rec := CycleRecord{At: e.Time}
	switch e.Type {
	case eventbus.TypeCycleCompleted:
		rec.Outcome = "completed"
	case eventbus.TypeCycleAbandoned:
		rec.Outcome = "abandoned"
	case eventbus.TypeCycleSkipped:
		rec.Outcome = "skipped"
	}
	if m, ok := e.Data.(map[string]any); ok {
		if k, ok := m["kind"].(string); ok {
			rec.Kind = k
		}
		for _, key := range []string{"error", "reason"} {
			if v, ok := m[key]; ok {
				rec.Detail = fmt.Sprint(v)
			}
		}
	}
	if rec.At.IsZero() {
		rec.At = time.Now()
	}
	return rec
}
