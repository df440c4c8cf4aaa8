// Package eventbus is a small in-memory fanout used to decouple the
// orchestrator from observers (storage recorder, web status, credential
// re-prompt collaborators).
package eventbus

import (
	"sync"
	"sync/atomic"
	"time"
)

// Well-known event types published by the orchestrator.
const (
	TypeCycleStarted       = "cycle.started"
	TypeCycleCompleted     = "cycle.completed"
	TypeCycleAbandoned     = "cycle.abandoned"
	TypeCycleSkipped       = "cycle.skipped"
	TypeTranscriptStored   = "transcript.stored"
	TypePollStored         = "poll.stored"
	TypePollPosted         = "poll.posted"
	TypeCredentialReprompt = "credential.reprompt"
	TypeSessionJoined      = "session.joined"
	TypeSessionLeft        = "session.left"
)

// Event is a lightweight, in-memory signal.
//
// Contract:
//   - Publish MUST be non-blocking.
//   - Slow subscribers may drop events (bounded backpressure).
//
// Data should be small and JSON-serializable.
type Event struct {
	Type string
	Time time.Time
	Data any
}

type Bus interface {
	Publish(e Event)
	Subscribe(buffer int) (ch <-chan Event, unsubscribe func())
}

// New returns a simple in-memory fanout bus.
// It does not own any background goroutines.
func New() Bus {
	return &memBus{subs: map[uint64]chan Event{}}
}

type memBus struct {
	mu   sync.RWMutex
	subs map[uint64]chan Event
	seq  atomic.Uint64
}

func (b *memBus) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	// Snapshot subscribers so Publish doesn't hold locks while sending.
	b.mu.RLock()
	chs := make([]chan Event, 0, len(b.subs))
	for _, ch := range b.subs {
		chs = append(chs, ch)
	}
	b.mu.RUnlock()

	for _, ch := range chs {
		// Non-blocking delivery; a concurrently closed channel must not panic Publish.
		func() {
			defer func() { _ = recover() }()
			select {
			case ch <- e:
			default:
			}
		}()
	}
}

func (b *memBus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 8
	}
	ch := make(chan Event, buffer)
	id := b.seq.Add(1)

	b.mu.Lock()
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			// Safe because Publish recovers from send panics.
			close(ch)
		})
	}
	return ch, unsub
}
