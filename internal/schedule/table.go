// Package schedule owns the timed side of the automation cycle: a table of
// at-most-one entry per action kind, and a timing loop that dispatches due
// entries to the orchestrator's worker queue.
package schedule

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Kind identifies an automation action.
type Kind string

const (
	KindCapture  Kind = "capture"
	KindGenerate Kind = "generate"
	KindPost     Kind = "post"
)

// Reschedule policies.
type Policy int

const (
	// FixedDelay computes the next fire time from the completion time.
	// Resilient against slow adapter calls; the default.
	FixedDelay Policy = iota
	// FixedRate computes the next fire time from the previous target time,
	// skipping past targets rather than bursting to catch up.
	FixedRate
)

// Entry is one scheduled action. Keyed uniquely by Kind: the table never
// holds two entries of the same kind.
type Entry struct {
	Kind     Kind
	NextFire time.Time
	Interval time.Duration
	Enabled  bool

	// firing marks an entry that was dispatched and is awaiting its
	// Reschedule; it is not due again until then.
	firing     bool
	prevTarget time.Time
	seq        uint64

	cronSpec string
	cronNext cron.Schedule
}

// Fire describes one dispatched entry.
type Fire struct {
	Kind   Kind
	Target time.Time // the fire time the entry was due at
}

// Table is the schedule state. It is mutated by the timing loop and by the
// orchestrator's action handlers; both run on different goroutines, so all
// access is guarded here.
type Table struct {
	mu      sync.Mutex
	entries map[Kind]*Entry
	policy  Policy
	seq     uint64
	now     func() time.Time
}

type TableOption func(*Table)

func WithPolicy(p Policy) TableOption {
	return func(t *Table) { t.policy = p }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) TableOption {
	return func(t *Table) {
		if now != nil {
			t.now = now
		}
	}
}

func NewTable(opts ...TableOption) *Table {
	t := &Table{
		entries: map[Kind]*Entry{},
		policy:  FixedDelay,
		now:     time.Now,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// cronParser accepts standard 5-field specs plus descriptors like "@every 10m".
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseSpec validates a cron spec for config validation.
func ParseSpec(spec string) (cron.Schedule, error) {
	return cronParser.Parse(strings.TrimSpace(spec))
}

// Upsert creates or replaces the entry for kind, enabled, first firing at
// now + interval. Idempotent per kind.
func (t *Table) Upsert(kind Kind, interval time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seq++
	t.entries[kind] = &Entry{
		Kind:     kind,
		NextFire: t.now().Add(interval),
		Interval: interval,
		Enabled:  true,
		seq:      t.seq,
	}
}

// UpsertCron is Upsert with a cron spec driving the fire times instead of a
// plain interval.
func (t *Table) UpsertCron(kind Kind, spec string) error {
	sched, err := ParseSpec(spec)
	if err != nil {
		return fmt.Errorf("schedule %q for %s: %w", spec, kind, err)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seq++
	t.entries[kind] = &Entry{
		Kind:     kind,
		NextFire: sched.Next(t.now()),
		Enabled:  true,
		seq:      t.seq,
		cronSpec: spec,
		cronNext: sched,
	}
	return nil
}

// SetEnabled flips an entry without touching its fire time; used by stop()
// (disable, preserve) and start() (re-enable).
func (t *Table) SetEnabled(kind Kind, enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.entries[kind]; ok {
		e.Enabled = enabled
	}
}

// Reenable re-enables an entry and, if its fire time has passed while
// disabled, moves it forward so a resumed session doesn't fire immediately.
func (t *Table) Reenable(kind Kind) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[kind]
	if !ok {
		return
	}
	e.Enabled = true
	now := t.now()
	if !e.NextFire.After(now) {
		e.NextFire = t.nextAfterLocked(e, now)
	}
}

// Remove deletes the entry for kind (leave()).
func (t *Table) Remove(kind Kind) {
	t.mu.Lock()
	delete(t.entries, kind)
	t.mu.Unlock()
}

// Clear deletes every entry.
func (t *Table) Clear() {
	t.mu.Lock()
	t.entries = map[Kind]*Entry{}
	t.mu.Unlock()
}

// Due returns fires for all enabled entries with NextFire <= now, ascending
// by fire time (ties: insertion order), marking each as firing so it is not
// returned again until rescheduled.
func (t *Table) Due(now time.Time) []Fire {
	t.mu.Lock()
	defer t.mu.Unlock()

	var due []*Entry
	for _, e := range t.entries {
		if e.Enabled && !e.firing && !e.NextFire.After(now) {
			due = append(due, e)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if !due[i].NextFire.Equal(due[j].NextFire) {
			return due[i].NextFire.Before(due[j].NextFire)
		}
		return due[i].seq < due[j].seq
	})

	fires := make([]Fire, 0, len(due))
	for _, e := range due {
		e.firing = true
		e.prevTarget = e.NextFire
		fires = append(fires, Fire{Kind: e.Kind, Target: e.NextFire})
	}
	return fires
}

// Reschedule computes the next fire time for a fired entry. Called by the
// action handler after the cycle completes (success or abandonment), or by
// the timing loop itself when a dispatch was skipped.
func (t *Table) Reschedule(kind Kind, completedAt time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[kind]
	if !ok {
		return
	}
	e.firing = false
	e.NextFire = t.nextAfterLocked(e, completedAt)
}

func (t *Table) nextAfterLocked(e *Entry, completedAt time.Time) time.Time {
	if e.cronNext != nil {
		return e.cronNext.Next(completedAt)
	}
	if t.policy == FixedRate && !e.prevTarget.IsZero() {
		next := e.prevTarget.Add(e.Interval)
		// Skip missed targets instead of bursting.
		for !next.After(completedAt) {
			next = next.Add(e.Interval)
		}
		return next
	}
	return completedAt.Add(e.Interval)
}

// NextFire reports the pending fire time for kind, if an enabled entry exists.
func (t *Table) NextFire(kind Kind) (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[kind]
	if !ok || !e.Enabled {
		return time.Time{}, false
	}
	return e.NextFire, true
}

// EntrySnapshot is a read-only view for status payloads.
type EntrySnapshot struct {
	Kind     Kind          `json:"kind"`
	NextFire time.Time     `json:"next_fire_time"`
	Interval time.Duration `json:"interval"`
	Enabled  bool          `json:"enabled"`
	CronSpec string        `json:"cron_spec,omitempty"`
}

func (t *Table) Snapshot() []EntrySnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]EntrySnapshot, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, EntrySnapshot{
			Kind:     e.Kind,
			NextFire: e.NextFire,
			Interval: e.Interval,
			Enabled:  e.Enabled,
			CronSpec: e.cronSpec,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out
}
