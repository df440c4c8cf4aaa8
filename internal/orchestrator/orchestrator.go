// Package orchestrator is the state machine at the centre of the daemon. It
// consumes scheduler fires and manual commands on a single worker queue,
// drives the automation adapter one call at a time, applies the retry policy
// and owns the session, its artifacts and the credential vault.
package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Srinivas26k/ZoomPollMaster/internal/automation"
	"github.com/Srinivas26k/ZoomPollMaster/internal/config"
	"github.com/Srinivas26k/ZoomPollMaster/internal/eventbus"
	"github.com/Srinivas26k/ZoomPollMaster/internal/schedule"
	"github.com/Srinivas26k/ZoomPollMaster/internal/session"
	"github.com/Srinivas26k/ZoomPollMaster/internal/vault"
	"github.com/Srinivas26k/ZoomPollMaster/pkg/logx"
)

type State string

const (
	StateIdle      State = "idle"
	StateConnected State = "connected"
	StateRunning   State = "running"
	StatePaused    State = "paused"
	StateStopping  State = "stopping"
)

// credKind is the vault key for the meeting passcode.
const credKind = "zoom_passcode"

// gate tracks whether an action of one kind is queued or in flight. Covers
// queued work too, so a burst of triggers cannot blow the queue up.
type gate struct {
	mu       sync.Mutex
	inflight int
}

func (g *gate) tryAcquire() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.inflight > 0 {
		return false
	}
	g.inflight++
	return true
}

func (g *gate) release() {
	g.mu.Lock()
	if g.inflight > 0 {
		g.inflight--
	}
	g.mu.Unlock()
}

// action is one unit of work on the worker queue.
type action struct {
	kind   schedule.Kind
	manual bool
	target time.Time     // scheduled fire target, zero for manual triggers
	drain  chan struct{} // barrier marker used by leave, nil otherwise
}

type Orchestrator struct {
	log     logx.Logger
	bus     eventbus.Bus
	table   *schedule.Table
	vault   *vault.Vault
	adapter automation.Adapter
	cfg     func() *config.Config

	retry Policy
	// sleep pauses between retry attempts; swapped out in tests.
	sleep func(ctx context.Context, d time.Duration) error

	queue chan action
	gates map[schedule.Kind]*gate

	mu      sync.Mutex
	state   State
	joining bool
	errFlag bool
	lastErr string
	sess    *session.Session
	segment *session.TranscriptSegment
	poll    *session.Poll
	stats   Stats
}

// Stats are running counters for the status surface.
type Stats struct {
	Captures  int `json:"captures"`
	Generated int `json:"polls_generated"`
	Posted    int `json:"polls_posted"`
	Abandoned int `json:"cycles_abandoned"`
	Skipped   int `json:"cycles_skipped"`
}

type Option func(*Orchestrator)

func WithRetryPolicy(p Policy) Option {
	return func(o *Orchestrator) { o.retry = p }
}

// WithSleep overrides the retry pause, letting tests run backoff instantly.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(o *Orchestrator) {
		if fn != nil {
			o.sleep = fn
		}
	}
}

func New(adapter automation.Adapter, table *schedule.Table, v *vault.Vault, bus eventbus.Bus, cfg func() *config.Config, log logx.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		log:     log,
		bus:     bus,
		table:   table,
		vault:   v,
		adapter: adapter,
		cfg:     cfg,
		retry:   DefaultPolicy(),
		queue:   make(chan action, 16),
		gates: map[schedule.Kind]*gate{
			schedule.KindCapture:  {},
			schedule.KindGenerate: {},
			schedule.KindPost:     {},
		},
		state: StateIdle,
	}
	o.sleep = func(ctx context.Context, d time.Duration) error {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			return nil
		}
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run is the single worker loop. Everything that touches the automation
// surface goes through here, one action at a time.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.log.Info("orchestrator worker started")
	for {
		select {
		case <-ctx.Done():
			o.log.Info("orchestrator worker stopped")
			return ctx.Err()
		case a := <-o.queue:
			if a.drain != nil {
				close(a.drain)
				continue
			}
			o.execute(ctx, a)
		}
	}
}

// HandleFire is the scheduler's dispatch target. A non-nil return means the
// fire was not accepted and the caller must reschedule the entry.
func (o *Orchestrator) HandleFire(ctx context.Context, f schedule.Fire) error {
	g := o.gates[f.Kind]
	if !g.tryAcquire() {
		o.noteSkip()
		o.publish(eventbus.TypeCycleSkipped, map[string]any{"kind": string(f.Kind), "reason": "overlap"})
		return fmt.Errorf("%s: %w", f.Kind, ErrActionInProgress)
	}
	if err := o.enqueue(action{kind: f.Kind, target: f.Target}); err != nil {
		g.release()
		return err
	}
	return nil
}

func (o *Orchestrator) enqueue(a action) error {
	select {
	case o.queue <- a:
		return nil
	default:
		return ErrQueueFull
	}
}

// trigger is the shared path for captureNow/generateNow/postNow.
func (o *Orchestrator) trigger(kind schedule.Kind) error {
	o.mu.Lock()
	if o.sess == nil {
		o.mu.Unlock()
		return ErrNoSession
	}
	if o.state == StateStopping {
		o.mu.Unlock()
		return ErrShuttingDown
	}
	o.mu.Unlock()

	g := o.gates[kind]
	if !g.tryAcquire() {
		return fmt.Errorf("%s: %w", kind, ErrActionInProgress)
	}
	if err := o.enqueue(action{kind: kind, manual: true}); err != nil {
		g.release()
		return err
	}
	o.log.Info("manual trigger accepted", logx.String("kind", string(kind)))
	return nil
}

func (o *Orchestrator) CaptureNow() error  { return o.trigger(schedule.KindCapture) }
func (o *Orchestrator) GenerateNow() error { return o.trigger(schedule.KindGenerate) }
func (o *Orchestrator) PostNow() error     { return o.trigger(schedule.KindPost) }

// Join creates the session and connects the client. Valid only from idle.
// An empty client or displayName falls back to the configured default.
func (o *Orchestrator) Join(ctx context.Context, meetingID, passcode, displayName, client string) error {
	cfg := o.cfg()
	if displayName == "" {
		displayName = cfg.DisplayName
	}
	if client == "" {
		client = cfg.ZoomClientType
	}
	sess, err := session.New(meetingID, passcode, displayName, client)
	if err != nil {
		return err
	}

	// The session is committed only after JoinMeeting returns. Until then the
	// joining flag rejects a second join, and triggers see no session, so the
	// adapter never runs two calls at once.
	o.mu.Lock()
	if o.state != StateIdle || o.joining {
		o.mu.Unlock()
		return ErrSessionActive
	}
	o.joining = true
	o.mu.Unlock()

	if err := o.adapter.JoinMeeting(ctx, sess); err != nil {
		o.mu.Lock()
		o.joining = false
		o.mu.Unlock()
		return fmt.Errorf("join meeting: %w", err)
	}

	// The passcode goes into the vault before the session becomes visible so
	// the first cycle never sees a passcode with no backing secret.
	if passcode != "" {
		ttl, _ := config.ParseDurationOrDefault("vault.ttl", cfg.Vault.TTL, vault.DefaultTTL)
		o.vault.Put(credKind, passcode, ttl)
	}

	o.mu.Lock()
	o.joining = false
	o.state = StateConnected
	o.sess = sess
	o.mu.Unlock()

	o.log.Info("joined meeting",
		logx.String("meeting_id", sess.MeetingID),
		logx.String("client", sess.Client))
	o.publish(eventbus.TypeSessionJoined, sess)

	if cfg.AutoStart {
		return o.Start()
	}
	return nil
}

// Start seeds or re-enables the recurring capture and post entries and moves
// to running. Valid from connected (fresh seed) or paused (re-enable).
func (o *Orchestrator) Start() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	switch o.state {
	case StateConnected:
		cfg := o.cfg()
		if cfg.CaptureSchedule != "" {
			if err := o.table.UpsertCron(schedule.KindCapture, cfg.CaptureSchedule); err != nil {
				return err
			}
		} else {
			o.table.Upsert(schedule.KindCapture, cfg.TranscriptEvery())
		}
		if cfg.PostSchedule != "" {
			if err := o.table.UpsertCron(schedule.KindPost, cfg.PostSchedule); err != nil {
				return err
			}
		} else {
			o.table.Upsert(schedule.KindPost, cfg.PollEvery())
		}
		// First capture runs right away; the seeded entries take over from
		// the next interval on.
		if o.gates[schedule.KindCapture].tryAcquire() {
			if err := o.enqueue(action{kind: schedule.KindCapture, manual: true}); err != nil {
				o.gates[schedule.KindCapture].release()
				o.log.Warn("initial capture not queued", logx.Err(err))
			}
		}
	case StatePaused:
		o.table.Reenable(schedule.KindCapture)
		o.table.Reenable(schedule.KindPost)
	case StateRunning:
		return nil
	default:
		return ErrNotConnected
	}
	o.state = StateRunning
	o.log.Info("automation started")
	return nil
}

// Stop disables the schedule without removing it. An in-flight adapter call
// finishes naturally; automation gestures are not safely preemptible.
func (o *Orchestrator) Stop() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != StateRunning {
		return ErrNotRunning
	}
	o.table.SetEnabled(schedule.KindCapture, false)
	o.table.SetEnabled(schedule.KindPost, false)
	o.state = StatePaused
	o.log.Info("automation stopped, schedule preserved")
	return nil
}

// Leave waits for any in-flight action, then destroys the session and every
// artifact derived from it.
func (o *Orchestrator) Leave(ctx context.Context) error {
	o.mu.Lock()
	switch o.state {
	case StateIdle:
		o.mu.Unlock()
		return ErrNoSession
	case StateRunning:
		o.table.SetEnabled(schedule.KindCapture, false)
		o.table.SetEnabled(schedule.KindPost, false)
	}
	o.state = StateStopping
	sess := o.sess
	o.mu.Unlock()

	// Barrier: queued and in-flight actions complete before teardown.
	drained := make(chan struct{})
	select {
	case o.queue <- action{drain: drained}:
		select {
		case <-drained:
		case <-ctx.Done():
			return ctx.Err()
		}
	case <-ctx.Done():
		return ctx.Err()
	}

	if err := o.adapter.LeaveMeeting(ctx); err != nil {
		o.log.Warn("leave meeting", logx.Err(err))
	}

	o.table.Clear()
	o.vault.Clear()

	o.mu.Lock()
	o.sess = nil
	o.segment = nil
	o.poll = nil
	o.errFlag = false
	o.lastErr = ""
	o.state = StateIdle
	o.mu.Unlock()

	o.log.Info("left meeting", logx.String("meeting_id", sess.MeetingID))
	o.publish(eventbus.TypeSessionLeft, sess)
	return nil
}

// execute runs one action end to end: credential check, bounded retries,
// artifact updates, unconditional reschedule for scheduled fires.
func (o *Orchestrator) execute(ctx context.Context, a action) {
	defer o.gates[a.kind].release()
	if !a.manual {
		// Failures never stall future cycles. The anchor is completion time,
		// so the reschedule must run after the cycle, not capture now here.
		defer func() { o.table.Reschedule(a.kind, time.Now()) }()
	}

	o.mu.Lock()
	sess := o.sess
	o.mu.Unlock()
	if sess == nil {
		o.log.Warn("dropping action, session is gone", logx.String("kind", string(a.kind)))
		return
	}

	if !o.credentialsFresh(sess) {
		o.noteSkip()
		o.log.Warn("credentials expired, skipping cycle", logx.String("kind", string(a.kind)))
		o.publish(eventbus.TypeCredentialReprompt, map[string]any{"kind": credKind})
		o.publish(eventbus.TypeCycleSkipped, map[string]any{"kind": string(a.kind), "reason": "credentials_expired"})
		return
	}

	start := time.Now()
	started := map[string]any{"kind": string(a.kind), "manual": a.manual}
	if !a.target.IsZero() {
		started["target"] = a.target
	}
	o.publish(eventbus.TypeCycleStarted, started)

	var err error
	switch a.kind {
	case schedule.KindCapture:
		err = o.runCapture(ctx, sess)
	case schedule.KindGenerate:
		err = o.runGenerate(ctx)
	case schedule.KindPost:
		err = o.runPost(ctx)
	}

	if err != nil {
		o.abandon(a.kind, err, time.Since(start))
		return
	}

	o.mu.Lock()
	o.errFlag = false
	o.lastErr = ""
	o.mu.Unlock()
	o.publish(eventbus.TypeCycleCompleted, map[string]any{
		"kind":     string(a.kind),
		"manual":   a.manual,
		"duration": time.Since(start).String(),
	})
}

// attempt runs fn under the retry policy. Only transport and malformed
// response failures are retried; everything else is terminal for the cycle.
func (o *Orchestrator) attempt(ctx context.Context, kind schedule.Kind, fn func(context.Context) error) error {
	var err error
	for n := 1; n <= o.retry.MaxAttempts; n++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}
		if !automation.Retryable(err) || n == o.retry.MaxAttempts {
			return err
		}
		delay := o.retry.Delay(n)
		o.log.Warn("cycle attempt failed, retrying",
			logx.String("kind", string(kind)),
			logx.Int("attempt", n),
			logx.Duration("delay", delay),
			logx.Err(err))
		if serr := o.sleep(ctx, delay); serr != nil {
			return err
		}
	}
	return err
}

func (o *Orchestrator) runCapture(ctx context.Context, sess *session.Session) error {
	var seg *session.TranscriptSegment
	err := o.attempt(ctx, schedule.KindCapture, func(ctx context.Context) error {
		var err error
		seg, err = o.adapter.CaptureTranscript(ctx, sess)
		return err
	})
	if err != nil {
		return err
	}

	o.mu.Lock()
	o.segment = seg
	o.stats.Captures++
	o.mu.Unlock()

	o.log.Info("transcript captured",
		logx.Int("chars", len(seg.Text)),
		logx.Duration("window", seg.Duration))
	o.publish(eventbus.TypeTranscriptStored, seg)
	o.saveTranscript(seg)

	// Chain: a fresh segment goes straight to generation, no timer involved.
	if o.gates[schedule.KindGenerate].tryAcquire() {
		if err := o.enqueue(action{kind: schedule.KindGenerate}); err != nil {
			o.gates[schedule.KindGenerate].release()
			o.log.Warn("could not chain generate", logx.Err(err))
		}
	} else {
		o.log.Warn("generate already pending, capture will feed the next run")
	}
	return nil
}

func (o *Orchestrator) runGenerate(ctx context.Context) error {
	o.mu.Lock()
	seg := o.segment
	o.mu.Unlock()
	if seg == nil {
		o.log.Warn("generate with no transcript captured yet, skipping")
		o.publish(eventbus.TypeCycleSkipped, map[string]any{"kind": "generate", "reason": "no_transcript"})
		return nil
	}
	poll, err := o.generateFrom(ctx, seg)
	if err != nil {
		return err
	}
	o.storePoll(poll)
	return nil
}

func (o *Orchestrator) generateFrom(ctx context.Context, seg *session.TranscriptSegment) (*session.Poll, error) {
	var poll *session.Poll
	err := o.attempt(ctx, schedule.KindGenerate, func(ctx context.Context) error {
		var err error
		poll, err = o.adapter.GeneratePoll(ctx, seg.Text)
		return err
	})
	if err != nil {
		return nil, err
	}
	poll.SourceCapturedAt = seg.CapturedAt
	return poll, nil
}

func (o *Orchestrator) storePoll(p *session.Poll) {
	o.mu.Lock()
	o.poll = p
	o.stats.Generated++
	o.mu.Unlock()
	o.log.Info("poll generated", logx.String("question", p.Question))
	o.publish(eventbus.TypePollStored, p)
}

func (o *Orchestrator) runPost(ctx context.Context) error {
	o.mu.Lock()
	poll := o.poll
	seg := o.segment
	o.mu.Unlock()

	if poll == nil {
		// No poll waiting. With a transcript on hand, generate one now so a
		// post tick still delivers; with nothing at all it is a logged no-op.
		if seg == nil {
			o.log.Info("post tick with no poll available, skipping")
			o.publish(eventbus.TypeCycleSkipped, map[string]any{"kind": "post", "reason": "no_poll"})
			return nil
		}
		var err error
		poll, err = o.generateFrom(ctx, seg)
		if err != nil {
			return err
		}
		o.storePoll(poll)
	}

	err := o.attempt(ctx, schedule.KindPost, func(ctx context.Context) error {
		return o.adapter.PostPoll(ctx, poll)
	})
	if err != nil {
		return err
	}

	o.mu.Lock()
	o.poll = nil
	o.stats.Posted++
	o.mu.Unlock()
	o.log.Info("poll posted", logx.String("question", poll.Question))
	o.publish(eventbus.TypePollPosted, poll)
	return nil
}

func (o *Orchestrator) abandon(kind schedule.Kind, err error, dur time.Duration) {
	o.mu.Lock()
	o.errFlag = true
	o.lastErr = err.Error()
	o.stats.Abandoned++
	o.mu.Unlock()
	o.log.Error("cycle abandoned after retries",
		logx.String("kind", string(kind)),
		logx.Duration("dur", dur),
		logx.Err(err))
	o.publish(eventbus.TypeCycleAbandoned, map[string]any{"kind": string(kind), "error": err.Error()})
}

// credentialsFresh reports whether the stored passcode is still usable. A
// session joined without a passcode has nothing in the vault and is fine.
// When the session does carry a passcode, a missing vault entry counts as
// expired too: the sweep loop deletes expired secrets before the worker ever
// reads them.
func (o *Orchestrator) credentialsFresh(sess *session.Session) bool {
	if sess.Passcode == "" {
		return true
	}
	_, err := o.vault.Get(credKind)
	return err == nil
}

func (o *Orchestrator) saveTranscript(seg *session.TranscriptSegment) {
	cfg := o.cfg()
	if !cfg.SaveTranscripts {
		return
	}
	dir := cfg.TranscriptsFolder
	if err := os.MkdirAll(dir, 0o755); err != nil {
		o.log.Warn("create transcripts folder", logx.Err(err))
		return
	}
	name := "transcript_" + seg.CapturedAt.Format("20060102_150405") + ".txt"
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(seg.Text), 0o644); err != nil {
		o.log.Warn("save transcript", logx.String("path", path), logx.Err(err))
		return
	}
	o.log.Debug("transcript saved", logx.String("path", path))
}

func (o *Orchestrator) noteSkip() {
	o.mu.Lock()
	o.stats.Skipped++
	o.mu.Unlock()
}

func (o *Orchestrator) publish(typ string, data any) {
	if o.bus != nil {
		o.bus.Publish(eventbus.Event{Type: typ, Time: time.Now(), Data: data})
	}
}
