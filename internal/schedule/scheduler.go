package schedule

import (
	"context"
	"time"

	"github.com/Srinivas26k/ZoomPollMaster/pkg/logx"
)

// Dispatch hands a due fire to the orchestrator's worker queue. A non-nil
// error means the fire was not accepted (queue full, overlap skip); the loop
// reschedules the entry itself in that case so it is never stuck firing.
type Dispatch func(ctx context.Context, f Fire) error

// Scheduler is the timing loop. It wakes on a fixed check interval, collects
// due entries from the table and hands them off one at a time, in order.
// Dispatch must not block on the action itself.
type Scheduler struct {
	table    *Table
	check    time.Duration
	dispatch Dispatch
	log      logx.Logger
}

func NewScheduler(table *Table, check time.Duration, dispatch Dispatch, log logx.Logger) *Scheduler {
	if check <= 0 {
		check = 30 * time.Second
	}
	return &Scheduler{table: table, check: check, dispatch: dispatch, log: log}
}

// Run blocks until ctx is cancelled. Intended to be launched under the
// supervisor with restart.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Info("scheduler started", logx.Duration("check_interval", s.check))
	ticker := time.NewTicker(s.check)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return ctx.Err()
		case now := <-ticker.C:
			s.tick(ctx, now)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, now time.Time) {
	for _, f := range s.table.Due(now) {
		if err := s.dispatch(ctx, f); err != nil {
			// The handler never ran, so the reschedule falls to us.
			s.table.Reschedule(f.Kind, s.table.now())
			s.log.Warn("scheduled action skipped",
				logx.String("kind", string(f.Kind)),
				logx.Time("target", f.Target),
				logx.Err(err))
		}
	}
}
