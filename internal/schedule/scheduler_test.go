package schedule

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Srinivas26k/ZoomPollMaster/pkg/logx"
)

func TestTickDispatchesDueEntries(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	tbl := NewTable(WithClock(fixedClock(&now)))
	tbl.Upsert(KindCapture, time.Minute)

	var mu sync.Mutex
	var got []Fire
	s := NewScheduler(tbl, time.Second, func(_ context.Context, f Fire) error {
		mu.Lock()
		got = append(got, f)
		mu.Unlock()
		return nil
	}, logx.Nop())

	now = now.Add(2 * time.Minute)
	s.tick(context.Background(), now)

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || got[0].Kind != KindCapture {
		t.Fatalf("dispatched = %v", got)
	}
}

func TestTickReschedulesOnRejectedDispatch(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	tbl := NewTable(WithClock(fixedClock(&now)))
	tbl.Upsert(KindCapture, time.Minute)

	s := NewScheduler(tbl, time.Second, func(context.Context, Fire) error {
		return errors.New("queue busy")
	}, logx.Nop())

	now = now.Add(time.Minute)
	s.tick(context.Background(), now)

	// The rejected entry is rescheduled by the loop, not stuck firing.
	next, ok := tbl.NextFire(KindCapture)
	if !ok {
		t.Fatalf("entry vanished")
	}
	if !next.Equal(now.Add(time.Minute)) {
		t.Fatalf("next = %v, want now+interval", next)
	}
	now = now.Add(time.Minute)
	if fires := tbl.Due(now); len(fires) != 1 {
		t.Fatalf("entry not due again after skip: %v", fires)
	}
}
