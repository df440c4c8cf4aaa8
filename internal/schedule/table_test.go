package schedule

import (
	"testing"
	"time"
)

func fixedClock(t *time.Time) func() time.Time {
	return func() time.Time { return *t }
}

func TestUpsertIsUniquePerKind(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	tbl := NewTable(WithClock(fixedClock(&now)))

	tbl.Upsert(KindCapture, 10*time.Minute)
	tbl.Upsert(KindCapture, 5*time.Minute)
	tbl.Upsert(KindPost, 15*time.Minute)

	snap := tbl.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("entries = %d, want 2 (one per kind)", len(snap))
	}
	next, ok := tbl.NextFire(KindCapture)
	if !ok || !next.Equal(now.Add(5*time.Minute)) {
		t.Fatalf("capture next fire = %v, want replacement interval", next)
	}
}

func TestDueOrderingAndFiringFlag(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	tbl := NewTable(WithClock(fixedClock(&now)))

	tbl.Upsert(KindPost, 2*time.Minute)
	tbl.Upsert(KindCapture, time.Minute)

	if fires := tbl.Due(now); len(fires) != 0 {
		t.Fatalf("nothing should be due yet, got %v", fires)
	}

	now = now.Add(3 * time.Minute)
	fires := tbl.Due(now)
	if len(fires) != 2 {
		t.Fatalf("due = %d, want 2", len(fires))
	}
	// Ascending fire time: capture (t+1m) before post (t+2m).
	if fires[0].Kind != KindCapture || fires[1].Kind != KindPost {
		t.Fatalf("wrong order: %v", fires)
	}

	// A fired entry is not due again until rescheduled.
	if again := tbl.Due(now.Add(time.Hour)); len(again) != 0 {
		t.Fatalf("fired entries returned again: %v", again)
	}

	tbl.Reschedule(KindCapture, now)
	now = now.Add(2 * time.Minute)
	if again := tbl.Due(now); len(again) != 1 || again[0].Kind != KindCapture {
		t.Fatalf("rescheduled capture not due: %v", again)
	}
}

func TestDueTieBreakByInsertionOrder(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	tbl := NewTable(WithClock(fixedClock(&now)))

	tbl.Upsert(KindPost, time.Minute)
	tbl.Upsert(KindCapture, time.Minute)

	now = now.Add(time.Minute)
	fires := tbl.Due(now)
	if len(fires) != 2 || fires[0].Kind != KindPost || fires[1].Kind != KindCapture {
		t.Fatalf("tie not broken by insertion order: %v", fires)
	}
}

func TestRescheduleFixedDelay(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	tbl := NewTable(WithClock(fixedClock(&now)))
	tbl.Upsert(KindCapture, 10*time.Minute)

	now = now.Add(10 * time.Minute)
	tbl.Due(now)

	// A slow cycle finishes 4 minutes after the fire.
	completed := now.Add(4 * time.Minute)
	tbl.Reschedule(KindCapture, completed)

	next, _ := tbl.NextFire(KindCapture)
	if !next.Equal(completed.Add(10 * time.Minute)) {
		t.Fatalf("fixed delay next = %v, want completion+interval", next)
	}
}

func TestRescheduleFixedRateSkipsMissedTargets(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	tbl := NewTable(WithPolicy(FixedRate), WithClock(fixedClock(&now)))
	tbl.Upsert(KindPost, 10*time.Minute)

	target := now.Add(10 * time.Minute)
	now = target
	tbl.Due(now)

	// The cycle overruns past two whole intervals; no catch-up burst.
	completed := target.Add(25 * time.Minute)
	tbl.Reschedule(KindPost, completed)

	next, _ := tbl.NextFire(KindPost)
	if !next.Equal(target.Add(30 * time.Minute)) {
		t.Fatalf("fixed rate next = %v, want target+3*interval", next)
	}
}

func TestDisablePreservesEnableRestores(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	tbl := NewTable(WithClock(fixedClock(&now)))
	tbl.Upsert(KindCapture, time.Minute)

	tbl.SetEnabled(KindCapture, false)
	now = now.Add(5 * time.Minute)
	if fires := tbl.Due(now); len(fires) != 0 {
		t.Fatalf("disabled entry fired: %v", fires)
	}

	// Re-enabling after the fire time passed pushes the entry forward
	// instead of firing immediately.
	tbl.Reenable(KindCapture)
	if fires := tbl.Due(now); len(fires) != 0 {
		t.Fatalf("re-enabled entry fired immediately: %v", fires)
	}
	next, _ := tbl.NextFire(KindCapture)
	if !next.Equal(now.Add(time.Minute)) {
		t.Fatalf("re-enabled next = %v, want now+interval", next)
	}
}

func TestRemoveAndClear(t *testing.T) {
	tbl := NewTable()
	tbl.Upsert(KindCapture, time.Minute)
	tbl.Upsert(KindPost, time.Minute)

	tbl.Remove(KindCapture)
	if _, ok := tbl.NextFire(KindCapture); ok {
		t.Fatalf("removed entry still present")
	}
	tbl.Clear()
	if n := len(tbl.Snapshot()); n != 0 {
		t.Fatalf("entries after clear = %d", n)
	}
}

func TestUpsertCron(t *testing.T) {
	tbl := NewTable()
	if err := tbl.UpsertCron(KindCapture, "*/5 * * * *"); err != nil {
		t.Fatalf("valid spec rejected: %v", err)
	}
	if err := tbl.UpsertCron(KindCapture, "not a cron spec"); err == nil {
		t.Fatalf("invalid spec accepted")
	}
	if _, ok := tbl.NextFire(KindCapture); !ok {
		t.Fatalf("cron entry missing")
	}
}
