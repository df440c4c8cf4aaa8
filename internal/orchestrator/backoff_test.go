package orchestrator

import (
	"testing"
	"time"

	"github.com/Srinivas26k/ZoomPollMaster/internal/config"
)

func TestPolicyDelays(t *testing.T) {
	p := DefaultPolicy()

	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 8 * time.Second}, // capped
		{10, 8 * time.Second},
		{0, 2 * time.Second}, // clamped to first attempt
	}
	for _, tc := range cases {
		if got := p.Delay(tc.attempt); got != tc.want {
			t.Fatalf("Delay(%d) = %v, want %v", tc.attempt, got, tc.want)
		}
	}
}

func TestPolicyFromConfig(t *testing.T) {
	p := PolicyFromConfig(config.RetryConfig{})
	if p != DefaultPolicy() {
		t.Fatalf("empty config should yield the default policy, got %+v", p)
	}

	p = PolicyFromConfig(config.RetryConfig{MaxAttempts: 5, BaseDelay: "1s", MaxDelay: "3s"})
	if p.MaxAttempts != 5 || p.BaseDelay != time.Second || p.MaxDelay != 3*time.Second {
		t.Fatalf("unexpected policy %+v", p)
	}
	if got := p.Delay(3); got != 3*time.Second {
		t.Fatalf("Delay(3) = %v, want cap 3s", got)
	}
}
