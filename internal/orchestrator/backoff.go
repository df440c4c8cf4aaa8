package orchestrator

import (
	"time"

	"github.com/Srinivas26k/ZoomPollMaster/internal/config"
)

// Policy is the retry policy shared by all three action kinds: a bounded
// attempt count with capped exponential delays between attempts.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultPolicy gives three attempts with 2s and 4s pauses between them.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 3, BaseDelay: 2 * time.Second, MaxDelay: 8 * time.Second}
}

func PolicyFromConfig(c config.RetryConfig) Policy {
	p := DefaultPolicy()
	if c.MaxAttempts > 0 {
		p.MaxAttempts = c.MaxAttempts
	}
	if d, err := config.ParseDurationOrDefault("retry.base_delay", c.BaseDelay, p.BaseDelay); err == nil {
		p.BaseDelay = d
	}
	if d, err := config.ParseDurationOrDefault("retry.max_delay", c.MaxDelay, p.MaxDelay); err == nil {
		p.MaxDelay = d
	}
	return p
}

// Delay returns the pause after the given 1-based failed attempt:
// base, base*2, base*4, ... capped at MaxDelay.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := p.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}
