package realtime

import (
	"math"
	"math/rand"
	"time"
)

// Default reconnection policy.
const (
	DefaultReconnectDelay       = 5 * time.Second
	DefaultMaxReconnectAttempts = 5
)

// Policy decides whether and when to retry after a close.
// attempt is the number of reconnects already scheduled in the current
// budget (0 for the first close after an open).
type Policy interface {
	Next(attempt int) (delay time.Duration, ok bool)
}

// FixedPolicy retries MaxAttempts times with a constant delay.
// MaxAttempts <= 0 disables reconnection.
type FixedPolicy struct {
	Delay       time.Duration
	MaxAttempts int
}

// DefaultPolicy returns the five attempts, five seconds apart policy.
func DefaultPolicy() FixedPolicy {
	return FixedPolicy{
		Delay:       DefaultReconnectDelay,
		MaxAttempts: DefaultMaxReconnectAttempts,
	}
}

// Next implements Policy.
func (p FixedPolicy) Next(attempt int) (time.Duration, bool) {
	if attempt >= p.MaxAttempts {
		return 0, false
	}
	return p.Delay, true
}

// ExponentialPolicy doubles the delay on every attempt, capped at Max (or at
// the largest Duration when Max <= 0), and subtracts up to Jitter (a fraction
// in [0,1]) of it at random so clients that dropped together don't reconnect
// together.
type ExponentialPolicy struct {
	Base        time.Duration
	Max         time.Duration
	MaxAttempts int
	Jitter      float64

	rand func() float64
}

// Next implements Policy.
func (p ExponentialPolicy) Next(attempt int) (time.Duration, bool) {
	if attempt >= p.MaxAttempts {
		return 0, false
	}

	delay := p.Base
	for i := 0; i < attempt; i++ {
		if p.Max > 0 && delay >= p.Max {
			break
		}
		if delay > math.MaxInt64/2 {
			delay = math.MaxInt64
			break
		}
		delay *= 2
	}
	if p.Max > 0 && delay > p.Max {
		delay = p.Max
	}

	if p.Jitter > 0 {
		jitter := p.Jitter
		if jitter > 1 {
			jitter = 1
		}
		rnd := p.rand
		if rnd == nil {
			rnd = rand.Float64
		}
		delay -= time.Duration(rnd() * jitter * float64(delay))
	}

	return delay, true
}
