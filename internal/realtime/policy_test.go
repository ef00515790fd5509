package realtime

import (
	"math"
	"testing"
	"time"
)

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()

	for attempt := 0; attempt < DefaultMaxReconnectAttempts; attempt++ {
		delay, ok := p.Next(attempt)
		if !ok {
			t.Fatalf("Next(%d) ok = false, want true", attempt)
		}
		if delay != 5*time.Second {
			t.Errorf("Next(%d) delay = %v, want 5s", attempt, delay)
		}
	}

	if _, ok := p.Next(DefaultMaxReconnectAttempts); ok {
		t.Errorf("Next(%d) ok = true, want false", DefaultMaxReconnectAttempts)
	}
}

func TestFixedPolicy_ZeroAttempts(t *testing.T) {
	p := FixedPolicy{Delay: time.Second}
	if _, ok := p.Next(0); ok {
		t.Error("Next(0) ok = true with MaxAttempts 0")
	}
}

func TestExponentialPolicy(t *testing.T) {
	p := ExponentialPolicy{
		Base:        time.Second,
		Max:         10 * time.Second,
		MaxAttempts: 6,
	}

	want := []time.Duration{
		time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		10 * time.Second,
		10 * time.Second,
	}
	for attempt, w := range want {
		got, ok := p.Next(attempt)
		if !ok {
			t.Fatalf("Next(%d) ok = false", attempt)
		}
		if got != w {
			t.Errorf("Next(%d) = %v, want %v", attempt, got, w)
		}
	}

	if _, ok := p.Next(6); ok {
		t.Error("Next(6) ok = true, want false")
	}
}

func TestExponentialPolicy_LargeAttemptCapped(t *testing.T) {
	p := ExponentialPolicy{Base: time.Second, Max: time.Minute, MaxAttempts: 1000}

	got, ok := p.Next(500)
	if !ok || got != time.Minute {
		t.Errorf("Next(500) = %v, %v; want 1m, true", got, ok)
	}
}

func TestExponentialPolicy_UncappedDoesNotOverflow(t *testing.T) {
	p := ExponentialPolicy{Base: time.Second, MaxAttempts: 100}

	prev := time.Duration(0)
	for _, attempt := range []int{0, 10, 33, 34, 40, 60, 99} {
		got, ok := p.Next(attempt)
		if !ok {
			t.Fatalf("Next(%d) ok = false", attempt)
		}
		if got <= 0 {
			t.Fatalf("Next(%d) = %v, want positive", attempt, got)
		}
		if got < prev {
			t.Errorf("Next(%d) = %v, shorter than previous %v", attempt, got, prev)
		}
		prev = got
	}

	if got, _ := p.Next(99); got != time.Duration(math.MaxInt64) {
		t.Errorf("Next(99) = %v, want max duration", got)
	}
}

func TestExponentialPolicy_Jitter(t *testing.T) {
	p := ExponentialPolicy{
		Base:        4 * time.Second,
		Max:         time.Minute,
		MaxAttempts: 3,
		Jitter:      0.5,
		rand:        func() float64 { return 0.5 },
	}

	// 4s minus 0.5 * 0.5 * 4s.
	got, _ := p.Next(0)
	if got != 3*time.Second {
		t.Errorf("Next(0) = %v, want 3s", got)
	}
}
