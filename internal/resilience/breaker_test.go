package resilience

import (
	"errors"
	"testing"
	"time"
)

var errBackend = errors.New("backend down")

func TestNewBreakerDefaults(t *testing.T) {
	b := NewBreaker(BreakerConfig{Name: "test"})
	if b.trip != 5 {
		t.Errorf("trip = %d, want 5", b.trip)
	}
	if b.coolDown != 30*time.Second {
		t.Errorf("coolDown = %v, want 30s", b.coolDown)
	}
	if b.probes != 3 {
		t.Errorf("probes = %d, want 3", b.probes)
	}
	if b.State() != StateClosed {
		t.Errorf("initial state = %v, want closed", b.State())
	}
}

func TestBreakerClosedForwardsCalls(t *testing.T) {
	b := NewBreaker(BreakerConfig{Name: "test"})
	called := false
	if err := b.Do(func() error { called = true; return nil }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Error("closed breaker must forward the call")
	}
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	b := NewBreaker(BreakerConfig{Name: "test", Trip: 3, CoolDown: time.Hour})
	for i := 0; i < 3; i++ {
		if err := b.Do(func() error { return errBackend }); !errors.Is(err, errBackend) {
			t.Fatalf("call %d: err = %v, want backend error", i, err)
		}
	}
	if b.State() != StateOpen {
		t.Fatalf("state = %v, want open after 3 failures", b.State())
	}
	if err := b.Do(func() error { t.Fatal("open breaker must not call through"); return nil }); !errors.Is(err, ErrBreakerOpen) {
		t.Errorf("err = %v, want ErrBreakerOpen", err)
	}
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	b := NewBreaker(BreakerConfig{Name: "test", Trip: 2})
	b.Do(func() error { return errBackend })
	b.Do(func() error { return nil })
	b.Do(func() error { return errBackend })
	if b.State() != StateClosed {
		t.Errorf("state = %v, want closed: success must reset the counter", b.State())
	}
}

func TestBreakerHalfOpenClosesAfterProbes(t *testing.T) {
	b := NewBreaker(BreakerConfig{Name: "test", Trip: 1, CoolDown: time.Millisecond, Probes: 2})
	b.Do(func() error { return errBackend })
	if b.State() != StateOpen {
		t.Fatalf("state = %v, want open", b.State())
	}

	time.Sleep(5 * time.Millisecond)
	if b.State() != StateHalfOpen {
		t.Fatalf("state = %v, want half-open after cool-down", b.State())
	}
	for i := 0; i < 2; i++ {
		if err := b.Do(func() error { return nil }); err != nil {
			t.Fatalf("probe %d failed: %v", i, err)
		}
	}
	if b.State() != StateClosed {
		t.Errorf("state = %v, want closed after successful probes", b.State())
	}
}

func TestBreakerHalfOpenReopensOnFailure(t *testing.T) {
	b := NewBreaker(BreakerConfig{Name: "test", Trip: 1, CoolDown: time.Millisecond, Probes: 2})
	b.Do(func() error { return errBackend })
	time.Sleep(5 * time.Millisecond)

	if err := b.Do(func() error { return errBackend }); !errors.Is(err, errBackend) {
		t.Fatalf("probe err = %v", err)
	}
	if b.State() != StateOpen {
		t.Errorf("state = %v, want open: a failed probe re-opens", b.State())
	}
}
