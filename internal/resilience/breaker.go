// Package resilience protects Elsie's outbound LLM calls. A Breaker is a
// three-state circuit breaker (closed, open, half-open); Chain layers
// per-backend breakers over an ordered list of LLM providers so a failing
// primary is bypassed in favour of a healthy fallback.
//
// All types are safe for concurrent use.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrBreakerOpen is returned by [Breaker.Do] while the breaker is open and
// the cool-down has not elapsed.
var ErrBreakerOpen = errors.New("breaker open")

// State is a breaker's operating mode.
type State int

const (
	// StateClosed forwards every call.
	StateClosed State = iota

	// StateOpen rejects calls until the cool-down elapses.
	StateOpen

	// StateHalfOpen lets a bounded number of probe calls through.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	}
	return "unknown"
}

// BreakerConfig tunes a [Breaker]. Zero fields take the defaults.
type BreakerConfig struct {
	// Name labels the breaker in log output, typically the backend name.
	Name string

	// Trip is the consecutive-failure count that opens the breaker.
	// Default: 5.
	Trip int

	// CoolDown is how long the breaker stays open before probing again.
	// Default: 30s.
	CoolDown time.Duration

	// Probes is the half-open probe budget. Default: 3.
	Probes int
}

// Breaker is a three-state circuit breaker.
type Breaker struct {
	name     string
	trip     int
	coolDown time.Duration
	probes   int

	mu          sync.Mutex
	state       State
	failures    int
	lastFailure time.Time
	probeCalls  int
	probeFails  int
}

// NewBreaker creates a closed breaker from cfg.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.Trip <= 0 {
		cfg.Trip = 5
	}
	if cfg.CoolDown <= 0 {
		cfg.CoolDown = 30 * time.Second
	}
	if cfg.Probes <= 0 {
		cfg.Probes = 3
	}
	return &Breaker{
		name:     cfg.Name,
		trip:     cfg.Trip,
		coolDown: cfg.CoolDown,
		probes:   cfg.Probes,
	}
}

// State returns the current state, honouring an elapsed cool-down.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && time.Since(b.lastFailure) >= b.coolDown {
		return StateHalfOpen
	}
	return b.state
}

// Do runs fn when the breaker allows it. Open breakers return
// [ErrBreakerOpen] without calling fn; half-open breakers admit up to the
// probe budget.
func (b *Breaker) Do(fn func() error) error {
	b.mu.Lock()
	switch b.state {
	case StateOpen:
		if time.Since(b.lastFailure) < b.coolDown {
			b.mu.Unlock()
			return ErrBreakerOpen
		}
		b.state = StateHalfOpen
		b.probeCalls = 0
		b.probeFails = 0
		slog.Info("breaker half-open", "name", b.name)
	case StateHalfOpen:
		if b.probeCalls >= b.probes {
			b.mu.Unlock()
			return ErrBreakerOpen
		}
	}
	probing := b.state == StateHalfOpen
	if probing {
		b.probeCalls++
	}
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.onFailure(probing)
	} else {
		b.onSuccess(probing)
	}
	return err
}

// onFailure must be called with b.mu held.
func (b *Breaker) onFailure(probing bool) {
	b.lastFailure = time.Now()
	if probing {
		b.probeFails++
		// One failed probe re-opens immediately.
		b.state = StateOpen
		b.failures = b.trip
		slog.Warn("breaker re-opened", "name", b.name)
		return
	}
	b.failures++
	if b.failures >= b.trip {
		b.state = StateOpen
		slog.Warn("breaker opened", "name", b.name, "consecutive_failures", b.failures)
	}
}

// onSuccess must be called with b.mu held.
func (b *Breaker) onSuccess(probing bool) {
	if probing {
		if b.probeCalls-b.probeFails >= b.probes {
			b.state = StateClosed
			b.failures = 0
			b.probeCalls = 0
			b.probeFails = 0
			slog.Info("breaker closed", "name", b.name)
		}
		return
	}
	b.failures = 0
}
