package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/daedalus-fleet/elsie/pkg/provider/llm"
)

// ErrAllBackendsFailed is returned when every backend in a [Chain] fails or
// sits behind an open breaker.
var ErrAllBackendsFailed = errors.New("all llm backends failed")

// Chain implements [llm.Provider] across an ordered list of backends, each
// behind its own [Breaker]. The first healthy backend serves the call; the
// rest are fallbacks.
type Chain struct {
	cfg      BreakerConfig
	backends []chainEntry
}

type chainEntry struct {
	name     string
	provider llm.Provider
	breaker  *Breaker
}

var _ llm.Provider = (*Chain)(nil)

// NewChain creates a Chain with primary as the preferred backend. cfg tunes
// the breaker attached to every backend.
func NewChain(primaryName string, primary llm.Provider, cfg BreakerConfig) *Chain {
	c := &Chain{cfg: cfg}
	c.add(primaryName, primary)
	return c
}

// AddFallback appends a backend tried after all earlier entries.
func (c *Chain) AddFallback(name string, p llm.Provider) {
	c.add(name, p)
}

func (c *Chain) add(name string, p llm.Provider) {
	cfg := c.cfg
	cfg.Name = name
	c.backends = append(c.backends, chainEntry{
		name:     name,
		provider: p,
		breaker:  NewBreaker(cfg),
	})
}

// Complete sends the request to the first healthy backend.
func (c *Chain) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return tryEach(c, func(p llm.Provider) (*llm.CompletionResponse, error) {
		return p.Complete(ctx, req)
	})
}

// CountTokens delegates to the first healthy backend's counter.
func (c *Chain) CountTokens(messages []llm.Message) (int, error) {
	return tryEach(c, func(p llm.Provider) (int, error) {
		return p.CountTokens(messages)
	})
}

// tryEach walks the chain until a backend succeeds. A package-level function
// because methods cannot carry their own type parameters.
func tryEach[R any](c *Chain, fn func(llm.Provider) (R, error)) (R, error) {
	var (
		lastErr error
		zero    R
	)
	for i := range c.backends {
		entry := &c.backends[i]
		var result R
		err := entry.breaker.Do(func() error {
			var callErr error
			result, callErr = fn(entry.provider)
			return callErr
		})
		if err == nil {
			return result, nil
		}
		lastErr = err
		if errors.Is(err, ErrBreakerOpen) {
			slog.Debug("llm backend skipped, breaker open", "backend", entry.name)
		} else {
			slog.Warn("llm backend failed, trying next", "backend", entry.name, "err", err)
		}
	}
	return zero, fmt.Errorf("%w: %v", ErrAllBackendsFailed, lastErr)
}
