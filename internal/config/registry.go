package config

import (
	"errors"
	"fmt"
	"sync"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/daedalus-fleet/elsie/pkg/provider/llm"
	"github.com/daedalus-fleet/elsie/pkg/provider/llm/anyllm"
	"github.com/daedalus-fleet/elsie/pkg/provider/llm/openai"
)

// ErrProviderNotRegistered is returned by CreateLLM when no factory has been
// registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// LLMFactory constructs an LLM provider from its config block.
type LLMFactory func(LLMConfig) (llm.Provider, error)

// Registry maps LLM provider names to their constructor functions.
// It is safe for concurrent use.
type Registry struct {
	mu  sync.RWMutex
	llm map[string]LLMFactory
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{llm: make(map[string]LLMFactory)}
}

// RegisterLLM registers factory under name, replacing any previous entry.
func (r *Registry) RegisterLLM(name string, factory LLMFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.llm[name] = factory
}

// CreateLLM constructs the LLM provider selected by cfg.Provider.
func (r *Registry) CreateLLM(cfg LLMConfig) (llm.Provider, error) {
	r.mu.RLock()
	factory, ok := r.llm[cfg.Provider]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: llm %q", ErrProviderNotRegistered, cfg.Provider)
	}
	return factory(cfg)
}

// DefaultRegistry returns a [Registry] preloaded with the built-in LLM
// factories: the native OpenAI SDK under "openai" and the any-llm-go bridge
// for every other supported provider name.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	r.RegisterLLM("openai", func(cfg LLMConfig) (llm.Provider, error) {
		var opts []openai.Option
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		return openai.New(cfg.APIKey, cfg.Model, opts...)
	})

	for _, name := range ValidLLMProviders {
		if name == "openai" {
			continue
		}
		name := name
		r.RegisterLLM(name, func(cfg LLMConfig) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if cfg.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(cfg.APIKey))
			}
			if cfg.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(cfg.BaseURL))
			}
			return anyllm.New(name, cfg.Model, opts...)
		})
	}

	return r
}
