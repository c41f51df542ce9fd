package anyllm

import (
	"testing"

	"github.com/daedalus-fleet/elsie/pkg/provider/llm"
)

// ── New ───────────────────────────────────────────────────────────────────────

// TestNew_EmptyProviderName checks that an empty provider name is rejected.
func TestNew_EmptyProviderName(t *testing.T) {
	if _, err := New("", "gpt-4o"); err == nil {
		t.Error("expected error for empty provider name")
	}
}

// TestNew_EmptyModel checks that an empty model is rejected.
func TestNew_EmptyModel(t *testing.T) {
	if _, err := New("openai", ""); err == nil {
		t.Error("expected error for empty model")
	}
}

// TestNew_UnsupportedProvider checks that unknown provider names are rejected.
func TestNew_UnsupportedProvider(t *testing.T) {
	if _, err := New("frobnicator", "some-model"); err == nil {
		t.Error("expected error for unsupported provider")
	}
}

// ── buildParams ───────────────────────────────────────────────────────────────

// TestBuildParams_SystemPromptFirst checks the system prompt becomes the leading message.
func TestBuildParams_SystemPromptFirst(t *testing.T) {
	p := &Provider{model: "gpt-4o"}
	params := p.buildParams(llm.CompletionRequest{
		SystemPrompt: "You are Elsie.",
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: "A round of synthale, please."},
		},
	})

	if len(params.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(params.Messages))
	}
	if params.Messages[0].Role != "system" {
		t.Errorf("expected leading system message, got role %q", params.Messages[0].Role)
	}
	if params.Messages[1].Content != "A round of synthale, please." {
		t.Errorf("unexpected user content: %q", params.Messages[1].Content)
	}
	if params.Model != "gpt-4o" {
		t.Errorf("expected model gpt-4o, got %q", params.Model)
	}
}

// TestBuildParams_NoSystemPrompt checks that no system message is injected without one.
func TestBuildParams_NoSystemPrompt(t *testing.T) {
	p := &Provider{model: "gpt-4o"}
	params := p.buildParams(llm.CompletionRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "Hi"}},
	})
	if len(params.Messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(params.Messages))
	}
}

// TestBuildParams_OptionalFields checks Temperature and MaxTokens are only set when non-zero.
func TestBuildParams_OptionalFields(t *testing.T) {
	p := &Provider{model: "gpt-4o"}

	params := p.buildParams(llm.CompletionRequest{
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: "Hi"}},
		Temperature: 0.7,
		MaxTokens:   512,
	})
	if params.Temperature == nil || *params.Temperature != 0.7 {
		t.Errorf("expected temperature 0.7, got %v", params.Temperature)
	}
	if params.MaxTokens == nil || *params.MaxTokens != 512 {
		t.Errorf("expected max tokens 512, got %v", params.MaxTokens)
	}

	params = p.buildParams(llm.CompletionRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "Hi"}},
	})
	if params.Temperature != nil {
		t.Error("zero temperature must stay unset")
	}
	if params.MaxTokens != nil {
		t.Error("zero max tokens must stay unset")
	}
}

// ── CountTokens ───────────────────────────────────────────────────────────────

// TestCountTokens_Approximation checks the chars/4 heuristic plus per-message overhead.
func TestCountTokens_Approximation(t *testing.T) {
	p := &Provider{model: "gpt-4o"}
	// 16 chars -> 4 tokens, plus 4 overhead.
	n, err := p.CountTokens([]llm.Message{{Role: llm.RoleUser, Content: "0123456789abcdef"}})
	if err != nil {
		t.Fatalf("CountTokens: %v", err)
	}
	if n != 8 {
		t.Errorf("expected 8 tokens, got %d", n)
	}
}
