package openai

import (
	"testing"

	"github.com/daedalus-fleet/elsie/pkg/provider/llm"
)

// ── New ───────────────────────────────────────────────────────────────────────

// TestNew_EmptyAPIKey checks that an empty API key is rejected.
func TestNew_EmptyAPIKey(t *testing.T) {
	if _, err := New("", "gpt-4o"); err == nil {
		t.Error("expected error for empty API key")
	}
}

// TestNew_EmptyModel checks that an empty model is rejected.
func TestNew_EmptyModel(t *testing.T) {
	if _, err := New("sk-test", ""); err == nil {
		t.Error("expected error for empty model")
	}
}

// ── buildParams ───────────────────────────────────────────────────────────────

// TestBuildParams_Roles checks role mapping and system prompt placement.
func TestBuildParams_Roles(t *testing.T) {
	p := &Provider{model: "gpt-4o"}
	params, err := p.buildParams(llm.CompletionRequest{
		SystemPrompt: "You are Elsie.",
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: "Evening."},
			{Role: llm.RoleAssistant, Content: "*nods* What can I get you?"},
			{Role: llm.RoleUser, Content: "Surprise me."},
		},
	})
	if err != nil {
		t.Fatalf("buildParams: %v", err)
	}
	if len(params.Messages) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(params.Messages))
	}
	if string(params.Model) != "gpt-4o" {
		t.Errorf("expected model gpt-4o, got %q", params.Model)
	}
}

// TestBuildParams_UnknownRole checks that unsupported roles are rejected.
func TestBuildParams_UnknownRole(t *testing.T) {
	p := &Provider{model: "gpt-4o"}
	_, err := p.buildParams(llm.CompletionRequest{
		Messages: []llm.Message{{Role: "narrator", Content: "Meanwhile..."}},
	})
	if err == nil {
		t.Error("expected error for unknown role")
	}
}

// TestBuildParams_OptionalFields checks Temperature and MaxTokens are only set when non-zero.
func TestBuildParams_OptionalFields(t *testing.T) {
	p := &Provider{model: "gpt-4o"}

	params, err := p.buildParams(llm.CompletionRequest{
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: "Hi"}},
		Temperature: 0.4,
		MaxTokens:   256,
	})
	if err != nil {
		t.Fatalf("buildParams: %v", err)
	}
	if v, ok := params.Temperature.Value, params.Temperature.Valid(); !ok || v != 0.4 {
		t.Errorf("expected temperature 0.4, got %v (set=%v)", v, ok)
	}
	if v, ok := params.MaxCompletionTokens.Value, params.MaxCompletionTokens.Valid(); !ok || v != 256 {
		t.Errorf("expected max completion tokens 256, got %v (set=%v)", v, ok)
	}

	params, err = p.buildParams(llm.CompletionRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "Hi"}},
	})
	if err != nil {
		t.Fatalf("buildParams: %v", err)
	}
	if ok := params.Temperature.Valid(); ok {
		t.Error("zero temperature must stay unset")
	}
	if ok := params.MaxCompletionTokens.Valid(); ok {
		t.Error("zero max tokens must stay unset")
	}
}

// ── CountTokens ───────────────────────────────────────────────────────────────

// TestCountTokens_Approximation checks the chars/4 heuristic plus per-message overhead.
func TestCountTokens_Approximation(t *testing.T) {
	p := &Provider{model: "gpt-4o"}
	n, err := p.CountTokens([]llm.Message{
		{Role: llm.RoleUser, Content: "0123456789abcdef"},
		{Role: llm.RoleAssistant, Content: "abcd"},
	})
	if err != nil {
		t.Fatalf("CountTokens: %v", err)
	}
	// 4+4 for the first message, 1+4 for the second.
	if n != 13 {
		t.Errorf("expected 13 tokens, got %d", n)
	}
}
