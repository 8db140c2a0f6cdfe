package llm

import (
	"context"
	"testing"
)

type stubProvider struct{ name string }

func (s stubProvider) Name() string { return s.name }
func (s stubProvider) Complete(ctx context.Context, req Request) (<-chan Chunk, error) {
	return nil, nil
}

func TestRegistry_ResolveRoutesClaudeToAnthropic(t *testing.T) {
	r := &Registry{Anthropic: stubProvider{"anthropic"}, OpenAI: stubProvider{"openai"}}
	p := r.Resolve("claude-3-5-sonnet-20241022")
	if p.Name() != "anthropic" {
		t.Fatalf("Resolve(claude-...) routed to %q, want anthropic", p.Name())
	}
}

func TestRegistry_ResolveRoutesOtherToOpenAI(t *testing.T) {
	r := &Registry{Anthropic: stubProvider{"anthropic"}, OpenAI: stubProvider{"openai"}}
	p := r.Resolve("gpt-4o-mini")
	if p.Name() != "openai" {
		t.Fatalf("Resolve(gpt-4o-mini) routed to %q, want openai", p.Name())
	}
}

func TestRegistry_ResolveFallsBackToAnthropicWhenNoOpenAI(t *testing.T) {
	r := &Registry{Anthropic: stubProvider{"anthropic"}}
	p := r.Resolve("gpt-4o-mini")
	if p.Name() != "anthropic" {
		t.Fatalf("Resolve fallback = %q, want anthropic", p.Name())
	}
}
