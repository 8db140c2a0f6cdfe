// Package llm wraps the model providers the ReplayCoordinator re-issues a
// call against: Anthropic Claude and OpenAI GPT. Both expose the same
// narrow Provider interface — streamed completion over a message list —
// the only shape ReplayCoordinator needs. See spec.md §4.7.
package llm

import (
	"context"
	"strings"

	"github.com/axontrace/replayer/internal/models"
)

// Chunk is one unit of a streamed completion. Text chunks arrive
// incrementally; the final chunk has Done set and carries token usage.
type Chunk struct {
	Text         string
	Done         bool
	InputTokens  int
	OutputTokens int
	Err          error
}

// Request is the normalized completion request ReplayCoordinator issues.
type Request struct {
	Model       string
	Messages    []models.Message
	Temperature float64
	MaxTokens   int
}

// Provider streams a completion. The returned channel is closed once a
// Done or error chunk has been sent.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req Request) (<-chan Chunk, error)
}

// Registry resolves a model string to the provider that serves it, via
// a case-insensitive substring match on the model name.
type Registry struct {
	Anthropic Provider
	OpenAI    Provider
}

// Resolve picks a provider by model name: anything matching the Claude
// family routes to Anthropic, everything else to OpenAI. When the
// preferred provider is not configured, the other one is returned (nil
// if neither is).
func (r *Registry) Resolve(model string) Provider {
	if isClaudeModel(model) && r.Anthropic != nil {
		return r.Anthropic
	}
	if r.OpenAI != nil {
		return r.OpenAI
	}
	return r.Anthropic
}

func isClaudeModel(model string) bool {
	return strings.Contains(strings.ToLower(model), "claude")
}
