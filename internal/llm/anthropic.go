package llm

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/axontrace/replayer/internal/models"
)

// AnthropicProvider wraps the Anthropic SDK client, adapted from the
// teacher's AnthropicProvider down to the single streaming shape replay
// needs: no tool calling, no beta/computer-use path.
type AnthropicProvider struct {
	client       anthropic.Client
	defaultModel string
}

// NewAnthropicProvider builds a provider using apiKey. defaultModel is
// used when a request leaves Model empty.
func NewAnthropicProvider(apiKey, defaultModel string) *AnthropicProvider {
	if defaultModel == "" {
		defaultModel = "claude-3-5-sonnet-20241022"
	}
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &AnthropicProvider{client: client, defaultModel: defaultModel}
}

func (p *AnthropicProvider) Name() string { return "anthropic" }

// Complete streams a completion, converting Anthropic SSE events into
// the provider-neutral Chunk stream ReplayCoordinator consumes.
func (p *AnthropicProvider) Complete(ctx context.Context, req Request) (<-chan Chunk, error) {
	chunks := make(chan Chunk)

	model := req.Model
	if model == "" {
		model = p.defaultModel
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 150
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		Messages:  convertMessages(req.Messages),
		MaxTokens: int64(maxTokens),
	}

	stream := p.client.Messages.NewStreaming(ctx, params)

	go func() {
		defer close(chunks)

		var inputTokens, outputTokens int

		for stream.Next() {
			event := stream.Current()
			switch event.Type {
			case "message_start":
				ms := event.AsMessageStart()
				if ms.Message.Usage.InputTokens > 0 {
					inputTokens = int(ms.Message.Usage.InputTokens)
				}
			case "content_block_delta":
				delta := event.AsContentBlockDelta().Delta
				if delta.Type == "text_delta" && delta.Text != "" {
					chunks <- Chunk{Text: delta.Text}
				}
			case "message_delta":
				md := event.AsMessageDelta()
				if md.Usage.OutputTokens > 0 {
					outputTokens = int(md.Usage.OutputTokens)
				}
			case "message_stop":
				chunks <- Chunk{Done: true, InputTokens: inputTokens, OutputTokens: outputTokens}
				return
			case "error":
				chunks <- Chunk{Done: true, Err: fmt.Errorf("anthropic: stream error")}
				return
			}
		}
		if err := stream.Err(); err != nil {
			chunks <- Chunk{Done: true, Err: fmt.Errorf("anthropic: %w", err)}
		}
	}()

	return chunks, nil
}

func convertMessages(messages []models.Message) []anthropic.MessageParam {
	result := make([]anthropic.MessageParam, 0, len(messages))
	for _, m := range messages {
		if m.Role == "system" {
			continue
		}
		block := anthropic.NewTextBlock(m.Content)
		if m.Role == "assistant" {
			result = append(result, anthropic.NewAssistantMessage(block))
		} else {
			result = append(result, anthropic.NewUserMessage(block))
		}
	}
	return result
}
