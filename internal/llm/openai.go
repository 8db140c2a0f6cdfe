package llm

import (
	"context"
	"errors"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"

	"github.com/axontrace/replayer/internal/models"
)

// OpenAIProvider wraps go-openai's streaming chat completion API,
// adapted from the teacher's OpenAIProvider.processStream down to plain
// text deltas, with no tool-call accumulation.
type OpenAIProvider struct {
	client       *openai.Client
	defaultModel string
}

// NewOpenAIProvider builds a provider using apiKey.
func NewOpenAIProvider(apiKey, defaultModel string) *OpenAIProvider {
	if defaultModel == "" {
		defaultModel = "gpt-4o-mini"
	}
	return &OpenAIProvider{client: openai.NewClient(apiKey), defaultModel: defaultModel}
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) Complete(ctx context.Context, req Request) (<-chan Chunk, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	chatReq := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    convertOpenAIMessages(req.Messages),
		Stream:      true,
		Temperature: float32(req.Temperature),
	}
	if req.MaxTokens > 0 {
		chatReq.MaxTokens = req.MaxTokens
	}

	stream, err := p.client.CreateChatCompletionStream(ctx, chatReq)
	if err != nil {
		return nil, fmt.Errorf("openai: create stream: %w", err)
	}

	chunks := make(chan Chunk)
	go processOpenAIStream(stream, chunks)
	return chunks, nil
}

func processOpenAIStream(stream *openai.ChatCompletionStream, chunks chan<- Chunk) {
	defer close(chunks)
	defer func() { _ = stream.Close() }()

	var inputTokens, outputTokens int

	for {
		resp, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				chunks <- Chunk{Done: true, InputTokens: inputTokens, OutputTokens: outputTokens}
				return
			}
			chunks <- Chunk{Done: true, Err: fmt.Errorf("openai: %w", err)}
			return
		}

		if resp.Usage != nil {
			inputTokens = resp.Usage.PromptTokens
			outputTokens = resp.Usage.CompletionTokens
		}

		if len(resp.Choices) == 0 {
			continue
		}
		if delta := resp.Choices[0].Delta.Content; delta != "" {
			chunks <- Chunk{Text: delta}
		}
	}
}

func convertOpenAIMessages(messages []models.Message) []openai.ChatCompletionMessage {
	result := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		result = append(result, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	return result
}
