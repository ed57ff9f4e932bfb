package llm

import (
	"context"
	"errors"
	"log/slog"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/0xcro3dile/archiverag/internal/domain/entities"
	"github.com/0xcro3dile/archiverag/internal/domain/ports"
)

var _ ports.LLMService = (*OpenAIAdapter)(nil)

// OpenAIAdapter implements ports.LLMService against an OpenAI-compatible
// chat completions endpoint. The rendered prompt is sent as one user message.
type OpenAIAdapter struct {
	client openai.Client
	log    *slog.Logger
}

// NewOpenAIAdapter creates an adapter with retries disabled.
func NewOpenAIAdapter(opts Options, apiKey string) *OpenAIAdapter {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
		option.WithRequestTimeout(opts.Timeout),
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	return &OpenAIAdapter{
		client: openai.NewClient(reqOpts...),
		log:    opts.Logger.With("llm", "openai"),
	}
}

func (a *OpenAIAdapter) params(model, prompt string) openai.ChatCompletionNewParams {
	return openai.ChatCompletionNewParams{
		Model: openai.ChatModel(model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	}
}

// Generate returns the first choice's content.
func (a *OpenAIAdapter) Generate(ctx context.Context, model, prompt string) (string, error) {
	completion, err := a.client.Chat.Completions.New(ctx, a.params(model, prompt))
	if err != nil {
		return "", a.fail(model, err)
	}
	if len(completion.Choices) == 0 {
		return "", a.fail(model, errors.New("response has no choices"))
	}
	return completion.Choices[0].Message.Content, nil
}

// GenerateStream streams content deltas.
func (a *OpenAIAdapter) GenerateStream(ctx context.Context, model, prompt string) (<-chan ports.StreamToken, error) {
	stream := a.client.Chat.Completions.NewStreaming(ctx, a.params(model, prompt))

	ch := make(chan ports.StreamToken, 100)
	go func() {
		defer close(ch)
		defer stream.Close()

		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 {
				continue
			}
			if !send(ctx, ch, ports.StreamToken{Content: chunk.Choices[0].Delta.Content}) {
				return
			}
		}
		if err := stream.Err(); err != nil {
			send(ctx, ch, ports.StreamToken{Done: true, Error: a.fail(model, err)})
			return
		}
		send(ctx, ch, ports.StreamToken{Done: true})
	}()
	return ch, nil
}

func (a *OpenAIAdapter) fail(model string, err error) error {
	a.log.Error("generation failed", "model", model, "error", err)
	return &entities.GenerationServiceError{Model: model, Err: err}
}
