package embedding

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/0xcro3dile/archiverag/internal/domain/entities"
	"github.com/0xcro3dile/archiverag/internal/domain/ports"
)

var _ ports.EmbeddingService = (*OpenAIAdapter)(nil)

// OpenAIAdapter implements ports.EmbeddingService against any
// OpenAI-compatible /v1/embeddings endpoint (OpenAI, Ollama's /v1, vLLM).
type OpenAIAdapter struct {
	client   openai.Client
	model    string
	docPfx   string
	queryPfx string
	log      *slog.Logger
}

// NewOpenAIAdapter creates an adapter. Retries are disabled: a failed call
// surfaces as an EmbeddingServiceError.
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
		client:   openai.NewClient(reqOpts...),
		model:    opts.Model,
		docPfx:   opts.DocumentPrefix,
		queryPfx: opts.QueryPrefix,
		log:      opts.Logger.With("embedder", "openai", "model", opts.Model),
	}
}

// EmbedDocuments embeds chunk texts in one request.
func (a *OpenAIAdapter) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	input := make([]string, len(texts))
	for i, t := range texts {
		input[i] = a.docPfx + t
	}
	return a.embed(ctx, input)
}

// EmbedQuery embeds a single question.
func (a *OpenAIAdapter) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	out, err := a.embed(ctx, []string{a.queryPfx + text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (a *OpenAIAdapter) embed(ctx context.Context, input []string) ([][]float32, error) {
	a.log.Debug("embedding request", "texts", len(input))

	resp, err := a.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: input},
		Model: openai.EmbeddingModel(a.model),
	})
	if err != nil {
		return nil, a.fail(err)
	}

	// Entries carry their input index; do not rely on response order.
	vectors := make([][]float32, len(input))
	for _, d := range resp.Data {
		if d.Index < 0 || int(d.Index) >= len(input) {
			return nil, a.fail(fmt.Errorf("embedding index %d out of range", d.Index))
		}
		v := make([]float32, len(d.Embedding))
		for i, f := range d.Embedding {
			v[i] = float32(f)
		}
		vectors[d.Index] = v
	}
	if err := checkVectors(vectors, len(input)); err != nil {
		return nil, a.fail(err)
	}
	return vectors, nil
}

func (a *OpenAIAdapter) fail(err error) error {
	a.log.Error("embedding failed", "error", err)
	return &entities.EmbeddingServiceError{Model: a.model, Err: err}
}
