// Package embedding provides embedding adapters.
// Adapters implement ports.EmbeddingService; the domain layer never sees
// Ollama or OpenAI specifics.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/0xcro3dile/archiverag/internal/domain/entities"
	"github.com/0xcro3dile/archiverag/internal/domain/ports"
)

var _ ports.EmbeddingService = (*OllamaAdapter)(nil)

// Ollama defaults.
const (
	DefaultOllamaURL   = "http://localhost:11434"
	DefaultOllamaModel = "nomic-embed-text"
	DefaultTimeout     = 60 * time.Second
)

// Options configures an embedding adapter.
type Options struct {
	BaseURL string
	Model   string
	Timeout time.Duration

	// DocumentPrefix and QueryPrefix frame texts per the model's
	// convention, e.g. "search_document: " / "search_query: " for
	// nomic-embed-text. Empty means no framing.
	DocumentPrefix string
	QueryPrefix    string

	Logger *slog.Logger
}

// OllamaAdapter implements ports.EmbeddingService using the Ollama API.
type OllamaAdapter struct {
	baseURL  string
	model    string
	docPfx   string
	queryPfx string
	client   *http.Client
	log      *slog.Logger
}

// NewOllamaAdapter creates a new Ollama embedding adapter.
func NewOllamaAdapter(opts Options) *OllamaAdapter {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultOllamaURL
	}
	if opts.Model == "" {
		opts.Model = DefaultOllamaModel
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &OllamaAdapter{
		baseURL:  opts.BaseURL,
		model:    opts.Model,
		docPfx:   opts.DocumentPrefix,
		queryPfx: opts.QueryPrefix,
		client: &http.Client{
			Timeout: opts.Timeout,
		},
		log: opts.Logger.With("embedder", "ollama", "model", opts.Model),
	}
}

// ollamaEmbedRequest is the Ollama /api/embed request format.
type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// ollamaEmbedResponse is the Ollama /api/embed response format.
type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
	Error      string      `json:"error,omitempty"`
}

// EmbedDocuments embeds chunk texts in one request.
func (a *OllamaAdapter) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
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
func (a *OllamaAdapter) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	out, err := a.embed(ctx, []string{a.queryPfx + text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (a *OllamaAdapter) embed(ctx context.Context, input []string) ([][]float32, error) {
	a.log.Debug("embedding request", "url", a.baseURL, "texts", len(input))

	jsonData, err := json.Marshal(ollamaEmbedRequest{Model: a.model, Input: input})
	if err != nil {
		return nil, a.fail(fmt.Errorf("marshaling request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/api/embed", bytes.NewReader(jsonData))
	if err != nil {
		return nil, a.fail(fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, a.fail(fmt.Errorf("calling Ollama: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, a.fail(fmt.Errorf("Ollama returned status %d: %s", resp.StatusCode, bytes.TrimSpace(body)))
	}

	var embedResp ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&embedResp); err != nil {
		return nil, a.fail(fmt.Errorf("decoding response: %w", err))
	}
	if embedResp.Error != "" {
		return nil, a.fail(errors.New(embedResp.Error))
	}
	if err := checkVectors(embedResp.Embeddings, len(input)); err != nil {
		return nil, a.fail(err)
	}

	a.log.Debug("got embeddings", "count", len(embedResp.Embeddings), "dims", len(embedResp.Embeddings[0]))
	return embedResp.Embeddings, nil
}

func (a *OllamaAdapter) fail(err error) error {
	a.log.Error("embedding failed", "error", err)
	return &entities.EmbeddingServiceError{Model: a.model, Err: err}
}

// checkVectors rejects responses that would force a caller to guess:
// wrong count, empty vectors or mixed dimensions.
func checkVectors(vectors [][]float32, want int) error {
	if len(vectors) != want {
		return fmt.Errorf("got %d embeddings for %d texts", len(vectors), want)
	}
	dims := -1
	for i, v := range vectors {
		if len(v) == 0 {
			return fmt.Errorf("embedding %d is empty", i)
		}
		if dims >= 0 && len(v) != dims {
			return fmt.Errorf("embedding %d has %d dimensions, expected %d", i, len(v), dims)
		}
		dims = len(v)
	}
	return nil
}
