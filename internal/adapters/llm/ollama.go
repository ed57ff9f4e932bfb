// Package llm provides generation model adapters implementing ports.LLMService.
package llm

import (
	"bufio"
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

var _ ports.LLMService = (*OllamaLLMAdapter)(nil)

// Ollama defaults.
const (
	DefaultOllamaURL = "http://localhost:11434"
	DefaultTimeout   = 300 * time.Second
)

// Options configures a generation adapter. The model is chosen per call.
type Options struct {
	BaseURL string
	Timeout time.Duration
	Logger  *slog.Logger
}

// OllamaLLMAdapter implements ports.LLMService using the Ollama API.
type OllamaLLMAdapter struct {
	baseURL string
	client  *http.Client
	log     *slog.Logger
}

// NewOllamaLLMAdapter creates a new Ollama LLM adapter.
func NewOllamaLLMAdapter(opts Options) *OllamaLLMAdapter {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultOllamaURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &OllamaLLMAdapter{
		baseURL: opts.BaseURL,
		client: &http.Client{
			Timeout: opts.Timeout,
		},
		log: opts.Logger.With("llm", "ollama"),
	}
}

// ollamaGenerateRequest is the Ollama generate API request.
type ollamaGenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

// ollamaGenerateResponse is the Ollama generate API response.
type ollamaGenerateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

// Generate returns the full response for a prompt.
func (a *OllamaLLMAdapter) Generate(ctx context.Context, model, prompt string) (string, error) {
	resp, err := a.post(ctx, model, prompt, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var genResp ollamaGenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return "", a.fail(model, fmt.Errorf("decoding response: %w", err))
	}
	if genResp.Error != "" {
		return "", a.fail(model, errors.New(genResp.Error))
	}

	a.log.Debug("generated response", "model", model, "chars", len(genResp.Response))
	return genResp.Response, nil
}

// GenerateStream produces a streaming response via Ollama's streaming API.
func (a *OllamaLLMAdapter) GenerateStream(ctx context.Context, model, prompt string) (<-chan ports.StreamToken, error) {
	resp, err := a.post(ctx, model, prompt, true)
	if err != nil {
		return nil, err
	}

	ch := make(chan ports.StreamToken, 100)

	go func() {
		defer close(ch)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			if ctx.Err() != nil {
				send(ctx, ch, ports.StreamToken{Done: true, Error: ctx.Err()})
				return
			}

			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}

			var chunk ollamaGenerateResponse
			if err := json.Unmarshal(line, &chunk); err != nil {
				send(ctx, ch, ports.StreamToken{Done: true, Error: a.fail(model, fmt.Errorf("decoding stream line: %w", err))})
				return
			}
			if chunk.Error != "" {
				send(ctx, ch, ports.StreamToken{Done: true, Error: a.fail(model, errors.New(chunk.Error))})
				return
			}

			if !send(ctx, ch, ports.StreamToken{Content: chunk.Response, Done: chunk.Done}) || chunk.Done {
				return
			}
		}

		err := scanner.Err()
		if err == nil {
			err = errors.New("stream ended before done")
		}
		send(ctx, ch, ports.StreamToken{Done: true, Error: a.fail(model, err)})
	}()

	return ch, nil
}

func (a *OllamaLLMAdapter) post(ctx context.Context, model, prompt string, stream bool) (*http.Response, error) {
	jsonData, err := json.Marshal(ollamaGenerateRequest{
		Model:  model,
		Prompt: prompt,
		Stream: stream,
	})
	if err != nil {
		return nil, a.fail(model, fmt.Errorf("marshaling request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/api/generate", bytes.NewReader(jsonData))
	if err != nil {
		return nil, a.fail(model, fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	a.log.Debug("generate request", "model", model, "stream", stream, "prompt_chars", len(prompt))
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, a.fail(model, fmt.Errorf("calling Ollama: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, a.fail(model, fmt.Errorf("Ollama returned status %d: %s", resp.StatusCode, bytes.TrimSpace(body)))
	}
	return resp, nil
}

func (a *OllamaLLMAdapter) fail(model string, err error) error {
	a.log.Error("generation failed", "model", model, "error", err)
	return &entities.GenerationServiceError{Model: model, Err: err}
}

// send delivers tok unless ctx is done first. It reports whether tok was sent.
func send(ctx context.Context, ch chan<- ports.StreamToken, tok ports.StreamToken) bool {
	select {
	case ch <- tok:
		return true
	case <-ctx.Done():
		return false
	}
}
