// Package apptest provides deterministic backends and a ready Runtime for
// tests of the layers above app.
package apptest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/0xcro3dile/archiverag/internal/adapters/vectordb"
	"github.com/0xcro3dile/archiverag/internal/app"
	"github.com/0xcro3dile/archiverag/internal/domain/entities"
	"github.com/0xcro3dile/archiverag/internal/domain/ports"
	"github.com/0xcro3dile/archiverag/internal/infrastructure/config"
)

// Embedder embeds text as a bag of lowercase letters, so texts sharing
// letters score close. It records how many documents it embedded.
type Embedder struct {
	mu       sync.Mutex
	Docs     int
	Fail     error
	QueryErr error
}

func (e *Embedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.Fail != nil {
		return nil, &entities.EmbeddingServiceError{Model: "fake", Err: e.Fail}
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = letters(t)
	}
	e.Docs += len(texts)
	return out, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.QueryErr != nil {
		return nil, &entities.EmbeddingServiceError{Model: "fake", Err: e.QueryErr}
	}
	return letters(text), nil
}

// Embedded returns the number of documents embedded so far.
func (e *Embedder) Embedded() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.Docs
}

func letters(text string) []float32 {
	v := make([]float32, 27)
	v[26] = 1
	for _, r := range strings.ToLower(text) {
		if r >= 'a' && r <= 'z' {
			v[r-'a']++
		}
	}
	return v
}

// LLM echoes the model name and the prompt length, and records prompts.
type LLM struct {
	mu      sync.Mutex
	Answer  string
	Err     error
	Prompts []string
	Models  []string
}

func (l *LLM) Generate(ctx context.Context, model, prompt string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Prompts = append(l.Prompts, prompt)
	l.Models = append(l.Models, model)
	if l.Err != nil {
		return "", &entities.GenerationServiceError{Model: model, Err: l.Err}
	}
	if l.Answer != "" {
		return l.Answer, nil
	}
	return "answer from " + model, nil
}

func (l *LLM) GenerateStream(ctx context.Context, model, prompt string) (<-chan ports.StreamToken, error) {
	answer, err := l.Generate(ctx, model, prompt)
	if err != nil {
		return nil, err
	}
	ch := make(chan ports.StreamToken, len(answer)+1)
	for _, word := range strings.SplitAfter(answer, " ") {
		ch <- ports.StreamToken{Content: word}
	}
	ch <- ports.StreamToken{Done: true}
	close(ch)
	return ch, nil
}

// LastPrompt returns the most recent prompt, or "".
func (l *LLM) LastPrompt() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.Prompts) == 0 {
		return ""
	}
	return l.Prompts[len(l.Prompts)-1]
}

// Env is a Runtime over a temporary corpus with fake backends.
type Env struct {
	Runtime  *app.Runtime
	Config   *config.Config
	Embedder *Embedder
	LLM      *LLM
	Store    *vectordb.InMemoryStore
}

// NewEnv builds a Runtime whose corpus is a temp dir of text files.
func NewEnv(t *testing.T) *Env {
	t.Helper()

	cfg := config.Default()
	cfg.Corpus.Dir = filepath.Join(t.TempDir(), "data")
	cfg.Corpus.Pattern = "*.txt"
	cfg.Store.Driver = config.DriverMemory
	cfg.Store.Dir = t.TempDir()
	if err := os.MkdirAll(cfg.Corpus.Dir, 0o755); err != nil {
		t.Fatal(err)
	}

	env := &Env{
		Config:   cfg,
		Embedder: &Embedder{},
		LLM:      &LLM{},
		Store:    vectordb.NewInMemoryStore(),
	}
	env.Runtime = app.New(cfg, nil, app.Services{
		Embedder: env.Embedder,
		LLM:      env.LLM,
		Store:    env.Store,
	})
	t.Cleanup(func() { env.Runtime.Close() })
	return env
}

// AddFile writes a corpus file.
func (e *Env) AddFile(t *testing.T, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(e.Config.Corpus.Dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// ErrBackendDown is a convenient failure for Embedder.Fail and LLM.Err.
var ErrBackendDown = errors.New("connection refused")
