// Package usecases - query.go composes retrieval with generation.
package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/0xcro3dile/archiverag/internal/domain/entities"
	"github.com/0xcro3dile/archiverag/internal/domain/ports"
)

// Template placeholders.
const (
	ContextPlaceholder  = "{context}"
	QuestionPlaceholder = "{question}"
)

// GroundingInstruction restricts the model to the supplied context. Every
// chain's template carries it.
const GroundingInstruction = "Answer the question based ONLY on the following context:"

// DefaultPromptTemplate is used when ChainConfig.Template is empty.
const DefaultPromptTemplate = GroundingInstruction + `
{context}

Question: {question}
Answer:`

// DefaultTopK is the retrieval breadth when ChainConfig.K is unset.
const DefaultTopK = 7

// ChainConfig holds the caller-visible knobs of a query chain. Changing
// either never requires re-ingestion.
type ChainConfig struct {
	Model    string // Generation model identifier
	K        int    // Retrieval breadth
	Template string // Optional; must contain {context} and {question}
}

// QueryChain answers questions by retrieve -> render -> generate.
// It holds no per-question state, so one failed question does not affect
// the next.
type QueryChain struct {
	embedder    ports.EmbeddingService
	vectorStore ports.VectorStore
	llm         ports.LLMService
	model       string
	topK        int
	template    string
	log         *slog.Logger
}

// NewQueryChain creates a QueryChain with injected dependencies.
func NewQueryChain(
	embedder ports.EmbeddingService,
	vectorStore ports.VectorStore,
	llm ports.LLMService,
	cfg ChainConfig,
	log *slog.Logger,
) (*QueryChain, error) {
	if cfg.K <= 0 {
		cfg.K = DefaultTopK
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: generation model is required", entities.ErrInvalidInput)
	}
	tmpl, err := groundedTemplate(cfg.Template)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	return &QueryChain{
		embedder:    embedder,
		vectorStore: vectorStore,
		llm:         llm,
		model:       cfg.Model,
		topK:        cfg.K,
		template:    tmpl,
		log:         log.With("model", cfg.Model, "k", cfg.K),
	}, nil
}

// Model returns the generation model this chain calls.
func (c *QueryChain) Model() string { return c.model }

// K returns the retrieval breadth.
func (c *QueryChain) K() int { return c.topK }

// Template returns the prompt template in use.
func (c *QueryChain) Template() string { return c.template }

// Answer runs the full chain and returns the raw generated text.
func (c *QueryChain) Answer(ctx context.Context, question string) (string, error) {
	resp, err := c.Query(ctx, &entities.ChatRequest{Query: question})
	if err != nil {
		return "", err
	}
	return resp.Answer, nil
}

// Query runs the chain and also returns the chunks the answer was built from.
func (c *QueryChain) Query(ctx context.Context, req *entities.ChatRequest) (*entities.ChatResponse, error) {
	results, err := c.Retrieve(ctx, req.Query)
	if err != nil {
		return nil, err
	}

	prompt := c.Render(req.Query, results)

	answer, err := c.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	return &entities.ChatResponse{
		Answer:  answer,
		Sources: results,
	}, nil
}

// Stream retrieves context and streams the generated answer.
func (c *QueryChain) Stream(ctx context.Context, question string) (<-chan ports.StreamToken, []entities.QueryResult, error) {
	results, err := c.Retrieve(ctx, question)
	if err != nil {
		return nil, nil, err
	}

	tokens, err := c.llm.GenerateStream(ctx, c.model, c.Render(question, results))
	if err != nil {
		return nil, nil, c.generationError(err)
	}
	return tokens, results, nil
}

// Retrieve embeds the question and returns the top-k chunks, best first.
// An empty result is logged as a warning, not returned as an error.
func (c *QueryChain) Retrieve(ctx context.Context, question string) ([]entities.QueryResult, error) {
	embedding, err := c.embedder.EmbedQuery(ctx, question)
	if err != nil {
		if !errors.Is(err, entities.ErrEmbeddingService) {
			err = &entities.EmbeddingServiceError{Err: err}
		}
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	results, err := c.vectorStore.Search(ctx, embedding, c.topK)
	if err != nil {
		return nil, fmt.Errorf("searching vectors: %w", err)
	}
	if len(results) == 0 {
		c.log.Warn("generating with empty context", "warning", entities.ErrEmptyRetrieval)
	}
	return results, nil
}

// Render substitutes the retrieved context and the question into the
// template. Context chunks keep similarity rank order.
func (c *QueryChain) Render(question string, results []entities.QueryResult) string {
	parts := make([]string, len(results))
	for i, r := range results {
		parts[i] = r.Chunk.Content
	}
	return RenderPrompt(c.template, strings.Join(parts, "\n\n"), question)
}

// Generate sends the rendered prompt to the model and returns its output.
func (c *QueryChain) Generate(ctx context.Context, prompt string) (string, error) {
	answer, err := c.llm.Generate(ctx, c.model, prompt)
	if err != nil {
		return "", c.generationError(err)
	}
	return answer, nil
}

func (c *QueryChain) generationError(err error) error {
	if !errors.Is(err, entities.ErrGenerationService) {
		err = &entities.GenerationServiceError{Model: c.model, Err: err}
	}
	return fmt.Errorf("generating response: %w", err)
}

// RenderPrompt substitutes both placeholders in a single pass, so text
// inside the context or question is never substituted again.
func RenderPrompt(template, contextBlock, question string) string {
	return strings.NewReplacer(
		ContextPlaceholder, contextBlock,
		QuestionPlaceholder, question,
	).Replace(template)
}

// ValidateTemplate checks that both placeholders are present.
func ValidateTemplate(template string) error {
	for _, p := range []string{ContextPlaceholder, QuestionPlaceholder} {
		if !strings.Contains(template, p) {
			return fmt.Errorf("%w: prompt template is missing %s", entities.ErrInvalidInput, p)
		}
	}
	return nil
}

// groundedTemplate validates a custom template and prepends the grounding
// instruction when the template does not already carry it.
func groundedTemplate(template string) (string, error) {
	if template == "" {
		return DefaultPromptTemplate, nil
	}
	if err := ValidateTemplate(template); err != nil {
		return "", err
	}
	if !strings.Contains(template, GroundingInstruction) {
		template = GroundingInstruction + "\n" + template
	}
	return template, nil
}
