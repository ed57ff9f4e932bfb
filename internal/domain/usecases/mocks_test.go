package usecases

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/0xcro3dile/archiverag/internal/domain/entities"
	"github.com/0xcro3dile/archiverag/internal/domain/ports"
)

// mockEmbedder implements ports.EmbeddingService and records every text
// it was asked to embed.
type mockEmbedder struct {
	mu        sync.Mutex
	embedded  []string
	queries   []string
	failAfter int // Fail once this many documents were embedded; 0 disables
	queryErr  error
}

func (m *mockEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAfter > 0 && len(m.embedded)+len(texts) > m.failAfter {
		return nil, &entities.EmbeddingServiceError{Model: "mock", Err: errors.New("connection refused")}
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		m.embedded = append(m.embedded, text)
		out[i] = []float32{float32(len(text)), 1}
	}
	return out, nil
}

func (m *mockEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	m.queries = append(m.queries, text)
	return []float32{1, 1}, nil
}

func (m *mockEmbedder) embeddedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.embedded)
}

// mockVectorStore implements ports.VectorStore with a map keyed by id.
// Search returns chunks in insertion order.
type mockVectorStore struct {
	chunks   map[string]entities.Chunk
	order    []string
	upserts  int
	idsCalls int
}

func newMockVectorStore() *mockVectorStore {
	return &mockVectorStore{chunks: make(map[string]entities.Chunk)}
}

func (m *mockVectorStore) ExistingIDs(ctx context.Context) (map[string]struct{}, error) {
	m.idsCalls++
	ids := make(map[string]struct{}, len(m.chunks))
	for id := range m.chunks {
		ids[id] = struct{}{}
	}
	return ids, nil
}

func (m *mockVectorStore) Upsert(ctx context.Context, chunks []entities.Chunk) error {
	m.upserts++
	for _, c := range chunks {
		if _, ok := m.chunks[c.ID]; !ok {
			m.order = append(m.order, c.ID)
		}
		m.chunks[c.ID] = c
	}
	return nil
}

func (m *mockVectorStore) Search(ctx context.Context, emb []float32, topK int) ([]entities.QueryResult, error) {
	var results []entities.QueryResult
	for _, id := range m.order {
		if len(results) >= topK {
			break
		}
		results = append(results, entities.QueryResult{Chunk: m.chunks[id], Score: 0.9})
	}
	return results, nil
}

func (m *mockVectorStore) Count(ctx context.Context) (int, error) { return len(m.chunks), nil }

func (m *mockVectorStore) Clear(ctx context.Context) error {
	m.chunks = make(map[string]entities.Chunk)
	m.order = nil
	return nil
}

func (m *mockVectorStore) Close() error { return nil }

func (m *mockVectorStore) ids() []string {
	ids := make([]string, 0, len(m.chunks))
	for id := range m.chunks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// mockCorpus implements ports.Corpus over a fixed page set.
type mockCorpus struct {
	pages map[string][]string // path -> page texts
	err   error
}

func (m *mockCorpus) Scan(ctx context.Context) ([]string, error) {
	if m.err != nil {
		return nil, m.err
	}
	paths := make([]string, 0, len(m.pages))
	for p := range m.pages {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths, nil
}

// mockLoader serves pages from a mockCorpus.
type mockLoader struct {
	corpus *mockCorpus
	err    error
	source func(path string) string
}

func (m *mockLoader) Load(ctx context.Context, path string) ([]entities.Document, error) {
	if m.err != nil {
		return nil, m.err
	}
	source := path
	if m.source != nil {
		source = m.source(path)
	}
	var docs []entities.Document
	for i, text := range m.corpus.pages[path] {
		docs = append(docs, entities.Document{Source: source, Page: i, Content: text})
	}
	return docs, nil
}

func (m *mockLoader) SupportedExtensions() []string { return []string{".pdf"} }

// mockLLM implements ports.LLMService and records prompts.
type mockLLM struct {
	response string
	err      error
	prompts  []string
	models   []string
}

func (m *mockLLM) Generate(ctx context.Context, model, prompt string) (string, error) {
	m.prompts = append(m.prompts, prompt)
	m.models = append(m.models, model)
	if m.err != nil {
		return "", m.err
	}
	if m.response != "" {
		return m.response, nil
	}
	return "mocked answer", nil
}

func (m *mockLLM) GenerateStream(ctx context.Context, model, prompt string) (<-chan ports.StreamToken, error) {
	m.prompts = append(m.prompts, prompt)
	if m.err != nil {
		return nil, m.err
	}
	ch := make(chan ports.StreamToken, 2)
	ch <- ports.StreamToken{Content: m.response}
	ch <- ports.StreamToken{Done: true}
	close(ch)
	return ch, nil
}
