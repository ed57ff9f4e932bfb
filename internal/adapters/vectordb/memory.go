package vectordb

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/0xcro3dile/archiverag/internal/domain/entities"
	"github.com/0xcro3dile/archiverag/internal/domain/ports"
)

var _ ports.VectorStore = (*InMemoryStore)(nil)

// InMemoryStore is a process-local vector store. Contents are lost on Close.
type InMemoryStore struct {
	mu     sync.RWMutex
	chunks map[string]entities.Chunk
	order  []string // ids in first-insertion order
}

// NewInMemoryStore creates a new in-memory vector store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		chunks: make(map[string]entities.Chunk),
	}
}

// ExistingIDs returns every stored id.
func (s *InMemoryStore) ExistingIDs(ctx context.Context) (map[string]struct{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make(map[string]struct{}, len(s.chunks))
	for id := range s.chunks {
		ids[id] = struct{}{}
	}
	return ids, nil
}

// Upsert stores pre-embedded chunks. The batch is validated before any write.
func (s *InMemoryStore) Upsert(ctx context.Context, chunks []entities.Chunk) error {
	for _, chunk := range chunks {
		if chunk.ID == "" {
			return fmt.Errorf("%w: chunk without id", entities.ErrInvalidInput)
		}
		if len(chunk.Embedding) == 0 {
			return fmt.Errorf("%w: chunk %s has no embedding", entities.ErrInvalidInput, chunk.ID)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, chunk := range chunks {
		if _, ok := s.chunks[chunk.ID]; !ok {
			s.order = append(s.order, chunk.ID)
		}
		chunk.Embedding = append([]float32(nil), chunk.Embedding...)
		s.chunks[chunk.ID] = chunk
	}
	return nil
}

// Search finds the most similar chunks to a query embedding.
func (s *InMemoryStore) Search(ctx context.Context, embedding []float32, topK int) ([]entities.QueryResult, error) {
	if topK <= 0 {
		return []entities.QueryResult{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	candidates := make([]entities.QueryResult, 0, len(s.order))
	for _, id := range s.order {
		chunk := s.chunks[id]
		score := cosineSimilarity(embedding, chunk.Embedding)
		chunk.Embedding = nil
		candidates = append(candidates, entities.QueryResult{Chunk: chunk, Score: score})
	}
	return topResults(candidates, topK), nil
}

// Count returns the number of stored chunks.
func (s *InMemoryStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks), nil
}

// Clear removes all data from the store.
func (s *InMemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.chunks = make(map[string]entities.Chunk)
	s.order = nil
	return nil
}

// Close drops the stored data.
func (s *InMemoryStore) Close() error {
	return s.Clear(context.Background())
}

// topResults sorts candidates (given in insertion order) by descending score
// and keeps the first k. The stable sort preserves insertion order on ties.
func topResults(candidates []entities.QueryResult, k int) []entities.QueryResult {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	if len(candidates) > k {
		candidates = candidates[:k]
	}
	if candidates == nil {
		return []entities.QueryResult{}
	}
	return candidates
}

// cosineSimilarity calculates cosine similarity between two vectors.
// Mismatched or zero vectors score 0.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
