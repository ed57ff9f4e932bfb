// Package ports defines interfaces for external dependencies.
// Usecases depend on these abstractions; adapters implement them.
package ports

import (
	"context"

	"github.com/0xcro3dile/archiverag/internal/domain/entities"
)

// EmbeddingService generates vector embeddings for text.
// Implementations must return EmbeddingServiceError on failure and never
// substitute zero vectors.
type EmbeddingService interface {
	// EmbedDocuments embeds chunk texts. The result has the same length
	// and order as texts.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery embeds a single question. Prompt framing may differ from
	// EmbedDocuments per the model's convention.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// LLMService generates text from a rendered prompt.
type LLMService interface {
	// Generate returns the model's full answer for prompt.
	Generate(ctx context.Context, model, prompt string) (string, error)

	// GenerateStream produces a streaming response for the SSE endpoint.
	GenerateStream(ctx context.Context, model, prompt string) (<-chan StreamToken, error)
}

// VectorStore persists chunk vectors and answers nearest-neighbour queries.
// It is the sole owner of stored (id -> vector, metadata, text) triples.
type VectorStore interface {
	// ExistingIDs returns every stored chunk id without loading vectors or text.
	ExistingIDs(ctx context.Context) (map[string]struct{}, error)

	// Upsert stores pre-embedded chunks. Re-upserting an id overwrites it.
	Upsert(ctx context.Context, chunks []entities.Chunk) error

	// Search returns up to topK chunks by cosine similarity. Ties keep
	// insertion order.
	Search(ctx context.Context, embedding []float32, topK int) ([]entities.QueryResult, error)

	// Count returns the number of stored chunks.
	Count(ctx context.Context) (int, error)

	// Clear removes all data from the store.
	Clear(ctx context.Context) error

	Close() error
}

// DocumentLoader reads a file into per-page documents.
type DocumentLoader interface {
	// Load returns one Document per page, in page order.
	Load(ctx context.Context, path string) ([]entities.Document, error)

	// SupportedExtensions returns file extensions this loader handles.
	SupportedExtensions() []string
}

// Corpus enumerates the source files to ingest.
type Corpus interface {
	// Scan returns matching file paths in a stable (lexical) order.
	Scan(ctx context.Context) ([]string, error)
}

// StreamToken represents a single token in a streaming LLM response.
type StreamToken struct {
	Content string
	Done    bool
	Error   error
}

// FileWatcher monitors a directory for changes.
type FileWatcher interface {
	// Watch starts monitoring the directory and emits events.
	Watch(ctx context.Context, dir string) (<-chan FileEvent, error)

	// Stop stops the watcher.
	Stop() error
}

// FileEvent represents a file system change.
type FileEvent struct {
	Path      string
	Operation FileOperation
}

// FileOperation is the type of file change.
type FileOperation int

const (
	FileCreated FileOperation = iota
	FileModified
	FileDeleted
)

func (op FileOperation) String() string {
	switch op {
	case FileCreated:
		return "created"
	case FileModified:
		return "modified"
	case FileDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}
