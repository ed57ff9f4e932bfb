package entities

import (
	"errors"
	"fmt"
)

// Domain errors. Typed errors below unwrap to the matching sentinel so
// callers can use errors.Is without caring about the details.
var (
	// ErrNoDocumentsFound indicates the corpus scan matched nothing.
	// Non-fatal: ingestion reports it and exits cleanly.
	ErrNoDocumentsFound = errors.New("no documents found")

	// ErrMissingMetadata indicates a chunk without source or page.
	ErrMissingMetadata = errors.New("missing chunk metadata")

	// ErrEmbeddingService indicates the embedding service failed.
	ErrEmbeddingService = errors.New("embedding service error")

	// ErrGenerationService indicates the generation model failed.
	ErrGenerationService = errors.New("generation service error")

	// ErrEmptyRetrieval is logged as a warning when a query retrieves
	// nothing. Generation still runs with an empty context.
	ErrEmptyRetrieval = errors.New("retrieval returned no documents")

	// ErrInvalidInput indicates malformed configuration or arguments.
	ErrInvalidInput = errors.New("invalid input")

	// ErrIngestionInProgress indicates another ingestion run holds the store.
	ErrIngestionInProgress = errors.New("ingestion already in progress")
)

// MissingMetadataError names the offending chunk.
type MissingMetadataError struct {
	Position int    // Position in the chunker's output
	Field    string // "source" or "page"
}

func (e *MissingMetadataError) Error() string {
	return fmt.Sprintf("chunk %d: missing %s", e.Position, e.Field)
}

func (e *MissingMetadataError) Unwrap() error { return ErrMissingMetadata }

// EmbeddingServiceError wraps a failed call to the embedding service.
type EmbeddingServiceError struct {
	Model string
	Err   error
}

func (e *EmbeddingServiceError) Error() string {
	return fmt.Sprintf("embedding service (%s): %v", e.Model, e.Err)
}

func (e *EmbeddingServiceError) Unwrap() []error { return []error{ErrEmbeddingService, e.Err} }

// GenerationServiceError wraps a failed call to the generation model.
type GenerationServiceError struct {
	Model string
	Err   error
}

func (e *GenerationServiceError) Error() string {
	return fmt.Sprintf("generation service (%s): %v", e.Model, e.Err)
}

func (e *GenerationServiceError) Unwrap() []error { return []error{ErrGenerationService, e.Err} }
