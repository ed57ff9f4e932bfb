package entities

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIngestReport_UpToDate(t *testing.T) {
	assert.True(t, (&IngestReport{Chunks: 3, Existing: 3, Skipped: 3}).UpToDate())
	assert.False(t, (&IngestReport{Chunks: 3, Added: 1, Skipped: 2}).UpToDate())
}

func TestMissingMetadataError_MatchesSentinel(t *testing.T) {
	err := fmt.Errorf("fingerprinting: %w", &MissingMetadataError{Position: 4, Field: "source"})

	assert.ErrorIs(t, err, ErrMissingMetadata)
	assert.Contains(t, err.Error(), "chunk 4: missing source")

	var mm *MissingMetadataError
	assert.True(t, errors.As(err, &mm))
	assert.Equal(t, "source", mm.Field)
}

func TestEmbeddingServiceError_KeepsCause(t *testing.T) {
	err := &EmbeddingServiceError{Model: "nomic-embed-text", Err: context.DeadlineExceeded}

	assert.ErrorIs(t, err, ErrEmbeddingService)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, ErrGenerationService)
	assert.Contains(t, err.Error(), "nomic-embed-text")
}

func TestGenerationServiceError_KeepsCause(t *testing.T) {
	cause := errors.New("model not found")
	err := fmt.Errorf("answering: %w", &GenerationServiceError{Model: "gemma3:1b", Err: cause})

	assert.ErrorIs(t, err, ErrGenerationService)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "model not found")
}
