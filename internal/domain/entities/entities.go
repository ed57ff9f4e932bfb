// Package entities contains core business entities.
// These are pure domain objects with no external dependencies.
package entities

import "time"

// Document is a single page of a source file (PDF, TXT, MD).
// Loaders emit one Document per page; it is discarded after chunking.
type Document struct {
	Source  string // Stable source identifier, e.g. the file path
	Page    int    // 0-based page number
	Content string
}

// Chunk is a bounded span of document text, the unit of embedding and retrieval.
type Chunk struct {
	ID        string // Fingerprint, "<source>:<page>:<index>"
	Source    string
	Page      int
	Index     int       // Position within its (source, page)
	Content   string
	Embedding []float32 // Populated only for chunks about to be stored
}

// QueryResult is a retrieved chunk with its similarity score.
type QueryResult struct {
	Chunk Chunk
	Score float64
}

// ChatRequest is a single question sent to the query chain.
type ChatRequest struct {
	Query string
}

// ChatResponse is the generated answer with the chunks it was grounded on.
type ChatResponse struct {
	Answer  string
	Sources []QueryResult
}

// IngestReport summarises one ingestion run.
type IngestReport struct {
	RunID     string
	Documents int // Pages loaded
	Chunks    int // Chunks produced by the chunker
	Existing  int // Ids already in the store before the run
	Added     int
	Skipped   int
	StartedAt time.Time
	Duration  time.Duration
}

// UpToDate reports whether the run found nothing new to add.
func (r *IngestReport) UpToDate() bool {
	return r.Added == 0
}
