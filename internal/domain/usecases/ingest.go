// Package usecases contains application business rules.
// Usecases orchestrate entities and depend only on port interfaces.
package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/0xcro3dile/archiverag/internal/domain/entities"
	"github.com/0xcro3dile/archiverag/internal/domain/ports"
)

// DefaultBatchSize is the number of new chunks embedded and upserted per batch.
const DefaultBatchSize = 64

// Stage names a step of the ingestion state machine.
type Stage string

const (
	StageScan        Stage = "scan"
	StageLoad        Stage = "load"
	StageChunk       Stage = "chunk"
	StageFingerprint Stage = "fingerprint"
	StageDiff        Stage = "diff"
	StageUpsert      Stage = "upsert"
	StageDone        Stage = "done"
)

// StageError records where an ingestion run stopped.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s: %v", e.Stage, e.Err) }

func (e *StageError) Unwrap() error { return e.Err }

// IngestUseCase runs the incremental ingestion pipeline:
// scan, load, chunk, fingerprint, diff against the store, embed and
// upsert only the new chunks. It must run as a single writer.
type IngestUseCase struct {
	corpus      ports.Corpus
	loader      ports.DocumentLoader
	embedder    ports.EmbeddingService
	vectorStore ports.VectorStore
	chunker     *Chunker
	batchSize   int
	log         *slog.Logger
}

// NewIngestUseCase creates an IngestUseCase with injected dependencies.
func NewIngestUseCase(
	corpus ports.Corpus,
	loader ports.DocumentLoader,
	embedder ports.EmbeddingService,
	vectorStore ports.VectorStore,
	chunker *Chunker,
	batchSize int,
	log *slog.Logger,
) *IngestUseCase {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if log == nil {
		log = slog.Default()
	}
	return &IngestUseCase{
		corpus:      corpus,
		loader:      loader,
		embedder:    embedder,
		vectorStore: vectorStore,
		chunker:     chunker,
		batchSize:   batchSize,
		log:         log,
	}
}

// Run executes one ingestion pass. It returns entities.ErrNoDocumentsFound
// (with a non-nil report) when the corpus is empty. Any other error aborts
// the run; batches already upserted stay and a retry converges.
func (uc *IngestUseCase) Run(ctx context.Context) (*entities.IngestReport, error) {
	report := &entities.IngestReport{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
	}
	log := uc.log.With("run_id", report.RunID)
	defer func() { report.Duration = time.Since(report.StartedAt) }()

	// Scan
	paths, err := uc.corpus.Scan(ctx)
	if err != nil {
		return report, &StageError{Stage: StageScan, Err: err}
	}
	log.Info("scanned corpus", "files", len(paths))
	if len(paths) == 0 {
		return report, entities.ErrNoDocumentsFound
	}

	// Load
	var docs []entities.Document
	for _, path := range paths {
		pages, err := uc.loader.Load(ctx, path)
		if err != nil {
			return report, &StageError{Stage: StageLoad, Err: fmt.Errorf("loading %s: %w", path, err)}
		}
		docs = append(docs, pages...)
	}
	report.Documents = len(docs)
	if len(docs) == 0 {
		return report, entities.ErrNoDocumentsFound
	}

	// Chunk
	chunks := uc.chunker.SplitDocuments(docs)
	report.Chunks = len(chunks)
	log.Debug("chunked documents", "pages", len(docs), "chunks", len(chunks))

	// Fingerprint
	if err := AssignFingerprints(chunks); err != nil {
		return report, &StageError{Stage: StageFingerprint, Err: err}
	}

	// Diff
	existing, err := uc.vectorStore.ExistingIDs(ctx)
	if err != nil {
		return report, &StageError{Stage: StageDiff, Err: fmt.Errorf("listing existing ids: %w", err)}
	}
	report.Existing = len(existing)
	log.Info("existing items in store", "count", len(existing))

	fresh := make([]entities.Chunk, 0, len(chunks))
	for _, c := range chunks {
		if _, ok := existing[c.ID]; !ok {
			fresh = append(fresh, c)
		}
	}
	report.Skipped = len(chunks) - len(fresh)

	if len(fresh) == 0 {
		log.Info("store is already up to date")
		return report, nil
	}

	// Upsert
	log.Info("adding new chunks", "count", len(fresh))
	for start := 0; start < len(fresh); start += uc.batchSize {
		end := min(start+uc.batchSize, len(fresh))
		if err := uc.upsertBatch(ctx, fresh[start:end]); err != nil {
			return report, &StageError{Stage: StageUpsert, Err: err}
		}
		report.Added += end - start
		log.Debug("upserted batch", "added", report.Added, "total", len(fresh))
	}

	log.Info("ingestion finished", "added", report.Added, "skipped", report.Skipped)
	return report, nil
}

// upsertBatch embeds a batch of new chunks and stores it.
func (uc *IngestUseCase) upsertBatch(ctx context.Context, batch []entities.Chunk) error {
	texts := make([]string, len(batch))
	for i, c := range batch {
		texts[i] = c.Content
	}

	embeddings, err := uc.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return err
	}
	if len(embeddings) != len(batch) {
		return &entities.EmbeddingServiceError{
			Err: fmt.Errorf("got %d embeddings for %d texts", len(embeddings), len(batch)),
		}
	}

	for i := range batch {
		batch[i].Embedding = embeddings[i]
	}
	return uc.vectorStore.Upsert(ctx, batch)
}
