// Package app owns the long-lived collaborators shared by the CLI commands
// and the HTTP server: configuration, backend clients, the vector store and
// a cache of query chains.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/0xcro3dile/archiverag/internal/adapters/embedding"
	"github.com/0xcro3dile/archiverag/internal/adapters/llm"
	"github.com/0xcro3dile/archiverag/internal/adapters/loader"
	"github.com/0xcro3dile/archiverag/internal/adapters/vectordb"
	"github.com/0xcro3dile/archiverag/internal/domain/entities"
	"github.com/0xcro3dile/archiverag/internal/domain/ports"
	"github.com/0xcro3dile/archiverag/internal/domain/usecases"
	"github.com/0xcro3dile/archiverag/internal/infrastructure/config"
)

// Services overrides collaborators that would otherwise be built from the
// configuration. Nil fields are built lazily on first use.
type Services struct {
	Embedder ports.EmbeddingService
	LLM      ports.LLMService
	Store    ports.VectorStore
	Loader   ports.DocumentLoader
	Corpus   ports.Corpus
}

type chainKey struct {
	model string
	k     int
}

// Runtime is the explicitly owned replacement for process-wide cached
// singletons. It is safe for concurrent use.
type Runtime struct {
	cfg *config.Config
	log *slog.Logger

	mu       sync.Mutex
	services Services
	chains   map[chainKey]*usecases.QueryChain

	ingestMu sync.Mutex
}

// New creates a Runtime. Nothing is opened until first use.
func New(cfg *config.Config, log *slog.Logger, overrides Services) *Runtime {
	if log == nil {
		log = slog.Default()
	}
	return &Runtime{
		cfg:      cfg,
		log:      log,
		services: overrides,
		chains:   make(map[chainKey]*usecases.QueryChain),
	}
}

// Config returns the configuration the runtime was built with.
func (r *Runtime) Config() *config.Config {
	return r.cfg
}

// Logger returns the runtime's logger.
func (r *Runtime) Logger() *slog.Logger {
	return r.log
}

// Store opens the vector store on first call.
func (r *Runtime) Store() (ports.VectorStore, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.storeLocked()
}

func (r *Runtime) storeLocked() (ports.VectorStore, error) {
	if r.services.Store != nil {
		return r.services.Store, nil
	}
	var (
		store ports.VectorStore
		err   error
	)
	switch r.cfg.Store.Driver {
	case config.DriverMemory:
		store = vectordb.NewInMemoryStore()
	default:
		store, err = vectordb.NewSQLiteStore(r.cfg.Store.Dir, r.log)
		if err != nil {
			return nil, fmt.Errorf("opening vector store: %w", err)
		}
	}
	r.log.Debug("opened vector store", "driver", r.cfg.Store.Driver, "dir", r.cfg.Store.Dir)
	r.services.Store = store
	return store, nil
}

func (r *Runtime) embedderLocked() ports.EmbeddingService {
	if r.services.Embedder != nil {
		return r.services.Embedder
	}
	ec := r.cfg.Embedding
	opts := embedding.Options{
		BaseURL:        ec.BaseURL,
		Model:          ec.Model,
		Timeout:        ec.Timeout(),
		DocumentPrefix: ec.DocumentPrefix,
		QueryPrefix:    ec.QueryPrefix,
		Logger:         r.log,
	}
	if ec.Provider == config.ProviderOpenAI {
		r.services.Embedder = embedding.NewOpenAIAdapter(opts, ec.APIKey())
	} else {
		r.services.Embedder = embedding.NewOllamaAdapter(opts)
	}
	return r.services.Embedder
}

func (r *Runtime) llmLocked() ports.LLMService {
	if r.services.LLM != nil {
		return r.services.LLM
	}
	gc := r.cfg.Generation
	opts := llm.Options{
		BaseURL: gc.BaseURL,
		Timeout: gc.Timeout(),
		Logger:  r.log,
	}
	if gc.Provider == config.ProviderOpenAI {
		r.services.LLM = llm.NewOpenAIAdapter(opts, gc.APIKey())
	} else {
		r.services.LLM = llm.NewOllamaLLMAdapter(opts)
	}
	return r.services.LLM
}

func (r *Runtime) corpusLocked() (ports.Corpus, error) {
	if r.services.Corpus != nil {
		return r.services.Corpus, nil
	}
	corpus, err := loader.NewDirCorpus(r.cfg.Corpus.Dir, r.cfg.Corpus.Patterns()...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", entities.ErrInvalidInput, err)
	}
	r.services.Corpus = corpus
	return corpus, nil
}

func (r *Runtime) loaderLocked() ports.DocumentLoader {
	if r.services.Loader == nil {
		r.services.Loader = loader.NewMultiLoader(r.log)
	}
	return r.services.Loader
}

// Chain returns the query chain for cfg, building and caching it per
// {Model, K}. Empty fields take the configured defaults.
func (r *Runtime) Chain(cfg usecases.ChainConfig) (*usecases.QueryChain, error) {
	if cfg.Model == "" {
		cfg.Model = r.cfg.Generation.Model
	}
	if cfg.K <= 0 {
		cfg.K = r.cfg.Query.K
	}
	if cfg.Template == "" {
		cfg.Template = r.cfg.Query.Template
	}
	key := chainKey{model: cfg.Model, k: cfg.K}

	r.mu.Lock()
	defer r.mu.Unlock()

	if chain, ok := r.chains[key]; ok {
		return chain, nil
	}
	store, err := r.storeLocked()
	if err != nil {
		return nil, err
	}
	chain, err := usecases.NewQueryChain(r.embedderLocked(), store, r.llmLocked(), cfg, r.log)
	if err != nil {
		return nil, err
	}
	r.chains[key] = chain
	r.log.Debug("built query chain", "model", cfg.Model, "k", cfg.K)
	return chain, nil
}

// Clear drops every cached chain; the next Chain call rebuilds.
func (r *Runtime) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.chains)
	r.chains = make(map[chainKey]*usecases.QueryChain)
	r.log.Info("cleared cached query chains", "count", n)
}

// Ingest runs one ingestion pass under the single-writer lock. Overlapping
// runs fail with entities.ErrIngestionInProgress. The corpus is scanned
// before the lock is taken so an empty corpus never creates a store.
func (r *Runtime) Ingest(ctx context.Context) (*entities.IngestReport, error) {
	if !r.ingestMu.TryLock() {
		return nil, entities.ErrIngestionInProgress
	}
	defer r.ingestMu.Unlock()

	chunker, err := usecases.NewChunker(r.cfg.Chunking.Size, r.cfg.Chunking.Overlap)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	corpus, err := r.corpusLocked()
	if err != nil {
		r.mu.Unlock()
		return nil, err
	}
	embedder, docLoader := r.embedderLocked(), r.loaderLocked()
	r.mu.Unlock()

	paths, err := corpus.Scan(ctx)
	if err != nil || len(paths) == 0 {
		// Run stops at the scan stage without touching the store.
		uc := usecases.NewIngestUseCase(corpus, docLoader, embedder, nil, chunker, r.cfg.Ingest.BatchSize, r.log)
		return uc.Run(ctx)
	}

	if r.cfg.Store.Driver != config.DriverMemory {
		release, err := vectordb.Lock(r.cfg.Store.Dir)
		if err != nil {
			return nil, err
		}
		defer release()
	}

	store, err := r.Store()
	if err != nil {
		return nil, err
	}

	uc := usecases.NewIngestUseCase(scannedCorpus(paths), docLoader, embedder, store, chunker, r.cfg.Ingest.BatchSize, r.log)
	return uc.Run(ctx)
}

// scannedCorpus replays a scan that already happened.
type scannedCorpus []string

func (c scannedCorpus) Scan(ctx context.Context) ([]string, error) {
	return c, ctx.Err()
}

// Reset removes every stored chunk and drops cached chains.
func (r *Runtime) Reset(ctx context.Context) error {
	if !r.ingestMu.TryLock() {
		return entities.ErrIngestionInProgress
	}
	defer r.ingestMu.Unlock()

	store, err := r.Store()
	if err != nil {
		return err
	}
	if err := store.Clear(ctx); err != nil {
		return fmt.Errorf("clearing store: %w", err)
	}
	r.Clear()
	return nil
}

// Count returns the number of stored chunks.
func (r *Runtime) Count(ctx context.Context) (int, error) {
	store, err := r.Store()
	if err != nil {
		return 0, err
	}
	return store.Count(ctx)
}

// Close releases the store. The runtime must not be used afterwards.
func (r *Runtime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.chains = make(map[chainKey]*usecases.QueryChain)
	if r.services.Store == nil {
		return nil
	}
	err := r.services.Store.Close()
	r.services.Store = nil
	if err != nil {
		return fmt.Errorf("closing vector store: %w", err)
	}
	return nil
}
