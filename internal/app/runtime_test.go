package app_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xcro3dile/archiverag/internal/adapters/vectordb"
	"github.com/0xcro3dile/archiverag/internal/app"
	"github.com/0xcro3dile/archiverag/internal/app/apptest"
	"github.com/0xcro3dile/archiverag/internal/domain/entities"
	"github.com/0xcro3dile/archiverag/internal/domain/usecases"
	"github.com/0xcro3dile/archiverag/internal/infrastructure/config"
)

func TestRuntime_IngestThenQuery(t *testing.T) {
	env := apptest.NewEnv(t)
	env.AddFile(t, "a.txt", "The regiment landed at Normandy in June.")
	ctx := context.Background()

	report, err := env.Runtime.Ingest(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Added)
	assert.NotEmpty(t, report.RunID)

	chain, err := env.Runtime.Chain(usecases.ChainConfig{})
	require.NoError(t, err)
	assert.Equal(t, "gemma3:1b", chain.Model())
	assert.Equal(t, 7, chain.K())

	answer, err := chain.Answer(ctx, "Where did the regiment land?")
	require.NoError(t, err)
	assert.Equal(t, "answer from gemma3:1b", answer)
	assert.Contains(t, env.LLM.LastPrompt(), "Normandy")
}

func TestRuntime_IngestIsIncremental(t *testing.T) {
	env := apptest.NewEnv(t)
	env.AddFile(t, "a.txt", "first letter home")
	ctx := context.Background()

	_, err := env.Runtime.Ingest(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, env.Embedder.Embedded())

	report, err := env.Runtime.Ingest(ctx)
	require.NoError(t, err)
	assert.True(t, report.UpToDate())
	assert.Equal(t, 1, env.Embedder.Embedded(), "nothing re-embedded")

	env.AddFile(t, "b.txt", "second letter home")
	report, err = env.Runtime.Ingest(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Added)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 2, env.Embedder.Embedded())
}

func TestRuntime_EmptyCorpus(t *testing.T) {
	env := apptest.NewEnv(t)

	_, err := env.Runtime.Ingest(context.Background())
	assert.ErrorIs(t, err, entities.ErrNoDocumentsFound)

	count, err := env.Runtime.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestRuntime_ChainCache(t *testing.T) {
	env := apptest.NewEnv(t)

	a, err := env.Runtime.Chain(usecases.ChainConfig{Model: "gemma3:4b", K: 3})
	require.NoError(t, err)
	b, err := env.Runtime.Chain(usecases.ChainConfig{Model: "gemma3:4b", K: 3})
	require.NoError(t, err)
	assert.Same(t, a, b)

	c, err := env.Runtime.Chain(usecases.ChainConfig{Model: "gemma3:4b", K: 5})
	require.NoError(t, err)
	assert.NotSame(t, a, c)

	env.Runtime.Clear()
	d, err := env.Runtime.Chain(usecases.ChainConfig{Model: "gemma3:4b", K: 3})
	require.NoError(t, err)
	assert.NotSame(t, a, d, "cleared chains are rebuilt")
}

func TestRuntime_ConfiguredTemplate(t *testing.T) {
	env := apptest.NewEnv(t)
	env.Config.Query.Template = "Context:\n{context}\nQ: {question}"

	chain, err := env.Runtime.Chain(usecases.ChainConfig{})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(chain.Template(), usecases.GroundingInstruction))
	assert.Contains(t, chain.Template(), "Q: {question}")
}

func TestRuntime_Reset(t *testing.T) {
	env := apptest.NewEnv(t)
	env.AddFile(t, "a.txt", "some text")
	ctx := context.Background()
	_, err := env.Runtime.Ingest(ctx)
	require.NoError(t, err)

	require.NoError(t, env.Runtime.Reset(ctx))
	count, err := env.Runtime.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestRuntime_IngestFailureKeepsNothingHalfDone(t *testing.T) {
	env := apptest.NewEnv(t)
	env.AddFile(t, "a.txt", "text")
	env.Embedder.Fail = apptest.ErrBackendDown

	_, err := env.Runtime.Ingest(context.Background())
	assert.ErrorIs(t, err, entities.ErrEmbeddingService)

	var stageErr *usecases.StageError
	require.True(t, errors.As(err, &stageErr))
	assert.Equal(t, usecases.StageUpsert, stageErr.Stage)

	env.Embedder.Fail = nil
	report, err := env.Runtime.Ingest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Added, "retry converges")
}

func TestRuntime_SQLiteLock(t *testing.T) {
	cfg := config.Default()
	cfg.Corpus.Dir = t.TempDir()
	cfg.Corpus.Pattern = "*.txt"
	cfg.Store.Dir = t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Corpus.Dir, "a.txt"), []byte("letters"), 0o644))

	release, err := vectordb.Lock(cfg.Store.Dir)
	require.NoError(t, err)
	defer release()

	rt := app.New(cfg, nil, app.Services{Embedder: &apptest.Embedder{}, LLM: &apptest.LLM{}})
	defer rt.Close()

	_, err = rt.Ingest(context.Background())
	assert.ErrorIs(t, err, entities.ErrIngestionInProgress)
}

func TestRuntime_SQLiteStoreOpensLazily(t *testing.T) {
	cfg := config.Default()
	cfg.Corpus.Dir = t.TempDir()
	cfg.Store.Dir = t.TempDir()

	rt := app.New(cfg, nil, app.Services{Embedder: &apptest.Embedder{}, LLM: &apptest.LLM{}})
	assert.NoFileExists(t, cfg.Store.Dir+"/"+vectordb.DBFile)

	count, err := rt.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.FileExists(t, cfg.Store.Dir+"/"+vectordb.DBFile)
	require.NoError(t, rt.Close())
}

func TestRuntime_EmptyCorpusLeavesNoStore(t *testing.T) {
	cfg := config.Default()
	cfg.Corpus.Dir = t.TempDir()
	cfg.Store.Dir = filepath.Join(t.TempDir(), "vector_db")

	rt := app.New(cfg, nil, app.Services{Embedder: &apptest.Embedder{}, LLM: &apptest.LLM{}})
	defer rt.Close()

	report, err := rt.Ingest(context.Background())
	assert.ErrorIs(t, err, entities.ErrNoDocumentsFound)
	require.NotNil(t, report)
	assert.NoDirExists(t, cfg.Store.Dir)
}
