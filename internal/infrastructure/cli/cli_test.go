package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xcro3dile/archiverag/internal/app/apptest"
	"github.com/0xcro3dile/archiverag/internal/domain/entities"
	"github.com/0xcro3dile/archiverag/internal/infrastructure/config"
)

func setupCLITest(t *testing.T) *apptest.Env {
	t.Helper()
	env := apptest.NewEnv(t)
	testRuntime = env.Runtime
	t.Cleanup(func() {
		testRuntime = nil
		runtime = nil
		queryModel, queryK, querySources = "", 0, false
		resetYes, initForce = false, false
		rootCmd.SetArgs(nil)
	})
	return env
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestRootCmd_Use(t *testing.T) {
	assert.Equal(t, "archiverag", rootCmd.Use)
	for _, name := range []string{"init", "ingest", "query", "serve", "watch", "reset", "status"} {
		cmd, _, err := rootCmd.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, cmd.Name())
	}
}

func TestIngestCmd_NoDocuments(t *testing.T) {
	env := setupCLITest(t)

	out, err := execute(t, "ingest")

	require.NoError(t, err, "an empty corpus is not a failure")
	assert.Contains(t, out, "No documents found in "+env.Config.Corpus.Dir)
}

func TestIngestCmd_AddsThenUpToDate(t *testing.T) {
	env := setupCLITest(t)
	env.AddFile(t, "a.txt", "A letter from the front.")

	out, err := execute(t, "ingest")
	require.NoError(t, err)
	assert.Contains(t, out, "Added 1 new chunks")

	out, err = execute(t, "ingest")
	require.NoError(t, err)
	assert.Contains(t, out, "already up to date")
	assert.Equal(t, 1, env.Embedder.Embedded())
}

func TestIngestCmd_LoadFailureIsAnError(t *testing.T) {
	env := setupCLITest(t)
	env.Config.Corpus.Pattern = "*.txt,*.pdf"
	env.AddFile(t, "broken.pdf", "not really a pdf")

	_, err := execute(t, "ingest")

	assert.Error(t, err)
}

func TestQueryCmd(t *testing.T) {
	env := setupCLITest(t)
	env.AddFile(t, "a.txt", "Medal ceremony held in Paris.")
	_, err := execute(t, "ingest")
	require.NoError(t, err)

	out, err := execute(t, "query", "--model", "gemma3:12b", "-k", "3", "--sources", "Where", "was", "the", "ceremony?")

	require.NoError(t, err)
	assert.Contains(t, out, "answer from gemma3:12b")
	assert.Contains(t, out, "Sources:")
	assert.Contains(t, out, "a.txt:0:0")
	assert.Contains(t, env.LLM.LastPrompt(), "Question: Where was the ceremony?")
}

func TestQueryCmd_RequiresQuestion(t *testing.T) {
	setupCLITest(t)

	_, err := execute(t, "query")
	assert.Error(t, err)
}

func TestQueryCmd_GenerationFailure(t *testing.T) {
	env := setupCLITest(t)
	env.LLM.Err = apptest.ErrBackendDown

	_, err := execute(t, "query", "anything")
	assert.ErrorIs(t, err, entities.ErrGenerationService)
}

func TestResetCmd(t *testing.T) {
	env := setupCLITest(t)
	env.AddFile(t, "a.txt", "text")
	_, err := execute(t, "ingest")
	require.NoError(t, err)

	out, err := execute(t, "reset")
	require.NoError(t, err)
	assert.Contains(t, out, "--yes")
	count, _ := env.Store.Count(context.Background())
	assert.Equal(t, 1, count, "nothing deleted without confirmation")

	out, err = execute(t, "reset", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "Vector store cleared.")
	count, _ = env.Store.Count(context.Background())
	assert.Zero(t, count)
}

func TestStatusCmd(t *testing.T) {
	env := setupCLITest(t)
	env.AddFile(t, "a.txt", "text")
	_, err := execute(t, "ingest")
	require.NoError(t, err)

	out, err := execute(t, "status")

	require.NoError(t, err)
	assert.Contains(t, out, "1 chunks")
	assert.Contains(t, out, "nomic-embed-text")
}

func TestStatusCmd_FromConfigFile(t *testing.T) {
	t.Cleanup(func() {
		configPath, storeFlag, envFile = "", "", ".env"
		rootCmd.SetArgs(nil)
	})
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "archiverag.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("corpus:\n  dir: "+dir+"\nquery:\n  k: 4\n"), 0o644))

	out, err := execute(t, "--config", cfgPath, "--store", "memory", "--env-file", "", "status")

	require.NoError(t, err)
	assert.Contains(t, out, "k=4")
	assert.Contains(t, out, "(memory), 0 chunks")
	assert.Nil(t, runtime, "runtime is closed after the command")
}

func TestInitCmd_WritesActiveConfig(t *testing.T) {
	env := setupCLITest(t)
	t.Cleanup(func() { configPath = "" })
	path := filepath.Join(t.TempDir(), "conf", "archiverag.yaml")
	env.Config.Query.K = 5

	out, err := execute(t, "--config", path, "init")
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote "+path)

	loaded, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5, loaded.Query.K)
	assert.Equal(t, env.Config.Corpus.Dir, loaded.Corpus.Dir)
	assert.Equal(t, config.DriverMemory, loaded.Store.Driver)

	_, err = execute(t, "--config", path, "init")
	assert.ErrorContains(t, err, "already exists")

	_, err = execute(t, "--config", path, "init", "--force")
	assert.NoError(t, err)
}

func TestRootCmd_InvalidConfig(t *testing.T) {
	t.Cleanup(func() {
		configPath, envFile = "", ".env"
		rootCmd.SetArgs(nil)
	})
	cfgPath := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("chunking:\n  size: 10\n  overlap: 10\n"), 0o644))

	_, err := execute(t, "--config", cfgPath, "--env-file", "", "status")
	assert.ErrorIs(t, err, entities.ErrInvalidInput)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer

	log, err := newLogger(&buf, "json", true)
	require.NoError(t, err)
	log.Debug("hello", "k", 1)
	assert.Contains(t, buf.String(), `"msg":"hello"`)

	buf.Reset()
	log, err = newLogger(&buf, "text", false)
	require.NoError(t, err)
	log.Debug("hidden")
	assert.Empty(t, buf.String())

	_, err = newLogger(&buf, "xml", false)
	assert.Error(t, err)
}

// syncBuffer guards a buffer written by the watch loop and read by the test.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestWatchCorpus_IngestsNewFiles(t *testing.T) {
	env := setupCLITest(t)
	runtime = env.Runtime
	env.AddFile(t, "first.txt", "already here")

	out := &syncBuffer{}
	cmd := &cobra.Command{}
	cmd.SetOut(out)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	cmd.SetContext(ctx)
	done := make(chan error, 1)
	go func() { done <- watchCorpus(ctx, cmd) }()

	require.Eventually(t, func() bool { return env.Embedder.Embedded() == 1 }, 5*time.Second, 20*time.Millisecond)
	env.AddFile(t, "second.txt", "arrived later")
	require.Eventually(t, func() bool { return env.Embedder.Embedded() == 2 }, 5*time.Second, 20*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.Contains(t, out.String(), "Watching")
	assert.Contains(t, out.String(), "second.txt")
}
