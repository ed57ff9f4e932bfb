package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/0xcro3dile/archiverag/internal/adapters/filewatcher"
	"github.com/0xcro3dile/archiverag/internal/adapters/loader"
	"github.com/0xcro3dile/archiverag/internal/domain/entities"
	"github.com/0xcro3dile/archiverag/internal/domain/ports"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Ingest once, then re-ingest whenever the corpus changes",
	Long: `Runs an ingestion pass, then watches the corpus directory and runs another
pass after each new or modified document. Runs are serialised. Deleted
documents are reported but their chunks stay in the store; use reset and
ingest to drop them.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return watchCorpus(ctx, cmd)
}

func watchCorpus(ctx context.Context, cmd *cobra.Command) error {
	cfg := runtime.Config()
	corpus, err := loader.NewDirCorpus(cfg.Corpus.Dir, cfg.Corpus.Patterns()...)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.Corpus.Dir, 0o755); err != nil {
		return err
	}

	watcher, err := filewatcher.NewFSNotifyWatcher(filewatcher.Options{
		Match:  corpus.Matches,
		Logger: runtime.Logger(),
	})
	if err != nil {
		return err
	}
	defer watcher.Stop()

	events, err := watcher.Watch(ctx, cfg.Corpus.Dir)
	if err != nil {
		return err
	}

	if err := ingestOnce(cmd); err != nil {
		return err
	}
	cmd.Printf("Watching %s for changes (Ctrl-C to stop)\n", cfg.Corpus.Dir)

	for ev := range events {
		if ev.Operation == ports.FileDeleted {
			cmd.Printf("%s deleted; its chunks remain until reset\n", ev.Path)
			continue
		}
		cmd.Printf("%s %s\n", ev.Path, ev.Operation)
		if err := ingestOnce(cmd); err != nil {
			// A failed pass is retried on the next change.
			runtime.Logger().Error("ingestion failed", "error", err)
		}
	}
	return nil
}

func ingestOnce(cmd *cobra.Command) error {
	err := runIngest(cmd, nil)
	if errors.Is(err, entities.ErrIngestionInProgress) {
		cmd.Println("Another ingestion is running; skipping this pass")
		return nil
	}
	return err
}
