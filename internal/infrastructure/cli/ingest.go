package cli

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/0xcro3dile/archiverag/internal/domain/entities"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Add new document chunks to the vector store",
	Long: `Scans the corpus directory, splits every page into chunks and embeds only
the chunks the store does not already hold. Re-running on an unchanged
corpus does nothing.`,
	Args: cobra.NoArgs,
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	report, err := runtime.Ingest(cmd.Context())
	if errors.Is(err, entities.ErrNoDocumentsFound) {
		cmd.Printf("No documents found in %s\n", runtime.Config().Corpus.Dir)
		return nil
	}
	if err != nil {
		return err
	}

	if report.UpToDate() {
		cmd.Printf("Store is already up to date (%d chunks checked)\n", report.Chunks)
		return nil
	}
	cmd.Printf("Added %d new chunks (%d already stored, %d pages) in %s\n",
		report.Added, report.Skipped, report.Documents, report.Duration.Round(time.Millisecond))
	return nil
}
