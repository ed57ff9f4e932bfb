package cli

import (
	"github.com/spf13/cobra"
)

var resetYes bool

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete every chunk from the vector store",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !resetYes {
			cmd.Println("This deletes all stored chunks. Re-run with --yes to confirm.")
			return nil
		}
		if err := runtime.Reset(cmd.Context()); err != nil {
			return err
		}
		cmd.Println("Vector store cleared.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the store size and active configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := runtime.Config()
		count, err := runtime.Count(cmd.Context())
		if err != nil {
			return err
		}
		cmd.Printf("Corpus:     %s (%s)\n", cfg.Corpus.Dir, cfg.Corpus.Pattern)
		cmd.Printf("Store:      %s (%s), %d chunks\n", cfg.Store.Dir, cfg.Store.Driver, count)
		cmd.Printf("Chunking:   %d / %d overlap\n", cfg.Chunking.Size, cfg.Chunking.Overlap)
		cmd.Printf("Embedding:  %s via %s\n", cfg.Embedding.Model, cfg.Embedding.Provider)
		cmd.Printf("Generation: %s via %s, k=%d\n", cfg.Generation.Model, cfg.Generation.Provider, cfg.Query.K)
		return nil
	},
}

func init() {
	resetCmd.Flags().BoolVarP(&resetYes, "yes", "y", false, "confirm deletion")
	rootCmd.AddCommand(resetCmd, statusCmd)
}
