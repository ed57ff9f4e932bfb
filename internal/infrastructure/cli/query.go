package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/0xcro3dile/archiverag/internal/domain/entities"
	"github.com/0xcro3dile/archiverag/internal/domain/usecases"
)

var (
	queryModel   string
	queryK       int
	querySources bool
)

var queryCmd = &cobra.Command{
	Use:   "query <question>",
	Short: "Answer a question from the ingested documents",
	Long: `Retrieves the chunks most similar to the question and asks the language
model to answer using only those chunks.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().StringVarP(&queryModel, "model", "m", "", "generation model (default from config)")
	queryCmd.Flags().IntVarP(&queryK, "k", "k", 0, "number of chunks to retrieve (default from config)")
	queryCmd.Flags().BoolVarP(&querySources, "sources", "s", false, "print the retrieved chunk ids")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	question := strings.Join(args, " ")

	chain, err := runtime.Chain(usecases.ChainConfig{Model: queryModel, K: queryK})
	if err != nil {
		return err
	}

	resp, err := chain.Query(cmd.Context(), &entities.ChatRequest{Query: question})
	if err != nil {
		return err
	}

	cmd.Println(strings.TrimSpace(resp.Answer))
	if querySources {
		cmd.Println()
		cmd.Println("Sources:")
		for _, r := range resp.Sources {
			cmd.Printf("  %s (score %.3f)\n", r.Chunk.ID, r.Score)
		}
	}
	return nil
}
