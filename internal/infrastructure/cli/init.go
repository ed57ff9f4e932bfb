package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/0xcro3dile/archiverag/internal/infrastructure/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the active configuration to a YAML file",
	Long: `init writes the configuration archiverag is currently running with
(defaults, config file and ARCHIVERAG_* overrides merged) to --config,
or ./` + config.DefaultFile + ` when no path is given. API keys are never
written; only the name of the variable holding them.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if path == "" {
			path = config.DefaultFile
		}
		if !initForce {
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists; use --force to overwrite", path)
			} else if !errors.Is(err, fs.ErrNotExist) {
				return err
			}
		}
		if err := config.Save(path, runtime.Config()); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
		cmd.Printf("Wrote %s\n", path)
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "overwrite an existing file")
	rootCmd.AddCommand(initCmd)
}
