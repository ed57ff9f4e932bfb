// Package cli implements the archiverag command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/0xcro3dile/archiverag/internal/app"
	"github.com/0xcro3dile/archiverag/internal/infrastructure/config"
)

var (
	configPath string
	envFile    string
	verbose    bool
	logFormat  string
	storeFlag  string

	// runtime is built by the root command before any subcommand runs.
	runtime *app.Runtime
	// testRuntime replaces the configured runtime in tests.
	testRuntime *app.Runtime
)

var rootCmd = &cobra.Command{
	Use:   "archiverag",
	Short: "Ask questions about a folder of archived documents",
	Long: `archiverag ingests PDF (and plain text) documents into a local vector
store and answers questions grounded only in their content, using an
Ollama or OpenAI-compatible embedding and language model.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return teardown()
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", "", "config file (default ./"+config.DefaultFile+" if present)")
	flags.StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the config")
	flags.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	flags.StringVar(&logFormat, "log-format", "text", "log format: text or json")
	flags.StringVar(&storeFlag, "store", "", "override store.driver (sqlite or memory)")
}

func setup(cmd *cobra.Command, args []string) error {
	if testRuntime != nil {
		runtime = testRuntime
		return nil
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", envFile, err)
		}
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if storeFlag != "" {
		cfg.Store.Driver = storeFlag
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := newLogger(cmd.ErrOrStderr(), logFormat, verbose)
	if err != nil {
		return err
	}
	runtime = app.New(cfg, log, app.Services{})
	return nil
}

func teardown() error {
	if runtime == nil || runtime == testRuntime {
		return nil
	}
	err := runtime.Close()
	runtime = nil
	return err
}

func newLogger(w io.Writer, format string, debug bool) (*slog.Logger, error) {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if debug {
		opts.Level = slog.LevelDebug
	}
	switch strings.ToLower(format) {
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q (want text or json)", format)
	}
}

// Execute runs the root command. The returned error has already been
// reported to stderr.
func Execute() error {
	err := rootCmd.ExecuteContext(context.Background())
	if err != nil {
		rootCmd.PrintErrln("Error:", err)
		teardown()
	}
	return err
}
