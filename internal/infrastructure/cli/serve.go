package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	httpserver "github.com/0xcro3dile/archiverag/internal/infrastructure/http"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the query and ingestion HTTP API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	addr := serveAddr
	if addr == "" {
		addr = runtime.Config().Server.Addr
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := httpserver.NewServer(runtime, addr, runtime.Logger())
	return srv.Start(ctx)
}
