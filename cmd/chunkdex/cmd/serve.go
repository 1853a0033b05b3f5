package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/chunkdex/internal/logging"
	mcpserver "github.com/Aman-CERP/chunkdex/internal/mcp"
)

func newServeCmd() *cobra.Command {
	var (
		transport string
		addr      string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server",
		Long: `Serve the index to MCP clients.

The stdio transport speaks JSON-RPC over stdin/stdout, which is how
Claude Code and Cursor launch the server. Logs go to the log file,
never to stdout.`,
		Example: `  # Serve over stdio (the default; also what bare 'chunkdex' does)
  chunkdex serve

  # Explicit transport selection
  chunkdex serve --transport stdio`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), transport, addr)
		},
	}

	cmd.Flags().StringVarP(&transport, "transport", "t", "stdio", "Transport: stdio")
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (non-stdio transports)")

	return cmd
}

func runServe(ctx context.Context, transport, addr string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// stdio carries JSON-RPC; a single stray write corrupts the stream.
	if transport == "stdio" {
		level := flagLogLevel
		if level == "" {
			level = "info"
		}
		if cleanup, err := logging.SetupMCPModeWithLevel(level); err == nil {
			defer cleanup()
		}
	}

	eng, metrics, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	srv, err := mcpserver.NewServer(eng)
	if err != nil {
		return err
	}
	srv.SetMetrics(metrics)
	defer func() { _ = srv.Close() }()

	slog.Info("mcp server starting", "transport", transport)
	return srv.Serve(ctx, transport, addr)
}
