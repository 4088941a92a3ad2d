package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/nodebench/searchmcp/internal/config"
	"github.com/nodebench/searchmcp/internal/logging"
	"github.com/nodebench/searchmcp/internal/mcp"
)

func newServeCmd() *cobra.Command {
	var transport string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Start the MCP server exposing the fusion search pipeline.

The server speaks the Model Context Protocol over stdio and exposes three
tools: fusion_search (full pipeline, structured output), quick_search
(fast mode, markdown output) and source_status (adapter availability).

All logging goes to ~/.searchmcp/logs/: the MCP protocol requires stdout
to carry JSON-RPC exclusively. Use 'searchmcp logs -f' to watch the
server while it runs.`,
		Example: `  # Start the server (stdio transport)
  searchmcp serve

  # Typical MCP client configuration:
  #   "command": "searchmcp", "args": ["serve"]`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), transport)
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "stdio", "Transport protocol (stdio)")

	return cmd
}

// runServe builds the pipeline from config and serves MCP on the given
// transport. No stdout writes may happen before the server starts.
func runServe(ctx context.Context, transport string) error {
	// MCP-safe logging first: everything below logs to file only.
	logCleanup, err := logging.SetupMCPMode()
	if err != nil {
		// Logging failure must not block serving. Fall back to discard.
		logCleanup = func() {}
	}
	defer logCleanup()

	root, err := config.FindProjectRoot(".")
	if err != nil {
		root, _ = os.Getwd()
	}

	cfg, err := config.Load(root)
	if err != nil {
		slog.Error("Failed to load config", slog.String("error", err.Error()))
		return fmt.Errorf("failed to load config: %w", err)
	}

	p, err := buildPipeline(cfg)
	if err != nil {
		slog.Error("Failed to build pipeline", slog.String("error", err.Error()))
		return err
	}
	defer p.Close()

	server, err := mcp.NewServer(p.orchestrator, p.registry, cfg, p.hasReranker)
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}
	server.SetMetrics(p.metrics)

	slog.Info("Pipeline ready",
		slog.Int("adapters", p.registry.Len()),
		slog.Any("available", p.registry.Available()),
		slog.Bool("reranker", p.hasReranker))

	return server.Serve(ctx, transport)
}
