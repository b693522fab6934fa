package cli

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ironsheep/photo-edit-mcp/internal/export"
	"github.com/ironsheep/photo-edit-mcp/internal/server"
)

func newMCPCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the studio to an MCP client over stdio",
		Long: `Starts the MCP server on stdin/stdout. This is also what running
photo-edit-mcp without a subcommand does.

Configure it in your MCP client (e.g., Claude Desktop) as a stdio server.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runMCP(cmd.Context())
		},
	}
}

func (a *app) runMCP(ctx context.Context) error {
	slog.Debug("Photo edit MCP server starting",
		"version", a.version,
		"model", a.cfg.Model,
		"export_dir", a.cfg.ExportDir,
		"adjust_backend", a.cfg.AdjustBackend)

	srv := server.New(a.newSession(), export.NewWriter(a.cfg.ExportDir), a.version)
	return srv.Run(ctx)
}
