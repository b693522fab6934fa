package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/ironsheep/photo-edit-mcp/internal/httpapi"
)

// janitorDivisor sets how often idle sessions are checked relative to their
// TTL.
const janitorDivisor = 4

func newServeCmd(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API for browser clients",
		Long: `Starts the studio HTTP API on the configured address.

Each browser client creates its own session and uploads images to it.
Sessions are kept in memory and dropped after being idle for the
configured session TTL.`,
		Example: `  # Start server on default address :8888
  photo-edit-mcp serve

  # Start server on a custom address
  photo-edit-mcp serve --addr 127.0.0.1:3000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg.HTTP
			if cmd.Flags().Changed("addr") {
				cfg.Addr = addr
			}

			handler := httpapi.New(a.newSession, httpapi.Options{MaxUploadBytes: a.cfg.MaxUploadBytes})

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			go handler.RunJanitor(ctx, cfg.SessionTTL, cfg.SessionTTL/janitorDivisor)

			server := &http.Server{
				Addr:    cfg.Addr,
				Handler: handler.Routes(),
			}

			// Start server in goroutine
			serverErr := make(chan error, 1)
			go func() {
				slog.Info("Photo studio API available", "addr", cfg.Addr, "version", a.version)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			// Wait for context cancellation (Ctrl+C) or server error
			select {
			case <-ctx.Done():
				slog.Info("Shutting down server...")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					slog.Error("Server shutdown failed", "err", err)
					return err
				}
				slog.Info("Server stopped")
				return nil
			case err := <-serverErr:
				return err
			}
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8888", "Address to listen on")

	return cmd
}
