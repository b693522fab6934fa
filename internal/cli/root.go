// Package cli wires configuration, logging and the studio into cobra
// commands.
package cli

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ironsheep/photo-edit-mcp/internal/config"
	"github.com/ironsheep/photo-edit-mcp/internal/gemini"
	"github.com/ironsheep/photo-edit-mcp/internal/studio"
)

// app carries what every subcommand needs once flags are parsed.
type app struct {
	cfg     config.Config
	version string
}

// newSession builds a studio session from the loaded configuration.
func (a *app) newSession() *studio.Session {
	return studio.New(gemini.New(a.cfg.APIKey, a.cfg.Model), studio.Options{
		Transformer:         a.cfg.Transformer(),
		MaintainConsistency: a.cfg.MaintainConsistency,
		DevicePixelRatio:    a.cfg.DevicePixelRatio,
		Logger:              slog.Default(),
	})
}

// NewRootCmd returns the photo-edit-mcp command tree. Running the root
// command without a subcommand starts the MCP server on stdio.
func NewRootCmd(version string) *cobra.Command {
	a := &app{version: version}

	var (
		configPath string
		logLevel   string
		exportDir  string
		backend    string
	)

	cmd := &cobra.Command{
		Use:   "photo-edit-mcp",
		Short: "AI photo editing studio over MCP and HTTP",
		Long: `photo-edit-mcp edits photos with natural-language instructions using a
generative image model.

Upload images, tune brightness and contrast, ask the model for edits or
background removal, zoom and pan the results, crop them and download them.
The studio is available to MCP clients over stdio and to browsers over HTTP.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = logLevel
			}
			if cmd.Flags().Changed("export-dir") {
				cfg.ExportDir = exportDir
			}
			if cmd.Flags().Changed("adjust-backend") {
				cfg.AdjustBackend = backend
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			// Stdout carries the MCP protocol; logs always go to stderr.
			slog.SetDefault(cfg.NewLogger(os.Stderr))
			if cfg.APIKey == "" {
				slog.Warn("No API key configured; edit requests will fail", "env", config.EnvAPIKey)
			}
			a.cfg = cfg
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runMCP(cmd.Context())
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", "", "Path to a YAML config file")
	flags.StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	flags.StringVar(&exportDir, "export-dir", ".", "Directory downloads and crops are written to")
	flags.StringVar(&backend, "adjust-backend", "imaging", "Brightness/contrast implementation: imaging or bild")

	cmd.AddCommand(newMCPCmd(a))
	cmd.AddCommand(newServeCmd(a))

	return cmd
}
