// Package config loads photo-edit-mcp settings.
//
// Settings come from three layers, later layers winning: built-in defaults,
// an optional YAML file, and environment variables. Command-line flags are
// applied on top by the cmd package.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ironsheep/photo-edit-mcp/internal/gemini"
	"github.com/ironsheep/photo-edit-mcp/internal/imaging"
)

// Environment variables read by ApplyEnv.
const (
	EnvAPIKey         = "GEMINI_API_KEY"
	EnvAPIKeyFallback = "API_KEY"
	EnvModel          = "PHOTO_EDIT_MODEL"
	EnvLogLevel       = "PHOTO_EDIT_LOG_LEVEL"
	EnvExportDir      = "PHOTO_EDIT_EXPORT_DIR"
	EnvBackend        = "PHOTO_EDIT_ADJUST_BACKEND"
	EnvDevicePixel    = "PHOTO_EDIT_DEVICE_PIXEL_RATIO"
)

// Config holds every runtime setting.
type Config struct {
	// Model is the Gemini model used for edits and background removal.
	Model string `yaml:"model"`

	// APIKey is the model-access credential. Usually set through the
	// environment rather than the file.
	APIKey string `yaml:"api_key"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	// ExportDir is where downloads and crops are written.
	ExportDir string `yaml:"export_dir"`

	// DevicePixelRatio is the default output density of crop exports.
	DevicePixelRatio float64 `yaml:"device_pixel_ratio"`

	// AdjustBackend selects the brightness/contrast implementation:
	// "imaging" or "bild".
	AdjustBackend string `yaml:"adjust_backend"`

	// MaintainConsistency is the initial state of the identity-preservation
	// toggle for new sessions.
	MaintainConsistency bool `yaml:"maintain_consistency"`

	// MaxUploadBytes caps the size of a single uploaded file.
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`

	HTTP HTTPConfig `yaml:"http"`
}

// HTTPConfig configures the serve command.
type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// SessionTTL is how long an unused browser session is kept.
	SessionTTL time.Duration `yaml:"session_ttl"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Model:               gemini.DefaultModel,
		LogLevel:            "info",
		ExportDir:           ".",
		DevicePixelRatio:    1,
		AdjustBackend:       imaging.BackendImaging,
		MaintainConsistency: true,
		MaxUploadBytes:      10 * 1024 * 1024,
		HTTP: HTTPConfig{
			Addr:            ":8888",
			ShutdownTimeout: 5 * time.Second,
			SessionTTL:      time.Hour,
		},
	}
}

// Load reads path (if non-empty) over the defaults, applies the environment
// and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables looked up through
// lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvAPIKey); ok && v != "" {
		c.APIKey = v
	} else if v, ok := lookup(EnvAPIKeyFallback); ok && v != "" {
		c.APIKey = v
	}
	if v, ok := lookup(EnvModel); ok && v != "" {
		c.Model = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.LogLevel = v
	}
	if v, ok := lookup(EnvExportDir); ok && v != "" {
		c.ExportDir = v
	}
	if v, ok := lookup(EnvBackend); ok && v != "" {
		c.AdjustBackend = v
	}
	if v, ok := lookup(EnvDevicePixel); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvDevicePixel, err)
		}
		c.DevicePixelRatio = f
	}
	return nil
}

// Validate rejects settings the rest of the program cannot work with.
func (c Config) Validate() error {
	var errs []error
	if c.Model == "" {
		errs = append(errs, errors.New("model must not be empty"))
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.DevicePixelRatio <= 0 {
		errs = append(errs, fmt.Errorf("device_pixel_ratio must be > 0, got %g", c.DevicePixelRatio))
	}
	if _, err := imaging.NewTransformer(c.AdjustBackend); err != nil {
		errs = append(errs, err)
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, fmt.Errorf("max_upload_bytes must be > 0, got %d", c.MaxUploadBytes))
	}
	if c.HTTP.SessionTTL <= 0 {
		errs = append(errs, fmt.Errorf("http.session_ttl must be > 0, got %s", c.HTTP.SessionTTL))
	}
	return errors.Join(errs...)
}

// Transformer returns the configured adjustment backend.
func (c Config) Transformer() imaging.Transformer {
	t, err := imaging.NewTransformer(c.AdjustBackend)
	if err != nil {
		return imaging.ImagingTransformer{}
	}
	return t
}

// NewLogger returns a text logger writing to w at the configured level.
func (c Config) NewLogger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}
