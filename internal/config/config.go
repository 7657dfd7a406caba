// Package config provides configuration loading for snapfind.
//
// Values come from hardcoded defaults, an optional YAML file and
// SNAPFIND_-prefixed environment variables, in increasing precedence.
// Command-line flags are applied on top by the caller.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Provider names accepted by EmbeddingsConfig.Provider.
const (
	ProviderONNX   = "onnx"
	ProviderRemote = "remote"
)

// Presenter modes accepted by PresenterConfig.Mode.
const (
	ModeViewer  = "viewer"
	ModeConsole = "console"
)

// Config holds the complete snapfind configuration.
type Config struct {
	Search     SearchConfig     `koanf:"search"`
	Embeddings EmbeddingsConfig `koanf:"embeddings"`
	Presenter  PresenterConfig  `koanf:"presenter"`
	Logging    LoggingConfig    `koanf:"logging"`
}

// SearchConfig controls what is scanned and how many results are kept.
type SearchConfig struct {
	RootDir string `koanf:"root_dir"`
	TopN    int    `koanf:"top_n"`
}

// EmbeddingsConfig selects and configures the embedding provider.
type EmbeddingsConfig struct {
	// Provider is "onnx" (local CLIP export) or "remote".
	Provider string `koanf:"provider"`
	// Model is the model identifier. For remote providers it is sent verbatim.
	Model string `koanf:"model"`
	// ModelDir holds text_model.onnx, vision_model.onnx and tokenizer.json.
	ModelDir string `koanf:"model_dir"`
	// Dimension is the embedding width produced by both towers.
	Dimension int `koanf:"dimension"`
	// ONNXPath overrides the ONNX runtime shared library location.
	ONNXPath string `koanf:"onnx_path"`
	// BaseURL is the remote embeddings endpoint (remote provider only).
	BaseURL string `koanf:"base_url"`
	// APIKey is sent as a bearer token when set (remote provider only).
	APIKey Secret `koanf:"api_key"`
	// Timeout bounds a single remote request. Zero means no timeout.
	Timeout Duration `koanf:"timeout"`
	// MaxRetries is how often a 429 or 5xx response is retried.
	MaxRetries int `koanf:"max_retries"`
}

// PresenterConfig controls how ranked results are shown.
type PresenterConfig struct {
	Mode            string `koanf:"mode"`
	ThumbnailWidth  int    `koanf:"thumbnail_width"`
	ThumbnailHeight int    `koanf:"thumbnail_height"`
}

// LoggingConfig holds the subset of logging settings exposed to users.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Default returns a configuration populated with defaults only.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Search.RootDir == "" {
		cfg.Search.RootDir = "./images"
	}
	if cfg.Search.TopN == 0 {
		cfg.Search.TopN = 5
	}

	if cfg.Embeddings.Provider == "" {
		cfg.Embeddings.Provider = ProviderONNX
	}
	if cfg.Embeddings.Model == "" {
		cfg.Embeddings.Model = "openai/clip-vit-base-patch32"
	}
	if cfg.Embeddings.ModelDir == "" {
		cfg.Embeddings.ModelDir = "~/.cache/snapfind/models/clip-vit-base-patch32"
	}
	if cfg.Embeddings.Dimension == 0 {
		cfg.Embeddings.Dimension = 512 // clip-vit-base-patch32 projection width
	}
	if cfg.Embeddings.BaseURL == "" {
		cfg.Embeddings.BaseURL = "http://localhost:7997"
	}

	if cfg.Presenter.Mode == "" {
		cfg.Presenter.Mode = ModeViewer
	}
	if cfg.Presenter.ThumbnailWidth == 0 {
		cfg.Presenter.ThumbnailWidth = 32
	}
	if cfg.Presenter.ThumbnailHeight == 0 {
		cfg.Presenter.ThumbnailHeight = 16
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}
}

// Validate validates the configuration.
//
// Returns an error if:
//   - root_dir is empty or top_n is below 1
//   - the embedding provider or presenter mode is unknown
//   - the embedding dimension or thumbnail bounds are not positive
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Search.RootDir) == "" {
		return errors.New("search.root_dir is required")
	}
	if c.Search.TopN < 1 {
		return fmt.Errorf("invalid search.top_n: %d (must be >= 1)", c.Search.TopN)
	}

	switch c.Embeddings.Provider {
	case ProviderONNX:
		if c.Embeddings.ModelDir == "" {
			return errors.New("embeddings.model_dir is required for the onnx provider")
		}
	case ProviderRemote:
		if c.Embeddings.BaseURL == "" {
			return errors.New("embeddings.base_url is required for the remote provider")
		}
	default:
		return fmt.Errorf("unknown embeddings.provider %q (want %q or %q)",
			c.Embeddings.Provider, ProviderONNX, ProviderRemote)
	}
	if c.Embeddings.Dimension < 1 {
		return fmt.Errorf("invalid embeddings.dimension: %d", c.Embeddings.Dimension)
	}
	if c.Embeddings.MaxRetries < 0 {
		return fmt.Errorf("invalid embeddings.max_retries: %d", c.Embeddings.MaxRetries)
	}

	switch c.Presenter.Mode {
	case ModeViewer, ModeConsole:
	default:
		return fmt.Errorf("unknown presenter.mode %q (want %q or %q)",
			c.Presenter.Mode, ModeViewer, ModeConsole)
	}
	if c.Presenter.ThumbnailWidth < 1 || c.Presenter.ThumbnailHeight < 1 {
		return fmt.Errorf("thumbnail bounds must be positive, got %dx%d",
			c.Presenter.ThumbnailWidth, c.Presenter.ThumbnailHeight)
	}

	return nil
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
