package embeddings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/snapfind/internal/logging"
)

var (
	// ErrEmptyInput indicates an empty prompt or path.
	ErrEmptyInput = errors.New("empty input")

	// ErrInvalidConfig indicates invalid provider configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmbeddingFailed indicates the model could not produce a vector.
	ErrEmbeddingFailed = errors.New("embedding generation failed")

	// ErrImageDecode indicates a file could not be opened or decoded as an image.
	ErrImageDecode = errors.New("image decode failed")
)

// TextEmbedder embeds query text.
type TextEmbedder interface {
	EmbedText(ctx context.Context, prompt string) ([]float32, error)
}

// ImageEmbedder embeds an image file.
type ImageEmbedder interface {
	EmbedImage(ctx context.Context, path string) ([]float32, error)
}

// Provider is the interface for joint text/image embedding providers.
type Provider interface {
	TextEmbedder
	ImageEmbedder
	// Dimension returns the embedding dimension for the current model.
	Dimension() int
	// Close releases resources held by the provider.
	Close() error
}

// ProviderConfig holds configuration for creating an embedding provider.
type ProviderConfig struct {
	// Provider is the provider type: "onnx" or "remote".
	Provider string
	// Model is the model identifier (sent verbatim to remote providers).
	Model string
	// Dimension is the expected vector width. Vectors of other widths are rejected.
	Dimension int
	// ModelDir holds the ONNX export (onnx provider only).
	ModelDir string
	// LibraryPath is the ONNX runtime shared library (onnx provider only).
	LibraryPath string
	// BaseURL is the embeddings endpoint (remote provider only).
	BaseURL string
	// APIKey is sent as a bearer token when non-empty (remote provider only).
	APIKey string
	// Timeout bounds one remote request; zero disables it.
	Timeout time.Duration
	// MaxRetries is how often a failed remote request is retried.
	MaxRetries int
	// Logger receives provider diagnostics. Nil means discard.
	Logger *logging.Logger
}

// NewProvider creates an embedding provider based on the configuration.
func NewProvider(cfg ProviderConfig) (Provider, error) {
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNop()
	}
	switch cfg.Provider {
	case "onnx", "":
		p, err := NewCLIPProvider(CLIPConfig{
			ModelDir:    cfg.ModelDir,
			Model:       cfg.Model,
			Dimension:   cfg.Dimension,
			LibraryPath: cfg.LibraryPath,
			Logger:      cfg.Logger,
		})
		if err != nil {
			return nil, err
		}
		return p, nil
	case "remote":
		p, err := NewRemoteProvider(RemoteConfig{
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			APIKey:     cfg.APIKey,
			Dimension:  cfg.Dimension,
			Timeout:    cfg.Timeout,
			MaxRetries: cfg.MaxRetries,
			Logger:     cfg.Logger,
		})
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, cfg.Provider)
	}
}

// checkDimension rejects vectors whose width differs from want (when want > 0).
func checkDimension(vec []float32, want int) error {
	if len(vec) == 0 {
		return fmt.Errorf("%w: empty vector", ErrEmbeddingFailed)
	}
	if want > 0 && len(vec) != want {
		return fmt.Errorf("%w: got %d dimensions, want %d", ErrEmbeddingFailed, len(vec), want)
	}
	return nil
}
