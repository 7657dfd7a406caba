//go:build !cgo

package embeddings

import (
	"context"
	"errors"

	"github.com/fyrsmithlabs/snapfind/internal/logging"
)

// ErrONNXNotAvailable is returned when the binary was built without cgo.
var ErrONNXNotAvailable = errors.New("onnx: not available (binary built without CGO support, use the remote provider instead)")

// VerifyRuntime cannot load a shared library without CGO.
func VerifyRuntime(_ string) error {
	return ErrONNXNotAvailable
}

// CLIPConfig holds configuration for the local ONNX CLIP provider.
type CLIPConfig struct {
	ModelDir    string
	Model       string
	Dimension   int
	LibraryPath string
	ImageSize   int
	MaxTokens   int
	Logger      *logging.Logger
}

// CLIPProvider is a stub for non-CGO builds.
type CLIPProvider struct{}

// NewCLIPProvider returns an error when CGO is not available.
func NewCLIPProvider(_ CLIPConfig) (*CLIPProvider, error) {
	return nil, ErrONNXNotAvailable
}

// EmbedText returns an error when CGO is not available.
func (p *CLIPProvider) EmbedText(_ context.Context, _ string) ([]float32, error) {
	return nil, ErrONNXNotAvailable
}

// EmbedImage returns an error when CGO is not available.
func (p *CLIPProvider) EmbedImage(_ context.Context, _ string) ([]float32, error) {
	return nil, ErrONNXNotAvailable
}

// Dimension returns 0 when CGO is not available.
func (p *CLIPProvider) Dimension() int {
	return 0
}

// Close is a no-op when CGO is not available.
func (p *CLIPProvider) Close() error {
	return nil
}
