package embeddings

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image/png"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/snapfind/internal/logging"
)

// RemoteConfig holds configuration for an OpenAI-compatible multimodal
// embeddings endpoint such as an Infinity server hosting CLIP.
type RemoteConfig struct {
	// BaseURL is the server root; requests go to BaseURL + "/embeddings".
	BaseURL string
	// Model is sent verbatim in each request.
	Model string
	// APIKey is sent as a bearer token when non-empty.
	APIKey    string
	Dimension int
	// Timeout bounds one request; zero disables it.
	Timeout time.Duration
	// MaxRetries is how often a 429 or 5xx is retried. Zero sends once.
	MaxRetries int
	Logger     *logging.Logger
}

// Validate validates the configuration.
func (c RemoteConfig) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("%w: base URL required", ErrInvalidConfig)
	}
	if !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://") {
		return fmt.Errorf("%w: base URL must be http or https: %q", ErrInvalidConfig, c.BaseURL)
	}
	if c.Model == "" {
		return fmt.Errorf("%w: model required", ErrInvalidConfig)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("%w: max retries cannot be negative", ErrInvalidConfig)
	}
	return nil
}

// RemoteProvider embeds text and images through the OpenAI SDK. The
// modality field is not part of the OpenAI schema, so it is set per request.
type RemoteProvider struct {
	config  RemoteConfig
	sdk     openai.Client
	logger  *logging.Logger
	metrics *Metrics
}

// NewRemoteProvider creates a provider for the configured endpoint.
func NewRemoteProvider(config RemoteConfig) (*RemoteProvider, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/") + "/"
	if config.Logger == nil {
		config.Logger = logging.NewNop()
	}

	opts := []option.RequestOption{
		option.WithBaseURL(config.BaseURL),
		option.WithMaxRetries(config.MaxRetries),
	}
	if config.APIKey != "" {
		opts = append(opts, option.WithAPIKey(config.APIKey))
	} else {
		// OPENAI_API_KEY from the environment must not leak to a self-hosted server.
		opts = append(opts, option.WithHeaderDel("authorization"))
	}
	if config.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(config.Timeout))
	}

	return &RemoteProvider{
		config:  config,
		sdk:     openai.NewClient(opts...),
		logger:  config.Logger,
		metrics: NewMetrics(config.Logger),
	}, nil
}

// EmbedText embeds a query prompt.
func (p *RemoteProvider) EmbedText(ctx context.Context, prompt string) ([]float32, error) {
	start := time.Now()
	var genErr error
	defer func() {
		p.metrics.Record(ctx, p.config.Model, OperationText, time.Since(start), genErr)
	}()

	if strings.TrimSpace(prompt) == "" {
		genErr = fmt.Errorf("%w: prompt cannot be empty", ErrEmptyInput)
		return nil, genErr
	}

	var vec []float32
	vec, genErr = p.embed(ctx, "text", prompt)
	return vec, genErr
}

// EmbedImage decodes path locally and sends it as a PNG data URI, so the
// server sees the same normalized RGB pixels as the local provider.
func (p *RemoteProvider) EmbedImage(ctx context.Context, path string) ([]float32, error) {
	start := time.Now()
	var genErr error
	defer func() {
		p.metrics.Record(ctx, p.config.Model, OperationImage, time.Since(start), genErr)
	}()

	img, err := LoadImage(path)
	if err != nil {
		genErr = err
		return nil, genErr
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		genErr = fmt.Errorf("%w: encoding %s: %v", ErrImageDecode, path, err)
		return nil, genErr
	}
	uri := "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())

	var vec []float32
	vec, genErr = p.embed(ctx, "image", uri)
	return vec, genErr
}

func (p *RemoteProvider) embed(ctx context.Context, modality, input string) ([]float32, error) {
	resp, err := p.sdk.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: []string{input},
		},
		Model:          openai.EmbeddingModel(p.config.Model),
		EncodingFormat: openai.EmbeddingNewParamsEncodingFormatFloat,
	}, option.WithJSONSet("modality", modality))
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			p.logger.Debug(ctx, "embedding request rejected",
				zap.String("modality", modality),
				zap.Int("status", apiErr.StatusCode),
			)
			return nil, fmt.Errorf("%w: status %d: %s", ErrEmbeddingFailed, apiErr.StatusCode, apiErr.Message)
		}
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("%w: response contained no embeddings", ErrEmbeddingFailed)
	}

	emb := resp.Data[0].Embedding
	vec := make([]float32, len(emb))
	for i, v := range emb {
		vec[i] = float32(v)
	}
	if err := checkDimension(vec, p.config.Dimension); err != nil {
		return nil, err
	}
	return vec, nil
}

// Dimension returns the configured embedding width.
func (p *RemoteProvider) Dimension() int {
	return p.config.Dimension
}

// Close is a no-op; the SDK client holds no exclusive resources.
func (p *RemoteProvider) Close() error {
	return nil
}
