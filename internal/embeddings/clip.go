//go:build cgo

package embeddings

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/snapfind/internal/logging"
)

// Files expected inside a CLIP model directory.
const (
	TextModelFile   = "text_model.onnx"
	VisionModelFile = "vision_model.onnx"
	TokenizerFile   = "tokenizer.json"
)

// CLIPConfig holds configuration for the local ONNX CLIP provider.
type CLIPConfig struct {
	// ModelDir contains text_model.onnx, vision_model.onnx and tokenizer.json.
	ModelDir string
	// Model is a label used in logs and metrics.
	Model string
	// Dimension is the joint embedding width. Defaults to 512.
	Dimension int
	// LibraryPath overrides the ONNX runtime shared library location.
	LibraryPath string
	// ImageSize is the vision tower input resolution. Defaults to 224.
	ImageSize int
	// MaxTokens is the text context length. Defaults to 77.
	MaxTokens int
	Logger    *logging.Logger
}

// CLIPProvider runs a CLIP text and vision tower through ONNX runtime.
type CLIPProvider struct {
	text       *ort.DynamicAdvancedSession
	vision     *ort.DynamicAdvancedSession
	tokenizer  *Tokenizer
	textInputs []string
	modelName  string
	dimension  int
	imageSize  int
	ownsEnv    bool
	logger     *logging.Logger
	metrics    *Metrics
	mu         sync.Mutex
}

// NewCLIPProvider loads the model directory and initializes ONNX runtime.
func NewCLIPProvider(cfg CLIPConfig) (*CLIPProvider, error) {
	if cfg.ModelDir == "" {
		return nil, fmt.Errorf("%w: model directory is required", ErrInvalidConfig)
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNop()
	}
	if cfg.Dimension <= 0 {
		cfg.Dimension = 512
	}
	if cfg.ImageSize <= 0 {
		cfg.ImageSize = DefaultImageSize
	}

	textPath := filepath.Join(cfg.ModelDir, TextModelFile)
	visionPath := filepath.Join(cfg.ModelDir, VisionModelFile)
	tokPath := filepath.Join(cfg.ModelDir, TokenizerFile)
	for _, p := range []string{textPath, visionPath, tokPath} {
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("%w: model file %s: %v", ErrInvalidConfig, p, err)
		}
	}

	tok, err := LoadTokenizer(tokPath, cfg.MaxTokens)
	if err != nil {
		return nil, err
	}

	ownsEnv, err := initRuntime(cfg.LibraryPath)
	if err != nil {
		return nil, err
	}

	p := &CLIPProvider{
		tokenizer: tok,
		modelName: cfg.Model,
		dimension: cfg.Dimension,
		imageSize: cfg.ImageSize,
		ownsEnv:   ownsEnv,
		logger:    cfg.Logger,
		metrics:   NewMetrics(cfg.Logger),
	}

	textIn, textOut, err := sessionNames(textPath, "text_embeds")
	if err != nil {
		p.Close()
		return nil, err
	}
	p.textInputs = textIn
	p.text, err = ort.NewDynamicAdvancedSession(textPath, textIn, []string{textOut}, nil)
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("%w: loading text model: %v", ErrInvalidConfig, err)
	}

	visionIn, visionOut, err := sessionNames(visionPath, "image_embeds")
	if err != nil {
		p.Close()
		return nil, err
	}
	p.vision, err = ort.NewDynamicAdvancedSession(visionPath, visionIn[:1], []string{visionOut}, nil)
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("%w: loading vision model: %v", ErrInvalidConfig, err)
	}

	cfg.Logger.Debug(context.Background(), "clip provider ready",
		zap.String("model", cfg.Model),
		zap.String("model_dir", cfg.ModelDir),
		zap.Strings("text_inputs", textIn),
		zap.Int("dimension", cfg.Dimension),
	)
	return p, nil
}

// VerifyRuntime loads the shared library at libPath into a fresh ONNX
// environment and tears it down again.
func VerifyRuntime(libPath string) error {
	if ort.IsInitialized() {
		return fmt.Errorf("onnx environment already initialized in this process")
	}
	ort.SetSharedLibraryPath(libPath)
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("loading %s: %w", filepath.Base(libPath), err)
	}
	return ort.DestroyEnvironment()
}

// initRuntime initializes the process-wide ONNX environment if needed.
// Reports whether this call created it.
func initRuntime(libraryPath string) (bool, error) {
	if ort.IsInitialized() {
		return false, nil
	}
	if libraryPath == "" {
		libraryPath = GetONNXLibraryPath()
	}
	if libraryPath == "" {
		return false, fmt.Errorf("%w: ONNX runtime not found (run 'snapfind setup' or set ONNX_PATH)", ErrInvalidConfig)
	}
	ort.SetSharedLibraryPath(libraryPath)
	if err := ort.InitializeEnvironment(); err != nil {
		return false, fmt.Errorf("%w: initializing ONNX runtime: %v", ErrInvalidConfig, err)
	}
	return true, nil
}

// sessionNames returns the model's input names and the output to read,
// preferring the projected embedding output named want.
func sessionNames(path, want string) ([]string, string, error) {
	inputs, outputs, err := ort.GetInputOutputInfo(path)
	if err != nil {
		return nil, "", fmt.Errorf("%w: inspecting %s: %v", ErrInvalidConfig, path, err)
	}
	if len(inputs) == 0 || len(outputs) == 0 {
		return nil, "", fmt.Errorf("%w: %s has no inputs or outputs", ErrInvalidConfig, path)
	}

	in := make([]string, 0, len(inputs))
	for _, info := range inputs {
		in = append(in, info.Name)
	}
	out := outputs[0].Name
	for _, info := range outputs {
		if info.Name == want {
			out = info.Name
			break
		}
		if strings.HasSuffix(info.Name, "embeds") {
			out = info.Name
		}
	}
	return in, out, nil
}

// EmbedText tokenizes prompt and runs the text tower.
func (p *CLIPProvider) EmbedText(ctx context.Context, prompt string) (vec []float32, err error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, fmt.Errorf("%w: prompt cannot be empty", ErrEmptyInput)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() { p.metrics.Record(ctx, p.modelName, OperationText, time.Since(start), err) }()

	ids, mask, err := p.tokenizer.Encode(prompt)
	if err != nil {
		return nil, err
	}

	shape := ort.NewShape(1, int64(len(ids)))
	inputs := make([]ort.Value, 0, len(p.textInputs))
	for _, name := range p.textInputs {
		data := ids
		if name == "attention_mask" {
			data = mask
		}
		t, err := ort.NewTensor(shape, data)
		if err != nil {
			destroyValues(inputs)
			return nil, fmt.Errorf("%w: creating %s tensor: %v", ErrEmbeddingFailed, name, err)
		}
		inputs = append(inputs, t)
	}
	defer destroyValues(inputs)

	return p.run(p.text, inputs)
}

// EmbedImage decodes path and runs the vision tower.
func (p *CLIPProvider) EmbedImage(ctx context.Context, path string) (vec []float32, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() { p.metrics.Record(ctx, p.modelName, OperationImage, time.Since(start), err) }()

	img, err := LoadImage(path)
	if err != nil {
		return nil, err
	}
	pixels := Preprocess(img, p.imageSize)

	size := int64(p.imageSize)
	t, err := ort.NewTensor(ort.NewShape(1, 3, size, size), pixels)
	if err != nil {
		return nil, fmt.Errorf("%w: creating pixel tensor: %v", ErrEmbeddingFailed, err)
	}
	defer t.Destroy()

	return p.run(p.vision, []ort.Value{t})
}

func (p *CLIPProvider) run(session *ort.DynamicAdvancedSession, inputs []ort.Value) ([]float32, error) {
	out, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(p.dimension)))
	if err != nil {
		return nil, fmt.Errorf("%w: allocating output: %v", ErrEmbeddingFailed, err)
	}
	defer out.Destroy()

	p.mu.Lock()
	defer p.mu.Unlock()

	if session == nil {
		return nil, fmt.Errorf("%w: provider is closed", ErrEmbeddingFailed)
	}
	if err := session.Run(inputs, []ort.Value{out}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}

	vec := make([]float32, p.dimension)
	copy(vec, out.GetData())
	if err := checkDimension(vec, p.dimension); err != nil {
		return nil, err
	}
	return vec, nil
}

func destroyValues(values []ort.Value) {
	for _, v := range values {
		v.Destroy()
	}
}

// Dimension returns the embedding width.
func (p *CLIPProvider) Dimension() int {
	return p.dimension
}

// Close releases the sessions and, if this provider created it, the ONNX environment.
func (p *CLIPProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var firstErr error
	if p.text != nil {
		if err := p.text.Destroy(); err != nil && firstErr == nil {
			firstErr = err
		}
		p.text = nil
	}
	if p.vision != nil {
		if err := p.vision.Destroy(); err != nil && firstErr == nil {
			firstErr = err
		}
		p.vision = nil
	}
	if p.ownsEnv {
		if err := ort.DestroyEnvironment(); err != nil && firstErr == nil {
			firstErr = err
		}
		p.ownsEnv = false
	}
	return firstErr
}
