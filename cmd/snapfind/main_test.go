package main

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/fyrsmithlabs/snapfind/internal/embeddings"
	"github.com/fyrsmithlabs/snapfind/internal/search"
)

type fakeProvider struct {
	closed bool
}

func (p *fakeProvider) EmbedText(_ context.Context, prompt string) ([]float32, error) {
	switch prompt {
	case "a cat":
		return []float32{1, 0, 0}, nil
	case "a car":
		return []float32{0, 1, 0}, nil
	}
	return nil, fmt.Errorf("%w: unknown prompt", embeddings.ErrEmbeddingFailed)
}

func (p *fakeProvider) EmbedImage(_ context.Context, path string) ([]float32, error) {
	data, err := os.ReadFile(path)
	if err != nil || string(data) == "corrupt" {
		return nil, fmt.Errorf("%w: %s", embeddings.ErrImageDecode, path)
	}
	switch filepath.Base(path) {
	case "cat.png":
		return []float32{0.9, 0.1, 0}, nil
	case "car.jpg":
		return []float32{0.1, 0.9, 0}, nil
	}
	return []float32{0, 0, 1}, nil
}

func (p *fakeProvider) Dimension() int { return 3 }

func (p *fakeProvider) Close() error {
	p.closed = true
	return nil
}

// setup isolates HOME and swaps the provider factory.
func setup(t *testing.T) *fakeProvider {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	for _, kv := range os.Environ() {
		if strings.HasPrefix(kv, "SNAPFIND_") {
			t.Setenv(strings.SplitN(kv, "=", 2)[0], "")
		}
	}

	fake := &fakeProvider{}
	origProvider, origRuntime := newProvider, ensureRuntime
	newProvider = func(embeddings.ProviderConfig) (embeddings.Provider, error) { return fake, nil }
	ensureRuntime = func(context.Context, io.Writer) (string, error) { return "/opt/libonnxruntime.so", nil }
	t.Cleanup(func() { newProvider, ensureRuntime = origProvider, origRuntime })
	return fake
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func TestSearch_Console(t *testing.T) {
	fake := setup(t)
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "car.jpg"), "img")
	writeFile(t, filepath.Join(root, "pets", "cat.png"), "img")
	writeFile(t, filepath.Join(root, "notes.txt"), "text")

	out, _, err := execute(t, "a cat\n", "--root", root, "--mode", "console")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(strings.TrimPrefix(out, promptText)), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "1. "+filepath.Join(root, "pets", "cat.png")+" - Score: "), lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "2. "+filepath.Join(root, "car.jpg")+" - Score: "), lines[1])
	assert.True(t, strings.HasSuffix(lines[0], "%"))
	assert.True(t, fake.closed, "provider released on exit")
}

func TestSearch_QueryFlagSkipsPrompt(t *testing.T) {
	setup(t)
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "car.jpg"), "img")
	writeFile(t, filepath.Join(root, "cat.png"), "img")

	out, _, err := execute(t, "", "--root", root, "--mode", "console", "--query", "a car", "--top", "1")
	require.NoError(t, err)
	assert.NotContains(t, out, promptText)
	assert.Equal(t, fmt.Sprintf("1. %s - Score: 99.39%%\n", filepath.Join(root, "car.jpg")), out)
}

func TestSearch_NoMatches(t *testing.T) {
	setup(t)
	out, _, err := execute(t, "a cat\n", "--root", filepath.Join(t.TempDir(), "missing"), "--mode", "viewer")
	require.NoError(t, err)
	assert.Equal(t, promptText+"No matching images found.\n", out)
}

func TestSearch_CorruptFileSkipped(t *testing.T) {
	setup(t)
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "broken.jpg"), "corrupt")
	writeFile(t, filepath.Join(root, "cat.png"), "img")

	out, errOut, err := execute(t, "", "--root", root, "--mode", "console", "--query", "a cat")
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(out, "Score:"))
	assert.Contains(t, errOut, "skipping image")
	assert.Contains(t, errOut, "broken.jpg")
}

func TestSearch_Errors(t *testing.T) {
	t.Run("empty query", func(t *testing.T) {
		setup(t)
		_, _, err := execute(t, "   \n", "--root", t.TempDir())
		require.ErrorIs(t, err, search.ErrEmptyQuery)
	})

	t.Run("query embedding fails", func(t *testing.T) {
		setup(t)
		_, _, err := execute(t, "", "--root", t.TempDir(), "--query", "a dog")
		require.ErrorIs(t, err, search.ErrQueryEmbedding)
	})

	t.Run("invalid top", func(t *testing.T) {
		setup(t)
		_, _, err := execute(t, "a cat\n", "--top", "0")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "top_n")
	})

	t.Run("invalid mode", func(t *testing.T) {
		setup(t)
		_, _, err := execute(t, "a cat\n", "--mode", "window")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "presenter.mode")
	})

	t.Run("provider init fails", func(t *testing.T) {
		setup(t)
		newProvider = func(embeddings.ProviderConfig) (embeddings.Provider, error) {
			return nil, fmt.Errorf("%w: model file missing", embeddings.ErrInvalidConfig)
		}
		_, _, err := execute(t, "", "--query", "a cat")
		require.ErrorIs(t, err, embeddings.ErrInvalidConfig)
	})
}

func TestSearch_ConfigFileAndEnv(t *testing.T) {
	setup(t)
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "car.jpg"), "img")
	writeFile(t, filepath.Join(root, "cat.png"), "img")

	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, cfgPath, fmt.Sprintf("search:\n  root_dir: %s\n  top_n: 5\npresenter:\n  mode: console\n", root))
	t.Setenv("SNAPFIND_SEARCH_TOP_N", "1")

	var got embeddings.ProviderConfig
	fake := &fakeProvider{}
	newProvider = func(cfg embeddings.ProviderConfig) (embeddings.Provider, error) {
		got = cfg
		return fake, nil
	}

	out, _, err := execute(t, "", "--config", cfgPath, "--query", "a cat")
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(out, "Score:"), "env overrides file top_n")
	assert.Equal(t, "onnx", got.Provider)
	assert.Equal(t, "/opt/libonnxruntime.so", got.LibraryPath)
	assert.Equal(t, 512, got.Dimension)
}

func TestSearch_FlagOverridesInvalidFileMode(t *testing.T) {
	setup(t)
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "cat.png"), "img")

	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, cfgPath, "presenter:\n  mode: window\n")

	out, _, err := execute(t, "", "--config", cfgPath, "--root", root, "--mode", "console", "--query", "a cat")
	require.NoError(t, err)
	assert.Contains(t, out, "1. "+filepath.Join(root, "cat.png"))

	_, _, err = execute(t, "", "--config", cfgPath, "--root", root, "--query", "a cat")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "presenter.mode")
}

// writePNG writes a small solid image the remote provider can decode.
func writePNG(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, color.NRGBA{R: 200, A: 255})
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func TestSearch_RemoteProviderTelemetry(t *testing.T) {
	setup(t)
	newProvider = embeddings.NewProvider
	t.Cleanup(func() {
		otel.SetTracerProvider(tracenoop.NewTracerProvider())
		otel.SetMeterProvider(metricnoop.NewMeterProvider())
	})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Modality string `json:"modality"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		vec := []float32{1, 0, 0}
		if req.Modality == "image" {
			vec = []float32{0.9, 0.1, 0}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data":   []map[string]any{{"object": "embedding", "index": 0, "embedding": vec}},
		})
	}))
	defer srv.Close()

	t.Setenv("SNAPFIND_EMBEDDINGS_PROVIDER", "remote")
	t.Setenv("SNAPFIND_EMBEDDINGS_BASE_URL", srv.URL)
	t.Setenv("SNAPFIND_EMBEDDINGS_DIMENSION", "3")

	root := t.TempDir()
	writePNG(t, filepath.Join(root, "cat.png"))
	writeFile(t, filepath.Join(root, "broken.jpg"), "corrupt")

	out, errOut, err := execute(t, "", "--root", root, "--mode", "console", "--query", "a cat", "--log-level", "debug")
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("1. %s - Score: 99.39%%\n", filepath.Join(root, "cat.png")), out)

	assert.Contains(t, errOut, "trace_id")
	assert.Contains(t, errOut, "embedding summary")
	assert.Equal(t, 2, strings.Count(errOut, "embedding summary"), "one line per operation")
}

func TestPromptQuery(t *testing.T) {
	var out bytes.Buffer
	q, err := promptQuery(strings.NewReader("  red car  \nignored\n"), &out)
	require.NoError(t, err)
	assert.Equal(t, "red car", q)
	assert.Equal(t, promptText, out.String())

	q, err = promptQuery(strings.NewReader("no newline"), &out)
	require.NoError(t, err)
	assert.Equal(t, "no newline", q)
}

func TestSubcommands(t *testing.T) {
	cmd := newRootCmd()
	names := map[string]bool{}
	for _, c := range cmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["setup"])
	assert.True(t, names["version"])
}

func TestSetupCmd_AlreadyInstalled(t *testing.T) {
	libPath := filepath.Join(t.TempDir(), "libonnxruntime.so")
	writeFile(t, libPath, "fake lib")
	t.Setenv("ONNX_PATH", libPath)

	out, _, err := execute(t, "", "setup")
	require.NoError(t, err)
	assert.Contains(t, strings.ToLower(out), "already")
	assert.Contains(t, out, libPath)
}

// runtimeArchive builds a minimal linux-x64 onnxruntime release tarball.
func runtimeArchive(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	name := fmt.Sprintf("onnxruntime-linux-x64-%s/lib/libonnxruntime.so", embeddings.ONNXRuntimeVersion)
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: name, Typeflag: tar.TypeReg, Mode: 0644, Size: 7}))
	_, err := tw.Write([]byte("runtime"))
	require.NoError(t, err)
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

func TestSetupCmd_Installs(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("ONNX_PATH", "")

	archive := runtimeArchive(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(archive)
	}))
	defer srv.Close()

	dir := filepath.Join(t.TempDir(), "lib")
	var verifyErr error
	var verified []string
	orig := newRuntimeInstaller
	newRuntimeInstaller = func(out io.Writer) *embeddings.RuntimeInstaller {
		return &embeddings.RuntimeInstaller{
			Dir:     dir,
			Version: embeddings.ONNXRuntimeVersion,
			BaseURL: srv.URL,
			GOOS:    "linux",
			GOARCH:  "amd64",
			Verify: func(lib string) error {
				verified = append(verified, lib)
				return verifyErr
			},
			Out: out,
		}
	}
	t.Cleanup(func() { newRuntimeInstaller = orig })

	out, _, err := execute(t, "", "setup")
	require.NoError(t, err)
	assert.Contains(t, out, "Verified and installed ONNX runtime to: "+filepath.Join(dir, "libonnxruntime.so"))
	require.Len(t, verified, 1)

	verifyErr = fmt.Errorf("wrong ELF class")
	_, _, err = execute(t, "", "setup", "--force")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wrong ELF class")
}

func TestVersionCmd(t *testing.T) {
	out, _, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "snapfind dev")
}
