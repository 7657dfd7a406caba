package embeddings

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// ONNXRuntimeVersion is the onnxruntime release whose C API (version 21)
// matches the headers compiled into github.com/yalue/onnxruntime_go v1.19.0.
const ONNXRuntimeVersion = "1.21.0"

const (
	releaseBaseURL = "https://github.com/microsoft/onnxruntime/releases/download"
	versionFile    = "onnxruntime.version"
)

// ErrUnsupportedPlatform indicates no prebuilt runtime exists for the OS/arch.
var ErrUnsupportedPlatform = errors.New("unsupported platform")

// runtimeTarget is one prebuilt release: its archive tag and the library inside.
type runtimeTarget struct {
	tag string
	lib string
}

var runtimeTargets = map[string]runtimeTarget{
	"linux/amd64":  {tag: "linux-x64", lib: "libonnxruntime.so"},
	"linux/arm64":  {tag: "linux-aarch64", lib: "libonnxruntime.so"},
	"darwin/amd64": {tag: "osx-x86_64", lib: "libonnxruntime.dylib"},
	"darwin/arm64": {tag: "osx-arm64", lib: "libonnxruntime.dylib"},
}

func lookupTarget(goos, goarch string) (runtimeTarget, error) {
	t, ok := runtimeTargets[goos+"/"+goarch]
	if !ok {
		return runtimeTarget{}, fmt.Errorf("%w: %s/%s (set ONNX_PATH to a local onnxruntime build)",
			ErrUnsupportedPlatform, goos, goarch)
	}
	return t, nil
}

// runtimeDir is the managed install directory. Variable for tests.
var runtimeDir = func() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".config", "snapfind", "lib")
}

// RuntimeInstaller resolves and installs the ONNX runtime shared library
// loaded by the local CLIP provider.
type RuntimeInstaller struct {
	// Dir receives the release's lib/ directory, flattened.
	Dir     string
	Version string
	// BaseURL is the release download root.
	BaseURL string
	GOOS    string
	GOARCH  string
	Client  *http.Client
	// Verify loads a staged library before it replaces the current install.
	// Nil skips the check.
	Verify func(libPath string) error
	// Out receives progress messages.
	Out io.Writer
}

// DefaultRuntimeInstaller returns an installer for ~/.config/snapfind/lib on
// the current platform, verifying downloads with VerifyRuntime.
func DefaultRuntimeInstaller(out io.Writer) *RuntimeInstaller {
	if out == nil {
		out = io.Discard
	}
	return &RuntimeInstaller{
		Dir:     runtimeDir(),
		Version: ONNXRuntimeVersion,
		BaseURL: releaseBaseURL,
		GOOS:    runtime.GOOS,
		GOARCH:  runtime.GOARCH,
		Client:  http.DefaultClient,
		Verify:  VerifyRuntime,
		Out:     out,
	}
}

// InstalledVersion returns the version recorded by the last Install, or "".
func (i *RuntimeInstaller) InstalledVersion() string {
	data, err := os.ReadFile(filepath.Join(i.Dir, versionFile))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// LibraryPath returns the installed library when it matches i.Version.
func (i *RuntimeInstaller) LibraryPath() string {
	t, err := lookupTarget(i.GOOS, i.GOARCH)
	if err != nil {
		return ""
	}
	lib := filepath.Join(i.Dir, t.lib)
	if _, err := os.Stat(lib); err != nil {
		return ""
	}
	if i.InstalledVersion() != i.Version {
		return ""
	}
	return lib
}

func (i *RuntimeInstaller) archiveURL(t runtimeTarget) string {
	return fmt.Sprintf("%s/v%s/onnxruntime-%s-%s.tgz",
		strings.TrimRight(i.BaseURL, "/"), i.Version, t.tag, i.Version)
}

// Ensure returns the installed library, installing it first when absent or stale.
func (i *RuntimeInstaller) Ensure(ctx context.Context) (string, error) {
	if lib := i.LibraryPath(); lib != "" {
		return lib, nil
	}
	fmt.Fprintf(i.Out, "ONNX runtime v%s not found. Downloading for %s/%s...\n", i.Version, i.GOOS, i.GOARCH)

	lib, err := i.Install(ctx)
	if err != nil {
		return "", fmt.Errorf("%w\nRun 'snapfind setup' to retry, or set ONNX_PATH", err)
	}
	fmt.Fprintf(i.Out, "Installed to %s\n", lib)
	return lib, nil
}

// Install downloads the release, stages its libraries beside Dir, verifies
// the main library loads, then swaps the staged directory into Dir. A failed
// install leaves the previous one untouched.
func (i *RuntimeInstaller) Install(ctx context.Context) (string, error) {
	t, err := lookupTarget(i.GOOS, i.GOARCH)
	if err != nil {
		return "", err
	}

	parent := filepath.Dir(i.Dir)
	if err := os.MkdirAll(parent, 0700); err != nil {
		return "", fmt.Errorf("creating directory: %w", err)
	}
	staging, err := os.MkdirTemp(parent, ".onnxruntime-*")
	if err != nil {
		return "", fmt.Errorf("creating staging directory: %w", err)
	}
	defer os.RemoveAll(staging)

	if err := i.fetch(ctx, i.archiveURL(t), staging, t); err != nil {
		return "", err
	}

	if i.Verify != nil {
		if err := i.Verify(filepath.Join(staging, t.lib)); err != nil {
			return "", fmt.Errorf("verifying onnxruntime v%s: %w", i.Version, err)
		}
	}
	if err := os.WriteFile(filepath.Join(staging, versionFile), []byte(i.Version+"\n"), 0644); err != nil {
		return "", fmt.Errorf("writing version marker: %w", err)
	}

	if err := os.RemoveAll(i.Dir); err != nil {
		return "", fmt.Errorf("removing previous install: %w", err)
	}
	if err := os.Rename(staging, i.Dir); err != nil {
		return "", fmt.Errorf("moving runtime into place: %w", err)
	}
	return filepath.Join(i.Dir, t.lib), nil
}

func (i *RuntimeInstaller) fetch(ctx context.Context, url, destDir string, t runtimeTarget) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	client := i.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("downloading ONNX runtime: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("downloading %s: status %d", url, resp.StatusCode)
	}

	prefix := fmt.Sprintf("onnxruntime-%s-%s/lib/", t.tag, i.Version)
	if err := extractLibs(resp.Body, destDir, prefix, t.lib); err != nil {
		return fmt.Errorf("extracting archive: %w", err)
	}
	return nil
}

// extractLibs copies the regular files and sibling symlinks under prefix
// into destDir, flattened. It fails unless lib ends up in destDir.
func extractLibs(r io.Reader, destDir, prefix, lib string) error {
	gzr, err := gzip.NewReader(r)
	if err != nil {
		return fmt.Errorf("creating gzip reader: %w", err)
	}
	defer gzr.Close()

	tr := tar.NewReader(gzr)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("reading tar: %w", err)
		}

		name := strings.TrimPrefix(header.Name, "./")
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		base := filepath.Base(name)
		dest := filepath.Join(destDir, base)

		switch header.Typeflag {
		case tar.TypeSymlink:
			// Only links to siblings such as libonnxruntime.so -> libonnxruntime.so.1.21.0.
			if header.Linkname != filepath.Base(header.Linkname) {
				continue
			}
			if err := os.Symlink(header.Linkname, dest); err != nil {
				return fmt.Errorf("linking %s: %w", base, err)
			}
		case tar.TypeReg:
			if err := writeLibFile(dest, tr); err != nil {
				return err
			}
		}
	}

	if _, err := os.Stat(filepath.Join(destDir, lib)); err != nil {
		return fmt.Errorf("library %s not found in archive", lib)
	}
	return nil
}

func writeLibFile(path string, r io.Reader) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Base(path), err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}

// GetONNXLibraryPath returns ONNX_PATH when set, else the managed install
// when it is present at ONNXRuntimeVersion, else "".
func GetONNXLibraryPath() string {
	if envPath := os.Getenv("ONNX_PATH"); envPath != "" {
		return envPath
	}
	return DefaultRuntimeInstaller(nil).LibraryPath()
}

// EnsureONNXRuntime returns ONNX_PATH when set, otherwise the managed
// runtime, downloading and verifying it first if needed. Progress goes to w.
func EnsureONNXRuntime(ctx context.Context, w io.Writer) (string, error) {
	if envPath := os.Getenv("ONNX_PATH"); envPath != "" {
		return envPath, nil
	}
	return DefaultRuntimeInstaller(w).Ensure(ctx)
}
