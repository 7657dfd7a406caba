package present

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
)

var (
	// ErrDirectoryNotFound indicates the directory to open no longer exists.
	ErrDirectoryNotFound = errors.New("directory not found")

	// ErrOpenDirectory indicates the file browser could not be launched.
	ErrOpenDirectory = errors.New("cannot open directory")
)

// Opener reveals a directory in the platform file browser.
type Opener interface {
	Open(dir string) error
}

// DirOpener launches xdg-open, open or explorer depending on the OS.
type DirOpener struct {
	goos  string
	start func(name string, args ...string) error
}

// NewDirOpener creates an opener for the running OS.
func NewDirOpener() *DirOpener {
	return &DirOpener{goos: runtime.GOOS, start: startDetached}
}

// Open checks dir still exists, then launches the browser without waiting
// for it.
func (o *DirOpener) Open(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrDirectoryNotFound, dir)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrDirectoryNotFound, dir)
	}

	name, args, err := openCommand(o.goos, dir)
	if err != nil {
		return err
	}
	if err := o.start(name, args...); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrOpenDirectory, name, err)
	}
	return nil
}

func openCommand(goos, dir string) (string, []string, error) {
	switch goos {
	case "linux", "freebsd", "openbsd", "netbsd":
		return "xdg-open", []string{dir}, nil
	case "darwin":
		return "open", []string{dir}, nil
	case "windows":
		return "explorer", []string{dir}, nil
	default:
		return "", nil, fmt.Errorf("%w: unsupported platform %s", ErrOpenDirectory, goos)
	}
}

func startDetached(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	go func() { _ = cmd.Wait() }()
	return nil
}
