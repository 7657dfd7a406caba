package present

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedCall struct {
	name string
	args []string
}

func fakeOpener(goos string, startErr error) (*DirOpener, *[]recordedCall) {
	calls := &[]recordedCall{}
	return &DirOpener{
		goos: goos,
		start: func(name string, args ...string) error {
			*calls = append(*calls, recordedCall{name: name, args: args})
			return startErr
		},
	}, calls
}

func TestDirOpener_Open(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		goos string
		want string
	}{
		{"linux", "xdg-open"},
		{"darwin", "open"},
		{"windows", "explorer"},
	}
	for _, tt := range tests {
		t.Run(tt.goos, func(t *testing.T) {
			o, calls := fakeOpener(tt.goos, nil)
			require.NoError(t, o.Open(dir))
			require.Len(t, *calls, 1)
			assert.Equal(t, tt.want, (*calls)[0].name)
			assert.Equal(t, []string{dir}, (*calls)[0].args)
		})
	}
}

func TestDirOpener_MissingDirectory(t *testing.T) {
	o, calls := fakeOpener("linux", nil)

	err := o.Open(filepath.Join(t.TempDir(), "gone"))
	require.ErrorIs(t, err, ErrDirectoryNotFound)
	assert.Empty(t, *calls, "nothing spawned for a vanished directory")

	file := filepath.Join(t.TempDir(), "file.png")
	require.NoError(t, os.WriteFile(file, nil, 0644))
	require.ErrorIs(t, o.Open(file), ErrDirectoryNotFound)
}

func TestDirOpener_SpawnFailure(t *testing.T) {
	o, _ := fakeOpener("linux", errors.New(`exec: "xdg-open": executable file not found in $PATH`))
	err := o.Open(t.TempDir())
	require.ErrorIs(t, err, ErrOpenDirectory)
	assert.Contains(t, err.Error(), "xdg-open")
}

func TestDirOpener_UnsupportedPlatform(t *testing.T) {
	o, calls := fakeOpener("plan9", nil)
	require.ErrorIs(t, o.Open(t.TempDir()), ErrOpenDirectory)
	assert.Empty(t, *calls)
}
