package corpus

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/snapfind/internal/logging"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
}

func TestIsImage(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"cat.png", true},
		{"cat.PNG", true},
		{"a/b/car.jpg", true},
		{"car.JpEg", true},
		{"notes.txt", false},
		{"anim.gif", false},
		{"png", false},
		{"archive.png.zip", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsImage(tt.path), tt.path)
	}
}

func TestListImages(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "b.jpg"))
	touch(t, filepath.Join(root, "a.PNG"))
	touch(t, filepath.Join(root, "notes.txt"))
	touch(t, filepath.Join(root, "nested", "deep", "c.jpeg"))
	touch(t, filepath.Join(root, "nested", "d.gif"))
	touch(t, filepath.Join(root, ".hidden", "e.png"))

	got, err := ListImages(root)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, ".hidden", "e.png"),
		filepath.Join(root, "a.PNG"),
		filepath.Join(root, "b.jpg"),
		filepath.Join(root, "nested", "deep", "c.jpeg"),
	}, got)

	again, err := ListImages(root)
	require.NoError(t, err)
	assert.Equal(t, got, again, "enumeration is deterministic")
}

func TestListImages_EmptyCases(t *testing.T) {
	t.Run("missing root", func(t *testing.T) {
		got, err := ListImages(filepath.Join(t.TempDir(), "does-not-exist"))
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})

	t.Run("no qualifying files", func(t *testing.T) {
		root := t.TempDir()
		touch(t, filepath.Join(root, "readme.md"))
		got, err := ListImages(root)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("root is a file", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "single.png")
		touch(t, file)
		logger := logging.NewTestLogger()
		got, err := NewEnumerator(logger.Logger).ListImages(context.Background(), file)
		require.NoError(t, err)
		assert.Empty(t, got)
		logger.AssertLogged(t, zap.WarnLevel, "not a directory")
	})
}

func TestListImages_UnreadableSubdirectory(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced here")
	}

	root := t.TempDir()
	touch(t, filepath.Join(root, "a.png"))
	locked := filepath.Join(root, "locked")
	touch(t, filepath.Join(locked, "secret.png"))
	touch(t, filepath.Join(root, "z", "z.jpg"))
	require.NoError(t, os.Chmod(locked, 0000))
	t.Cleanup(func() { _ = os.Chmod(locked, 0755) })

	logger := logging.NewTestLogger()
	got, err := NewEnumerator(logger.Logger).ListImages(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "a.png"),
		filepath.Join(root, "z", "z.jpg"),
	}, got)
	logger.AssertLogged(t, zap.WarnLevel, "skipping unreadable directory")
	logger.AssertField(t, "skipping unreadable directory", "path", locked)
}

func TestListImages_Cancelled(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "a.png"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewEnumerator(nil).ListImages(ctx, root)
	require.ErrorIs(t, err, context.Canceled)
}
