package corpus

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/snapfind/internal/logging"
)

// Extensions is the set of lower-cased file extensions treated as images.
var Extensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
}

// IsImage reports whether path has a qualifying extension (case-insensitive).
func IsImage(path string) bool {
	return Extensions[strings.ToLower(filepath.Ext(path))]
}

// Enumerator walks directory trees looking for images.
type Enumerator struct {
	logger *logging.Logger
}

// NewEnumerator creates an enumerator. A nil logger discards diagnostics.
func NewEnumerator(logger *logging.Logger) *Enumerator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Enumerator{logger: logger}
}

// ListImages returns every image file under root, in walk order.
//
// Returned paths are root joined with the path relative to it, so a relative
// root yields relative paths. The only error returned is ctx's.
func (e *Enumerator) ListImages(ctx context.Context, root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			e.logger.Warn(ctx, "cannot read image root", zap.String("root", root), zap.Error(err))
		}
		return []string{}, nil
	}
	if !info.IsDir() {
		e.logger.Warn(ctx, "image root is not a directory", zap.String("root", root))
		return []string{}, nil
	}

	paths := []string{}
	skipped := 0
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			// d is non-nil for a directory whose entries could not be read.
			skipped++
			e.logger.Warn(ctx, "skipping unreadable directory",
				zap.String("path", path),
				zap.Error(walkErr),
			)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		if d.IsDir() {
			return nil
		}
		if IsImage(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}

	e.logger.Debug(ctx, "enumerated images",
		zap.String("root", root),
		zap.Int("count", len(paths)),
		zap.Int("skipped_dirs", skipped),
	)
	return paths, nil
}

// ListImages walks root without logging.
func ListImages(root string) ([]string, error) {
	return NewEnumerator(nil).ListImages(context.Background(), root)
}
