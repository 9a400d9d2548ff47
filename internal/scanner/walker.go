package scanner

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// videoExtensions is the allowlist of indexable container extensions.
var videoExtensions = map[string]bool{
	".mp4":  true,
	".mkv":  true,
	".avi":  true,
	".mov":  true,
	".webm": true,
}

// IsVideoFile reports whether path has an indexable extension.
func IsVideoFile(path string) bool {
	return videoExtensions[strings.ToLower(filepath.Ext(path))]
}

// Walker traverses a library root and streams candidate video files.
type Walker struct {
	logger *slog.Logger
}

// NewWalker creates a walker.
func NewWalker(logger *slog.Logger) *Walker {
	return &Walker{logger: logger}
}

// WalkResult is one discovered video file.
type WalkResult struct {
	Path    string
	RelPath string
	Size    int64
}

// Walk streams video files under rootPath. The channel closes when the walk
// finishes or ctx is canceled. Unreadable directories are logged and their
// subtrees skipped; the walk itself keeps going.
func (w *Walker) Walk(ctx context.Context, rootPath string) <-chan WalkResult {
	results := make(chan WalkResult, 100)

	go func() {
		defer close(results)

		err := filepath.WalkDir(rootPath, func(path string, d os.DirEntry, err error) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			if err != nil {
				w.logger.Warn("Walk error, skipping subtree", "path", path, "error", err)
				if d != nil && d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}

			// Skip hidden files and directories.
			if d.Name() != "." && strings.HasPrefix(d.Name(), ".") {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}

			if d.IsDir() {
				return nil
			}

			if !IsVideoFile(path) {
				return nil
			}

			info, err := d.Info()
			if err != nil {
				w.logger.Warn("Failed to stat file", "path", path, "error", err)
				return nil
			}

			relPath, err := filepath.Rel(rootPath, path)
			if err != nil {
				relPath = path
			}

			select {
			case results <- WalkResult{Path: path, RelPath: relPath, Size: info.Size()}:
			case <-ctx.Done():
				return ctx.Err()
			}
			return nil
		})

		if err != nil && !errors.Is(err, context.Canceled) {
			w.logger.Error("Walk failed", "root", rootPath, "error", err)
		}
	}()

	return results
}
