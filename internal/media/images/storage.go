// Package images captures poster frames from video files and stores them
// alongside a BlurHash placeholder.
package images

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Storage manages poster files on disk under a single base directory.
type Storage struct {
	basePath string
	mu       sync.RWMutex
}

// NewStorage creates the storage, ensuring the base directory exists.
func NewStorage(basePath string) (*Storage, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create image storage dir: %w", err)
	}
	return &Storage{basePath: basePath}, nil
}

// Path returns the on-disk location for an item's poster.
func (s *Storage) Path(mediaItemID string) string {
	return filepath.Join(s.basePath, mediaItemID+".jpg")
}

// Exists reports whether a poster file is present.
func (s *Storage) Exists(mediaItemID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, err := os.Stat(s.Path(mediaItemID))
	return err == nil
}

// Delete removes an item's poster file. Missing files are not an error.
func (s *Storage) Delete(mediaItemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := os.Remove(s.Path(mediaItemID))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete poster: %w", err)
	}
	return nil
}
