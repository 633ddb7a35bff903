// Package images stores page images on disk and applies the size-based
// compression policy before they are cached.
package images

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// DefaultSubdir is where page images live under the data directory.
const DefaultSubdir = "cache/pages"

const fileExt = ".img"

// Storage manages page image files.
// Thread-safe for concurrent operations.
type Storage struct {
	basePath string
	mu       sync.RWMutex // Protects file operations
}

// NewStorage creates a Storage rooted at {basePath}/cache/pages.
func NewStorage(basePath string) (*Storage, error) {
	return NewStorageWithSubdir(basePath, DefaultSubdir)
}

// NewStorageWithSubdir creates a Storage rooted at {basePath}/{subdir}.
func NewStorageWithSubdir(basePath, subdir string) (*Storage, error) {
	if basePath == "" {
		return nil, fmt.Errorf("base path cannot be empty")
	}
	if subdir == "" {
		return nil, fmt.Errorf("subdirectory cannot be empty")
	}

	storagePath := filepath.Join(basePath, subdir)
	if err := os.MkdirAll(storagePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create %s directory: %w", subdir, err)
	}

	return &Storage{basePath: storagePath}, nil
}

// Dir returns the directory holding the image files.
func (s *Storage) Dir() string {
	return s.basePath
}

// Save writes data for id and returns the file path. The write goes through
// a temp file so readers never see a partial image.
func (s *Storage) Save(id string, data []byte) (string, error) {
	if id == "" {
		return "", fmt.Errorf("ID cannot be empty")
	}
	if len(data) == 0 {
		return "", fmt.Errorf("image data cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.Path(id)
	tmp, err := os.CreateTemp(s.basePath, ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to write image file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to write image file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to move image file: %w", err)
	}

	return path, nil
}

// Get reads the image stored for id.
func (s *Storage) Get(id string) ([]byte, error) {
	if id == "" {
		return nil, fmt.Errorf("ID cannot be empty")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.Path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("image not found for %s: %w", id, err)
		}
		return nil, fmt.Errorf("failed to read image file: %w", err)
	}
	return data, nil
}

// Exists reports whether an image is stored for id.
func (s *Storage) Exists(id string) bool {
	if id == "" {
		return false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, err := os.Stat(s.Path(id))
	return err == nil
}

// Delete removes the image for id. Missing files are not an error.
func (s *Storage) Delete(id string) error {
	if id == "" {
		return fmt.Errorf("ID cannot be empty")
	}
	return s.DeletePath(s.Path(id))
}

// DeletePath removes a file previously returned by Save.
func (s *Storage) DeletePath(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete image file: %w", err)
	}
	return nil
}

// Clear removes every stored image and returns how many were removed.
func (s *Storage) Clear() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		return 0, fmt.Errorf("read image directory: %w", err)
	}

	removed := 0
	var errs []error
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(s.basePath, e.Name())); err != nil && !os.IsNotExist(err) {
			errs = append(errs, err)
			continue
		}
		if strings.HasSuffix(e.Name(), fileExt) {
			removed++
		}
	}
	return removed, errors.Join(errs...)
}

// Size returns the total bytes used by stored images.
func (s *Storage) Size() (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total int64
	err := filepath.WalkDir(s.basePath, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		total += info.Size()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("measure image directory: %w", err)
	}
	return total, nil
}

// Path returns the file path for id. Page ids are server paths with
// slashes and query strings, so the file name is a hash of the id.
func (s *Storage) Path(id string) string {
	sum := sha256.Sum256([]byte(id))
	return filepath.Join(s.basePath, hex.EncodeToString(sum[:])+fileExt)
}
