package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/jonathan/deliverable-builder/internal/fsutil"
)

// LocalBackend stores blobs on the local filesystem at <base>/<key>
type LocalBackend struct {
	baseDir string
}

// NewLocalBackend creates a filesystem backend rooted at baseDir
func NewLocalBackend(baseDir string) (*LocalBackend, error) {
	if strings.TrimSpace(baseDir) == "" {
		return nil, errors.New("objectstore: base directory is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create object store directory: %w", err)
	}
	return &LocalBackend{baseDir: baseDir}, nil
}

// BaseDir returns the root directory of the backend
func (b *LocalBackend) BaseDir() string {
	return b.baseDir
}

func (b *LocalBackend) path(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || filepath.IsAbs(clean) || strings.HasPrefix(clean, "..") {
		return "", fmt.Errorf("objectstore: invalid storage key %q", key)
	}
	return filepath.Join(b.baseDir, clean), nil
}

// Exists reports whether a blob is stored under key
func (b *LocalBackend) Exists(_ context.Context, key string) (bool, error) {
	p, err := b.path(key)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(p)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// Write durably stores data under key via temp file + rename
func (b *LocalBackend) Write(_ context.Context, key string, data []byte) error {
	p, err := b.path(key)
	if err != nil {
		return err
	}
	return fsutil.WriteFileAtomic(p, data, 0o644)
}

// Read returns the blob stored under key, or ErrNotFound
func (b *LocalBackend) Read(_ context.Context, key string) ([]byte, error) {
	p, err := b.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return data, nil
}
