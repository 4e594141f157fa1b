package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"thumbsync/internal/filesystem"
	"thumbsync/internal/logging"
)

// LocalBackend stores thumbnails under a directory on local disk.
type LocalBackend struct {
	root  string
	retry filesystem.RetryConfig
}

// NewLocalBackend creates the root directory if needed.
func NewLocalBackend(root string) (*LocalBackend, error) {
	if root == "" {
		return nil, errors.New("local storage root not configured")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &LocalBackend{root: abs, retry: filesystem.DefaultRetryConfig()}, nil
}

// Root returns the absolute cache root.
func (b *LocalBackend) Root() string {
	return b.root
}

// Type implements Backend.
func (b *LocalBackend) Type() string {
	return "local"
}

func (b *LocalBackend) fullPath(relPath string) (string, error) {
	clean, err := CleanPath(relPath)
	if err != nil {
		return "", err
	}
	return filepath.Join(b.root, filepath.FromSlash(clean)), nil
}

// Save writes data atomically and returns the absolute file path.
func (b *LocalBackend) Save(_ context.Context, relPath string, data []byte, _ string) (string, error) {
	start := time.Now()
	full, err := b.fullPath(relPath)
	if err != nil {
		return "", observe("local", "save", start, err)
	}
	if err := filesystem.WriteFileAtomic(full, data, 0o644); err != nil {
		return "", observe("local", "save", start, fmt.Errorf("save %s: %w", relPath, err))
	}
	observe("local", "save", start, nil)
	return full, nil
}

// Exists implements Backend.
func (b *LocalBackend) Exists(_ context.Context, relPath string) (bool, error) {
	start := time.Now()
	full, err := b.fullPath(relPath)
	if err != nil {
		return false, observe("local", "exists", start, err)
	}
	info, err := filesystem.StatWithRetry(full, b.retry)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, observe("local", "exists", start, nil)
		}
		return false, observe("local", "exists", start, err)
	}
	return !info.IsDir(), observe("local", "exists", start, nil)
}

// Delete removes one thumbnail. Deleting a missing file is not an error.
func (b *LocalBackend) Delete(_ context.Context, relPath string) error {
	start := time.Now()
	full, err := b.fullPath(relPath)
	if err != nil {
		return observe("local", "delete", start, err)
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return observe("local", "delete", start, fmt.Errorf("delete %s: %w", relPath, err))
	}
	return observe("local", "delete", start, nil)
}

// ClearAll removes everything under the root and returns the number of
// files deleted. The root directory itself is kept.
func (b *LocalBackend) ClearAll(ctx context.Context) (int, error) {
	start := time.Now()

	count, _, err := b.walk(ctx)
	if err != nil {
		return 0, observe("local", "clear", start, err)
	}

	entries, err := filesystem.ReadDirWithRetry(b.root, b.retry)
	if err != nil {
		return 0, observe("local", "clear", start, fmt.Errorf("read storage root: %w", err))
	}
	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(b.root, entry.Name())); err != nil {
			return 0, observe("local", "clear", start, fmt.Errorf("remove %s: %w", entry.Name(), err))
		}
	}

	logging.Info("Cleared %d thumbnails from %s", count, b.root)
	return count, observe("local", "clear", start, nil)
}

// Stats returns the number of stored files and their total size.
func (b *LocalBackend) Stats(ctx context.Context) (count int64, bytes int64, err error) {
	n, size, err := b.walk(ctx)
	return int64(n), size, err
}

func (b *LocalBackend) walk(ctx context.Context) (int, int64, error) {
	var count int
	var size int64
	err := filepath.WalkDir(b.root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.Type().IsRegular() {
			count++
			if info, infoErr := d.Info(); infoErr == nil {
				size += info.Size()
			}
		}
		return nil
	})
	if err != nil {
		return 0, 0, fmt.Errorf("walk storage root: %w", err)
	}
	return count, size, nil
}
