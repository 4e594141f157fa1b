// Package storage holds the thumbnail storage backends. Every backend
// addresses artifacts by the same slash-separated relative path produced
// by thumbnail.GetThumbnailPath.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"thumbsync/internal/metrics"
)

// ErrNotImplemented is returned by backends that cannot perform an
// operation. It is never swallowed.
var ErrNotImplemented = errors.New("operation not implemented by storage backend")

// ErrInvalidPath is returned for relative paths that escape the backend root.
var ErrInvalidPath = errors.New("invalid storage path")

// Backend stores thumbnail bytes under relative paths.
type Backend interface {
	// Save writes data and returns the artifact's location (a file path
	// or URL, depending on the backend).
	Save(ctx context.Context, relPath string, data []byte, contentType string) (string, error)
	Exists(ctx context.Context, relPath string) (bool, error)
	Delete(ctx context.Context, relPath string) error
	// Type is "local", "remote" or "s3".
	Type() string
}

// Clearer is implemented by backends that can remove every artifact.
type Clearer interface {
	ClearAll(ctx context.Context) (int, error)
}

// CleanPath normalizes a relative path and rejects absolute paths and
// parent traversal.
func CleanPath(relPath string) (string, error) {
	p := strings.TrimPrefix(path.Clean("/"+strings.ReplaceAll(relPath, "\\", "/")), "/")
	if p == "" || p == "." {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, relPath)
	}
	for _, part := range strings.Split(strings.ReplaceAll(relPath, "\\", "/"), "/") {
		if part == ".." {
			return "", fmt.Errorf("%w: %q", ErrInvalidPath, relPath)
		}
	}
	return p, nil
}

// ContentType returns the MIME type for a thumbnail format.
func ContentType(format string) string {
	switch strings.ToLower(format) {
	case "jpeg", "jpg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}

// observe records an operation in the storage metrics and returns err.
func observe(backend, op string, start time.Time, err error) error {
	status := "success"
	if err != nil && !errors.Is(err, ErrNotImplemented) {
		status = "error"
	}
	metrics.StorageOperationsTotal.WithLabelValues(backend, op, status).Inc()
	metrics.StorageOperationDuration.WithLabelValues(backend, op).Observe(time.Since(start).Seconds())
	return err
}
