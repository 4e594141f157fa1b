package storage

import (
	"context"
	"time"
)

// Uploader is the subset of the file service client the remote backend
// needs. *remote.Client satisfies it.
type Uploader interface {
	Upload(ctx context.Context, path string, data []byte, contentType string) (string, error)
	Exists(ctx context.Context, path string) (bool, error)
}

// RemoteBackend uploads thumbnails to the file service. The service has
// no delete endpoint, so Delete and ClearAll fail with ErrNotImplemented.
type RemoteBackend struct {
	client Uploader
	prefix string
}

// NewRemoteBackend stores thumbnails under prefix on the file service.
func NewRemoteBackend(client Uploader, prefix string) *RemoteBackend {
	return &RemoteBackend{client: client, prefix: prefix}
}

// Type implements Backend.
func (b *RemoteBackend) Type() string {
	return "remote"
}

func (b *RemoteBackend) key(relPath string) (string, error) {
	clean, err := CleanPath(relPath)
	if err != nil {
		return "", err
	}
	if b.prefix == "" {
		return clean, nil
	}
	return b.prefix + "/" + clean, nil
}

// Save uploads data and returns the URL reported by the service.
func (b *RemoteBackend) Save(ctx context.Context, relPath string, data []byte, contentType string) (string, error) {
	start := time.Now()
	key, err := b.key(relPath)
	if err != nil {
		return "", observe("remote", "save", start, err)
	}
	location, err := b.client.Upload(ctx, key, data, contentType)
	if err != nil {
		return "", observe("remote", "save", start, err)
	}
	return location, observe("remote", "save", start, nil)
}

// Exists implements Backend.
func (b *RemoteBackend) Exists(ctx context.Context, relPath string) (bool, error) {
	start := time.Now()
	key, err := b.key(relPath)
	if err != nil {
		return false, observe("remote", "exists", start, err)
	}
	ok, err := b.client.Exists(ctx, key)
	return ok, observe("remote", "exists", start, err)
}

// Delete always fails with ErrNotImplemented.
func (b *RemoteBackend) Delete(_ context.Context, _ string) error {
	return observe("remote", "delete", time.Now(), ErrNotImplemented)
}

// ClearAll always fails with ErrNotImplemented.
func (b *RemoteBackend) ClearAll(_ context.Context) (int, error) {
	return 0, observe("remote", "clear", time.Now(), ErrNotImplemented)
}
