package thumbnail

import (
	"context"
	"fmt"
	"path"
	"strings"

	"thumbsync/internal/logging"
	"thumbsync/internal/storage"
)

// GetThumbnailPath returns the relative storage path of one rendition:
// <dir>/<filename>_<size>.<format>. The filename keeps its extension so
// photos/a.jpg and photos/a.png never share a rendition. Originals at the
// root have no directory component.
func GetThumbnailPath(originalPath, size, format string) string {
	clean := strings.TrimPrefix(path.Clean("/"+strings.ReplaceAll(originalPath, "\\", "/")), "/")
	dir, file := path.Split(clean)
	name := fmt.Sprintf("%s_%s.%s", file, size, strings.ToLower(format))
	if dir == "" {
		return name
	}
	return dir + name
}

// ThumbnailExists reports whether backend holds the rendition. Lookup
// errors are logged and reported as missing.
func ThumbnailExists(ctx context.Context, originalPath, size, format string, backend storage.Backend) bool {
	ok, err := backend.Exists(ctx, GetThumbnailPath(originalPath, size, format))
	if err != nil {
		logging.Debug("Thumbnail lookup for %s (%s) failed: %v", originalPath, size, err)
		return false
	}
	return ok
}

// ThumbnailExists checks the pipeline's backend.
func (p *Pipeline) ThumbnailExists(ctx context.Context, originalPath, size, format string) bool {
	return ThumbnailExists(ctx, originalPath, size, format, p.backend)
}

// ClearAllThumbnails deletes every stored thumbnail and returns how many
// were removed. Backends without bulk delete return storage.ErrNotImplemented.
func (p *Pipeline) ClearAllThumbnails(ctx context.Context) (int, error) {
	clearer, ok := p.backend.(storage.Clearer)
	if !ok {
		return 0, fmt.Errorf("clear %s thumbnails: %w", p.backend.Type(), storage.ErrNotImplemented)
	}
	n, err := clearer.ClearAll(ctx)
	if err != nil {
		return n, err
	}
	logging.Info("Cleared %d thumbnails from %s storage", n, p.backend.Type())
	return n, nil
}
