/*
Package filesystem provides the local disk primitives thumbsync relies on:
atomic file replacement and stat/read operations that retry on NFS stale
file handle errors.

# Atomic writes

WriteFileAtomic writes to a temporary file in the destination directory,
fsyncs it, and renames it over the target. Both the state store and the
local thumbnail backend write through it, so a crash mid-write leaves the
previous file intact.

	err := filesystem.WriteFileAtomic(path, data, 0o644)

# Retry Behavior

StatWithRetry, ReadFileWithRetry and ReadDirWithRetry retry only on ESTALE
(errno 116), using exponential backoff:
  - MaxRetries: 3 attempts
  - InitialBackoff: 50ms
  - MaxBackoff: 500ms

All other errors are returned immediately.

# Metrics

Operations are reported through an Observer labeled by volume. The
metrics package provides the Prometheus implementation:

	filesystem.SetObserver(metrics.NewFilesystemObserver())
	filesystem.SetDefaultVolumeResolver(filesystem.NewVolumeResolver(map[string]string{
	    "data":       cfg.DataDir,
	    "thumbnails": cfg.ThumbnailDir,
	}))
*/
package filesystem
