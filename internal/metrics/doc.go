// Package metrics provides Prometheus instrumentation for thumbsync.
//
// All metrics are prefixed with "thumbsync_" and registered on the default
// registry through promauto. The ops server exposes them at /metrics.
//
// # Metric Categories
//
// ## Scan Metrics
//
//   - ScanRunsTotal: scan outcomes (success/error/skipped)
//   - ScanIsRunning: 1 while a scan or regeneration holds the run guard
//   - ScanLastRunTimestamp, ScanLastRunDuration: last completed scan
//   - ScanFilesTracked: fingerprints currently stored
//   - ScanChangesTotal: detected changes by type
//   - ScanListingErrors, ScanListingDuration: folder listing health
//   - SchedulerTicksTotal: tick decisions (run/not_due/disabled/busy)
//
// ## Thumbnail Metrics
//
//   - ThumbnailGenerationsTotal: renditions by size and status
//   - ThumbnailGenerationDuration: per-phase latency
//   - ThumbnailOriginalsFailed: originals lost before any size was attempted
//   - ThumbnailBatchFiles, ThumbnailBatchLastTimestamp: last batch summary
//   - ThumbnailCacheBytes, ThumbnailCacheCount: local backend usage
//
// ## Storage, Remote and State Metrics
//
//   - StorageOperationsTotal, StorageOperationDuration: per backend
//   - RemoteRequestsTotal, RemoteRequestDuration: file service calls
//   - StateWritesTotal, StateHistoryDays, StateCleanupRemoved
//
// ## Filesystem and Memory Metrics
//
// Filesystem retry metrics are recorded through the filesystem.Observer
// returned by NewFilesystemObserver. Memory metrics report the backpressure
// state of the memory monitor.
//
// # Usage
//
//	metrics.InitializeMetrics()
//	metrics.SetAppInfo(startup.Version, startup.Commit, runtime.Version())
//	filesystem.SetObserver(metrics.NewFilesystemObserver())
//
//	collector := metrics.NewCollector(store, time.Minute)
//	collector.Start()
//	defer collector.Stop()
package metrics
