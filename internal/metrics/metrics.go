package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thumbsync_http_requests_total",
			Help: "Total number of HTTP requests to the ops server",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "thumbsync_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "thumbsync_http_requests_in_flight",
			Help: "Number of HTTP requests currently being served",
		},
	)
)

// Scan metrics
var (
	ScanRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thumbsync_scan_runs_total",
			Help: "Total number of scan runs by outcome",
		},
		[]string{"status"}, // "success", "error", "skipped"
	)

	ScanIsRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "thumbsync_scan_running",
			Help: "Whether a scan or regeneration is currently running (1 = running, 0 = idle)",
		},
	)

	ScanLastRunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "thumbsync_scan_last_run_timestamp",
			Help: "Unix timestamp of the last completed scan",
		},
	)

	ScanLastRunDuration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "thumbsync_scan_last_run_duration_seconds",
			Help: "Duration of the last scan in seconds",
		},
	)

	ScanFilesTracked = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "thumbsync_scan_files_tracked",
			Help: "Number of image fingerprints currently stored",
		},
	)

	ScanChangesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thumbsync_scan_changes_total",
			Help: "Total number of detected changes by type",
		},
		[]string{"type"}, // "added", "modified", "deleted"
	)

	ScanListingErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thumbsync_scan_listing_errors_total",
			Help: "Total number of folder listing failures",
		},
		[]string{"scope"}, // "root", "folder"
	)

	ScanListingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "thumbsync_scan_listing_duration_seconds",
			Help:    "Duration of a single folder listing call",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	SchedulerTicksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thumbsync_scheduler_ticks_total",
			Help: "Total number of scheduler ticks by decision",
		},
		[]string{"decision"}, // "run", "not_due", "disabled", "idle", "busy", "error"
	)
)

// Thumbnail metrics
var (
	ThumbnailGenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thumbsync_thumbnail_generations_total",
			Help: "Total number of thumbnail renditions by size and status",
		},
		[]string{"size", "status"}, // status: "success", "error"
	)

	ThumbnailGenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "thumbsync_thumbnail_generation_duration_seconds",
			Help:    "Thumbnail pipeline phase duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"phase"}, // "download", "decode", "resize", "encode", "store"
	)

	ThumbnailOriginalsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thumbsync_thumbnail_originals_failed_total",
			Help: "Total number of originals that could not be fetched or decoded",
		},
		[]string{"reason"}, // "download", "decode"
	)

	ThumbnailBatchLastTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "thumbsync_thumbnail_batch_last_timestamp",
			Help: "Unix timestamp of the last thumbnail batch completion",
		},
	)

	ThumbnailBatchFiles = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "thumbsync_thumbnail_batch_files",
			Help: "Number of originals in the last batch by status",
		},
		[]string{"status"}, // "generated", "failed"
	)

	ThumbnailCacheBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "thumbsync_thumbnail_cache_size_bytes",
			Help: "Total size of stored thumbnails in bytes (local backend only)",
		},
	)

	ThumbnailCacheCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "thumbsync_thumbnail_cache_count",
			Help: "Number of stored thumbnails (local backend only)",
		},
	)
)

// Storage and remote metrics
var (
	StorageOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thumbsync_storage_operations_total",
			Help: "Total number of thumbnail storage operations",
		},
		[]string{"backend", "operation", "status"},
	)

	StorageOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "thumbsync_storage_operation_duration_seconds",
			Help:    "Thumbnail storage operation duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"backend", "operation"},
	)

	RemoteRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thumbsync_remote_requests_total",
			Help: "Total number of requests to the file service",
		},
		[]string{"endpoint", "status"},
	)

	RemoteRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "thumbsync_remote_request_duration_seconds",
			Help:    "File service request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)
)

// State store metrics
var (
	StateWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thumbsync_state_writes_total",
			Help: "Total number of state file writes",
		},
		[]string{"file", "status"}, // file: "config", "current", "daily"
	)

	StateHistoryDays = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "thumbsync_state_history_days",
			Help: "Number of daily history files on disk",
		},
	)

	StateCleanupRemoved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thumbsync_state_cleanup_removed_total",
			Help: "Total number of items removed by retention cleanup",
		},
		[]string{"kind"}, // "files", "history", "changes"
	)
)

// Filesystem metrics
var (
	FilesystemOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "thumbsync_filesystem_operation_duration_seconds",
			Help:    "Filesystem operation duration by volume and operation",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"volume", "operation"},
	)

	FilesystemOperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thumbsync_filesystem_operation_errors_total",
			Help: "Filesystem operation errors by volume and operation",
		},
		[]string{"volume", "operation"},
	)

	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thumbsync_filesystem_retry_attempts_total",
			Help: "Retry attempts after stale NFS file handles",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thumbsync_filesystem_retry_success_total",
			Help: "Operations that succeeded after at least one retry",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thumbsync_filesystem_retry_failures_total",
			Help: "Operations that failed after exhausting retries",
		},
		[]string{"operation", "volume"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thumbsync_filesystem_stale_errors_total",
			Help: "ESTALE errors observed",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "thumbsync_filesystem_retry_duration_seconds",
			Help:    "Total duration of retried filesystem operations",
			Buckets: []float64{0.0001, 0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2},
		},
		[]string{"operation", "volume"},
	)
)

// Memory metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "thumbsync_memory_usage_ratio",
			Help: "Heap allocation as a fraction of the memory limit",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "thumbsync_memory_paused",
			Help: "Whether thumbnail decoding is paused for memory (1 = paused)",
		},
	)

	MemoryGCPauses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "thumbsync_memory_gc_pauses_total",
			Help: "Number of times decoding paused and a GC was forced",
		},
	)
)

// Application info metric
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "thumbsync_app_info",
			Help: "Application information",
		},
		[]string{"version", "commit", "go_version"},
	)
)

// SetAppInfo sets the application info metric
func SetAppInfo(version, commit, goVersion string) {
	AppInfo.WithLabelValues(version, commit, goVersion).Set(1)
}
