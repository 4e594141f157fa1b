package metrics

// InitializeMetrics pre-populates expected label combinations so every
// series is exported from the first scrape. Call once at startup.
func InitializeMetrics() {
	for _, status := range []string{"success", "error", "skipped"} {
		ScanRunsTotal.WithLabelValues(status)
	}
	for _, changeType := range []string{"added", "modified", "deleted"} {
		ScanChangesTotal.WithLabelValues(changeType)
	}
	for _, scope := range []string{"root", "folder"} {
		ScanListingErrors.WithLabelValues(scope)
	}
	for _, decision := range []string{"run", "not_due", "disabled", "idle", "busy", "error"} {
		SchedulerTicksTotal.WithLabelValues(decision)
	}

	for _, phase := range []string{"download", "decode", "resize", "encode", "store"} {
		ThumbnailGenerationDuration.WithLabelValues(phase)
	}
	for _, reason := range []string{"download", "decode"} {
		ThumbnailOriginalsFailed.WithLabelValues(reason)
	}
	for _, status := range []string{"generated", "failed"} {
		ThumbnailBatchFiles.WithLabelValues(status)
	}

	for _, backend := range []string{"local", "remote", "s3"} {
		for _, op := range []string{"save", "exists", "delete", "clear"} {
			StorageOperationsTotal.WithLabelValues(backend, op, "success")
			StorageOperationsTotal.WithLabelValues(backend, op, "error")
			StorageOperationDuration.WithLabelValues(backend, op)
		}
	}

	for _, file := range []string{"config", "current", "daily"} {
		StateWritesTotal.WithLabelValues(file, "success")
		StateWritesTotal.WithLabelValues(file, "error")
	}
	for _, kind := range []string{"files", "history", "changes"} {
		StateCleanupRemoved.WithLabelValues(kind)
	}

	volumes := []string{"data", "thumbnails", "unknown"}
	for _, vol := range volumes {
		for _, op := range []string{"stat", "read", "readdir", "write"} {
			FilesystemOperationDuration.WithLabelValues(vol, op)
			FilesystemOperationErrors.WithLabelValues(vol, op)
			FilesystemRetryAttempts.WithLabelValues(op, vol)
			FilesystemRetrySuccess.WithLabelValues(op, vol)
			FilesystemRetryFailures.WithLabelValues(op, vol)
			FilesystemStaleErrors.WithLabelValues(op, vol)
			FilesystemRetryDuration.WithLabelValues(op, vol)
		}
	}
}
