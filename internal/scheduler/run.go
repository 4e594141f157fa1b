package scheduler

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"thumbsync/internal/changes"
	"thumbsync/internal/logging"
	"thumbsync/internal/metrics"
	"thumbsync/internal/models"

	"golang.org/x/sync/errgroup"
)

// RunResult summarizes one RunScan call. Err is nil on success.
type RunResult struct {
	Success             bool          `json:"success"`
	Error               string        `json:"error,omitempty"`
	Err                 error         `json:"-"`
	AlreadyRunning      bool          `json:"alreadyRunning,omitempty"`
	FilesScanned        int           `json:"filesScanned"`
	Changes             changes.Stats `json:"changes"`
	ThumbnailsGenerated int           `json:"thumbnailsGenerated"`
	ThumbnailsFailed    int           `json:"thumbnailsFailed"`
	DurationMs          int64         `json:"durationMs"`
}

// RegenerateResult summarizes a RegenerateAllThumbnails call.
type RegenerateResult struct {
	Generated  int   `json:"generated"`
	Failed     int   `json:"failed"`
	DurationMs int64 `json:"durationMs"`
}

func durationPtr(d time.Duration) *int64 {
	ms := d.Milliseconds()
	return &ms
}

// record appends a history entry, logging instead of failing.
func (s *Scheduler) record(entry models.HistoryEntry) {
	if _, err := s.store.AppendHistory(entry); err != nil {
		logging.Error("Failed to record %s history entry: %v", entry.Action, err)
	}
}

// RunScan scans the remote tree, stores the new fingerprints and renders
// thumbnails for every added or modified image. It never panics and never
// returns an error directly: failures are recorded as an error history
// entry and reported in the result. A call made while another run holds
// the guard returns immediately with AlreadyRunning set.
func (s *Scheduler) RunScan(ctx context.Context) (result RunResult) {
	if !s.tryStart() {
		metrics.ScanRunsTotal.WithLabelValues("skipped").Inc()
		logging.Info("Scan requested while another run is in progress")
		return RunResult{Error: ErrAlreadyRunning.Error(), Err: ErrAlreadyRunning, AlreadyRunning: true}
	}
	defer s.finish()

	start := s.now()
	defer func() {
		if r := recover(); r != nil {
			logging.Error("Scan panicked: %v\n%s", r, debug.Stack())
			result = s.failRun(start, fmt.Errorf("scan panicked: %v", r))
		}
	}()

	result, err := s.runScan(ctx, start)
	if err != nil {
		return s.failRun(start, err)
	}
	return result
}

func (s *Scheduler) failRun(start time.Time, err error) RunResult {
	elapsed := s.now().Sub(start)
	logging.Error("Scan failed after %v: %v", elapsed, err)
	metrics.ScanRunsTotal.WithLabelValues("error").Inc()
	s.record(models.HistoryEntry{
		Action:     models.ActionError,
		Details:    err.Error(),
		DurationMs: durationPtr(elapsed),
	})
	return RunResult{Error: err.Error(), Err: err, DurationMs: elapsed.Milliseconds()}
}

func (s *Scheduler) runScan(ctx context.Context, start time.Time) (RunResult, error) {
	var result RunResult

	if _, err := s.store.AppendHistory(models.HistoryEntry{
		Timestamp: start,
		Action:    models.ActionScanStarted,
		Details:   fmt.Sprintf("Scan of %q started", s.root),
	}); err != nil {
		return result, fmt.Errorf("record scan start: %w", err)
	}

	cfg, err := s.store.LoadConfig()
	if err != nil {
		return result, fmt.Errorf("load config: %w", err)
	}

	previous, err := s.store.LoadFingerprints()
	if err != nil {
		return result, fmt.Errorf("load fingerprints: %w", err)
	}

	current, err := s.scanner.Scan(ctx, s.root)
	if err != nil {
		return result, fmt.Errorf("scan: %w", err)
	}
	result.FilesScanned = len(current)

	detectedAt := s.now()
	events := changes.DetectChanges(previous, changes.Index(current), detectedAt)
	stats := changes.ChangeStats(events)
	result.Changes = stats

	run := models.ScanRun{
		LastRunAt:       &start,
		LastDurationMs:  detectedAt.Sub(start).Milliseconds(),
		LastChangeCount: len(events),
	}
	if err := s.store.CommitScan(current, run, events); err != nil {
		return result, fmt.Errorf("persist scan: %w", err)
	}

	metrics.ScanFilesTracked.Set(float64(len(current)))
	metrics.ScanChangesTotal.WithLabelValues(string(models.ChangeAdded)).Add(float64(stats.Added))
	metrics.ScanChangesTotal.WithLabelValues(string(models.ChangeModified)).Add(float64(stats.Modified))
	metrics.ScanChangesTotal.WithLabelValues(string(models.ChangeDeleted)).Add(float64(stats.Deleted))

	if len(events) == 0 {
		elapsed := s.now().Sub(start)
		s.record(models.HistoryEntry{
			Action:     models.ActionScanCompleted,
			Details:    fmt.Sprintf("No changes detected (%d images tracked)", len(current)),
			DurationMs: durationPtr(elapsed),
		})
		return s.succeed(result, start), nil
	}

	logging.Info("Detected changes: %s", stats)
	s.record(models.HistoryEntry{
		Action:        models.ActionChangesDetected,
		Details:       fmt.Sprintf("Detected %s", stats),
		AffectedPaths: changes.AffectedPaths(events, maxAffectedPaths),
	})

	targets := changes.NeedsThumbnails(events)
	if len(targets) > 0 {
		generated, failed, succeeded := s.generateAll(ctx, targets, cfg.Thumbnails)
		result.ThumbnailsGenerated = generated
		result.ThumbnailsFailed = failed

		if generated > 0 {
			s.record(models.HistoryEntry{
				Action:        models.ActionThumbnailsGenerated,
				Details:       fmt.Sprintf("Generated thumbnails for %d of %d images", generated, len(targets)),
				DurationMs:    durationPtr(s.now().Sub(start)),
				AffectedPaths: firstN(succeeded, maxAffectedPaths),
			})
		}
	}

	return s.succeed(result, start), nil
}

func (s *Scheduler) succeed(result RunResult, start time.Time) RunResult {
	elapsed := s.now().Sub(start)
	result.Success = true
	result.DurationMs = elapsed.Milliseconds()

	metrics.ScanRunsTotal.WithLabelValues("success").Inc()
	metrics.ScanLastRunTimestamp.Set(float64(start.Unix()))
	metrics.ScanLastRunDuration.Set(elapsed.Seconds())

	logging.Info("Scan complete in %v: %d images, %s, %d thumbnails generated, %d failed",
		elapsed, result.FilesScanned, result.Changes, result.ThumbnailsGenerated, result.ThumbnailsFailed)
	return result
}

func firstN(paths []string, n int) []string {
	if len(paths) > n {
		return paths[:n]
	}
	return paths
}

// generateAll renders thumbnails for paths with bounded parallelism. A
// path counts as generated when at least one size was written. The
// returned succeeded list is sorted.
func (s *Scheduler) generateAll(ctx context.Context, paths []string, cfg models.ThumbnailConfig) (generated, failed int, succeeded []string) {
	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(s.encodeLimit)

	for _, p := range paths {
		g.Go(func() error {
			ok := s.generateOne(ctx, p, cfg)

			mu.Lock()
			defer mu.Unlock()
			if ok {
				generated++
				succeeded = append(succeeded, p)
			} else {
				failed++
			}
			return nil
		})
	}
	_ = g.Wait()

	sort.Strings(succeeded)
	metrics.ThumbnailBatchLastTimestamp.Set(float64(s.now().Unix()))
	metrics.ThumbnailBatchFiles.WithLabelValues("generated").Set(float64(generated))
	metrics.ThumbnailBatchFiles.WithLabelValues("failed").Set(float64(failed))
	return generated, failed, succeeded
}

func (s *Scheduler) generateOne(ctx context.Context, path string, cfg models.ThumbnailConfig) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error("Thumbnail generation for %s panicked: %v", path, r)
			ok = false
		}
	}()

	locations, err := s.generator.GenerateThumbnails(ctx, path, cfg)
	if err != nil && len(locations) == 0 {
		logging.Warn("Thumbnails for %s failed: %v", path, err)
		return false
	}
	if len(locations) < len(cfg.Sizes) {
		logging.Debug("Thumbnails for %s partially generated: %d/%d sizes", path, len(locations), len(cfg.Sizes))
	}
	return len(locations) > 0
}

// RegenerateAllThumbnails renders every tracked image again, regardless
// of change status, continuing past failures. It shares the guard with
// RunScan and returns ErrAlreadyRunning when the guard is held.
func (s *Scheduler) RegenerateAllThumbnails(ctx context.Context) (result RegenerateResult, err error) {
	if !s.tryStart() {
		return RegenerateResult{}, ErrAlreadyRunning
	}
	defer s.finish()

	start := s.now()
	defer func() {
		if r := recover(); r != nil {
			logging.Error("Regeneration panicked: %v\n%s", r, debug.Stack())
			err = fmt.Errorf("regeneration panicked: %v", r)
		}
		result.DurationMs = s.now().Sub(start).Milliseconds()
		if err != nil {
			s.record(models.HistoryEntry{
				Action:     models.ActionError,
				Details:    "Thumbnail regeneration failed: " + err.Error(),
				DurationMs: &result.DurationMs,
			})
		}
	}()

	cfg, err := s.store.LoadConfig()
	if err != nil {
		return result, fmt.Errorf("load config: %w", err)
	}
	fingerprints, err := s.store.LoadFingerprints()
	if err != nil {
		return result, fmt.Errorf("load fingerprints: %w", err)
	}

	paths := make([]string, 0, len(fingerprints))
	for p := range fingerprints {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	logging.Info("Regenerating thumbnails for %d images", len(paths))
	generated, failed, _ := s.generateAll(ctx, paths, cfg.Thumbnails)
	result.Generated = generated
	result.Failed = failed

	elapsed := s.now().Sub(start)
	s.record(models.HistoryEntry{
		Action:     models.ActionThumbnailsGenerated,
		Details:    fmt.Sprintf("Regenerated thumbnails for %d of %d images (%d failed)", generated, len(paths), failed),
		DurationMs: durationPtr(elapsed),
	})
	logging.Info("Thumbnail regeneration complete in %v: %d generated, %d failed", elapsed, generated, failed)
	return result, nil
}
