package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// value reads the current value of a counter or gauge.
func value(t *testing.T, m prometheus.Metric) float64 {
	t.Helper()
	var out dto.Metric
	if err := m.Write(&out); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	switch {
	case out.Counter != nil:
		return out.Counter.GetValue()
	case out.Gauge != nil:
		return out.Gauge.GetValue()
	}
	t.Fatalf("metric is neither counter nor gauge")
	return 0
}

// seriesCount counts the series a collector currently exports.
func seriesCount(c prometheus.Collector) int {
	ch := make(chan prometheus.Metric, 1024)
	c.Collect(ch)
	close(ch)
	return len(ch)
}

func TestMetricsRegistered(t *testing.T) {
	tests := []struct {
		name      string
		collector prometheus.Collector
	}{
		{"ScanRunsTotal", ScanRunsTotal},
		{"ScanIsRunning", ScanIsRunning},
		{"ScanChangesTotal", ScanChangesTotal},
		{"ThumbnailGenerationsTotal", ThumbnailGenerationsTotal},
		{"StorageOperationsTotal", StorageOperationsTotal},
		{"RemoteRequestsTotal", RemoteRequestsTotal},
		{"StateWritesTotal", StateWritesTotal},
		{"FilesystemRetryAttempts", FilesystemRetryAttempts},
		{"MemoryUsageRatio", MemoryUsageRatio},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := prometheus.DefaultRegisterer.Register(tt.collector)
			var already prometheus.AlreadyRegisteredError
			if !errors.As(err, &already) {
				t.Errorf("%s should already be registered, Register() = %v", tt.name, err)
			}
		})
	}
}

func TestInitializeMetrics(t *testing.T) {
	InitializeMetrics()

	if got := seriesCount(ScanChangesTotal); got != 3 {
		t.Errorf("ScanChangesTotal series = %d, want 3", got)
	}
	if got := seriesCount(StorageOperationsTotal); got < 24 {
		t.Errorf("StorageOperationsTotal series = %d, want at least 24", got)
	}
}

func TestSetAppInfo(t *testing.T) {
	SetAppInfo("1.2.3", "abc123", "go1.25")
	if got := value(t, AppInfo.WithLabelValues("1.2.3", "abc123", "go1.25")); got != 1 {
		t.Errorf("AppInfo = %v, want 1", got)
	}
}

func TestFilesystemObserver(t *testing.T) {
	obs := NewFilesystemObserver()

	before := value(t, FilesystemOperationErrors.WithLabelValues("data", "write"))
	obs.ObserveOperation("data", "write", 0.01, errors.New("disk full"))
	obs.ObserveOperation("data", "write", 0.01, nil)
	after := value(t, FilesystemOperationErrors.WithLabelValues("data", "write"))
	if after-before != 1 {
		t.Errorf("FilesystemOperationErrors increased by %v, want 1", after-before)
	}

	before = value(t, FilesystemStaleErrors.WithLabelValues("stat", "thumbnails"))
	obs.ObserveStaleError("stat", "thumbnails")
	if got := value(t, FilesystemStaleErrors.WithLabelValues("stat", "thumbnails")) - before; got != 1 {
		t.Errorf("FilesystemStaleErrors increased by %v, want 1", got)
	}
}

type fixedStats struct{ stats Stats }

func (f fixedStats) GetStats() Stats { return f.stats }

func TestCollectorCollect(t *testing.T) {
	c := NewCollector(fixedStats{Stats{
		FingerprintCount: 42,
		HistoryDays:      3,
		ThumbnailCount:   126,
		ThumbnailBytes:   4096,
	}}, time.Hour)

	c.collect()

	if got := value(t, ScanFilesTracked); got != 42 {
		t.Errorf("ScanFilesTracked = %v, want 42", got)
	}
	if got := value(t, StateHistoryDays); got != 3 {
		t.Errorf("StateHistoryDays = %v, want 3", got)
	}
	if got := value(t, ThumbnailCacheBytes); got != 4096 {
		t.Errorf("ThumbnailCacheBytes = %v, want 4096", got)
	}
}

func TestCollectorStartStop(t *testing.T) {
	c := NewCollector(nil, 10*time.Millisecond)
	c.Start()
	time.Sleep(25 * time.Millisecond)
	c.Stop()
	c.Stop()
}
