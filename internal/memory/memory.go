package memory

import (
	"context"
	"math"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"thumbsync/internal/logging"
	"thumbsync/internal/metrics"
)

// Config holds memory backpressure configuration
type Config struct {
	// MemoryLimitBytes is the soft limit. 0 uses GOMEMLIMIT if set.
	MemoryLimitBytes int64

	// HighWaterMark is the fraction of the limit below which paused decoding resumes.
	HighWaterMark float64

	// CriticalWaterMark is the fraction where image decoding pauses.
	CriticalWaterMark float64

	CheckInterval time.Duration
}

// DefaultConfig returns the defaults used by the thumbnail pipeline.
func DefaultConfig() Config {
	return Config{
		HighWaterMark:     0.7,
		CriticalWaterMark: 0.85,
		CheckInterval:     5 * time.Second,
	}
}

// Monitor tracks heap usage and blocks image decoding while usage is
// above the critical watermark.
type Monitor struct {
	config    Config
	limit     int64
	stopChan  chan struct{}
	stopOnce  sync.Once
	mu        sync.RWMutex
	current   uint64
	isPaused  bool
	pauseChan chan struct{}

	// readAlloc returns the current heap allocation; replaced in tests.
	readAlloc func() uint64
}

// NewMonitor creates a new memory monitor
func NewMonitor(config Config) *Monitor {
	limit := config.MemoryLimitBytes

	if limit == 0 {
		if goMemLimit := debug.SetMemoryLimit(-1); goMemLimit > 0 && goMemLimit < math.MaxInt64 {
			limit = goMemLimit
			logging.Info("Memory monitor using GOMEMLIMIT: %s", FormatBytes(limit))
		}
	}

	if limit == 0 {
		logging.Debug("Memory monitor: no memory limit configured, backpressure disabled")
	}

	return &Monitor{
		config:    config,
		limit:     limit,
		stopChan:  make(chan struct{}),
		pauseChan: make(chan struct{}),
		readAlloc: func() uint64 {
			var stats runtime.MemStats
			runtime.ReadMemStats(&stats)
			return stats.Alloc
		},
	}
}

// Start begins monitoring. It is a no-op when no limit is configured.
func (m *Monitor) Start() {
	if m.limit == 0 {
		return
	}
	go m.monitorLoop()
}

// Stop stops the monitor and releases any goroutine blocked in WaitIfPaused.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopChan) })
}

func (m *Monitor) monitorLoop() {
	ticker := time.NewTicker(m.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.checkMemory()
		case <-m.stopChan:
			return
		}
	}
}

func (m *Monitor) checkMemory() {
	alloc := m.readAlloc()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.current = alloc
	if m.limit <= 0 {
		return
	}

	usage := float64(alloc) / float64(m.limit)
	metrics.MemoryUsageRatio.Set(usage)

	switch {
	case usage >= m.config.CriticalWaterMark:
		if !m.isPaused {
			logging.Warn("Memory critical (%.1f%% of limit), pausing thumbnail decoding", usage*100)
			m.isPaused = true
			metrics.MemoryPaused.Set(1)
			metrics.MemoryGCPauses.Inc()
			go runtime.GC()
		}
	case usage < m.config.HighWaterMark:
		if m.isPaused {
			logging.Info("Memory recovered (%.1f%% of limit), resuming thumbnail decoding", usage*100)
			m.isPaused = false
			metrics.MemoryPaused.Set(0)
			close(m.pauseChan)
			m.pauseChan = make(chan struct{})
		}
	}
}

// WaitIfPaused blocks while memory is critical. It returns false if the
// monitor was stopped or ctx was cancelled while waiting. A nil Monitor
// never blocks.
func (m *Monitor) WaitIfPaused(ctx context.Context) bool {
	if m == nil {
		return true
	}

	m.mu.RLock()
	if !m.isPaused {
		m.mu.RUnlock()
		return true
	}
	pauseChan := m.pauseChan
	m.mu.RUnlock()

	select {
	case <-pauseChan:
		return true
	case <-m.stopChan:
		return false
	case <-ctx.Done():
		return false
	}
}

// IsPaused reports whether decoding is currently paused.
func (m *Monitor) IsPaused() bool {
	if m == nil {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.isPaused
}

// GetStats returns current allocation, the limit, and their ratio.
func (m *Monitor) GetStats() (current, limit int64, usage float64) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	currentInt64 := int64(math.MaxInt64)
	if m.current <= math.MaxInt64 {
		currentInt64 = int64(m.current)
	}

	if m.limit > 0 {
		usage = float64(m.current) / float64(m.limit)
	}

	return currentInt64, m.limit, usage
}
