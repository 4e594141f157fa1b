package metrics

import (
	"sync"
	"time"

	"thumbsync/internal/logging"
)

// StatsProvider reports point-in-time cache statistics.
type StatsProvider interface {
	GetStats() Stats
}

// Stats holds the gauges refreshed by the Collector.
type Stats struct {
	FingerprintCount int
	HistoryDays      int
	ThumbnailCount   int64
	ThumbnailBytes   int64
}

// Collector periodically refreshes gauges that are expensive to compute
// inline, such as the on-disk thumbnail cache size.
type Collector struct {
	statsProvider StatsProvider
	interval      time.Duration
	stopChan      chan struct{}
	stopOnce      sync.Once
}

// NewCollector creates a new metrics collector
func NewCollector(provider StatsProvider, interval time.Duration) *Collector {
	return &Collector{
		statsProvider: provider,
		interval:      interval,
		stopChan:      make(chan struct{}),
	}
}

// Start begins the collection loop
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the collection loop. Safe to call more than once.
func (c *Collector) Stop() {
	c.stopOnce.Do(func() { close(c.stopChan) })
}

func (c *Collector) collectLoop() {
	c.collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Collector) collect() {
	if c.statsProvider == nil {
		return
	}

	stats := c.statsProvider.GetStats()

	ScanFilesTracked.Set(float64(stats.FingerprintCount))
	StateHistoryDays.Set(float64(stats.HistoryDays))
	ThumbnailCacheCount.Set(float64(stats.ThumbnailCount))
	ThumbnailCacheBytes.Set(float64(stats.ThumbnailBytes))

	logging.Debug("Metrics collected: fingerprints=%d, historyDays=%d, thumbnails=%d (%d bytes)",
		stats.FingerprintCount, stats.HistoryDays, stats.ThumbnailCount, stats.ThumbnailBytes)
}
