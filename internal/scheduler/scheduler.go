package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"thumbsync/internal/logging"
	"thumbsync/internal/metrics"
	"thumbsync/internal/models"
)

// ErrAlreadyRunning is returned when a scan or regeneration is requested
// while another one holds the guard.
var ErrAlreadyRunning = errors.New("scan already running")

const (
	// DefaultTickInterval is how often Start evaluates the schedule.
	DefaultTickInterval = 60 * time.Second

	// DefaultEncodeConcurrency bounds parallel thumbnail generation.
	DefaultEncodeConcurrency = 2

	maxAffectedPaths = 20
)

// Store is the subset of the state store the scheduler needs.
type Store interface {
	LoadConfig() (models.CacheConfig, error)
	LoadFingerprints() (map[string]models.FileFingerprint, error)
	CommitScan(fingerprints []models.FileFingerprint, run models.ScanRun, changes []models.ChangeEvent) error
	LastRun() (models.ScanRun, error)
	AppendHistory(entry models.HistoryEntry) (models.HistoryEntry, error)
}

// Scanner lists and fingerprints the remote tree.
type Scanner interface {
	Scan(ctx context.Context, root string) ([]models.FileFingerprint, error)
}

// Generator renders the thumbnails of one original.
type Generator interface {
	GenerateThumbnails(ctx context.Context, originalPath string, cfg models.ThumbnailConfig) (map[string]string, error)
}

// Options configures a Scheduler.
type Options struct {
	Store     Store
	Scanner   Scanner
	Generator Generator

	// Root is the remote folder scanned. Empty means the service root.
	Root string

	TickInterval      time.Duration
	EncodeConcurrency int

	// Now replaces time.Now, mainly for tests.
	Now func() time.Time
}

// Scheduler decides when to scan and runs scans and regenerations one at
// a time. The zero value is not usable; use New.
type Scheduler struct {
	store     Store
	scanner   Scanner
	generator Generator
	root      string

	tickInterval time.Duration
	encodeLimit  int
	now          func() time.Time

	runMu     sync.Mutex
	isRunning bool
	lastTick  time.Time

	stopChan  chan struct{}
	stopOnce  sync.Once
	startOnce sync.Once
	done      chan struct{}
}

// New creates a Scheduler.
func New(opts Options) *Scheduler {
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}
	if opts.EncodeConcurrency <= 0 {
		opts.EncodeConcurrency = DefaultEncodeConcurrency
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Scheduler{
		store:        opts.Store,
		scanner:      opts.Scanner,
		generator:    opts.Generator,
		root:         opts.Root,
		tickInterval: opts.TickInterval,
		encodeLimit:  opts.EncodeConcurrency,
		now:          opts.Now,
		stopChan:     make(chan struct{}),
		done:         make(chan struct{}),
	}
}

// tryStart takes the guard, returning false if it is already held.
func (s *Scheduler) tryStart() bool {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	if s.isRunning {
		return false
	}
	s.isRunning = true
	metrics.ScanIsRunning.Set(1)
	return true
}

// finish releases the guard.
func (s *Scheduler) finish() {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	s.isRunning = false
	metrics.ScanIsRunning.Set(0)
}

// IsRunning reports whether a scan or regeneration is in progress.
func (s *Scheduler) IsRunning() bool {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	return s.isRunning
}

// Start runs Tick once and then every tick interval until Stop is called
// or ctx is done. Ticks that fire during a run are dropped.
func (s *Scheduler) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		go s.loop(ctx)
	})
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	logging.Info("Scan scheduler started (tick every %v)", s.tickInterval)
	s.Tick(ctx)

	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Tick(ctx)
		case <-s.stopChan:
			logging.Info("Scan scheduler stopped")
			return
		case <-ctx.Done():
			logging.Info("Scan scheduler stopped: %v", ctx.Err())
			return
		}
	}
}

// Stop ends the tick loop and waits for an in-progress tick to return.
// It is safe to call more than once and without Start.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})

	started := true
	s.startOnce.Do(func() {
		started = false
		close(s.done)
	})
	if started {
		<-s.done
	}
}
