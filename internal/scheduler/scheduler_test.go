package scheduler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"thumbsync/internal/models"
	"thumbsync/internal/state"
)

// memStore is an in-memory Store.
type memStore struct {
	mu           sync.Mutex
	cfg          models.CacheConfig
	fingerprints map[string]models.FileFingerprint
	lastRun      models.ScanRun
	history      []models.HistoryEntry
	commits      int
}

func newMemStore() *memStore {
	return &memStore{cfg: models.DefaultCacheConfig(), fingerprints: map[string]models.FileFingerprint{}}
}

func (m *memStore) LoadConfig() (models.CacheConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg, nil
}

func (m *memStore) LoadFingerprints() (map[string]models.FileFingerprint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]models.FileFingerprint, len(m.fingerprints))
	for k, v := range m.fingerprints {
		out[k] = v
	}
	return out, nil
}

func (m *memStore) CommitScan(fps []models.FileFingerprint, run models.ScanRun, _ []models.ChangeEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fingerprints = map[string]models.FileFingerprint{}
	for _, fp := range fps {
		m.fingerprints[fp.Path] = fp
	}
	m.lastRun = run
	m.commits++
	return nil
}

func (m *memStore) LastRun() (models.ScanRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastRun, nil
}

func (m *memStore) AppendHistory(e models.HistoryEntry) (models.HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = append(m.history, e)
	return e, nil
}

func (m *memStore) actions() []models.HistoryAction {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.HistoryAction
	for _, e := range m.history {
		out = append(out, e.Action)
	}
	return out
}

type scanFunc func(ctx context.Context, root string) ([]models.FileFingerprint, error)

func (f scanFunc) Scan(ctx context.Context, root string) ([]models.FileFingerprint, error) {
	return f(ctx, root)
}

type fakeGenerator struct {
	mu       sync.Mutex
	calls    []string
	fail     map[string]bool
	delay    time.Duration
	inFlight atomic.Int64
	peak     atomic.Int64
}

func (g *fakeGenerator) GenerateThumbnails(_ context.Context, path string, cfg models.ThumbnailConfig) (map[string]string, error) {
	n := g.inFlight.Add(1)
	defer g.inFlight.Add(-1)
	for {
		cur := g.peak.Load()
		if n <= cur || g.peak.CompareAndSwap(cur, n) {
			break
		}
	}
	if g.delay > 0 {
		time.Sleep(g.delay)
	}

	g.mu.Lock()
	g.calls = append(g.calls, path)
	g.mu.Unlock()

	if g.fail[path] {
		return map[string]string{}, errors.New("decode failed")
	}
	out := map[string]string{}
	for _, size := range cfg.Sizes {
		out[size.Name] = "/cache/" + path + "_" + size.Name
	}
	return out, nil
}

func staticScan(fps ...models.FileFingerprint) scanFunc {
	return func(context.Context, string) ([]models.FileFingerprint, error) {
		return fps, nil
	}
}

func fp(path, hash string) models.FileFingerprint {
	return models.FileFingerprint{Path: path, Hash: hash, Size: 1, LastModified: "m"}
}

func TestRunScanEndToEnd(t *testing.T) {
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	store := state.New(t.TempDir(), state.WithClock(func() time.Time { return now }))
	gen := &fakeGenerator{}

	s := New(Options{
		Store:     store,
		Scanner:   staticScan(fp("a.jpg", "h1")),
		Generator: gen,
		Now:       func() time.Time { return now },
	})

	result := s.RunScan(context.Background())
	if !result.Success {
		t.Fatalf("Expected success, got error %q", result.Error)
	}
	if result.Changes.Added != 1 || result.Changes.Total != 1 {
		t.Errorf("Expected one added change, got %+v", result.Changes)
	}
	if len(gen.calls) != 1 || gen.calls[0] != "a.jpg" {
		t.Errorf("Expected one generation for a.jpg, got %v", gen.calls)
	}
	if result.ThumbnailsGenerated != 1 {
		t.Errorf("Expected 1 generated, got %d", result.ThumbnailsGenerated)
	}

	fps, err := store.LoadFingerprints()
	if err != nil {
		t.Fatalf("LoadFingerprints failed: %v", err)
	}
	if fps["a.jpg"].Hash != "h1" {
		t.Errorf("Expected a.jpg fingerprint to be persisted, got %+v", fps)
	}

	history, err := store.RecentHistory(0)
	if err != nil {
		t.Fatalf("RecentHistory failed: %v", err)
	}
	var actions []models.HistoryAction
	for i := len(history) - 1; i >= 0; i-- {
		actions = append(actions, history[i].Action)
	}
	want := []models.HistoryAction{models.ActionScanStarted, models.ActionChangesDetected, models.ActionThumbnailsGenerated}
	if len(actions) != len(want) {
		t.Fatalf("Expected history %v, got %v", want, actions)
	}
	for i := range want {
		if actions[i] != want[i] {
			t.Errorf("history[%d] = %s, want %s", i, actions[i], want[i])
		}
	}

	changes, _ := store.RecentChanges(0)
	if len(changes) != 1 || changes[0].Type != models.ChangeAdded || changes[0].Path != "a.jpg" {
		t.Errorf("Unexpected stored changes %+v", changes)
	}

	last, _ := store.LastRun()
	if last.LastRunAt == nil || !last.LastRunAt.Equal(now) {
		t.Errorf("Expected lastRunAt %v, got %+v", now, last)
	}
}

func TestRunScanSingleFlight(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var scans atomic.Int64

	s := New(Options{
		Store: newMemStore(),
		Scanner: scanFunc(func(context.Context, string) ([]models.FileFingerprint, error) {
			scans.Add(1)
			close(entered)
			<-release
			return nil, nil
		}),
		Generator: &fakeGenerator{},
	})

	first := make(chan RunResult, 1)
	go func() { first <- s.RunScan(context.Background()) }()

	<-entered
	if !s.IsRunning() {
		t.Error("Expected IsRunning while the first scan is in progress")
	}

	second := s.RunScan(context.Background())
	if second.Success || !second.AlreadyRunning || !errors.Is(second.Err, ErrAlreadyRunning) {
		t.Errorf("Expected the second scan to observe already running, got %+v", second)
	}
	if _, err := s.RegenerateAllThumbnails(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("Expected regeneration to share the guard, got %v", err)
	}

	close(release)
	if r := <-first; !r.Success {
		t.Errorf("Expected the first scan to succeed, got %+v", r)
	}
	if n := scans.Load(); n != 1 {
		t.Errorf("Expected exactly one scan, got %d", n)
	}
	if s.IsRunning() {
		t.Error("Expected the guard to be released")
	}
}

func TestRunScanRecoversFromPanic(t *testing.T) {
	store := newMemStore()
	s := New(Options{
		Store: store,
		Scanner: scanFunc(func(context.Context, string) ([]models.FileFingerprint, error) {
			panic("listing exploded")
		}),
		Generator: &fakeGenerator{},
	})

	result := s.RunScan(context.Background())
	if result.Success || !strings.Contains(result.Error, "listing exploded") {
		t.Errorf("Expected a structured failure, got %+v", result)
	}
	if s.IsRunning() {
		t.Error("Guard still held after panic")
	}

	actions := store.actions()
	if len(actions) == 0 || actions[len(actions)-1] != models.ActionError {
		t.Errorf("Expected an error history entry, got %v", actions)
	}

	// The engine is usable again.
	s.scanner = staticScan()
	if r := s.RunScan(context.Background()); !r.Success {
		t.Errorf("Expected a later scan to succeed, got %+v", r)
	}
}

func TestRunScanKeepsStateOnScanError(t *testing.T) {
	store := newMemStore()
	store.fingerprints["keep.jpg"] = fp("keep.jpg", "h")
	s := New(Options{
		Store: store,
		Scanner: scanFunc(func(context.Context, string) ([]models.FileFingerprint, error) {
			return nil, errors.New("root listing failed")
		}),
		Generator: &fakeGenerator{},
	})

	result := s.RunScan(context.Background())
	if result.Success || result.Err == nil {
		t.Fatalf("Expected failure, got %+v", result)
	}
	if store.commits != 0 {
		t.Errorf("Expected no commit after a scan error, got %d", store.commits)
	}
	if _, ok := store.fingerprints["keep.jpg"]; !ok {
		t.Error("Stored fingerprints were replaced after a failed scan")
	}
}

func TestRunScanNoChanges(t *testing.T) {
	store := newMemStore()
	store.fingerprints["a.jpg"] = fp("a.jpg", "h1")
	gen := &fakeGenerator{}
	s := New(Options{Store: store, Scanner: staticScan(fp("a.jpg", "h1")), Generator: gen})

	result := s.RunScan(context.Background())
	if !result.Success || result.Changes.Total != 0 {
		t.Fatalf("Unexpected result %+v", result)
	}
	if len(gen.calls) != 0 {
		t.Errorf("Expected no generation, got %v", gen.calls)
	}
	actions := store.actions()
	if actions[len(actions)-1] != models.ActionScanCompleted {
		t.Errorf("Expected scan_completed last, got %v", actions)
	}
}

func TestRunScanPartialThumbnailFailures(t *testing.T) {
	store := newMemStore()
	store.fingerprints["gone.jpg"] = fp("gone.jpg", "x")
	store.fingerprints["mod.jpg"] = fp("mod.jpg", "old")
	gen := &fakeGenerator{fail: map[string]bool{"bad.jpg": true}}

	s := New(Options{
		Store:     store,
		Scanner:   staticScan(fp("mod.jpg", "new"), fp("new.jpg", "n"), fp("bad.jpg", "b")),
		Generator: gen,
	})

	result := s.RunScan(context.Background())
	if !result.Success {
		t.Fatalf("Expected success, got %+v", result)
	}
	if result.Changes.Added != 2 || result.Changes.Modified != 1 || result.Changes.Deleted != 1 {
		t.Errorf("Unexpected change stats %+v", result.Changes)
	}
	if result.ThumbnailsGenerated != 2 || result.ThumbnailsFailed != 1 {
		t.Errorf("Expected 2 generated and 1 failed, got %d/%d", result.ThumbnailsGenerated, result.ThumbnailsFailed)
	}
	if len(gen.calls) != 3 {
		t.Errorf("Expected 3 generation calls, got %v", gen.calls)
	}
}

func TestGenerationConcurrencyIsBounded(t *testing.T) {
	var fps []models.FileFingerprint
	for _, name := range []string{"1.jpg", "2.jpg", "3.jpg", "4.jpg", "5.jpg", "6.jpg"} {
		fps = append(fps, fp(name, "h"))
	}
	gen := &fakeGenerator{delay: 20 * time.Millisecond}
	s := New(Options{Store: newMemStore(), Scanner: staticScan(fps...), Generator: gen})

	if r := s.RunScan(context.Background()); r.ThumbnailsGenerated != 6 {
		t.Fatalf("Expected 6 generated, got %+v", r)
	}
	if peak := gen.peak.Load(); peak > DefaultEncodeConcurrency {
		t.Errorf("Expected at most %d concurrent generations, saw %d", DefaultEncodeConcurrency, peak)
	}
}

func TestRegenerateAllThumbnails(t *testing.T) {
	store := newMemStore()
	for _, name := range []string{"a.jpg", "b.jpg", "c.jpg"} {
		store.fingerprints[name] = fp(name, "h")
	}
	gen := &fakeGenerator{fail: map[string]bool{"b.jpg": true}}
	s := New(Options{Store: store, Scanner: staticScan(), Generator: gen})

	result, err := s.RegenerateAllThumbnails(context.Background())
	if err != nil {
		t.Fatalf("RegenerateAllThumbnails failed: %v", err)
	}
	if result.Generated != 2 || result.Failed != 1 {
		t.Errorf("Expected 2 generated and 1 failed, got %+v", result)
	}
	if s.IsRunning() {
		t.Error("Guard still held after regeneration")
	}

	actions := store.actions()
	if len(actions) != 1 || actions[0] != models.ActionThumbnailsGenerated {
		t.Errorf("Expected one thumbnails_generated entry, got %v", actions)
	}
}

func TestStartStop(t *testing.T) {
	store := newMemStore()
	store.cfg.Scheduler.Enabled = false
	s := New(Options{Store: store, Scanner: staticScan(), Generator: &fakeGenerator{}, TickInterval: 5 * time.Millisecond})

	s.Start(context.Background())
	time.Sleep(20 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		s.Stop()
		s.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}

	if s.Status().LastTick == nil {
		t.Error("Expected at least one tick to be recorded")
	}
}

func TestStopWithoutStart(t *testing.T) {
	s := New(Options{Store: newMemStore(), Scanner: staticScan(), Generator: &fakeGenerator{}})
	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop without Start blocked")
	}
}
