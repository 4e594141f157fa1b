package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"thumbsync/internal/models"
	"thumbsync/internal/scheduler"
	"thumbsync/internal/state"
)

type fakeScheduler struct {
	status scheduler.Status
}

func (f *fakeScheduler) Status() scheduler.Status { return f.status }

type fakeStore struct {
	config  models.CacheConfig
	count   int
	history []models.HistoryEntry
	changes []models.ChangeEvent
	days    []string
	err     error

	lastLimit int
}

func (f *fakeStore) LoadConfig() (models.CacheConfig, error) { return f.config, f.err }
func (f *fakeStore) FingerprintCount() (int, error)          { return f.count, f.err }
func (f *fakeStore) HistoryDays() ([]string, error)          { return f.days, f.err }

func (f *fakeStore) RecentHistory(limit int) ([]models.HistoryEntry, error) {
	f.lastLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	if limit < len(f.history) {
		return f.history[:limit], nil
	}
	return f.history, nil
}

func (f *fakeStore) RecentChanges(limit int) ([]models.ChangeEvent, error) {
	f.lastLimit = limit
	return f.changes, f.err
}

func (f *fakeStore) DailyHistory(date string) (*state.DailyHistory, error) {
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return nil, fmt.Errorf("%w %q", state.ErrInvalidDate, date)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &state.DailyHistory{Date: date}, nil
}

func newTestServer(store *fakeStore, sched *fakeScheduler) *Server {
	return New(Options{Scheduler: sched, Store: store, MetricsEnabled: true})
}

func do(t *testing.T, s *Server, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestProbes(t *testing.T) {
	s := newTestServer(&fakeStore{count: 3}, &fakeScheduler{})

	tests := []struct {
		name   string
		ready  bool
		path   string
		status int
	}{
		{"live before ready", false, "/livez", http.StatusOK},
		{"readyz before ready", false, "/readyz", http.StatusServiceUnavailable},
		{"health before ready", false, "/health", http.StatusServiceUnavailable},
		{"readyz when ready", true, "/readyz", http.StatusOK},
		{"healthz when ready", true, "/healthz", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s.SetReady(tt.ready)
			rec := do(t, s, http.MethodGet, tt.path)
			if rec.Code != tt.status {
				t.Errorf("Expected status %d, got %d", tt.status, rec.Code)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Expected JSON content type, got %q", ct)
			}
		})
	}
}

func TestLivenessHeadHasNoBody(t *testing.T) {
	s := newTestServer(&fakeStore{}, &fakeScheduler{})
	rec := do(t, s, http.MethodHead, "/livez")
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("Expected empty body, got %q", rec.Body.String())
	}
}

func TestHealthReportsDegradedAfterError(t *testing.T) {
	last := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	store := &fakeStore{
		count:   7,
		history: []models.HistoryEntry{{Action: models.ActionError, Details: "root listing failed"}},
	}
	s := newTestServer(store, &fakeScheduler{status: scheduler.Status{LastCheckTime: &last}})
	s.SetReady(true)

	rec := do(t, s, http.MethodGet, "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var body HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to decode health: %v", err)
	}
	if body.Status != statusDegraded {
		t.Errorf("Expected status %q, got %q", statusDegraded, body.Status)
	}
	if body.LastError != "root listing failed" {
		t.Errorf("Expected last error to be reported, got %q", body.LastError)
	}
	if body.TrackedFiles != 7 {
		t.Errorf("Expected 7 tracked files, got %d", body.TrackedFiles)
	}
	if body.LastScan != "2024-06-10T12:00:00Z" {
		t.Errorf("Expected last scan time, got %q", body.LastScan)
	}
}

func TestHealthHealthy(t *testing.T) {
	store := &fakeStore{history: []models.HistoryEntry{{Action: models.ActionScanCompleted}}}
	s := newTestServer(store, &fakeScheduler{})
	s.SetReady(true)

	var body HealthResponse
	rec := do(t, s, http.MethodGet, "/health")
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to decode health: %v", err)
	}
	if body.Status != statusHealthy || !body.Ready {
		t.Errorf("Expected healthy and ready, got %+v", body)
	}
}

func TestStatus(t *testing.T) {
	store := &fakeStore{count: 12, days: []string{"2024-06-10", "2024-06-09"}}
	sched := &fakeScheduler{status: scheduler.Status{IsRunning: true, IntervalActive: true, IntervalMinutes: 15}}
	s := newTestServer(store, sched)

	rec := do(t, s, http.MethodGet, "/api/status")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var body StatusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to decode status: %v", err)
	}
	if !body.Scheduler.IsRunning || body.Scheduler.IntervalMinutes != 15 {
		t.Errorf("Expected scheduler snapshot, got %+v", body.Scheduler)
	}
	if body.TrackedFiles != 12 || body.HistoryDays != 2 {
		t.Errorf("Expected 12 files and 2 days, got %d and %d", body.TrackedFiles, body.HistoryDays)
	}
}

func TestStatusStoreError(t *testing.T) {
	s := newTestServer(&fakeStore{err: errors.New("disk gone")}, &fakeScheduler{})
	rec := do(t, s, http.MethodGet, "/api/status")
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("Expected 500, got %d", rec.Code)
	}
}

func TestHistoryLimit(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		status    int
		wantLimit int
	}{
		{"default", "", http.StatusOK, defaultLimit},
		{"explicit", "?limit=5", http.StatusOK, 5},
		{"capped", "?limit=999999", http.StatusOK, maxLimit},
		{"zero", "?limit=0", http.StatusBadRequest, 0},
		{"garbage", "?limit=abc", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{}
			s := newTestServer(store, &fakeScheduler{})
			rec := do(t, s, http.MethodGet, "/api/history"+tt.query)
			if rec.Code != tt.status {
				t.Fatalf("Expected status %d, got %d", tt.status, rec.Code)
			}
			if store.lastLimit != tt.wantLimit {
				t.Errorf("Expected limit %d, got %d", tt.wantLimit, store.lastLimit)
			}
		})
	}
}

func TestChanges(t *testing.T) {
	store := &fakeStore{changes: []models.ChangeEvent{{ID: "c1", Type: models.ChangeAdded, Path: "a.jpg"}}}
	s := newTestServer(store, &fakeScheduler{})

	rec := do(t, s, http.MethodGet, "/api/changes?limit=10")
	var got []models.ChangeEvent
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("Failed to decode changes: %v", err)
	}
	if len(got) != 1 || got[0].Path != "a.jpg" {
		t.Errorf("Expected one change for a.jpg, got %+v", got)
	}
}

func TestHistoryDaysAndDaily(t *testing.T) {
	s := newTestServer(&fakeStore{}, &fakeScheduler{})

	rec := do(t, s, http.MethodGet, "/api/history/days")
	if rec.Code != http.StatusOK || rec.Body.String() != "[]\n" {
		t.Errorf("Expected empty day list, got %d %q", rec.Code, rec.Body.String())
	}

	rec = do(t, s, http.MethodGet, "/api/history/2024-06-10")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var day state.DailyHistory
	if err := json.Unmarshal(rec.Body.Bytes(), &day); err != nil {
		t.Fatalf("Failed to decode day: %v", err)
	}
	if day.Date != "2024-06-10" {
		t.Errorf("Expected date 2024-06-10, got %q", day.Date)
	}

	rec = do(t, s, http.MethodGet, "/api/history/yesterday")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for a malformed date, got %d", rec.Code)
	}
}

func TestConfig(t *testing.T) {
	store := &fakeStore{config: models.DefaultCacheConfig()}
	s := newTestServer(store, &fakeScheduler{})
	rec := do(t, s, http.MethodGet, "/api/config")
	var cfg models.CacheConfig
	if err := json.Unmarshal(rec.Body.Bytes(), &cfg); err != nil {
		t.Fatalf("Failed to decode config: %v", err)
	}
	if cfg.Retention.MaxRecentEntries != models.DefaultMaxRecentEntries {
		t.Errorf("Expected default retention, got %+v", cfg.Retention)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(&fakeStore{}, &fakeScheduler{})
	do(t, s, http.MethodGet, "/api/history")

	rec := do(t, s, http.MethodGet, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	disabled := New(Options{Scheduler: &fakeScheduler{}, Store: &fakeStore{}})
	if rec := do(t, disabled, http.MethodGet, "/metrics"); rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 with metrics disabled, got %d", rec.Code)
	}
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/api/status", "/api/status"},
		{"/api/history/2024-06-10", "/api/history/2024-06-10"},
		{"/a/b/c/d/e", "/a/b/c/{path}"},
	}
	for _, tt := range tests {
		if got := normalizePath(tt.in); got != tt.want {
			t.Errorf("normalizePath(%q): expected %q, got %q", tt.in, tt.want, got)
		}
	}
}
