package state

import (
	"time"

	"thumbsync/internal/logging"
	"thumbsync/internal/models"

	"github.com/google/uuid"
)

// currentState is the content of history/current.json. History and
// Changes are oldest first and capped at the retention window.
type currentState struct {
	Version      int                               `json:"version"`
	Fingerprints map[string]models.FileFingerprint `json:"fingerprints"`
	LastRun      models.ScanRun                    `json:"lastRun"`
	History      []models.HistoryEntry             `json:"history"`
	Changes      []models.ChangeEvent              `json:"changes"`
}

func (s *Store) loadCurrentLocked() (*currentState, error) {
	if err := s.ensureMigrated(); err != nil {
		return nil, err
	}
	cur := &currentState{}
	if _, err := s.readJSON(s.currentPath(), cur); err != nil {
		return nil, err
	}
	if cur.Fingerprints == nil {
		cur.Fingerprints = make(map[string]models.FileFingerprint)
	}
	return cur, nil
}

func (s *Store) saveCurrentLocked(cur *currentState) error {
	cur.Version = currentVersion
	return s.writeJSON("current", s.currentPath(), cur)
}

// maxRecent reads the cap from the stored config, falling back to the
// default when the config cannot be read.
func (s *Store) maxRecentLocked() int {
	cfg, err := s.loadConfigLocked()
	if err != nil {
		logging.Warn("Using default history window: %v", err)
		return models.DefaultMaxRecentEntries
	}
	return cfg.Retention.MaxRecentEntries
}

func capTail[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return append([]T(nil), items[len(items)-limit:]...)
	}
	return items
}

// newestFirst returns up to limit items from the end of an oldest-first
// slice, newest first. limit <= 0 returns all of them.
func newestFirst[T any](items []T, limit int) []T {
	n := len(items)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]T, 0, n)
	for i := len(items) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, items[i])
	}
	return out
}

// LoadFingerprints returns the stored fingerprint table keyed by path.
func (s *Store) LoadFingerprints() (map[string]models.FileFingerprint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := s.loadCurrentLocked()
	if err != nil {
		return nil, err
	}
	return cur.Fingerprints, nil
}

// FingerprintCount returns the number of tracked images.
func (s *Store) FingerprintCount() (int, error) {
	fps, err := s.LoadFingerprints()
	if err != nil {
		return 0, err
	}
	return len(fps), nil
}

// LastRun returns the metadata of the last completed scan.
func (s *Store) LastRun() (models.ScanRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := s.loadCurrentLocked()
	if err != nil {
		return models.ScanRun{}, err
	}
	return cur.LastRun, nil
}

// CommitScan appends changes to their daily files, then replaces the
// fingerprint table, records run and appends changes to the recent window
// in a single write of current.json. A failed daily append leaves the
// fingerprints untouched so the next scan reports the same changes again.
func (s *Store) CommitScan(fingerprints []models.FileFingerprint, run models.ScanRun, changes []models.ChangeEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := s.loadCurrentLocked()
	if err != nil {
		return err
	}

	if err := s.appendDailyLocked(nil, changes); err != nil {
		return err
	}

	table := make(map[string]models.FileFingerprint, len(fingerprints))
	for _, fp := range fingerprints {
		table[fp.Path] = fp
	}
	cur.Fingerprints = table
	cur.LastRun = run
	cur.Changes = capTail(append(cur.Changes, changes...), s.maxRecentLocked())

	return s.saveCurrentLocked(cur)
}

// AppendHistory records entry in the recent window and in its daily file.
// A missing ID or timestamp is filled in; the stored entry is returned.
func (s *Store) AppendHistory(entry models.HistoryEntry) (models.HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = s.now()
	}
	entry.Timestamp = entry.Timestamp.UTC()

	cur, err := s.loadCurrentLocked()
	if err != nil {
		return entry, err
	}
	cur.History = capTail(append(cur.History, entry), s.maxRecentLocked())
	if err := s.saveCurrentLocked(cur); err != nil {
		return entry, err
	}

	return entry, s.appendDailyLocked([]models.HistoryEntry{entry}, nil)
}

// RecentHistory returns up to limit entries, newest first.
func (s *Store) RecentHistory(limit int) ([]models.HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := s.loadCurrentLocked()
	if err != nil {
		return nil, err
	}
	return newestFirst(cur.History, limit), nil
}

// RecentChanges returns up to limit change events, newest first.
func (s *Store) RecentChanges(limit int) ([]models.ChangeEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := s.loadCurrentLocked()
	if err != nil {
		return nil, err
	}
	return newestFirst(cur.Changes, limit), nil
}

func keepSince[T any](items []T, cutoff time.Time, ts func(T) time.Time) ([]T, int) {
	kept := items[:0:0]
	for _, item := range items {
		if !ts(item).Before(cutoff) {
			kept = append(kept, item)
		}
	}
	return kept, len(items) - len(kept)
}
