package state

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"
	"time"

	"thumbsync/internal/filesystem"
	"thumbsync/internal/logging"
	"thumbsync/internal/metrics"
	"thumbsync/internal/models"
)

// ErrInvalidDate is returned for a day that is not formatted YYYY-MM-DD.
var ErrInvalidDate = errors.New("invalid date")

// DailyHistory is the content of one history/cache-<date>.json file.
type DailyHistory struct {
	Date    string                `json:"date"`
	History []models.HistoryEntry `json:"history"`
	Changes []models.ChangeEvent  `json:"changes"`
}

// CleanupResult counts what CleanupHistory removed.
type CleanupResult struct {
	Files   int `json:"files"`
	History int `json:"history"`
	Changes int `json:"changes"`
}

func dateOf(t time.Time) string {
	return t.UTC().Format(dateLayout)
}

// appendDailyLocked adds entries and changes to the daily files of their
// UTC dates. Records whose ID is already present are skipped.
func (s *Store) appendDailyLocked(entries []models.HistoryEntry, changes []models.ChangeEvent) error {
	byDate := map[string]*DailyHistory{}
	get := func(date string) *DailyHistory {
		d, ok := byDate[date]
		if !ok {
			d = &DailyHistory{Date: date}
			byDate[date] = d
		}
		return d
	}
	for _, e := range entries {
		d := get(dateOf(e.Timestamp))
		d.History = append(d.History, e)
	}
	for _, c := range changes {
		d := get(dateOf(c.Timestamp))
		d.Changes = append(d.Changes, c)
	}

	dates := make([]string, 0, len(byDate))
	for date := range byDate {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	for _, date := range dates {
		add := byDate[date]
		day := &DailyHistory{Date: date}
		if _, err := s.readJSON(s.dailyPath(date), day); err != nil {
			return err
		}

		seen := make(map[string]struct{}, len(day.History)+len(day.Changes))
		for _, e := range day.History {
			seen[e.ID] = struct{}{}
		}
		for _, c := range day.Changes {
			seen[c.ID] = struct{}{}
		}
		for _, e := range add.History {
			if _, dup := seen[e.ID]; !dup {
				day.History = append(day.History, e)
			}
		}
		for _, c := range add.Changes {
			if _, dup := seen[c.ID]; !dup {
				day.Changes = append(day.Changes, c)
			}
		}

		if err := s.writeJSON("daily", s.dailyPath(date), day); err != nil {
			return err
		}
	}
	return nil
}

// DailyHistory returns the history file for date (YYYY-MM-DD, UTC). A day
// without a file returns an empty record.
func (s *Store) DailyHistory(date string) (*DailyHistory, error) {
	if _, err := time.Parse(dateLayout, date); err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidDate, date, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureMigrated(); err != nil {
		return nil, err
	}
	day := &DailyHistory{Date: date}
	if _, err := s.readJSON(s.dailyPath(date), day); err != nil {
		return nil, err
	}
	return day, nil
}

// HistoryDays lists the dates that have a daily file, newest first.
func (s *Store) HistoryDays() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureMigrated(); err != nil {
		return nil, err
	}
	days, err := s.historyDaysLocked()
	if err != nil {
		return nil, err
	}
	sort.Sort(sort.Reverse(sort.StringSlice(days)))
	return days, nil
}

func (s *Store) historyDaysLocked() ([]string, error) {
	entries, err := filesystem.ReadDirWithRetry(s.historyDir(), s.retry)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}

	var days []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, dailyPrefix) || !strings.HasSuffix(name, dailySuffix) {
			continue
		}
		date := strings.TrimSuffix(strings.TrimPrefix(name, dailyPrefix), dailySuffix)
		if _, err := time.Parse(dateLayout, date); err != nil {
			continue
		}
		days = append(days, date)
	}
	metrics.StateHistoryDays.Set(float64(len(days)))
	return days, nil
}

// CleanupHistory drops everything older than retentionHours: daily files
// whose whole day ends at or before the cutoff, and entries in the recent
// window timestamped before it.
func (s *Store) CleanupHistory(retentionHours int) (CleanupResult, error) {
	var result CleanupResult
	if retentionHours <= 0 {
		return result, fmt.Errorf("retention must be positive, got %d hours", retentionHours)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().UTC().Add(-time.Duration(retentionHours) * time.Hour)

	cur, err := s.loadCurrentLocked()
	if err != nil {
		return result, err
	}
	cur.History, result.History = keepSince(cur.History, cutoff, func(e models.HistoryEntry) time.Time { return e.Timestamp })
	cur.Changes, result.Changes = keepSince(cur.Changes, cutoff, func(c models.ChangeEvent) time.Time { return c.Timestamp })
	if result.History > 0 || result.Changes > 0 {
		if err := s.saveCurrentLocked(cur); err != nil {
			return result, err
		}
	}

	days, err := s.historyDaysLocked()
	if err != nil {
		return result, err
	}
	for _, date := range days {
		day, _ := time.Parse(dateLayout, date)
		if day.Add(24 * time.Hour).After(cutoff) {
			continue
		}
		if err := os.Remove(s.dailyPath(date)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			logging.Warn("Failed to remove history file for %s: %v", date, err)
			continue
		}
		result.Files++
	}
	if result.Files > 0 {
		metrics.StateHistoryDays.Set(float64(len(days) - result.Files))
	}

	metrics.StateCleanupRemoved.WithLabelValues("files").Add(float64(result.Files))
	metrics.StateCleanupRemoved.WithLabelValues("history").Add(float64(result.History))
	metrics.StateCleanupRemoved.WithLabelValues("changes").Add(float64(result.Changes))

	logging.Info("History cleanup (%dh): removed %d files, %d history entries, %d changes",
		retentionHours, result.Files, result.History, result.Changes)
	return result, nil
}
