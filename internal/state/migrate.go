package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"thumbsync/internal/filesystem"
	"thumbsync/internal/logging"
	"thumbsync/internal/models"
)

// legacyState is the single-file layout used before the split into
// config, current and daily files. Fingerprints were written either as
// a path-keyed object or as an array.
type legacyState struct {
	Config       *models.CacheConfig   `json:"config"`
	Fingerprints json.RawMessage       `json:"fingerprints"`
	LastRun      models.ScanRun        `json:"lastRun"`
	History      []models.HistoryEntry `json:"history"`
	Changes      []models.ChangeEvent  `json:"changes"`
}

func (l *legacyState) fingerprints() (map[string]models.FileFingerprint, error) {
	table := make(map[string]models.FileFingerprint)
	if len(l.Fingerprints) == 0 || string(l.Fingerprints) == "null" {
		return table, nil
	}
	if err := json.Unmarshal(l.Fingerprints, &table); err == nil {
		for path, fp := range table {
			if fp.Path == "" {
				fp.Path = path
				table[path] = fp
			}
		}
		return table, nil
	}

	var list []models.FileFingerprint
	if err := json.Unmarshal(l.Fingerprints, &list); err != nil {
		return nil, fmt.Errorf("parse legacy fingerprints: %w", err)
	}
	for _, fp := range list {
		table[fp.Path] = fp
	}
	return table, nil
}

func (s *Store) legacyPath() string {
	return filepath.Join(s.dataDir, legacyFileName)
}

// ensureMigrated splits a legacy cache-state.json into the current
// layout once per process. Files that already exist in the new layout
// are left alone, and daily appends skip known IDs, so an interrupted
// migration can simply run again. Callers hold s.mu.
func (s *Store) ensureMigrated() error {
	if s.migrated {
		return nil
	}

	legacy := &legacyState{}
	found, err := s.readJSON(s.legacyPath(), legacy)
	if err != nil {
		return fmt.Errorf("legacy state: %w", err)
	}
	if !found {
		s.migrated = true
		return nil
	}

	logging.Info("Migrating legacy state file %s", s.legacyPath())

	if legacy.Config != nil && !s.exists(s.configPath()) {
		cfg := *legacy.Config
		cfg.Normalize()
		if err := s.writeJSON("config", s.configPath(), cfg); err != nil {
			return err
		}
	}

	if !s.exists(s.currentPath()) {
		table, err := legacy.fingerprints()
		if err != nil {
			return err
		}
		maxRecent := models.DefaultMaxRecentEntries
		if legacy.Config != nil && legacy.Config.Retention.MaxRecentEntries > 0 {
			maxRecent = legacy.Config.Retention.MaxRecentEntries
		}
		cur := &currentState{
			Fingerprints: table,
			LastRun:      legacy.LastRun,
			History:      capTail(legacy.History, maxRecent),
			Changes:      capTail(legacy.Changes, maxRecent),
		}
		if err := s.saveCurrentLocked(cur); err != nil {
			return err
		}
	}

	if err := s.appendDailyLocked(legacy.History, legacy.Changes); err != nil {
		return err
	}

	if err := os.Rename(s.legacyPath(), s.legacyPath()+migratedSuffix); err != nil {
		return fmt.Errorf("retire legacy state: %w", err)
	}

	s.migrated = true
	logging.Info("Legacy state migrated: %d history entries, %d changes", len(legacy.History), len(legacy.Changes))
	return nil
}

func (s *Store) exists(path string) bool {
	_, err := filesystem.StatWithRetry(path, s.retry)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		logging.Warn("Failed to stat %s: %v", path, err)
	}
	return err == nil
}
