package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"
	"time"

	"thumbsync/internal/filesystem"
	"thumbsync/internal/logging"
	"thumbsync/internal/metrics"
	"thumbsync/internal/models"
)

const (
	configFileName  = "cache-config.json"
	historyDirName  = "history"
	currentFileName = "current.json"
	legacyFileName  = "cache-state.json"
	migratedSuffix  = ".migrated"

	dailyPrefix = "cache-"
	dailySuffix = ".json"
	dateLayout  = "2006-01-02"

	currentVersion = 1
)

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithRetryConfig sets the ESTALE retry policy for reads.
func WithRetryConfig(cfg filesystem.RetryConfig) Option {
	return func(s *Store) { s.retry = cfg }
}

// Store persists engine configuration, the fingerprint table, run
// metadata and history as JSON files under a data directory. Every write
// replaces its file atomically. A Store is safe for concurrent use within
// one process.
type Store struct {
	dataDir string
	now     func() time.Time
	retry   filesystem.RetryConfig

	mu       sync.Mutex
	migrated bool
}

// New returns a store rooted at dataDir. Nothing is read until the first
// operation, which also upgrades a legacy single-file layout.
func New(dataDir string, opts ...Option) *Store {
	s := &Store{
		dataDir: dataDir,
		now:     time.Now,
		retry:   filesystem.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DataDir returns the directory holding the state files.
func (s *Store) DataDir() string {
	return s.dataDir
}

func (s *Store) configPath() string {
	return filepath.Join(s.dataDir, configFileName)
}

func (s *Store) historyDir() string {
	return filepath.Join(s.dataDir, historyDirName)
}

func (s *Store) currentPath() string {
	return filepath.Join(s.historyDir(), currentFileName)
}

func (s *Store) dailyPath(date string) string {
	return filepath.Join(s.historyDir(), dailyPrefix+date+dailySuffix)
}

// readJSON decodes path into v. It reports false without error when the
// file does not exist.
func (s *Store) readJSON(path string, v any) (bool, error) {
	data, err := filesystem.ReadFileWithRetry(path, s.retry)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return true, nil
}

// writeJSON atomically replaces path. kind labels the write metric.
func (s *Store) writeJSON(kind, path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		metrics.StateWritesTotal.WithLabelValues(kind, "error").Inc()
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	if err := filesystem.WriteFileAtomic(path, data, 0o644); err != nil {
		metrics.StateWritesTotal.WithLabelValues(kind, "error").Inc()
		logging.Error("Failed to write state file %s: %v", path, err)
		return err
	}
	metrics.StateWritesTotal.WithLabelValues(kind, "success").Inc()
	return nil
}

// LoadConfig returns the stored configuration, or the defaults when none
// has been saved. Fields missing from the file keep their default values.
func (s *Store) LoadConfig() (models.CacheConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadConfigLocked()
}

func (s *Store) loadConfigLocked() (models.CacheConfig, error) {
	if err := s.ensureMigrated(); err != nil {
		return models.CacheConfig{}, err
	}

	cfg := models.DefaultCacheConfig()
	if _, err := s.readJSON(s.configPath(), &cfg); err != nil {
		return models.CacheConfig{}, err
	}
	cfg.Normalize()
	return cfg, nil
}

// SaveConfig validates and stores cfg.
func (s *Store) SaveConfig(cfg models.CacheConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureMigrated(); err != nil {
		return err
	}
	return s.saveConfigLocked(cfg)
}

func (s *Store) saveConfigLocked(cfg models.CacheConfig) error {
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return err
	}
	return s.writeJSON("config", s.configPath(), cfg)
}

// UpdateConfig applies patch to the stored configuration and returns the
// result. Nothing is written when the patched config is invalid.
func (s *Store) UpdateConfig(patch models.ConfigPatch) (models.CacheConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := s.loadConfigLocked()
	if err != nil {
		return models.CacheConfig{}, err
	}
	patch.Apply(&cfg)
	if err := s.saveConfigLocked(cfg); err != nil {
		return models.CacheConfig{}, err
	}
	logging.Info("Cache configuration updated")
	return cfg, nil
}
