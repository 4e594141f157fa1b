package startup

import (
	"fmt"
	"os"
	"path/filepath"

	"thumbsync/internal/logging"
)

// PrepareDirectories creates the data directory, which must be writable,
// and the cache directory, which disables local thumbnail storage when it
// is not.
func PrepareDirectories(cfg *Config) error {
	section("DIRECTORY SETUP")
	logging.Info("  Data directory (absolute):  %s", cfg.DataDir)
	logging.Info("  Cache directory (absolute): %s", cfg.CacheDir)

	if err := ensureDirectory(cfg.DataDir, "data"); err != nil {
		return fmt.Errorf("data directory error: %w", err)
	}
	logging.Debug("  Testing data directory write access...")
	if err := testWriteAccess(cfg.DataDir); err != nil {
		return fmt.Errorf("data directory is not writable (required for state): %w", err)
	}
	logging.Info("  [OK] Data directory is writable")

	cfg.CacheEnabled = setupOptionalDir(cfg.CacheDir, "cache")

	logging.Info("")
	logging.Info("  Feature availability:")
	logging.Info("    State store:  ENABLED (required)")
	logging.Info("    Local cache:  %s", enabledString(cfg.CacheEnabled))
	logging.Info("    Metrics:      %s", enabledString(cfg.Server.MetricsEnabled))
	return nil
}

func setupOptionalDir(path, name string) bool {
	logging.Debug("  Setting up %s directory: %s", name, path)
	if err := os.MkdirAll(path, 0o755); err != nil {
		logging.Warn("    Failed to create %s directory: %v", name, err)
		logging.Warn("    %s will be disabled", name)
		return false
	}
	if err := testWriteAccess(path); err != nil {
		logging.Warn("    %s directory is not writable: %v", name, err)
		logging.Warn("    %s will be disabled", name)
		return false
	}
	logging.Debug("    [OK] %s directory ready", name)
	return true
}

func ensureDirectory(path, name string) error {
	logging.Debug("  Checking %s directory: %s", name, path)

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		logging.Debug("    Directory does not exist, creating...")
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		logging.Debug("    [OK] Created directory: %s", path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}

	logging.Debug("    [OK] Directory exists")
	return nil
}

func testWriteAccess(dir string) error {
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(testFile); err != nil {
		// write access was still confirmed
		logging.Warn("failed to remove write test file %s: %v", testFile, err)
	}
	return nil
}
