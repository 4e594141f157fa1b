package startup

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"thumbsync/internal/logging"

	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides: scan.root becomes
// THUMBSYNC_SCAN_ROOT.
const EnvPrefix = "THUMBSYNC"

// Config holds all process configuration. Engine settings (schedule,
// sizes, retention) live in the state store instead.
type Config struct {
	DataDir  string `mapstructure:"data_dir"`
	CacheDir string `mapstructure:"cache_dir"`

	Scan       ScanConfig      `mapstructure:"scan"`
	Thumbnails ThumbnailConfig `mapstructure:"thumbnails"`
	Remote     RemoteConfig    `mapstructure:"remote"`
	S3         S3Config        `mapstructure:"s3"`
	Server     ServerSettings  `mapstructure:"server"`
	Log        LogConfig       `mapstructure:"log"`

	// CacheEnabled is set by PrepareDirectories when CacheDir is writable.
	CacheEnabled bool `mapstructure:"-"`
}

// ScanConfig controls the remote walk and the scheduler loop.
type ScanConfig struct {
	Root         string        `mapstructure:"root"`
	Concurrency  int           `mapstructure:"concurrency"`
	ListTimeout  time.Duration `mapstructure:"list_timeout"`
	TickInterval time.Duration `mapstructure:"tick_interval"`
}

// ThumbnailConfig controls fetching and encoding originals.
type ThumbnailConfig struct {
	EncodeConcurrency int           `mapstructure:"encode_concurrency"`
	FetchTimeout      time.Duration `mapstructure:"fetch_timeout"`
	MaxDownloadMB     int64         `mapstructure:"max_download_mb"`
	Vips              bool          `mapstructure:"vips"`
}

// RemoteConfig points at the remote file service.
type RemoteConfig struct {
	URL          string        `mapstructure:"url"`
	Protected    bool          `mapstructure:"protected"`
	APIKey       string        `mapstructure:"api_key"`
	Timeout      time.Duration `mapstructure:"timeout"`
	UploadPrefix string        `mapstructure:"upload_prefix"`
}

// S3Config is used when thumbnails are stored in a bucket.
type S3Config struct {
	Endpoint     string `mapstructure:"endpoint"`
	Region       string `mapstructure:"region"`
	Bucket       string `mapstructure:"bucket"`
	Prefix       string `mapstructure:"prefix"`
	AccessKey    string `mapstructure:"access_key"`
	SecretKey    string `mapstructure:"secret_key"`
	UsePathStyle bool   `mapstructure:"path_style"`
}

// ServerSettings configures the ops listener.
type ServerSettings struct {
	Port            string        `mapstructure:"port"`
	MetricsEnabled  bool          `mapstructure:"metrics"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LogConfig mirrors logging.Config.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// Logging converts to the logging package's config.
func (c LogConfig) Logging() logging.Config {
	return logging.Config{
		Level:      c.Level,
		Format:     c.Format,
		File:       c.File,
		MaxSizeMB:  c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
		MaxAgeDays: c.MaxAgeDays,
	}
}

// SetDefaults registers every key so environment overrides apply on
// Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", "/data")
	v.SetDefault("cache_dir", "/cache")

	v.SetDefault("scan.root", "/")
	v.SetDefault("scan.concurrency", 0)
	v.SetDefault("scan.list_timeout", 30*time.Second)
	v.SetDefault("scan.tick_interval", 60*time.Second)

	v.SetDefault("thumbnails.encode_concurrency", 2)
	v.SetDefault("thumbnails.fetch_timeout", 30*time.Second)
	v.SetDefault("thumbnails.max_download_mb", 200)
	v.SetDefault("thumbnails.vips", true)

	v.SetDefault("remote.url", "")
	v.SetDefault("remote.protected", false)
	v.SetDefault("remote.api_key", "")
	v.SetDefault("remote.timeout", 30*time.Second)
	v.SetDefault("remote.upload_prefix", "thumbnails")

	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.bucket", "")
	v.SetDefault("s3.prefix", "thumbnails")
	v.SetDefault("s3.access_key", "")
	v.SetDefault("s3.secret_key", "")
	v.SetDefault("s3.path_style", false)

	v.SetDefault("server.port", "8080")
	v.SetDefault("server.metrics", true)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	v.SetDefault("log.level", "")
	v.SetDefault("log.format", "")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 50)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 14)
}

// NewViper returns a viper instance with defaults and THUMBSYNC_*
// environment overrides.
func NewViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// ReadConfigFile loads path, or searches for thumbsync.{yaml,toml,json}
// in the working directory and /etc/thumbsync when path is empty. A
// missing file is only an error when path was given.
func ReadConfigFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("thumbsync")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/thumbsync")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// LoadConfig decodes and validates the process configuration.
func LoadConfig(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	var err error
	if cfg.DataDir, err = filepath.Abs(cfg.DataDir); err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if cfg.CacheDir, err = filepath.Abs(cfg.CacheDir); err != nil {
		return nil, fmt.Errorf("failed to resolve cache directory path: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings that would stall the scheduler or listener.
func (c *Config) Validate() error {
	var errs []error
	positive := map[string]time.Duration{
		"scan.list_timeout":        c.Scan.ListTimeout,
		"scan.tick_interval":       c.Scan.TickInterval,
		"thumbnails.fetch_timeout": c.Thumbnails.FetchTimeout,
		"remote.timeout":           c.Remote.Timeout,
		"server.shutdown_timeout":  c.Server.ShutdownTimeout,
	}
	for _, key := range sortedKeys(positive) {
		if positive[key] <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %v", key, positive[key]))
		}
	}
	if c.Scan.Concurrency < 0 {
		errs = append(errs, fmt.Errorf("scan.concurrency must not be negative"))
	}
	if c.Thumbnails.EncodeConcurrency < 1 {
		errs = append(errs, fmt.Errorf("thumbnails.encode_concurrency must be at least 1"))
	}
	if c.Thumbnails.MaxDownloadMB < 1 {
		errs = append(errs, fmt.Errorf("thumbnails.max_download_mb must be at least 1"))
	}
	if c.Server.Port == "" {
		errs = append(errs, fmt.Errorf("server.port is required"))
	}
	return errors.Join(errs...)
}

// MaxDownloadBytes converts the download cap to bytes.
func (c *Config) MaxDownloadBytes() int64 {
	return c.Thumbnails.MaxDownloadMB << 20
}

// LogConfiguration prints the CONFIGURATION section. Secrets are masked.
func LogConfiguration(cfg *Config) {
	section("CONFIGURATION")
	logging.Info("  DATA_DIR:            %s", cfg.DataDir)
	logging.Info("  CACHE_DIR:           %s", cfg.CacheDir)
	logging.Info("  SCAN_ROOT:           %s", cfg.Scan.Root)
	logging.Info("  SCAN_CONCURRENCY:    %s", orAuto(cfg.Scan.Concurrency))
	logging.Info("  SCAN_LIST_TIMEOUT:   %v", cfg.Scan.ListTimeout)
	logging.Info("  SCAN_TICK_INTERVAL:  %v", cfg.Scan.TickInterval)
	logging.Info("  ENCODE_CONCURRENCY:  %d", cfg.Thumbnails.EncodeConcurrency)
	logging.Info("  FETCH_TIMEOUT:       %v", cfg.Thumbnails.FetchTimeout)
	logging.Info("  MAX_DOWNLOAD_MB:     %d", cfg.Thumbnails.MaxDownloadMB)
	logging.Info("  VIPS:                %s", enabledString(cfg.Thumbnails.Vips))
	logging.Info("  REMOTE_URL:          %s", orUnset(cfg.Remote.URL))
	logging.Info("  REMOTE_PROTECTED:    %v", cfg.Remote.Protected)
	logging.Info("  REMOTE_API_KEY:      %s", mask(cfg.Remote.APIKey))
	logging.Info("  S3_BUCKET:           %s", orUnset(cfg.S3.Bucket))
	logging.Info("  S3_SECRET_KEY:       %s", mask(cfg.S3.SecretKey))
	logging.Info("  SERVER_PORT:         %s", cfg.Server.Port)
	logging.Info("  METRICS:             %s", enabledString(cfg.Server.MetricsEnabled))
	logging.Info("  LOG_LEVEL:           %s", logging.GetLevel())
	if cfg.Log.File != "" {
		logging.Info("  LOG_FILE:            %s", cfg.Log.File)
	}
}

func orAuto(n int) string {
	if n <= 0 {
		return "auto"
	}
	return fmt.Sprintf("%d", n)
}

func orUnset(s string) string {
	if s == "" {
		return "(not set)"
	}
	return s
}

func mask(secret string) string {
	if secret == "" {
		return "(not set)"
	}
	return "********"
}
