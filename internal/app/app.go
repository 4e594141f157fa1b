// Package app wires the scanner, thumbnail pipeline, state store and
// scheduler together from process configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"thumbsync/internal/filesystem"
	"thumbsync/internal/logging"
	"thumbsync/internal/memory"
	"thumbsync/internal/metrics"
	"thumbsync/internal/models"
	"thumbsync/internal/remote"
	"thumbsync/internal/scanner"
	"thumbsync/internal/scheduler"
	"thumbsync/internal/startup"
	"thumbsync/internal/state"
	"thumbsync/internal/storage"
	"thumbsync/internal/thumbnail"
)

// ErrCacheUnavailable is returned when local storage is selected but the
// cache directory could not be prepared.
var ErrCacheUnavailable = errors.New("local cache directory is not writable")

const statsTimeout = 30 * time.Second

// App holds the wired components.
type App struct {
	Config    *startup.Config
	Store     *state.Store
	Remote    *remote.Client
	Scanner   *scanner.Scanner
	Backend   storage.Backend
	Pipeline  *thumbnail.Pipeline
	Scheduler *scheduler.Scheduler
	Memory    *memory.Monitor

	// BackendLocation describes where thumbnails are written.
	BackendLocation string
	vips            bool

	retentionMu   sync.Mutex
	retentionStop chan struct{}
	retentionDone chan struct{}
}

// New builds every component. The storage backend is chosen by the
// persisted thumbnail config, so a changed backend applies on restart.
// Call Close when done.
func New(ctx context.Context, cfg *startup.Config) (*App, error) {
	filesystem.SetDefaultVolumeResolver(filesystem.NewVolumeResolver(map[string]string{
		"data":  cfg.DataDir,
		"cache": cfg.CacheDir,
	}))
	filesystem.SetObserver(metrics.NewFilesystemObserver())

	store := state.New(cfg.DataDir)
	engine, err := store.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load engine config: %w", err)
	}

	client := remote.New(remote.Config{
		BaseURL:   cfg.Remote.URL,
		Timeout:   cfg.Remote.Timeout,
		Protected: cfg.Remote.Protected,
		APIKey:    cfg.Remote.APIKey,
		UserAgent: userAgent(),
	})
	if !client.Configured() {
		logging.Warn("remote.url is not set; scans will fail until it is configured")
	}

	backend, location, err := NewBackend(ctx, engine.Thumbnails.Storage, cfg, client)
	if err != nil {
		return nil, err
	}

	a := &App{
		Config:          cfg,
		Store:           store,
		Remote:          client,
		Backend:         backend,
		BackendLocation: location,
	}

	if cfg.Thumbnails.Vips {
		if err := thumbnail.InitVips(); err != nil {
			logging.Warn("libvips init failed: %v", err)
		} else {
			a.vips = true
		}
	}

	a.Memory = memory.NewMonitor(memory.DefaultConfig())
	a.Memory.Start()

	a.Pipeline = thumbnail.NewPipeline(thumbnail.Options{
		Resolver:         client,
		Backend:          backend,
		FetchTimeout:     cfg.Thumbnails.FetchTimeout,
		UserAgent:        userAgent(),
		MaxDownloadBytes: cfg.MaxDownloadBytes(),
		Memory:           a.Memory,
	})
	a.Scanner = scanner.New(scanner.Options{
		Lister:      client,
		Concurrency: cfg.Scan.Concurrency,
		ListTimeout: cfg.Scan.ListTimeout,
	})
	a.Scheduler = scheduler.New(scheduler.Options{
		Store:             store,
		Scanner:           a.Scanner,
		Generator:         a.Pipeline,
		Root:              cfg.Scan.Root,
		TickInterval:      cfg.Scan.TickInterval,
		EncodeConcurrency: cfg.Thumbnails.EncodeConcurrency,
	})
	return a, nil
}

func userAgent() string {
	return "thumbsync/" + startup.Version
}

// NewBackend opens the storage backend named by kind.
func NewBackend(ctx context.Context, kind string, cfg *startup.Config, client storage.Uploader) (storage.Backend, string, error) {
	switch kind {
	case models.StorageLocal, "":
		if !cfg.CacheEnabled {
			return nil, "", fmt.Errorf("%w: %s", ErrCacheUnavailable, cfg.CacheDir)
		}
		b, err := storage.NewLocalBackend(cfg.CacheDir)
		if err != nil {
			return nil, "", err
		}
		return b, b.Root(), nil

	case models.StorageRemote:
		if cfg.Remote.URL == "" {
			return nil, "", fmt.Errorf("remote storage: %w", remote.ErrEndpointNotConfigured)
		}
		return storage.NewRemoteBackend(client, cfg.Remote.UploadPrefix),
			cfg.Remote.URL + " (prefix " + cfg.Remote.UploadPrefix + ")", nil

	case models.StorageS3:
		if cfg.S3.Bucket == "" {
			return nil, "", errors.New("s3 storage: s3.bucket is required")
		}
		b, err := storage.NewS3Backend(ctx, storage.S3Config{
			Endpoint:     cfg.S3.Endpoint,
			Region:       cfg.S3.Region,
			Bucket:       cfg.S3.Bucket,
			Prefix:       cfg.S3.Prefix,
			AccessKey:    cfg.S3.AccessKey,
			SecretKey:    cfg.S3.SecretKey,
			UsePathStyle: cfg.S3.UsePathStyle,
		})
		if err != nil {
			return nil, "", err
		}
		return b, "s3://" + cfg.S3.Bucket + "/" + cfg.S3.Prefix, nil

	default:
		return nil, "", fmt.Errorf("unknown storage backend %q", kind)
	}
}

// VipsAvailable reports whether WebP output can be encoded.
func (a *App) VipsAvailable() bool {
	return a.vips
}

// GetStats implements metrics.StatsProvider.
func (a *App) GetStats() metrics.Stats {
	var stats metrics.Stats

	if n, err := a.Store.FingerprintCount(); err == nil {
		stats.FingerprintCount = n
	} else {
		logging.Warn("stats: fingerprint count failed: %v", err)
	}
	if days, err := a.Store.HistoryDays(); err == nil {
		stats.HistoryDays = len(days)
	} else {
		logging.Warn("stats: history days failed: %v", err)
	}

	if local, ok := a.Backend.(*storage.LocalBackend); ok {
		ctx, cancel := context.WithTimeout(context.Background(), statsTimeout)
		defer cancel()
		if count, size, err := local.Stats(ctx); err == nil {
			stats.ThumbnailCount = count
			stats.ThumbnailBytes = size
		} else {
			logging.Warn("stats: cache walk failed: %v", err)
		}
	}
	return stats
}

// ClearThumbnails deletes every stored thumbnail.
func (a *App) ClearThumbnails(ctx context.Context) (int, error) {
	return a.Pipeline.ClearAllThumbnails(ctx)
}

// CleanupHistory applies the persisted retention window. A non-positive
// window disables retention and removes nothing.
func (a *App) CleanupHistory() (state.CleanupResult, error) {
	cfg, err := a.Store.LoadConfig()
	if err != nil {
		return state.CleanupResult{}, err
	}
	if cfg.Retention.HistoryHours <= 0 {
		return state.CleanupResult{}, nil
	}
	return a.Store.CleanupHistory(cfg.Retention.HistoryHours)
}

// Close stops background work. The scheduler is stopped by its owner.
func (a *App) Close() {
	a.StopRetention()
	if a.Memory != nil {
		a.Memory.Stop()
	}
	if a.vips {
		thumbnail.ShutdownVips()
	}
}
