// Package models holds the data types shared by the scanner, change
// detector, thumbnail pipeline, scheduler and state store. Field names
// follow the JSON written to the state files.
package models

import "time"

// FileFingerprint identifies the observable state of one remote image.
// Hash derives from name, size and LastModified only.
type FileFingerprint struct {
	Path          string    `json:"path"`
	Hash          string    `json:"hash"`
	Size          int64     `json:"size"`
	LastModified  string    `json:"lastModified"`
	LastCheckedAt time.Time `json:"lastCheckedAt"`
}

// ChangeType classifies a ChangeEvent.
type ChangeType string

const (
	ChangeAdded    ChangeType = "added"
	ChangeModified ChangeType = "modified"
	ChangeDeleted  ChangeType = "deleted"
)

// ChangeEvent records one difference between two fingerprint tables.
type ChangeEvent struct {
	ID        string     `json:"id"`
	Timestamp time.Time  `json:"timestamp"`
	Type      ChangeType `json:"type"`
	Path      string     `json:"path"`
	OldHash   string     `json:"oldHash,omitempty"`
	NewHash   string     `json:"newHash,omitempty"`
	Details   string     `json:"details,omitempty"`
}

// ScanRun is the last-run metadata. Only LastRunAt matters to scheduling.
type ScanRun struct {
	LastRunAt       *time.Time `json:"lastRunAt,omitempty"`
	LastDurationMs  int64      `json:"lastDurationMs"`
	LastChangeCount int        `json:"lastChangeCount"`
}

// HistoryAction names a scheduler milestone.
type HistoryAction string

const (
	ActionScanStarted         HistoryAction = "scan_started"
	ActionScanCompleted       HistoryAction = "scan_completed"
	ActionChangesDetected     HistoryAction = "changes_detected"
	ActionThumbnailsGenerated HistoryAction = "thumbnails_generated"
	ActionError               HistoryAction = "error"
)

// HistoryEntry is one line of the operator-facing history feed.
type HistoryEntry struct {
	ID            string        `json:"id"`
	Timestamp     time.Time     `json:"timestamp"`
	Action        HistoryAction `json:"action"`
	Details       string        `json:"details"`
	DurationMs    *int64        `json:"durationMs,omitempty"`
	AffectedPaths []string      `json:"affectedPaths,omitempty"`
}

// WorkHours is the polling window for business hours. StartHour is
// inclusive and EndHour exclusive, both 0-23 in the scheduler timezone.
type WorkHours struct {
	StartHour       int `json:"startHour"`
	EndHour         int `json:"endHour"`
	IntervalMinutes int `json:"intervalMinutes"`
}

// OffHours is the polling window outside WorkHours. A nil interval with
// Enabled set behaves as disabled.
type OffHours struct {
	Enabled         bool `json:"enabled"`
	IntervalMinutes *int `json:"intervalMinutes"`
}

// SchedulerConfig controls when automatic scans run.
type SchedulerConfig struct {
	Enabled   bool      `json:"enabled"`
	WorkHours WorkHours `json:"workHours"`
	OffHours  OffHours  `json:"offHours"`
	Timezone  string    `json:"timezone"`
}

// SizeProfile is one thumbnail rendition.
type SizeProfile struct {
	Name    string `json:"name"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	Quality int    `json:"quality"`
}

// Thumbnail output formats.
const (
	FormatJPEG = "jpeg"
	FormatPNG  = "png"
	FormatWebP = "webp"
)

// Storage backend names.
const (
	StorageLocal  = "local"
	StorageRemote = "remote"
	StorageS3     = "s3"
)

// ThumbnailConfig controls the renditions produced for each original.
type ThumbnailConfig struct {
	Sizes   []SizeProfile `json:"sizes"`
	Format  string        `json:"format"`
	Storage string        `json:"storage"`
}

// EmailNotificationConfig is persisted for an external notifier; the
// engine never sends mail itself.
type EmailNotificationConfig struct {
	Enabled    bool     `json:"enabled"`
	Recipients []string `json:"recipients"`
	OnError    bool     `json:"onError"`
	OnChanges  bool     `json:"onChanges"`
	SMTPHost   string   `json:"smtpHost,omitempty"`
	SMTPPort   int      `json:"smtpPort,omitempty"`
	From       string   `json:"from,omitempty"`
}

// RetentionConfig bounds how much history is kept.
type RetentionConfig struct {
	HistoryHours     int `json:"historyHours"`
	MaxRecentEntries int `json:"maxRecentEntries"`
}

// CacheConfig is the full engine configuration stored in cache-config.json.
type CacheConfig struct {
	Scheduler     SchedulerConfig         `json:"scheduler"`
	Thumbnails    ThumbnailConfig         `json:"thumbnails"`
	Notifications EmailNotificationConfig `json:"notifications"`
	Retention     RetentionConfig         `json:"retention"`
}

// DefaultMaxRecentEntries caps the recent history and change windows.
const DefaultMaxRecentEntries = 500

// DefaultCacheConfig returns the configuration used before any is saved.
func DefaultCacheConfig() CacheConfig {
	offHours := 240
	return CacheConfig{
		Scheduler: SchedulerConfig{
			Enabled: true,
			WorkHours: WorkHours{
				StartHour:       8,
				EndHour:         18,
				IntervalMinutes: 30,
			},
			OffHours: OffHours{
				Enabled:         false,
				IntervalMinutes: &offHours,
			},
			Timezone: "UTC",
		},
		Thumbnails: ThumbnailConfig{
			Sizes: []SizeProfile{
				{Name: "small", Width: 150, Height: 150, Quality: 80},
				{Name: "medium", Width: 400, Height: 400, Quality: 85},
				{Name: "large", Width: 1200, Height: 1200, Quality: 90},
			},
			Format:  FormatJPEG,
			Storage: StorageLocal,
		},
		Notifications: EmailNotificationConfig{
			OnError: true,
		},
		Retention: RetentionConfig{
			HistoryHours:     24 * 30,
			MaxRecentEntries: DefaultMaxRecentEntries,
		},
	}
}

// Normalize fills zero values that would otherwise break scheduling or
// rendering with their defaults.
func (c *CacheConfig) Normalize() {
	def := DefaultCacheConfig()
	if c.Scheduler.Timezone == "" {
		c.Scheduler.Timezone = def.Scheduler.Timezone
	}
	if c.Thumbnails.Format == "" {
		c.Thumbnails.Format = def.Thumbnails.Format
	}
	if c.Thumbnails.Storage == "" {
		c.Thumbnails.Storage = def.Thumbnails.Storage
	}
	if len(c.Thumbnails.Sizes) == 0 {
		c.Thumbnails.Sizes = def.Thumbnails.Sizes
	}
	if c.Retention.MaxRecentEntries <= 0 {
		c.Retention.MaxRecentEntries = DefaultMaxRecentEntries
	}
}
