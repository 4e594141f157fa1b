package models

import (
	"fmt"
	"slices"
	"time"
)

// WorkHoursPatch updates individual WorkHours fields.
type WorkHoursPatch struct {
	StartHour       *int `json:"startHour,omitempty"`
	EndHour         *int `json:"endHour,omitempty"`
	IntervalMinutes *int `json:"intervalMinutes,omitempty"`
}

// OffHoursPatch updates individual OffHours fields. ClearInterval sets
// IntervalMinutes back to null.
type OffHoursPatch struct {
	Enabled         *bool `json:"enabled,omitempty"`
	IntervalMinutes *int  `json:"intervalMinutes,omitempty"`
	ClearInterval   bool  `json:"clearInterval,omitempty"`
}

// SchedulerPatch updates individual SchedulerConfig fields. A nil field
// leaves the current value unchanged.
type SchedulerPatch struct {
	Enabled   *bool           `json:"enabled,omitempty"`
	WorkHours *WorkHoursPatch `json:"workHours,omitempty"`
	OffHours  *OffHoursPatch  `json:"offHours,omitempty"`
	Timezone  *string         `json:"timezone,omitempty"`
}

// ThumbnailPatch updates ThumbnailConfig. Sizes replaces the whole list.
type ThumbnailPatch struct {
	Sizes   *[]SizeProfile `json:"sizes,omitempty"`
	Format  *string        `json:"format,omitempty"`
	Storage *string        `json:"storage,omitempty"`
}

// NotificationPatch updates EmailNotificationConfig. Recipients replaces
// the whole list.
type NotificationPatch struct {
	Enabled    *bool     `json:"enabled,omitempty"`
	Recipients *[]string `json:"recipients,omitempty"`
	OnError    *bool     `json:"onError,omitempty"`
	OnChanges  *bool     `json:"onChanges,omitempty"`
	SMTPHost   *string   `json:"smtpHost,omitempty"`
	SMTPPort   *int      `json:"smtpPort,omitempty"`
	From       *string   `json:"from,omitempty"`
}

// RetentionPatch updates RetentionConfig.
type RetentionPatch struct {
	HistoryHours     *int `json:"historyHours,omitempty"`
	MaxRecentEntries *int `json:"maxRecentEntries,omitempty"`
}

// ConfigPatch groups the per-section patches.
type ConfigPatch struct {
	Scheduler     *SchedulerPatch    `json:"scheduler,omitempty"`
	Thumbnails    *ThumbnailPatch    `json:"thumbnails,omitempty"`
	Notifications *NotificationPatch `json:"notifications,omitempty"`
	Retention     *RetentionPatch    `json:"retention,omitempty"`
}

func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

// Apply copies every non-nil field of p into c.
func (p *SchedulerPatch) Apply(c *SchedulerConfig) {
	if p == nil {
		return
	}
	set(&c.Enabled, p.Enabled)
	set(&c.Timezone, p.Timezone)
	if wh := p.WorkHours; wh != nil {
		set(&c.WorkHours.StartHour, wh.StartHour)
		set(&c.WorkHours.EndHour, wh.EndHour)
		set(&c.WorkHours.IntervalMinutes, wh.IntervalMinutes)
	}
	if oh := p.OffHours; oh != nil {
		set(&c.OffHours.Enabled, oh.Enabled)
		if oh.ClearInterval {
			c.OffHours.IntervalMinutes = nil
		} else if oh.IntervalMinutes != nil {
			v := *oh.IntervalMinutes
			c.OffHours.IntervalMinutes = &v
		}
	}
}

// Apply copies every non-nil field of p into c.
func (p *ThumbnailPatch) Apply(c *ThumbnailConfig) {
	if p == nil {
		return
	}
	if p.Sizes != nil {
		c.Sizes = slices.Clone(*p.Sizes)
	}
	set(&c.Format, p.Format)
	set(&c.Storage, p.Storage)
}

// Apply copies every non-nil field of p into c.
func (p *NotificationPatch) Apply(c *EmailNotificationConfig) {
	if p == nil {
		return
	}
	set(&c.Enabled, p.Enabled)
	if p.Recipients != nil {
		c.Recipients = slices.Clone(*p.Recipients)
	}
	set(&c.OnError, p.OnError)
	set(&c.OnChanges, p.OnChanges)
	set(&c.SMTPHost, p.SMTPHost)
	set(&c.SMTPPort, p.SMTPPort)
	set(&c.From, p.From)
}

// Apply copies every non-nil field of p into c.
func (p *RetentionPatch) Apply(c *RetentionConfig) {
	if p == nil {
		return
	}
	set(&c.HistoryHours, p.HistoryHours)
	set(&c.MaxRecentEntries, p.MaxRecentEntries)
}

// Apply applies each section patch to c.
func (p ConfigPatch) Apply(c *CacheConfig) {
	p.Scheduler.Apply(&c.Scheduler)
	p.Thumbnails.Apply(&c.Thumbnails)
	p.Notifications.Apply(&c.Notifications)
	p.Retention.Apply(&c.Retention)
}

// Validate reports the first invalid field in c.
func (c CacheConfig) Validate() error {
	s := c.Scheduler
	if s.WorkHours.StartHour < 0 || s.WorkHours.StartHour > 23 {
		return fmt.Errorf("scheduler.workHours.startHour must be 0-23, got %d", s.WorkHours.StartHour)
	}
	if s.WorkHours.EndHour < 0 || s.WorkHours.EndHour > 24 {
		return fmt.Errorf("scheduler.workHours.endHour must be 0-24, got %d", s.WorkHours.EndHour)
	}
	if s.WorkHours.IntervalMinutes <= 0 {
		return fmt.Errorf("scheduler.workHours.intervalMinutes must be positive, got %d", s.WorkHours.IntervalMinutes)
	}
	if s.OffHours.IntervalMinutes != nil && *s.OffHours.IntervalMinutes <= 0 {
		return fmt.Errorf("scheduler.offHours.intervalMinutes must be positive, got %d", *s.OffHours.IntervalMinutes)
	}
	if s.Timezone != "" {
		if _, err := time.LoadLocation(s.Timezone); err != nil {
			return fmt.Errorf("scheduler.timezone: %w", err)
		}
	}

	t := c.Thumbnails
	switch t.Format {
	case FormatJPEG, FormatPNG, FormatWebP, "":
	default:
		return fmt.Errorf("thumbnails.format %q is not one of jpeg, png, webp", t.Format)
	}
	switch t.Storage {
	case StorageLocal, StorageRemote, StorageS3, "":
	default:
		return fmt.Errorf("thumbnails.storage %q is not one of local, remote, s3", t.Storage)
	}
	seen := make(map[string]bool, len(t.Sizes))
	for _, size := range t.Sizes {
		if size.Name == "" {
			return fmt.Errorf("thumbnails.sizes: name is required")
		}
		if seen[size.Name] {
			return fmt.Errorf("thumbnails.sizes: duplicate name %q", size.Name)
		}
		seen[size.Name] = true
		if size.Width <= 0 || size.Height <= 0 {
			return fmt.Errorf("thumbnails.sizes[%s]: width and height must be positive", size.Name)
		}
		if size.Quality < 0 || size.Quality > 100 {
			return fmt.Errorf("thumbnails.sizes[%s]: quality must be 0-100", size.Name)
		}
	}

	if c.Retention.HistoryHours < 0 {
		return fmt.Errorf("retention.historyHours must not be negative")
	}
	return nil
}
