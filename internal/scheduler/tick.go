package scheduler

import (
	"context"
	"time"

	"thumbsync/internal/logging"
	"thumbsync/internal/metrics"
	"thumbsync/internal/models"
)

// Decision is the outcome of one Tick.
type Decision string

const (
	DecisionRun      Decision = "run"
	DecisionNotDue   Decision = "not_due"
	DecisionDisabled Decision = "disabled"
	DecisionIdle     Decision = "idle"
	DecisionBusy     Decision = "busy"
	DecisionError    Decision = "error"
)

// Status is a snapshot for operators.
type Status struct {
	IsRunning bool `json:"isRunning"`
	// LastCheckTime is when the last scan completed.
	LastCheckTime *time.Time `json:"lastCheckTime"`
	// IntervalActive is true when the schedule has a polling interval
	// for the current hour.
	IntervalActive  bool `json:"intervalActive"`
	IntervalMinutes int  `json:"intervalMinutes,omitempty"`
	// LastTick is when the schedule was last evaluated.
	LastTick *time.Time `json:"lastTick,omitempty"`
}

// ActiveInterval returns the polling interval that applies at now, or
// false when no window covers it. Work hours are [StartHour, EndHour) in
// the configured timezone; a window with StartHour > EndHour wraps past
// midnight. An unknown timezone falls back to UTC.
func ActiveInterval(cfg models.SchedulerConfig, now time.Time) (time.Duration, bool) {
	loc := time.UTC
	if cfg.Timezone != "" {
		if l, err := time.LoadLocation(cfg.Timezone); err == nil {
			loc = l
		} else {
			logging.Warn("Unknown scheduler timezone %q, using UTC", cfg.Timezone)
		}
	}

	hour := now.In(loc).Hour()
	wh := cfg.WorkHours
	inWork := false
	switch {
	case wh.StartHour < wh.EndHour:
		inWork = hour >= wh.StartHour && hour < wh.EndHour
	case wh.StartHour > wh.EndHour:
		inWork = hour >= wh.StartHour || hour < wh.EndHour
	}

	if inWork && wh.IntervalMinutes > 0 {
		return time.Duration(wh.IntervalMinutes) * time.Minute, true
	}
	if !inWork && cfg.OffHours.Enabled && cfg.OffHours.IntervalMinutes != nil && *cfg.OffHours.IntervalMinutes > 0 {
		return time.Duration(*cfg.OffHours.IntervalMinutes) * time.Minute, true
	}
	return 0, false
}

// Tick runs a scan if the schedule says one is due. It never waits for
// a running scan.
func (s *Scheduler) Tick(ctx context.Context) Decision {
	decision := s.tick(ctx)
	metrics.SchedulerTicksTotal.WithLabelValues(string(decision)).Inc()
	return decision
}

func (s *Scheduler) tick(ctx context.Context) Decision {
	now := s.now()
	s.runMu.Lock()
	s.lastTick = now
	s.runMu.Unlock()

	if s.IsRunning() {
		logging.Debug("Tick skipped: scan already running")
		return DecisionBusy
	}

	cfg, err := s.store.LoadConfig()
	if err != nil {
		logging.Error("Tick: failed to load config: %v", err)
		return DecisionError
	}
	if !cfg.Scheduler.Enabled {
		return DecisionDisabled
	}

	interval, ok := ActiveInterval(cfg.Scheduler, now)
	if !ok {
		return DecisionIdle
	}

	last, err := s.store.LastRun()
	if err != nil {
		logging.Error("Tick: failed to load last run: %v", err)
		return DecisionError
	}
	if last.LastRunAt != nil && now.Sub(*last.LastRunAt) < interval {
		return DecisionNotDue
	}

	logging.Info("Scheduled scan due (interval %v)", interval)
	result := s.RunScan(ctx)
	if result.AlreadyRunning {
		return DecisionBusy
	}
	return DecisionRun
}

// Status reports the guard state, the last completed scan and whether
// the schedule is active now.
func (s *Scheduler) Status() Status {
	s.runMu.Lock()
	status := Status{IsRunning: s.isRunning}
	if !s.lastTick.IsZero() {
		t := s.lastTick
		status.LastTick = &t
	}
	s.runMu.Unlock()

	if last, err := s.store.LastRun(); err != nil {
		logging.Warn("Status: failed to load last run: %v", err)
	} else {
		status.LastCheckTime = last.LastRunAt
	}

	cfg, err := s.store.LoadConfig()
	if err != nil {
		logging.Warn("Status: failed to load config: %v", err)
		return status
	}
	if cfg.Scheduler.Enabled {
		if interval, ok := ActiveInterval(cfg.Scheduler, s.now()); ok {
			status.IntervalActive = true
			status.IntervalMinutes = int(interval / time.Minute)
		}
	}
	return status
}
