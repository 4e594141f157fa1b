package scheduler

import (
	"context"
	"testing"
	"time"
	_ "time/tzdata"

	"thumbsync/internal/models"
)

func intPtr(v int) *int { return &v }

func TestActiveInterval(t *testing.T) {
	base := models.SchedulerConfig{
		Enabled:   true,
		WorkHours: models.WorkHours{StartHour: 8, EndHour: 18, IntervalMinutes: 30},
		OffHours:  models.OffHours{Enabled: true, IntervalMinutes: intPtr(240)},
		Timezone:  "UTC",
	}

	tests := []struct {
		name   string
		mutate func(*models.SchedulerConfig)
		hour   int
		want   time.Duration
		wantOK bool
	}{
		{"start hour is inclusive", nil, 8, 30 * time.Minute, true},
		{"end hour is exclusive", nil, 18, 240 * time.Minute, true},
		{"off hours disabled", func(c *models.SchedulerConfig) { c.OffHours.Enabled = false }, 3, 0, false},
		{"off hours without interval", func(c *models.SchedulerConfig) { c.OffHours.IntervalMinutes = nil }, 3, 0, false},
		{"overnight window inside", func(c *models.SchedulerConfig) { c.WorkHours.StartHour, c.WorkHours.EndHour = 22, 6 }, 2, 30 * time.Minute, true},
		{"overnight window outside", func(c *models.SchedulerConfig) { c.WorkHours.StartHour, c.WorkHours.EndHour = 22, 6 }, 12, 240 * time.Minute, true},
		{"timezone shifts the hour", func(c *models.SchedulerConfig) { c.Timezone = "America/New_York" }, 13, 30 * time.Minute, true},
		{"timezone outside window", func(c *models.SchedulerConfig) { c.Timezone = "America/New_York" }, 23, 240 * time.Minute, true},
		{"unknown timezone uses UTC", func(c *models.SchedulerConfig) { c.Timezone = "Mars/Olympus" }, 9, 30 * time.Minute, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			cfg.OffHours.IntervalMinutes = intPtr(240)
			if tt.mutate != nil {
				tt.mutate(&cfg)
			}
			// June: New York is UTC-4.
			now := time.Date(2024, 6, 10, tt.hour, 15, 0, 0, time.UTC)
			got, ok := ActiveInterval(cfg, now)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("ActiveInterval at %02d:15 UTC = %v, %v, want %v, %v", tt.hour, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestTick(t *testing.T) {
	now := time.Date(2024, 6, 10, 10, 0, 0, 0, time.UTC)
	tenMinutesAgo := now.Add(-10 * time.Minute)
	hourAgo := now.Add(-time.Hour)

	tests := []struct {
		name    string
		hour    int
		enabled bool
		offOn   bool
		lastRun *time.Time
		want    Decision
	}{
		{"disabled", 10, false, false, nil, DecisionDisabled},
		{"never run", 10, true, false, nil, DecisionRun},
		{"ran recently", 10, true, false, &tenMinutesAgo, DecisionNotDue},
		{"interval elapsed", 10, true, false, &hourAgo, DecisionRun},
		{"outside window", 22, true, false, nil, DecisionIdle},
		{"off hours enabled but not due", 22, true, true, &hourAgo, DecisionNotDue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			at := time.Date(2024, 6, 10, tt.hour, 0, 0, 0, time.UTC)
			store := newMemStore()
			store.cfg.Scheduler.Enabled = tt.enabled
			store.cfg.Scheduler.OffHours.Enabled = tt.offOn
			if tt.lastRun != nil {
				last := *tt.lastRun
				if tt.hour != 10 {
					last = last.Add(time.Duration(tt.hour-10) * time.Hour)
				}
				store.lastRun.LastRunAt = &last
			}
			gen := &fakeGenerator{}
			s := New(Options{
				Store:     store,
				Scanner:   staticScan(fp("a.jpg", "h")),
				Generator: gen,
				Now:       func() time.Time { return at },
			})

			if got := s.Tick(context.Background()); got != tt.want {
				t.Errorf("Tick() = %s, want %s", got, tt.want)
			}

			ran := store.commits > 0
			if ran != (tt.want == DecisionRun) {
				t.Errorf("Expected scan ran = %v, got %v", tt.want == DecisionRun, ran)
			}
		})
	}
}

func TestTickSkipsWhileRunning(t *testing.T) {
	store := newMemStore()
	s := New(Options{Store: store, Scanner: staticScan(), Generator: &fakeGenerator{}})

	if !s.tryStart() {
		t.Fatal("Failed to take the guard")
	}
	if got := s.Tick(context.Background()); got != DecisionBusy {
		t.Errorf("Tick() = %s, want busy", got)
	}
	s.finish()

	if store.commits != 0 {
		t.Errorf("Expected no scan while busy, got %d commits", store.commits)
	}
}

func TestStatus(t *testing.T) {
	now := time.Date(2024, 6, 10, 10, 0, 0, 0, time.UTC)
	store := newMemStore()
	s := New(Options{
		Store:     store,
		Scanner:   staticScan(),
		Generator: &fakeGenerator{},
		Now:       func() time.Time { return now },
	})

	before := s.Status()
	if before.IsRunning || before.LastCheckTime != nil {
		t.Errorf("Unexpected initial status %+v", before)
	}
	if !before.IntervalActive || before.IntervalMinutes != 30 {
		t.Errorf("Expected the work-hours interval to be active, got %+v", before)
	}

	if r := s.RunScan(context.Background()); !r.Success {
		t.Fatalf("RunScan failed: %+v", r)
	}
	after := s.Status()
	if after.LastCheckTime == nil || !after.LastCheckTime.Equal(now) {
		t.Errorf("Expected LastCheckTime %v, got %+v", now, after.LastCheckTime)
	}
}
