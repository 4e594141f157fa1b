package app

import (
	"time"

	"thumbsync/internal/logging"
)

// DefaultRetentionInterval is how often StartRetention prunes history.
const DefaultRetentionInterval = time.Hour

// StartRetention prunes expired history immediately and then every
// interval until StopRetention or Close is called.
func (a *App) StartRetention(interval time.Duration) {
	if interval <= 0 {
		interval = DefaultRetentionInterval
	}
	a.retentionMu.Lock()
	defer a.retentionMu.Unlock()
	if a.retentionStop != nil {
		return
	}
	a.retentionStop = make(chan struct{})
	a.retentionDone = make(chan struct{})
	go a.retentionLoop(interval, a.retentionStop, a.retentionDone)
}

// StopRetention stops the retention loop and waits for it to exit.
func (a *App) StopRetention() {
	a.retentionMu.Lock()
	stop, done := a.retentionStop, a.retentionDone
	a.retentionStop, a.retentionDone = nil, nil
	a.retentionMu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}

func (a *App) retentionLoop(interval time.Duration, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	a.applyRetention()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.applyRetention()
		case <-stop:
			return
		}
	}
}

func (a *App) applyRetention() {
	result, err := a.CleanupHistory()
	if err != nil {
		logging.Warn("History retention failed: %v", err)
		return
	}
	if result.Files > 0 || result.History > 0 || result.Changes > 0 {
		logging.Info("History retention removed %d daily files, %d history entries and %d changes",
			result.Files, result.History, result.Changes)
	}
}
