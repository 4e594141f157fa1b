package server

import (
	"net/http"
	"runtime"
	"time"

	"thumbsync/internal/logging"
	"thumbsync/internal/models"
	"thumbsync/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusStarting = "starting"
	statusDegraded = "degraded"
)

// HealthResponse contains the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Ready     bool   `json:"ready"`
	Version   string `json:"version"`
	Uptime    string `json:"uptime"`
	Scanning  bool   `json:"scanning"`
	LastScan  string `json:"lastScan,omitempty"`
	LastError string `json:"lastError,omitempty"`

	TrackedFiles int `json:"trackedFiles"`

	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`
}

// HealthCheck reports overall health. A most recent history entry of
// type error marks the service degraded but still returns 200.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ready := s.IsReady()
	status := s.scheduler.Status()

	response := HealthResponse{
		Ready:        ready,
		Version:      startup.Version,
		Uptime:       s.now().Sub(s.started).Truncate(time.Second).String(),
		Scanning:     status.IsRunning,
		GoVersion:    runtime.Version(),
		NumCPU:       runtime.NumCPU(),
		NumGoroutine: runtime.NumGoroutine(),
	}
	if status.LastCheckTime != nil {
		response.LastScan = status.LastCheckTime.Format(time.RFC3339)
	}

	if count, err := s.store.FingerprintCount(); err == nil {
		response.TrackedFiles = count
	} else {
		logging.Warn("health: fingerprint count unavailable: %v", err)
	}

	switch {
	case !ready:
		response.Status = statusStarting
	default:
		response.Status = statusHealthy
		if recent, err := s.store.RecentHistory(1); err == nil && len(recent) == 1 && recent[0].Action == models.ActionError {
			response.Status = statusDegraded
			response.LastError = recent[0].Details
		}
	}

	code := http.StatusOK
	if !ready {
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if r.Method != http.MethodHead {
		writeJSON(w, response)
	}
}

// LivenessCheck is a simple liveness probe (always returns 200 if server is running)
func (s *Server) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	// HEAD gets headers only
	if r.Method != http.MethodHead {
		writeJSON(w, map[string]string{
			"status": "alive",
		})
	}
}

// ReadinessCheck returns 200 only once the scheduler has started.
func (s *Server) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	code, body := http.StatusOK, "ready"
	if !s.IsReady() {
		code, body = http.StatusServiceUnavailable, "not_ready"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if r.Method != http.MethodHead {
		writeJSON(w, map[string]string{"status": body})
	}
}

// GetVersion returns build information.
func (s *Server) GetVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSONStatus(w, http.StatusOK, startup.GetBuildInfo())
}
