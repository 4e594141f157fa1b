package server

import (
	"errors"
	"net/http"

	"thumbsync/internal/logging"
	"thumbsync/internal/scheduler"
	"thumbsync/internal/state"

	"github.com/gorilla/mux"
)

// StatusResponse is the body of GET /api/status.
type StatusResponse struct {
	Scheduler    scheduler.Status `json:"scheduler"`
	TrackedFiles int              `json:"trackedFiles"`
	HistoryDays  int              `json:"historyDays"`
}

// GetStatus returns the scheduler snapshot plus store counters.
func (s *Server) GetStatus(w http.ResponseWriter, _ *http.Request) {
	count, err := s.store.FingerprintCount()
	if err != nil {
		logging.Error("status: failed to count fingerprints: %v", err)
		writeJSONError(w, "failed to read state", http.StatusInternalServerError)
		return
	}
	days, err := s.store.HistoryDays()
	if err != nil {
		logging.Error("status: failed to list history days: %v", err)
		writeJSONError(w, "failed to read state", http.StatusInternalServerError)
		return
	}
	writeJSONStatus(w, http.StatusOK, StatusResponse{
		Scheduler:    s.scheduler.Status(),
		TrackedFiles: count,
		HistoryDays:  len(days),
	})
}

// GetConfig returns the persisted engine configuration.
func (s *Server) GetConfig(w http.ResponseWriter, _ *http.Request) {
	cfg, err := s.store.LoadConfig()
	if err != nil {
		logging.Error("config: failed to load: %v", err)
		writeJSONError(w, "failed to load config", http.StatusInternalServerError)
		return
	}
	writeJSONStatus(w, http.StatusOK, cfg)
}

// GetHistory returns the newest history entries.
func (s *Server) GetHistory(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(r)
	if !ok {
		writeJSONError(w, "limit must be a positive integer", http.StatusBadRequest)
		return
	}
	entries, err := s.store.RecentHistory(limit)
	if err != nil {
		logging.Error("history: failed to read: %v", err)
		writeJSONError(w, "failed to read history", http.StatusInternalServerError)
		return
	}
	writeJSONStatus(w, http.StatusOK, entries)
}

// GetChanges returns the newest change events.
func (s *Server) GetChanges(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(r)
	if !ok {
		writeJSONError(w, "limit must be a positive integer", http.StatusBadRequest)
		return
	}
	changes, err := s.store.RecentChanges(limit)
	if err != nil {
		logging.Error("changes: failed to read: %v", err)
		writeJSONError(w, "failed to read changes", http.StatusInternalServerError)
		return
	}
	writeJSONStatus(w, http.StatusOK, changes)
}

// GetHistoryDays lists the days with a history file, newest first.
func (s *Server) GetHistoryDays(w http.ResponseWriter, _ *http.Request) {
	days, err := s.store.HistoryDays()
	if err != nil {
		logging.Error("history days: failed to list: %v", err)
		writeJSONError(w, "failed to list history", http.StatusInternalServerError)
		return
	}
	if days == nil {
		days = []string{}
	}
	writeJSONStatus(w, http.StatusOK, days)
}

// GetDailyHistory returns one day's history file.
func (s *Server) GetDailyHistory(w http.ResponseWriter, r *http.Request) {
	date := mux.Vars(r)["date"]
	day, err := s.store.DailyHistory(date)
	if err != nil {
		if errors.Is(err, state.ErrInvalidDate) {
			writeJSONError(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		logging.Error("history %s: failed to read: %v", date, err)
		writeJSONError(w, "failed to read history", http.StatusInternalServerError)
		return
	}
	writeJSONStatus(w, http.StatusOK, day)
}
