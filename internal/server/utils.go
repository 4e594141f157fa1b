package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"thumbsync/internal/logging"
)

const (
	defaultLimit = 50
	maxLimit     = 1000
)

// writeJSON encodes v as JSON and writes it to the response writer.
// Encoding errors are logged; the status line is already sent by then.
func writeJSON(w http.ResponseWriter, v interface{}) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("failed to encode JSON response: %v", err)
	}
}

func writeJSONStatus(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	writeJSON(w, v)
}

func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	writeJSONStatus(w, statusCode, map[string]string{"error": message})
}

// parseLimit reads ?limit=, defaulting to defaultLimit and capping at maxLimit.
func parseLimit(r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultLimit, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, false
	}
	if n > maxLimit {
		n = maxLimit
	}
	return n, true
}
