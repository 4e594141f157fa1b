package workers

import (
	"os"
	"runtime"
	"strconv"
)

// OverrideEnv is the environment variable that pins every pool size.
const OverrideEnv = "THUMBSYNC_WORKERS"

// Count returns the number of workers for a task type. It respects
// container CPU limits via GOMAXPROCS.
//
// The multiplier adjusts for task characteristics:
//   - 1.0 for CPU-bound tasks (image decode and encode)
//   - 2.0 for I/O-bound tasks (folder listing, uploads)
//   - 1.5 for mixed tasks
//
// The limit caps the result. Use 0 for no limit. THUMBSYNC_WORKERS
// overrides the computed value but is still capped by limit.
func Count(multiplier float64, limit int) int {
	if count := FromEnv(OverrideEnv, 0); count > 0 {
		return clamp(count, limit)
	}

	available := runtime.GOMAXPROCS(0)
	return clamp(int(float64(available)*multiplier), limit)
}

// FromEnv parses a positive integer from the named variable, returning
// fallback when it is unset or invalid.
func FromEnv(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func clamp(n, limit int) int {
	if n < 1 {
		n = 1
	}
	if limit > 0 && n > limit {
		n = limit
	}
	return n
}

// ForCPU returns worker count for CPU-bound tasks (1 per CPU).
func ForCPU(limit int) int {
	return Count(1.0, limit)
}

// ForIO returns worker count for I/O-bound tasks (2 per CPU).
func ForIO(limit int) int {
	return Count(2.0, limit)
}

// ForMixed returns worker count for mixed tasks (1.5 per CPU).
func ForMixed(limit int) int {
	return Count(1.5, limit)
}
