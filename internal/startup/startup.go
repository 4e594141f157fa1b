package startup

import (
	"fmt"
	"os"
	"runtime"
	"sort"
	"strings"
	"time"

	"thumbsync/internal/logging"
	"thumbsync/internal/memory"

	"github.com/gorilla/mux"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// RouteInfo contains information about a registered route
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

const rule = "------------------------------------------------------------"

func section(title string) {
	logging.Info("")
	logging.Info(rule)
	logging.Info("%s", title)
	logging.Info(rule)
}

// LogStartup prints the banner, system information and configuration.
func LogStartup(cfg *Config) {
	printBanner()
	logSystemInfo()
	LogConfiguration(cfg)
}

func enabledString(enabled bool) string {
	if enabled {
		return "ENABLED"
	}
	return "DISABLED"
}

// LogMemoryConfig logs how GOMEMLIMIT was set.
func LogMemoryConfig(result memory.ConfigResult) {
	section("MEMORY")
	if !result.Configured {
		logging.Info("  GOMEMLIMIT: not configured (set MEMORY_LIMIT or GOMEMLIMIT)")
		return
	}
	switch result.Source {
	case "MEMORY_LIMIT":
		logging.Info("  Container limit: %s", memory.FormatBytes(result.ContainerLimit))
		logging.Info("  GOMEMLIMIT:      %s (%.0f%%)", memory.FormatBytes(result.GoMemLimit), result.Ratio*100)
	default:
		logging.Info("  GOMEMLIMIT:      %s (from environment)", memory.FormatBytes(result.GoMemLimit))
	}
}

// LogStorageInit logs the selected thumbnail backend.
func LogStorageInit(backend, location string) {
	section("STORAGE")
	logging.Info("  Backend:  %s", backend)
	logging.Info("  Location: %s", location)
}

// LogVipsInit logs whether libvips is available for WebP output.
func LogVipsInit(enabled, available bool) {
	switch {
	case !enabled:
		logging.Info("  libvips disabled; WebP output unavailable")
	case available:
		logging.Info("  [OK] libvips initialized")
	default:
		logging.Warn("  libvips unavailable; WebP output will fail")
	}
}

// LogSchedulerInit logs scheduler configuration
func LogSchedulerInit(root string, tick time.Duration) {
	section("SCHEDULER INITIALIZATION")
	logging.Info("  Scan root:     %s", root)
	logging.Info("  Tick interval: %v", tick)
	logging.Info("  Starting scheduler...")
}

// LogSchedulerStarted logs successful scheduler start
func LogSchedulerStarted() {
	logging.Info("  [OK] Scheduler started")
}

// GetRoutes extracts all registered routes from a mux.Router
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo

	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		pathTemplate, err := route.GetPathTemplate()
		if err != nil {
			return err
		}

		methods, err := route.GetMethods()
		if err != nil {
			// subrouter prefixes carry no methods
			methods = []string{"*"}
		}

		for _, method := range methods {
			routes = append(routes, RouteInfo{
				Method: method,
				Path:   pathTemplate,
				Name:   route.GetName(),
			})
		}
		return nil
	})

	return routes, err
}

// LogHTTPRoutes logs registered routes at debug level, grouped by prefix.
func LogHTTPRoutes(router *mux.Router) {
	section("HTTP SERVER SETUP")

	if !logging.IsDebugEnabled() {
		return
	}

	routes, err := GetRoutes(router)
	if err != nil {
		logging.Warn("error walking routes: %v", err)
	}

	logging.Debug("  Registered routes (%d total):", len(routes))
	logging.Debug("")

	groups := make(map[string][]RouteInfo)
	for _, route := range routes {
		prefix := getRouteGroup(route.Path)
		groups[prefix] = append(groups[prefix], route)
	}

	for _, group := range sortedKeys(groups) {
		if group != "" {
			logging.Debug("  [%s]", group)
		} else {
			logging.Debug("  [root]")
		}
		for _, route := range groups[group] {
			logging.Debug("    %-6s %s", route.Method, route.Path)
		}
		logging.Debug("")
	}
}

// getRouteGroup extracts a group name from a route path
func getRouteGroup(path string) string {
	path = strings.TrimPrefix(path, "/")
	parts := strings.SplitN(path, "/", 2)
	first := parts[0]

	if first == "api" && len(parts) > 1 {
		subParts := strings.SplitN(parts[1], "/", 2)
		return "api/" + subParts[0]
	}
	return first
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ServerConfig holds configuration for the server startup log
type ServerConfig struct {
	Port            string
	MetricsEnabled  bool
	StartupDuration time.Duration
}

// LogServerStarted logs successful server start with all endpoint information
func LogServerStarted(config ServerConfig) {
	section("SERVER STARTED")
	logging.Info("  Startup time:    %v", config.StartupDuration)
	logging.Info("")
	logging.Info("  Endpoints:")
	logging.Info("    Status:        http://0.0.0.0:%s/api/status", config.Port)
	logging.Info("    Health:        http://0.0.0.0:%s/health", config.Port)
	if config.MetricsEnabled {
		logging.Info("    Metrics:       http://0.0.0.0:%s/metrics", config.Port)
	} else {
		logging.Info("    Metrics:       DISABLED")
	}
	logging.Info("")
	logging.Info("  Press Ctrl+C to stop the server")
	logging.Info(rule)
	logging.Info("")
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	section(fmt.Sprintf("SHUTDOWN INITIATED (received %s)", signal))
}

// LogShutdownStep logs a shutdown step
func LogShutdownStep(step string) {
	logging.Debug("  %s...", step)
}

// LogShutdownStepComplete logs a completed shutdown step
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

func printBanner() {
	banner := []string{
		rule,
		"  _   _                     _",
		" | |_| |__  _   _ _ __ ___ | |__  ___ _   _ _ __   ___",
		" | __| '_ \\| | | | '_ ' _ \\| '_ \\/ __| | | | '_ \\ / __|",
		" | |_| | | | |_| | | | | | | |_) \\__ \\ |_| | | | | (__",
		"  \\__|_| |_|\\__,_|_| |_| |_|_.__/|___/\\__, |_| |_|\\___|",
		"                                      |___/",
		rule,
	}
	fmt.Fprintln(os.Stderr, strings.Join(banner, "\n"))
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
}

func logSystemInfo() {
	section("SYSTEM INFORMATION")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs available:  %d", runtime.NumCPU())
	logging.Info("  GOMAXPROCS:      %d", runtime.GOMAXPROCS(0))

	if runtime.GOMAXPROCS(0) < runtime.NumCPU() {
		logging.Info("  (Container CPU limit detected)")
	}

	if logging.IsDebugEnabled() {
		logging.Debug("  Goroutines:      %d", runtime.NumGoroutine())
		if wd, err := os.Getwd(); err == nil {
			logging.Debug("  Working dir:     %s", wd)
		}
		if hostname, err := os.Hostname(); err == nil {
			logging.Debug("  Hostname:        %s", hostname)
		}
	}
}
