// Package startup handles process configuration and the startup/shutdown
// log sections.
//
// # Configuration
//
// [NewViper] registers defaults for every key and maps environment
// variables with the THUMBSYNC_ prefix, so scan.tick_interval is read from
// THUMBSYNC_SCAN_TICK_INTERVAL. [ReadConfigFile] layers an optional
// yaml/toml/json file on top, and the CLI binds its flags to the same
// keys. [LoadConfig] decodes and validates the result.
//
// Engine settings such as the schedule, thumbnail sizes and retention are
// not process configuration; they are stored by the state package.
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo]:
//   - Version: Application version
//   - Commit: Git commit hash
//   - BuildTime: Build timestamp
//   - GoVersion: Go compiler version
//
// # Lifecycle Logging
//
//   - [LogStartup]: banner, system information and configuration
//   - [PrepareDirectories]: data and cache directory checks
//   - [LogHTTPRoutes]: registered ops routes (debug level)
//   - [LogServerStarted]: endpoints and startup duration
//   - [LogShutdownInitiated], [LogShutdownComplete]: graceful shutdown
package startup
