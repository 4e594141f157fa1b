// Package logging provides leveled, printf-style logging for thumbsync on
// top of zap.
//
// It supports the following log levels:
//   - DEBUG: Verbose debugging information
//   - INFO: General operational messages
//   - WARN: Warning conditions
//   - ERROR: Error conditions
//
// The initial level comes from the DEBUG or LOG_LEVEL environment variables
// and can be overridden by Init. Output is console-formatted on a terminal
// and JSON otherwise. When a log file is configured, lines are also written
// to a size-rotated file.
package logging
