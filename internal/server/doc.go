// Package server exposes the ops HTTP listener used by "thumbsync serve":
// liveness and readiness probes, build info, Prometheus metrics and a
// read-only view of scheduler status and scan history.
package server
