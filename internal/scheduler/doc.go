// Package scheduler runs scans on a time-windowed schedule.
//
// One guard covers RunScan, RegenerateAllThumbnails and the periodic
// Tick, so at most one of them runs at a time. Ticks that find the guard
// held are skipped, not queued. The guard is always released, including
// when a run panics.
package scheduler
