// Package memory keeps thumbnail generation inside the container memory
// budget.
//
// [ConfigureFromEnv] derives GOMEMLIMIT from MEMORY_LIMIT and MEMORY_RATIO.
// A [Monitor] samples heap usage and, once it crosses the critical
// watermark, makes [Monitor.WaitIfPaused] block until usage drops below
// the high watermark. The thumbnail pipeline calls WaitIfPaused before
// decoding each original.
package memory
