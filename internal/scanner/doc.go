// Package scanner fingerprints the remote image tree.
//
// Fingerprints are built from listing metadata (name, size, modification
// string) so no original is downloaded during a scan. Sibling folders are
// listed concurrently, bounded by a weighted semaphore.
package scanner
