/*
Package workers sizes the bounded pools used by thumbsync.

Folder listing during a scan is I/O-bound and uses ForIO. Thumbnail encoding
is CPU-bound and uses ForCPU with a small cap so a large batch of changed
images does not starve the process:

	listers := workers.ForIO(8)
	encoders := workers.ForCPU(2)

Sizes derive from GOMAXPROCS, which Go sets from the container CPU limit,
not runtime.NumCPU. Operators can pin every pool with THUMBSYNC_WORKERS:

	env:
	- name: THUMBSYNC_WORKERS
	  value: "4"

The override is still capped by the limit each caller passes.
*/
package workers
