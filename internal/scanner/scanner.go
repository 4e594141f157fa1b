package scanner

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"thumbsync/internal/logging"
	"thumbsync/internal/metrics"
	"thumbsync/internal/models"
	"thumbsync/internal/remote"
	"thumbsync/internal/workers"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/semaphore"
)

// ErrRootListingFailed means the scan root itself could not be listed.
// No fingerprints are returned and stored state must not be replaced.
var ErrRootListingFailed = errors.New("root listing failed")

// DefaultListTimeout bounds a single folder listing.
const DefaultListTimeout = 30 * time.Second

// ImageExtensions is the default allow-list, lower case with the dot.
var ImageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp", ".bmp", ".tif", ".tiff"}

// Lister returns the direct content of one remote folder.
type Lister interface {
	List(ctx context.Context, path string) (*remote.Listing, error)
}

// Options configures a Scanner.
type Options struct {
	Lister Lister

	// Concurrency bounds in-flight listing calls. Defaults to workers.ForIO(8).
	Concurrency int

	// ListTimeout bounds each listing call. Defaults to DefaultListTimeout.
	ListTimeout time.Duration

	// Extensions overrides ImageExtensions.
	Extensions []string

	// Now stamps LastCheckedAt. Defaults to time.Now.
	Now func() time.Time
}

// Scanner walks the remote tree and fingerprints every image it finds.
type Scanner struct {
	lister      Lister
	concurrency int
	timeout     time.Duration
	extensions  map[string]struct{}
	now         func() time.Time
}

// New creates a Scanner from opts.
func New(opts Options) *Scanner {
	if opts.Concurrency <= 0 {
		opts.Concurrency = workers.ForIO(8)
	}
	if opts.ListTimeout <= 0 {
		opts.ListTimeout = DefaultListTimeout
	}
	if len(opts.Extensions) == 0 {
		opts.Extensions = ImageExtensions
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	exts := make(map[string]struct{}, len(opts.Extensions))
	for _, ext := range opts.Extensions {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		exts[ext] = struct{}{}
	}

	return &Scanner{
		lister:      opts.Lister,
		concurrency: opts.Concurrency,
		timeout:     opts.ListTimeout,
		extensions:  exts,
		now:         opts.Now,
	}
}

// ContentHash fingerprints a file from its listing metadata only.
func ContentHash(name string, size int64, lastModified string) string {
	h := xxhash.New()
	_, _ = h.WriteString(name)
	_, _ = h.Write([]byte{0})
	_, _ = h.WriteString(strconv.FormatInt(size, 10))
	_, _ = h.Write([]byte{0})
	_, _ = h.WriteString(lastModified)
	return fmt.Sprintf("%016x", h.Sum64())
}

// IsImage reports whether name has an allow-listed extension.
func (s *Scanner) IsImage(name string) bool {
	_, ok := s.extensions[strings.ToLower(path.Ext(name))]
	return ok
}

// walk holds the state of one Scan call.
type walk struct {
	s       *Scanner
	sem     *semaphore.Weighted
	wg      sync.WaitGroup
	checked time.Time

	mu      sync.Mutex
	results map[string]models.FileFingerprint

	folders atomic.Int64
	failed  atomic.Int64
}

// Scan lists root and every folder below it and returns one fingerprint
// per image, sorted by path. Subfolder listing failures are logged and
// their branch skipped; a root failure returns ErrRootListingFailed.
func (s *Scanner) Scan(ctx context.Context, root string) ([]models.FileFingerprint, error) {
	if s.lister == nil {
		return nil, fmt.Errorf("%w: no lister configured", ErrRootListingFailed)
	}

	logging.Info("Starting remote scan of %q with %d concurrent listings", root, s.concurrency)
	start := time.Now()

	w := &walk{
		s:       s,
		sem:     semaphore.NewWeighted(int64(s.concurrency)),
		checked: s.now().UTC(),
		results: make(map[string]models.FileFingerprint),
	}

	listing, err := w.list(ctx, root)
	if err != nil {
		metrics.ScanListingErrors.WithLabelValues("root").Inc()
		return nil, fmt.Errorf("%w: %q: %v", ErrRootListingFailed, root, err)
	}
	w.visit(ctx, root, listing)
	w.wg.Wait()

	fingerprints := make([]models.FileFingerprint, 0, len(w.results))
	for _, fp := range w.results {
		fingerprints = append(fingerprints, fp)
	}
	sort.Slice(fingerprints, func(i, j int) bool { return fingerprints[i].Path < fingerprints[j].Path })

	logging.Info("Remote scan complete: %d images, %d folders in %v (listing errors: %d)",
		len(fingerprints), w.folders.Load(), time.Since(start), w.failed.Load())

	return fingerprints, nil
}

func (w *walk) list(ctx context.Context, folder string) (*remote.Listing, error) {
	if err := w.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer w.sem.Release(1)

	ctx, cancel := context.WithTimeout(ctx, w.s.timeout)
	defer cancel()

	start := time.Now()
	listing, err := w.s.lister.List(ctx, folder)
	metrics.ScanListingDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}
	if listing == nil {
		listing = &remote.Listing{}
	}
	return listing, nil
}

// visit records the images in listing and descends into its subfolders,
// one goroutine per sibling. The semaphore is only held during List.
func (w *walk) visit(ctx context.Context, folder string, listing *remote.Listing) {
	w.folders.Add(1)

	for _, f := range listing.Files {
		name := f.Name
		if name == "" {
			name = path.Base(f.Path)
		}
		if !w.s.IsImage(name) {
			continue
		}
		p := f.Path
		if p == "" {
			p = joinPath(folder, name)
		}

		w.mu.Lock()
		w.results[p] = models.FileFingerprint{
			Path:          p,
			Hash:          ContentHash(name, f.Size, f.Modified),
			Size:          f.Size,
			LastModified:  f.Modified,
			LastCheckedAt: w.checked,
		}
		w.mu.Unlock()
	}

	for _, sub := range listing.Folders {
		subPath := sub.Path
		if subPath == "" {
			subPath = joinPath(folder, sub.Name)
		}

		w.wg.Add(1)
		go func(subPath string) {
			defer w.wg.Done()

			listing, err := w.list(ctx, subPath)
			if err != nil {
				w.failed.Add(1)
				metrics.ScanListingErrors.WithLabelValues("folder").Inc()
				logging.Warn("Skipping folder %q: listing failed: %v", subPath, err)
				return
			}
			w.visit(ctx, subPath, listing)
		}(subPath)
	}
}

func joinPath(folder, name string) string {
	if folder == "" || folder == "/" {
		return name
	}
	return strings.TrimSuffix(folder, "/") + "/" + name
}
