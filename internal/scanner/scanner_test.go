package scanner

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"thumbsync/internal/remote"
)

type fakeLister struct {
	listings map[string]*remote.Listing
	errs     map[string]error
	delay    time.Duration
	block    map[string]bool

	mu       sync.Mutex
	calls    []string
	inFlight atomic.Int64
	maxSeen  atomic.Int64
}

func (f *fakeLister) List(ctx context.Context, path string) (*remote.Listing, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		cur := f.maxSeen.Load()
		if n <= cur || f.maxSeen.CompareAndSwap(cur, n) {
			break
		}
	}

	f.mu.Lock()
	f.calls = append(f.calls, path)
	f.mu.Unlock()

	if f.block[path] {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if err := f.errs[path]; err != nil {
		return nil, err
	}
	if l, ok := f.listings[path]; ok {
		return l, nil
	}
	return &remote.Listing{}, nil
}

func treeLister() *fakeLister {
	return &fakeLister{
		listings: map[string]*remote.Listing{
			"": {
				Folders: []remote.Folder{{Name: "a", Path: "a"}, {Name: "b", Path: "b"}},
				Files: []remote.File{
					{Name: "root.jpg", Path: "root.jpg", Size: 10, Modified: "2024-01-01T00:00:00Z"},
					{Name: "notes.txt", Path: "notes.txt", Size: 5, Modified: "2024-01-01T00:00:00Z"},
				},
			},
			"a": {
				Folders: []remote.Folder{{Name: "deep", Path: "a/deep"}},
				Files: []remote.File{
					{Name: "one.PNG", Path: "a/one.PNG", Size: 20, Modified: "m1"},
				},
			},
			"a/deep": {
				Files: []remote.File{
					{Name: "two.webp", Size: 30, Modified: "m2"},
				},
			},
			"b": {
				Files: []remote.File{
					{Name: "three.gif", Path: "b/three.gif", Size: 40, Modified: "m3"},
					{Name: "clip.mp4", Path: "b/clip.mp4", Size: 50, Modified: "m3"},
				},
			},
		},
	}
}

func TestContentHash(t *testing.T) {
	base := ContentHash("a.jpg", 100, "2024-01-01")

	if got := ContentHash("a.jpg", 100, "2024-01-01"); got != base {
		t.Errorf("Expected identical inputs to hash equally, got %s and %s", base, got)
	}
	if len(base) != 16 {
		t.Errorf("Expected 16 hex characters, got %q", base)
	}

	variants := map[string]string{
		"name":         ContentHash("b.jpg", 100, "2024-01-01"),
		"size":         ContentHash("a.jpg", 101, "2024-01-01"),
		"lastModified": ContentHash("a.jpg", 100, "2024-01-02"),
	}
	for field, got := range variants {
		if got == base {
			t.Errorf("Changing %s did not change the hash", field)
		}
	}

	// Field boundaries are part of the input.
	if ContentHash("a1", 2, "x") == ContentHash("a", 12, "x") {
		t.Error("Expected field separators to keep shifted values distinct")
	}
}

func TestScanWalksTree(t *testing.T) {
	checked := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	s := New(Options{Lister: treeLister(), Now: func() time.Time { return checked }})

	got, err := s.Scan(context.Background(), "")
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	wantPaths := []string{"a/deep/two.webp", "a/one.PNG", "b/three.gif", "root.jpg"}
	if len(got) != len(wantPaths) {
		t.Fatalf("Expected %d fingerprints, got %d: %+v", len(wantPaths), len(got), got)
	}
	for i, want := range wantPaths {
		if got[i].Path != want {
			t.Errorf("fingerprint[%d].Path = %q, want %q", i, got[i].Path, want)
		}
		if !got[i].LastCheckedAt.Equal(checked) {
			t.Errorf("fingerprint[%d].LastCheckedAt = %v, want %v", i, got[i].LastCheckedAt, checked)
		}
	}

	if got[0].Hash != ContentHash("two.webp", 30, "m2") {
		t.Errorf("Unexpected hash for %s: %s", got[0].Path, got[0].Hash)
	}
	if got[0].Size != 30 || got[0].LastModified != "m2" {
		t.Errorf("Unexpected metadata for %s: %+v", got[0].Path, got[0])
	}
}

func TestScanSkipsFailedSubfolder(t *testing.T) {
	lister := treeLister()
	lister.errs = map[string]error{"a": errors.New("502 bad gateway")}

	got, err := New(Options{Lister: lister}).Scan(context.Background(), "")
	if err != nil {
		t.Fatalf("Subfolder failure should not fail the scan: %v", err)
	}

	paths := map[string]bool{}
	for _, fp := range got {
		paths[fp.Path] = true
	}
	if !paths["root.jpg"] || !paths["b/three.gif"] {
		t.Errorf("Expected sibling results to survive, got %v", paths)
	}
	if paths["a/one.PNG"] || paths["a/deep/two.webp"] {
		t.Errorf("Expected the failed branch to be skipped, got %v", paths)
	}
}

func TestScanRootFailure(t *testing.T) {
	lister := treeLister()
	lister.errs = map[string]error{"": errors.New("connection refused")}

	got, err := New(Options{Lister: lister}).Scan(context.Background(), "")
	if !errors.Is(err, ErrRootListingFailed) {
		t.Fatalf("Expected ErrRootListingFailed, got %v", err)
	}
	if got != nil {
		t.Errorf("Expected no fingerprints, got %v", got)
	}
}

func TestScanDeduplicatesByPath(t *testing.T) {
	lister := &fakeLister{listings: map[string]*remote.Listing{
		"": {
			Folders: []remote.Folder{{Name: "x", Path: "x"}, {Name: "alias", Path: "x"}},
		},
		"x": {
			Files: []remote.File{{Name: "same.jpg", Path: "x/same.jpg", Size: 1, Modified: "m"}},
		},
	}}

	got, err := New(Options{Lister: lister}).Scan(context.Background(), "")
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("Expected 1 fingerprint after de-duplication, got %d", len(got))
	}
}

func TestScanBoundsConcurrentListings(t *testing.T) {
	root := &remote.Listing{}
	listings := map[string]*remote.Listing{"": root}
	for _, name := range []string{"f1", "f2", "f3", "f4", "f5", "f6", "f7", "f8"} {
		root.Folders = append(root.Folders, remote.Folder{Name: name, Path: name})
		listings[name] = &remote.Listing{Files: []remote.File{{Name: name + ".jpg", Size: 1, Modified: "m"}}}
	}
	lister := &fakeLister{listings: listings, delay: 20 * time.Millisecond}

	got, err := New(Options{Lister: lister, Concurrency: 2}).Scan(context.Background(), "")
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(got) != 8 {
		t.Errorf("Expected 8 fingerprints, got %d", len(got))
	}
	if peak := lister.maxSeen.Load(); peak > 2 {
		t.Errorf("Expected at most 2 concurrent listings, saw %d", peak)
	}
}

func TestScanIsolatesHungFolder(t *testing.T) {
	lister := treeLister()
	lister.block = map[string]bool{"b": true}

	start := time.Now()
	got, err := New(Options{Lister: lister, ListTimeout: 50 * time.Millisecond}).Scan(context.Background(), "")
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("Scan took %v, expected the hung folder to time out", elapsed)
	}
	if len(got) != 3 {
		t.Errorf("Expected 3 fingerprints outside the hung folder, got %d", len(got))
	}
}

func TestIsImage(t *testing.T) {
	s := New(Options{Lister: treeLister()})
	tests := map[string]bool{
		"a.jpg":      true,
		"a.JPEG":     true,
		"dir/a.tiff": true,
		"a.txt":      false,
		"jpg":        false,
		"a.mp4":      false,
	}
	for name, want := range tests {
		if got := s.IsImage(name); got != want {
			t.Errorf("IsImage(%q) = %v, want %v", name, got, want)
		}
	}

	custom := New(Options{Lister: treeLister(), Extensions: []string{"heic"}})
	if !custom.IsImage("x.HEIC") || custom.IsImage("x.jpg") {
		t.Error("Expected custom extension list to replace the default")
	}
}
