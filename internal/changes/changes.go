// Package changes diffs two fingerprint tables. It performs no I/O.
package changes

import (
	"fmt"
	"sort"
	"time"

	"thumbsync/internal/models"

	"github.com/cespare/xxhash/v2"
)

// Stats counts events per type.
type Stats struct {
	Added    int `json:"added"`
	Modified int `json:"modified"`
	Deleted  int `json:"deleted"`
	Total    int `json:"total"`
}

// Index keys fingerprints by path. Later duplicates win.
func Index(fps []models.FileFingerprint) map[string]models.FileFingerprint {
	out := make(map[string]models.FileFingerprint, len(fps))
	for _, fp := range fps {
		out[fp.Path] = fp
	}
	return out
}

// DetectChanges compares previous and current tables. A path only in
// current is added, only in previous is deleted, and in both with a
// different hash is modified. Events are sorted by path and stamped with
// now; the result depends on nothing else.
func DetectChanges(previous, current map[string]models.FileFingerprint, now time.Time) []models.ChangeEvent {
	var events []models.ChangeEvent

	for path, cur := range current {
		old, ok := previous[path]
		switch {
		case !ok:
			events = append(events, newEvent(now, models.ChangeAdded, path, "", cur.Hash,
				fmt.Sprintf("new image (%d bytes)", cur.Size)))
		case old.Hash != cur.Hash:
			events = append(events, newEvent(now, models.ChangeModified, path, old.Hash, cur.Hash,
				describeModification(old, cur)))
		}
	}

	for path, old := range previous {
		if _, ok := current[path]; !ok {
			events = append(events, newEvent(now, models.ChangeDeleted, path, old.Hash, "", "image removed"))
		}
	}

	sort.Slice(events, func(i, j int) bool {
		if events[i].Path != events[j].Path {
			return events[i].Path < events[j].Path
		}
		return events[i].Type < events[j].Type
	})
	return events
}

func describeModification(old, cur models.FileFingerprint) string {
	switch {
	case old.Size != cur.Size:
		return fmt.Sprintf("size changed %d -> %d", old.Size, cur.Size)
	case old.LastModified != cur.LastModified:
		return fmt.Sprintf("modified %s -> %s", old.LastModified, cur.LastModified)
	default:
		return "content hash changed"
	}
}

func newEvent(now time.Time, typ models.ChangeType, path, oldHash, newHash, details string) models.ChangeEvent {
	return models.ChangeEvent{
		ID:        eventID(now, typ, path),
		Timestamp: now,
		Type:      typ,
		Path:      path,
		OldHash:   oldHash,
		NewHash:   newHash,
		Details:   details,
	}
}

func eventID(now time.Time, typ models.ChangeType, path string) string {
	h := xxhash.New()
	_, _ = h.WriteString(string(typ))
	_, _ = h.Write([]byte{0})
	_, _ = h.WriteString(path)
	return fmt.Sprintf("%d-%016x", now.UnixNano(), h.Sum64())
}

// ChangeStats counts events by type.
func ChangeStats(events []models.ChangeEvent) Stats {
	var s Stats
	for _, e := range events {
		switch e.Type {
		case models.ChangeAdded:
			s.Added++
		case models.ChangeModified:
			s.Modified++
		case models.ChangeDeleted:
			s.Deleted++
		}
	}
	s.Total = len(events)
	return s
}

// AffectedPaths returns the paths of the first limit events. A limit of
// zero or less returns every path.
func AffectedPaths(events []models.ChangeEvent, limit int) []string {
	n := len(events)
	if limit > 0 && limit < n {
		n = limit
	}
	paths := make([]string, 0, n)
	for _, e := range events[:n] {
		paths = append(paths, e.Path)
	}
	return paths
}

// NeedsThumbnails returns the paths of added and modified events, in
// event order.
func NeedsThumbnails(events []models.ChangeEvent) []string {
	var paths []string
	for _, e := range events {
		if e.Type == models.ChangeAdded || e.Type == models.ChangeModified {
			paths = append(paths, e.Path)
		}
	}
	return paths
}

// String renders stats for log lines.
func (s Stats) String() string {
	return fmt.Sprintf("%d added, %d modified, %d deleted", s.Added, s.Modified, s.Deleted)
}
