package replay

import (
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/afero"

	"replay-manager/internal/media"
	"replay-manager/internal/platform/logger"
)

// Library is an immutable snapshot of the replay folder, newest first.
// Indexes into Entries are only meaningful for the snapshot they came from.
type Library struct {
	Folder    string
	Filter    string
	Entries   []*Entry
	ScannedAt time.Time

	byPath map[string]*Entry
}

func newLibrary(folder, filter string, entries []*Entry, at time.Time) *Library {
	byPath := make(map[string]*Entry, len(entries))
	for _, e := range entries {
		byPath[e.Path] = e
	}
	return &Library{Folder: folder, Filter: filter, Entries: entries, ScannedAt: at, byPath: byPath}
}

// Len returns the number of entries.
func (l *Library) Len() int { return len(l.Entries) }

// At returns the entry at ordinal index.
func (l *Library) At(index int) (*Entry, bool) {
	if index < 0 || index >= len(l.Entries) {
		return nil, false
	}
	return l.Entries[index], true
}

// Lookup returns the entry for path.
func (l *Library) Lookup(path string) (*Entry, bool) {
	e, ok := l.byPath[path]
	return e, ok
}

// Contains reports whether path is in the snapshot.
func (l *Library) Contains(path string) bool {
	_, ok := l.byPath[path]
	return ok
}

// ScanResult describes what changed since the previous snapshot.
type ScanResult struct {
	Library *Library
	// Changed lists paths that are new or whose mtime/size changed.
	Changed []string
	// Removed lists paths present in the previous snapshot but not this one.
	Removed []string
	// Err is set when the folder could not be listed.
	Err error
}

// Scanner lists the replay folder and publishes snapshots atomically.
type Scanner struct {
	fs  afero.Fs
	log *slog.Logger
	now func() time.Time

	scanMu  sync.Mutex
	current atomic.Pointer[Library]
}

// NewScanner returns a scanner over fs with an empty initial snapshot.
func NewScanner(fs afero.Fs, log *slog.Logger) *Scanner {
	if log == nil {
		log = logger.Discard()
	}
	s := &Scanner{fs: fs, log: log, now: time.Now}
	s.current.Store(newLibrary("", "", nil, time.Time{}))
	return s
}

// Snapshot returns the most recently published library.
func (s *Scanner) Snapshot() *Library {
	return s.current.Load()
}

// Scan lists folder (non-recursively), keeps files with an allowed video
// extension whose name starts with prefix, and publishes the result sorted
// by modification time descending. Entries whose (mtime, size) did not
// change are reused from the previous snapshot. A missing or unreadable
// folder yields an empty library.
func (s *Scanner) Scan(folder, prefix string) ScanResult {
	s.scanMu.Lock()
	defer s.scanMu.Unlock()

	prev := s.current.Load()
	var entries []*Entry
	var changed []string
	var scanErr error

	if folder != "" {
		infos, err := afero.ReadDir(s.fs, folder)
		if err != nil {
			scanErr = err
			s.log.Debug("replay folder unreadable", slog.String("folder", folder), slog.String("error", err.Error()))
		}
		for _, fi := range infos {
			if !fi.Mode().IsRegular() {
				continue
			}
			name := fi.Name()
			if !media.IsVideoExt(filepath.Ext(name)) {
				continue
			}
			if prefix != "" && !strings.HasPrefix(name, prefix) {
				continue
			}
			path := filepath.Join(folder, name)
			if old, ok := prev.Lookup(path); ok && old.unchanged(fi.ModTime(), fi.Size()) {
				entries = append(entries, old)
				continue
			}
			entries = append(entries, newEntry(path, name, fi.ModTime(), fi.Size()))
			changed = append(changed, path)
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].ModTime.Equal(entries[j].ModTime) {
			return entries[i].ModTime.After(entries[j].ModTime)
		}
		return entries[i].Name < entries[j].Name
	})

	next := newLibrary(folder, prefix, entries, s.now())
	var removed []string
	for _, e := range prev.Entries {
		if !next.Contains(e.Path) {
			removed = append(removed, e.Path)
		}
	}

	s.current.Store(next)
	if len(changed) > 0 || len(removed) > 0 {
		s.log.Info("scan",
			slog.Int("count", len(entries)),
			slog.Int("previous", prev.Len()),
			slog.Int("changed", len(changed)),
			slog.Int("removed", len(removed)))
	}
	return ScanResult{Library: next, Changed: changed, Removed: removed, Err: scanErr}
}
