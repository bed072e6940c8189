// Package watcher implements the gateway's poll-based file watcher
// (component A, spec §4.1). It deliberately does not use fsnotify (present
// only as a transitive dependency of viper): spec §4.1 requires a worker
// that wakes on a configurable interval and compares stored mtimes, not an
// OS-event subscription, and §9 "Open questions" explicitly treats the File
// Watcher as authoritative rather than leaning on inotify semantics.
package watcher

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Watcher polls a set of registered paths/directories for mtime changes and
// invokes callbacks outside its registration lock.
type Watcher struct {
	interval time.Duration
	logger   *slog.Logger

	mu        sync.Mutex
	nextID    uint64
	entries   map[uint64]*entry
	failCount map[uint64]int

	stopCh chan struct{}
	doneCh chan struct{}
	once   sync.Once
}

// Registration describes one watch.
type Registration struct {
	// Path is a file or directory.
	Path string
	// Callback is invoked, outside the registration lock, once per changed
	// file with that file's path.
	Callback func(path string)
	// Extensions filters directory entries by extension (e.g. ".yaml");
	// empty means no filter. Ignored for a file-path registration.
	Extensions []string
	// Recursive watches subdirectories of Path. Ignored for a file-path
	// registration.
	Recursive bool
}

type entry struct {
	reg   Registration
	isDir bool
	mtime map[string]time.Time // tracked path -> last observed mtime
}

// New creates a Watcher with the given poll interval. A non-positive
// interval defaults to 1 second (spec §4.1 default).
func New(interval time.Duration, logger *slog.Logger) *Watcher {
	if interval <= 0 {
		interval = time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		interval:  interval,
		logger:    logger.With("component", "file_watcher"),
		entries:   make(map[uint64]*entry),
		failCount: make(map[uint64]int),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Add registers a watch and returns an id usable with Remove. The initial
// mtime snapshot is taken immediately so the first poll tick does not fire a
// spurious change for pre-existing files.
func (w *Watcher) Add(reg Registration) uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.nextID++
	id := w.nextID

	e := &entry{reg: reg, mtime: make(map[string]time.Time)}
	if info, err := os.Stat(reg.Path); err == nil {
		e.isDir = info.IsDir()
	}
	if current, err := w.list(e); err == nil {
		e.mtime = current
	}
	w.entries[id] = e
	return id
}

// Remove deregisters a watch. Removing an unknown id is a no-op.
func (w *Watcher) Remove(id uint64) {
	w.mu.Lock()
	delete(w.entries, id)
	delete(w.failCount, id)
	w.mu.Unlock()
}

// Start launches the poll worker goroutine.
func (w *Watcher) Start() {
	go w.run()
}

func (w *Watcher) run() {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	defer close(w.doneCh)

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.tick()
		}
	}
}

type firedCallback struct {
	cb   func(path string)
	path string
}

// tick performs one poll cycle: compare mtimes, then fire callbacks outside
// the registration lock so a callback that re-registers cannot deadlock.
func (w *Watcher) tick() {
	w.mu.Lock()
	var fires []firedCallback

	for id, e := range w.entries {
		current, err := w.list(e)
		if err != nil {
			w.failCount[id]++
			if w.failCount[id] == 1 || w.failCount[id]%10 == 0 {
				w.logger.Warn("watch entry unreadable, skipping this tick",
					"path", e.reg.Path, "error", err, "consecutive_failures", w.failCount[id])
			}
			continue
		}
		w.failCount[id] = 0

		for path, mt := range current {
			if prev, ok := e.mtime[path]; !ok || !prev.Equal(mt) {
				fires = append(fires, firedCallback{cb: e.reg.Callback, path: path})
			}
		}
		for path := range e.mtime {
			if _, ok := current[path]; !ok {
				fires = append(fires, firedCallback{cb: e.reg.Callback, path: path})
			}
		}
		e.mtime = current
	}
	w.mu.Unlock()

	for _, f := range fires {
		if f.cb != nil {
			w.safeInvoke(f.cb, f.path)
		}
	}
}

func (w *Watcher) safeInvoke(cb func(path string), path string) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("file watcher callback panicked", "path", path, "recover", r)
		}
	}()
	cb(path)
}

// list returns the current path -> mtime map for one registration: a single
// entry for a file watch, one per matching file for a directory watch.
func (w *Watcher) list(e *entry) (map[string]time.Time, error) {
	if !e.isDir {
		info, err := os.Stat(e.reg.Path)
		if err != nil {
			return nil, err
		}
		return map[string]time.Time{e.reg.Path: info.ModTime()}, nil
	}

	out := make(map[string]time.Time)
	reg := e.reg
	walk := func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != reg.Path && !reg.Recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if !matchesExt(path, reg.Extensions) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil // transient stat failure on this file: skip it, not the whole tick
		}
		out[path] = info.ModTime()
		return nil
	}
	if err := filepath.WalkDir(reg.Path, walk); err != nil {
		return nil, err
	}
	return out, nil
}

func matchesExt(path string, exts []string) bool {
	if len(exts) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range exts {
		if strings.ToLower(e) == ext {
			return true
		}
	}
	return false
}

// Stop halts the poll worker and waits for it to exit. After Stop returns,
// no more callbacks are dispatched. Stop is idempotent.
func (w *Watcher) Stop() {
	w.once.Do(func() {
		close(w.stopCh)
	})
	<-w.doneCh
}
