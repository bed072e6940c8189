package watcher

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	require.True(t, cond(), "condition not met within %s", timeout)
}

func TestFileChangeTriggersCallback(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o644))

	w := New(20*time.Millisecond, nil)
	var mu sync.Mutex
	var events []string
	w.Add(Registration{Path: path, Callback: func(p string) {
		mu.Lock()
		events = append(events, p)
		mu.Unlock()
	}})
	w.Start()
	defer w.Stop()

	time.Sleep(40 * time.Millisecond) // let the initial snapshot settle

	future := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(path, future, future))

	waitFor(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(events) == 1
	})
}

func TestNoChangeNoCallback(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o644))

	w := New(10*time.Millisecond, nil)
	var count int
	var mu sync.Mutex
	w.Add(Registration{Path: path, Callback: func(p string) {
		mu.Lock()
		count++
		mu.Unlock()
	}})
	w.Start()
	defer w.Stop()

	time.Sleep(100 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 0, count)
}

func TestDirectoryWatchNewFile(t *testing.T) {
	dir := t.TempDir()
	w := New(10*time.Millisecond, nil)
	var mu sync.Mutex
	var events []string
	w.Add(Registration{Path: dir, Extensions: []string{".yaml"}, Callback: func(p string) {
		mu.Lock()
		events = append(events, p)
		mu.Unlock()
	}})
	w.Start()
	defer w.Stop()

	time.Sleep(30 * time.Millisecond)
	newFile := filepath.Join(dir, "new.yaml")
	require.NoError(t, os.WriteFile(newFile, []byte("x: 1"), 0o644))
	ignoredFile := filepath.Join(dir, "ignored.txt")
	require.NoError(t, os.WriteFile(ignoredFile, []byte("x"), 0o644))

	waitFor(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(events) == 1 && events[0] == newFile
	})
}

func TestStopIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o644))

	w := New(10*time.Millisecond, nil)
	w.Add(Registration{Path: path, Callback: func(p string) {}})
	w.Start()
	w.Stop()

	// Stop should be idempotent.
	assert.NotPanics(t, func() { w.Stop() })
}

func TestRemoveStopsFutureNotificationsForThatEntry(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o644))

	w := New(10*time.Millisecond, nil)
	var mu sync.Mutex
	var count int
	id := w.Add(Registration{Path: path, Callback: func(p string) {
		mu.Lock()
		count++
		mu.Unlock()
	}})
	w.Start()
	defer w.Stop()

	w.Remove(id)
	time.Sleep(20 * time.Millisecond)
	future := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(path, future, future))
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 0, count)
}
