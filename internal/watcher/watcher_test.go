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

func TestEventKindAlignsWithScannerIncrementalKind(t *testing.T) {
	// cmd/mediacat wires these through a JSON map[string]int without a
	// translation table; the numeric values must stay in lockstep with
	// scanner.IncrementalKind (IncInsert=0, IncUpdate=1, IncRemove=2).
	assert.Equal(t, 0, int(Create))
	assert.Equal(t, 1, int(Modify))
	assert.Equal(t, 2, int(Remove))
}

func allowMP4(ext string) bool { return ext == ".mp4" }

func TestWatcherCoalescesCreateIntoOneReconcile(t *testing.T) {
	root := t.TempDir()

	var mu sync.Mutex
	var calls int
	var lastEvents map[string]EventKind

	w, err := New(func(gotRoot string, events map[string]EventKind) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		lastEvents = events
	}, allowMP4, 100*time.Millisecond)
	require.NoError(t, err)
	defer w.Stop()

	w.Start([]string{root})

	path := filepath.Join(root, "movie.mp4")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls == 1
	}, 2*time.Second, 20*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	kind, ok := lastEvents[path]
	assert.True(t, ok)
	assert.Equal(t, Create, kind)
}

func TestWatcherIgnoresDisallowedExtensions(t *testing.T) {
	root := t.TempDir()

	var mu sync.Mutex
	var calls int

	w, err := New(func(gotRoot string, events map[string]EventKind) {
		mu.Lock()
		defer mu.Unlock()
		calls++
	}, allowMP4, 80*time.Millisecond)
	require.NoError(t, err)
	defer w.Stop()

	w.Start([]string{root})

	require.NoError(t, os.WriteFile(filepath.Join(root, "readme.txt"), []byte("x"), 0o644))

	time.Sleep(300 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 0, calls)
}

func TestWatcherMergesEventsWithinDebounceWindow(t *testing.T) {
	root := t.TempDir()

	var mu sync.Mutex
	var calls int
	var lastEvents map[string]EventKind

	w, err := New(func(gotRoot string, events map[string]EventKind) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		lastEvents = events
	}, allowMP4, 200*time.Millisecond)
	require.NoError(t, err)
	defer w.Stop()

	w.Start([]string{root})

	path := filepath.Join(root, "movie.mp4")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("xy"), 0o644))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls == 1
	}, 2*time.Second, 20*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, lastEvents, 1)
}
