// Package watcher implements spec.md §4.10: subscribe to filesystem
// events for every configured root, coalesce events over a fixed
// window, and dispatch a single bulk reconciliation per root per
// window.
//
// Grounded on the teacher's internal/watcher/watcher.go: the Watcher
// struct shape (watched, debounce, stop, eventLoop) carries over
// essentially unchanged. The callback is regeneralized from
// OnFileEvent(libraryID, path, isCreate) to a three-way
// Create/Modify/Remove classification, and debounce keys move from
// per-library to per-root since this catalog has no library concept.
package watcher

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/JustinTDCT/mediacat/internal/storage/enginelog"
)

// EventKind classifies a coalesced filesystem change, spec.md §4.10.
type EventKind int

const (
	// Create is a regular media file appearing (including Rename in).
	Create EventKind = iota
	// Modify is a write to an existing tracked file.
	Modify
	// Remove is a deletion or Rename out.
	Remove
)

// Reconciler is invoked once per debounce window per root with the set
// of classified events collected during that window.
type Reconciler func(root string, events map[string]EventKind)

// DefaultDebounce is spec.md §4.10's coalescing window.
const DefaultDebounce = 2 * time.Second

// Watcher monitors configured roots for filesystem changes and
// dispatches debounced reconciliation callbacks.
type Watcher struct {
	fw         *fsnotify.Watcher
	reconcile  Reconciler
	debounce   time.Duration
	log        *enginelog.Logger
	extensions func(ext string) bool

	mu        sync.Mutex
	watched   map[string]string // directory -> owning root
	roots     map[string]bool
	pending   map[string]map[string]EventKind // root -> path -> kind
	timers    map[string]*time.Timer          // root -> debounce timer
	stop      chan struct{}
}

// New creates a filesystem watcher. extensionAllowed filters events to
// the extensions the scanner would have accepted during a walk.
func New(reconcile Reconciler, extensionAllowed func(ext string) bool, debounce time.Duration) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		fw:         fw,
		reconcile:  reconcile,
		debounce:   debounce,
		log:        enginelog.New("watcher"),
		extensions: extensionAllowed,
		watched:    make(map[string]string),
		roots:      make(map[string]bool),
		pending:    make(map[string]map[string]EventKind),
		timers:     make(map[string]*time.Timer),
		stop:       make(chan struct{}),
	}, nil
}

// Start begins watching root and its subdirectories, then processes
// events in the background.
func (w *Watcher) Start(roots []string) {
	w.mu.Lock()
	for _, root := range roots {
		w.roots[root] = true
		if err := w.addRecursive(root, root); err != nil {
			w.log.Printf("add root %s failed: %v", root, err)
		}
	}
	w.mu.Unlock()
	go w.eventLoop()
	w.log.Printf("watching %d root(s)", len(roots))
}

// Stop ends the watcher and all pending debounce timers.
func (w *Watcher) Stop() {
	close(w.stop)
	w.fw.Close()

	w.mu.Lock()
	defer w.mu.Unlock()
	for _, t := range w.timers {
		t.Stop()
	}
}

func (w *Watcher) addRecursive(dir, root string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // skip inaccessible subtrees, mirroring the teacher's addRecursive
		}
		if d.IsDir() {
			if err := w.fw.Add(path); err != nil {
				return nil
			}
			w.watched[path] = root
		}
		return nil
	})
}

func (w *Watcher) eventLoop() {
	for {
		select {
		case event, ok := <-w.fw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			w.log.Printf("fsnotify error: %v", err)
		case <-w.stop:
			return
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	base := filepath.Base(event.Name)
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, ".tmp") || strings.HasSuffix(base, ".part") {
		return
	}

	isCreate := event.Has(fsnotify.Create) || event.Has(fsnotify.Rename)
	isRemove := event.Has(fsnotify.Remove)
	isModify := event.Has(fsnotify.Write)

	root := w.resolveRoot(event.Name)
	if root == "" {
		return
	}

	if isCreate {
		// A created directory joins the watch set; a created file is
		// queued for reconciliation below.
		if w.isDir(event.Name) {
			w.mu.Lock()
			w.fw.Add(event.Name)
			w.watched[event.Name] = root
			w.mu.Unlock()
			return
		}
	}

	ext := strings.ToLower(filepath.Ext(event.Name))
	if w.extensions != nil && !w.extensions(ext) {
		return
	}

	var kind EventKind
	switch {
	case isRemove:
		kind = Remove
	case isCreate:
		kind = Create
	case isModify:
		kind = Modify
	default:
		return
	}

	w.queue(root, event.Name, kind)
}

func (w *Watcher) isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func (w *Watcher) resolveRoot(path string) string {
	w.mu.Lock()
	defer w.mu.Unlock()
	dir := filepath.Dir(path)
	for dir != "/" && dir != "." {
		if root, ok := w.watched[dir]; ok {
			return root
		}
		dir = filepath.Dir(dir)
	}
	if w.roots[path] {
		return path
	}
	return ""
}

// queue records a classified event for root's pending batch and
// (re)arms the debounce timer. The debouncer guarantees at-most-one
// reconciliation per window per root; a new event within the window
// resets the timer and merges into the same pending batch, per
// spec.md §4.10's "overlapping windows are merged."
func (w *Watcher) queue(root, path string, kind EventKind) {
	w.mu.Lock()
	defer w.mu.Unlock()

	batch, ok := w.pending[root]
	if !ok {
		batch = make(map[string]EventKind)
		w.pending[root] = batch
	}
	if prev, ok := batch[path]; ok && prev == Create && kind == Modify {
		// A write to a file created within the same window stays a Create.
		kind = Create
	}
	batch[path] = kind

	if t, ok := w.timers[root]; ok {
		t.Stop()
	}
	w.timers[root] = time.AfterFunc(w.debounce, func() {
		w.flush(root)
	})
}

func (w *Watcher) flush(root string) {
	w.mu.Lock()
	batch := w.pending[root]
	delete(w.pending, root)
	delete(w.timers, root)
	w.mu.Unlock()

	if len(batch) == 0 {
		return
	}
	w.reconcile(root, batch)
}
