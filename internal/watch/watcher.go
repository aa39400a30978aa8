// Package watch reports settled changes under a set of directory
// trees.
package watch

import (
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// contentOps are the events that can add, drop or alter a file.
const contentOps = fsnotify.Write | fsnotify.Create |
	fsnotify.Remove | fsnotify.Rename

// Watcher turns fsnotify events into batches of settled paths. A
// path settles once no event has touched it for the settle window;
// settled paths are handed to onSettled in sorted order.
type Watcher struct {
	fsw       *fsnotify.Watcher
	settle    time.Duration
	skip      func(path string) bool
	onSettled func(paths []string)
	clock     func() time.Time

	mu      sync.Mutex
	touched map[string]time.Time // path -> last event

	quit     chan struct{}
	exited   chan struct{}
	stopOnce sync.Once
}

// NewWatcher creates a watcher. Paths for which skip returns true
// are neither watched nor reported; skip may be nil.
func NewWatcher(
	settle time.Duration,
	skip func(path string) bool,
	onSettled func(paths []string),
) (*Watcher, error) {
	if onSettled == nil {
		return nil, fmt.Errorf("watch: nil change handler: %w", os.ErrInvalid)
	}
	if skip == nil {
		skip = func(string) bool { return false }
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}
	return &Watcher{
		fsw:       fsw,
		settle:    settle,
		skip:      skip,
		onSettled: onSettled,
		clock:     time.Now,
		touched:   make(map[string]time.Time),
		quit:      make(chan struct{}),
		exited:    make(chan struct{}),
	}, nil
}

// WatchRecursive registers root and every directory below it that
// skip admits. Unreadable subtrees are passed over. It returns how
// many directories were registered and how many fsnotify refused.
func (w *Watcher) WatchRecursive(root string) (watched, unwatched int, err error) {
	err = filepath.WalkDir(root,
		func(path string, d fs.DirEntry, walkErr error) error {
			switch {
			case walkErr != nil, !d.IsDir():
				return nil
			case path != root && w.skip(path):
				return filepath.SkipDir
			}
			if w.fsw.Add(path) != nil {
				unwatched++
			} else {
				watched++
			}
			return nil
		})
	return watched, unwatched, err
}

// Watch registers dir alone.
func (w *Watcher) Watch(dir string) error {
	return w.fsw.Add(dir)
}

// Start runs the event loop on its own goroutine.
func (w *Watcher) Start() {
	go w.run()
}

// Stop ends the event loop, waits for it, and releases the fsnotify
// handle. Extra calls are no-ops.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.quit)
		<-w.exited
		w.fsw.Close()
	})
}

func (w *Watcher) run() {
	defer close(w.exited)
	tick := time.NewTicker(w.settle)
	defer tick.Stop()

	for {
		select {
		case <-w.quit:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.note(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Printf("watch: %v", err)
		case <-tick.C:
			w.release()
		}
	}
}

// note stamps the event's path. A created directory is registered
// along with whatever was already made inside it.
func (w *Watcher) note(ev fsnotify.Event) {
	if ev.Op&contentOps == 0 || w.skip(ev.Name) {
		return
	}
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			_, _, _ = w.WatchRecursive(ev.Name)
		}
	}

	w.mu.Lock()
	w.touched[ev.Name] = w.clock()
	w.mu.Unlock()
}

// release hands every settled path to onSettled and forgets it.
func (w *Watcher) release() {
	w.mu.Lock()
	cutoff := w.clock().Add(-w.settle)
	var settled []string
	for path, last := range w.touched {
		if !last.After(cutoff) {
			settled = append(settled, path)
			delete(w.touched, path)
		}
	}
	w.mu.Unlock()

	if len(settled) == 0 {
		return
	}
	sort.Strings(settled)
	log.Printf("watch: %d changed path(s) settled", len(settled))
	w.onSettled(settled)
}
