package watch

import (
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Kind is the type of a filesystem notification.
type Kind int

const (
	// Added means a file appeared under a watched directory. Files
	// already present when a watch is installed are reported as Added
	// during Add itself.
	Added Kind = iota
	// Modified means a watched file's contents changed.
	Modified
	// Removed means a file disappeared from a watched directory.
	Removed
	// SelfRemoved means the watched directory itself disappeared.
	SelfRemoved
)

// Notify is one filesystem change notification.
type Notify struct {
	BasePath string // the directory the watch was installed on
	SubPath  string // path relative to BasePath
	FullPath string
	Kind     Kind
}

// Handler receives notifications for one watched directory.
type Handler func(Notify)

// Watch multiplexes fsnotify over a set of watched directories and
// delivers notifications strictly one at a time: handlers run either
// inline under Add (replaying pre-existing files) or on the single
// event loop goroutine, never concurrently. Consumers may therefore
// mutate shared state from their handler without further locking.
type Watch struct {
	watcher *fsnotify.Watcher

	mu      sync.Mutex // serializes every handler invocation
	targets map[string]*target
	dirs    map[string]string // watched directory -> base path

	done      chan struct{}
	closeOnce sync.Once
}

type target struct {
	base      string
	recursive bool
	handler   Handler
}

// New creates a Watch and starts its event loop.
func New() (*Watch, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watch{
		watcher: watcher,
		targets: make(map[string]*target),
		dirs:    make(map[string]string),
		done:    make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

// Add installs a watch on path and synchronously reports every file
// already present as an Added notification before returning. This
// replay is part of the contract: consumers rely on it for their
// initial population, in registration order. A path that does not
// exist yet is accepted but stays silent.
func (w *Watch) Add(path string, recursive bool, fn Handler) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	t := &target{base: path, recursive: recursive, handler: fn}
	w.targets[path] = t

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return w.addDirLocked(t, path)
}

// addDirLocked registers dir with fsnotify and replays its contents as
// Added notifications. Caller holds w.mu.
func (w *Watch) addDirLocked(t *target, dir string) error {
	if err := w.watcher.Add(dir); err != nil {
		return err
	}
	w.dirs[dir] = t.base

	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		full := filepath.Join(dir, entry.Name())
		if entry.IsDir() {
			if t.recursive {
				if err := w.addDirLocked(t, full); err != nil {
					return err
				}
			}
			continue
		}
		if entry.Type().IsRegular() {
			w.dispatchLocked(t, full, Added)
		}
	}
	return nil
}

// dispatchLocked delivers one notification. Caller holds w.mu.
func (w *Watch) dispatchLocked(t *target, full string, kind Kind) {
	sub, err := filepath.Rel(t.base, full)
	if err != nil {
		return
	}
	if sub == "." {
		sub = ""
	}
	t.handler(Notify{
		BasePath: t.base,
		SubPath:  sub,
		FullPath: full,
		Kind:     kind,
	})
}

func (w *Watch) loop() {
	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("[ERROR] watch: %v", err)
		case <-w.done:
			return
		}
	}
}

func (w *Watch) handleEvent(ev fsnotify.Event) {
	w.mu.Lock()
	defer w.mu.Unlock()

	// The watched directory itself going away is reported to the
	// target as SelfRemoved.
	if base, ok := w.dirs[ev.Name]; ok && ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
		delete(w.dirs, ev.Name)
		if t, ok := w.targets[base]; ok && ev.Name == base {
			w.dispatchLocked(t, ev.Name, SelfRemoved)
		}
		return
	}

	base, ok := w.dirs[filepath.Dir(ev.Name)]
	if !ok {
		return
	}
	t, ok := w.targets[base]
	if !ok {
		return
	}

	switch {
	case ev.Op&fsnotify.Create != 0:
		info, err := os.Stat(ev.Name)
		if err != nil {
			return
		}
		if info.IsDir() {
			if t.recursive {
				if err := w.addDirLocked(t, ev.Name); err != nil {
					log.Printf("[ERROR] watch: %s: %v", ev.Name, err)
				}
			}
			return
		}
		w.dispatchLocked(t, ev.Name, Added)
	case ev.Op&fsnotify.Write != 0:
		w.dispatchLocked(t, ev.Name, Modified)
	case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		w.dispatchLocked(t, ev.Name, Removed)
	}
}

// Close stops the event loop and releases the underlying watcher. No
// handler runs after Close returns. Closing more than once is allowed.
func (w *Watch) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		err = w.watcher.Close()

		// Taking the dispatch lock here fences out a handler that
		// was already running on the event loop.
		w.mu.Lock()
		w.targets = nil
		w.dirs = nil
		w.mu.Unlock()
	})
	return err
}
