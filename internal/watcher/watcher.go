// Package watcher reports content changes of individual files, such as the
// dictionary the daemon expands from.
package watcher

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is used when New is given a non-positive debounce.
const DefaultDebounce = 200 * time.Millisecond

// Event reports a file whose content changed.
type Event struct {
	Path      string
	Hash      [32]byte
	Size      int64
	Timestamp time.Time
}

type tracked struct {
	hash  [32]byte
	known bool
	timer *time.Timer
}

// Watcher watches files by watching their directories, so editors that
// save by rename are still seen. A change is reported once the file has
// been quiet for the debounce interval and only if its SHA-256 differs from
// the last reported (or initial) content.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	paths     []string
	debounce  time.Duration

	mu    sync.Mutex
	files map[string]*tracked

	due    chan string
	events chan Event
	errors chan error

	done chan struct{}
	wg   sync.WaitGroup
}

// New creates a watcher for paths. Paths are made absolute.
func New(paths []string, debounce time.Duration) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	abs := make([]string, 0, len(paths))
	for _, p := range paths {
		a, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", p, err)
		}
		abs = append(abs, a)
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	return &Watcher{
		fsWatcher: fsWatcher,
		paths:     abs,
		debounce:  debounce,
		files:     make(map[string]*tracked),
		due:       make(chan string, 16),
		events:    make(chan Event, 8),
		errors:    make(chan error, 8),
		done:      make(chan struct{}),
	}, nil
}

// Events returns the channel of content changes. It is closed by Stop.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Errors returns the channel of errors.
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// Start records the current content of each file and begins watching.
// A file that does not exist yet is reported when it first appears.
func (w *Watcher) Start() error {
	dirs := make(map[string]bool)
	for _, path := range w.paths {
		t := &tracked{}
		if hash, _, err := HashFile(path); err == nil {
			t.hash, t.known = hash, true
		} else if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("read %s: %w", path, err)
		}
		w.files[path] = t

		dir := filepath.Dir(path)
		if dirs[dir] {
			continue
		}
		if err := w.fsWatcher.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
		dirs[dir] = true
	}

	w.wg.Add(1)
	go w.loop()
	return nil
}

// Stop gracefully shuts down the watcher.
func (w *Watcher) Stop() error {
	close(w.done)

	w.mu.Lock()
	for _, t := range w.files {
		if t.timer != nil {
			t.timer.Stop()
		}
	}
	w.mu.Unlock()

	err := w.fsWatcher.Close()
	w.wg.Wait()
	close(w.events)
	close(w.errors)
	return err
}

func (w *Watcher) loop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.touch(filepath.Clean(event.Name))

		case path := <-w.due:
			w.check(path)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.report(err)
		}
	}
}

// touch restarts the quiet period for a tracked file.
func (w *Watcher) touch(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	t, ok := w.files[path]
	if !ok {
		return
	}
	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = time.AfterFunc(w.debounce, func() {
		select {
		case w.due <- path:
		case <-w.done:
		}
	})
}

// check hashes a quiet file and emits an event if its content changed.
func (w *Watcher) check(path string) {
	hash, size, err := HashFile(path)
	if err != nil {
		// A rename-away is followed by a create; wait for that.
		if !errors.Is(err, os.ErrNotExist) {
			w.report(fmt.Errorf("hash %s: %w", path, err))
		}
		return
	}

	w.mu.Lock()
	t := w.files[path]
	changed := !t.known || t.hash != hash
	t.hash, t.known = hash, true
	w.mu.Unlock()

	if !changed {
		return
	}

	select {
	case w.events <- Event{Path: path, Hash: hash, Size: size, Timestamp: time.Now()}:
	case <-w.done:
	}
}

func (w *Watcher) report(err error) {
	select {
	case w.errors <- err:
	default:
	}
}

// HashFile computes the SHA-256 of a file by streaming it.
func HashFile(path string) ([32]byte, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return [32]byte{}, 0, err
	}
	defer f.Close()

	h := sha256.New()
	size, err := io.Copy(h, f)
	if err != nil {
		return [32]byte{}, 0, err
	}

	var hash [32]byte
	copy(hash[:], h.Sum(nil))
	return hash, size, nil
}

// WatchedPaths returns the absolute paths being watched.
func (w *Watcher) WatchedPaths() []string {
	return w.paths
}

// Hash returns the last seen content hash of path.
func (w *Watcher) Hash(path string) ([32]byte, bool) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return [32]byte{}, false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	t, ok := w.files[abs]
	if !ok || !t.known {
		return [32]byte{}, false
	}
	return t.hash, true
}
