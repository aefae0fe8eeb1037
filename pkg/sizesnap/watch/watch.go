// Package watch reports changed chunk files, debounced into batches.
package watch

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/jamesainslie/sizesnap/pkg/sizesnap/logging"
)

// DefaultDebounce is the quiet period before a batch is delivered.
const DefaultDebounce = 200 * time.Millisecond

// Watcher watches chunk files and the directories that contain them.
type Watcher struct {
	watcher  *fsnotify.Watcher
	debounce time.Duration
	accept   func(path string) bool
	skipDirs []string
	log      *logging.Logger

	mu     sync.RWMutex
	dirs   map[string]bool // watched directories
	roots  []string        // directory roots whose files are all candidates
	files  map[string]bool // individually watched files
	closed bool
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period before a batch is delivered.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// WithFilter restricts files under watched directories to those accepted
// by fn. Individually watched files are always reported.
func WithFilter(fn func(path string) bool) Option {
	return func(w *Watcher) {
		w.accept = fn
	}
}

// WithSkipDirs sets directory names that are never watched.
func WithSkipDirs(names ...string) Option {
	return func(w *Watcher) {
		w.skipDirs = names
	}
}

// New creates a Watcher.
func New(opts ...Option) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		watcher:  fsw,
		debounce: DefaultDebounce,
		accept:   func(string) bool { return true },
		skipDirs: []string{"node_modules", ".git"},
		log:      logging.Get("watch"),
		dirs:     make(map[string]bool),
		files:    make(map[string]bool),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Watch starts watching path. A directory is watched recursively; a file is
// watched through its parent directory. Symlinks are not followed.
func (w *Watcher) Watch(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return err
	}

	if !info.IsDir() {
		w.mu.Lock()
		w.files[abs] = true
		w.mu.Unlock()
		return w.addWatch(filepath.Dir(abs))
	}

	w.mu.Lock()
	w.roots = append(w.roots, abs)
	w.mu.Unlock()
	return w.addTree(abs)
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil //nolint:nilerr // unreadable entries are skipped
		}
		if d.Type()&fs.ModeSymlink != 0 || !d.IsDir() {
			return nil
		}
		if path != root && slices.Contains(w.skipDirs, d.Name()) {
			return filepath.SkipDir
		}
		return w.addWatch(path)
	})
}

func (w *Watcher) addWatch(dir string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed || w.dirs[dir] {
		return nil
	}
	if err := w.watcher.Add(dir); err != nil {
		w.log.Warn("failed to add watch", "path", dir, "error", err)
		return err
	}
	w.dirs[dir] = true
	return nil
}

// relevant reports whether a changed path is a chunk file being watched.
func (w *Watcher) relevant(path string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.files[path] {
		return true
	}
	for _, root := range w.roots {
		if isSubPath(path, root) {
			return w.accept(path)
		}
	}
	return false
}

// Run delivers batches of changed files to onBatch until ctx is done. Each
// batch is sorted and free of duplicates. onBatch runs on the Run goroutine,
// so events arriving while it runs are collected into the next batch.
func (w *Watcher) Run(ctx context.Context, onBatch func(paths []string)) {
	pending := make(map[string]struct{})
	var timer *time.Timer
	var fire <-chan time.Time

	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if path, changed := w.handleEvent(event); changed {
				pending[path] = struct{}{}
				if timer == nil {
					timer = time.NewTimer(w.debounce)
				} else {
					timer.Reset(w.debounce)
				}
				fire = timer.C
			}

		case <-fire:
			fire = nil
			batch := make([]string, 0, len(pending))
			for p := range pending {
				batch = append(batch, p)
			}
			clear(pending)
			slices.Sort(batch)
			w.log.Debug("changes detected", "files", len(batch))
			onBatch(batch)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Error("watcher error", "error", err)
		}
	}
}

// handleEvent keeps directory watches current and returns the path of a
// chunk file whose content may have changed.
func (w *Watcher) handleEvent(event fsnotify.Event) (string, bool) {
	switch {
	case event.Op&(fsnotify.Create|fsnotify.Write) != 0:
		info, err := os.Lstat(event.Name)
		if err != nil || info.Mode()&fs.ModeSymlink != 0 {
			return "", false
		}
		if info.IsDir() {
			if event.Op&fsnotify.Create != 0 && w.relevantDir(event.Name) {
				_ = w.addTree(event.Name)
			}
			return "", false
		}
		return event.Name, w.relevant(event.Name)

	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		w.forget(event.Name)
	}
	return "", false
}

func (w *Watcher) relevantDir(dir string) bool {
	if slices.Contains(w.skipDirs, filepath.Base(dir)) {
		return false
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	for _, root := range w.roots {
		if isSubPath(dir, root) {
			return true
		}
	}
	return false
}

func (w *Watcher) forget(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for dir := range w.dirs {
		if dir == path || isSubPath(dir, path) {
			_ = w.watcher.Remove(dir)
			delete(w.dirs, dir)
		}
	}
}

// Close closes the watcher and releases resources.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	w.dirs = make(map[string]bool)
	return w.watcher.Close()
}

// isSubPath checks if path is under parent directory.
func isSubPath(path, parent string) bool {
	return len(path) > len(parent) && path[:len(parent)+1] == parent+string(filepath.Separator)
}
