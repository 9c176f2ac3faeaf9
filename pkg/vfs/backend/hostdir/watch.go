package hostdir

import (
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// watcher tracks external modifications to the host directory tree via
// filesystem notifications. It only records that something changed; the
// next populate re-reads the tree and clears the flag.
type watcher struct {
	fw     *fsnotify.Watcher
	stopCh chan struct{}

	mu      sync.Mutex
	changed bool
}

// newWatcher starts watching root and all directories below it. The mount
// is considered stale until the first populate clears the flag.
func newWatcher(root string) (*watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &watcher{
		fw:      fw,
		stopCh:  make(chan struct{}),
		changed: true,
	}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return fw.Add(path)
		}
		return nil
	})
	if err != nil {
		_ = fw.Close()
		return nil, err
	}

	go w.loop()

	return w, nil
}

// loop consumes notification events until the watcher is closed.
func (w *watcher) loop() {
	for {
		select {
		case <-w.stopCh:
			return

		case event, ok := <-w.fw.Events:
			if !ok {
				return
			}

			w.mu.Lock()
			w.changed = true
			w.mu.Unlock()

			// New directories must be added to the watch set so changes
			// inside them are seen too.
			if event.Op&fsnotify.Create == fsnotify.Create {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = w.fw.Add(event.Name)
				}
			}

		case _, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			// Notification overflow or similar: stay conservative.
			w.mu.Lock()
			w.changed = true
			w.mu.Unlock()
		}
	}
}

func (w *watcher) stale() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.changed
}

func (w *watcher) clearStale() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.changed = false
}

// close is safe to call once; the event loop exits when the channel closes.
func (w *watcher) close() error {
	close(w.stopCh)
	return w.fw.Close()
}
