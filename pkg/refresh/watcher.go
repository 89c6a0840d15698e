package refresh

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceWindow coalesces the event bursts a snapshot rewrite produces
// (create temp, write, rename) into a single refresh.
const debounceWindow = 500 * time.Millisecond

// snapshotWatcher watches the snapshot file's directory and invokes its
// callback when the snapshot is written or replaced. The directory is
// watched rather than the file because atomic rewrites replace the inode.
type snapshotWatcher struct {
	watcher  *fsnotify.Watcher
	path     string
	onChange func()
	logger   *slog.Logger

	debounceMu    sync.Mutex
	debounceTimer *time.Timer

	stopCh chan struct{}
	wg     sync.WaitGroup
}

func newSnapshotWatcher(path string, onChange func(), logger *slog.Logger) (*snapshotWatcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create snapshot watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %q: %w", filepath.Dir(path), err)
	}

	w := &snapshotWatcher{
		watcher:  fw,
		path:     filepath.Clean(path),
		onChange: onChange,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
	w.wg.Add(1)
	go w.loop()

	logger.Info("snapshot watcher started", "path", path)
	return w, nil
}

func (w *snapshotWatcher) loop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.scheduleRefresh()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("snapshot watcher error", "error", err)
		}
	}
}

// scheduleRefresh resets the debounce timer so a rewrite burst triggers
// exactly one refresh.
func (w *snapshotWatcher) scheduleRefresh() {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(debounceWindow, w.onChange)
}

func (w *snapshotWatcher) stop() {
	close(w.stopCh)
	w.watcher.Close()
	w.wg.Wait()

	w.debounceMu.Lock()
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceMu.Unlock()
}
