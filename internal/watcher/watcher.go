// Package watcher monitors the local cache files for out-of-process
// writes (a second CLI invocation, or a restore of the backup file) and
// triggers a reconcile pass, with debouncing so a burst of writes collapses
// into one trigger.
package watcher

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounceDuration is the default debounce window for batching
// rapid file changes.
const DefaultDebounceDuration = 1 * time.Second

// Config holds file watcher configuration.
type Config struct {
	Paths            []string      // cache files to watch
	DebounceDuration time.Duration // debounce window to batch rapid changes
	OnChange         func()        // callback to trigger a reconcile
}

// Watcher monitors file system changes on the local cache.
type Watcher struct {
	cfg     *Config
	fsw     *fsnotify.Watcher
	stopCh  chan struct{}
	stopped bool
	mu      sync.Mutex
}

// New creates a new Watcher instance.
func New(cfg *Config) (*Watcher, error) {
	if cfg.DebounceDuration == 0 {
		cfg.DebounceDuration = DefaultDebounceDuration
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &Watcher{
		cfg:    cfg,
		fsw:    fsw,
		stopCh: make(chan struct{}),
	}, nil
}

// Start begins watching the configured paths. Paths that do not exist yet
// are skipped; they may be created later.
func (w *Watcher) Start() error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return fmt.Errorf("watcher has been stopped and cannot be restarted")
	}
	w.mu.Unlock()

	for _, path := range w.cfg.Paths {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("failed to watch path %q: %w", path, err)
		}
	}

	go w.eventLoop()
	return nil
}

// Stop stops the watcher and cleans up resources.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return
	}
	w.stopped = true
	close(w.stopCh)
	_ = w.fsw.Close()
}

// eventLoop processes fsnotify events with debouncing.
func (w *Watcher) eventLoop() {
	var debounceTimer *time.Timer

	debounceCh := make(chan struct{}, 1)
	resetDebounce := func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
		debounceTimer = time.AfterFunc(w.cfg.DebounceDuration, func() {
			select {
			case debounceCh <- struct{}{}:
			default:
			}
		})
	}

	for {
		select {
		case <-w.stopCh:
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			resetDebounce()

		case _, ok := <-w.fsw.Errors:
			if !ok {
				return
			}

		case <-debounceCh:
			if w.cfg.OnChange != nil {
				w.cfg.OnChange()
			}
		}
	}
}
