package repository

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reports keys of a FilesystemKeyValueStore that change on disk,
// typically because another cardvault process wrote them.
type Watcher struct {
	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	dir      string
	pending  map[string]time.Time
	debounce time.Duration
	onChange func(key string)
	logger   *slog.Logger

	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool
}

// NewWatcher creates a watcher for the store's directory. Events for the same
// key closer together than debounce are reported once.
func NewWatcher(store *FilesystemKeyValueStore, debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if debounce <= 0 {
		debounce = 200 * time.Millisecond
	}
	return &Watcher{
		watcher:  fw,
		dir:      store.BasePath(),
		pending:  make(map[string]time.Time),
		debounce: debounce,
		logger:   logger,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start begins watching. onChange runs on the watcher goroutine. When Start
// fails the watcher is not running and Stop only releases it.
func (w *Watcher) Start(ctx context.Context, onChange func(key string)) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}

	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return fmt.Errorf("create storage directory: %w", err)
	}
	if err := w.watcher.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	w.logger.Debug("watching storage directory", "dir", w.dir)

	w.running = true
	w.onChange = onChange
	go w.run(ctx)
	return nil
}

// Stop stops the watcher and waits for its goroutine to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	running := w.running
	w.running = false
	w.mu.Unlock()

	if running {
		close(w.stopCh)
		<-w.doneCh
	}
	if err := w.watcher.Close(); err != nil {
		w.logger.Warn("close storage watcher", "error", err)
	}
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	tick := w.debounce / 2
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("storage watcher error", "error", err)
		case <-ticker.C:
			w.flush()
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}
	key, ok := keyFor(filepath.Base(event.Name))
	if !ok {
		return
	}

	w.mu.Lock()
	w.pending[key] = time.Now()
	w.mu.Unlock()
}

// flush reports keys whose last event is older than the debounce window.
func (w *Watcher) flush() {
	now := time.Now()
	var settled []string

	w.mu.Lock()
	for key, at := range w.pending {
		if now.Sub(at) >= w.debounce {
			settled = append(settled, key)
			delete(w.pending, key)
		}
	}
	onChange := w.onChange
	w.mu.Unlock()

	for _, key := range settled {
		w.logger.Debug("storage key changed", "key", key)
		if onChange != nil {
			onChange(key)
		}
	}
}
