package evidence

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is how long the watcher waits for a burst of writes to
// settle before signalling a change.
const DefaultDebounce = 150 * time.Millisecond

// ChangeFunc receives the keys that changed since the last signal, sorted.
type ChangeFunc func(ctx context.Context, keys []string)

// Watcher signals changes to the evidence files of a [FileStore].
//
// Events are debounced: a burst of writes to any number of keys produces a
// single [ChangeFunc] call once the directory has been quiet for the debounce
// interval. Temporary files written by [FileStore.Put] are ignored.
type Watcher struct {
	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	store    *FileStore
	onChange ChangeFunc
	debounce time.Duration
	logger   *zap.Logger
	stopCh   chan struct{}
	doneCh   chan struct{}
	running  bool
}

// WatcherOption configures a [Watcher].
type WatcherOption func(*Watcher)

// WithDebounce overrides [DefaultDebounce].
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithWatchLogger sets the watcher's logger.
func WithWatchLogger(l *zap.Logger) WatcherOption {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// NewWatcher creates a [Watcher] for store. Call [Watcher.Start] to begin.
func NewWatcher(store *FileStore, onChange ChangeFunc, opts ...WatcherOption) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	w := &Watcher{
		watcher:  fw,
		store:    store,
		onChange: onChange,
		debounce: DefaultDebounce,
		logger:   zap.NewNop(),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Start creates the store directory if needed and begins watching it.
// It is non-blocking; events are handled on a separate goroutine until ctx
// is cancelled or [Watcher.Stop] is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}

	if err := os.MkdirAll(w.store.Dir(), 0755); err != nil {
		return fmt.Errorf("failed to create evidence dir: %w", err)
	}
	if err := w.watcher.Add(w.store.Dir()); err != nil {
		return fmt.Errorf("failed to watch evidence dir: %w", err)
	}

	w.running = true
	w.logger.Debug("watching evidence dir", zap.String("dir", w.store.Dir()))
	go w.run(ctx)
	return nil
}

// Stop ends watching and waits for the event goroutine to exit.
// Calling Stop on a watcher that was never started just releases it.
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
		w.logger.Warn("error closing evidence watcher", zap.Error(err))
	}
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	pending := make(map[string]struct{})
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

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
			if w.isDirGone(event) {
				w.rewatch()
				// Every evidence file went with the directory.
				for _, key := range w.store.Keys() {
					pending[key] = struct{}{}
				}
				timer.Reset(w.debounce)
				continue
			}
			key, relevant := w.keyFor(event)
			if !relevant {
				continue
			}
			pending[key] = struct{}{}
			timer.Reset(w.debounce)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("evidence watcher error", zap.Error(err))

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			keys := make([]string, 0, len(pending))
			for k := range pending {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			pending = make(map[string]struct{})

			w.logger.Debug("evidence changed", zap.Strings("keys", keys))
			if w.onChange != nil {
				w.onChange(ctx, keys)
			}
		}
	}
}

// isDirGone reports whether event removed or moved the store directory
// itself. fsnotify drops the watch when that happens.
func (w *Watcher) isDirGone(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}
	return filepath.Clean(event.Name) == filepath.Clean(w.store.Dir())
}

// rewatch recreates the store directory and watches it again.
func (w *Watcher) rewatch() {
	dir := w.store.Dir()
	w.logger.Warn("evidence dir removed, recreating", zap.String("dir", dir))
	if err := os.MkdirAll(dir, 0755); err != nil {
		w.logger.Warn("failed to recreate evidence dir", zap.String("dir", dir), zap.Error(err))
		return
	}
	if err := w.watcher.Add(dir); err != nil {
		w.logger.Warn("failed to watch evidence dir", zap.String("dir", dir), zap.Error(err))
	}
}

func (w *Watcher) keyFor(event fsnotify.Event) (string, bool) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return "", false
	}
	return w.store.KeyForFile(event.Name)
}
