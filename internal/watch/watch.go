// Package watch reindexes the manifest when its file changes on disk.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/JackyBoizy/D2Armory/internal/logging"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the file must stay quiet before a reindex.
const DefaultDebounce = 500 * time.Millisecond

// Reindexer rebuilds the index.
type Reindexer interface {
	Reindex(ctx context.Context) error
}

// Config configures a Watcher.
type Config struct {
	Path     string
	Debounce time.Duration
	Retry    *RetryConfig // nil means DefaultRetryConfig
	Logger   *slog.Logger
}

// Watcher triggers a reindex after writes to the manifest file settle.
// The parent directory is watched so that a manifest replaced by rename is
// picked up too.
type Watcher struct {
	target   Reindexer
	path     string
	debounce time.Duration
	retry    *RetryConfig
	logger   *slog.Logger

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	cancel  context.CancelFunc
	done    chan struct{}
}

// New creates a Watcher. Call Start to begin watching.
func New(target Reindexer, cfg Config) *Watcher {
	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	retry := cfg.Retry
	if retry == nil {
		retry = DefaultRetryConfig()
	}
	return &Watcher{
		target:   target,
		path:     filepath.Clean(cfg.Path),
		debounce: debounce,
		retry:    retry,
		logger:   logging.Default(cfg.Logger).With("component", "watch", "path", cfg.Path),
	}
}

// Start begins watching. The watch ends when ctx is cancelled or Close is
// called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.watcher != nil {
		return fmt.Errorf("watcher already started")
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	dir := filepath.Dir(w.path)
	if err := fw.Add(dir); err != nil {
		_ = fw.Close()
		return fmt.Errorf("watch %q: %w", dir, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	w.watcher = fw
	w.cancel = cancel
	w.done = make(chan struct{})

	go w.loop(ctx, fw, w.done)
	w.logger.Info("watching manifest")
	return nil
}

func (w *Watcher) loop(ctx context.Context, fw *fsnotify.Watcher, done chan struct{}) {
	defer close(done)

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-fw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				timer.Reset(w.debounce)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", "error", err)
		case <-timer.C:
			w.logger.Info("manifest changed, reindexing")
			err := w.retry.retry(ctx, func() error {
				err := w.target.Reindex(ctx)
				if err != nil && ctx.Err() == nil {
					w.logger.Warn("reindex attempt failed", "error", err)
				}
				return err
			})
			if err != nil && ctx.Err() == nil {
				w.logger.Error("reindex after change failed", "error", err)
			}
		}
	}
}

// Close stops watching and waits for the loop to exit.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.watcher == nil {
		return nil
	}
	w.cancel()
	err := w.watcher.Close()
	<-w.done
	w.watcher = nil
	w.cancel = nil
	w.done = nil
	return err
}
