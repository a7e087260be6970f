package config

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher re-runs Load whenever config.yaml changes on disk and hands
// the fresh Config to every registered callback. Readers that go
// through Current (the origin allow-list) see edits without a restart;
// the room timer settings are read once at startup and are not
// re-applied.
type Watcher struct {
	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	logger   *zap.Logger
	current  atomic.Pointer[Config]
	onChange []func(*Config)
}

// NewWatcher starts watching path (typically "config.yaml" or
// "./config/config.yaml") for writes and seeds it with initial.
func NewWatcher(path string, initial *Config, logger *zap.Logger) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(path); err != nil {
		w.Close()
		return nil, err
	}

	watcher := &Watcher{watcher: w, logger: logger}
	watcher.current.Store(initial)
	return watcher, nil
}

// Current returns the most recently loaded configuration.
func (w *Watcher) Current() *Config {
	return w.current.Load()
}

// OnChange registers a callback invoked (with the new config) every
// time the file is reloaded. fn is also called once immediately with
// the current config so callers don't need a separate bootstrap read.
func (w *Watcher) OnChange(fn func(*Config)) {
	w.mu.Lock()
	w.onChange = append(w.onChange, fn)
	w.mu.Unlock()
	fn(w.current.Load())
}

// Run blocks, reloading on every write event, until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.watcher.Close()
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.reload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("config watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load()
	if err != nil {
		w.logger.Error("config reload failed, keeping previous config", zap.Error(err))
		return
	}
	w.current.Store(cfg)

	w.mu.Lock()
	callbacks := append([]func(*Config){}, w.onChange...)
	w.mu.Unlock()

	for _, fn := range callbacks {
		fn(cfg)
	}
	w.logger.Info("config reloaded")
}
