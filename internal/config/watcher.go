package config

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const (
	reloadDebounce = 500 * time.Millisecond
	debounceTick   = 100 * time.Millisecond
)

// ReloadFunc receives the freshly loaded config after the file changes.
type ReloadFunc func(*Config)

// Watcher reloads the config file when it changes on disk, so schedule edits
// take effect without restarting the daemon.
type Watcher struct {
	path   string
	onLoad ReloadFunc
	log    *zap.Logger

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewWatcher builds a watcher over the given config path.
func NewWatcher(path string, onLoad ReloadFunc, log *zap.Logger) *Watcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Watcher{path: path, onLoad: onLoad, log: log}
}

// Start begins watching. Editors replace files rather than writing in place,
// so the parent directory is watched and events filtered by name.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watcher != nil {
		return nil
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		fw.Close()
		return err
	}

	w.watcher = fw
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	go w.loop(fw, w.stopCh, w.doneCh)
	w.log.Info("config watcher started", zap.String("path", w.path))
	return nil
}

// Stop shuts the watcher down and waits for the event loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	fw, stopCh, doneCh := w.watcher, w.stopCh, w.doneCh
	w.watcher, w.stopCh, w.doneCh = nil, nil, nil
	w.mu.Unlock()
	if fw == nil {
		return
	}
	close(stopCh)
	fw.Close()
	<-doneCh
}

// loop debounces on the trailing edge: events mark the file dirty and the
// reload happens once the burst has been quiet for reloadDebounce, so the
// last save in a burst is always the one that takes effect.
func (w *Watcher) loop(fw *fsnotify.Watcher, stopCh, doneCh chan struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(debounceTick)
	defer ticker.Stop()

	base := filepath.Base(w.path)
	var pending bool
	var lastEvent time.Time
	for {
		select {
		case <-stopCh:
			return
		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != base {
				continue
			}
			if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Rename) {
				continue
			}
			pending = true
			lastEvent = time.Now()
		case <-ticker.C:
			if pending && time.Since(lastEvent) >= reloadDebounce {
				pending = false
				w.reload()
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			w.log.Warn("config watch error", zap.Error(err))
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		w.log.Error("config reload failed, keeping previous", zap.Error(err))
		return
	}
	w.log.Info("config reloaded", zap.Strings("schedule", cfg.Schedule.Times))
	w.onLoad(cfg)
}
