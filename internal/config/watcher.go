package config

import (
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/fsnotify/fsnotify"
	"github.com/wudi/docgateway/internal/logging"
	"go.uber.org/zap"
)

const defaultDebounce = 500 * time.Millisecond

// Watcher reloads the route table and endpoint registry when the config file
// changes on disk. Subscribers only see configs that loaded and validated.
type Watcher struct {
	fs       *fsnotify.Watcher
	loader   *Loader
	path     string
	debounce time.Duration
	done     chan struct{}

	mu          sync.RWMutex
	subscribers []func(*Config)
	checksum    uint64
}

// NewWatcher loads path once and prepares to watch it. The initial load must
// succeed.
func NewWatcher(path string) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		fs:       fs,
		loader:   NewLoader(),
		path:     path,
		debounce: defaultDebounce,
		done:     make(chan struct{}),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		fs.Close()
		return nil, err
	}
	if _, err := w.loader.Parse(data); err != nil {
		fs.Close()
		return nil, err
	}
	w.checksum = xxhash.Sum64(data)

	return w, nil
}

// OnChange registers fn to receive every successfully reloaded config.
func (w *Watcher) OnChange(fn func(*Config)) {
	w.mu.Lock()
	w.subscribers = append(w.subscribers, fn)
	w.mu.Unlock()
}

// Start watches the config file's directory. Editors that save by rename
// replace the watched inode, so the file itself is not watched.
func (w *Watcher) Start() error {
	if err := w.fs.Add(filepath.Dir(w.path)); err != nil {
		return err
	}
	go w.loop()
	return nil
}

func (w *Watcher) loop() {
	var timer *time.Timer
	name := filepath.Base(w.path)

	for {
		select {
		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return

		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != name || !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, w.reload)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			logging.Error("config watcher error", zap.Error(err))
		}
	}
}

// reload re-reads the file. Unchanged content is ignored; a config that fails
// to parse or validate is logged and the previous one stays in effect.
func (w *Watcher) reload() {
	data, err := os.ReadFile(w.path)
	if err != nil {
		logging.Error("failed to read config", zap.String("path", w.path), zap.Error(err))
		return
	}

	sum := xxhash.Sum64(data)
	w.mu.RLock()
	unchanged := sum == w.checksum
	w.mu.RUnlock()
	if unchanged {
		return
	}

	cfg, err := w.loader.Parse(data)
	if err != nil {
		logging.Error("failed to reload config", zap.String("path", w.path), zap.Error(err))
		return
	}

	w.mu.Lock()
	w.checksum = sum
	subscribers := slices.Clone(w.subscribers)
	w.mu.Unlock()

	logging.Info("configuration reloaded",
		zap.String("path", w.path),
		zap.Int("routes", len(cfg.Routes)),
		zap.Int("endpoints", len(cfg.Swagger.Endpoints)),
	)

	for _, fn := range subscribers {
		fn(cfg)
	}
}

// Stop ends the watch loop.
func (w *Watcher) Stop() error {
	close(w.done)
	return w.fs.Close()
}

// SetDebounce sets how long to wait after the last write before reloading.
func (w *Watcher) SetDebounce(d time.Duration) {
	w.debounce = d
}
