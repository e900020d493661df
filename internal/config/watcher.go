package config

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// Watcher polls a config file and calls a callback whenever a changed,
// valid version appears. Invalid versions are logged and skipped; the last
// valid config stays current.
type Watcher struct {
	path     string
	interval time.Duration
	onChange func(old, new *Config)

	mu        sync.Mutex
	current   *Config
	lastMtime time.Time
	lastHash  [sha256.Size]byte

	done     chan struct{}
	stopOnce sync.Once
}

// WatcherOption configures a [Watcher].
type WatcherOption func(*Watcher)

// WithInterval sets the polling interval. The default is 5 seconds.
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// NewWatcher loads path once and starts polling it in the background.
// Call [Watcher.Stop] to end polling.
func NewWatcher(path string, onChange func(old, new *Config), opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		path:     path,
		interval: 5 * time.Second,
		onChange: onChange,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	cfg, hash, mtime, err := w.read()
	if err != nil {
		return nil, fmt.Errorf("config: watcher initial load: %w", err)
	}
	w.current, w.lastHash, w.lastMtime = cfg, hash, mtime

	go w.poll()
	return w, nil
}

// Current returns the most recently loaded valid config.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Stop ends polling. It is safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.done) })
}

func (w *Watcher) poll() {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.check()
		}
	}
}

func (w *Watcher) check() {
	info, err := os.Stat(w.path)
	if err != nil {
		slog.Warn("config watcher: cannot stat file", "path", w.path, "err", err)
		return
	}
	w.mu.Lock()
	unchanged := info.ModTime().Equal(w.lastMtime)
	w.mu.Unlock()
	if unchanged {
		return
	}

	cfg, hash, mtime, err := w.read()
	if err != nil {
		slog.Warn("config watcher: keeping previous config", "path", w.path, "err", err)
		return
	}

	w.mu.Lock()
	w.lastMtime = mtime
	if hash == w.lastHash {
		w.mu.Unlock()
		return
	}
	old := w.current
	w.current, w.lastHash = cfg, hash
	w.mu.Unlock()

	slog.Info("config watcher: configuration reloaded", "path", w.path)
	if w.onChange != nil {
		w.onChange(old, cfg)
	}
}

// read loads, hashes and validates the file in one pass.
func (w *Watcher) read() (*Config, [sha256.Size]byte, time.Time, error) {
	var zero [sha256.Size]byte

	info, err := os.Stat(w.path)
	if err != nil {
		return nil, zero, time.Time{}, err
	}
	data, err := os.ReadFile(w.path)
	if err != nil {
		return nil, zero, time.Time{}, err
	}
	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, zero, time.Time{}, err
	}
	return cfg, sha256.Sum256(data), info.ModTime(), nil
}
