package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// Watcher reloads the config file when it changes on disk and hands the
// result to a callback. A change that fails to load or validate is logged
// and dropped, so the last good config stays in effect.
type Watcher struct {
	watcher  *fsnotify.Watcher
	loader   *Loader
	onChange func(*Config)
	debounce time.Duration
	done     chan struct{}
	timerMu  sync.Mutex
	timer    *time.Timer
	stopOnce sync.Once
}

// NewWatcher creates a watcher for the loader's config file. onChange runs on
// the watcher goroutine after each successful reload.
func NewWatcher(loader *Loader, onChange func(*Config)) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	return &Watcher{
		watcher:  watcher,
		loader:   loader,
		onChange: onChange,
		debounce: 200 * time.Millisecond,
		done:     make(chan struct{}),
	}, nil
}

// Start starts watching the config file for changes.
func (w *Watcher) Start() error {
	configPath := w.loader.GetConfigPath()
	if configPath == "" {
		return fmt.Errorf("failed to determine config path")
	}

	// Watch the parent directory. Editors replace files via rename, which
	// breaks a watch on the file itself.
	if err := w.watcher.Add(filepath.Dir(configPath)); err != nil {
		return fmt.Errorf("failed to watch config directory: %w", err)
	}

	go w.eventLoop()

	log.Info().
		Str("path", configPath).
		Msg("Config watcher started")

	return nil
}

// Stop stops the watcher
func (w *Watcher) Stop() error {
	w.stopOnce.Do(func() {
		close(w.done)
	})

	w.timerMu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timerMu.Unlock()

	if err := w.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}

	log.Info().Msg("Config watcher stopped")
	return nil
}

// eventLoop processes file system events
func (w *Watcher) eventLoop() {
	configPath := filepath.Clean(w.loader.GetConfigPath())

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != configPath {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.scheduleReload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Error().Err(err).Msg("Config watcher error")

		case <-w.done:
			return
		}
	}
}

// scheduleReload debounces rapid successive writes into one reload.
func (w *Watcher) scheduleReload() {
	w.timerMu.Lock()
	defer w.timerMu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}

	w.timer = time.AfterFunc(w.debounce, func() {
		select {
		case <-w.done:
			return
		default:
			w.reload()
		}
	})
}

// reload loads, validates, and publishes the changed config.
func (w *Watcher) reload() {
	cfg, err := w.loader.Load()
	if err != nil {
		log.Error().Err(err).Msg("Failed to reload config, keeping previous")
		return
	}

	if err := cfg.Validate(); err != nil {
		log.Warn().Err(err).Msg("Changed config is invalid, keeping previous")
		return
	}

	log.Info().Msg("Config reloaded")

	if w.onChange != nil {
		w.onChange(cfg)
	}
}
