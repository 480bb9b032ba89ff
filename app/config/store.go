package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const reloadDebounce = 250 * time.Millisecond

// Store holds the current settings and keeps them fresh by watching the
// settings file. A reload only replaces the current settings when the new
// file validates; a broken edit keeps the last good version running.
type Store struct {
	path string

	mu       sync.RWMutex
	settings *Settings

	// onApply runs after a successful reload, outside the lock.
	onApply func(Settings)
}

func NewStore(path string, initial *Settings) *Store {
	return &Store{path: path, settings: initial}
}

// OnApply installs a callback invoked with each successfully applied
// settings version. Install it before calling Watch.
func (s *Store) OnApply(fn func(Settings)) {
	s.onApply = fn
}

func (s *Store) Current() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return *s.settings
}

func (s *Store) Replace(settings *Settings) {
	s.mu.Lock()
	s.settings = settings
	s.mu.Unlock()

	if s.onApply != nil {
		s.onApply(*settings)
	}
}

// Watch blocks until the context is cancelled, reloading the settings file
// whenever it changes. Editors tend to emit several events per save, so
// reloads are debounced. Watches the directory, not the file, to survive
// rename-based saves.
func (s *Store) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	dir := filepath.Dir(s.path)
	file := filepath.Base(s.path)
	if err := watcher.Add(dir); err != nil {
		return err
	}

	slog.Debug("Settings watcher started", "path", s.path)

	var (
		timerMu sync.Mutex
		timer   *time.Timer
	)
	reload := func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(reloadDebounce, s.reload)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !strings.EqualFold(filepath.Base(event.Name), file) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				reload()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("Settings watcher error", "error", err)
		}
	}
}

func (s *Store) reload() {
	settings, err := LoadSettings(s.path)
	if err != nil {
		slog.Warn("Settings reload rejected, keeping previous version", "path", s.path, "error", err)
		return
	}

	s.Replace(settings)
	slog.Info("Settings reloaded", "path", s.path)
}
