package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads the config file on change and hands the re-validated
// result to a callback. Editors often replace files rather than write in
// place, so the parent directory is watched and events are debounced.
type Watcher struct {
	Path     string
	Cooldown time.Duration // minimum gap between reloads, default 2s
}

// Start blocks until ctx is cancelled. Invalid intermediate states (half-
// written files) are skipped silently; the last good config stays active.
func (w Watcher) Start(ctx context.Context, onUpdate func(AppConfig)) error {
	cooldown := w.Cooldown
	if cooldown <= 0 {
		cooldown = 2 * time.Second
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	dir := filepath.Dir(w.Path)
	if err := fw.Add(dir); err != nil {
		return err
	}
	target := filepath.Clean(w.Path)

	var lastReload time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if time.Since(lastReload) < cooldown {
				continue
			}
			cfg, err := LoadWithEnvOverrides(w.Path)
			if err != nil {
				continue
			}
			lastReload = time.Now()
			if onUpdate != nil {
				onUpdate(cfg)
			}
		case _, ok := <-fw.Errors:
			if !ok {
				return nil
			}
		}
	}
}
