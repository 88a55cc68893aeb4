package feed

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the cache whenever a preset file changes, until ctx ends.
// onReload, when set, is called after every reload attempt.
func (pc *PresetCache) Watch(ctx context.Context, onReload func(error)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create preset watcher: %w", err)
	}

	if err := watcher.Add(pc.presetsDir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", pc.presetsDir, err)
	}

	go func() {
		defer watcher.Close()

		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Ext(event.Name) != ".yml" {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
					!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
					continue
				}

				err := pc.Run()
				if err != nil {
					slog.Warn("Failed to reload presets", "file", event.Name, "error", err)
				} else {
					slog.Info("Presets reloaded", "file", event.Name, "count", pc.GetPresetCount())
				}
				if onReload != nil {
					onReload(err)
				}

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Warn("Preset watcher error", "error", err)
			}
		}
	}()

	return nil
}
