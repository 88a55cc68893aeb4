package tasks

import (
	"context"
	"fmt"
	"log/slog"
)

type ReloadPresetsTask struct {
	Task
	presets PresetLoader
}

func NewReloadPresetsTask(dir string, presets PresetLoader) *ReloadPresetsTask {
	return &ReloadPresetsTask{
		Task:    NewTask(TaskTypeReloadPresets, dir),
		presets: presets,
	}
}

func (t *ReloadPresetsTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if err := t.presets.Run(); err != nil {
		// A broken YAML file will not fix itself between retries.
		t.GiveUp()
		return fmt.Errorf("failed to reload presets: %w", err)
	}

	slog.Info("Presets loaded", "dir", t.Subject, "count", t.presets.GetPresetCount())
	return nil
}
