package tasks

import (
	"context"

	"github.com/lysyi3m/recipe-planner/app/recipe"
)

// TaskSchedulerInterface is what the HTTP layer and main need from the
// worker pool.
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
	EnqueueDailyRefresh(date string, force bool) (*RefreshDailyPicksTask, error)
}

// PageFetcher fetches one browse page from the recipe provider.
type PageFetcher interface {
	FetchRandom(ctx context.Context, q recipe.RandomQuery) ([]recipe.Recipe, error)
}

// PresetLoader reloads tag presets from disk.
type PresetLoader interface {
	Run() error
	GetPresetCount() int
}
