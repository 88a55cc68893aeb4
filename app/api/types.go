package api

import (
	"context"
	"time"

	"github.com/lysyi3m/recipe-planner/app/database"
	"github.com/lysyi3m/recipe-planner/app/feed"
	"github.com/lysyi3m/recipe-planner/app/planner"
	"github.com/lysyi3m/recipe-planner/app/provider"
	"github.com/lysyi3m/recipe-planner/app/recipe"
	"github.com/lysyi3m/recipe-planner/app/tasks"
)

// RecipeProvider is the provider surface the proxy forwards to.
type RecipeProvider interface {
	FetchRandom(ctx context.Context, q recipe.RandomQuery) ([]recipe.Recipe, error)
	SearchByText(ctx context.Context, term string) ([]recipe.Recipe, error)
	Information(ctx context.Context, id int) (*recipe.Recipe, error)
}

var _ RecipeProvider = (*provider.Client)(nil)

type GeneratorInterface interface {
	Run(picks database.DailyPicks) (string, error)
}

var _ GeneratorInterface = (*feed.Generator)(nil)

type Handler struct {
	provider  RecipeProvider
	generator GeneratorInterface
	picksRepo database.DailyPicksRepository
	presets   *feed.PresetCache
	planner   *planner.Store
	scheduler tasks.TaskSchedulerInterface
	version   string
	now       func() time.Time
}

type recipesResponse struct {
	Recipes []recipe.Recipe `json:"recipes"`
}
