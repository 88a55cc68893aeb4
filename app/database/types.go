package database

import (
	"time"

	"github.com/lysyi3m/recipe-planner/app/recipe"
)

// DailyPicks is one day's browse page with its highlight set aside.
type DailyPicks struct {
	Date      string          `json:"date"`
	Highlight *recipe.Recipe  `json:"highlight,omitempty"`
	Recipes   []recipe.Recipe `json:"recipes"`
	FetchedAt time.Time       `json:"fetchedAt"`
}
