package planner

import (
	"context"

	"github.com/lysyi3m/recipe-planner/app/recipe"
)

// StorageKey is the key the planner persists its meals under.
const StorageKey = "plannedMeals"

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// PlannedMeal is a recipe scheduled on a date and time. The recipe is a
// snapshot taken when the meal was scheduled.
type PlannedMeal struct {
	MealID int           `json:"mealId" validate:"gt=0"`
	Date   string        `json:"date" validate:"required,datetime=2006-01-02"`
	Time   string        `json:"time" validate:"required,len=5,datetime=15:04"`
	Recipe recipe.Recipe `json:"recipe"`
}

// Key identifies a planned meal.
type Key struct {
	MealID int
	Date   string
	Time   string
}

func (m PlannedMeal) Key() Key {
	return Key{MealID: m.MealID, Date: m.Date, Time: m.Time}
}

// Storage is durable key/value storage. Get reports false for a missing key.
type Storage interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
}
