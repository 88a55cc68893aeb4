package planner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/lysyi3m/recipe-planner/app/metrics"
	"github.com/lysyi3m/recipe-planner/app/recipe"
)

// Store is the single owner of the planned meal collection. Every mutation
// rewrites the whole collection to storage.
type Store struct {
	storage  Storage
	validate *validator.Validate
	metrics  *metrics.Collector

	mu    sync.Mutex
	meals []PlannedMeal
}

type Option func(*Store)

func WithMetrics(m *metrics.Collector) Option {
	return func(s *Store) {
		s.metrics = m
	}
}

// NewStore loads the persisted collection before returning, so callers never
// observe an empty store that has not been read yet. Missing or corrupt data
// yields an empty store; a storage failure is returned.
func NewStore(ctx context.Context, storage Storage, opts ...Option) (*Store, error) {
	s := &Store{
		storage:  storage,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		meals:    []PlannedMeal{},
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.load(ctx); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Store) load(ctx context.Context) error {
	data, ok, err := s.storage.Get(ctx, StorageKey)
	if err != nil {
		return fmt.Errorf("failed to load planned meals: %w", err)
	}
	if !ok || len(data) == 0 {
		return nil
	}

	var stored []PlannedMeal
	if err := json.Unmarshal(data, &stored); err != nil {
		slog.Warn("Planned meals in storage are unreadable, starting empty",
			"key", StorageKey, "error", fmt.Errorf("%w: %v", recipe.ErrStorageCorruption, err))
		return nil
	}

	seen := make(map[Key]struct{}, len(stored))
	for _, meal := range stored {
		if _, dup := seen[meal.Key()]; dup {
			continue
		}
		seen[meal.Key()] = struct{}{}
		s.meals = append(s.meals, meal)
	}

	slog.Debug("Planned meals loaded", "count", len(s.meals))
	return nil
}

// Add schedules a meal. Adding a meal whose (mealId, date, time) is already
// planned changes nothing and reports false.
func (s *Store) Add(ctx context.Context, meal PlannedMeal) (bool, error) {
	if err := s.validateMeal(meal); err != nil {
		s.observe("add", "invalid")
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexOf(meal.Key()) >= 0 {
		s.observe("add", "duplicate")
		return false, nil
	}

	previous := s.meals
	s.meals = append(slices.Clone(previous), meal)

	if err := s.persist(ctx); err != nil {
		s.meals = previous
		s.observe("add", "error")
		return false, err
	}

	s.observe("add", "added")
	return true, nil
}

// Remove deletes the meal matching the triple exactly. A missing meal is a
// no-op that reports false.
func (s *Store) Remove(ctx context.Context, mealID int, date, time string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(Key{MealID: mealID, Date: date, Time: time})
	if idx < 0 {
		s.observe("remove", "missing")
		return false, nil
	}

	previous := s.meals
	s.meals = slices.Delete(slices.Clone(previous), idx, idx+1)

	if err := s.persist(ctx); err != nil {
		s.meals = previous
		s.observe("remove", "error")
		return false, err
	}

	s.observe("remove", "removed")
	return true, nil
}

// Meals returns a copy of every planned meal in insertion order.
func (s *Store) Meals() []PlannedMeal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.meals)
}

// ForDate returns the meals planned on date in insertion order.
func (s *Store) ForDate(date string) []PlannedMeal {
	s.mu.Lock()
	defer s.mu.Unlock()

	meals := []PlannedMeal{}
	for _, meal := range s.meals {
		if meal.Date == date {
			meals = append(meals, meal)
		}
	}
	return meals
}

func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.meals)
}

func (s *Store) Has(mealID int, date, time string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.indexOf(Key{MealID: mealID, Date: date, Time: time}) >= 0
}

func (s *Store) indexOf(key Key) int {
	return slices.IndexFunc(s.meals, func(m PlannedMeal) bool {
		return m.Key() == key
	})
}

func (s *Store) persist(ctx context.Context) error {
	data, err := json.Marshal(s.meals)
	if err != nil {
		return fmt.Errorf("failed to encode planned meals: %w", err)
	}

	if err := s.storage.Set(ctx, StorageKey, data); err != nil {
		return fmt.Errorf("failed to persist planned meals: %w", err)
	}
	return nil
}

func (s *Store) validateMeal(meal PlannedMeal) error {
	err := s.validate.Struct(meal)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return &recipe.ValidationError{Field: fieldName(fe.Field()), Message: fieldMessage(fe)}
	}
	return &recipe.ValidationError{Message: err.Error()}
}

func (s *Store) observe(operation, result string) {
	if s.metrics != nil {
		s.metrics.PlannerMutations.WithLabelValues(operation, result).Inc()
	}
}

func fieldName(structField string) string {
	switch structField {
	case "MealID":
		return "mealId"
	case "Date":
		return "date"
	case "Time":
		return "time"
	}
	return structField
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "Please select both date and time."
	case "datetime":
		return fmt.Sprintf("must match %s", fe.Param())
	case "len":
		return fmt.Sprintf("must match %s", TimeLayout)
	case "gt":
		return "must be a positive recipe id"
	}
	return fmt.Sprintf("failed %s validation", fe.Tag())
}
