package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lysyi3m/recipe-planner/app/recipe"
)

var _ DailyPicksRepository = (*DailyPicksStore)(nil)

type DailyPicksStore struct {
	db *DB
}

func NewDailyPicksStore(db *DB) *DailyPicksStore {
	return &DailyPicksStore{db: db}
}

// GetDailyPicks returns nil when nothing was stored for date.
func (s *DailyPicksStore) GetDailyPicks(ctx context.Context, date string) (*DailyPicks, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT date, highlight, recipes, fetched_at
		FROM daily_picks
		WHERE date = ?
	`, date)
	return scanDailyPicks(row)
}

func (s *DailyPicksStore) GetLatestDailyPicks(ctx context.Context) (*DailyPicks, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT date, highlight, recipes, fetched_at
		FROM daily_picks
		ORDER BY date DESC
		LIMIT 1
	`)
	return scanDailyPicks(row)
}

func (s *DailyPicksStore) SaveDailyPicks(ctx context.Context, picks DailyPicks) error {
	var highlight sql.NullString
	if picks.Highlight != nil {
		data, err := json.Marshal(picks.Highlight)
		if err != nil {
			return fmt.Errorf("failed to encode highlight: %w", err)
		}
		highlight = sql.NullString{String: string(data), Valid: true}
	}

	recipes := picks.Recipes
	if recipes == nil {
		recipes = []recipe.Recipe{}
	}
	recipesData, err := json.Marshal(recipes)
	if err != nil {
		return fmt.Errorf("failed to encode recipes: %w", err)
	}

	fetchedAt := picks.FetchedAt
	if fetchedAt.IsZero() {
		fetchedAt = time.Now()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO daily_picks (date, highlight, recipes, fetched_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			highlight = excluded.highlight,
			recipes = excluded.recipes,
			fetched_at = excluded.fetched_at
	`, picks.Date, highlight, string(recipesData), fetchedAt.UTC().Unix())
	if err != nil {
		return fmt.Errorf("failed to save daily picks for %s: %w", picks.Date, err)
	}
	return nil
}

// DeleteDailyPicksBefore prunes days older than date (ISO dates sort lexically).
func (s *DailyPicksStore) DeleteDailyPicksBefore(ctx context.Context, date string) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM daily_picks WHERE date < ?`, date)
	if err != nil {
		return 0, fmt.Errorf("failed to prune daily picks: %w", err)
	}
	return result.RowsAffected()
}

func scanDailyPicks(row *sql.Row) (*DailyPicks, error) {
	var (
		picks     DailyPicks
		highlight sql.NullString
		recipes   string
		fetchedAt int64
	)

	err := row.Scan(&picks.Date, &highlight, &recipes, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read daily picks: %w", err)
	}

	if highlight.Valid {
		var r recipe.Recipe
		if err := json.Unmarshal([]byte(highlight.String), &r); err != nil {
			return nil, fmt.Errorf("failed to decode highlight: %w", err)
		}
		picks.Highlight = &r
	}

	if err := json.Unmarshal([]byte(recipes), &picks.Recipes); err != nil {
		return nil, fmt.Errorf("failed to decode recipes: %w", err)
	}

	picks.FetchedAt = time.Unix(fetchedAt, 0).In(time.Local)
	return &picks, nil
}
