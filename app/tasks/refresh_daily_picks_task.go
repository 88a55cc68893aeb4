package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lysyi3m/recipe-planner/app/database"
	"github.com/lysyi3m/recipe-planner/app/feed"
	"github.com/lysyi3m/recipe-planner/app/recipe"
)

const DailyPicksRetention = 7

type RefreshDailyPicksTask struct {
	Task
	Date      string
	Force     bool
	fetcher   PageFetcher
	picksRepo database.DailyPicksRepository
	pageSize  int
	now       func() time.Time
}

func NewRefreshDailyPicksTask(date string, fetcher PageFetcher, picksRepo database.DailyPicksRepository, pageSize int) *RefreshDailyPicksTask {
	return &RefreshDailyPicksTask{
		Task:      NewTask(TaskTypeRefreshDailyPicks, date),
		Date:      date,
		fetcher:   fetcher,
		picksRepo: picksRepo,
		pageSize:  pageSize,
		now:       time.Now,
	}
}

func (t *RefreshDailyPicksTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if !t.Force {
		existing, err := t.picksRepo.GetDailyPicks(ctx, t.Date)
		if err != nil {
			return fmt.Errorf("failed to read daily picks: %w", err)
		}
		if existing != nil {
			slog.Debug("Daily picks already stored", "date", t.Date, "fetched_at", existing.FetchedAt)
			return nil
		}
	}

	page, err := t.fetcher.FetchRandom(ctx, recipe.RandomQuery{Number: t.pageSize})
	if err != nil {
		if errors.Is(err, recipe.ErrQuotaExceeded) {
			t.GiveUp()
		}
		return fmt.Errorf("failed to fetch daily page: %w", err)
	}

	highlight, rest := feed.SplitHighlight(t.Date, page)
	picks := database.DailyPicks{
		Date:      t.Date,
		Highlight: highlight,
		Recipes:   rest,
		FetchedAt: t.now().UTC(),
	}

	if err := t.picksRepo.SaveDailyPicks(ctx, picks); err != nil {
		return fmt.Errorf("failed to save daily picks: %w", err)
	}

	slog.Info("Daily picks refreshed", "date", t.Date, "recipes", len(page), "highlight", highlightID(highlight))

	cutoff, err := retentionCutoff(t.Date)
	if err != nil {
		slog.Warn("Skipping daily picks pruning", "date", t.Date, "error", err)
		return nil
	}

	removed, err := t.picksRepo.DeleteDailyPicksBefore(ctx, cutoff)
	if err != nil {
		slog.Warn("Failed to prune daily picks", "before", cutoff, "error", err)
		return nil
	}
	if removed > 0 {
		slog.Debug("Pruned daily picks", "before", cutoff, "removed", removed)
	}

	return nil
}

func retentionCutoff(date string) (string, error) {
	day, err := time.Parse(time.DateOnly, date)
	if err != nil {
		return "", fmt.Errorf("failed to parse date %q: %w", date, err)
	}
	return day.AddDate(0, 0, -DailyPicksRetention).Format(time.DateOnly), nil
}

func highlightID(r *recipe.Recipe) int {
	if r == nil {
		return 0
	}
	return r.ID
}
