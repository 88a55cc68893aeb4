package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lysyi3m/recipe-planner/app/database"
	"github.com/lysyi3m/recipe-planner/app/feed"
	"github.com/lysyi3m/recipe-planner/app/planner"
	"github.com/lysyi3m/recipe-planner/app/recipe"
	"github.com/lysyi3m/recipe-planner/app/tasks"
)

const (
	maxRandomNumber = 100

	msgServerError       = "Server error"
	msgDetailServerError = "Server error while fetching recipe details"
	msgMissingQuery      = "Missing search query"
)

func NewHandler(provider RecipeProvider, picksRepo database.DailyPicksRepository, presets *feed.PresetCache,
	plannerStore *planner.Store, scheduler tasks.TaskSchedulerInterface, baseURL, version string) *Handler {
	return &Handler{
		provider:  provider,
		generator: feed.NewGenerator(baseURL, version),
		picksRepo: picksRepo,
		presets:   presets,
		planner:   plannerStore,
		scheduler: scheduler,
		version:   version,
		now:       time.Now,
	}
}

func (h *Handler) GetRandomRecipes(c *gin.Context) {
	q := recipe.RandomQuery{
		Tags:    strings.TrimSpace(c.Query("tags")),
		Exclude: strings.TrimSpace(c.Query("exclude")),
		Number:  recipe.DefaultRandomNumber,
	}

	if raw := c.Query("number"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxRandomNumber {
			c.JSON(http.StatusBadRequest, gin.H{"error": "number must be an integer between 1 and 100"})
			return
		}
		q.Number = n
	}

	if raw := c.Query("includeNutrition"); raw != "" {
		include, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "includeNutrition must be true or false"})
			return
		}
		q.IncludeNutrition = include
	}

	if name := c.Query("preset"); name != "" {
		preset, err := h.presets.GetPreset(name)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown preset"})
			return
		}
		if q.Tags == "" {
			q.Tags = preset.Tags
		}
		if q.Exclude == "" {
			q.Exclude = preset.Exclude
		}
	}

	recipes, err := h.provider.FetchRandom(c.Request.Context(), q)
	if err != nil {
		slog.Error("Provider error", "operation", "random", "tags", q.Tags, "error", err)
		respondProviderError(c, err, msgServerError)
		return
	}

	c.JSON(http.StatusOK, recipesResponse{Recipes: recipes})
}

func (h *Handler) SearchRecipes(c *gin.Context) {
	query := strings.TrimSpace(c.Query("query"))
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgMissingQuery})
		return
	}

	recipes, err := h.provider.SearchByText(c.Request.Context(), query)
	if err != nil {
		slog.Error("Provider error", "operation", "search", "query", query, "error", err)

		var detailErr *recipe.DetailError
		var validationErr *recipe.ValidationError
		switch {
		case errors.As(err, &detailErr):
			c.JSON(http.StatusInternalServerError, gin.H{"error": msgDetailServerError})
		case errors.As(err, &validationErr):
			c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Message})
		default:
			respondProviderError(c, err, msgDetailServerError)
		}
		return
	}

	c.JSON(http.StatusOK, recipesResponse{Recipes: recipes})
}

func (h *Handler) GetRecipe(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid recipe id"})
		return
	}

	r, err := h.provider.Information(c.Request.Context(), id)
	if err != nil {
		slog.Error("Provider error", "operation", "information", "recipe_id", id, "error", err)
		respondProviderError(c, err, msgServerError)
		return
	}

	c.JSON(http.StatusOK, r)
}

// respondProviderError passes provider statuses through and falls back to a
// 500 with fallback as the message.
func respondProviderError(c *gin.Context, err error, fallback string) {
	if errors.Is(err, recipe.ErrProviderUnavailable) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": recipe.UserMessage(err)})
		return
	}

	var upErr *recipe.UpstreamError
	if errors.As(err, &upErr) {
		c.JSON(upErr.Status, gin.H{"error": upErr.Message})
		return
	}

	c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
}

func (h *Handler) GetDailyPicks(c *gin.Context) {
	picks, ok := h.loadDailyPicks(c)
	if !ok {
		return
	}

	c.Header("X-Picks-Date", picks.Date)
	c.JSON(http.StatusOK, picks)
}

func (h *Handler) GetDailyFeed(c *gin.Context) {
	picks, ok := h.loadDailyPicks(c)
	if !ok {
		return
	}

	rss, err := h.generator.Run(*picks)
	if err != nil {
		slog.Error("RSS generation error", "date", picks.Date, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Header("Content-Type", "application/xml; charset=utf-8")
	c.Header("X-Feed-Items", strconv.Itoa(len(picks.Recipes)+highlightCount(picks)))
	c.Header("X-Picks-Date", picks.Date)
	c.Header("X-Last-Updated", picks.FetchedAt.Format(time.RFC3339))

	c.String(http.StatusOK, rss)
}

// loadDailyPicks returns today's picks. When today is not stored yet it
// queues a refresh and serves the most recent day instead.
func (h *Handler) loadDailyPicks(c *gin.Context) (*database.DailyPicks, bool) {
	ctx := c.Request.Context()
	today := feed.DateKey(h.now().In(time.Local))

	picks, err := h.picksRepo.GetDailyPicks(ctx, today)
	if err != nil {
		slog.Error("Database error", "operation", "get_daily_picks", "date", today, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return nil, false
	}
	if picks != nil {
		return picks, true
	}

	if h.scheduler != nil {
		if _, err := h.scheduler.EnqueueDailyRefresh(today, false); err != nil {
			slog.Warn("Failed to enqueue daily refresh", "date", today, "error", err)
		}
	}

	picks, err = h.picksRepo.GetLatestDailyPicks(ctx)
	if err != nil {
		slog.Error("Database error", "operation", "get_latest_daily_picks", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return nil, false
	}
	if picks == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Daily picks are not ready yet"})
		return nil, false
	}

	return picks, true
}

func highlightCount(picks *database.DailyPicks) int {
	if picks.Highlight == nil {
		return 0
	}
	return 1
}

func (h *Handler) ListPresets(c *gin.Context) {
	presets := h.presets.GetPresets()
	c.JSON(http.StatusOK, gin.H{
		"presets": presets,
		"total":   len(presets),
	})
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"status":    "ok",
		"version":   h.version,
		"timestamp": h.now().In(time.Local).Format(time.RFC3339),
		"presets":   h.presets.GetPresetCount(),
	}

	if h.planner != nil {
		health["planned_meals"] = h.planner.Count()
	}

	today := feed.DateKey(h.now().In(time.Local))
	if picks, err := h.picksRepo.GetDailyPicks(c.Request.Context(), today); err == nil {
		health["daily_picks_ready"] = picks != nil
	} else {
		slog.Warn("Health check database error", "error", err)
		health["status"] = "degraded"
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) APIRefreshDailyPicks(c *gin.Context) {
	if h.scheduler == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Scheduler is not running"})
		return
	}

	today := feed.DateKey(h.now().In(time.Local))
	task, err := h.scheduler.EnqueueDailyRefresh(today, true)
	if err != nil {
		slog.Error("Error enqueueing refresh task", "date", today, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to enqueue refresh task",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"message": "Daily picks refresh enqueued",
		"tasks": []gin.H{
			{"id": task.ID, "type": task.Type, "subject": task.Subject},
		},
	})
}
