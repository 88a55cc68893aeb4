package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lysyi3m/recipe-planner/app/metrics"
)

// NewServer builds the gin engine with every route configured. m may be nil,
// in which case /metrics is not served.
func NewServer(handler *Handler, apiAccessKey string, m *metrics.Collector) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(requestIDMiddleware())
	r.Use(loggerMiddleware())
	r.Use(gin.Recovery())
	r.Use(corsMiddleware())
	if m != nil {
		r.Use(metricsMiddleware(m))
	}

	setupRoutes(r, handler, apiAccessKey, m)

	return r
}

func setupRoutes(r *gin.Engine, handler *Handler, apiAccessKey string, m *metrics.Collector) {
	r.GET("/feeds/daily", handler.GetDailyFeed)

	r.GET("/health", handler.GetHealth)
	if m != nil {
		r.GET("/metrics", gin.WrapH(m.Handler()))
	}

	api := r.Group("/api")
	{
		api.GET("/recipes/random", handler.GetRandomRecipes)
		api.GET("/recipes/search", handler.SearchRecipes)
		api.GET("/recipes/daily", handler.GetDailyPicks)
		api.GET("/recipes/:id", handler.GetRecipe)
		api.GET("/presets", handler.ListPresets)
	}

	guarded := api.Group("")
	if apiAccessKey != "" {
		guarded.Use(authMiddleware(apiAccessKey))
		slog.Info("Planner and admin endpoints require an API key")
	} else {
		slog.Warn("Planner and admin endpoints are open (API_ACCESS_KEY not set)")
	}
	{
		guarded.GET("/planner/meals", handler.ListPlannedMeals)
		guarded.POST("/planner/meals", handler.AddPlannedMeal)
		guarded.DELETE("/planner/meals", handler.RemovePlannedMeal)
		guarded.POST("/recipes/daily/refresh", handler.APIRefreshDailyPicks)
	}

	r.GET("/", func(c *gin.Context) {
		endpoints := map[string]string{
			"random":  "/api/recipes/random?tags=&exclude=&number=&preset=",
			"search":  "/api/recipes/search?query=",
			"recipe":  "/api/recipes/<id>",
			"daily":   "/api/recipes/daily",
			"feed":    "/feeds/daily",
			"presets": "/api/presets",
			"planner": "/api/planner/meals",
			"health":  "/health",
		}
		if m != nil {
			endpoints["metrics"] = "/metrics"
		}

		c.JSON(http.StatusOK, gin.H{
			"service":     "Recipe Planner",
			"version":     handler.version,
			"description": "Recipe browsing and meal planning proxy",
			"endpoints":   endpoints,
			"api_status": map[string]interface{}{
				"auth_required": apiAccessKey != "",
				"header":        "X-API-Key",
			},
		})
	})

	r.GET("/favicon.ico", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
}
