package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lysyi3m/recipe-planner/app/api"
	"github.com/lysyi3m/recipe-planner/app/cfg"
	"github.com/lysyi3m/recipe-planner/app/database"
	"github.com/lysyi3m/recipe-planner/app/feed"
	"github.com/lysyi3m/recipe-planner/app/metrics"
	"github.com/lysyi3m/recipe-planner/app/planner"
	"github.com/lysyi3m/recipe-planner/app/provider"
	"github.com/lysyi3m/recipe-planner/app/tasks"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if appCfg == nil {
		return
	}

	level := slog.LevelInfo
	if appCfg.Debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	slog.Info("Starting Recipe Planner server", "version", cfg.GetVersion(), "timezone", appCfg.Timezone)

	db, err := database.NewDB(appCfg.DBPath)
	if err != nil {
		slog.Error("Failed to open database", "path", appCfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	collector := metrics.NewCollector()

	plannerStore, err := planner.NewStore(ctx, database.NewKVStore(db), planner.WithMetrics(collector))
	if err != nil {
		slog.Error("Failed to load planner", "error", err)
		os.Exit(1)
	}
	slog.Info("Planner loaded", "meals", plannerStore.Count())

	recipeProvider := provider.NewClient(provider.Options{
		BaseURL:           appCfg.ProviderURL,
		APIKey:            appCfg.ProviderAPIKey,
		UserAgent:         appCfg.UserAgent,
		Timeout:           appCfg.ProviderTimeout,
		Metrics:           collector,
		Breaker:           provider.DefaultBreakerConfig(),
		SearchLimit:       appCfg.SearchLimit,
		DetailConcurrency: appCfg.DetailConcurrency,
	})

	presets, presetPoller, err := setupPresets(ctx, appCfg.PresetsDir)
	if err != nil {
		slog.Error("Failed to load presets", "dir", appCfg.PresetsDir, "error", err)
		os.Exit(1)
	}
	slog.Info("Presets loaded", "count", presets.GetPresetCount())

	picksRepo := database.NewDailyPicksStore(db)

	scheduler := tasks.NewScheduler(recipeProvider, picksRepo, presetPoller, collector, tasks.Config{
		Interval:      appCfg.SchedulerInterval,
		WorkerCount:   appCfg.WorkerCount,
		DailyPageSize: appCfg.DailyPageSize,
		PresetsDir:    appCfg.PresetsDir,
	})
	scheduler.Start()
	defer scheduler.Stop()

	handler := api.NewHandler(recipeProvider, picksRepo, presets, plannerStore, scheduler, appCfg.BaseUrl, cfg.GetVersion())
	server := api.NewServer(handler, appCfg.APIAccessKey, collector)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", appCfg.Port, "base_url", appCfg.BaseUrl)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("Shutdown signal received")
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped")
	}

	slog.Info("Recipe Planner server shutdown complete")
}

// setupPresets loads the presets before anything serves them and starts the
// file watcher. The returned loader is non-nil only when the watcher could not
// start, in which case the scheduler reloads the presets on every tick.
func setupPresets(ctx context.Context, dir string) (*feed.PresetCache, tasks.PresetLoader, error) {
	presets := feed.NewPresetCache(dir)
	if err := presets.Run(); err != nil {
		return nil, nil, err
	}

	if err := presets.Watch(ctx, nil); err != nil {
		slog.Warn("Preset hot reload disabled, polling instead", "dir", dir, "error", err)
		return presets, presets, nil
	}
	return presets, nil, nil
}
