package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/lysyi3m/recipe-planner/app/cfg"
	"github.com/lysyi3m/recipe-planner/app/client"
	"github.com/lysyi3m/recipe-planner/app/database"
	"github.com/lysyi3m/recipe-planner/app/feed"
	"github.com/lysyi3m/recipe-planner/app/planner"
	"github.com/lysyi3m/recipe-planner/app/tui"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "recipe planner: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	clientCfg, err := cfg.LoadClient()
	if err != nil {
		return err
	}
	if clientCfg == nil {
		return nil
	}

	closeLog, err := setupLogging(clientCfg)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewDB(clientCfg.StoragePath)
	if err != nil {
		return fmt.Errorf("failed to open planner storage: %w", err)
	}
	defer db.Close()

	store, err := planner.NewStore(ctx, database.NewKVStore(db))
	if err != nil {
		return fmt.Errorf("failed to load planner: %w", err)
	}

	api := client.New(clientCfg.ServerURL, clientCfg.APIAccessKey, clientCfg.Timeout)

	tags, exclude := clientCfg.Tags, clientCfg.Exclude
	if clientCfg.Preset != "" {
		tags, exclude, err = resolvePreset(ctx, api, clientCfg.Preset, tags, exclude)
		if err != nil {
			return err
		}
	}

	notifier := tui.NewNotifier()
	controller := feed.NewController(ctx, api, feed.Options{
		PageSize: clientCfg.PageSize,
		Debounce: clientCfg.Debounce,
		Tags:     tags,
		Exclude:  exclude,
		OnChange: notifier.Notify,
	})
	defer controller.Close()

	slog.Info("Starting terminal client", "server", clientCfg.ServerURL, "tags", tags, "exclude", exclude, "planned_meals", store.Count())

	model := tui.NewModel(ctx, controller, api, store, notifier)
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := program.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("terminal UI failed: %w", err)
	}
	return nil
}

// resolvePreset fills tags and exclude from a server-side preset. Explicit
// flags win over the preset.
func resolvePreset(ctx context.Context, api *client.Client, name, tags, exclude string) (string, string, error) {
	presets, err := api.Presets(ctx)
	if err != nil {
		return "", "", fmt.Errorf("failed to load presets: %w", err)
	}

	for _, p := range presets {
		if p.Name != name {
			continue
		}
		if tags == "" {
			tags = p.Tags
		}
		if exclude == "" {
			exclude = p.Exclude
		}
		return tags, exclude, nil
	}
	return "", "", fmt.Errorf("preset %q not found", name)
}

// setupLogging sends slog output to the configured file. The terminal
// belongs to the UI, so without a file logs are dropped.
func setupLogging(c *cfg.ClientCfg) (func(), error) {
	level := slog.LevelInfo
	if c.Debug {
		level = slog.LevelDebug
	}

	if c.LogFile == "" {
		slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
		return func() {}, nil
	}

	f, err := os.OpenFile(c.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: level})))
	return func() { f.Close() }, nil
}
