package cfg

import (
	"cmp"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Provider configuration
	ProviderURL       string `long:"provider-url" env:"PROVIDER_URL" default:"https://api.spoonacular.com" description:"Base URL of the recipe provider API"`
	ProviderAPIKey    string `long:"provider-api-key" env:"SPOONACULAR_API_KEY" description:"Recipe provider API key (required)" required:"true"`
	ProviderTimeout   int    `long:"provider-timeout" env:"PROVIDER_TIMEOUT" default:"15" description:"Provider request timeout in seconds"`
	SearchLimit       int    `long:"search-limit" env:"SEARCH_LIMIT" default:"10" description:"Maximum keyword matches fetched in detail per search"`
	DetailConcurrency int    `long:"detail-concurrency" env:"DETAIL_CONCURRENCY" default:"5" description:"Concurrent detail lookups per search"`

	// Application configuration
	Port              string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	BaseUrl           string `long:"base-url" env:"BASE_URL" description:"Public base URL for the service (e.g., https://recipes.example.com)"`
	DBPath            string `long:"db-path" env:"DB_PATH" default:"./data/recipe-planner.db" description:"SQLite database file"`
	PresetsDir        string `long:"presets-dir" env:"PRESETS_DIR" default:"./presets" description:"Directory containing tag preset files"`
	WorkerCount       int    `long:"worker-count" env:"WORKER_COUNT" default:"2" description:"Number of background workers"`
	SchedulerInterval int    `long:"scheduler-interval" env:"SCHEDULER_INTERVAL" default:"300" description:"Scheduler interval in seconds"`
	DailyPageSize     int    `long:"daily-page-size" env:"DAILY_PAGE_SIZE" default:"8" description:"Recipes fetched for the daily picks"`
	APIAccessKey      string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key protecting planner endpoints (optional)"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"Recipe Planner/1.0" description:"User agent string for provider requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for daily picks (e.g., UTC, America/New_York)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

type rawClientCfg struct {
	ServerURL    string `long:"server" env:"PLANNER_SERVER_URL" default:"http://localhost:8080" description:"Recipe planner server URL"`
	APIAccessKey string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for the server (optional)"`
	StoragePath  string `long:"storage" env:"PLANNER_STORAGE" default:"./data/planner.db" description:"Local SQLite file holding planned meals"`
	Tags         string `long:"tags" env:"PLANNER_TAGS" description:"Comma separated tags for browsing"`
	Exclude      string `long:"exclude" env:"PLANNER_EXCLUDE" description:"Comma separated tags to exclude while browsing"`
	Preset       string `long:"preset" env:"PLANNER_PRESET" description:"Server side tag preset to browse with"`
	PageSize     int    `long:"page-size" env:"PLANNER_PAGE_SIZE" default:"8" description:"Recipes per browse page"`
	Debounce     int    `long:"debounce" env:"PLANNER_DEBOUNCE_MS" default:"500" description:"Search debounce in milliseconds"`
	Timeout      int    `long:"timeout" env:"PLANNER_TIMEOUT" default:"30" description:"Server request timeout in seconds"`
	LogFile      string `long:"log-file" env:"PLANNER_LOG_FILE" description:"Write logs to this file"`
	Debug        bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

// Load parses flags and environment (after reading .env when present). It
// returns nil, nil when help was requested.
func Load() (*Cfg, error) {
	return load(nil)
}

func load(args []string) (*Cfg, error) {
	loadDotEnv()

	var raw rawCfg
	if ok, err := parse(&raw, args); !ok || err != nil {
		return nil, err
	}

	cfg := &Cfg{
		ProviderURL:       raw.ProviderURL,
		ProviderAPIKey:    raw.ProviderAPIKey,
		ProviderTimeout:   time.Duration(raw.ProviderTimeout) * time.Second,
		SearchLimit:       raw.SearchLimit,
		DetailConcurrency: raw.DetailConcurrency,
		Port:              raw.Port,
		BaseUrl:           raw.BaseUrl,
		DBPath:            raw.DBPath,
		PresetsDir:        raw.PresetsDir,
		WorkerCount:       raw.WorkerCount,
		SchedulerInterval: time.Duration(raw.SchedulerInterval) * time.Second,
		DailyPageSize:     raw.DailyPageSize,
		APIAccessKey:      raw.APIAccessKey,
		UserAgent:         raw.UserAgent,
		Timezone:          raw.Timezone,
		Debug:             raw.Debug,
		Version:           GetVersion(),
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	if cfg.BaseUrl == "" {
		cfg.BaseUrl = "http://localhost:" + cfg.Port
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		slog.Warn("Invalid timezone, using system default", "timezone", cfg.Timezone, "error", err)
	}

	globalCfg = cfg

	return cfg, nil
}

// LoadClient parses the terminal client's flags and environment.
func LoadClient() (*ClientCfg, error) {
	return loadClient(nil)
}

func loadClient(args []string) (*ClientCfg, error) {
	loadDotEnv()

	var raw rawClientCfg
	if ok, err := parse(&raw, args); !ok || err != nil {
		return nil, err
	}

	if raw.PageSize <= 0 {
		return nil, fmt.Errorf("page size must be positive")
	}

	return &ClientCfg{
		ServerURL:    raw.ServerURL,
		APIAccessKey: raw.APIAccessKey,
		StoragePath:  raw.StoragePath,
		Tags:         raw.Tags,
		Exclude:      raw.Exclude,
		Preset:       raw.Preset,
		PageSize:     raw.PageSize,
		Debounce:     time.Duration(raw.Debounce) * time.Millisecond,
		Timeout:      time.Duration(raw.Timeout) * time.Second,
		LogFile:      raw.LogFile,
		Debug:        raw.Debug,
	}, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

// parse reports false when help was shown.
func parse(data any, args []string) (bool, error) {
	parser := flags.NewParser(data, flags.Default)

	var err error
	if args == nil {
		_, err = parser.Parse()
	} else {
		_, err = parser.ParseArgs(args)
	}

	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return false, nil
			}
		}
		return false, fmt.Errorf("failed to parse configuration: %w", err)
	}
	return true, nil
}

func validate(cfg *Cfg) error {
	positive := map[string]int{
		"provider timeout":   int(cfg.ProviderTimeout),
		"search limit":       cfg.SearchLimit,
		"detail concurrency": cfg.DetailConcurrency,
		"worker count":       cfg.WorkerCount,
		"scheduler interval": int(cfg.SchedulerInterval),
		"daily page size":    cfg.DailyPageSize,
	}

	for name, value := range positive {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	return nil
}

func loadDotEnv() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("Failed to load .env file", "error", err)
	}
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
			slog.Debug("Timezone configured", "timezone", timezone)
		}
	}
	return nil
}
