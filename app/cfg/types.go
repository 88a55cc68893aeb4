package cfg

import "time"

type Cfg struct {
	// Provider configuration
	ProviderURL       string
	ProviderAPIKey    string
	ProviderTimeout   time.Duration
	SearchLimit       int
	DetailConcurrency int

	// Application configuration
	Port              string
	BaseUrl           string
	DBPath            string
	PresetsDir        string
	WorkerCount       int
	SchedulerInterval time.Duration
	DailyPageSize     int
	APIAccessKey      string

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}

// ClientCfg configures the terminal front end.
type ClientCfg struct {
	ServerURL    string
	APIAccessKey string
	StoragePath  string
	Tags         string
	Exclude      string
	Preset       string
	PageSize     int
	Debounce     time.Duration
	Timeout      time.Duration
	LogFile      string
	Debug        bool
}
