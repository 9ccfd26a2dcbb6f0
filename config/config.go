package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full trader configuration.
type Config struct {
	Trader    TraderConfig    `yaml:"trader"`
	LTD60     LTD60Config     `yaml:"ltd60"`
	Betfair   BetfairConfig   `yaml:"betfair"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Storage   StorageConfig   `yaml:"storage"`
	Log       LogConfig       `yaml:"log"`
	Telegram  TelegramConfig  `yaml:"telegram"`
}

// TraderConfig controls the match lifecycle loop.
type TraderConfig struct {
	PollIntervalSeconds    int  `yaml:"poll_interval_seconds"`
	HeartbeatMinutes       int  `yaml:"heartbeat_minutes"`
	PaperMode              bool `yaml:"paper_mode"`
	SPCaptureWindowSeconds int  `yaml:"sp_capture_window_seconds"`
	SPFallbackInplay       bool `yaml:"sp_fallback_inplay"`
	FinishTimeoutHours     int  `yaml:"finish_timeout_hours"`
	PurgeAfterHours        int  `yaml:"purge_after_hours"`
}

// LTD60Config holds the lay-the-draw strategy parameters.
type LTD60Config struct {
	MaxEntryOdds       float64 `yaml:"max_entry_odds"`
	MaxSecondEntryOdds float64 `yaml:"max_second_entry_odds"`
	KOWindowMinutes    int     `yaml:"ko_window_minutes"`
	SecondEntryMinute  int     `yaml:"second_entry_minute"`
	SecondCancelMinute int     `yaml:"second_cancel_minute"`
	StakePaper         float64 `yaml:"stake_paper"`
	StakeLive          float64 `yaml:"stake_live"`
	FilteredLeaguesCSV string  `yaml:"filtered_leagues_csv"`
	LateGoalLeaguesCSV string  `yaml:"late_goal_leagues_csv"`
}

// BetfairConfig holds exchange API settings. Credentials come from the
// environment (.env), never from the YAML file.
type BetfairConfig struct {
	APIBase           string  `yaml:"api_base"`
	LookaheadHours    int     `yaml:"lookahead_hours"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	AppKey            string  `yaml:"-"`
	Username          string  `yaml:"-"`
	Password          string  `yaml:"-"`
}

// SchedulerConfig controls the discovery refresh job.
type SchedulerConfig struct {
	IntervalMinutes int `yaml:"interval_minutes"`
	MaxRetries      int `yaml:"max_retries"`
}

// StorageConfig controls where match data is persisted.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // SQLite file path, or ":memory:"
}

// LogConfig controls log format and level.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// TelegramConfig enables heartbeat delivery to a Telegram chat when a token
// is present in the environment.
type TelegramConfig struct {
	ChatID int64  `yaml:"chat_id"`
	Token  string `yaml:"-"`
}

// Load reads the YAML config and the .env file if one exists. Environment
// variables win over YAML for the keys they cover.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)
	return &cfg, nil
}

// PollInterval returns the tick cadence as a time.Duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Trader.PollIntervalSeconds) * time.Second
}

// HeartbeatInterval returns the heartbeat cadence.
func (c *Config) HeartbeatInterval() time.Duration {
	return time.Duration(c.Trader.HeartbeatMinutes) * time.Minute
}

// SPCaptureWindow returns the pre-kickoff snapshot window.
func (c *Config) SPCaptureWindow() time.Duration {
	return time.Duration(c.Trader.SPCaptureWindowSeconds) * time.Second
}

// FinishTimeout returns how long past kickoff a match may stay unresolved
// before it is force-finished.
func (c *Config) FinishTimeout() time.Duration {
	return time.Duration(c.Trader.FinishTimeoutHours) * time.Hour
}

// PurgeAfter returns the staleness threshold for deleting unusable rows.
func (c *Config) PurgeAfter() time.Duration {
	return time.Duration(c.Trader.PurgeAfterHours) * time.Hour
}

// SchedulerInterval returns the discovery refresh cadence.
func (c *Config) SchedulerInterval() time.Duration {
	return time.Duration(c.Scheduler.IntervalMinutes) * time.Minute
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	cfg.Betfair.AppKey = os.Getenv("BETFAIR_APP_KEY")
	cfg.Betfair.Username = os.Getenv("BETFAIR_USERNAME")
	cfg.Betfair.Password = os.Getenv("BETFAIR_PASSWORD")
	cfg.Telegram.Token = os.Getenv("TELEGRAM_TOKEN")
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Telegram.ChatID = id
		}
	}
}

func setDefaults(cfg *Config) {
	if cfg.Trader.PollIntervalSeconds <= 0 {
		cfg.Trader.PollIntervalSeconds = 10
	}
	if cfg.Trader.HeartbeatMinutes <= 0 {
		cfg.Trader.HeartbeatMinutes = 5
	}
	if cfg.Trader.SPCaptureWindowSeconds <= 0 {
		cfg.Trader.SPCaptureWindowSeconds = 90
	}
	if cfg.Trader.FinishTimeoutHours <= 0 {
		cfg.Trader.FinishTimeoutHours = 4
	}
	if cfg.Trader.PurgeAfterHours <= 0 {
		cfg.Trader.PurgeAfterHours = 24
	}
	if cfg.LTD60.MaxEntryOdds <= 0 {
		cfg.LTD60.MaxEntryOdds = 4.5
	}
	if cfg.LTD60.MaxSecondEntryOdds <= 0 {
		cfg.LTD60.MaxSecondEntryOdds = 2.5
	}
	if cfg.LTD60.KOWindowMinutes <= 0 {
		cfg.LTD60.KOWindowMinutes = 12
	}
	if cfg.LTD60.SecondEntryMinute <= 0 {
		cfg.LTD60.SecondEntryMinute = 60
	}
	if cfg.LTD60.SecondCancelMinute <= 0 {
		cfg.LTD60.SecondCancelMinute = 75
	}
	if cfg.LTD60.StakePaper <= 0 {
		cfg.LTD60.StakePaper = 100
	}
	if cfg.LTD60.StakeLive <= 0 {
		cfg.LTD60.StakeLive = 4
	}
	if cfg.Betfair.APIBase == "" {
		cfg.Betfair.APIBase = "https://api.betfair.com"
	}
	if cfg.Betfair.LookaheadHours <= 0 {
		cfg.Betfair.LookaheadHours = 12
	}
	if cfg.Betfair.RequestsPerSecond <= 0 {
		cfg.Betfair.RequestsPerSecond = 5
	}
	if cfg.Scheduler.IntervalMinutes <= 0 {
		cfg.Scheduler.IntervalMinutes = 30
	}
	if cfg.Scheduler.MaxRetries <= 0 {
		cfg.Scheduler.MaxRetries = 5
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "ltdbot.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
