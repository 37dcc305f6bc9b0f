package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// DateLayout is the layout of date-valued settings.
const DateLayout = "2006-01-02"

// Config represents the complete application configuration
type Config struct {
	Reddit    RedditConfig    `mapstructure:"reddit"`
	Tickers   TickersConfig   `mapstructure:"tickers"`
	Volume    VolumeConfig    `mapstructure:"volume"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Analysis  AnalysisConfig  `mapstructure:"analysis"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// RedditConfig holds Reddit API credentials and scrape limits
type RedditConfig struct {
	ClientID          string        `mapstructure:"client_id"`
	ClientSecret      string        `mapstructure:"client_secret"`
	Username          string        `mapstructure:"username"`
	Password          string        `mapstructure:"password"`
	UserAgent         string        `mapstructure:"user_agent"`
	AuthURL           string        `mapstructure:"auth_url"`
	APIURL            string        `mapstructure:"api_url"`
	Subreddits        []string      `mapstructure:"subreddits"`
	PostLimit         int           `mapstructure:"post_limit"`
	CommentLimit      int           `mapstructure:"comment_limit"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
	MaxRetries        int           `mapstructure:"max_retries"`
	Timeout           time.Duration `mapstructure:"timeout"`
}

// TickersConfig holds the reference ticker list location
type TickersConfig struct {
	SourceURL string `mapstructure:"source_url"`
	CachePath string `mapstructure:"cache_path"`
}

// VolumeConfig selects where daily trading volumes come from
type VolumeConfig struct {
	Source   string        `mapstructure:"source"` // csv or yahoo
	CSVPath  string        `mapstructure:"csv_path"`
	YahooURL string        `mapstructure:"yahoo_url"`
	Start    string        `mapstructure:"start"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// SchedulerConfig holds the scrape schedule
type SchedulerConfig struct {
	ScrapeSchedule string        `mapstructure:"scrape_schedule"`
	Timezone       string        `mapstructure:"timezone"`
	RunOnStart     bool          `mapstructure:"run_on_start"`
	JobTimeout     time.Duration `mapstructure:"job_timeout"`
}

// StorageConfig holds storage and persistence configuration
type StorageConfig struct {
	DBPath       string `mapstructure:"db_path"`
	SnapshotDir  string `mapstructure:"snapshot_dir"`
	MaxSnapshots int    `mapstructure:"max_snapshots"` // 0 = keep everything
}

// AnalysisConfig holds the incidence analysis parameters
type AnalysisConfig struct {
	CutoffDate     string   `mapstructure:"cutoff_date"`
	OffsetMentions int      `mapstructure:"offset_mentions"`
	OffsetVolume   int      `mapstructure:"offset_volume"`
	Tolerance      float64  `mapstructure:"tolerance"`
	Tickers        []string `mapstructure:"tickers"` // empty = every shared ticker
	TopN           int      `mapstructure:"top_n"`
}

// Cutoff parses CutoffDate. An empty value disables the cutoff.
func (a AnalysisConfig) Cutoff() (time.Time, error) {
	if a.CutoffDate == "" {
		return time.Time{}, nil
	}
	return time.ParseInLocation(DateLayout, a.CutoffDate, time.UTC)
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	Enabled        bool          `mapstructure:"enabled"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file, a .env file and environment variables.
// Environment keys use the TICKERPULSE_ prefix, e.g.
// TICKERPULSE_REDDIT_CLIENT_SECRET.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)

	v.SetEnvPrefix("TICKERPULSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Reddit defaults
	v.SetDefault("reddit.client_id", "")
	v.SetDefault("reddit.client_secret", "")
	v.SetDefault("reddit.username", "")
	v.SetDefault("reddit.password", "")
	v.SetDefault("reddit.user_agent", "tickerpulse/1.0")
	v.SetDefault("reddit.auth_url", "https://www.reddit.com/api/v1/access_token")
	v.SetDefault("reddit.api_url", "https://oauth.reddit.com")
	v.SetDefault("reddit.subreddits", []string{"stocks", "wallstreetbets", "investing"})
	v.SetDefault("reddit.post_limit", 100)
	v.SetDefault("reddit.comment_limit", 5)
	v.SetDefault("reddit.requests_per_minute", 60)
	v.SetDefault("reddit.max_retries", 3)
	v.SetDefault("reddit.timeout", "30s")

	// Ticker list defaults
	v.SetDefault("tickers.source_url", "https://en.wikipedia.org/wiki/List_of_S%26P_500_companies")
	v.SetDefault("tickers.cache_path", "./data/constituents.json")

	// Volume defaults
	v.SetDefault("volume.source", "csv")
	v.SetDefault("volume.csv_path", "./data/volume.csv")
	v.SetDefault("volume.yahoo_url", "https://finance.yahoo.com")
	v.SetDefault("volume.start", "2021-03-17")
	v.SetDefault("volume.timeout", "30s")

	// Scheduler defaults
	v.SetDefault("scheduler.scrape_schedule", "0 6 * * *")
	v.SetDefault("scheduler.timezone", "UTC")
	v.SetDefault("scheduler.run_on_start", false)
	v.SetDefault("scheduler.job_timeout", "30m")

	// Storage defaults
	v.SetDefault("storage.db_path", "./data/tickerpulse.db")
	v.SetDefault("storage.snapshot_dir", "./data/snapshots")
	v.SetDefault("storage.max_snapshots", 0)

	// Analysis defaults
	v.SetDefault("analysis.cutoff_date", "2021-03-17")
	v.SetDefault("analysis.offset_mentions", 0)
	v.SetDefault("analysis.offset_volume", 0)
	v.SetDefault("analysis.tolerance", 0.025)
	v.SetDefault("analysis.tickers", []string{})
	v.SetDefault("analysis.top_n", 10)

	// Telegram defaults
	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.chat_id", "")
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "2s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	// Validate Reddit config
	if c.Reddit.AuthURL == "" {
		return fmt.Errorf("reddit.auth_url is required")
	}
	if c.Reddit.APIURL == "" {
		return fmt.Errorf("reddit.api_url is required")
	}
	if len(c.Reddit.Subreddits) == 0 {
		return fmt.Errorf("reddit.subreddits must contain at least one subreddit")
	}
	if c.Reddit.PostLimit < 1 || c.Reddit.PostLimit > 1000 {
		return fmt.Errorf("reddit.post_limit must be between 1 and 1000")
	}
	if c.Reddit.CommentLimit < 0 {
		return fmt.Errorf("reddit.comment_limit must not be negative")
	}
	if c.Reddit.RequestsPerMinute < 1 {
		return fmt.Errorf("reddit.requests_per_minute must be at least 1")
	}
	if c.Reddit.MaxRetries < 0 {
		return fmt.Errorf("reddit.max_retries must not be negative")
	}

	// Validate ticker list config
	if c.Tickers.SourceURL == "" {
		return fmt.Errorf("tickers.source_url is required")
	}

	// Validate Volume config
	switch c.Volume.Source {
	case "csv":
		if c.Volume.CSVPath == "" {
			return fmt.Errorf("volume.csv_path is required when volume.source is csv")
		}
	case "yahoo":
		if c.Volume.YahooURL == "" {
			return fmt.Errorf("volume.yahoo_url is required when volume.source is yahoo")
		}
		if _, err := time.Parse(DateLayout, c.Volume.Start); err != nil {
			return fmt.Errorf("volume.start must be a YYYY-MM-DD date")
		}
	default:
		return fmt.Errorf("volume.source must be one of: csv, yahoo")
	}

	// Validate Scheduler config
	if _, err := cron.ParseStandard(c.Scheduler.ScrapeSchedule); err != nil {
		return fmt.Errorf("scheduler.scrape_schedule is invalid: %w", err)
	}
	if _, err := time.LoadLocation(c.Scheduler.Timezone); err != nil {
		return fmt.Errorf("scheduler.timezone is invalid: %w", err)
	}
	if c.Scheduler.JobTimeout <= 0 {
		return fmt.Errorf("scheduler.job_timeout must be positive")
	}

	// Validate Storage config
	if c.Storage.DBPath == "" {
		return fmt.Errorf("storage.db_path is required")
	}
	if c.Storage.MaxSnapshots < 0 {
		return fmt.Errorf("storage.max_snapshots must not be negative")
	}

	// Validate Analysis config
	if _, err := c.Analysis.Cutoff(); err != nil {
		return fmt.Errorf("analysis.cutoff_date must be a YYYY-MM-DD date")
	}
	if c.Analysis.Tolerance <= 0 || c.Analysis.Tolerance >= 1 {
		return fmt.Errorf("analysis.tolerance must be between 0 and 1")
	}
	if c.Analysis.TopN < 1 {
		return fmt.Errorf("analysis.top_n must be at least 1")
	}

	// Validate Telegram config
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
		if c.Telegram.MaxRetries < 1 {
			return fmt.Errorf("telegram.max_retries must be at least 1")
		}
	}

	// Validate Logging config
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}

// HasRedditCredentials reports whether the password grant can be attempted.
func (c *Config) HasRedditCredentials() bool {
	r := c.Reddit
	return r.ClientID != "" && r.ClientSecret != "" && r.Username != "" && r.Password != ""
}
