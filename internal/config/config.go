package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/artscout-agent/internal/models"
)

// Config represents the application configuration
type Config struct {
	Database   DatabaseConfig   `mapstructure:"database"`
	Anthropic  AnthropicConfig  `mapstructure:"anthropic"`
	Embeddings EmbeddingsConfig `mapstructure:"embeddings"`
	Profile    ProfileConfig    `mapstructure:"profile"`
	Sources    SourcesConfig    `mapstructure:"sources"`
	Discovery  DiscoveryConfig  `mapstructure:"discovery"`
	Dedup      DedupConfig      `mapstructure:"dedup"`
	Scoring    ScoringConfig    `mapstructure:"scoring"`
	Analyst    AnalystConfig    `mapstructure:"analyst"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"` // sqlite
	DSN    string `mapstructure:"dsn"`    // Connection string
}

// AnthropicConfig holds Claude API settings
type AnthropicConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
}

// EmbeddingsConfig holds embedding provider settings
type EmbeddingsConfig struct {
	Provider   string `mapstructure:"provider"` // "http" or "offline"
	Endpoint   string `mapstructure:"endpoint"`
	APIKey     string `mapstructure:"api_key"`
	Model      string `mapstructure:"model"`
	Dimensions int    `mapstructure:"dimensions"`
	TimeoutMs  int    `mapstructure:"timeout_ms"`
}

// ProfileConfig points at the artist profile used for scoring
type ProfileConfig struct {
	ID   string `mapstructure:"id"`
	File string `mapstructure:"file"` // optional JSON file to seed the profile from
}

// SourcesConfig holds all discovery source configurations
type SourcesConfig struct {
	WebSearch  WebSearchConfig  `mapstructure:"websearch"`
	Social     SocialConfig     `mapstructure:"social"`
	Bookmark   BookmarkConfig   `mapstructure:"bookmark"`
	Newsletter NewsletterConfig `mapstructure:"newsletter"`
	Manual     ManualConfig     `mapstructure:"manual"`
}

// WebSearchConfig holds Google Custom Search settings
type WebSearchConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	APIKey         string   `mapstructure:"api_key"`
	SearchEngineID string   `mapstructure:"search_engine_id"`
	Queries        []string `mapstructure:"queries"`
	MaxResults     int      `mapstructure:"max_results"`
}

// SocialConfig holds social listing API settings
type SocialConfig struct {
	Enabled      bool     `mapstructure:"enabled"`
	ClientID     string   `mapstructure:"client_id"`
	ClientSecret string   `mapstructure:"client_secret"`
	TokenURL     string   `mapstructure:"token_url"`
	APIBase      string   `mapstructure:"api_base"`
	Hashtags     []string `mapstructure:"hashtags"`
}

// BookmarkConfig holds curated listing-page settings
type BookmarkConfig struct {
	Enabled bool       `mapstructure:"enabled"`
	Pages   []Bookmark `mapstructure:"pages"`
}

// Bookmark represents a single curated listing page
type Bookmark struct {
	Name string `mapstructure:"name"`
	URL  string `mapstructure:"url"`
}

// NewsletterConfig holds newsletter feed settings
type NewsletterConfig struct {
	Enabled bool             `mapstructure:"enabled"`
	Feeds   []NewsletterFeed `mapstructure:"feeds"`
}

// NewsletterFeed represents a single newsletter RSS/Atom feed
type NewsletterFeed struct {
	Name string `mapstructure:"name"`
	URL  string `mapstructure:"url"`
}

// ManualConfig holds manual submission settings
type ManualConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// DiscoveryConfig holds discovery run settings
type DiscoveryConfig struct {
	MaxConcurrentJobs int `mapstructure:"max_concurrent_jobs"`
	JobTimeoutMs      int `mapstructure:"job_timeout_ms"`
	StuckJobAgeMin    int `mapstructure:"stuck_job_age_min"`
	HistoryLimit      int `mapstructure:"history_limit"`
}

// DedupConfig holds duplicate detection settings
type DedupConfig struct {
	FuzzyThreshold float64 `mapstructure:"fuzzy_threshold"`
	WindowDays     int     `mapstructure:"window_days"`
	CandidateLimit int     `mapstructure:"candidate_limit"`
	MergeStrategy  string  `mapstructure:"merge_strategy"` // keep_first_seen or keep_richest
}

// ScoringConfig holds relevance scoring settings
type ScoringConfig struct {
	Weights   models.ScoreWeights `mapstructure:"weights"`
	BatchSize int                 `mapstructure:"batch_size"`
}

// AnalystConfig holds analysis run settings
type AnalystConfig struct {
	MaxConcurrentAnalyses int `mapstructure:"max_concurrent_analyses"`
	MaxQueries            int `mapstructure:"max_queries"`
}

// SchedulerConfig holds scheduler settings
type SchedulerConfig struct {
	DiscoveryCron  string `mapstructure:"discovery_cron"`
	DedupCron      string `mapstructure:"dedup_cron"`
	CleanupCron    string `mapstructure:"cleanup_cron"`
	TickSeconds    int    `mapstructure:"tick_seconds"`
	HealthAddr     string `mapstructure:"health_addr"`
	EnableDefaults bool   `mapstructure:"enable_defaults"`
}

// Tick returns the scheduler evaluation interval.
func (s SchedulerConfig) Tick() time.Duration {
	if s.TickSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(s.TickSeconds) * time.Second
}

// RateLimitConfig holds rate limiting settings
type RateLimitConfig struct {
	DefaultPerMinute           int `mapstructure:"default_per_minute"`
	AnthropicRequestsPerMinute int `mapstructure:"anthropic_requests_per_minute"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json or console
	Output string `mapstructure:"output"` // stdout or file path
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	// Load .env file if present (ignore errors if not found)
	_ = godotenv.Load()
	_ = godotenv.Load(".env.local")

	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Look for config in current directory and configs folder
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")

		// Also check user's home directory
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".artscout"))
		}
	}

	// Environment variables
	v.SetEnvPrefix("ARTSCOUT")
	v.AutomaticEnv()

	// Explicit bindings for nested keys (Viper doesn't auto-bind underscored nested keys)
	v.BindEnv("anthropic.api_key", "ARTSCOUT_ANTHROPIC_API_KEY")
	v.BindEnv("embeddings.provider", "ARTSCOUT_EMBEDDINGS_PROVIDER")
	v.BindEnv("embeddings.endpoint", "ARTSCOUT_EMBEDDINGS_ENDPOINT")
	v.BindEnv("embeddings.api_key", "ARTSCOUT_EMBEDDINGS_API_KEY")
	v.BindEnv("database.driver", "ARTSCOUT_DATABASE_DRIVER")
	v.BindEnv("database.dsn", "ARTSCOUT_DATABASE_DSN")
	v.BindEnv("profile.id", "ARTSCOUT_PROFILE_ID")
	v.BindEnv("profile.file", "ARTSCOUT_PROFILE_FILE")
	v.BindEnv("sources.websearch.api_key", "ARTSCOUT_SOURCES_WEBSEARCH_API_KEY")
	v.BindEnv("sources.websearch.search_engine_id", "ARTSCOUT_SOURCES_WEBSEARCH_SEARCH_ENGINE_ID")
	v.BindEnv("sources.social.client_id", "ARTSCOUT_SOURCES_SOCIAL_CLIENT_ID")
	v.BindEnv("sources.social.client_secret", "ARTSCOUT_SOURCES_SOCIAL_CLIENT_SECRET")
	v.BindEnv("scheduler.health_addr", "ARTSCOUT_SCHEDULER_HEALTH_ADDR")

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "./data/artscout.db")

	// Anthropic defaults
	v.SetDefault("anthropic.model", "claude-sonnet-4-20250514")
	v.SetDefault("anthropic.max_tokens", 4096)
	v.SetDefault("anthropic.temperature", 0.7)

	// Embeddings defaults
	v.SetDefault("embeddings.provider", "offline")
	v.SetDefault("embeddings.model", "text-embedding-3-small")
	v.SetDefault("embeddings.dimensions", 256)
	v.SetDefault("embeddings.timeout_ms", 10000)

	// Profile defaults
	v.SetDefault("profile.id", "default")

	// Sources defaults
	v.SetDefault("sources.websearch.enabled", false)
	v.SetDefault("sources.websearch.max_results", 10)
	v.SetDefault("sources.websearch.queries", []string{
		"artist grants open call",
		"artist residency application deadline",
	})

	v.SetDefault("sources.social.enabled", false)
	v.SetDefault("sources.social.hashtags", []string{"opencall", "artistopportunity"})

	v.SetDefault("sources.bookmark.enabled", true)

	v.SetDefault("sources.newsletter.enabled", true)

	v.SetDefault("sources.manual.enabled", true)

	// Discovery defaults
	v.SetDefault("discovery.max_concurrent_jobs", 3)
	v.SetDefault("discovery.job_timeout_ms", 120000)
	v.SetDefault("discovery.stuck_job_age_min", 30)
	v.SetDefault("discovery.history_limit", 1000)

	// Dedup defaults
	v.SetDefault("dedup.fuzzy_threshold", 0.85)
	v.SetDefault("dedup.window_days", 30)
	v.SetDefault("dedup.candidate_limit", 500)
	v.SetDefault("dedup.merge_strategy", "keep_first_seen")

	// Scoring defaults
	v.SetDefault("scoring.batch_size", 10)
	v.SetDefault("scoring.weights.semantic", 0.35)
	v.SetDefault("scoring.weights.keyword", 0.25)
	v.SetDefault("scoring.weights.category", 0.20)
	v.SetDefault("scoring.weights.location", 0.10)
	v.SetDefault("scoring.weights.experience", 0.05)
	v.SetDefault("scoring.weights.deadline", 0.05)

	// Analyst defaults
	v.SetDefault("analyst.max_concurrent_analyses", 2)
	v.SetDefault("analyst.max_queries", 8)

	// Scheduler defaults
	v.SetDefault("scheduler.discovery_cron", "0 */6 * * *") // Every 6 hours
	v.SetDefault("scheduler.dedup_cron", "30 2 * * *")      // 2:30am daily sweep
	v.SetDefault("scheduler.cleanup_cron", "0 3 * * 0")     // Weekly cleanup
	v.SetDefault("scheduler.tick_seconds", 30)
	v.SetDefault("scheduler.health_addr", ":8090")
	v.SetDefault("scheduler.enable_defaults", true)

	// Rate limit defaults
	v.SetDefault("rate_limit.default_per_minute", 30)
	v.SetDefault("rate_limit.anthropic_requests_per_minute", 10)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.output", "stdout")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Discovery.MaxConcurrentJobs < 1 {
		return fmt.Errorf("discovery.max_concurrent_jobs must be >= 1")
	}
	if c.Dedup.FuzzyThreshold < 0 || c.Dedup.FuzzyThreshold > 1 {
		return fmt.Errorf("dedup.fuzzy_threshold must be in [0,1]")
	}
	if c.Dedup.WindowDays < 1 {
		return fmt.Errorf("dedup.window_days must be >= 1")
	}
	if err := c.Scoring.Weights.Validate(); err != nil {
		return fmt.Errorf("scoring.weights: %w", err)
	}
	if c.Analyst.MaxConcurrentAnalyses < 1 {
		return fmt.Errorf("analyst.max_concurrent_analyses must be >= 1")
	}
	if c.Sources.WebSearch.Enabled {
		if c.Sources.WebSearch.APIKey == "" {
			return fmt.Errorf("sources.websearch.api_key is required when websearch is enabled")
		}
		if c.Sources.WebSearch.SearchEngineID == "" {
			return fmt.Errorf("sources.websearch.search_engine_id is required when websearch is enabled")
		}
	}
	if c.Sources.Social.Enabled {
		if c.Sources.Social.ClientID == "" || c.Sources.Social.ClientSecret == "" {
			return fmt.Errorf("sources.social.client_id and client_secret are required when social is enabled")
		}
	}
	if c.Embeddings.Provider == "http" && c.Embeddings.Endpoint == "" {
		return fmt.Errorf("embeddings.endpoint is required when provider is http")
	}
	return nil
}

// SourceSettings derives the initial per-source settings rows from the
// static configuration. The config manager persists and mutates them later.
func (c *Config) SourceSettings() []models.SourceSettings {
	defaults := func(name, typ string, enabled bool, prio models.Priority) models.SourceSettings {
		return models.SourceSettings{
			Name:               name,
			Type:               typ,
			Enabled:            enabled,
			Priority:           prio,
			RateLimitPerMinute: c.RateLimit.DefaultPerMinute,
			TimeoutMs:          c.Discovery.JobTimeoutMs,
			RetryAttempts:      2,
		}
	}
	return []models.SourceSettings{
		defaults("websearch", "websearch", c.Sources.WebSearch.Enabled, models.PriorityHigh),
		defaults("social", "social", c.Sources.Social.Enabled, models.PriorityMedium),
		defaults("bookmark", "bookmark", c.Sources.Bookmark.Enabled, models.PriorityMedium),
		defaults("newsletter", "newsletter", c.Sources.Newsletter.Enabled, models.PriorityMedium),
		defaults("manual", "manual", c.Sources.Manual.Enabled, models.PriorityLow),
	}
}
