// Package config loads and validates application configuration from
// .polarity.yaml, environment variables, and an optional .env file.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App      App      `mapstructure:"app"`
	Gemini   Gemini   `mapstructure:"gemini"`
	Pipeline Pipeline `mapstructure:"pipeline"`
	Storage  Storage  `mapstructure:"storage"`
}

// App holds general application configuration.
type App struct {
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
	DataDir  string `mapstructure:"data_dir"`
}

// Gemini holds the external completion/embedding service configuration.
type Gemini struct {
	APIKey                string  `mapstructure:"api_key"`
	Model                 string  `mapstructure:"model"`
	EmbeddingModel        string  `mapstructure:"embedding_model"`
	Timeout               string  `mapstructure:"timeout"`
	MaxRetries            int     `mapstructure:"max_retries"`
	RetryBaseDelay        string  `mapstructure:"retry_base_delay"`
	Temperature           float32 `mapstructure:"temperature"`
	ConcurrentExtractions int     `mapstructure:"concurrent_extractions"`
}

// RequestTimeout parses the per-attempt request timeout.
func (g Gemini) RequestTimeout() time.Duration {
	return parseDurationOr(g.Timeout, 60*time.Second)
}

// BaseDelay parses the first backoff delay.
func (g Gemini) BaseDelay() time.Duration {
	return parseDurationOr(g.RetryBaseDelay, 2*time.Second)
}

// Pipeline holds every stage threshold. Each sub-struct is handed to its
// stage as an immutable value so stages stay pure functions of
// (input, params).
type Pipeline struct {
	LookbackHours int        `mapstructure:"lookback_hours"`
	Density       Density    `mapstructure:"density"`
	Prune         Prune      `mapstructure:"prune"`
	Selection     Selection  `mapstructure:"selection"`
	Clustering    Clustering `mapstructure:"clustering"`
	Citations     Citations  `mapstructure:"citations"`
	Signal        Signal     `mapstructure:"signal"`
	Trends        Trends     `mapstructure:"trends"`
}

// Density holds density-scorer parameters.
type Density struct {
	MinWordCount int     `mapstructure:"min_word_count"` // Short-article penalty threshold
	Floor        float64 `mapstructure:"floor"`          // Absolute score floor for pruning
}

// Prune holds candidate-pruner parameters.
type Prune struct {
	CandidatePoolSize int `mapstructure:"candidate_pool_size"`
}

// Selection holds the hard constraints enforced by the selection validator.
type Selection struct {
	TargetSelected       int     `mapstructure:"target_selected"`
	MaxPerSource         int     `mapstructure:"max_per_source"`
	MaxTimeConcentration float64 `mapstructure:"max_time_concentration"` // Fraction of selections allowed in the recent window
	RecentWindowHours    int     `mapstructure:"recent_window_hours"`
}

// RecentWindow returns the recency window as a duration.
func (s Selection) RecentWindow() time.Duration {
	return time.Duration(s.RecentWindowHours) * time.Hour
}

// Clustering holds cluster-builder parameters.
type Clustering struct {
	DistanceThreshold float64 `mapstructure:"distance_threshold"` // Cosine distance merge threshold
	MinClusterSize    int     `mapstructure:"min_cluster_size"`
	MinPublishers     int     `mapstructure:"min_publishers"`
	SummaryTruncate   int     `mapstructure:"summary_truncate"` // Runes of summary used in embedding input
}

// Citations holds citation-validator parameters.
type Citations struct {
	FuzzyThreshold float64 `mapstructure:"fuzzy_threshold"`
	AnchorWords    int     `mapstructure:"anchor_words"`
}

// Signal holds the low-signal-day thresholds.
type Signal struct {
	MinValidClusters       int     `mapstructure:"min_valid_clusters"`
	MaxSummaryOnlyFraction float64 `mapstructure:"max_summary_only_fraction"`
	MinUniqueSources       int     `mapstructure:"min_unique_sources"`
}

// Trends holds theme lifecycle parameters.
type Trends struct {
	FadingAfterHours int `mapstructure:"fading_after_hours"`
}

// FadingAfter returns the decay window as a duration.
func (t Trends) FadingAfter() time.Duration {
	return time.Duration(t.FadingAfterHours) * time.Hour
}

// Storage holds persistence configuration. When DatabaseURL is set the
// Postgres backend is used; otherwise a local SQLite store under DataDir.
type Storage struct {
	DatabaseURL string `mapstructure:"database_url"`
	DataDir     string `mapstructure:"data_dir"`
}

var globalConfig *Config

// Load loads the configuration from various sources.
func Load(configFile string) (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	// Load .env file if it exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: error loading .env file: %v\n", err)
		}
	}

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME")
		viper.SetConfigName(".polarity")
		viper.SetConfigType("yaml")
	}

	setDefaults()
	bindEnvironmentVariables()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := Validate(config); err != nil {
		return nil, err
	}

	globalConfig = config
	return config, nil
}

// Get returns the global configuration, loading it if necessary.
func Get() *Config {
	if globalConfig == nil {
		config, err := Load("")
		if err != nil {
			panic(fmt.Sprintf("failed to load configuration: %v", err))
		}
		return config
	}
	return globalConfig
}

// setDefaults sets default configuration values.
func setDefaults() {
	// App defaults
	viper.SetDefault("app.debug", false)
	viper.SetDefault("app.log_level", "info")
	viper.SetDefault("app.data_dir", ".polarity")

	// Gemini defaults
	viper.SetDefault("gemini.model", "gemini-2.5-flash")
	viper.SetDefault("gemini.embedding_model", "gemini-embedding-001")
	viper.SetDefault("gemini.timeout", "60s")
	viper.SetDefault("gemini.max_retries", 3)
	viper.SetDefault("gemini.retry_base_delay", "2s")
	viper.SetDefault("gemini.temperature", 0.2)
	viper.SetDefault("gemini.concurrent_extractions", 3)

	// Pipeline defaults
	viper.SetDefault("pipeline.lookback_hours", 24)
	viper.SetDefault("pipeline.density.min_word_count", 300)
	viper.SetDefault("pipeline.density.floor", 25)
	viper.SetDefault("pipeline.prune.candidate_pool_size", 200)
	viper.SetDefault("pipeline.selection.target_selected", 80)
	viper.SetDefault("pipeline.selection.max_per_source", 10)
	viper.SetDefault("pipeline.selection.max_time_concentration", 0.4)
	viper.SetDefault("pipeline.selection.recent_window_hours", 6)
	viper.SetDefault("pipeline.clustering.distance_threshold", 0.35)
	viper.SetDefault("pipeline.clustering.min_cluster_size", 3)
	viper.SetDefault("pipeline.clustering.min_publishers", 2)
	viper.SetDefault("pipeline.clustering.summary_truncate", 400)
	viper.SetDefault("pipeline.citations.fuzzy_threshold", 0.85)
	viper.SetDefault("pipeline.citations.anchor_words", 8)
	viper.SetDefault("pipeline.signal.min_valid_clusters", 5)
	viper.SetDefault("pipeline.signal.max_summary_only_fraction", 0.5)
	viper.SetDefault("pipeline.signal.min_unique_sources", 3)
	viper.SetDefault("pipeline.trends.fading_after_hours", 72)

	// Storage defaults
	viper.SetDefault("storage.data_dir", ".polarity")
}

// bindEnvironmentVariables sets up flexible environment variable binding.
func bindEnvironmentVariables() {
	// Gemini API key - support multiple formats
	bindEnvKeys("gemini.api_key", []string{
		"GEMINI_API_KEY",
		"GOOGLE_GEMINI_API_KEY",
		"GOOGLE_AI_API_KEY",
	})

	// Database connection - Supabase exposes both names
	bindEnvKeys("storage.database_url", []string{
		"DATABASE_URL",
		"SUPABASE_DB_URL",
	})
}

// bindEnvKeys binds the first defined environment variable to a config key.
func bindEnvKeys(configKey string, envKeys []string) {
	for _, envKey := range envKeys {
		if value := os.Getenv(envKey); value != "" {
			viper.Set(configKey, value)
			return
		}
	}
}

// Validate checks that the configuration is usable. Credential and threshold
// problems are reported here, before any external call is attempted.
func Validate(c *Config) error {
	if c.Gemini.APIKey == "" {
		return fmt.Errorf("gemini API key is required: set GEMINI_API_KEY or gemini.api_key in config")
	}
	sel := c.Pipeline.Selection
	if sel.TargetSelected <= 0 {
		return fmt.Errorf("pipeline.selection.target_selected must be positive, got %d", sel.TargetSelected)
	}
	if sel.MaxPerSource <= 0 {
		return fmt.Errorf("pipeline.selection.max_per_source must be positive, got %d", sel.MaxPerSource)
	}
	if sel.MaxTimeConcentration <= 0 || sel.MaxTimeConcentration > 1 {
		return fmt.Errorf("pipeline.selection.max_time_concentration must be in (0,1], got %g", sel.MaxTimeConcentration)
	}
	if c.Pipeline.Prune.CandidatePoolSize <= 0 {
		return fmt.Errorf("pipeline.prune.candidate_pool_size must be positive, got %d", c.Pipeline.Prune.CandidatePoolSize)
	}
	if t := c.Pipeline.Citations.FuzzyThreshold; t <= 0 || t > 1 {
		return fmt.Errorf("pipeline.citations.fuzzy_threshold must be in (0,1], got %g", t)
	}
	if c.Pipeline.Clustering.DistanceThreshold <= 0 {
		return fmt.Errorf("pipeline.clustering.distance_threshold must be positive, got %g", c.Pipeline.Clustering.DistanceThreshold)
	}
	return nil
}

func parseDurationOr(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
