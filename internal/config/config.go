// Package config loads application configuration from file and environment
// and owns global logger initialization.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/landmark-labs/sitescan/internal/resilience"
	"github.com/landmark-labs/sitescan/internal/store"
)

// Config holds the full application configuration.
type Config struct {
	Provider   ProviderConfig   `yaml:"provider" mapstructure:"provider"`
	Retry      RetryConfig      `yaml:"retry" mapstructure:"retry"`
	Detector   DetectorConfig   `yaml:"detector" mapstructure:"detector"`
	Extractor  ExtractorConfig  `yaml:"extractor" mapstructure:"extractor"`
	Scoring    ScoringConfig    `yaml:"scoring" mapstructure:"scoring"`
	Evaluation EvaluationConfig `yaml:"evaluation" mapstructure:"evaluation"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Export     ExportConfig     `yaml:"export" mapstructure:"export"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Batch      BatchConfig      `yaml:"batch" mapstructure:"batch"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// ProviderConfig configures the imagery provider.
type ProviderConfig struct {
	BaseURL    string  `yaml:"base_url" mapstructure:"base_url"`
	Collection string  `yaml:"collection" mapstructure:"collection"`
	Token      string  `yaml:"token" mapstructure:"token"`
	RateRPS    float64 `yaml:"rate_rps" mapstructure:"rate_rps"`
	RateBurst  int     `yaml:"rate_burst" mapstructure:"rate_burst"`
	GridSize   int     `yaml:"grid_size" mapstructure:"grid_size"`
}

// RetryConfig configures retry behavior for provider calls.
type RetryConfig struct {
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMS int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMS     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Multiplier       float64 `yaml:"multiplier" mapstructure:"multiplier"`
	JitterFraction   float64 `yaml:"jitter_fraction" mapstructure:"jitter_fraction"`
}

// ToRetry converts the file representation to the resilience package form.
func (r RetryConfig) ToRetry() resilience.RetryConfig {
	cfg := resilience.DefaultRetryConfig()
	if r.MaxAttempts > 0 {
		cfg.MaxAttempts = r.MaxAttempts
	}
	if r.InitialBackoffMS > 0 {
		cfg.InitialBackoff = time.Duration(r.InitialBackoffMS) * time.Millisecond
	}
	if r.MaxBackoffMS > 0 {
		cfg.MaxBackoff = time.Duration(r.MaxBackoffMS) * time.Millisecond
	}
	if r.Multiplier > 0 {
		cfg.Multiplier = r.Multiplier
	}
	if r.JitterFraction > 0 {
		cfg.JitterFraction = r.JitterFraction
	}
	return cfg
}

// DetectorConfig configures the anomaly detector.
type DetectorConfig struct {
	NumTrees      int     `yaml:"num_trees" mapstructure:"num_trees"`
	SampleSize    int     `yaml:"sample_size" mapstructure:"sample_size"`
	Contamination float64 `yaml:"contamination" mapstructure:"contamination"`
	Seed          int64   `yaml:"seed" mapstructure:"seed"`
}

// ExtractorConfig configures coordinate extraction.
type ExtractorConfig struct {
	MinPixels int `yaml:"min_pixels" mapstructure:"min_pixels"`
}

// ScoringConfig points at an optional scoring profile file.
type ScoringConfig struct {
	ProfilePath string `yaml:"profile_path" mapstructure:"profile_path"`
}

// EvaluationConfig configures ground-truth evaluation.
type EvaluationConfig struct {
	MatchDistanceM float64 `yaml:"match_distance_m" mapstructure:"match_distance_m"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string           `yaml:"driver" mapstructure:"driver"`
	Path        string           `yaml:"path" mapstructure:"path"`
	DatabaseURL string           `yaml:"database_url" mapstructure:"database_url"`
	Pool        store.PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// ExportConfig configures result export.
type ExportConfig struct {
	OutputDir string   `yaml:"output_dir" mapstructure:"output_dir"`
	Formats   []string `yaml:"formats" mapstructure:"formats"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// BatchConfig configures batch processing.
type BatchConfig struct {
	MaxConcurrentRuns int `yaml:"max_concurrent_runs" mapstructure:"max_concurrent_runs"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SITESCAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("provider.collection", "sentinel-2-l2a")
	v.SetDefault("provider.rate_rps", 5.0)
	v.SetDefault("provider.rate_burst", 5)
	v.SetDefault("provider.grid_size", 100)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 500)
	v.SetDefault("retry.max_backoff_ms", 30000)
	v.SetDefault("retry.multiplier", 2.0)
	v.SetDefault("retry.jitter_fraction", 0.25)
	v.SetDefault("detector.num_trees", 100)
	v.SetDefault("detector.sample_size", 256)
	v.SetDefault("detector.contamination", 0.05)
	v.SetDefault("detector.seed", 42)
	v.SetDefault("extractor.min_pixels", 3)
	v.SetDefault("evaluation.match_distance_m", 250.0)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "sitescan.db")
	v.SetDefault("export.output_dir", ".")
	v.SetDefault("export.formats", []string{"geojson", "csv"})
	v.SetDefault("server.port", 8080)
	v.SetDefault("batch.max_concurrent_runs", 4)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that the configuration is usable for the given mode.
// Errors are accumulated so the operator sees every problem at once.
func (c *Config) Validate(mode string) error {
	var problems []string

	if c.Store.Driver != "sqlite" && c.Store.Driver != "postgres" {
		problems = append(problems, "store.driver must be \"sqlite\" or \"postgres\"")
	}
	if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
		problems = append(problems, "store.database_url is required for the postgres driver")
	}
	if c.Detector.Contamination <= 0 || c.Detector.Contamination >= 1 {
		problems = append(problems, "detector.contamination must be in (0,1)")
	}
	if c.Evaluation.MatchDistanceM <= 0 {
		problems = append(problems, "evaluation.match_distance_m must be > 0")
	}

	switch mode {
	case "live":
		if c.Provider.BaseURL == "" {
			problems = append(problems, "provider.base_url is required for live runs")
		}
	case "demo":
		// Demo runs synthesize their own scenes.
	case "serve":
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	case "batch":
		if c.Batch.MaxConcurrentRuns < 1 || c.Batch.MaxConcurrentRuns > 32 {
			problems = append(problems, "batch.max_concurrent_runs must be between 1 and 32")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
