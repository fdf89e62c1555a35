// Package config provides centralized configuration management for
// sitelens: a YAML config file, SITELENS_-prefixed environment
// overrides, and flag bindings, merged through viper.
package config

import "time"

// Config represents the complete application configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Store   StoreConfig   `mapstructure:"store"`
	Crawl   CrawlConfig   `mapstructure:"crawl"`
	AI      AIConfig      `mapstructure:"ai"`
	Logging LoggingConfig `mapstructure:"logging"`
	Workers int           `mapstructure:"workers"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// StoreConfig contains database configuration for libsql/Turso.
type StoreConfig struct {
	Driver    string `mapstructure:"driver"`
	Path      string `mapstructure:"path"`
	URL       string `mapstructure:"url"`
	AuthToken string `mapstructure:"auth_token"`
}

// CrawlConfig tunes the discovery stage.
type CrawlConfig struct {
	MaxPages          int           `mapstructure:"max_pages"`
	Timeout           time.Duration `mapstructure:"timeout"`
	UserAgent         string        `mapstructure:"user_agent"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	CacheTTL          time.Duration `mapstructure:"cache_ttl"`
	RespectRobots     bool          `mapstructure:"respect_robots"`
}

// AIConfig configures the AI batch scorer.
type AIConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	APIKey     string        `mapstructure:"api_key"`
	BaseURL    string        `mapstructure:"base_url"`
	Model      string        `mapstructure:"model"`
	PromptFile string        `mapstructure:"prompt_file"`
	SampleSize int           `mapstructure:"sample_size"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`

	// Per-1K-token pricing used for cost telemetry.
	InputCostPer1K  float64 `mapstructure:"input_cost_per_1k"`
	OutputCostPer1K float64 `mapstructure:"output_cost_per_1k"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level controls the minimum log level.
	// Valid values: debug, info, warn, error.
	Level string `mapstructure:"level"`

	// Format selects console (CLI) or json (server) output.
	Format string `mapstructure:"format"`
}

// Default returns the built-in configuration defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Store: StoreConfig{
			Driver: "libsql",
			Path:   "./sitelens.db",
		},
		Crawl: CrawlConfig{
			MaxPages:          25,
			Timeout:           15 * time.Second,
			UserAgent:         "sitelens/1.0 (+https://sitelens.dev/bot)",
			RequestsPerSecond: 2,
			Burst:             4,
			CacheTTL:          10 * time.Minute,
			RespectRobots:     true,
		},
		AI: AIConfig{
			Enabled:         true,
			Model:           "gpt-4o-mini",
			SampleSize:      5,
			Timeout:         60 * time.Second,
			MaxRetries:      3,
			InputCostPer1K:  0.00015,
			OutputCostPer1K: 0.0006,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Workers: 4,
	}
}
