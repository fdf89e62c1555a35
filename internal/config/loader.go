package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

const envPrefix = "SITELENS"

var (
	appConfig *Config
	configMu  sync.RWMutex
)

// Load reads configuration from the optional config file, environment
// variables, and defaults, in that precedence order. Safe to call more
// than once.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	defaults := Default()
	v.SetDefault("server.host", defaults.Server.Host)
	v.SetDefault("server.port", defaults.Server.Port)
	v.SetDefault("server.read_timeout", defaults.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", defaults.Server.WriteTimeout)
	v.SetDefault("server.idle_timeout", defaults.Server.IdleTimeout)
	v.SetDefault("server.shutdown_timeout", defaults.Server.ShutdownTimeout)
	v.SetDefault("store.driver", defaults.Store.Driver)
	v.SetDefault("store.path", defaults.Store.Path)
	v.SetDefault("crawl.max_pages", defaults.Crawl.MaxPages)
	v.SetDefault("crawl.timeout", defaults.Crawl.Timeout)
	v.SetDefault("crawl.user_agent", defaults.Crawl.UserAgent)
	v.SetDefault("crawl.requests_per_second", defaults.Crawl.RequestsPerSecond)
	v.SetDefault("crawl.burst", defaults.Crawl.Burst)
	v.SetDefault("crawl.cache_ttl", defaults.Crawl.CacheTTL)
	v.SetDefault("crawl.respect_robots", defaults.Crawl.RespectRobots)
	v.SetDefault("ai.enabled", defaults.AI.Enabled)
	v.SetDefault("ai.model", defaults.AI.Model)
	v.SetDefault("ai.prompt_file", defaults.AI.PromptFile)
	v.SetDefault("ai.sample_size", defaults.AI.SampleSize)
	v.SetDefault("ai.timeout", defaults.AI.Timeout)
	v.SetDefault("ai.max_retries", defaults.AI.MaxRetries)
	v.SetDefault("ai.input_cost_per_1k", defaults.AI.InputCostPer1K)
	v.SetDefault("ai.output_cost_per_1k", defaults.AI.OutputCostPer1K)
	v.SetDefault("logging.level", defaults.Logging.Level)
	v.SetDefault("logging.format", defaults.Logging.Format)
	v.SetDefault("workers", defaults.Workers)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("sitelens")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/sitelens")
	}

	if err := v.ReadInConfig(); err != nil {
		// A missing discovered config file is fine; defaults and env
		// cover it. An explicit --config that fails to read is not.
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := &Config{}
	decode := func(input map[string]any) error {
		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:           cfg,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
		})
		if err != nil {
			return fmt.Errorf("create decoder: %w", err)
		}
		return decoder.Decode(input)
	}
	if err := decode(v.AllSettings()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	setConfig(cfg)
	return cfg, nil
}

// Get returns the current application configuration (thread-safe).
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	if appConfig == nil {
		return Default()
	}
	return appConfig
}

func setConfig(cfg *Config) {
	configMu.Lock()
	defer configMu.Unlock()
	appConfig = cfg
}
