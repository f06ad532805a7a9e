package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config represents the entire application configuration
type Config struct {
	Fetch     FetchConfig    `mapstructure:"fetch"`
	Pool      PoolConfig     `mapstructure:"pool"`
	Download  DownloadConfig `mapstructure:"download"`
	Journal   JournalConfig  `mapstructure:"journal"`
	Logging   LoggingConfig  `mapstructure:"logging"`
	Resources []Resource     `mapstructure:"resources"`
}

// FetchConfig contains the per-call retry and timeout settings
type FetchConfig struct {
	MaxRetries         int    `mapstructure:"max_retries"`
	AttemptTimeout     string `mapstructure:"attempt_timeout"`
	InsecureSkipVerify bool   `mapstructure:"insecure_skip_verify"`
}

// PoolConfig contains the shared connection pool settings
type PoolConfig struct {
	IdleConnTimeout     string `mapstructure:"idle_conn_timeout"`
	MaxIdleConns        int    `mapstructure:"max_idle_conns"`
	MaxIdleConnsPerHost int    `mapstructure:"max_idle_conns_per_host"`
}

// DownloadConfig contains local storage settings
type DownloadConfig struct {
	RootDir string `mapstructure:"root_dir"`
}

// JournalConfig contains fetch journal settings
type JournalConfig struct {
	Path string `mapstructure:"path"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Resource is one remote file to download
type Resource struct {
	URL         string `mapstructure:"url"`
	Path        string `mapstructure:"path"`
	Description string `mapstructure:"description"`
}

// Load loads configuration from the specified file path
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	// Set defaults
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.attempt_timeout", "5m")
	v.SetDefault("fetch.insecure_skip_verify", false)
	v.SetDefault("pool.idle_conn_timeout", "24h")
	v.SetDefault("pool.max_idle_conns", 100)
	v.SetDefault("pool.max_idle_conns_per_host", 10)
	v.SetDefault("download.root_dir", "/var/lib/resource-fetcher")
	v.SetDefault("journal.path", "")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Fetch.MaxRetries < 1 {
		return fmt.Errorf("fetch.max_retries must be at least 1")
	}
	if d, err := time.ParseDuration(c.Fetch.AttemptTimeout); err != nil {
		return fmt.Errorf("invalid fetch.attempt_timeout: %w", err)
	} else if d <= 0 {
		return fmt.Errorf("fetch.attempt_timeout must be positive")
	}
	if _, err := time.ParseDuration(c.Pool.IdleConnTimeout); err != nil {
		return fmt.Errorf("invalid pool.idle_conn_timeout: %w", err)
	}
	if c.Download.RootDir == "" {
		return fmt.Errorf("download.root_dir is required")
	}

	for i, r := range c.Resources {
		if r.URL == "" {
			return fmt.Errorf("resources[%d].url is required", i)
		}
		if r.Path == "" {
			return fmt.Errorf("resources[%d].path is required", i)
		}
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging.level: %s", c.Logging.Level)
	}

	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("invalid logging.format: %s", c.Logging.Format)
	}

	return nil
}

// GetAttemptTimeout returns the per-attempt timeout as time.Duration
func (c *FetchConfig) GetAttemptTimeout() time.Duration {
	d, _ := time.ParseDuration(c.AttemptTimeout)
	if d == 0 {
		return 5 * time.Minute
	}
	return d
}

// GetIdleConnTimeout returns the pool idle timeout as time.Duration
func (c *PoolConfig) GetIdleConnTimeout() time.Duration {
	d, _ := time.ParseDuration(c.IdleConnTimeout)
	if d == 0 {
		return 24 * time.Hour
	}
	return d
}
