// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/seoscope/siteaudit/internal/audit"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Crawler    CrawlerConfig    `mapstructure:"crawler"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Notifier   NotifierConfig   `mapstructure:"notifier"`
}

// ServerConfig controls the operational HTTP listener.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// CrawlerConfig governs one audit crawl.
type CrawlerConfig struct {
	SeedURL        string `mapstructure:"seed_url"`
	MaxPages       int    `mapstructure:"max_pages"`
	Concurrency    int    `mapstructure:"concurrency"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	DelayMs        int    `mapstructure:"delay_ms"`
	UserAgent      string `mapstructure:"user_agent"`
	RespectRobots  bool   `mapstructure:"respect_robots"`
	FollowExternal bool   `mapstructure:"follow_external"`
}

// MonitoringConfig governs monitoring checks against a prior run.
type MonitoringConfig struct {
	Pages          int `mapstructure:"pages"`
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// StorageConfig selects and configures the page store.
type StorageConfig struct {
	Provider string `mapstructure:"provider"`
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// NotifierConfig selects and configures the notification transport.
type NotifierConfig struct {
	Provider  string `mapstructure:"provider"`
	ProjectID string `mapstructure:"project_id"`
	TopicID   string `mapstructure:"topic_id"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SITEAUDIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", true)
	v.SetDefault("crawler.max_pages", 100)
	v.SetDefault("crawler.concurrency", 5)
	v.SetDefault("crawler.timeout_seconds", 15)
	v.SetDefault("crawler.delay_ms", 0)
	v.SetDefault("crawler.user_agent", "siteaudit-bot/0.1")
	v.SetDefault("crawler.respect_robots", true)
	v.SetDefault("crawler.follow_external", false)
	v.SetDefault("monitoring.pages", 10)
	v.SetDefault("monitoring.timeout_seconds", 15)
	v.SetDefault("storage.provider", "memory")
	v.SetDefault("notifier.provider", "memory")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Crawler.MaxPages <= 0 {
		return fmt.Errorf("crawler.max_pages must be > 0")
	}
	if c.Crawler.Concurrency <= 0 {
		return fmt.Errorf("crawler.concurrency must be > 0")
	}
	if c.Crawler.TimeoutSeconds <= 0 {
		return fmt.Errorf("crawler.timeout_seconds must be > 0")
	}
	if c.Crawler.DelayMs < 0 {
		return fmt.Errorf("crawler.delay_ms must be >= 0")
	}
	switch c.Storage.Provider {
	case "memory":
	case "postgres":
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn must be set when storage.provider is postgres")
		}
	default:
		return fmt.Errorf("storage.provider must be memory or postgres, got %q", c.Storage.Provider)
	}
	switch c.Notifier.Provider {
	case "memory":
	case "pubsub":
		if c.Notifier.ProjectID == "" || c.Notifier.TopicID == "" {
			return fmt.Errorf("notifier.project_id and notifier.topic_id must be set when notifier.provider is pubsub")
		}
	default:
		return fmt.Errorf("notifier.provider must be memory or pubsub, got %q", c.Notifier.Provider)
	}
	return nil
}

// CrawlSettings converts the crawler section into run settings.
func (c Config) CrawlSettings() audit.CrawlSettings {
	return audit.CrawlSettings{
		SeedURL:        c.Crawler.SeedURL,
		MaxPages:       c.Crawler.MaxPages,
		MaxConcurrent:  c.Crawler.Concurrency,
		Timeout:        time.Duration(c.Crawler.TimeoutSeconds) * time.Second,
		Delay:          time.Duration(c.Crawler.DelayMs) * time.Millisecond,
		UserAgent:      c.Crawler.UserAgent,
		RespectRobots:  c.Crawler.RespectRobots,
		FollowExternal: c.Crawler.FollowExternal,
	}
}

// MonitoringTimeout returns the per-fetch bound for monitoring checks.
func (c Config) MonitoringTimeout() time.Duration {
	return time.Duration(c.Monitoring.TimeoutSeconds) * time.Second
}
