// Package config provides YAML-based configuration loading for Couchlog.
package config

import (
	"fmt"
	"os"

	"github.com/couchlog/couchlog/internal/telegraph"
	"gopkg.in/yaml.v3"
)

// Config is the top-level Couchlog configuration, loaded from couchlog.yaml.
type Config struct {
	Jellyfin  JellyfinConfig  `yaml:"jellyfin"`
	TMDB      TMDBConfig      `yaml:"tmdb"`
	Database  DatabaseConfig  `yaml:"database"`
	Tracker   TrackerConfig   `yaml:"tracker"`
	Notify    NotifyConfig    `yaml:"notify"`
	Dashboard DashboardConfig `yaml:"dashboard"`
}

// JellyfinConfig holds connection settings for the media server. If URL or
// APIKey is empty the tracker stays inert.
type JellyfinConfig struct {
	URL    string `yaml:"url"`
	APIKey string `yaml:"api_key"`
}

// Configured reports whether the media server connection is usable.
func (j JellyfinConfig) Configured() bool {
	return j.URL != "" && j.APIKey != ""
}

// TMDBConfig holds the catalogue lookup API key.
type TMDBConfig struct {
	APIKey string `yaml:"api_key"`
}

// DatabaseConfig selects the persistence backend. SQLite is the default.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // "sqlite" or "mysql"
	Path     string `yaml:"path"`   // sqlite file path
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

// TrackerConfig holds the reconciliation engine thresholds. The completion
// threshold is a percentage; the remaining values are seconds.
type TrackerConfig struct {
	PollIntervalSeconds    int     `yaml:"poll_interval_seconds"`
	CompletionThreshold    float64 `yaml:"completion_threshold"`
	MinWatchSeconds        int     `yaml:"min_watch_seconds"`
	MinActivitySeconds     int     `yaml:"min_activity_seconds"`
	MinPartialWatchSeconds int     `yaml:"min_partial_watch_seconds"`
}

// NotifyConfig holds chat delivery settings.
type NotifyConfig struct {
	Slack      SlackConfig   `yaml:"slack"`
	Discord    DiscordConfig `yaml:"discord"`
	DigestCron string        `yaml:"digest_cron"` // 5-field cron, empty disables the digest
}

// SlackConfig configures the Slack adapter.
type SlackConfig struct {
	BotToken string `yaml:"bot_token"`
	Channel  string `yaml:"channel"`
}

// DiscordConfig configures the Discord adapter.
type DiscordConfig struct {
	BotToken string `yaml:"bot_token"`
	Channel  string `yaml:"channel"`
}

// DashboardConfig configures the HTTP API server.
type DashboardConfig struct {
	Port int `yaml:"port"`
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a Config with all defaults applied and no media server
// configured.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Path == "" {
		c.Database.Path = "couchlog.db"
	}
	if c.Database.Host == "" {
		c.Database.Host = "127.0.0.1"
	}
	if c.Database.Port == 0 {
		c.Database.Port = 3306
	}
	if c.Database.Name == "" {
		c.Database.Name = "couchlog"
	}
	if c.Tracker.PollIntervalSeconds == 0 {
		c.Tracker.PollIntervalSeconds = 10
	}
	if c.Tracker.CompletionThreshold == 0 {
		c.Tracker.CompletionThreshold = 85
	}
	if c.Tracker.MinWatchSeconds == 0 {
		c.Tracker.MinWatchSeconds = 120
	}
	if c.Tracker.MinActivitySeconds == 0 {
		c.Tracker.MinActivitySeconds = 60
	}
	if c.Tracker.MinPartialWatchSeconds == 0 {
		c.Tracker.MinPartialWatchSeconds = 600
	}
	if c.Dashboard.Port == 0 {
		c.Dashboard.Port = 8088
	}
}

// validate checks invariants that defaults cannot repair.
func (c *Config) validate() error {
	switch c.Database.Driver {
	case "sqlite", "mysql":
	default:
		return fmt.Errorf("config: unknown database driver %q", c.Database.Driver)
	}
	if c.Tracker.CompletionThreshold < 0 || c.Tracker.CompletionThreshold > 100 {
		return fmt.Errorf("config: completion_threshold must be between 0 and 100, got %v", c.Tracker.CompletionThreshold)
	}
	if c.Tracker.PollIntervalSeconds < 0 {
		return fmt.Errorf("config: poll_interval_seconds must be positive, got %d", c.Tracker.PollIntervalSeconds)
	}
	for name, v := range map[string]int{
		"min_watch_seconds":         c.Tracker.MinWatchSeconds,
		"min_activity_seconds":      c.Tracker.MinActivitySeconds,
		"min_partial_watch_seconds": c.Tracker.MinPartialWatchSeconds,
	} {
		if v < 0 {
			return fmt.Errorf("config: %s must not be negative, got %d", name, v)
		}
	}
	if c.Notify.Slack.BotToken != "" && c.Notify.Slack.Channel == "" {
		return fmt.Errorf("config: notify.slack.channel is required when a slack token is set")
	}
	if c.Notify.Discord.BotToken != "" && c.Notify.Discord.Channel == "" {
		return fmt.Errorf("config: notify.discord.channel is required when a discord token is set")
	}
	if c.Notify.DigestCron != "" {
		if err := telegraph.ValidateCron(c.Notify.DigestCron); err != nil {
			return fmt.Errorf("config: notify.digest_cron %q: %w", c.Notify.DigestCron, err)
		}
	}
	return nil
}
