package model

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// SourceConfig holds the connection settings for the remote notification
// source.
type SourceConfig struct {
	// BaseURL is the root URL of the source API.
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// PollIntervalSec is how often (in seconds) a full refresh runs.
	PollIntervalSec int `mapstructure:"poll_interval_sec" yaml:"poll_interval_sec"`

	// PageSize is the number of events requested per page.
	PageSize int `mapstructure:"page_size" yaml:"page_size"`

	// MaxPages caps how many pages may be accumulated via load-more.
	MaxPages int `mapstructure:"max_pages" yaml:"max_pages"`

	// SinceDays bounds how far back the event listing reaches.
	SinceDays int `mapstructure:"since_days" yaml:"since_days"`
}

// LimitsConfig bounds concurrent remote calls per refresh cycle.
type LimitsConfig struct {
	// StateFetches caps concurrent subject-detail fetches during
	// liveness resolution.
	StateFetches int `mapstructure:"state_fetches" yaml:"state_fetches"`

	// TeamResolutions caps concurrent PR-detail fetches during team
	// disambiguation.
	TeamResolutions int `mapstructure:"team_resolutions" yaml:"team_resolutions"`
}

// CacheConfig holds cache durations in seconds.
type CacheConfig struct {
	SubjectStateTTLSec int `mapstructure:"subject_state_ttl_sec" yaml:"subject_state_ttl_sec"`
	TeamInfoTTLSec     int `mapstructure:"team_info_ttl_sec" yaml:"team_info_ttl_sec"`
	UserTeamsTTLSec    int `mapstructure:"user_teams_ttl_sec" yaml:"user_teams_ttl_sec"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Source SourceConfig `mapstructure:"source" yaml:"source"`
	Limits LimitsConfig `mapstructure:"limits" yaml:"limits"`
	Cache  CacheConfig  `mapstructure:"cache" yaml:"cache"`

	// DBPath is the location of the local SQLite cache database.
	DBPath string `mapstructure:"db_path" yaml:"db_path"`
}

// SubjectStateTTL returns the state-resolution cache TTL as a duration.
func (c *AppConfig) SubjectStateTTL() time.Duration {
	return time.Duration(c.Cache.SubjectStateTTLSec) * time.Second
}

// TeamInfoTTL returns the team-classification cache TTL as a duration.
func (c *AppConfig) TeamInfoTTL() time.Duration {
	return time.Duration(c.Cache.TeamInfoTTLSec) * time.Second
}

// UserTeamsTTL returns the user-teams cache TTL as a duration.
func (c *AppConfig) UserTeamsTTL() time.Duration {
	return time.Duration(c.Cache.UserTeamsTTLSec) * time.Second
}

// PollInterval returns the full-refresh interval as a duration.
func (c *AppConfig) PollInterval() time.Duration {
	return time.Duration(c.Source.PollIntervalSec) * time.Second
}

// Since returns the lower time bound for event listing.
func (c *AppConfig) Since(now time.Time) time.Time {
	return now.AddDate(0, 0, -c.Source.SinceDays)
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/ghtriage/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "ghtriage", "config.yaml")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	home, _ := os.UserHomeDir()
	return &AppConfig{
		Source: SourceConfig{
			BaseURL:         "https://api.github.com",
			PollIntervalSec: 60,
			PageSize:        50,
			MaxPages:        10,
			SinceDays:       30,
		},
		Limits: LimitsConfig{
			StateFetches:    20,
			TeamResolutions: 10,
		},
		Cache: CacheConfig{
			SubjectStateTTLSec: 60,
			TeamInfoTTLSec:     86400,
			UserTeamsTTLSec:    3600,
		},
		DBPath: filepath.Join(home, ".config", "ghtriage", "cache.db"),
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, it returns a default configuration.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	defaults := defaultAppConfig()

	// Set defaults so missing keys resolve to sensible values.
	v.SetDefault("source.base_url", defaults.Source.BaseURL)
	v.SetDefault("source.poll_interval_sec", defaults.Source.PollIntervalSec)
	v.SetDefault("source.page_size", defaults.Source.PageSize)
	v.SetDefault("source.max_pages", defaults.Source.MaxPages)
	v.SetDefault("source.since_days", defaults.Source.SinceDays)
	v.SetDefault("limits.state_fetches", defaults.Limits.StateFetches)
	v.SetDefault("limits.team_resolutions", defaults.Limits.TeamResolutions)
	v.SetDefault("cache.subject_state_ttl_sec", defaults.Cache.SubjectStateTTLSec)
	v.SetDefault("cache.team_info_ttl_sec", defaults.Cache.TeamInfoTTLSec)
	v.SetDefault("cache.user_teams_ttl_sec", defaults.Cache.UserTeamsTTLSec)
	v.SetDefault("db_path", defaults.DBPath)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return defaults, nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return defaults, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("source", cfg.Source)
	v.Set("limits", cfg.Limits)
	v.Set("cache", cfg.Cache)
	v.Set("db_path", cfg.DBPath)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
