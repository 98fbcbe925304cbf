// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Logging  LoggingConfig  `yaml:"logging"`
	Playback PlaybackConfig `yaml:"playback"`
	Suggest  SuggestConfig  `yaml:"suggest"`
	Learner  LearnerConfig  `yaml:"learner"`
	History  HistoryConfig  `yaml:"history"`
	Spotify  SpotifyConfig  `yaml:"spotify"`
}

// LoggingConfig represents logging configuration.
type LoggingConfig struct {
	Output string `yaml:"output" default:"stdout"`
	Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
}

// PlaybackConfig represents playback session configuration.
type PlaybackConfig struct {
	RecentWindow     int  `yaml:"recent_window" default:"5" validate:"gte=1,lte=50"`
	AsyncSuggestions bool `yaml:"async_suggestions"`
}

// SuggestConfig represents suggestion engine configuration.
type SuggestConfig struct {
	Count int `yaml:"count" default:"3" validate:"gte=1,lte=20"`
	// Per-style scorer settings, e.g. the energy_flow direction or the
	// random seed. Keys are transition style names.
	Styles map[string]map[string]any `yaml:"styles"`
}

// LearnerConfig represents weight reinforcement configuration.
type LearnerConfig struct {
	Alpha float64 `yaml:"alpha" default:"0.7" validate:"gte=0,lt=1"`
}

// HistoryConfig represents history aggregation configuration.
type HistoryConfig struct {
	MinPlayCount  int `yaml:"min_play_count" default:"2" validate:"gte=1"`
	MaxGapMinutes int `yaml:"max_gap_minutes" validate:"gte=0"`
}

// SpotifyConfig represents the optional Spotify feature provider.
type SpotifyConfig struct {
	Enabled      bool   `yaml:"enabled"`
	ClientID     string `yaml:"client_id" validate:"required_if=Enabled true"`
	ClientSecret string `yaml:"client_secret" validate:"required_if=Enabled true"`
}

// Default returns a configuration with all defaults applied.
func Default() *Config {
	var cfg Config
	_ = defaults.Set(&cfg)
	return &cfg
}

// Load loads configuration from a YAML file. Environment variables take
// precedence over file values for credentials.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	cfg.overrideFromEnv()

	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("SPOTIFY_CLIENT_ID"); v != "" {
		c.Spotify.ClientID = v
	}
	if v := os.Getenv("SPOTIFY_CLIENT_SECRET"); v != "" {
		c.Spotify.ClientSecret = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}
	return nil
}

// MaxGap returns the history aggregation gap as a duration; 0 disables the
// gap check.
func (c *Config) MaxGap() time.Duration {
	return time.Duration(c.History.MaxGapMinutes) * time.Minute
}
