// Package config provides configuration management for slidetrace.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults for the trace capture service.
const (
	DefaultListenAddr    = ":37700"
	DefaultDriver        = "sqlite"
	DefaultDSN           = "slidetrace.db"
	DefaultMaxConns      = 4
	DefaultSlidesDir     = "slides"
	DefaultBatchSize     = 10
	DefaultFlushInterval = 5 * time.Second
	DefaultMaxRetries    = 3
	DefaultRetryBase     = time.Second
)

// DatabaseConfig selects the storage backend. Driver is "sqlite" or
// "postgres".
type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	DSN      string `yaml:"dsn"`
	MaxConns int    `yaml:"max_conns"`
}

// SessionConfig tunes attempt accounting.
type SessionConfig struct {
	// AttemptThreshold is the resume gap beyond which a restart counts as a
	// new attempt.
	AttemptThreshold time.Duration `yaml:"attempt_threshold"`
}

// RecorderConfig tunes client-side event buffering.
type RecorderConfig struct {
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	MaxRetries    int           `yaml:"max_retries"`
	RetryBase     time.Duration `yaml:"retry_base"`
}

// PlaybackConfig tunes replay pacing.
type PlaybackConfig struct {
	Speeds        []float64     `yaml:"speeds"`
	MinDwell      time.Duration `yaml:"min_dwell"`
	MaxDwell      time.Duration `yaml:"max_dwell"`
	SettleTimeout time.Duration `yaml:"settle_timeout"`
}

// Config holds all runtime settings.
type Config struct {
	ListenAddr string         `yaml:"listen_addr"`
	Debug      bool           `yaml:"debug"`
	SlidesDir  string         `yaml:"slides_dir"`
	Database   DatabaseConfig `yaml:"database"`
	Session    SessionConfig  `yaml:"session"`
	Recorder   RecorderConfig `yaml:"recorder"`
	Playback   PlaybackConfig `yaml:"playback"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		ListenAddr: DefaultListenAddr,
		SlidesDir:  DefaultSlidesDir,
		Database: DatabaseConfig{
			Driver:   DefaultDriver,
			DSN:      DefaultDSN,
			MaxConns: DefaultMaxConns,
		},
		Session: SessionConfig{
			AttemptThreshold: time.Minute,
		},
		Recorder: RecorderConfig{
			BatchSize:     DefaultBatchSize,
			FlushInterval: DefaultFlushInterval,
			MaxRetries:    DefaultMaxRetries,
			RetryBase:     DefaultRetryBase,
		},
		Playback: PlaybackConfig{
			Speeds:        []float64{0.5, 1, 2, 5},
			MinDwell:      150 * time.Millisecond,
			MaxDwell:      4 * time.Second,
			SettleTimeout: 3 * time.Second,
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path (if it
// exists), then environment overrides. A missing file is not an error; a
// malformed one is.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays SLIDETRACE_* environment variables.
func applyEnv(cfg *Config) {
	if v := os.Getenv("SLIDETRACE_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("SLIDETRACE_DB_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("SLIDETRACE_DB_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("SLIDETRACE_SLIDES_DIR"); v != "" {
		cfg.SlidesDir = v
	}
	if v := os.Getenv("SLIDETRACE_DEBUG"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Debug = b
		}
	}
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	if c.Database.Driver != "sqlite" && c.Database.Driver != "postgres" {
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database dsn must not be empty")
	}
	if c.Recorder.BatchSize < 1 {
		return fmt.Errorf("recorder batch_size must be >= 1")
	}
	if c.Session.AttemptThreshold <= 0 {
		return fmt.Errorf("session attempt_threshold must be positive")
	}
	if c.Playback.MinDwell > c.Playback.MaxDwell {
		return fmt.Errorf("playback min_dwell exceeds max_dwell")
	}
	return nil
}
