// Package config provides configuration management for slidetrace.
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

// ConfigSuite is a test suite for config operations.
type ConfigSuite struct {
	suite.Suite
	tempDir string
}

func (s *ConfigSuite) SetupTest() {
	var err error
	s.tempDir, err = os.MkdirTemp("", "config-test-*")
	s.Require().NoError(err)
}

func (s *ConfigSuite) TearDownTest() {
	os.RemoveAll(s.tempDir)
	for _, key := range []string{
		"SLIDETRACE_LISTEN_ADDR", "SLIDETRACE_DB_DRIVER",
		"SLIDETRACE_DB_DSN", "SLIDETRACE_SLIDES_DIR", "SLIDETRACE_DEBUG",
	} {
		os.Unsetenv(key)
	}
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigSuite))
}

// TestDefault tests default configuration values.
func (s *ConfigSuite) TestDefault() {
	cfg := Default()

	s.Equal(DefaultListenAddr, cfg.ListenAddr)
	s.Equal("sqlite", cfg.Database.Driver)
	s.Equal(DefaultMaxConns, cfg.Database.MaxConns)
	s.Equal(DefaultBatchSize, cfg.Recorder.BatchSize)
	s.Equal(DefaultFlushInterval, cfg.Recorder.FlushInterval)
	s.Equal(DefaultMaxRetries, cfg.Recorder.MaxRetries)
	s.Equal(time.Minute, cfg.Session.AttemptThreshold)
	s.Equal([]float64{0.5, 1, 2, 5}, cfg.Playback.Speeds)
	s.False(cfg.Debug)
}

// TestLoadMissingFile tests that a missing config file yields defaults.
func (s *ConfigSuite) TestLoadMissingFile() {
	cfg, err := Load(filepath.Join(s.tempDir, "nope.yaml"))
	s.NoError(err)
	s.Equal(Default(), cfg)
}

// TestLoad_TableDriven tests configuration loading with various scenarios.
func (s *ConfigSuite) TestLoad_TableDriven() {
	tests := []struct {
		name         string
		yaml         string
		wantErr      bool
		expectAddr   string
		expectDriver string
		expectBatch  int
	}{
		{
			name:         "empty file keeps defaults",
			yaml:         "",
			expectAddr:   DefaultListenAddr,
			expectDriver: "sqlite",
			expectBatch:  DefaultBatchSize,
		},
		{
			name:         "custom listen addr",
			yaml:         "listen_addr: \":9001\"\n",
			expectAddr:   ":9001",
			expectDriver: "sqlite",
			expectBatch:  DefaultBatchSize,
		},
		{
			name: "postgres with tuned recorder",
			yaml: "database:\n  driver: postgres\n  dsn: postgres://localhost/traces\nrecorder:\n  batch_size: 25\n",
			expectAddr:   DefaultListenAddr,
			expectDriver: "postgres",
			expectBatch:  25,
		},
		{
			name:    "unknown driver rejected",
			yaml:    "database:\n  driver: oracle\n",
			wantErr: true,
		},
		{
			name:    "zero batch size rejected",
			yaml:    "recorder:\n  batch_size: 0\n",
			wantErr: true,
		},
		{
			name:    "malformed yaml rejected",
			yaml:    "listen_addr: [oops\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			path := filepath.Join(s.tempDir, tt.name+".yaml")
			s.Require().NoError(os.WriteFile(path, []byte(tt.yaml), 0600))

			cfg, err := Load(path)
			if tt.wantErr {
				s.Error(err)
				return
			}
			s.Require().NoError(err)
			s.Equal(tt.expectAddr, cfg.ListenAddr)
			s.Equal(tt.expectDriver, cfg.Database.Driver)
			s.Equal(tt.expectBatch, cfg.Recorder.BatchSize)
		})
	}
}

// TestEnvOverrides tests that environment variables win over file values.
func (s *ConfigSuite) TestEnvOverrides() {
	path := filepath.Join(s.tempDir, "config.yaml")
	s.Require().NoError(os.WriteFile(path, []byte("listen_addr: \":9001\"\n"), 0600))

	os.Setenv("SLIDETRACE_LISTEN_ADDR", ":9002")
	os.Setenv("SLIDETRACE_DB_DSN", "/data/traces.db")
	os.Setenv("SLIDETRACE_DEBUG", "true")

	cfg, err := Load(path)
	s.Require().NoError(err)
	s.Equal(":9002", cfg.ListenAddr)
	s.Equal("/data/traces.db", cfg.Database.DSN)
	s.True(cfg.Debug)
}

// TestEnvInvalidBool tests that a non-boolean debug value is ignored.
func (s *ConfigSuite) TestEnvInvalidBool() {
	os.Setenv("SLIDETRACE_DEBUG", "banana")
	cfg, err := Load("")
	s.Require().NoError(err)
	s.False(cfg.Debug)
}

// TestValidateDwellOrdering tests the dwell bounds check.
func (s *ConfigSuite) TestValidateDwellOrdering() {
	cfg := Default()
	cfg.Playback.MinDwell = 10 * time.Second
	cfg.Playback.MaxDwell = time.Second
	s.Error(cfg.Validate())
}
