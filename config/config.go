// Package config holds the driver configuration of the synack command.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/arloliu/go-synack/generator"
	"github.com/arloliu/go-synack/logger"
	"github.com/arloliu/go-synack/report"
)

var (
	// ErrInvalidTickInterval indicates a non-positive auto-run interval.
	ErrInvalidTickInterval = errors.New("tick interval should be positive")
	// ErrInvalidWindow indicates a non-positive report window.
	ErrInvalidWindow = errors.New("window size should be positive")
	// ErrInvalidCount indicates a negative random event count.
	ErrInvalidCount = errors.New("count should not be negative")
	// ErrInvalidLogLevel indicates an unknown log level name.
	ErrInvalidLogLevel = errors.New("unknown log level")
)

// Config is the driver configuration.
type Config struct {
	// Seed of the random generator. Nil picks a time-based seed.
	Seed             *uint64       `yaml:"seed"`
	ValidProbability float64       `yaml:"valid_probability"`
	// Count is the number of random events of the run command.
	Count        int           `yaml:"count"`
	TickInterval time.Duration `yaml:"tick_interval"`
	LogLevel     string        `yaml:"log_level"`
	Goals        report.Goals  `yaml:"goals"`
	WindowSize   int           `yaml:"window_size"`
	TracePath    string        `yaml:"trace_path"`
	PcapPath     string        `yaml:"pcap_path"`
	MetricsAddr  string        `yaml:"metrics_addr"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		ValidProbability: generator.DefaultValidProbability,
		Count:            100,
		TickInterval:     time.Second,
		LogLevel:         "info",
		Goals:            report.DefaultGoals(),
		WindowSize:       report.DefaultWindow,
	}
}

// SearchPaths returns the locations Load tries when no path is given, in order.
func SearchPaths() []string {
	paths := []string{"synack.yaml", ".synack.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "synack", "config.yaml"))
	}

	return paths
}

// Load reads the configuration at path on top of the defaults. With an empty path the
// first existing file of SearchPaths is used, and the defaults when there is none.
func Load(path string) (*Config, error) {
	if path == "" {
		for _, p := range SearchPaths() {
			if _, err := os.Stat(p); err == nil {
				path = p
				break
			}
		}

		if path == "" {
			return Default(), nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	return cfg, nil
}

// Parse decodes YAML data on top of the defaults and validates the result.
// Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration values.
func (c *Config) Validate() error {
	if math.IsNaN(c.ValidProbability) || c.ValidProbability < 0 || c.ValidProbability > 1 {
		return generator.ErrInvalidProbability
	}
	if c.TickInterval <= 0 {
		return ErrInvalidTickInterval
	}
	if c.WindowSize <= 0 {
		return ErrInvalidWindow
	}
	if c.Count < 0 {
		return ErrInvalidCount
	}
	if _, ok := logger.ParseLevel(c.LogLevel); !ok {
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.LogLevel)
	}

	return nil
}

// Level returns the parsed log level. It falls back to info for an unknown name.
func (c *Config) Level() logger.Level {
	if lvl, ok := logger.ParseLevel(c.LogLevel); ok {
		return lvl
	}

	return logger.InfoLevel
}
