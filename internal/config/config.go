// Package config provides configuration management for kioskstats.
// Configuration is loaded from ~/.config/kioskstats/config.yaml, overridden
// by KIOSKSTATS_* environment variables, with sensible defaults.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/viper"
)

const (
	// DefaultConfigPath is the default location for the config file.
	DefaultConfigPath = "~/.config/kioskstats/config.yaml"

	// EnvPrefix prefixes environment overrides, e.g. KIOSKSTATS_OUTPUT_DIR.
	EnvPrefix = "KIOSKSTATS"

	DefaultOutputDir          = "./stats"
	DefaultDeploymentsDir     = "~/.config/kioskstats/deployments"
	DefaultInputFormat        = "apache"
	DefaultFormat             = "csv"
	DefaultParquetCompression = "SNAPPY"
	DefaultLogLevel           = "info"
	DefaultLogFormat          = "console"
)

// Config holds the kioskstats configuration.
type Config struct {
	OutputDir          string     `mapstructure:"output_dir" yaml:"output_dir"`
	Deployment         string     `mapstructure:"deployment" yaml:"deployment"`
	DeploymentsDir     string     `mapstructure:"deployments_dir" yaml:"deployments_dir"`
	InputFormat        string     `mapstructure:"input_format" yaml:"input_format"`
	Format             string     `mapstructure:"format" yaml:"format"`
	ParquetCompression string     `mapstructure:"parquet_compression" yaml:"parquet_compression"`
	Log                LogConfig  `mapstructure:"log" yaml:"log"`
	Schedules          []Schedule `mapstructure:"schedules" yaml:"schedules"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Schedule is a processor run triggered by a cron expression.
type Schedule struct {
	Name       string `mapstructure:"name" yaml:"name"`
	Cron       string `mapstructure:"cron" yaml:"cron"`
	Processor  string `mapstructure:"processor" yaml:"processor"`
	Input      string `mapstructure:"input" yaml:"input"`
	Deployment string `mapstructure:"deployment" yaml:"deployment"`
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled"`
}

var (
	globalConfig *Config
	configOnce   sync.Once
	configErr    error
)

// Load loads the configuration from the default path.
// It returns the cached config on subsequent calls.
func Load() (*Config, error) {
	configOnce.Do(func() {
		globalConfig, configErr = LoadFile(DefaultConfigPath)
	})
	return globalConfig, configErr
}

// LoadFile reads configuration from path without caching. A missing file
// yields the defaults plus any environment overrides.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	expanded := ExpandPath(path)
	if _, err := os.Stat(expanded); err == nil {
		v.SetConfigFile(expanded)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", expanded, err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to stat config %s: %w", expanded, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config %s: %w", expanded, err)
	}
	cfg.ParquetCompression = strings.ToUpper(cfg.ParquetCompression)
	cfg.Format = strings.ToLower(cfg.Format)
	cfg.InputFormat = strings.ToLower(cfg.InputFormat)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", expanded, err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("output_dir", DefaultOutputDir)
	v.SetDefault("deployment", "")
	v.SetDefault("deployments_dir", DefaultDeploymentsDir)
	v.SetDefault("input_format", DefaultInputFormat)
	v.SetDefault("format", DefaultFormat)
	v.SetDefault("parquet_compression", DefaultParquetCompression)
	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.format", DefaultLogFormat)
}

// Validate checks enumerated settings and schedules.
func (c *Config) Validate() error {
	switch c.Format {
	case "csv", "parquet", "both":
	default:
		return fmt.Errorf("format must be csv, parquet or both, got %q", c.Format)
	}
	switch c.InputFormat {
	case "apache", "csv":
	default:
		return fmt.Errorf("input_format must be apache or csv, got %q", c.InputFormat)
	}
	switch c.ParquetCompression {
	case "SNAPPY", "GZIP", "ZSTD":
	default:
		return fmt.Errorf("parquet_compression must be snappy, gzip or zstd, got %q", c.ParquetCompression)
	}

	seen := make(map[string]bool, len(c.Schedules))
	for i, s := range c.Schedules {
		if s.Name == "" {
			return fmt.Errorf("schedule %d: name is required", i)
		}
		if seen[s.Name] {
			return fmt.Errorf("schedule %q: duplicate name", s.Name)
		}
		seen[s.Name] = true
		if s.Cron == "" || s.Processor == "" || s.Input == "" {
			return fmt.Errorf("schedule %q: cron, processor and input are required", s.Name)
		}
	}
	return nil
}

// FindSchedule returns the schedule with the given name.
func (c *Config) FindSchedule(name string) (Schedule, bool) {
	for _, s := range c.Schedules {
		if s.Name == name {
			return s, true
		}
	}
	return Schedule{}, false
}

// OutputPath returns the configured output directory, expanded.
func (c *Config) OutputPath() string {
	return ExpandPath(c.OutputDir)
}

// ExpandPath expands a leading ~ to the home directory.
func ExpandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
	}
	return path
}

// ResetForTesting resets the global config state. Only use in tests.
func ResetForTesting() {
	configOnce = sync.Once{}
	globalConfig = nil
	configErr = nil
}
