package main

import (
	"fmt"
	"sync"

	"github.com/spf13/cobra"

	"github.com/pearcec/kioskstats/internal/config"
	"github.com/pearcec/kioskstats/internal/logging"
)

var (
	configPath string
	logLevel   string
	logFormat  string

	activeConfig *config.Config
	activeMu     sync.Mutex
)

var rootCmd = &cobra.Command{
	Use:   "kioskstats",
	Short: "Usage statistics for museum kiosks",
	Long: `kioskstats turns kiosk usage logs into daily and per-session statistics.

It reads Apache access logs containing event.json requests, or CSV event
logs extracted from them, and writes reports for a named deployment:

  - stats       Daily usage and session statistics (CSV and/or Parquet)
  - eventlog    Extract supported events into a CSV event log
  - types       List the event types found in a log
  - channels    BodyTrack time-series files per event type
  - deployments Inspect the available deployments
  - schedule    Run processors on a cron schedule`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return logging.Init(pick(logLevel, cfg.Log.Level), pick(logFormat, cfg.Log.Format))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default "+config.DefaultConfigPath+")")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: console or json")
}

// loadConfig returns the configuration selected by --config, loading it once.
func loadConfig() (*config.Config, error) {
	activeMu.Lock()
	defer activeMu.Unlock()

	if activeConfig != nil {
		return activeConfig, nil
	}
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	activeConfig = cfg
	return cfg, nil
}

// reloadConfig reads the config file again and replaces the cached copy.
func reloadConfig() (*config.Config, error) {
	cfg, err := config.LoadFile(pick(configPath, config.DefaultConfigPath))
	if err != nil {
		return nil, fmt.Errorf("failed to reload config: %w", err)
	}
	activeMu.Lock()
	activeConfig = cfg
	activeMu.Unlock()
	return cfg, nil
}

// applyLogLevel makes the log level of a reloaded config take effect,
// unless --log-level pinned it for the whole process.
func applyLogLevel(cfg *config.Config) error {
	if logLevel != "" {
		return nil
	}
	return logging.SetLevel(cfg.Log.Level)
}

func pick(override, fallback string) string {
	if override != "" {
		return override
	}
	return fallback
}
