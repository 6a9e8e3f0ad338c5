package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pearcec/kioskstats/cmd/kioskstats/processors"
	"github.com/pearcec/kioskstats/internal/config"
	"github.com/pearcec/kioskstats/internal/logging"
)

// jobTimestampLayout names the per-run output directory of a scheduled job.
const jobTimestampLayout = "20060102-150405"

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run processors on a cron schedule",
	Long: `Scheduled jobs are configured under "schedules" in the config file:

  schedules:
    - name: nightly-stats
      cron: "0 2 * * *"
      processor: stats
      input: /var/log/apache2/access.log
      deployment: cmnh
      enabled: true

Each run writes into <output_dir>/<job>/<timestamp>/, so earlier results
are never touched.

Commands:
  run     Start the scheduler in the foreground
  list    List all scheduled jobs
  now     Run a job immediately`,
}

var scheduleRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the scheduler in the foreground",
	Long: `Start the scheduler in the foreground. SIGHUP reloads the config file,
SIGINT or SIGTERM stops the scheduler after running jobs finish.`,
	RunE: runScheduleRun,
}

var scheduleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all scheduled jobs",
	RunE:  runScheduleList,
}

var scheduleNowCmd = &cobra.Command{
	Use:   "now <job>",
	Short: "Run a job immediately",
	Args:  cobra.ExactArgs(1),
	RunE:  runScheduleNow,
}

func init() {
	scheduleCmd.AddCommand(scheduleRunCmd)
	scheduleCmd.AddCommand(scheduleListCmd)
	scheduleCmd.AddCommand(scheduleNowCmd)
	rootCmd.AddCommand(scheduleCmd)
}

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// jobOutputDir is where one run of a scheduled job writes its files.
func jobOutputDir(cfg *config.Config, job string, now time.Time) string {
	return filepath.Join(cfg.OutputPath(), job, now.Format(jobTimestampLayout))
}

// runJob executes one scheduled job into a fresh output directory.
func runJob(ctx context.Context, cfg *config.Config, s config.Schedule, now time.Time) (*processors.Result, error) {
	p, err := processors.Lookup(s.Processor)
	if err != nil {
		return nil, fmt.Errorf("job %s: %w", s.Name, err)
	}
	opts, err := processors.Resolve(cfg, processors.Flags{
		Deployment: s.Deployment,
		OutputDir:  jobOutputDir(cfg, s.Name, now),
	}, s.Input)
	if err != nil {
		return nil, fmt.Errorf("job %s: %w", s.Name, err)
	}
	opts.Logger = logging.L().With(zap.String("job", s.Name))
	return processors.Execute(ctx, p, opts)
}

// buildScheduler adds every enabled job of cfg to a new cron scheduler.
// Jobs with bad cron expressions are logged and skipped.
func buildScheduler(ctx context.Context, cfg *config.Config, log *zap.Logger) *cron.Cron {
	c := cron.New(cron.WithParser(cronParser))

	for _, schedule := range cfg.Schedules {
		if !schedule.Enabled {
			log.Info("skipping disabled job", zap.String("job", schedule.Name))
			continue
		}

		job := schedule
		_, err := c.AddFunc(job.Cron, func() {
			start := time.Now()
			if _, err := runJob(ctx, cfg, job, start); err != nil {
				log.Error("job failed", zap.String("job", job.Name), zap.Error(err))
				return
			}
			log.Info("job complete", zap.String("job", job.Name), zap.Duration("elapsed", time.Since(start)))
		})
		if err != nil {
			log.Error("invalid cron expression", zap.String("job", job.Name), zap.String("cron", job.Cron), zap.Error(err))
			continue
		}
		log.Info("scheduled", zap.String("job", job.Name), zap.String("cron", job.Cron))
	}
	return c
}

func runScheduleRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := logging.L().With(zap.String("component", "scheduler"))

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	c := buildScheduler(ctx, cfg, log)
	c.Start()
	log.Info("scheduler running", zap.Int("jobs", len(c.Entries())), zap.Int("pid", os.Getpid()))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	for sig := range sigCh {
		switch sig {
		case syscall.SIGHUP:
			log.Info("received SIGHUP, reloading config")
			newCfg, err := reloadConfig()
			if err != nil {
				log.Error("reload failed", zap.Error(err))
				continue
			}
			if err := applyLogLevel(newCfg); err != nil {
				log.Error("keeping previous log level", zap.Error(err))
			}
			<-c.Stop().Done()
			c = buildScheduler(ctx, newCfg, log)
			c.Start()
			log.Info("reload complete", zap.Int("jobs", len(c.Entries())), zap.String("log_level", logging.Level()))

		case syscall.SIGINT, syscall.SIGTERM:
			log.Info("received shutdown signal, stopping")
			<-c.Stop().Done()
			log.Info("scheduler stopped")
			return nil
		}
	}
	return nil
}

func runScheduleList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if len(cfg.Schedules) == 0 {
		fmt.Fprintln(out, "No scheduled jobs configured.")
		return nil
	}

	fmt.Fprintln(out, "Scheduled jobs:")
	now := time.Now()
	for _, s := range cfg.Schedules {
		status := "enabled"
		if !s.Enabled {
			status = "disabled"
		}
		next := "-"
		if sched, err := cronParser.Parse(s.Cron); err != nil {
			status = "invalid cron"
		} else if s.Enabled {
			next = sched.Next(now).Format(time.RFC3339)
		}
		fmt.Fprintf(out, "  %-20s %-15s %-10s %s (%s) next: %s\n", s.Name, s.Cron, s.Processor, s.Input, status, next)
	}
	return nil
}

func runScheduleNow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	s, ok := cfg.FindSchedule(args[0])
	if !ok {
		return fmt.Errorf("job not found: %s", args[0])
	}

	result, err := runJob(cmd.Context(), cfg, s, time.Now())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if result.Message != "" {
		fmt.Fprintln(out, result.Message)
	}
	for _, path := range result.OutputPaths {
		fmt.Fprintf(out, "Wrote %s\n", path)
	}
	return nil
}
