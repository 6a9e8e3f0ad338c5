package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pearcec/kioskstats/cmd/kioskstats/processors"
	"github.com/pearcec/kioskstats/internal/config"
	"github.com/pearcec/kioskstats/internal/logging"
)

const accessLog = "processors/testdata/cmnh-access.log"

var registerOnce sync.Once

// execute runs the root command with a fresh config file and returns its
// standard output.
func execute(t *testing.T, configBody string, args ...string) (string, error) {
	t.Helper()
	registerOnce.Do(func() { processors.RegisterCommands(rootCmd, loadConfig) })

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(configBody), 0o644))

	activeMu.Lock()
	activeConfig = nil
	activeMu.Unlock()
	logLevel, logFormat = "", ""

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--config", path, "--log-level", "error"}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func testConfigBody(outputDir string) string {
	return fmt.Sprintf(`
output_dir: %s
deployment: cmnh
deployments_dir: %s
schedules:
  - name: nightly
    cron: "0 2 * * *"
    processor: stats
    input: %s
    enabled: true
  - name: paused
    cron: "30 3 * * 1"
    processor: eventlog
    input: %s
  - name: broken
    cron: "every day"
    processor: stats
    input: %s
    enabled: true
`, outputDir, filepath.Join(outputDir, "no-deployments"), accessLog, accessLog, accessLog)
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "kioskstats version "+Version)
}

func TestDeploymentsCommands(t *testing.T) {
	body := testConfigBody(t.TempDir())

	out, err := execute(t, body, "deployments", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "NAME")
	assert.Regexp(t, `britishmuseum\s+GMT\+0\s+11\s+no`, out)
	assert.Regexp(t, `cmnh\s+GMT-5\s+17\s+yes`, out)

	out, err = execute(t, body, "deployments", "show", "cmnh")
	require.NoError(t, err)
	assert.Contains(t, out, "name: cmnh")
	assert.Contains(t, out, "idle-screen-hidden")

	_, err = execute(t, body, "deployments", "show", "louvre")
	assert.Error(t, err)
}

func TestProcessorCommand(t *testing.T) {
	outDir := t.TempDir()

	out, err := execute(t, testConfigBody(outDir), "stats", accessLog, "--output-dir", filepath.Join(outDir, "manual"))
	require.NoError(t, err)
	assert.Contains(t, out, "Found [2] events for type [nav-tap]")
	assert.Contains(t, out, "Wrote "+filepath.Join(outDir, "manual", "daily-usage-stats.csv"))
	assert.FileExists(t, filepath.Join(outDir, "manual", "session-stats.csv"))
}

func TestBadConfigFails(t *testing.T) {
	_, err := execute(t, "format: xml\n", "version")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "format must be")
}

func TestScheduleList(t *testing.T) {
	out, err := execute(t, testConfigBody(t.TempDir()), "schedule", "list")
	require.NoError(t, err)
	assert.Regexp(t, `nightly\s+0 2 \* \* \*\s+stats .*\(enabled\) next: \d{4}-`, out)
	assert.Contains(t, out, "(disabled) next: -")
	assert.Contains(t, out, "(invalid cron)")
}

func TestScheduleNow(t *testing.T) {
	outDir := t.TempDir()

	out, err := execute(t, testConfigBody(outDir), "schedule", "now", "nightly")
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote "+filepath.Join(outDir, "nightly"))

	runs, err := os.ReadDir(filepath.Join(outDir, "nightly"))
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.FileExists(t, filepath.Join(outDir, "nightly", runs[0].Name(), "daily-usage-stats.csv"))

	_, err = execute(t, testConfigBody(outDir), "schedule", "now", "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "job not found")
}

func TestJobOutputDir(t *testing.T) {
	cfg := &config.Config{OutputDir: "/srv/stats"}
	now := time.Date(2012, 3, 14, 2, 0, 0, 0, time.UTC)
	assert.Equal(t, "/srv/stats/nightly/20120314-020000", jobOutputDir(cfg, "nightly", now))
}

func TestRunJobRejectsUnknownProcessor(t *testing.T) {
	cfg := &config.Config{OutputDir: t.TempDir(), Deployment: "cmnh", InputFormat: "apache", Format: "csv"}
	_, err := runJob(context.Background(), cfg, config.Schedule{Name: "x", Processor: "bogus", Input: accessLog}, time.Now())
	require.Error(t, err)
	assert.ErrorIs(t, err, processors.ErrUnknownProcessor)
	assert.Contains(t, err.Error(), `unknown processor "bogus"`)
}

func TestBuildSchedulerSkipsDisabledAndInvalidJobs(t *testing.T) {
	outDir := t.TempDir()
	cfg, err := config.LoadFile(writeFile(t, testConfigBody(outDir)))
	require.NoError(t, err)

	c := buildScheduler(context.Background(), cfg, zap.NewNop())
	assert.Len(t, c.Entries(), 1)
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestApplyLogLevelOnReload(t *testing.T) {
	t.Cleanup(func() {
		logLevel = ""
		_ = logging.SetLevel("error")
	})

	logLevel = ""
	require.NoError(t, applyLogLevel(&config.Config{Log: config.LogConfig{Level: "debug"}}))
	assert.Equal(t, "debug", logging.Level())

	logLevel = "error"
	require.NoError(t, logging.SetLevel("error"))
	require.NoError(t, applyLogLevel(&config.Config{Log: config.LogConfig{Level: "debug"}}))
	assert.Equal(t, "error", logging.Level())

	logLevel = ""
	assert.Error(t, applyLogLevel(&config.Config{Log: config.LogConfig{Level: "chatty"}}))
	assert.Equal(t, "error", logging.Level())
}
