package stats

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/pearcec/kioskstats/cmd/kioskstats/processors"
	"github.com/pearcec/kioskstats/internal/deployment"
	"github.com/pearcec/kioskstats/internal/engine"
	"github.com/pearcec/kioskstats/internal/parser"
	"github.com/pearcec/kioskstats/internal/report"
)

const accessLog = "../testdata/cmnh-access.log"

func cmnh(t *testing.T) *deployment.Deployment {
	t.Helper()
	r, err := deployment.Builtin()
	require.NoError(t, err)
	d, err := r.Get("cmnh")
	require.NoError(t, err)
	return d
}

func options(t *testing.T, format string) processors.RunOptions {
	return processors.RunOptions{
		Input:       accessLog,
		OutputDir:   t.TempDir(),
		Deployment:  cmnh(t),
		InputFormat: parser.FormatApache,
		Format:      format,
		RunID:       "run-1",
		Logger:      zap.NewNop(),
	}
}

// readRows returns the data rows of a CSV file keyed by header name.
func readRows(t *testing.T, path string) []map[string]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.NotEmpty(t, records)

	header := records[0]
	rows := make([]map[string]string, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := make(map[string]string, len(header))
		for i, name := range header {
			row[name] = rec[i]
		}
		rows = append(rows, row)
	}
	return rows
}

func TestStatsWritesDayAndSessionRecords(t *testing.T) {
	opts := options(t, processors.FormatCSV)

	result, err := (&Processor{}).Run(context.Background(), opts)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, []string{
		filepath.Join(opts.OutputDir, "daily-usage-stats.csv"),
		filepath.Join(opts.OutputDir, "session-stats.csv"),
	}, result.OutputPaths)

	days := readRows(t, result.OutputPaths[0])
	require.Len(t, days, 2)

	first := days[0]
	assert.Equal(t, "2012-03-14 00:00:00.000", first["date_formatted"])
	assert.Equal(t, "2012-03-14 10:00:00.000", first["starting_time_formatted"])
	assert.Equal(t, "2012-03-14 10:05:00.000", first["ending_time_formatted"])
	assert.Equal(t, "1331701200000", first["date"])
	assert.Equal(t, "300000", first["duration_total_millis"])
	assert.Equal(t, "5000", first["duration_init_millis"])
	assert.Equal(t, "60000", first["duration_active_millis"])
	assert.Equal(t, "235000", first["duration_idle_millis"])
	assert.Equal(t, "0", first["duration_other_millis"])
	assert.Equal(t, "1", first["num_init_periods"])
	assert.Equal(t, "1", first["num_active_periods"])
	assert.Equal(t, "1", first["num_idle_periods"])
	assert.Equal(t, "1", first["num_theme_selections"])
	assert.Equal(t, "1", first["theme2"])
	assert.Equal(t, "0", first["themeNone"])
	assert.Equal(t, "0", first["play_aurochs.webm"])

	second := days[1]
	assert.Equal(t, "2012-03-15 00:00:00.000", second["date_formatted"])
	assert.Equal(t, "30000", second["duration_total_millis"])
	assert.Equal(t, "30000", second["duration_other_millis"])
	assert.Equal(t, "0", second["num_init_periods"])

	sessions := readRows(t, result.OutputPaths[1])
	require.Len(t, sessions, 1)
	assert.Equal(t, "1", sessions[0]["session_number"])
	assert.Equal(t, "1331737260000", sessions[0]["starting_time"])
	assert.Equal(t, "1331737320000", sessions[0]["ending_time"])
	assert.Equal(t, "60000", sessions[0]["duration_millis"])
	assert.Equal(t, "1", sessions[0]["num_theme_selections"])
	assert.Equal(t, "0", sessions[0]["num_taps"])

	assert.Contains(t, result.Message, "Lines processed: 9")
	assert.Contains(t, result.Message, "Unsupported events: 1")
	assert.Contains(t, result.Message, "Found [2] events for type [nav-tap]")
	assert.Contains(t, result.Message, "Found [0] events for type [media-play]")
}

func TestStatsWritesSummaryYAML(t *testing.T) {
	opts := options(t, processors.FormatCSV)
	opts.SummaryPath = filepath.Join(opts.OutputDir, "summary.yaml")

	result, err := (&Processor{}).Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Contains(t, result.OutputPaths, opts.SummaryPath)

	data, err := os.ReadFile(opts.SummaryPath)
	require.NoError(t, err)
	var summary engine.Summary
	require.NoError(t, yaml.Unmarshal(data, &summary))

	assert.Equal(t, "run-1", summary.RunID)
	assert.Equal(t, "cmnh", summary.Deployment)
	assert.Equal(t, 9, summary.LinesProcessed)
	assert.Equal(t, 8, summary.EventLinesProcessed)
	assert.Equal(t, 1, summary.Unsupported)
	assert.Equal(t, 2, summary.Days)
	assert.Equal(t, 1, summary.Sessions)
	assert.Equal(t, 2, summary.CountsByType["nav-tap"])
	assert.Equal(t, 7, summary.TotalEvents())
}

func TestStatsParquetOutput(t *testing.T) {
	opts := options(t, processors.FormatBoth)

	result, err := (&Processor{}).Run(context.Background(), opts)
	require.NoError(t, err)
	require.Len(t, result.OutputPaths, 4)

	for _, path := range result.OutputPaths {
		if filepath.Ext(path) != ".parquet" {
			continue
		}
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		require.Greater(t, len(data), 8)
		assert.Equal(t, "PAR1", string(data[:4]), path)
		assert.Equal(t, "PAR1", string(data[len(data)-4:]), path)
	}
}

func TestStatsRefusesToOverwrite(t *testing.T) {
	opts := options(t, processors.FormatCSV)
	_, err := (&Processor{}).Run(context.Background(), opts)
	require.NoError(t, err)

	before, err := os.ReadFile(filepath.Join(opts.OutputDir, "daily-usage-stats.csv"))
	require.NoError(t, err)

	_, err = (&Processor{}).Run(context.Background(), opts)
	require.Error(t, err)
	assert.True(t, errors.Is(err, report.ErrOutputExists))

	after, err := os.ReadFile(filepath.Join(opts.OutputDir, "daily-usage-stats.csv"))
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestStatsSessionOutputConflictLeavesNoDayFile(t *testing.T) {
	opts := options(t, processors.FormatCSV)
	sessionPath := filepath.Join(opts.OutputDir, "session-stats.csv")
	require.NoError(t, os.WriteFile(sessionPath, []byte("kept\n"), 0o644))

	_, err := (&Processor{}).Run(context.Background(), opts)
	require.Error(t, err)
	assert.True(t, errors.Is(err, report.ErrOutputExists))
	assert.NoFileExists(t, filepath.Join(opts.OutputDir, "daily-usage-stats.csv"))
	assert.Equal(t, "kept\n", string(mustRead(t, sessionPath)))

	require.NoError(t, os.Remove(sessionPath))
	_, err = (&Processor{}).Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Len(t, readRows(t, filepath.Join(opts.OutputDir, "daily-usage-stats.csv")), 2)
}

func mustRead(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}

func TestStatsMissingInputCreatesNothing(t *testing.T) {
	opts := options(t, processors.FormatCSV)
	opts.Input = "../testdata/missing.log"

	_, err := (&Processor{}).Run(context.Background(), opts)
	require.Error(t, err)

	entries, err := os.ReadDir(opts.OutputDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStatsWithoutSessions(t *testing.T) {
	r, err := deployment.Builtin()
	require.NoError(t, err)
	bm, err := r.Get("britishmuseum")
	require.NoError(t, err)

	opts := options(t, processors.FormatCSV)
	opts.Deployment = bm

	result, err := (&Processor{}).Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(opts.OutputDir, "daily-usage-stats.csv")}, result.OutputPaths)
	assert.NoFileExists(t, filepath.Join(opts.OutputDir, "session-stats.csv"))

	// none of the CMNH event types exist in this deployment
	assert.Empty(t, readRows(t, result.OutputPaths[0]))
	assert.Contains(t, result.Message, "Unsupported events: 8")
}

func TestRegistered(t *testing.T) {
	_, err := processors.Lookup("stats")
	assert.NoError(t, err)
}
