package eventlog

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/pearcec/kioskstats/cmd/kioskstats/processors"
	"github.com/pearcec/kioskstats/cmd/kioskstats/processors/stats"
	"github.com/pearcec/kioskstats/internal/deployment"
	"github.com/pearcec/kioskstats/internal/parser"
)

const accessLog = "../testdata/cmnh-access.log"

func options(t *testing.T) processors.RunOptions {
	t.Helper()
	r, err := deployment.Builtin()
	require.NoError(t, err)
	dep, err := r.Get("cmnh")
	require.NoError(t, err)
	return processors.RunOptions{
		Input:       accessLog,
		OutputDir:   t.TempDir(),
		Deployment:  dep,
		InputFormat: parser.FormatApache,
		Format:      processors.FormatCSV,
		Logger:      zap.NewNop(),
	}
}

func TestEventLog(t *testing.T) {
	opts := options(t)
	core, logs := observer.New(zapcore.WarnLevel)
	opts.Logger = zap.New(core)

	result, err := (&Processor{}).Run(context.Background(), opts)
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(opts.OutputDir, FileName)}, result.OutputPaths)

	data, err := os.ReadFile(result.OutputPaths[0])
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")

	require.Len(t, lines, 8)
	assert.Equal(t, "date,time,type,param", lines[0])
	assert.Equal(t, "1331701200000,1331737200000,init-start,", lines[1])
	assert.Equal(t, "1331701200000,1331737320000,nav-theme-change,theme2", lines[4])
	assert.Equal(t, "1331787600000,1331820030000,nav-tap,", lines[7])
	assert.NotContains(t, string(data), "mystery-event")

	assert.Contains(t, result.Message, "Unsupported events: 1")
	assert.Contains(t, result.Message, "Found [1] events for type [nav-theme-change]")
	assert.Equal(t, 1, result.Metadata["unsupported"])

	warned := logs.FilterMessage("unsupported event type").All()
	require.Len(t, warned, 1)
	fields := warned[0].ContextMap()
	assert.Equal(t, "mystery-event", fields["type"])
	assert.Contains(t, fields["line"], "type=mystery-event")
}

// An extracted event log fed back through the csv input format must give
// the same statistics as the access log it came from.
func TestEventLogRoundTrip(t *testing.T) {
	extract := options(t)
	result, err := (&Processor{}).Run(context.Background(), extract)
	require.NoError(t, err)

	fromApache := options(t)
	_, err = (&stats.Processor{}).Run(context.Background(), fromApache)
	require.NoError(t, err)

	fromCSV := options(t)
	fromCSV.Input = result.OutputPaths[0]
	fromCSV.InputFormat = parser.FormatCSV
	_, err = (&stats.Processor{}).Run(context.Background(), fromCSV)
	require.NoError(t, err)

	for _, name := range []string{stats.DayStatsBase + ".csv", stats.SessionStatsBase + ".csv"} {
		want, err := os.ReadFile(filepath.Join(fromApache.OutputDir, name))
		require.NoError(t, err)
		got, err := os.ReadFile(filepath.Join(fromCSV.OutputDir, name))
		require.NoError(t, err)
		assert.Equal(t, string(want), string(got), name)
	}
}

func TestEventLogRefusesToOverwrite(t *testing.T) {
	opts := options(t)
	require.NoError(t, os.WriteFile(filepath.Join(opts.OutputDir, FileName), []byte("keep"), 0o644))

	_, err := (&Processor{}).Run(context.Background(), opts)
	require.Error(t, err)

	data, err := os.ReadFile(filepath.Join(opts.OutputDir, FileName))
	require.NoError(t, err)
	assert.Equal(t, "keep", string(data))
}
