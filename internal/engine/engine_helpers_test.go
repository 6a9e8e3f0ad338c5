package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pearcec/kioskstats/internal/deployment"
	"github.com/pearcec/kioskstats/internal/event"
	"github.com/pearcec/kioskstats/internal/report"
)

// exampleDeployment has a single A-begin/A-end pair mapping to mode X.
const exampleDeployment = `
name: example
time_zone: UTC
modes: [X, IDLE]
session:
  enabled: true
  mode: X
  counters:
    - {event: poke, name: num_pokes}
events:
  - {name: A-begin, mode: X, effect: open, params: [kind], tally: kinds}
  - {name: A-end, mode: X, effect: close, then: IDLE}
  - {name: poke, mode: X, effect: count}
  - {name: reset, mode: X, effect: open, target: IDLE, attribute_to: UNKNOWN}
day_columns:
  - {kind: duration_total}
  - {kind: duration, mode: X}
  - {kind: duration, mode: IDLE}
  - {kind: duration, mode: UNKNOWN}
  - {kind: periods, mode: X}
  - {kind: counter, event: poke}
  - {kind: tally, tally: kinds}
tallies:
  - {name: kinds, column_prefix: kind_, keys: [a, b]}
`

func mustParse(t *testing.T, doc string) *deployment.Deployment {
	t.Helper()
	d, err := deployment.Parse([]byte(doc))
	require.NoError(t, err)
	return d
}

func builtin(t *testing.T, name string) *deployment.Deployment {
	t.Helper()
	r, err := deployment.Builtin()
	require.NoError(t, err)
	d, err := r.Get(name)
	require.NoError(t, err)
	return d
}

type memorySink struct {
	cols    []report.Column
	records []report.Record
	err     error
}

func (m *memorySink) Write(rec report.Record) error {
	if m.err != nil {
		return m.err
	}
	m.records = append(m.records, rec)
	return nil
}

func (m *memorySink) Close() error { return nil }

// value returns the named column of record i.
func (m *memorySink) value(t *testing.T, i int, column string) any {
	t.Helper()
	require.Less(t, i, len(m.records), "record %d not written", i)
	for j, c := range m.cols {
		if c.Name == column {
			return m.records[i][j]
		}
	}
	t.Fatalf("no column %q", column)
	return nil
}

type harness struct {
	dep      *deployment.Deployment
	days     *memorySink
	sessions *memorySink
	agg      *Aggregator
	unsup    []Unsupported
}

func newHarness(t *testing.T, dep *deployment.Deployment) *harness {
	t.Helper()
	h := &harness{
		dep:      dep,
		days:     &memorySink{cols: DayColumns(dep)},
		sessions: &memorySink{cols: SessionColumns(dep)},
	}
	h.agg = NewAggregator(dep, h.days, h.sessions,
		WithRunID("test-run"),
		WithUnsupportedHandler(func(u Unsupported) { h.unsup = append(h.unsup, u) }))
	return h
}

func (h *harness) feed(t *testing.T, typ string, ms int64, params ...string) {
	t.Helper()
	p := make(map[string]string)
	for i := 0; i+1 < len(params); i += 2 {
		p[params[i]] = params[i+1]
	}
	require.NoError(t, h.agg.OnEvent(event.New(typ, ms, p, h.dep.Location())))
}

func at(loc *time.Location, day, hour, min, sec int) int64 {
	return time.Date(2012, time.March, day, hour, min, sec, 0, loc).UnixMilli()
}
