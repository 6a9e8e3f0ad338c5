package engine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pearcec/kioskstats/internal/event"
)

func TestMachineRejectsUnsupportedType(t *testing.T) {
	dep := mustParse(t, exampleDeployment)
	m := NewMachine(dep)
	day := newDayAggregate(dep, 0, 0)

	_, err := m.Advance(event.NewWithDate("B-begin", 10, 0, nil), day)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedEventType))
	assert.Equal(t, event.ModeUnknown, m.Mode())
	assert.Equal(t, newDayAggregate(dep, 0, 0), day)
}

func TestMachineTransitions(t *testing.T) {
	dep := mustParse(t, exampleDeployment)
	m := NewMachine(dep)
	day := newDayAggregate(dep, 0, 0)
	x := event.Mode("X")

	tr, err := m.Advance(event.NewWithDate("A-begin", 0, 0, map[string]string{"kind": "b"}), day)
	require.NoError(t, err)
	assert.Equal(t, Transition{From: event.ModeUnknown, To: x}, tr)
	assert.True(t, tr.Entered(x))
	assert.True(t, m.IsOpen(x))

	tr, err = m.Advance(event.NewWithDate("poke", 100, 0, nil), day)
	require.NoError(t, err)
	assert.Equal(t, Transition{From: x, To: x}, tr)
	assert.False(t, tr.Entered(x) || tr.Left(x))

	tr, err = m.Advance(event.NewWithDate("A-end", 250, 0, nil), day)
	require.NoError(t, err)
	assert.True(t, tr.Left(x))
	assert.Equal(t, event.ModeIdle, m.Mode())
	assert.False(t, m.IsOpen(x))

	tr, err = m.Advance(event.NewWithDate("A-begin", 400, 0, map[string]string{"kind": "b"}), day)
	require.NoError(t, err)
	assert.True(t, tr.Entered(x))

	assert.Equal(t, int64(250), day.Durations[x])
	assert.Equal(t, int64(150), day.Durations[event.ModeIdle])
	assert.Equal(t, 2, day.Periods[x])
	assert.Equal(t, 2, day.Tallies["kinds"]["b"])
	assert.Equal(t, 1, day.Counters["poke"])
	assert.Equal(t, 1, day.Counters["A-end"])
}

func TestMachineOpenClosesOtherPeriods(t *testing.T) {
	dep := mustParse(t, exampleDeployment)
	m := NewMachine(dep)
	day := newDayAggregate(dep, 0, 0)
	x := event.Mode("X")

	_, err := m.Advance(event.NewWithDate("A-begin", 0, 0, nil), day)
	require.NoError(t, err)
	_, err = m.Advance(event.NewWithDate("reset", 1000, 0, nil), day)
	require.NoError(t, err)

	assert.False(t, m.IsOpen(x))
	assert.True(t, m.IsOpen(event.ModeIdle))
	assert.Equal(t, event.ModeIdle, m.Mode())
	assert.Equal(t, int64(1000), day.Durations[event.ModeUnknown])
	assert.Equal(t, int64(0), day.Durations[x])
	assert.Empty(t, day.Tallies["kinds"][""], "events without the tally parameter are not tallied")
}

func TestMachineReset(t *testing.T) {
	dep := mustParse(t, exampleDeployment)
	m := NewMachine(dep)
	day := newDayAggregate(dep, 0, 0)

	_, err := m.Advance(event.NewWithDate("A-begin", 0, 0, nil), day)
	require.NoError(t, err)
	m.Reset()
	assert.Equal(t, event.ModeUnknown, m.Mode())
	assert.False(t, m.IsOpen(event.Mode("X")))

	fresh := newDayAggregate(dep, 86400000, 90000000)
	_, err = m.Advance(event.NewWithDate("poke", 90000000, 86400000, nil), fresh)
	require.NoError(t, err)
	assert.Equal(t, int64(0), fresh.TotalDuration(), "first event after a reset has no elapsed time")
}
