package engine

import (
	"errors"
	"fmt"

	"github.com/pearcec/kioskstats/internal/deployment"
	"github.com/pearcec/kioskstats/internal/event"
)

// ErrUnsupportedEventType is returned by Machine.Advance for event types the
// deployment does not know.
var ErrUnsupportedEventType = errors.New("unsupported event type")

// Transition reports the current mode before and after an event.
type Transition struct {
	From event.Mode
	To   event.Mode
}

// Entered reports whether the event moved the machine into m.
func (t Transition) Entered(m event.Mode) bool { return t.From != m && t.To == m }

// Left reports whether the event moved the machine out of m.
func (t Transition) Left(m event.Mode) bool { return t.From == m && t.To != m }

// Machine tracks the current activity mode and attributes the time between
// consecutive events. It writes into the DayAggregate it is given but owns
// no aggregate itself.
type Machine struct {
	dep      *deployment.Deployment
	current  event.Mode
	open     map[event.Mode]int64
	lastSeen int64
	seen     bool
}

// NewMachine returns a machine in UNKNOWN mode with no open periods.
func NewMachine(dep *deployment.Deployment) *Machine {
	m := &Machine{dep: dep}
	m.Reset()
	return m
}

// Mode returns the current mode.
func (m *Machine) Mode() event.Mode { return m.current }

// IsOpen reports whether a period of mode is open.
func (m *Machine) IsOpen(mode event.Mode) bool {
	_, ok := m.open[mode]
	return ok
}

// Reset returns the machine to UNKNOWN with no open periods and no previous
// event, as at the start of a day.
func (m *Machine) Reset() {
	m.current = event.ModeUnknown
	m.open = make(map[event.Mode]int64)
	m.lastSeen = 0
	m.seen = false
}

// Advance applies ev. The elapsed time since the previous event is
// attributed to exactly one mode before the event's own effect runs.
func (m *Machine) Advance(ev event.Event, day *DayAggregate) (Transition, error) {
	tr, ok := m.dep.Transition(ev.Type())
	if !ok {
		return Transition{}, fmt.Errorf("%w: %q", ErrUnsupportedEventType, ev.Type())
	}

	var elapsed int64
	if m.seen {
		elapsed = ev.TimeMillis() - m.lastSeen
	}

	attributeTo := tr.AttributeTo
	if attributeTo == "" {
		attributeTo = m.current
	}
	day.Durations[attributeTo] += elapsed

	from := m.current
	target := tr.TargetMode()

	switch tr.Effect {
	case deployment.EffectOpen:
		if _, already := m.open[target]; !already {
			day.Periods[target]++
			m.tally(tr, ev, day)
		}
		for mode := range m.open {
			if mode != target {
				delete(m.open, mode)
			}
		}
		if _, already := m.open[target]; !already {
			m.open[target] = ev.TimeMillis()
		}
		m.current = target
	case deployment.EffectClose:
		delete(m.open, target)
		if tr.Then != "" {
			m.current = tr.Then
		}
	case deployment.EffectCount:
		m.tally(tr, ev, day)
	}

	day.Counters[ev.Type()]++

	m.lastSeen = ev.TimeMillis()
	m.seen = true
	return Transition{From: from, To: m.current}, nil
}

func (m *Machine) tally(tr deployment.Transition, ev event.Event, day *DayAggregate) {
	if tr.Tally == "" || len(tr.Params) == 0 {
		return
	}
	value, ok := ev.Param(tr.Params[0])
	if !ok {
		return
	}
	t := day.Tallies[tr.Tally]
	if t == nil {
		t = make(map[string]int)
		day.Tallies[tr.Tally] = t
	}
	t[value]++
}
