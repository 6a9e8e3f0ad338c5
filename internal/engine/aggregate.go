package engine

import (
	"github.com/pearcec/kioskstats/internal/deployment"
	"github.com/pearcec/kioskstats/internal/event"
)

// DayAggregate accumulates one calendar day. Every mode, event type and
// configured tally key is present from creation, so zero values are
// reported rather than omitted.
type DayAggregate struct {
	Date     int64
	Earliest int64
	Latest   int64

	Durations map[event.Mode]int64
	Periods   map[event.Mode]int
	Counters  map[string]int
	Tallies   map[string]map[string]int
}

func newDayAggregate(dep *deployment.Deployment, date, first int64) *DayAggregate {
	d := &DayAggregate{
		Date:      date,
		Earliest:  first,
		Latest:    first,
		Durations: map[event.Mode]int64{event.ModeUnknown: 0},
		Periods:   map[event.Mode]int{event.ModeUnknown: 0},
		Counters:  make(map[string]int),
		Tallies:   make(map[string]map[string]int, len(dep.Tallies)),
	}
	for _, m := range dep.Modes {
		d.Durations[m] = 0
		d.Periods[m] = 0
	}
	for _, name := range dep.Catalog().Names() {
		d.Counters[name] = 0
	}
	for _, t := range dep.Tallies {
		keys := make(map[string]int, len(t.Keys))
		for _, k := range t.Keys {
			keys[k] = 0
		}
		d.Tallies[t.Name] = keys
	}
	return d
}

// Span is the time between the first and last event of the day.
func (d *DayAggregate) Span() int64 {
	return d.Latest - d.Earliest
}

// TotalDuration is the sum of all per-mode durations. It always equals Span.
func (d *DayAggregate) TotalDuration() int64 {
	var total int64
	for _, v := range d.Durations {
		total += v
	}
	return total
}

// SessionAggregate accumulates one contiguous period in the session mode.
type SessionAggregate struct {
	Date     int64
	Number   int
	Start    int64
	End      int64
	Counters map[string]int
}

func newSessionAggregate(dep *deployment.Deployment, date int64, number int, start int64) *SessionAggregate {
	s := &SessionAggregate{
		Date:     date,
		Number:   number,
		Start:    start,
		End:      start,
		Counters: make(map[string]int, len(dep.Session.Counters)),
	}
	for _, c := range dep.Session.Counters {
		s.Counters[c.Event] = 0
	}
	return s
}

// Duration is End minus Start.
func (s *SessionAggregate) Duration() int64 {
	return s.End - s.Start
}
