// Package engine turns an ordered stream of kiosk events into per-day and
// per-session usage records.
//
// Events must arrive in non-decreasing time order. The aggregator does not
// check this; the line reader drops out-of-order events before they get here.
package engine

import (
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pearcec/kioskstats/internal/deployment"
	"github.com/pearcec/kioskstats/internal/event"
	"github.com/pearcec/kioskstats/internal/report"
)

// Unsupported describes an event whose type the deployment does not know.
type Unsupported struct {
	Type    string
	RawLine string
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithUnsupportedHandler receives every dropped unsupported event.
func WithUnsupportedHandler(fn func(Unsupported)) Option {
	return func(a *Aggregator) { a.onUnsupported = fn }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(a *Aggregator) { a.log = l }
}

// WithRunID sets the run identifier reported in the summary.
func WithRunID(id string) Option {
	return func(a *Aggregator) { a.runID = id }
}

// Aggregator owns the day and session state of one pass over an event
// stream. It is not safe for concurrent use.
type Aggregator struct {
	dep         *deployment.Deployment
	daySink     report.Sink
	sessionSink report.Sink
	machine     *Machine

	day           *DayAggregate
	session       *SessionAggregate
	sessionsToday int
	prevTime      int64

	counts      map[string]int
	unsupported int
	days        int
	sessions    int
	extra       map[string]map[string]int
	finished    bool

	onUnsupported func(Unsupported)
	log           *zap.Logger
	runID         string
}

// NewAggregator creates an aggregator writing day records to daySink and,
// when dep tracks sessions, session records to sessionSink. sessionSink may
// be nil, in which case sessions are tracked but not written.
func NewAggregator(dep *deployment.Deployment, daySink, sessionSink report.Sink, opts ...Option) *Aggregator {
	a := &Aggregator{
		dep:           dep,
		daySink:       daySink,
		sessionSink:   sessionSink,
		machine:       NewMachine(dep),
		counts:        make(map[string]int),
		extra:         make(map[string]map[string]int),
		onUnsupported: func(Unsupported) {},
		log:           zap.NewNop(),
	}
	for _, name := range dep.Catalog().Names() {
		a.counts[name] = 0
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.runID == "" {
		a.runID = uuid.NewString()
	}
	a.log = a.log.With(zap.String("run_id", a.runID), zap.String("deployment", dep.Name))
	return a
}

// OnEvent processes one event.
func (a *Aggregator) OnEvent(ev event.Event) error {
	return a.OnEventLine(ev, "")
}

// OnEventLine processes one event, keeping its raw line for unsupported-type
// reports.
func (a *Aggregator) OnEventLine(ev event.Event, raw string) error {
	if a.finished {
		return fmt.Errorf("aggregator already finished")
	}
	if !a.dep.Catalog().IsSupported(ev.Type()) {
		a.unsupported++
		a.onUnsupported(Unsupported{Type: ev.Type(), RawLine: raw})
		return nil
	}
	a.counts[ev.Type()]++

	switch {
	case a.day == nil:
		a.startDay(ev)
	case ev.DateMillis() != a.day.Date:
		if err := a.endDay(); err != nil {
			return err
		}
		a.startDay(ev)
	}
	a.day.Latest = ev.TimeMillis()

	tr, err := a.machine.Advance(ev, a.day)
	if err != nil {
		return err
	}

	if a.dep.Session.Enabled {
		mode := a.dep.Session.Mode
		if a.session != nil && tr.Left(mode) {
			if err := a.closeSession(a.prevTime); err != nil {
				return err
			}
		}
		if a.session == nil && tr.Entered(mode) {
			a.sessionsToday++
			a.session = newSessionAggregate(a.dep, a.day.Date, a.sessionsToday, ev.TimeMillis())
		}
		if a.session != nil {
			if _, counted := a.session.Counters[ev.Type()]; counted {
				a.session.Counters[ev.Type()]++
			}
		}
	}

	a.prevTime = ev.TimeMillis()
	return nil
}

// Finish flushes the open session and day. Calling it on an empty stream
// writes nothing. Finish is idempotent.
func (a *Aggregator) Finish() error {
	if a.finished {
		return nil
	}
	a.finished = true
	if a.day == nil {
		return nil
	}
	return a.endDay()
}

func (a *Aggregator) startDay(ev event.Event) {
	a.day = newDayAggregate(a.dep, ev.DateMillis(), ev.TimeMillis())
	a.sessionsToday = 0
}

// endDay closes any open session at the day's last event, writes the day
// record and resets the machine.
func (a *Aggregator) endDay() error {
	if a.session != nil {
		if err := a.closeSession(a.day.Latest); err != nil {
			return err
		}
	}

	a.collectExtraTallies()
	if err := a.daySink.Write(DayRecord(a.dep, a.day)); err != nil {
		return fmt.Errorf("failed to write day record for %s: %w", FormatMillis(a.day.Date, a.dep.Location()), err)
	}
	a.days++
	a.log.Debug("day flushed",
		zap.String("date", FormatMillis(a.day.Date, a.dep.Location())),
		zap.Int64("span_millis", a.day.Span()))

	a.day = nil
	a.machine.Reset()
	return nil
}

func (a *Aggregator) closeSession(end int64) error {
	s := a.session
	a.session = nil
	s.End = end
	a.sessions++
	a.log.Debug("session closed",
		zap.Int("session_number", s.Number),
		zap.Int64("duration_millis", s.Duration()))
	if a.sessionSink == nil {
		return nil
	}
	if err := a.sessionSink.Write(SessionRecord(a.dep, s)); err != nil {
		return fmt.Errorf("failed to write session record: %w", err)
	}
	return nil
}

// collectExtraTallies remembers tally values seen today that are not
// configured keys, so the summary can point them out.
func (a *Aggregator) collectExtraTallies() {
	for _, t := range a.dep.Tallies {
		known := make(map[string]bool, len(t.Keys))
		for _, k := range t.Keys {
			known[k] = true
		}
		for value, n := range a.day.Tallies[t.Name] {
			if known[value] || n == 0 {
				continue
			}
			if a.extra[t.Name] == nil {
				a.extra[t.Name] = make(map[string]int)
			}
			a.extra[t.Name][value] += n
		}
	}
}

// Mode returns the machine's current mode.
func (a *Aggregator) Mode() event.Mode { return a.machine.Mode() }

// currentDay returns the day being accumulated, or nil.
func (a *Aggregator) currentDay() *DayAggregate { return a.day }

// Summary reports run totals. CountsByType has an entry for every
// supported event type.
func (a *Aggregator) Summary() Summary {
	counts := make(map[string]int, len(a.counts))
	for k, v := range a.counts {
		counts[k] = v
	}
	var extra map[string]map[string]int
	if len(a.extra) > 0 {
		extra = make(map[string]map[string]int, len(a.extra))
		for name, values := range a.extra {
			cp := make(map[string]int, len(values))
			for k, v := range values {
				cp[k] = v
			}
			extra[name] = cp
		}
	}
	return Summary{
		RunID:            a.runID,
		Deployment:       a.dep.Name,
		Unsupported:      a.unsupported,
		CountsByType:     counts,
		Days:             a.days,
		Sessions:         a.sessions,
		ExtraTallyValues: extra,
	}
}
