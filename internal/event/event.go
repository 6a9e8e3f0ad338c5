// Package event defines the timestamped kiosk usage events consumed by the
// statistics engine, and the activity modes a kiosk can be in.
package event

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Mode is the coarse-grained activity state a kiosk is inferred to be in.
// The set of modes is fixed per deployment; Unknown is always present.
type Mode string

const (
	ModeInit    Mode = "INIT"
	ModeActive  Mode = "ACTIVE"
	ModeIdle    Mode = "IDLE"
	ModeError   Mode = "ERROR"
	ModeUnknown Mode = "UNKNOWN"
)

// Label returns the lower-case form used in report column names.
func (m Mode) Label() string {
	if m == ModeUnknown {
		return "other"
	}
	return strings.ToLower(string(m))
}

// Event is a single typed usage event. Events are immutable once built;
// ordering and equality are defined by (TimeMillis, Type).
type Event struct {
	typ        string
	timeMillis int64
	dateMillis int64
	params     map[string]string
}

// New builds an event whose calendar date is derived from timeMillis in loc.
func New(typ string, timeMillis int64, params map[string]string, loc *time.Location) Event {
	return NewWithDate(typ, timeMillis, StartOfDay(timeMillis, loc), params)
}

// NewWithDate builds an event with an explicit start-of-day timestamp, as
// found in pre-extracted CSV event logs.
func NewWithDate(typ string, timeMillis, dateMillis int64, params map[string]string) Event {
	cp := make(map[string]string, len(params))
	for k, v := range params {
		cp[k] = v
	}
	return Event{typ: typ, timeMillis: timeMillis, dateMillis: dateMillis, params: cp}
}

func (e Event) Type() string      { return e.typ }
func (e Event) TimeMillis() int64 { return e.timeMillis }
func (e Event) DateMillis() int64 { return e.dateMillis }

// Param returns the value of the named parameter, if present.
func (e Event) Param(name string) (string, bool) {
	v, ok := e.params[name]
	return v, ok
}

// Params returns a copy of the event parameters.
func (e Event) Params() map[string]string {
	cp := make(map[string]string, len(e.params))
	for k, v := range e.params {
		cp[k] = v
	}
	return cp
}

// Compare orders events by time, then by type. It assumes no two events of
// the same type share a timestamp.
func (e Event) Compare(o Event) int {
	switch {
	case e.timeMillis < o.timeMillis:
		return -1
	case e.timeMillis > o.timeMillis:
		return 1
	}
	return strings.Compare(e.typ, o.typ)
}

// Equal reports whether two events have the same time and type.
func (e Event) Equal(o Event) bool {
	return e.Compare(o) == 0
}

func (e Event) String() string {
	keys := make([]string, 0, len(e.params))
	for k := range e.params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+e.params[k])
	}
	return fmt.Sprintf("Event{type=%q, time=%d, params={%s}}", e.typ, e.timeMillis, strings.Join(pairs, ", "))
}

// StartOfDay truncates ms to midnight of its calendar day in loc.
func StartOfDay(ms int64, loc *time.Location) int64 {
	t := time.UnixMilli(ms).In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc).UnixMilli()
}
