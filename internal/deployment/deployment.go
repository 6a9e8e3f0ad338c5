// Package deployment loads the per-installation tables that drive the
// statistics engine: event types, transition effects, report layout and the
// fixed time zone the kiosk logs in.
//
// Deployments are plain YAML documents. Two ship with the binary (see the
// builtin directory); more can be loaded from a directory at runtime.
package deployment

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pearcec/kioskstats/internal/catalog"
	"github.com/pearcec/kioskstats/internal/event"
)

// Effect is what an event does to the activity-mode state.
type Effect string

const (
	EffectOpen  Effect = "open"
	EffectClose Effect = "close"
	EffectCount Effect = "count"
)

// ColumnKind selects what a day-record column reports.
type ColumnKind string

const (
	ColumnDurationTotal ColumnKind = "duration_total"
	ColumnDuration      ColumnKind = "duration"
	ColumnPeriods       ColumnKind = "periods"
	ColumnCounter       ColumnKind = "counter"
	ColumnTally         ColumnKind = "tally"
)

// Transition is the table entry for one event type. Mode is the catalog
// mode of the event type; Target is the mode its effect opens or closes and
// defaults to Mode.
type Transition struct {
	Name        string     `yaml:"name"`
	Mode        event.Mode `yaml:"mode"`
	Params      []string   `yaml:"params,omitempty"`
	Effect      Effect     `yaml:"effect"`
	Target      event.Mode `yaml:"target,omitempty"`
	AttributeTo event.Mode `yaml:"attribute_to,omitempty"`
	Then        event.Mode `yaml:"then,omitempty"`
	Tally       string     `yaml:"tally,omitempty"`
}

// TargetMode returns the mode opened or closed by the transition.
func (t Transition) TargetMode() event.Mode {
	if t.Target != "" {
		return t.Target
	}
	return t.Mode
}

// Column is one entry of the day-record layout. A tally column expands to
// one report column per configured tally key.
type Column struct {
	Kind  ColumnKind `yaml:"kind"`
	Mode  event.Mode `yaml:"mode,omitempty"`
	Event string     `yaml:"event,omitempty"`
	Tally string     `yaml:"tally,omitempty"`
	Name  string     `yaml:"name,omitempty"`
}

// Counter names a per-event-type counter column.
type Counter struct {
	Event string `yaml:"event"`
	Name  string `yaml:"name"`
}

// Tally is a parameter-keyed count. Keys are always reported, zero or not.
type Tally struct {
	Name         string            `yaml:"name"`
	ColumnPrefix string            `yaml:"column_prefix,omitempty"`
	Keys         []string          `yaml:"keys"`
	Labels       map[string]string `yaml:"labels,omitempty"`
}

// ColumnName returns the report column for a tally key.
func (t Tally) ColumnName(key string) string {
	if label, ok := t.Labels[key]; ok {
		return t.ColumnPrefix + label
	}
	return t.ColumnPrefix + key
}

// Session configures per-session statistics.
type Session struct {
	Enabled  bool       `yaml:"enabled"`
	Mode     event.Mode `yaml:"mode,omitempty"`
	Counters []Counter  `yaml:"counters,omitempty"`
}

// Stringifier selects how an event's parameter is rendered in event logs.
type Stringifier struct {
	Kind  string `yaml:"kind"`
	Name  string `yaml:"name,omitempty"`
	Value string `yaml:"value,omitempty"`
}

// Channel configures one time-series output file for the channels processor.
type Channel struct {
	Event     string  `yaml:"event"`
	Channel   string  `yaml:"channel,omitempty"`
	Parameter string  `yaml:"parameter,omitempty"`
	Value     float64 `yaml:"value,omitempty"`
}

// Deployment is one kiosk installation.
type Deployment struct {
	Name        string       `yaml:"name"`
	Description string       `yaml:"description,omitempty"`
	TimeZone    string       `yaml:"time_zone"`
	Modes       []event.Mode `yaml:"modes"`
	Session     Session      `yaml:"session"`
	Stringifier Stringifier  `yaml:"stringifier"`
	Events      []Transition `yaml:"events"`
	DayColumns  []Column     `yaml:"day_columns"`
	Tallies     []Tally      `yaml:"tallies,omitempty"`
	Channels    []Channel    `yaml:"channels,omitempty"`

	location    *time.Location
	catalog     *catalog.Catalog
	transitions map[string]Transition
	tallies     map[string]Tally
	source      []byte
}

// Location returns the fixed time zone used for day boundaries and formatting.
func (d *Deployment) Location() *time.Location { return d.location }

// Catalog returns the event-type catalog built from the event table.
func (d *Deployment) Catalog() *catalog.Catalog { return d.catalog }

// Transition returns the table entry for an event type.
func (d *Deployment) Transition(eventType string) (Transition, bool) {
	t, ok := d.transitions[eventType]
	return t, ok
}

// LookupTally returns the named tally.
func (d *Deployment) LookupTally(name string) (Tally, bool) {
	t, ok := d.tallies[name]
	return t, ok
}

// HasMode reports whether m is one of the deployment's modes. UNKNOWN always is.
func (d *Deployment) HasMode(m event.Mode) bool {
	if m == event.ModeUnknown {
		return true
	}
	for _, declared := range d.Modes {
		if declared == m {
			return true
		}
	}
	return false
}

// Source returns the YAML the deployment was parsed from.
func (d *Deployment) Source() []byte { return d.source }

// Parse decodes and validates a deployment document. Unknown keys are errors.
func Parse(data []byte) (*Deployment, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var d Deployment
	if err := dec.Decode(&d); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty deployment document")
		}
		return nil, fmt.Errorf("failed to parse deployment: %w", err)
	}
	if err := d.build(); err != nil {
		if d.Name != "" {
			return nil, fmt.Errorf("deployment %q: %w", d.Name, err)
		}
		return nil, err
	}
	d.source = append([]byte(nil), data...)
	return &d, nil
}

// LoadFile parses a deployment from a YAML file.
func LoadFile(path string) (*Deployment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read deployment file: %w", err)
	}
	d, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}

func (d *Deployment) build() error {
	if d.Name == "" {
		return fmt.Errorf("name is required")
	}

	loc, err := ParseTimeZone(d.TimeZone)
	if err != nil {
		return err
	}
	d.location = loc

	if len(d.Modes) == 0 {
		return fmt.Errorf("at least one mode is required")
	}
	seenModes := make(map[event.Mode]bool)
	for _, m := range d.Modes {
		if m == "" {
			return fmt.Errorf("empty mode name")
		}
		if seenModes[m] {
			return fmt.Errorf("duplicate mode %s", m)
		}
		seenModes[m] = true
	}

	d.tallies = make(map[string]Tally, len(d.Tallies))
	for _, t := range d.Tallies {
		if t.Name == "" {
			return fmt.Errorf("tally without a name")
		}
		if _, dup := d.tallies[t.Name]; dup {
			return fmt.Errorf("duplicate tally %q", t.Name)
		}
		if len(t.Keys) == 0 {
			return fmt.Errorf("tally %q has no keys", t.Name)
		}
		d.tallies[t.Name] = t
	}

	d.catalog = catalog.New()
	d.transitions = make(map[string]Transition, len(d.Events))
	for _, t := range d.Events {
		if err := d.checkTransition(t); err != nil {
			return err
		}
		d.transitions[t.Name] = t
		d.catalog.Register(t.Name, t.Mode, t.Params...)
	}

	if d.Session.Enabled {
		if d.Session.Mode == "" || !d.HasMode(d.Session.Mode) {
			return fmt.Errorf("session mode %q is not a declared mode", d.Session.Mode)
		}
		for _, c := range d.Session.Counters {
			if err := d.checkCounter(c.Event, c.Name); err != nil {
				return fmt.Errorf("session counter: %w", err)
			}
		}
	}

	for i, c := range d.DayColumns {
		if err := d.checkColumn(c); err != nil {
			return fmt.Errorf("day column %d: %w", i+1, err)
		}
	}

	switch d.Stringifier.Kind {
	case "", "first_parameter":
	case "named_parameter":
		if d.Stringifier.Name == "" {
			return fmt.Errorf("named_parameter stringifier needs a name")
		}
	case "constant":
	default:
		return fmt.Errorf("unknown stringifier kind %q", d.Stringifier.Kind)
	}

	channels := make(map[string]bool, len(d.Channels))
	for _, ch := range d.Channels {
		if _, err := d.catalog.Lookup(ch.Event); err != nil {
			return fmt.Errorf("channel: %w", err)
		}
		if channels[ch.Event] {
			return fmt.Errorf("duplicate channel for event type %q", ch.Event)
		}
		channels[ch.Event] = true
	}
	return nil
}

func (d *Deployment) checkTransition(t Transition) error {
	if t.Name == "" {
		return fmt.Errorf("event without a name")
	}
	if _, dup := d.transitions[t.Name]; dup {
		return fmt.Errorf("duplicate event %q", t.Name)
	}
	if t.Mode == "" || !d.HasMode(t.Mode) {
		return fmt.Errorf("event %q: mode %q is not a declared mode", t.Name, t.Mode)
	}
	switch t.Effect {
	case EffectOpen, EffectClose, EffectCount:
	default:
		return fmt.Errorf("event %q: unknown effect %q", t.Name, t.Effect)
	}
	if t.Target != "" && !d.HasMode(t.Target) {
		return fmt.Errorf("event %q: target %q is not a declared mode", t.Name, t.Target)
	}
	if t.Target != "" && t.Effect == EffectCount {
		return fmt.Errorf("event %q: count events have no target", t.Name)
	}
	if t.AttributeTo != "" && !d.HasMode(t.AttributeTo) {
		return fmt.Errorf("event %q: attribute_to %q is not a declared mode", t.Name, t.AttributeTo)
	}
	if t.Then != "" {
		if t.Effect != EffectClose {
			return fmt.Errorf("event %q: then is only valid on close", t.Name)
		}
		if !d.HasMode(t.Then) {
			return fmt.Errorf("event %q: then %q is not a declared mode", t.Name, t.Then)
		}
	}
	if t.Tally != "" {
		if _, ok := d.tallies[t.Tally]; !ok {
			return fmt.Errorf("event %q: unknown tally %q", t.Name, t.Tally)
		}
		if len(t.Params) == 0 {
			return fmt.Errorf("event %q: tally needs a parameter", t.Name)
		}
		if t.Effect == EffectClose {
			return fmt.Errorf("event %q: close events cannot tally", t.Name)
		}
	}
	return nil
}

func (d *Deployment) checkCounter(eventType, name string) error {
	if _, err := d.catalog.Lookup(eventType); err != nil {
		return err
	}
	if name == "" {
		return fmt.Errorf("counter for %q needs a column name", eventType)
	}
	return nil
}

func (d *Deployment) checkColumn(c Column) error {
	switch c.Kind {
	case ColumnDurationTotal:
	case ColumnDuration, ColumnPeriods:
		if c.Mode == "" || !d.HasMode(c.Mode) {
			return fmt.Errorf("mode %q is not a declared mode", c.Mode)
		}
	case ColumnCounter:
		if _, err := d.catalog.Lookup(c.Event); err != nil {
			return err
		}
	case ColumnTally:
		if _, ok := d.tallies[c.Tally]; !ok {
			return fmt.Errorf("unknown tally %q", c.Tally)
		}
	default:
		return fmt.Errorf("unknown column kind %q", c.Kind)
	}
	return nil
}

// ColumnName returns the report column name for a non-tally column.
func (c Column) ColumnName() string {
	if c.Name != "" {
		return c.Name
	}
	switch c.Kind {
	case ColumnDurationTotal:
		return "duration_total_millis"
	case ColumnDuration:
		return "duration_" + c.Mode.Label() + "_millis"
	case ColumnPeriods:
		return "num_" + c.Mode.Label() + "_periods"
	case ColumnCounter:
		return c.Event
	}
	return ""
}

var gmtOffset = regexp.MustCompile(`^(?:GMT|UTC)([+-])(\d{1,2})(?::?(\d{2}))?$`)

// ParseTimeZone accepts fixed offsets such as "GMT-5" or "UTC+05:30", and
// IANA zone names.
func ParseTimeZone(name string) (*time.Location, error) {
	switch name {
	case "":
		return nil, fmt.Errorf("time_zone is required")
	case "GMT", "UTC":
		return time.FixedZone(name, 0), nil
	}

	if m := gmtOffset.FindStringSubmatch(name); m != nil {
		hours, _ := strconv.Atoi(m[2])
		minutes := 0
		if m[3] != "" {
			minutes, _ = strconv.Atoi(m[3])
		}
		if hours > 14 || minutes > 59 {
			return nil, fmt.Errorf("time zone offset out of range: %s", name)
		}
		offset := hours*3600 + minutes*60
		if m[1] == "-" {
			offset = -offset
		}
		return time.FixedZone(name, offset), nil
	}

	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid time zone %q: %w", name, err)
	}
	return loc, nil
}
