package report

import (
	"github.com/pearcec/kioskstats/internal/catalog"
	"github.com/pearcec/kioskstats/internal/event"
)

// Stringifier renders an event's parameter into a single output field.
type Stringifier interface {
	Stringify(ev event.Event) string
}

// FirstParameter renders the value of the event type's single catalog
// parameter, or "" for parameterless types.
type FirstParameter struct {
	Catalog *catalog.Catalog
}

func (s FirstParameter) Stringify(ev event.Event) string {
	params := s.Catalog.ParametersOf(ev.Type())
	if len(params) == 0 {
		return ""
	}
	v, _ := ev.Param(params[0])
	return v
}

// NamedParameter renders one named parameter regardless of the catalog.
type NamedParameter struct {
	Name string
}

func (s NamedParameter) Stringify(ev event.Event) string {
	v, _ := ev.Param(s.Name)
	return v
}

// ConstantValue ignores the event and renders a fixed value.
type ConstantValue struct {
	Value string
}

func (s ConstantValue) Stringify(event.Event) string {
	return s.Value
}
