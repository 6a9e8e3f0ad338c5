// Package catalog maps event-type names to their activity mode and
// parameter names.
//
// A Catalog is populated once while a deployment is loaded and only read
// afterwards, so concurrent lookups need no locking. Register must not be
// called once the catalog is in use.
package catalog

import (
	"errors"
	"fmt"
	"sort"

	"github.com/pearcec/kioskstats/internal/event"
)

// ErrUnknownEventType is returned by Lookup for names that were never registered.
var ErrUnknownEventType = errors.New("unknown event type")

// Descriptor describes one supported event type.
type Descriptor struct {
	Name       string
	Mode       event.Mode
	Parameters []string
}

// ParameterName returns the single parameter carried by the event type, or
// "" when it has none.
func (d Descriptor) ParameterName() string {
	if len(d.Parameters) == 0 {
		return ""
	}
	return d.Parameters[0]
}

// Catalog is the registry of supported event types for one deployment.
type Catalog struct {
	types map[string]Descriptor
}

// New creates an empty catalog.
func New() *Catalog {
	return &Catalog{types: make(map[string]Descriptor)}
}

// Register adds an event type. Registering an existing name overwrites it.
func (c *Catalog) Register(name string, mode event.Mode, params ...string) {
	c.types[name] = Descriptor{
		Name:       name,
		Mode:       mode,
		Parameters: append([]string(nil), params...),
	}
}

// Resolve returns the descriptor for name.
func (c *Catalog) Resolve(name string) (Descriptor, bool) {
	d, ok := c.types[name]
	if !ok {
		return Descriptor{}, false
	}
	d.Parameters = append([]string(nil), d.Parameters...)
	return d, true
}

// Lookup is Resolve with an error for callers that propagate failures.
func (c *Catalog) Lookup(name string) (Descriptor, error) {
	d, ok := c.Resolve(name)
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %q", ErrUnknownEventType, name)
	}
	return d, nil
}

// IsSupported reports whether name is registered.
func (c *Catalog) IsSupported(name string) bool {
	_, ok := c.types[name]
	return ok
}

// ParametersOf returns the ordered parameter names of an event type. Unknown
// types yield an empty list.
func (c *Catalog) ParametersOf(name string) []string {
	d, ok := c.types[name]
	if !ok {
		return []string{}
	}
	return append([]string{}, d.Parameters...)
}

// Names returns all registered event types, sorted.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.types))
	for name := range c.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered event types.
func (c *Catalog) Len() int {
	return len(c.types)
}
