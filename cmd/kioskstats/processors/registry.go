package processors

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
)

// ErrUnknownProcessor is returned by Lookup for names nothing registered.
var ErrUnknownProcessor = errors.New("unknown processor")

// Processor names become root subcommands and schedule entries, so they
// must be plain command words that leave the built-in commands alone.
var (
	processorName = regexp.MustCompile(`^[a-z][a-z0-9-]*$`)
	reservedNames = map[string]bool{
		"completion":  true,
		"deployments": true,
		"help":        true,
		"schedule":    true,
		"version":     true,
	}
)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Processor)
)

// Register makes p available by name. It fails for names that are not
// command words, that shadow a built-in command, or that are taken.
func Register(p Processor) error {
	name := p.Name()
	if !processorName.MatchString(name) {
		return fmt.Errorf("invalid processor name %q", name)
	}
	if reservedNames[name] {
		return fmt.Errorf("processor name %q is reserved for a built-in command", name)
	}

	registryMu.Lock()
	defer registryMu.Unlock()
	if _, taken := registry[name]; taken {
		return fmt.Errorf("processor %q registered twice", name)
	}
	registry[name] = p
	return nil
}

// MustRegister is Register for package init functions.
func MustRegister(p Processor) {
	if err := Register(p); err != nil {
		panic(err)
	}
}

// Lookup returns the processor registered under name.
func Lookup(name string) (Processor, error) {
	registryMu.RLock()
	p, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w %q (available: %s)", ErrUnknownProcessor, name, strings.Join(Names(), ", "))
	}
	return p, nil
}

// Names returns the registered processor names in order.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// List returns the registered processors ordered by name.
func List() []Processor {
	names := Names()

	registryMu.RLock()
	defer registryMu.RUnlock()
	list := make([]Processor, 0, len(names))
	for _, name := range names {
		if p, ok := registry[name]; ok {
			list = append(list, p)
		}
	}
	return list
}
