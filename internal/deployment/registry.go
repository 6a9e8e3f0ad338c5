package deployment

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

//go:embed builtin/*.yaml
var builtinFS embed.FS

// ErrNotFound is returned by Get for unknown deployment names.
var ErrNotFound = errors.New("deployment not found")

// Registry holds the deployments available to a run, keyed by name.
type Registry struct {
	deployments map[string]*Deployment
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{deployments: make(map[string]*Deployment)}
}

// Builtin returns a registry holding the deployments shipped with the binary.
func Builtin() (*Registry, error) {
	r := NewRegistry()
	entries, err := builtinFS.ReadDir("builtin")
	if err != nil {
		return nil, fmt.Errorf("failed to read builtin deployments: %w", err)
	}
	for _, entry := range entries {
		data, err := builtinFS.ReadFile(path.Join("builtin", entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read builtin deployment %s: %w", entry.Name(), err)
		}
		d, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("builtin %s: %w", entry.Name(), err)
		}
		r.Add(d)
	}
	return r, nil
}

// Add registers d, replacing any deployment with the same name.
func (r *Registry) Add(d *Deployment) {
	r.deployments[d.Name] = d
}

// LoadDir adds every *.yaml and *.yml file in dir. A missing directory is not
// an error. Files override builtins of the same name.
func (r *Registry) LoadDir(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read deployments directory: %w", err)
	}

	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		d, err := LoadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return loaded, err
		}
		r.Add(d)
		loaded++
	}
	return loaded, nil
}

// Get returns the named deployment.
func (r *Registry) Get(name string) (*Deployment, error) {
	d, ok := r.deployments[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %s)", ErrNotFound, name, strings.Join(r.Names(), ", "))
	}
	return d, nil
}

// Names returns the registered deployment names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.deployments))
	for name := range r.deployments {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// List returns all deployments sorted by name.
func (r *Registry) List() []*Deployment {
	names := r.Names()
	out := make([]*Deployment, 0, len(names))
	for _, name := range names {
		out = append(out, r.deployments[name])
	}
	return out
}
