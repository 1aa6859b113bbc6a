package source

import (
	"fmt"
	"slices"
	"sync"

	"github.com/lepinkainen/bookhound/internal/books"
)

// Registry maps adapter names to their single instance. Adapters are
// registered once at startup and never removed.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
	order    []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

// Register adds an adapter. Registering a second adapter under an existing
// name is an error.
func (r *Registry) Register(a Adapter) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := a.Name()
	if name == "" {
		return fmt.Errorf("adapter name must not be empty")
	}
	if _, exists := r.adapters[name]; exists {
		return fmt.Errorf("adapter %q already registered", name)
	}
	r.adapters[name] = a
	r.order = append(r.order, name)
	return nil
}

// Get returns the adapter registered under name.
func (r *Registry) Get(name string) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.adapters[name]
	return a, ok
}

// All returns every adapter in registration order.
func (r *Registry) All() []Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]Adapter, 0, len(r.order))
	for _, name := range r.order {
		all = append(all, r.adapters[name])
	}
	return all
}

// AllSupporting returns the adapters that support format, in registration order.
func (r *Registry) AllSupporting(format books.Format) []Adapter {
	var supporting []Adapter
	for _, a := range r.All() {
		if a.SupportsFormat(format) {
			supporting = append(supporting, a)
		}
	}
	return supporting
}

// Names returns the registered adapter names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return slices.Clone(r.order)
}
