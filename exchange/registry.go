package exchange

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry maintains adapter factories keyed by exchange name.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty adapter registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register installs a factory for the given exchange name.
func (r *Registry) Register(name string, factory Factory) {
	if factory == nil {
		panic("exchange factory required")
	}
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		panic("exchange name required")
	}
	r.mu.Lock()
	r.factories[key] = factory
	r.mu.Unlock()
}

// New constructs an adapter for the named exchange.
func (r *Registry) New(name string, opts Options) (Exchange, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	r.mu.RLock()
	factory, ok := r.factories[key]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("exchange %q not registered", name)
	}
	ex, err := factory(opts)
	if err != nil {
		return nil, fmt.Errorf("instantiate exchange %s: %w", key, err)
	}
	return ex, nil
}

// Names lists the registered exchange names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
