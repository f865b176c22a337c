package benchmark

import (
	"fmt"
	"sort"
	"sync"
)

// Factory builds a benchmark function from its source payload. Isolated
// contexts receive the identifier and source over the wire and rebuild the
// function locally through the registry.
type Factory func(source string) (Func, error)

// Registry maps benchmark identifiers to factories.
//
// Thread Safety: Safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// DefaultRegistry is the process-wide registry used by the CLI and by
// worker processes.
var DefaultRegistry = NewRegistry()

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory under name.
func (r *Registry) Register(name string, f Factory) error {
	if f == nil {
		return fmt.Errorf("%w: nil factory for %q", ErrInvalidOptions, name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, name)
	}
	r.factories[name] = f
	return nil
}

// MustRegister registers and panics on error. Use during initialization.
func (r *Registry) MustRegister(name string, f Factory) {
	if err := r.Register(name, f); err != nil {
		panic(fmt.Sprintf("benchmark: failed to register %s: %v", name, err))
	}
}

// Resolve builds the function registered under name from source.
func (r *Registry) Resolve(name, source string) (Func, error) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBenchmark, name)
	}
	fn, err := f(source)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", name, err)
	}
	return fn, nil
}

// Names returns the registered identifiers in sorted order.
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
