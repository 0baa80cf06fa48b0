// Package registry maps component names to constructors and produces
// live component instances on demand. A registry is an explicit value
// passed to its consumers; there is no ambient process-wide table.
// Construction of heavy resources (HTTP clients, model handles) happens
// in the constructor call, never at registration.
package registry

import (
	"errors"
	"fmt"
	"sync"
)

// Kind identifies which component family a registry holds.
type Kind string

const (
	// KindModel registers model providers keyed by provider name.
	KindModel Kind = "model"

	// KindMemory registers memory-constraint methods keyed by method name.
	KindMemory Kind = "memory"

	// KindBenchmark registers benchmark adapters keyed by benchmark name.
	KindBenchmark Kind = "benchmark"
)

// ErrUnknownComponent indicates a requested name was never registered
// for the kind.
var ErrUnknownComponent = errors.New("unknown component")

// ErrConstruction indicates a registered constructor failed; the
// underlying cause is wrapped.
var ErrConstruction = errors.New("component construction failed")

// UnknownComponentError reports a create call for an unregistered name,
// including the names that are registered to aid diagnosis.
type UnknownComponentError struct {
	Kind      Kind
	Name      string
	Available []string
}

func (e *UnknownComponentError) Error() string {
	return fmt.Sprintf("unknown %s component %q (available: %v)", e.Kind, e.Name, e.Available)
}

// Unwrap lets callers classify with errors.Is(err, ErrUnknownComponent).
func (e *UnknownComponentError) Unwrap() error { return ErrUnknownComponent }

// ConstructionError reports a constructor failure for a registered name.
type ConstructionError struct {
	Kind Kind
	Name string
	Err  error
}

func (e *ConstructionError) Error() string {
	return fmt.Sprintf("constructing %s component %q: %v", e.Kind, e.Name, e.Err)
}

func (e *ConstructionError) Unwrap() error { return ErrConstruction }

// Params carries constructor arguments by name. Constructors read the
// keys they understand and ignore the rest.
type Params map[string]any

// String returns the named string parameter, or "" when absent.
func (p Params) String(key string) string {
	if v, ok := p[key].(string); ok {
		return v
	}
	return ""
}

// Int returns the named integer parameter, or def when absent.
func (p Params) Int(key string, def int) int {
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return def
}

// Constructor produces a live component instance from parameters.
type Constructor[T any] func(params Params) (T, error)

// Registry holds constructors for one component kind. All methods are
// safe for concurrent use; jobs running in parallel create instances
// from the same registry.
type Registry[T any] struct {
	kind Kind

	mu           sync.RWMutex
	constructors map[string]Constructor[T]
	order        []string
}

// New creates an empty registry for the given kind.
func New[T any](kind Kind) *Registry[T] {
	return &Registry[T]{
		kind:         kind,
		constructors: make(map[string]Constructor[T]),
	}
}

// Register binds a name to a constructor. Re-registering a name replaces
// the constructor in place; this is a deliberate override supporting test
// doubles, not an error. The name keeps its original position in
// Available().
func (r *Registry[T]) Register(name string, c Constructor[T]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.constructors[name]; !exists {
		r.order = append(r.order, name)
	}
	r.constructors[name] = c
}

// Create constructs a live instance for the registered name. It returns
// an *UnknownComponentError when the name was never registered and a
// *ConstructionError when the constructor fails.
func (r *Registry[T]) Create(name string, params Params) (T, error) {
	r.mu.RLock()
	c, ok := r.constructors[name]
	r.mu.RUnlock()

	var zero T
	if !ok {
		return zero, &UnknownComponentError{Kind: r.kind, Name: name, Available: r.Available()}
	}
	instance, err := c(params)
	if err != nil {
		return zero, &ConstructionError{Kind: r.kind, Name: name, Err: err}
	}
	return instance, nil
}

// Available returns the registered names in registration order.
func (r *Registry[T]) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Kind returns the component family this registry holds.
func (r *Registry[T]) Kind() Kind { return r.kind }
