package container

import (
	"context"
	"fmt"
	"sync"
)

// ── Scopes ────────────────────────────────────────────────────────────────────

// ObjectFactory creates a fresh instance of a scoped bean. It is handed to
// Scope.Get, which calls it only when the scope has no instance yet.
type ObjectFactory func() (any, error)

// Scope is a custom lifetime policy. The ctx passed to every method is the
// one given to GetBean, so scopes bound to an outer concept (request,
// session) find their current instance store in it.
type Scope interface {
	// Get returns the instance for id, creating it with factory if the scope
	// has none.
	Get(ctx context.Context, id string, factory ObjectFactory) (any, error)

	// Remove drops id from the scope and returns the removed instance. The
	// scope must not run the destruction callback; the caller owns that.
	Remove(ctx context.Context, id string) (any, bool)

	// RegisterDestructionCallback asks the scope to run cb when the instance
	// for id is destroyed together with the scope.
	RegisterDestructionCallback(ctx context.Context, id string, cb func())

	// ConversationID identifies the current underlying scope instance (a
	// request id, a session id), or "" if there is none.
	ConversationID(ctx context.Context) string
}

// ScopeRegistry maps scope names to Scope implementations. The built-in
// singleton and prototype scopes are handled by the container itself and
// cannot be registered.
type ScopeRegistry struct {
	mu     sync.RWMutex
	scopes map[string]Scope
	order  []string
}

// NewScopeRegistry creates an empty registry.
func NewScopeRegistry() *ScopeRegistry {
	return &ScopeRegistry{scopes: make(map[string]Scope)}
}

// Register binds name to scope, replacing any earlier registration.
func (r *ScopeRegistry) Register(name string, scope Scope) error {
	if name == ScopeSingleton || name == ScopePrototype {
		return fmt.Errorf("%w: %q", ErrReservedScopeName, name)
	}
	if name == "" || scope == nil {
		return fmt.Errorf("%w: scope name and implementation must be set", ErrInvalidDefinition)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.scopes[name]; !ok {
		r.order = append(r.order, name)
	}
	r.scopes[name] = scope
	return nil
}

// Get returns the scope registered under name.
func (r *ScopeRegistry) Get(name string) (Scope, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.scopes[name]
	return s, ok
}

// Names returns registered custom scope names in registration order.
func (r *ScopeRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneStrings(r.order)
}
