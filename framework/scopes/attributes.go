// Package scopes provides the custom bean scopes the HTTP layer uses:
// "request" (one instance per HTTP request) and "session" (one instance per
// client session, expiring after a TTL).
//
// Both implement container.Scope. The current request or session is found
// in the ctx handed to GetBean, which the routing middleware sets up.
package scopes

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/km-arc/go-beans/framework/container"
)

// ErrNoActiveScope is returned when a scoped bean is requested with a ctx
// that carries no request or session.
var ErrNoActiveScope = errors.New("no active scope in context")

// Attributes is the instance store of one request or session. Beans are
// created at most once per id; destruction callbacks run when End is called.
type Attributes struct {
	id string

	mu        sync.Mutex
	entries   map[string]*entry
	callbacks map[string]func()
	order     []string
	ended     bool
}

type entry struct {
	once sync.Once
	obj  any
	err  error
}

// NewAttributes creates an empty store with a random id.
func NewAttributes() *Attributes {
	return newAttributes(uuid.NewString())
}

func newAttributes(id string) *Attributes {
	return &Attributes{
		id:        id,
		entries:   make(map[string]*entry),
		callbacks: make(map[string]func()),
	}
}

// ID identifies the request or session.
func (a *Attributes) ID() string { return a.id }

// get returns the instance for id, calling factory once per id. A failed
// factory leaves no entry so the next call retries.
func (a *Attributes) get(id string, factory container.ObjectFactory) (any, error) {
	a.mu.Lock()
	e, ok := a.entries[id]
	if !ok {
		e = &entry{}
		a.entries[id] = e
	}
	a.mu.Unlock()

	e.once.Do(func() { e.obj, e.err = factory() })
	if e.err != nil {
		a.mu.Lock()
		if a.entries[id] == e {
			delete(a.entries, id)
		}
		a.mu.Unlock()
		return nil, e.err
	}
	return e.obj, nil
}

func (a *Attributes) remove(id string) (any, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	e, ok := a.entries[id]
	if !ok {
		return nil, false
	}
	delete(a.entries, id)
	a.dropCallback(id)
	if e.err != nil || e.obj == nil {
		return nil, false
	}
	return e.obj, true
}

func (a *Attributes) registerCallback(id string, cb func()) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.ended {
		return
	}
	if _, ok := a.callbacks[id]; !ok {
		a.order = append(a.order, id)
	}
	a.callbacks[id] = cb
}

// dropCallback forgets id's callback. Caller must hold mu.
func (a *Attributes) dropCallback(id string) {
	delete(a.callbacks, id)
	for i, v := range a.order {
		if v == id {
			a.order = append(a.order[:i], a.order[i+1:]...)
			return
		}
	}
}

// Len returns the number of live instances.
func (a *Attributes) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.entries)
}

// End runs every destruction callback, most recently registered first, and
// empties the store. Later calls are no-ops.
func (a *Attributes) End() {
	a.mu.Lock()
	if a.ended {
		a.mu.Unlock()
		return
	}
	a.ended = true
	order, callbacks := a.order, a.callbacks
	a.order, a.callbacks = nil, make(map[string]func())
	clear(a.entries)
	a.mu.Unlock()

	for i := len(order) - 1; i >= 0; i-- {
		callbacks[order[i]]()
	}
}

type requestKey struct{}

// WithRequest attaches request attributes to ctx.
func WithRequest(ctx context.Context, a *Attributes) context.Context {
	return context.WithValue(ctx, requestKey{}, a)
}

// RequestFrom returns the request attributes carried by ctx.
func RequestFrom(ctx context.Context) (*Attributes, bool) {
	a, ok := ctx.Value(requestKey{}).(*Attributes)
	return a, ok && a != nil
}
