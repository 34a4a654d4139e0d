package container

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// ── Disposal Registry ─────────────────────────────────────────────────────────

// DisposalRegistry holds per-singleton disposal callbacks and performs
// teardown in dependency order. Teardown is best-effort: callback errors are
// collected and never stop the sweep.
type DisposalRegistry struct {
	mu        sync.Mutex
	callbacks map[string]func() error
	order     []string

	singletons *SingletonRegistry
	graph      *DependencyGraph
	log        *zap.Logger
}

// NewDisposalRegistry creates a registry that tears down singletons held by
// singletons, ordered by graph.
func NewDisposalRegistry(singletons *SingletonRegistry, graph *DependencyGraph, log *zap.Logger) *DisposalRegistry {
	if log == nil {
		log = zap.NewNop()
	}
	return &DisposalRegistry{
		callbacks:  make(map[string]func() error),
		singletons: singletons,
		graph:      graph,
		log:        log,
	}
}

// RegisterDisposal sets the callback run when id is destroyed, replacing any
// previous one.
func (d *DisposalRegistry) RegisterDisposal(id string, cb func() error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.callbacks[id]; !ok {
		d.order = append(d.order, id)
	}
	d.callbacks[id] = cb
}

// HasDisposal reports whether id has a pending disposal callback.
func (d *DisposalRegistry) HasDisposal(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.callbacks[id]
	return ok
}

// take removes and returns id's callback, so each callback runs at most once.
func (d *DisposalRegistry) take(id string) func() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	cb, ok := d.callbacks[id]
	if !ok {
		return nil
	}
	delete(d.callbacks, id)
	for i, v := range d.order {
		if v == id {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
	return cb
}

// DestroySingleton destroys every dependent of id (recursively), then drops
// id from the singleton cache and runs its disposal callback. Destroying an
// id twice is a no-op the second time.
func (d *DisposalRegistry) DestroySingleton(id string) error {
	s := d.newSweep()
	return errors.Join(s.destroy(id)...)
}

// DestroyAll tears down every singleton in DestructionOrder and clears the
// dependency graph. Singleton creation is refused while it runs. Every
// callback is attempted; failures come back joined.
func (d *DisposalRegistry) DestroyAll() error {
	d.singletons.setDestroying(true)
	defer d.singletons.setDestroying(false)

	order := d.DestructionOrder()
	d.log.Debug("destroying singletons", zap.Strings("order", order))

	s := d.newSweep()
	var errs []error
	for _, id := range order {
		errs = append(errs, s.destroy(id)...)
	}
	d.graph.clear()

	if len(errs) > 0 {
		d.log.Warn("singleton teardown finished with errors", zap.Int("failures", len(errs)))
	}
	return errors.Join(errs...)
}

// DestructionOrder returns singleton and disposal ids in teardown order:
// every dependent before its dependencies, and among unrelated ids the one
// registered later first.
func (d *DisposalRegistry) DestructionOrder() []string {
	s := d.newSweep()

	candidates := make([]string, 0, len(s.rank))
	for id := range s.rank {
		candidates = append(candidates, id)
	}
	sort.Slice(candidates, func(i, j int) bool { return s.rank[candidates[i]] > s.rank[candidates[j]] })

	visited := make(map[string]bool)
	out := make([]string, 0, len(candidates))
	var visit func(id string)
	visit = func(id string) {
		if visited[id] {
			return
		}
		visited[id] = true
		for _, dep := range s.dependents(id) {
			visit(dep)
		}
		if _, ok := s.rank[id]; ok {
			out = append(out, id)
		}
	}
	for _, id := range candidates {
		visit(id)
	}
	return out
}

// sweep is one teardown pass: a destroyed-set plus a snapshot of the
// registration rank used to order siblings.
type sweep struct {
	d         *DisposalRegistry
	rank      map[string]int
	destroyed map[string]bool
}

func (d *DisposalRegistry) newSweep() *sweep {
	rank := make(map[string]int)
	for i, id := range d.singletons.SingletonNames() {
		rank[id] = i
	}
	d.mu.Lock()
	n := len(rank)
	for _, id := range d.order {
		if _, ok := rank[id]; !ok {
			rank[id] = n
			n++
		}
	}
	d.mu.Unlock()
	return &sweep{d: d, rank: rank, destroyed: make(map[string]bool)}
}

// dependents returns id's dependents, later-registered first.
func (s *sweep) dependents(id string) []string {
	deps := s.d.graph.Dependents(id)
	sort.SliceStable(deps, func(i, j int) bool { return s.rankOf(deps[i]) > s.rankOf(deps[j]) })
	return deps
}

func (s *sweep) rankOf(id string) int {
	if r, ok := s.rank[id]; ok {
		return r
	}
	return -1
}

func (s *sweep) destroy(id string) []error {
	if s.destroyed[id] {
		return nil
	}
	s.destroyed[id] = true

	var errs []error
	for _, dep := range s.dependents(id) {
		errs = append(errs, s.destroy(dep)...)
	}

	var cb func() error
	s.d.singletons.remove(id, func() { cb = s.d.take(id) })
	if cb == nil {
		return errs
	}
	if err := runDisposal(cb); err != nil {
		s.d.log.Warn("disposal callback failed", zap.String("bean", id), zap.Error(err))
		errs = append(errs, &DestructionError{ID: id, Err: err})
	}
	return errs
}

func runDisposal(cb func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("disposal callback panicked: %v", rec)
		}
	}()
	return cb()
}
