package container

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// ── Creation chains ───────────────────────────────────────────────────────────

// chainRoot identifies one logical creation chain: a top-level GetBean call
// and every nested resolution it triggers. Go has no thread identity, so the
// chain travels in the context instead.
type chainRoot struct {
	id uint64
}

// creationChain is a view of a chain: the root plus the ids being created
// along this path, outermost first.
type creationChain struct {
	root *chainRoot
	ids  []string
}

type chainKey struct{}

var chainSeq atomic.Uint64

func chainFrom(ctx context.Context) *creationChain {
	c, _ := ctx.Value(chainKey{}).(*creationChain)
	return c
}

// withChain makes sure ctx carries a creation chain, starting a new one when
// the caller is not already inside a factory.
func withChain(ctx context.Context) (context.Context, *creationChain) {
	if c := chainFrom(ctx); c != nil {
		return ctx, c
	}
	c := &creationChain{root: &chainRoot{id: chainSeq.Add(1)}}
	return context.WithValue(ctx, chainKey{}, c), c
}

// pushChain returns a ctx whose chain has id appended.
func pushChain(ctx context.Context, id string) context.Context {
	ctx, c := withChain(ctx)
	ids := make([]string, len(c.ids), len(c.ids)+1)
	copy(ids, c.ids)
	return context.WithValue(ctx, chainKey{}, &creationChain{root: c.root, ids: append(ids, id)})
}

// current returns the id at the top of the chain, or "".
func (c *creationChain) current() string {
	if c == nil || len(c.ids) == 0 {
		return ""
	}
	return c.ids[len(c.ids)-1]
}

func (c *creationChain) contains(id string) bool {
	if c == nil {
		return false
	}
	for _, v := range c.ids {
		if v == id {
			return true
		}
	}
	return false
}

// parent returns the chain without its top id.
func (c *creationChain) parent() *creationChain {
	if c == nil || len(c.ids) == 0 {
		return c
	}
	return &creationChain{root: c.root, ids: c.ids[:len(c.ids)-1]}
}

func (c *creationChain) path(id string) []string {
	if c == nil {
		return []string{id}
	}
	return append(cloneStrings(c.ids), id)
}

// ── Singleton Lifecycle Registry ──────────────────────────────────────────────

// inCreation is the creation marker for one identifier. done is closed when
// the factory finishes either way; err is set before close on failure.
type inCreation struct {
	id   string
	root *chainRoot
	done chan struct{}
	err  error
}

// within reports whether c runs inside this creation: same root, and id is
// on c's path.
func (rec *inCreation) within(c *creationChain) bool {
	return c != nil && rec.root == c.root && c.contains(rec.id)
}

// waiter is one caller blocked on another chain's creation.
type waiter struct {
	chain  *creationChain
	target *inCreation
}

// SingletonRegistry owns the shared-instance namespace: the finished cache,
// early references and creation markers. One mutex guards all bookkeeping;
// it is never held while a factory runs.
type SingletonRegistry struct {
	mu sync.Mutex

	finished map[string]any
	order    []string

	early          map[string]any
	earlyFactories map[string]func() any
	handedOut      map[string]bool

	creating   map[string]*inCreation
	waiters    map[*waiter]struct{}
	destroying bool

	log *zap.Logger
}

// NewSingletonRegistry creates an empty registry.
func NewSingletonRegistry(log *zap.Logger) *SingletonRegistry {
	if log == nil {
		log = zap.NewNop()
	}
	return &SingletonRegistry{
		finished:       make(map[string]any),
		early:          make(map[string]any),
		earlyFactories: make(map[string]func() any),
		handedOut:      make(map[string]bool),
		creating:       make(map[string]*inCreation),
		waiters:        make(map[*waiter]struct{}),
		log:            log,
	}
}

// Singleton returns the finished instance for id. Early references are never
// returned here.
func (r *SingletonRegistry) Singleton(id string) (any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	obj, ok := r.finished[id]
	return obj, ok
}

// GetSingleton returns the finished instance for id, creating it with factory
// if needed. For a fixed id the factory runs at most once at a time: any
// caller not on the creating path blocks until it finishes and then shares
// its result (or its error). A re-entrant request, one whose own path
// already includes id or that would otherwise wait on itself, gets the early
// reference if one has been exposed.
//
// Waiting does not observe ctx cancellation; a factory that never returns
// blocks every waiter on that id.
func (r *SingletonRegistry) GetSingleton(ctx context.Context, id string, factory func(ctx context.Context) (any, error)) (any, error) {
	return r.getSingleton(ctx, id, factory, nil)
}

// getSingleton is GetSingleton with a publish hook that runs under mu once
// the instance is cached, before any waiter is released.
func (r *SingletonRegistry) getSingleton(ctx context.Context, id string, factory func(ctx context.Context) (any, error), publish func()) (any, error) {
	ctx, chain := withChain(ctx)

	r.mu.Lock()
	for {
		if obj, ok := r.finished[id]; ok {
			r.mu.Unlock()
			return obj, nil
		}

		rec, ok := r.creating[id]
		if !ok {
			break
		}

		if rec.within(chain) || r.waitCycle(rec, chain) {
			obj, ok := r.earlyReference(id)
			r.mu.Unlock()
			if ok {
				r.log.Debug("returning early reference of singleton still in creation",
					zap.String("bean", id))
				return obj, nil
			}
			return nil, fmt.Errorf("%w: %q is currently in creation (%s)",
				ErrCircularReferenceUnresolvable, id, strings.Join(chain.path(id), " -> "))
		}

		w := &waiter{chain: chain, target: rec}
		r.waiters[w] = struct{}{}
		r.mu.Unlock()
		<-rec.done
		r.mu.Lock()
		delete(r.waiters, w)

		if rec.err != nil {
			if _, ok := r.finished[id]; !ok {
				r.mu.Unlock()
				return nil, rec.err
			}
		}
	}

	if r.destroying {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: requested %q", ErrCreationNotAllowed, id)
	}

	rec := &inCreation{id: id, root: chain.root, done: make(chan struct{})}
	r.creating[id] = rec
	r.mu.Unlock()

	r.log.Debug("creating shared instance of singleton bean", zap.String("bean", id))
	obj, err := invoke(pushChain(ctx, id), factory)

	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.creating, id)
	early, handed := r.early[id], r.handedOut[id]
	delete(r.early, id)
	delete(r.earlyFactories, id)
	delete(r.handedOut, id)

	if err == nil && handed && !sameInstance(early, obj) {
		err = fmt.Errorf("%w: %q was injected into other beans as an early reference, "+
			"but the finished bean is a different object", ErrCircularReferenceUnresolvable, id)
	}
	if err != nil {
		rec.err = err
		close(rec.done)
		return nil, err
	}

	r.finished[id] = obj
	r.order = append(r.order, id)
	if publish != nil {
		publish()
	}
	close(rec.done)
	return obj, nil
}

// invoke runs factory, turning a panic into an error so the creation marker
// is always cleared.
func invoke(ctx context.Context, factory func(ctx context.Context) (any, error)) (obj any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			obj = nil
			err = fmt.Errorf("factory panicked: %v", rec)
		}
	}()
	return factory(ctx)
}

// waitCycle reports whether waiting on rec would block me forever: some
// caller inside rec's creation is (transitively) waiting on a creation that
// me itself runs inside. Caller must hold mu.
func (r *SingletonRegistry) waitCycle(rec *inCreation, me *creationChain) bool {
	seen := map[*inCreation]bool{rec: true}
	frontier := []*inCreation{rec}
	for len(frontier) > 0 {
		cur := frontier[len(frontier)-1]
		frontier = frontier[:len(frontier)-1]
		for w := range r.waiters {
			if !cur.within(w.chain) {
				continue
			}
			if w.target.within(me) {
				return true
			}
			if !seen[w.target] {
				seen[w.target] = true
				frontier = append(frontier, w.target)
			}
		}
	}
	return false
}

// handedOutEarly returns id's early reference if one was given to another
// bean during the current creation.
func (r *SingletonRegistry) handedOutEarly(id string) (any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.handedOut[id] {
		return nil, false
	}
	obj, ok := r.early[id]
	return obj, ok
}

// earlyReference returns the early reference for id, materialising it from
// its supplier on first use. Caller must hold mu.
func (r *SingletonRegistry) earlyReference(id string) (any, bool) {
	if obj, ok := r.early[id]; ok {
		r.handedOut[id] = true
		return obj, true
	}
	supplier, ok := r.earlyFactories[id]
	if !ok {
		return nil, false
	}
	obj := supplier()
	r.early[id] = obj
	delete(r.earlyFactories, id)
	r.handedOut[id] = true
	return obj, true
}

// ExposeEarlyReference makes supplier's result available to re-entrant
// requests for id while id is in creation. The supplier runs at most once,
// with the registry lock held, and must not call back into the registry.
// Exposure is ignored when id is not currently in creation.
func (r *SingletonRegistry) ExposeEarlyReference(id string, supplier func() any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.creating[id]; !ok {
		return
	}
	if _, ok := r.finished[id]; ok {
		return
	}
	r.earlyFactories[id] = supplier
	delete(r.early, id)
}

// IsCurrentlyInCreation reports whether any chain is creating id.
func (r *SingletonRegistry) IsCurrentlyInCreation(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.creating[id]
	return ok
}

// RegisterSingleton injects a fully-formed instance. It refuses to replace an
// existing singleton that others may already hold.
func (r *SingletonRegistry) RegisterSingleton(id string, obj any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.register(id, obj)
}

// register is RegisterSingleton without locking. Caller must hold mu.
func (r *SingletonRegistry) register(id string, obj any) error {
	if id == "" || obj == nil {
		return fmt.Errorf("%w: singleton id and instance must be set", ErrInvalidDefinition)
	}
	if _, ok := r.finished[id]; ok {
		return fmt.Errorf("%w: %q", ErrAlreadyRegistered, id)
	}
	if _, ok := r.creating[id]; ok {
		return fmt.Errorf("%w: %q is currently in creation", ErrAlreadyRegistered, id)
	}
	r.finished[id] = obj
	r.order = append(r.order, id)
	return nil
}

// ContainsSingleton reports whether id has a finished instance.
func (r *SingletonRegistry) ContainsSingleton(id string) bool {
	_, ok := r.Singleton(id)
	return ok
}

// SingletonNames returns finished singleton ids in the order they finished.
func (r *SingletonRegistry) SingletonNames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cloneStrings(r.order)
}

// SingletonCount returns the number of finished singletons.
func (r *SingletonRegistry) SingletonCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.finished)
}

// SingletonTx is the view handed to UpdateSingletons callbacks. Its methods
// run under the registry lock already held by UpdateSingletons.
type SingletonTx interface {
	Get(id string) (any, bool)
	Contains(id string) bool
	Register(id string, obj any) error
}

type singletonTx struct{ r *SingletonRegistry }

func (tx singletonTx) Get(id string) (any, bool) {
	obj, ok := tx.r.finished[id]
	return obj, ok
}

func (tx singletonTx) Contains(id string) bool {
	_, ok := tx.r.finished[id]
	return ok
}

func (tx singletonTx) Register(id string, obj any) error { return tx.r.register(id, obj) }

// UpdateSingletons runs fn with the registry mutex held so that a
// check-then-register sequence is atomic. fn must not call other registry or
// container methods.
//
//	err := c.Singletons().UpdateSingletons(func(tx container.SingletonTx) error {
//	    if tx.Contains("clock") {
//	        return nil
//	    }
//	    return tx.Register("clock", realClock{})
//	})
func (r *SingletonRegistry) UpdateSingletons(fn func(tx SingletonTx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(singletonTx{r})
}

// remove drops id from the finished cache and any early state, returning the
// finished instance if there was one. also, when set, runs under the same
// lock so that nothing can publish id in between.
func (r *SingletonRegistry) remove(id string, also func()) (any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if also != nil {
		defer also()
	}
	obj, ok := r.finished[id]
	delete(r.finished, id)
	delete(r.early, id)
	delete(r.earlyFactories, id)
	delete(r.handedOut, id)
	if ok {
		for i, v := range r.order {
			if v == id {
				r.order = append(r.order[:i], r.order[i+1:]...)
				break
			}
		}
	}
	return obj, ok
}

func (r *SingletonRegistry) setDestroying(v bool) {
	r.mu.Lock()
	r.destroying = v
	r.mu.Unlock()
}

// sameInstance compares by identity for reference kinds and by value for
// other comparable kinds.
func sameInstance(a, b any) (same bool) {
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if !va.IsValid() || !vb.IsValid() {
		return !va.IsValid() && !vb.IsValid()
	}
	if va.Type() != vb.Type() {
		return false
	}
	switch va.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return va.Pointer() == vb.Pointer()
	}
	if !va.Type().Comparable() {
		return false
	}
	defer func() {
		if recover() != nil {
			same = false
		}
	}()
	return a == b
}
