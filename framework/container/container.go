package container

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Extender decorates a bean after it has been initialised.
type Extender func(instance any, c *Container) any

type resolvingCallback func(id string, instance any)

// ── Container ─────────────────────────────────────────────────────────────────

// Container is the bean factory. It composes the alias index, definition
// store, singleton registry, dependency graph, disposal registry and scope
// registry into the lifecycle operations: register, resolve, destroy.
//
// A Container is an ordinary value: nothing is shared between two containers
// unless one is the parent of the other.
type Container struct {
	parent *Container

	aliases    *AliasIndex
	defs       *DefinitionStore
	singletons *SingletonRegistry
	graph      *DependencyGraph
	disposals  *DisposalRegistry
	scopes     *ScopeRegistry

	mu             sync.RWMutex
	extenders      map[string][]Extender
	contextual     map[string]map[string]contextualTarget
	tags           map[string][]string
	afterResolving []resolvingCallback
	postProcessors []PostProcessor
	deferred       map[string]*deferredLoad

	allowAliasOverriding    bool
	allowCircularReferences bool
	log                     *zap.Logger
	tracer                  trace.Tracer
}

type deferredLoad struct {
	once sync.Once
	load func() error
	err  error
}

// New creates an empty container.
func New(opts ...Option) *Container {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	singletons := NewSingletonRegistry(o.log)
	graph := NewDependencyGraph()

	return &Container{
		parent:                  o.parent,
		aliases:                 NewAliasIndex(o.allowAliasOverriding),
		defs:                    NewDefinitionStore(),
		singletons:              singletons,
		graph:                   graph,
		disposals:               NewDisposalRegistry(singletons, graph, o.log),
		scopes:                  NewScopeRegistry(),
		extenders:               make(map[string][]Extender),
		contextual:              make(map[string]map[string]contextualTarget),
		tags:                    make(map[string][]string),
		deferred:                make(map[string]*deferredLoad),
		allowAliasOverriding:    o.allowAliasOverriding,
		allowCircularReferences: o.allowCircularReferences,
		log:                     o.log,
		tracer:                  o.tracer,
	}
}

// NewChild creates a container whose lookups fall back to c. The child
// inherits c's logger, tracer and policies unless opts override them.
func (c *Container) NewChild(opts ...Option) *Container {
	base := []Option{
		WithParent(c),
		WithLogger(c.log),
		WithTracer(c.tracer),
		WithAliasOverriding(c.allowAliasOverriding),
		WithCircularReferences(c.allowCircularReferences),
	}
	return New(append(base, opts...)...)
}

// Parent returns the parent container, or nil.
func (c *Container) Parent() *Container { return c.parent }

// ── Registration ──────────────────────────────────────────────────────────────

// RegisterDefinition registers def under id. Registering an id again
// replaces the definition and destroys the singleton built from the old one.
//
//	c.RegisterDefinition("userService", &container.Definition{
//	    Constructor: container.Ctor(NewUserService),
//	    Properties:  []container.Property{container.Inject("repo", "userRepository", (*UserService).SetRepo)},
//	})
func (c *Container) RegisterDefinition(id string, def *Definition) error {
	if err := c.claimName("definition", id); err != nil {
		return err
	}

	replaced, err := c.defs.Register(id, def)
	if err != nil {
		return err
	}

	for _, tag := range def.Tags {
		c.Tag([]string{id}, tag)
	}

	if replaced {
		c.log.Info("overriding bean definition", zap.String("bean", id))
		if err := c.disposals.DestroySingleton(id); err != nil {
			c.log.Warn("destroying singleton of overridden definition failed",
				zap.String("bean", id), zap.Error(err))
		}
	}
	return nil
}

// claimName makes id usable as a canonical name. An alias spelled id is
// dropped when alias overriding is allowed and is a conflict otherwise.
func (c *Container) claimName(kind, id string) error {
	if !c.aliases.IsAlias(id) {
		return nil
	}
	if !c.allowAliasOverriding {
		target, _ := c.aliases.Resolve(id)
		return fmt.Errorf("%w: cannot register %s %q, it is already an alias for %q",
			ErrConflictingAlias, kind, id, target)
	}
	// A concurrent RemoveAlias may have won; the name is free either way.
	if err := c.aliases.Remove(id); err != nil && !errors.Is(err, ErrNoSuchAlias) {
		return err
	}
	return nil
}

// RemoveDefinition removes id's definition and destroys its singleton.
func (c *Container) RemoveDefinition(id string) error {
	if err := c.defs.Remove(id); err != nil {
		return err
	}
	return c.disposals.DestroySingleton(id)
}

// Definition returns the merged definition for id (aliases allowed).
func (c *Container) Definition(id string) (*Definition, error) {
	name, err := c.aliases.Resolve(id)
	if err != nil {
		return nil, err
	}
	def, err := c.defs.GetMerged(name)
	if err != nil && c.parent != nil && !c.defs.Contains(name) {
		return c.parent.Definition(id)
	}
	return def, err
}

// DefinitionNames returns locally registered ids in registration order.
func (c *Container) DefinitionNames() []string { return c.defs.IDs() }

// IsNameInUse reports whether id is taken locally as an alias, a definition,
// a singleton or a bean that others depend on.
func (c *Container) IsNameInUse(id string) bool {
	return c.aliases.IsAlias(id) || c.defs.Contains(id) ||
		c.singletons.ContainsSingleton(id) || len(c.graph.Dependents(id)) > 0
}

// ContainsDefinition reports whether id (or the name it aliases) has a local
// definition.
func (c *Container) ContainsDefinition(id string) bool {
	name, err := c.aliases.Resolve(id)
	return err == nil && c.defs.Contains(name)
}

// RegisterAlias makes alias another name for name.
//
//	// Laravel: $app->alias(Cache::class, 'cache')
//	c.RegisterAlias("cacheManager", "cache")
func (c *Container) RegisterAlias(name, alias string) error {
	if alias != name {
		if c.defs.Contains(alias) {
			return fmt.Errorf("%w: %q is a bean definition name", ErrConflictingAlias, alias)
		}
		if c.singletons.ContainsSingleton(alias) {
			return fmt.Errorf("%w: %q is a singleton name", ErrConflictingAlias, alias)
		}
	}
	return c.aliases.Register(name, alias)
}

// RemoveAlias removes alias.
func (c *Container) RemoveAlias(alias string) error { return c.aliases.Remove(alias) }

// Aliases returns every alias of id.
func (c *Container) Aliases(id string) []string { return c.aliases.Aliases(id) }

// CanonicalName resolves id through the alias index.
func (c *Container) CanonicalName(id string) (string, error) { return c.aliases.Resolve(id) }

// RegisterScope registers a custom scope. "singleton" and "prototype" are
// reserved.
func (c *Container) RegisterScope(name string, scope Scope) error {
	return c.scopes.Register(name, scope)
}

// Scope returns the custom scope registered under name, here or in a parent.
func (c *Container) Scope(name string) (Scope, bool) {
	if s, ok := c.scopes.Get(name); ok {
		return s, true
	}
	if c.parent != nil {
		return c.parent.Scope(name)
	}
	return nil, false
}

// ScopeNames returns locally registered custom scope names.
func (c *Container) ScopeNames() []string { return c.scopes.Names() }

// RegisterSingleton injects an already-built instance under id. It fails
// with ErrAlreadyRegistered if id already has a singleton, and with
// ErrConflictingAlias if id is an alias (unless alias overriding is on).
//
//	// Laravel: $app->instance('config', $config)
//	c.RegisterSingleton("config", cfg)
func (c *Container) RegisterSingleton(id string, instance any) error {
	if err := c.claimName("singleton", id); err != nil {
		return err
	}
	return c.singletons.RegisterSingleton(id, instance)
}

// Singletons exposes the singleton registry.
func (c *Container) Singletons() *SingletonRegistry { return c.singletons }

// Dependencies exposes the dependency graph.
func (c *Container) Dependencies() *DependencyGraph { return c.graph }

// Disposals exposes the disposal registry.
func (c *Container) Disposals() *DisposalRegistry { return c.disposals }

// Defer registers a loader that is run the first time any of ids is
// requested without a definition. Service providers use it for lazy
// registration.
func (c *Container) Defer(ids []string, load func() error) {
	d := &deferredLoad{load: load}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		c.deferred[id] = d
	}
}

// loadDeferred runs the loader registered for id, if any, and reports
// whether one ran.
func (c *Container) loadDeferred(id string) (bool, error) {
	c.mu.Lock()
	d, ok := c.deferred[id]
	delete(c.deferred, id)
	c.mu.Unlock()
	if !ok {
		return false, nil
	}
	d.once.Do(func() { d.err = d.load() })
	return true, d.err
}

// ── Extend / callbacks / tags ─────────────────────────────────────────────────

// Extend decorates every future instance of id after initialisation.
//
//	// Laravel: $app->extend(Logger::class, fn($logger, $app) => new TimestampLogger($logger))
//	c.Extend("logger", func(instance any, c *container.Container) any {
//	    return &TimestampLogger{Inner: instance.(*Logger)}
//	})
//
// A singleton that was handed out as an early reference to break a cycle
// cannot be replaced by a different object; its creation fails instead. Use
// a PostProcessor with an EarlyReference hook to wrap beans in a cycle.
func (c *Container) Extend(id string, fn Extender) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.extenders[id] = append(c.extenders[id], fn)
}

func (c *Container) applyExtenders(id string, instance any) any {
	c.mu.RLock()
	exts := append([]Extender(nil), c.extenders[id]...)
	c.mu.RUnlock()
	for _, ext := range exts {
		instance = ext(instance, c)
	}
	return instance
}

// PostProcessor hooks into the creation of every bean in the container.
// Nil fields are skipped and a nil result keeps the current instance.
type PostProcessor struct {
	// BeforeInit runs after properties are set, before init callbacks.
	BeforeInit func(id string, instance any) (any, error)
	// AfterInit runs after init callbacks, before extenders.
	AfterInit func(id string, instance any) (any, error)
	// EarlyReference wraps the reference handed to beans that need a
	// singleton while it is still being created. It runs with the singleton
	// registry locked and must not resolve beans. A processor that wraps in
	// AfterInit should wrap here too, and return the instance unchanged from
	// AfterInit for an id it already wrapped early.
	EarlyReference func(id string, instance any) any
}

// AddPostProcessor appends p; processors run in the order they were added.
//
//	c.AddPostProcessor(container.PostProcessor{
//	    AfterInit: func(id string, instance any) (any, error) {
//	        log.Debug("bean ready", zap.String("bean", id))
//	        return instance, nil
//	    },
//	})
func (c *Container) AddPostProcessor(p PostProcessor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.postProcessors = append(c.postProcessors, p)
}

// PostProcessorCount returns the number of registered post-processors.
func (c *Container) PostProcessorCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.postProcessors)
}

func (c *Container) postProcessorList() []PostProcessor {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]PostProcessor(nil), c.postProcessors...)
}

// AfterResolving registers a callback fired after any bean is created.
//
//	// Laravel: $app->afterResolving(fn($object, $app) => ...)
func (c *Container) AfterResolving(cb func(id string, instance any)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.afterResolving = append(c.afterResolving, cb)
}

func (c *Container) fireAfterResolving(id string, instance any) {
	c.mu.RLock()
	cbs := append([]resolvingCallback(nil), c.afterResolving...)
	c.mu.RUnlock()
	for _, cb := range cbs {
		cb(id, instance)
	}
}

// Tag associates ids with a named group.
//
//	// Laravel: $app->tag([CpuReport::class, MemoryReport::class], 'reports')
//	c.Tag([]string{"cpuReport", "memoryReport"}, "reports")
func (c *Container) Tag(ids []string, tag string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		if !containsString(c.tags[tag], id) {
			c.tags[tag] = append(c.tags[tag], id)
		}
	}
}

// Tagged resolves every bean in tag, in tagging order.
func (c *Container) Tagged(ctx context.Context, tag string) ([]any, error) {
	c.mu.RLock()
	ids := cloneStrings(c.tags[tag])
	c.mu.RUnlock()

	out := make([]any, 0, len(ids))
	for _, id := range ids {
		bean, err := c.GetBean(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, bean)
	}
	return out, nil
}

// ── Queries ───────────────────────────────────────────────────────────────────

// ContainsBean reports whether id can be resolved here or in a parent.
func (c *Container) ContainsBean(id string) bool {
	name, err := c.aliases.Resolve(id)
	if err != nil {
		return false
	}
	if c.singletons.ContainsSingleton(name) || c.defs.Contains(name) {
		return true
	}
	c.mu.RLock()
	_, deferred := c.deferred[name]
	c.mu.RUnlock()
	if deferred {
		return true
	}
	return c.parent != nil && c.parent.ContainsBean(id)
}

// IsSingleton reports whether GetBean(id) always returns the same instance.
func (c *Container) IsSingleton(id string) (bool, error) {
	name, err := c.aliases.Resolve(id)
	if err != nil {
		return false, err
	}
	if c.singletons.ContainsSingleton(name) {
		return true, nil
	}
	def, err := c.Definition(name)
	if err != nil {
		return false, err
	}
	return def.IsSingleton(), nil
}

// IsPrototype reports whether GetBean(id) returns a new instance every time.
func (c *Container) IsPrototype(id string) (bool, error) {
	name, err := c.aliases.Resolve(id)
	if err != nil {
		return false, err
	}
	if c.singletons.ContainsSingleton(name) {
		return false, nil
	}
	def, err := c.Definition(name)
	if err != nil {
		return false, err
	}
	return def.IsPrototype(), nil
}

// Type returns the type of id's instance: the finished singleton's dynamic
// type if there is one, otherwise the definition's declared type (which may
// be nil).
func (c *Container) Type(id string) (reflect.Type, error) {
	name, err := c.aliases.Resolve(id)
	if err != nil {
		return nil, err
	}
	if obj, ok := c.singletons.Singleton(name); ok {
		return reflect.TypeOf(obj), nil
	}
	def, err := c.Definition(name)
	if err != nil {
		return nil, err
	}
	return def.Type, nil
}

// ── Teardown ──────────────────────────────────────────────────────────────────

// DestroySingleton destroys id's singleton after every bean that depends on
// it. Calling it again is a no-op.
func (c *Container) DestroySingleton(id string) error {
	name, err := c.aliases.Resolve(id)
	if err != nil {
		return err
	}
	return c.disposals.DestroySingleton(name)
}

// DestroyAll destroys every singleton, dependents first. It attempts every
// bean and returns the joined *DestructionError values.
func (c *Container) DestroyAll() error {
	c.log.Info("destroying singletons", zap.Int("count", c.singletons.SingletonCount()))
	return c.disposals.DestroyAll()
}

// DestroyScopedBean removes id from its custom scope and destroys the
// removed instance.
func (c *Container) DestroyScopedBean(ctx context.Context, id string) error {
	name, err := c.aliases.Resolve(id)
	if err != nil {
		return err
	}
	def, err := c.Definition(name)
	if err != nil {
		return err
	}
	if def.IsSingleton() || def.IsPrototype() {
		return fmt.Errorf("%w: %q is not in a custom scope", ErrInvalidDefinition, id)
	}
	scope, ok := c.Scope(def.ScopeName())
	if !ok {
		return fmt.Errorf("%w: %q", ErrNoSuchScope, def.ScopeName())
	}
	obj, ok := scope.Remove(ctx, name)
	if !ok {
		return nil
	}
	if err := destroyInstance(def, obj); err != nil {
		return &DestructionError{ID: name, Err: err}
	}
	return nil
}

// DestroyBean runs id's destroy logic on an instance the caller owns,
// typically a prototype.
func (c *Container) DestroyBean(id string, instance any) error {
	def, err := c.Definition(id)
	if err != nil {
		return err
	}
	if err := destroyInstance(def, instance); err != nil {
		return &DestructionError{ID: id, Err: err}
	}
	return nil
}

// PreInstantiateSingletons creates every non-abstract, non-lazy singleton in
// registration order, stopping at the first failure.
func (c *Container) PreInstantiateSingletons(ctx context.Context) error {
	for _, id := range c.defs.IDs() {
		def, err := c.defs.GetMerged(id)
		if err != nil {
			return err
		}
		if def.Abstract || !def.IsSingleton() || def.IsLazy() {
			continue
		}
		if _, err := c.GetBean(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// ── Generic helpers ───────────────────────────────────────────────────────────

// Resolve calls GetBean and type-asserts the result.
//
//	// Instead of: raw, err := c.GetBean(ctx, "db"); db := raw.(*sql.DB)
//	db, err := container.Resolve[*sql.DB](ctx, c, "db")
func Resolve[T any](ctx context.Context, c *Container, id string) (T, error) {
	var zero T
	bean, err := c.GetBean(ctx, id)
	if err != nil {
		return zero, err
	}
	typed, ok := bean.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %q is %T, not %s", ErrTypeMismatch, id, bean, TypeOf[T]())
	}
	return typed, nil
}

// MustResolve is like Resolve but panics on error.
func MustResolve[T any](ctx context.Context, c *Container, id string) T {
	v, err := Resolve[T](ctx, c, id)
	if err != nil {
		panic(fmt.Sprintf("container: MustResolve[%s](%q): %v", TypeOf[T](), id, err))
	}
	return v
}

// IsNotFound reports whether err means an unknown bean.
func IsNotFound(err error) bool { return errors.Is(err, ErrNoSuchDefinition) }

func containsString(s []string, v string) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}
