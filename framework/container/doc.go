// Package container is the bean lifecycle core of the framework: an IoC
// container that creates, caches, wires and tears down application objects
// ("beans") described by Definitions.
//
// # Overview
//
// A Container composes six parts, each usable on its own:
//
//   - AliasIndex: alternate names, resolved transitively.
//   - DefinitionStore: definitions with parent inheritance.
//   - SingletonRegistry: the shared-instance cache, creation markers and
//     early references.
//   - DependencyGraph: "dependent needs dependency" edges found at creation.
//   - DisposalRegistry: teardown callbacks, run dependents first.
//   - ScopeRegistry: custom lifetimes such as request or session.
//
// # Lifecycle
//
//  1. Create: c := container.New(container.WithLogger(log))
//  2. Register providers or definitions
//  3. Boot: registry.Boot(ctx), c.PreInstantiateSingletons(ctx)
//  4. Serve: c.GetBean(ctx, id)
//  5. Shut down: c.DestroyAll()
//
// # Definitions
//
//	// Laravel: $app->singleton(UserService::class, fn($app) => new UserService($app->make(Repo::class)))
//	c.RegisterDefinition("userService", &container.Definition{
//	    Args:        []string{"userRepository"},
//	    Constructor: container.Ctor1(NewUserService),
//	})
//
//	// Laravel: $app->bind(Report::class, ...)  (new instance every make)
//	c.RegisterDefinition("report", &container.Definition{
//	    Scope:       container.ScopePrototype,
//	    Constructor: container.Ctor(NewReport),
//	})
//
//	// Laravel: $app->instance('config', $config)
//	c.RegisterSingleton("config", cfg)
//
// # Circular references
//
// Construction is two-phase: the constructor runs, then properties are
// populated. While a singleton is being populated its unfinished instance is
// available as an early reference, so two singletons that reference each
// other through Properties resolve to each other. A cycle through
// constructor Args cannot be broken and fails with
// ErrCircularReferenceUnresolvable.
//
// Every factory must pass its ctx to nested GetBean calls. The ctx carries
// the creation chain; a call with a fresh context.Background() from inside a
// factory starts an unrelated chain and will block on any bean its caller is
// still creating. Goroutines started by a factory may share its ctx; two of
// them asking for the same bean wait for each other like unrelated callers.
//
// A PostProcessor runs around init for every bean. Its EarlyReference hook
// lets a wrapping processor hand the same wrapper to beans in a cycle.
//
// # Resolving
//
//	raw, err := c.GetBean(ctx, "cache")
//	cache, err := container.Resolve[*RedisCache](ctx, c, "cache")
//
// # Teardown
//
// Singletons whose definition has a Destroy func, or that implement
// io.Closer, get a disposal callback. DestroySingleton and DestroyAll run
// every dependent's callback before the dependency's. DestroyAll keeps going
// past failures and returns them joined.
//
// # Service Providers
//
//	type HeavyProvider struct{ container.BaseProvider }
//
//	func (p *HeavyProvider) IsDeferred() bool   { return true }
//	func (p *HeavyProvider) Provides() []string { return []string{"heavy"} }
//	func (p *HeavyProvider) Register(app *container.Container) error {
//	    return app.RegisterDefinition("heavy", &container.Definition{Factory: newHeavy})
//	}
package container
