package container_test

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/km-arc/go-beans/framework/container"
)

// ── Basic resolution ──────────────────────────────────────────────────────────

func TestGetBean_UnknownID(t *testing.T) {
	c := container.New()
	_, err := c.GetBean(context.Background(), "missing")
	require.ErrorIs(t, err, container.ErrNoSuchDefinition)
	assert.True(t, container.IsNotFound(err))
	assert.False(t, c.ContainsBean("missing"))
}

func TestGetBean_SingletonIsShared(t *testing.T) {
	ctx := context.Background()
	c := container.New()
	require.NoError(t, c.RegisterDefinition("svc", &container.Definition{Constructor: container.Ctor(newService)}))

	a, err := c.GetBean(ctx, "svc")
	require.NoError(t, err)
	b, err := c.GetBean(ctx, "svc")
	require.NoError(t, err)
	assert.Same(t, a, b)

	ok, err := c.IsSingleton("svc")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGetBean_PrototypeIsFresh(t *testing.T) {
	ctx := context.Background()
	c := container.New()
	require.NoError(t, c.RegisterDefinition("svc", &container.Definition{
		Scope:       container.ScopePrototype,
		Constructor: container.Ctor(newService),
	}))

	a := container.MustResolve[*service](ctx, c, "svc")
	b := container.MustResolve[*service](ctx, c, "svc")
	assert.NotSame(t, a, b)
	assert.False(t, c.Singletons().ContainsSingleton("svc"))

	ok, err := c.IsPrototype("svc")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGetBean_ConstructorArgs(t *testing.T) {
	ctx := context.Background()
	c := container.New()
	require.NoError(t, c.RegisterSingleton("name", "billing"))
	require.NoError(t, c.RegisterDefinition("svc", &container.Definition{
		Args: []string{"name"},
		Constructor: container.Ctor1(func(name string) (*service, error) {
			return &service{name: name}, nil
		}),
	}))

	svc, err := container.Resolve[*service](ctx, c, "svc")
	require.NoError(t, err)
	assert.Equal(t, "billing", svc.name)
	assert.Equal(t, []string{"svc"}, c.Dependencies().Dependents("name"))
}

func TestResolve_TypeMismatch(t *testing.T) {
	c := container.New()
	require.NoError(t, c.RegisterSingleton("n", 42))
	_, err := container.Resolve[string](context.Background(), c, "n")
	require.ErrorIs(t, err, container.ErrTypeMismatch)
}

func TestGetBean_DeclaredTypeChecked(t *testing.T) {
	c := container.New()
	require.NoError(t, c.RegisterDefinition("svc", &container.Definition{
		Type:        container.TypeOf[*repository](),
		Constructor: container.Ctor(newService),
	}))
	_, err := c.GetBean(context.Background(), "svc")
	require.ErrorIs(t, err, container.ErrTypeMismatch)
	require.ErrorIs(t, err, container.ErrCreationFailure)
}

func TestGetBean_NoConstructor(t *testing.T) {
	c := container.New()
	require.NoError(t, c.RegisterDefinition("empty", &container.Definition{}))
	_, err := c.GetBean(context.Background(), "empty")
	require.ErrorIs(t, err, container.ErrInvalidDefinition)
}

func TestRegisterSingleton_Duplicate(t *testing.T) {
	c := container.New()
	require.NoError(t, c.RegisterSingleton("cfg", "a"))
	err := c.RegisterSingleton("cfg", "b")
	require.ErrorIs(t, err, container.ErrAlreadyRegistered)

	got, err := c.GetBean(context.Background(), "cfg")
	require.NoError(t, err)
	assert.Equal(t, "a", got)
}

func TestType(t *testing.T) {
	c := container.New()
	require.NoError(t, c.RegisterDefinition("svc", &container.Definition{
		Type:        container.TypeOf[*service](),
		Constructor: container.Ctor(newService),
	}))
	typ, err := c.Type("svc")
	require.NoError(t, err)
	assert.Equal(t, container.TypeOf[*service](), typ)
}

// ── Circular references ───────────────────────────────────────────────────────

func TestCircularPropertyReferences_Resolve(t *testing.T) {
	ctx := context.Background()
	c := container.New()
	require.NoError(t, cycleDefs(c))

	repo, err := container.Resolve[*repository](ctx, c, "repository")
	require.NoError(t, err)
	svc, err := container.Resolve[*service](ctx, c, "service")
	require.NoError(t, err)

	assert.Same(t, svc, repo.service)
	assert.Same(t, repo, svc.repo)
	assert.ElementsMatch(t, []string{"repository", "service"}, c.Singletons().SingletonNames())
	assert.False(t, c.Singletons().IsCurrentlyInCreation("repository"))
}

func TestCircularPropertyReferences_DisabledFails(t *testing.T) {
	c := container.New(container.WithCircularReferences(false))
	require.NoError(t, cycleDefs(c))

	_, err := c.GetBean(context.Background(), "repository")
	require.ErrorIs(t, err, container.ErrCircularReferenceUnresolvable)
	assert.Zero(t, c.Singletons().SingletonCount())
}

func TestCircularConstructorReferences_Fail(t *testing.T) {
	c := container.New()
	require.NoError(t, c.RegisterDefinition("a", &container.Definition{
		Args:        []string{"b"},
		Constructor: func(args []any) (any, error) { return &node{id: "a"}, nil },
	}))
	require.NoError(t, c.RegisterDefinition("b", &container.Definition{
		Args:        []string{"a"},
		Constructor: func(args []any) (any, error) { return &node{id: "b"}, nil },
	}))

	_, err := c.GetBean(context.Background(), "a")
	require.ErrorIs(t, err, container.ErrCircularReferenceUnresolvable)
	require.ErrorIs(t, err, container.ErrCreationFailure)

	var ce *container.CreationError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "a", ce.ID)
	assert.Contains(t, err.Error(), "a -> b -> a")

	assert.False(t, c.Singletons().ContainsSingleton("a"))
	assert.False(t, c.Singletons().ContainsSingleton("b"))
	assert.False(t, c.Singletons().IsCurrentlyInCreation("a"))
}

func TestCircularPrototypes_Fail(t *testing.T) {
	c := container.New()
	for _, id := range []string{"p1", "p2"} {
		other := map[string]string{"p1": "p2", "p2": "p1"}[id]
		def := nodeDef(id, &journal{}, other)
		def.Scope = container.ScopePrototype
		require.NoError(t, c.RegisterDefinition(id, def))
	}
	_, err := c.GetBean(context.Background(), "p1")
	require.ErrorIs(t, err, container.ErrCircularReferenceUnresolvable)
}

func TestCircularReference_ExtenderReplacingEarlyReferenceFails(t *testing.T) {
	c := container.New()
	require.NoError(t, cycleDefs(c))
	c.Extend("repository", func(instance any, _ *container.Container) any {
		return &repository{service: instance.(*repository).service}
	})

	_, err := c.GetBean(context.Background(), "repository")
	require.ErrorIs(t, err, container.ErrCircularReferenceUnresolvable)
	assert.False(t, c.Singletons().ContainsSingleton("repository"))
}

// ── Definitions, parents and aliases ──────────────────────────────────────────

func TestParentDefinition_Merge(t *testing.T) {
	ctx := context.Background()
	c := container.New()
	var inits atomic.Int32

	require.NoError(t, c.RegisterDefinition("base", &container.Definition{
		Abstract: true,
		Properties: []container.Property{
			container.Value("name", "base", func(s *service, v string) { s.name = v }),
		},
		Init: func(any) error { inits.Add(1); return nil },
	}))
	require.NoError(t, c.RegisterDefinition("child", &container.Definition{
		Parent:      "base",
		Constructor: container.Ctor(newService),
	}))
	require.NoError(t, c.RegisterDefinition("renamed", &container.Definition{
		Parent: "child",
		Properties: []container.Property{
			container.Value("name", "renamed", func(s *service, v string) { s.name = v }),
		},
	}))

	_, err := c.GetBean(ctx, "base")
	require.ErrorIs(t, err, container.ErrAbstractDefinition)

	child := container.MustResolve[*service](ctx, c, "child")
	assert.Equal(t, "base", child.name)
	renamed := container.MustResolve[*service](ctx, c, "renamed")
	assert.Equal(t, "renamed", renamed.name)
	assert.EqualValues(t, 2, inits.Load())

	def, err := c.Definition("renamed")
	require.NoError(t, err)
	assert.Empty(t, def.Parent)
	assert.False(t, def.Abstract)
	assert.Len(t, def.Properties, 1)
}

func TestParentDefinition_Cycle(t *testing.T) {
	c := container.New()
	require.NoError(t, c.RegisterDefinition("a", &container.Definition{Parent: "b"}))
	require.NoError(t, c.RegisterDefinition("b", &container.Definition{Parent: "a"}))
	_, err := c.GetBean(context.Background(), "a")
	require.ErrorIs(t, err, container.ErrCyclicParent)
}

func TestParentDefinition_Missing(t *testing.T) {
	c := container.New()
	require.NoError(t, c.RegisterDefinition("a", &container.Definition{Parent: "ghost"}))
	_, err := c.GetBean(context.Background(), "a")
	require.ErrorIs(t, err, container.ErrNoSuchDefinition)
}

func TestAlias_Chain(t *testing.T) {
	ctx := context.Background()
	c := container.New()
	require.NoError(t, c.RegisterDefinition("db", &container.Definition{Constructor: container.Ctor(newRepository)}))
	require.NoError(t, c.RegisterAlias("db", "database"))
	require.NoError(t, c.RegisterAlias("database", "store"))

	db, err := c.GetBean(ctx, "db")
	require.NoError(t, err)
	store, err := c.GetBean(ctx, "store")
	require.NoError(t, err)
	assert.Same(t, db, store)
	assert.Equal(t, []string{"database", "store"}, c.Aliases("db"))
	assert.True(t, c.ContainsBean("store"))

	name, err := c.CanonicalName("store")
	require.NoError(t, err)
	assert.Equal(t, "db", name)
}

func TestAlias_Cycle(t *testing.T) {
	c := container.New()
	require.NoError(t, c.RegisterAlias("x", "y"))
	err := c.RegisterAlias("y", "x")
	require.ErrorIs(t, err, container.ErrCyclicAlias)
}

func TestAlias_Conflict(t *testing.T) {
	c := container.New()
	require.NoError(t, c.RegisterAlias("a", "al"))
	require.ErrorIs(t, c.RegisterAlias("b", "al"), container.ErrConflictingAlias)
	require.NoError(t, c.RegisterAlias("a", "al"), "same mapping is a no-op")

	require.NoError(t, c.RegisterDefinition("real", &container.Definition{Constructor: container.Ctor(newService)}))
	require.ErrorIs(t, c.RegisterAlias("a", "real"), container.ErrConflictingAlias)
	require.ErrorIs(t, c.RegisterDefinition("al", &container.Definition{}), container.ErrConflictingAlias)
}

func TestAlias_Overriding(t *testing.T) {
	ctx := context.Background()
	c := container.New(container.WithAliasOverriding(true))
	require.NoError(t, c.RegisterSingleton("a", "A"))
	require.NoError(t, c.RegisterSingleton("b", "B"))
	require.NoError(t, c.RegisterAlias("a", "al"))
	require.NoError(t, c.RegisterAlias("b", "al"))

	got, err := c.GetBean(ctx, "al")
	require.NoError(t, err)
	assert.Equal(t, "B", got)

	require.NoError(t, c.RegisterDefinition("al", &container.Definition{Factory: constant("own")}))
	got, err = c.GetBean(ctx, "al")
	require.NoError(t, err)
	assert.Equal(t, "own", got)
	assert.Empty(t, c.Aliases("b"))
}

func TestAlias_CannotShadowSingleton(t *testing.T) {
	ctx := context.Background()
	c := container.New()
	require.NoError(t, c.RegisterSingleton("config", "a"))
	require.NoError(t, c.RegisterSingleton("other", "b"))

	require.ErrorIs(t, c.RegisterAlias("other", "config"), container.ErrConflictingAlias)
	assert.Empty(t, c.Aliases("other"))

	got, err := c.GetBean(ctx, "config")
	require.NoError(t, err)
	assert.Equal(t, "a", got)
}

func TestRegisterSingleton_CannotReuseAlias(t *testing.T) {
	ctx := context.Background()
	c := container.New()
	require.NoError(t, c.RegisterSingleton("real", "a"))
	require.NoError(t, c.RegisterAlias("real", "x"))

	require.ErrorIs(t, c.RegisterSingleton("x", "b"), container.ErrConflictingAlias)
	assert.False(t, c.Singletons().ContainsSingleton("x"))

	got, err := c.GetBean(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, "a", got)
}

func TestRegisterSingleton_OverridingDropsAlias(t *testing.T) {
	ctx := context.Background()
	c := container.New(container.WithAliasOverriding(true))
	require.NoError(t, c.RegisterSingleton("real", "a"))
	require.NoError(t, c.RegisterAlias("real", "x"))

	require.NoError(t, c.RegisterSingleton("x", "b"))
	assert.Empty(t, c.Aliases("real"))

	got, err := c.GetBean(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, "b", got)
}

// Removing the alias concurrently with a registration that claims the same
// name must not fail the registration.
func TestRegisterDefinition_AliasRemovedConcurrently(t *testing.T) {
	for round := 0; round < 100; round++ {
		c := container.New(container.WithAliasOverriding(true))
		require.NoError(t, c.RegisterSingleton("target", "t"))
		require.NoError(t, c.RegisterAlias("target", "name"))

		start := make(chan struct{})
		done := make(chan error, 1)
		go func() {
			<-start
			_ = c.RemoveAlias("name")
			done <- nil
		}()
		close(start)
		err := c.RegisterDefinition("name", &container.Definition{Factory: constant("own")})
		<-done

		require.NoError(t, err, "round %d", round)
		got, err := c.GetBean(context.Background(), "name")
		require.NoError(t, err)
		assert.Equal(t, "own", got)
	}
}

func TestIsNameInUse(t *testing.T) {
	c := container.New()
	require.NoError(t, c.RegisterDefinition("def", &container.Definition{Factory: constant("d")}))
	require.NoError(t, c.RegisterSingleton("single", "s"))
	require.NoError(t, c.RegisterAlias("def", "alias"))
	c.Dependencies().RegisterDependency("needed", "def")

	for _, id := range []string{"def", "single", "alias", "needed"} {
		assert.True(t, c.IsNameInUse(id), id)
	}
	assert.False(t, c.IsNameInUse("free"))
}

func TestRegisterDefinition_OverrideDestroysOldSingleton(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zap.InfoLevel)
	c := container.New(container.WithLogger(zap.New(core)))

	old := &closer{}
	require.NoError(t, c.RegisterDefinition("res", &container.Definition{Factory: constant(old)}))
	_, err := c.GetBean(ctx, "res")
	require.NoError(t, err)

	fresh := &closer{}
	require.NoError(t, c.RegisterDefinition("res", &container.Definition{Factory: constant(fresh)}))
	assert.Equal(t, 1, old.closed)
	assert.Equal(t, 1, logs.FilterMessage("overriding bean definition").Len())

	got, err := c.GetBean(ctx, "res")
	require.NoError(t, err)
	assert.Same(t, fresh, got)
}

func TestRemoveDefinition(t *testing.T) {
	ctx := context.Background()
	c := container.New()
	require.NoError(t, c.RegisterDefinition("svc", &container.Definition{Constructor: container.Ctor(newService)}))
	_, err := c.GetBean(ctx, "svc")
	require.NoError(t, err)

	require.NoError(t, c.RemoveDefinition("svc"))
	assert.False(t, c.ContainsBean("svc"))
	require.ErrorIs(t, c.RemoveDefinition("svc"), container.ErrNoSuchDefinition)
}

// ── Scopes ────────────────────────────────────────────────────────────────────

func TestRegisterScope_Reserved(t *testing.T) {
	c := container.New()
	require.ErrorIs(t, c.RegisterScope(container.ScopeSingleton, newMapScope()), container.ErrReservedScopeName)
	require.ErrorIs(t, c.RegisterScope(container.ScopePrototype, newMapScope()), container.ErrReservedScopeName)
}

func TestCustomScope_UnknownScope(t *testing.T) {
	c := container.New()
	require.NoError(t, c.RegisterDefinition("x", &container.Definition{Scope: "thread", Constructor: container.Ctor(newService)}))
	_, err := c.GetBean(context.Background(), "x")
	require.ErrorIs(t, err, container.ErrNoSuchScope)
}

func TestCustomScope_LifecycleAndDestruction(t *testing.T) {
	ctx := context.Background()
	c := container.New()
	scope := newMapScope()
	require.NoError(t, c.RegisterScope("map", scope))
	assert.Equal(t, []string{"map"}, c.ScopeNames())

	var made []*closer
	require.NoError(t, c.RegisterDefinition("conn", &container.Definition{
		Scope: "map",
		Factory: func(context.Context, *container.Container) (any, error) {
			cl := &closer{}
			made = append(made, cl)
			return cl, nil
		},
	}))

	a, err := c.GetBean(ctx, "conn")
	require.NoError(t, err)
	b, err := c.GetBean(ctx, "conn")
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.False(t, c.Singletons().ContainsSingleton("conn"))

	require.NoError(t, c.DestroyScopedBean(ctx, "conn"))
	assert.Equal(t, 1, made[0].closed)

	_, err = c.GetBean(ctx, "conn")
	require.NoError(t, err)
	require.Len(t, made, 2)
	scope.end()
	assert.Equal(t, 1, made[1].closed)
}

// ── Depends-on ────────────────────────────────────────────────────────────────

func TestDependsOn_CreatedFirstDestroyedLast(t *testing.T) {
	ctx := context.Background()
	c := container.New()
	j := &journal{}

	schema := nodeDef("schema", j)
	schema.Init = func(any) error { j.add("init schema"); return nil }
	require.NoError(t, c.RegisterDefinition("schema", schema))

	app := nodeDef("app", j)
	app.DependsOn = []string{"schema"}
	app.Init = func(any) error { j.add("init app"); return nil }
	require.NoError(t, c.RegisterDefinition("app", app))

	_, err := c.GetBean(ctx, "app")
	require.NoError(t, err)
	require.NoError(t, c.DestroyAll())

	assert.Equal(t, []string{"init schema", "init app", "app", "schema"}, j.list())
}

func TestDependsOn_Cycle(t *testing.T) {
	c := container.New()
	j := &journal{}
	x := nodeDef("x", j)
	x.DependsOn = []string{"y"}
	y := nodeDef("y", j)
	y.DependsOn = []string{"x"}
	require.NoError(t, c.RegisterDefinition("x", x))
	require.NoError(t, c.RegisterDefinition("y", y))

	_, err := c.GetBean(context.Background(), "x")
	require.ErrorIs(t, err, container.ErrCyclicDependsOn)
}

// ── Extenders, callbacks, tags, contextual ────────────────────────────────────

type loud struct{ inner *service }

func TestExtendAndAfterResolving(t *testing.T) {
	ctx := context.Background()
	c := container.New()
	require.NoError(t, c.RegisterDefinition("svc", &container.Definition{Constructor: container.Ctor(newService)}))
	c.Extend("svc", func(instance any, _ *container.Container) any {
		return &loud{inner: instance.(*service)}
	})
	var seen []string
	c.AfterResolving(func(id string, _ any) { seen = append(seen, id) })

	got, err := container.Resolve[*loud](ctx, c, "svc")
	require.NoError(t, err)
	assert.NotNil(t, got.inner)
	_, err = c.GetBean(ctx, "svc")
	require.NoError(t, err)
	assert.Equal(t, []string{"svc"}, seen, "callbacks fire on creation, not on cache hits")
}

func TestTagged(t *testing.T) {
	ctx := context.Background()
	c := container.New()
	require.NoError(t, c.RegisterDefinition("cpu", &container.Definition{Factory: constant("cpu"), Tags: []string{"reports"}}))
	require.NoError(t, c.RegisterDefinition("mem", &container.Definition{Factory: constant("mem")}))
	c.Tag([]string{"mem"}, "reports")

	got, err := c.Tagged(ctx, "reports")
	require.NoError(t, err)
	assert.Equal(t, []any{"cpu", "mem"}, got)

	none, err := c.Tagged(ctx, "nothing")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestContextualBinding(t *testing.T) {
	ctx := context.Background()
	c := container.New()
	require.NoError(t, c.RegisterSingleton("realRepo", &repository{}))
	require.NoError(t, c.RegisterSingleton("fakeRepo", &repository{}))
	for _, id := range []string{"svc", "other"} {
		require.NoError(t, c.RegisterDefinition(id, &container.Definition{
			Constructor: container.Ctor(newService),
			Properties: []container.Property{
				container.Inject("repo", "realRepo", func(s *service, r *repository) { s.repo = r }),
				container.Inject("name", "name", func(s *service, n string) { s.name = n }),
			},
		}))
	}
	require.NoError(t, c.RegisterSingleton("name", "default"))
	c.When("svc").Needs("realRepo").Give("fakeRepo")
	c.When("svc").Needs("name").GiveValue("contextual")

	svc := container.MustResolve[*service](ctx, c, "svc")
	other := container.MustResolve[*service](ctx, c, "other")
	fake := container.MustResolve[*repository](ctx, c, "fakeRepo")
	realRepo := container.MustResolve[*repository](ctx, c, "realRepo")

	assert.Same(t, fake, svc.repo)
	assert.Equal(t, "contextual", svc.name)
	assert.Same(t, realRepo, other.repo)
	assert.Equal(t, "default", other.name)
}

// ── Boot ──────────────────────────────────────────────────────────────────────

func TestPreInstantiateSingletons(t *testing.T) {
	ctx := context.Background()
	c := container.New()
	var built []string
	track := func(id string) container.FactoryFunc {
		return func(context.Context, *container.Container) (any, error) {
			built = append(built, id)
			return id, nil
		}
	}
	require.NoError(t, c.RegisterDefinition("eager1", &container.Definition{Factory: track("eager1")}))
	require.NoError(t, c.RegisterDefinition("lazy", &container.Definition{Factory: track("lazy"), Lazy: container.Bool(true)}))
	require.NoError(t, c.RegisterDefinition("proto", &container.Definition{Factory: track("proto"), Scope: container.ScopePrototype}))
	require.NoError(t, c.RegisterDefinition("tmpl", &container.Definition{Abstract: true}))
	require.NoError(t, c.RegisterDefinition("eager2", &container.Definition{Factory: track("eager2")}))

	require.NoError(t, c.PreInstantiateSingletons(ctx))
	assert.Equal(t, []string{"eager1", "eager2"}, built)
}

func TestPreInstantiateSingletons_StopsOnFailure(t *testing.T) {
	c := container.New()
	require.NoError(t, c.RegisterDefinition("bad", &container.Definition{
		Factory: func(context.Context, *container.Container) (any, error) { return nil, errBoom },
	}))
	err := c.PreInstantiateSingletons(context.Background())
	require.ErrorIs(t, err, errBoom)
}

// ── Parent / child ────────────────────────────────────────────────────────────

func TestChildContainer_FallsBackToParent(t *testing.T) {
	ctx := context.Background()
	parent := container.New()
	require.NoError(t, parent.RegisterDefinition("shared", &container.Definition{Constructor: container.Ctor(newRepository)}))
	require.NoError(t, parent.RegisterScope("map", newMapScope()))

	child := parent.NewChild()
	require.NoError(t, child.RegisterDefinition("local", &container.Definition{
		Constructor: container.Ctor(newService),
		Properties: []container.Property{
			container.Inject("repo", "shared", func(s *service, r *repository) { s.repo = r }),
		},
	}))

	local := container.MustResolve[*service](ctx, child, "local")
	shared := container.MustResolve[*repository](ctx, parent, "shared")
	assert.Same(t, shared, local.repo)
	assert.True(t, child.ContainsBean("shared"))
	assert.False(t, parent.ContainsBean("local"))
	assert.Same(t, parent, child.Parent())

	_, ok := child.Scope("map")
	assert.True(t, ok)
}

// ── Failure handling ──────────────────────────────────────────────────────────

func TestFactoryPanic_BecomesErrorAndRetries(t *testing.T) {
	ctx := context.Background()
	c := container.New()
	var calls atomic.Int32
	require.NoError(t, c.RegisterDefinition("flaky", &container.Definition{
		Factory: func(context.Context, *container.Container) (any, error) {
			if calls.Add(1) == 1 {
				panic("first call")
			}
			return "ok", nil
		},
	}))

	_, err := c.GetBean(ctx, "flaky")
	require.ErrorIs(t, err, container.ErrCreationFailure)
	assert.Contains(t, err.Error(), "panicked")
	assert.False(t, c.Singletons().IsCurrentlyInCreation("flaky"))

	got, err := c.GetBean(ctx, "flaky")
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.EqualValues(t, 2, calls.Load())
}

func TestInitFailure(t *testing.T) {
	c := container.New()
	require.NoError(t, c.RegisterDefinition("svc", &container.Definition{
		Constructor: container.Ctor(newService),
		Init:        func(any) error { return errBoom },
	}))
	_, err := c.GetBean(context.Background(), "svc")
	require.ErrorIs(t, err, errBoom)
	assert.False(t, c.Singletons().ContainsSingleton("svc"))
}

// ── Tracing ───────────────────────────────────────────────────────────────────

func TestTracing_SpanPerCreation(t *testing.T) {
	ctx := context.Background()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	c := container.New(container.WithTracer(tp.Tracer("test")))

	require.NoError(t, c.RegisterDefinition("ok", &container.Definition{Factory: constant("ok")}))
	require.NoError(t, c.RegisterDefinition("bad", &container.Definition{
		Factory: func(context.Context, *container.Container) (any, error) { return nil, errBoom },
	}))

	_, err := c.GetBean(ctx, "ok")
	require.NoError(t, err)
	_, err = c.GetBean(ctx, "ok")
	require.NoError(t, err)
	_, err = c.GetBean(ctx, "bad")
	require.Error(t, err)

	spans := sr.Ended()
	require.Len(t, spans, 2, "cache hits open no span")
	assert.Equal(t, "container.create", spans[0].Name())
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
	assert.Equal(t, codes.Error, spans[1].Status().Code)

	var ids []string
	for _, s := range spans {
		for _, kv := range s.Attributes() {
			if kv.Key == "bean.id" {
				ids = append(ids, kv.Value.AsString())
			}
		}
	}
	assert.Equal(t, "ok,bad", strings.Join(ids, ","))
}

func TestErrorKinds(t *testing.T) {
	err := &container.DestructionError{ID: "x", Err: errBoom}
	assert.True(t, errors.Is(err, container.ErrDestructionFailure))
	assert.True(t, errors.Is(err, errBoom))
	assert.False(t, errors.Is(err, container.ErrCreationFailure))
}
