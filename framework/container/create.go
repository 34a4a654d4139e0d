package container

import (
	"context"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ── Resolution ────────────────────────────────────────────────────────────────

// GetBean returns the bean for id, creating it according to its scope.
// Factories must pass their ctx to nested GetBean calls; that is how the
// container follows a creation chain and detects circular references.
//
//	// Laravel: $app->make('cache')
//	raw, err := c.GetBean(ctx, "cache")
func (c *Container) GetBean(ctx context.Context, id string) (any, error) {
	name, err := c.aliases.Resolve(id)
	if err != nil {
		return nil, err
	}
	ctx, chain := withChain(ctx)

	bean, err := c.doGetBean(ctx, name, chain)
	if err != nil {
		return nil, err
	}
	c.graph.RegisterDependency(name, chain.current())
	return bean, nil
}

func (c *Container) doGetBean(ctx context.Context, name string, chain *creationChain) (any, error) {
	if obj, ok := c.singletons.Singleton(name); ok {
		return obj, nil
	}

	def, err := c.defs.GetMerged(name)
	if err != nil {
		if !c.defs.Contains(name) {
			return c.getMissing(ctx, name, chain, err)
		}
		return nil, err
	}
	if def.Abstract {
		return nil, fmt.Errorf("%w: %q", ErrAbstractDefinition, name)
	}

	switch {
	case def.IsSingleton():
		// The disposal callback is installed while the registry publishes the
		// instance, so a concurrent destroy sees both or neither.
		var dispose func() error
		return c.singletons.getSingleton(ctx, name, func(ctx context.Context) (any, error) {
			bean, d, err := c.createBean(ctx, name, def)
			dispose = d
			return bean, err
		}, func() {
			if dispose != nil {
				c.disposals.RegisterDisposal(name, dispose)
			}
		})

	case def.IsPrototype():
		if chain.contains(name) {
			return nil, circularError(chain, name)
		}
		obj, _, err := c.createBean(ctx, name, def)
		return obj, err

	default:
		scope, ok := c.Scope(def.ScopeName())
		if !ok {
			return nil, fmt.Errorf("%w: %q (bean %q)", ErrNoSuchScope, def.ScopeName(), name)
		}
		if chain.contains(name) {
			return nil, circularError(chain, name)
		}
		return scope.Get(ctx, name, func() (any, error) {
			obj, _, err := c.createBean(ctx, name, def)
			if err != nil {
				return nil, err
			}
			if needsDestroy(def, obj) {
				scope.RegisterDestructionCallback(ctx, name, func() {
					if err := destroyInstance(def, obj); err != nil {
						c.log.Warn("scoped bean destruction failed", zap.String("bean", name),
							zap.String("scope", def.ScopeName()), zap.Error(err))
					}
				})
			}
			return obj, nil
		})
	}
}

// getMissing handles an id with no local definition: a deferred loader gets
// the first chance, then the parent container.
func (c *Container) getMissing(ctx context.Context, name string, chain *creationChain, notFound error) (any, error) {
	loaded, err := c.loadDeferred(name)
	if err != nil {
		return nil, &CreationError{ID: name, Chain: chain.path(name), Err: err}
	}
	if loaded {
		if !c.defs.Contains(name) && !c.singletons.ContainsSingleton(name) {
			return nil, notFound
		}
		return c.doGetBean(ctx, name, chain)
	}
	if c.parent != nil {
		// Parent beans never depend on child beans; start a fresh chain so the
		// parent does not record edges to ids it does not own.
		return c.parent.GetBean(detachChain(ctx), name)
	}
	return nil, notFound
}

func detachChain(ctx context.Context) context.Context {
	return context.WithValue(ctx, chainKey{}, (*creationChain)(nil))
}

// createDependsOn creates every explicit depends-on bean of name first. The
// edge is recorded before the nested GetBean so that a depends-on cycle is
// reported as one.
func (c *Container) createDependsOn(ctx context.Context, name string, def *Definition) error {
	for _, dep := range def.DependsOn {
		depName, err := c.aliases.Resolve(dep)
		if err != nil {
			return err
		}
		if depName == name || c.graph.IsDependent(name, depName) {
			return fmt.Errorf("%w: %q and %q", ErrCyclicDependsOn, name, depName)
		}
		c.graph.RegisterDependency(depName, name)
		if _, err := c.GetBean(ctx, depName); err != nil {
			return fmt.Errorf("depends-on %q: %w", depName, err)
		}
	}
	return nil
}

func circularError(chain *creationChain, name string) error {
	return fmt.Errorf("%w: %q is currently in creation (%s)",
		ErrCircularReferenceUnresolvable, name, strings.Join(chain.path(name), " -> "))
}

// ── Creation ──────────────────────────────────────────────────────────────────

// createBean runs the full construction sequence for one instance, from
// depends-on through extenders. For a singleton that needs teardown it also
// returns the disposal callback.
func (c *Container) createBean(ctx context.Context, name string, def *Definition) (any, func() error, error) {
	parentChain := chainFrom(ctx)
	if parentChain.current() == name {
		// Already pushed by the singleton registry.
		parentChain = parentChain.parent()
	} else {
		ctx = pushChain(ctx, name)
	}

	ctx, span := c.tracer.Start(ctx, "container.create", trace.WithAttributes(
		attribute.String("bean.id", name),
		attribute.String("bean.scope", def.ScopeName()),
	))
	defer span.End()

	obj, err := c.doCreateBean(ctx, name, def)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		var ce *CreationError
		if !errors.As(err, &ce) || ce.ID != name {
			err = &CreationError{ID: name, Chain: parentChain.path(name), Err: err}
		}
		c.log.Debug("bean creation failed", zap.String("bean", name), zap.Error(err))
		return nil, nil, err
	}

	var dispose func() error
	if def.IsSingleton() && needsDestroy(def, obj) {
		dispose = func() error { return destroyInstance(def, obj) }
	}
	c.fireAfterResolving(name, obj)
	return obj, dispose, nil
}

func (c *Container) doCreateBean(ctx context.Context, name string, def *Definition) (any, error) {
	if err := c.createDependsOn(ctx, name, def); err != nil {
		return nil, err
	}

	obj, err := c.instantiate(ctx, name, def)
	if err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, fmt.Errorf("%w: constructor for %q returned nil", ErrInvalidDefinition, name)
	}
	if def.Type != nil && !reflect.TypeOf(obj).AssignableTo(def.Type) {
		return nil, fmt.Errorf("%w: %q built a %T, declared %s", ErrTypeMismatch, name, obj, def.Type)
	}

	if def.IsSingleton() && c.allowCircularReferences {
		raw := obj
		c.singletons.ExposeEarlyReference(name, func() any { return c.earlyReference(name, raw) })
	}

	if err := c.populate(ctx, name, def, obj); err != nil {
		return nil, err
	}

	processors := c.postProcessorList()
	exposed, err := runPostProcessors(processors, name, obj, func(p PostProcessor) postProcessFunc { return p.BeforeInit })
	if err != nil {
		return nil, err
	}
	if err := initialize(def, exposed); err != nil {
		return nil, err
	}
	exposed, err = runPostProcessors(processors, name, exposed, func(p PostProcessor) postProcessFunc { return p.AfterInit })
	if err != nil {
		return nil, err
	}

	// Beans in a cycle already hold the early reference. If no processor
	// replaced the raw instance, the early reference (possibly wrapped by an
	// EarlyReference hook) is what gets published.
	if def.IsSingleton() {
		if early, ok := c.singletons.handedOutEarly(name); ok && sameInstance(exposed, obj) {
			exposed = early
		}
	}
	return c.applyExtenders(name, exposed), nil
}

type postProcessFunc func(id string, instance any) (any, error)

func runPostProcessors(processors []PostProcessor, name string, obj any, pick func(PostProcessor) postProcessFunc) (any, error) {
	for _, p := range processors {
		fn := pick(p)
		if fn == nil {
			continue
		}
		next, err := fn(name, obj)
		if err != nil {
			return nil, fmt.Errorf("post-processor: %w", err)
		}
		if next != nil {
			obj = next
		}
	}
	return obj, nil
}

// earlyReference passes raw through every EarlyReference hook. It runs under
// the singleton registry lock.
func (c *Container) earlyReference(name string, raw any) any {
	obj := raw
	for _, p := range c.postProcessorList() {
		if p.EarlyReference == nil {
			continue
		}
		if next := p.EarlyReference(name, obj); next != nil {
			obj = next
		}
	}
	return obj
}

func (c *Container) instantiate(ctx context.Context, name string, def *Definition) (obj any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			obj, err = nil, fmt.Errorf("constructor panicked: %v", rec)
		}
	}()

	if def.Factory != nil {
		return def.Factory(ctx, c)
	}
	if def.Constructor == nil {
		return nil, fmt.Errorf("%w: %q has neither constructor nor factory", ErrInvalidDefinition, name)
	}

	args := make([]any, 0, len(def.Args))
	for _, ref := range def.Args {
		v, err := c.resolveRef(ctx, name, ref)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}
	return def.Constructor(args)
}

func (c *Container) populate(ctx context.Context, name string, def *Definition, obj any) error {
	for _, p := range def.Properties {
		if p.Set == nil {
			return fmt.Errorf("%w: property %q of %q has no setter", ErrInvalidDefinition, p.Name, name)
		}
		value := p.Value
		if p.Ref != "" {
			v, err := c.resolveRef(ctx, name, p.Ref)
			if err != nil {
				return err
			}
			value = v
		}
		if err := p.Set(obj, value); err != nil {
			return fmt.Errorf("property %q: %w", p.Name, err)
		}
	}
	return nil
}

func initialize(def *Definition, obj any) error {
	if i, ok := obj.(Initializer); ok {
		if err := i.Init(); err != nil {
			return fmt.Errorf("init: %w", err)
		}
	}
	if def.Init != nil {
		if err := def.Init(obj); err != nil {
			return fmt.Errorf("init: %w", err)
		}
	}
	return nil
}

// ── Destruction ───────────────────────────────────────────────────────────────

func needsDestroy(def *Definition, obj any) bool {
	if def.Destroy != nil {
		return true
	}
	_, ok := obj.(io.Closer)
	return ok
}

// destroyInstance runs def.Destroy, or Close for an io.Closer.
func destroyInstance(def *Definition, obj any) error {
	if def.Destroy != nil {
		return def.Destroy(obj)
	}
	if closer, ok := obj.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
