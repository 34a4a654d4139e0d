package container

import (
	"context"
	"fmt"
	"reflect"
	"sort"
)

// Built-in scope names. Neither can be replaced through RegisterScope.
const (
	ScopeSingleton = "singleton"
	ScopePrototype = "prototype"
)

// Constructor builds the phase-1 instance of a bean from its resolved
// constructor arguments (Definition.Args, in order). The returned value is
// the addressable handle that property population and init operate on, so it
// should normally be a pointer.
type Constructor func(args []any) (any, error)

// FactoryFunc is the factory-method alternative to Constructor. It receives
// the container and must pass ctx to every nested GetBean call so that the
// nested resolution joins the current creation chain.
//
//	// Laravel: $app->singleton('cache', fn($app) => new RedisCache($app['config']))
//	Factory: func(ctx context.Context, c *container.Container) (any, error) {
//	    cfg, err := container.Resolve[*Config](ctx, c, "config")
//	    ...
//	}
type FactoryFunc func(ctx context.Context, c *Container) (any, error)

// Property is a phase-2 injection: either a reference to another bean (Ref)
// or a literal Value, handed to Set together with the target instance.
type Property struct {
	Name  string
	Ref   string
	Value any
	Set   func(target, value any) error
}

// Definition describes how to build, initialise and destroy one bean.
// Zero-valued fields are "unset" and inherit from Parent when the definition
// is merged.
type Definition struct {
	// Type, when set, is checked against the created instance.
	Type reflect.Type

	// Scope defaults to ScopeSingleton.
	Scope string

	// Parent names a definition this one inherits unset fields from.
	Parent string

	// Abstract definitions only serve as parents and cannot be instantiated.
	Abstract bool

	// Lazy singletons are skipped by PreInstantiateSingletons.
	Lazy *bool

	// DependsOn lists beans that must be created (and destroyed after) this
	// one even though it does not reference them.
	DependsOn []string

	// Args are bean ids resolved before Constructor runs. Cycles through
	// constructor arguments cannot be broken.
	Args []string

	Constructor Constructor
	Factory     FactoryFunc

	Properties []Property

	// Init runs after population; instances implementing Initializer are
	// also initialised through it.
	Init func(instance any) error

	// Destroy runs on teardown; instances implementing io.Closer are also
	// closed.
	Destroy func(instance any) error

	Tags        []string
	Description string

	// Attributes carry arbitrary metadata for tooling and post-processors.
	// A child's attributes are layered over its parent's.
	Attributes map[string]any
}

// Initializer is implemented by beans that need a hook once all properties
// are set.
type Initializer interface {
	Init() error
}

// Bool returns a pointer to v, for Definition.Lazy.
func Bool(v bool) *bool { return &v }

// TypeOf returns the reflect.Type of T, for Definition.Type.
func TypeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// IsLazy reports whether the definition is marked lazy.
func (d *Definition) IsLazy() bool { return d.Lazy != nil && *d.Lazy }

// ScopeName returns the effective scope, defaulting to singleton.
func (d *Definition) ScopeName() string {
	if d.Scope == "" {
		return ScopeSingleton
	}
	return d.Scope
}

// IsSingleton reports whether the effective scope is singleton.
func (d *Definition) IsSingleton() bool { return d.ScopeName() == ScopeSingleton }

// IsPrototype reports whether the effective scope is prototype.
func (d *Definition) IsPrototype() bool { return d.ScopeName() == ScopePrototype }

// SetAttribute sets a metadata attribute; a nil value removes it.
func (d *Definition) SetAttribute(name string, value any) {
	if value == nil {
		d.RemoveAttribute(name)
		return
	}
	if d.Attributes == nil {
		d.Attributes = make(map[string]any)
	}
	d.Attributes[name] = value
}

// Attribute returns the attribute called name.
func (d *Definition) Attribute(name string) (any, bool) {
	v, ok := d.Attributes[name]
	return v, ok
}

// RemoveAttribute deletes name and returns its previous value.
func (d *Definition) RemoveAttribute(name string) any {
	v := d.Attributes[name]
	delete(d.Attributes, name)
	return v
}

// HasAttribute reports whether name is set.
func (d *Definition) HasAttribute(name string) bool {
	_, ok := d.Attributes[name]
	return ok
}

// AttributeNames returns the attribute names, sorted.
func (d *Definition) AttributeNames() []string {
	names := make([]string, 0, len(d.Attributes))
	for name := range d.Attributes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// clone returns a copy that shares no slices or maps with d.
func (d *Definition) clone() *Definition {
	cp := *d
	cp.DependsOn = cloneStrings(d.DependsOn)
	cp.Args = cloneStrings(d.Args)
	cp.Tags = cloneStrings(d.Tags)
	if d.Properties != nil {
		cp.Properties = append([]Property(nil), d.Properties...)
	}
	if d.Lazy != nil {
		cp.Lazy = Bool(*d.Lazy)
	}
	if d.Attributes != nil {
		cp.Attributes = make(map[string]any, len(d.Attributes))
		for k, v := range d.Attributes {
			cp.Attributes[k] = v
		}
	}
	return &cp
}

// mergeOver returns a new definition with child's set fields layered over
// parent. The result has no Parent.
func mergeOver(parent, child *Definition) *Definition {
	out := parent.clone()
	out.Parent = ""
	out.Abstract = child.Abstract

	if child.Type != nil {
		out.Type = child.Type
	}
	if child.Scope != "" {
		out.Scope = child.Scope
	}
	if child.Lazy != nil {
		out.Lazy = Bool(*child.Lazy)
	}
	if child.DependsOn != nil {
		out.DependsOn = cloneStrings(child.DependsOn)
	}
	if child.Constructor != nil || child.Factory != nil {
		out.Constructor = child.Constructor
		out.Factory = child.Factory
		out.Args = cloneStrings(child.Args)
	} else if child.Args != nil {
		out.Args = cloneStrings(child.Args)
	}
	if child.Init != nil {
		out.Init = child.Init
	}
	if child.Destroy != nil {
		out.Destroy = child.Destroy
	}
	if child.Tags != nil {
		out.Tags = cloneStrings(child.Tags)
	}
	if child.Description != "" {
		out.Description = child.Description
	}
	for k, v := range child.Attributes {
		out.SetAttribute(k, v)
	}

	// Properties merge by name; the child's value wins.
	for _, p := range child.Properties {
		replaced := false
		for i := range out.Properties {
			if out.Properties[i].Name == p.Name {
				out.Properties[i] = p
				replaced = true
				break
			}
		}
		if !replaced {
			out.Properties = append(out.Properties, p)
		}
	}
	return out
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}

// ── Typed helpers ─────────────────────────────────────────────────────────────

// Ctor adapts a no-argument constructor.
//
//	Constructor: container.Ctor(NewUserRepository)
func Ctor[T any](fn func() T) Constructor {
	return func([]any) (any, error) { return fn(), nil }
}

// Ctor1 adapts a one-argument constructor; the argument is Definition.Args[0].
func Ctor1[A, T any](fn func(A) (T, error)) Constructor {
	return func(args []any) (any, error) {
		a, err := arg[A](args, 0)
		if err != nil {
			return nil, err
		}
		return fn(a)
	}
}

// Ctor2 adapts a two-argument constructor.
func Ctor2[A, B, T any](fn func(A, B) (T, error)) Constructor {
	return func(args []any) (any, error) {
		a, err := arg[A](args, 0)
		if err != nil {
			return nil, err
		}
		b, err := arg[B](args, 1)
		if err != nil {
			return nil, err
		}
		return fn(a, b)
	}
}

func arg[A any](args []any, i int) (A, error) {
	var zero A
	if i >= len(args) {
		return zero, fmt.Errorf("%w: constructor wants argument %d, got %d", ErrInvalidDefinition, i, len(args))
	}
	v, ok := args[i].(A)
	if !ok {
		return zero, fmt.Errorf("%w: argument %d is %T, want %s", ErrTypeMismatch, i, args[i], TypeOf[A]())
	}
	return v, nil
}

// Inject builds a property that injects the bean named ref into a T.
//
//	container.Inject("repo", "userRepository", func(s *UserService, r *UserRepository) { s.Repo = r })
func Inject[T, D any](name, ref string, set func(T, D)) Property {
	return Property{Name: name, Ref: ref, Set: setter(set)}
}

// Value builds a property that sets a literal value on a T.
func Value[T, V any](name string, v V, set func(T, V)) Property {
	return Property{Name: name, Value: v, Set: setter(set)}
}

func setter[T, D any](set func(T, D)) func(target, value any) error {
	return func(target, value any) error {
		t, ok := target.(T)
		if !ok {
			return fmt.Errorf("%w: target is %T, want %s", ErrTypeMismatch, target, TypeOf[T]())
		}
		d, ok := value.(D)
		if !ok {
			return fmt.Errorf("%w: value is %T, want %s", ErrTypeMismatch, value, TypeOf[D]())
		}
		set(t, d)
		return nil
	}
}
