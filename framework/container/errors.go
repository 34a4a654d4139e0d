package container

import (
	"errors"
	"strings"
)

var (
	// ErrNoSuchDefinition is returned when an identifier has no definition in
	// the container (or any of its parents).
	ErrNoSuchDefinition = errors.New("no such bean definition")

	// ErrNoSuchAlias is returned when removing an alias that is not registered.
	ErrNoSuchAlias = errors.New("no such alias")

	// ErrCyclicAlias is returned when an alias chain revisits a name.
	ErrCyclicAlias = errors.New("cyclic alias")

	// ErrCyclicParent is returned when a definition's parent chain cycles.
	ErrCyclicParent = errors.New("cyclic parent definition")

	// ErrConflictingAlias is returned when an alias is already bound to a
	// different name, or collides with a definition name.
	ErrConflictingAlias = errors.New("conflicting alias")

	// ErrAlreadyRegistered is returned by RegisterSingleton when the
	// identifier already has a finished singleton.
	ErrAlreadyRegistered = errors.New("singleton already registered")

	// ErrCircularReferenceUnresolvable is returned when a bean is requested
	// while it is being created and no early reference is available, e.g. a
	// constructor-argument cycle.
	ErrCircularReferenceUnresolvable = errors.New("unresolvable circular reference")

	// ErrCyclicDependsOn is returned when explicit depends-on declarations
	// form a cycle.
	ErrCyclicDependsOn = errors.New("circular depends-on relationship")

	// ErrReservedScopeName is returned when registering a scope under
	// "singleton" or "prototype".
	ErrReservedScopeName = errors.New("reserved scope name")

	// ErrNoSuchScope is returned when a definition names a scope that was
	// never registered.
	ErrNoSuchScope = errors.New("no such scope")

	// ErrAbstractDefinition is returned when an abstract (template-only)
	// definition is requested as a bean.
	ErrAbstractDefinition = errors.New("bean definition is abstract")

	// ErrInvalidDefinition is returned when a definition cannot produce an
	// instance (no constructor, empty id, ...).
	ErrInvalidDefinition = errors.New("invalid bean definition")

	// ErrTypeMismatch is returned when a created instance is not assignable
	// to the definition's declared type, or Resolve cannot convert it.
	ErrTypeMismatch = errors.New("bean type mismatch")

	// ErrCreationNotAllowed is returned when a singleton is requested while
	// the container is destroying its singletons.
	ErrCreationNotAllowed = errors.New("singleton creation not allowed while singletons are being destroyed")

	// ErrCreationFailure matches every *CreationError.
	ErrCreationFailure = errors.New("bean creation failed")

	// ErrDestructionFailure matches every *DestructionError.
	ErrDestructionFailure = errors.New("bean destruction failed")
)

// CreationError wraps any error raised while constructing, populating or
// initialising a bean.
type CreationError struct {
	ID    string
	Chain []string
	Err   error
}

func (e *CreationError) Error() string {
	var b strings.Builder
	b.WriteString("error creating bean ")
	b.WriteString(quote(e.ID))
	if len(e.Chain) > 1 {
		b.WriteString(" (chain: ")
		b.WriteString(strings.Join(e.Chain, " -> "))
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *CreationError) Unwrap() error { return e.Err }

// Is reports ErrCreationFailure as a match so callers can test the kind
// without errors.As.
func (e *CreationError) Is(target error) bool { return target == ErrCreationFailure }

// DestructionError wraps an error raised by a disposal callback. Teardown
// collects these instead of stopping.
type DestructionError struct {
	ID  string
	Err error
}

func (e *DestructionError) Error() string {
	return "error destroying bean " + quote(e.ID) + ": " + e.Err.Error()
}

func (e *DestructionError) Unwrap() error { return e.Err }

func (e *DestructionError) Is(target error) bool { return target == ErrDestructionFailure }

func quote(s string) string { return `"` + s + `"` }
