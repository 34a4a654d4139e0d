package container

import (
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

// Option configures a Container at construction.
type Option func(*options)

type options struct {
	log                     *zap.Logger
	tracer                  trace.Tracer
	allowAliasOverriding    bool
	allowCircularReferences bool
	parent                  *Container
}

func defaultOptions() options {
	return options{
		log:                     zap.NewNop(),
		tracer:                  noop.NewTracerProvider().Tracer(""),
		allowCircularReferences: true,
	}
}

// WithLogger sets the logger used for lifecycle events. The default discards
// everything.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// WithTracer makes the container open one span per bean creation.
func WithTracer(t trace.Tracer) Option {
	return func(o *options) {
		if t != nil {
			o.tracer = t
		}
	}
}

// WithAliasOverriding lets RegisterAlias re-point an existing alias, and lets
// a definition take over a name currently used as an alias. Off by default.
func WithAliasOverriding(allow bool) Option {
	return func(o *options) { o.allowAliasOverriding = allow }
}

// WithCircularReferences controls early exposure of singletons under
// construction. With it off, every circular reference fails with
// ErrCircularReferenceUnresolvable. On by default.
func WithCircularReferences(allow bool) Option {
	return func(o *options) { o.allowCircularReferences = allow }
}

// WithParent makes definition lookups that miss locally fall through to p.
func WithParent(p *Container) Option {
	return func(o *options) { o.parent = p }
}
