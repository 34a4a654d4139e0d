package container

import (
	"context"
	"fmt"
	"sync"
)

// ── ServiceProvider interface ─────────────────────────────────────────────────

// ServiceProvider groups related bean definitions.
//
// Register runs first for every eager provider and should only add
// definitions, aliases and scopes. Boot runs after all providers are
// registered, so it may resolve beans.
//
//	type StorageProvider struct{ container.BaseProvider }
//
//	func (p *StorageProvider) Register(app *container.Container) error {
//	    return app.RegisterDefinition("store", &container.Definition{
//	        Factory: func(ctx context.Context, c *container.Container) (any, error) {
//	            return storage.Open(ctx)
//	        },
//	    })
//	}
type ServiceProvider interface {
	Register(app *Container) error
	Boot(ctx context.Context, app *Container) error

	// Provides lists the bean ids a deferred provider defines.
	//
	//	// Laravel: public function provides(): array { return [Cache::class]; }
	Provides() []string

	// IsDeferred makes the provider register only when one of its Provides()
	// ids is first requested.
	IsDeferred() bool
}

// ── BaseProvider ──────────────────────────────────────────────────────────────

// BaseProvider is an embeddable no-op Boot/Provides/IsDeferred.
//
//	type MyProvider struct{ container.BaseProvider }
//	func (p *MyProvider) Register(app *container.Container) error { ... }
type BaseProvider struct{}

func (p *BaseProvider) Boot(context.Context, *Container) error { return nil }
func (p *BaseProvider) Provides() []string                     { return nil }
func (p *BaseProvider) IsDeferred() bool                       { return false }

// ── ProviderRegistry ──────────────────────────────────────────────────────────

// ProviderRegistry registers and boots ServiceProviders against one
// container. Deferred providers are hooked into the container's deferred
// loading so their Register runs on first lookup of a provided id.
type ProviderRegistry struct {
	app *Container

	mu         sync.Mutex
	eager      []ServiceProvider
	registered map[ServiceProvider]bool
	booted     bool
	bootCtx    context.Context
}

// NewProviderRegistry creates a registry bound to app.
func NewProviderRegistry(app *Container) *ProviderRegistry {
	return &ProviderRegistry{
		app:        app,
		registered: make(map[ServiceProvider]bool),
	}
}

// Register adds a provider. Eager providers register immediately (and boot
// immediately if the registry already booted); registering the same
// provider twice is a no-op.
func (r *ProviderRegistry) Register(provider ServiceProvider) error {
	r.mu.Lock()
	if r.registered[provider] {
		r.mu.Unlock()
		return nil
	}
	r.registered[provider] = true
	booted, bootCtx := r.booted, r.bootCtx
	r.mu.Unlock()

	if provider.IsDeferred() {
		r.app.Defer(provider.Provides(), func() error {
			return r.loadDeferred(provider)
		})
		return nil
	}

	if err := provider.Register(r.app); err != nil {
		return fmt.Errorf("register %T: %w", provider, err)
	}

	r.mu.Lock()
	r.eager = append(r.eager, provider)
	r.mu.Unlock()

	if booted {
		if err := provider.Boot(bootCtx, r.app); err != nil {
			return fmt.Errorf("boot %T: %w", provider, err)
		}
	}
	return nil
}

// loadDeferred registers a deferred provider and, once the registry has
// booted, boots it.
func (r *ProviderRegistry) loadDeferred(provider ServiceProvider) error {
	if err := provider.Register(r.app); err != nil {
		return fmt.Errorf("register deferred %T: %w", provider, err)
	}
	r.mu.Lock()
	booted, bootCtx := r.booted, r.bootCtx
	r.mu.Unlock()
	if booted {
		if err := provider.Boot(bootCtx, r.app); err != nil {
			return fmt.Errorf("boot deferred %T: %w", provider, err)
		}
	}
	return nil
}

// Boot boots every eager provider in registration order. A second call is a
// no-op.
//
//	// Laravel: $app->boot()
func (r *ProviderRegistry) Boot(ctx context.Context) error {
	r.mu.Lock()
	if r.booted {
		r.mu.Unlock()
		return nil
	}
	r.booted = true
	r.bootCtx = context.WithoutCancel(ctx)
	providers := append([]ServiceProvider(nil), r.eager...)
	r.mu.Unlock()

	for _, provider := range providers {
		if err := provider.Boot(ctx, r.app); err != nil {
			return fmt.Errorf("boot %T: %w", provider, err)
		}
	}
	return nil
}

// Booted reports whether Boot has been called.
func (r *ProviderRegistry) Booted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.booted
}

// Providers returns the eager providers in registration order.
func (r *ProviderRegistry) Providers() []ServiceProvider {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ServiceProvider(nil), r.eager...)
}
