package providers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/km-arc/go-beans/framework/config"
	"github.com/km-arc/go-beans/framework/container"
	gohttp "github.com/km-arc/go-beans/framework/http"
	"github.com/km-arc/go-beans/framework/routing"
	"github.com/km-arc/go-beans/framework/scopes"
	"github.com/km-arc/go-beans/framework/tracing"
)

// ── ConfigServiceProvider ─────────────────────────────────────────────────────

// ConfigServiceProvider binds the loaded configuration.
//
// Beans:
//   - "config"  → *config.Config
//   - "configuration" alias of "config"
type ConfigServiceProvider struct {
	container.BaseProvider
	Config *config.Config
}

func (p *ConfigServiceProvider) Register(app *container.Container) error {
	if err := app.RegisterSingleton("config", p.Config); err != nil {
		return err
	}
	return app.RegisterAlias("config", "configuration")
}

// ── LoggingServiceProvider ────────────────────────────────────────────────────

// LoggingServiceProvider binds the application logger. The logger is flushed
// when the container shuts down, after every bean that uses it.
//
// Beans:
//   - "logger" → *zap.Logger
type LoggingServiceProvider struct {
	container.BaseProvider
	Logger *zap.Logger
}

func (p *LoggingServiceProvider) Register(app *container.Container) error {
	log := p.Logger
	return app.RegisterDefinition("logger", &container.Definition{
		Type:        container.TypeOf[*zap.Logger](),
		Factory:     func(context.Context, *container.Container) (any, error) { return log, nil },
		Destroy:     func(any) error { _ = log.Sync(); return nil },
		Description: "application logger",
	})
}

// ── TracingServiceProvider ────────────────────────────────────────────────────

// TracingServiceProvider binds the trace provider so that shutting the
// container down flushes spans.
//
// Beans:
//   - "tracing" → *tracing.Provider
type TracingServiceProvider struct {
	container.BaseProvider
	Provider *tracing.Provider
}

func (p *TracingServiceProvider) Register(app *container.Container) error {
	tp := p.Provider
	return app.RegisterDefinition("tracing", &container.Definition{
		Factory: func(context.Context, *container.Container) (any, error) { return tp, nil },
		Destroy: func(any) error { return tp.Shutdown(context.Background()) },
	})
}

// ── ScopesServiceProvider ─────────────────────────────────────────────────────

// ScopesServiceProvider registers the "request" and "session" scopes. The
// session store is itself a bean so DestroyAll ends every open session.
//
// Beans:
//   - "scope.request" → *scopes.Request
//   - "scope.session" → *scopes.Session
type ScopesServiceProvider struct {
	container.BaseProvider
}

func (p *ScopesServiceProvider) Register(app *container.Container) error {
	if err := app.RegisterDefinition("scope.request", &container.Definition{
		Args:        []string{"logger"},
		Constructor: container.Ctor1(func(log *zap.Logger) (*scopes.Request, error) { return scopes.NewRequest(log), nil }),
	}); err != nil {
		return err
	}
	return app.RegisterDefinition("scope.session", &container.Definition{
		Args: []string{"config", "logger"},
		Constructor: container.Ctor2(func(cfg *config.Config, log *zap.Logger) (*scopes.Session, error) {
			return scopes.NewSession(cfg.Session.TTL, cfg.Session.Cleanup, log), nil
		}),
	})
}

func (p *ScopesServiceProvider) Boot(ctx context.Context, app *container.Container) error {
	req, err := container.Resolve[*scopes.Request](ctx, app, "scope.request")
	if err != nil {
		return err
	}
	session, err := container.Resolve[*scopes.Session](ctx, app, "scope.session")
	if err != nil {
		return err
	}
	if err := app.RegisterScope(scopes.RequestScopeName, req); err != nil {
		return err
	}
	return app.RegisterScope(scopes.SessionScopeName, session)
}

// ── RoutingServiceProvider ────────────────────────────────────────────────────

// RoutingServiceProvider registers the HTTP router with the request and
// session scope middleware, and mounts the container inspection routes.
//
// Beans:
//   - "router" → *routing.Router
type RoutingServiceProvider struct {
	container.BaseProvider
}

func (p *RoutingServiceProvider) Register(app *container.Container) error {
	return app.RegisterDefinition("router", &container.Definition{
		Args: []string{"logger"},
		Constructor: container.Ctor1(func(log *zap.Logger) (*routing.Router, error) {
			r := routing.New(log)
			r.Middleware(routing.RequestScope, routing.SessionScope)
			return r, nil
		}),
	})
}

func (p *RoutingServiceProvider) Boot(ctx context.Context, app *container.Container) error {
	r, err := container.Resolve[*routing.Router](ctx, app, "router")
	if err != nil {
		return err
	}
	r.Prefix("/debug", func(d *routing.Router) {
		d.Get("/beans", gohttp.BeansHandler(app))
		d.Get("/beans/{id}", gohttp.BeanHandler(app))
	})
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		gohttp.NewResponse(w).Success(map[string]any{"status": "ok"})
	})
	return nil
}
