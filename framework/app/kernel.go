// Package app wires configuration, logging, tracing and the framework
// providers around one container.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/km-arc/go-beans/framework/config"
	"github.com/km-arc/go-beans/framework/container"
	"github.com/km-arc/go-beans/framework/logging"
	"github.com/km-arc/go-beans/framework/providers"
	"github.com/km-arc/go-beans/framework/routing"
	"github.com/km-arc/go-beans/framework/tracing"
)

const shutdownTimeout = 10 * time.Second

// Application is the top-level application container.
// It embeds the Container and ProviderRegistry so user code can call
// app.RegisterDefinition(), app.Register() directly.
type Application struct {
	*container.Container
	Providers *container.ProviderRegistry

	cfg *config.Config
	log *zap.Logger
}

// Option customises New.
type Option func(*settings)

type settings struct {
	log   *zap.Logger
	trace *tracing.Provider
}

// WithLogger replaces the logger built from configuration.
func WithLogger(l *zap.Logger) Option { return func(s *settings) { s.log = l } }

// WithTracing replaces the trace provider built from configuration.
func WithTracing(p *tracing.Provider) Option { return func(s *settings) { s.trace = p } }

// New builds the logger and tracer from cfg, creates the container and
// registers the framework providers.
func New(cfg *config.Config, opts ...Option) (*Application, error) {
	var s settings
	for _, opt := range opts {
		opt(&s)
	}

	if s.log == nil {
		l, err := logging.New(cfg)
		if err != nil {
			return nil, err
		}
		s.log = l
	}
	if s.trace == nil {
		tp, err := tracing.NewProvider(cfg.Tracing, cfg.App.Name, os.Stdout)
		if err != nil {
			return nil, err
		}
		s.trace = tp
	}

	copts := append(cfg.ContainerOptions(),
		container.WithLogger(s.log),
		container.WithTracer(s.trace.Tracer()),
	)
	c := container.New(copts...)

	a := &Application{
		Container: c,
		Providers: container.NewProviderRegistry(c),
		cfg:       cfg,
		log:       s.log,
	}

	for _, p := range []container.ServiceProvider{
		&providers.ConfigServiceProvider{Config: cfg},
		&providers.LoggingServiceProvider{Logger: s.log},
		&providers.TracingServiceProvider{Provider: s.trace},
		&providers.ScopesServiceProvider{},
		&providers.RoutingServiceProvider{},
	} {
		if err := a.Register(p); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// Register adds a ServiceProvider to the application.
func (a *Application) Register(provider container.ServiceProvider) error {
	return a.Providers.Register(provider)
}

// Boot boots every provider, then creates the non-lazy singletons.
func (a *Application) Boot(ctx context.Context) error {
	if err := a.Providers.Boot(ctx); err != nil {
		return err
	}
	return a.PreInstantiateSingletons(ctx)
}

// Config returns the configuration the application was built with.
func (a *Application) Config() *config.Config { return a.cfg }

// Logger returns the application logger.
func (a *Application) Logger() *zap.Logger { return a.log }

// Router resolves *routing.Router from the container.
func (a *Application) Router(ctx context.Context) (*routing.Router, error) {
	return container.Resolve[*routing.Router](ctx, a.Container, "router")
}

// Run boots the application if needed and serves HTTP until ctx is done,
// then shuts the server and the container down.
func (a *Application) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", ":"+a.cfg.App.Port)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return a.Serve(ctx, ln)
}

// Serve is Run on a caller-supplied listener.
func (a *Application) Serve(ctx context.Context, ln net.Listener) error {
	if !a.Providers.Booted() {
		if err := a.Boot(ctx); err != nil {
			_ = ln.Close()
			return err
		}
	}
	router, err := a.Router(ctx)
	if err != nil {
		_ = ln.Close()
		return err
	}

	srv := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("server started",
			zap.String("app", a.cfg.App.Name),
			zap.String("addr", ln.Addr().String()),
			zap.String("env", a.cfg.App.Env),
		)
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			_ = a.Shutdown(context.Background())
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		a.log.Info("shutting down server")
	}

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		a.log.Error("server shutdown", zap.Error(err))
	}
	return a.Shutdown(sctx)
}

// Shutdown destroys every singleton, dependents before their dependencies.
// The logger is flushed and the tracer drained after every bean that was
// created with them. If ctx ends first, Shutdown returns while destruction
// carries on in the background.
func (a *Application) Shutdown(ctx context.Context) error {
	done := make(chan error, 1)
	go func() { done <- a.DestroyAll() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("shutdown: %w", ctx.Err())
	}
}

// Environment returns the APP_ENV value.
func (a *Application) Environment() string { return a.cfg.App.Env }
func (a *Application) IsLocal() bool       { return a.Environment() == "local" }
func (a *Application) IsProduction() bool  { return a.cfg.IsProduction() }
func (a *Application) IsTesting() bool     { return a.Environment() == "testing" }
