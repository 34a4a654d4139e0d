package cmd

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"github.com/km-arc/go-beans/framework/container"
	gohttp "github.com/km-arc/go-beans/framework/http"
	"github.com/km-arc/go-beans/framework/routing"
	"github.com/km-arc/go-beans/framework/scopes"
)

// NoteRepository and NoteService reference each other through properties,
// which the container resolves with an early reference.
type NoteRepository struct {
	Service *NoteService

	mu    sync.Mutex
	notes []string
}

func (r *NoteRepository) Add(note string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, note)
	return len(r.notes)
}

func (r *NoteRepository) All() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.notes...)
}

type NoteService struct {
	Repo *NoteRepository
	Log  *zap.Logger
}

func (s *NoteService) Init() error {
	if s.Repo == nil {
		return fmt.Errorf("note service: no repository")
	}
	return nil
}

func (s *NoteService) Add(note string) int {
	n := s.Repo.Add(note)
	s.Log.Debug("note added", zap.Int("count", n))
	return n
}

// Greeter lives for one request.
type Greeter struct {
	RequestID string
	greeted   int
}

func (g *Greeter) Greet(name string) string {
	g.greeted++
	return fmt.Sprintf("hello %s (request %s, greeting #%d)", name, g.RequestID, g.greeted)
}

// VisitCounter lives for one session.
type VisitCounter struct {
	mu sync.Mutex
	n  int
}

func (v *VisitCounter) Inc() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.n++
	return v.n
}

// DemoProvider registers a small bean graph and the routes that use it.
//
// Beans:
//   - "notes.repository" ↔ "notes.service" (property cycle)
//   - "notes"            alias of "notes.service"
//   - "greeter"          request scoped
//   - "visits"           session scoped
type DemoProvider struct {
	container.BaseProvider
}

func (p *DemoProvider) Register(app *container.Container) error {
	defs := []struct {
		id  string
		def *container.Definition
	}{
		{"notes.repository", &container.Definition{
			Constructor: container.Ctor(func() *NoteRepository { return &NoteRepository{} }),
			Properties: []container.Property{
				container.Inject("service", "notes.service", func(r *NoteRepository, s *NoteService) { r.Service = s }),
			},
			Tags:        []string{"demo"},
			Description: "in-memory note store",
		}},
		{"notes.service", &container.Definition{
			Constructor: container.Ctor(func() *NoteService { return &NoteService{} }),
			Properties: []container.Property{
				container.Inject("repo", "notes.repository", func(s *NoteService, r *NoteRepository) { s.Repo = r }),
				container.Inject("log", "logger", func(s *NoteService, l *zap.Logger) { s.Log = l }),
			},
			Tags: []string{"demo"},
		}},
		{"greeter", &container.Definition{
			Scope: scopes.RequestScopeName,
			Factory: func(ctx context.Context, _ *container.Container) (any, error) {
				attrs, ok := scopes.RequestFrom(ctx)
				if !ok {
					return nil, scopes.ErrNoActiveScope
				}
				return &Greeter{RequestID: attrs.ID()}, nil
			},
		}},
		{"visits", &container.Definition{
			Scope:       scopes.SessionScopeName,
			Constructor: container.Ctor(func() *VisitCounter { return &VisitCounter{} }),
		}},
	}
	for _, d := range defs {
		if err := app.RegisterDefinition(d.id, d.def); err != nil {
			return err
		}
	}
	return app.RegisterAlias("notes.service", "notes")
}

func (p *DemoProvider) Boot(ctx context.Context, app *container.Container) error {
	r, err := container.Resolve[*routing.Router](ctx, app, "router")
	if err != nil {
		return err
	}

	r.Prefix("/demo", func(d *routing.Router) {
		d.Get("/greet/{name}", func(w http.ResponseWriter, req *http.Request) {
			g, err := container.Resolve[*Greeter](req.Context(), app, "greeter")
			if err != nil {
				gohttp.NewResponse(w).Fail(req, err)
				return
			}
			again := container.MustResolve[*Greeter](req.Context(), app, "greeter")
			name := routing.Param(req, "name")
			gohttp.NewResponse(w).Success([]string{g.Greet(name), again.Greet(name)})
		})

		d.Get("/visits", func(w http.ResponseWriter, req *http.Request) {
			v, err := container.Resolve[*VisitCounter](req.Context(), app, "visits")
			if err != nil {
				gohttp.NewResponse(w).Fail(req, err)
				return
			}
			gohttp.NewResponse(w).Success(map[string]int{"visits": v.Inc()})
		})

		d.Get("/notes", func(w http.ResponseWriter, req *http.Request) {
			s := container.MustResolve[*NoteService](req.Context(), app, "notes")
			gohttp.NewResponse(w).Success(s.Repo.All())
		})

		d.Post("/notes", func(w http.ResponseWriter, req *http.Request) {
			note := req.URL.Query().Get("text")
			if note == "" {
				gohttp.NewResponse(w).Error(http.StatusBadRequest, "text is required")
				return
			}
			s := container.MustResolve[*NoteService](req.Context(), app, "notes")
			gohttp.NewResponse(w).Success(map[string]int{"count": s.Add(note)})
		})
	})
	return nil
}
