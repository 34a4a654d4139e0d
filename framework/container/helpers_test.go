package container_test

import (
	"context"
	"errors"
	"sync"

	"github.com/km-arc/go-beans/framework/container"
)

// ── fixtures ──────────────────────────────────────────────────────────────────

type repository struct {
	service *service
}

type service struct {
	repo *repository
	name string
}

func newRepository() *repository { return &repository{} }
func newService() *service       { return &service{} }

// cycleDefs wires repository ↔ service through properties.
func cycleDefs(c *container.Container) error {
	if err := c.RegisterDefinition("repository", &container.Definition{
		Constructor: container.Ctor(newRepository),
		Properties: []container.Property{
			container.Inject("service", "service", func(r *repository, s *service) { r.service = s }),
		},
	}); err != nil {
		return err
	}
	return c.RegisterDefinition("service", &container.Definition{
		Constructor: container.Ctor(newService),
		Properties: []container.Property{
			container.Inject("repo", "repository", func(s *service, r *repository) { s.repo = r }),
		},
	})
}

// journal records lifecycle events in order.
type journal struct {
	mu     sync.Mutex
	events []string
}

func (j *journal) add(e string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.events = append(j.events, e)
}

func (j *journal) list() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.events...)
}

func (j *journal) destroyer(id string) func(any) error {
	return func(any) error {
		j.add(id)
		return nil
	}
}

type node struct {
	id   string
	deps []*node
}

// nodeDef builds a singleton whose properties reference refs.
func nodeDef(id string, j *journal, refs ...string) *container.Definition {
	def := &container.Definition{
		Constructor: func([]any) (any, error) { return &node{id: id}, nil },
		Destroy:     j.destroyer(id),
	}
	for _, ref := range refs {
		def.Properties = append(def.Properties, container.Inject(ref, ref, func(n *node, d *node) {
			n.deps = append(n.deps, d)
		}))
	}
	return def
}

type closer struct {
	closed int
	err    error
}

func (c *closer) Close() error {
	c.closed++
	return c.err
}

// mapScope is a minimal custom scope backed by one map.
type mapScope struct {
	mu        sync.Mutex
	objects   map[string]any
	callbacks map[string]func()
}

func newMapScope() *mapScope {
	return &mapScope{objects: map[string]any{}, callbacks: map[string]func(){}}
}

func (s *mapScope) Get(_ context.Context, id string, factory container.ObjectFactory) (any, error) {
	s.mu.Lock()
	if obj, ok := s.objects[id]; ok {
		s.mu.Unlock()
		return obj, nil
	}
	s.mu.Unlock()

	obj, err := factory()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[id] = obj
	return obj, nil
}

func (s *mapScope) Remove(_ context.Context, id string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[id]
	delete(s.objects, id)
	delete(s.callbacks, id)
	return obj, ok
}

func (s *mapScope) RegisterDestructionCallback(_ context.Context, id string, cb func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callbacks[id] = cb
}

func (s *mapScope) ConversationID(context.Context) string { return "map" }

func (s *mapScope) end() {
	s.mu.Lock()
	cbs := s.callbacks
	s.callbacks = map[string]func(){}
	s.objects = map[string]any{}
	s.mu.Unlock()
	for _, cb := range cbs {
		cb()
	}
}

var errBoom = errors.New("boom")
