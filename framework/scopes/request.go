package scopes

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/km-arc/go-beans/framework/container"
)

// RequestScopeName is the name the request scope is registered under.
const RequestScopeName = "request"

// Request is the "request" scope. Its instances live in the Attributes the
// routing middleware puts in each request's ctx.
type Request struct {
	log *zap.Logger
}

// NewRequest creates the request scope.
func NewRequest(log *zap.Logger) *Request {
	if log == nil {
		log = zap.NewNop()
	}
	return &Request{log: log}
}

var _ container.Scope = (*Request)(nil)

func (s *Request) Get(ctx context.Context, id string, factory container.ObjectFactory) (any, error) {
	a, ok := RequestFrom(ctx)
	if !ok {
		return nil, fmt.Errorf("%w: request-scoped bean %q used outside a request", ErrNoActiveScope, id)
	}
	return a.get(id, factory)
}

func (s *Request) Remove(ctx context.Context, id string) (any, bool) {
	a, ok := RequestFrom(ctx)
	if !ok {
		return nil, false
	}
	return a.remove(id)
}

func (s *Request) RegisterDestructionCallback(ctx context.Context, id string, cb func()) {
	a, ok := RequestFrom(ctx)
	if !ok {
		s.log.Warn("destruction callback outside a request is dropped", zap.String("bean", id))
		return
	}
	a.registerCallback(id, cb)
}

func (s *Request) ConversationID(ctx context.Context) string {
	if a, ok := RequestFrom(ctx); ok {
		return a.ID()
	}
	return ""
}
