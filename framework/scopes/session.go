package scopes

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/km-arc/go-beans/framework/container"
)

// SessionScopeName is the name the session scope is registered under.
const SessionScopeName = "session"

type sessionKey struct{}

// WithSession attaches a session id to ctx.
func WithSession(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionKey{}, sessionID)
}

// SessionFrom returns the session id carried by ctx.
func SessionFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(sessionKey{}).(string)
	return id, ok && id != ""
}

// Session is the "session" scope. Each session's Attributes are kept in a
// go-cache store; a session idle for longer than the TTL is evicted and its
// beans are destroyed.
type Session struct {
	ttl   time.Duration
	store *cache.Cache
	mu    sync.Mutex // serialises get-or-create of a session
	log   *zap.Logger
}

// NewSession creates the session scope. Expired sessions are swept every
// cleanup interval.
func NewSession(ttl, cleanup time.Duration, log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Session{ttl: ttl, store: cache.New(ttl, cleanup), log: log}
	s.store.OnEvicted(func(id string, v any) {
		if a, ok := v.(*Attributes); ok {
			s.log.Debug("session ended", zap.String("session", id), zap.Int("beans", a.Len()))
			a.End()
		}
	})
	return s
}

var _ container.Scope = (*Session)(nil)

// attributes returns the live Attributes for the ctx session, creating them
// on first use. Every access pushes the expiry out by the TTL.
func (s *Session) attributes(ctx context.Context) (*Attributes, bool) {
	id, ok := SessionFrom(ctx)
	if !ok {
		return nil, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var a *Attributes
	if v, found := s.store.Get(id); found {
		a = v.(*Attributes)
	} else {
		a = newAttributes(id)
	}
	s.store.Set(id, a, cache.DefaultExpiration)
	return a, true
}

func (s *Session) Get(ctx context.Context, id string, factory container.ObjectFactory) (any, error) {
	a, ok := s.attributes(ctx)
	if !ok {
		return nil, fmt.Errorf("%w: session-scoped bean %q used without a session", ErrNoActiveScope, id)
	}
	return a.get(id, factory)
}

func (s *Session) Remove(ctx context.Context, id string) (any, bool) {
	a, ok := s.attributes(ctx)
	if !ok {
		return nil, false
	}
	return a.remove(id)
}

func (s *Session) RegisterDestructionCallback(ctx context.Context, id string, cb func()) {
	a, ok := s.attributes(ctx)
	if !ok {
		s.log.Warn("destruction callback without a session is dropped", zap.String("bean", id))
		return
	}
	a.registerCallback(id, cb)
}

func (s *Session) ConversationID(ctx context.Context) string {
	id, _ := SessionFrom(ctx)
	return id
}

// Invalidate ends a session now, destroying its beans.
func (s *Session) Invalidate(sessionID string) {
	s.store.Delete(sessionID)
}

// Count returns the number of live sessions.
func (s *Session) Count() int { return s.store.ItemCount() }

// Close ends every session. It is registered as the scope bean's disposal.
func (s *Session) Close() error {
	for id := range s.store.Items() {
		s.store.Delete(id)
	}
	return nil
}
