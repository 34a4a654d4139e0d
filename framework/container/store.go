package container

import (
	"fmt"
	"sync"
)

// ── Definition Store ──────────────────────────────────────────────────────────

// DefinitionStore holds registered definitions keyed by canonical id. It is
// read-mostly: registration normally happens before concurrent resolution.
type DefinitionStore struct {
	mu     sync.RWMutex
	defs   map[string]*Definition
	order  []string
	merged map[string]*Definition
}

// NewDefinitionStore creates an empty store.
func NewDefinitionStore() *DefinitionStore {
	return &DefinitionStore{
		defs:   make(map[string]*Definition),
		merged: make(map[string]*Definition),
	}
}

// Register stores a copy of def under id, replacing any previous definition.
// It reports whether an existing definition was replaced.
func (s *DefinitionStore) Register(id string, def *Definition) (bool, error) {
	if id == "" {
		return false, fmt.Errorf("%w: id must not be empty", ErrInvalidDefinition)
	}
	if def == nil {
		return false, fmt.Errorf("%w: nil definition for %q", ErrInvalidDefinition, id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, existed := s.defs[id]
	s.defs[id] = def.clone()
	if !existed {
		s.order = append(s.order, id)
	}
	// Any child may inherit from id, so every merged view is stale.
	clear(s.merged)
	return existed, nil
}

// Get returns a copy of the raw definition.
func (s *DefinitionStore) Get(id string) (*Definition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	def, ok := s.defs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoSuchDefinition, id)
	}
	return def.clone(), nil
}

// GetMerged returns the definition flattened over its parent chain. The
// result is a copy; stored definitions are never modified.
func (s *DefinitionStore) GetMerged(id string) (*Definition, error) {
	s.mu.RLock()
	if m, ok := s.merged[id]; ok {
		s.mu.RUnlock()
		return m.clone(), nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.merge(id, nil)
	if err != nil {
		return nil, err
	}
	s.merged[id] = m
	return m.clone(), nil
}

// merge flattens id's chain. Caller must hold mu.
func (s *DefinitionStore) merge(id string, visiting []string) (*Definition, error) {
	if m, ok := s.merged[id]; ok {
		return m, nil
	}
	for _, v := range visiting {
		if v == id {
			return nil, fmt.Errorf("%w: %v -> %s", ErrCyclicParent, visiting, id)
		}
	}

	def, ok := s.defs[id]
	if !ok {
		if len(visiting) > 0 {
			return nil, fmt.Errorf("%w: parent %q of %q", ErrNoSuchDefinition, id, visiting[len(visiting)-1])
		}
		return nil, fmt.Errorf("%w: %q", ErrNoSuchDefinition, id)
	}
	if def.Parent == "" {
		return def.clone(), nil
	}

	parent, err := s.merge(def.Parent, append(visiting, id))
	if err != nil {
		return nil, err
	}
	return mergeOver(parent, def), nil
}

// Remove deletes the definition for id.
func (s *DefinitionStore) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.defs[id]; !ok {
		return fmt.Errorf("%w: %q", ErrNoSuchDefinition, id)
	}
	delete(s.defs, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	clear(s.merged)
	return nil
}

// Contains reports whether id has a definition.
func (s *DefinitionStore) Contains(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.defs[id]
	return ok
}

// IDs returns the registered ids in registration order.
func (s *DefinitionStore) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneStrings(s.order)
}

// Count returns the number of registered definitions.
func (s *DefinitionStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.defs)
}
