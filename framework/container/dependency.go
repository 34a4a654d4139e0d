package container

import (
	"sort"
	"sync"
)

// ── Dependency Graph Tracker ──────────────────────────────────────────────────

// DependencyGraph records "dependent needs dependency" edges as they are
// discovered during creation. Teardown walks it so that no bean outlives the
// beans that depend on it.
type DependencyGraph struct {
	mu           sync.RWMutex
	dependents   map[string]map[string]struct{} // dependency → dependents
	dependencies map[string]map[string]struct{} // dependent → dependencies
}

// NewDependencyGraph creates an empty graph.
func NewDependencyGraph() *DependencyGraph {
	return &DependencyGraph{
		dependents:   make(map[string]map[string]struct{}),
		dependencies: make(map[string]map[string]struct{}),
	}
}

// RegisterDependency records that dependent depends on dependency. Recording
// the same edge twice is a no-op.
func (g *DependencyGraph) RegisterDependency(dependency, dependent string) {
	if dependency == "" || dependent == "" || dependency == dependent {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	addEdge(g.dependents, dependency, dependent)
	addEdge(g.dependencies, dependent, dependency)
}

func addEdge(m map[string]map[string]struct{}, from, to string) {
	set, ok := m[from]
	if !ok {
		set = make(map[string]struct{})
		m[from] = set
	}
	set[to] = struct{}{}
}

// Dependents returns the ids that depend on id, sorted.
func (g *DependencyGraph) Dependents(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return sortedKeys(g.dependents[id])
}

// Dependencies returns the ids that id depends on, sorted.
func (g *DependencyGraph) Dependencies(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return sortedKeys(g.dependencies[id])
}

// IsDependent reports whether candidate depends on id, directly or
// transitively.
func (g *DependencyGraph) IsDependent(id, candidate string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	seen := make(map[string]bool)
	stack := []string{id}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for dep := range g.dependents[cur] {
			if dep == candidate {
				return true
			}
			if !seen[dep] {
				seen[dep] = true
				stack = append(stack, dep)
			}
		}
	}
	return false
}

// Edges returns every dependent → dependencies mapping, for inspection.
func (g *DependencyGraph) Edges() map[string][]string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make(map[string][]string, len(g.dependencies))
	for dependent, deps := range g.dependencies {
		if len(deps) > 0 {
			out[dependent] = sortedKeys(deps)
		}
	}
	return out
}

func (g *DependencyGraph) clear() {
	g.mu.Lock()
	defer g.mu.Unlock()
	clear(g.dependents)
	clear(g.dependencies)
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
