package container

import (
	"fmt"
	"sort"
	"sync"
)

// ── Alias Index ───────────────────────────────────────────────────────────────

// AliasIndex maps aliases to canonical names. Chains (y → x → real) are
// allowed; cycles are not.
type AliasIndex struct {
	mu            sync.RWMutex
	aliases       map[string]string // alias → name
	allowOverride bool
}

// NewAliasIndex creates an empty index. With allowOverride set, re-pointing
// an existing alias at a different name replaces the old mapping instead of
// failing with ErrConflictingAlias.
func NewAliasIndex(allowOverride bool) *AliasIndex {
	return &AliasIndex{
		aliases:       make(map[string]string),
		allowOverride: allowOverride,
	}
}

// Register maps alias to name.
//
//	// Laravel: $app->alias("dataSource", "primaryDb")
//	idx.Register("dataSource", "primaryDb")
func (a *AliasIndex) Register(name, alias string) error {
	if name == "" || alias == "" {
		return fmt.Errorf("%w: alias and name must not be empty", ErrInvalidDefinition)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	// Aliasing a name to itself just drops any alias of that spelling.
	if alias == name {
		delete(a.aliases, alias)
		return nil
	}

	if existing, ok := a.aliases[alias]; ok {
		if existing == name {
			return nil
		}
		if !a.allowOverride {
			return fmt.Errorf("%w: %q is already an alias for %q, cannot point it at %q",
				ErrConflictingAlias, alias, existing, name)
		}
	}

	if a.hasAlias(alias, name) {
		return fmt.Errorf("%w: registering %q -> %q would close a cycle", ErrCyclicAlias, alias, name)
	}

	a.aliases[alias] = name
	return nil
}

// hasAlias reports whether alias resolves (transitively) to name.
// Caller must hold mu.
func (a *AliasIndex) hasAlias(name, alias string) bool {
	seen := make(map[string]bool)
	for cur := alias; ; {
		target, ok := a.aliases[cur]
		if !ok {
			return false
		}
		if target == name {
			return true
		}
		if seen[target] {
			return false
		}
		seen[target] = true
		cur = target
	}
}

// Remove deletes an alias.
func (a *AliasIndex) Remove(alias string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.aliases[alias]; !ok {
		return fmt.Errorf("%w: %q", ErrNoSuchAlias, alias)
	}
	delete(a.aliases, alias)
	return nil
}

// IsAlias reports whether name is registered as an alias.
func (a *AliasIndex) IsAlias(name string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.aliases[name]
	return ok
}

// Resolve follows the alias chain starting at name to its canonical name.
// A name that is not an alias resolves to itself.
func (a *AliasIndex) Resolve(name string) (string, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	seen := map[string]bool{name: true}
	cur := name
	for {
		next, ok := a.aliases[cur]
		if !ok {
			return cur, nil
		}
		if seen[next] {
			return "", fmt.Errorf("%w: chain from %q revisits %q", ErrCyclicAlias, name, next)
		}
		seen[next] = true
		cur = next
	}
}

// Aliases returns every alias that resolves, directly or through a chain, to
// name. The result is sorted.
func (a *AliasIndex) Aliases(name string) []string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var out []string
	a.collect(name, &out, map[string]bool{name: true})
	sort.Strings(out)
	return out
}

func (a *AliasIndex) collect(name string, out *[]string, seen map[string]bool) {
	for alias, target := range a.aliases {
		if target != name || seen[alias] {
			continue
		}
		seen[alias] = true
		*out = append(*out, alias)
		a.collect(alias, out, seen)
	}
}

// All returns a copy of the alias → name table.
func (a *AliasIndex) All() map[string]string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make(map[string]string, len(a.aliases))
	for k, v := range a.aliases {
		out[k] = v
	}
	return out
}
