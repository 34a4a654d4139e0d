package container

import "reflect"

// BeanInfo describes one registered bean for inspection.
type BeanInfo struct {
	ID           string   `json:"id" yaml:"id"`
	Scope        string   `json:"scope" yaml:"scope"`
	Type         string   `json:"type,omitempty" yaml:"type,omitempty"`
	Parent       string   `json:"parent,omitempty" yaml:"parent,omitempty"`
	Abstract     bool     `json:"abstract,omitempty" yaml:"abstract,omitempty"`
	Lazy         bool     `json:"lazy,omitempty" yaml:"lazy,omitempty"`
	DependsOn    []string `json:"dependsOn,omitempty" yaml:"dependsOn,omitempty"`
	Aliases      []string `json:"aliases,omitempty" yaml:"aliases,omitempty"`
	Tags         []string `json:"tags,omitempty" yaml:"tags,omitempty"`
	Instantiated bool     `json:"instantiated" yaml:"instantiated"`
	Description  string   `json:"description,omitempty" yaml:"description,omitempty"`
	Error        string   `json:"error,omitempty" yaml:"error,omitempty"`
}

// Snapshot is a point-in-time view of the container, for the inspect
// command and the debug endpoint.
type Snapshot struct {
	Beans            []BeanInfo          `json:"beans" yaml:"beans"`
	Singletons       []string            `json:"singletons" yaml:"singletons"`
	Dependencies     map[string][]string `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
	DestructionOrder []string            `json:"destructionOrder" yaml:"destructionOrder"`
	Scopes           []string            `json:"scopes,omitempty" yaml:"scopes,omitempty"`
}

// Snapshot collects the current state. Beans are listed in registration
// order, followed by singletons registered without a definition.
func (c *Container) Snapshot() Snapshot {
	singletons := c.singletons.SingletonNames()
	instantiated := make(map[string]bool, len(singletons))
	for _, id := range singletons {
		instantiated[id] = true
	}

	c.mu.RLock()
	tagsOf := make(map[string][]string)
	for tag, ids := range c.tags {
		for _, id := range ids {
			tagsOf[id] = append(tagsOf[id], tag)
		}
	}
	c.mu.RUnlock()

	ids := c.defs.IDs()
	beans := make([]BeanInfo, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		seen[id] = true
		info := BeanInfo{
			ID:           id,
			Aliases:      c.aliases.Aliases(id),
			Tags:         tagsOf[id],
			Instantiated: instantiated[id],
		}
		def, err := c.defs.GetMerged(id)
		if err != nil {
			info.Error = err.Error()
			beans = append(beans, info)
			continue
		}
		raw, _ := c.defs.Get(id)
		if raw != nil {
			info.Parent = raw.Parent
		}
		info.Scope = def.ScopeName()
		info.Abstract = def.Abstract
		info.Lazy = def.IsLazy()
		info.DependsOn = def.DependsOn
		info.Description = def.Description
		if def.Type != nil {
			info.Type = def.Type.String()
		}
		if obj, ok := c.singletons.Singleton(id); ok {
			info.Type = reflect.TypeOf(obj).String()
		}
		beans = append(beans, info)
	}

	for _, id := range singletons {
		if seen[id] {
			continue
		}
		info := BeanInfo{ID: id, Scope: ScopeSingleton, Aliases: c.aliases.Aliases(id), Instantiated: true}
		if obj, ok := c.singletons.Singleton(id); ok {
			info.Type = reflect.TypeOf(obj).String()
		}
		beans = append(beans, info)
	}

	return Snapshot{
		Beans:            beans,
		Singletons:       singletons,
		Dependencies:     c.graph.Edges(),
		DestructionOrder: c.disposals.DestructionOrder(),
		Scopes:           c.scopes.Names(),
	}
}
