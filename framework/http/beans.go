// Package http holds JSON response helpers and the container inspection
// handlers mounted under /debug.
package http

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/km-arc/go-beans/framework/container"
)

// BeansHandler serves the container snapshot.
//
//	GET /debug/beans → {"data": {"beans": [...], "singletons": [...], ...}}
func BeansHandler(c *container.Container) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		NewResponse(w).Success(c.Snapshot())
	}
}

// BeanHandler describes one bean, read from the {id} URL parameter.
//
//	GET /debug/beans/{id}
func BeanHandler(c *container.Container) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res := NewResponse(w)
		id := chi.URLParam(r, "id")

		name, err := c.CanonicalName(id)
		if err != nil {
			res.Fail(r, err)
			return
		}
		def, err := c.Definition(name)
		if errors.Is(err, container.ErrNoSuchDefinition) && !c.Singletons().ContainsSingleton(name) {
			res.Fail(r, err)
			return
		}

		info := map[string]any{
			"id":           name,
			"aliases":      c.Aliases(name),
			"instantiated": c.Singletons().ContainsSingleton(name),
			"dependencies": c.Dependencies().Dependencies(name),
			"dependents":   c.Dependencies().Dependents(name),
		}
		if def != nil {
			info["scope"] = def.ScopeName()
			info["dependsOn"] = def.DependsOn
			info["description"] = def.Description
			if len(def.Attributes) > 0 {
				info["attributes"] = def.Attributes
			}
		}
		if typ, err := c.Type(name); err == nil && typ != nil {
			info["type"] = typ.String()
		}
		res.Success(info)
	}
}
