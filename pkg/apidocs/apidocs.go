// Package apidocs is the registry of known lifecycle APIs that plugins may
// implement. The runner consults it only to warn about unknown API names.
package apidocs

import (
	"embed"
	"encoding/json"
	"fmt"
	"sort"
)

//go:embed docs/*.json
var docsFS embed.FS

// Side identifies where an API is invoked.
type Side string

const (
	SideSSR     Side = "ssr"
	SideBrowser Side = "browser"
)

// API documents a single lifecycle hook.
type API struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Args        []string `json:"args"`
	Side        Side     `json:"side"`
}

// Registry is a read-only lookup of API name to documentation.
type Registry struct {
	apis map[string]API
}

// New builds a Registry from the given APIs. Later entries with the same
// name replace earlier ones.
func New(apis ...API) *Registry {
	r := &Registry{apis: make(map[string]API, len(apis))}
	for _, a := range apis {
		r.apis[a.Name] = a
	}
	return r
}

// SSR returns the registry of server-side rendering APIs.
func SSR() *Registry {
	return mustLoad(SideSSR)
}

// Browser returns the registry of browser APIs.
func Browser() *Registry {
	return mustLoad(SideBrowser)
}

// ForSide returns the registry for the named side.
func ForSide(side Side) (*Registry, error) {
	switch side {
	case SideSSR, SideBrowser:
		return load(side)
	default:
		return nil, fmt.Errorf("unknown api side %q", side)
	}
}

// Has reports whether name is a documented API.
func (r *Registry) Has(name string) bool {
	_, ok := r.apis[name]
	return ok
}

// Get returns the documentation for name.
func (r *Registry) Get(name string) (API, bool) {
	a, ok := r.apis[name]
	return a, ok
}

// List returns all documented APIs sorted by name.
func (r *Registry) List() []API {
	out := make([]API, 0, len(r.apis))
	for _, a := range r.apis {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Name < out[j].Name
	})
	return out
}

// Len returns the number of documented APIs.
func (r *Registry) Len() int { return len(r.apis) }

func load(side Side) (*Registry, error) {
	data, err := docsFS.ReadFile("docs/" + string(side) + ".json")
	if err != nil {
		return nil, fmt.Errorf("read %s api docs: %w", side, err)
	}
	var apis []API
	if err := json.Unmarshal(data, &apis); err != nil {
		return nil, fmt.Errorf("decode %s api docs: %w", side, err)
	}
	for i := range apis {
		apis[i].Side = side
	}
	return New(apis...), nil
}

func mustLoad(side Side) *Registry {
	r, err := load(side)
	if err != nil {
		panic(err)
	}
	return r
}
