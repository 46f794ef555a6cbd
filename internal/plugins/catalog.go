package plugins

import (
	"sort"
	"sync"

	"github.com/note89/sitehooks/internal/config"
	"github.com/note89/sitehooks/internal/runner"
	"github.com/note89/sitehooks/pkg/schema"
)

// Factory builds a plugin registration from its config entry.
type Factory struct {
	Resolve       string
	Description   string
	OptionsSchema []byte
	New           func(spec config.PluginSpec, env Env) (runner.Registration, error)
}

// FactoryInfo is a summary of a catalog entry for listing.
type FactoryInfo struct {
	Resolve     string `json:"resolve"`
	Description string `json:"description,omitempty"`
}

// Catalog is the thread-safe set of plugin implementations known by resolve name.
type Catalog struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewCatalog creates an empty Catalog.
func NewCatalog() *Catalog {
	return &Catalog{factories: make(map[string]Factory)}
}

// NewBuiltinCatalog creates a Catalog holding the built-in plugins.
func NewBuiltinCatalog() *Catalog {
	c := NewCatalog()
	for _, f := range []Factory{gtagFactory(), manifestFactory(), feedFactory(), scriptFactory()} {
		if err := c.Register(f); err != nil {
			panic(err)
		}
	}
	return c
}

// Register adds a factory. Returns error on duplicate resolve name.
func (c *Catalog) Register(f Factory) error {
	if f.Resolve == "" {
		return schema.NewError(schema.ErrCodeValidation, "plugin resolve name is empty")
	}
	if f.New == nil {
		return schema.NewErrorf(schema.ErrCodeValidation, "plugin %q has no constructor", f.Resolve)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.factories[f.Resolve]; exists {
		return schema.NewErrorf(schema.ErrCodeConflict, "plugin %q already registered", f.Resolve)
	}
	c.factories[f.Resolve] = f
	return nil
}

// Get retrieves a factory by resolve name.
func (c *Catalog) Get(resolve string) (Factory, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	f, ok := c.factories[resolve]
	if !ok {
		return Factory{}, schema.NewErrorf(schema.ErrCodeNotFound, "plugin %q not found", resolve)
	}
	return f, nil
}

// List returns all factories sorted by resolve name.
func (c *Catalog) List() []FactoryInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()

	infos := make([]FactoryInfo, 0, len(c.factories))
	for _, f := range c.factories {
		infos = append(infos, FactoryInfo{Resolve: f.Resolve, Description: f.Description})
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Resolve < infos[j].Resolve
	})
	return infos
}
