package runner

import (
	"context"
	"sort"
)

// Options is a plugin's configuration object. The runner never inspects it.
type Options map[string]any

// HookFunc is a synchronous API implementation. A nil result means the
// plugin produced nothing for this call.
type HookFunc func(args any, opts Options) (any, error)

// AsyncHookFunc is an API implementation that may block on asynchronous work
// before producing its result.
type AsyncHookFunc func(ctx context.Context, args any, opts Options) (any, error)

// Registration binds a plugin identity to its capability table and options.
type Registration struct {
	Name       string
	Hooks      map[string]HookFunc
	AsyncHooks map[string]AsyncHookFunc
	Options    Options
}

// Implements reports whether the plugin provides api in either mode.
func (r Registration) Implements(api string) bool {
	return r.Hooks[api] != nil || r.AsyncHooks[api] != nil
}

// APIs lists the API names the plugin provides, sorted.
func (r Registration) APIs() []string {
	seen := make(map[string]struct{}, len(r.Hooks)+len(r.AsyncHooks))
	for name, fn := range r.Hooks {
		if fn != nil {
			seen[name] = struct{}{}
		}
	}
	for name, fn := range r.AsyncHooks {
		if fn != nil {
			seen[name] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// syncHook returns the synchronous implementation of api, if any.
func (r Registration) syncHook(api string) HookFunc {
	return r.Hooks[api]
}

// asyncHook returns the asynchronous implementation of api, falling back to
// the synchronous one.
func (r Registration) asyncHook(api string) AsyncHookFunc {
	if fn := r.AsyncHooks[api]; fn != nil {
		return fn
	}
	if fn := r.Hooks[api]; fn != nil {
		return func(_ context.Context, args any, opts Options) (any, error) {
			return fn(args, opts)
		}
	}
	return nil
}
