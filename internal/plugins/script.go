package plugins

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/note89/sitehooks/internal/config"
	"github.com/note89/sitehooks/internal/expressions"
	"github.com/note89/sitehooks/internal/runner"
	"github.com/note89/sitehooks/pkg/schema"
)

// ScriptResolve is the resolve name of plugins implemented by expressions.
const ScriptResolve = "script"

const defaultEngine = "expr"

// Env is what factories may draw on when building a registration.
type Env struct {
	Site    map[string]any
	Engines *expressions.Set

	// Interpolator, when set, resolves ${{site.*}} and ${{env.*}} in plugin options.
	Interpolator *expressions.Interpolator
}

type guardEngine interface {
	EvaluateBool(ctx context.Context, expression string, data map[string]any) (bool, error)
}

func scriptFactory() Factory {
	return Factory{
		Resolve:     ScriptResolve,
		Description: "Hooks declared as expr or jq expressions, optionally guarded by a CEL condition.",
		New: func(spec config.PluginSpec, env Env) (runner.Registration, error) {
			return scriptRegistration(spec.ID(), spec.Hooks, env)
		},
	}
}

// scriptRegistration compiles every hook up front; a broken expression fails
// the load.
func scriptRegistration(name string, hooks config.Hooks, env Env) (runner.Registration, error) {
	reg := runner.Registration{
		Name:       name,
		Hooks:      map[string]runner.HookFunc{},
		AsyncHooks: map[string]runner.AsyncHookFunc{},
	}
	if env.Engines == nil {
		return reg, schema.NewErrorf(schema.ErrCodeConfig, "plugin %q: no expression engines configured", name)
	}

	for api, h := range hooks {
		fn, err := scriptHook(h, env)
		if err != nil {
			return reg, schema.NewErrorf(schema.ErrCodeConfig, "plugin %q hook %s: %s", name, api, err.Error()).
				WithCause(err).
				WithPlugin(name, api)
		}
		if h.Async {
			reg.AsyncHooks[api] = fn
			continue
		}
		reg.Hooks[api] = func(args any, opts runner.Options) (any, error) {
			return fn(context.Background(), args, opts)
		}
	}
	return reg, nil
}

func scriptHook(h config.HookSpec, env Env) (runner.AsyncHookFunc, error) {
	engineName := h.Engine
	if engineName == "" {
		engineName = defaultEngine
	}
	engine, err := env.Engines.Get(engineName)
	if err != nil {
		return nil, err
	}
	if c, ok := engine.(interface{ Compile(string) error }); ok {
		if err := c.Compile(h.Expression); err != nil {
			return nil, err
		}
	}

	var guard guardEngine
	if h.When != "" {
		e, err := env.Engines.Get("cel")
		if err != nil {
			return nil, err
		}
		g, ok := e.(guardEngine)
		if !ok {
			return nil, fmt.Errorf("engine %q cannot evaluate guards", e.Name())
		}
		guard = g
	}

	return func(ctx context.Context, args any, opts runner.Options) (any, error) {
		data, err := scriptData(args, opts, env.Site)
		if err != nil {
			return nil, err
		}
		if guard != nil {
			ok, err := guard.EvaluateBool(ctx, h.When, data)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, nil
			}
		}
		return engine.Evaluate(ctx, h.Expression, data)
	}, nil
}

// scriptData builds the expression environment. args and options are
// normalized to plain JSON values; a non-object args value is exposed as
// args.value.
func scriptData(args any, opts runner.Options, site map[string]any) (map[string]any, error) {
	a, err := plainMap(args)
	if err != nil {
		return nil, fmt.Errorf("args are not JSON-compatible: %w", err)
	}
	o, err := plainMap(map[string]any(opts))
	if err != nil {
		return nil, fmt.Errorf("options are not JSON-compatible: %w", err)
	}
	if site == nil {
		site = map[string]any{}
	}
	return map[string]any{"args": a, "options": o, "site": site}, nil
}

func plainMap(v any) (map[string]any, error) {
	if v == nil {
		return map[string]any{}, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	switch m := out.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		return m, nil
	}
	return map[string]any{"value": out}, nil
}
