package plugins

import (
	"fmt"
	"log/slog"

	"github.com/note89/sitehooks/internal/config"
	"github.com/note89/sitehooks/internal/expressions"
	"github.com/note89/sitehooks/internal/runner"
	"github.com/note89/sitehooks/internal/validation"
	"github.com/note89/sitehooks/pkg/schema"
)

// Loader turns the configured plugin list into runner registrations.
type Loader struct {
	catalog   *Catalog
	validator validation.Validator
	env       Env
	logger    *slog.Logger
}

// NewLoader creates a Loader. validator may be nil to skip option validation.
func NewLoader(catalog *Catalog, validator validation.Validator, env Env, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{catalog: catalog, validator: validator, env: env, logger: logger}
}

// Load builds registrations in config order. The site's own hooks, if any,
// are appended last as the default site plugin.
func (l *Loader) Load(cfg config.Config) ([]runner.Registration, error) {
	regs := make([]runner.Registration, 0, len(cfg.Plugins)+1)
	seen := make(map[string]struct{}, len(cfg.Plugins)+1)

	for _, spec := range cfg.Plugins {
		id := spec.ID()
		if _, dup := seen[id]; dup {
			return nil, schema.NewErrorf(schema.ErrCodeConflict, "plugin %q listed twice", id)
		}
		seen[id] = struct{}{}

		reg, err := l.build(spec)
		if err != nil {
			return nil, err
		}
		regs = append(regs, reg)
		l.logger.Debug("plugin loaded",
			slog.String("plugin", id),
			slog.String("resolve", spec.Resolve),
			slog.Any("apis", reg.APIs()),
		)
	}

	if len(cfg.SiteHooks) > 0 {
		if _, dup := seen[runner.DefaultSitePlugin]; dup {
			return nil, schema.NewErrorf(schema.ErrCodeConflict, "plugin %q is reserved for site_hooks", runner.DefaultSitePlugin)
		}
		reg, err := scriptRegistration(runner.DefaultSitePlugin, cfg.SiteHooks, l.env)
		if err != nil {
			return nil, err
		}
		regs = append(regs, reg)
	}

	l.logger.Info("plugins loaded", slog.Int("count", len(regs)))
	return regs, nil
}

func (l *Loader) build(spec config.PluginSpec) (runner.Registration, error) {
	id := spec.ID()

	f, err := l.catalog.Get(spec.Resolve)
	if err != nil {
		return runner.Registration{}, err
	}
	if len(spec.Hooks) > 0 && spec.Resolve != ScriptResolve {
		return runner.Registration{}, schema.NewErrorf(schema.ErrCodeValidation,
			"plugin %q: hooks may only be declared on %q plugins", id, ScriptResolve)
	}
	if l.env.Interpolator != nil {
		opts, err := l.env.Interpolator.ResolveOptions(spec.Options, &expressions.InterpolationScope{Site: l.env.Site})
		if err != nil {
			return runner.Registration{}, fmt.Errorf("plugin %q options: %w", id, err)
		}
		spec.Options = opts
	}
	if l.validator != nil {
		if err := l.validator.ValidateOptions(id, spec.Options, f.OptionsSchema); err != nil {
			return runner.Registration{}, err
		}
	}

	reg, err := f.New(spec, l.env)
	if err != nil {
		return runner.Registration{}, err
	}
	reg.Name = id
	reg.Options = runner.Options(spec.Options)
	if reg.Options == nil {
		reg.Options = runner.Options{}
	}
	return reg, nil
}
