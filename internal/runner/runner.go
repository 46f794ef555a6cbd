// Package runner dispatches lifecycle APIs to registered plugins.
//
// A Runner owns an ordered, read-only list of plugin registrations. For a
// given API it visits every plugin that implements it, in registration order,
// and collects the results. Run never blocks on anything but the plugins
// themselves; RunAsync awaits each plugin before invoking the next one.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/note89/sitehooks/internal/logging"
	"github.com/note89/sitehooks/pkg/schema"
)

// DefaultSitePlugin is the identity under which the site's own hooks are
// registered. Faults from it are returned unannotated.
const DefaultSitePlugin = "default-site-plugin"

// Mode identifies the dispatch flavour.
type Mode string

const (
	ModeSync  Mode = "sync"
	ModeAsync Mode = "async"
)

// APIs is the known-API lookup consulted for the unknown-API diagnostic.
type APIs interface {
	Has(name string) bool
}

// Runner dispatches APIs to a fixed list of plugin registrations.
type Runner struct {
	registrations []Registration
	apis          APIs
	exempt        map[string]struct{}
	observers     []Observer
	logger        *slog.Logger
	newID         func() string
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger used for diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithExemptPlugins replaces the set of plugin identities whose faults are
// returned without plugin annotation.
func WithExemptPlugins(names ...string) Option {
	return func(r *Runner) {
		r.exempt = make(map[string]struct{}, len(names))
		for _, n := range names {
			r.exempt[n] = struct{}{}
		}
	}
}

// WithObserver adds an observer notified of every invocation and dispatch.
func WithObserver(o Observer) Option {
	return func(r *Runner) {
		if o != nil {
			r.observers = append(r.observers, o)
		}
	}
}

// WithIDGenerator overrides how dispatch IDs are generated.
func WithIDGenerator(fn func() string) Option {
	return func(r *Runner) {
		if fn != nil {
			r.newID = fn
		}
	}
}

// New creates a Runner over a copy of regs. apis may be nil, in which case no
// unknown-API diagnostic is emitted.
func New(regs []Registration, apis APIs, opts ...Option) *Runner {
	r := &Runner{
		registrations: append([]Registration(nil), regs...),
		apis:          apis,
		exempt:        map[string]struct{}{DefaultSitePlugin: {}},
		logger:        slog.Default(),
		newID:         uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Registrations returns a copy of the registration list.
func (r *Runner) Registrations() []Registration {
	return append([]Registration(nil), r.registrations...)
}

// Implementing returns the names of plugins implementing api, in order.
func (r *Runner) Implementing(api string) []string {
	var names []string
	for _, reg := range r.registrations {
		if reg.Implements(api) {
			names = append(names, reg.Name)
		}
	}
	return names
}

// Run dispatches api synchronously. Each implementing plugin is called with
// the current args and its options. Non-nil results are collected in order;
// when transform is set, each non-nil result also reshapes the args seen by
// the next plugin. The first failing plugin aborts the call. If no plugin
// produced a result, the returned slice holds only defaultResult.
func (r *Runner) Run(api string, args, defaultResult any, transform ArgTransform) ([]any, error) {
	return r.dispatch(context.Background(), ModeSync, api, args, defaultResult, transform)
}

// RunAsync is Run for plugins that may block. Plugins are awaited strictly
// one after another; results keep registration order. ctx is handed to the
// plugins and is not otherwise enforced.
func (r *Runner) RunAsync(ctx context.Context, api string, args, defaultResult any, transform ArgTransform) ([]any, error) {
	return r.dispatch(ctx, ModeAsync, api, args, defaultResult, transform)
}

func (r *Runner) dispatch(ctx context.Context, mode Mode, api string, args, defaultResult any, transform ArgTransform) ([]any, error) {
	id := r.newID()
	ctx = logging.WithAPI(logging.WithDispatchID(ctx, id), api)
	log := logging.LogWith(ctx, r.logger)

	if r.apis != nil && !r.apis.Has(api) {
		log.Warn("This API doesn't exist", slog.String("api", api))
	}

	d := Dispatch{ID: id, API: api, Mode: mode, Started: time.Now()}

	var results []any
	for i := range r.registrations {
		reg := &r.registrations[i]

		var call AsyncHookFunc
		if mode == ModeSync {
			if fn := reg.syncHook(api); fn != nil {
				call = func(_ context.Context, a any, o Options) (any, error) { return fn(a, o) }
			}
		} else {
			call = reg.asyncHook(api)
		}
		if call == nil {
			continue
		}

		d.Invoked++
		pctx := logging.WithPlugin(ctx, reg.Name)
		start := time.Now()
		result, err := invoke(pctx, call, args, reg.Options)
		r.observeInvocation(pctx, Invocation{
			DispatchID: id,
			API:        api,
			Plugin:     reg.Name,
			Mode:       mode,
			Absent:     result == nil,
			Duration:   time.Since(start),
			Err:        err,
		})
		if err != nil {
			err = r.annotate(reg.Name, api, err)
			log.Debug("plugin failed", slog.String("plugin", reg.Name), slog.String("error", err.Error()))
			d.FailedPlugin = reg.Name
			d.Err = err
			d.Duration = time.Since(d.Started)
			r.observeDispatch(ctx, d)
			return nil, err
		}

		args = Step(args, result, transform)
		if result != nil {
			results = append(results, result)
		}
	}

	d.Results = len(results)
	d.Duration = time.Since(d.Started)
	r.observeDispatch(ctx, d)

	if len(results) == 0 {
		return []any{defaultResult}, nil
	}
	return results, nil
}

// invoke calls fn, turning a panic into an error.
func invoke(ctx context.Context, fn AsyncHookFunc, args any, opts Options) (result any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			switch v := rec.(type) {
			case error:
				err = v
			default:
				err = fmt.Errorf("panic: %v", v)
			}
			result = nil
		}
	}()
	return fn(ctx, args, opts)
}

// annotate attaches the plugin identity to err unless the plugin is exempt.
func (r *Runner) annotate(plugin, api string, err error) error {
	if _, ok := r.exempt[plugin]; ok {
		return err
	}
	return schema.NewError(schema.ErrCodePlugin, err.Error()).
		WithPlugin(plugin, api).
		WithCause(err)
}
