package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/note89/sitehooks/internal/config"
	"github.com/note89/sitehooks/internal/expressions"
	"github.com/note89/sitehooks/internal/logging"
	"github.com/note89/sitehooks/internal/metrics"
	"github.com/note89/sitehooks/internal/plugins"
	"github.com/note89/sitehooks/internal/runner"
	"github.com/note89/sitehooks/internal/store"
	"github.com/note89/sitehooks/internal/validation"
	"github.com/note89/sitehooks/pkg/apidocs"
)

// app holds the wired components shared by every command.
type app struct {
	cfg      config.Config
	logger   *slog.Logger
	apis     *apidocs.Registry
	catalog  *plugins.Catalog
	runner   *runner.Runner
	store    store.Store
	registry *prometheus.Registry
}

// newApp loads configuration and wires logger, plugins, store, metrics and
// runner, in that order.
func newApp(ctx context.Context, configPath string, stderr io.Writer) (*app, error) {
	validator, err := validation.NewJSONSchemaValidator()
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(configPath, validator)
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg, stderr)

	apis, err := apidocs.ForSide(apidocs.Side(cfg.Side))
	if err != nil {
		return nil, err
	}

	engines, err := expressions.NewSet()
	if err != nil {
		return nil, fmt.Errorf("expression engines: %w", err)
	}
	catalog := plugins.NewBuiltinCatalog()
	loader := plugins.NewLoader(catalog, validator, plugins.Env{
		Site:         cfg.SiteMetadata.Map(),
		Engines:      engines,
		Interpolator: expressions.NewInterpolator(nil),
	}, logger)
	regs, err := loader.Load(cfg)
	if err != nil {
		return nil, err
	}

	st, err := openStore(ctx, cfg.DBPath)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.New(registry)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	opts := []runner.Option{
		runner.WithLogger(logger),
		runner.WithObserver(store.NewRecorder(st, logger)),
		runner.WithObserver(m),
	}
	if len(cfg.ExemptPlugins) > 0 {
		opts = append(opts, runner.WithExemptPlugins(cfg.ExemptPlugins...))
	}

	logger.Debug("plugins loaded", slog.Int("count", len(regs)), slog.String("side", cfg.Side))

	return &app{
		cfg:      cfg,
		logger:   logger,
		apis:     apis,
		catalog:  catalog,
		runner:   runner.New(regs, apis, opts...),
		store:    st,
		registry: registry,
	}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

// newLogger builds the process logger with correlation attributes.
func newLogger(cfg config.Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: logging.ParseLevel(cfg.LogLevel)}
	var h slog.Handler
	if strings.EqualFold(cfg.LogFormat, "json") {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(logging.NewCorrelationHandler(h))
}

// openStore opens the dispatch log. An empty path or ":memory:" keeps the
// log in process memory.
func openStore(ctx context.Context, dbPath string) (store.Store, error) {
	if dbPath == "" || dbPath == ":memory:" {
		return store.NewMemoryStore(), nil
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	s, err := store.NewLibSQLStore("file:" + dbPath)
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}
