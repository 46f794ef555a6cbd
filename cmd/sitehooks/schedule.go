package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/heptiolabs/healthcheck"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/note89/sitehooks/internal/render"
	"github.com/note89/sitehooks/internal/scheduler"
)

func runSchedule(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs, configPath := newFlagSet("schedule", stderr)
	listen := fs.String("listen", "", "address for /metrics, /live and /ready (disabled if empty)")
	interval := fs.Duration("interval", 30*time.Second, "how often due schedules are checked")
	if err := fs.Parse(args); err != nil {
		return err
	}
	a, err := newApp(ctx, *configPath, stderr)
	if err != nil {
		return err
	}
	defer a.Close()

	if len(a.cfg.Schedules) == 0 {
		fmt.Fprintln(stdout, "no schedules configured")
		return nil
	}

	sched, err := scheduler.NewScheduler(a.cfg.Schedules, a.runner, a.logger,
		scheduler.WithInterval(*interval),
		scheduler.WithArgsDecoder(decodeScheduleArgs),
		scheduler.WithTransformFor(render.TransformFor),
	)
	if err != nil {
		return err
	}
	for _, job := range sched.Jobs() {
		fmt.Fprintf(stdout, "%s\t%s\t%s\tnext %s\n", job.ID, job.Spec, job.API, job.NextRunAt.Format(time.RFC3339))
	}

	if *listen != "" {
		srv := &http.Server{
			Addr:              *listen,
			Handler:           newOpsHandler(a, sched),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			a.logger.Info("ops endpoint listening", slog.String("addr", *listen))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error("ops endpoint failed", slog.String("error", err.Error()))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	if err := sched.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return sched.Stop()
}

// decodeScheduleArgs builds fresh typed args from a schedule's configured args.
func decodeScheduleArgs(api string, args any) (any, error) {
	if args == nil {
		return render.DecodeArgs(api, nil)
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("%s args: %w", api, err)
	}
	return render.DecodeArgs(api, raw)
}

// newOpsHandler serves Prometheus metrics and liveness/readiness checks.
func newOpsHandler(a *app, sched *scheduler.Scheduler) http.Handler {
	health := healthcheck.NewMetricsHandler(a.registry, "sitehooks")
	health.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(1000))
	health.AddReadinessCheck("store", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return a.store.Ping(ctx)
	})
	health.AddReadinessCheck("scheduler", func() error {
		if !sched.Running() {
			return errors.New("scheduler not running")
		}
		return nil
	})

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/live", health.LiveEndpoint)
	mux.HandleFunc("/ready", health.ReadyEndpoint)
	return mux
}
