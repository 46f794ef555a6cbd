package store

import (
	"context"
	"log/slog"

	"github.com/note89/sitehooks/internal/logging"
	"github.com/note89/sitehooks/internal/runner"
)

// Recorder writes runner telemetry to a Store. Write failures are logged
// and never reach the dispatch caller.
type Recorder struct {
	store  Store
	logger *slog.Logger
}

// NewRecorder creates a Recorder over s.
func NewRecorder(s Store, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{store: s, logger: logger}
}

func (r *Recorder) ObserveInvocation(ctx context.Context, inv runner.Invocation) {
	rec := &InvocationRecord{
		DispatchID: inv.DispatchID,
		Plugin:     inv.Plugin,
		Absent:     inv.Absent,
		Duration:   inv.Duration,
	}
	if inv.Err != nil {
		rec.Error = inv.Err.Error()
	}
	if err := r.store.AppendInvocation(context.WithoutCancel(ctx), rec); err != nil {
		logging.LogWith(ctx, r.logger).Warn("record invocation failed", slog.String("error", err.Error()))
	}
}

func (r *Recorder) ObserveDispatch(ctx context.Context, d runner.Dispatch) {
	rec := &DispatchRecord{
		ID:           d.ID,
		API:          d.API,
		Mode:         string(d.Mode),
		Invoked:      d.Invoked,
		Results:      d.Results,
		FailedPlugin: d.FailedPlugin,
		StartedAt:    d.Started,
		Duration:     d.Duration,
	}
	if d.Err != nil {
		rec.Error = d.Err.Error()
	}
	if err := r.store.AppendDispatch(context.WithoutCancel(ctx), rec); err != nil {
		logging.LogWith(ctx, r.logger).Warn("record dispatch failed", slog.String("error", err.Error()))
	}
}

var _ runner.Observer = (*Recorder)(nil)
