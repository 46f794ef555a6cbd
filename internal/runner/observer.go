package runner

import (
	"context"
	"time"
)

// Invocation describes one plugin call within a dispatch.
type Invocation struct {
	DispatchID string
	API        string
	Plugin     string
	Mode       Mode
	Absent     bool
	Duration   time.Duration
	Err        error
}

// Dispatch summarizes one completed dispatch call.
type Dispatch struct {
	ID           string
	API          string
	Mode         Mode
	Invoked      int
	Results      int
	FailedPlugin string
	Err          error
	Started      time.Time
	Duration     time.Duration
}

// Observer receives dispatch telemetry. Observers run inline on the dispatch path.
type Observer interface {
	ObserveInvocation(ctx context.Context, inv Invocation)
	ObserveDispatch(ctx context.Context, d Dispatch)
}

func (r *Runner) observeInvocation(ctx context.Context, inv Invocation) {
	for _, o := range r.observers {
		o.ObserveInvocation(ctx, inv)
	}
}

func (r *Runner) observeDispatch(ctx context.Context, d Dispatch) {
	for _, o := range r.observers {
		o.ObserveDispatch(ctx, d)
	}
}
