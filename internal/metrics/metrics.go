// Package metrics exports dispatch telemetry as Prometheus collectors.
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/note89/sitehooks/internal/runner"
)

const namespace = "sitehooks"

// Outcome label values.
const (
	OutcomeOK     = "ok"
	OutcomeEmpty  = "empty"
	OutcomeAbsent = "absent"
	OutcomeError  = "error"
)

// Metrics is a runner.Observer backed by Prometheus collectors.
type Metrics struct {
	dispatches  *prometheus.CounterVec
	invocations *prometheus.CounterVec
	duration    *prometheus.HistogramVec
}

// New creates the collectors and registers them on reg. A nil reg leaves
// them unregistered.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_total",
			Help:      "Total number of API dispatches by outcome.",
		}, []string{"api", "mode", "outcome"}),
		invocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plugin_invocations_total",
			Help:      "Total number of plugin hook invocations by outcome.",
		}, []string{"api", "plugin", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_duration_seconds",
			Help:      "Wall time of API dispatches.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"api", "mode"}),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.dispatches, m.invocations, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ObserveInvocation counts one plugin call.
func (m *Metrics) ObserveInvocation(_ context.Context, inv runner.Invocation) {
	outcome := OutcomeOK
	switch {
	case inv.Err != nil:
		outcome = OutcomeError
	case inv.Absent:
		outcome = OutcomeAbsent
	}
	m.invocations.WithLabelValues(inv.API, inv.Plugin, outcome).Inc()
}

// ObserveDispatch counts one dispatch and records its duration. A dispatch
// with no results is "empty".
func (m *Metrics) ObserveDispatch(_ context.Context, d runner.Dispatch) {
	outcome := OutcomeOK
	switch {
	case d.Err != nil:
		outcome = OutcomeError
	case d.Results == 0:
		outcome = OutcomeEmpty
	}
	m.dispatches.WithLabelValues(d.API, string(d.Mode), outcome).Inc()
	m.duration.WithLabelValues(d.API, string(d.Mode)).Observe(d.Duration.Seconds())
}

var _ runner.Observer = (*Metrics)(nil)
