// Package telemetry provides Prometheus metrics and OpenTelemetry tracing
// for simulation runs.
package telemetry

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Job outcomes used as the "outcome" label.
const (
	OutcomeSuccess  = "success"
	OutcomeDiverged = "diverged"
	OutcomeFailed   = "failed"
	OutcomeMissing  = "missing"
)

// Metrics holds the run counters. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	jobs        *prometheus.CounterVec
	jobDuration prometheus.Histogram
	steps       prometheus.Counter
	substeps    prometheus.Counter
	halvings    prometheus.Counter
	evaluations prometheus.Counter
	divergences prometheus.Counter
}

// NewMetrics registers the run metrics on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		jobs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "atnsim_jobs_total",
			Help: "Simulation jobs processed by outcome",
		}, []string{"outcome"}),
		jobDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "atnsim_job_duration_seconds",
			Help:    "Wall time spent integrating one job",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 60},
		}),
		steps: f.NewCounter(prometheus.CounterOpts{
			Name: "atnsim_timesteps_total",
			Help: "Timesteps integrated successfully",
		}),
		substeps: f.NewCounter(prometheus.CounterOpts{
			Name: "atnsim_substeps_total",
			Help: "Accepted extrapolation substeps",
		}),
		halvings: f.NewCounter(prometheus.CounterOpts{
			Name: "atnsim_step_halvings_total",
			Help: "Substep halvings forced by the error estimate",
		}),
		evaluations: f.NewCounter(prometheus.CounterOpts{
			Name: "atnsim_derivative_evaluations_total",
			Help: "Derivative evaluations",
		}),
		divergences: f.NewCounter(prometheus.CounterOpts{
			Name: "atnsim_divergences_total",
			Help: "Timesteps that failed to converge",
		}),
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveStep records one successful timestep.
func (m *Metrics) ObserveStep(substeps, halvings, evaluations int) {
	if m == nil {
		return
	}
	m.steps.Inc()
	m.substeps.Add(float64(substeps))
	m.halvings.Add(float64(halvings))
	m.evaluations.Add(float64(evaluations))
}

// ObserveDivergence records a timestep that failed to converge.
func (m *Metrics) ObserveDivergence() {
	if m == nil {
		return
	}
	m.divergences.Inc()
}

// ObserveJob records a finished job.
func (m *Metrics) ObserveJob(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.jobs.WithLabelValues(outcome).Inc()
	if outcome != OutcomeMissing {
		m.jobDuration.Observe(seconds)
	}
}

// WriteTextfile writes the metrics in Prometheus text format, for pickup by
// a node exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics to %s: %w", path, err)
	}
	return nil
}
