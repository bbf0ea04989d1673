// Package engine replicates simulation jobs: it builds the relationship
// graph and biomass series of a job, drives the integrator timestep by
// timestep and collects the contribution tensor for the report.
//
// An Engine holds configuration and instrumentation only. Everything that
// belongs to one job lives in the JobContext and Result of a single
// ProcessSimJob call.
package engine

import (
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/nvandessel/atnsim/internal/constants"
	"github.com/nvandessel/atnsim/internal/integrator"
	"github.com/nvandessel/atnsim/internal/logging"
	"github.com/nvandessel/atnsim/internal/params"
	"github.com/nvandessel/atnsim/internal/telemetry"
)

// Options configures an Engine.
type Options struct {
	// Integration holds the integrator settings.
	Integration integrator.Config

	// BiomassScale divides raw biomass before integration. Default: 1000.
	BiomassScale float64

	// InitTimeIndex is the timestep whose observed biomass seeds the run.
	InitTimeIndex int

	// Links is the source of trophic parameter and species defaults.
	Links params.Source

	// Strict validates parameters and species defaults before integrating.
	Strict bool

	Logger      *slog.Logger
	Diagnostics *logging.DiagnosticLogger
	Metrics     *telemetry.Metrics
	Tracer      trace.Tracer
}

// DefaultOptions returns options with the shipped defaults.
func DefaultOptions() Options {
	return Options{
		Integration:  integrator.DefaultConfig(),
		BiomassScale: constants.DefaultBiomassScale,
		Links:        params.DefaultSource(),
	}
}

// Engine processes simulation jobs.
type Engine struct {
	opts    Options
	logger  *slog.Logger
	diag    *logging.DiagnosticLogger
	metrics *telemetry.Metrics
	tracer  trace.Tracer
}

// New validates opts and creates an engine. Nil instrumentation is
// replaced by no-op implementations.
func New(opts Options) (*Engine, error) {
	if err := opts.Integration.Validate(); err != nil {
		return nil, fmt.Errorf("invalid integration settings: %w", err)
	}
	if !(opts.BiomassScale > 0) {
		return nil, fmt.Errorf("biomass scale must be positive, got %v", opts.BiomassScale)
	}
	if opts.InitTimeIndex < 0 {
		return nil, fmt.Errorf("init time index must be non-negative, got %d", opts.InitTimeIndex)
	}
	if opts.Links == nil {
		opts.Links = params.DefaultSource()
	}

	e := &Engine{
		opts:    opts,
		logger:  opts.Logger,
		diag:    opts.Diagnostics,
		metrics: opts.Metrics,
		tracer:  opts.Tracer,
	}
	if e.logger == nil {
		e.logger = logging.Discard()
	}
	if e.tracer == nil {
		e.tracer = noop.NewTracerProvider().Tracer(telemetry.TracerName)
	}
	return e, nil
}

// Options returns the engine settings.
func (e *Engine) Options() Options { return e.opts }
