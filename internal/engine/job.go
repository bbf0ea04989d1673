package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nvandessel/atnsim/internal/atn"
	"github.com/nvandessel/atnsim/internal/constants"
	"github.com/nvandessel/atnsim/internal/contrib"
	"github.com/nvandessel/atnsim/internal/foodweb"
	"github.com/nvandessel/atnsim/internal/integrator"
	"github.com/nvandessel/atnsim/internal/jobs"
	"github.com/nvandessel/atnsim/internal/logging"
	"github.com/nvandessel/atnsim/internal/params"
	"github.com/nvandessel/atnsim/internal/report"
	"github.com/nvandessel/atnsim/internal/telemetry"
	"github.com/nvandessel/atnsim/internal/timeseries"
)

// JobContext carries everything specific to one job run.
type JobContext struct {
	// RunID identifies this run in logs, diagnostics and output names.
	RunID uuid.UUID
	// ManipulationID tags runs that alter the default parameters.
	ManipulationID string
	Job            *jobs.Job
	// Overrides replace individual trophic parameters for this run only.
	Overrides map[params.Param]float64
}

// NewJobContext returns a context with a fresh run id.
func NewJobContext(job *jobs.Job) JobContext {
	return JobContext{RunID: uuid.New(), Job: job}
}

// Result is the outcome of one job. A diverged job still yields a Result
// holding every timestep computed before the failure.
type Result struct {
	JobID          int
	RunID          uuid.UUID
	ManipulationID string

	// Nodes is the species order of every per-job array, ascending by id.
	Nodes         []int
	Graph         *foodweb.Graph
	Params        params.Values
	Ecosystem     *timeseries.Ecosystem
	Contributions *contrib.Tensor
	Scale         float64

	// LastTimestep is the last timestep holding a calculated value.
	LastTimestep int
	// Divergence is set when integration stopped early.
	Divergence *integrator.DivergenceError
	Elapsed    time.Duration
}

// Partial reports whether integration stopped before the last timestep.
func (r *Result) Partial() bool {
	return r.Divergence != nil
}

// Table assembles the report table of the result.
func (r *Result) Table() (*report.Table, error) {
	return report.Assemble(r.Nodes, r.Ecosystem, r.Contributions, r.LastTimestep, r.Scale)
}

// ProcessSimJob integrates one job.
//
// On divergence it returns the partial result together with an error
// wrapping the *integrator.DivergenceError. Any other failure returns a
// nil result.
func (e *Engine) ProcessSimJob(ctx context.Context, jc JobContext) (*Result, error) {
	if jc.Job == nil {
		return nil, errors.New("no job in context")
	}
	if jc.RunID == uuid.Nil {
		jc.RunID = uuid.New()
	}
	job := jc.Job
	start := time.Now()

	ctx, span := e.tracer.Start(ctx, "ProcessSimJob", trace.WithAttributes(
		attribute.Int("job.id", job.ID),
		attribute.String("run.id", jc.RunID.String()),
		attribute.Int("job.timesteps", job.Timesteps),
	))
	defer span.End()

	logger := e.logger.With("job", job.ID, "run_id", jc.RunID.String())

	res, err := e.process(ctx, jc, logger)
	elapsed := time.Since(start)
	if res != nil {
		res.Elapsed = elapsed
	}

	var div *integrator.DivergenceError
	switch {
	case err == nil:
		e.metrics.ObserveJob(telemetry.OutcomeSuccess, elapsed.Seconds())
		span.SetStatus(codes.Ok, "")
		logger.Info("job complete",
			"species", len(res.Nodes),
			"timesteps", job.Timesteps,
			"elapsed", elapsed.Round(time.Millisecond))
		return res, nil
	case errors.As(err, &div) && res != nil:
		e.metrics.ObserveJob(telemetry.OutcomeDiverged, elapsed.Seconds())
		span.RecordError(err)
		span.SetStatus(codes.Error, "diverged")
		logger.Warn("job diverged, keeping partial result",
			"last_timestep", res.LastTimestep,
			"timesteps", job.Timesteps,
			"elapsed", elapsed.Round(time.Millisecond))
		return res, fmt.Errorf("job %d: %w", job.ID, err)
	default:
		e.metrics.ObserveJob(telemetry.OutcomeFailed, elapsed.Seconds())
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("job %d: %w", job.ID, err)
	}
}

func (e *Engine) process(ctx context.Context, jc JobContext, logger *slog.Logger) (*Result, error) {
	job := jc.Job
	scale := e.opts.BiomassScale
	init := e.opts.InitTimeIndex

	if job.Timesteps < 2 {
		return nil, fmt.Errorf("job needs at least 2 timesteps, has %d", job.Timesteps)
	}
	if init >= job.Timesteps {
		return nil, fmt.Errorf("init time index %d outside %d timesteps", init, job.Timesteps)
	}

	specs, err := job.Species()
	if err != nil {
		return nil, fmt.Errorf("node config: %w", err)
	}
	nodes := sortedIDs(specs)

	vals, defaults, err := e.parameters(jc)
	if err != nil {
		return nil, err
	}

	g, err := JobGraph(job, nodes)
	if err != nil {
		return nil, err
	}

	eco, err := seedEcosystem(job, specs, nodes, init)
	if err != nil {
		return nil, err
	}

	sys, err := atn.New(vals, g, buildSpecies(specs, nodes, defaults, scale))
	if err != nil {
		return nil, fmt.Errorf("build equations: %w", err)
	}
	bs, err := integrator.New(sys, e.opts.Integration)
	if err != nil {
		return nil, err
	}

	res := &Result{
		JobID:          job.ID,
		RunID:          jc.RunID,
		ManipulationID: jc.ManipulationID,
		Nodes:          nodes,
		Graph:          g,
		Params:         vals,
		Ecosystem:      eco,
		Contributions:  contrib.NewTensor(job.Timesteps, len(nodes)),
		Scale:          scale,
		LastTimestep:   init,
	}

	logger.Debug("integrating job",
		"species", len(nodes),
		"timesteps", job.Timesteps,
		"producers", countProducers(sys))

	dt := e.opts.Integration.TimeInterval
	state := eco.Observed.State(nodes, init, scale)
	for t := init + 1; t < job.Timesteps; t++ {
		_, span := e.tracer.Start(ctx, "timestep", trace.WithAttributes(attribute.Int("timestep", t)))
		step, err := bs.PerformIntegration(ctx, float64(t)*dt, state)
		if err != nil {
			span.RecordError(err)
			span.End()
			var div *integrator.DivergenceError
			if errors.As(err, &div) {
				e.reportDivergence(jc, t, div, logger)
				res.Divergence = div
				return res, err
			}
			return nil, err
		}
		span.SetAttributes(
			attribute.Int("substeps", step.Substeps),
			attribute.Int("halvings", step.Halvings))
		span.End()

		state = step.State
		if err := eco.Calculated.SetState(nodes, t, state, scale); err != nil {
			return nil, err
		}
		if err := res.Contributions.Record(t, step.Contributions); err != nil {
			return nil, err
		}
		res.LastTimestep = t
		e.metrics.ObserveStep(step.Substeps, step.Halvings, step.Evaluations)
		logger.Log(ctx, logging.LevelTrace, "timestep integrated",
			"t", t,
			"substeps", step.Substeps,
			"halvings", step.Halvings,
			"evaluations", step.Evaluations)
	}
	return res, nil
}

// parameters resolves the trophic values and species fallbacks of a run.
func (e *Engine) parameters(jc JobContext) (params.Values, params.SpeciesDefaults, error) {
	tp, err := params.New(e.opts.Links)
	if err != nil {
		return params.Values{}, params.SpeciesDefaults{}, err
	}
	for p, v := range jc.Overrides {
		tp.Set(p, v)
	}
	vals := tp.Values()

	defaults, err := params.LoadSpeciesDefaults(e.opts.Links)
	if err != nil {
		return params.Values{}, params.SpeciesDefaults{}, err
	}

	if e.opts.Strict {
		if err := vals.Validate(); err != nil {
			return params.Values{}, params.SpeciesDefaults{}, err
		}
		if err := defaults.Validate(); err != nil {
			return params.Values{}, params.SpeciesDefaults{}, fmt.Errorf("invalid species defaults: %w", err)
		}
	}
	return vals, defaults, nil
}

func (e *Engine) reportDivergence(jc JobContext, t int, div *integrator.DivergenceError, logger *slog.Logger) {
	e.metrics.ObserveDivergence()
	logger.Debug("extrapolation table\n" + div.String(e.opts.BiomassScale))
	e.diag.Log(map[string]any{
		"event":    "integration_divergence",
		"job_id":   jc.Job.ID,
		"run_id":   jc.RunID.String(),
		"timestep": t,
		"time":     div.Time,
		"substep":  div.Step,
		"halvings": div.Halvings,
		"errors":   div.Errors,
		"table":    div.Table,
		"scale":    e.opts.BiomassScale,
	})
}

// JobGraph builds the relationship graph of a job over nodes. A stored
// relationship table takes precedence over the job's link list.
func JobGraph(job *jobs.Job, nodes []int) (*foodweb.Graph, error) {
	if job.RelationshipCSV != "" {
		rows, err := foodweb.ParseTable(job.RelationshipCSV)
		if err != nil {
			return nil, err
		}
		return foodweb.BuildGraph(rows, nodes)
	}
	return foodweb.BuildPathTable(foodweb.ConsumeMap(job.Links), nodes, constants.MaxPathDepth).Graph()
}

// RelationshipTable returns the three-section relationship table of a job,
// generating it from the link list when none is stored.
func RelationshipTable(job *jobs.Job) (string, error) {
	if job.RelationshipCSV != "" {
		return job.RelationshipCSV, nil
	}
	ids, err := job.NodeIDs()
	if err != nil {
		return "", err
	}
	sort.Ints(ids)
	return foodweb.BuildPathTable(foodweb.ConsumeMap(job.Links), ids, constants.MaxPathDepth).String(), nil
}

func sortedIDs(specs []jobs.NodeSpec) []int {
	ids := make([]int, len(specs))
	for i, s := range specs {
		ids[i] = s.ID
	}
	sort.Ints(ids)
	return ids
}

// seedEcosystem fills the observed series from the job and copies the
// observed values through init into the calculated series.
func seedEcosystem(job *jobs.Job, specs []jobs.NodeSpec, nodes []int, init int) (*timeseries.Ecosystem, error) {
	eco := timeseries.NewEcosystem(nodes, job.Timesteps)
	for _, s := range specs {
		if series, ok := job.Biomass[s.ID]; ok && len(series) > 0 {
			if len(series) <= init {
				return nil, fmt.Errorf("species %d has %d observed values, need index %d", s.ID, len(series), init)
			}
			if err := eco.Observed.Fill(s.ID, series); err != nil {
				return nil, err
			}
			continue
		}
		if init > 0 {
			return nil, fmt.Errorf("species %d has no observed series to start at index %d", s.ID, init)
		}
		if err := eco.Observed.Set(s.ID, 0, s.Biomass); err != nil {
			return nil, err
		}
	}
	for _, id := range nodes {
		for t := 0; t <= init; t++ {
			if err := eco.Calculated.Set(id, t, eco.Observed.Get(id, t)); err != nil {
				return nil, err
			}
		}
	}
	return eco, nil
}

// buildSpecies resolves node parameters in the order of nodes. Carrying
// capacity is normalized by scale.
func buildSpecies(specs []jobs.NodeSpec, nodes []int, d params.SpeciesDefaults, scale float64) []atn.Species {
	byID := make(map[int]jobs.NodeSpec, len(specs))
	for _, s := range specs {
		byID[s.ID] = s
	}
	out := make([]atn.Species, len(nodes))
	for i, id := range nodes {
		s := byID[id]
		out[i] = atn.Species{
			ID:               id,
			MetabolicRate:    s.Param(constants.NodeParamMetabolicRate, d.MetabolicRate),
			GrowthRate:       s.Param(constants.NodeParamGrowthRate, d.GrowthRate),
			CarryingCapacity: s.Param(constants.NodeParamCarryingCapacity, d.CarryingCapacity) / scale,
		}
	}
	return out
}

func countProducers(sys *atn.System) int {
	n := 0
	for i := 0; i < sys.Dim(); i++ {
		if sys.IsProducer(i) {
			n++
		}
	}
	return n
}
