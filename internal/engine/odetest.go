package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/nvandessel/atnsim/internal/integrator"
	"github.com/nvandessel/atnsim/internal/report"
)

// Dataset compares a reference system's analytic solution with the
// integrator's over a fixed number of timesteps.
type Dataset struct {
	EquationSet integrator.EquationSet
	X           []float64
	Exact       []float64
	Computed    []float64
	// Valid is the number of leading timesteps holding a computed value.
	Valid      int
	Divergence *integrator.DivergenceError
}

// MaxAbsError returns the largest |computed-exact| over the valid prefix.
func (d *Dataset) MaxAbsError() float64 {
	worst := 0.0
	for i := 0; i < d.Valid; i++ {
		diff := d.Computed[i] - d.Exact[i]
		if diff < 0 {
			diff = -diff
		}
		if diff > worst {
			worst = diff
		}
	}
	return worst
}

// Table renders the dataset with a header of x values, one row of the
// analytic solution and one of the integrated solution.
func (d *Dataset) Table() *report.Table {
	t := &report.Table{HeaderLabel: "x", Header: make([]string, len(d.X))}
	for i, x := range d.X {
		t.Header[i] = fmt.Sprintf("%.4f", x)
	}
	t.Rows = []report.Row{
		{Label: "exact", Kind: report.RowOther, I: -1, J: -1, Values: d.Exact, Valid: len(d.Exact)},
		{Label: "calc", Kind: report.RowOther, I: -1, J: -1, Values: d.Computed, Valid: d.Valid},
	}
	return t
}

// GenODETestDataset integrates a reference equation set for steps
// timesteps starting from its analytic initial value. The step length is
// the reference system's own interval; tolerance and budgets come from
// the engine. Divergence yields the partial dataset and a wrapped error.
func (e *Engine) GenODETestDataset(ctx context.Context, set integrator.EquationSet, steps int) (*Dataset, error) {
	if steps < 1 {
		return nil, fmt.Errorf("steps must be positive, got %d", steps)
	}
	ref, err := integrator.NewReferenceSystem(set)
	if err != nil {
		return nil, err
	}
	cfg := e.opts.Integration
	cfg.TimeInterval = ref.TimeInterval()
	bs, err := integrator.New(ref, cfg)
	if err != nil {
		return nil, err
	}

	x0, y0 := ref.Start()
	ds := &Dataset{
		EquationSet: set,
		X:           make([]float64, steps),
		Exact:       make([]float64, steps),
		Computed:    make([]float64, steps),
	}
	for i := range ds.X {
		ds.X[i] = x0 + float64(i)*cfg.TimeInterval
		ds.Exact[i] = ref.Exact(ds.X[i])
	}
	ds.Computed[0] = y0
	ds.Valid = 1

	state := []float64{y0}
	for i := 1; i < steps; i++ {
		step, err := bs.PerformIntegration(ctx, ds.X[i], state)
		if err != nil {
			var div *integrator.DivergenceError
			if errors.As(err, &div) {
				ds.Divergence = div
				e.metrics.ObserveDivergence()
				e.logger.Warn("reference integration diverged", "equation_set", set.String(), "step", i)
				return ds, fmt.Errorf("%s: %w", set, err)
			}
			return nil, err
		}
		e.metrics.ObserveStep(step.Substeps, step.Halvings, step.Evaluations)
		state = step.State
		ds.Computed[i] = state[0]
		ds.Valid = i + 1
	}
	e.logger.Info("reference integration complete",
		"equation_set", set.String(),
		"steps", steps,
		"max_abs_error", ds.MaxAbsError())
	return ds, nil
}
