package integrator

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/nvandessel/atnsim/internal/constants"
)

// Config controls step size and error control.
type Config struct {
	// TimeInterval is the length of one timestep.
	TimeInterval float64
	// MaxError is the tolerated scaled error per component.
	MaxError float64
	// MaxOrder is the number of midpoint sequences (2, 4, 6, ...) tried
	// before a substep is halved.
	MaxOrder int
	// MaxHalvings bounds the substep halvings within one timestep.
	MaxHalvings int
}

// DefaultConfig returns the standard integration settings.
func DefaultConfig() Config {
	return Config{
		TimeInterval: constants.DefaultTimeInterval,
		MaxError:     constants.DefaultMaxError,
		MaxOrder:     constants.DefaultMaxOrder,
		MaxHalvings:  constants.DefaultMaxHalvings,
	}
}

// Validate checks that the settings can drive an integration.
func (c Config) Validate() error {
	if !(c.TimeInterval > 0) {
		return fmt.Errorf("time interval must be positive, got %v", c.TimeInterval)
	}
	if !(c.MaxError > 0) {
		return fmt.Errorf("max error must be positive, got %v", c.MaxError)
	}
	if c.MaxOrder < 2 {
		return fmt.Errorf("max order must be at least 2, got %d", c.MaxOrder)
	}
	if c.MaxHalvings < 0 {
		return fmt.Errorf("max halvings must not be negative, got %d", c.MaxHalvings)
	}
	return nil
}

// Step is the outcome of one successful timestep.
type Step struct {
	// State is the system state at the target time.
	State []float64
	// Contributions[i][j] is the change of component i over the timestep
	// attributable to component j. Row i sums to the change of State[i].
	Contributions [][]float64
	// Substeps is the number of accepted extrapolation substeps.
	Substeps int
	// Halvings is the number of times the substep was halved.
	Halvings int
	// Evaluations counts derivative evaluations.
	Evaluations int
}

// BulirschStoer integrates a System with modified-midpoint sequences and
// polynomial extrapolation in h^2.
//
// The state is augmented with Dim*Dim accumulators whose derivatives are
// the contribution matrix. The accumulators go through exactly the same
// linear midpoint and extrapolation arithmetic as the state, so their row
// sums reproduce the state change. Error control looks only at the first
// Dim components.
//
// A BulirschStoer is not safe for concurrent use.
type BulirschStoer struct {
	sys System
	cfg Config
	n   int
	aug int

	// scratch
	table [][][]float64
	tmpA  []float64
	tmpB  []float64
	tmpC  []float64
	evals int
}

// New creates an integrator for sys.
func New(sys System, cfg Config) (*BulirschStoer, error) {
	if sys == nil {
		return nil, errors.New("nil system")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid integrator config: %w", err)
	}
	n := sys.Dim()
	if n <= 0 {
		return nil, fmt.Errorf("system dimension must be positive, got %d", n)
	}
	aug := n + n*n
	bs := &BulirschStoer{
		sys:   sys,
		cfg:   cfg,
		n:     n,
		aug:   aug,
		table: make([][][]float64, cfg.MaxOrder),
		tmpA:  make([]float64, aug),
		tmpB:  make([]float64, aug),
		tmpC:  make([]float64, aug),
	}
	// Row k of the extrapolation tableau holds k+1 estimates.
	for k := range bs.table {
		bs.table[k] = make([][]float64, k+1)
		for j := range bs.table[k] {
			bs.table[k][j] = make([]float64, aug)
		}
	}
	return bs, nil
}

// Config returns the integrator settings.
func (bs *BulirschStoer) Config() Config { return bs.cfg }

// PerformIntegration advances state from targetTime-TimeInterval to
// targetTime. The input slice is not modified.
//
// When the scaled error cannot be brought under MaxError within MaxHalvings
// halvings, or the state stops being finite, it returns a *DivergenceError
// holding the last extrapolation table.
func (bs *BulirschStoer) PerformIntegration(ctx context.Context, targetTime float64, state []float64) (*Step, error) {
	if len(state) != bs.n {
		return nil, fmt.Errorf("state has %d components, system has %d", len(state), bs.n)
	}

	y := make([]float64, bs.aug)
	copy(y, state)
	next := make([]float64, bs.aug)

	start := targetTime - bs.cfg.TimeInterval
	x := start
	h := bs.cfg.TimeInterval
	eps := 1e-12 * bs.cfg.TimeInterval
	bs.evals = 0

	step := &Step{}
	for targetTime-x > eps {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("integration interrupted at t=%g: %w", x, err)
		}
		if x+h > targetTime {
			h = targetTime - x
		}

		ok, errs := bs.extrapolate(x, y, h, next)
		if ok {
			x += h
			y, next = next, y
			step.Substeps++
			continue
		}

		step.Halvings++
		if step.Halvings > bs.cfg.MaxHalvings {
			return nil, bs.divergence(x, h, errs, step.Halvings)
		}
		h /= 2
	}

	step.State = append([]float64(nil), y[:bs.n]...)
	step.Contributions = make([][]float64, bs.n)
	for i := 0; i < bs.n; i++ {
		row := y[bs.n+i*bs.n : bs.n+(i+1)*bs.n]
		step.Contributions[i] = append([]float64(nil), row...)
	}
	step.Evaluations = bs.evals
	return step, nil
}

// extrapolate tries one substep of length h from (x, y). On success the
// extrapolated state is written to out. It returns the scaled error of
// each order compared.
func (bs *BulirschStoer) extrapolate(x float64, y []float64, h float64, out []float64) (bool, []float64) {
	errs := make([]float64, 0, bs.cfg.MaxOrder-1)
	for k := 0; k < bs.cfg.MaxOrder; k++ {
		nk := substeps(k)
		row := bs.table[k]
		bs.midpoint(x, y, h, nk, row[0])

		for j := 1; j <= k; j++ {
			ratio := float64(nk) / float64(substeps(k-j))
			factor := 1 / (ratio*ratio - 1)
			cur, left, up := row[j], row[j-1], bs.table[k-1][j-1]
			for i := range cur {
				cur[i] = left[i] + (left[i]-up[i])*factor
			}
		}
		if k == 0 {
			continue
		}

		e := bs.scaledError(row[k], row[k-1])
		errs = append(errs, e)
		if e <= bs.cfg.MaxError && finite(row[k]) {
			copy(out, row[k])
			return true, errs
		}
	}
	return false, errs
}

// substeps is the midpoint sequence 2, 4, 6, ...
func substeps(k int) int { return 2 * (k + 1) }

// midpoint runs the modified midpoint method over [x, x+h] with nsteps
// substeps and writes the smoothed result to out.
func (bs *BulirschStoer) midpoint(x float64, y []float64, h float64, nsteps int, out []float64) {
	sub := h / float64(nsteps)
	zPrev, zCur, f := bs.tmpA, bs.tmpB, bs.tmpC

	copy(zPrev, y)
	bs.derive(x, zPrev, f)
	for i := range zCur {
		zCur[i] = zPrev[i] + sub*f[i]
	}
	for m := 1; m < nsteps; m++ {
		bs.derive(x+float64(m)*sub, zCur, f)
		for i := range zPrev {
			zPrev[i], zCur[i] = zCur[i], zPrev[i]+2*sub*f[i]
		}
	}
	bs.derive(x+h, zCur, f)
	for i := range out {
		out[i] = 0.5 * (zCur[i] + zPrev[i] + sub*f[i])
	}
}

// derive evaluates the augmented derivative: the system derivative for the
// first n components followed by the flattened contribution matrix.
func (bs *BulirschStoer) derive(x float64, y, f []float64) {
	bs.evals++
	bs.sys.Derivatives(x, y[:bs.n], f[:bs.n], f[bs.n:])
}

// scaledError is the largest |a-b| / max(1, |a|) over the state components.
// Non-finite values yield +Inf.
func (bs *BulirschStoer) scaledError(a, b []float64) float64 {
	worst := 0.0
	for i := 0; i < bs.n; i++ {
		d := math.Abs(a[i]-b[i]) / math.Max(1, math.Abs(a[i]))
		if math.IsNaN(d) || math.IsInf(d, 0) {
			return math.Inf(1)
		}
		if d > worst {
			worst = d
		}
	}
	return worst
}

func finite(v []float64) bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

func (bs *BulirschStoer) divergence(x, h float64, errs []float64, halvings int) *DivergenceError {
	table := make([][]float64, len(bs.table))
	for k, row := range bs.table {
		table[k] = append([]float64(nil), row[k][:bs.n]...)
	}
	return &DivergenceError{
		Time:     x,
		Step:     h,
		Halvings: halvings,
		Table:    table,
		Errors:   append([]float64(nil), errs...),
	}
}
