package integrator

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exchange moves mass between two pools: y0' = -a y0 + b y1, y1' = a y0 - b y1.
type exchange struct{ a, b float64 }

func (exchange) Dim() int { return 2 }

func (s exchange) Derivatives(_ float64, y, dydx, contrib []float64) {
	contrib[0], contrib[1] = -s.a*y[0], s.b*y[1]
	contrib[2], contrib[3] = s.a*y[0], -s.b*y[1]
	dydx[0] = contrib[0] + contrib[1]
	dydx[1] = contrib[2] + contrib[3]
}

// blowup is y' = y^2, which has a pole at x = 1 when y(0) = 1.
type blowup struct{}

func (blowup) Dim() int { return 1 }

func (blowup) Derivatives(_ float64, y, dydx, contrib []float64) {
	dydx[0] = y[0] * y[0]
	contrib[0] = dydx[0]
}

func integrate(t *testing.T, sys ReferenceSystem, steps int) (xs, ys []float64, err error) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.TimeInterval = sys.TimeInterval()
	bs, err := New(sys, cfg)
	require.NoError(t, err)

	x0, y0 := sys.Start()
	state := []float64{y0}
	for k := 1; k <= steps; k++ {
		target := x0 + float64(k)*cfg.TimeInterval
		step, err := bs.PerformIntegration(context.Background(), target, state)
		if err != nil {
			return xs, ys, err
		}
		state = step.State
		xs = append(xs, target)
		ys = append(ys, state[0])
	}
	return xs, ys, nil
}

func TestReferenceTest2_TracksSolution(t *testing.T) {
	sys, err := NewReferenceSystem(ReferenceTest2)
	require.NoError(t, err)

	xs, ys, err := integrate(t, sys, 20)
	require.NoError(t, err)
	require.Len(t, ys, 20)

	tol := DefaultConfig().MaxError
	for k := range ys {
		assert.InDelta(t, sys.Exact(xs[k]), ys[k], tol, "x=%.2f", xs[k])
	}
}

func TestReferenceTest1_TracksSolutionBeforePole(t *testing.T) {
	sys, err := NewReferenceSystem(ReferenceTest1)
	require.NoError(t, err)

	xs, ys, err := integrate(t, sys, 20)
	if err != nil {
		var div *DivergenceError
		require.ErrorAs(t, err, &div)
		assert.Greater(t, div.Time, 1.5, "diverged before approaching the pole")
	}
	// Five whole steps fit between pi/6 and pi/2.
	require.GreaterOrEqual(t, len(ys), 5)

	tol := DefaultConfig().MaxError
	for k := range ys {
		if xs[k] >= math.Pi/2 {
			break
		}
		assert.InDelta(t, sys.Exact(xs[k]), ys[k], tol, "x=%.4f", xs[k])
	}
}

func TestPerformIntegration_Conservation(t *testing.T) {
	bs, err := New(exchange{a: 0.7, b: 0.3}, DefaultConfig())
	require.NoError(t, err)

	state := []float64{1.2, 0.4}
	for k := 1; k <= 10; k++ {
		step, err := bs.PerformIntegration(context.Background(), float64(k)*0.1, state)
		require.NoError(t, err)
		for i := range state {
			sum := 0.0
			for _, c := range step.Contributions[i] {
				sum += c
			}
			assert.InDelta(t, step.State[i]-state[i], sum, 1e-12, "component %d step %d", i, k)
		}
		// Total mass is conserved by the system itself.
		assert.InDelta(t, 1.6, step.State[0]+step.State[1], 1e-9)
		state = step.State
	}
}

func TestPerformIntegration_Idempotent(t *testing.T) {
	run := func() *Step {
		bs, err := New(exchange{a: 2, b: 0.1}, DefaultConfig())
		require.NoError(t, err)
		step, err := bs.PerformIntegration(context.Background(), 0.1, []float64{1, 0})
		require.NoError(t, err)
		return step
	}
	a, b := run(), run()
	assert.Equal(t, a.State, b.State)
	assert.Equal(t, a.Contributions, b.Contributions)
}

func TestPerformIntegration_DoesNotModifyInput(t *testing.T) {
	bs, err := New(exchange{a: 1, b: 1}, DefaultConfig())
	require.NoError(t, err)
	state := []float64{1, 0}
	_, err = bs.PerformIntegration(context.Background(), 0.1, state)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0}, state)
}

func TestPerformIntegration_Divergence(t *testing.T) {
	cfg := Config{TimeInterval: 2, MaxError: 1e-3, MaxOrder: 2, MaxHalvings: 0}
	bs, err := New(blowup{}, cfg)
	require.NoError(t, err)

	step, err := bs.PerformIntegration(context.Background(), 2, []float64{1})
	assert.Nil(t, step)

	var div *DivergenceError
	require.ErrorAs(t, err, &div)
	assert.Equal(t, 0.0, div.Time)
	assert.Equal(t, 1, div.Halvings)
	assert.Len(t, div.Table, 2)
	assert.Len(t, div.Errors, 1)
	assert.Contains(t, div.String(1000), "k=1 n=4")
	assert.True(t, strings.HasPrefix(div.Error(), "integration diverged at t=0"))
}

func TestPerformIntegration_Cancelled(t *testing.T) {
	bs, err := New(exchange{a: 1, b: 1}, DefaultConfig())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = bs.PerformIntegration(ctx, 0.1, []float64{1, 0})
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestPerformIntegration_WrongDimension(t *testing.T) {
	bs, err := New(exchange{}, DefaultConfig())
	require.NoError(t, err)
	_, err = bs.PerformIntegration(context.Background(), 0.1, []float64{1})
	assert.Error(t, err)
}

func TestNew_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"zero interval", Config{TimeInterval: 0, MaxError: 1e-3, MaxOrder: 8}},
		{"zero error", Config{TimeInterval: 0.1, MaxError: 0, MaxOrder: 8}},
		{"order too small", Config{TimeInterval: 0.1, MaxError: 1e-3, MaxOrder: 1}},
		{"negative halvings", Config{TimeInterval: 0.1, MaxError: 1e-3, MaxOrder: 8, MaxHalvings: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(exchange{}, tt.cfg)
			assert.Error(t, err)
		})
	}
	_, err := New(nil, DefaultConfig())
	assert.Error(t, err)
}

func TestParseEquationSet(t *testing.T) {
	for _, set := range []EquationSet{ATN, ReferenceTest1, ReferenceTest2} {
		got, err := ParseEquationSet(set.String())
		require.NoError(t, err)
		assert.Equal(t, set, got)
	}
	got, err := ParseEquationSet(" TEST2 ")
	require.NoError(t, err)
	assert.Equal(t, ReferenceTest2, got)

	_, err = ParseEquationSet("rk4")
	assert.Error(t, err)
	assert.Equal(t, "EquationSet(9)", EquationSet(9).String())

	_, err = NewReferenceSystem(ATN)
	assert.Error(t, err)
}
