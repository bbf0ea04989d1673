package integrator

import (
	"fmt"
	"math"
)

// ReferenceSystem is a scalar test equation with a known analytic solution.
type ReferenceSystem interface {
	System
	// Start returns the initial abscissa and value.
	Start() (x0, y0 float64)
	// Exact returns the analytic solution at x.
	Exact(x float64) float64
	// TimeInterval is the step used by the reference dataset.
	TimeInterval() float64
}

// NewReferenceSystem returns the test equation for set.
func NewReferenceSystem(set EquationSet) (ReferenceSystem, error) {
	switch set {
	case ReferenceTest1:
		return secant{}, nil
	case ReferenceTest2:
		return rational{}, nil
	default:
		return nil, fmt.Errorf("%s is not a reference equation set", set)
	}
}

// secant is y' = (-y sin x + 2 tan x) y.
type secant struct{}

func (secant) Dim() int { return 1 }

func (secant) Derivatives(x float64, y, dydx, contrib []float64) {
	dydx[0] = (-y[0]*math.Sin(x) + 2*math.Tan(x)) * y[0]
	contrib[0] = dydx[0]
}

func (secant) Start() (float64, float64) { return math.Pi / 6, 2 / math.Sqrt(3) }

func (secant) Exact(x float64) float64 { return 1 / math.Cos(x) }

func (secant) TimeInterval() float64 { return 0.2 }

// rational is y' = -200 x y^2.
type rational struct{}

func (rational) Dim() int { return 1 }

func (rational) Derivatives(x float64, y, dydx, contrib []float64) {
	dydx[0] = -200 * x * y[0] * y[0]
	contrib[0] = dydx[0]
}

func (rational) Start() (float64, float64) { return 0, 1 }

func (rational) Exact(x float64) float64 { return 1 / (1 + 100*x*x) }

func (rational) TimeInterval() float64 { return 0.02 }
