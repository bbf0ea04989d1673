// Package integrator advances coupled ODE systems one fixed timestep at a
// time with Bulirsch-Stoer extrapolation and reports, alongside the new
// state, the per-pair decomposition of each component's change.
package integrator

import (
	"fmt"
	"strings"
)

// EquationSet selects the derivative function driven by the integrator.
type EquationSet int

const (
	// ATN is the allometric trophic network food-web model.
	ATN EquationSet = iota
	// ReferenceTest1 is y' = (-y sin x + 2 tan x) y with solution sec x.
	ReferenceTest1
	// ReferenceTest2 is y' = -200 x y^2 with solution 1/(1+100x^2).
	ReferenceTest2
)

var equationSetNames = map[EquationSet]string{
	ATN:            "atn",
	ReferenceTest1: "test1",
	ReferenceTest2: "test2",
}

// String returns the configuration name of the equation set.
func (e EquationSet) String() string {
	if name, ok := equationSetNames[e]; ok {
		return name
	}
	return fmt.Sprintf("EquationSet(%d)", int(e))
}

// ParseEquationSet maps a configuration name to an EquationSet.
func ParseEquationSet(s string) (EquationSet, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	for set, name := range equationSetNames {
		if name == key {
			return set, nil
		}
	}
	return 0, fmt.Errorf("unknown equation set %q (want atn, test1 or test2)", s)
}

// System is a first-order ODE system of Dim components.
//
// Derivatives writes dy/dx into dydx. It also writes the decomposition of
// each derivative into contrib, a row-major Dim x Dim matrix whose row i
// sums to dydx[i]. Entry (i,i) holds the self term of component i and
// entry (i,j) the part attributable to component j.
type System interface {
	Dim() int
	Derivatives(x float64, y, dydx, contrib []float64)
}
