package integrator

import (
	"fmt"
	"strings"
)

// DivergenceError reports a timestep whose extrapolation error could not be
// brought under tolerance. It carries the final extrapolation table for
// diagnosis.
type DivergenceError struct {
	// Time is the abscissa the failing substep started from.
	Time float64
	// Step is the last substep length attempted.
	Step float64
	// Halvings is the number of halvings spent in the timestep.
	Halvings int
	// Table[k] is the order-k extrapolated state of the last attempt.
	Table [][]float64
	// Errors[k-1] is the scaled error between orders k and k-1.
	Errors []float64
}

func (e *DivergenceError) Error() string {
	return fmt.Sprintf("integration diverged at t=%g (substep %g after %d halvings)", e.Time, e.Step, e.Halvings)
}

// String renders the extrapolation table with state values multiplied by
// scale, one order per line.
func (e *DivergenceError) String(scale float64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "extrapolation table at t=%g, h=%g\n", e.Time, e.Step)
	for k, row := range e.Table {
		fmt.Fprintf(&b, "k=%d n=%d", k, substeps(k))
		if k > 0 && k-1 < len(e.Errors) {
			fmt.Fprintf(&b, " err=%.3e", e.Errors[k-1])
		} else {
			b.WriteString(" err=-")
		}
		for _, v := range row {
			fmt.Fprintf(&b, " %12.4f", v*scale)
		}
		b.WriteString("\n")
	}
	return b.String()
}
