// Package contrib accumulates per-timestep species-pair biomass flows into a
// [timestep][i][j] tensor.
package contrib

import "fmt"

// Tensor holds, for every timestep, an N x N matrix of flows where (i,j) is
// the change of species i attributable to species j. It is not symmetric.
type Tensor struct {
	steps  int
	n      int
	data   []float64
	filled []bool
}

// NewTensor allocates a zeroed tensor of steps matrices of size n x n.
func NewTensor(steps, n int) *Tensor {
	return &Tensor{
		steps:  steps,
		n:      n,
		data:   make([]float64, steps*n*n),
		filled: make([]bool, steps),
	}
}

// Steps returns the number of timestep slots.
func (t *Tensor) Steps() int { return t.steps }

// Size returns the number of species per side.
func (t *Tensor) Size() int { return t.n }

// Record stores the flow matrix of the step that ended at timestep ts.
// The flow realized while advancing into ts is attributed to slot ts-1.
func (t *Tensor) Record(ts int, m [][]float64) error {
	slot := ts - 1
	if slot < 0 || slot >= t.steps {
		return fmt.Errorf("timestep %d has no contribution slot (steps %d)", ts, t.steps)
	}
	if len(m) != t.n {
		return fmt.Errorf("matrix has %d rows, want %d", len(m), t.n)
	}
	base := slot * t.n * t.n
	for i, row := range m {
		if len(row) != t.n {
			return fmt.Errorf("matrix row %d has %d columns, want %d", i, len(row), t.n)
		}
		copy(t.data[base+i*t.n:], row)
	}
	t.filled[slot] = true
	return nil
}

// At returns the flow at slot ts for pair (i,j).
func (t *Tensor) At(ts, i, j int) float64 {
	if ts < 0 || ts >= t.steps || i < 0 || i >= t.n || j < 0 || j >= t.n {
		return 0
	}
	return t.data[(ts*t.n+i)*t.n+j]
}

// Filled reports whether slot ts was recorded.
func (t *Tensor) Filled(ts int) bool {
	return ts >= 0 && ts < t.steps && t.filled[ts]
}

// Series returns the flow of pair (i,j) across all slots.
func (t *Tensor) Series(i, j int) []float64 {
	out := make([]float64, t.steps)
	for ts := range out {
		out[ts] = t.At(ts, i, j)
	}
	return out
}

// RowSum returns the total flow into species i at slot ts, which equals the
// biomass change of i over the recorded step.
func (t *Tensor) RowSum(ts, i int) float64 {
	sum := 0.0
	for j := 0; j < t.n; j++ {
		sum += t.At(ts, i, j)
	}
	return sum
}

// Scale multiplies every stored flow by f.
func (t *Tensor) Scale(f float64) {
	for k := range t.data {
		t.data[k] *= f
	}
}
