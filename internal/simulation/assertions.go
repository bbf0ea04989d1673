package simulation

import (
	"math"
	"testing"

	"github.com/nvandessel/atnsim/internal/engine"
)

// AssertConserved asserts that at every recorded slot the contribution row
// of each species sums to its calculated biomass change, within tol
// relative to the change.
func AssertConserved(t *testing.T, res *engine.Result, tol float64) {
	t.Helper()
	if res == nil {
		t.Fatal("AssertConserved: nil result")
	}
	for ts := 1; ts <= res.LastTimestep; ts++ {
		if !res.Contributions.Filled(ts - 1) {
			continue
		}
		for i, id := range res.Nodes {
			delta := res.Ecosystem.Calculated.Get(id, ts) - res.Ecosystem.Calculated.Get(id, ts-1)
			sum := res.Contributions.RowSum(ts-1, i) * res.Scale
			if math.Abs(delta-sum) > tol*math.Max(1, math.Abs(delta)) {
				t.Errorf("AssertConserved: species %d t=%d: delta %.9g, contributions %.9g", id, ts, delta, sum)
			}
		}
	}
}

// AssertFinite asserts that every calculated value is finite and
// non-negative up to the last computed timestep.
func AssertFinite(t *testing.T, res *engine.Result) {
	t.Helper()
	for _, id := range res.Nodes {
		for ts := 0; ts <= res.LastTimestep; ts++ {
			v := res.Ecosystem.Calculated.Get(id, ts)
			if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
				t.Errorf("AssertFinite: species %d t=%d: biomass %v", id, ts, v)
			}
		}
	}
}

// AssertCompleted asserts that the job integrated every timestep.
func AssertCompleted(t *testing.T, res *engine.Result) {
	t.Helper()
	if res == nil {
		t.Fatal("AssertCompleted: nil result")
	}
	if res.Partial() {
		t.Errorf("AssertCompleted: job %d diverged after timestep %d: %v", res.JobID, res.LastTimestep, res.Divergence)
	}
}

// AssertProducerCount asserts how many species the graph treats as
// producers.
func AssertProducerCount(t *testing.T, res *engine.Result, want int) {
	t.Helper()
	got := 0
	for _, id := range res.Nodes {
		if res.Graph.IsProducer(id) {
			got++
		}
	}
	if got != want {
		t.Errorf("AssertProducerCount: got %d producers, want %d", got, want)
	}
}
