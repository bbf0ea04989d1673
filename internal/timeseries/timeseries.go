// Package timeseries stores per-species biomass sequences over a fixed number
// of timesteps. Observed (reference) and calculated series are kept apart.
package timeseries

import (
	"fmt"
	"sort"
)

// Series is an ordered biomass sequence indexed by timestep.
type Series []float64

// Store maps species node ids to fixed-length series. Index 0 holds the
// initial condition.
type Store struct {
	steps  int
	series map[int]Series
}

// New creates a store for the given species, each with steps zeroed values.
func New(nodes []int, steps int) *Store {
	s := &Store{steps: steps, series: make(map[int]Series, len(nodes))}
	for _, id := range nodes {
		s.series[id] = make(Series, steps)
	}
	return s
}

// Steps returns the series length.
func (s *Store) Steps() int { return s.steps }

// Nodes returns the stored species ids, ascending.
func (s *Store) Nodes() []int {
	out := make([]int, 0, len(s.series))
	for id := range s.series {
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}

// Set stores value for species id at timestep t.
func (s *Store) Set(id, t int, value float64) error {
	ser, ok := s.series[id]
	if !ok {
		return fmt.Errorf("unknown species %d", id)
	}
	if t < 0 || t >= s.steps {
		return fmt.Errorf("timestep %d out of range [0,%d)", t, s.steps)
	}
	ser[t] = value
	return nil
}

// Get returns the value for species id at timestep t, or zero when either
// is out of range.
func (s *Store) Get(id, t int) float64 {
	ser, ok := s.series[id]
	if !ok || t < 0 || t >= s.steps {
		return 0
	}
	return ser[t]
}

// Series returns a copy of the sequence for species id.
func (s *Store) Series(id int) (Series, bool) {
	ser, ok := s.series[id]
	if !ok {
		return nil, false
	}
	return append(Series(nil), ser...), true
}

// Fill copies values into the series for id, starting at timestep 0.
// Values beyond the store length are dropped.
func (s *Store) Fill(id int, values []float64) error {
	ser, ok := s.series[id]
	if !ok {
		return fmt.Errorf("unknown species %d", id)
	}
	copy(ser, values)
	return nil
}

// State returns the values of every species at timestep t in the order of
// nodes, divided by scale.
func (s *Store) State(nodes []int, t int, scale float64) []float64 {
	out := make([]float64, len(nodes))
	for i, id := range nodes {
		out[i] = s.Get(id, t) / scale
	}
	return out
}

// SetState writes a normalized state vector back at timestep t, multiplying
// each value by scale.
func (s *Store) SetState(nodes []int, t int, state []float64, scale float64) error {
	if len(state) != len(nodes) {
		return fmt.Errorf("state has %d values for %d species", len(state), len(nodes))
	}
	for i, id := range nodes {
		if err := s.Set(id, t, state[i]*scale); err != nil {
			return err
		}
	}
	return nil
}

// Ecosystem pairs the observed and calculated stores of one job.
type Ecosystem struct {
	Observed   *Store
	Calculated *Store
}

// NewEcosystem allocates both stores for the same species and length.
func NewEcosystem(nodes []int, steps int) *Ecosystem {
	return &Ecosystem{
		Observed:   New(nodes, steps),
		Calculated: New(nodes, steps),
	}
}
