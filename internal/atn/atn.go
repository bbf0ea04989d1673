// Package atn implements the allometric trophic network equations as an
// integrator.System over normalized biomass.
package atn

import (
	"fmt"
	"math"

	"github.com/nvandessel/atnsim/internal/foodweb"
	"github.com/nvandessel/atnsim/internal/params"
)

// Species holds the per-node rates of one species. CarryingCapacity is in
// normalized biomass units.
type Species struct {
	ID               int
	MetabolicRate    float64
	GrowthRate       float64
	CarryingCapacity float64
}

// System is the ATN right-hand side for a fixed set of species.
//
// A consumer i feeds on prey j with the functional response
//
//	F_ij = w_ij B_j^h / (B0^h + D B_i B0^h + sum_k w_ik B_k^h)
//
// where h = 1+Q, B0 = A*B0 and w_ij = 1/|prey(i)|. Producers grow
// logistically, consumers lose x_i B_i to metabolism, and every predator k
// of i removes x_k Y B_k F_ki / e_ki.
type System struct {
	vals     params.Values
	species  []Species
	producer []bool
	prey     [][]int
	weight   []float64

	hill float64
	b0h  float64
	pow  []float64
}

// New builds the system. species fixes the state vector order; only feeding
// links between listed species are used.
func New(vals params.Values, g *foodweb.Graph, species []Species) (*System, error) {
	if g == nil {
		return nil, fmt.Errorf("nil relationship graph")
	}
	if len(species) == 0 {
		return nil, fmt.Errorf("no species")
	}

	index := make(map[int]int, len(species))
	for i, sp := range species {
		if _, dup := index[sp.ID]; dup {
			return nil, fmt.Errorf("duplicate species %d", sp.ID)
		}
		index[sp.ID] = i
	}

	n := len(species)
	s := &System{
		vals:     vals,
		species:  append([]Species(nil), species...),
		producer: make([]bool, n),
		prey:     make([][]int, n),
		weight:   make([]float64, n),
		hill:     vals.Hill(),
		b0h:      math.Pow(vals.HalfSaturationDensity(), vals.Hill()),
		pow:      make([]float64, n),
	}
	for i, sp := range species {
		for _, id := range g.PreyOf(sp.ID) {
			if j, ok := index[id]; ok {
				s.prey[i] = append(s.prey[i], j)
			}
		}
		s.producer[i] = len(s.prey[i]) == 0
		if !s.producer[i] {
			s.weight[i] = 1 / float64(len(s.prey[i]))
		}
	}
	return s, nil
}

// Dim returns the number of species.
func (s *System) Dim() int { return len(s.species) }

// IsProducer reports whether the species at index i eats nothing.
func (s *System) IsProducer(i int) bool { return s.producer[i] }

// Derivatives implements integrator.System. The system is autonomous, so
// x is unused.
func (s *System) Derivatives(_ float64, b, dydx, contrib []float64) {
	n := len(s.species)
	for i := range contrib {
		contrib[i] = 0
	}
	for i := 0; i < n; i++ {
		// Negative biomass overshoot inside a substep must not produce NaN.
		s.pow[i] = math.Pow(math.Max(b[i], 0), s.hill)
	}

	for i, sp := range s.species {
		if s.producer[i] {
			contrib[i*n+i] = sp.GrowthRate * b[i] * (1 - b[i]/sp.CarryingCapacity)
			continue
		}
		contrib[i*n+i] = -sp.MetabolicRate * b[i]

		denom := s.b0h + s.vals.D*b[i]*s.b0h
		for _, j := range s.prey[i] {
			denom += s.weight[i] * s.pow[j]
		}
		for _, j := range s.prey[i] {
			f := s.weight[i] * s.pow[j] / denom
			flow := sp.MetabolicRate * s.vals.Y * b[i] * f
			contrib[i*n+j] += flow
			contrib[j*n+i] -= flow / s.efficiency(j)
		}
	}

	for i := 0; i < n; i++ {
		sum := 0.0
		for _, c := range contrib[i*n : (i+1)*n] {
			sum += c
		}
		dydx[i] = sum
	}
}

func (s *System) efficiency(prey int) float64 {
	if s.producer[prey] {
		return s.vals.EPlant
	}
	return s.vals.EAnimal
}
