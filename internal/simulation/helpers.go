package simulation

import (
	"fmt"
	"math/rand/v2"
)

// DemoTimesteps is the length of the built-in demonstration job.
const DemoTimesteps = 401

// Demo is the two-species demonstration job: producer 5 eaten by
// consumer 70.
func Demo() Scenario {
	return Scenario{
		Name:      "demo",
		Timesteps: DemoTimesteps,
		Species: []SpeciesSpec{
			{ID: 5, Biomass: 2000, PerUnitBiomass: 1},
			{ID: 70, Biomass: 2494, PerUnitBiomass: 13, MetabolicRate: 0.155},
		},
		Links: map[int][]int{70: {5}},
	}
}

// Chain builds a linear food chain 1 <- 2 <- ... <- n where species 1 is
// the only producer. Biomass halves and metabolic rate decreases up the
// chain.
func Chain(n, timesteps int) Scenario {
	sc := Scenario{
		Name:      fmt.Sprintf("chain-%d", n),
		Timesteps: timesteps,
		Links:     make(map[int][]int),
	}
	biomass := 2000.0
	for id := 1; id <= n; id++ {
		spec := SpeciesSpec{ID: id, Biomass: biomass, PerUnitBiomass: float64(id)}
		if id > 1 {
			spec.MetabolicRate = 0.3 / float64(id)
			sc.Links[id] = []int{id - 1}
		}
		sc.Species = append(sc.Species, spec)
		biomass /= 2
	}
	return sc
}

// RandomWeb builds a reproducible web of n species where the first
// producers species are producers and every other species eats at least
// one species with a lower id. Each further lower id is eaten with
// probability connectance.
func RandomWeb(seed uint64, n, producers int, connectance float64, timesteps int) Scenario {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	sc := Scenario{
		Name:      fmt.Sprintf("random-%d-%d", n, seed),
		Timesteps: timesteps,
		Links:     make(map[int][]int),
	}
	if producers < 1 {
		producers = 1
	}
	for id := 1; id <= n; id++ {
		spec := SpeciesSpec{
			ID:             id,
			Biomass:        500 + rng.Float64()*1500,
			PerUnitBiomass: 1 + float64(id-1)*rng.Float64(),
		}
		if id > producers {
			spec.MetabolicRate = 0.05 + 0.25*rng.Float64()
			var prey []int
			for j := 1; j < id; j++ {
				if rng.Float64() < connectance {
					prey = append(prey, j)
				}
			}
			if len(prey) == 0 {
				prey = []int{1 + rng.IntN(id-1)}
			}
			sc.Links[id] = prey
		}
		sc.Species = append(sc.Species, spec)
	}
	return sc
}
