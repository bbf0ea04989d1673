package simulation

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/nvandessel/atnsim/internal/constants"
	"github.com/nvandessel/atnsim/internal/engine"
	"github.com/nvandessel/atnsim/internal/jobs"
)

// Scenario defines one synthetic food web.
type Scenario struct {
	Name      string
	Timesteps int
	Species   []SpeciesSpec
	// Links maps a predator id to the ids it eats.
	Links map[int][]int
	// Include flags the job for included-mode batches.
	Include bool
}

// SpeciesSpec is a flat builder for one node configuration entry. Zero
// rates are omitted from the node configuration so the configured
// species defaults apply.
type SpeciesSpec struct {
	ID               int
	Biomass          float64
	PerUnitBiomass   float64
	MetabolicRate    float64
	GrowthRate       float64
	CarryingCapacity float64
}

func (s SpeciesSpec) nodeParams() []string {
	var out []string
	if s.MetabolicRate != 0 {
		out = append(out, constants.NodeParamMetabolicRate+"="+formatFloat(s.MetabolicRate))
	}
	if s.GrowthRate != 0 {
		out = append(out, constants.NodeParamGrowthRate+"="+formatFloat(s.GrowthRate))
	}
	if s.CarryingCapacity != 0 {
		out = append(out, constants.NodeParamCarryingCapacity+"="+formatFloat(s.CarryingCapacity))
	}
	return out
}

// NodeConfig renders the species as a node configuration string.
func (sc Scenario) NodeConfig() string {
	parts := []string{strconv.Itoa(len(sc.Species))}
	for _, s := range sc.Species {
		perUnit := s.PerUnitBiomass
		if perUnit == 0 {
			perUnit = 1
		}
		np := s.nodeParams()
		parts = append(parts,
			"["+strconv.Itoa(s.ID)+"]",
			formatFloat(s.Biomass),
			strconv.FormatFloat(perUnit, 'f', 3, 64),
			strconv.Itoa(len(np)),
		)
		parts = append(parts, np...)
		parts = append(parts, "0")
	}
	return strings.Join(parts, ",")
}

// Job converts the scenario into a job record with the given id.
func (sc Scenario) Job(id int) *jobs.Job {
	links := make(map[int][]int, len(sc.Links))
	for pred, prey := range sc.Links {
		links[pred] = append([]int(nil), prey...)
	}
	return &jobs.Job{
		ID:          id,
		Description: sc.Name,
		NodeConfig:  sc.NodeConfig(),
		Timesteps:   sc.Timesteps,
		Links:       links,
		Include:     sc.Include,
		CreatedAt:   time.Now().UTC(),
	}
}

// Nodes returns the species ids in ascending order.
func (sc Scenario) Nodes() []int {
	ids := make([]int, len(sc.Species))
	for i, s := range sc.Species {
		ids[i] = s.ID
	}
	sort.Ints(ids)
	return ids
}

// SimulationResult holds the engine result of every scenario, keyed by
// scenario name, and the batch outcome.
type SimulationResult struct {
	Results map[string]*engine.Result
	Summary engine.BatchSummary
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
