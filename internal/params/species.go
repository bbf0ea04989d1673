package params

import "github.com/nvandessel/atnsim/internal/constants"

// SpeciesDefaults are used for node parameters missing from a job's node
// configuration. CarryingCapacity is in raw biomass units.
type SpeciesDefaults struct {
	MetabolicRate    float64 `json:"metabolic_rate" validate:"gte=0"`
	GrowthRate       float64 `json:"growth_rate" validate:"gte=0"`
	CarryingCapacity float64 `json:"carrying_capacity" validate:"gt=0"`
}

// LoadSpeciesDefaults reads the species fallbacks from src.
func LoadSpeciesDefaults(src Source) (SpeciesDefaults, error) {
	var out SpeciesDefaults
	var err error
	if out.MetabolicRate, err = lookupFloat(src, constants.KeyMetabolicRate); err != nil {
		return SpeciesDefaults{}, err
	}
	if out.GrowthRate, err = lookupFloat(src, constants.KeyGrowthRate); err != nil {
		return SpeciesDefaults{}, err
	}
	if out.CarryingCapacity, err = lookupFloat(src, constants.KeyCarryingCapacity); err != nil {
		return SpeciesDefaults{}, err
	}
	return out, nil
}

// Validate checks the species fallbacks.
func (d SpeciesDefaults) Validate() error {
	return validate.Struct(d)
}
