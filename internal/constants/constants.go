// Package constants provides named constants used throughout the atnsim codebase.
// This centralizes magic numbers and configuration keys so that the engine,
// the CLI, and the stores agree on them.
package constants

// Integration defaults
const (
	// DefaultBiomassScale divides raw biomass before integration. The ATN
	// half-saturation default (0.5) presumes biomasses near unit order.
	DefaultBiomassScale = 1000.0

	// DefaultTimeInterval is the integration interval between two timesteps.
	DefaultTimeInterval = 0.1

	// DefaultMaxError is the extrapolation error tolerance of the integrator.
	DefaultMaxError = 1.0e-3

	// DefaultMaxOrder is the number of rows in the extrapolation table.
	DefaultMaxOrder = 8

	// DefaultMaxHalvings bounds how many times a timestep may be subdivided
	// before integration is declared divergent.
	DefaultMaxHalvings = 12

	// DefaultReferenceTimesteps is the timestep count used by the reference
	// ODE datasets.
	DefaultReferenceTimesteps = 20
)

// Path table defaults
const (
	// MaxPathDepth bounds the length of trophic paths counted between two species.
	MaxPathDepth = 8
)

// Link parameter property keys. These are the flat configuration keys the
// trophic parameters are reset from.
const (
	KeyRelativeHalfSaturation = "relativeHalfSaturationDensityDefault"
	KeyHalfSaturation         = "halfSaturationDensityDefault"
	KeyPredatorInterference   = "predatorInterferenceDefault"
	KeyAssimilationPlant      = "assimilationEfficiencyPlantDefault"
	KeyAssimilationAnimal     = "assimilationEfficiencyAnimalDefault"
	KeyFunctionalResponse     = "functionalResponseControlParameterDefault"
	KeyMaxIngestionRate       = "maximumIngestionRateDefault"
)

// Species parameter property keys. Node configurations that omit a value
// fall back to these.
const (
	KeyMetabolicRate    = "metabolicRateDefault"
	KeyGrowthRate       = "growthRateDefault"
	KeyCarryingCapacity = "carryingCapacityDefault"
)

// DefaultLinkProperties holds the shipped values of every property key.
var DefaultLinkProperties = map[string]string{
	KeyRelativeHalfSaturation: "1.0",
	KeyHalfSaturation:         "0.5",
	KeyPredatorInterference:   "0.5",
	KeyAssimilationPlant:      "0.45",
	KeyAssimilationAnimal:     "0.85",
	KeyFunctionalResponse:     "0.2",
	KeyMaxIngestionRate:       "6.0",
	KeyMetabolicRate:          "0.5",
	KeyGrowthRate:             "1.0",
	KeyCarryingCapacity:       "10000",
}

// Node configuration parameter names.
const (
	NodeParamMetabolicRate    = "X"
	NodeParamGrowthRate       = "R"
	NodeParamCarryingCapacity = "K"
)

// Report row label formats.
const (
	HeaderLabel           = "timesteps"
	ObservedRowFormat     = "i.%d.sim"
	CalculatedRowFormat   = "i.%d.calc"
	ContributionRowFormat = "i.%d.j.%d."
)
