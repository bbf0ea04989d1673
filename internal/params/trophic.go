// Package params holds the link-level constants of the Allometric Trophic
// Network model and the species-level fallbacks used when a node
// configuration omits them.
package params

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/nvandessel/atnsim/internal/constants"
)

// Param identifies one trophic link parameter.
type Param int

const (
	RelativeHalfSaturation Param = iota // A
	HalfSaturation                      // B0
	PredatorInterference                // D
	AssimilationPlant                   // e for plant prey
	AssimilationAnimal                  // e for animal prey
	FunctionalResponse                  // Q
	MaxIngestionRate                    // Y
	numParams
)

var paramKeys = [numParams]string{
	RelativeHalfSaturation: constants.KeyRelativeHalfSaturation,
	HalfSaturation:         constants.KeyHalfSaturation,
	PredatorInterference:   constants.KeyPredatorInterference,
	AssimilationPlant:      constants.KeyAssimilationPlant,
	AssimilationAnimal:     constants.KeyAssimilationAnimal,
	FunctionalResponse:     constants.KeyFunctionalResponse,
	MaxIngestionRate:       constants.KeyMaxIngestionRate,
}

var paramNames = [numParams]string{"A", "B0", "D", "EPlant", "EAnimal", "Q", "Y"}

// AllParams lists every parameter in declaration order.
func AllParams() []Param {
	out := make([]Param, 0, numParams)
	for p := Param(0); p < numParams; p++ {
		out = append(out, p)
	}
	return out
}

// Key returns the configuration key the parameter is reset from.
func (p Param) Key() string {
	if p < 0 || p >= numParams {
		return ""
	}
	return paramKeys[p]
}

// String returns the short symbol of the parameter.
func (p Param) String() string {
	if p < 0 || p >= numParams {
		return fmt.Sprintf("Param(%d)", int(p))
	}
	return paramNames[p]
}

// TrophicParameters holds the seven link constants. Each value can be set
// explicitly or reset to the default found in the configuration source.
// Manipulation of individual values is supported but a run normally uses
// the defaults unchanged.
type TrophicParameters struct {
	source Source
	values [numParams]float64
}

// New builds a parameter set with every value reset from src.
func New(src Source) (*TrophicParameters, error) {
	tp := &TrophicParameters{source: src}
	if err := tp.ResetAll(); err != nil {
		return nil, err
	}
	return tp, nil
}

// Get returns the current value of p.
func (tp *TrophicParameters) Get(p Param) float64 {
	return tp.values[p]
}

// Set overrides the value of p.
func (tp *TrophicParameters) Set(p Param, v float64) {
	tp.values[p] = v
}

// Reset restores p to its configured default.
func (tp *TrophicParameters) Reset(p Param) error {
	v, err := lookupFloat(tp.source, p.Key())
	if err != nil {
		return err
	}
	tp.values[p] = v
	return nil
}

// ResetAll restores every parameter, stopping at the first failure.
func (tp *TrophicParameters) ResetAll() error {
	for _, p := range AllParams() {
		if err := tp.Reset(p); err != nil {
			return err
		}
	}
	return nil
}

// Values returns an immutable snapshot for one integration run.
func (tp *TrophicParameters) Values() Values {
	return Values{
		A:       tp.values[RelativeHalfSaturation],
		B0:      tp.values[HalfSaturation],
		D:       tp.values[PredatorInterference],
		EPlant:  tp.values[AssimilationPlant],
		EAnimal: tp.values[AssimilationAnimal],
		Q:       tp.values[FunctionalResponse],
		Y:       tp.values[MaxIngestionRate],
	}
}

// Values is a frozen copy of the trophic parameters.
type Values struct {
	A       float64 `json:"a" validate:"gt=0"`
	B0      float64 `json:"b0" validate:"gt=0"`
	D       float64 `json:"d" validate:"gt=0"`
	EPlant  float64 `json:"e_plant" validate:"gt=0,lte=1"`
	EAnimal float64 `json:"e_animal" validate:"gt=0,lte=1"`
	Q       float64 `json:"q" validate:"gt=0"`
	Y       float64 `json:"y" validate:"gt=0"`
}

// Hill returns the functional-response exponent 1+Q.
func (v Values) Hill() float64 {
	return 1 + v.Q
}

// HalfSaturationDensity returns the effective half-saturation density A*B0.
func (v Values) HalfSaturationDensity() float64 {
	return v.A * v.B0
}

var validate = validator.New()

// Validate checks that every value is strictly positive and that the
// assimilation efficiencies are fractions.
func (v Values) Validate() error {
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("invalid trophic parameters: %w", err)
	}
	return nil
}
