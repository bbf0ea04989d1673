package constants

// Label is the relationship between two species as seen from the source species.
type Label string

const (
	// LabelPredator means the source species eats the target directly.
	LabelPredator Label = "p"

	// LabelPrey means the target species eats the source directly.
	LabelPrey Label = "y"

	// LabelIndirectPredator means the source reaches the target through a
	// longer chain of feeding links.
	LabelIndirectPredator Label = "ip"

	// LabelIndirectPrey means the target reaches the source through a longer
	// chain of feeding links.
	LabelIndirectPrey Label = "iy"

	// LabelNone means no trophic path connects the two species.
	LabelNone Label = "-"
)

// Valid returns true if the label is a recognized value.
func (l Label) Valid() bool {
	switch l {
	case LabelPredator, LabelPrey, LabelIndirectPredator, LabelIndirectPrey, LabelNone:
		return true
	}
	return false
}

// Eats returns true when the source species feeds directly on the target.
// Only these entries couple two species in the ATN equations.
func (l Label) Eats() bool {
	return l == LabelPredator
}

// String returns the string representation of the label.
func (l Label) String() string {
	return string(l)
}
