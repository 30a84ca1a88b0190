package models

import "fmt"

// AssuranceLevel is a DigiD / eIDAS level of assurance. Levels are ordered:
// basis < midden < substantieel < hoog.
type AssuranceLevel string

const (
	AssuranceBasis        AssuranceLevel = "basis"
	AssuranceMidden       AssuranceLevel = "midden"
	AssuranceSubstantieel AssuranceLevel = "substantieel"
	AssuranceHoog         AssuranceLevel = "hoog"
)

var assuranceOrder = []AssuranceLevel{
	AssuranceBasis,
	AssuranceMidden,
	AssuranceSubstantieel,
	AssuranceHoog,
}

// Rank returns the position of the level in the ordered sequence, or -1 when unknown.
func (l AssuranceLevel) Rank() int {
	for i, level := range assuranceOrder {
		if level == l {
			return i
		}
	}
	return -1
}

// Valid reports whether l is one of the four known levels.
func (l AssuranceLevel) Valid() bool {
	return l.Rank() >= 0
}

// Satisfies reports whether l is at least as strong as required.
// An unknown level never satisfies anything.
func (l AssuranceLevel) Satisfies(required AssuranceLevel) bool {
	have, want := l.Rank(), required.Rank()
	if have < 0 || want < 0 {
		return false
	}
	return have >= want
}

func (l AssuranceLevel) String() string {
	return string(l)
}

// ParseAssuranceLevel converts a claim value into an AssuranceLevel.
func ParseAssuranceLevel(s string) (AssuranceLevel, error) {
	level := AssuranceLevel(s)
	if !level.Valid() {
		return "", fmt.Errorf("unknown assurance level %q", s)
	}
	return level, nil
}

// AssuranceLevels returns the known levels from weakest to strongest.
func AssuranceLevels() []AssuranceLevel {
	out := make([]AssuranceLevel, len(assuranceOrder))
	copy(out, assuranceOrder)
	return out
}
