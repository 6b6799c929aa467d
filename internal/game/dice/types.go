package dice

import "strings"

// Type is the face of a single rolled die.
type Type int

const (
	Unspecified Type = iota // hidden die, only used in exposed views
	Cryo
	Hydro
	Pyro
	Electro
	Anemo
	Geo
	Dendro
	Omni
)

// ElementalTypes lists the seven elemental faces in type order.
var ElementalTypes = []Type{Cryo, Hydro, Pyro, Electro, Anemo, Geo, Dendro}

func (t Type) String() string {
	switch t {
	case Unspecified:
		return "unspecified"
	case Cryo:
		return "cryo"
	case Hydro:
		return "hydro"
	case Pyro:
		return "pyro"
	case Electro:
		return "electro"
	case Anemo:
		return "anemo"
	case Geo:
		return "geo"
	case Dendro:
		return "dendro"
	case Omni:
		return "omni"
	default:
		return "unknown"
	}
}

// ParseType parses a die face name.
func ParseType(name string) (Type, bool) {
	for t := Unspecified; t <= Omni; t++ {
		if t.String() == name {
			return t, true
		}
	}
	return Unspecified, false
}

// IsElemental reports whether t is one of the seven elemental faces.
func (t Type) IsElemental() bool {
	return t >= Cryo && t <= Dendro
}

// RequirementType is a cost token. Values 1..7 coincide with the elemental
// dice faces; the remaining values are pseudo-types.
type RequirementType int

const (
	Void RequirementType = iota // any die
	RequireCryo
	RequireHydro
	RequirePyro
	RequireElectro
	RequireAnemo
	RequireGeo
	RequireDendro
	Aligned // "same": all dice of one kind
	Energy
	Legend
)

// RequirementOf returns the elemental requirement type matching a die face.
func RequirementOf(t Type) RequirementType {
	if !t.IsElemental() {
		return Void
	}
	return RequirementType(t)
}

// DiceType returns the die face of an elemental requirement type.
func (r RequirementType) DiceType() (Type, bool) {
	if r >= RequireCryo && r <= RequireDendro {
		return Type(r), true
	}
	return Unspecified, false
}

// IsDice reports whether the requirement is paid with dice (as opposed to
// energy or the per-match legend allowance).
func (r RequirementType) IsDice() bool {
	return r != Energy && r != Legend
}

func (r RequirementType) String() string {
	switch r {
	case Void:
		return "void"
	case Aligned:
		return "aligned"
	case Energy:
		return "energy"
	case Legend:
		return "legend"
	default:
		if t, ok := r.DiceType(); ok {
			return t.String()
		}
		return "unknown"
	}
}

// ParseRequirementType parses a requirement token name such as "pyro",
// "void", "same"/"aligned", "energy" or "legend".
func ParseRequirementType(name string) (RequirementType, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "void", "any":
		return Void, true
	case "same", "aligned":
		return Aligned, true
	case "energy":
		return Energy, true
	case "legend":
		return Legend, true
	}
	for _, t := range ElementalTypes {
		if t.String() == strings.ToLower(strings.TrimSpace(name)) {
			return RequirementType(t), true
		}
	}
	return Void, false
}
