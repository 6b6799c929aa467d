// Package reaction implements element auras and the fixed aura x element
// reaction table.
package reaction

// DamageType is the element (or pseudo element) of a damage or heal.
type DamageType int

const (
	Physical DamageType = iota
	Cryo
	Hydro
	Pyro
	Electro
	Anemo
	Geo
	Dendro
	Piercing
	Heal
)

func (d DamageType) String() string {
	switch d {
	case Physical:
		return "physical"
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
	case Piercing:
		return "piercing"
	case Heal:
		return "heal"
	default:
		return "unknown"
	}
}

// ParseDamageType parses a damage type name.
func ParseDamageType(name string) (DamageType, bool) {
	for d := Physical; d <= Heal; d++ {
		if d.String() == name {
			return d, true
		}
	}
	return Physical, false
}

// IsElemental reports whether d can apply or react with an aura.
func (d DamageType) IsElemental() bool {
	return d >= Cryo && d <= Dendro
}

// Aura is a bitmask: the base element in the low nibble and a coexisting
// element in the high nibble. Only cryo+dendro can coexist.
type Aura int

const (
	NoAura      Aura = 0
	CryoAura    Aura = Aura(Cryo)
	HydroAura   Aura = Aura(Hydro)
	PyroAura    Aura = Aura(Pyro)
	ElectroAura Aura = Aura(Electro)
	DendroAura  Aura = Aura(Dendro)
	CryoDendro  Aura = CryoAura | DendroAura<<4
)

func (a Aura) String() string {
	switch a {
	case NoAura:
		return "none"
	case CryoAura:
		return "cryo"
	case HydroAura:
		return "hydro"
	case PyroAura:
		return "pyro"
	case ElectroAura:
		return "electro"
	case DendroAura:
		return "dendro"
	case CryoDendro:
		return "cryoDendro"
	default:
		return "unknown"
	}
}

// Base returns the low-nibble element.
func (a Aura) Base() Aura { return a & 0x0f }

// Second returns the high-nibble element.
func (a Aura) Second() Aura { return (a >> 4) & 0x0f }

// Valid reports whether a is a reachable aura value.
func (a Aura) Valid() bool {
	switch a {
	case NoAura, CryoAura, HydroAura, PyroAura, ElectroAura, DendroAura, CryoDendro:
		return true
	default:
		return false
	}
}

// Type is an elemental reaction. Zero means no reaction.
type Type int

const (
	None Type = iota
	Melt
	Vaporize
	Overloaded
	Superconduct
	ElectroCharged
	Frozen
	SwirlCryo
	SwirlHydro
	SwirlPyro
	SwirlElectro
	CrystallizeCryo
	CrystallizeHydro
	CrystallizePyro
	CrystallizeElectro
	Burning
	Bloom
	Quicken
)

var typeNames = [...]string{
	None:               "none",
	Melt:               "melt",
	Vaporize:           "vaporize",
	Overloaded:         "overloaded",
	Superconduct:       "superconduct",
	ElectroCharged:     "electroCharged",
	Frozen:             "frozen",
	SwirlCryo:          "swirlCryo",
	SwirlHydro:         "swirlHydro",
	SwirlPyro:          "swirlPyro",
	SwirlElectro:       "swirlElectro",
	CrystallizeCryo:    "crystallizeCryo",
	CrystallizeHydro:   "crystallizeHydro",
	CrystallizePyro:    "crystallizePyro",
	CrystallizeElectro: "crystallizeElectro",
	Burning:            "burning",
	Bloom:              "bloom",
	Quicken:            "quicken",
}

func (t Type) String() string {
	if t < 0 || int(t) >= len(typeNames) {
		return "unknown"
	}
	return typeNames[t]
}

// Bonus is the flat damage increase the reaction adds to the triggering
// damage.
func (t Type) Bonus() int {
	switch t {
	case Melt, Vaporize, Overloaded:
		return 2
	case Superconduct, ElectroCharged, Frozen, Burning, Bloom, Quicken,
		CrystallizeCryo, CrystallizeHydro, CrystallizePyro, CrystallizeElectro:
		return 1
	default:
		return 0
	}
}

// IsSwirl reports whether t is one of the swirl reactions.
func (t Type) IsSwirl() bool { return t >= SwirlCryo && t <= SwirlElectro }

// IsCrystallize reports whether t is one of the crystallize reactions.
func (t Type) IsCrystallize() bool { return t >= CrystallizeCryo && t <= CrystallizeElectro }

// SwirledElement returns the element spread by a swirl reaction.
func (t Type) SwirledElement() DamageType {
	switch t {
	case SwirlCryo:
		return Cryo
	case SwirlHydro:
		return Hydro
	case SwirlPyro:
		return Pyro
	case SwirlElectro:
		return Electro
	default:
		return Physical
	}
}

// PiercesOthers reports whether the reaction deals 1 piercing damage to
// every other character on the target's side.
func (t Type) PiercesOthers() bool {
	return t == Superconduct || t == ElectroCharged
}

// ForcesSwitch reports whether the target side must switch to its next
// character.
func (t Type) ForcesSwitch() bool {
	return t == Overloaded
}

// Result is the outcome of elemental damage meeting an aura.
type Result struct {
	Reaction Type
	Aura     Aura
}

// Apply resolves damage of type d against aura a. Non elemental damage
// leaves the aura untouched.
func Apply(a Aura, d DamageType) Result {
	if !d.IsElemental() {
		return Result{Aura: a}
	}
	if a == CryoDendro {
		switch d {
		case Cryo, Dendro:
			return Result{Aura: CryoDendro}
		default:
			r := Apply(CryoAura, d)
			return Result{Reaction: r.Reaction, Aura: DendroAura}
		}
	}
	if a == NoAura {
		if d == Anemo || d == Geo {
			return Result{Aura: NoAura}
		}
		return Result{Aura: Aura(d)}
	}
	if Aura(d) == a {
		return Result{Aura: a}
	}
	if t := lookup(a, d); t != None {
		return Result{Reaction: t, Aura: NoAura}
	}
	if (a == CryoAura && d == Dendro) || (a == DendroAura && d == Cryo) {
		return Result{Aura: CryoDendro}
	}
	// anemo or geo on dendro
	return Result{Aura: a}
}

func lookup(a Aura, d DamageType) Type {
	switch a {
	case CryoAura:
		switch d {
		case Hydro:
			return Frozen
		case Pyro:
			return Melt
		case Electro:
			return Superconduct
		case Anemo:
			return SwirlCryo
		case Geo:
			return CrystallizeCryo
		}
	case HydroAura:
		switch d {
		case Cryo:
			return Frozen
		case Pyro:
			return Vaporize
		case Electro:
			return ElectroCharged
		case Anemo:
			return SwirlHydro
		case Geo:
			return CrystallizeHydro
		case Dendro:
			return Bloom
		}
	case PyroAura:
		switch d {
		case Cryo:
			return Melt
		case Hydro:
			return Vaporize
		case Electro:
			return Overloaded
		case Anemo:
			return SwirlPyro
		case Geo:
			return CrystallizePyro
		case Dendro:
			return Burning
		}
	case ElectroAura:
		switch d {
		case Cryo:
			return Superconduct
		case Hydro:
			return ElectroCharged
		case Pyro:
			return Overloaded
		case Anemo:
			return SwirlElectro
		case Geo:
			return CrystallizeElectro
		case Dendro:
			return Quicken
		}
	case DendroAura:
		switch d {
		case Hydro:
			return Bloom
		case Pyro:
			return Burning
		case Electro:
			return Quicken
		}
	}
	return None
}
