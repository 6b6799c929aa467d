package game

import (
	"slices"

	"github.com/gitcg/gitcg-server-go/internal/game/dice"
	"github.com/gitcg/gitcg-server-go/internal/game/variables"
)

// Well-known definition tags.
const (
	TagLegend          = "legend"
	TagNoTuning        = "noTuning"
	TagFood            = "food"
	TagWeapon          = "weapon"
	TagArtifact        = "artifact"
	TagTechnique       = "technique"
	TagEventEffectless = "eventEffectless"
	TagShield          = "shield"
)

// SkillType classifies initiative skills.
type SkillType int

const (
	SkillNormal SkillType = iota
	SkillElemental
	SkillBurst
	// SkillCard is the pseudo skill that runs a card body.
	SkillCard
	// SkillTrigger is the pseudo skill that runs an event handler.
	SkillTrigger
)

func (t SkillType) String() string {
	switch t {
	case SkillNormal:
		return "normal"
	case SkillElemental:
		return "elemental"
	case SkillBurst:
		return "burst"
	case SkillCard:
		return "card"
	case SkillTrigger:
		return "trigger"
	default:
		return "unknown"
	}
}

// SkillDefinition is an initiative skill of a character.
type SkillDefinition struct {
	ID   int
	Name string
	Type SkillType
	Cost dice.Requirement
	// Action is the skill body. It emits everything through the Context.
	Action func(c *Context)
}

// Initiative reports whether the skill can be chosen as an action.
func (s *SkillDefinition) Initiative() bool {
	return s.Type == SkillNormal || s.Type == SkillElemental || s.Type == SkillBurst
}

// DescriptionFunc renders one description placeholder against the live
// state. id is the card or entity being described.
type DescriptionFunc func(st *GameState, id int) string

// CharacterDefinition is the static data of a character.
type CharacterDefinition struct {
	ID        int
	Name      string
	Tags      []string
	Element   dice.Type
	MaxHealth int
	MaxEnergy int
	Skills    []*SkillDefinition
	// Triggers are the character's passive skills.
	Triggers map[EventName]Trigger
}

// Skill returns the skill with the given definition id.
func (d *CharacterDefinition) Skill(id int) *SkillDefinition {
	for _, s := range d.Skills {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// DefinitionID implements Definition.
func (d *CharacterDefinition) DefinitionID() int { return d.ID }

// EntityType classifies entity definitions.
type EntityType int

const (
	EntityStatus EntityType = iota
	EntityEquipment
	EntityCombatStatus
	EntitySummon
	EntitySupport
)

func (t EntityType) String() string {
	switch t {
	case EntityStatus:
		return "status"
	case EntityEquipment:
		return "equipment"
	case EntityCombatStatus:
		return "combatStatus"
	case EntitySummon:
		return "summon"
	case EntitySupport:
		return "support"
	default:
		return "unknown"
	}
}

// Zone returns the zone entities of this type are created in.
func (t EntityType) Zone() Zone {
	switch t {
	case EntityCombatStatus:
		return ZoneCombatStatuses
	case EntitySummon:
		return ZoneSummons
	case EntitySupport:
		return ZoneSupports
	default:
		return ZoneCharacter
	}
}

// EntityDefinition is the static data of an entity.
type EntityDefinition struct {
	ID   int
	Name string
	Type EntityType
	Tags []string
	// Variables are the initial values; usage, usagePerRound, duration and
	// shield are understood by the engine.
	Variables  variables.Bag
	VisibleVar variables.Name
	HintText   string
	// Duplicable lets several entities of this definition share an area.
	// Otherwise creating it again refreshes the existing one.
	Duplicable   bool
	Triggers     map[EventName]Trigger
	Descriptions map[string]DescriptionFunc
}

// DefinitionID implements Definition.
func (d *EntityDefinition) DefinitionID() int { return d.ID }

// HasTag reports whether the definition carries tag.
func (d *EntityDefinition) HasTag(tag string) bool { return slices.Contains(d.Tags, tag) }

// CardType classifies card definitions.
type CardType int

const (
	CardEvent CardType = iota
	CardSupport
	CardEquipment
)

func (t CardType) String() string {
	switch t {
	case CardEvent:
		return "event"
	case CardSupport:
		return "support"
	case CardEquipment:
		return "equipment"
	default:
		return "unknown"
	}
}

// CardDefinition is the static data of an action card.
type CardDefinition struct {
	ID   int
	Name string
	Type CardType
	Tags []string
	Cost dice.Requirement
	// Targets lists candidate target id tuples. A nil Targets means the card
	// takes no target; a non-nil Targets returning nothing means no target
	// is available.
	Targets func(st *GameState, who int) [][]int
	// Filter is the play condition.
	Filter       func(c *Context, targets []int) bool
	Action       func(c *Context, targets []int)
	Descriptions map[string]DescriptionFunc
}

// DefinitionID implements Definition.
func (d *CardDefinition) DefinitionID() int { return d.ID }

// HasTag reports whether the definition carries tag.
func (d *CardDefinition) HasTag(tag string) bool { return slices.Contains(d.Tags, tag) }

// FullCost is the cost including the legend token.
func (d *CardDefinition) FullCost() dice.Requirement {
	if d.HasTag(TagLegend) {
		return d.Cost.Add(dice.Legend, 1)
	}
	return d.Cost.Clone()
}

// Definition is implemented by character, entity and card definitions.
type Definition interface {
	DefinitionID() int
}

// ListenScope widens which events an entity handler receives.
type ListenScope int

const (
	// ListenSelf receives events whose subject is the owning player and,
	// for character-scoped events, the owning character.
	ListenSelf ListenScope = iota
	// ListenPlayer receives every event of the owning player.
	ListenPlayer
	// ListenAll receives events of both players.
	ListenAll
)

// Trigger is an event handler. Handle returns true when the effect fired,
// which consumes one usage and one usagePerRound.
type Trigger struct {
	Listen ListenScope
	Filter func(c *Context, arg EventArg) bool
	Handle func(c *Context, arg EventArg) bool
}
