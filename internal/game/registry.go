package game

import (
	"fmt"
	"sort"

	"github.com/gitcg/gitcg-server-go/internal/game/reaction"
)

// ReactionEntities names the entities the engine creates as reaction side
// effects. A zero id disables that side effect.
type ReactionEntities struct {
	FrozenStatus      int
	CrystallizeShield int
	DendroCore        int
	CatalyzingField   int
	BurningFlame      int
}

// Registry is the immutable set of definitions a match is played with.
// Build one with NewRegistryBuilder.
type Registry struct {
	characters       map[int]*CharacterDefinition
	entities         map[int]*EntityDefinition
	cards            map[int]*CardDefinition
	skills           map[int]*SkillDefinition
	reactionEntities ReactionEntities
}

// RegistryBuilder collects definitions before freezing them.
type RegistryBuilder struct {
	reg  *Registry
	errs []error
}

// NewRegistryBuilder creates an empty builder.
func NewRegistryBuilder() *RegistryBuilder {
	return &RegistryBuilder{reg: &Registry{
		characters: make(map[int]*CharacterDefinition),
		entities:   make(map[int]*EntityDefinition),
		cards:      make(map[int]*CardDefinition),
		skills:     make(map[int]*SkillDefinition),
	}}
}

// AddCharacter registers a character definition and its skills.
func (b *RegistryBuilder) AddCharacter(def *CharacterDefinition) *RegistryBuilder {
	if _, dup := b.reg.characters[def.ID]; dup {
		b.errs = append(b.errs, fmt.Errorf("duplicate character definition %d", def.ID))
		return b
	}
	b.reg.characters[def.ID] = def
	for _, s := range def.Skills {
		if _, dup := b.reg.skills[s.ID]; dup {
			b.errs = append(b.errs, fmt.Errorf("duplicate skill definition %d", s.ID))
			continue
		}
		b.reg.skills[s.ID] = s
	}
	return b
}

// AddEntity registers an entity definition.
func (b *RegistryBuilder) AddEntity(def *EntityDefinition) *RegistryBuilder {
	if _, dup := b.reg.entities[def.ID]; dup {
		b.errs = append(b.errs, fmt.Errorf("duplicate entity definition %d", def.ID))
		return b
	}
	b.reg.entities[def.ID] = def
	return b
}

// AddCard registers a card definition.
func (b *RegistryBuilder) AddCard(def *CardDefinition) *RegistryBuilder {
	if _, dup := b.reg.cards[def.ID]; dup {
		b.errs = append(b.errs, fmt.Errorf("duplicate card definition %d", def.ID))
		return b
	}
	b.reg.cards[def.ID] = def
	return b
}

// SetReactionEntities configures reaction side-effect entities.
func (b *RegistryBuilder) SetReactionEntities(re ReactionEntities) *RegistryBuilder {
	b.reg.reactionEntities = re
	return b
}

// Build validates and freezes the registry. The builder must not be used
// afterwards.
func (b *RegistryBuilder) Build() (*Registry, error) {
	re := b.reg.reactionEntities
	for _, id := range []int{re.FrozenStatus, re.CrystallizeShield, re.DendroCore, re.CatalyzingField, re.BurningFlame} {
		if id == 0 {
			continue
		}
		if _, ok := b.reg.entities[id]; !ok {
			b.errs = append(b.errs, fmt.Errorf("reaction entity %d: %w", id, ErrUnknownDefinition))
		}
	}
	if len(b.errs) > 0 {
		return nil, fmt.Errorf("invalid registry: %w", b.errs[0])
	}
	reg := b.reg
	b.reg = nil
	return reg, nil
}

// Character returns a character definition.
func (r *Registry) Character(id int) (*CharacterDefinition, error) {
	if def, ok := r.characters[id]; ok {
		return def, nil
	}
	return nil, fmt.Errorf("character %d: %w", id, ErrUnknownDefinition)
}

// Entity returns an entity definition.
func (r *Registry) Entity(id int) (*EntityDefinition, error) {
	if def, ok := r.entities[id]; ok {
		return def, nil
	}
	return nil, fmt.Errorf("entity %d: %w", id, ErrUnknownDefinition)
}

// Card returns a card definition.
func (r *Registry) Card(id int) (*CardDefinition, error) {
	if def, ok := r.cards[id]; ok {
		return def, nil
	}
	return nil, fmt.Errorf("card %d: %w", id, ErrUnknownDefinition)
}

// Skill returns a skill definition.
func (r *Registry) Skill(id int) (*SkillDefinition, error) {
	if def, ok := r.skills[id]; ok {
		return def, nil
	}
	return nil, fmt.Errorf("skill %d: %w", id, ErrUnknownDefinition)
}

// ReactionEntity returns the entity a reaction creates, if configured.
func (r *Registry) ReactionEntity(t reaction.Type) (*EntityDefinition, bool) {
	var id int
	switch {
	case t == reaction.Frozen:
		id = r.reactionEntities.FrozenStatus
	case t.IsCrystallize():
		id = r.reactionEntities.CrystallizeShield
	case t == reaction.Bloom:
		id = r.reactionEntities.DendroCore
	case t == reaction.Quicken:
		id = r.reactionEntities.CatalyzingField
	case t == reaction.Burning:
		id = r.reactionEntities.BurningFlame
	}
	def, ok := r.entities[id]
	return def, ok
}

// CardIDs returns every registered card id in ascending order.
func (r *Registry) CardIDs() []int {
	return sortedKeys(r.cards)
}

// CharacterIDs returns every registered character id in ascending order.
func (r *Registry) CharacterIDs() []int {
	return sortedKeys(r.characters)
}

func sortedKeys[V any](m map[int]V) []int {
	ids := make([]int, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
