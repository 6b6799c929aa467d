package game

import (
	"github.com/gitcg/gitcg-server-go/internal/game/reaction"
	"github.com/gitcg/gitcg-server-go/internal/game/variables"
)

// Zone capacity for summons and supports.
const maxZoneEntities = 4

// dealDamage runs one damage through the modify events, applies it and
// its reaction, and queues the follow-up events.
func (e *executor) dealDamage(info *DamageInfo, sourceCh int) {
	if e.halted() {
		return
	}
	target, _, ok := e.mutator.State().Character(info.TargetID)
	if !ok || !target.Alive() {
		return
	}

	oldAura := target.Aura()
	res := reaction.Result{Aura: oldAura}
	if info.Type.IsElemental() {
		res = reaction.Apply(oldAura, info.Type)
		info.Reaction = res.Reaction
		info.Value += res.Reaction.Bonus()
	}
	if info.Type != reaction.Piercing {
		e.dispatch(ModifyDamage0, &ModifyDamageArg{Damage: info, sourceCh: sourceCh})
		e.dispatch(ModifyDamage1, &ModifyDamageArg{Damage: info, Defending: true})
		if e.halted() {
			return
		}
	}

	target, _, _ = e.mutator.State().Character(info.TargetID)
	oldHealth := target.Health()
	newHealth := max(0, oldHealth-info.Value)
	if newHealth != oldHealth {
		e.mutator.Mutate(ModifyEntityVarMutation{ID: target.ID, Var: variables.Health, Value: newHealth})
	}
	if res.Aura != oldAura {
		e.mutator.Mutate(ModifyEntityVarMutation{ID: target.ID, Var: variables.Aura, Value: int(res.Aura)})
	}
	e.mutator.Emit(ExposedMutation{Case: "damage", Value: e.exposeDamage(info, target, oldHealth, newHealth, oldAura, res.Aura)})
	if info.IsSkillMain && e.record.mainDamageTarget == 0 {
		e.record.mainDamageTarget = info.TargetID
	}

	if info.Reaction != reaction.None {
		e.mutator.Emit(ExposedMutation{Case: "elementalReaction", Value: ExposedElementalReaction{
			CharacterID:           target.ID,
			CharacterDefinitionID: target.Definition.ID,
			Reaction:              info.Reaction.String(),
		}})
		e.recordReaction(target.ID, info.Reaction)
		e.emitEvent(OnReaction, ReactionArg{Who: info.TargetWho, CharacterID: target.ID, Reaction: info.Reaction, Damage: *info})
	}
	e.emitEvent(OnDamageOrHeal, DamageOrHealArg{Damage: *info, OldHealth: oldHealth})

	if newHealth == 0 && oldHealth > 0 {
		e.defeat(info.TargetWho, target.ID)
	}
	if info.Reaction != reaction.None {
		e.reactionEffects(info, sourceCh)
	}
}

// reactionEffects applies the side effects of a reaction.
func (e *executor) reactionEffects(info *DamageInfo, sourceCh int) {
	t := info.Reaction
	st := e.mutator.State()

	if t.PiercesOthers() || t.IsSwirl() {
		typ := reaction.Piercing
		if t.IsSwirl() {
			typ = t.SwirledElement()
		}
		for _, ch := range st.CharactersFromActive(info.TargetWho) {
			if ch.ID == info.TargetID || !ch.Alive() {
				continue
			}
			e.dealDamage(&DamageInfo{
				SourceID:  info.SourceID,
				SourceWho: info.SourceWho,
				TargetID:  ch.ID,
				TargetWho: info.TargetWho,
				Type:      typ,
				Value:     1,
				FromSkill: info.FromSkill,
			}, sourceCh)
		}
	}

	if t.ForcesSwitch() {
		st = e.mutator.State()
		target, _, _ := st.Character(info.TargetID)
		if target.Alive() && st.Players[info.TargetWho].ActiveCharacterID == target.ID {
			if next := st.NextAliveCharacter(info.TargetWho, 1); next != nil {
				e.switchActive(info.TargetWho, next.ID, false)
			}
		}
	}

	def, ok := e.registry.ReactionEntity(t)
	if !ok {
		return
	}
	switch {
	case t == reaction.Frozen:
		if target, _, _ := e.mutator.State().Character(info.TargetID); target.Alive() {
			e.createEntity(def, Area{Who: info.TargetWho, Zone: ZoneCharacter, CharacterID: info.TargetID})
		}
	default:
		e.createEntity(def, Area{Who: info.SourceWho, Zone: def.Type.Zone()})
	}
}

// defeat handles a character whose health reached zero.
func (e *executor) defeat(who, id int) {
	ch, _, _ := e.mutator.State().Character(id)
	for _, ent := range ch.Entities {
		e.dispose(ent.ID)
	}
	if ch.Energy() != 0 {
		e.mutator.Mutate(ModifyEntityVarMutation{ID: id, Var: variables.Energy, Value: 0})
	}
	if ch.Aura() != reaction.NoAura {
		e.mutator.Mutate(ModifyEntityVarMutation{ID: id, Var: variables.Aura, Value: int(reaction.NoAura)})
	}
	e.mutator.Mutate(SetPlayerFlagMutation{Who: who, Flag: FlagHasDefeated, Value: true})
	e.emitEvent(OnDefeated, DefeatedArg{Who: who, CharacterID: id})

	if e.mutator.State().AliveCount(who) == 0 {
		e.mutator.Mutate(SetWinnerMutation{Winner: 1 - who})
		e.mutator.Mutate(ChangePhaseMutation{Phase: PhaseGameEnd})
	}
}

// heal restores health to an alive character, never above its maximum.
func (e *executor) heal(info *DamageInfo) {
	if e.halted() {
		return
	}
	target, _, ok := e.mutator.State().Character(info.TargetID)
	if !ok || !target.Alive() {
		return
	}
	oldHealth := target.Health()
	newHealth := min(target.MaxHealth(), oldHealth+info.Value)
	info.Value = newHealth - oldHealth
	if newHealth != oldHealth {
		e.mutator.Mutate(ModifyEntityVarMutation{ID: target.ID, Var: variables.Health, Value: newHealth})
	}
	e.mutator.Emit(ExposedMutation{Case: "damage", Value: e.exposeDamage(info, target, oldHealth, newHealth, target.Aura(), target.Aura())})
	e.emitEvent(OnDamageOrHeal, DamageOrHealArg{Damage: *info, OldHealth: oldHealth})
}

// createEntity creates def in area, or refreshes the existing entity of
// the same definition. It returns the entity id, or 0 when the area is
// full or gone.
func (e *executor) createEntity(def *EntityDefinition, area Area) int {
	st := e.mutator.State()
	var existing []*EntityState
	p := st.Players[area.Who]
	switch area.Zone {
	case ZoneSummons:
		existing = p.Summons
	case ZoneSupports:
		existing = p.Supports
	case ZoneCombatStatuses:
		existing = p.CombatStatuses
	case ZoneCharacter:
		ch, who, ok := st.Character(area.CharacterID)
		if !ok || who != area.Who || !ch.Alive() {
			return 0
		}
		existing = ch.Entities
	}

	if !def.Duplicable {
		for _, ent := range existing {
			if ent.Definition.ID != def.ID {
				continue
			}
			for _, name := range def.Variables.Names() {
				if v := def.Variables.Get(name); ent.Variables.Get(name) != v || !ent.Variables.Has(name) {
					e.mutator.Mutate(ModifyEntityVarMutation{ID: ent.ID, Var: name, Value: v})
				}
			}
			return ent.ID
		}
	}
	if (area.Zone == ZoneSummons || area.Zone == ZoneSupports) && len(existing) >= maxZoneEntities {
		return 0
	}
	if def.Type == EntityEquipment {
		for _, tag := range []string{TagWeapon, TagArtifact, TagTechnique} {
			if !def.HasTag(tag) {
				continue
			}
			for _, ent := range existing {
				if ent.Definition.Type == EntityEquipment && ent.Definition.HasTag(tag) {
					e.dispose(ent.ID)
				}
			}
		}
	}

	id := e.mutator.allocID()
	e.mutator.Mutate(CreateEntityMutation{Where: area, Value: &EntityState{
		ID:         id,
		Definition: def,
		Variables:  def.Variables.Clone(),
	}})
	e.emitEvent(OnEnter, EnterArg{Who: area.Who, EntityID: id})
	return id
}

func (e *executor) exposeDamage(info *DamageInfo, target *CharacterState, oldHealth, newHealth int, oldAura, newAura reaction.Aura) ExposedDamage {
	d := ExposedDamage{
		Type:               info.Type.String(),
		Value:              info.Value,
		TargetID:           target.ID,
		TargetDefinitionID: target.Definition.ID,
		SourceID:           info.SourceID,
		IsSkillMainDamage:  info.IsSkillMain,
		OldHealth:          oldHealth,
		NewHealth:          newHealth,
		OldAura:            int(oldAura),
		NewAura:            int(newAura),
		Reaction:           info.Reaction.String(),
	}
	st := e.mutator.State()
	if ch, _, ok := st.Character(info.SourceID); ok {
		d.SourceDefinitionID = ch.Definition.ID
	} else if ent, _, ok := st.Entity(info.SourceID); ok {
		d.SourceDefinitionID = ent.Definition.ID
	} else if ent, _, ok := st.RemovedEntity(info.SourceID); ok {
		d.SourceDefinitionID = ent.Definition.ID
	}
	return d
}
