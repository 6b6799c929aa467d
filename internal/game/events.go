package game

import (
	"github.com/gitcg/gitcg-server-go/internal/game/dice"
	"github.com/gitcg/gitcg-server-go/internal/game/reaction"
)

// EventName identifies a dispatched event.
type EventName string

const (
	OnBattleBegin EventName = "onBattleBegin"
	OnRoundBegin  EventName = "onRoundBegin"
	OnActionPhase EventName = "onActionPhase"
	OnEndPhase    EventName = "onEndPhase"

	ModifyAction0 EventName = "modifyAction0"
	ModifyAction1 EventName = "modifyAction1"
	ModifyAction2 EventName = "modifyAction2"
	ModifyAction3 EventName = "modifyAction3"

	OnBeforeUseSkill    EventName = "onBeforeUseSkill"
	OnUseSkill          EventName = "onUseSkill"
	OnBeforePlayCard    EventName = "onBeforePlayCard"
	OnPlayCard          EventName = "onPlayCard"
	OnSwitchActive      EventName = "onSwitchActive"
	OnDisposeOrTuneCard EventName = "onDisposeOrTuneCard"
	OnAction            EventName = "onAction"

	// ModifyDamage0 runs damage increases, ModifyDamage1 damage decreases.
	ModifyDamage0  EventName = "modifyDamage0"
	ModifyDamage1  EventName = "modifyDamage1"
	OnDamageOrHeal EventName = "onDamageOrHeal"
	OnReaction     EventName = "onReaction"

	OnEnter    EventName = "onEnter"
	OnDispose  EventName = "onDispose"
	OnDefeated EventName = "onDefeated"
)

// ModifyActionEvents are dispatched in this order for every candidate
// action.
var ModifyActionEvents = [...]EventName{ModifyAction0, ModifyAction1, ModifyAction2, ModifyAction3}

// Broadcast is the subject player of events that concern no single side.
const Broadcast = -1

// EventArg is the payload of an event. Subject returns the player the
// event concerns (Broadcast for phase events) and the character it
// concerns, or 0.
type EventArg interface {
	Subject() (who int, characterID int)
}

// PhaseEventArg is the payload of phase events.
type PhaseEventArg struct {
	Phase Phase
	Round int
}

func (PhaseEventArg) Subject() (int, int) { return Broadcast, 0 }

// ModifyActionArg carries a candidate action through the modifyAction
// events. Handlers change it in place.
type ModifyActionArg struct {
	Action *ActionInfo
}

func (a *ModifyActionArg) Subject() (int, int) {
	if a.Action.Type == ActionUseSkill {
		return a.Action.Who, a.Action.CharacterID
	}
	return a.Action.Who, 0
}

// DeductCost removes up to n tokens of type t from the cost. Returns false
// when the cost had none.
func (a *ModifyActionArg) DeductCost(t dice.RequirementType, n int) bool {
	if a.Action.Cost[t] == 0 {
		return false
	}
	a.Action.Cost = a.Action.Cost.Deduct(t, n)
	return true
}

// DeductOmniCost removes one die from the cost, preferring void, then
// aligned, then elemental tokens.
func (a *ModifyActionArg) DeductOmniCost(n int) bool {
	deducted := false
	for ; n > 0; n-- {
		done := false
		for _, t := range []dice.RequirementType{dice.Void, dice.Aligned,
			dice.RequireCryo, dice.RequireHydro, dice.RequirePyro, dice.RequireElectro,
			dice.RequireAnemo, dice.RequireGeo, dice.RequireDendro} {
			if a.DeductCost(t, 1) {
				done = true
				break
			}
		}
		if !done {
			break
		}
		deducted = true
	}
	return deducted
}

// AddCost adds n tokens of type t to the cost.
func (a *ModifyActionArg) AddCost(t dice.RequirementType, n int) {
	a.Action.Cost = a.Action.Cost.Add(t, n)
}

// SetFast marks the action as a fast action.
func (a *ModifyActionArg) SetFast() { a.Action.Fast = true }

// Disable marks the action as disabled.
func (a *ModifyActionArg) Disable() { a.Action.Validity = ValidityDisabled }

// UseSkillArg is the payload of skill events.
type UseSkillArg struct {
	Who         int
	CharacterID int
	Skill       *SkillDefinition
}

func (a UseSkillArg) Subject() (int, int) { return a.Who, a.CharacterID }

// PlayCardArg is the payload of card play events.
type PlayCardArg struct {
	Who     int
	Card    *CardState
	Targets []int
}

func (a PlayCardArg) Subject() (int, int) { return a.Who, 0 }

// SwitchActiveArg is the payload of OnSwitchActive.
type SwitchActiveArg struct {
	Who  int
	From int
	To   int
}

func (a SwitchActiveArg) Subject() (int, int) { return a.Who, a.To }

// DisposeOrTuneCardArg is the payload of OnDisposeOrTuneCard.
type DisposeOrTuneCardArg struct {
	Who    int
	Card   *CardState
	Reason RemoveCardReason
}

func (a DisposeOrTuneCardArg) Subject() (int, int) { return a.Who, 0 }

// ActionArg is the payload of OnAction, dispatched after every action.
type ActionArg struct {
	Who    int
	Action ActionType
	Fast   bool
}

func (a ActionArg) Subject() (int, int) { return a.Who, 0 }

// DamageInfo describes one damage or heal in flight.
type DamageInfo struct {
	SourceID    int
	SourceWho   int
	TargetID    int
	TargetWho   int
	Type        reaction.DamageType
	Value       int
	IsSkillMain bool
	Reaction    reaction.Type
	// FromSkill is the skill being resolved when the damage was dealt.
	FromSkill *SkillDefinition
}

// ModifyDamageArg is the payload of ModifyDamage0 (attacker side) and
// ModifyDamage1 (defender side).
type ModifyDamageArg struct {
	Damage    *DamageInfo
	Defending bool
	sourceCh  int
}

func (a *ModifyDamageArg) Subject() (int, int) {
	if a.Defending {
		return a.Damage.TargetWho, a.Damage.TargetID
	}
	return a.Damage.SourceWho, a.sourceCh
}

// IncreaseDamage adds n to the damage value.
func (a *ModifyDamageArg) IncreaseDamage(n int) {
	a.Damage.Value += n
}

// DecreaseDamage subtracts up to n from the damage value and returns how
// much was absorbed.
func (a *ModifyDamageArg) DecreaseDamage(n int) int {
	absorbed := min(n, a.Damage.Value)
	a.Damage.Value -= absorbed
	return absorbed
}

// DamageOrHealArg is the payload of OnDamageOrHeal.
type DamageOrHealArg struct {
	Damage DamageInfo
	// OldHealth is the target's health before the change.
	OldHealth int
}

func (a DamageOrHealArg) Subject() (int, int) { return a.Damage.TargetWho, a.Damage.TargetID }

// IsHeal reports whether the event is a heal.
func (a DamageOrHealArg) IsHeal() bool { return a.Damage.Type == reaction.Heal }

// ReactionArg is the payload of OnReaction.
type ReactionArg struct {
	Who         int
	CharacterID int
	Reaction    reaction.Type
	Damage      DamageInfo
}

func (a ReactionArg) Subject() (int, int) { return a.Who, a.CharacterID }

// EnterArg is the payload of OnEnter.
type EnterArg struct {
	Who      int
	EntityID int
}

func (a EnterArg) Subject() (int, int) { return a.Who, 0 }

// DisposeArg is the payload of OnDispose.
type DisposeArg struct {
	Area   Area
	Entity *EntityState
}

func (a DisposeArg) Subject() (int, int) { return a.Area.Who, a.Area.CharacterID }

// DefeatedArg is the payload of OnDefeated.
type DefeatedArg struct {
	Who         int
	CharacterID int
}

func (a DefeatedArg) Subject() (int, int) { return a.Who, a.CharacterID }
