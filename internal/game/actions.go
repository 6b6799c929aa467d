package game

import (
	"slices"

	"github.com/gitcg/gitcg-server-go/internal/game/dice"
	"github.com/gitcg/gitcg-server-go/internal/game/variables"
)

// Validity says whether an action can be committed and, if not, why.
type Validity int

const (
	ValidityValid Validity = iota
	ValidityConditionNotMet
	ValidityNoTarget
	ValidityDisabled
	ValidityNoDice
	ValidityNoEnergy
)

func (v Validity) String() string {
	switch v {
	case ValidityValid:
		return "VALID"
	case ValidityConditionNotMet:
		return "CONDITION_NOT_MET"
	case ValidityNoTarget:
		return "NO_TARGET"
	case ValidityDisabled:
		return "DISABLED"
	case ValidityNoDice:
		return "NO_DICE"
	case ValidityNoEnergy:
		return "NO_ENERGY"
	default:
		return "UNKNOWN"
	}
}

// ActionType classifies actions.
type ActionType int

const (
	ActionUseSkill ActionType = iota
	ActionPlayCard
	ActionSwitchActive
	ActionElementalTuning
	ActionDeclareEnd
)

func (t ActionType) String() string {
	switch t {
	case ActionUseSkill:
		return "useSkill"
	case ActionPlayCard:
		return "playCard"
	case ActionSwitchActive:
		return "switchActive"
	case ActionElementalTuning:
		return "elementalTuning"
	case ActionDeclareEnd:
		return "declareEnd"
	default:
		return "unknown"
	}
}

// ActionInfo is one candidate action with its cost and validity.
type ActionInfo struct {
	Type ActionType
	Who  int

	// useSkill
	CharacterID int
	Skill       *SkillDefinition

	// playCard and elementalTuning
	Card    *CardState
	Targets []int

	// switchActive
	From int
	To   int

	// elementalTuning
	TargetDice dice.Type

	Cost             dice.Requirement
	Fast             bool
	Validity         Validity
	AutoSelectedDice []dice.Type
	WillBeEffectless bool
	Preview          *PreviewData

	baseCost dice.Requirement
	baseFast bool
}

// clone returns a copy whose cost can be modified independently.
func (a *ActionInfo) clone() *ActionInfo {
	c := *a
	c.Targets = slices.Clone(a.Targets)
	c.AutoSelectedDice = slices.Clone(a.AutoSelectedDice)
	return &c
}

// reset restores the cost and speed the action had before modifyAction
// events ran.
func (a *ActionInfo) reset() {
	a.Cost = a.baseCost.Clone()
	a.Fast = a.baseFast
	if a.Validity == ValidityDisabled {
		a.Validity = ValidityValid
	}
}

// baseActions lists every candidate action of player who with its cost
// and rule validity, before modifyAction events and dice checks.
func (e *executor) baseActions(who int) []*ActionInfo {
	st := e.mutator.State()
	p := st.Players[who]
	var out []*ActionInfo
	add := func(a *ActionInfo) {
		a.Who = who
		a.baseCost = a.Cost.Clone()
		a.baseFast = a.Fast
		out = append(out, a)
	}

	active := st.ActiveCharacter(who)
	if active != nil && active.Alive() {
		for _, s := range active.Definition.Skills {
			if !s.Initiative() {
				continue
			}
			cost := s.Cost.Clone()
			if s.Type == SkillBurst {
				cost = cost.Add(dice.Energy, active.MaxEnergy())
			}
			add(&ActionInfo{Type: ActionUseSkill, CharacterID: active.ID, Skill: s, Cost: cost})
		}
	}

	effectless := slices.ContainsFunc(p.CombatStatuses, func(e *EntityState) bool {
		return e.Definition.HasTag(TagEventEffectless)
	})
	for _, card := range p.Hands {
		def := card.Definition
		validity := ValidityValid
		if def.HasTag(TagLegend) && p.LegendUsed {
			validity = ValidityConditionNotMet
		}
		willBeEffectless := effectless && def.Type == CardEvent
		if def.Targets == nil {
			a := &ActionInfo{Type: ActionPlayCard, Card: card, Cost: def.FullCost(), Fast: true, Validity: validity, WillBeEffectless: willBeEffectless}
			if validity == ValidityValid && !e.cardFilter(who, card, nil) {
				a.Validity = ValidityConditionNotMet
			}
			add(a)
			continue
		}
		candidates := def.Targets(st, who)
		if len(candidates) == 0 {
			if validity == ValidityValid {
				validity = ValidityNoTarget
			}
			add(&ActionInfo{Type: ActionPlayCard, Card: card, Cost: def.FullCost(), Fast: true, Validity: validity, WillBeEffectless: willBeEffectless})
			continue
		}
		for _, targets := range candidates {
			a := &ActionInfo{Type: ActionPlayCard, Card: card, Targets: slices.Clone(targets), Cost: def.FullCost(), Fast: true, Validity: validity, WillBeEffectless: willBeEffectless}
			if validity == ValidityValid && !e.cardFilter(who, card, targets) {
				a.Validity = ValidityConditionNotMet
			}
			add(a)
		}
	}

	if active != nil {
		for _, ch := range st.CharactersFromActive(who) {
			if ch.ID == active.ID || !ch.Alive() {
				continue
			}
			add(&ActionInfo{Type: ActionSwitchActive, From: active.ID, To: ch.ID, Cost: dice.Requirement{dice.Void: 1}})
		}
	}

	element := activeElement(st, who)
	for _, card := range p.Hands {
		if card.Definition.HasTag(TagNoTuning) {
			continue
		}
		add(&ActionInfo{Type: ActionElementalTuning, Card: card, TargetDice: element, Cost: dice.Requirement{dice.Void: 1}, Fast: true})
	}

	add(&ActionInfo{Type: ActionDeclareEnd, Cost: dice.Requirement{}})
	return out
}

// cardFilter evaluates a card's play condition without side effects.
func (e *executor) cardFilter(who int, card *CardState, targets []int) bool {
	if card.Definition.Filter == nil {
		return true
	}
	scratch := newExecutor(e.ctx, e.mutator.Fork(), e.registry, nil, ModePreview, nil)
	scratch.stack = []*activation{{caller: Caller{Who: who, ID: card.ID, Card: card.Definition}}}
	c := &Context{exec: scratch, act: scratch.stack[0]}
	return card.Definition.Filter(c, targets)
}

// modifyAction runs modifyAction0..3 on a. Handlers may change its cost,
// make it fast, or disable it.
func (e *executor) modifyAction(a *ActionInfo) {
	if a.Type == ActionDeclareEnd {
		return
	}
	arg := &ModifyActionArg{Action: a}
	for _, name := range ModifyActionEvents {
		e.dispatchEvent(name, arg)
		if e.halted() {
			return
		}
	}
}

// finalizeValidity applies energy and dice checks to an action whose cost
// is final, and picks the dice to pay with.
func finalizeValidity(st *GameState, a *ActionInfo) {
	if a.Validity != ValidityValid {
		return
	}
	p := st.Players[a.Who]
	if need := a.Cost[dice.Energy]; need > 0 {
		ch, _, ok := st.Character(a.CharacterID)
		if !ok || ch.Energy() < need {
			a.Validity = ValidityNoEnergy
			return
		}
	}
	if a.Type == ActionElementalTuning {
		d, ok := tuningDie(p.Dice, a.TargetDice)
		if !ok {
			a.Validity = ValidityNoDice
			return
		}
		a.AutoSelectedDice = []dice.Type{d}
		return
	}
	selected, ok := dice.AutoSelect(a.Cost, p.Dice, activeElement(st, a.Who))
	if !ok {
		a.Validity = ValidityNoDice
		return
	}
	a.AutoSelectedDice = selected
}

// tuningDie picks the die to convert: not omni and not already the target
// element, rarest face first.
func tuningDie(pool []dice.Type, target dice.Type) (dice.Type, bool) {
	sorted := dice.Sort(pool, target)
	for i := len(sorted) - 1; i >= 0; i-- {
		if d := sorted[i]; d != dice.Omni && d != target {
			return d, true
		}
	}
	return dice.Unspecified, false
}

// checkPayment validates the dice a player chose for a.
func checkPayment(st *GameState, a *ActionInfo, used []dice.Type) bool {
	p := st.Players[a.Who]
	if !dice.Contains(p.Dice, used) {
		return false
	}
	if a.Type == ActionElementalTuning {
		return len(used) == 1 && used[0] != dice.Omni && used[0] != a.TargetDice
	}
	return dice.CheckDice(a.Cost, used)
}

// runAction commits a on the executor's mutator: re-runs the modifyAction
// events so their usage is consumed, pays, resolves the action, and fires
// OnAction.
func (e *executor) runAction(a *ActionInfo, used []dice.Type) {
	who := a.Who
	a.reset()
	e.modifyAction(a)
	if e.halted() {
		return
	}

	st := e.mutator.State()
	if len(used) > 0 {
		rest, ok := dice.Remove(st.Players[who].Dice, used)
		if !ok {
			panic(invariantf(string(KindResetDice), "player %d cannot pay %v", who, used))
		}
		if a.Type == ActionElementalTuning {
			rest = append(rest, a.TargetDice)
		}
		e.mutator.Mutate(ResetDiceMutation{Who: who, Dice: dice.Sort(rest, activeElement(st, who))})
	}
	if need := a.Cost[dice.Energy]; need > 0 {
		ch, _, _ := e.mutator.State().Character(a.CharacterID)
		e.mutator.Mutate(ModifyEntityVarMutation{ID: ch.ID, Var: variables.Energy, Value: max(0, ch.Energy()-need)})
	}

	switch a.Type {
	case ActionUseSkill:
		e.useSkill(who, a.CharacterID, a.Skill)
	case ActionPlayCard:
		e.playCard(a)
	case ActionSwitchActive:
		e.run(Caller{Who: who}, nil, func(c *Context) {
			e.switchActive(who, a.To, false)
		})
	case ActionElementalTuning:
		e.mutator.Mutate(RemoveCardMutation{Who: who, CardID: a.Card.ID, Where: CardZoneHands, Reason: RemoveCardElementalTuning})
		e.dispatchEvent(OnDisposeOrTuneCard, DisposeOrTuneCardArg{Who: who, Card: a.Card, Reason: RemoveCardElementalTuning})
	case ActionDeclareEnd:
		e.mutator.Mutate(SetPlayerFlagMutation{Who: who, Flag: FlagDeclaredEnd, Value: true})
	}
	if e.halted() {
		return
	}
	e.dispatchEvent(OnAction, ActionArg{Who: who, Action: a.Type, Fast: a.Fast})
}

// playCard removes a card from the hand and runs its body, unless an
// event-effectless combat status voids it.
func (e *executor) playCard(a *ActionInfo) {
	who := a.Who
	def := a.Card.Definition
	reason := RemoveCardPlay
	if a.WillBeEffectless {
		reason = RemoveCardPlayNoEffect
	}
	e.mutator.Mutate(RemoveCardMutation{Who: who, CardID: a.Card.ID, Where: CardZoneHands, Reason: reason})
	if def.HasTag(TagLegend) {
		e.mutator.Mutate(SetPlayerFlagMutation{Who: who, Flag: FlagLegendUsed, Value: true})
	}
	arg := PlayCardArg{Who: who, Card: a.Card, Targets: a.Targets}
	e.dispatchEvent(OnBeforePlayCard, arg)
	caller := Caller{Who: who, ID: a.Card.ID, Card: def}
	e.run(caller, &SkillDefinition{ID: def.ID, Name: def.Name, Type: SkillCard}, func(c *Context) {
		if !a.WillBeEffectless && def.Action != nil {
			def.Action(c, a.Targets)
		}
		c.act.pending = append(c.act.pending, pendingEvent{name: OnPlayCard, arg: arg})
	})
}
