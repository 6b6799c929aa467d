package game

import (
	"context"
	"slices"

	"go.uber.org/zap"

	"github.com/gitcg/gitcg-server-go/internal/game/dice"
	"github.com/gitcg/gitcg-server-go/internal/game/reaction"
	"github.com/gitcg/gitcg-server-go/internal/game/variables"
)

// Mode selects committed or speculative execution.
type Mode int

const (
	ModeReal Mode = iota
	ModePreview
)

// Caller identifies what is running an effect body.
type Caller struct {
	Who int
	// ID is the entity, character or card id.
	ID int
	// CharacterID is the owning character, 0 for player-level callers.
	CharacterID int
	IsCharacter bool
	// Entity is set when the caller is an entity.
	Entity *EntityDefinition
	// Card is set when the caller is a played card.
	Card *CardDefinition
}

// rpcFunc performs one RPC for the executor.
type rpcFunc func(ctx context.Context, who int, req RPCRequest) (RPCResponse, error)

type pendingEvent struct {
	name EventName
	arg  EventArg
}

// activation is one frame of the executor call stack.
type activation struct {
	caller  Caller
	skill   *SkillDefinition
	pending []pendingEvent
}

// previewRecord collects what a preview run needs beyond the final state.
type previewRecord struct {
	reactions        []ReactionRecord
	mainDamageTarget int
}

// executor drives the Mutator and the dispatcher for one action or one
// phase step.
type executor struct {
	ctx      context.Context
	mutator  *Mutator
	registry *Registry
	logger   *zap.Logger
	mode     Mode
	rpc      rpcFunc
	stack    []*activation
	stopped  bool
	err      error
	record   previewRecord
}

func newExecutor(ctx context.Context, m *Mutator, reg *Registry, logger *zap.Logger, mode Mode, rpc rpcFunc) *executor {
	return &executor{
		ctx:      ctx,
		mutator:  m,
		registry: reg,
		logger:   logger,
		mode:     mode,
		rpc:      rpc,
	}
}

// Outcome is how an execution ended.
type Outcome int

const (
	OutcomeDone Outcome = iota
	// OutcomeStopped is a preview that reached a point needing player input.
	OutcomeStopped
	// OutcomeFailed is a real run aborted by an I/O error.
	OutcomeFailed
)

func (e *executor) outcome() Outcome {
	switch {
	case e.err != nil:
		return OutcomeFailed
	case e.stopped:
		return OutcomeStopped
	default:
		return OutcomeDone
	}
}

func (e *executor) halted() bool {
	return e.stopped || e.err != nil || e.mutator.State().Phase == PhaseGameEnd
}

// stop ends a preview run at a point that would need an RPC.
func (e *executor) stop() {
	e.stopped = true
}

// run executes body in a new activation, then drains the events it queued
// before returning. Nested calls get their own activation, so an inner
// skill never sees the outer pending queue.
func (e *executor) run(caller Caller, skill *SkillDefinition, body func(c *Context)) {
	if e.halted() {
		return
	}
	act := &activation{caller: caller, skill: skill}
	e.stack = append(e.stack, act)
	c := &Context{exec: e, act: act}
	body(c)
	for len(act.pending) > 0 && !e.halted() {
		ev := act.pending[0]
		act.pending = act.pending[1:]
		e.dispatch(ev.name, ev.arg)
	}
	e.stack = e.stack[:len(e.stack)-1]
	if len(e.stack) == 0 {
		e.settle()
	}
}

// emitEvent queues an event on the current activation, or dispatches it
// right away when nothing is running.
func (e *executor) emitEvent(name EventName, arg EventArg) {
	if n := len(e.stack); n > 0 {
		e.stack[n-1].pending = append(e.stack[n-1].pending, pendingEvent{name: name, arg: arg})
		return
	}
	e.run(Caller{Who: e.mutator.State().CurrentTurn}, nil, func(c *Context) {
		c.act.pending = append(c.act.pending, pendingEvent{name: name, arg: arg})
	})
}

// dispatchEvent runs a full event cascade from the top level.
func (e *executor) dispatchEvent(name EventName, arg EventArg) {
	e.emitEvent(name, arg)
}

// settle runs once the stack is empty: players whose active character was
// defeated choose a new one.
func (e *executor) settle() {
	st := e.mutator.State()
	if e.halted() {
		return
	}
	for _, who := range [2]int{st.CurrentTurn, 1 - st.CurrentTurn} {
		st = e.mutator.State()
		active := st.ActiveCharacter(who)
		if active == nil || active.Alive() || st.AliveCount(who) == 0 {
			continue
		}
		if e.mode == ModePreview {
			e.stop()
			return
		}
		candidates := make([]int, 0)
		for _, ch := range st.Players[who].Characters {
			if ch.Alive() {
				candidates = append(candidates, ch.ID)
			}
		}
		chosen, err := e.chooseActive(who, candidates)
		if err != nil {
			e.err = err
			return
		}
		e.switchActive(who, chosen, true)
	}
}

func (e *executor) chooseActive(who int, candidates []int) (int, error) {
	if len(candidates) == 1 {
		return candidates[0], nil
	}
	if err := e.mutator.Pause(e.ctx, true); err != nil {
		return 0, err
	}
	resp, err := e.rpc(e.ctx, who, RPCRequest{Method: MethodChooseActive, ChooseActive: &ChooseActiveRequest{Candidates: candidates}})
	if err != nil {
		return 0, err
	}
	if !slices.Contains(candidates, resp.ChooseActive.ActiveCharacterID) {
		return 0, &IOError{Who: who, Method: MethodChooseActive, Err: ErrMalformedResponse}
	}
	return resp.ChooseActive.ActiveCharacterID, nil
}

// switchActive changes the active character and fires OnSwitchActive.
func (e *executor) switchActive(who, to int, afterDefeat bool) {
	st := e.mutator.State()
	from := st.Players[who].ActiveCharacterID
	if from == to {
		return
	}
	e.mutator.Mutate(SwitchActiveMutation{Who: who, CharacterID: to})
	ch, _, _ := e.mutator.State().Character(to)
	e.mutator.Emit(ExposedMutation{Case: "switchActive", Value: ExposedSwitchActive{
		Who:                   who,
		CharacterID:           to,
		CharacterDefinitionID: ch.Definition.ID,
		FromAction:            !afterDefeat,
	}})
	e.emitEvent(OnSwitchActive, SwitchActiveArg{Who: who, From: from, To: to})
}

// dispose removes an entity and fires OnDispose.
func (e *executor) dispose(id int) {
	ent, area, ok := e.mutator.State().Entity(id)
	if !ok {
		return
	}
	e.mutator.Mutate(RemoveEntityMutation{ID: id})
	e.emitEvent(OnDispose, DisposeArg{Area: area, Entity: ent})
}

// useSkill resolves an initiative skill or a sub-skill of a character.
func (e *executor) useSkill(who, characterID int, skill *SkillDefinition) {
	ch, _, ok := e.mutator.State().Character(characterID)
	if !ok {
		panic(invariantf("", "skill %d used by unknown character %d", skill.ID, characterID))
	}
	arg := UseSkillArg{Who: who, CharacterID: characterID, Skill: skill}
	e.dispatchOrQueue(OnBeforeUseSkill, arg)

	e.mutator.Emit(ExposedMutation{Case: "skillUsed", Value: ExposedSkillUsed{
		Who:                who,
		CallerID:           characterID,
		CallerDefinitionID: ch.Definition.ID,
		SkillDefinitionID:  skill.ID,
		SkillType:          skill.Type.String(),
	}})

	caller := Caller{Who: who, ID: characterID, CharacterID: characterID, IsCharacter: true}
	e.run(caller, skill, func(c *Context) {
		if skill.Action != nil {
			skill.Action(c)
		}
		if c.Stopped() {
			return
		}
		if skill.Type == SkillNormal || skill.Type == SkillElemental {
			c.GainEnergy(1, characterID)
		}
		c.act.pending = append([]pendingEvent{{name: OnUseSkill, arg: arg}}, c.act.pending...)
	})
}

// dispatchOrQueue dispatches synchronously inside a running activation
// (sub-skills) or as a top-level cascade.
func (e *executor) dispatchOrQueue(name EventName, arg EventArg) {
	if len(e.stack) > 0 {
		e.dispatch(name, arg)
		return
	}
	e.dispatchEvent(name, arg)
}

// generateDice adds dice to a player, capped at the rules maximum.
func (e *executor) generateDice(who int, ds []dice.Type) {
	st := e.mutator.State()
	p := st.Players[who]
	room := st.Rules.MaxDice - len(p.Dice)
	if room <= 0 {
		return
	}
	if len(ds) > room {
		ds = ds[:room]
	}
	next := append(slices.Clone(p.Dice), ds...)
	e.mutator.Mutate(ResetDiceMutation{Who: who, Dice: dice.Sort(next, activeElement(st, who))})
}

// randomDice rolls n dice.
func (e *executor) randomDice(n int) []dice.Type {
	out := make([]dice.Type, n)
	for i := range out {
		out[i] = dice.Type(e.mutator.stepRandom(int(dice.Omni)) + 1)
	}
	return out
}

func activeElement(st *GameState, who int) dice.Type {
	if ch := st.ActiveCharacter(who); ch != nil {
		return ch.Definition.Element
	}
	return dice.Unspecified
}

// drawCards moves n cards from the top of the pile to the hand. Cards past
// the hand limit are discarded as overflow.
func (e *executor) drawCards(who, n int) {
	for i := 0; i < n; i++ {
		st := e.mutator.State()
		p := st.Players[who]
		if len(p.Pile) == 0 {
			return
		}
		card := p.Pile[0]
		e.mutator.Mutate(TransferCardMutation{Who: who, CardID: card.ID, From: CardZonePile, To: CardZoneHands, TargetIndex: -1})
		if len(e.mutator.State().Players[who].Hands) > st.Rules.MaxHands {
			e.mutator.Mutate(RemoveCardMutation{Who: who, CardID: card.ID, Where: CardZoneHands, Reason: RemoveCardOverflow})
		}
	}
}

// tickDurations decrements every duration counter and disposes entities
// whose duration ran out. It runs in the end phase.
func (e *executor) tickDurations() {
	e.run(Caller{Who: e.mutator.State().CurrentTurn}, nil, func(c *Context) {
		st := e.mutator.State()
		for _, who := range [2]int{st.CurrentTurn, 1 - st.CurrentTurn} {
			for _, l := range allEntities(st, who) {
				if !l.Variables.Has(variables.Duration) {
					continue
				}
				left := max(0, l.Variables.Get(variables.Duration)-1)
				e.mutator.Mutate(ModifyEntityVarMutation{ID: l.ID, Var: variables.Duration, Value: left})
				if left == 0 {
					e.dispose(l.ID)
				}
			}
		}
	})
}

func allEntities(st *GameState, who int) []*EntityState {
	p := st.Players[who]
	var out []*EntityState
	out = append(out, p.Summons...)
	out = append(out, p.Supports...)
	for _, ch := range st.CharactersFromActive(who) {
		out = append(out, ch.Entities...)
	}
	return append(out, p.CombatStatuses...)
}

func (e *executor) recordReaction(characterID int, t reaction.Type) {
	e.record.reactions = append(e.record.reactions, ReactionRecord{CharacterID: characterID, Reaction: t})
}
