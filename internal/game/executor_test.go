package game

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitcg/gitcg-server-go/internal/game/dice"
	"github.com/gitcg/gitcg-server-go/internal/game/reaction"
	"github.com/gitcg/gitcg-server-go/internal/game/variables"
)

func healthChanges(muts []Mutation, id int) []int {
	var out []int
	for _, m := range muts {
		if mv, ok := m.(ModifyEntityVarMutation); ok && mv.ID == id && mv.Var == variables.Health {
			out = append(out, mv.Value)
		}
	}
	return out
}

func TestNormalAttackDealsPhysicalDamage(t *testing.T) {
	h := NewScenarioHarness(t)
	attacker, defender := h.Duel()

	muts := h.Run(h.SkillAction(0, 101))

	assert.Equal(t, []int{8}, healthChanges(muts, defender))
	assert.NotContains(t, exposedCases(h.LastExposed(0)), "elementalReaction")
	assert.NotContains(t, exposedCases(h.LastExposed(1)), "elementalReaction")

	ch, _, _ := h.State().Character(attacker)
	assert.Equal(t, 1, ch.Energy(), "normal attacks charge one energy")
	assert.Len(t, h.State().Players[0].Dice, 5)
}

func TestVaporize(t *testing.T) {
	h := NewScenarioHarness(t)
	target := h.AddCharacter(0, striker)
	h.AddCharacter(1, tide)
	h.SetDice(1, omni(8)...)
	h.SetVariable(target, variables.Aura, int(reaction.PyroAura))

	muts := h.Run(h.SkillAction(1, 202))

	assert.Equal(t, []int{10 - 2 - reaction.Vaporize.Bonus()}, healthChanges(muts, target))
	ch, _, _ := h.State().Character(target)
	assert.Equal(t, reaction.NoAura, ch.Aura())

	var reactions []ExposedElementalReaction
	for _, em := range h.LastExposed(0) {
		if r, ok := em.Value.(ExposedElementalReaction); ok {
			reactions = append(reactions, r)
		}
	}
	require.Len(t, reactions, 1)
	assert.Equal(t, "vaporize", reactions[0].Reaction)
	assert.Equal(t, target, reactions[0].CharacterID)
}

func TestElementalDamageAppliesAura(t *testing.T) {
	h := NewScenarioHarness(t)
	_, defender := h.Duel()

	h.Run(h.SkillAction(0, 102))

	ch, _, _ := h.State().Character(defender)
	assert.Equal(t, 7, ch.Health())
	assert.Equal(t, reaction.PyroAura, ch.Aura())
}

func TestUsageExpiryRemovesEntityInSameBatch(t *testing.T) {
	h := NewScenarioHarness(t)
	_, defender := h.Duel()
	wardID := h.AddCombatStatus(1, ward)

	muts := h.Run(h.SkillAction(0, 101))

	assert.Equal(t, []int{9}, healthChanges(muts, defender))
	idx := -1
	for i, m := range muts {
		if mv, ok := m.(ModifyEntityVarMutation); ok && mv.ID == wardID && mv.Var == variables.Usage {
			assert.Equal(t, 0, mv.Value)
			idx = i
		}
	}
	require.NotEqual(t, -1, idx, "usage was not consumed")
	require.Less(t, idx+1, len(muts))
	assert.Equal(t, RemoveEntityMutation{ID: wardID}, muts[idx+1])

	_, _, ok := h.State().Entity(wardID)
	assert.False(t, ok)
	assert.Contains(t, exposedCases(h.LastExposed(0)), "removeEntity")
}

func TestSubSkillKeepsOuterQueue(t *testing.T) {
	h := NewScenarioHarness(t)
	attacker := h.AddCharacter(0, frost)
	defender := h.AddCharacter(1, tide)
	h.SetDice(0, omni(8)...)

	muts := h.Run(h.SkillAction(0, 302))

	assert.Equal(t, []int{9, 7}, healthChanges(muts, defender))
	var skills []int
	for _, em := range h.LastExposed(0) {
		if s, ok := em.Value.(ExposedSkillUsed); ok {
			skills = append(skills, s.SkillDefinitionID)
		}
	}
	assert.Equal(t, []int{302, 301}, skills)
	ch, _, _ := h.State().Character(attacker)
	assert.Equal(t, 2, ch.Energy())
}

func TestBurstSpendsEnergy(t *testing.T) {
	h := NewScenarioHarness(t)
	attacker, defender := h.Duel()
	h.SetVariable(attacker, variables.Energy, 2)

	h.Run(h.SkillAction(0, 103))

	ch, _, _ := h.State().Character(attacker)
	assert.Equal(t, 0, ch.Energy())
	target, _, _ := h.State().Character(defender)
	assert.Equal(t, 6, target.Health())
}

func TestDefeatAndWinner(t *testing.T) {
	h := NewScenarioHarness(t)
	h.AddCharacter(0, striker)
	defender := h.AddCharacter(1, tide)
	h.SetDice(0, omni(8)...)
	h.SetVariable(defender, variables.Health, 2)
	h.SetVariable(defender, variables.Aura, int(reaction.HydroAura))

	h.Run(h.SkillAction(0, 101))

	st := h.State()
	ch, _, _ := st.Character(defender)
	assert.False(t, ch.Alive())
	assert.Equal(t, reaction.NoAura, ch.Aura(), "defeat clears the aura")
	assert.Equal(t, PhaseGameEnd, st.Phase)
	assert.Equal(t, 0, st.Winner)
}

func TestOverloadedForcesSwitch(t *testing.T) {
	h := NewScenarioHarness(t)
	_, defender := h.Duel()
	h.SetVariable(defender, variables.Aura, int(reaction.ElectroAura))

	h.Run(h.SkillAction(0, 102))

	st := h.State()
	assert.NotEqual(t, defender, st.Players[1].ActiveCharacterID)
	assert.Contains(t, exposedCases(h.LastExposed(1)), "switchActive")
}

func TestBurningCreatesReactionEntity(t *testing.T) {
	h := NewScenarioHarness(t)
	_, defender := h.Duel()
	h.SetVariable(defender, variables.Aura, int(reaction.DendroAura))

	h.Run(h.SkillAction(0, 102))

	summons := h.State().Players[0].Summons
	require.Len(t, summons, 1)
	assert.Equal(t, ember, summons[0].Definition.ID)
}

func TestUsagePerRound(t *testing.T) {
	h := NewScenarioHarness(t)
	h.Duel()
	echoID := h.AddEntity(Area{Who: 0, Zone: ZoneSummons}, echo)

	h.Run(h.SkillAction(0, 101))
	ent, _, _ := h.State().Entity(echoID)
	assert.Equal(t, 0, ent.Variables.Get(variables.UsagePerRound))

	// spent for this round: the second skill does not trigger it
	muts := h.Run(h.SkillAction(1, 201))
	for _, m := range muts {
		if mv, ok := m.(ModifyEntityVarMutation); ok {
			assert.NotEqual(t, echoID, mv.ID)
		}
	}

	h.mutator.Mutate(ChangePhaseMutation{Phase: PhaseRoll})
	ent, _, _ = h.State().Entity(echoID)
	assert.Equal(t, 1, ent.Variables.Get(variables.UsagePerRound))
}

func TestEquipmentReplacesSameKind(t *testing.T) {
	h := NewScenarioHarness(t)
	attacker, defender := h.Duel()
	first := h.AddCard(0, CardZoneHands, blade)
	second := h.AddCard(0, CardZoneHands, blade)

	h.Run(h.FindAction(0, func(a *ActionInfo) bool {
		return a.Type == ActionPlayCard && a.Card.ID == first && a.Targets[0] == attacker
	}))
	h.Run(h.FindAction(0, func(a *ActionInfo) bool {
		return a.Type == ActionPlayCard && a.Card.ID == second && a.Targets[0] == attacker
	}))

	ch, _, _ := h.State().Character(attacker)
	require.Len(t, ch.Entities, 1)

	h.Run(h.SkillAction(0, 101))
	target, _, _ := h.State().Character(defender)
	assert.Equal(t, 7, target.Health())
}

func TestEndPhaseSummon(t *testing.T) {
	h := NewScenarioHarness(t)
	_, defender := h.Duel()
	emberID := h.AddEntity(Area{Who: 0, Zone: ZoneSummons}, ember)

	h.Dispatch(OnEndPhase, PhaseEventArg{Phase: PhaseEnd, Round: 1})
	h.Dispatch(OnEndPhase, PhaseEventArg{Phase: PhaseEnd, Round: 2})

	target, _, _ := h.State().Character(defender)
	assert.Equal(t, 8, target.Health())
	_, _, ok := h.State().Entity(emberID)
	assert.False(t, ok, "summon leaves after its last usage")
}

func TestEventEffectless(t *testing.T) {
	h := NewScenarioHarness(t)
	h.Duel()
	h.AddCombatStatus(0, nullZone)
	h.AddCard(0, CardZonePile, charge)
	card := h.AddCard(0, CardZoneHands, drawTwo)

	a := h.CardAction(0, card)
	assert.True(t, a.WillBeEffectless)
	muts := h.Run(a)

	var removed []RemoveCardMutation
	for _, m := range muts {
		if rm, ok := m.(RemoveCardMutation); ok {
			removed = append(removed, rm)
		}
	}
	require.Len(t, removed, 1)
	assert.Equal(t, RemoveCardPlayNoEffect, removed[0].Reason)
	assert.Len(t, h.State().Players[0].Pile, 1, "the card body did not run")
}

func TestHandOverflow(t *testing.T) {
	h := NewScenarioHarness(t)
	h.Duel()
	for i := 0; i < h.State().Rules.MaxHands-1; i++ {
		h.AddCard(0, CardZoneHands, charge)
	}
	card := h.AddCard(0, CardZoneHands, drawTwo)
	first := h.AddCard(0, CardZonePile, relic)
	second := h.AddCard(0, CardZonePile, relic)

	muts := h.Run(h.CardAction(0, card))

	hands := h.State().Players[0].Hands
	assert.Len(t, hands, h.State().Rules.MaxHands)
	assert.Equal(t, first, hands[len(hands)-1].ID)
	assert.Contains(t, muts, Mutation(RemoveCardMutation{Who: 0, CardID: second, Where: CardZoneHands, Reason: RemoveCardOverflow}))
}

func TestElementalTuning(t *testing.T) {
	h := NewScenarioHarness(t)
	h.Duel()
	card := h.AddCard(0, CardZoneHands, drawTwo)
	h.SetDice(0, dice.Hydro, dice.Omni)

	a := h.FindAction(0, func(a *ActionInfo) bool {
		return a.Type == ActionElementalTuning && a.Card.ID == card
	})
	require.Equal(t, ValidityValid, a.Validity)
	assert.True(t, a.Fast)
	assert.Equal(t, []dice.Type{dice.Hydro}, a.AutoSelectedDice)

	h.Run(a)

	assert.ElementsMatch(t, []dice.Type{dice.Omni, dice.Pyro}, h.State().Players[0].Dice)
	assert.Empty(t, h.State().Players[0].Hands)

	for _, em := range h.LastExposed(1) {
		if rc, ok := em.Value.(ExposedRemoveCard); ok {
			assert.Equal(t, "elementalTuning", rc.Reason)
			assert.Zero(t, rc.Card.DefinitionID, "tuned cards stay hidden from the opponent")
		}
	}
}

func TestDefeatedActiveIsReplaced(t *testing.T) {
	h := NewScenarioHarness(t)
	_, defender := h.Duel()
	spare := h.AddCharacter(1, tide)
	h.SetVariable(defender, variables.Health, 2)

	var asked *ChooseActiveRequest
	h.RPC = func(_ context.Context, who int, req RPCRequest) (RPCResponse, error) {
		require.Equal(t, 1, who)
		asked = req.ChooseActive
		return RPCResponse{ChooseActive: &ChooseActiveResponse{ActiveCharacterID: spare}}, nil
	}

	h.Run(h.SkillAction(0, 101))

	require.NotNil(t, asked)
	assert.Len(t, asked.Candidates, 2)
	assert.Equal(t, spare, h.State().Players[1].ActiveCharacterID)
	assert.Equal(t, PhaseAction, h.State().Phase)
}

func TestDefeatedActivePreviewStops(t *testing.T) {
	h := NewScenarioHarness(t)
	_, defender := h.Duel()
	h.AddCharacter(1, tide)
	h.SetVariable(defender, variables.Health, 2)

	a := h.SkillAction(0, 101)
	require.NotNil(t, a.Preview)
	assert.True(t, a.Preview.Stopped)
	for _, d := range a.Preview.Characters {
		if d.ID == defender {
			assert.True(t, d.Defeated)
		}
	}
}

func TestSummonTransformsItself(t *testing.T) {
	h := NewScenarioHarness(t)
	h.Duel()
	id := h.AddEntity(Area{Who: 0, Zone: ZoneSummons}, seedling)

	h.Dispatch(OnEndPhase, PhaseEventArg{Phase: PhaseEnd, Round: 1})

	ent, _, ok := h.State().Entity(id)
	require.True(t, ok)
	assert.Equal(t, ember, ent.Definition.ID)
	assert.Contains(t, exposedCases(h.LastExposed(1)), "transformDefinition")
}

func TestCardSwapsLineup(t *testing.T) {
	h := NewScenarioHarness(t)
	attacker, _ := h.Duel()
	bench := h.AddCharacter(0, frost)
	card := h.AddCard(0, CardZoneHands, relay)
	h.mutator.Notify()

	a := h.CardAction(0, card)
	require.Equal(t, ValidityValid, a.Validity)
	require.NotNil(t, a.Preview)
	assert.False(t, a.Preview.Stopped)

	var swapped bool
	for _, m := range h.Run(a) {
		_, ok := m.(SwapCharacterPositionMutation)
		swapped = swapped || ok
	}
	assert.True(t, swapped)

	chars := h.State().Players[0].Characters
	require.Len(t, chars, 2)
	assert.Equal(t, bench, chars[0].ID)
	assert.Equal(t, attacker, chars[1].ID)
	assert.Equal(t, attacker, h.State().Players[0].ActiveCharacterID)
}

func TestSwapCharactersNeedsOneLineup(t *testing.T) {
	h := NewScenarioHarness(t)
	attacker, defender := h.Duel()
	exec := newExecutor(h.ctx, h.mutator, h.registry, h.logger, ModeReal, h.RPC)
	caller := Caller{Who: 0, ID: attacker, CharacterID: attacker, IsCharacter: true}

	assert.Panics(t, func() {
		exec.run(caller, nil, func(c *Context) { c.SwapCharacters(attacker, defender) })
	})
}
