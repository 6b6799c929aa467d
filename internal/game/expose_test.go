package game

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitcg/gitcg-server-go/internal/game/dice"
	"github.com/gitcg/gitcg-server-go/internal/game/variables"
)

func TestExposeStateHidesOpponent(t *testing.T) {
	h := NewScenarioHarness(t)
	h.Duel()
	hand := h.AddCard(1, CardZoneHands, drawTwo)
	pile := h.AddCard(1, CardZonePile, charge)
	own := h.AddCard(0, CardZoneHands, relic)
	h.SetDice(1, dice.Hydro, dice.Omni, dice.Cryo)

	view := ExposeState(0, h.State())

	opp := view.Players[1]
	require.Len(t, opp.HandCards, 1)
	assert.Equal(t, hand, opp.HandCards[0].ID)
	assert.Zero(t, opp.HandCards[0].DefinitionID)
	require.Len(t, opp.PileCards, 1)
	assert.Equal(t, pile, opp.PileCards[0].ID)
	assert.Zero(t, opp.PileCards[0].DefinitionID)
	assert.Equal(t, []dice.Type{dice.Unspecified, dice.Unspecified, dice.Unspecified}, opp.Dice)
	assert.Empty(t, opp.InitiativeSkills)

	me := view.Players[0]
	require.Len(t, me.HandCards, 1)
	assert.Equal(t, own, me.HandCards[0].ID)
	assert.Equal(t, relic, me.HandCards[0].DefinitionID)
	assert.Len(t, me.Dice, 8)
	assert.Len(t, me.InitiativeSkills, 3)
}

func TestExposeStateOwnPileStaysHidden(t *testing.T) {
	h := NewScenarioHarness(t)
	h.Duel()
	h.AddCard(0, CardZonePile, relic)

	view := ExposeState(0, h.State())
	require.Len(t, view.Players[0].PileCards, 1)
	assert.Zero(t, view.Players[0].PileCards[0].DefinitionID)
}

func TestExposeStateEntities(t *testing.T) {
	h := NewScenarioHarness(t)
	attacker, _ := h.Duel()
	h.AddCombatStatus(0, ward)
	h.AddEntity(Area{Who: 0, Zone: ZoneCharacter, CharacterID: attacker}, bladeItem)
	h.AddEntity(Area{Who: 1, Zone: ZoneSummons}, echo)

	view := ExposeState(1, h.State())

	statuses := view.Players[0].CombatStatuses
	require.Len(t, statuses, 1)
	assert.Equal(t, string(variables.Usage), statuses[0].VariableName)
	require.NotNil(t, statuses[0].VariableValue)
	assert.Equal(t, 1, *statuses[0].VariableValue)

	chars := view.Players[0].Characters
	require.Len(t, chars, 1)
	require.Len(t, chars[0].Entities, 1)
	assert.Equal(t, "weapon", chars[0].Entities[0].Equipment)

	summons := view.Players[1].Summons
	require.Len(t, summons, 1)
	assert.True(t, summons[0].HasUsagePerRound)
}

func TestExposeMutationHidesCards(t *testing.T) {
	h := NewScenarioHarness(t)
	h.Duel()
	card := h.AddCard(0, CardZonePile, drawTwo)
	st := h.State()

	draw := TransferCardMutation{Who: 0, CardID: card, From: CardZonePile, To: CardZoneHands, TargetIndex: -1}
	mine, ok := ExposeMutation(0, st, draw)
	require.True(t, ok)
	theirs, ok := ExposeMutation(1, st, draw)
	require.True(t, ok)

	assert.Equal(t, drawTwo, mine.Value.(ExposedTransferCard).Card.DefinitionID)
	assert.Zero(t, theirs.Value.(ExposedTransferCard).Card.DefinitionID)
	assert.Equal(t, card, theirs.Value.(ExposedTransferCard).Card.ID)

	played := RemoveCardMutation{Who: 0, CardID: card, Where: CardZonePile, Reason: RemoveCardPlay}
	theirs, ok = ExposeMutation(1, st, played)
	require.True(t, ok)
	assert.Equal(t, drawTwo, theirs.Value.(ExposedRemoveCard).Card.DefinitionID, "played cards are public")

	dropped := RemoveCardMutation{Who: 0, CardID: card, Where: CardZonePile, Reason: RemoveCardOverflow}
	theirs, ok = ExposeMutation(1, st, dropped)
	require.True(t, ok)
	assert.Zero(t, theirs.Value.(ExposedRemoveCard).Card.DefinitionID)

	dice8 := ResetDiceMutation{Who: 0, Dice: []dice.Type{dice.Pyro, dice.Omni}}
	theirs, _ = ExposeMutation(1, st, dice8)
	assert.Equal(t, []dice.Type{dice.Unspecified, dice.Unspecified}, theirs.Value.(ExposedResetDice).Dice)
	mine, _ = ExposeMutation(0, st, dice8)
	assert.Equal(t, dice8.Dice, mine.Value.(ExposedResetDice).Dice)
}

func TestExposeMutationSkipsInternal(t *testing.T) {
	st := NewGameState(DefaultRules(), 1)
	for _, m := range []Mutation{
		StepRandomMutation{Value: 3},
		ClearRemovedEntitiesMutation{},
		SetPlayerFlagMutation{Who: 0, Flag: FlagHasDefeated, Value: true},
	} {
		_, ok := ExposeMutation(0, st, m)
		assert.False(t, ok, Describe(m))
	}
}

func TestExposedMutationJSON(t *testing.T) {
	em := ExposedMutation{Case: "changePhase", Value: ExposedChangePhase{NewPhase: "action"}}
	raw, err := json.Marshal(em)
	require.NoError(t, err)
	assert.JSONEq(t, `{"$case":"changePhase","value":{"newPhase":"action"}}`, string(raw))

	raw, err = json.Marshal(ExposedMutation{Case: "stepRound"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"$case":"stepRound"}`, string(raw))
}
