package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/gitcg/gitcg-server-go/internal/game"
	"github.com/gitcg/gitcg-server-go/internal/game/dice"
	"github.com/gitcg/gitcg-server-go/internal/game/reaction"
	"github.com/gitcg/gitcg-server-go/internal/game/variables"
)

// table sets up catalog definitions directly on a game state in the action
// phase and lists what each player could do.
type table struct {
	t      *testing.T
	logger *zap.Logger
	cat    *Catalog
	m      *game.Mutator
}

func newTable(t *testing.T) *table {
	t.Helper()
	logger := zaptest.NewLogger(t)
	cat, err := Load(logger)
	require.NoError(t, err)
	m := game.NewMutator(game.NewGameState(game.DefaultRules(), 3), game.MutatorOptions{Logger: logger})
	m.Mutate(game.StepRoundMutation{})
	m.Mutate(game.ChangePhaseMutation{Phase: game.PhaseAction})
	omni := make([]dice.Type, 8)
	for i := range omni {
		omni[i] = dice.Omni
	}
	m.Mutate(game.ResetDiceMutation{Who: 0, Dice: omni})
	return &table{t: t, logger: logger, cat: cat, m: m}
}

func (tb *table) character(who, definitionID int) int {
	tb.t.Helper()
	def, err := tb.cat.Registry.Character(definitionID)
	require.NoError(tb.t, err)
	id := tb.m.State().NextID
	tb.m.Mutate(game.CreateCharacterMutation{Who: who, Value: &game.CharacterState{
		ID:         id,
		Definition: def,
		Variables: variables.Bag{
			variables.Health:    def.MaxHealth,
			variables.MaxHealth: def.MaxHealth,
			variables.Energy:    0,
			variables.MaxEnergy: def.MaxEnergy,
			variables.Aura:      0,
			variables.Alive:     1,
		},
	}})
	if tb.m.State().Players[who].ActiveCharacterID == 0 {
		tb.m.Mutate(game.SwitchActiveMutation{Who: who, CharacterID: id})
	}
	return id
}

func (tb *table) entity(area game.Area, definitionID int) int {
	tb.t.Helper()
	def, err := tb.cat.Registry.Entity(definitionID)
	require.NoError(tb.t, err)
	id := tb.m.State().NextID
	tb.m.Mutate(game.CreateEntityMutation{Where: area, Value: &game.EntityState{
		ID:         id,
		Definition: def,
		Variables:  def.Variables.Clone(),
	}})
	return id
}

func (tb *table) card(who, definitionID int) int {
	tb.t.Helper()
	def, err := tb.cat.Registry.Card(definitionID)
	require.NoError(tb.t, err)
	id := tb.m.State().NextID
	tb.m.Mutate(game.CreateCardMutation{Who: who, Value: &game.CardState{ID: id, Definition: def}, Target: game.CardZoneHands, TargetIndex: -1})
	return id
}

func (tb *table) set(id int, name variables.Name, value int) {
	tb.m.Mutate(game.ModifyEntityVarMutation{ID: id, Var: name, Value: value})
}

func (tb *table) actions(who int) []*game.ActionInfo {
	return game.NewPreviewer(tb.cat.Registry, tb.logger).AvailableActions(context.Background(), tb.m.State(), who)
}

func (tb *table) skill(who, skillID int) *game.ActionInfo {
	tb.t.Helper()
	for _, a := range tb.actions(who) {
		if a.Type == game.ActionUseSkill && a.Skill.ID == skillID {
			require.Equal(tb.t, game.ValidityValid, a.Validity, "skill %d", skillID)
			require.NotNil(tb.t, a.Preview)
			return a
		}
	}
	tb.t.Fatalf("skill %d not offered", skillID)
	return nil
}

func entityDiff(p *game.PreviewData, id int) (game.EntityDiff, bool) {
	for _, d := range p.Entities {
		if d.ID == id {
			return d, true
		}
	}
	return game.EntityDiff{}, false
}

func TestLumidouceCaseUpgradesOnBurning(t *testing.T) {
	tb := newTable(t)
	tb.character(0, 1303)
	defender := tb.character(1, 1101)
	tb.set(defender, variables.Aura, int(reaction.DendroAura))
	summon := tb.entity(game.Area{Who: 0, Zone: game.ZoneSummons}, lumidouceCase1)

	p := tb.skill(0, 13032).Preview

	require.Len(t, p.Reactions, 1)
	assert.Equal(t, reaction.Burning, p.Reactions[0].Reaction)
	d, ok := entityDiff(p, summon)
	require.True(t, ok)
	require.NotNil(t, d.NewDefinitionID)
	assert.Equal(t, lumidouceCase2, *d.NewDefinitionID)
}

func TestLumidouceCaseIgnoresOtherReactions(t *testing.T) {
	tb := newTable(t)
	tb.character(0, 1303)
	defender := tb.character(1, 1101)
	tb.set(defender, variables.Aura, int(reaction.HydroAura))
	summon := tb.entity(game.Area{Who: 0, Zone: game.ZoneSummons}, lumidouceCase1)

	p := tb.skill(0, 13032).Preview

	require.Len(t, p.Reactions, 1)
	assert.Equal(t, reaction.Vaporize, p.Reactions[0].Reaction)
	_, ok := entityDiff(p, summon)
	assert.False(t, ok)
}

func TestFragranceExtraction(t *testing.T) {
	tb := newTable(t)
	tb.character(0, 1710)
	tb.character(1, 1101)

	p := tb.skill(0, 17102).Preview
	require.Len(t, p.NewEntities, 1)
	assert.Equal(t, lumidouceCase1, p.NewEntities[0].DefinitionID)

	upgraded := tb.entity(game.Area{Who: 0, Zone: game.ZoneSummons}, lumidouceCase2)
	tb.set(upgraded, variables.Usage, 1)

	p = tb.skill(0, 17102).Preview
	assert.Empty(t, p.NewEntities, "an upgraded case is refreshed instead")
	d, ok := entityDiff(p, upgraded)
	require.True(t, ok)
	require.NotNil(t, d.NewVariableValue)
	assert.Equal(t, 3, *d.NewVariableValue)
}

func TestAromaticExplication(t *testing.T) {
	tb := newTable(t)
	emilie := tb.character(0, 1710)
	tb.set(emilie, variables.Energy, 2)
	tb.character(1, 1101)
	old := tb.entity(game.Area{Who: 0, Zone: game.ZoneSummons}, lumidouceCase1)

	p := tb.skill(0, 17103).Preview

	d, ok := entityDiff(p, old)
	require.True(t, ok)
	assert.True(t, d.Disposed)
	require.Len(t, p.NewEntities, 1)
	assert.Equal(t, lumidouceCase3, p.NewEntities[0].DefinitionID)
}

func TestShieldTag(t *testing.T) {
	cat, err := Load(nil)
	require.NoError(t, err)
	for _, id := range []int{111, fullPlate} {
		ent, err := cat.Registry.Entity(id)
		require.NoError(t, err)
		assert.True(t, ent.HasTag(game.TagShield))
		assert.Contains(t, ent.Triggers, game.ModifyDamage1, "entity %d", id)
		assert.Contains(t, ent.Descriptions, "shield", "entity %d", id)
	}

	_, err = buildEntity(entityMeta{ID: 5, Type: "combatStatus", Tags: []string{game.TagShield}, Variables: map[string]int{"usage": 1}})
	assert.ErrorContains(t, err, "shield variable")
}

func TestShieldAbsorbsDamage(t *testing.T) {
	tb := newTable(t)
	tb.character(1, 1303)
	defender := tb.character(0, 1602)
	plate := tb.entity(game.Area{Who: 0, Zone: game.ZoneCombatStatuses}, fullPlate)
	omni := make([]dice.Type, 8)
	for i := range omni {
		omni[i] = dice.Omni
	}
	tb.m.Mutate(game.ResetDiceMutation{Who: 1, Dice: omni})
	tb.m.Mutate(game.SwitchTurnMutation{})

	p := tb.skill(1, 13031).Preview

	assert.Equal(t, defender, p.MainDamageTargetID)
	for _, d := range p.Characters {
		assert.NotEqual(t, defender, d.ID, "the shield takes the hit")
	}
	d, ok := entityDiff(p, plate)
	require.True(t, ok)
	assert.True(t, d.Disposed)
}

func TestFoodLeavesSatiated(t *testing.T) {
	tb := newTable(t)
	fed := tb.character(0, 1303)
	hungry := tb.character(0, 1304)
	tb.character(1, 1101)
	tb.entity(game.Area{Who: 0, Zone: game.ZoneCharacter, CharacterID: fed}, satiated)
	card := tb.card(0, 333004)

	var targets [][]int
	for _, a := range tb.actions(0) {
		if a.Type == game.ActionPlayCard && a.Card.ID == card {
			targets = append(targets, a.Targets)
		}
	}
	assert.Equal(t, [][]int{{hungry}}, targets)

	_, err := buildCard(cardMeta{ID: 332004, Type: "event", Tags: []string{game.TagFood}})
	assert.ErrorContains(t, err, "food card needs a character target")
}

func TestCheaperSwitch(t *testing.T) {
	tb := newTable(t)
	tb.character(0, 1303)
	bench := tb.character(0, 1304)
	tb.character(1, 1101)
	tb.entity(game.Area{Who: 0, Zone: game.ZoneCombatStatuses}, changingShifts)

	for _, a := range tb.actions(0) {
		if a.Type == game.ActionSwitchActive && a.To == bench {
			assert.Zero(t, a.Cost.DiceCount())
			return
		}
	}
	t.Fatal("switch not offered")
}
