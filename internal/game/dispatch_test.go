package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitcg/gitcg-server-go/internal/game/variables"
)

func TestCollectListenersOrder(t *testing.T) {
	h := NewScenarioHarness(t)
	a0 := h.AddCharacter(0, striker)
	b0 := h.AddCharacter(0, frost)
	a1 := h.AddCharacter(1, tide)

	// created out of dispatch order on purpose
	status0 := h.AddCombatStatus(0, ward)
	onB0 := h.AddEntity(Area{Who: 0, Zone: ZoneCharacter, CharacterID: b0}, bladeItem)
	onA0 := h.AddEntity(Area{Who: 0, Zone: ZoneCharacter, CharacterID: a0}, bladeItem)
	summon0 := h.AddEntity(Area{Who: 0, Zone: ZoneSummons}, echo)
	summon1 := h.AddEntity(Area{Who: 1, Zone: ZoneSummons}, echo)
	onA1 := h.AddEntity(Area{Who: 1, Zone: ZoneCharacter, CharacterID: a1}, bladeItem)
	status1 := h.AddCombatStatus(1, ward)

	ids := func(event EventName, actor int) []int {
		var out []int
		for _, l := range collectListeners(h.State(), event, actor) {
			out = append(out, l.id)
		}
		return out
	}

	assert.Equal(t, []int{onA0, onB0, onA1}, ids(ModifyDamage0, 0))
	assert.Equal(t, []int{onA1, onA0, onB0}, ids(ModifyDamage0, 1))
	assert.Equal(t, []int{status1, status0}, ids(ModifyDamage1, 1))
	assert.Equal(t, []int{summon0, summon1}, ids(OnUseSkill, 0))

	// the active character's attachments lead after a switch
	h.mutator.Mutate(SwitchActiveMutation{Who: 0, CharacterID: b0})
	assert.Equal(t, []int{onB0, onA0, onA1}, ids(ModifyDamage0, 0))
}

func TestListenScopes(t *testing.T) {
	tests := []struct {
		name   string
		listen ListenScope
		l      listener
		arg    EventArg
		want   bool
	}{
		{"broadcast reaches self scope", ListenSelf, listener{who: 0, characterID: 3}, PhaseEventArg{Phase: PhaseEnd}, true},
		{"own character", ListenSelf, listener{who: 0, characterID: 3}, UseSkillArg{Who: 0, CharacterID: 3}, true},
		{"sibling character", ListenSelf, listener{who: 0, characterID: 3}, UseSkillArg{Who: 0, CharacterID: 4}, false},
		{"player-level entity", ListenSelf, listener{who: 0}, UseSkillArg{Who: 0, CharacterID: 4}, true},
		{"other player", ListenSelf, listener{who: 0}, UseSkillArg{Who: 1, CharacterID: 9}, false},
		{"player scope", ListenPlayer, listener{who: 0, characterID: 3}, UseSkillArg{Who: 0, CharacterID: 4}, true},
		{"player scope other side", ListenPlayer, listener{who: 0}, UseSkillArg{Who: 1, CharacterID: 9}, false},
		{"all", ListenAll, listener{who: 0}, UseSkillArg{Who: 1, CharacterID: 9}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.l.trigger.Listen = tt.listen
			assert.Equal(t, tt.want, tt.l.receives(tt.arg))
		})
	}
}

func TestStackedModifiersBothFire(t *testing.T) {
	h := NewScenarioHarness(t)
	_, defender := h.Duel()
	first := h.AddCombatStatus(1, ward)
	second := h.AddCombatStatus(1, ward)

	h.Run(h.SkillAction(0, 101))

	ch, _, _ := h.State().Character(defender)
	assert.Equal(t, 10, ch.Health())
	for _, id := range []int{first, second} {
		_, _, ok := h.State().Entity(id)
		assert.False(t, ok, "ward %d should be used up", id)
	}
}

func TestUsageIsPerEntity(t *testing.T) {
	h := NewScenarioHarness(t)
	_, defender := h.Duel()
	ember1 := h.AddEntity(Area{Who: 0, Zone: ZoneSummons}, ember)
	ember2 := h.AddEntity(Area{Who: 0, Zone: ZoneSummons}, ember)
	h.SetVariable(ember1, variables.Usage, 1)

	h.Dispatch(OnEndPhase, PhaseEventArg{Phase: PhaseEnd, Round: 1})

	_, _, ok := h.State().Entity(ember1)
	assert.False(t, ok)
	ent, _, ok := h.State().Entity(ember2)
	require.True(t, ok)
	assert.Equal(t, 1, ent.Variables.Get(variables.Usage))
	ch, _, _ := h.State().Character(defender)
	assert.Equal(t, 8, ch.Health())
}
