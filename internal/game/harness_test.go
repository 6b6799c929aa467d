package game

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/gitcg/gitcg-server-go/internal/game/dice"
	"github.com/gitcg/gitcg-server-go/internal/game/reaction"
	"github.com/gitcg/gitcg-server-go/internal/game/variables"
)

// Definitions of the test registry.
const (
	striker = 1
	tide    = 2
	frost   = 3

	ward      = 901
	ember     = 902
	lock      = 903
	shortcut  = 904
	echo      = 905
	nullZone  = 906
	bladeItem = 907
	seedling  = 908

	drawTwo = 801
	charge  = 802
	relic   = 803
	ask     = 804
	blade   = 805
	revive  = 806
	relay   = 807
)

func skill(id int, name string, typ SkillType, cost string, body func(c *Context)) *SkillDefinition {
	return &SkillDefinition{ID: id, Name: name, Type: typ, Cost: dice.MustParseRequirement(cost), Action: body}
}

func hit(t reaction.DamageType, n int) func(c *Context) {
	return func(c *Context) { c.Damage(t, n) }
}

func damageModifier(fn func(c *Context, a *ModifyDamageArg) bool) func(c *Context, arg EventArg) bool {
	return func(c *Context, arg EventArg) bool {
		a, ok := arg.(*ModifyDamageArg)
		return ok && fn(c, a)
	}
}

func actionModifier(fn func(c *Context, a *ModifyActionArg) bool) func(c *Context, arg EventArg) bool {
	return func(c *Context, arg EventArg) bool {
		a, ok := arg.(*ModifyActionArg)
		return ok && fn(c, a)
	}
}

func ownCharacters(alive bool) func(st *GameState, who int) [][]int {
	return func(st *GameState, who int) [][]int {
		var out [][]int
		for _, ch := range st.Players[who].Characters {
			if ch.Alive() == alive {
				out = append(out, []int{ch.ID})
			}
		}
		return out
	}
}

// testRegistry is a small registry exercising every engine feature
// without the shipped catalog.
func testRegistry(t *testing.T) *Registry {
	t.Helper()

	b := NewRegistryBuilder()
	b.AddCharacter(&CharacterDefinition{
		ID: striker, Name: "Striker", Element: dice.Pyro, MaxHealth: 10, MaxEnergy: 2,
		Skills: []*SkillDefinition{
			skill(101, "Slash", SkillNormal, "{pyro}{void:2}", hit(reaction.Physical, 2)),
			skill(102, "Flame", SkillElemental, "{pyro:3}", hit(reaction.Pyro, 3)),
			skill(103, "Inferno", SkillBurst, "{pyro:3}", hit(reaction.Pyro, 4)),
		},
	})
	b.AddCharacter(&CharacterDefinition{
		ID: tide, Name: "Tide", Element: dice.Hydro, MaxHealth: 10, MaxEnergy: 2,
		Skills: []*SkillDefinition{
			skill(201, "Splash", SkillNormal, "{hydro}{void:2}", hit(reaction.Physical, 2)),
			skill(202, "Wave", SkillElemental, "{hydro:3}", hit(reaction.Hydro, 2)),
			skill(203, "Flood", SkillBurst, "{hydro:3}", func(c *Context) {
				c.Damage(reaction.Hydro, 1)
				c.Summon(ember)
			}),
		},
	})
	b.AddCharacter(&CharacterDefinition{
		ID: frost, Name: "Frost", Element: dice.Cryo, MaxHealth: 10, MaxEnergy: 2,
		Skills: []*SkillDefinition{
			skill(301, "Chip", SkillNormal, "{cryo}{void:2}", hit(reaction.Physical, 2)),
			skill(302, "Chill", SkillElemental, "{cryo:3}", func(c *Context) {
				c.Damage(reaction.Cryo, 1)
				c.UseSkill(301)
			}),
			skill(303, "Blizzard", SkillBurst, "{cryo:3}", hit(reaction.Cryo, 2)),
		},
	})

	b.AddEntity(&EntityDefinition{
		ID: ward, Name: "Ward", Type: EntityCombatStatus,
		Variables: variables.Bag{variables.Usage: 1}, VisibleVar: variables.Usage,
		Triggers: map[EventName]Trigger{
			ModifyDamage1: {Handle: damageModifier(func(c *Context, a *ModifyDamageArg) bool {
				if a.Damage.TargetID != c.ActiveCharacter(c.Who()).ID || a.Damage.Value == 0 {
					return false
				}
				a.DecreaseDamage(1)
				return true
			})},
		},
	})
	b.AddEntity(&EntityDefinition{
		ID: ember, Name: "Ember", Type: EntitySummon,
		Variables: variables.Bag{variables.Usage: 2}, VisibleVar: variables.Usage,
		Triggers: map[EventName]Trigger{
			OnEndPhase: {Handle: func(c *Context, _ EventArg) bool {
				c.Damage(reaction.Pyro, 1)
				return true
			}},
		},
	})
	b.AddEntity(&EntityDefinition{
		ID: lock, Name: "Lock", Type: EntityStatus,
		Variables: variables.Bag{variables.Duration: 1},
		Triggers: map[EventName]Trigger{
			ModifyAction0: {Handle: actionModifier(func(c *Context, a *ModifyActionArg) bool {
				if a.Action.Type != ActionUseSkill {
					return false
				}
				a.Disable()
				return true
			})},
		},
	})
	b.AddEntity(&EntityDefinition{
		ID: shortcut, Name: "Shortcut", Type: EntityCombatStatus,
		Variables: variables.Bag{variables.Usage: 1},
		Triggers: map[EventName]Trigger{
			ModifyAction0: {Handle: actionModifier(func(c *Context, a *ModifyActionArg) bool {
				return a.Action.Type == ActionSwitchActive && a.DeductCost(dice.Void, 1)
			})},
		},
	})
	b.AddEntity(&EntityDefinition{
		ID: echo, Name: "Echo", Type: EntitySummon,
		Variables: variables.Bag{variables.UsagePerRound: 1},
		Triggers: map[EventName]Trigger{
			OnUseSkill: {Listen: ListenAll, Handle: func(c *Context, _ EventArg) bool {
				c.Damage(reaction.Piercing, 1)
				return true
			}},
		},
	})
	b.AddEntity(&EntityDefinition{ID: nullZone, Name: "Null Zone", Type: EntityCombatStatus, Tags: []string{TagEventEffectless}})
	b.AddEntity(&EntityDefinition{
		ID: bladeItem, Name: "Blade", Type: EntityEquipment, Tags: []string{TagWeapon},
		Triggers: map[EventName]Trigger{
			ModifyDamage0: {Handle: damageModifier(func(c *Context, a *ModifyDamageArg) bool {
				if a.Damage.SourceID != c.Caller().CharacterID {
					return false
				}
				a.IncreaseDamage(1)
				return true
			})},
		},
	})

	b.AddEntity(&EntityDefinition{
		ID: seedling, Name: "Seedling", Type: EntitySummon,
		Triggers: map[EventName]Trigger{
			OnEndPhase: {Handle: func(c *Context, _ EventArg) bool {
				c.TransformDefinition(c.Caller().ID, ember)
				return true
			}},
		},
	})

	b.AddCard(&CardDefinition{
		ID: drawTwo, Name: "Draw Two", Type: CardEvent, Cost: dice.MustParseRequirement("{void:1}"),
		Action: func(c *Context, _ []int) { c.DrawCards(2) },
	})
	b.AddCard(&CardDefinition{
		ID: charge, Name: "Charge", Type: CardEvent, Cost: dice.Requirement{},
		Filter: func(c *Context, _ []int) bool {
			active := c.ActiveCharacter(c.Who())
			return active.Energy() < active.MaxEnergy()
		},
		Action: func(c *Context, _ []int) { c.GainEnergy(1) },
	})
	b.AddCard(&CardDefinition{
		ID: relic, Name: "Relic", Type: CardEvent, Tags: []string{TagLegend}, Cost: dice.Requirement{},
		Action: func(c *Context, _ []int) { c.GenerateDice(dice.Omni, 1) },
	})
	b.AddCard(&CardDefinition{
		ID: ask, Name: "Ask", Type: CardEvent, Cost: dice.Requirement{},
		Action: func(c *Context, _ []int) { c.SelectCard([]int{drawTwo, charge}) },
	})
	b.AddCard(&CardDefinition{
		ID: blade, Name: "Blade", Type: CardEquipment, Tags: []string{TagWeapon}, Cost: dice.MustParseRequirement("{same:1}"),
		Targets: ownCharacters(true),
		Action:  func(c *Context, targets []int) { c.CharacterStatus(bladeItem, targets[0]) },
	})
	b.AddCard(&CardDefinition{
		ID: revive, Name: "Revive", Type: CardEvent, Cost: dice.Requirement{},
		Targets: ownCharacters(false),
		Action:  func(c *Context, targets []int) { c.Heal(1, targets[0]) },
	})

	b.AddCard(&CardDefinition{
		ID: relay, Name: "Relay", Type: CardEvent, Cost: dice.Requirement{},
		Filter: func(c *Context, _ []int) bool {
			return len(c.State().Players[c.Who()].Characters) >= 2
		},
		Action: func(c *Context, _ []int) {
			chars := c.State().Players[c.Who()].Characters
			c.SwapCharacters(chars[0].ID, chars[1].ID)
		},
	})

	b.SetReactionEntities(ReactionEntities{BurningFlame: ember})

	reg, err := b.Build()
	require.NoError(t, err)
	return reg
}

// ScenarioHarness builds a GameState directly through the Mutator and runs
// actions and events against it.
type ScenarioHarness struct {
	t        *testing.T
	ctx      context.Context
	logger   *zap.Logger
	registry *Registry
	mutator  *Mutator
	batches  []NotifyBatch
	// RPC answers player requests during real runs.
	RPC rpcFunc
}

// NewScenarioHarness starts an empty match in round 1 of the action phase.
func NewScenarioHarness(t *testing.T) *ScenarioHarness {
	t.Helper()
	h := &ScenarioHarness{
		t:        t,
		ctx:      context.Background(),
		logger:   zaptest.NewLogger(t),
		registry: testRegistry(t),
	}
	h.RPC = func(context.Context, int, RPCRequest) (RPCResponse, error) {
		return RPCResponse{}, errors.New("unexpected rpc")
	}
	h.mutator = NewMutator(NewGameState(DefaultRules(), 7), MutatorOptions{
		Logger:   h.logger,
		OnNotify: func(b NotifyBatch) { h.batches = append(h.batches, b) },
	})
	h.mutator.Mutate(StepRoundMutation{})
	h.mutator.Mutate(ChangePhaseMutation{Phase: PhaseAction})
	h.mutator.Notify()
	return h
}

// State returns the current snapshot.
func (h *ScenarioHarness) State() *GameState {
	return h.mutator.State()
}

// AddCharacter adds a character at full health. The first character of a
// player becomes active.
func (h *ScenarioHarness) AddCharacter(who, definitionID int) int {
	h.t.Helper()
	def, err := h.registry.Character(definitionID)
	require.NoError(h.t, err)
	id := h.State().NextID
	h.mutator.Mutate(CreateCharacterMutation{Who: who, Value: &CharacterState{
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
	if h.State().Players[who].ActiveCharacterID == 0 {
		h.mutator.Mutate(SwitchActiveMutation{Who: who, CharacterID: id})
	}
	return id
}

// SetVariable sets a variable of a character or entity.
func (h *ScenarioHarness) SetVariable(id int, name variables.Name, value int) {
	h.mutator.Mutate(ModifyEntityVarMutation{ID: id, Var: name, Value: value})
}

// AddEntity creates an entity in area and returns its id.
func (h *ScenarioHarness) AddEntity(area Area, definitionID int) int {
	h.t.Helper()
	def, err := h.registry.Entity(definitionID)
	require.NoError(h.t, err)
	id := h.State().NextID
	h.mutator.Mutate(CreateEntityMutation{Where: area, Value: &EntityState{
		ID:         id,
		Definition: def,
		Variables:  def.Variables.Clone(),
	}})
	return id
}

// AddCombatStatus creates a combat status on player who's side.
func (h *ScenarioHarness) AddCombatStatus(who, definitionID int) int {
	return h.AddEntity(Area{Who: who, Zone: ZoneCombatStatuses}, definitionID)
}

// AddCard creates a card in a hand or pile.
func (h *ScenarioHarness) AddCard(who int, zone CardZone, definitionID int) int {
	h.t.Helper()
	def, err := h.registry.Card(definitionID)
	require.NoError(h.t, err)
	id := h.State().NextID
	h.mutator.Mutate(CreateCardMutation{Who: who, Value: &CardState{ID: id, Definition: def}, Target: zone, TargetIndex: -1})
	return id
}

// SetDice replaces a player's dice.
func (h *ScenarioHarness) SetDice(who int, ds ...dice.Type) {
	h.mutator.Mutate(ResetDiceMutation{Who: who, Dice: ds})
}

// Actions enumerates player who's actions with previews.
func (h *ScenarioHarness) Actions(who int) []*ActionInfo {
	return NewPreviewer(h.registry, h.logger).AvailableActions(h.ctx, h.State(), who)
}

// FindAction returns the first action of player who matching match.
func (h *ScenarioHarness) FindAction(who int, match func(a *ActionInfo) bool) *ActionInfo {
	h.t.Helper()
	for _, a := range h.Actions(who) {
		if match(a) {
			return a
		}
	}
	h.t.Fatalf("no matching action for player %d", who)
	return nil
}

// SkillAction returns the action using a skill of player who's active
// character.
func (h *ScenarioHarness) SkillAction(who, skillID int) *ActionInfo {
	return h.FindAction(who, func(a *ActionInfo) bool {
		return a.Type == ActionUseSkill && a.Skill.ID == skillID
	})
}

// CardAction returns the action playing a hand card.
func (h *ScenarioHarness) CardAction(who, cardID int) *ActionInfo {
	return h.FindAction(who, func(a *ActionInfo) bool {
		return a.Type == ActionPlayCard && a.Card.ID == cardID
	})
}

// Run commits an action paying its auto-selected dice, flushes, and
// returns the mutations it produced.
func (h *ScenarioHarness) Run(a *ActionInfo) []Mutation {
	h.t.Helper()
	before := h.mutator.LogLen()
	exec := newExecutor(h.ctx, h.mutator, h.registry, h.logger, ModeReal, h.RPC)
	exec.runAction(a.clone(), a.AutoSelectedDice)
	require.NoError(h.t, exec.err)
	h.mutator.Notify()
	return h.mutator.Log()[before:]
}

// Dispatch runs one event cascade from the top level.
func (h *ScenarioHarness) Dispatch(name EventName, arg EventArg) []Mutation {
	h.t.Helper()
	before := h.mutator.LogLen()
	exec := newExecutor(h.ctx, h.mutator, h.registry, h.logger, ModeReal, h.RPC)
	exec.dispatchEvent(name, arg)
	require.NoError(h.t, exec.err)
	h.mutator.Notify()
	return h.mutator.Log()[before:]
}

// LastExposed returns what player who saw in the latest batch.
func (h *ScenarioHarness) LastExposed(who int) []ExposedMutation {
	if len(h.batches) == 0 {
		return nil
	}
	return h.batches[len(h.batches)-1].Exposed[who]
}

// Duel sets up Striker for player 0 and Tide, Frost for player 1 with 8
// omni dice each.
func (h *ScenarioHarness) Duel() (attacker, defender int) {
	attacker = h.AddCharacter(0, striker)
	defender = h.AddCharacter(1, tide)
	h.AddCharacter(1, frost)
	h.SetDice(0, omni(8)...)
	h.SetDice(1, omni(8)...)
	h.mutator.Notify()
	return attacker, defender
}

func omni(n int) []dice.Type {
	out := make([]dice.Type, n)
	for i := range out {
		out[i] = dice.Omni
	}
	return out
}

func exposedCases(ms []ExposedMutation) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.Case
	}
	return out
}
