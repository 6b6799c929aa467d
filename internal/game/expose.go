package game

import (
	"github.com/gitcg/gitcg-server-go/internal/game/dice"
	"github.com/gitcg/gitcg-server-go/internal/game/variables"
)

// ExposedMutation is the wire form of a mutation or an exposed-only
// record, as a discriminated union.
type ExposedMutation struct {
	Case  string `json:"$case"`
	Value any    `json:"value,omitempty"`
}

type ExposedCreateCharacter struct {
	Who       int              `json:"who"`
	Character ExposedCharacter `json:"character"`
}

type ExposedCreateEntity struct {
	Who    int           `json:"who"`
	Where  string        `json:"where"`
	Entity ExposedEntity `json:"entity"`
}

type ExposedRemoveEntity struct {
	Entity ExposedEntity `json:"entity"`
}

type ExposedModifyEntityVar struct {
	EntityID           int    `json:"entityId"`
	EntityDefinitionID int    `json:"entityDefinitionId"`
	VariableName       string `json:"variableName"`
	VariableValue      int    `json:"variableValue"`
}

type ExposedTransferCard struct {
	Who           int         `json:"who"`
	From          string      `json:"from"`
	To            string      `json:"to"`
	TransferToOpp bool        `json:"transferToOpp"`
	TargetIndex   int         `json:"targetIndex"`
	Card          ExposedCard `json:"card"`
}

type ExposedRemoveCard struct {
	Who    int         `json:"who"`
	From   string      `json:"from"`
	Reason string      `json:"reason"`
	Card   ExposedCard `json:"card"`
}

type ExposedCreateCard struct {
	Who         int         `json:"who"`
	To          string      `json:"to"`
	TargetIndex int         `json:"targetIndex"`
	Card        ExposedCard `json:"card"`
}

type ExposedChangePhase struct {
	NewPhase string `json:"newPhase"`
}

type ExposedSetWinner struct {
	Winner int `json:"winner"`
}

type ExposedSetPlayerFlag struct {
	Who       int    `json:"who"`
	FlagName  string `json:"flagName"`
	FlagValue bool   `json:"flagValue"`
}

type ExposedResetDice struct {
	Who  int         `json:"who"`
	Dice []dice.Type `json:"dice"`
}

type ExposedTransformDefinition struct {
	EntityID              int `json:"entityId"`
	NewEntityDefinitionID int `json:"newEntityDefinitionId"`
}

type ExposedSwapCharacterPosition struct {
	Who                    int `json:"who"`
	Character0ID           int `json:"character0Id"`
	Character0DefinitionID int `json:"character0DefinitionId"`
	Character1ID           int `json:"character1Id"`
	Character1DefinitionID int `json:"character1DefinitionId"`
}

// ExposedDamage is an exposed-only damage or heal record.
type ExposedDamage struct {
	Type               string `json:"type"`
	Value              int    `json:"value"`
	TargetID           int    `json:"targetId"`
	TargetDefinitionID int    `json:"targetDefinitionId"`
	SourceID           int    `json:"sourceId"`
	SourceDefinitionID int    `json:"sourceDefinitionId"`
	IsSkillMainDamage  bool   `json:"isSkillMainDamage"`
	OldHealth          int    `json:"oldHealth"`
	NewHealth          int    `json:"newHealth"`
	OldAura            int    `json:"oldAura"`
	NewAura            int    `json:"newAura"`
	Reaction           string `json:"reaction,omitempty"`
}

// ExposedElementalReaction is an exposed-only reaction record.
type ExposedElementalReaction struct {
	CharacterID           int    `json:"characterId"`
	CharacterDefinitionID int    `json:"characterDefinitionId"`
	Reaction              string `json:"reactionType"`
}

// ExposedSkillUsed is an exposed-only skill record.
type ExposedSkillUsed struct {
	Who                int    `json:"who"`
	CallerID           int    `json:"callerId"`
	CallerDefinitionID int    `json:"callerDefinitionId"`
	SkillDefinitionID  int    `json:"skillDefinitionId"`
	SkillType          string `json:"skillType"`
}

// ExposedSwitchActive is an exposed-only switch record.
type ExposedSwitchActive struct {
	Who                   int  `json:"who"`
	CharacterID           int  `json:"characterId"`
	CharacterDefinitionID int  `json:"characterDefinitionId"`
	FromAction            bool `json:"fromAction"`
}

// ExposedGameState is the redacted snapshot one player sees.
type ExposedGameState struct {
	Phase       string           `json:"phase"`
	CurrentTurn int              `json:"currentTurn"`
	RoundNumber int              `json:"roundNumber"`
	Winner      *int             `json:"winner,omitempty"`
	Players     [2]ExposedPlayer `json:"player"`
}

type ExposedPlayer struct {
	ActiveCharacterID int                `json:"activeCharacterId"`
	PileCards         []ExposedCard      `json:"pileCard"`
	HandCards         []ExposedCard      `json:"handCard"`
	Characters        []ExposedCharacter `json:"character"`
	Dice              []dice.Type        `json:"dice"`
	CombatStatuses    []ExposedEntity    `json:"combatStatus"`
	Supports          []ExposedEntity    `json:"support"`
	Summons           []ExposedEntity    `json:"summon"`
	InitiativeSkills  []ExposedSkill     `json:"initiativeSkill"`
	DeclaredEnd       bool               `json:"declaredEnd"`
	LegendUsed        bool               `json:"legendUsed"`
}

type ExposedCard struct {
	ID                    int               `json:"id"`
	DefinitionID          int               `json:"definitionId"`
	DefinitionCost        []dice.Entry      `json:"definitionCost"`
	DescriptionDictionary map[string]string `json:"descriptionDictionary"`
}

type ExposedCharacter struct {
	ID           int             `json:"id"`
	DefinitionID int             `json:"definitionId"`
	Defeated     bool            `json:"defeated"`
	Entities     []ExposedEntity `json:"entity"`
	Health       int             `json:"health"`
	Energy       int             `json:"energy"`
	MaxHealth    int             `json:"maxHealth"`
	MaxEnergy    int             `json:"maxEnergy"`
	Aura         int             `json:"aura"`
}

type ExposedEntity struct {
	ID                    int               `json:"id"`
	DefinitionID          int               `json:"definitionId"`
	VariableName          string            `json:"variableName,omitempty"`
	VariableValue         *int              `json:"variableValue,omitempty"`
	HasUsagePerRound      bool              `json:"hasUsagePerRound"`
	HintText              string            `json:"hintText,omitempty"`
	Equipment             string            `json:"equipment,omitempty"`
	DescriptionDictionary map[string]string `json:"descriptionDictionary"`
}

type ExposedSkill struct {
	DefinitionID   int          `json:"definitionId"`
	DefinitionCost []dice.Entry `json:"definitionCost"`
}

// ExposeMutation projects m for player who. before is the state m was
// applied to. The second result is false for mutations with no external
// meaning.
func ExposeMutation(who int, before *GameState, m Mutation) (ExposedMutation, bool) {
	switch m := m.(type) {
	case CreateCharacterMutation:
		return ExposedMutation{Case: string(m.Kind()), Value: ExposedCreateCharacter{
			Who:       m.Who,
			Character: exposeCharacter(nil, m.Value),
		}}, true
	case CreateEntityMutation:
		return ExposedMutation{Case: string(m.Kind()), Value: ExposedCreateEntity{
			Who:    m.Where.Who,
			Where:  m.Where.Zone.String(),
			Entity: exposeEntity(nil, m.Value),
		}}, true
	case RemoveEntityMutation:
		ent, _, ok := before.Entity(m.ID)
		if !ok {
			return ExposedMutation{}, false
		}
		return ExposedMutation{Case: string(m.Kind()), Value: ExposedRemoveEntity{Entity: exposeEntity(nil, ent)}}, true
	case ModifyEntityVarMutation:
		defID := 0
		if ch, _, ok := before.Character(m.ID); ok {
			defID = ch.Definition.ID
		} else if ent, _, ok := before.Entity(m.ID); ok {
			defID = ent.Definition.ID
		}
		return ExposedMutation{Case: string(m.Kind()), Value: ExposedModifyEntityVar{
			EntityID:           m.ID,
			EntityDefinitionID: defID,
			VariableName:       string(m.Var),
			VariableValue:      m.Value,
		}}, true
	case TransferCardMutation:
		card, _, _, ok := before.Card(m.CardID)
		if !ok {
			return ExposedMutation{}, false
		}
		hidden := m.Who != who && !m.ToOpponent
		return ExposedMutation{Case: string(m.Kind()), Value: ExposedTransferCard{
			Who:           m.Who,
			From:          m.From.String(),
			To:            m.To.String(),
			TransferToOpp: m.ToOpponent,
			TargetIndex:   m.TargetIndex,
			Card:          exposeCard(nil, card, hidden),
		}}, true
	case RemoveCardMutation:
		card, _, _, ok := before.Card(m.CardID)
		if !ok {
			return ExposedMutation{}, false
		}
		hidden := m.Who != who && (m.Reason == RemoveCardOverflow || m.Reason == RemoveCardElementalTuning)
		return ExposedMutation{Case: string(m.Kind()), Value: ExposedRemoveCard{
			Who:    m.Who,
			From:   m.Where.String(),
			Reason: m.Reason.String(),
			Card:   exposeCard(nil, card, hidden),
		}}, true
	case CreateCardMutation:
		return ExposedMutation{Case: string(m.Kind()), Value: ExposedCreateCard{
			Who:         m.Who,
			To:          m.Target.String(),
			TargetIndex: m.TargetIndex,
			Card:        exposeCard(nil, m.Value, m.Who != who),
		}}, true
	case SwitchActiveMutation:
		// exposed through the switchActive record emitted by the executor
		return ExposedMutation{}, false
	case ChangePhaseMutation:
		return ExposedMutation{Case: string(m.Kind()), Value: ExposedChangePhase{NewPhase: m.Phase.String()}}, true
	case StepRoundMutation, SwitchTurnMutation:
		return ExposedMutation{Case: string(m.Kind())}, true
	case SetWinnerMutation:
		return ExposedMutation{Case: string(m.Kind()), Value: ExposedSetWinner{Winner: m.Winner}}, true
	case SetPlayerFlagMutation:
		if !m.Flag.Exposed() {
			return ExposedMutation{}, false
		}
		return ExposedMutation{Case: string(m.Kind()), Value: ExposedSetPlayerFlag{
			Who:       m.Who,
			FlagName:  m.Flag.String(),
			FlagValue: m.Value,
		}}, true
	case ResetDiceMutation:
		return ExposedMutation{Case: string(m.Kind()), Value: ExposedResetDice{
			Who:  m.Who,
			Dice: exposeDice(m.Dice, m.Who == who),
		}}, true
	case TransformDefinitionMutation:
		return ExposedMutation{Case: string(m.Kind()), Value: ExposedTransformDefinition{
			EntityID:              m.ID,
			NewEntityDefinitionID: m.Definition.DefinitionID(),
		}}, true
	case SwapCharacterPositionMutation:
		first, _, ok1 := before.Character(m.First)
		second, _, ok2 := before.Character(m.Second)
		if !ok1 || !ok2 {
			return ExposedMutation{}, false
		}
		return ExposedMutation{Case: string(m.Kind()), Value: ExposedSwapCharacterPosition{
			Who:                    m.Who,
			Character0ID:           first.ID,
			Character0DefinitionID: first.Definition.ID,
			Character1ID:           second.ID,
			Character1DefinitionID: second.Definition.ID,
		}}, true
	case StepRandomMutation, ClearRemovedEntitiesMutation:
		return ExposedMutation{}, false
	default:
		panic(invariantf("", "unknown mutation %T", m))
	}
}

// ExposeState projects st for player who. Opponent hand cards lose their
// definition, piles are always redacted, opponent dice keep only their
// count, and initiative skills are only shown to their owner.
func ExposeState(who int, st *GameState) ExposedGameState {
	out := ExposedGameState{
		Phase:       st.Phase.String(),
		CurrentTurn: st.CurrentTurn,
		RoundNumber: st.RoundNumber,
	}
	if st.Winner != NoWinner {
		w := st.Winner
		out.Winner = &w
	}
	for i, p := range st.Players {
		ep := ExposedPlayer{
			ActiveCharacterID: p.ActiveCharacterID,
			PileCards:         make([]ExposedCard, 0, len(p.Pile)),
			HandCards:         make([]ExposedCard, 0, len(p.Hands)),
			Characters:        make([]ExposedCharacter, 0, len(p.Characters)),
			Dice:              exposeDice(p.Dice, i == who),
			CombatStatuses:    exposeEntities(st, p.CombatStatuses),
			Supports:          exposeEntities(st, p.Supports),
			Summons:           exposeEntities(st, p.Summons),
			InitiativeSkills:  []ExposedSkill{},
			DeclaredEnd:       p.DeclaredEnd,
			LegendUsed:        p.LegendUsed,
		}
		for _, c := range p.Pile {
			ep.PileCards = append(ep.PileCards, exposeCard(st, c, true))
		}
		for _, c := range p.Hands {
			ep.HandCards = append(ep.HandCards, exposeCard(st, c, i != who))
		}
		for _, ch := range p.Characters {
			ep.Characters = append(ep.Characters, exposeCharacter(st, ch))
		}
		if i == who {
			if active := st.ActiveCharacter(i); active != nil {
				for _, s := range active.Definition.Skills {
					if s.Initiative() {
						ep.InitiativeSkills = append(ep.InitiativeSkills, ExposedSkill{
							DefinitionID:   s.ID,
							DefinitionCost: s.Cost.Entries(),
						})
					}
				}
			}
		}
		out.Players[i] = ep
	}
	return out
}

func exposeDice(ds []dice.Type, visible bool) []dice.Type {
	out := make([]dice.Type, len(ds))
	if visible {
		copy(out, ds)
	}
	return out
}

func exposeEntities(st *GameState, items []*EntityState) []ExposedEntity {
	out := make([]ExposedEntity, 0, len(items))
	for _, e := range items {
		out = append(out, exposeEntity(st, e))
	}
	return out
}

func exposeEntity(st *GameState, e *EntityState) ExposedEntity {
	def := e.Definition
	out := ExposedEntity{
		ID:                    e.ID,
		DefinitionID:          def.ID,
		HasUsagePerRound:      e.Variables.Get(variables.UsagePerRound) > 0,
		HintText:              def.HintText,
		DescriptionDictionary: describe(st, e.ID, def.Descriptions),
	}
	if def.VisibleVar != "" {
		out.VariableName = string(def.VisibleVar)
		if e.Variables.Has(def.VisibleVar) {
			v := e.Variables.Get(def.VisibleVar)
			out.VariableValue = &v
		}
	}
	if def.Type == EntityEquipment {
		switch {
		case def.HasTag(TagArtifact):
			out.Equipment = "artifact"
		case def.HasTag(TagWeapon):
			out.Equipment = "weapon"
		case def.HasTag(TagTechnique):
			out.Equipment = "technique"
		default:
			out.Equipment = "other"
		}
	}
	return out
}

func exposeCard(st *GameState, c *CardState, hide bool) ExposedCard {
	if hide {
		return ExposedCard{ID: c.ID, DefinitionCost: []dice.Entry{}, DescriptionDictionary: map[string]string{}}
	}
	return ExposedCard{
		ID:                    c.ID,
		DefinitionID:          c.Definition.ID,
		DefinitionCost:        c.Definition.FullCost().Entries(),
		DescriptionDictionary: describe(st, c.ID, c.Definition.Descriptions),
	}
}

func exposeCharacter(st *GameState, ch *CharacterState) ExposedCharacter {
	return ExposedCharacter{
		ID:           ch.ID,
		DefinitionID: ch.Definition.ID,
		Defeated:     !ch.Alive(),
		Entities:     exposeEntities(st, ch.Entities),
		Health:       ch.Health(),
		Energy:       ch.Energy(),
		MaxHealth:    ch.MaxHealth(),
		MaxEnergy:    ch.MaxEnergy(),
		Aura:         int(ch.Aura()),
	}
}

func describe(st *GameState, id int, funcs map[string]DescriptionFunc) map[string]string {
	out := make(map[string]string, len(funcs))
	if st == nil {
		return out
	}
	for k, f := range funcs {
		out[k] = f(st, id)
	}
	return out
}
