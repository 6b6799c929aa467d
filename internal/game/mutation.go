package game

import (
	"fmt"

	"github.com/gitcg/gitcg-server-go/internal/game/dice"
	"github.com/gitcg/gitcg-server-go/internal/game/variables"
)

// MutationKind names a mutation variant.
type MutationKind string

const (
	KindCreateCharacter       MutationKind = "createCharacter"
	KindCreateEntity          MutationKind = "createEntity"
	KindRemoveEntity          MutationKind = "removeEntity"
	KindModifyEntityVar       MutationKind = "modifyEntityVar"
	KindTransferCard          MutationKind = "transferCard"
	KindRemoveCard            MutationKind = "removeCard"
	KindCreateCard            MutationKind = "createCard"
	KindSwitchActive          MutationKind = "switchActive"
	KindChangePhase           MutationKind = "changePhase"
	KindStepRound             MutationKind = "stepRound"
	KindSwitchTurn            MutationKind = "switchTurn"
	KindSetWinner             MutationKind = "setWinner"
	KindSetPlayerFlag         MutationKind = "setPlayerFlag"
	KindResetDice             MutationKind = "resetDice"
	KindTransformDefinition   MutationKind = "transformDefinition"
	KindSwapCharacterPosition MutationKind = "swapCharacterPosition"
	KindStepRandom            MutationKind = "stepRandom"
	KindClearRemovedEntities  MutationKind = "clearRemovedEntities"
)

// Mutation is one atomic change to a GameState. The set of variants is
// closed: every consumer type-switches over all of them and panics on an
// unknown one.
type Mutation interface {
	Kind() MutationKind
	isMutation()
}

// RemoveCardReason explains why a card left a hand or pile.
type RemoveCardReason int

const (
	RemoveCardPlay RemoveCardReason = iota
	RemoveCardPlayNoEffect
	RemoveCardElementalTuning
	RemoveCardOverflow
	RemoveCardDisposed
	RemoveCardOnDrawTriggered
)

func (r RemoveCardReason) String() string {
	switch r {
	case RemoveCardPlay:
		return "play"
	case RemoveCardPlayNoEffect:
		return "playNoEffect"
	case RemoveCardElementalTuning:
		return "elementalTuning"
	case RemoveCardOverflow:
		return "overflow"
	case RemoveCardDisposed:
		return "disposed"
	case RemoveCardOnDrawTriggered:
		return "onDrawTriggered"
	default:
		return "unknown"
	}
}

// PlayerFlag is a boolean flag on a player.
type PlayerFlag int

const (
	FlagDeclaredEnd PlayerFlag = iota
	FlagLegendUsed
	FlagHasDefeated
)

func (f PlayerFlag) String() string {
	switch f {
	case FlagDeclaredEnd:
		return "declaredEnd"
	case FlagLegendUsed:
		return "legendUsed"
	case FlagHasDefeated:
		return "hasDefeated"
	default:
		return "unknown"
	}
}

// Exposed reports whether clients see the flag.
func (f PlayerFlag) Exposed() bool {
	return f == FlagDeclaredEnd || f == FlagLegendUsed
}

// CreateCharacterMutation adds a character to a player's lineup.
type CreateCharacterMutation struct {
	Who   int
	Value *CharacterState
}

// CreateEntityMutation adds an entity to an area.
type CreateEntityMutation struct {
	Where Area
	Value *EntityState
}

// RemoveEntityMutation removes an entity from play.
type RemoveEntityMutation struct {
	ID int
}

// ModifyEntityVarMutation sets a variable of a character or entity.
type ModifyEntityVarMutation struct {
	ID    int
	Var   variables.Name
	Value int
}

// TransferCardMutation moves a card between a hand and a pile, possibly to
// the opponent.
type TransferCardMutation struct {
	Who         int
	CardID      int
	From        CardZone
	To          CardZone
	ToOpponent  bool
	TargetIndex int // -1 appends
}

// RemoveCardMutation removes a card from a hand or pile.
type RemoveCardMutation struct {
	Who    int
	CardID int
	Where  CardZone
	Reason RemoveCardReason
}

// CreateCardMutation adds a card to a hand or pile.
type CreateCardMutation struct {
	Who         int
	Value       *CardState
	Target      CardZone
	TargetIndex int // -1 appends
}

// SwitchActiveMutation changes a player's active character.
type SwitchActiveMutation struct {
	Who         int
	CharacterID int
}

// ChangePhaseMutation moves the match to another phase.
type ChangePhaseMutation struct {
	Phase Phase
}

// StepRoundMutation increments the round number.
type StepRoundMutation struct{}

// SwitchTurnMutation passes the turn to the other player.
type SwitchTurnMutation struct{}

// SetWinnerMutation records the winner.
type SetWinnerMutation struct {
	Winner int
}

// SetPlayerFlagMutation sets a player flag.
type SetPlayerFlagMutation struct {
	Who   int
	Flag  PlayerFlag
	Value bool
}

// ResetDiceMutation replaces a player's dice.
type ResetDiceMutation struct {
	Who  int
	Dice []dice.Type
}

// TransformDefinitionMutation replaces the definition of a character or
// entity, keeping its id and variables.
type TransformDefinitionMutation struct {
	ID         int
	Definition Definition
}

// SwapCharacterPositionMutation exchanges two characters in a lineup.
type SwapCharacterPositionMutation struct {
	Who    int
	First  int
	Second int
}

// StepRandomMutation advances the PRNG cursor. Internal only.
type StepRandomMutation struct {
	Value uint64
}

// ClearRemovedEntitiesMutation empties the removed-entities buffer.
// Internal only.
type ClearRemovedEntitiesMutation struct{}

func (CreateCharacterMutation) Kind() MutationKind       { return KindCreateCharacter }
func (CreateEntityMutation) Kind() MutationKind          { return KindCreateEntity }
func (RemoveEntityMutation) Kind() MutationKind          { return KindRemoveEntity }
func (ModifyEntityVarMutation) Kind() MutationKind       { return KindModifyEntityVar }
func (TransferCardMutation) Kind() MutationKind          { return KindTransferCard }
func (RemoveCardMutation) Kind() MutationKind            { return KindRemoveCard }
func (CreateCardMutation) Kind() MutationKind            { return KindCreateCard }
func (SwitchActiveMutation) Kind() MutationKind          { return KindSwitchActive }
func (ChangePhaseMutation) Kind() MutationKind           { return KindChangePhase }
func (StepRoundMutation) Kind() MutationKind             { return KindStepRound }
func (SwitchTurnMutation) Kind() MutationKind            { return KindSwitchTurn }
func (SetWinnerMutation) Kind() MutationKind             { return KindSetWinner }
func (SetPlayerFlagMutation) Kind() MutationKind         { return KindSetPlayerFlag }
func (ResetDiceMutation) Kind() MutationKind             { return KindResetDice }
func (TransformDefinitionMutation) Kind() MutationKind   { return KindTransformDefinition }
func (SwapCharacterPositionMutation) Kind() MutationKind { return KindSwapCharacterPosition }
func (StepRandomMutation) Kind() MutationKind            { return KindStepRandom }
func (ClearRemovedEntitiesMutation) Kind() MutationKind  { return KindClearRemovedEntities }

func (CreateCharacterMutation) isMutation()       {}
func (CreateEntityMutation) isMutation()          {}
func (RemoveEntityMutation) isMutation()          {}
func (ModifyEntityVarMutation) isMutation()       {}
func (TransferCardMutation) isMutation()          {}
func (RemoveCardMutation) isMutation()            {}
func (CreateCardMutation) isMutation()            {}
func (SwitchActiveMutation) isMutation()          {}
func (ChangePhaseMutation) isMutation()           {}
func (StepRoundMutation) isMutation()             {}
func (SwitchTurnMutation) isMutation()            {}
func (SetWinnerMutation) isMutation()             {}
func (SetPlayerFlagMutation) isMutation()         {}
func (ResetDiceMutation) isMutation()             {}
func (TransformDefinitionMutation) isMutation()   {}
func (SwapCharacterPositionMutation) isMutation() {}
func (StepRandomMutation) isMutation()            {}
func (ClearRemovedEntitiesMutation) isMutation()  {}

// Describe renders a mutation as a stable single line. It is used for
// logging and for the mutation-log checksum.
func Describe(m Mutation) string {
	switch m := m.(type) {
	case CreateCharacterMutation:
		return fmt.Sprintf("%s who=%d id=%d def=%d", m.Kind(), m.Who, m.Value.ID, m.Value.Definition.ID)
	case CreateEntityMutation:
		return fmt.Sprintf("%s who=%d zone=%s char=%d id=%d def=%d vars=%v",
			m.Kind(), m.Where.Who, m.Where.Zone, m.Where.CharacterID, m.Value.ID, m.Value.Definition.ID, m.Value.Variables.Entries())
	case RemoveEntityMutation:
		return fmt.Sprintf("%s id=%d", m.Kind(), m.ID)
	case ModifyEntityVarMutation:
		return fmt.Sprintf("%s id=%d %s=%d", m.Kind(), m.ID, m.Var, m.Value)
	case TransferCardMutation:
		return fmt.Sprintf("%s who=%d card=%d from=%s to=%s opp=%t index=%d", m.Kind(), m.Who, m.CardID, m.From, m.To, m.ToOpponent, m.TargetIndex)
	case RemoveCardMutation:
		return fmt.Sprintf("%s who=%d card=%d where=%s reason=%s", m.Kind(), m.Who, m.CardID, m.Where, m.Reason)
	case CreateCardMutation:
		return fmt.Sprintf("%s who=%d card=%d def=%d to=%s index=%d", m.Kind(), m.Who, m.Value.ID, m.Value.Definition.ID, m.Target, m.TargetIndex)
	case SwitchActiveMutation:
		return fmt.Sprintf("%s who=%d char=%d", m.Kind(), m.Who, m.CharacterID)
	case ChangePhaseMutation:
		return fmt.Sprintf("%s phase=%s", m.Kind(), m.Phase)
	case StepRoundMutation, SwitchTurnMutation, ClearRemovedEntitiesMutation:
		return string(m.Kind())
	case SetWinnerMutation:
		return fmt.Sprintf("%s winner=%d", m.Kind(), m.Winner)
	case SetPlayerFlagMutation:
		return fmt.Sprintf("%s who=%d %s=%t", m.Kind(), m.Who, m.Flag, m.Value)
	case ResetDiceMutation:
		return fmt.Sprintf("%s who=%d dice=%v", m.Kind(), m.Who, m.Dice)
	case TransformDefinitionMutation:
		return fmt.Sprintf("%s id=%d def=%d", m.Kind(), m.ID, m.Definition.DefinitionID())
	case SwapCharacterPositionMutation:
		return fmt.Sprintf("%s who=%d %d<->%d", m.Kind(), m.Who, m.First, m.Second)
	case StepRandomMutation:
		return fmt.Sprintf("%s value=%d", m.Kind(), m.Value)
	default:
		panic(fmt.Sprintf("unknown mutation %T", m))
	}
}
