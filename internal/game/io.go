package game

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/gitcg/gitcg-server-go/internal/game/dice"
)

// RPCMethod names a request the engine sends to a player.
type RPCMethod string

const (
	MethodAction       RPCMethod = "action"
	MethodChooseActive RPCMethod = "chooseActive"
	MethodRerollDice   RPCMethod = "rerollDice"
	MethodSelectCard   RPCMethod = "selectCard"
	MethodSwitchHands  RPCMethod = "switchHands"
)

// ActionRequest asks for the next action.
type ActionRequest struct {
	Candidates []ExposedAction `json:"candidates"`
}

// ActionResponse picks a candidate and the dice paid for it.
type ActionResponse struct {
	ChosenActionIndex int         `json:"chosenActionIndex"`
	UsedDice          []dice.Type `json:"usedDice"`
}

type ChooseActiveRequest struct {
	Candidates []int `json:"candidates"`
}

type ChooseActiveResponse struct {
	ActiveCharacterID int `json:"activeCharacterId"`
}

type RerollDiceRequest struct{}

// RerollDiceResponse lists the dice to reroll. Empty ends rerolling.
type RerollDiceResponse struct {
	DiceToReroll []dice.Type `json:"diceToReroll"`
}

type SelectCardRequest struct {
	CandidateDefinitionIDs []int `json:"candidateDefinitionIds"`
}

type SelectCardResponse struct {
	SelectedDefinitionID int `json:"selectedDefinitionId"`
}

type SwitchHandsRequest struct{}

// SwitchHandsResponse lists the hand cards to put back into the pile.
type SwitchHandsResponse struct {
	RemovedHandIDs []int `json:"removedHandIds"`
}

// RPCRequest is one request. Exactly the payload matching Method is set.
type RPCRequest struct {
	Method       RPCMethod            `json:"method"`
	Action       *ActionRequest       `json:"action,omitempty"`
	ChooseActive *ChooseActiveRequest `json:"chooseActive,omitempty"`
	RerollDice   *RerollDiceRequest   `json:"rerollDice,omitempty"`
	SelectCard   *SelectCardRequest   `json:"selectCard,omitempty"`
	SwitchHands  *SwitchHandsRequest  `json:"switchHands,omitempty"`
}

// RPCResponse is one response. Exactly the payload matching Method is set.
type RPCResponse struct {
	Method       RPCMethod             `json:"method"`
	Action       *ActionResponse       `json:"action,omitempty"`
	ChooseActive *ChooseActiveResponse `json:"chooseActive,omitempty"`
	RerollDice   *RerollDiceResponse   `json:"rerollDice,omitempty"`
	SelectCard   *SelectCardResponse   `json:"selectCard,omitempty"`
	SwitchHands  *SwitchHandsResponse  `json:"switchHands,omitempty"`
}

// Notification is what a player receives at every flush: the exposed
// mutations of the batch and the state as that player sees it.
type Notification struct {
	Mutations []ExposedMutation `json:"mutations"`
	State     ExposedGameState  `json:"state"`
}

//go:generate mockgen -destination=mock/mock_player_io.go -package=gamemock github.com/gitcg/gitcg-server-go/internal/game PlayerIO

// PlayerIO connects one player to the engine. Notify must not block for
// long; RPC blocks until the player answers or ctx is done.
type PlayerIO interface {
	Notify(n Notification)
	RPC(ctx context.Context, req RPCRequest) (RPCResponse, error)
}

// DecodeRPCResponse parses the raw payload a client sent for method and
// checks its shape. Unknown fields and missing required fields are
// rejected with ErrMalformedResponse. Dice and card id lists are required
// even when empty; null counts as missing.
func DecodeRPCResponse(method RPCMethod, raw []byte) (RPCResponse, error) {
	resp := RPCResponse{Method: method}
	var target any
	switch method {
	case MethodAction:
		resp.Action = &ActionResponse{ChosenActionIndex: -1}
		target = resp.Action
	case MethodChooseActive:
		resp.ChooseActive = &ChooseActiveResponse{}
		target = resp.ChooseActive
	case MethodRerollDice:
		resp.RerollDice = &RerollDiceResponse{}
		target = resp.RerollDice
	case MethodSelectCard:
		resp.SelectCard = &SelectCardResponse{}
		target = resp.SelectCard
	case MethodSwitchHands:
		resp.SwitchHands = &SwitchHandsResponse{}
		target = resp.SwitchHands
	default:
		return RPCResponse{}, fmt.Errorf("%w: unknown method %q", ErrMalformedResponse, method)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		return RPCResponse{}, fmt.Errorf("%w: %s: %v", ErrMalformedResponse, method, err)
	}

	switch method {
	case MethodAction:
		if resp.Action.ChosenActionIndex < 0 {
			return RPCResponse{}, fmt.Errorf("%w: action: missing chosenActionIndex", ErrMalformedResponse)
		}
		if resp.Action.UsedDice == nil {
			return RPCResponse{}, fmt.Errorf("%w: action: missing usedDice", ErrMalformedResponse)
		}
	case MethodRerollDice:
		if resp.RerollDice.DiceToReroll == nil {
			return RPCResponse{}, fmt.Errorf("%w: rerollDice: missing diceToReroll", ErrMalformedResponse)
		}
	case MethodSwitchHands:
		if resp.SwitchHands.RemovedHandIDs == nil {
			return RPCResponse{}, fmt.Errorf("%w: switchHands: missing removedHandIds", ErrMalformedResponse)
		}
	case MethodChooseActive:
		if resp.ChooseActive.ActiveCharacterID <= 0 {
			return RPCResponse{}, fmt.Errorf("%w: chooseActive: missing activeCharacterId", ErrMalformedResponse)
		}
	case MethodSelectCard:
		if resp.SelectCard.SelectedDefinitionID <= 0 {
			return RPCResponse{}, fmt.Errorf("%w: selectCard: missing selectedDefinitionId", ErrMalformedResponse)
		}
	}
	return resp, nil
}

// validateResponse checks that resp carries the payload for method.
func validateResponse(who int, method RPCMethod, resp RPCResponse) error {
	ok := false
	switch method {
	case MethodAction:
		ok = resp.Action != nil
	case MethodChooseActive:
		ok = resp.ChooseActive != nil
	case MethodRerollDice:
		ok = resp.RerollDice != nil
	case MethodSelectCard:
		ok = resp.SelectCard != nil
	case MethodSwitchHands:
		ok = resp.SwitchHands != nil
	}
	if !ok {
		return &IOError{Who: who, Method: method, Err: ErrMalformedResponse}
	}
	return nil
}

// rerollDice asks player who which dice to reroll, up to times rounds.
func (e *executor) rerollDice(who, times int) error {
	for i := 0; i < times; i++ {
		if err := e.mutator.Pause(e.ctx, true); err != nil {
			return err
		}
		resp, err := e.rpc(e.ctx, who, RPCRequest{Method: MethodRerollDice, RerollDice: &RerollDiceRequest{}})
		if err != nil {
			return err
		}
		chosen := resp.RerollDice.DiceToReroll
		if len(chosen) == 0 {
			return nil
		}
		st := e.mutator.State()
		rest, ok := dice.Remove(st.Players[who].Dice, chosen)
		if !ok {
			return &IOError{Who: who, Method: MethodRerollDice, Err: ErrMalformedResponse}
		}
		rest = append(rest, e.randomDice(len(chosen))...)
		e.mutator.Mutate(ResetDiceMutation{Who: who, Dice: dice.Sort(rest, activeElement(st, who))})
	}
	return nil
}
