package game

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/gitcg/gitcg-server-go/internal/game/dice"
)

// scriptedIO answers every request with a fixed policy and records what it
// was told.
type scriptedIO struct {
	mu            sync.Mutex
	notifications []Notification
	methods       []RPCMethod

	choose func(req *ActionRequest) ActionResponse
	failOn RPCMethod
}

func (s *scriptedIO) Notify(n Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = append(s.notifications, n)
}

func (s *scriptedIO) RPC(ctx context.Context, req RPCRequest) (RPCResponse, error) {
	if err := ctx.Err(); err != nil {
		return RPCResponse{}, err
	}
	s.mu.Lock()
	s.methods = append(s.methods, req.Method)
	s.mu.Unlock()
	if req.Method == s.failOn {
		return RPCResponse{}, errors.New("connection reset")
	}

	switch req.Method {
	case MethodSwitchHands:
		return RPCResponse{Method: req.Method, SwitchHands: &SwitchHandsResponse{RemovedHandIDs: []int{}}}, nil
	case MethodChooseActive:
		return RPCResponse{Method: req.Method, ChooseActive: &ChooseActiveResponse{ActiveCharacterID: req.ChooseActive.Candidates[0]}}, nil
	case MethodRerollDice:
		return RPCResponse{Method: req.Method, RerollDice: &RerollDiceResponse{}}, nil
	case MethodSelectCard:
		return RPCResponse{Method: req.Method, SelectCard: &SelectCardResponse{SelectedDefinitionID: req.SelectCard.CandidateDefinitionIDs[0]}}, nil
	case MethodAction:
		resp := s.choose(req.Action)
		return RPCResponse{Method: req.Method, Action: &resp}, nil
	}
	return RPCResponse{}, errors.New("unexpected method")
}

func (s *scriptedIO) last() Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.notifications[len(s.notifications)-1]
}

// declareEnd always ends the round.
func declareEnd(req *ActionRequest) ActionResponse {
	for i, c := range req.Candidates {
		if c.Action.Case == ActionDeclareEnd.String() {
			return ActionResponse{ChosenActionIndex: i, UsedDice: []dice.Type{}}
		}
	}
	return ActionResponse{ChosenActionIndex: len(req.Candidates) - 1}
}

// attackFirst uses the first valid skill and ends the round otherwise.
func attackFirst(req *ActionRequest) ActionResponse {
	for i, c := range req.Candidates {
		if c.Validity == ValidityValid.String() && c.Action.Case == ActionUseSkill.String() {
			return ActionResponse{ChosenActionIndex: i, UsedDice: c.AutoSelectedDice}
		}
	}
	return declareEnd(req)
}

func testDecks() [2]Deck {
	cards := []int{drawTwo, drawTwo, charge, charge, relic, blade, drawTwo, charge, relic, blade, drawTwo, charge}
	return [2]Deck{
		{Characters: []int{striker}, Cards: cards},
		{Characters: []int{tide, frost}, Cards: cards},
	}
}

func newTestGame(t *testing.T, seed uint64, io [2]*scriptedIO, mutate func(*GameOptions)) *Game {
	t.Helper()
	opts := GameOptions{
		Seed:   seed,
		Decks:  testDecks(),
		IO:     [2]PlayerIO{io[0], io[1]},
		Logger: zaptest.NewLogger(t),
		OnNotify: func(b NotifyBatch) {
			for _, p := range b.State.Players {
				for _, ch := range p.Characters {
					require.GreaterOrEqual(t, ch.Health(), 0)
					require.LessOrEqual(t, ch.Health(), ch.MaxHealth())
					require.Equal(t, ch.Health() > 0, ch.Alive())
				}
			}
		},
	}
	if mutate != nil {
		mutate(&opts)
	}
	g, err := NewGame(testRegistry(t), opts)
	require.NoError(t, err)
	return g
}

// TestGameRoundLimit verifies a match nobody wins stops after the last
// round.
func TestGameRoundLimit(t *testing.T) {
	io := [2]*scriptedIO{{choose: declareEnd}, {choose: declareEnd}}
	g := newTestGame(t, 1, io, func(o *GameOptions) {
		o.Rules = DefaultRules()
		o.Rules.MaxRounds = 2
	})

	require.NoError(t, g.Run(context.Background()))

	st := g.State()
	assert.Equal(t, PhaseGameEnd, st.Phase)
	assert.Equal(t, NoWinner, st.Winner)
	assert.Equal(t, 3, st.RoundNumber)
	for who := 0; who < 2; who++ {
		last := io[who].last()
		assert.Equal(t, "gameEnd", last.State.Phase)
		assert.Nil(t, last.State.Winner)
		assert.Len(t, last.State.Players[who].HandCards, 5+2+2)
	}
}

// TestGameSetup verifies the opening sequence of requests.
func TestGameSetup(t *testing.T) {
	io := [2]*scriptedIO{{choose: declareEnd}, {choose: declareEnd}}
	g := newTestGame(t, 1, io, func(o *GameOptions) {
		o.Rules = DefaultRules()
		o.Rules.MaxRounds = 1
	})
	require.NoError(t, g.Run(context.Background()))

	for who := 0; who < 2; who++ {
		require.GreaterOrEqual(t, len(io[who].methods), 3)
		assert.Equal(t, []RPCMethod{MethodSwitchHands, MethodChooseActive, MethodRerollDice}, io[who].methods[:3])
	}
	st := g.State()
	assert.Equal(t, st.Players[0].Characters[0].ID, st.Players[0].ActiveCharacterID)
	assert.Equal(t, st.Players[1].Characters[0].ID, st.Players[1].ActiveCharacterID)
	assert.Len(t, st.Players[0].Pile, len(testDecks()[0].Cards)-5-2)
}

// TestGameDeterminism verifies that the same seed and answers give the same
// match.
func TestGameDeterminism(t *testing.T) {
	run := func(seed uint64) (*StateChecksum, *GameState) {
		io := [2]*scriptedIO{{choose: attackFirst}, {choose: attackFirst}}
		g := newTestGame(t, seed, io, nil)
		require.NoError(t, g.Run(context.Background()))
		sum, err := ComputeChecksum(g.State(), g.Log())
		require.NoError(t, err)
		return sum, g.State()
	}

	first, st := run(42)
	second, _ := run(42)
	assert.Equal(t, first.Hash, second.Hash)
	assert.Equal(t, first.Mutations, second.Mutations)
	assert.Equal(t, PhaseGameEnd, st.Phase)

	other, _ := run(43)
	assert.NotEqual(t, first.Hash, other.Hash)
}

// TestGameIOErrorAborts verifies a failing player ends the match with an
// IOError.
func TestGameIOErrorAborts(t *testing.T) {
	io := [2]*scriptedIO{{choose: declareEnd}, {choose: declareEnd, failOn: MethodAction}}
	var reported *IOError
	g := newTestGame(t, 1, io, func(o *GameOptions) {
		o.OnIOError = func(err *IOError) { reported = err }
	})

	err := g.Run(context.Background())

	var ioErr *IOError
	require.ErrorAs(t, err, &ioErr)
	assert.Equal(t, 1, ioErr.Who)
	assert.Equal(t, MethodAction, ioErr.Method)
	assert.Same(t, ioErr, reported)
	assert.NotEqual(t, PhaseGameEnd, g.State().Phase)
}

// TestGameRejectsInvalidChoice verifies out-of-range answers are IOErrors.
func TestGameRejectsInvalidChoice(t *testing.T) {
	bad := func(*ActionRequest) ActionResponse { return ActionResponse{ChosenActionIndex: 999} }
	io := [2]*scriptedIO{{choose: bad}, {choose: declareEnd}}
	g := newTestGame(t, 1, io, nil)

	err := g.Run(context.Background())
	assert.ErrorIs(t, err, ErrInvalidAction)
}

// TestGameRejectsUnpaidAction verifies the chosen dice must pay the cost.
func TestGameRejectsUnpaidAction(t *testing.T) {
	cheat := func(req *ActionRequest) ActionResponse {
		for i, c := range req.Candidates {
			if c.Validity == ValidityValid.String() && c.Action.Case == ActionUseSkill.String() {
				return ActionResponse{ChosenActionIndex: i, UsedDice: []dice.Type{}}
			}
		}
		return declareEnd(req)
	}
	io := [2]*scriptedIO{{choose: cheat}, {choose: declareEnd}}
	g := newTestGame(t, 1, io, nil)

	err := g.Run(context.Background())
	assert.ErrorIs(t, err, ErrInvalidAction)
}

// TestGameCancelled verifies a cancelled context ends the match.
func TestGameCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	io := [2]*scriptedIO{{choose: declareEnd}, {choose: declareEnd}}
	g := newTestGame(t, 1, io, nil)

	err := g.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewGameValidatesDecks(t *testing.T) {
	reg := testRegistry(t)
	io := [2]PlayerIO{&scriptedIO{choose: declareEnd}, &scriptedIO{choose: declareEnd}}

	decks := testDecks()
	decks[1].Cards = append(decks[1].Cards, 4242)
	_, err := NewGame(reg, GameOptions{Decks: decks, IO: io})
	assert.ErrorIs(t, err, ErrUnknownDefinition)

	decks = testDecks()
	decks[0].Characters = nil
	_, err = NewGame(reg, GameOptions{Decks: decks, IO: io})
	assert.Error(t, err)

	_, err = NewGame(reg, GameOptions{Decks: testDecks(), IO: [2]PlayerIO{io[0], nil}})
	assert.Error(t, err)
}
