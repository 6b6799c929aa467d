package game

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gitcg/gitcg-server-go/internal/game/dice"
	"github.com/gitcg/gitcg-server-go/internal/game/variables"
)

// Deck is one player's lineup and card list, by definition id.
type Deck struct {
	Characters []int `json:"characters" yaml:"characters"`
	Cards      []int `json:"cards" yaml:"cards"`
}

// GameOptions configures a match.
type GameOptions struct {
	Rules Rules
	Seed  uint64
	Decks [2]Deck
	IO    [2]PlayerIO

	Logger *zap.Logger
	// RPCTimeout bounds every RPC. Zero means no limit beyond ctx.
	RPCTimeout time.Duration
	// OnNotify observes every flushed batch after players were notified.
	OnNotify func(NotifyBatch)
	// OnPause runs at pause points before the pending batch is flushed.
	OnPause PauseFunc
	// OnIOError is told about the I/O error that ended the match.
	OnIOError func(*IOError)
	// OnRPC observes every completed RPC.
	OnRPC func(who int, method RPCMethod, elapsed time.Duration, err error)
}

// Game runs one match. Run drives it from setup to gameEnd on the calling
// goroutine; State may be called from any goroutine.
type Game struct {
	logger    *zap.Logger
	registry  *Registry
	previewer *Previewer
	mutator   *Mutator
	opts      GameOptions

	mu       sync.RWMutex
	snapshot *GameState
}

// NewGame validates the decks and creates a match ready to Run.
func NewGame(reg *Registry, opts GameOptions) (*Game, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Rules == (Rules{}) {
		opts.Rules = DefaultRules()
	}
	for who, deck := range opts.Decks {
		if opts.IO[who] == nil {
			return nil, fmt.Errorf("player %d: no PlayerIO", who)
		}
		if len(deck.Characters) == 0 {
			return nil, fmt.Errorf("player %d: deck has no characters", who)
		}
		for _, id := range deck.Characters {
			if _, err := reg.Character(id); err != nil {
				return nil, fmt.Errorf("player %d: %w", who, err)
			}
		}
		for _, id := range deck.Cards {
			if _, err := reg.Card(id); err != nil {
				return nil, fmt.Errorf("player %d: %w", who, err)
			}
		}
	}

	g := &Game{
		logger:    logger,
		registry:  reg,
		previewer: NewPreviewer(reg, logger),
		opts:      opts,
	}
	initial := NewGameState(opts.Rules, opts.Seed)
	g.snapshot = initial
	g.mutator = NewMutator(initial, MutatorOptions{
		Logger:   logger,
		OnNotify: g.handleBatch,
		OnPause:  opts.OnPause,
	})
	return g, nil
}

// State returns the latest flushed snapshot.
func (g *Game) State() *GameState {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.snapshot
}

// Log returns the mutation log. Only valid once Run returned.
func (g *Game) Log() []Mutation {
	return g.mutator.Log()
}

// Registry returns the definitions the match runs on.
func (g *Game) Registry() *Registry {
	return g.registry
}

// Run plays the match to its end. It returns the I/O error or invariant
// violation that aborted the match, or nil when the match reached gameEnd.
func (g *Game) Run(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			ie, ok := r.(*InvariantError)
			if !ok {
				panic(r)
			}
			g.logger.Error("invariant violated",
				zap.String("mutation", ie.Mutation),
				zap.String("reason", ie.Reason),
			)
			err = ie
		}
	}()

	g.logger.Info("match started", zap.Uint64("seed", g.opts.Seed))
	g.setup()

	for {
		st := g.mutator.State()
		if st.Phase == PhaseGameEnd {
			break
		}
		var stepErr error
		switch st.Phase {
		case PhaseInitHands:
			stepErr = g.initHands(ctx)
		case PhaseInitActives:
			stepErr = g.initActives(ctx)
		case PhaseRoll:
			stepErr = g.roll(ctx)
		case PhaseAction:
			stepErr = g.action(ctx)
		case PhaseEnd:
			stepErr = g.end(ctx)
		}
		if stepErr != nil {
			return g.fail(stepErr)
		}
		g.checkpoint()
	}

	if err := g.mutator.Pause(ctx, false); err != nil {
		return g.fail(err)
	}
	st := g.mutator.State()
	g.logger.Info("match ended",
		zap.Int("winner", st.Winner),
		zap.Int("rounds", st.RoundNumber),
		zap.Int("mutations", g.mutator.LogLen()),
	)
	return nil
}

func (g *Game) fail(err error) error {
	g.mutator.Notify()
	var ioErr *IOError
	if errors.As(err, &ioErr) {
		g.logger.Warn("match aborted by player i/o",
			zap.Int("who", ioErr.Who),
			zap.String("method", string(ioErr.Method)),
			zap.Error(ioErr.Err),
		)
		if g.opts.OnIOError != nil {
			g.opts.OnIOError(ioErr)
		}
	}
	return err
}

func (g *Game) handleBatch(b NotifyBatch) {
	g.mu.Lock()
	g.snapshot = b.State
	g.mu.Unlock()
	for who := 0; who < 2; who++ {
		muts := b.Exposed[who]
		if muts == nil {
			muts = []ExposedMutation{}
		}
		g.opts.IO[who].Notify(Notification{Mutations: muts, State: ExposeState(who, b.State)})
	}
	if g.opts.OnNotify != nil {
		g.opts.OnNotify(b)
	}
}

// checkpoint drops the removed-entity buffer and flushes.
func (g *Game) checkpoint() {
	if len(g.mutator.State().RemovedEntities) > 0 {
		g.mutator.Mutate(ClearRemovedEntitiesMutation{})
	}
	for who := 0; who < 2; who++ {
		if g.mutator.State().Players[who].HasDefeated {
			g.mutator.Mutate(SetPlayerFlagMutation{Who: who, Flag: FlagHasDefeated, Value: false})
		}
	}
	g.mutator.Notify()
}

func (g *Game) newExec(ctx context.Context) *executor {
	return newExecutor(ctx, g.mutator, g.registry, g.logger, ModeReal, g.rpc)
}

// rpc sends one request and checks that the response carries the matching
// payload.
func (g *Game) rpc(ctx context.Context, who int, req RPCRequest) (RPCResponse, error) {
	if g.opts.RPCTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.opts.RPCTimeout)
		defer cancel()
	}
	start := time.Now()
	resp, err := g.opts.IO[who].RPC(ctx, req)
	if err == nil {
		err = validateResponse(who, req.Method, resp)
	}
	if g.opts.OnRPC != nil {
		g.opts.OnRPC(who, req.Method, time.Since(start), err)
	}
	if err != nil {
		var ioErr *IOError
		if errors.As(err, &ioErr) {
			return RPCResponse{}, err
		}
		return RPCResponse{}, &IOError{Who: who, Method: req.Method, Err: err}
	}
	g.logger.Debug("rpc answered", zap.Int("who", who), zap.String("method", string(req.Method)))
	return resp, nil
}

// rpcBoth sends a request to both players at once and waits for both
// answers.
func (g *Game) rpcBoth(ctx context.Context, build func(who int) RPCRequest) ([2]RPCResponse, error) {
	var out [2]RPCResponse
	eg, egCtx := errgroup.WithContext(ctx)
	for who := 0; who < 2; who++ {
		req := build(who)
		eg.Go(func() error {
			resp, err := g.rpc(egCtx, who, req)
			if err != nil {
				return err
			}
			out[who] = resp
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return out, err
	}
	return out, nil
}

// setup creates both lineups and shuffled piles.
func (g *Game) setup() {
	m := g.mutator
	for who, deck := range g.opts.Decks {
		for _, id := range deck.Characters {
			def, _ := g.registry.Character(id)
			m.Mutate(CreateCharacterMutation{Who: who, Value: &CharacterState{
				ID:         m.allocID(),
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
		}
		cards := slices.Clone(deck.Cards)
		for i := len(cards) - 1; i > 0; i-- {
			j := m.stepRandom(i + 1)
			cards[i], cards[j] = cards[j], cards[i]
		}
		for _, id := range cards {
			def, _ := g.registry.Card(id)
			m.Mutate(CreateCardMutation{
				Who:         who,
				Value:       &CardState{ID: m.allocID(), Definition: def},
				Target:      CardZonePile,
				TargetIndex: -1,
			})
		}
	}
	m.Notify()
}

func (g *Game) initHands(ctx context.Context) error {
	exec := g.newExec(ctx)
	for who := 0; who < 2; who++ {
		exec.drawCards(who, g.opts.Rules.InitialHands)
	}
	if err := g.mutator.Pause(ctx, true); err != nil {
		return err
	}
	resps, err := g.rpcBoth(ctx, func(int) RPCRequest {
		return RPCRequest{Method: MethodSwitchHands, SwitchHands: &SwitchHandsRequest{}}
	})
	if err != nil {
		return err
	}
	for who := 0; who < 2; who++ {
		if err := g.switchHands(exec, who, resps[who].SwitchHands.RemovedHandIDs); err != nil {
			return err
		}
	}
	g.mutator.Mutate(ChangePhaseMutation{Phase: PhaseInitActives})
	return nil
}

// switchHands puts the given hand cards back into the pile at random
// positions and draws as many.
func (g *Game) switchHands(exec *executor, who int, ids []int) error {
	seen := make(map[int]bool, len(ids))
	for _, id := range ids {
		_, owner, zone, ok := g.mutator.State().Card(id)
		if !ok || owner != who || zone != CardZoneHands || seen[id] {
			return &IOError{Who: who, Method: MethodSwitchHands, Err: fmt.Errorf("%w: card %d not in hand", ErrMalformedResponse, id)}
		}
		seen[id] = true
	}
	for _, id := range ids {
		pile := len(g.mutator.State().Players[who].Pile)
		at := g.mutator.stepRandom(pile + 1)
		g.mutator.Mutate(TransferCardMutation{Who: who, CardID: id, From: CardZoneHands, To: CardZonePile, TargetIndex: at})
	}
	exec.drawCards(who, len(ids))
	return nil
}

func (g *Game) initActives(ctx context.Context) error {
	st := g.mutator.State()
	var candidates [2][]int
	for who := 0; who < 2; who++ {
		for _, ch := range st.Players[who].Characters {
			candidates[who] = append(candidates[who], ch.ID)
		}
	}
	if err := g.mutator.Pause(ctx, true); err != nil {
		return err
	}
	resps, err := g.rpcBoth(ctx, func(who int) RPCRequest {
		return RPCRequest{Method: MethodChooseActive, ChooseActive: &ChooseActiveRequest{Candidates: candidates[who]}}
	})
	if err != nil {
		return err
	}
	for who := 0; who < 2; who++ {
		id := resps[who].ChooseActive.ActiveCharacterID
		if !slices.Contains(candidates[who], id) {
			return &IOError{Who: who, Method: MethodChooseActive, Err: fmt.Errorf("%w: character %d", ErrMalformedResponse, id)}
		}
	}
	exec := g.newExec(ctx)
	for who := 0; who < 2; who++ {
		id := resps[who].ChooseActive.ActiveCharacterID
		g.mutator.Mutate(SwitchActiveMutation{Who: who, CharacterID: id})
		ch, _, _ := g.mutator.State().Character(id)
		g.mutator.Emit(ExposedMutation{Case: "switchActive", Value: ExposedSwitchActive{
			Who:                   who,
			CharacterID:           id,
			CharacterDefinitionID: ch.Definition.ID,
		}})
	}
	exec.dispatchEvent(OnBattleBegin, PhaseEventArg{Phase: PhaseInitActives, Round: 0})
	if exec.err != nil {
		return exec.err
	}
	g.mutator.Mutate(ChangePhaseMutation{Phase: PhaseRoll})
	return nil
}

func (g *Game) roll(ctx context.Context) error {
	g.mutator.Mutate(StepRoundMutation{})
	st := g.mutator.State()
	if st.RoundNumber > st.Rules.MaxRounds {
		g.logger.Info("round limit reached", zap.Int("rounds", st.Rules.MaxRounds))
		g.mutator.Mutate(ChangePhaseMutation{Phase: PhaseGameEnd})
		return nil
	}

	exec := g.newExec(ctx)
	for who := 0; who < 2; who++ {
		rolled := exec.randomDice(st.Rules.InitialDice)
		g.mutator.Mutate(ResetDiceMutation{Who: who, Dice: dice.Sort(rolled, activeElement(g.mutator.State(), who))})
	}
	for _, who := range [2]int{st.CurrentTurn, 1 - st.CurrentTurn} {
		if err := exec.rerollDice(who, 1); err != nil {
			return err
		}
	}

	round := g.mutator.State().RoundNumber
	exec.dispatchEvent(OnRoundBegin, PhaseEventArg{Phase: PhaseRoll, Round: round})
	if exec.err != nil {
		return exec.err
	}
	if g.mutator.State().Phase == PhaseGameEnd {
		return nil
	}
	g.mutator.Mutate(ChangePhaseMutation{Phase: PhaseAction})
	exec.dispatchEvent(OnActionPhase, PhaseEventArg{Phase: PhaseAction, Round: round})
	return exec.err
}

// action runs one player action. The loop in Run calls it until the phase
// changes.
func (g *Game) action(ctx context.Context) error {
	st := g.mutator.State()
	who := st.CurrentTurn
	if st.Players[0].DeclaredEnd && st.Players[1].DeclaredEnd {
		g.mutator.Mutate(ChangePhaseMutation{Phase: PhaseEnd})
		return nil
	}
	if st.Players[who].DeclaredEnd {
		g.mutator.Mutate(SwitchTurnMutation{})
		return nil
	}

	actions := g.previewer.AvailableActions(ctx, st, who)
	exposed := make([]ExposedAction, len(actions))
	for i, a := range actions {
		exposed[i] = ExposeAction(st, a)
	}
	if err := g.mutator.Pause(ctx, true); err != nil {
		return err
	}
	resp, err := g.rpc(ctx, who, RPCRequest{Method: MethodAction, Action: &ActionRequest{Candidates: exposed}})
	if err != nil {
		return err
	}
	idx := resp.Action.ChosenActionIndex
	if idx < 0 || idx >= len(actions) || actions[idx].Validity != ValidityValid {
		return &IOError{Who: who, Method: MethodAction, Err: fmt.Errorf("%w: action %d", ErrInvalidAction, idx)}
	}
	chosen := actions[idx]
	if !checkPayment(st, chosen, resp.Action.UsedDice) {
		return &IOError{Who: who, Method: MethodAction, Err: fmt.Errorf("%w: dice %v do not pay %s", ErrInvalidAction, resp.Action.UsedDice, chosen.Cost)}
	}

	g.logger.Debug("action chosen",
		zap.Int("who", who),
		zap.String("action", chosen.Type.String()),
		zap.Int("round", st.RoundNumber),
	)
	exec := g.newExec(ctx)
	exec.runAction(chosen.clone(), resp.Action.UsedDice)
	if exec.err != nil {
		return exec.err
	}

	after := g.mutator.State()
	if after.Phase != PhaseAction {
		return nil
	}
	opponentEnded := after.Players[1-who].DeclaredEnd
	switch {
	case chosen.Type == ActionDeclareEnd && !opponentEnded:
		g.mutator.Mutate(SwitchTurnMutation{})
	case !chosen.Fast && !opponentEnded:
		g.mutator.Mutate(SwitchTurnMutation{})
	}
	return nil
}

// end runs the end phase. The player who declared end first acts first in
// the end phase and in the next round; that is the player not holding the
// turn when the second declaration happened.
func (g *Game) end(ctx context.Context) error {
	g.mutator.Mutate(SwitchTurnMutation{})
	exec := g.newExec(ctx)
	round := g.mutator.State().RoundNumber
	exec.dispatchEvent(OnEndPhase, PhaseEventArg{Phase: PhaseEnd, Round: round})
	if exec.err != nil || g.mutator.State().Phase == PhaseGameEnd {
		return exec.err
	}

	st := g.mutator.State()
	for _, who := range [2]int{st.CurrentTurn, 1 - st.CurrentTurn} {
		exec.drawCards(who, 2)
	}
	exec.tickDurations()
	if exec.err != nil || g.mutator.State().Phase == PhaseGameEnd {
		return exec.err
	}
	for who := 0; who < 2; who++ {
		g.mutator.Mutate(SetPlayerFlagMutation{Who: who, Flag: FlagDeclaredEnd, Value: false})
	}
	g.mutator.Mutate(ChangePhaseMutation{Phase: PhaseRoll})
	return nil
}
