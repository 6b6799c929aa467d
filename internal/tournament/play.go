package tournament

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/gitcg/gitcg-server-go/internal/bot"
	"github.com/gitcg/gitcg-server-go/internal/game"
)

// ErrNondeterministic is returned by Verify when a replayed seed ends in a
// different state.
var ErrNondeterministic = errors.New("match is not reproducible")

// Result is the outcome of one bot match.
type Result struct {
	Seed     uint64
	Winner   int
	Rounds   int
	Checksum *game.StateChecksum
	Elapsed  time.Duration
}

// Play runs one bot-versus-bot match. When replay is set every flushed
// batch is recorded into it.
func Play(ctx context.Context, reg *game.Registry, decks [2]game.Deck, rules game.Rules, seed uint64, replay *game.Replay, logger *zap.Logger) (Result, error) {
	start := time.Now()
	g, err := run(ctx, reg, decks, rules, seed, replay, logger)
	if err != nil {
		return Result{}, err
	}
	st := g.State()
	sum, err := game.ComputeChecksum(st, g.Log())
	if err != nil {
		return Result{}, err
	}
	return Result{
		Seed:     seed,
		Winner:   st.Winner,
		Rounds:   st.RoundNumber,
		Checksum: sum,
		Elapsed:  time.Since(start),
	}, nil
}

// Verify plays res.Seed again and checks the final state and log digest to
// res.Checksum.
func Verify(ctx context.Context, reg *game.Registry, decks [2]game.Deck, rules game.Rules, res Result, logger *zap.Logger) error {
	if res.Checksum == nil {
		return fmt.Errorf("seed %d: result has no checksum", res.Seed)
	}
	g, err := run(ctx, reg, decks, rules, res.Seed, nil, logger)
	if err != nil {
		return err
	}
	ok, err := game.VerifyChecksum(g.State(), g.Log(), res.Checksum)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: seed %d", ErrNondeterministic, res.Seed)
	}
	return nil
}

func run(ctx context.Context, reg *game.Registry, decks [2]game.Deck, rules game.Rules, seed uint64, replay *game.Replay, logger *zap.Logger) (*game.Game, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.Uint64("seed", seed))
	opts := game.GameOptions{
		Rules:  rules,
		Seed:   seed,
		Decks:  decks,
		IO:     [2]game.PlayerIO{bot.NewPlayer(0, logger), bot.NewPlayer(1, logger)},
		Logger: logger,
	}
	if replay != nil {
		opts.OnNotify = func(b game.NotifyBatch) {
			if err := replay.RecordBatch(b); err != nil {
				logger.Warn("failed to record replay frame", zap.Error(err))
			}
		}
	}
	g, err := game.NewGame(reg, opts)
	if err != nil {
		return nil, err
	}
	if err := g.Run(ctx); err != nil {
		return nil, err
	}
	return g, nil
}
