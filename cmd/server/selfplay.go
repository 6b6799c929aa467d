package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/gitcg/gitcg-server-go/internal/game"
	"github.com/gitcg/gitcg-server-go/internal/game/catalog"
	"github.com/gitcg/gitcg-server-go/internal/tournament"
)

var (
	selfplayDecks    []string
	selfplaySeed     uint64
	selfplayGames    int
	selfplayParallel int
	selfplayReplay   string
	selfplayVerify   bool
)

var selfplayCmd = &cobra.Command{
	Use:   "selfplay",
	Short: "Play bot against bot",
	Long:  `Run one or more bot matches and print winner, rounds and state checksum. Match i uses seed+i, so a run is reproducible.`,
	RunE:  runSelfplay,
}

func init() {
	selfplayCmd.Flags().StringSliceVar(&selfplayDecks, "decks", []string{"mondstadt", "liyue"}, "the two decks to play")
	selfplayCmd.Flags().Uint64Var(&selfplaySeed, "seed", 1, "seed of the first match")
	selfplayCmd.Flags().IntVar(&selfplayGames, "games", 1, "number of matches")
	selfplayCmd.Flags().IntVar(&selfplayParallel, "parallel", 4, "matches run at once")
	selfplayCmd.Flags().StringVar(&selfplayReplay, "replay", "", "write the replay of the first match to this file")
	selfplayCmd.Flags().BoolVar(&selfplayVerify, "verify", false, "play every seed twice and fail if the checksums differ")
}

func runSelfplay(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if len(selfplayDecks) != 2 {
		return fmt.Errorf("--decks needs exactly two deck names, got %d", len(selfplayDecks))
	}
	if selfplayGames < 1 {
		return fmt.Errorf("--games must be positive")
	}

	cat, err := catalog.Load(logger)
	if err != nil {
		return err
	}
	var decks [2]game.Deck
	for who, name := range selfplayDecks {
		if decks[who], err = cat.Deck(strings.TrimSpace(name)); err != nil {
			return err
		}
	}

	results := make([]tournament.Result, selfplayGames)
	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(max(selfplayParallel, 1))
	for i := range results {
		g.Go(func() error {
			seed := selfplaySeed + uint64(i)
			var replay *game.Replay
			if i == 0 && selfplayReplay != "" {
				replay = game.NewReplay(fmt.Sprintf("selfplay-%d", seed))
			}
			res, err := tournament.Play(ctx, cat.Registry, decks, cfg.Game.Rules(), seed, replay, logger)
			if err != nil {
				return fmt.Errorf("match with seed %d: %w", seed, err)
			}
			results[i] = res
			if selfplayVerify {
				if err := tournament.Verify(ctx, cat.Registry, decks, cfg.Game.Rules(), res, logger); err != nil {
					return err
				}
			}
			if replay != nil {
				return writeReplay(selfplayReplay, replay)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	var wins [2]int
	for _, r := range results {
		winner := "draw"
		if r.Winner != game.NoWinner {
			wins[r.Winner]++
			winner = selfplayDecks[r.Winner]
		}
		fmt.Fprintf(cmd.OutOrStdout(), "seed=%d winner=%s rounds=%d mutations=%d checksum=%s elapsed=%s\n",
			r.Seed, winner, r.Rounds, r.Checksum.Mutations, r.Checksum.Hash, r.Elapsed.Round(time.Millisecond))
	}
	if selfplayGames > 1 {
		fmt.Fprintf(cmd.OutOrStdout(), "%s %d - %d %s (%d draws)\n",
			selfplayDecks[0], wins[0], wins[1], selfplayDecks[1], selfplayGames-wins[0]-wins[1])
	}
	return nil
}

func writeReplay(path string, replay *game.Replay) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := replay.WriteTo(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
