package main

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/gitcg/gitcg-server-go/internal/game/catalog"
	"github.com/gitcg/gitcg-server-go/internal/tournament"
)

var (
	tournamentDecks    []string
	tournamentSeed     uint64
	tournamentGames    int
	tournamentParallel int
)

var tournamentCmd = &cobra.Command{
	Use:   "tournament",
	Short: "Run a bot round-robin between decks",
	Long:  `Every deck meets every other deck. A win is worth 3 points and a draw 1. Without --decks the whole catalog enters.`,
	RunE:  runTournament,
}

func init() {
	tournamentCmd.Flags().StringSliceVar(&tournamentDecks, "decks", nil, "decks to enter (default: every catalog deck)")
	tournamentCmd.Flags().Uint64Var(&tournamentSeed, "seed", 1, "seed of the first match")
	tournamentCmd.Flags().IntVar(&tournamentGames, "games", 2, "matches per pairing, seats swap every other match")
	tournamentCmd.Flags().IntVar(&tournamentParallel, "parallel", 4, "matches run at once")
}

func runTournament(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	cat, err := catalog.Load(logger)
	if err != nil {
		return err
	}
	decks := cat.DeckNames()
	if len(tournamentDecks) > 0 {
		decks = decks[:0]
		for _, d := range tournamentDecks {
			decks = append(decks, strings.TrimSpace(d))
		}
	}

	tour, err := tournament.New(decks, tournament.Options{
		Catalog:  cat,
		Rules:    cfg.Game.Rules(),
		Seed:     tournamentSeed,
		Games:    tournamentGames,
		Parallel: tournamentParallel,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	start := time.Now()
	if err := tour.Run(cmd.Context()); err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "#\tDECK\tPTS\tW\tL\tD")
	for i, e := range tour.Standings() {
		fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%d\t%d\n", i+1, e.Deck, e.Points, e.Wins, e.Losses, e.Draws)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d rounds in %s\n", len(tour.Rounds()), time.Since(start).Round(time.Millisecond))
	return nil
}
