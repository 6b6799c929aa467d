package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/gitcg/gitcg-server-go/internal/game"
	"github.com/gitcg/gitcg-server-go/internal/game/catalog"
)

var (
	replayFrom    int
	replayCount   int
	replayReverse bool
	replayState   bool
	replaySeat    int
	replayCheck   bool
)

var replayCmd = &cobra.Command{
	Use:   "replay FILE",
	Short: "Step through a recorded replay",
	Long:  `Print the mutations of a replay file written by selfplay --replay, one frame at a time. With --state the seat's view of the last printed frame follows.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runReplay,
}

func init() {
	replayCmd.Flags().IntVar(&replayFrom, "from", 0, "first frame to print")
	replayCmd.Flags().IntVar(&replayCount, "count", 0, "frames to print, 0 for all")
	replayCmd.Flags().BoolVar(&replayReverse, "reverse", false, "walk backwards from --from")
	replayCmd.Flags().BoolVar(&replayState, "state", false, "print the state after the last frame")
	replayCmd.Flags().IntVar(&replaySeat, "seat", 0, "seat whose view --state prints")
	replayCmd.Flags().BoolVar(&replayCheck, "check", false, "fail on frames whose snapshot does not decode to itself")
}

func runReplay(cmd *cobra.Command, args []string) error {
	_, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()
	rp, err := game.ReadReplay(f)
	if err != nil {
		return err
	}
	cat, err := catalog.Load(logger)
	if err != nil {
		return err
	}
	return showReplay(cmd.OutOrStdout(), cat.Registry, rp, replayView{
		From:    replayFrom,
		Count:   replayCount,
		Reverse: replayReverse,
		State:   replayState,
		Seat:    replaySeat,
		Check:   replayCheck,
	})
}

type replayView struct {
	From    int
	Count   int
	Reverse bool
	State   bool
	Seat    int
	Check   bool
}

// showReplay prints Count frames of rp starting at From. From is clamped
// to the recorded range.
func showReplay(w io.Writer, reg *game.Registry, rp *game.Replay, v replayView) error {
	if rp.Size() == 0 {
		return fmt.Errorf("replay %s has no frames", rp.MatchID)
	}
	if v.Seat != 0 && v.Seat != 1 {
		return fmt.Errorf("--seat must be 0 or 1, got %d", v.Seat)
	}

	rp.Start()
	frame, ok := rp.Skip(v.From)
	if !v.Reverse {
		frame, ok = rp.Next()
	}
	last := -1
	for shown := 0; ok && (v.Count <= 0 || shown < v.Count); shown++ {
		// Next leaves the cursor past the frame, Previous on it.
		index := rp.CurrentIndex
		if !v.Reverse {
			index--
		}
		fmt.Fprintf(w, "frame %d\n", index)
		for _, m := range frame.Mutations {
			fmt.Fprintf(w, "  %s\n", m)
		}
		if v.Check {
			st, err := rp.StateAt(reg, index)
			if err != nil {
				return fmt.Errorf("frame %d: %w", index, err)
			}
			if err := game.ValidateEncodingRoundtrip(reg, st); err != nil {
				return fmt.Errorf("frame %d: %w", index, err)
			}
		}
		last = index

		if v.Reverse {
			frame, ok = rp.Previous()
		} else {
			frame, ok = rp.Next()
		}
	}

	if !v.State || last < 0 {
		return nil
	}
	st, err := rp.StateAt(reg, last)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(game.ExposeState(v.Seat, st))
}
