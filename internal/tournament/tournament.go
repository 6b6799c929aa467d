// Package tournament runs bot round-robins between catalog decks.
package tournament

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gitcg/gitcg-server-go/internal/game"
	"github.com/gitcg/gitcg-server-go/internal/game/catalog"
)

// State represents the state of a tournament
type State int

const (
	StateWaiting State = iota
	StateInProgress
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateWaiting:
		return "WAITING"
	case StateInProgress:
		return "IN_PROGRESS"
	case StateFinished:
		return "FINISHED"
	default:
		return "UNKNOWN"
	}
}

// Points awarded per match.
const (
	PointsWin  = 3
	PointsDraw = 1
)

// Entrant is one deck's record.
type Entrant struct {
	Deck   string
	Points int
	Wins   int
	Losses int
	Draws  int
}

// Pairing is one match of a round. Decks[0] sits in seat 0.
type Pairing struct {
	Decks    [2]string
	Seed     uint64
	Played   bool
	Winner   int
	Rounds   int
	Checksum string
}

// Round is a set of pairings in which every deck plays at most once per
// game.
type Round struct {
	Number   int
	Pairings []*Pairing
	Finished bool
}

// Options configures a tournament.
type Options struct {
	Catalog *catalog.Catalog
	Rules   game.Rules
	// Seed is the seed of the first match; match i uses Seed+i.
	Seed uint64
	// Games is the number of matches per pairing per round. Seats swap on
	// every other game.
	Games int
	// Parallel bounds concurrently running matches.
	Parallel int
	Logger   *zap.Logger
}

// Tournament is a round-robin between decks.
type Tournament struct {
	ID string

	opts    Options
	logger  *zap.Logger
	order   []string
	created time.Time

	mu       sync.RWMutex
	state    State
	entrants map[string]*Entrant
	rounds   []*Round
}

// New schedules a round-robin between decks.
func New(decks []string, opts Options) (*Tournament, error) {
	if opts.Catalog == nil {
		return nil, fmt.Errorf("catalog is required")
	}
	if len(decks) < 2 {
		return nil, fmt.Errorf("a tournament needs at least two decks, got %d", len(decks))
	}
	if opts.Games < 1 {
		opts.Games = 1
	}
	if opts.Parallel < 1 {
		opts.Parallel = 1
	}
	if opts.Rules == (game.Rules{}) {
		opts.Rules = game.DefaultRules()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	t := &Tournament{
		ID:       uuid.NewString(),
		opts:     opts,
		order:    append([]string(nil), decks...),
		created:  time.Now(),
		entrants: make(map[string]*Entrant, len(decks)),
	}
	t.logger = logger.With(zap.String("tournament_id", t.ID))

	for _, d := range decks {
		if _, err := opts.Catalog.Deck(d); err != nil {
			return nil, err
		}
		if _, dup := t.entrants[d]; dup {
			return nil, fmt.Errorf("deck %q entered twice", d)
		}
		t.entrants[d] = &Entrant{Deck: d}
	}
	t.rounds = schedule(t.order, opts.Games, opts.Seed)
	return t, nil
}

// schedule builds the rounds with the circle method. An odd field gets a
// bye slot that sits out each round.
func schedule(decks []string, games int, seed uint64) []*Round {
	slots := append([]string(nil), decks...)
	if len(slots)%2 == 1 {
		slots = append(slots, "")
	}
	n := len(slots)
	rounds := make([]*Round, 0, n-1)
	next := seed
	for r := 0; r < n-1; r++ {
		round := &Round{Number: r + 1}
		for i := 0; i < n/2; i++ {
			a, b := slots[i], slots[n-1-i]
			if a == "" || b == "" {
				continue
			}
			for g := 0; g < games; g++ {
				decks := [2]string{a, b}
				if g%2 == 1 {
					decks = [2]string{b, a}
				}
				round.Pairings = append(round.Pairings, &Pairing{Decks: decks, Seed: next, Winner: game.NoWinner})
				next++
			}
		}
		rounds = append(rounds, round)
		// rotate every slot but the first
		last := slots[n-1]
		copy(slots[2:], slots[1:n-1])
		slots[1] = last
	}
	return rounds
}

// Run plays every round in order. It stops at the first failed match.
func (t *Tournament) Run(ctx context.Context) error {
	t.mu.Lock()
	if t.state != StateWaiting {
		t.mu.Unlock()
		return fmt.Errorf("tournament already started")
	}
	t.state = StateInProgress
	rounds := t.rounds
	t.mu.Unlock()

	t.logger.Info("tournament started",
		zap.Strings("decks", t.order),
		zap.Int("rounds", len(rounds)),
	)

	for _, round := range rounds {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(t.opts.Parallel)
		for _, p := range round.Pairings {
			g.Go(func() error {
				return t.play(gctx, round.Number, p)
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
		t.mu.Lock()
		round.Finished = true
		t.mu.Unlock()
	}

	t.mu.Lock()
	t.state = StateFinished
	t.mu.Unlock()
	t.logger.Info("tournament finished", zap.String("leader", t.Standings()[0].Deck))
	return nil
}

func (t *Tournament) play(ctx context.Context, round int, p *Pairing) error {
	var decks [2]game.Deck
	for who, name := range p.Decks {
		d, err := t.opts.Catalog.Deck(name)
		if err != nil {
			return err
		}
		decks[who] = d
	}
	res, err := Play(ctx, t.opts.Catalog.Registry, decks, t.opts.Rules, p.Seed, nil, t.logger)
	if err != nil {
		return fmt.Errorf("round %d %s vs %s (seed %d): %w", round, p.Decks[0], p.Decks[1], p.Seed, err)
	}
	t.record(p, res)
	return nil
}

// record stores a result and updates both entrants.
func (t *Tournament) record(p *Pairing, res Result) {
	t.mu.Lock()
	defer t.mu.Unlock()

	p.Played = true
	p.Winner = res.Winner
	p.Rounds = res.Rounds
	p.Checksum = res.Checksum.Hash

	first, second := t.entrants[p.Decks[0]], t.entrants[p.Decks[1]]
	switch res.Winner {
	case 0:
		first.Wins++
		first.Points += PointsWin
		second.Losses++
	case 1:
		second.Wins++
		second.Points += PointsWin
		first.Losses++
	default:
		first.Draws++
		first.Points += PointsDraw
		second.Draws++
		second.Points += PointsDraw
	}
}

// State returns the tournament state.
func (t *Tournament) State() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// Standings returns the entrants by points, then wins, then deck name.
func (t *Tournament) Standings() []Entrant {
	t.mu.RLock()
	out := make([]Entrant, 0, len(t.entrants))
	for _, e := range t.entrants {
		out = append(out, *e)
	}
	t.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Points != out[j].Points {
			return out[i].Points > out[j].Points
		}
		if out[i].Wins != out[j].Wins {
			return out[i].Wins > out[j].Wins
		}
		return out[i].Deck < out[j].Deck
	})
	return out
}

// Rounds returns a copy of the schedule with the results so far.
func (t *Tournament) Rounds() []Round {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Round, len(t.rounds))
	for i, r := range t.rounds {
		out[i] = Round{Number: r.Number, Finished: r.Finished, Pairings: make([]*Pairing, len(r.Pairings))}
		for j, p := range r.Pairings {
			cp := *p
			out[i].Pairings[j] = &cp
		}
	}
	return out
}
