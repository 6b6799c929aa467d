package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/gitcg/gitcg-server-go/internal/game"
)

// ErrMatchNotFound is returned for an unknown match id.
var ErrMatchNotFound = errors.New("match not found")

// MatchRecord is one finished match.
type MatchRecord struct {
	ID         string
	Seed       uint64
	Winner     *int
	Rounds     int
	Mutations  int
	Checksum   string
	Replay     []byte
	FinalState []byte
	FinishedAt time.Time
}

// MatchSummary is a MatchRecord without its payloads.
type MatchSummary struct {
	ID         string
	Winner     *int
	Rounds     int
	FinishedAt time.Time
}

// MatchRepository stores finished matches.
type MatchRepository struct {
	pool poolIface
}

// NewMatchRepository creates a repository on pool.
func NewMatchRepository(pool poolIface) *MatchRepository {
	return &MatchRepository{pool: pool}
}

// NewMatchRecord builds the record of a finished match: the gzip replay,
// the encoded final snapshot and its checksum. The snapshot must decode
// against reg to the same state, or the record is refused.
func NewMatchRecord(reg *game.Registry, id string, seed uint64, st *game.GameState, log []game.Mutation, replay *game.Replay) (*MatchRecord, error) {
	sum, err := game.ComputeChecksum(st, log)
	if err != nil {
		return nil, fmt.Errorf("failed to checksum match %s: %w", id, err)
	}
	if err := game.ValidateEncodingRoundtrip(reg, st); err != nil {
		return nil, fmt.Errorf("match %s final state does not round-trip: %w", id, err)
	}
	final, err := game.EncodeState(st)
	if err != nil {
		return nil, fmt.Errorf("failed to encode match %s: %w", id, err)
	}
	var data []byte
	if replay != nil {
		if data, err = replay.Marshal(); err != nil {
			return nil, fmt.Errorf("failed to marshal replay %s: %w", id, err)
		}
	}
	rec := &MatchRecord{
		ID:         id,
		Seed:       seed,
		Rounds:     st.RoundNumber,
		Mutations:  sum.Mutations,
		Checksum:   sum.Hash,
		Replay:     data,
		FinalState: final,
	}
	if st.Winner != game.NoWinner {
		w := st.Winner
		rec.Winner = &w
	}
	return rec, nil
}

// Save inserts a record. Saving the same id twice keeps the first.
func (r *MatchRepository) Save(ctx context.Context, rec *MatchRecord) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO matches (id, seed, winner, rounds, mutations, checksum, replay, final_state)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (id) DO NOTHING`,
		rec.ID, int64(rec.Seed), rec.Winner, rec.Rounds, rec.Mutations, rec.Checksum, rec.Replay, rec.FinalState)
	if err != nil {
		return fmt.Errorf("failed to save match %s: %w", rec.ID, err)
	}
	return nil
}

// Get loads a record.
func (r *MatchRepository) Get(ctx context.Context, id string) (*MatchRecord, error) {
	var (
		rec  MatchRecord
		seed int64
	)
	err := r.pool.QueryRow(ctx,
		`SELECT id, seed, winner, rounds, mutations, checksum, replay, final_state, finished_at
		 FROM matches WHERE id = $1`, id).
		Scan(&rec.ID, &seed, &rec.Winner, &rec.Rounds, &rec.Mutations, &rec.Checksum, &rec.Replay, &rec.FinalState, &rec.FinishedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrMatchNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load match %s: %w", id, err)
	}
	rec.Seed = uint64(seed)
	return &rec, nil
}

// LoadReplay loads and decodes the replay of a match.
func (r *MatchRepository) LoadReplay(ctx context.Context, id string) (*game.Replay, error) {
	rec, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(rec.Replay) == 0 {
		return nil, fmt.Errorf("match %s has no replay", id)
	}
	return game.UnmarshalReplay(rec.Replay)
}

// Recent lists the latest finished matches, newest first.
func (r *MatchRepository) Recent(ctx context.Context, limit int) ([]MatchSummary, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, winner, rounds, finished_at FROM matches ORDER BY finished_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches: %w", err)
	}
	defer rows.Close()

	var out []MatchSummary
	for rows.Next() {
		var s MatchSummary
		if err := rows.Scan(&s.ID, &s.Winner, &s.Rounds, &s.FinishedAt); err != nil {
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list matches: %w", err)
	}
	return out, nil
}
