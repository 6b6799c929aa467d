// Package server hosts matches: it owns one engine goroutine per match and
// connects the seats over WebSocket, HTTP and gRPC.
package server

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gitcg/gitcg-server-go/internal/bot"
	"github.com/gitcg/gitcg-server-go/internal/game"
	"github.com/gitcg/gitcg-server-go/internal/game/catalog"
	"github.com/gitcg/gitcg-server-go/internal/metrics"
	"github.com/gitcg/gitcg-server-go/internal/repository"
)

var (
	ErrMatchNotFound = errors.New("match not found")
	ErrMatchEnded    = errors.New("match ended")
	ErrSeatTaken     = errors.New("seat is played by a bot")
	ErrInvalidSeat   = errors.New("seat must be 0 or 1")
	ErrShuttingDown  = errors.New("server is shutting down")
)

// MatchStore persists finished matches.
type MatchStore interface {
	Save(ctx context.Context, rec *repository.MatchRecord) error
	LoadReplay(ctx context.Context, id string) (*game.Replay, error)
}

// NotificationCache keeps the latest notification of every seat.
type NotificationCache interface {
	Observer(ctx context.Context, matchID string) func(game.NotifyBatch)
	Latest(ctx context.Context, matchID string, who int) (*game.Notification, error)
	Delete(ctx context.Context, matchID string) error
}

// ManagerOptions configures a Manager. Store, Cache and Metrics are
// optional.
type ManagerOptions struct {
	Catalog    *catalog.Catalog
	Rules      game.Rules
	RPCTimeout time.Duration
	// Seed fixes the seed of every match. Zero derives one per match.
	Seed    uint64
	Store   MatchStore
	Cache   NotificationCache
	Metrics *metrics.Metrics
	Logger  *zap.Logger
}

// Manager creates and tracks matches.
type Manager struct {
	opts    ManagerOptions
	logger  *zap.Logger
	replays *game.ReplayRecorder

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.RWMutex
	matches map[string]*Match
	closed  bool
}

// NewManager creates a match manager.
func NewManager(opts ManagerOptions) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Rules == (game.Rules{}) {
		opts.Rules = game.DefaultRules()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		opts:    opts,
		logger:  logger,
		replays: game.NewReplayRecorder(logger),
		ctx:     ctx,
		cancel:  cancel,
		matches: make(map[string]*Match),
	}
}

// MatchRequest describes a match to create.
type MatchRequest struct {
	Decks [2]string
	Bots  [2]bool
	// Seed overrides the manager seed when non-zero.
	Seed uint64
}

// CreateMatch sets up a match. It starts once every human seat has
// connected; a bot-only match starts at once.
func (m *Manager) CreateMatch(req MatchRequest) (*Match, error) {
	var decks [2]game.Deck
	for who, name := range req.Decks {
		d, err := m.opts.Catalog.Deck(name)
		if err != nil {
			return nil, err
		}
		decks[who] = d
	}

	seed := req.Seed
	if seed == 0 {
		seed = m.opts.Seed
	}
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	id := uuid.NewString()
	logger := m.logger.With(zap.String("match_id", id))
	match := &Match{
		ID:      id,
		Seed:    seed,
		Decks:   req.Decks,
		decks:   decks,
		created: time.Now(),
		status:  StatusWaiting,
		logger:  logger,
		done:    make(chan struct{}),
	}
	for who := 0; who < 2; who++ {
		if req.Bots[who] {
			match.bots[who] = true
			match.io[who] = bot.NewPlayer(who, logger)
			continue
		}
		match.sockets[who] = NewWebSocketIO(who, logger)
		match.io[who] = match.sockets[who]
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrShuttingDown
	}
	m.matches[id] = match
	m.mu.Unlock()

	logger.Info("match created",
		zap.Strings("decks", req.Decks[:]),
		zap.Bools("bots", req.Bots[:]),
		zap.Uint64("seed", seed),
	)
	if match.ready() {
		if err := m.start(match); err != nil {
			return nil, err
		}
	}
	return match, nil
}

// Get returns a match by id.
func (m *Manager) Get(id string) (*Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	match, ok := m.matches[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMatchNotFound, id)
	}
	return match, nil
}

// List returns a snapshot of every tracked match, oldest first.
func (m *Manager) List() []MatchInfo {
	m.mu.RLock()
	out := make([]MatchInfo, 0, len(m.matches))
	for _, match := range m.matches {
		out = append(out, match.Info())
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Created.Before(out[j].Created) })
	return out
}

// Attach connects a client to a human seat. The first connection of the
// last human seat starts the match; later connections resume the seat.
func (m *Manager) Attach(id string, who int, conn Conn) error {
	if who != 0 && who != 1 {
		return ErrInvalidSeat
	}
	match, err := m.Get(id)
	if err != nil {
		return err
	}
	if match.bots[who] {
		return ErrSeatTaken
	}
	if match.Info().Status.Finished() {
		return ErrMatchEnded
	}

	var resume *game.Notification
	if m.opts.Cache != nil {
		if n, err := m.opts.Cache.Latest(m.ctx, id, who); err == nil {
			resume = n
		}
	}
	match.sockets[who].Attach(conn, resume)
	match.markConnected(who)

	if match.ready() {
		return m.start(match)
	}
	return nil
}

// Abort stops a running match.
func (m *Manager) Abort(id string) error {
	match, err := m.Get(id)
	if err != nil {
		return err
	}
	match.abort()
	return nil
}

// Replay returns the replay recorded so far for a running match, or loads
// the replay of a finished match from the store.
func (m *Manager) Replay(ctx context.Context, id string) (*game.Replay, error) {
	if rp, ok := m.replays.GetReplay(id); ok {
		return rp, nil
	}
	if m.opts.Store == nil {
		return nil, errors.New("match persistence is disabled")
	}
	return m.opts.Store.LoadReplay(ctx, id)
}

// Ready reports whether the manager accepts matches.
func (m *Manager) Ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return !m.closed
}

// Shutdown stops accepting matches, aborts the running ones and waits for
// them to finish or ctx to end.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	matches := make([]*Match, 0, len(m.matches))
	for _, match := range m.matches {
		matches = append(matches, match)
	}
	m.mu.Unlock()

	m.cancel()
	for _, match := range matches {
		match.abort()
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) start(match *Match) error {
	var startErr error
	match.startOnce.Do(func() {
		if match.Info().Status.Finished() {
			startErr = ErrMatchEnded
			return
		}
		m.replays.StartRecording(match.ID)
		observers := []func(game.NotifyBatch){
			m.opts.Metrics.ObserveBatch,
			m.replays.Record(match.ID),
		}
		if m.opts.Cache != nil {
			observers = append(observers, m.opts.Cache.Observer(m.ctx, match.ID))
		}

		g, err := game.NewGame(m.opts.Catalog.Registry, game.GameOptions{
			Rules:      m.opts.Rules,
			Seed:       match.Seed,
			Decks:      match.decks,
			IO:         match.io,
			Logger:     match.logger,
			RPCTimeout: m.opts.RPCTimeout,
			OnNotify: func(b game.NotifyBatch) {
				for _, observe := range observers {
					observe(b)
				}
			},
			OnRPC: m.opts.Metrics.ObserveRPC,
			OnIOError: func(e *game.IOError) {
				match.logger.Warn("player connection failed",
					zap.Int("who", e.Who),
					zap.String("method", string(e.Method)),
					zap.Error(e.Err),
				)
			},
		})
		if err != nil {
			startErr = err
			if _, err := m.replays.Finish(match.ID); err != nil {
				m.logger.Warn("failed to stop replay recording",
					zap.String("match_id", match.ID),
					zap.Error(err),
				)
			}
			match.logger.Error("match failed to start", zap.Error(startErr))
			match.finish(StatusFailed, startErr)
			match.closeSockets()
			return
		}

		ctx, cancel := context.WithCancel(m.ctx)
		match.setRunning(g, cancel)
		m.opts.Metrics.MatchStarted()
		m.wg.Add(1)
		go m.run(ctx, match, g)
	})
	return startErr
}

// run drives one match on its own goroutine.
func (m *Manager) run(ctx context.Context, match *Match, g *game.Game) {
	defer m.wg.Done()
	defer match.closeSockets()

	match.logger.Info("match started")
	err := g.Run(ctx)
	st := g.State()

	status, outcome := StatusFinished, metrics.OutcomeDraw
	var ioErr *game.IOError
	switch {
	case err == nil && st.Winner != game.NoWinner:
		outcome = metrics.OutcomeWin
	case err == nil:
	case errors.Is(err, context.Canceled):
		status, outcome = StatusAborted, metrics.OutcomeFailed
	case errors.As(err, &ioErr):
		status, outcome = StatusAborted, metrics.OutcomeIOError
	default:
		status, outcome = StatusFailed, metrics.OutcomeFailed
	}
	m.opts.Metrics.MatchFinished(outcome, st.RoundNumber)
	replay, replayErr := m.replays.Finish(match.ID)
	match.finish(status, err)

	match.logger.Info("match finished",
		zap.String("status", string(status)),
		zap.Int("winner", st.Winner),
		zap.Int("rounds", st.RoundNumber),
		zap.Error(err),
	)

	// persistence outlives the manager context
	saveCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if status == StatusFinished && m.opts.Store != nil && replayErr == nil {
		rec, err := repository.NewMatchRecord(m.opts.Catalog.Registry, match.ID, match.Seed, st, g.Log(), replay)
		if err == nil {
			err = m.opts.Store.Save(saveCtx, rec)
		}
		if err != nil {
			match.logger.Error("failed to save match", zap.Error(err))
		}
	}
	if m.opts.Cache != nil {
		if err := m.opts.Cache.Delete(saveCtx, match.ID); err != nil {
			match.logger.Warn("failed to clear resync cache", zap.Error(err))
		}
	}
}
