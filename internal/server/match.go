package server

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/gitcg/gitcg-server-go/internal/game"
)

// Status is the lifecycle state of a hosted match.
type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusRunning  Status = "running"
	StatusFinished Status = "finished"
	StatusAborted  Status = "aborted"
	StatusFailed   Status = "failed"
)

// Finished reports whether the match can no longer be played.
func (s Status) Finished() bool {
	return s == StatusFinished || s == StatusAborted || s == StatusFailed
}

// Match is one hosted match.
type Match struct {
	ID    string
	Seed  uint64
	Decks [2]string

	decks   [2]game.Deck
	created time.Time
	logger  *zap.Logger
	bots    [2]bool
	sockets [2]*WebSocketIO
	io      [2]game.PlayerIO

	startOnce sync.Once
	done      chan struct{}

	mu        sync.RWMutex
	status    Status
	connected [2]bool
	game      *game.Game
	cancel    context.CancelFunc
	err       error
}

// MatchInfo is a point-in-time view of a match.
type MatchInfo struct {
	ID        string    `json:"id"`
	Status    Status    `json:"status"`
	Decks     [2]string `json:"decks"`
	Bots      [2]bool   `json:"bots"`
	Connected [2]bool   `json:"connected"`
	Phase     string    `json:"phase,omitempty"`
	Round     int       `json:"round"`
	Winner    *int      `json:"winner,omitempty"`
	Error     string    `json:"error,omitempty"`
	Created   time.Time `json:"created"`
}

// Info returns the current view of the match.
func (m *Match) Info() MatchInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	info := MatchInfo{
		ID:        m.ID,
		Status:    m.status,
		Decks:     m.Decks,
		Bots:      m.bots,
		Connected: m.connected,
		Created:   m.created,
	}
	if m.err != nil {
		info.Error = m.err.Error()
	}
	if m.game != nil {
		st := m.game.State()
		info.Phase = st.Phase.String()
		info.Round = st.RoundNumber
		if st.Winner != game.NoWinner {
			w := st.Winner
			info.Winner = &w
		}
	}
	return info
}

// Done is closed when the match has finished.
func (m *Match) Done() <-chan struct{} {
	return m.done
}

func (m *Match) ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for who := 0; who < 2; who++ {
		if !m.bots[who] && !m.connected[who] {
			return false
		}
	}
	return true
}

func (m *Match) markConnected(who int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected[who] = true
}

func (m *Match) setRunning(g *game.Game, cancel context.CancelFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.game = g
	m.cancel = cancel
	m.status = StatusRunning
}

func (m *Match) finish(status Status, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status.Finished() {
		return
	}
	m.status = status
	m.err = err
	if m.cancel != nil {
		m.cancel()
	}
	close(m.done)
}

// abort cancels a running match, or finishes a waiting one at once.
func (m *Match) abort() {
	m.mu.RLock()
	cancel := m.cancel
	m.mu.RUnlock()
	if cancel != nil {
		cancel()
		return
	}
	m.finish(StatusAborted, context.Canceled)
	m.closeSockets()
}

func (m *Match) closeSockets() {
	for _, s := range m.sockets {
		if s != nil {
			s.Close()
		}
	}
}
