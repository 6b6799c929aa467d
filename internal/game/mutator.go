package game

import (
	"context"
	"slices"

	"go.uber.org/zap"

	"github.com/gitcg/gitcg-server-go/internal/game/variables"
)

// NotifyBatch is one flushed group of mutations with its per-player
// exposure.
type NotifyBatch struct {
	State     *GameState
	Mutations []Mutation
	Exposed   [2][]ExposedMutation
}

// PauseFunc blocks the engine at a pause point. pending holds the
// mutations applied since the last flush. canResume is false when the
// match cannot continue past this point.
type PauseFunc func(ctx context.Context, st *GameState, pending []Mutation, canResume bool) error

// MutatorOptions configures a Mutator.
type MutatorOptions struct {
	Logger   *zap.Logger
	OnNotify func(NotifyBatch)
	OnPause  PauseFunc
}

// Mutator is the only writer of GameState. It applies mutations one at a
// time, keeps the mutation log, and batches exposed mutations until Notify.
type Mutator struct {
	logger   *zap.Logger
	state    *GameState
	log      []Mutation
	batch    []Mutation
	exposed  [2][]ExposedMutation
	onNotify func(NotifyBatch)
	onPause  PauseFunc
}

// NewMutator creates a Mutator starting at state.
func NewMutator(state *GameState, opts MutatorOptions) *Mutator {
	return &Mutator{
		logger:   opts.Logger,
		state:    state,
		onNotify: opts.OnNotify,
		onPause:  opts.OnPause,
	}
}

// State returns the current snapshot.
func (m *Mutator) State() *GameState {
	return m.state
}

// Log returns a copy of every state mutation applied so far.
func (m *Mutator) Log() []Mutation {
	return slices.Clone(m.log)
}

// LogLen returns the number of logged mutations.
func (m *Mutator) LogLen() int {
	return len(m.log)
}

// Fork returns a Mutator over the same snapshot with an empty log and no
// observers. Nothing done through the fork reaches m.
func (m *Mutator) Fork() *Mutator {
	return &Mutator{state: m.state}
}

// Mutate applies one mutation plus its derived bookkeeping. A malformed
// mutation panics with *InvariantError.
func (m *Mutator) Mutate(mut Mutation) {
	m.apply(mut)

	switch mut := mut.(type) {
	case ModifyEntityVarMutation:
		if mut.Var == variables.Health {
			if ch, _, ok := m.state.Character(mut.ID); ok {
				if alive := boolToInt(ch.Health() > 0); ch.Variables.Get(variables.Alive) != alive {
					m.apply(ModifyEntityVarMutation{ID: ch.ID, Var: variables.Alive, Value: alive})
				}
			}
		}
	case ChangePhaseMutation:
		if mut.Phase == PhaseRoll {
			m.refreshUsagePerRound()
		}
	}

	m.checkInvariants(mut)
}

func (m *Mutator) apply(mut Mutation) {
	before := m.state
	m.state = applyMutation(before, mut)
	m.log = append(m.log, mut)
	m.batch = append(m.batch, mut)
	for who := 0; who < 2; who++ {
		if em, ok := ExposeMutation(who, before, mut); ok {
			m.exposed[who] = append(m.exposed[who], em)
		}
	}
	if m.logger != nil {
		m.logger.Debug("mutation applied", zap.String("mutation", Describe(mut)))
	}
}

func (m *Mutator) refreshUsagePerRound() {
	for _, p := range m.state.Players {
		var all []*EntityState
		all = append(all, p.Summons...)
		all = append(all, p.Supports...)
		all = append(all, p.CombatStatuses...)
		for _, ch := range p.Characters {
			all = append(all, ch.Entities...)
		}
		for _, e := range all {
			initial, ok := e.Definition.Variables[variables.UsagePerRound]
			if !ok || e.Variables.Get(variables.UsagePerRound) == initial {
				continue
			}
			m.apply(ModifyEntityVarMutation{ID: e.ID, Var: variables.UsagePerRound, Value: initial})
		}
	}
}

func (m *Mutator) checkInvariants(mut Mutation) {
	switch mut := mut.(type) {
	case ModifyEntityVarMutation:
		if ch, _, ok := m.state.Character(mut.ID); ok {
			checkCharacter(mut, ch)
		}
	case CreateCharacterMutation:
		checkCharacter(mut, mut.Value)
	case SwitchActiveMutation:
		if ch := m.state.ActiveCharacter(mut.Who); ch == nil {
			panic(invariantf(string(mut.Kind()), "player %d has no active character", mut.Who))
		}
	}
}

// Emit appends an exposed-only record (damage, reaction, skill used,
// switch active) to the current batch of both players.
func (m *Mutator) Emit(em ExposedMutation) {
	m.exposed[0] = append(m.exposed[0], em)
	m.exposed[1] = append(m.exposed[1], em)
}

// Notify flushes the current batch to the observer. Empty batches are
// dropped.
func (m *Mutator) Notify() {
	if len(m.batch) == 0 && len(m.exposed[0]) == 0 && len(m.exposed[1]) == 0 {
		return
	}
	batch := NotifyBatch{
		State:     m.state,
		Mutations: m.batch,
		Exposed:   m.exposed,
	}
	m.batch = nil
	m.exposed = [2][]ExposedMutation{}
	if m.onNotify != nil {
		m.onNotify(batch)
	}
}

// Pause runs the pause hook with the pending mutations, then flushes them.
func (m *Mutator) Pause(ctx context.Context, canResume bool) error {
	if m.onPause != nil {
		if err := m.onPause(ctx, m.state, slices.Clone(m.batch), canResume); err != nil {
			return err
		}
	}
	m.Notify()
	return nil
}

// allocID returns a fresh id. The counter itself advances when the create
// mutation carrying the id is applied.
func (m *Mutator) allocID() int {
	return m.state.NextID
}

// stepRandom advances the PRNG and returns a value in [0, n).
func (m *Mutator) stepRandom(n int) int {
	next := splitmix64(m.state.Random)
	m.Mutate(StepRandomMutation{Value: next})
	if n <= 0 {
		return 0
	}
	return int(next % uint64(n))
}

// splitmix64 is the PRNG step function.
func splitmix64(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	z := x
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
