package game

import (
	"github.com/gitcg/gitcg-server-go/internal/game/dice"
	"github.com/gitcg/gitcg-server-go/internal/game/reaction"
	"github.com/gitcg/gitcg-server-go/internal/game/variables"
)

// Phase is the match phase.
type Phase int

const (
	PhaseInitHands Phase = iota
	PhaseInitActives
	PhaseRoll
	PhaseAction
	PhaseEnd
	PhaseGameEnd
)

func (p Phase) String() string {
	switch p {
	case PhaseInitHands:
		return "initHands"
	case PhaseInitActives:
		return "initActives"
	case PhaseRoll:
		return "roll"
	case PhaseAction:
		return "action"
	case PhaseEnd:
		return "end"
	case PhaseGameEnd:
		return "gameEnd"
	default:
		return "unknown"
	}
}

// NoWinner is the Winner value of a match that has not been won.
const NoWinner = -1

// Rules are the numeric limits of a match.
type Rules struct {
	MaxRounds    int `json:"maxRounds"`
	InitialHands int `json:"initialHands"`
	MaxHands     int `json:"maxHands"`
	MaxDice      int `json:"maxDice"`
	InitialDice  int `json:"initialDice"`
}

// DefaultRules returns the standard match limits.
func DefaultRules() Rules {
	return Rules{
		MaxRounds:    15,
		InitialHands: 5,
		MaxHands:     10,
		MaxDice:      16,
		InitialDice:  8,
	}
}

// GameState is one immutable snapshot of a match. Values reachable from a
// GameState are never written in place; the Mutator produces a new
// snapshot for every mutation and shares unchanged subtrees.
type GameState struct {
	Rules       Rules
	Phase       Phase
	CurrentTurn int
	RoundNumber int
	Winner      int
	Players     [2]*PlayerState

	// NextID is the next id handed out to a created character, entity or
	// card.
	NextID int
	// Random is the PRNG cursor.
	Random uint64

	// RemovedEntities holds entities removed since the last checkpoint so
	// handlers in the same chain can still inspect them.
	RemovedEntities []RemovedEntity
}

// RemovedEntity records where a removed entity lived.
type RemovedEntity struct {
	Area   Area
	Entity *EntityState
}

// PlayerState is one side of the match.
type PlayerState struct {
	Who               int
	Characters        []*CharacterState
	ActiveCharacterID int
	Hands             []*CardState
	Pile              []*CardState
	Dice              []dice.Type
	CombatStatuses    []*EntityState
	Summons           []*EntityState
	Supports          []*EntityState

	DeclaredEnd bool
	LegendUsed  bool
	// HasDefeated is set when one of the player's characters was defeated
	// during the current action; never exposed.
	HasDefeated bool
}

// CharacterState is a character on the board.
type CharacterState struct {
	ID         int
	Definition *CharacterDefinition
	Variables  variables.Bag
	Entities   []*EntityState
}

// EntityState is a status, equipment, summon, support or combat status.
type EntityState struct {
	ID         int
	Definition *EntityDefinition
	Variables  variables.Bag
}

// CardState is a card in a hand or pile.
type CardState struct {
	ID         int
	Definition *CardDefinition
}

// NewGameState returns the empty initial state for a match.
func NewGameState(rules Rules, seed uint64) *GameState {
	return &GameState{
		Rules:       rules,
		Phase:       PhaseInitHands,
		CurrentTurn: 0,
		RoundNumber: 0,
		Winner:      NoWinner,
		Players: [2]*PlayerState{
			{Who: 0},
			{Who: 1},
		},
		NextID: 1,
		Random: seed,
	}
}

// Health returns the character's current health.
func (c *CharacterState) Health() int { return c.Variables.Get(variables.Health) }

// MaxHealth returns the character's maximum health.
func (c *CharacterState) MaxHealth() int { return c.Variables.Get(variables.MaxHealth) }

// Energy returns the character's current energy.
func (c *CharacterState) Energy() int { return c.Variables.Get(variables.Energy) }

// MaxEnergy returns the character's maximum energy.
func (c *CharacterState) MaxEnergy() int { return c.Variables.Get(variables.MaxEnergy) }

// Aura returns the elements attached to the character.
func (c *CharacterState) Aura() reaction.Aura { return reaction.Aura(c.Variables.Get(variables.Aura)) }

// Alive reports whether the character has not been defeated.
func (c *CharacterState) Alive() bool { return c.Variables.Get(variables.Alive) != 0 }

// Player returns the state of player who.
func (s *GameState) Player(who int) *PlayerState {
	return s.Players[who]
}

// Character returns the character with the given id and its owner.
func (s *GameState) Character(id int) (*CharacterState, int, bool) {
	for who, p := range s.Players {
		for _, ch := range p.Characters {
			if ch.ID == id {
				return ch, who, true
			}
		}
	}
	return nil, 0, false
}

// Entity returns the entity with the given id and where it lives.
func (s *GameState) Entity(id int) (*EntityState, Area, bool) {
	for who, p := range s.Players {
		for _, z := range []struct {
			zone  Zone
			items []*EntityState
		}{
			{ZoneSummons, p.Summons},
			{ZoneSupports, p.Supports},
			{ZoneCombatStatuses, p.CombatStatuses},
		} {
			for _, e := range z.items {
				if e.ID == id {
					return e, Area{Who: who, Zone: z.zone}, true
				}
			}
		}
		for _, ch := range p.Characters {
			for _, e := range ch.Entities {
				if e.ID == id {
					return e, Area{Who: who, Zone: ZoneCharacter, CharacterID: ch.ID}, true
				}
			}
		}
	}
	return nil, Area{}, false
}

// RemovedEntity looks an entity up in the removed-entities buffer.
func (s *GameState) RemovedEntity(id int) (*EntityState, Area, bool) {
	for _, r := range s.RemovedEntities {
		if r.Entity.ID == id {
			return r.Entity, r.Area, true
		}
	}
	return nil, Area{}, false
}

// ActiveCharacter returns the active character of player who, or nil
// before one is chosen.
func (s *GameState) ActiveCharacter(who int) *CharacterState {
	p := s.Players[who]
	for _, ch := range p.Characters {
		if ch.ID == p.ActiveCharacterID {
			return ch
		}
	}
	return nil
}

// Card returns a card in the hands or pile of either player.
func (s *GameState) Card(id int) (*CardState, int, CardZone, bool) {
	for who, p := range s.Players {
		for _, c := range p.Hands {
			if c.ID == id {
				return c, who, CardZoneHands, true
			}
		}
		for _, c := range p.Pile {
			if c.ID == id {
				return c, who, CardZonePile, true
			}
		}
	}
	return nil, 0, 0, false
}

// Zone names an entity area.
type Zone int

const (
	ZoneCharacter Zone = iota
	ZoneCombatStatuses
	ZoneSummons
	ZoneSupports
)

func (z Zone) String() string {
	switch z {
	case ZoneCharacter:
		return "character"
	case ZoneCombatStatuses:
		return "combatStatus"
	case ZoneSummons:
		return "summon"
	case ZoneSupports:
		return "support"
	default:
		return "unknown"
	}
}

// Area locates an entity. CharacterID is set for ZoneCharacter only.
type Area struct {
	Who         int  `json:"who"`
	Zone        Zone `json:"zone"`
	CharacterID int  `json:"characterId,omitempty"`
}

// CardZone is where a card lives.
type CardZone int

const (
	CardZoneHands CardZone = iota
	CardZonePile
)

func (z CardZone) String() string {
	if z == CardZonePile {
		return "pile"
	}
	return "hands"
}

// CharactersFromActive returns the characters of player who starting at
// the active one and wrapping around.
func (s *GameState) CharactersFromActive(who int) []*CharacterState {
	chars := s.Players[who].Characters
	start := 0
	for i, ch := range chars {
		if ch.ID == s.Players[who].ActiveCharacterID {
			start = i
			break
		}
	}
	out := make([]*CharacterState, 0, len(chars))
	for i := range chars {
		out = append(out, chars[(start+i)%len(chars)])
	}
	return out
}

// NextAliveCharacter returns the first alive character after the active one,
// or nil when none is left.
func (s *GameState) NextAliveCharacter(who int, offset int) *CharacterState {
	ordered := s.CharactersFromActive(who)
	n := len(ordered)
	if n == 0 {
		return nil
	}
	for i := 1; i < n; i++ {
		idx := ((offset*i)%n + n) % n
		if ch := ordered[idx]; ch.Alive() {
			return ch
		}
	}
	return nil
}

// AliveCount returns how many characters of player who are alive.
func (s *GameState) AliveCount(who int) int {
	n := 0
	for _, ch := range s.Players[who].Characters {
		if ch.Alive() {
			n++
		}
	}
	return n
}
