package game

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/gitcg/gitcg-server-go/internal/game/dice"
	"github.com/gitcg/gitcg-server-go/internal/game/variables"
)

// encodingVersion is bumped whenever the snapshot layout changes.
const encodingVersion = 1

type encodedState struct {
	Version         int              `json:"version"`
	Rules           Rules            `json:"rules"`
	Phase           Phase            `json:"phase"`
	CurrentTurn     int              `json:"currentTurn"`
	RoundNumber     int              `json:"roundNumber"`
	Winner          int              `json:"winner"`
	Players         [2]encodedPlayer `json:"players"`
	NextID          int              `json:"nextId"`
	Random          uint64           `json:"random"`
	RemovedEntities []encodedRemoved `json:"removedEntities"`
}

type encodedPlayer struct {
	Who               int                `json:"who"`
	Characters        []encodedCharacter `json:"characters"`
	ActiveCharacterID int                `json:"activeCharacterId"`
	Hands             []encodedCard      `json:"hands"`
	Pile              []encodedCard      `json:"pile"`
	Dice              []dice.Type        `json:"dice"`
	CombatStatuses    []encodedEntity    `json:"combatStatuses"`
	Summons           []encodedEntity    `json:"summons"`
	Supports          []encodedEntity    `json:"supports"`
	DeclaredEnd       bool               `json:"declaredEnd"`
	LegendUsed        bool               `json:"legendUsed"`
	HasDefeated       bool               `json:"hasDefeated"`
}

type encodedCharacter struct {
	ID           int             `json:"id"`
	DefinitionID int             `json:"definitionId"`
	Variables    variables.Bag   `json:"variables"`
	Entities     []encodedEntity `json:"entities"`
}

type encodedEntity struct {
	ID           int           `json:"id"`
	DefinitionID int           `json:"definitionId"`
	Variables    variables.Bag `json:"variables"`
}

type encodedCard struct {
	ID           int `json:"id"`
	DefinitionID int `json:"definitionId"`
}

type encodedRemoved struct {
	Area   Area          `json:"area"`
	Entity encodedEntity `json:"entity"`
}

// EncodeState serializes a snapshot to JSON. Definitions are written by id.
func EncodeState(st *GameState) ([]byte, error) {
	enc := encodedState{
		Version:     encodingVersion,
		Rules:       st.Rules,
		Phase:       st.Phase,
		CurrentTurn: st.CurrentTurn,
		RoundNumber: st.RoundNumber,
		Winner:      st.Winner,
		NextID:      st.NextID,
		Random:      st.Random,
	}
	for who, p := range st.Players {
		ep := encodedPlayer{
			Who:               p.Who,
			ActiveCharacterID: p.ActiveCharacterID,
			Dice:              p.Dice,
			DeclaredEnd:       p.DeclaredEnd,
			LegendUsed:        p.LegendUsed,
			HasDefeated:       p.HasDefeated,
			Hands:             encodeCards(p.Hands),
			Pile:              encodeCards(p.Pile),
			CombatStatuses:    encodeEntities(p.CombatStatuses),
			Summons:           encodeEntities(p.Summons),
			Supports:          encodeEntities(p.Supports),
		}
		for _, ch := range p.Characters {
			ep.Characters = append(ep.Characters, encodedCharacter{
				ID:           ch.ID,
				DefinitionID: ch.Definition.ID,
				Variables:    ch.Variables,
				Entities:     encodeEntities(ch.Entities),
			})
		}
		enc.Players[who] = ep
	}
	for _, r := range st.RemovedEntities {
		enc.RemovedEntities = append(enc.RemovedEntities, encodedRemoved{Area: r.Area, Entity: encodeEntity(r.Entity)})
	}
	data, err := json.Marshal(&enc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode state: %w", err)
	}
	return data, nil
}

func encodeCards(cards []*CardState) []encodedCard {
	out := make([]encodedCard, len(cards))
	for i, c := range cards {
		out[i] = encodedCard{ID: c.ID, DefinitionID: c.Definition.ID}
	}
	return out
}

func encodeEntity(e *EntityState) encodedEntity {
	return encodedEntity{ID: e.ID, DefinitionID: e.Definition.ID, Variables: e.Variables}
}

func encodeEntities(items []*EntityState) []encodedEntity {
	out := make([]encodedEntity, len(items))
	for i, e := range items {
		out[i] = encodeEntity(e)
	}
	return out
}

// DecodeState rebuilds a snapshot written by EncodeState, resolving
// definitions through reg.
func DecodeState(reg *Registry, data []byte) (*GameState, error) {
	var enc encodedState
	if err := json.Unmarshal(data, &enc); err != nil {
		return nil, fmt.Errorf("failed to decode state: %w", err)
	}
	if enc.Version != encodingVersion {
		return nil, fmt.Errorf("unsupported state encoding version: %d", enc.Version)
	}
	st := &GameState{
		Rules:       enc.Rules,
		Phase:       enc.Phase,
		CurrentTurn: enc.CurrentTurn,
		RoundNumber: enc.RoundNumber,
		Winner:      enc.Winner,
		NextID:      enc.NextID,
		Random:      enc.Random,
	}
	for who, ep := range enc.Players {
		p := &PlayerState{
			Who:               ep.Who,
			ActiveCharacterID: ep.ActiveCharacterID,
			Dice:              ep.Dice,
			DeclaredEnd:       ep.DeclaredEnd,
			LegendUsed:        ep.LegendUsed,
			HasDefeated:       ep.HasDefeated,
		}
		var err error
		if p.Hands, err = decodeCards(reg, ep.Hands); err != nil {
			return nil, err
		}
		if p.Pile, err = decodeCards(reg, ep.Pile); err != nil {
			return nil, err
		}
		if p.CombatStatuses, err = decodeEntities(reg, ep.CombatStatuses); err != nil {
			return nil, err
		}
		if p.Summons, err = decodeEntities(reg, ep.Summons); err != nil {
			return nil, err
		}
		if p.Supports, err = decodeEntities(reg, ep.Supports); err != nil {
			return nil, err
		}
		for _, ec := range ep.Characters {
			def, err := reg.Character(ec.DefinitionID)
			if err != nil {
				return nil, fmt.Errorf("character %d: %w", ec.ID, err)
			}
			entities, err := decodeEntities(reg, ec.Entities)
			if err != nil {
				return nil, err
			}
			p.Characters = append(p.Characters, &CharacterState{
				ID:         ec.ID,
				Definition: def,
				Variables:  ec.Variables,
				Entities:   entities,
			})
		}
		st.Players[who] = p
	}
	for _, r := range enc.RemovedEntities {
		e, err := decodeEntity(reg, r.Entity)
		if err != nil {
			return nil, err
		}
		st.RemovedEntities = append(st.RemovedEntities, RemovedEntity{Area: r.Area, Entity: e})
	}
	return st, nil
}

func decodeCards(reg *Registry, cards []encodedCard) ([]*CardState, error) {
	out := make([]*CardState, 0, len(cards))
	for _, c := range cards {
		def, err := reg.Card(c.DefinitionID)
		if err != nil {
			return nil, fmt.Errorf("card %d: %w", c.ID, err)
		}
		out = append(out, &CardState{ID: c.ID, Definition: def})
	}
	return out, nil
}

func decodeEntity(reg *Registry, e encodedEntity) (*EntityState, error) {
	def, err := reg.Entity(e.DefinitionID)
	if err != nil {
		return nil, fmt.Errorf("entity %d: %w", e.ID, err)
	}
	vars := e.Variables
	if vars == nil {
		vars = variables.Bag{}
	}
	return &EntityState{ID: e.ID, Definition: def, Variables: vars}, nil
}

func decodeEntities(reg *Registry, items []encodedEntity) ([]*EntityState, error) {
	out := make([]*EntityState, 0, len(items))
	for _, item := range items {
		e, err := decodeEntity(reg, item)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// StateChecksum is a deterministic digest of a snapshot and the mutation
// log that produced it. Two runs with the same seed, decks and responses
// have equal checksums.
type StateChecksum struct {
	Hash      string // SHA-256 of the canonical representation
	Mutations int    // number of log entries covered
	Version   int
}

// ComputeChecksum digests st together with log.
func ComputeChecksum(st *GameState, log []Mutation) (*StateChecksum, error) {
	hash := sha256.New()
	if _, err := hash.Write([]byte(canonicalRepresentation(st, log))); err != nil {
		return nil, fmt.Errorf("failed to compute hash: %w", err)
	}
	return &StateChecksum{
		Hash:      hex.EncodeToString(hash.Sum(nil)),
		Mutations: len(log),
		Version:   encodingVersion,
	}, nil
}

// VerifyChecksum reports whether st and log digest to expected.
func VerifyChecksum(st *GameState, log []Mutation, expected *StateChecksum) (bool, error) {
	computed, err := ComputeChecksum(st, log)
	if err != nil {
		return false, fmt.Errorf("failed to compute checksum: %w", err)
	}
	return computed.Hash == expected.Hash, nil
}

// canonicalRepresentation writes the snapshot and log as text whose bytes
// do not depend on map iteration order.
func canonicalRepresentation(st *GameState, log []Mutation) string {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "GAME:%s|%d|%d|%d|%d|%d\n",
		st.Phase, st.CurrentTurn, st.RoundNumber, st.Winner, st.NextID, st.Random)

	writeVars := func(indent string, bag variables.Bag) {
		names := bag.Names()
		sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
		for _, n := range names {
			fmt.Fprintf(&buf, "%sVAR:%s=%d\n", indent, n, bag[n])
		}
	}
	writeEntities := func(indent, zone string, items []*EntityState) {
		for _, e := range items {
			fmt.Fprintf(&buf, "%s%s:%d|%d\n", indent, zone, e.ID, e.Definition.ID)
			writeVars(indent+"  ", e.Variables)
		}
	}
	cardIDs := func(cards []*CardState) string {
		parts := make([]string, len(cards))
		for i, c := range cards {
			parts[i] = fmt.Sprintf("%d:%d", c.ID, c.Definition.ID)
		}
		return strings.Join(parts, ",")
	}

	for _, p := range st.Players {
		fmt.Fprintf(&buf, "PLAYER:%d|%d|%t|%t|%t\n",
			p.Who, p.ActiveCharacterID, p.DeclaredEnd, p.LegendUsed, p.HasDefeated)
		diceParts := make([]string, len(p.Dice))
		for i, d := range p.Dice {
			diceParts[i] = d.String()
		}
		fmt.Fprintf(&buf, "  DICE:%s\n", strings.Join(diceParts, ","))
		fmt.Fprintf(&buf, "  HANDS:%s\n", cardIDs(p.Hands))
		fmt.Fprintf(&buf, "  PILE:%s\n", cardIDs(p.Pile))
		for _, ch := range p.Characters {
			fmt.Fprintf(&buf, "  CHARACTER:%d|%d\n", ch.ID, ch.Definition.ID)
			writeVars("    ", ch.Variables)
			writeEntities("    ", "STATUS", ch.Entities)
		}
		writeEntities("  ", "COMBAT_STATUS", p.CombatStatuses)
		writeEntities("  ", "SUMMON", p.Summons)
		writeEntities("  ", "SUPPORT", p.Supports)
	}

	// Log order matters, so it is not sorted.
	buf.WriteString("LOG:\n")
	for i, m := range log {
		fmt.Fprintf(&buf, "  %d:%s\n", i, Describe(m))
	}
	return buf.String()
}

// ValidateEncodingRoundtrip checks that st survives EncodeState and
// DecodeState unchanged by comparing checksums.
func ValidateEncodingRoundtrip(reg *Registry, st *GameState) error {
	original, err := ComputeChecksum(st, nil)
	if err != nil {
		return fmt.Errorf("failed to compute original checksum: %w", err)
	}
	data, err := EncodeState(st)
	if err != nil {
		return err
	}
	decoded, err := DecodeState(reg, data)
	if err != nil {
		return err
	}
	roundtrip, err := ComputeChecksum(decoded, nil)
	if err != nil {
		return fmt.Errorf("failed to compute decoded checksum: %w", err)
	}
	if original.Hash != roundtrip.Hash {
		return fmt.Errorf("checksum mismatch: original=%s, decoded=%s", original.Hash, roundtrip.Hash)
	}
	return nil
}
