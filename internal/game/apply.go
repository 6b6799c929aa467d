package game

import (
	"slices"

	"github.com/gitcg/gitcg-server-go/internal/game/variables"
)

// applyMutation returns the state after m. s is not modified. Malformed
// mutations panic with *InvariantError.
func applyMutation(s *GameState, m Mutation) *GameState {
	switch m := m.(type) {
	case CreateCharacterMutation:
		s.requireFreshID(m, m.Value.ID)
		return s.withPlayer(m.Who, func(p *PlayerState) {
			p.Characters = append(slices.Clone(p.Characters), m.Value)
		}).bumpID(m.Value.ID)

	case CreateEntityMutation:
		s.requireFreshID(m, m.Value.ID)
		return s.withPlayer(m.Where.Who, func(p *PlayerState) {
			switch m.Where.Zone {
			case ZoneSummons:
				p.Summons = append(slices.Clone(p.Summons), m.Value)
			case ZoneSupports:
				p.Supports = append(slices.Clone(p.Supports), m.Value)
			case ZoneCombatStatuses:
				p.CombatStatuses = append(slices.Clone(p.CombatStatuses), m.Value)
			case ZoneCharacter:
				updateCharacter(p, m.Where.CharacterID, m, func(ch *CharacterState) {
					ch.Entities = append(slices.Clone(ch.Entities), m.Value)
				})
			}
		}).bumpID(m.Value.ID)

	case RemoveEntityMutation:
		e, area, ok := s.Entity(m.ID)
		if !ok {
			panic(invariantf(string(m.Kind()), "entity %d not found", m.ID))
		}
		ns := s.withPlayer(area.Who, func(p *PlayerState) {
			drop := func(items []*EntityState) []*EntityState {
				return slices.DeleteFunc(slices.Clone(items), func(x *EntityState) bool { return x.ID == m.ID })
			}
			switch area.Zone {
			case ZoneSummons:
				p.Summons = drop(p.Summons)
			case ZoneSupports:
				p.Supports = drop(p.Supports)
			case ZoneCombatStatuses:
				p.CombatStatuses = drop(p.CombatStatuses)
			case ZoneCharacter:
				updateCharacter(p, area.CharacterID, m, func(ch *CharacterState) {
					ch.Entities = drop(ch.Entities)
				})
			}
		})
		ns.RemovedEntities = append(slices.Clone(s.RemovedEntities), RemovedEntity{Area: area, Entity: e})
		return ns

	case ModifyEntityVarMutation:
		if _, who, ok := s.Character(m.ID); ok {
			return s.withPlayer(who, func(p *PlayerState) {
				updateCharacter(p, m.ID, m, func(ch *CharacterState) {
					ch.Variables = ch.Variables.With(m.Var, m.Value)
				})
			})
		}
		return s.updateEntity(m.ID, m, func(e *EntityState) {
			e.Variables = e.Variables.With(m.Var, m.Value)
		})

	case TransferCardMutation:
		card, owner, zone, ok := s.Card(m.CardID)
		if !ok || owner != m.Who || zone != m.From {
			panic(invariantf(string(m.Kind()), "card %d not in %s of player %d", m.CardID, m.From, m.Who))
		}
		ns := s.withPlayer(m.Who, func(p *PlayerState) {
			p.setCards(m.From, removeCard(p.cards(m.From), m.CardID))
		})
		target := m.Who
		if m.ToOpponent {
			target = 1 - m.Who
		}
		return ns.withPlayer(target, func(p *PlayerState) {
			p.setCards(m.To, insertCard(p.cards(m.To), card, m.TargetIndex))
		})

	case RemoveCardMutation:
		_, owner, zone, ok := s.Card(m.CardID)
		if !ok || owner != m.Who || zone != m.Where {
			panic(invariantf(string(m.Kind()), "card %d not in %s of player %d", m.CardID, m.Where, m.Who))
		}
		return s.withPlayer(m.Who, func(p *PlayerState) {
			p.setCards(m.Where, removeCard(p.cards(m.Where), m.CardID))
		})

	case CreateCardMutation:
		s.requireFreshID(m, m.Value.ID)
		return s.withPlayer(m.Who, func(p *PlayerState) {
			p.setCards(m.Target, insertCard(p.cards(m.Target), m.Value, m.TargetIndex))
		}).bumpID(m.Value.ID)

	case SwitchActiveMutation:
		ch, who, ok := s.Character(m.CharacterID)
		if !ok || who != m.Who {
			panic(invariantf(string(m.Kind()), "character %d not owned by player %d", m.CharacterID, m.Who))
		}
		if !ch.Alive() {
			panic(invariantf(string(m.Kind()), "character %d is defeated", m.CharacterID))
		}
		return s.withPlayer(m.Who, func(p *PlayerState) {
			p.ActiveCharacterID = m.CharacterID
		})

	case ChangePhaseMutation:
		ns := *s
		ns.Phase = m.Phase
		return &ns

	case StepRoundMutation:
		ns := *s
		ns.RoundNumber++
		return &ns

	case SwitchTurnMutation:
		ns := *s
		ns.CurrentTurn = 1 - s.CurrentTurn
		return &ns

	case SetWinnerMutation:
		ns := *s
		ns.Winner = m.Winner
		return &ns

	case SetPlayerFlagMutation:
		return s.withPlayer(m.Who, func(p *PlayerState) {
			switch m.Flag {
			case FlagDeclaredEnd:
				p.DeclaredEnd = m.Value
			case FlagLegendUsed:
				p.LegendUsed = m.Value
			case FlagHasDefeated:
				p.HasDefeated = m.Value
			}
		})

	case ResetDiceMutation:
		return s.withPlayer(m.Who, func(p *PlayerState) {
			p.Dice = slices.Clone(m.Dice)
		})

	case TransformDefinitionMutation:
		switch def := m.Definition.(type) {
		case *CharacterDefinition:
			_, who, ok := s.Character(m.ID)
			if !ok {
				panic(invariantf(string(m.Kind()), "character %d not found", m.ID))
			}
			return s.withPlayer(who, func(p *PlayerState) {
				updateCharacter(p, m.ID, m, func(ch *CharacterState) { ch.Definition = def })
			})
		case *EntityDefinition:
			return s.updateEntity(m.ID, m, func(e *EntityState) { e.Definition = def })
		default:
			panic(invariantf(string(m.Kind()), "cannot transform into %T", m.Definition))
		}

	case SwapCharacterPositionMutation:
		return s.withPlayer(m.Who, func(p *PlayerState) {
			i := slices.IndexFunc(p.Characters, func(c *CharacterState) bool { return c.ID == m.First })
			j := slices.IndexFunc(p.Characters, func(c *CharacterState) bool { return c.ID == m.Second })
			if i < 0 || j < 0 {
				panic(invariantf(string(m.Kind()), "characters %d/%d not owned by player %d", m.First, m.Second, m.Who))
			}
			p.Characters = slices.Clone(p.Characters)
			p.Characters[i], p.Characters[j] = p.Characters[j], p.Characters[i]
		})

	case StepRandomMutation:
		ns := *s
		ns.Random = m.Value
		return &ns

	case ClearRemovedEntitiesMutation:
		ns := *s
		ns.RemovedEntities = nil
		return &ns

	default:
		panic(invariantf("", "unknown mutation %T", m))
	}
}

func (s *GameState) withPlayer(who int, f func(p *PlayerState)) *GameState {
	if who != 0 && who != 1 {
		panic(invariantf("", "invalid player %d", who))
	}
	ns := *s
	np := *s.Players[who]
	f(&np)
	ns.Players[who] = &np
	return &ns
}

func (s *GameState) bumpID(id int) *GameState {
	if id >= s.NextID {
		s.NextID = id + 1
	}
	return s
}

func (s *GameState) requireFreshID(m Mutation, id int) {
	if id <= 0 {
		panic(invariantf(string(m.Kind()), "non-positive id %d", id))
	}
	if _, _, ok := s.Character(id); ok {
		panic(invariantf(string(m.Kind()), "duplicate id %d", id))
	}
	if _, _, ok := s.Entity(id); ok {
		panic(invariantf(string(m.Kind()), "duplicate id %d", id))
	}
	if _, _, _, ok := s.Card(id); ok {
		panic(invariantf(string(m.Kind()), "duplicate id %d", id))
	}
}

func (s *GameState) updateEntity(id int, m Mutation, f func(e *EntityState)) *GameState {
	_, area, ok := s.Entity(id)
	if !ok {
		panic(invariantf(string(m.Kind()), "entity %d not found", id))
	}
	return s.withPlayer(area.Who, func(p *PlayerState) {
		update := func(items []*EntityState) []*EntityState {
			out := slices.Clone(items)
			for i, e := range out {
				if e.ID == id {
					ne := *e
					f(&ne)
					out[i] = &ne
				}
			}
			return out
		}
		switch area.Zone {
		case ZoneSummons:
			p.Summons = update(p.Summons)
		case ZoneSupports:
			p.Supports = update(p.Supports)
		case ZoneCombatStatuses:
			p.CombatStatuses = update(p.CombatStatuses)
		case ZoneCharacter:
			updateCharacter(p, area.CharacterID, m, func(ch *CharacterState) {
				ch.Entities = update(ch.Entities)
			})
		}
	})
}

func updateCharacter(p *PlayerState, id int, m Mutation, f func(ch *CharacterState)) {
	idx := slices.IndexFunc(p.Characters, func(c *CharacterState) bool { return c.ID == id })
	if idx < 0 {
		panic(invariantf(string(m.Kind()), "character %d not owned by player %d", id, p.Who))
	}
	chars := slices.Clone(p.Characters)
	nc := *chars[idx]
	f(&nc)
	chars[idx] = &nc
	p.Characters = chars
}

func (p *PlayerState) cards(z CardZone) []*CardState {
	if z == CardZonePile {
		return p.Pile
	}
	return p.Hands
}

func (p *PlayerState) setCards(z CardZone, cards []*CardState) {
	if z == CardZonePile {
		p.Pile = cards
	} else {
		p.Hands = cards
	}
}

func removeCard(cards []*CardState, id int) []*CardState {
	return slices.DeleteFunc(slices.Clone(cards), func(c *CardState) bool { return c.ID == id })
}

func insertCard(cards []*CardState, card *CardState, index int) []*CardState {
	if index < 0 || index > len(cards) {
		index = len(cards)
	}
	return slices.Insert(slices.Clone(cards), index, card)
}

// checkCharacter verifies the health and aura invariants of one character.
func checkCharacter(m Mutation, ch *CharacterState) {
	h, maxH := ch.Health(), ch.MaxHealth()
	if h < 0 || h > maxH {
		panic(invariantf(string(m.Kind()), "character %d health %d out of [0,%d]", ch.ID, h, maxH))
	}
	if ch.Alive() != (h > 0) {
		panic(invariantf(string(m.Kind()), "character %d alive flag does not match health %d", ch.ID, h))
	}
	if !ch.Aura().Valid() {
		panic(invariantf(string(m.Kind()), "character %d has invalid aura %d", ch.ID, ch.Variables.Get(variables.Aura)))
	}
}
