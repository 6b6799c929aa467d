package catalog

import (
	"slices"

	"github.com/gitcg/gitcg-server-go/internal/game"
	"github.com/gitcg/gitcg-server-go/internal/game/dice"
)

type eventCard struct {
	targets func(st *game.GameState, who int) [][]int
	filter  func(c *game.Context, targets []int) bool
	action  func(c *game.Context, targets []int)
}

// ownAliveCharacters offers every alive character of the player as a
// target.
func ownAliveCharacters(st *game.GameState, who int) [][]int {
	var out [][]int
	for _, ch := range st.CharactersFromActive(who) {
		if ch.Alive() {
			out = append(out, []int{ch.ID})
		}
	}
	return out
}

func supportCard(entityID int) func(*game.Context, []int) {
	return func(c *game.Context, _ []int) {
		c.CreateSupport(entityID)
	}
}

func equipmentCard(entityID int) func(*game.Context, []int) {
	return func(c *game.Context, targets []int) {
		c.CharacterStatus(entityID, targets[0])
	}
}

// food limits a food card to characters that have not eaten this round
// and leaves its target Satiated.
func food(body eventCard) eventCard {
	targets := body.targets
	body.targets = func(st *game.GameState, who int) [][]int {
		var out [][]int
		for _, t := range targets(st, who) {
			ch, _, ok := st.Character(t[0])
			if !ok {
				continue
			}
			fed := slices.ContainsFunc(ch.Entities, func(ent *game.EntityState) bool {
				return ent.Definition.ID == satiated
			})
			if !fed {
				out = append(out, t)
			}
		}
		return out
	}
	action := body.action
	body.action = func(c *game.Context, targets []int) {
		action(c, targets)
		c.CharacterStatus(satiated, targets[0])
	}
	return body
}

// eventCards holds the bodies of event cards. Food cards get their
// Satiated handling from food.
var eventCards = map[int]eventCard{
	// Covenant of Rock: two different basic element dice when the player
	// has none left.
	331803: {
		filter: func(c *game.Context, _ []int) bool {
			return len(c.State().Players[c.Who()].Dice) == 0
		},
		action: func(c *game.Context, _ []int) {
			pool := dice.ElementalTypes
			first := c.Random(len(pool))
			second := c.Random(len(pool) - 1)
			if second >= first {
				second++
			}
			c.GenerateDice(pool[first], 1)
			c.GenerateDice(pool[second], 1)
		},
	},

	// The Bestest Travel Companion!
	332001: {
		action: func(c *game.Context, _ []int) {
			c.GenerateDice(dice.Omni, 2)
		},
	},

	// Toss-Up
	332002: {
		action: func(c *game.Context, _ []int) {
			c.RerollDice(2)
		},
	},

	// Changing Shifts
	332003: {
		action: func(c *game.Context, _ []int) {
			c.CombatStatus(changingShifts, c.Who())
		},
	},

	// Strategize
	332004: {
		action: func(c *game.Context, _ []int) {
			c.DrawCards(2)
		},
	},

	// Starsigns
	332005: {
		filter: func(c *game.Context, _ []int) bool {
			active := c.ActiveCharacter(c.Who())
			return active != nil && active.Energy() < active.MaxEnergy()
		},
		action: func(c *game.Context, _ []int) {
			c.GainEnergy(1)
		},
	},

	// Leave It to Me!
	332006: {
		action: func(c *game.Context, _ []int) {
			c.CombatStatus(leaveItToMeStatus, c.Who())
		},
	},

	// Sweet Madame
	333004: {
		targets: ownAliveCharacters,
		action: func(c *game.Context, targets []int) {
			c.Heal(1, targets[0])
		},
	},
}
