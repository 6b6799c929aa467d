package catalog

import (
	"github.com/gitcg/gitcg-server-go/internal/game"
	"github.com/gitcg/gitcg-server-go/internal/game/reaction"
)

// Entity definitions created by skills.
const (
	iceLotus          = 111011
	sacredCryoPearl   = 111012
	rainSword         = 112021
	rainbowBladework  = 112022
	inspirationField  = 113041
	oz                = 114011
	largeWindSpirit   = 115011
	fullPlate         = 116021
	cuileinAnbar      = 117011
	lumidouceCase1    = 117101
	lumidouceCase2    = 117102
	lumidouceCase3    = 117103
	leaveItToMeStatus = 303201
	changingShifts    = 303202
	satiated          = 303300
)

// normalAttack deals n physical damage to the opposing active character.
func normalAttack(n int) func(*game.Context) {
	return func(c *game.Context) {
		c.Damage(reaction.Physical, n)
	}
}

// elementalHit deals n damage of one element to the opposing active
// character.
func elementalHit(t reaction.DamageType, n int) func(*game.Context) {
	return func(c *game.Context) {
		c.Damage(t, n)
	}
}

// pierceStandby deals n piercing damage to every opposing standby
// character.
func pierceStandby(c *game.Context, n int) {
	active := c.ActiveCharacter(c.Opponent())
	for _, ch := range c.Characters(c.Opponent()) {
		if active != nil && ch.ID == active.ID {
			continue
		}
		c.Damage(reaction.Piercing, n, ch.ID)
	}
}

// skillBodies maps skill definition ids to their bodies.
var skillBodies = map[int]func(*game.Context){
	// Ganyu
	11011: normalAttack(2),
	11012: func(c *game.Context) {
		c.Damage(reaction.Cryo, 1)
		c.CombatStatus(iceLotus, c.Who())
	},
	11013: func(c *game.Context) {
		c.Damage(reaction.Cryo, 2)
		pierceStandby(c, 1)
		c.Summon(sacredCryoPearl)
	},

	// Xingqiu
	12021: normalAttack(2),
	12022: func(c *game.Context) {
		c.Damage(reaction.Hydro, 2)
		c.ApplyElement(reaction.Hydro, c.Caller().CharacterID)
		c.CombatStatus(rainSword, c.Who())
	},
	12023: func(c *game.Context) {
		c.Damage(reaction.Hydro, 1)
		c.ApplyElement(reaction.Hydro, c.Caller().CharacterID)
		c.CombatStatus(rainbowBladework, c.Who())
	},

	// Diluc
	13031: normalAttack(2),
	13032: elementalHit(reaction.Pyro, 3),
	13033: elementalHit(reaction.Pyro, 8),

	// Bennett
	13041: normalAttack(2),
	13042: elementalHit(reaction.Pyro, 3),
	13043: func(c *game.Context) {
		c.Damage(reaction.Pyro, 2)
		c.CombatStatus(inspirationField, c.Who())
	},

	// Fischl
	14011: normalAttack(2),
	14012: func(c *game.Context) {
		c.Damage(reaction.Electro, 1)
		c.Summon(oz)
	},
	14013: func(c *game.Context) {
		c.Damage(reaction.Electro, 4)
		pierceStandby(c, 2)
	},

	// Sucrose
	15011: elementalHit(reaction.Anemo, 1),
	15012: func(c *game.Context) {
		c.Damage(reaction.Anemo, 3)
		c.SwitchPrev(c.Opponent())
	},
	15013: func(c *game.Context) {
		c.Damage(reaction.Anemo, 1)
		c.Summon(largeWindSpirit)
	},

	// Noelle
	16021: normalAttack(2),
	16022: func(c *game.Context) {
		c.Damage(reaction.Geo, 1)
		c.CombatStatus(fullPlate, c.Who())
	},
	16023: elementalHit(reaction.Geo, 4),

	// Collei
	17011: normalAttack(2),
	17012: elementalHit(reaction.Dendro, 3),
	17013: func(c *game.Context) {
		c.Damage(reaction.Dendro, 2)
		c.Summon(cuileinAnbar)
	},

	// Emilie
	17101: normalAttack(2),
	17102: func(c *game.Context) {
		if c.FindEntity(c.Who(), lumidouceCase2) != nil {
			c.Summon(lumidouceCase2)
			return
		}
		c.Summon(lumidouceCase1)
	},
	17103: func(c *game.Context) {
		c.Damage(reaction.Dendro, 1)
		for _, s := range c.Summons(c.Who()) {
			switch s.Definition.ID {
			case lumidouceCase1, lumidouceCase2, lumidouceCase3:
				c.Dispose(s.ID)
			}
		}
		c.Summon(lumidouceCase3)
	},
}

// passiveTriggers are character passive skills keyed by character id.
var passiveTriggers = map[int]map[game.EventName]game.Trigger{
	// Noelle heals the active character after each normal attack while
	// Full Plate is up.
	1602: {
		game.OnUseSkill: {
			Filter: func(c *game.Context, arg game.EventArg) bool {
				a, ok := arg.(game.UseSkillArg)
				return ok && a.Skill.Type == game.SkillNormal && c.FindEntity(c.Who(), fullPlate) != nil
			},
			Handle: func(c *game.Context, arg game.EventArg) bool {
				for _, ch := range c.Characters(c.Who()) {
					c.Heal(1, ch.ID)
				}
				return true
			},
		},
	},
}
