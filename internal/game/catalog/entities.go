package catalog

import (
	"strconv"

	"github.com/gitcg/gitcg-server-go/internal/game"
	"github.com/gitcg/gitcg-server-go/internal/game/dice"
	"github.com/gitcg/gitcg-server-go/internal/game/reaction"
	"github.com/gitcg/gitcg-server-go/internal/game/variables"
)

// modifyDamage adapts a damage modifier to the Trigger contract.
func modifyDamage(fn func(c *game.Context, a *game.ModifyDamageArg) bool) func(*game.Context, game.EventArg) bool {
	return func(c *game.Context, arg game.EventArg) bool {
		a, ok := arg.(*game.ModifyDamageArg)
		if !ok {
			return false
		}
		return fn(c, a)
	}
}

// modifyAction adapts an action modifier to the Trigger contract.
func modifyAction(fn func(c *game.Context, a *game.ModifyActionArg) bool) func(*game.Context, game.EventArg) bool {
	return func(c *game.Context, arg game.EventArg) bool {
		a, ok := arg.(*game.ModifyActionArg)
		if !ok {
			return false
		}
		return fn(c, a)
	}
}

// outgoing reports whether a is a damage dealt by the caller's side to the
// other side.
func outgoing(c *game.Context, a *game.ModifyDamageArg) bool {
	return !a.Defending && a.Damage.SourceWho == c.Who() && a.Damage.TargetWho != c.Who() && a.Damage.Value > 0
}

// incomingToActive reports whether a is a damage against the caller's
// active character.
func incomingToActive(c *game.Context, a *game.ModifyDamageArg) bool {
	if !a.Defending || a.Damage.TargetWho != c.Who() || a.Damage.Value <= 0 {
		return false
	}
	active := c.ActiveCharacter(c.Who())
	return active != nil && active.ID == a.Damage.TargetID
}

// fromInitiativeSkill reports whether the damage was dealt by a skill the
// player chose.
func fromInitiativeSkill(a *game.ModifyDamageArg) bool {
	return a.Damage.FromSkill != nil && a.Damage.FromSkill.Initiative()
}

// shield absorbs damage against the active character with the shield
// variable, and leaves play once it is used up.
func shield() map[game.EventName]game.Trigger {
	return map[game.EventName]game.Trigger{
		game.ModifyDamage1: {
			Handle: modifyDamage(func(c *game.Context, a *game.ModifyDamageArg) bool {
				if !incomingToActive(c, a) {
					return false
				}
				left := c.Variable(variables.Shield)
				left -= a.DecreaseDamage(left)
				c.SetVariable(variables.Shield, left)
				if left == 0 {
					c.DisposeSelf()
				}
				return false
			}),
		},
	}
}

// boost adds n to outgoing damage of the listed elements. It spends a
// usage each time.
func boost(n int, types ...reaction.DamageType) map[game.EventName]game.Trigger {
	return map[game.EventName]game.Trigger{
		game.ModifyDamage0: {
			Handle: modifyDamage(func(c *game.Context, a *game.ModifyDamageArg) bool {
				if !outgoing(c, a) {
					return false
				}
				for _, t := range types {
					if a.Damage.Type == t {
						a.IncreaseDamage(n)
						return true
					}
				}
				return false
			}),
		},
	}
}

// endPhaseDamage deals n damage at every end phase.
func endPhaseDamage(t reaction.DamageType, n int) map[game.EventName]game.Trigger {
	return map[game.EventName]game.Trigger{
		game.OnEndPhase: {
			Handle: func(c *game.Context, _ game.EventArg) bool {
				c.Damage(t, n)
				return true
			},
		},
	}
}

// cheaperSwitch makes switch actions one die cheaper.
func cheaperSwitch() map[game.EventName]game.Trigger {
	return map[game.EventName]game.Trigger{
		game.ModifyAction0: {
			Handle: modifyAction(func(c *game.Context, a *game.ModifyActionArg) bool {
				if a.Action.Type != game.ActionSwitchActive || a.Action.Who != c.Who() {
					return false
				}
				return a.DeductOmniCost(1)
			}),
		},
	}
}

// entityTriggers maps entity definition ids to their handlers. Entities
// written in Lua are not listed.
var entityTriggers = map[int]map[game.EventName]game.Trigger{
	// Frozen: the character cannot use skills; pyro and physical damage
	// break it for +2.
	106: {
		game.ModifyAction0: {
			Handle: modifyAction(func(c *game.Context, a *game.ModifyActionArg) bool {
				if a.Action.Type != game.ActionUseSkill || a.Action.CharacterID != c.Caller().CharacterID {
					return false
				}
				a.Disable()
				return true
			}),
		},
		game.ModifyDamage1: {
			Handle: modifyDamage(func(c *game.Context, a *game.ModifyDamageArg) bool {
				if a.Damage.TargetID != c.Caller().CharacterID {
					return false
				}
				if a.Damage.Type != reaction.Pyro && a.Damage.Type != reaction.Physical {
					return false
				}
				a.IncreaseDamage(2)
				c.DisposeSelf()
				return true
			}),
		},
	},
	116: boost(2, reaction.Pyro, reaction.Electro),
	117: boost(1, reaction.Electro, reaction.Dendro),

	// Ice Lotus
	111011: {
		game.ModifyDamage1: {
			Handle: modifyDamage(func(c *game.Context, a *game.ModifyDamageArg) bool {
				if !incomingToActive(c, a) {
					return false
				}
				a.DecreaseDamage(1)
				return true
			}),
		},
	},
	111012: endPhaseDamage(reaction.Cryo, 1),
	115011: endPhaseDamage(reaction.Anemo, 2),
	117011: endPhaseDamage(reaction.Dendro, 2),

	// Lumidouce Case, Level 3: hits every opposing character.
	117103: {
		game.OnEndPhase: {
			Handle: func(c *game.Context, _ game.EventArg) bool {
				for _, ch := range c.Characters(c.Opponent()) {
					c.Damage(reaction.Dendro, 1, ch.ID)
				}
				return true
			},
		},
	},

	// Rain Sword
	112021: {
		game.ModifyDamage1: {
			Handle: modifyDamage(func(c *game.Context, a *game.ModifyDamageArg) bool {
				if !incomingToActive(c, a) || a.Damage.Value < 3 {
					return false
				}
				a.DecreaseDamage(1)
				return true
			}),
		},
	},

	// Rainbow Bladework
	112022: {
		game.OnUseSkill: {
			Handle: func(c *game.Context, arg game.EventArg) bool {
				a, ok := arg.(game.UseSkillArg)
				if !ok || a.Skill.Type != game.SkillNormal {
					return false
				}
				c.Damage(reaction.Hydro, 1)
				return true
			},
		},
	},

	// Inspiration Field
	113041: {
		game.ModifyDamage0: {
			Handle: modifyDamage(func(c *game.Context, a *game.ModifyDamageArg) bool {
				if !outgoing(c, a) || !fromInitiativeSkill(a) {
					return false
				}
				ch, _, ok := c.State().Character(a.Damage.SourceID)
				if !ok || ch.Health() < 7 {
					return false
				}
				a.IncreaseDamage(2)
				return true
			}),
		},
		game.OnUseSkill: {
			Handle: func(c *game.Context, arg game.EventArg) bool {
				a, ok := arg.(game.UseSkillArg)
				if !ok {
					return false
				}
				ch, _, ok := c.State().Character(a.CharacterID)
				if !ok || ch.Health() > 6 {
					return false
				}
				c.Heal(2, ch.ID)
				return true
			},
		},
	},

	303201: {
		game.ModifyAction1: {
			Handle: modifyAction(func(c *game.Context, a *game.ModifyActionArg) bool {
				if a.Action.Type != game.ActionSwitchActive || a.Action.Fast {
					return false
				}
				a.SetFast()
				return true
			}),
		},
	},
	303202: cheaperSwitch(),
	321003: cheaperSwitch(),

	// Traveler's Handy Sword
	311101: {
		game.ModifyDamage0: {
			Handle: modifyDamage(func(c *game.Context, a *game.ModifyDamageArg) bool {
				if !outgoing(c, a) || !fromInitiativeSkill(a) || a.Damage.SourceID != c.Caller().CharacterID {
					return false
				}
				a.IncreaseDamage(1)
				return true
			}),
		},
	},

	// Gambler's Earrings
	312001: {
		game.OnDefeated: {
			Listen: game.ListenAll,
			Handle: func(c *game.Context, arg game.EventArg) bool {
				a, ok := arg.(game.DefeatedArg)
				if !ok || a.Who == c.Who() {
					return false
				}
				active := c.ActiveCharacter(c.Who())
				if active == nil || active.ID != c.Caller().CharacterID {
					return false
				}
				c.GenerateDice(dice.Omni, 2)
				return true
			},
		},
	},

	// Paimon
	321004: {
		game.OnActionPhase: {
			Handle: func(c *game.Context, _ game.EventArg) bool {
				c.GenerateDice(dice.Omni, 2)
				return true
			},
		},
	},
}

// variableText renders a variable of the described entity.
func variableText(name variables.Name) game.DescriptionFunc {
	return func(st *game.GameState, id int) string {
		if ent, _, ok := st.Entity(id); ok {
			return strconv.Itoa(ent.Variables.Get(name))
		}
		return ""
	}
}

// entityDescriptions fill description placeholders of entities.
var entityDescriptions = map[int]map[string]game.DescriptionFunc{
	321004: {"usage": variableText(variables.Usage)},
	113041: {"duration": variableText(variables.Duration)},
}
