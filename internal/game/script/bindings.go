package script

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/gitcg/gitcg-server-go/internal/game"
	"github.com/gitcg/gitcg-server-go/internal/game/dice"
	"github.com/gitcg/gitcg-server-go/internal/game/reaction"
	"github.com/gitcg/gitcg-server-go/internal/game/variables"
)

// contextTable exposes the effect Context to a handler as the table c.
func contextTable(L *lua.LState, c *game.Context) *lua.LTable {
	t := L.NewTable()
	set := func(name string, fn lua.LGFunction) {
		t.RawSetString(name, L.NewFunction(fn))
	}

	set("who", func(L *lua.LState) int {
		L.Push(lua.LNumber(c.Who()))
		return 1
	})
	set("opponent", func(L *lua.LState) int {
		L.Push(lua.LNumber(c.Opponent()))
		return 1
	})
	set("self", func(L *lua.LState) int {
		L.Push(lua.LNumber(c.Caller().ID))
		return 1
	})
	set("round", func(L *lua.LState) int {
		L.Push(lua.LNumber(c.State().RoundNumber))
		return 1
	})
	set("variable", func(L *lua.LState) int {
		name := variables.Name(L.CheckString(1))
		id := L.OptInt(2, c.Caller().ID)
		L.Push(lua.LNumber(c.VariableOf(id, name)))
		return 1
	})
	set("setVariable", func(L *lua.LState) int {
		name := variables.Name(L.CheckString(1))
		value := L.CheckInt(2)
		c.SetVariableOf(L.OptInt(3, c.Caller().ID), name, value)
		return 0
	})
	set("addVariable", func(L *lua.LState) int {
		c.AddVariable(variables.Name(L.CheckString(1)), L.CheckInt(2))
		return 0
	})
	set("damage", func(L *lua.LState) int {
		typ, ok := reaction.ParseDamageType(L.CheckString(1))
		if !ok {
			L.ArgError(1, "unknown damage type")
			return 0
		}
		c.Damage(typ, L.CheckInt(2), L.OptInt(3, 0))
		return 0
	})
	set("heal", func(L *lua.LState) int {
		c.Heal(L.CheckInt(1), L.OptInt(2, 0))
		return 0
	})
	set("dispose", func(L *lua.LState) int {
		c.Dispose(L.OptInt(1, c.Caller().ID))
		return 0
	})
	set("generateDice", func(L *lua.LState) int {
		t, ok := dice.ParseType(L.CheckString(1))
		if !ok {
			L.ArgError(1, "unknown dice type")
			return 0
		}
		c.GenerateDice(t, L.CheckInt(2))
		return 0
	})
	set("drawCards", func(L *lua.LState) int {
		c.DrawCards(L.CheckInt(1))
		return 0
	})
	set("activeCharacter", func(L *lua.LState) int {
		ch := c.ActiveCharacter(L.OptInt(1, c.Who()))
		if ch == nil {
			L.Push(lua.LNil)
			return 1
		}
		L.Push(lua.LNumber(ch.ID))
		return 1
	})
	set("summon", func(L *lua.LState) int {
		L.Push(lua.LNumber(c.Summon(L.CheckInt(1))))
		return 1
	})
	set("combatStatus", func(L *lua.LState) int {
		L.Push(lua.LNumber(c.CombatStatus(L.CheckInt(1), L.OptInt(2, c.Who()))))
		return 1
	})
	set("characterStatus", func(L *lua.LState) int {
		L.Push(lua.LNumber(c.CharacterStatus(L.CheckInt(1), L.CheckInt(2))))
		return 1
	})
	set("switchNext", func(L *lua.LState) int {
		c.SwitchNext(L.OptInt(1, c.Opponent()))
		return 0
	})
	set("transform", func(L *lua.LState) int {
		c.TransformDefinition(L.OptInt(2, c.Caller().ID), L.CheckInt(1))
		return 0
	})
	set("random", func(L *lua.LState) int {
		L.Push(lua.LNumber(c.Random(L.CheckInt(1))))
		return 1
	})
	return t
}

// argTable flattens an event payload into the table arg.
func argTable(L *lua.LState, arg game.EventArg) *lua.LTable {
	t := L.NewTable()
	who, characterID := arg.Subject()
	t.RawSetString("who", lua.LNumber(who))
	t.RawSetString("characterId", lua.LNumber(characterID))

	setDamage := func(d *game.DamageInfo) {
		t.RawSetString("type", lua.LString(d.Type.String()))
		t.RawSetString("value", lua.LNumber(d.Value))
		t.RawSetString("sourceId", lua.LNumber(d.SourceID))
		t.RawSetString("sourceWho", lua.LNumber(d.SourceWho))
		t.RawSetString("targetId", lua.LNumber(d.TargetID))
		t.RawSetString("targetWho", lua.LNumber(d.TargetWho))
		t.RawSetString("isSkillMain", lua.LBool(d.IsSkillMain))
		t.RawSetString("reaction", lua.LString(d.Reaction.String()))
	}

	switch a := arg.(type) {
	case game.PhaseEventArg:
		t.RawSetString("phase", lua.LString(a.Phase.String()))
		t.RawSetString("round", lua.LNumber(a.Round))
	case *game.ModifyDamageArg:
		setDamage(a.Damage)
		t.RawSetString("defending", lua.LBool(a.Defending))
		t.RawSetString("increaseDamage", L.NewFunction(func(L *lua.LState) int {
			a.IncreaseDamage(L.CheckInt(1))
			t.RawSetString("value", lua.LNumber(a.Damage.Value))
			return 0
		}))
		t.RawSetString("decreaseDamage", L.NewFunction(func(L *lua.LState) int {
			absorbed := a.DecreaseDamage(L.CheckInt(1))
			t.RawSetString("value", lua.LNumber(a.Damage.Value))
			L.Push(lua.LNumber(absorbed))
			return 1
		}))
	case game.DamageOrHealArg:
		setDamage(&a.Damage)
		t.RawSetString("isHeal", lua.LBool(a.IsHeal()))
		t.RawSetString("oldHealth", lua.LNumber(a.OldHealth))
	case game.ReactionArg:
		setDamage(&a.Damage)
		t.RawSetString("reaction", lua.LString(a.Reaction.String()))
	case *game.ModifyActionArg:
		t.RawSetString("action", lua.LString(a.Action.Type.String()))
		t.RawSetString("deductCost", L.NewFunction(func(L *lua.LState) int {
			rt, ok := dice.ParseRequirementType(L.CheckString(1))
			if !ok {
				L.ArgError(1, "unknown requirement type")
				return 0
			}
			L.Push(lua.LBool(a.DeductCost(rt, L.OptInt(2, 1))))
			return 1
		}))
		t.RawSetString("deductOmniCost", L.NewFunction(func(L *lua.LState) int {
			L.Push(lua.LBool(a.DeductOmniCost(L.OptInt(1, 1))))
			return 1
		}))
		t.RawSetString("setFast", L.NewFunction(func(L *lua.LState) int {
			a.SetFast()
			return 0
		}))
	case game.UseSkillArg:
		t.RawSetString("skillId", lua.LNumber(a.Skill.ID))
		t.RawSetString("skillType", lua.LString(a.Skill.Type.String()))
	case game.PlayCardArg:
		t.RawSetString("cardDefinitionId", lua.LNumber(a.Card.Definition.ID))
	case game.SwitchActiveArg:
		t.RawSetString("from", lua.LNumber(a.From))
		t.RawSetString("to", lua.LNumber(a.To))
	case game.EnterArg:
		t.RawSetString("entityId", lua.LNumber(a.EntityID))
	case game.DisposeArg:
		t.RawSetString("entityId", lua.LNumber(a.Entity.ID))
		t.RawSetString("definitionId", lua.LNumber(a.Entity.Definition.ID))
	}
	return t
}
