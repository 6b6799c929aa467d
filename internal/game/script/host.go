package script

import (
	"fmt"
	"strings"

	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"
	"go.uber.org/zap"

	"github.com/gitcg/gitcg-server-go/internal/game"
	"github.com/gitcg/gitcg-server-go/internal/game/variables"
)

// Host compiles entity scripts into definitions.
//
// A script returns a table:
//
//	return {
//	  id = 115, name = "Burning Flame", type = "summon",
//	  variables = { usage = 1 }, visible = "usage",
//	  listen = { onDefeated = "all" },
//	  on = {
//	    onEndPhase = function(c, arg) c.damage("pyro", 1) return true end,
//	  },
//	}
//
// Each handler call runs in a fresh sandboxed state built from the
// compiled chunk, so one definition can serve concurrent matches.
type Host struct {
	factory *StateFactory
	logger  *zap.Logger
}

// NewHost creates a script host.
func NewHost(logger *zap.Logger) *Host {
	return &Host{factory: NewStateFactory(), logger: logger}
}

// Definition compiles source and builds the entity definition it returns.
func (h *Host) Definition(name, source string) (*game.EntityDefinition, error) {
	chunk, err := parse.Parse(strings.NewReader(source), name)
	if err != nil {
		return nil, fmt.Errorf("script %s: syntax error: %w", name, err)
	}
	proto, err := lua.Compile(chunk, name)
	if err != nil {
		return nil, fmt.Errorf("script %s: compile error: %w", name, err)
	}

	L, tbl, err := h.load(proto)
	if err != nil {
		return nil, fmt.Errorf("script %s: %w", name, err)
	}
	defer L.Close()

	def := &game.EntityDefinition{
		ID:         int(lua.LVAsNumber(tbl.RawGetString("id"))),
		Name:       lua.LVAsString(tbl.RawGetString("name")),
		VisibleVar: variables.Name(lua.LVAsString(tbl.RawGetString("visible"))),
		HintText:   lua.LVAsString(tbl.RawGetString("hint")),
		Duplicable: lua.LVAsBool(tbl.RawGetString("duplicable")),
		Variables:  variables.Bag{},
		Triggers:   make(map[game.EventName]game.Trigger),
	}
	if def.ID <= 0 || def.Name == "" {
		return nil, fmt.Errorf("script %s: id and name are required", name)
	}
	typ, ok := parseEntityType(lua.LVAsString(tbl.RawGetString("type")))
	if !ok {
		return nil, fmt.Errorf("script %s: unknown entity type %q", name, lua.LVAsString(tbl.RawGetString("type")))
	}
	def.Type = typ

	if tags, ok := tbl.RawGetString("tags").(*lua.LTable); ok {
		tags.ForEach(func(_, v lua.LValue) {
			def.Tags = append(def.Tags, lua.LVAsString(v))
		})
	}
	if vars, ok := tbl.RawGetString("variables").(*lua.LTable); ok {
		vars.ForEach(func(k, v lua.LValue) {
			def.Variables[variables.Name(lua.LVAsString(k))] = int(lua.LVAsNumber(v))
		})
	}

	listen := map[string]game.ListenScope{}
	if l, ok := tbl.RawGetString("listen").(*lua.LTable); ok {
		var bad error
		l.ForEach(func(k, v lua.LValue) {
			scope, ok := parseListen(lua.LVAsString(v))
			if !ok && bad == nil {
				bad = fmt.Errorf("script %s: unknown listen scope %q", name, lua.LVAsString(v))
			}
			listen[lua.LVAsString(k)] = scope
		})
		if bad != nil {
			return nil, bad
		}
	}

	handlers, ok := tbl.RawGetString("on").(*lua.LTable)
	if !ok {
		return nil, fmt.Errorf("script %s: missing handler table", name)
	}
	var bad error
	handlers.ForEach(func(k, v lua.LValue) {
		event := game.EventName(lua.LVAsString(k))
		if _, isFn := v.(*lua.LFunction); !isFn {
			if bad == nil {
				bad = fmt.Errorf("script %s: handler %s is not a function", name, event)
			}
			return
		}
		def.Triggers[event] = game.Trigger{
			Listen: listen[string(event)],
			Handle: h.handler(name, proto, event),
		}
	})
	if bad != nil {
		return nil, bad
	}

	if h.logger != nil {
		h.logger.Debug("compiled entity script",
			zap.String("script", name),
			zap.Int("definition_id", def.ID),
			zap.Int("handlers", len(def.Triggers)),
		)
	}
	return def, nil
}

// load runs the compiled chunk in a fresh state and returns the table it
// returned.
func (h *Host) load(proto *lua.FunctionProto) (*lua.LState, *lua.LTable, error) {
	L, err := h.factory.NewState()
	if err != nil {
		return nil, nil, err
	}
	L.Push(L.NewFunctionFromProto(proto))
	if err := L.PCall(0, 1, nil); err != nil {
		L.Close()
		return nil, nil, fmt.Errorf("failed to run: %w", err)
	}
	tbl, ok := L.Get(-1).(*lua.LTable)
	L.Pop(1)
	if !ok {
		L.Close()
		return nil, nil, fmt.Errorf("must return a table")
	}
	return L, tbl, nil
}

// handler binds one event handler of a script to the Trigger contract. A
// Lua error is logged and counts as not fired.
func (h *Host) handler(name string, proto *lua.FunctionProto, event game.EventName) func(c *game.Context, arg game.EventArg) bool {
	return func(c *game.Context, arg game.EventArg) bool {
		L, tbl, err := h.load(proto)
		if err != nil {
			h.warn(name, event, err)
			return false
		}
		defer L.Close()

		fn := tbl.RawGetString("on").(*lua.LTable).RawGetString(string(event))
		if err := L.CallByParam(lua.P{
			Fn:      fn,
			NRet:    1,
			Protect: true,
		}, contextTable(L, c), argTable(L, arg)); err != nil {
			h.warn(name, event, err)
			return false
		}
		ret := L.Get(-1)
		L.Pop(1)
		return lua.LVAsBool(ret)
	}
}

func (h *Host) warn(name string, event game.EventName, err error) {
	if h.logger != nil {
		h.logger.Warn("entity script failed",
			zap.String("script", name),
			zap.String("event", string(event)),
			zap.Error(err),
		)
	}
}

func parseEntityType(s string) (game.EntityType, bool) {
	for t := game.EntityStatus; t <= game.EntitySupport; t++ {
		if t.String() == s {
			return t, true
		}
	}
	return game.EntityStatus, false
}

func parseListen(s string) (game.ListenScope, bool) {
	switch s {
	case "", "self":
		return game.ListenSelf, true
	case "player":
		return game.ListenPlayer, true
	case "all":
		return game.ListenAll, true
	default:
		return game.ListenSelf, false
	}
}
