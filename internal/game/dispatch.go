package game

import (
	"go.uber.org/zap"

	"github.com/gitcg/gitcg-server-go/internal/game/variables"
)

// listener is one handler resolved for a dispatch.
type listener struct {
	who         int
	characterID int // owning character, 0 for player-level zones
	id          int // entity id, or the character id for passive skills
	isCharacter bool
	trigger     Trigger
}

// collectListeners resolves every handler of event in dispatch order: for
// the acting player then the other player, summons, supports, characters
// (active first, each followed by its attached entities), combat statuses.
// Within a zone, entities keep creation order.
func collectListeners(st *GameState, event EventName, actor int) []listener {
	var out []listener
	for _, who := range [2]int{actor, 1 - actor} {
		p := st.Players[who]
		addEntities := func(items []*EntityState, characterID int) {
			for _, e := range items {
				if t, ok := e.Definition.Triggers[event]; ok {
					out = append(out, listener{who: who, characterID: characterID, id: e.ID, trigger: t})
				}
			}
		}
		addEntities(p.Summons, 0)
		addEntities(p.Supports, 0)
		for _, ch := range st.CharactersFromActive(who) {
			if t, ok := ch.Definition.Triggers[event]; ok && (ch.Alive() || event == OnDefeated) {
				out = append(out, listener{who: who, characterID: ch.ID, id: ch.ID, isCharacter: true, trigger: t})
			}
			addEntities(ch.Entities, ch.ID)
		}
		addEntities(p.CombatStatuses, 0)
	}
	return out
}

// receives applies the listen scope.
func (l listener) receives(arg EventArg) bool {
	who, characterID := arg.Subject()
	switch l.trigger.Listen {
	case ListenAll:
		return true
	case ListenPlayer:
		return who == Broadcast || who == l.who
	default:
		if who == Broadcast {
			return true
		}
		if who != l.who {
			return false
		}
		return characterID == 0 || l.characterID == 0 || l.characterID == characterID
	}
}

// dispatch delivers one event to every listening handler. It returns
// early when execution halts.
func (e *executor) dispatch(event EventName, arg EventArg) {
	if e.halted() {
		return
	}
	st := e.mutator.State()
	who, _ := arg.Subject()
	actor := who
	if actor == Broadcast {
		actor = st.CurrentTurn
	}

	if event == OnDispose {
		if d, ok := arg.(DisposeArg); ok {
			if t, ok := d.Entity.Definition.Triggers[OnDispose]; ok {
				e.invoke(listener{who: d.Area.Who, characterID: d.Area.CharacterID, id: d.Entity.ID, trigger: t}, event, arg, d.Entity)
			}
		}
	}

	for _, l := range collectListeners(st, event, actor) {
		if e.halted() {
			return
		}
		if !l.receives(arg) {
			continue
		}
		var self *EntityState
		if !l.isCharacter {
			// the entity may have left play during an earlier handler
			ent, _, ok := e.mutator.State().Entity(l.id)
			if !ok {
				continue
			}
			if ent.Variables.Has(variables.UsagePerRound) && ent.Variables.Get(variables.UsagePerRound) <= 0 {
				continue
			}
			self = ent
		} else if ch, _, ok := e.mutator.State().Character(l.id); !ok || (!ch.Alive() && event != OnDefeated) {
			continue
		}
		e.invoke(l, event, arg, self)
	}
}

// invoke runs one handler in its own activation and consumes usage when
// it fired.
func (e *executor) invoke(l listener, event EventName, arg EventArg, self *EntityState) {
	caller := Caller{Who: l.who, ID: l.id, CharacterID: l.characterID, IsCharacter: l.isCharacter}
	if self != nil {
		caller.Entity = self.Definition
	}
	fired := false
	e.run(caller, nil, func(c *Context) {
		if l.trigger.Filter != nil && !l.trigger.Filter(c, arg) {
			return
		}
		if l.trigger.Handle != nil {
			fired = l.trigger.Handle(c, arg)
		}
	})
	if e.logger != nil {
		e.logger.Debug("handler invoked",
			zap.String("event", string(event)),
			zap.Int("listener", l.id),
			zap.Bool("fired", fired),
		)
	}
	if fired && !l.isCharacter && !e.stopped {
		e.consumeUsage(l.id)
	}
}

// consumeUsage decrements usagePerRound and usage of an entity that fired
// and disposes it when its usage runs out.
func (e *executor) consumeUsage(id int) {
	ent, _, ok := e.mutator.State().Entity(id)
	if !ok {
		return
	}
	if ent.Variables.Has(variables.UsagePerRound) {
		e.mutator.Mutate(ModifyEntityVarMutation{ID: id, Var: variables.UsagePerRound, Value: max(0, ent.Variables.Get(variables.UsagePerRound)-1)})
	}
	if ent.Variables.Has(variables.Usage) {
		left := max(0, ent.Variables.Get(variables.Usage)-1)
		e.mutator.Mutate(ModifyEntityVarMutation{ID: id, Var: variables.Usage, Value: left})
		if left == 0 {
			e.dispose(id)
		}
	}
}
