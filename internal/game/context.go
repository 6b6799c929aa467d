package game

import (
	"slices"

	"github.com/gitcg/gitcg-server-go/internal/game/dice"
	"github.com/gitcg/gitcg-server-go/internal/game/reaction"
	"github.com/gitcg/gitcg-server-go/internal/game/variables"
)

// Context is handed to every effect body: skills, card actions and event
// handlers. All changes go through it; it never returns a mutable alias of
// the live state.
type Context struct {
	exec *executor
	act  *activation
}

// State returns the current snapshot.
func (c *Context) State() *GameState { return c.exec.mutator.State() }

// Registry returns the definition registry of the match.
func (c *Context) Registry() *Registry { return c.exec.registry }

// Caller returns what is running this body.
func (c *Context) Caller() Caller { return c.act.caller }

// Who returns the player running this body.
func (c *Context) Who() int { return c.act.caller.Who }

// Opponent returns the other player.
func (c *Context) Opponent() int { return 1 - c.act.caller.Who }

// Skill returns the skill being resolved, if any.
func (c *Context) Skill() *SkillDefinition { return c.act.skill }

// Preview reports whether this is a speculative run.
func (c *Context) Preview() bool { return c.exec.mode == ModePreview }

// Stopped reports whether execution has halted: a preview reached a point
// needing player input, an I/O error occurred, or the match ended.
func (c *Context) Stopped() bool { return c.exec.halted() }

// Self returns the calling entity, including one removed during this chain.
func (c *Context) Self() *EntityState {
	if c.act.caller.IsCharacter {
		return nil
	}
	if ent, _, ok := c.State().Entity(c.act.caller.ID); ok {
		return ent
	}
	if ent, _, ok := c.State().RemovedEntity(c.act.caller.ID); ok {
		return ent
	}
	return nil
}

// Variable returns a variable of the calling entity or character.
func (c *Context) Variable(name variables.Name) int {
	return c.VariableOf(c.act.caller.ID, name)
}

// VariableOf returns a variable of any character or entity.
func (c *Context) VariableOf(id int, name variables.Name) int {
	st := c.State()
	if ch, _, ok := st.Character(id); ok {
		return ch.Variables.Get(name)
	}
	if ent, _, ok := st.Entity(id); ok {
		return ent.Variables.Get(name)
	}
	if ent, _, ok := st.RemovedEntity(id); ok {
		return ent.Variables.Get(name)
	}
	return 0
}

// SetVariable sets a variable of the calling entity.
func (c *Context) SetVariable(name variables.Name, value int) {
	c.SetVariableOf(c.act.caller.ID, name, value)
}

// AddVariable adds delta to a variable of the calling entity.
func (c *Context) AddVariable(name variables.Name, delta int) {
	c.SetVariable(name, c.Variable(name)+delta)
}

// SetVariableOf sets a variable of a character or entity still in play.
// Health and alive are managed by Damage and Heal.
func (c *Context) SetVariableOf(id int, name variables.Name, value int) {
	if c.Stopped() {
		return
	}
	st := c.State()
	if _, _, ok := st.Entity(id); !ok {
		if _, _, ok := st.Character(id); !ok || name == variables.Health || name == variables.Alive {
			return
		}
	}
	if c.VariableOf(id, name) == value {
		return
	}
	c.exec.mutator.Mutate(ModifyEntityVarMutation{ID: id, Var: name, Value: value})
}

// Damage deals damage to a character, by default the opponent's active
// character.
func (c *Context) Damage(t reaction.DamageType, value int, targetID ...int) {
	if c.Stopped() {
		return
	}
	st := c.State()
	var target *CharacterState
	if len(targetID) > 0 && targetID[0] != 0 {
		ch, _, ok := st.Character(targetID[0])
		if !ok {
			return
		}
		target = ch
	} else {
		target = st.ActiveCharacter(c.Opponent())
	}
	if target == nil {
		return
	}
	_, targetWho, _ := st.Character(target.ID)
	caller := c.act.caller
	skill := c.act.skill
	info := &DamageInfo{
		SourceID:  caller.ID,
		SourceWho: caller.Who,
		TargetID:  target.ID,
		TargetWho: targetWho,
		Type:      t,
		Value:     value,
		FromSkill: skill,
	}
	info.IsSkillMain = skill != nil && skill.Initiative() && caller.IsCharacter &&
		t != reaction.Piercing && targetWho != caller.Who &&
		target.ID == st.Players[targetWho].ActiveCharacterID
	c.exec.dealDamage(info, caller.CharacterID)
}

// Heal restores health to a character, by default the caller's active
// character.
func (c *Context) Heal(value int, targetID ...int) {
	if c.Stopped() {
		return
	}
	_, who, ok := c.State().Character(c.defaultCharacter(targetID))
	if !ok {
		return
	}
	c.exec.heal(&DamageInfo{
		SourceID:  c.act.caller.ID,
		SourceWho: c.act.caller.Who,
		TargetID:  c.defaultCharacter(targetID),
		TargetWho: who,
		Type:      reaction.Heal,
		Value:     value,
		FromSkill: c.act.skill,
	})
}

// ApplyElement attaches an element without dealing damage. Reactions are
// recorded but deal no damage.
func (c *Context) ApplyElement(t reaction.DamageType, targetID int) {
	if c.Stopped() || !t.IsElemental() {
		return
	}
	ch, who, ok := c.State().Character(targetID)
	if !ok || !ch.Alive() {
		return
	}
	res := reaction.Apply(ch.Aura(), t)
	if res.Aura != ch.Aura() {
		c.exec.mutator.Mutate(ModifyEntityVarMutation{ID: ch.ID, Var: variables.Aura, Value: int(res.Aura)})
	}
	if res.Reaction != reaction.None {
		c.exec.mutator.Emit(ExposedMutation{Case: "elementalReaction", Value: ExposedElementalReaction{
			CharacterID:           ch.ID,
			CharacterDefinitionID: ch.Definition.ID,
			Reaction:              res.Reaction.String(),
		}})
		c.exec.recordReaction(ch.ID, res.Reaction)
		c.exec.emitEvent(OnReaction, ReactionArg{Who: who, CharacterID: ch.ID, Reaction: res.Reaction})
	}
}

func (c *Context) defaultCharacter(ids []int) int {
	if len(ids) > 0 && ids[0] != 0 {
		return ids[0]
	}
	if c.act.caller.CharacterID != 0 {
		return c.act.caller.CharacterID
	}
	if ch := c.State().ActiveCharacter(c.Who()); ch != nil {
		return ch.ID
	}
	return 0
}

// GainEnergy adds energy to a character, capped at its maximum.
func (c *Context) GainEnergy(n int, characterID ...int) {
	if c.Stopped() {
		return
	}
	ch, _, ok := c.State().Character(c.defaultCharacter(characterID))
	if !ok || !ch.Alive() {
		return
	}
	next := min(ch.MaxEnergy(), max(0, ch.Energy()+n))
	if next != ch.Energy() {
		c.exec.mutator.Mutate(ModifyEntityVarMutation{ID: ch.ID, Var: variables.Energy, Value: next})
	}
}

// CreateEntity creates an entity in area and returns its id, or 0.
func (c *Context) CreateEntity(definitionID int, area Area) int {
	if c.Stopped() {
		return 0
	}
	def, err := c.exec.registry.Entity(definitionID)
	if err != nil {
		panic(invariantf(string(KindCreateEntity), "%v", err))
	}
	return c.exec.createEntity(def, area)
}

// Summon creates a summon on the caller's side.
func (c *Context) Summon(definitionID int) int {
	return c.CreateEntity(definitionID, Area{Who: c.Who(), Zone: ZoneSummons})
}

// CreateSupport creates a support on the caller's side.
func (c *Context) CreateSupport(definitionID int) int {
	return c.CreateEntity(definitionID, Area{Who: c.Who(), Zone: ZoneSupports})
}

// CombatStatus creates a combat status on the given side.
func (c *Context) CombatStatus(definitionID int, who int) int {
	return c.CreateEntity(definitionID, Area{Who: who, Zone: ZoneCombatStatuses})
}

// CharacterStatus attaches a status or equipment to a character.
func (c *Context) CharacterStatus(definitionID int, characterID int) int {
	_, who, ok := c.State().Character(characterID)
	if !ok {
		return 0
	}
	return c.CreateEntity(definitionID, Area{Who: who, Zone: ZoneCharacter, CharacterID: characterID})
}

// Dispose removes an entity from play.
func (c *Context) Dispose(id int) {
	if c.Stopped() {
		return
	}
	c.exec.dispose(id)
}

// DisposeSelf removes the calling entity.
func (c *Context) DisposeSelf() {
	c.Dispose(c.act.caller.ID)
}

// SwitchActive makes a character of player who active.
func (c *Context) SwitchActive(who, characterID int) {
	if c.Stopped() {
		return
	}
	ch, owner, ok := c.State().Character(characterID)
	if !ok || owner != who || !ch.Alive() {
		return
	}
	c.exec.switchActive(who, characterID, false)
}

// SwitchNext switches player who to the next alive character.
func (c *Context) SwitchNext(who int) {
	if next := c.State().NextAliveCharacter(who, 1); next != nil {
		c.SwitchActive(who, next.ID)
	}
}

// SwitchPrev switches player who to the previous alive character.
func (c *Context) SwitchPrev(who int) {
	if prev := c.State().NextAliveCharacter(who, -1); prev != nil {
		c.SwitchActive(who, prev.ID)
	}
}

// DrawCards draws n cards for the caller.
func (c *Context) DrawCards(n int) {
	if c.Stopped() {
		return
	}
	c.exec.drawCards(c.Who(), n)
}

// CreateHandCard creates a new card in the caller's hand.
func (c *Context) CreateHandCard(definitionID int) {
	if c.Stopped() {
		return
	}
	def, err := c.exec.registry.Card(definitionID)
	if err != nil {
		panic(invariantf(string(KindCreateCard), "%v", err))
	}
	m := c.exec.mutator
	m.Mutate(CreateCardMutation{Who: c.Who(), Value: &CardState{ID: m.allocID(), Definition: def}, Target: CardZoneHands, TargetIndex: -1})
	if len(m.State().Players[c.Who()].Hands) > m.State().Rules.MaxHands {
		hands := m.State().Players[c.Who()].Hands
		m.Mutate(RemoveCardMutation{Who: c.Who(), CardID: hands[len(hands)-1].ID, Where: CardZoneHands, Reason: RemoveCardOverflow})
	}
}

// GenerateDice adds n dice of type t to the caller. Unspecified rolls
// random elemental faces.
func (c *Context) GenerateDice(t dice.Type, n int) {
	if c.Stopped() || n <= 0 {
		return
	}
	var ds []dice.Type
	if t == dice.Unspecified {
		ds = c.exec.randomDice(n)
	} else {
		ds = slices.Repeat([]dice.Type{t}, n)
	}
	c.exec.generateDice(c.Who(), ds)
}

// TransformDefinition replaces the definition of a character or entity.
func (c *Context) TransformDefinition(id, definitionID int) {
	if c.Stopped() {
		return
	}
	st := c.State()
	var def Definition
	var err error
	if _, _, ok := st.Character(id); ok {
		def, err = c.exec.registry.Character(definitionID)
	} else {
		def, err = c.exec.registry.Entity(definitionID)
	}
	if err != nil {
		panic(invariantf(string(KindTransformDefinition), "%v", err))
	}
	c.exec.mutator.Mutate(TransformDefinitionMutation{ID: id, Definition: def})
}

// SwapCharacters exchanges the lineup positions of two characters of the
// same player. The active character does not change.
func (c *Context) SwapCharacters(first, second int) {
	if c.Stopped() || first == second {
		return
	}
	_, who, ok1 := c.State().Character(first)
	_, other, ok2 := c.State().Character(second)
	if !ok1 || !ok2 || who != other {
		panic(invariantf(string(KindSwapCharacterPosition), "characters %d/%d are not in one lineup", first, second))
	}
	c.exec.mutator.Mutate(SwapCharacterPositionMutation{Who: who, First: first, Second: second})
}

// UseSkill resolves another skill of the calling character as a
// sub-skill.
func (c *Context) UseSkill(skillID int) {
	if c.Stopped() {
		return
	}
	skill, err := c.exec.registry.Skill(skillID)
	if err != nil {
		panic(invariantf("", "%v", err))
	}
	characterID := c.defaultCharacter(nil)
	if characterID == 0 {
		return
	}
	c.exec.useSkill(c.Who(), characterID, skill)
}

// SelectCard asks the caller to pick one of the candidate card
// definitions and creates it in their hand. A preview stops here.
func (c *Context) SelectCard(candidates []int) {
	if c.Stopped() || len(candidates) == 0 {
		return
	}
	if c.Preview() {
		c.exec.stop()
		return
	}
	e := c.exec
	if err := e.mutator.Pause(e.ctx, true); err != nil {
		e.err = err
		return
	}
	resp, err := e.rpc(e.ctx, c.Who(), RPCRequest{Method: MethodSelectCard, SelectCard: &SelectCardRequest{CandidateDefinitionIDs: candidates}})
	if err != nil {
		e.err = err
		return
	}
	if !slices.Contains(candidates, resp.SelectCard.SelectedDefinitionID) {
		e.err = &IOError{Who: c.Who(), Method: MethodSelectCard, Err: ErrMalformedResponse}
		return
	}
	c.CreateHandCard(resp.SelectCard.SelectedDefinitionID)
}

// RerollDice lets the caller reroll dice the given number of times. A
// preview stops here.
func (c *Context) RerollDice(times int) {
	if c.Stopped() || times <= 0 {
		return
	}
	if c.Preview() {
		c.exec.stop()
		return
	}
	if err := c.exec.rerollDice(c.Who(), times); err != nil {
		c.exec.err = err
	}
}

// Random returns a deterministic pseudo-random value in [0, n).
func (c *Context) Random(n int) int {
	return c.exec.mutator.stepRandom(n)
}

// ActiveCharacter returns the active character of player who.
func (c *Context) ActiveCharacter(who int) *CharacterState {
	return c.State().ActiveCharacter(who)
}

// Characters returns the alive characters of player who, active first.
func (c *Context) Characters(who int) []*CharacterState {
	var out []*CharacterState
	for _, ch := range c.State().CharactersFromActive(who) {
		if ch.Alive() {
			out = append(out, ch)
		}
	}
	return out
}

// FindEntity returns the first entity of a definition on player who's
// side.
func (c *Context) FindEntity(who, definitionID int) *EntityState {
	for _, ent := range allEntities(c.State(), who) {
		if ent.Definition.ID == definitionID {
			return ent
		}
	}
	return nil
}

// Summons returns the summons of player who.
func (c *Context) Summons(who int) []*EntityState {
	return slices.Clone(c.State().Players[who].Summons)
}
