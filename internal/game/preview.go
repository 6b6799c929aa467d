package game

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/gitcg/gitcg-server-go/internal/game/dice"
	"github.com/gitcg/gitcg-server-go/internal/game/reaction"
)

// PreviewData is the outcome of a speculative run of one action.
type PreviewData struct {
	Characters         []CharacterDiff  `json:"characters"`
	Entities           []EntityDiff     `json:"entities"`
	NewEntities        []CreatedEntity  `json:"newEntities"`
	Reactions          []ReactionRecord `json:"reactions"`
	MainDamageTargetID int              `json:"mainDamageTargetId,omitempty"`
	// Stopped is set when the run reached a point needing player input;
	// the diff covers what happened before it.
	Stopped bool `json:"stopped"`
}

// CharacterDiff lists what changed on one character.
type CharacterDiff struct {
	ID              int  `json:"id"`
	NewHealth       *int `json:"newHealth,omitempty"`
	NewEnergy       *int `json:"newEnergy,omitempty"`
	NewAura         *int `json:"newAura,omitempty"`
	NewDefinitionID *int `json:"newDefinitionId,omitempty"`
	Defeated        bool `json:"defeated"`
	BecameActive    bool `json:"becameActive"`
}

// EntityDiff lists what changed on one entity.
type EntityDiff struct {
	ID               int  `json:"id"`
	NewVariableValue *int `json:"newVariableValue,omitempty"`
	NewDefinitionID  *int `json:"newDefinitionId,omitempty"`
	Disposed         bool `json:"disposed"`
}

// CreatedEntity is a summon or support created by the action.
type CreatedEntity struct {
	ID           int  `json:"id"`
	DefinitionID int  `json:"definitionId"`
	Who          int  `json:"who"`
	Zone         Zone `json:"zone"`
}

// ReactionRecord is one reaction that occurred.
type ReactionRecord struct {
	CharacterID int           `json:"characterId"`
	Reaction    reaction.Type `json:"reaction"`
}

// Previewer enumerates legal actions and previews them. It only reads the
// states handed to it; every speculative run works on a private fork.
type Previewer struct {
	registry *Registry
	logger   *zap.Logger
}

// NewPreviewer creates a Previewer.
func NewPreviewer(reg *Registry, logger *zap.Logger) *Previewer {
	return &Previewer{registry: reg, logger: logger}
}

// AvailableActions returns every candidate action of player who with its
// final cost, validity, auto-selected dice, and a preview for the valid
// ones.
func (p *Previewer) AvailableActions(ctx context.Context, st *GameState, who int) []*ActionInfo {
	base := newExecutor(ctx, NewMutator(st, MutatorOptions{}), p.registry, nil, ModePreview, nil)
	actions := base.baseActions(who)
	for _, a := range actions {
		p.finalize(ctx, st, a)
		if a.Validity == ValidityValid {
			a.Preview = p.Preview(ctx, st, a)
		}
	}
	return actions
}

// finalize runs the modifyAction events on a private fork, then the
// energy and dice checks.
func (p *Previewer) finalize(ctx context.Context, st *GameState, a *ActionInfo) {
	scratch := newExecutor(ctx, NewMutator(st, MutatorOptions{}), p.registry, nil, ModePreview, nil)
	scratch.modifyAction(a)
	finalizeValidity(st, a)
}

// Preview runs a on a private copy of st and returns the resulting diff.
// st and a are not changed; calling Preview again gives the same result.
func (p *Previewer) Preview(ctx context.Context, st *GameState, a *ActionInfo) *PreviewData {
	m := NewMutator(st, MutatorOptions{})
	exec := newExecutor(ctx, m, p.registry, nil, ModePreview, nil)
	work := a.clone()
	exec.runAction(work, a.AutoSelectedDice)
	data := diffStates(st, m.State())
	data.Reactions = exec.record.reactions
	if data.Reactions == nil {
		data.Reactions = []ReactionRecord{}
	}
	data.MainDamageTargetID = exec.record.mainDamageTarget
	data.Stopped = exec.outcome() == OutcomeStopped
	if p.logger != nil {
		p.logger.Debug("action previewed",
			zap.String("action", a.Type.String()),
			zap.Int("who", a.Who),
			zap.Int("mutations", m.LogLen()),
			zap.Bool("stopped", data.Stopped),
		)
	}
	return data
}

func diffStates(before, after *GameState) *PreviewData {
	data := &PreviewData{
		Characters:  []CharacterDiff{},
		Entities:    []EntityDiff{},
		NewEntities: []CreatedEntity{},
	}
	intp := func(v int) *int { return &v }

	for who := 0; who < 2; who++ {
		for _, old := range before.Players[who].Characters {
			now, _, ok := after.Character(old.ID)
			if !ok {
				continue
			}
			d := CharacterDiff{ID: old.ID}
			changed := false
			if now.Health() != old.Health() {
				d.NewHealth, changed = intp(now.Health()), true
			}
			if now.Energy() != old.Energy() {
				d.NewEnergy, changed = intp(now.Energy()), true
			}
			if now.Aura() != old.Aura() {
				d.NewAura, changed = intp(int(now.Aura())), true
			}
			if now.Definition.ID != old.Definition.ID {
				d.NewDefinitionID, changed = intp(now.Definition.ID), true
			}
			if old.Alive() && !now.Alive() {
				d.Defeated, changed = true, true
			}
			if after.Players[who].ActiveCharacterID == old.ID && before.Players[who].ActiveCharacterID != old.ID {
				d.BecameActive, changed = true, true
			}
			if changed {
				data.Characters = append(data.Characters, d)
			}
		}

		for _, old := range allEntities(before, who) {
			now, _, ok := after.Entity(old.ID)
			if !ok {
				data.Entities = append(data.Entities, EntityDiff{ID: old.ID, Disposed: true})
				continue
			}
			d := EntityDiff{ID: old.ID}
			changed := false
			if name := now.Definition.VisibleVar; name != "" && now.Variables.Get(name) != old.Variables.Get(name) {
				d.NewVariableValue, changed = intp(now.Variables.Get(name)), true
			}
			if now.Definition.ID != old.Definition.ID {
				d.NewDefinitionID, changed = intp(now.Definition.ID), true
			}
			if changed {
				data.Entities = append(data.Entities, d)
			}
		}

		for _, z := range []struct {
			zone  Zone
			items []*EntityState
		}{
			{ZoneSummons, after.Players[who].Summons},
			{ZoneSupports, after.Players[who].Supports},
		} {
			for _, e := range z.items {
				if _, _, existed := before.Entity(e.ID); !existed {
					data.NewEntities = append(data.NewEntities, CreatedEntity{ID: e.ID, DefinitionID: e.Definition.ID, Who: who, Zone: z.zone})
				}
			}
		}
	}

	sort.Slice(data.Characters, func(i, j int) bool { return data.Characters[i].ID < data.Characters[j].ID })
	sort.Slice(data.Entities, func(i, j int) bool { return data.Entities[i].ID < data.Entities[j].ID })
	sort.Slice(data.NewEntities, func(i, j int) bool { return data.NewEntities[i].ID < data.NewEntities[j].ID })
	return data
}

// ExposedAction is the wire form of an ActionInfo.
type ExposedAction struct {
	Action           ExposedMutation `json:"action"`
	RequiredCost     []dice.Entry    `json:"requiredCost"`
	AutoSelectedDice []dice.Type     `json:"autoSelectedDice"`
	Validity         string          `json:"validity"`
	IsFast           bool            `json:"isFast"`
	Preview          *PreviewData    `json:"preview,omitempty"`
}

type ExposedUseSkill struct {
	SkillDefinitionID  int   `json:"skillDefinitionId"`
	TargetIDs          []int `json:"targetIds"`
	MainDamageTargetID int   `json:"mainDamageTargetId,omitempty"`
}

type ExposedPlayCard struct {
	CardID           int   `json:"cardId"`
	CardDefinitionID int   `json:"cardDefinitionId"`
	TargetIDs        []int `json:"targetIds"`
	WillBeEffectless bool  `json:"willBeEffectless"`
}

type ExposedSwitchActiveAction struct {
	CharacterID           int `json:"characterId"`
	CharacterDefinitionID int `json:"characterDefinitionId"`
}

type ExposedElementalTuning struct {
	RemovedCardID int       `json:"removedCardId"`
	TargetDice    dice.Type `json:"targetDice"`
}

// ExposeAction flattens an action for the wire.
func ExposeAction(st *GameState, a *ActionInfo) ExposedAction {
	out := ExposedAction{
		RequiredCost:     a.Cost.Entries(),
		AutoSelectedDice: a.AutoSelectedDice,
		Validity:         a.Validity.String(),
		IsFast:           a.Fast,
		Preview:          a.Preview,
	}
	if out.AutoSelectedDice == nil {
		out.AutoSelectedDice = []dice.Type{}
	}
	switch a.Type {
	case ActionUseSkill:
		v := ExposedUseSkill{SkillDefinitionID: a.Skill.ID, TargetIDs: []int{}}
		if a.Preview != nil {
			v.MainDamageTargetID = a.Preview.MainDamageTargetID
		}
		out.Action = ExposedMutation{Case: a.Type.String(), Value: v}
	case ActionPlayCard:
		targets := a.Targets
		if targets == nil {
			targets = []int{}
		}
		out.Action = ExposedMutation{Case: a.Type.String(), Value: ExposedPlayCard{
			CardID:           a.Card.ID,
			CardDefinitionID: a.Card.Definition.ID,
			TargetIDs:        targets,
			WillBeEffectless: a.WillBeEffectless,
		}}
	case ActionSwitchActive:
		v := ExposedSwitchActiveAction{CharacterID: a.To}
		if ch, _, ok := st.Character(a.To); ok {
			v.CharacterDefinitionID = ch.Definition.ID
		}
		out.Action = ExposedMutation{Case: a.Type.String(), Value: v}
	case ActionElementalTuning:
		out.Action = ExposedMutation{Case: a.Type.String(), Value: ExposedElementalTuning{
			RemovedCardID: a.Card.ID,
			TargetDice:    a.TargetDice,
		}}
	case ActionDeclareEnd:
		out.Action = ExposedMutation{Case: a.Type.String()}
	}
	return out
}
