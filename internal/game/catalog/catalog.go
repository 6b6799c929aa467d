// Package catalog builds the definition Registry shipped with the server:
// metadata from the embedded YAML, effect bodies from Go and Lua.
package catalog

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"sort"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/gitcg/gitcg-server-go/internal/game"
	"github.com/gitcg/gitcg-server-go/internal/game/dice"
	"github.com/gitcg/gitcg-server-go/internal/game/script"
	"github.com/gitcg/gitcg-server-go/internal/game/variables"
)

//go:embed data/catalog.yaml
var catalogYAML []byte

//go:embed scripts/*.lua
var scriptFS embed.FS

type skillMeta struct {
	ID   int    `yaml:"id"`
	Name string `yaml:"name"`
	Type string `yaml:"type"`
	Cost string `yaml:"cost"`
}

type characterMeta struct {
	ID      int         `yaml:"id"`
	Name    string      `yaml:"name"`
	Tags    []string    `yaml:"tags"`
	Element string      `yaml:"element"`
	Health  int         `yaml:"health"`
	Energy  int         `yaml:"energy"`
	Skills  []skillMeta `yaml:"skills"`
}

type entityMeta struct {
	ID         int            `yaml:"id"`
	Name       string         `yaml:"name"`
	Type       string         `yaml:"type"`
	Tags       []string       `yaml:"tags"`
	Variables  map[string]int `yaml:"variables"`
	Visible    string         `yaml:"visible"`
	Hint       string         `yaml:"hint"`
	Duplicable bool           `yaml:"duplicable"`
}

type cardMeta struct {
	ID     int      `yaml:"id"`
	Name   string   `yaml:"name"`
	Type   string   `yaml:"type"`
	Tags   []string `yaml:"tags"`
	Cost   string   `yaml:"cost"`
	Entity int      `yaml:"entity"`
}

type reactionMeta struct {
	Frozen            int `yaml:"frozen"`
	CrystallizeShield int `yaml:"crystallizeShield"`
	DendroCore        int `yaml:"dendroCore"`
	CatalyzingField   int `yaml:"catalyzingField"`
	BurningFlame      int `yaml:"burningFlame"`
}

type catalogFile struct {
	Characters []characterMeta      `yaml:"characters"`
	Entities   []entityMeta         `yaml:"entities"`
	Cards      []cardMeta           `yaml:"cards"`
	Reactions  reactionMeta         `yaml:"reactions"`
	Decks      map[string]game.Deck `yaml:"decks"`
}

// Catalog is the loaded registry and the named sample decks.
type Catalog struct {
	Registry *game.Registry
	decks    map[string]game.Deck
}

// Deck returns a sample deck by name.
func (c *Catalog) Deck(name string) (game.Deck, error) {
	d, ok := c.decks[name]
	if !ok {
		return game.Deck{}, fmt.Errorf("unknown deck %q", name)
	}
	return d, nil
}

// DeckNames lists the sample decks in name order.
func (c *Catalog) DeckNames() []string {
	names := make([]string, 0, len(c.decks))
	for name := range c.decks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Load builds the catalog. Every skill and event card must have a body.
func Load(logger *zap.Logger) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(catalogYAML, &file); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	b := game.NewRegistryBuilder()

	for _, cm := range file.Characters {
		def, err := buildCharacter(cm)
		if err != nil {
			return nil, err
		}
		b.AddCharacter(def)
	}

	for _, em := range file.Entities {
		def, err := buildEntity(em)
		if err != nil {
			return nil, err
		}
		b.AddEntity(def)
	}

	host := script.NewHost(logger)
	scripts, err := fs.Glob(scriptFS, "scripts/*.lua")
	if err != nil {
		return nil, fmt.Errorf("failed to list scripts: %w", err)
	}
	for _, p := range scripts {
		src, err := scriptFS.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", p, err)
		}
		def, err := host.Definition(path.Base(p), string(src))
		if err != nil {
			return nil, err
		}
		b.AddEntity(def)
	}

	for _, cm := range file.Cards {
		def, err := buildCard(cm)
		if err != nil {
			return nil, err
		}
		b.AddCard(def)
	}

	r := file.Reactions
	b.SetReactionEntities(game.ReactionEntities{
		FrozenStatus:      r.Frozen,
		CrystallizeShield: r.CrystallizeShield,
		DendroCore:        r.DendroCore,
		CatalyzingField:   r.CatalyzingField,
		BurningFlame:      r.BurningFlame,
	})

	reg, err := b.Build()
	if err != nil {
		return nil, err
	}
	for name, deck := range file.Decks {
		for _, id := range deck.Characters {
			if _, err := reg.Character(id); err != nil {
				return nil, fmt.Errorf("deck %s: %w", name, err)
			}
		}
		for _, id := range deck.Cards {
			if _, err := reg.Card(id); err != nil {
				return nil, fmt.Errorf("deck %s: %w", name, err)
			}
		}
	}

	if logger != nil {
		logger.Info("catalog loaded",
			zap.Int("characters", len(file.Characters)),
			zap.Int("entities", len(file.Entities)+len(scripts)),
			zap.Int("cards", len(file.Cards)),
			zap.Int("decks", len(file.Decks)),
		)
	}
	return &Catalog{Registry: reg, decks: file.Decks}, nil
}

func buildCharacter(cm characterMeta) (*game.CharacterDefinition, error) {
	element, ok := dice.ParseType(cm.Element)
	if !ok || !element.IsElemental() {
		return nil, fmt.Errorf("character %d: invalid element %q", cm.ID, cm.Element)
	}
	def := &game.CharacterDefinition{
		ID:        cm.ID,
		Name:      cm.Name,
		Tags:      cm.Tags,
		Element:   element,
		MaxHealth: cm.Health,
		MaxEnergy: cm.Energy,
		Triggers:  passiveTriggers[cm.ID],
	}
	for _, sm := range cm.Skills {
		typ, ok := parseSkillType(sm.Type)
		if !ok {
			return nil, fmt.Errorf("skill %d: unknown type %q", sm.ID, sm.Type)
		}
		cost, err := dice.ParseRequirement(sm.Cost)
		if err != nil {
			return nil, fmt.Errorf("skill %d: %w", sm.ID, err)
		}
		body, ok := skillBodies[sm.ID]
		if !ok {
			return nil, fmt.Errorf("skill %d has no body", sm.ID)
		}
		def.Skills = append(def.Skills, &game.SkillDefinition{
			ID:     sm.ID,
			Name:   sm.Name,
			Type:   typ,
			Cost:   cost,
			Action: body,
		})
	}
	return def, nil
}

func buildEntity(em entityMeta) (*game.EntityDefinition, error) {
	typ, ok := parseEntityType(em.Type)
	if !ok {
		return nil, fmt.Errorf("entity %d: unknown type %q", em.ID, em.Type)
	}
	vars := variables.Bag{}
	for k, v := range em.Variables {
		vars[variables.Name(k)] = v
	}
	triggers := entityTriggers[em.ID]
	descriptions := entityDescriptions[em.ID]
	if slices.Contains(em.Tags, game.TagShield) {
		if !vars.Has(variables.Shield) {
			return nil, fmt.Errorf("entity %d: shield entity needs a shield variable", em.ID)
		}
		if triggers == nil {
			triggers = shield()
		}
		if descriptions == nil {
			descriptions = map[string]game.DescriptionFunc{"shield": variableText(variables.Shield)}
		}
	}
	return &game.EntityDefinition{
		ID:           em.ID,
		Name:         em.Name,
		Type:         typ,
		Tags:         em.Tags,
		Variables:    vars,
		VisibleVar:   variables.Name(em.Visible),
		HintText:     em.Hint,
		Duplicable:   em.Duplicable,
		Triggers:     triggers,
		Descriptions: descriptions,
	}, nil
}

func buildCard(cm cardMeta) (*game.CardDefinition, error) {
	cost, err := dice.ParseRequirement(cm.Cost)
	if err != nil {
		return nil, fmt.Errorf("card %d: %w", cm.ID, err)
	}
	def := &game.CardDefinition{
		ID:   cm.ID,
		Name: cm.Name,
		Tags: cm.Tags,
		Cost: cost,
	}
	switch cm.Type {
	case "support":
		def.Type = game.CardSupport
		def.Action = supportCard(cm.Entity)
	case "equipment":
		def.Type = game.CardEquipment
		def.Targets = ownAliveCharacters
		def.Action = equipmentCard(cm.Entity)
	case "event":
		def.Type = game.CardEvent
		body, ok := eventCards[cm.ID]
		if !ok {
			return nil, fmt.Errorf("card %d has no body", cm.ID)
		}
		if slices.Contains(cm.Tags, game.TagFood) {
			if body.targets == nil {
				return nil, fmt.Errorf("card %d: food card needs a character target", cm.ID)
			}
			body = food(body)
		}
		def.Targets = body.targets
		def.Filter = body.filter
		def.Action = body.action
	default:
		return nil, fmt.Errorf("card %d: unknown type %q", cm.ID, cm.Type)
	}
	if (def.Type == game.CardSupport || def.Type == game.CardEquipment) && cm.Entity == 0 {
		return nil, fmt.Errorf("card %d: %s card needs an entity", cm.ID, cm.Type)
	}
	return def, nil
}

func parseSkillType(s string) (game.SkillType, bool) {
	for t := game.SkillNormal; t <= game.SkillBurst; t++ {
		if t.String() == s {
			return t, true
		}
	}
	return game.SkillNormal, false
}

func parseEntityType(s string) (game.EntityType, bool) {
	for t := game.EntityStatus; t <= game.EntitySupport; t++ {
		if t.String() == s {
			return t, true
		}
	}
	return game.EntityStatus, false
}
