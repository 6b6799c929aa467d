// Package bot provides an automatic player. Its answers depend only on the
// requests and notifications it receives, so two matches with the same seed
// and bots play out identically.
package bot

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/gitcg/gitcg-server-go/internal/game"
	"github.com/gitcg/gitcg-server-go/internal/game/dice"
)

// Scores used to rank candidate actions.
const (
	scoreDeclareEnd = 1
	scorePlayCard   = 40
	scoreSkill      = 100
	scorePerDamage  = 10
	scoreDefeat     = 50
)

// Player answers every RPC with a greedy policy: the skill whose preview
// deals the most damage, then any card that will take effect, then
// declaring the end of the round.
type Player struct {
	who    int
	logger *zap.Logger

	mu       sync.Mutex
	last     *game.ExposedGameState
	rerolled int
	notified int
}

// NewPlayer creates a bot seated as who.
func NewPlayer(who int, logger *zap.Logger) *Player {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Player{who: who, logger: logger.With(zap.Int("who", who)), rerolled: -1}
}

// Notify records the latest state.
func (p *Player) Notify(n game.Notification) {
	p.mu.Lock()
	defer p.mu.Unlock()
	st := n.State
	p.last = &st
	p.notified++
}

// Notifications returns how many notifications the bot has received.
func (p *Player) Notifications() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.notified
}

// RPC answers a request.
func (p *Player) RPC(ctx context.Context, req game.RPCRequest) (game.RPCResponse, error) {
	if err := ctx.Err(); err != nil {
		return game.RPCResponse{}, err
	}
	resp := game.RPCResponse{Method: req.Method}

	switch req.Method {
	case game.MethodSwitchHands:
		resp.SwitchHands = &game.SwitchHandsResponse{RemovedHandIDs: []int{}}
	case game.MethodChooseActive:
		if req.ChooseActive == nil || len(req.ChooseActive.Candidates) == 0 {
			return resp, fmt.Errorf("bot: no active character candidates")
		}
		resp.ChooseActive = &game.ChooseActiveResponse{ActiveCharacterID: req.ChooseActive.Candidates[0]}
	case game.MethodRerollDice:
		resp.RerollDice = &game.RerollDiceResponse{DiceToReroll: p.diceToReroll()}
	case game.MethodSelectCard:
		if req.SelectCard == nil || len(req.SelectCard.CandidateDefinitionIDs) == 0 {
			return resp, fmt.Errorf("bot: no card candidates")
		}
		resp.SelectCard = &game.SelectCardResponse{SelectedDefinitionID: req.SelectCard.CandidateDefinitionIDs[0]}
	case game.MethodAction:
		if req.Action == nil {
			return resp, fmt.Errorf("bot: empty action request")
		}
		chosen := p.chooseAction(req.Action.Candidates)
		if chosen < 0 {
			return resp, fmt.Errorf("bot: no valid action among %d candidates", len(req.Action.Candidates))
		}
		c := req.Action.Candidates[chosen]
		used := c.AutoSelectedDice
		if used == nil {
			used = []dice.Type{}
		}
		p.logger.Debug("bot chose action",
			zap.Int("index", chosen),
			zap.String("action", c.Action.Case),
		)
		resp.Action = &game.ActionResponse{ChosenActionIndex: chosen, UsedDice: used}
	default:
		return resp, fmt.Errorf("bot: unsupported method %q", req.Method)
	}
	return resp, nil
}

// diceToReroll rerolls the dice that have no duplicate, once per round.
func (p *Player) diceToReroll() []dice.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last == nil || p.rerolled == p.last.RoundNumber {
		return []dice.Type{}
	}
	p.rerolled = p.last.RoundNumber

	own := p.last.Players[p.who].Dice
	counts := map[dice.Type]int{}
	for _, d := range own {
		counts[d]++
	}
	out := []dice.Type{}
	for _, d := range own {
		if d != dice.Omni && counts[d] == 1 {
			out = append(out, d)
		}
	}
	return out
}

// chooseAction returns the index of the best valid candidate, or -1.
func (p *Player) chooseAction(candidates []game.ExposedAction) int {
	p.mu.Lock()
	last := p.last
	p.mu.Unlock()

	best, bestScore := -1, 0
	for i, c := range candidates {
		if c.Validity != game.ValidityValid.String() {
			continue
		}
		score := p.score(last, c)
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	return best
}

func (p *Player) score(last *game.ExposedGameState, c game.ExposedAction) int {
	switch c.Action.Case {
	case game.ActionDeclareEnd.String():
		return scoreDeclareEnd
	case game.ActionUseSkill.String():
		return scoreSkill + p.damageScore(last, c.Preview)
	case game.ActionPlayCard.String():
		if v, ok := c.Action.Value.(game.ExposedPlayCard); ok && v.WillBeEffectless {
			return 0
		}
		return scorePlayCard
	default:
		return 0
	}
}

// damageScore rates a preview by the health it takes from the opponent.
func (p *Player) damageScore(last *game.ExposedGameState, preview *game.PreviewData) int {
	if last == nil || preview == nil {
		return 0
	}
	health := map[int]int{}
	for _, ch := range last.Players[1-p.who].Characters {
		health[ch.ID] = ch.Health
	}
	score := 0
	for _, d := range preview.Characters {
		old, ok := health[d.ID]
		if !ok {
			continue
		}
		if d.NewHealth != nil && *d.NewHealth < old {
			score += (old - *d.NewHealth) * scorePerDamage
		}
		if d.Defeated {
			score += scoreDefeat
		}
	}
	return score
}
