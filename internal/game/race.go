package game

import (
	"encoding/json"
	"math/rand"

	"github.com/blockparty/server/internal/domain"
)

type Coin struct {
	ID        int     `json:"id"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Collected bool    `json:"collected"`
}

type raceState struct {
	coins []Coin
}

func newRaceState() *raceState {
	coins := make([]Coin, CoinCount)
	for i := range coins {
		coins[i] = Coin{
			ID: i,
			X:  rand.Float64() * ArenaWidth,
			Y:  rand.Float64() * ArenaHeight,
		}
	}
	return &raceState{coins: coins}
}

func (s *raceState) Mode() Mode { return ModeRace }

func (s *raceState) Handlers() map[string]ActionHandler {
	return map[string]ActionHandler{
		"collectCoin": s.collectCoin,
	}
}

func (s *raceState) collectCoin(p *domain.Player, data json.RawMessage) (map[string]any, bool) {
	var req struct {
		CoinID int `json:"coinId"`
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, false
	}
	if req.CoinID < 0 || req.CoinID >= len(s.coins) {
		return nil, false
	}
	// Double collection is a no-op, not an error.
	if s.coins[req.CoinID].Collected {
		return nil, false
	}
	s.coins[req.CoinID].Collected = true
	p.Score += CoinReward
	return map[string]any{
		"playerId": p.ID,
		"coinId":   req.CoinID,
		"score":    p.Score,
	}, true
}

func (s *raceState) Step(w *World, dt float64) {}

func (s *raceState) Snapshot(w *World) Snapshot {
	coins := make([]Coin, len(s.coins))
	copy(coins, s.coins)
	return Snapshot{
		Mode:       ModeRace,
		Players:    w.Views(),
		TeamScores: cloneTeamScores(w),
		Coins:      coins,
	}
}

func cloneTeamScores(w *World) map[domain.Team]int {
	return map[domain.Team]int{
		domain.TeamRed:  w.TeamScores[domain.TeamRed],
		domain.TeamBlue: w.TeamScores[domain.TeamBlue],
	}
}
