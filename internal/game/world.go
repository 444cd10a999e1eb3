package game

import (
	"math/rand"
	"sort"
	"time"

	"github.com/blockparty/server/internal/domain"
)

// World is the per-room player table plus the team score tally that
// survives mode transitions. It is confined to the owning room's
// goroutine; nothing here is safe for concurrent use.
type World struct {
	Players    map[domain.PlayerID]*domain.Player
	TeamScores map[domain.Team]int
}

func NewWorld() *World {
	return &World{
		Players: make(map[domain.PlayerID]*domain.Player),
		TeamScores: map[domain.Team]int{
			domain.TeamRed:  0,
			domain.TeamBlue: 0,
		},
	}
}

// AddPlayer creates a player at a random spawn point. Team balance is
// recomputed from current membership on every join; red wins ties.
func (w *World) AddPlayer(id domain.PlayerID, name string) (*domain.Player, error) {
	if len(w.Players) >= domain.RoomCapacity {
		return nil, domain.ErrRoomFull
	}
	p := &domain.Player{
		ID:     id,
		Name:   name,
		Team:   w.balancedTeam(),
		X:      rand.Float64() * ArenaWidth,
		Y:      rand.Float64() * ArenaHeight,
		Health: MaxHealth,
	}
	w.Players[id] = p
	return p, nil
}

// RemovePlayer is total: removing an unknown id is a no-op so that
// disconnects racing in-flight actions never fail.
func (w *World) RemovePlayer(id domain.PlayerID) {
	delete(w.Players, id)
}

func (w *World) Count() int { return len(w.Players) }

func (w *World) balancedTeam() domain.Team {
	red, blue := 0, 0
	for _, p := range w.Players {
		switch p.Team {
		case domain.TeamRed:
			red++
		case domain.TeamBlue:
			blue++
		}
	}
	if blue < red {
		return domain.TeamBlue
	}
	return domain.TeamRed
}

// PrunePowerUps drops expired power-ups; called once per tick.
func (w *World) PrunePowerUps(now time.Time) {
	for _, p := range w.Players {
		if len(p.PowerUps) == 0 {
			continue
		}
		kept := p.PowerUps[:0]
		for _, pu := range p.PowerUps {
			if pu.ExpiresAt.After(now) {
				kept = append(kept, pu)
			}
		}
		p.PowerUps = kept
	}
}

// PlayerView is a player's broadcast-visible slice of state.
type PlayerView struct {
	ID     domain.PlayerID `json:"id"`
	Name   string          `json:"name"`
	Team   domain.Team     `json:"team"`
	Score  int             `json:"score"`
	X      float64         `json:"x"`
	Y      float64         `json:"y"`
	Health int             `json:"health"`
}

// Views returns the roster sorted by descending score, ties by id so
// the order is stable across ticks.
func (w *World) Views() []PlayerView {
	out := make([]PlayerView, 0, len(w.Players))
	for _, p := range w.Players {
		out = append(out, PlayerView{
			ID:     p.ID,
			Name:   p.Name,
			Team:   p.Team,
			Score:  p.Score,
			X:      p.X,
			Y:      p.Y,
			Health: p.Health,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// AggregateTeamScore is the team tally plus the members' individual
// scores; the game-end winner is the team with the higher aggregate.
func (w *World) AggregateTeamScore(team domain.Team) int {
	total := w.TeamScores[team]
	for _, p := range w.Players {
		if p.Team == team {
			total += p.Score
		}
	}
	return total
}
