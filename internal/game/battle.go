package game

import (
	"encoding/json"
	"math"

	"github.com/blockparty/server/internal/domain"
)

type Projectile struct {
	ID     int             `json:"id"`
	X      float64         `json:"x"`
	Y      float64         `json:"y"`
	VX     float64         `json:"vx"`
	VY     float64         `json:"vy"`
	Owner  domain.PlayerID `json:"owner"`
	Team   domain.Team     `json:"team"`
	Damage int             `json:"damage"`
}

type battleState struct {
	projectiles []Projectile
	nextID      int
}

func newBattleState() *battleState {
	return &battleState{}
}

func (s *battleState) Mode() Mode { return ModeBattle }

func (s *battleState) Handlers() map[string]ActionHandler {
	return map[string]ActionHandler{
		"shoot": s.shoot,
	}
}

func (s *battleState) shoot(p *domain.Player, data json.RawMessage) (map[string]any, bool) {
	var req struct {
		Angle float64 `json:"angle"`
		X     float64 `json:"x"`
		Y     float64 `json:"y"`
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, false
	}
	proj := Projectile{
		ID:     s.nextID,
		X:      req.X,
		Y:      req.Y,
		VX:     math.Cos(req.Angle) * ProjectileSpeed,
		VY:     math.Sin(req.Angle) * ProjectileSpeed,
		Owner:  p.ID,
		Team:   p.Team,
		Damage: ProjectileDamage,
	}
	s.nextID++
	s.projectiles = append(s.projectiles, proj)
	return map[string]any{
		"playerId":   p.ID,
		"projectile": proj,
	}, true
}

// Step advances every projectile by velocity*dt, then resolves the
// first proximity hit against a living opposing-team player. A hit
// removes the projectile; an elimination awards the shooter's team the
// kill reward exactly once. Out-of-bounds projectiles are dropped.
func (s *battleState) Step(w *World, dt float64) {
	kept := s.projectiles[:0]
	for _, proj := range s.projectiles {
		proj.X += proj.VX * dt
		proj.Y += proj.VY * dt
		if proj.X < 0 || proj.X > ArenaWidth || proj.Y < 0 || proj.Y > ArenaHeight {
			continue
		}
		if target := s.firstHit(w, proj); target != nil {
			target.Health -= proj.Damage
			if target.Health <= 0 {
				target.Health = 0
				w.TeamScores[proj.Team] += KillReward
			}
			continue
		}
		kept = append(kept, proj)
	}
	s.projectiles = kept
}

func (s *battleState) firstHit(w *World, proj Projectile) *domain.Player {
	for _, p := range w.Players {
		if p.Team == proj.Team || p.Health <= 0 {
			continue
		}
		if math.Hypot(p.X-proj.X, p.Y-proj.Y) < HitRadius {
			return p
		}
	}
	return nil
}

func (s *battleState) Snapshot(w *World) Snapshot {
	projs := make([]Projectile, len(s.projectiles))
	copy(projs, s.projectiles)
	return Snapshot{
		Mode:        ModeBattle,
		Players:     w.Views(),
		TeamScores:  cloneTeamScores(w),
		Projectiles: projs,
	}
}
