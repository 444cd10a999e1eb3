package game

import (
	"encoding/json"
	"sort"

	"github.com/blockparty/server/internal/domain"
)

type cell struct {
	X int
	Y int
}

type Block struct {
	X     int             `json:"x"`
	Y     int             `json:"y"`
	Type  string          `json:"type"`
	Owner domain.PlayerID `json:"owner"`
}

type buildState struct {
	grid map[cell]Block
}

func newBuildState() *buildState {
	return &buildState{grid: make(map[cell]Block)}
}

func (s *buildState) Mode() Mode { return ModeBuild }

func (s *buildState) Handlers() map[string]ActionHandler {
	return map[string]ActionHandler{
		"placeBlock": s.placeBlock,
	}
}

// placeBlock is first-writer-wins: an occupied cell silently rejects
// the placement and awards nothing.
func (s *buildState) placeBlock(p *domain.Player, data json.RawMessage) (map[string]any, bool) {
	var req struct {
		X    int    `json:"x"`
		Y    int    `json:"y"`
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, false
	}
	c := cell{X: req.X, Y: req.Y}
	if _, occupied := s.grid[c]; occupied {
		return nil, false
	}
	reward, known := BlockRewards[req.Type]
	if !known {
		reward = BlockRewards["wall"]
	}
	s.grid[c] = Block{X: req.X, Y: req.Y, Type: req.Type, Owner: p.ID}
	p.Score += reward
	return map[string]any{
		"playerId": p.ID,
		"x":        req.X,
		"y":        req.Y,
		"type":     req.Type,
		"score":    p.Score,
	}, true
}

func (s *buildState) Step(w *World, dt float64) {}

func (s *buildState) Snapshot(w *World) Snapshot {
	blocks := make([]Block, 0, len(s.grid))
	for _, b := range s.grid {
		blocks = append(blocks, b)
	}
	sort.Slice(blocks, func(i, j int) bool {
		if blocks[i].Y != blocks[j].Y {
			return blocks[i].Y < blocks[j].Y
		}
		return blocks[i].X < blocks[j].X
	})
	return Snapshot{
		Mode:       ModeBuild,
		Players:    w.Views(),
		TeamScores: cloneTeamScores(w),
		Blocks:     blocks,
	}
}
