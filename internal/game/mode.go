package game

import (
	"encoding/json"

	"github.com/blockparty/server/internal/domain"
)

type Mode string

const (
	ModeRace   Mode = "race"
	ModeBuild  Mode = "build"
	ModeBattle Mode = "battle"
)

// ActionHandler mutates mode state on behalf of a player. It returns
// the payload to broadcast as the action result, or ok=false when the
// action is a defined no-op (double collect, occupied cell). No-ops
// are silent, never errors.
type ActionHandler func(p *domain.Player, data json.RawMessage) (result map[string]any, ok bool)

// ModeState is one variant of the per-room simulation. Exactly one is
// active at a time; transitioning replaces the collections but the
// World (player scores, team scores) carries over.
type ModeState interface {
	Mode() Mode

	// Handlers is the action dispatch table for this mode. New actions
	// register here instead of growing a switch somewhere else.
	Handlers() map[string]ActionHandler

	// Step advances time-driven simulation (projectile flight, hits).
	// Race and build have no time-driven behavior and no-op here.
	Step(w *World, dt float64)

	// Snapshot renders the broadcast view for the current tick.
	Snapshot(w *World) Snapshot
}

// Snapshot is exactly what goes out in every gameStateUpdate.
type Snapshot struct {
	Mode        Mode                `json:"mode"`
	Players     []PlayerView        `json:"players"`
	TeamScores  map[domain.Team]int `json:"teamScores"`
	Coins       []Coin              `json:"coins,omitempty"`
	Blocks      []Block             `json:"blocks,omitempty"`
	Projectiles []Projectile        `json:"projectiles,omitempty"`
}

// NewModeState constructs the fresh collections for a mode.
func NewModeState(mode Mode) ModeState {
	switch mode {
	case ModeBuild:
		return newBuildState()
	case ModeBattle:
		return newBattleState()
	default:
		return newRaceState()
	}
}
