// Package domain contains entities without logic, just meta-data.
package domain

import (
	"errors"
	"time"
)

const MaxUsernameLen = 24

var (
	ErrUsernameEmpty   = errors.New("username empty")
	ErrUsernameTooLong = errors.New("username too long")
)

type PlayerID string

type Team string

const (
	TeamNone Team = ""
	TeamRed  Team = "red"
	TeamBlue Team = "blue"
)

// Opponent returns the other team, or TeamNone for unassigned players.
func (t Team) Opponent() Team {
	switch t {
	case TeamRed:
		return TeamBlue
	case TeamBlue:
		return TeamRed
	}
	return TeamNone
}

// PowerUp is a timed effect granted to a player. Expired entries are
// pruned by the room tick, not on access.
type PowerUp struct {
	Type      string    `json:"type"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Player is the per-room record for one connection. It is owned by the
// room that created it and never shared across rooms.
type Player struct {
	ID       PlayerID  `json:"id"`
	Name     string    `json:"name"`
	Team     Team      `json:"team"`
	Score    int       `json:"score"`
	X        float64   `json:"x"`
	Y        float64   `json:"y"`
	VX       float64   `json:"vx"`
	VY       float64   `json:"vy"`
	Health   int       `json:"health"`
	PowerUps []PowerUp `json:"powerUps,omitempty"`
}

func ValidateUsername(name string) error {
	if len(name) == 0 {
		return ErrUsernameEmpty
	}
	if len(name) > MaxUsernameLen {
		return ErrUsernameTooLong
	}
	return nil
}
