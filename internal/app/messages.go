package app

import (
	"encoding/json"

	"github.com/blockparty/server/internal/domain"
	"github.com/blockparty/server/internal/game"
)

// Conn is the transport-facing send half of a connection. The room
// never closes the underlying socket; the adapter owns it.
type Conn interface {
	TrySend(data []byte) error
}

// InputPayload carries client-reported movement. Fields are pointers
// so a partial update only overwrites what was sent.
type InputPayload struct {
	X  *float64 `json:"x"`
	Y  *float64 `json:"y"`
	VX *float64 `json:"vx"`
	VY *float64 `json:"vy"`
}

// Join: issued once per connection entering a room.
type Join struct {
	SID   domain.PlayerID
	Name  string
	Conn  Conn
	Reply chan<- JoinResult
}

type JoinResult struct {
	Player  *domain.Player
	Players []game.PlayerView
	Err     error
}

// Leave: issued on disconnect or explicit exit.
type Leave struct {
	SID domain.PlayerID
}

// Input: latest client-reported position/velocity for a player.
type Input struct {
	SID   domain.PlayerID
	Input InputPayload
}

// Action: a mode action (collectCoin, placeBlock, shoot, useBoost).
type Action struct {
	SID  domain.PlayerID
	Name string
	Data json.RawMessage
}
