package game

import "time"

const (
	ArenaWidth  = 2000.0
	ArenaHeight = 2000.0

	TickHz = 30

	CoinCount  = 20
	CoinReward = 10

	ProjectileSpeed  = 500.0 // units per second
	ProjectileDamage = 25
	HitRadius        = 30.0
	KillReward       = 10

	MaxHealth = 100

	BoostDuration = 10 * time.Second

	LobbyDelay     = 3 * time.Second
	Intermission   = 3 * time.Second
	RaceDuration   = 120 * time.Second
	BuildDuration  = 180 * time.Second
	BattleDuration = 150 * time.Second
)

// BlockRewards maps block type to the score awarded on placement.
// Unknown types fall back to the wall reward.
var BlockRewards = map[string]int{
	"wall":  5,
	"floor": 3,
	"trap":  10,
	"boost": 8,
}
