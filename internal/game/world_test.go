package game

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockparty/server/internal/domain"
)

func TestWorldCapacity(t *testing.T) {
	w := NewWorld()
	for i := 0; i < domain.RoomCapacity; i++ {
		_, err := w.AddPlayer(domain.PlayerID(fmt.Sprintf("p%d", i)), fmt.Sprintf("player%d", i))
		require.NoError(t, err)
	}
	require.Equal(t, domain.RoomCapacity, w.Count())

	_, err := w.AddPlayer("overflow", "late")
	assert.ErrorIs(t, err, domain.ErrRoomFull)
	assert.Equal(t, domain.RoomCapacity, w.Count(), "roster must be unchanged after a rejected join")
	assert.NotContains(t, w.Players, domain.PlayerID("overflow"))
}

func TestWorldTeamBalance(t *testing.T) {
	w := NewWorld()

	p, err := w.AddPlayer("p0", "first")
	require.NoError(t, err)
	assert.Equal(t, domain.TeamRed, p.Team, "ties assign to red")

	for i := 1; i < 9; i++ {
		_, err := w.AddPlayer(domain.PlayerID(fmt.Sprintf("p%d", i)), "x")
		require.NoError(t, err)

		red, blue := 0, 0
		for _, pl := range w.Players {
			if pl.Team == domain.TeamRed {
				red++
			} else {
				blue++
			}
		}
		diff := red - blue
		if diff < 0 {
			diff = -diff
		}
		assert.LessOrEqual(t, diff, 1, "after %d joins", i+1)
	}
}

func TestWorldTeamBalanceAfterLeaves(t *testing.T) {
	w := NewWorld()
	for i := 0; i < 4; i++ {
		_, err := w.AddPlayer(domain.PlayerID(fmt.Sprintf("p%d", i)), "x")
		require.NoError(t, err)
	}
	// Remove both red players; the next join must rebalance onto red.
	for id, p := range w.Players {
		if p.Team == domain.TeamRed {
			w.RemovePlayer(id)
		}
	}
	p, err := w.AddPlayer("fresh", "fresh")
	require.NoError(t, err)
	assert.Equal(t, domain.TeamRed, p.Team)
}

func TestWorldNewPlayerDefaults(t *testing.T) {
	w := NewWorld()
	p, err := w.AddPlayer("p1", "alice")
	require.NoError(t, err)

	assert.Equal(t, 0, p.Score)
	assert.Equal(t, MaxHealth, p.Health)
	assert.Empty(t, p.PowerUps)
	assert.GreaterOrEqual(t, p.X, 0.0)
	assert.LessOrEqual(t, p.X, ArenaWidth)
	assert.GreaterOrEqual(t, p.Y, 0.0)
	assert.LessOrEqual(t, p.Y, ArenaHeight)
}

func TestWorldRemoveUnknownIsNoop(t *testing.T) {
	w := NewWorld()
	w.RemovePlayer("ghost")
	assert.Equal(t, 0, w.Count())
}

func TestWorldPrunePowerUps(t *testing.T) {
	w := NewWorld()
	p, err := w.AddPlayer("p1", "alice")
	require.NoError(t, err)

	now := time.Now()
	p.PowerUps = []domain.PowerUp{
		{Type: "boost", ExpiresAt: now.Add(-time.Second)},
		{Type: "shield", ExpiresAt: now.Add(time.Minute)},
	}
	w.PrunePowerUps(now)

	require.Len(t, p.PowerUps, 1)
	assert.Equal(t, "shield", p.PowerUps[0].Type)
}

func TestWorldViewsSortedByScore(t *testing.T) {
	w := NewWorld()
	for i, score := range []int{5, 20, 10} {
		p, err := w.AddPlayer(domain.PlayerID(fmt.Sprintf("p%d", i)), "x")
		require.NoError(t, err)
		p.Score = score
	}
	views := w.Views()
	require.Len(t, views, 3)
	assert.Equal(t, 20, views[0].Score)
	assert.Equal(t, 10, views[1].Score)
	assert.Equal(t, 5, views[2].Score)
}

func TestWorldAggregateTeamScore(t *testing.T) {
	w := NewWorld()
	red, err := w.AddPlayer("r", "r")
	require.NoError(t, err)
	blue, err := w.AddPlayer("b", "b")
	require.NoError(t, err)
	require.Equal(t, domain.TeamRed, red.Team)
	require.Equal(t, domain.TeamBlue, blue.Team)

	red.Score = 30
	blue.Score = 10
	w.TeamScores[domain.TeamBlue] = 20

	assert.Equal(t, 30, w.AggregateTeamScore(domain.TeamRed))
	assert.Equal(t, 30, w.AggregateTeamScore(domain.TeamBlue))
}
