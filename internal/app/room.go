package app

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/blockparty/server/internal/domain"
	"github.com/blockparty/server/internal/game"
)

// stage tracks where the room is on its round timeline.
type stage int

const (
	stageLobby stage = iota
	stageArmed
	stagePhase
	stageIntermission
	stageEnded
)

// Room owns one session's players and simulation state. All mutation
// happens on the Run goroutine, fed by Inbox plus the tick and
// schedule timers; callers from other goroutines may only touch Inbox,
// Stop and the atomic counters.
type Room struct {
	Code       domain.RoomCode
	Visibility domain.Visibility
	Inbox      chan any

	// OnEmpty fires after the last player leaves; the directory uses
	// it to drop the room and stop every timer.
	OnEmpty func(code domain.RoomCode)

	world *game.World
	mode  game.ModeState
	conns map[domain.PlayerID]Conn

	st       stage
	phaseIdx int
	round    int
	armed    bool

	quit     chan struct{}
	stopOnce sync.Once

	// read by the directory without entering the room goroutine
	playerCount atomic.Int32
	started     atomic.Bool
}

func NewRoom(code domain.RoomCode, vis domain.Visibility) *Room {
	return &Room{
		Code:       code,
		Visibility: vis,
		Inbox:      make(chan any, 256),
		world:      game.NewWorld(),
		conns:      make(map[domain.PlayerID]Conn),
		quit:       make(chan struct{}),
	}
}

func (r *Room) Stop() {
	r.stopOnce.Do(func() { close(r.quit) })
}

// PlayerCount is safe to call from any goroutine.
func (r *Room) PlayerCount() int { return int(r.playerCount.Load()) }

// Started is safe to call from any goroutine.
func (r *Room) Started() bool { return r.started.Load() }

// Run executes the room loop until Stop. The broadcast ticker fires at
// the fixed tick rate for the whole lifetime; broadcasting only
// happens while a game is running.
func (r *Room) Run() {
	ticker := time.NewTicker(time.Second / game.TickHz)
	defer ticker.Stop()

	// One timer drives the whole round timeline: lobby delay, phase
	// durations and intermissions. Stopping the room stops it too.
	sched := time.NewTimer(time.Hour)
	if !sched.Stop() {
		<-sched.C
	}
	defer sched.Stop()

	for {
		select {
		case <-r.quit:
			return
		case cmd := <-r.Inbox:
			r.handleCommand(cmd, sched)
		case now := <-ticker.C:
			r.tick(now)
		case <-sched.C:
			r.advance(sched)
		}
	}
}

func (r *Room) handleCommand(cmd any, sched *time.Timer) {
	switch c := cmd.(type) {
	case Join:
		r.handleJoin(c, sched)
	case Leave:
		r.handleLeave(c.SID)
	case Input:
		r.handleInput(c)
	case Action:
		r.handleAction(c)
	}
}

func (r *Room) handleJoin(c Join, sched *time.Timer) {
	// A session already in the roster keeps its player as is; only the
	// connection is refreshed. Score and health survive a rejoin.
	if p, ok := r.world.Players[c.SID]; ok {
		r.conns[c.SID] = c.Conn
		c.Reply <- JoinResult{Player: p, Players: r.world.Views()}
		return
	}
	if r.mode != nil {
		c.Reply <- JoinResult{Err: domain.ErrGameStarted}
		return
	}
	p, err := r.world.AddPlayer(c.SID, c.Name)
	if err != nil {
		c.Reply <- JoinResult{Err: err}
		return
	}
	r.conns[c.SID] = c.Conn
	r.playerCount.Store(int32(r.world.Count()))

	r.broadcastExcept(c.SID, map[string]any{
		"type":   "playerJoined",
		"player": playerView(p),
	})
	c.Reply <- JoinResult{Player: p, Players: r.world.Views()}

	// Arms exactly once; dropping below two players later does not
	// disarm the lobby timer.
	if !r.armed && r.world.Count() >= 2 {
		r.armed = true
		r.st = stageArmed
		sched.Reset(game.LobbyDelay)
		log.Info().Str("module", "app.room").Str("room", string(r.Code)).Msg("lobby timer armed")
	}
}

func (r *Room) handleLeave(sid domain.PlayerID) {
	if _, ok := r.conns[sid]; !ok {
		return
	}
	delete(r.conns, sid)
	r.world.RemovePlayer(sid)
	r.playerCount.Store(int32(r.world.Count()))

	// Blocks and projectiles owned by the leaver stay in play with a
	// dangling owner id; only the roster entry goes away.
	r.broadcast(map[string]any{
		"type":     "playerLeft",
		"playerId": sid,
	})

	if r.world.Count() == 0 && r.OnEmpty != nil {
		r.OnEmpty(r.Code)
	}
}

func (r *Room) handleInput(c Input) {
	p, ok := r.world.Players[c.SID]
	if !ok {
		return
	}
	if c.Input.X != nil {
		p.X = *c.Input.X
	}
	if c.Input.Y != nil {
		p.Y = *c.Input.Y
	}
	if c.Input.VX != nil {
		p.VX = *c.Input.VX
	}
	if c.Input.VY != nil {
		p.VY = *c.Input.VY
	}
}

func (r *Room) handleAction(c Action) {
	p, ok := r.world.Players[c.SID]
	if !ok || r.mode == nil {
		return
	}
	handler, ok := r.mode.Handlers()[c.Name]
	if !ok {
		if c.Name != "useBoost" {
			log.Debug().Str("module", "app.room").Str("action", c.Name).Msg("action not available in mode")
			return
		}
		handler = game.UseBoost
	}
	result, applied := handler(p, c.Data)
	if !applied {
		return
	}
	// The payload keeps its own namespace so fields like the block
	// type never collide with the envelope type.
	r.broadcast(map[string]any{
		"type": c.Name + "Result",
		"data": result,
	})
}

func (r *Room) tick(now time.Time) {
	if r.mode == nil {
		return
	}
	r.world.PrunePowerUps(now)
	r.mode.Step(r.world, 1.0/game.TickHz)

	snap := r.mode.Snapshot(r.world)
	r.broadcast(stateUpdate{Type: "gameStateUpdate", Snapshot: snap})
}

type stateUpdate struct {
	Type string `json:"type"`
	game.Snapshot
}

// advance moves the round timeline one step: armed lobby to first
// round, phase end to intermission, intermission to next round, last
// phase to game end.
func (r *Room) advance(sched *time.Timer) {
	switch r.st {
	case stageArmed:
		r.startGame()
		sched.Reset(game.Timeline()[0].Duration)
	case stagePhase:
		if r.phaseIdx == len(game.Timeline())-1 {
			r.finishGame()
			return
		}
		r.broadcast(map[string]any{
			"type":   "roundEnd",
			"scores": r.world.Views(),
		})
		r.st = stageIntermission
		sched.Reset(game.Intermission)
	case stageIntermission:
		r.phaseIdx++
		r.round++
		phase := game.Timeline()[r.phaseIdx]
		r.mode = game.NewModeState(phase.Mode)
		r.st = stagePhase
		r.broadcast(map[string]any{
			"type":     "roundStart",
			"mode":     phase.Mode,
			"duration": int(phase.Duration.Seconds()),
		})
		sched.Reset(phase.Duration)
		log.Info().Str("module", "app.room").Str("room", string(r.Code)).Str("mode", string(phase.Mode)).Int("round", r.round).Msg("round started")
	}
}

// startGame is a no-op when already started.
func (r *Room) startGame() {
	if r.mode != nil {
		return
	}
	first := game.Timeline()[0]
	r.phaseIdx = 0
	r.round = 1
	r.mode = game.NewModeState(first.Mode)
	r.st = stagePhase
	r.started.Store(true)
	r.broadcast(map[string]any{
		"type":     "roundStart",
		"mode":     first.Mode,
		"duration": int(first.Duration.Seconds()),
	})
	log.Info().Str("module", "app.room").Str("room", string(r.Code)).Msg("game started")
}

func (r *Room) finishGame() {
	red := r.world.AggregateTeamScore(domain.TeamRed)
	blue := r.world.AggregateTeamScore(domain.TeamBlue)
	winner := "draw"
	switch {
	case red > blue:
		winner = string(domain.TeamRed)
	case blue > red:
		winner = string(domain.TeamBlue)
	}
	r.broadcast(map[string]any{
		"type":   "gameEnd",
		"winner": winner,
		"scores": r.world.Views(),
		"teamScores": map[domain.Team]int{
			domain.TeamRed:  red,
			domain.TeamBlue: blue,
		},
	})
	r.endGame()
	log.Info().Str("module", "app.room").Str("room", string(r.Code)).Str("winner", winner).Msg("game ended")
}

// endGame discards the mode state; the room itself lives on until the
// last player leaves.
func (r *Room) endGame() {
	r.mode = nil
	r.round = 0
	r.st = stageEnded
	r.started.Store(false)
}

func playerView(p *domain.Player) game.PlayerView {
	return game.PlayerView{
		ID:     p.ID,
		Name:   p.Name,
		Team:   p.Team,
		Score:  p.Score,
		X:      p.X,
		Y:      p.Y,
		Health: p.Health,
	}
}

func (r *Room) broadcast(v any) {
	r.fanout(v, "")
}

func (r *Room) broadcastExcept(skip domain.PlayerID, v any) {
	r.fanout(v, skip)
}

func (r *Room) fanout(v any, skip domain.PlayerID) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "app.room").Msg("marshal broadcast")
		return
	}
	var failed []domain.PlayerID
	for sid, conn := range r.conns {
		if sid == skip {
			continue
		}
		if err := conn.TrySend(data); err != nil {
			failed = append(failed, sid)
		}
	}
	// Connections that can't keep up get kicked rather than stalling
	// the loop for everyone else.
	for _, sid := range failed {
		log.Warn().Str("module", "app.room").Str("sid", string(sid)).Msg("dropping slow connection")
		r.handleLeave(sid)
	}
}
