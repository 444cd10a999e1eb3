package ws

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/blockparty/server/internal/app"
	"github.com/blockparty/server/internal/domain"
)

// joinTimeout bounds the wait for a room loop reply; a room torn down
// between lookup and join surfaces as not-found instead of a hang.
const joinTimeout = time.Second

func (g *Gateway) handleQuickMatch(sid domain.PlayerID, c *WsConn, data []byte) {
	if !g.limiter.Allow(sid) {
		g.nack(c, "quickMatchResult", "too_many_attempts")
		return
	}
	var p struct {
		Username string `json:"username"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		g.nack(c, "quickMatchResult", "bad_payload")
		return
	}
	if err := domain.ValidateUsername(p.Username); err != nil {
		g.nack(c, "quickMatchResult", err.Error())
		return
	}

	room := g.Rooms.FindOpenPublic()
	res, err := g.join(sid, p.Username, c, room)
	if err != nil {
		g.nack(c, "quickMatchResult", err.Error())
		return
	}
	g.sendJSON(c, map[string]any{
		"type":     "quickMatchResult",
		"success":  true,
		"roomCode": room.Code,
		"playerId": res.Player.ID,
		"players":  res.Players,
	})
}

// handleCreateRoom makes a private room and puts the creator in it;
// the code is shared out of band.
func (g *Gateway) handleCreateRoom(sid domain.PlayerID, c *WsConn, data []byte) {
	if !g.limiter.Allow(sid) {
		g.nack(c, "createRoomResult", "too_many_attempts")
		return
	}
	var p struct {
		Username string `json:"username"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		g.nack(c, "createRoomResult", "bad_payload")
		return
	}
	if err := domain.ValidateUsername(p.Username); err != nil {
		g.nack(c, "createRoomResult", err.Error())
		return
	}

	room := g.Rooms.Create(domain.Private)
	res, err := g.join(sid, p.Username, c, room)
	if err != nil {
		g.nack(c, "createRoomResult", err.Error())
		return
	}
	g.sendJSON(c, map[string]any{
		"type":     "createRoomResult",
		"success":  true,
		"roomCode": room.Code,
		"playerId": res.Player.ID,
	})
}

func (g *Gateway) handleJoinRoom(sid domain.PlayerID, c *WsConn, data []byte) {
	if !g.limiter.Allow(sid) {
		g.nack(c, "joinRoomResult", "too_many_attempts")
		return
	}
	var p struct {
		RoomCode string `json:"roomCode"`
		Username string `json:"username"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		g.nack(c, "joinRoomResult", "bad_payload")
		return
	}
	if err := domain.ValidateUsername(p.Username); err != nil {
		g.nack(c, "joinRoomResult", err.Error())
		return
	}

	room, ok := g.Rooms.Get(domain.RoomCode(strings.ToUpper(p.RoomCode)))
	if !ok {
		g.nack(c, "joinRoomResult", domain.ErrRoomNotFound.Error())
		return
	}
	res, err := g.join(sid, p.Username, c, room)
	if err != nil {
		g.nack(c, "joinRoomResult", err.Error())
		return
	}
	g.sendJSON(c, map[string]any{
		"type":     "joinRoomResult",
		"success":  true,
		"roomCode": room.Code,
		"playerId": res.Player.ID,
		"players":  res.Players,
	})
}

// join funnels the add through the room loop and records the binding.
// A connection still tracked in another room is removed there first.
func (g *Gateway) join(sid domain.PlayerID, name string, c *WsConn, room *app.Room) (app.JoinResult, error) {
	if prev, ok := g.Registry.RoomOf(sid); ok && prev != room.Code {
		if old, found := g.Rooms.Get(prev); found {
			old.Inbox <- app.Leave{SID: sid}
		}
		g.Registry.ClearRoom(sid)
	}
	reply := make(chan app.JoinResult, 1)
	room.Inbox <- app.Join{SID: sid, Name: name, Conn: c, Reply: reply}
	select {
	case res := <-reply:
		if res.Err != nil {
			return app.JoinResult{}, res.Err
		}
		g.Registry.SetRoom(sid, room.Code)
		return res, nil
	case <-time.After(joinTimeout):
		return app.JoinResult{}, domain.ErrRoomNotFound
	}
}

func (g *Gateway) handleInput(sid domain.PlayerID, data []byte) {
	var p struct {
		Input app.InputPayload `json:"input"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return
	}
	code, ok := g.Registry.RoomOf(sid)
	if !ok {
		return
	}
	room, ok := g.Rooms.Get(code)
	if !ok {
		return
	}
	// Latest-wins; a full inbox just drops this sample.
	select {
	case room.Inbox <- app.Input{SID: sid, Input: p.Input}:
	default:
		log.Debug().Str("module", "ws").Str("sid", string(sid)).Msg("inbox full, input dropped")
	}
}

func (g *Gateway) handleAction(sid domain.PlayerID, data []byte) {
	var p struct {
		Action string          `json:"action"`
		Data   json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return
	}
	code, ok := g.Registry.RoomOf(sid)
	if !ok {
		return
	}
	room, ok := g.Rooms.Get(code)
	if !ok {
		return
	}
	select {
	case room.Inbox <- app.Action{SID: sid, Name: p.Action, Data: p.Data}:
	default:
		log.Warn().Str("module", "ws").Str("sid", string(sid)).Str("action", p.Action).Msg("inbox full, action dropped")
	}
}

func (g *Gateway) onDisconnect(sid domain.PlayerID) {
	if code, ok := g.Registry.RoomOf(sid); ok {
		if room, found := g.Rooms.Get(code); found {
			room.Inbox <- app.Leave{SID: sid}
		}
	}
	g.Registry.Unbind(sid)
	g.limiter.Forget(sid)
}

// nack reports a failure to the requester only; errors never fan out
// to the rest of the room.
func (g *Gateway) nack(c *WsConn, event, reason string) {
	g.sendJSON(c, map[string]any{
		"type":    event,
		"success": false,
		"error":   reason,
	})
}
