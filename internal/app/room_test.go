package app

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/blockparty/server/internal/domain"
	"github.com/blockparty/server/internal/game"
)

type fakeConn struct {
	sendCh chan []byte
}

func newFakeConn() *fakeConn {
	return &fakeConn{sendCh: make(chan []byte, 256)}
}

func (f *fakeConn) TrySend(b []byte) error {
	cp := make([]byte, len(b))
	copy(cp, b)
	select {
	case f.sendCh <- cp:
		return nil
	default:
		return ErrTestConnFull
	}
}

var ErrTestConnFull = fmt.Errorf("fake conn full")

// next decodes the next queued message without waiting.
func (f *fakeConn) next(t *testing.T) map[string]any {
	t.Helper()
	select {
	case b := <-f.sendCh:
		var msg map[string]any
		if err := json.Unmarshal(b, &msg); err != nil {
			t.Fatalf("decode message: %v", err)
		}
		return msg
	default:
		t.Fatalf("no message queued")
		return nil
	}
}

func (f *fakeConn) empty() bool { return len(f.sendCh) == 0 }

// waitFor blocks until a message of the wanted type arrives, skipping
// others, or fails at the timeout.
func (f *fakeConn) waitFor(t *testing.T, msgType string, timeout time.Duration) map[string]any {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case b := <-f.sendCh:
			var msg map[string]any
			if err := json.Unmarshal(b, &msg); err != nil {
				t.Fatalf("decode message: %v", err)
			}
			if msg["type"] == msgType {
				return msg
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %q", msgType)
			return nil
		}
	}
}

func stoppedTimer() *time.Timer {
	tm := time.NewTimer(time.Hour)
	if !tm.Stop() {
		<-tm.C
	}
	return tm
}

// joinDirect drives handleJoin on the caller's goroutine; only valid
// when the room loop is not running.
func joinDirect(t *testing.T, r *Room, sched *time.Timer, sid string, name string) (*fakeConn, JoinResult) {
	t.Helper()
	fc := newFakeConn()
	reply := make(chan JoinResult, 1)
	r.handleJoin(Join{SID: domain.PlayerID(sid), Name: name, Conn: fc, Reply: reply}, sched)
	return fc, <-reply
}

func TestJoinAckAndBroadcast(t *testing.T) {
	r := NewRoom("AAAAAA", domain.Public)
	sched := stoppedTimer()

	fc1, res1 := joinDirect(t, r, sched, "s1", "alice")
	if res1.Err != nil {
		t.Fatalf("first join: %v", res1.Err)
	}
	if len(res1.Players) != 1 {
		t.Fatalf("first ack roster = %d, want 1", len(res1.Players))
	}

	fc2, res2 := joinDirect(t, r, sched, "s2", "bob")
	if res2.Err != nil {
		t.Fatalf("second join: %v", res2.Err)
	}
	if len(res2.Players) != 2 {
		t.Fatalf("second ack roster = %d, want 2", len(res2.Players))
	}

	// playerJoined goes to existing members only, never the joiner.
	msg := fc1.next(t)
	if msg["type"] != "playerJoined" {
		t.Fatalf("fc1 got %v, want playerJoined", msg["type"])
	}
	player := msg["player"].(map[string]any)
	if player["id"] != "s2" {
		t.Fatalf("playerJoined id = %v, want s2", player["id"])
	}
	if !fc2.empty() {
		t.Fatalf("joiner must not receive its own playerJoined")
	}
}

func TestJoinFullRoomRejected(t *testing.T) {
	r := NewRoom("AAAAAA", domain.Public)
	sched := stoppedTimer()

	for i := 0; i < domain.RoomCapacity; i++ {
		_, res := joinDirect(t, r, sched, fmt.Sprintf("s%d", i), "x")
		if res.Err != nil {
			t.Fatalf("join %d: %v", i, res.Err)
		}
	}
	_, res := joinDirect(t, r, sched, "late", "late")
	if res.Err != domain.ErrRoomFull {
		t.Fatalf("17th join err = %v, want ErrRoomFull", res.Err)
	}
	if r.PlayerCount() != domain.RoomCapacity {
		t.Fatalf("roster changed after rejected join: %d", r.PlayerCount())
	}
}

func TestJoinStartedRoomRejected(t *testing.T) {
	r := NewRoom("AAAAAA", domain.Public)
	sched := stoppedTimer()

	joinDirect(t, r, sched, "s1", "alice")
	joinDirect(t, r, sched, "s2", "bob")
	r.startGame()

	_, res := joinDirect(t, r, sched, "s3", "carol")
	if res.Err != domain.ErrGameStarted {
		t.Fatalf("join after start err = %v, want ErrGameStarted", res.Err)
	}
}

func TestLeaveIsTotal(t *testing.T) {
	r := NewRoom("AAAAAA", domain.Public)
	sched := stoppedTimer()

	joinDirect(t, r, sched, "s1", "alice")
	r.handleLeave("ghost")
	if r.PlayerCount() != 1 {
		t.Fatalf("removing unknown player changed roster")
	}
}

func TestRejoinKeepsPlayerState(t *testing.T) {
	r := NewRoom("AAAAAA", domain.Public)
	sched := stoppedTimer()

	_, res1 := joinDirect(t, r, sched, "s1", "alice")
	fc2, _ := joinDirect(t, r, sched, "s2", "bob")
	res1.Player.Score = 42
	res1.Player.Health = 60

	r.startGame()
	fc2.waitFor(t, "roundStart", time.Second)

	fc1b, res1b := joinDirect(t, r, sched, "s1", "alice")
	if res1b.Err != nil {
		t.Fatalf("rejoin: %v", res1b.Err)
	}
	if res1b.Player != res1.Player {
		t.Fatalf("rejoin replaced the player")
	}
	if res1b.Player.Score != 42 || res1b.Player.Health != 60 {
		t.Fatalf("rejoin reset player state: score=%d health=%d",
			res1b.Player.Score, res1b.Player.Health)
	}
	if r.PlayerCount() != 2 {
		t.Fatalf("rejoin changed roster size to %d", r.PlayerCount())
	}
	// No playerJoined goes out for a rejoin, and the refreshed
	// connection receives the broadcasts from now on.
	if !fc2.empty() {
		t.Fatalf("rejoin must not broadcast playerJoined")
	}
	r.broadcast(map[string]any{"type": "playerLeft", "playerId": "x"})
	fc1b.waitFor(t, "playerLeft", time.Second)
}

// drainOne pops the next message from every conn and asserts the type.
func expectBroadcast(t *testing.T, msgType string, conns ...*fakeConn) []map[string]any {
	t.Helper()
	out := make([]map[string]any, 0, len(conns))
	for i, fc := range conns {
		msg := fc.next(t)
		if msg["type"] != msgType {
			t.Fatalf("conn %d got %v, want %s", i, msg["type"], msgType)
		}
		out = append(out, msg)
	}
	return out
}

func TestRoundTimelineProgression(t *testing.T) {
	r := NewRoom("AAAAAA", domain.Public)
	sched := stoppedTimer()

	fc1, _ := joinDirect(t, r, sched, "s1", "alice")
	fc2, _ := joinDirect(t, r, sched, "s2", "bob")
	fc1.next(t) // playerJoined for s2
	if r.st != stageArmed {
		t.Fatalf("room not armed after second join")
	}

	// Lobby delay fires: race begins.
	r.advance(sched)
	msgs := expectBroadcast(t, "roundStart", fc1, fc2)
	if msgs[0]["mode"] != "race" || msgs[0]["duration"] != float64(120) {
		t.Fatalf("first roundStart = %v", msgs[0])
	}
	if !r.Started() {
		t.Fatalf("room must report started")
	}

	// Race ends, intermission, build begins.
	r.advance(sched)
	expectBroadcast(t, "roundEnd", fc1, fc2)
	r.advance(sched)
	msgs = expectBroadcast(t, "roundStart", fc1, fc2)
	if msgs[0]["mode"] != "build" || msgs[0]["duration"] != float64(180) {
		t.Fatalf("second roundStart = %v", msgs[0])
	}

	// Build ends, intermission, battle begins.
	r.advance(sched)
	expectBroadcast(t, "roundEnd", fc1, fc2)
	r.advance(sched)
	msgs = expectBroadcast(t, "roundStart", fc1, fc2)
	if msgs[0]["mode"] != "battle" || msgs[0]["duration"] != float64(150) {
		t.Fatalf("third roundStart = %v", msgs[0])
	}

	// Battle ends: game over, mode discarded, no re-entry.
	r.advance(sched)
	msgs = expectBroadcast(t, "gameEnd", fc1, fc2)
	if _, ok := msgs[0]["winner"]; !ok {
		t.Fatalf("gameEnd missing winner: %v", msgs[0])
	}
	if r.Started() || r.mode != nil {
		t.Fatalf("mode state must be discarded at game end")
	}
	r.advance(sched)
	if !fc1.empty() {
		t.Fatalf("ended room must not emit further rounds")
	}
}

func TestGameEndWinner(t *testing.T) {
	r := NewRoom("AAAAAA", domain.Public)
	sched := stoppedTimer()

	fc1, res1 := joinDirect(t, r, sched, "s1", "alice")
	_, res2 := joinDirect(t, r, sched, "s2", "bob")
	fc1.next(t)

	res1.Player.Score = 50
	res2.Player.Score = 20
	r.startGame()
	fc1.waitFor(t, "roundStart", time.Second)

	r.finishGame()
	msg := fc1.waitFor(t, "gameEnd", time.Second)
	if msg["winner"] != string(res1.Player.Team) {
		t.Fatalf("winner = %v, want %v", msg["winner"], res1.Player.Team)
	}
}

func TestGameEndExactTieIsDraw(t *testing.T) {
	r := NewRoom("AAAAAA", domain.Public)
	sched := stoppedTimer()

	fc1, res1 := joinDirect(t, r, sched, "s1", "alice")
	_, res2 := joinDirect(t, r, sched, "s2", "bob")
	fc1.next(t)

	res1.Player.Score = 30
	res2.Player.Score = 30
	r.startGame()
	fc1.waitFor(t, "roundStart", time.Second)

	r.finishGame()
	msg := fc1.waitFor(t, "gameEnd", time.Second)
	if msg["winner"] != "draw" {
		t.Fatalf("winner = %v, want draw", msg["winner"])
	}
}

func TestPlaceBlockResultBroadcast(t *testing.T) {
	r := NewRoom("AAAAAA", domain.Public)
	sched := stoppedTimer()

	fc1, res1 := joinDirect(t, r, sched, "s1", "alice")
	fc2, _ := joinDirect(t, r, sched, "s2", "bob")
	fc1.next(t)

	r.startGame()
	r.mode = game.NewModeState(game.ModeBuild)
	fc1.waitFor(t, "roundStart", time.Second)
	fc2.waitFor(t, "roundStart", time.Second)

	r.handleAction(Action{
		SID:  "s1",
		Name: "placeBlock",
		Data: json.RawMessage(`{"x":5,"y":5,"type":"wall"}`),
	})

	for _, fc := range []*fakeConn{fc1, fc2} {
		msg := fc.waitFor(t, "placeBlockResult", time.Second)
		data, ok := msg["data"].(map[string]any)
		if !ok {
			t.Fatalf("placeBlockResult without data payload: %v", msg)
		}
		if data["playerId"] != "s1" || data["x"] != float64(5) || data["y"] != float64(5) || data["type"] != "wall" {
			t.Fatalf("placeBlockResult data = %v", data)
		}
	}
	if res1.Player.Score != 5 {
		t.Fatalf("score after wall = %d, want 5", res1.Player.Score)
	}
}

// The block's own type field lives inside data; the envelope type must
// survive payloads that carry a type of their own.
func TestActionResultEnvelopeTypePreserved(t *testing.T) {
	r := NewRoom("AAAAAA", domain.Public)
	sched := stoppedTimer()

	fc1, _ := joinDirect(t, r, sched, "s1", "alice")
	joinDirect(t, r, sched, "s2", "bob")
	fc1.next(t)

	r.startGame()
	fc1.waitFor(t, "roundStart", time.Second)

	r.handleAction(Action{
		SID:  "s1",
		Name: "useBoost",
		Data: json.RawMessage(`{"type":"speed"}`),
	})

	msg := fc1.waitFor(t, "useBoostResult", time.Second)
	if msg["type"] != "useBoostResult" {
		t.Fatalf("envelope type = %v", msg["type"])
	}
	data, ok := msg["data"].(map[string]any)
	if !ok {
		t.Fatalf("useBoostResult without data payload: %v", msg)
	}
	if data["type"] != "speed" || data["playerId"] != "s1" {
		t.Fatalf("useBoostResult data = %v", data)
	}
}

func TestActionOutsideModeIsSilent(t *testing.T) {
	r := NewRoom("AAAAAA", domain.Public)
	sched := stoppedTimer()

	fc1, res1 := joinDirect(t, r, sched, "s1", "alice")

	// No game running: action is ignored, no error surfaces.
	r.handleAction(Action{SID: "s1", Name: "placeBlock", Data: json.RawMessage(`{"x":1,"y":1,"type":"wall"}`)})
	if !fc1.empty() {
		t.Fatalf("action before start must be silent")
	}

	// Running but wrong mode: race has no placeBlock handler.
	r.startGame()
	fc1.waitFor(t, "roundStart", time.Second)
	r.handleAction(Action{SID: "s1", Name: "placeBlock", Data: json.RawMessage(`{"x":1,"y":1,"type":"wall"}`)})
	if res1.Player.Score != 0 {
		t.Fatalf("wrong-mode action changed score")
	}
}

func TestPlayerInputOverwritesPosition(t *testing.T) {
	r := NewRoom("AAAAAA", domain.Public)
	sched := stoppedTimer()

	_, res := joinDirect(t, r, sched, "s1", "alice")

	x, vy := 42.5, -3.0
	r.handleInput(Input{SID: "s1", Input: InputPayload{X: &x, VY: &vy}})
	if res.Player.X != 42.5 || res.Player.VY != -3.0 {
		t.Fatalf("input not applied: %+v", res.Player)
	}
	// Unset fields stay untouched.
	if res.Player.VX != 0 {
		t.Fatalf("vx must be untouched")
	}
	r.handleInput(Input{SID: "ghost", Input: InputPayload{X: &x}})
}

func TestTickBroadcastsSnapshotWhileStarted(t *testing.T) {
	r := NewRoom("AAAAAA", domain.Public)
	sched := stoppedTimer()

	fc, _ := joinDirect(t, r, sched, "s1", "alice")

	// Not started yet: ticks are no-ops.
	r.tick(time.Now())
	if !fc.empty() {
		t.Fatalf("unstarted room must not broadcast snapshots")
	}

	r.startGame()
	fc.waitFor(t, "roundStart", time.Second)
	r.tick(time.Now())
	msg := fc.waitFor(t, "gameStateUpdate", time.Second)
	if msg["mode"] != "race" {
		t.Fatalf("snapshot mode = %v, want race", msg["mode"])
	}
	players := msg["players"].([]any)
	if len(players) != 1 {
		t.Fatalf("snapshot players = %d, want 1", len(players))
	}
	if _, ok := msg["teamScores"]; !ok {
		t.Fatalf("snapshot missing teamScores")
	}
}
