package app

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/blockparty/server/internal/domain"
)

type sessionEntry struct {
	RoomCode domain.RoomCode
	Conn     Conn
	Cancel   context.CancelFunc
}

// Registry maps each live connection to its current room. It is the
// only structure besides the Directory touched by every room's worth
// of events, so it carries its own lock.
type Registry struct {
	mu       sync.RWMutex
	sessions map[domain.PlayerID]*sessionEntry
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[domain.PlayerID]*sessionEntry)}
}

func (r *Registry) Bind(sid domain.PlayerID, conn Conn, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sid] = &sessionEntry{Conn: conn, Cancel: cancel}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("bound session")
}

func (r *Registry) SetRoom(sid domain.PlayerID, code domain.RoomCode) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.sessions[sid]
	if !ok {
		return false
	}
	entry.RoomCode = code
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("room", string(code)).Msg("updated room")
	return true
}

func (r *Registry) ClearRoom(sid domain.PlayerID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.sessions[sid]; ok {
		entry.RoomCode = ""
	}
}

// RoomOf resolves the room for inbound event routing.
func (r *Registry) RoomOf(sid domain.PlayerID) (domain.RoomCode, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.sessions[sid]
	if !ok || entry.RoomCode == "" {
		return "", false
	}
	return entry.RoomCode, true
}

func (r *Registry) Unbind(sid domain.PlayerID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sid)
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("unbind session")
}

// Cancel tears down the connection's pumps via its stored context.
func (r *Registry) Cancel(sid domain.PlayerID) bool {
	r.mu.RLock()
	e, ok := r.sessions[sid]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	return true
}
