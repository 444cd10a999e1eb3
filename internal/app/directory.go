package app

import (
	"crypto/rand"
	"math/big"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/blockparty/server/internal/domain"
)

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// RoomInfo is returned by the API for the lobby browser.
type RoomInfo struct {
	Code    domain.RoomCode `json:"code"`
	Players int             `json:"players"`
	Started bool            `json:"started"`
}

// Directory is the process-wide table of live rooms. It is constructed
// once at startup and handed to the gateway; tests build their own.
type Directory struct {
	mu    sync.RWMutex
	rooms map[domain.RoomCode]*Room
	order []domain.RoomCode
}

func NewDirectory() *Directory {
	return &Directory{rooms: make(map[domain.RoomCode]*Room)}
}

// Create inserts an empty room under a code unique among live rooms
// and starts its loop.
func (d *Directory) Create(vis domain.Visibility) *Room {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.createLocked(vis)
}

func (d *Directory) createLocked(vis domain.Visibility) *Room {
	var code domain.RoomCode
	for {
		code = generateCode(domain.RoomCodeLen)
		if _, taken := d.rooms[code]; !taken {
			break
		}
	}
	r := NewRoom(code, vis)
	r.OnEmpty = func(c domain.RoomCode) { d.DeleteIfEmpty(c) }
	d.rooms[code] = r
	d.order = append(d.order, code)
	go r.Run()
	log.Info().Str("module", "app.directory").Str("room", string(code)).Str("visibility", string(vis)).Msg("room created")
	return r
}

// FindOpenPublic returns the first unstarted public room with space,
// scanning in insertion order, or creates one.
func (d *Directory) FindOpenPublic() *Room {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, code := range d.order {
		r, ok := d.rooms[code]
		if !ok {
			continue
		}
		if r.Visibility == domain.Public && !r.Started() && r.PlayerCount() < domain.RoomCapacity {
			return r
		}
	}
	return d.createLocked(domain.Public)
}

func (d *Directory) Get(code domain.RoomCode) (*Room, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	r, ok := d.rooms[code]
	return r, ok
}

// DeleteIfEmpty removes the room and stops its loop and timers once
// the player count is zero. Called after every player removal.
func (d *Directory) DeleteIfEmpty(code domain.RoomCode) {
	d.mu.Lock()
	defer d.mu.Unlock()
	r, ok := d.rooms[code]
	if !ok || r.PlayerCount() > 0 {
		return
	}
	delete(d.rooms, code)
	for i, c := range d.order {
		if c == code {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
	r.Stop()
	log.Info().Str("module", "app.directory").Str("room", string(code)).Msg("room deleted")
}

// List reports public rooms for the lobby browser.
func (d *Directory) List() []RoomInfo {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]RoomInfo, 0, len(d.rooms))
	for _, code := range d.order {
		r, ok := d.rooms[code]
		if !ok || r.Visibility != domain.Public {
			continue
		}
		out = append(out, RoomInfo{Code: code, Players: r.PlayerCount(), Started: r.Started()})
	}
	return out
}

func generateCode(n int) domain.RoomCode {
	b := make([]byte, n)
	max := big.NewInt(int64(len(codeAlphabet)))
	for i := range b {
		idx, _ := rand.Int(rand.Reader, max)
		b[i] = codeAlphabet[idx.Int64()]
	}
	return domain.RoomCode(b)
}
