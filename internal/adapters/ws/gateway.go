package ws

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/blockparty/server/internal/app"
	"github.com/blockparty/server/internal/config"
	"github.com/blockparty/server/internal/domain"
)

var ErrBackpressure = errors.New("backpressure")

// Gateway is the transport-facing layer: it receives inbound client
// events, dispatches them into rooms, and lets rooms fan snapshots
// back out through the bound connections.
type Gateway struct {
	Cfg      *config.Config
	Rooms    *app.Directory
	Registry *app.Registry

	limiter *JoinRateLimiter
}

func NewGateway(cfg *config.Config, rooms *app.Directory, registry *app.Registry) *Gateway {
	return &Gateway{
		Cfg:      cfg,
		Rooms:    rooms,
		Registry: registry,
		limiter:  NewJoinRateLimiter(5, 10*time.Second),
	}
}

type WsConn struct {
	conn *websocket.Conn
	send chan []byte

	mu     sync.RWMutex
	closed bool
}

func (c *WsConn) TrySend(data []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- data:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (g *Gateway) HandleWS(ctx context.Context, c *gin.Context) {
	sid := domain.PlayerID(c.GetString("client_token"))
	log.Info().Str("module", "ws").Str("sid", string(sid)).Msg("new WS connection")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "ws").Msg("ws upgrade")
		return
	}
	if g.Cfg.ReadLimit > 0 {
		conn.SetReadLimit(g.Cfg.ReadLimit)
	}

	wc := &WsConn{
		conn: conn,
		send: make(chan []byte, 64),
	}

	ctx, cancel := context.WithCancel(ctx)
	g.Registry.Bind(sid, wc, cancel)

	go g.writePump(ctx, wc)
	go g.readPump(ctx, sid, wc)
}
