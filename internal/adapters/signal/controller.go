// Package signal is the websocket adapter for the relay: it upgrades
// connections, owns the read/write pumps and translates wire envelopes
// into relay service calls.
package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/okatev/huddle/internal/config"
	"github.com/okatev/huddle/internal/core"
	"github.com/okatev/huddle/internal/domain"
	"github.com/okatev/huddle/internal/identity"
	"github.com/okatev/huddle/internal/relay"
)

var ErrBackpressure = errors.New("backpressure")

const defaultDisplayName = "guest"

type Controller struct {
	Relay    *relay.Service
	Identity identity.Provider
	Limiter  *relay.JoinRateLimiter
	Cfg      *config.Config
}

func NewController(svc *relay.Service, id identity.Provider, cfg *config.Config) *Controller {
	return &Controller{
		Relay:    svc,
		Identity: id,
		Limiter:  relay.NewJoinRateLimiter(cfg.JoinLimit, cfg.JoinWindow),
		Cfg:      cfg,
	}
}

// wsConn adapts one gorilla connection to core.SignalConnection: a
// buffered send channel drained by the write pump, so one slow client
// never blocks a broadcast.
type wsConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *wsConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *wsConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleSignal turns one HTTP request into a relay session: a fresh
// session id, a bound member session and the two pumps.
func (ctl *Controller) HandleSignal(ctx context.Context, c *gin.Context) {
	sid := domain.SessionID(uuid.NewString())

	displayName := defaultDisplayName
	if ctl.Identity != nil {
		if name := ctl.Identity.DisplayName(c); name != "" {
			displayName = name
		}
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("new WS connection")

	conn := &wsConn{
		conn: ws,
		send: make(chan core.Frame, ctl.Cfg.SendBuffer),
	}

	user, err := domain.NewUser(sid, displayName)
	if err != nil {
		user, _ = domain.NewUser(sid, defaultDisplayName)
	}

	ctx, cancel := context.WithCancel(ctx)
	ctl.Relay.Registry.Bind(sid, core.NewMemberSession(user, conn), cancel)

	go ctl.writePump(ctx, sid, conn)
	go ctl.readPump(ctx, sid, user, conn)
}
