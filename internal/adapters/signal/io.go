package signal

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/okatev/huddle/internal/core"
	"github.com/okatev/huddle/internal/domain"
	"github.com/okatev/huddle/internal/wire"
)

const writeWait = 5 * time.Second

func (ctl *Controller) writePump(ctx context.Context, sid domain.SessionID, c *wsConn) {
	ticker := time.NewTicker(ctl.Cfg.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Str("sid", string(sid)).Msg("writePump ctx done")
			return
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "signal").Str("sid", string(sid)).Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		}
	}
}

func (ctl *Controller) readPump(ctx context.Context, sid domain.SessionID, user *domain.User, c *wsConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump closing")
		// Teardown is exactly-once: Disconnect's leave half is
		// idempotent and the registry forgets the session.
		ctl.Relay.Disconnect(sid)
		ctl.Limiter.Forget(sid)
		c.Close()
	}()

	c.conn.SetReadLimit(ctl.Cfg.ReadLimit)
	readWait := ctl.Cfg.PingPeriod + writeWait
	_ = c.conn.SetReadDeadline(time.Now().Add(readWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(readWait))
	})

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Str("sid", string(sid)).Msg("readPump ctx done")
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("readPump read error")
				}
				return
			}
			ctl.dispatch(sid, user, c, data)
		}
	}
}

// dispatch handles one inbound envelope; messages of a single session
// are processed here in arrival order.
func (ctl *Controller) dispatch(sid domain.SessionID, user *domain.User, c *wsConn, data []byte) {
	m, err := wire.Decode(data)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("bad envelope")
		ctl.sendError(c, wire.ErrCodeBadPayload)
		return
	}

	switch m.Type {
	case wire.TypeJoinCall:
		ctl.handleJoin(sid, user, c, m)
	case wire.TypeSignal:
		ctl.Relay.RelaySignal(sid, m)
	case wire.TypeChatMessage:
		ctl.handleChat(sid, user, m)
	case wire.TypeLeave:
		ctl.Relay.Leave(sid)
	case wire.TypePing:
		ctl.send(c, wire.Message{Type: wire.TypePong})
	default:
		log.Warn().Str("module", "signal").Str("type", string(m.Type)).Msg("unexpected client envelope")
	}
}

func (ctl *Controller) send(c *wsConn, m wire.Message) {
	b, err := wire.Encode(m)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("encode reply")
		return
	}
	_ = c.TrySend(core.Frame(b))
}

func (ctl *Controller) sendError(c *wsConn, code string) {
	ctl.send(c, wire.Message{Type: wire.TypeError, Error: code})
}
