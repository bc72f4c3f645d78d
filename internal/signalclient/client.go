// Package signalclient is the call client's connection to the relay:
// a websocket with read/write pumps, the join handshake and typed
// send helpers. It feeds relay events to the mesh controller and
// implements its Signaler.
package signalclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/okatev/huddle/internal/domain"
	"github.com/okatev/huddle/internal/wire"
)

var ErrClosed = errors.New("signal connection closed")

const (
	writeWait    = 5 * time.Second
	joinAckWait  = 10 * time.Second
	sendBuffer   = 32
	incomingSize = 64
)

// Client is one websocket session against the relay.
type Client struct {
	conn *websocket.Conn

	send     chan []byte
	incoming chan wire.Message
	done     chan struct{}
	once     sync.Once

	mu        sync.Mutex
	sessionID domain.SessionID
}

// Dial connects to the relay's signal endpoint. serverURL is the http
// or https base address of the server.
func Dial(ctx context.Context, serverURL string) (*Client, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("server url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = "/api/ws/signal"

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", u.String(), err)
	}
	c := &Client{
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		incoming: make(chan wire.Message, incomingSize),
		done:     make(chan struct{}),
	}
	go c.readPump()
	go c.writePump()
	return c, nil
}

func (c *Client) readPump() {
	defer c.Close()
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn().Err(err).Str("module", "signalclient").Msg("read error")
			}
			return
		}
		m, err := wire.Decode(data)
		if err != nil {
			log.Warn().Err(err).Str("module", "signalclient").Msg("bad frame dropped")
			continue
		}
		select {
		case c.incoming <- m:
		case <-c.done:
			return
		}
	}
}

func (c *Client) writePump() {
	for {
		select {
		case frame := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				log.Warn().Err(err).Str("module", "signalclient").Msg("write error")
				c.Close()
				return
			}
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (c *Client) write(m wire.Message) error {
	frame, err := wire.Encode(m)
	if err != nil {
		return err
	}
	select {
	case c.send <- frame:
		return nil
	case <-c.done:
		return ErrClosed
	}
}

// JoinCall runs the join handshake and blocks until the relay acks.
// The returned roster lists the members that were already in the room.
func (c *Client) JoinCall(room domain.RoomID, displayName string) ([]domain.SessionID, error) {
	err := c.write(wire.Message{
		Type:        wire.TypeJoinCall,
		Room:        room,
		DisplayName: displayName,
	})
	if err != nil {
		return nil, err
	}

	timeout := time.NewTimer(joinAckWait)
	defer timeout.Stop()
	for {
		select {
		case m := <-c.incoming:
			switch m.Type {
			case wire.TypeJoinAck:
				c.mu.Lock()
				c.sessionID = m.SessionID
				c.mu.Unlock()
				return m.Roster, nil
			case wire.TypeError:
				return nil, fmt.Errorf("join rejected: %s", m.Error)
			default:
				// The relay sends the ack before anything else for
				// this session, so nothing expected gets here.
				log.Warn().Str("module", "signalclient").Str("type", string(m.Type)).Msg("frame before join ack dropped")
			}
		case <-timeout.C:
			return nil, errors.New("join ack timeout")
		case <-c.done:
			return nil, ErrClosed
		}
	}
}

// SendSignal forwards one negotiation payload to the target session.
func (c *Client) SendSignal(target domain.SessionID, payload wire.SignalPayload) error {
	raw, err := wire.EncodePayload(payload)
	if err != nil {
		return err
	}
	return c.write(wire.Message{
		Type:            wire.TypeSignal,
		TargetSessionID: target,
		Payload:         raw,
	})
}

func (c *Client) SendChat(text string) error {
	return c.write(wire.Message{Type: wire.TypeChatMessage, Text: text})
}

// Leave announces the departure; the relay broadcasts user-left and
// the server side tears the membership down.
func (c *Client) Leave() error {
	return c.write(wire.Message{Type: wire.TypeLeave})
}

// Incoming delivers decoded relay frames in arrival order. The channel
// is not closed on shutdown; select against Done.
func (c *Client) Incoming() <-chan wire.Message { return c.incoming }

// Done is closed when the connection is gone.
func (c *Client) Done() <-chan struct{} { return c.done }

func (c *Client) SessionID() domain.SessionID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

func (c *Client) Close() {
	c.once.Do(func() {
		close(c.done)
		// Give the write pump a moment to flush the close frame.
		time.AfterFunc(writeWait, func() { c.conn.Close() })
	})
}

// ICEServers asks the relay which STUN servers its clients should use.
func ICEServers(ctx context.Context, serverURL string) ([]string, error) {
	endpoint := strings.TrimRight(serverURL, "/") + "/api/ice-servers"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch ice servers: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch ice servers: status %d", resp.StatusCode)
	}
	var out struct {
		StunServers []string `json:"stunServers"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode ice servers: %w", err)
	}
	return out.StunServers, nil
}
