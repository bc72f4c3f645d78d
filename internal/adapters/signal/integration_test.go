package signal_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	router "github.com/okatev/huddle/internal/adapters/http"
	"github.com/okatev/huddle/internal/config"
	"github.com/okatev/huddle/internal/domain"
	"github.com/okatev/huddle/internal/relay"
	"github.com/okatev/huddle/internal/wire"
)

func testConfig() *config.Config {
	return &config.Config{
		Mode:        "release",
		StaticPath:  ".",
		ReadLimit:   65536,
		PingPeriod:  50 * time.Second,
		SendBuffer:  32,
		Secret:      "test-secret",
		JoinLimit:   10,
		JoinWindow:  time.Minute,
		STUNServers: []string{"stun:stun.example.org:3478"},
	}
}

type testClient struct {
	t    *testing.T
	conn *websocket.Conn
}

func dialClient(t *testing.T, srv *httptest.Server) *testClient {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws/signal"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return &testClient{t: t, conn: conn}
}

func (c *testClient) send(m wire.Message) {
	c.t.Helper()
	b, err := wire.Encode(m)
	if err != nil {
		c.t.Fatalf("encode: %v", err)
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
		c.t.Fatalf("write: %v", err)
	}
}

func (c *testClient) recv() wire.Message {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		c.t.Fatalf("read: %v", err)
	}
	m, err := wire.Decode(data)
	if err != nil {
		c.t.Fatalf("decode %s: %v", data, err)
	}
	return m
}

// recvType skips unrelated frames until one of the wanted type shows
// up, guarding against interleaved broadcasts.
func (c *testClient) recvType(typ wire.Type) wire.Message {
	c.t.Helper()
	for i := 0; i < 10; i++ {
		m := c.recv()
		if m.Type == typ {
			return m
		}
	}
	c.t.Fatalf("no %s frame within 10 messages", typ)
	return wire.Message{}
}

func (c *testClient) join(room domain.RoomID, name string) wire.Message {
	c.t.Helper()
	c.send(wire.Message{Type: wire.TypeJoinCall, Room: room, DisplayName: name})
	return c.recvType(wire.TypeJoinAck)
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	svc := relay.NewService(nil)
	r := router.SetupRouter(context.Background(), testConfig(), svc)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestWebSocket_JoinSignalLeave(t *testing.T) {
	srv := newTestServer(t)

	c1 := dialClient(t, srv)
	ack1 := c1.join("R1", "alice")
	if ack1.SessionID == "" {
		t.Fatal("join-ack carries no session id")
	}
	if len(ack1.Roster) != 0 {
		t.Fatalf("first joiner roster = %v, want empty", ack1.Roster)
	}

	c2 := dialClient(t, srv)
	ack2 := c2.join("R1", "bob")
	if len(ack2.Roster) != 1 || ack2.Roster[0] != ack1.SessionID {
		t.Fatalf("second joiner roster = %v, want [%s]", ack2.Roster, ack1.SessionID)
	}

	joined := c1.recvType(wire.TypeUserJoined)
	if joined.SessionID != ack2.SessionID {
		t.Fatalf("user-joined for %q, want %q", joined.SessionID, ack2.SessionID)
	}
	if len(joined.Roster) != 2 {
		t.Fatalf("user-joined roster = %v, want both members", joined.Roster)
	}

	// Signal c1 → c2, payload must come back verbatim.
	payload := json.RawMessage(`{"ice":{"candidate":"candidate:1 1 udp 2130706431 192.0.2.7 40000 typ host","sdpMid":"0"}}`)
	c1.send(wire.Message{
		Type:            wire.TypeSignal,
		TargetSessionID: ack2.SessionID,
		Payload:         payload,
	})
	sig := c2.recvType(wire.TypeSignal)
	if sig.SenderSessionID != ack1.SessionID {
		t.Fatalf("signal sender = %q, want %q", sig.SenderSessionID, ack1.SessionID)
	}
	if string(sig.Payload) != string(payload) {
		t.Fatalf("payload mutated in flight: %s", sig.Payload)
	}

	// Chat reaches the other member, not the sender.
	c2.send(wire.Message{Type: wire.TypeChatMessage, Text: "hi", DisplayName: "bob"})
	chat := c1.recvType(wire.TypeChatMessage)
	if chat.Text != "hi" || chat.SenderSessionID != ack2.SessionID {
		t.Fatalf("chat = %#v", chat)
	}

	// Abrupt disconnect of c1 surfaces as user-left at c2.
	c1.conn.Close()
	left := c2.recvType(wire.TypeUserLeft)
	if left.SessionID != ack1.SessionID {
		t.Fatalf("user-left for %q, want %q", left.SessionID, ack1.SessionID)
	}
}

func TestHTTP_RoomDetail(t *testing.T) {
	srv := newTestServer(t)

	c1 := dialClient(t, srv)
	ack := c1.join("R1", "alice")

	resp, err := http.Get(srv.URL + "/api/rooms/R1")
	if err != nil {
		t.Fatalf("get room detail: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var detail struct {
		ID      string `json:"id"`
		Members []struct {
			ID          string `json:"id"`
			DisplayName string `json:"displayName"`
		} `json:"members"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&detail); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if detail.ID != "R1" || len(detail.Members) != 1 {
		t.Fatalf("detail = %#v", detail)
	}
	if m := detail.Members[0]; m.ID != string(ack.SessionID) || m.DisplayName != "alice" {
		t.Fatalf("member = %#v", m)
	}

	missing, err := http.Get(srv.URL + "/api/rooms/nope")
	if err != nil {
		t.Fatalf("get missing room: %v", err)
	}
	missing.Body.Close()
	if missing.StatusCode != http.StatusNotFound {
		t.Fatalf("missing room status = %d, want 404", missing.StatusCode)
	}
}

func TestHTTP_ICEServers(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/ice-servers")
	if err != nil {
		t.Fatalf("get ice servers: %v", err)
	}
	defer resp.Body.Close()

	var out struct {
		StunServers []string `json:"stunServers"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.StunServers) != 1 || out.StunServers[0] != "stun:stun.example.org:3478" {
		t.Fatalf("stun servers = %v", out.StunServers)
	}
}

func TestWebSocket_DoubleJoinRejected(t *testing.T) {
	srv := newTestServer(t)

	c1 := dialClient(t, srv)
	c1.join("R1", "alice")
	c1.send(wire.Message{Type: wire.TypeJoinCall, Room: "R2"})

	errMsg := c1.recvType(wire.TypeError)
	if errMsg.Error != wire.ErrCodeAlreadyJoined {
		t.Fatalf("error code = %q, want %q", errMsg.Error, wire.ErrCodeAlreadyJoined)
	}
}

func TestWebSocket_PingPong(t *testing.T) {
	srv := newTestServer(t)

	c1 := dialClient(t, srv)
	c1.send(wire.Message{Type: wire.TypePing})
	if m := c1.recvType(wire.TypePong); m.Type != wire.TypePong {
		t.Fatalf("got %#v, want pong", m)
	}
}
