package signalclient_test

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	router "github.com/okatev/huddle/internal/adapters/http"
	"github.com/okatev/huddle/internal/config"
	"github.com/okatev/huddle/internal/relay"
	"github.com/okatev/huddle/internal/signalclient"
	"github.com/okatev/huddle/internal/wire"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := &config.Config{
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
	svc := relay.NewService(nil)
	srv := httptest.NewServer(router.SetupRouter(context.Background(), cfg, svc))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server) *signalclient.Client {
	t.Helper()
	c, err := signalclient.Dial(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

// waitFor reads Incoming until a frame of the wanted type shows up.
func waitFor(t *testing.T, c *signalclient.Client, typ wire.Type) wire.Message {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case m := <-c.Incoming():
			if m.Type == typ {
				return m
			}
		case <-deadline:
			t.Fatalf("no %s frame within deadline", typ)
		case <-c.Done():
			t.Fatalf("connection closed waiting for %s", typ)
		}
	}
}

func TestClient_JoinSignalChatLeave(t *testing.T) {
	srv := newTestServer(t)

	alice := dial(t, srv)
	roster, err := alice.JoinCall("R1", "alice")
	if err != nil {
		t.Fatalf("alice join: %v", err)
	}
	if len(roster) != 0 {
		t.Fatalf("first joiner roster = %v, want empty", roster)
	}
	if alice.SessionID() == "" {
		t.Fatal("session id not recorded from join ack")
	}

	bob := dial(t, srv)
	roster, err = bob.JoinCall("R1", "bob")
	if err != nil {
		t.Fatalf("bob join: %v", err)
	}
	if len(roster) != 1 || roster[0] != alice.SessionID() {
		t.Fatalf("second joiner roster = %v, want [%s]", roster, alice.SessionID())
	}

	joined := waitFor(t, alice, wire.TypeUserJoined)
	if joined.SessionID != bob.SessionID() {
		t.Fatalf("user-joined for %q, want bob", joined.SessionID)
	}

	payload := wire.SignalPayload{ICE: &wire.ICE{Candidate: "candidate:1 1 udp 2130706431 192.0.2.7 40000 typ host"}}
	if err := bob.SendSignal(alice.SessionID(), payload); err != nil {
		t.Fatalf("send signal: %v", err)
	}
	sig := waitFor(t, alice, wire.TypeSignal)
	if sig.SenderSessionID != bob.SessionID() {
		t.Fatalf("signal sender = %q, want bob", sig.SenderSessionID)
	}
	got, err := wire.DecodePayload(sig.Payload)
	if err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if got.ICE == nil || got.ICE.Candidate != payload.ICE.Candidate {
		t.Fatalf("payload = %+v", got)
	}

	if err := alice.SendChat("hi"); err != nil {
		t.Fatalf("send chat: %v", err)
	}
	chat := waitFor(t, bob, wire.TypeChatMessage)
	if chat.Text != "hi" || chat.SenderSessionID != alice.SessionID() {
		t.Fatalf("chat = %#v", chat)
	}

	if err := bob.Leave(); err != nil {
		t.Fatalf("leave: %v", err)
	}
	left := waitFor(t, alice, wire.TypeUserLeft)
	if left.SessionID != bob.SessionID() {
		t.Fatalf("user-left for %q, want bob", left.SessionID)
	}
}

func TestICEServers_FetchedFromRelay(t *testing.T) {
	srv := newTestServer(t)

	got, err := signalclient.ICEServers(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("ice servers: %v", err)
	}
	if len(got) != 1 || got[0] != "stun:stun.example.org:3478" {
		t.Fatalf("ice servers = %v", got)
	}
}

func TestClient_RejectsUnknownScheme(t *testing.T) {
	if _, err := signalclient.Dial(context.Background(), "ftp://example.org"); err == nil {
		t.Fatal("expected scheme error")
	}
}
