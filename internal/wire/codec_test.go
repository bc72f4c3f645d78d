package wire

import (
	"bytes"
	"encoding/json"
	"reflect"
	"testing"

	"github.com/pion/webrtc/v4"
)

func mustEncodePayload(t *testing.T, p SignalPayload) json.RawMessage {
	t.Helper()
	raw, err := EncodePayload(p)
	if err != nil {
		t.Fatalf("encode payload: %v", err)
	}
	return raw
}

func TestSignalEnvelope_RoundTrip(t *testing.T) {
	mid := "0"
	idx := uint16(0)

	payloads := map[string]SignalPayload{
		"offer":  {SDP: &SDP{Type: "offer", SDP: "v=0\r\no=- 1 1 IN IP4 0.0.0.0\r\n"}},
		"answer": {SDP: &SDP{Type: "answer", SDP: "v=0\r\no=- 2 2 IN IP4 0.0.0.0\r\n"}},
		"ice": {ICE: &ICE{
			Candidate:     "candidate:1 1 udp 2130706431 127.0.0.1 54321 typ host",
			SDPMid:        &mid,
			SDPMLineIndex: &idx,
		}},
	}

	for name, p := range payloads {
		t.Run(name, func(t *testing.T) {
			in := Message{
				Type:            TypeSignal,
				TargetSessionID: "s2",
				Payload:         mustEncodePayload(t, p),
			}

			b, err := Encode(in)
			if err != nil {
				t.Fatalf("encode: %v", err)
			}
			out, err := Decode(b)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if out.Type != TypeSignal || out.TargetSessionID != "s2" {
				t.Fatalf("unexpected envelope: %#v", out)
			}

			got, err := DecodePayload(out.Payload)
			if err != nil {
				t.Fatalf("decode payload: %v", err)
			}
			if !reflect.DeepEqual(got, p) {
				t.Fatalf("payload round trip: got %#v, want %#v", got, p)
			}
		})
	}
}

func TestDecode_PreservesPayloadVerbatim(t *testing.T) {
	raw := []byte(`{"type":"signal","targetSessionId":"s2","payload":{"ice":{"candidate":"candidate:7 1 udp 1 10.0.0.1 9 typ host","sdpMid":"audio"}}}`)

	m, err := Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	var want struct {
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(raw, &want); err != nil {
		t.Fatalf("unmarshal reference: %v", err)
	}
	if !bytes.Equal(m.Payload, want.Payload) {
		t.Fatalf("payload mutated: got %s, want %s", m.Payload, want.Payload)
	}
}

func TestSignalPayload_Validate(t *testing.T) {
	tests := []struct {
		name    string
		p       SignalPayload
		wantErr bool
	}{
		{"sdp only", SignalPayload{SDP: &SDP{Type: "offer", SDP: "v=0"}}, false},
		{"ice only", SignalPayload{ICE: &ICE{Candidate: "candidate:1"}}, false},
		{"neither", SignalPayload{}, true},
		{"both", SignalPayload{SDP: &SDP{Type: "offer"}, ICE: &ICE{}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.p.Validate(); (err != nil) != tt.wantErr {
				t.Fatalf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDecode_Rejects(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"no type", `{"room":"R1"}`},
		{"unknown type", `{"type":"subscribe"}`},
		{"join without room", `{"type":"join-call"}`},
		{"signal without payload", `{"type":"signal","targetSessionId":"s2"}`},
		{"signal without target", `{"type":"signal","payload":{"ice":{}}}`},
		{"chat without text", `{"type":"chat-message","displayName":"bob"}`},
		{"not json", `hello`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode([]byte(tt.raw)); err == nil {
				t.Fatalf("expected error for %s", tt.raw)
			}
		})
	}
}

func TestSDP_PionConversion(t *testing.T) {
	desc := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0"}
	s := SDPFromPion(desc)
	back, err := s.ToPion()
	if err != nil {
		t.Fatalf("to pion: %v", err)
	}
	if back != desc {
		t.Fatalf("got %#v, want %#v", back, desc)
	}

	if _, err := (SDP{Type: "rollback"}).ToPion(); err == nil {
		t.Fatal("expected error for unsupported sdp type")
	}
}
