// Package wire defines the signaling wire format: JSON text envelopes
// discriminated by a "type" field, shared by the relay server and the
// call clients. The relay forwards signal payloads verbatim and never
// looks inside them; only clients decode SDP/ICE bodies.
package wire

import (
	"encoding/json"

	"github.com/okatev/huddle/internal/domain"
)

type Type string

const (
	// client → server
	TypeJoinCall Type = "join-call"
	TypeLeave    Type = "leave"
	TypePing     Type = "ping"

	// both directions
	TypeSignal      Type = "signal"
	TypeChatMessage Type = "chat-message"

	// server → client
	TypeJoinAck    Type = "join-ack"
	TypeUserJoined Type = "user-joined"
	TypeUserLeft   Type = "user-left"
	TypePong       Type = "pong"
	TypeError      Type = "error"
)

// Message is the single envelope shape for every signaling message.
// Which fields are meaningful depends on Type; Validate enforces the
// per-type requirements. Payload stays raw so the relay can forward it
// unmodified.
type Message struct {
	Type Type `json:"type"`

	Room        domain.RoomID    `json:"room,omitempty"`
	SessionID   domain.SessionID `json:"sessionId,omitempty"`
	DisplayName string           `json:"displayName,omitempty"`

	TargetSessionID domain.SessionID `json:"targetSessionId,omitempty"`
	SenderSessionID domain.SessionID `json:"senderSessionId,omitempty"`
	Payload         json.RawMessage  `json:"payload,omitempty"`

	Roster []domain.SessionID `json:"roster,omitempty"`
	Text   string             `json:"text,omitempty"`
	Error  string             `json:"error,omitempty"`
}

// Error codes carried by TypeError messages.
const (
	ErrCodeAlreadyJoined = "already_joined"
	ErrCodeNotJoined     = "not_joined"
	ErrCodeBadPayload    = "bad_payload"
	ErrCodeRateLimited   = "rate_limited"
)
