package wire

import (
	"encoding/json"
	"fmt"
)

// Decode parses and validates one inbound envelope. The payload of a
// signal envelope is validated for presence only; its contents remain
// opaque so the relay can stay transport-agnostic to SDP/ICE shapes.
func Decode(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, err
	}
	if err := m.Validate(); err != nil {
		return Message{}, err
	}
	return m, nil
}

func Encode(m Message) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(m)
}

func (m Message) Validate() error {
	switch m.Type {
	case TypeJoinCall:
		if m.Room == "" {
			return fmt.Errorf("join-call: missing room")
		}
	case TypeSignal:
		if m.TargetSessionID == "" && m.SenderSessionID == "" {
			return fmt.Errorf("signal: missing target/sender session id")
		}
		if len(m.Payload) == 0 {
			return fmt.Errorf("signal: missing payload")
		}
	case TypeChatMessage:
		if m.Text == "" {
			return fmt.Errorf("chat-message: missing text")
		}
	case TypeJoinAck, TypeUserJoined, TypeUserLeft:
		if m.SessionID == "" {
			return fmt.Errorf("%s: missing session id", m.Type)
		}
	case TypeError:
		if m.Error == "" {
			return fmt.Errorf("error: missing code")
		}
	case TypeLeave, TypePing, TypePong:
	case "":
		return fmt.Errorf("missing type")
	default:
		return fmt.Errorf("unknown type %q", m.Type)
	}
	return nil
}
