package relay

import (
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/okatev/huddle/internal/core"
	"github.com/okatev/huddle/internal/domain"
	"github.com/okatev/huddle/internal/history"
	"github.com/okatev/huddle/internal/wire"
)

var (
	// ErrAlreadyJoined is surfaced to a session that joins twice on
	// the same connection; the room is unaffected.
	ErrAlreadyJoined = errors.New("session already joined a room")

	ErrUnknownSession = errors.New("unknown session")
)

// Service is the room/membership relay. It routes signaling and chat
// between the participants of a call and never inspects signal
// payloads. All side effects are the broadcasts described on each
// method; nothing is persisted.
type Service struct {
	Registry *Registry
	Rooms    *RoomManager
	History  history.Recorder
}

func NewService(h history.Recorder) *Service {
	return &Service{
		Registry: NewRegistry(),
		Rooms:    NewRoomManager(),
		History:  h,
	}
}

// Join registers the session under the room, acks the joiner with the
// roster of members that were already present and broadcasts
// user-joined (new sid + full roster) to everyone else. The snapshot,
// the membership add, the ack and the broadcast are one atomic room
// operation: concurrent joiners always appear in each other's roster
// or user-joined, and the ack reaches the joiner ahead of any offer a
// member sends in reaction. A second join on the same session fails
// with ErrAlreadyJoined.
func (s *Service) Join(sid domain.SessionID, roomID domain.RoomID) ([]domain.SessionID, error) {
	sess, ok := s.Registry.Session(sid)
	if !ok {
		return nil, ErrUnknownSession
	}
	if err := s.Registry.SetRoom(sid, roomID); err != nil {
		return nil, err
	}

	room := s.Rooms.GetOrCreate(roomID)

	existing := room.Join(sid, sess,
		func(existing []domain.SessionID) core.Frame {
			return s.encode(wire.Message{
				Type:      wire.TypeJoinAck,
				SessionID: sid,
				Room:      roomID,
				Roster:    existing,
			})
		},
		func(roster []domain.SessionID) core.Frame {
			return s.encode(wire.Message{
				Type:      wire.TypeUserJoined,
				SessionID: sid,
				Roster:    roster,
			})
		})

	if s.History != nil {
		go s.History.RecordVisit(sid, roomID)
	}

	log.Info().Str("module", "relay").Str("sid", string(sid)).Str("room", string(roomID)).Int("count", room.MemberCount()).Msg("joined")
	return existing, nil
}

// encode returns nil on failure so frame deliveries just skip; the
// envelopes built here cannot realistically fail validation.
func (s *Service) encode(m wire.Message) core.Frame {
	b, err := wire.Encode(m)
	if err != nil {
		log.Error().Err(err).Str("module", "relay").Str("type", string(m.Type)).Msg("encode")
		return nil
	}
	return core.Frame(b)
}

// Leave removes the session from its room, tells the remaining members
// and discards the room when it became empty. Idempotent: a second
// call for the same session is a no-op.
func (s *Service) Leave(sid domain.SessionID) {
	roomID, ok := s.Registry.RoomOf(sid)
	if !ok {
		return
	}
	s.Registry.ClearRoom(sid)

	room, ok := s.Rooms.Get(roomID)
	if !ok {
		return
	}
	room.RemoveMember(sid)
	s.Rooms.DropIfEmpty(roomID)

	frame := s.encode(wire.Message{Type: wire.TypeUserLeft, SessionID: sid})
	if frame == nil {
		return
	}
	room.Broadcast(sid, frame)
	log.Info().Str("module", "relay").Str("sid", string(sid)).Str("room", string(roomID)).Msg("left")
}

// Disconnect is the connection-teardown path: leave, then forget the
// session entirely.
func (s *Service) Disconnect(sid domain.SessionID) {
	s.Leave(sid)
	s.Registry.Unbind(sid)
}

// RelaySignal forwards the payload verbatim to the target session in
// the sender's room, stamped with the sender id. A target that is not
// in the room (already left) is an expected race: the message is
// dropped silently, never surfaced to the sender.
func (s *Service) RelaySignal(sid domain.SessionID, m wire.Message) {
	roomID, ok := s.Registry.RoomOf(sid)
	if !ok {
		log.Debug().Str("module", "relay").Str("sid", string(sid)).Msg("signal from session without room, dropped")
		return
	}
	room, ok := s.Rooms.Get(roomID)
	if !ok {
		return
	}

	frame := s.encode(wire.Message{
		Type:            wire.TypeSignal,
		SenderSessionID: sid,
		Payload:         m.Payload,
	})
	if frame == nil {
		return
	}
	if !room.Send(m.TargetSessionID, frame) {
		log.Debug().Str("module", "relay").Str("sid", string(sid)).Str("target", string(m.TargetSessionID)).Msg("signal target gone, dropped")
	}
}

// BroadcastChat fans the chat message out to every other member of the
// sender's room; local echo is a client responsibility.
func (s *Service) BroadcastChat(sid domain.SessionID, text, displayName string) {
	roomID, ok := s.Registry.RoomOf(sid)
	if !ok {
		return
	}
	room, ok := s.Rooms.Get(roomID)
	if !ok {
		return
	}
	frame := s.encode(wire.Message{
		Type:            wire.TypeChatMessage,
		Text:            text,
		DisplayName:     displayName,
		SenderSessionID: sid,
	})
	if frame == nil {
		return
	}
	room.Broadcast(sid, frame)
}
