package core

import "github.com/okatev/huddle/internal/domain"

// PublishResult reports delivery stats/backpressure to the relay.
type PublishResult struct {
	SentTo  int
	Dropped []domain.SessionID
}

// MemberDTO is a read-only view for APIs (no transport fields).
type MemberDTO struct {
	ID          domain.SessionID `json:"id"`
	DisplayName string           `json:"displayName"`
}

// RoomService is the core-facing API of a room.
// It owns the membership set but never touches transport resources.
type RoomService interface {
	Room() *domain.Room
	MemberCount() int
	MembersSnapshot() []MemberDTO

	// Roster returns the current member session ids, sorted.
	Roster() []domain.SessionID
	Member(sid domain.SessionID) (MemberSession, bool)

	AddMember(sid domain.SessionID, ms MemberSession)
	RemoveMember(sid domain.SessionID)

	// Join atomically snapshots the roster, adds the member, enqueues
	// the ack frame on the joiner and fans the announce frame out to
	// everyone else, all under one hold of the room lock. Concurrent
	// joins therefore always see each other, and the ack reaches the
	// joiner's queue before any frame provoked by the announcement.
	// The builders receive the roster before respectively after the
	// add; a nil builder or a nil frame skips that delivery. Returns
	// the pre-join roster.
	Join(sid domain.SessionID, ms MemberSession,
		ack func(existing []domain.SessionID) Frame,
		announce func(roster []domain.SessionID) Frame) []domain.SessionID

	// Broadcast fans data out to every member except from.
	Broadcast(from domain.SessionID, data Frame) PublishResult
	// Send delivers data to a single member; reports whether the
	// member was present.
	Send(to domain.SessionID, data Frame) bool
}

type RoomInfo struct {
	ID          domain.RoomID `json:"id"`
	MemberCount int           `json:"member_count"`
}
