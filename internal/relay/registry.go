package relay

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/okatev/huddle/internal/core"
	"github.com/okatev/huddle/internal/domain"
)

type sessionEntry struct {
	Room    domain.RoomID
	Session core.MemberSession
	Cancel  context.CancelFunc
}

// Registry tracks every connected session and which room, if any, it
// has joined. A session belongs to at most one room at a time.
type Registry struct {
	mu       sync.RWMutex
	sessions map[domain.SessionID]*sessionEntry
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[domain.SessionID]*sessionEntry)}
}

func (r *Registry) Bind(sid domain.SessionID, sess core.MemberSession, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sid] = &sessionEntry{Session: sess, Cancel: cancel}
	log.Info().Str("module", "relay.registry").Str("sid", string(sid)).Msg("bound session")
}

// Unbind forgets the session and cancels its connection context.
func (r *Registry) Unbind(sid domain.SessionID) {
	r.mu.Lock()
	e, ok := r.sessions[sid]
	delete(r.sessions, sid)
	r.mu.Unlock()
	if !ok {
		return
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "relay.registry").Str("sid", string(sid)).Msg("unbound session")
}

func (r *Registry) Session(sid domain.SessionID) (core.MemberSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.sessions[sid]; ok {
		return e.Session, true
	}
	return nil, false
}

// RoomOf reports the room the session has joined, if any.
func (r *Registry) RoomOf(sid domain.SessionID) (domain.RoomID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[sid]
	if !ok || e.Room == "" {
		return "", false
	}
	return e.Room, true
}

// SetRoom records the joined room. It fails when the session is
// unknown or already in a room, keeping the one-room invariant.
func (r *Registry) SetRoom(sid domain.SessionID, room domain.RoomID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sid]
	if !ok {
		return ErrUnknownSession
	}
	if e.Room != "" {
		return ErrAlreadyJoined
	}
	e.Room = room
	return nil
}

// ClearRoom drops the room association; a no-op for unknown sessions
// or sessions not in a room.
func (r *Registry) ClearRoom(sid domain.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.sessions[sid]; ok {
		e.Room = ""
	}
}
