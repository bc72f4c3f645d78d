package core

import (
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/okatev/huddle/internal/domain"
)

// roomImpl is a threadsafe in-memory room. All membership mutations go
// through its mutex, so concurrent joins and leaves for the same room
// are serialized. It never closes adapter-owned resources.
type roomImpl struct {
	room  *domain.Room
	mu    sync.RWMutex
	bySID map[domain.SessionID]MemberSession
}

func NewRoomService(room *domain.Room) RoomService {
	return &roomImpl{
		room:  room,
		bySID: make(map[domain.SessionID]MemberSession),
	}
}

func (r *roomImpl) Room() *domain.Room { return r.room }

func (r *roomImpl) MemberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bySID)
}

func (r *roomImpl) AddMember(sid domain.SessionID, ms MemberSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bySID[sid] = ms
	log.Info().Str("module", "core.room").Str("room", string(r.room.ID)).Str("sid", string(sid)).Msg("member added")
}

func (r *roomImpl) RemoveMember(sid domain.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.bySID, sid)
	log.Info().Str("module", "core.room").Str("room", string(r.room.ID)).Str("sid", string(sid)).Msg("member removed")
}

func (r *roomImpl) Member(sid domain.SessionID) (MemberSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ms, ok := r.bySID[sid]
	return ms, ok
}

func (r *roomImpl) Roster() []domain.SessionID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rosterLocked()
}

func (r *roomImpl) rosterLocked() []domain.SessionID {
	out := make([]domain.SessionID, 0, len(r.bySID))
	for sid := range r.bySID {
		out = append(out, sid)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (r *roomImpl) Join(sid domain.SessionID, ms MemberSession,
	ack func(existing []domain.SessionID) Frame,
	announce func(roster []domain.SessionID) Frame) []domain.SessionID {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing := r.rosterLocked()
	r.bySID[sid] = ms
	roster := r.rosterLocked()
	log.Info().Str("module", "core.room").Str("room", string(r.room.ID)).Str("sid", string(sid)).Msg("member joined")

	// The ack goes on the joiner's queue before anyone is told about
	// the join, so frames provoked by the announcement cannot overtake
	// it. TrySend never blocks, so holding the lock here is safe.
	if ack != nil {
		if f := ack(existing); f != nil {
			if err := ms.Signal().TrySend(f); err != nil {
				log.Debug().Err(err).Str("module", "core.room").Str("sid", string(sid)).Msg("join ack dropped")
			}
		}
	}
	if announce != nil {
		if f := announce(roster); f != nil {
			r.fanOutLocked(sid, f)
		}
	}
	return existing
}

func (r *roomImpl) MembersSnapshot() []MemberDTO {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]MemberDTO, 0, len(r.bySID))
	for sid, ms := range r.bySID {
		out = append(out, MemberDTO{ID: sid, DisplayName: ms.User().DisplayName})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *roomImpl) Broadcast(from domain.SessionID, data Frame) PublishResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.fanOutLocked(from, data)
}

func (r *roomImpl) fanOutLocked(from domain.SessionID, data Frame) PublishResult {
	res := PublishResult{}
	for sid, m := range r.bySID {
		if sid == from {
			continue
		}
		if err := m.Signal().TrySend(data); err != nil {
			res.Dropped = append(res.Dropped, sid)
			continue
		}
		res.SentTo++
	}
	log.Debug().Str("module", "core.room").Str("from", string(from)).Int("sent_to", res.SentTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res
}

func (r *roomImpl) Send(to domain.SessionID, data Frame) bool {
	r.mu.RLock()
	m, ok := r.bySID[to]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if err := m.Signal().TrySend(data); err != nil {
		log.Debug().Str("module", "core.room").Str("to", string(to)).Err(err).Msg("send dropped")
	}
	return true
}
