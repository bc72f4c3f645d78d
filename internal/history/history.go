// Package history is the call-history collaborator surface. The relay
// fires a visit record on every join and never waits on the result;
// the real store lives outside this service.
package history

import (
	"github.com/rs/zerolog/log"

	"github.com/okatev/huddle/internal/domain"
)

type Recorder interface {
	// RecordVisit is fire-and-forget; implementations must not block
	// the caller and must swallow their own errors.
	RecordVisit(sid domain.SessionID, room domain.RoomID)
}

// LogRecorder is the default stand-in: it only logs the visit.
type LogRecorder struct{}

func (LogRecorder) RecordVisit(sid domain.SessionID, room domain.RoomID) {
	log.Info().Str("module", "history").Str("sid", string(sid)).Str("room", string(room)).Msg("room visit")
}
