package signal

import (
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/okatev/huddle/internal/domain"
	"github.com/okatev/huddle/internal/relay"
	"github.com/okatev/huddle/internal/wire"
)

func (ctl *Controller) handleJoin(sid domain.SessionID, user *domain.User, c *wsConn, m wire.Message) {
	if !ctl.Limiter.Allow(sid) {
		log.Warn().Str("module", "signal").Str("sid", string(sid)).Msg("join throttled")
		ctl.sendError(c, wire.ErrCodeRateLimited)
		return
	}

	// The join-call display name wins over the cookie default.
	if m.DisplayName != "" {
		if err := user.SetDisplayName(m.DisplayName); err != nil {
			log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("rejected display name")
		}
	}

	// The relay enqueues the join-ack itself, atomically with the
	// membership add, so it cannot be overtaken by a member's offer.
	if _, err := ctl.Relay.Join(sid, m.Room); err != nil {
		if errors.Is(err, relay.ErrAlreadyJoined) {
			ctl.sendError(c, wire.ErrCodeAlreadyJoined)
			return
		}
		log.Error().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("join failed")
		ctl.sendError(c, wire.ErrCodeNotJoined)
	}
}

func (ctl *Controller) handleChat(sid domain.SessionID, user *domain.User, m wire.Message) {
	name := m.DisplayName
	if name == "" {
		name = user.DisplayName
	}
	ctl.Relay.BroadcastChat(sid, m.Text, name)
}
