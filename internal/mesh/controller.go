package mesh

import (
	"fmt"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/okatev/huddle/internal/domain"
	"github.com/okatev/huddle/internal/media"
	"github.com/okatev/huddle/internal/wire"
)

// ChatEntry is one line of the in-call transcript.
type ChatEntry struct {
	From domain.SessionID
	Name string
	Text string
	At   time.Time
}

// Controller runs the peer mesh of one call participant: one transport
// link per remote, driven by relay events on one side and local stream
// swaps on the other.
//
// Initiation policy: the members already in the room offer toward the
// newcomer. The newcomer only creates passive links from the join
// roster and waits for those offers. On glare both sides answer the
// inbound offer; the leftover answers to their own offers are dropped
// once the link is stable.
type Controller struct {
	mu       sync.Mutex
	self     domain.SessionID
	factory  LinkFactory
	signaler Signaler

	links  map[domain.SessionID]*peerLink
	stream *media.Stream

	onTrack    func(RemoteTrack)
	onChat     func(ChatEntry)
	transcript []ChatEntry
}

func NewController(self domain.SessionID, factory LinkFactory, signaler Signaler) *Controller {
	return &Controller{
		self:     self,
		factory:  factory,
		signaler: signaler,
		links:    make(map[domain.SessionID]*peerLink),
	}
}

// OnTrack registers the hook for incoming remote tracks; call it
// before joining.
func (c *Controller) OnTrack(fn func(RemoteTrack)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onTrack = fn
}

// OnChat registers the hook run for every transcript entry.
func (c *Controller) OnChat(fn func(ChatEntry)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChat = fn
}

// HandleJoinAck seeds passive links for the members already in the
// room. They saw our join and will offer toward us; we only need the
// transports ready so their offers find a known remote.
func (c *Controller) HandleJoinAck(roster []domain.SessionID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, sid := range roster {
		if sid == c.self {
			continue
		}
		if _, err := c.ensureLinkLocked(sid); err != nil {
			return fmt.Errorf("seed link to %s: %w", sid, err)
		}
	}
	return nil
}

// HandleUserJoined reacts to a newcomer: as an existing member we
// create the link and send the first offer. A re-join under a known
// session replaces the old link.
func (c *Controller) HandleUserJoined(newcomer domain.SessionID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if newcomer == c.self {
		return nil
	}
	if old, ok := c.links[newcomer]; ok {
		old.link.Close()
		delete(c.links, newcomer)
	}
	pl, err := c.ensureLinkLocked(newcomer)
	if err != nil {
		return fmt.Errorf("link to newcomer %s: %w", newcomer, err)
	}
	return c.offerLocked(pl)
}

// HandleUserLeft tears the link down and forgets the remote. Unlike a
// transport failure the entry is removed for good.
func (c *Controller) HandleUserLeft(sid domain.SessionID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	pl, ok := c.links[sid]
	if !ok {
		return
	}
	pl.link.Close()
	delete(c.links, sid)
	log.Debug().Str("module", "mesh").Str("peer", string(sid)).Msg("peer left, link removed")
}

// HandleSignal dispatches one negotiation payload from a remote.
func (c *Controller) HandleSignal(from domain.SessionID, payload wire.SignalPayload) error {
	if err := payload.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case payload.SDP != nil:
		sdp, err := payload.SDP.ToPion()
		if err != nil {
			return fmt.Errorf("signal from %s: %w", from, err)
		}
		if sdp.Type == webrtc.SDPTypeOffer {
			return c.handleOfferLocked(from, sdp)
		}
		return c.handleAnswerLocked(from, sdp)
	case payload.ICE != nil:
		return c.handleCandidateLocked(from, payload.ICE.ToPion())
	}
	return nil
}

// handleOfferLocked runs the responder side. The inbound offer is
// authoritative: even with our own offer pending we answer it, which
// resolves glare with both sides stable.
func (c *Controller) handleOfferLocked(from domain.SessionID, offer webrtc.SessionDescription) error {
	pl, ok := c.links[from]
	if !ok {
		// Not in our roster view. The user-joined event will
		// introduce the remote and trigger a fresh round.
		log.Debug().Str("module", "mesh").Str("peer", string(from)).Msg("offer from unknown remote dropped")
		return nil
	}
	if pl.state == LinkClosed {
		recreated, err := c.recreateLinkLocked(from)
		if err != nil {
			return err
		}
		pl = recreated
	}
	pl.state = LinkAnswerPending
	answer, err := pl.link.ApplyOffer(offer)
	if err != nil {
		return fmt.Errorf("answer offer from %s: %w", from, err)
	}
	pl.state = LinkStable
	body := wire.SDPFromPion(answer)
	return c.signaler.SendSignal(from, wire.SignalPayload{SDP: &body})
}

func (c *Controller) handleAnswerLocked(from domain.SessionID, answer webrtc.SessionDescription) error {
	pl, ok := c.links[from]
	if !ok || pl.state == LinkClosed {
		log.Debug().Str("module", "mesh").Str("peer", string(from)).Msg("answer without live link dropped")
		return nil
	}
	pl.answerGen++
	if pl.answerGen < pl.offerGen {
		log.Debug().Str("module", "mesh").Str("peer", string(from)).
			Int("answerGen", pl.answerGen).Int("offerGen", pl.offerGen).
			Msg("superseded answer dropped")
		return ErrNegotiationStale
	}
	if pl.state != LinkOfferSent {
		// Glare leftover: we already answered the remote's offer and
		// the link settled, so its answer to our offer is moot.
		log.Debug().Str("module", "mesh").Str("peer", string(from)).
			Str("state", pl.state.String()).Msg("answer in settled state dropped")
		return nil
	}
	if err := pl.link.ApplyAnswer(answer); err != nil {
		return fmt.Errorf("apply answer from %s: %w", from, err)
	}
	pl.state = LinkStable
	return nil
}

func (c *Controller) handleCandidateLocked(from domain.SessionID, candidate webrtc.ICECandidateInit) error {
	pl, ok := c.links[from]
	if !ok || pl.state == LinkClosed {
		// Trickled candidates routinely outlive their link.
		log.Debug().Str("module", "mesh").Str("peer", string(from)).Msg("late candidate dropped")
		return nil
	}
	return pl.link.AddRemoteCandidate(candidate)
}

// HandleChat appends one relayed chat message to the transcript.
func (c *Controller) HandleChat(from domain.SessionID, name, text string) {
	c.mu.Lock()
	entry := ChatEntry{From: from, Name: name, Text: text, At: time.Now()}
	c.transcript = append(c.transcript, entry)
	fn := c.onChat
	c.mu.Unlock()
	if fn != nil {
		fn(entry)
	}
}

// PublishStream swaps the outgoing tracks on every link and starts a
// renegotiation round toward each remote. Links closed by a transport
// failure are recreated, which is also the recovery path.
func (c *Controller) PublishStream(stream *media.Stream) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stream = stream
	var firstErr error
	for sid, pl := range c.links {
		if pl.state == LinkClosed {
			recreated, err := c.recreateLinkLocked(sid)
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			pl = recreated
		} else if err := pl.link.ReplaceStream(stream); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("replace stream toward %s: %w", sid, err)
			}
			continue
		}
		if err := c.offerLocked(pl); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Close tears down every link. The controller is not reusable after.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for sid, pl := range c.links {
		pl.link.Close()
		delete(c.links, sid)
	}
}

// LinkState reports the negotiation state toward one remote; the
// second result is false for unknown remotes.
func (c *Controller) LinkState(sid domain.SessionID) (LinkState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	pl, ok := c.links[sid]
	if !ok {
		return LinkClosed, false
	}
	return pl.state, true
}

// Peers lists the remotes with a link entry, failed ones included.
func (c *Controller) Peers() []domain.SessionID {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.SessionID, 0, len(c.links))
	for sid := range c.links {
		out = append(out, sid)
	}
	return out
}

// Transcript returns a copy of the chat transcript in arrival order.
func (c *Controller) Transcript() []ChatEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ChatEntry, len(c.transcript))
	copy(out, c.transcript)
	return out
}

// offerLocked sends the next offer on the link. Each offer bumps
// offerGen so the answers to superseded offers can be recognized.
func (c *Controller) offerLocked(pl *peerLink) error {
	offer, err := pl.link.CreateOffer()
	if err != nil {
		return fmt.Errorf("offer toward %s: %w", pl.remote, err)
	}
	pl.offerGen++
	pl.state = LinkOfferSent
	body := wire.SDPFromPion(offer)
	return c.signaler.SendSignal(pl.remote, wire.SignalPayload{SDP: &body})
}

// ensureLinkLocked returns the live link toward the remote, building
// the transport if none exists. The new link carries the current local
// stream from the start.
func (c *Controller) ensureLinkLocked(remote domain.SessionID) (*peerLink, error) {
	if pl, ok := c.links[remote]; ok {
		return pl, nil
	}
	link, err := c.factory(remote)
	if err != nil {
		return nil, err
	}
	pl := &peerLink{remote: remote, link: link, state: LinkNew}
	link.OnLocalCandidate(func(cand *webrtc.ICECandidate) {
		if cand == nil {
			return
		}
		body := wire.ICEFromPion(cand.ToJSON())
		if err := c.signaler.SendSignal(remote, wire.SignalPayload{ICE: &body}); err != nil {
			log.Warn().Err(err).Str("module", "mesh").Str("peer", string(remote)).Msg("candidate signal failed")
		}
	})
	link.OnRemoteTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		c.mu.Lock()
		fn := c.onTrack
		c.mu.Unlock()
		if fn != nil {
			fn(RemoteTrack{From: remote, Track: track, Receiver: receiver})
		}
	})
	link.OnFailure(func(cause error) {
		c.linkFailed(remote, link, cause)
	})
	if c.stream != nil {
		if err := link.ReplaceStream(c.stream); err != nil {
			link.Close()
			return nil, fmt.Errorf("attach stream toward %s: %w", remote, err)
		}
	}
	c.links[remote] = pl
	return pl, nil
}

// recreateLinkLocked replaces a closed link with a fresh transport.
func (c *Controller) recreateLinkLocked(remote domain.SessionID) (*peerLink, error) {
	if pl, ok := c.links[remote]; ok {
		pl.link.Close()
		delete(c.links, remote)
	}
	return c.ensureLinkLocked(remote)
}

// linkFailed marks the link closed but keeps the entry: the remote is
// still in the room and the next renegotiation round rebuilds the
// transport.
func (c *Controller) linkFailed(remote domain.SessionID, link TransportLink, cause error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	pl, ok := c.links[remote]
	if !ok || pl.link != link {
		return
	}
	log.Warn().Err(cause).Str("module", "mesh").Str("peer", string(remote)).Msg("transport failed")
	pl.link.Close()
	pl.state = LinkClosed
}
