// Package mesh keeps one client's view of a call: a transport link per
// remote participant, the negotiation state machine of each link and
// the renegotiation fan-out on local stream swaps.
package mesh

import (
	"errors"

	"github.com/pion/webrtc/v4"

	"github.com/okatev/huddle/internal/domain"
	"github.com/okatev/huddle/internal/media"
	"github.com/okatev/huddle/internal/wire"
)

// ErrNegotiationStale reports an answer that belongs to a superseded
// offer. The controller drops it and keeps waiting for the answer to
// the latest offer.
var ErrNegotiationStale = errors.New("stale negotiation answer")

// LinkState is the negotiation state of one peer link.
type LinkState int

const (
	// LinkNew is a freshly created link with no negotiation yet.
	LinkNew LinkState = iota
	// LinkOfferSent means our offer is out and we wait for the answer.
	LinkOfferSent
	// LinkAnswerPending means a remote offer arrived and our answer is
	// being produced.
	LinkAnswerPending
	// LinkStable means the last negotiation round completed.
	LinkStable
	// LinkClosed means the transport failed or was torn down. A closed
	// link is recreated on the next renegotiation.
	LinkClosed
)

func (s LinkState) String() string {
	switch s {
	case LinkNew:
		return "new"
	case LinkOfferSent:
		return "offerSent"
	case LinkAnswerPending:
		return "answerPending"
	case LinkStable:
		return "stable"
	case LinkClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// TransportLink is one point-to-point transport toward a remote
// participant. The pion implementation lives in internal/rtc; tests
// substitute fakes.
type TransportLink interface {
	// CreateOffer produces a local offer and installs it as the local
	// description.
	CreateOffer() (webrtc.SessionDescription, error)
	// ApplyAnswer installs the remote answer for our pending offer.
	ApplyAnswer(answer webrtc.SessionDescription) error
	// ApplyOffer installs the remote offer and produces our answer.
	ApplyOffer(offer webrtc.SessionDescription) (webrtc.SessionDescription, error)
	// AddRemoteCandidate feeds one trickled remote ICE candidate.
	AddRemoteCandidate(candidate webrtc.ICECandidateInit) error
	// ReplaceStream swaps the outgoing tracks for the given stream.
	ReplaceStream(stream *media.Stream) error

	// OnLocalCandidate registers the hook for locally gathered ICE
	// candidates. A nil candidate marks the end of gathering.
	OnLocalCandidate(fn func(*webrtc.ICECandidate))
	// OnRemoteTrack registers the hook for incoming remote tracks.
	OnRemoteTrack(fn func(*webrtc.TrackRemote, *webrtc.RTPReceiver))
	// OnFailure registers the hook run when the transport fails or
	// disconnects for good.
	OnFailure(fn func(error))

	Close()
}

// LinkFactory builds the transport toward one remote participant.
type LinkFactory func(remote domain.SessionID) (TransportLink, error)

// Signaler carries negotiation payloads to a remote participant over
// the relay.
type Signaler interface {
	SendSignal(target domain.SessionID, payload wire.SignalPayload) error
}

// RemoteTrack is one incoming track attributed to its sender, handed
// to the OnTrack hook of the controller.
type RemoteTrack struct {
	From     domain.SessionID
	Track    *webrtc.TrackRemote
	Receiver *webrtc.RTPReceiver
}
