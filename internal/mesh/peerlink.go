package mesh

import (
	"github.com/okatev/huddle/internal/domain"
)

// peerLink is the controller's record of one remote participant: the
// transport plus the negotiation bookkeeping.
//
// offerGen counts the offers we sent on this link and answerGen the
// answers we received. Each new offer supersedes the previous one, so
// an answer with answerGen < offerGen belongs to a superseded offer
// and is dropped as stale.
type peerLink struct {
	remote    domain.SessionID
	link      TransportLink
	state     LinkState
	offerGen  int
	answerGen int
}
