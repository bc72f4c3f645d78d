// Package rtc is the pion-backed transport used by the mesh
// controller: one PeerConnection per remote participant with trickle
// ICE and track replacement for stream swaps.
package rtc

import (
	"errors"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/okatev/huddle/internal/domain"
	"github.com/okatev/huddle/internal/media"
	"github.com/okatev/huddle/internal/mesh"
)

// NewConfiguration builds the PeerConnection configuration for the
// given STUN servers, falling back to the public Google server.
func NewConfiguration(stunServers []string) webrtc.Configuration {
	if len(stunServers) == 0 {
		stunServers = []string{"stun:stun.l.google.com:19302"}
	}
	return webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{{URLs: stunServers}},
	}
}

// NewFactory returns the LinkFactory the mesh controller uses to build
// a transport per remote.
func NewFactory(cfg webrtc.Configuration) mesh.LinkFactory {
	return func(remote domain.SessionID) (mesh.TransportLink, error) {
		return NewLink(cfg, remote)
	}
}

// Link adapts one webrtc.PeerConnection to the mesh transport
// interface. Remote candidates arriving before the remote description
// are queued and flushed once it lands.
type Link struct {
	pc     *webrtc.PeerConnection
	remote domain.SessionID

	mu      sync.Mutex
	senders []*webrtc.RTPSender
	pending []webrtc.ICECandidateInit

	onFailure func(error)
	failed    bool
}

func NewLink(cfg webrtc.Configuration, remote domain.SessionID) (*Link, error) {
	pc, err := webrtc.NewPeerConnection(cfg)
	if err != nil {
		return nil, fmt.Errorf("peer connection toward %s: %w", remote, err)
	}
	l := &Link{pc: pc, remote: remote}

	pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		log.Debug().Str("module", "rtc").Str("peer", string(remote)).Str("ice_state", s.String()).Msg("ICE state")
	})
	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		log.Info().Str("module", "rtc").Str("peer", string(remote)).Str("peer_connection_state", s.String()).Msg("peer state")
		if s == webrtc.PeerConnectionStateFailed || s == webrtc.PeerConnectionStateClosed {
			l.fail(errors.New("peer connection " + s.String()))
		}
	})
	return l, nil
}

// fail runs the failure hook at most once.
func (l *Link) fail(cause error) {
	l.mu.Lock()
	if l.failed {
		l.mu.Unlock()
		return
	}
	l.failed = true
	fn := l.onFailure
	l.mu.Unlock()
	if fn != nil {
		fn(cause)
	}
}

// CreateOffer produces and installs the local offer. Candidates
// trickle through OnLocalCandidate, so there is no gather wait.
func (l *Link) CreateOffer() (webrtc.SessionDescription, error) {
	offer, err := l.pc.CreateOffer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, err
	}
	if err := l.pc.SetLocalDescription(offer); err != nil {
		return webrtc.SessionDescription{}, err
	}
	return offer, nil
}

func (l *Link) ApplyAnswer(answer webrtc.SessionDescription) error {
	if err := l.pc.SetRemoteDescription(answer); err != nil {
		return err
	}
	return l.flushCandidates()
}

// ApplyOffer installs the remote offer and produces our answer. A
// pending local offer is rolled back first, which is how offer glare
// resolves on the answering side.
func (l *Link) ApplyOffer(offer webrtc.SessionDescription) (webrtc.SessionDescription, error) {
	if l.pc.SignalingState() == webrtc.SignalingStateHaveLocalOffer {
		rollback := webrtc.SessionDescription{Type: webrtc.SDPTypeRollback}
		if err := l.pc.SetLocalDescription(rollback); err != nil {
			return webrtc.SessionDescription{}, fmt.Errorf("rollback local offer: %w", err)
		}
	}
	if err := l.pc.SetRemoteDescription(offer); err != nil {
		return webrtc.SessionDescription{}, err
	}
	if err := l.flushCandidates(); err != nil {
		return webrtc.SessionDescription{}, err
	}
	answer, err := l.pc.CreateAnswer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, err
	}
	if err := l.pc.SetLocalDescription(answer); err != nil {
		return webrtc.SessionDescription{}, err
	}
	return answer, nil
}

// AddRemoteCandidate feeds one trickled candidate, queueing it when
// the remote description has not landed yet.
func (l *Link) AddRemoteCandidate(candidate webrtc.ICECandidateInit) error {
	l.mu.Lock()
	if l.pc.RemoteDescription() == nil {
		l.pending = append(l.pending, candidate)
		l.mu.Unlock()
		return nil
	}
	l.mu.Unlock()
	return l.pc.AddICECandidate(candidate)
}

func (l *Link) flushCandidates() error {
	l.mu.Lock()
	queued := l.pending
	l.pending = nil
	l.mu.Unlock()
	for _, c := range queued {
		if err := l.pc.AddICECandidate(c); err != nil {
			return fmt.Errorf("flush queued candidate: %w", err)
		}
	}
	return nil
}

// ReplaceStream removes the previously attached tracks and adds the
// ones of the new stream. The caller renegotiates afterwards.
func (l *Link) ReplaceStream(stream *media.Stream) error {
	l.mu.Lock()
	old := l.senders
	l.senders = nil
	l.mu.Unlock()

	for _, sender := range old {
		if err := l.pc.RemoveTrack(sender); err != nil {
			log.Warn().Err(err).Str("module", "rtc").Str("peer", string(l.remote)).Msg("remove track")
		}
	}
	var added []*webrtc.RTPSender
	for _, track := range stream.Tracks() {
		sender, err := l.pc.AddTrack(track)
		if err != nil {
			return fmt.Errorf("add track toward %s: %w", l.remote, err)
		}
		added = append(added, sender)
	}
	l.mu.Lock()
	l.senders = added
	l.mu.Unlock()
	return nil
}

func (l *Link) OnLocalCandidate(fn func(*webrtc.ICECandidate)) {
	l.pc.OnICECandidate(fn)
}

func (l *Link) OnRemoteTrack(fn func(*webrtc.TrackRemote, *webrtc.RTPReceiver)) {
	l.pc.OnTrack(fn)
}

func (l *Link) OnFailure(fn func(error)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onFailure = fn
}

func (l *Link) Close() {
	if err := l.pc.Close(); err != nil {
		log.Error().Err(err).Str("module", "rtc").Str("peer", string(l.remote)).Msg("close error")
	}
}
