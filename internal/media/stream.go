// Package media owns the local capture state of a call client: which
// tracks are live, the placeholder fallback and the swap notifications
// that drive renegotiation.
package media

import (
	"sync"

	"github.com/pion/webrtc/v4"
)

type Source string

const (
	SourceCamera      Source = "camera"
	SourceDisplay     Source = "display"
	SourcePlaceholder Source = "placeholder"
)

// Stream is one local media stream handle: a video and an audio track
// plus their enabled flags. Instances come from a Capture collaborator
// or from NewPlaceholder and are immutable apart from lifecycle hooks.
type Stream struct {
	ID     string
	Source Source

	Video webrtc.TrackLocal
	Audio webrtc.TrackLocal

	VideoEnabled bool
	AudioEnabled bool

	mu      sync.Mutex
	ended   bool
	onEnded func()
	closeFn func()
}

func (s *Stream) Tracks() []webrtc.TrackLocal {
	out := make([]webrtc.TrackLocal, 0, 2)
	if s.Video != nil {
		out = append(out, s.Video)
	}
	if s.Audio != nil {
		out = append(out, s.Audio)
	}
	return out
}

// SetOnEnded registers the hook run when the underlying capture stops
// on its own (device revoked, shared window closed).
func (s *Stream) SetOnEnded(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onEnded = fn
}

// SetCloser registers the capture-owned teardown run on Close.
func (s *Stream) SetCloser(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeFn = fn
}

// MarkEnded is called by the capture collaborator when the stream dies
// underneath us. The ended hook fires at most once.
func (s *Stream) MarkEnded() {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	s.ended = true
	fn := s.onEnded
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Close releases the capture resources; safe on placeholder streams.
func (s *Stream) Close() {
	s.mu.Lock()
	fn := s.closeFn
	s.closeFn = nil
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}
