package media

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// State is a read-only snapshot of the supervisor.
type State struct {
	VideoEnabled  bool
	AudioEnabled  bool
	ScreenSharing bool
	// Degraded is the informational flag for the UI: capture was
	// denied and the placeholder stream is standing in.
	Degraded bool
	StreamID string
}

// Supervisor owns the single local capture stream. Every swap of the
// active stream is published through the OnSwap hook, which is what
// drives renegotiation on every peer link. Capture failure is never
// fatal: the supervisor degrades to the placeholder stream.
type Supervisor struct {
	mu      sync.Mutex
	capture Capture
	publish func(*Stream)

	videoEnabled  bool
	audioEnabled  bool
	screenSharing bool
	degraded      bool
	active        *Stream
}

func NewSupervisor(capture Capture) *Supervisor {
	return &Supervisor{capture: capture}
}

// OnSwap registers the publish hook; call it before Acquire.
func (s *Supervisor) OnSwap(fn func(*Stream)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.publish = fn
}

// Acquire requests camera/microphone capture with the wanted tracks
// and swaps it in. Denial degrades to the placeholder; the caller
// never sees an error.
func (s *Supervisor) Acquire(video, audio bool) *Stream {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.videoEnabled = video
	s.audioEnabled = audio
	return s.acquireLocked()
}

// acquireLocked swaps in a camera stream for the current flags, or the
// placeholder when both are off or capture is denied.
func (s *Supervisor) acquireLocked() *Stream {
	if !s.videoEnabled && !s.audioEnabled {
		s.swapLocked(NewPlaceholder())
		return s.active
	}

	stream, err := s.capture.RequestCapture(s.videoEnabled, s.audioEnabled)
	if err != nil {
		log.Warn().Err(err).Str("module", "media").Msg("capture denied, using placeholder")
		s.degraded = true
		s.swapLocked(NewPlaceholder())
		return s.active
	}
	s.degraded = false
	stream.SetOnEnded(func() { s.captureEnded(stream) })
	s.swapLocked(stream)
	return s.active
}

func (s *Supervisor) ToggleVideo() *Stream {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.videoEnabled = !s.videoEnabled
	return s.acquireLocked()
}

func (s *Supervisor) ToggleAudio() *Stream {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audioEnabled = !s.audioEnabled
	return s.acquireLocked()
}

// StartScreenShare swaps the active stream for a display capture. On
// denial the current stream stays active and the error is returned as
// information only.
func (s *Supervisor) StartScreenShare() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.screenSharing {
		return nil
	}
	stream, err := s.capture.RequestDisplayCapture()
	if err != nil {
		log.Warn().Err(err).Str("module", "media").Msg("display capture denied")
		return err
	}
	s.screenSharing = true
	stream.SetOnEnded(func() { s.captureEnded(stream) })
	s.swapLocked(stream)
	return nil
}

// StopScreenShare goes back to camera/microphone with the settings
// that were in place before sharing.
func (s *Supervisor) StopScreenShare() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.screenSharing {
		return
	}
	s.screenSharing = false
	s.acquireLocked()
}

// captureEnded runs when the active stream dies underneath us: the
// user closed the shared window or revoked the device.
func (s *Supervisor) captureEnded(ended *Stream) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != ended {
		// A stale hook from an already-replaced stream.
		return
	}
	if s.screenSharing {
		// Shared window closed: fall back to the previous
		// camera/microphone settings.
		s.screenSharing = false
		s.acquireLocked()
		return
	}
	// Device revoked mid-call: everything off, placeholder in.
	s.videoEnabled = false
	s.audioEnabled = false
	s.acquireLocked()
}

// swapLocked installs the new stream, closes the old one and publishes
// the swap.
func (s *Supervisor) swapLocked(next *Stream) {
	old := s.active
	s.active = next
	if old != nil {
		old.Close()
	}
	log.Debug().Str("module", "media").Str("stream", next.ID).Str("source", string(next.Source)).Msg("stream swapped")
	if s.publish != nil {
		s.publish(next)
	}
}

func (s *Supervisor) Active() *Stream {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := State{
		VideoEnabled:  s.videoEnabled,
		AudioEnabled:  s.audioEnabled,
		ScreenSharing: s.screenSharing,
		Degraded:      s.degraded,
	}
	if s.active != nil {
		st.StreamID = s.active.ID
	}
	return st
}
