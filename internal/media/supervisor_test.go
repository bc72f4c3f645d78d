package media

import (
	"testing"
)

// fakeCapture hands out inspectable streams and can be told to deny.
type fakeCapture struct {
	denyCamera  bool
	denyDisplay bool
	requests    []string
	closed      []string
}

func (f *fakeCapture) newStream(id string, src Source, video, audio bool) *Stream {
	s := &Stream{ID: id, Source: src, VideoEnabled: video, AudioEnabled: audio}
	s.SetCloser(func() { f.closed = append(f.closed, id) })
	return s
}

func (f *fakeCapture) RequestCapture(video, audio bool) (*Stream, error) {
	f.requests = append(f.requests, "camera")
	if f.denyCamera {
		return nil, ErrMediaUnavailable
	}
	return f.newStream("camera", SourceCamera, video, audio), nil
}

func (f *fakeCapture) RequestDisplayCapture() (*Stream, error) {
	f.requests = append(f.requests, "display")
	if f.denyDisplay {
		return nil, ErrMediaUnavailable
	}
	return f.newStream("display", SourceDisplay, true, true), nil
}

func (f *fakeCapture) Supported() (bool, bool, bool) {
	return !f.denyCamera, !f.denyCamera, !f.denyDisplay
}

func newTestSupervisor(capture Capture) (*Supervisor, *[]*Stream) {
	s := NewSupervisor(capture)
	published := &[]*Stream{}
	s.OnSwap(func(st *Stream) { *published = append(*published, st) })
	return s, published
}

func TestAcquire_CameraStream(t *testing.T) {
	s, published := newTestSupervisor(&fakeCapture{})

	got := s.Acquire(true, true)
	if got.Source != SourceCamera {
		t.Fatalf("source = %s, want camera", got.Source)
	}
	if len(*published) != 1 || (*published)[0] != got {
		t.Fatalf("swap not published: %v", *published)
	}
	if st := s.State(); st.Degraded || !st.VideoEnabled || !st.AudioEnabled {
		t.Fatalf("state = %#v", st)
	}
}

func TestAcquire_DenialDegradesToPlaceholder(t *testing.T) {
	s, published := newTestSupervisor(&fakeCapture{denyCamera: true})

	got := s.Acquire(true, true)
	if got.Source != SourcePlaceholder {
		t.Fatalf("source = %s, want placeholder", got.Source)
	}
	if got.Video == nil || got.Audio == nil {
		t.Fatal("placeholder stream must never be empty")
	}
	if got.VideoEnabled || got.AudioEnabled {
		t.Fatal("placeholder tracks must be disabled")
	}
	if !s.State().Degraded {
		t.Fatal("degraded flag not set")
	}
	if len(*published) != 1 {
		t.Fatalf("published %d swaps, want 1", len(*published))
	}
}

func TestToggle_BothOffMeansPlaceholder(t *testing.T) {
	fc := &fakeCapture{}
	s, _ := newTestSupervisor(fc)
	s.Acquire(true, false)

	if got := s.ToggleVideo(); got.Source != SourcePlaceholder {
		t.Fatalf("source after last track off = %s, want placeholder", got.Source)
	}
	if got := s.ToggleAudio(); got.Source != SourceCamera || !got.AudioEnabled {
		t.Fatalf("source after audio back on = %s (%#v)", got.Source, got)
	}
}

func TestToggle_PublishesEverySwap(t *testing.T) {
	s, published := newTestSupervisor(&fakeCapture{})
	s.Acquire(true, true)
	s.ToggleVideo()
	s.ToggleVideo()

	if len(*published) != 3 {
		t.Fatalf("published %d swaps, want 3", len(*published))
	}
	last := (*published)[2]
	if s.Active() != last {
		t.Fatal("active stream is not the last published one")
	}
}

func TestScreenShare_SwapAndStop(t *testing.T) {
	fc := &fakeCapture{}
	s, published := newTestSupervisor(fc)
	s.Acquire(true, true)

	if err := s.StartScreenShare(); err != nil {
		t.Fatalf("start screen share: %v", err)
	}
	if got := s.Active(); got.Source != SourceDisplay {
		t.Fatalf("active = %s, want display", got.Source)
	}
	if !s.State().ScreenSharing {
		t.Fatal("screenSharing flag not set")
	}

	s.StopScreenShare()
	if got := s.Active(); got.Source != SourceCamera {
		t.Fatalf("active after stop = %s, want camera", got.Source)
	}
	if st := s.State(); st.ScreenSharing || !st.VideoEnabled || !st.AudioEnabled {
		t.Fatalf("state after stop = %#v", st)
	}
	if len(*published) != 3 {
		t.Fatalf("published %d swaps, want 3", len(*published))
	}
}

func TestScreenShare_DenialKeepsCurrentStream(t *testing.T) {
	s, published := newTestSupervisor(&fakeCapture{denyDisplay: true})
	cam := s.Acquire(true, true)

	if err := s.StartScreenShare(); err == nil {
		t.Fatal("expected denial error")
	}
	if s.Active() != cam {
		t.Fatal("active stream changed on denied screen share")
	}
	if s.State().ScreenSharing {
		t.Fatal("screenSharing flag set on denial")
	}
	if len(*published) != 1 {
		t.Fatalf("published %d swaps, want only the camera one", len(*published))
	}
}

func TestScreenShare_EndedFallsBackToCamera(t *testing.T) {
	fc := &fakeCapture{}
	s, _ := newTestSupervisor(fc)
	s.Acquire(true, false)

	if err := s.StartScreenShare(); err != nil {
		t.Fatalf("start screen share: %v", err)
	}
	display := s.Active()

	// User closes the shared window.
	display.MarkEnded()

	got := s.Active()
	if got.Source != SourceCamera {
		t.Fatalf("active after share ended = %s, want camera", got.Source)
	}
	if !got.VideoEnabled || got.AudioEnabled {
		t.Fatalf("previous camera settings lost: %#v", got)
	}
}

func TestCameraRevoked_DegradesToPlaceholder(t *testing.T) {
	fc := &fakeCapture{}
	s, _ := newTestSupervisor(fc)
	cam := s.Acquire(true, true)

	cam.MarkEnded()

	if got := s.Active(); got.Source != SourcePlaceholder {
		t.Fatalf("active after revoke = %s, want placeholder", got.Source)
	}
	if st := s.State(); st.VideoEnabled || st.AudioEnabled {
		t.Fatalf("flags survived revoke: %#v", st)
	}
}

func TestStaleEndedHookIgnored(t *testing.T) {
	fc := &fakeCapture{}
	s, _ := newTestSupervisor(fc)
	first := s.Acquire(true, true)
	s.ToggleVideo() // replaces the stream

	before := s.Active()
	first.MarkEnded() // hook from the replaced stream
	if s.Active() != before {
		t.Fatal("stale ended hook replaced the active stream")
	}
}

func TestSwap_ClosesPreviousStream(t *testing.T) {
	fc := &fakeCapture{}
	s, _ := newTestSupervisor(fc)
	s.Acquire(true, true)
	s.ToggleAudio()

	if len(fc.closed) != 1 || fc.closed[0] != "camera" {
		t.Fatalf("closed = %v, want the first camera stream", fc.closed)
	}
}
