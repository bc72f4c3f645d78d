package media

import "errors"

// ErrMediaUnavailable reports denied or absent capture devices. The
// supervisor absorbs it by degrading to the placeholder stream; it is
// never fatal.
var ErrMediaUnavailable = errors.New("media capture unavailable")

// Capture is the media-capture collaborator: camera/microphone and
// display capture live outside this core.
type Capture interface {
	RequestCapture(video, audio bool) (*Stream, error)
	RequestDisplayCapture() (*Stream, error)
	// Supported reports device availability for video, audio and
	// display capture.
	Supported() (video, audio, display bool)
}

// NoDevices is the capture collaborator of a headless client: every
// request is unavailable, so the supervisor always runs on the
// placeholder stream.
type NoDevices struct{}

func (NoDevices) RequestCapture(video, audio bool) (*Stream, error) {
	return nil, ErrMediaUnavailable
}

func (NoDevices) RequestDisplayCapture() (*Stream, error) {
	return nil, ErrMediaUnavailable
}

func (NoDevices) Supported() (video, audio, display bool) { return false, false, false }
