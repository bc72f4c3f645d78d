package media

import (
	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

// NewPlaceholder builds the black/silent fallback stream: one disabled
// video track and one disabled audio track, so downstream code never
// sees an empty stream.
func NewPlaceholder() *Stream {
	id := "placeholder-" + uuid.NewString()

	video, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8},
		"video-"+id, id,
	)
	if err != nil {
		log.Error().Err(err).Str("module", "media").Msg("placeholder video track")
	}
	audio, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus},
		"audio-"+id, id,
	)
	if err != nil {
		log.Error().Err(err).Str("module", "media").Msg("placeholder audio track")
	}

	// No samples are ever written: the tracks stay black and silent.
	return &Stream{
		ID:           id,
		Source:       SourcePlaceholder,
		Video:        video,
		Audio:        audio,
		VideoEnabled: false,
		AudioEnabled: false,
	}
}
