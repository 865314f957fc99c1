package domain

import (
	"errors"
	"fmt"
)

var ErrUnknownMediaType = errors.New("unknown media type")

type MediaType string

const (
	MediaAudio MediaType = "audio"
	MediaVideo MediaType = "video"
)

func ParseMediaType(s string) (MediaType, error) {
	switch MediaType(s) {
	case MediaAudio, MediaVideo:
		return MediaType(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMediaType, s)
}

type VideoType string

const (
	VideoCamera  VideoType = "camera"
	VideoDesktop VideoType = "desktop"
)

// Track belongs to exactly one participant; lookup is by (participant, media type).
type Track struct {
	ParticipantID ParticipantID `json:"participantId"`
	MediaType     MediaType     `json:"mediaType"`
	VideoType     VideoType     `json:"videoType,omitempty"`
	Muted         bool          `json:"muted"`
	StreamID      string        `json:"streamId"`
	Local         bool          `json:"local"`
}

func (t *Track) IsScreenShare() bool {
	return t != nil && t.MediaType == MediaVideo && t.VideoType == VideoDesktop
}
