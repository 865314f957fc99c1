package core

import "github.com/salza80/jitsi-meet/internal/domain"

// ContainerType names what the large display is showing.
type ContainerType string

const (
	ContainerVideo       ContainerType = "camera"
	ContainerAvatar      ContainerType = "avatar"
	ContainerSharedVideo ContainerType = "sharedvideo"
)

func (c ContainerType) IsVideo() bool { return c == ContainerVideo }

// Selection is what the large display points at. StreamID is empty unless
// Container is a video container backed by a live track.
type Selection struct {
	ParticipantID domain.ParticipantID `json:"participantId"`
	Container     ContainerType        `json:"container"`
	VideoType     domain.VideoType     `json:"videoType,omitempty"`
	StreamID      string               `json:"streamId,omitempty"`
	FlipX         bool                 `json:"flipX,omitempty"`
}

// EntryDTO is one slot of the ordered remote filmstrip.
type EntryDTO struct {
	ID     domain.ParticipantID `json:"id"`
	Order  int                  `json:"order"`
	Hidden bool                 `json:"hidden"`
}

// LayoutDTO is the ordered, visibility-flagged view consumed on every render.
type LayoutDTO struct {
	Local      domain.ParticipantID   `json:"local,omitempty"`
	Remote     []EntryDTO             `json:"remote"`
	Trainers   []domain.ParticipantID `json:"trainers,omitempty"`
	MaxVisible int                    `json:"maxVisible"`
	TileView   bool                   `json:"tileView"`
}

// IDs returns the remote ids in display order.
func (l LayoutDTO) IDs() []domain.ParticipantID {
	out := make([]domain.ParticipantID, 0, len(l.Remote))
	for _, e := range l.Remote {
		out = append(out, e.ID)
	}
	return out
}

type ThumbnailKind string

const (
	ThumbnailLocal       ThumbnailKind = "local"
	ThumbnailRemote      ThumbnailKind = "remote"
	ThumbnailSharedVideo ThumbnailKind = "sharedvideo"
)

// ThumbnailDTO is a read-only view of a live thumbnail.
type ThumbnailDTO struct {
	ID               domain.ParticipantID    `json:"id"`
	Kind             ThumbnailKind           `json:"kind"`
	Name             string                  `json:"name"`
	Visible          bool                    `json:"visible"`
	Hidden           bool                    `json:"hidden"`
	Pinned           bool                    `json:"pinned"`
	OrderHint        int                     `json:"orderHint"`
	Order            int                     `json:"order"`
	AudioMuted       bool                    `json:"audioMuted"`
	VideoMuted       bool                    `json:"videoMuted"`
	VideoType        domain.VideoType        `json:"videoType,omitempty"`
	Streams          []string                `json:"streams,omitempty"`
	DominantSpeaker  bool                    `json:"dominantSpeaker"`
	ConnectionStatus domain.ConnectionStatus `json:"connectionStatus,omitempty"`
	Initialized      bool                    `json:"initialized"`
}

// Snapshot is the full render state at one point in the event stream.
type Snapshot struct {
	Layout     LayoutDTO      `json:"layout"`
	Thumbnails []ThumbnailDTO `json:"thumbnails"`
	LargeVideo *Selection     `json:"largeVideo"`
}
