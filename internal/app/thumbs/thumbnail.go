package thumbs

import (
	"maps"
	"slices"

	"github.com/salza80/jitsi-meet/internal/core"
	"github.com/salza80/jitsi-meet/internal/domain"
)

// Order-position hints used before the first ordering pass.
const (
	orderHintTrainer = -1
	orderHintDefault = 2
)

// Thumbnail is the live filmstrip entry for one participant.
type Thumbnail struct {
	id          domain.ParticipantID
	kind        core.ThumbnailKind
	name        string
	status      domain.ConnectionStatus
	visible     bool
	hidden      bool
	pinned      bool
	dominant    bool
	initialized bool
	orderHint   int
	order       int
	audioMuted  bool
	videoMuted  bool
	tracks      map[domain.MediaType]domain.Track
}

func newThumbnail(p domain.Participant, kind core.ThumbnailKind) *Thumbnail {
	t := &Thumbnail{
		id:      p.ID,
		kind:    kind,
		visible: true,
		tracks:  make(map[domain.MediaType]domain.Track),
	}
	t.refreshParticipant(p)
	return t
}

func (t *Thumbnail) ID() domain.ParticipantID { return t.id }

func (t *Thumbnail) refreshParticipant(p domain.Participant) {
	t.name = p.Name
	t.status = p.ConnectionStatus
	if p.Role == domain.RoleTrainer {
		t.orderHint = orderHintTrainer
	} else {
		t.orderHint = orderHintDefault
	}
}

func (t *Thumbnail) attach(tr domain.Track) { t.tracks[tr.MediaType] = tr }

func (t *Thumbnail) detach(tr domain.Track) {
	cur, ok := t.tracks[tr.MediaType]
	if ok && (tr.StreamID == "" || cur.StreamID == tr.StreamID) {
		delete(t.tracks, tr.MediaType)
	}
}

func (t *Thumbnail) DTO() core.ThumbnailDTO {
	dto := core.ThumbnailDTO{
		ID:               t.id,
		Kind:             t.kind,
		Name:             t.name,
		Visible:          t.visible,
		Hidden:           t.hidden,
		Pinned:           t.pinned,
		OrderHint:        t.orderHint,
		Order:            t.order,
		AudioMuted:       t.audioMuted,
		VideoMuted:       t.videoMuted,
		DominantSpeaker:  t.dominant,
		ConnectionStatus: t.status,
		Initialized:      t.initialized,
	}
	if v, ok := t.tracks[domain.MediaVideo]; ok {
		dto.VideoType = v.VideoType
	}
	for _, mt := range slices.Sorted(maps.Keys(t.tracks)) {
		dto.Streams = append(dto.Streams, t.tracks[mt].StreamID)
	}
	return dto
}
