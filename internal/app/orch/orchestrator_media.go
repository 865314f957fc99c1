package orch

import (
	"github.com/salza80/jitsi-meet/internal/core"
	"github.com/salza80/jitsi-meet/internal/domain"
)

func (o *Orchestrator) onTrackAdded(e core.TrackAdded) {
	if e.Track.Local {
		o.logger.Debug().Str("stream", e.Track.StreamID).Msg("local track ignored")
		return
	}
	s := o.ensureState()
	s.Thumbs.OnTrackAdded(e.Track)
	if e.Track.MediaType != domain.MediaAudio {
		s.Large.Update(e.Track.ParticipantID, true)
	}
}

func (o *Orchestrator) onTrackRemoved(e core.TrackRemoved) {
	if e.Track.Local {
		return
	}
	s := o.ensureState()
	s.Thumbs.OnTrackRemoved(e.Track)
	if e.Track.MediaType != domain.MediaAudio {
		s.Large.Update(e.Track.ParticipantID, true)
	}
}

// onTrackUpdated handles mute and video type changes.
func (o *Orchestrator) onTrackUpdated(e core.TrackUpdated) {
	s := o.ensureState()
	id := e.Track.ParticipantID
	if e.Track.Local {
		if local, ok := o.opts.Store.LocalParticipant(); ok {
			id = local.ID
		}
	}
	s.Thumbs.OnVideoMute(id)
	if e.Track.MediaType == domain.MediaVideo {
		// Large video shows the avatar instead of a muted stream.
		s.Large.Update(id, true)
	}
}
