package ordering

import "github.com/salza80/jitsi-meet/internal/domain"

// Order bands; lower sorts earlier.
const (
	BandTrainer         = 1
	BandScreenShare     = 2
	BandDominantSpeaker = 3
	BandRecent          = 10
	BandVideo           = 20
	BandDefault         = 30
	BandInactive        = 100
	BandLocal           = 200
)

// band computes the order key of a single participant. Missing optional
// fields fall through to BandDefault.
func band(p domain.Participant, in *Input) int {
	if p.Role == domain.RoleTrainer {
		return BandTrainer
	}
	if p.Local {
		return BandLocal
	}

	idx := indexOf(in.Recency, p.ID)
	if !p.IsActive() {
		if idx < 0 {
			idx = len(in.Recency)
		}
		return BandInactive + idx
	}

	video, hasVideo := in.videoTrack(p.ID)
	remote := p.IsRemote()
	if remote && hasVideo && video.IsScreenShare() {
		return BandScreenShare
	}
	if idx >= 0 {
		return BandRecent + idx
	}
	if remote && hasVideo && !video.Muted {
		return BandVideo
	}
	return BandDefault
}

func indexOf(ids []domain.ParticipantID, id domain.ParticipantID) int {
	for i, x := range ids {
		if x == id {
			return i
		}
	}
	return -1
}
