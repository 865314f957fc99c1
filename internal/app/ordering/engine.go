// Package ordering turns the conference state into an ordered,
// visibility-flagged filmstrip.
package ordering

import (
	"errors"
	"fmt"
	"slices"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/panics"

	"github.com/salza80/jitsi-meet/internal/core"
	"github.com/salza80/jitsi-meet/internal/domain"
)

var ErrMalformedParticipant = errors.New("malformed participant")

// Unlimited is the MaxVisible value when lastN imposes no cap.
const Unlimited = -1

type Input struct {
	// Participants eligible for display, local included, in join order.
	Participants []domain.Participant
	Tracks       core.TrackRegistry
	// Recency is ordered most-recent-first.
	Recency           []domain.ParticipantID
	PinnedID          domain.ParticipantID
	DominantSpeakerID domain.ParticipantID
	LastN             int
	TileView          bool
	// DominantSpeakerEnabled keeps a paginated-out dominant speaker visible.
	DominantSpeakerEnabled bool
}

func (in *Input) videoTrack(id domain.ParticipantID) (domain.Track, bool) {
	if in.Tracks == nil {
		return domain.Track{}, false
	}
	return in.Tracks.Track(id, domain.MediaVideo)
}

type ranked struct {
	p     domain.Participant
	order int
}

// Order computes the layout. It is a pure function of its input.
func Order(in Input) (core.LayoutDTO, error) {
	out := core.LayoutDTO{TileView: in.TileView, Remote: []core.EntryDTO{}}

	remote := make([]ranked, 0, len(in.Participants))
	for i, p := range in.Participants {
		if p.ID == "" {
			return core.LayoutDTO{}, fmt.Errorf("%w: entry %d has no id", ErrMalformedParticipant, i)
		}
		if p.Local {
			out.Local = p.ID
			continue
		}
		// Trainers get a fixed slot outside the remote strip unless tiled.
		if !in.TileView && p.Role == domain.RoleTrainer {
			out.Trainers = append(out.Trainers, p.ID)
			continue
		}
		remote = append(remote, ranked{p: p, order: band(p, &in)})
	}

	sortStable(remote)
	promoteDominantSpeaker(remote, &in)

	out.MaxVisible = maxVisible(in.LastN, in.TileView)
	for i, r := range remote {
		out.Remote = append(out.Remote, core.EntryDTO{
			ID:     r.p.ID,
			Order:  r.order,
			Hidden: out.MaxVisible != Unlimited && i >= out.MaxVisible,
		})
	}
	return out, nil
}

// promoteDominantSpeaker moves the dominant speaker into band 3 when it would
// otherwise fall outside the lastN window. A speaker already in a better band
// (trainer, screen share) keeps it.
func promoteDominantSpeaker(remote []ranked, in *Input) {
	if !in.DominantSpeakerEnabled || in.LastN < 1 || len(remote) <= in.LastN {
		return
	}
	i := slices.IndexFunc(remote, func(r ranked) bool {
		if in.DominantSpeakerID != "" {
			return r.p.ID == in.DominantSpeakerID
		}
		return r.p.DominantSpeaker
	})
	if i < in.LastN || remote[i].order <= BandDominantSpeaker {
		return
	}
	remote[i].order = BandDominantSpeaker
	sortStable(remote)
}

func sortStable(remote []ranked) {
	slices.SortStableFunc(remote, func(a, b ranked) int { return a.order - b.order })
}

// maxVisible reserves one slot for the separately rendered trainer outside
// tile view.
func maxVisible(lastN int, tileView bool) int {
	if lastN < 1 {
		return Unlimited
	}
	if tileView {
		return lastN
	}
	return lastN - 1
}

// Engine wraps Order and keeps the last good layout, so a bad input never
// blanks the filmstrip.
type Engine struct {
	last core.LayoutDTO
}

func NewEngine() *Engine {
	return &Engine{last: core.LayoutDTO{Remote: []core.EntryDTO{}, MaxVisible: Unlimited}}
}

// Order returns the new layout, or the previous one if computing it failed.
func (e *Engine) Order(in Input) core.LayoutDTO {
	var (
		pc  panics.Catcher
		out core.LayoutDTO
		err error
	)
	pc.Try(func() { out, err = Order(in) })
	if rec := pc.Recovered(); rec != nil {
		err = rec.AsError()
	}
	if err != nil {
		log.Error().Err(err).Str("module", "ordering").Msg("ordering failed, keeping previous layout")
		return e.last
	}
	e.last = out
	return out
}

func (e *Engine) Last() core.LayoutDTO { return e.last }

func (e *Engine) Reset() {
	e.last = core.LayoutDTO{Remote: []core.EntryDTO{}, MaxVisible: Unlimited}
}
