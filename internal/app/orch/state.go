package orch

import (
	"github.com/salza80/jitsi-meet/internal/app/largevideo"
	"github.com/salza80/jitsi-meet/internal/app/ordering"
	"github.com/salza80/jitsi-meet/internal/app/thumbs"
	"github.com/salza80/jitsi-meet/internal/core"
	"github.com/salza80/jitsi-meet/internal/domain"
)

// State is the video layout of one conference: thumbnails, large video and
// the last computed ordering. It is built on first use and torn down when
// the conference is left.
type State struct {
	Thumbs *thumbs.Manager
	Large  *largevideo.Manager
	Engine *ordering.Engine
	layout core.LayoutDTO
}

func (s *State) Layout() core.LayoutDTO { return s.layout }

func (o *Orchestrator) ensureState() *State {
	if o.state != nil {
		return o.state
	}
	s := &State{Engine: ordering.NewEngine()}
	s.layout = s.Engine.Last()
	s.Thumbs = thumbs.NewManager(thumbs.Options{
		Store:                    o.opts.Store,
		Render:                   o.opts.Render,
		Unpin:                    o.unpin,
		DominantSpeakerIndicator: o.opts.DominantSpeakerIndicator,
	})
	s.Large = largevideo.NewManager(largevideo.Options{
		Store:    o.opts.Store,
		Render:   o.opts.Large,
		OnChange: o.setLargeVideo,
	})
	s.Large.SetLocalFlipX(o.flipX)
	s.Large.Initialize(o.ctx, o.viewport)

	if local, ok := o.opts.Store.LocalParticipant(); ok {
		s.Thumbs.InitLocal(local, o.opts.Policy.LocalVisible(local))
	}
	o.state = s
	o.logger.Info().Msg("video layout created")
	return s
}

func (o *Orchestrator) teardown() {
	if o.state == nil {
		return
	}
	o.state.Large.Destroy()
	o.state.Thumbs.Reset()
	o.state = nil
	o.opts.Render.LayoutUpdated(core.LayoutDTO{Remote: []core.EntryDTO{}, MaxVisible: ordering.Unlimited})
	o.logger.Info().Msg("video layout torn down")
}

// relayout re-runs the ordering over the participants that have a thumbnail.
func (o *Orchestrator) relayout() {
	s := o.state
	all := o.opts.Store.Participants()
	shown := make([]domain.Participant, 0, len(all))
	for _, p := range all {
		if p.Local || s.Thumbs.Has(p.ID) {
			shown = append(shown, p)
		}
	}
	s.layout = s.Engine.Order(ordering.Input{
		Participants:           shown,
		Tracks:                 o.opts.Store,
		Recency:                o.opts.Store.RecentActive(),
		PinnedID:               o.opts.Store.PinnedID(),
		DominantSpeakerID:      o.opts.Store.DominantSpeakerID(),
		LastN:                  o.opts.Store.LastN(),
		TileView:               o.opts.Store.TileView(),
		DominantSpeakerEnabled: o.opts.DominantSpeakerOrdering,
	})
	s.Thumbs.ApplyLayout(s.layout)
	o.opts.Render.LayoutUpdated(s.layout)
}

// ensureSelection keeps the large video on a displayable participant:
// pinned first, then the current one, then the dominant speaker, then the
// first visible remote, a trainer, and finally the local participant.
func (o *Orchestrator) ensureSelection() {
	s := o.state
	if !s.Large.Initialized() {
		return
	}
	cur, hasCur := s.Large.Selection()
	want := o.pickLarge(cur.ParticipantID)
	if want == "" || (hasCur && cur.ParticipantID == want) {
		return
	}
	s.Large.Select(want)
}

func (o *Orchestrator) pickLarge(current domain.ParticipantID) domain.ParticipantID {
	if pinned := o.opts.Store.PinnedID(); o.displayable(pinned) {
		return pinned
	}
	if o.displayable(current) {
		return current
	}
	if dom := o.opts.Store.DominantSpeakerID(); o.displayable(dom) {
		if p, ok := o.opts.Store.Participant(dom); ok && !p.Local {
			return dom
		}
	}
	l := o.state.layout
	for _, e := range l.Remote {
		if !e.Hidden && o.displayable(e.ID) {
			return e.ID
		}
	}
	for _, id := range l.Trainers {
		if o.displayable(id) {
			return id
		}
	}
	if local, ok := o.opts.Store.LocalParticipant(); ok {
		return local.ID
	}
	return ""
}
