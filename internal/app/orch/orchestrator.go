// Package orch routes store events to the thumbnail and large-video
// components in a fixed order per event kind.
package orch

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/panics"

	"github.com/salza80/jitsi-meet/internal/app"
	"github.com/salza80/jitsi-meet/internal/core"
	"github.com/salza80/jitsi-meet/internal/domain"
)

var ErrQueueFull = errors.New("event queue full")

type Options struct {
	Store core.Store
	// Reducer, if set, is applied to every event before the reactions run.
	Reducer core.Reducer
	Policy  app.Policy
	Render  core.Renderer
	Large   core.LargeVideoRenderer

	DominantSpeakerOrdering  bool
	DominantSpeakerIndicator bool
	Viewport                 core.Viewport
	QueueSize                int
}

// Orchestrator is the event router. All reactions run to completion on the
// goroutine calling Dispatch; events raised while reacting are queued and
// handled afterwards.
type Orchestrator struct {
	opts   Options
	logger zerolog.Logger
	events chan core.Event
	ctx    context.Context

	state       *State
	queue       []core.Event
	dispatching bool
	viewport    core.Viewport
	flipX       bool

	mu   sync.RWMutex
	snap core.Snapshot
}

func New(opts Options) *Orchestrator {
	if opts.Policy == nil {
		opts.Policy = app.RolePolicy{}
	}
	if opts.Render == nil {
		opts.Render = core.NopRenderer{}
	}
	if opts.Large == nil {
		opts.Large = core.NopRenderer{}
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}
	return &Orchestrator{
		opts:     opts,
		logger:   log.With().Str("module", "orch").Logger(),
		events:   make(chan core.Event, opts.QueueSize),
		ctx:      context.Background(),
		viewport: opts.Viewport,
		snap:     core.Snapshot{Layout: core.LayoutDTO{Remote: []core.EntryDTO{}, MaxVisible: -1}},
	}
}

// Enqueue hands an event to the Run loop without blocking.
func (o *Orchestrator) Enqueue(ev core.Event) error {
	select {
	case o.events <- ev:
		return nil
	default:
		return ErrQueueFull
	}
}

// Run dispatches queued events until ctx is done.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.ctx = ctx
	o.logger.Info().Msg("event loop started")
	for {
		select {
		case <-ctx.Done():
			o.logger.Info().Msg("event loop stopped")
			return ctx.Err()
		case ev := <-o.events:
			o.Dispatch(ev)
		}
	}
}

// Dispatch processes ev synchronously. It must not be called concurrently.
func (o *Orchestrator) Dispatch(ev core.Event) {
	o.queue = append(o.queue, ev)
	if o.dispatching {
		return
	}
	o.dispatching = true
	defer func() { o.dispatching = false }()

	for len(o.queue) > 0 {
		next := o.queue[0]
		o.queue = o.queue[1:]
		o.safeHandle(next)
	}
	o.publish()
}

func (o *Orchestrator) safeHandle(ev core.Event) {
	var pc panics.Catcher
	pc.Try(func() { o.handle(ev) })
	if rec := pc.Recovered(); rec != nil {
		o.logger.Error().Err(rec.AsError()).Str("event", string(ev.Kind())).Msg("event reaction failed")
	}
}

func (o *Orchestrator) handle(ev core.Event) {
	if o.opts.Reducer != nil {
		o.opts.Reducer.Reduce(ev)
	}
	o.logger.Debug().Str("event", string(ev.Kind())).Msg("dispatch")

	switch e := ev.(type) {
	case core.ConferenceJoined:
		o.onConferenceJoined()
	case core.ConferenceWillLeave:
		o.onConferenceWillLeave()
		return
	case core.ParticipantJoined:
		o.onParticipantJoined(e)
	case core.ParticipantLeft:
		o.onParticipantLeft(e)
	case core.ParticipantUpdated:
		o.onParticipantUpdated(e)
	case core.DominantSpeakerChanged:
		o.ensureState().Thumbs.OnDominantSpeakerChanged(e.ID)
	case core.PinParticipant:
		o.onPinParticipant(e)
	case core.TrackAdded:
		o.onTrackAdded(e)
	case core.TrackRemoved:
		o.onTrackRemoved(e)
	case core.TrackUpdated:
		o.onTrackUpdated(e)
	case core.FilmstripVisibilityChanged:
		o.remeasure()
	case core.ClientResized:
		o.viewport = e.Viewport
		o.remeasure()
	case core.TileViewChanged:
		o.remeasure()
	case core.LastNChanged:
		o.onLastNChanged()
	case core.RecentActiveChanged:
	case core.LocalFlipXChanged:
		o.flipX = e.FlipX
		o.ensureState().Large.SetLocalFlipX(e.FlipX)
	default:
		o.logger.Warn().Str("event", string(ev.Kind())).Msg("unhandled event")
		return
	}

	if o.state != nil {
		o.relayout()
		o.ensureSelection()
	}
}

// Snapshot returns the render state as of the last dispatched event.
func (o *Orchestrator) Snapshot() core.Snapshot {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := o.snap
	out.Layout.Remote = slices.Clone(o.snap.Layout.Remote)
	out.Layout.Trainers = slices.Clone(o.snap.Layout.Trainers)
	out.Thumbnails = slices.Clone(o.snap.Thumbnails)
	if o.snap.LargeVideo != nil {
		sel := *o.snap.LargeVideo
		out.LargeVideo = &sel
	}
	return out
}

// State exposes the live layout state. Only safe on the dispatch goroutine.
func (o *Orchestrator) State() *State { return o.state }

func (o *Orchestrator) publish() {
	snap := core.Snapshot{Layout: core.LayoutDTO{Remote: []core.EntryDTO{}, MaxVisible: -1}}
	if s := o.state; s != nil {
		snap.Layout = s.layout
		snap.Thumbnails = s.Thumbs.Snapshot()
		if sel, ok := s.Large.Selection(); ok {
			snap.LargeVideo = &sel
		}
	}
	o.mu.Lock()
	o.snap = snap
	o.mu.Unlock()
}

func (o *Orchestrator) setLargeVideo(sel core.Selection, ok bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !ok {
		o.snap.LargeVideo = nil
		return
	}
	o.snap.LargeVideo = &sel
}

func (o *Orchestrator) remeasure() {
	o.opts.Render.Remeasure(o.viewport)
	if o.state != nil {
		o.state.Large.Resize(o.viewport)
	}
}

// unpin clears the process-wide pin through the store.
func (o *Orchestrator) unpin() {
	o.Dispatch(core.PinParticipant{})
}

func (o *Orchestrator) displayable(id domain.ParticipantID) bool {
	if id == "" || o.state == nil {
		return false
	}
	p, ok := o.opts.Store.Participant(id)
	if !ok {
		return false
	}
	return p.Local || o.state.Thumbs.Has(id)
}
