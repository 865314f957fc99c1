// Package largevideo owns the single focused display.
package largevideo

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/salza80/jitsi-meet/internal/core"
	"github.com/salza80/jitsi-meet/internal/domain"
)

var ErrNotInitialized = errors.New("large video not initialized")

type Options struct {
	Store  core.Store
	Render core.LargeVideoRenderer
	// OnChange observes committed selections. It is called without the
	// manager lock held, possibly from the renderer's goroutine.
	OnChange func(sel core.Selection, ok bool)
}

// Manager tracks the current large-video selection. A transition is
// requested synchronously and applied when the renderer reports back, but
// only if no newer transition was requested in the meantime.
type Manager struct {
	opts   Options
	logger zerolog.Logger

	mu        sync.Mutex
	ctx       context.Context
	cancel    context.CancelFunc
	bound     bool
	viewport  core.Viewport
	flipX     bool
	current   *core.Selection
	displayed *core.Selection
	seq       uint64
}

func NewManager(opts Options) *Manager {
	if opts.Render == nil {
		opts.Render = core.NopRenderer{}
	}
	return &Manager{
		opts:   opts,
		logger: log.With().Str("module", "largevideo").Logger(),
	}
}

// Initialize drops any prior selection and binds to the given viewport.
// The cached flip state survives.
func (m *Manager) Initialize(ctx context.Context, vp core.Viewport) {
	m.mu.Lock()
	m.resetLocked()
	m.ctx, m.cancel = context.WithCancel(ctx)
	m.bound = true
	m.viewport = vp
	m.mu.Unlock()
	m.logger.Info().Int("width", vp.Width).Int("height", vp.Height).Bool("flip_x", m.FlipX()).Msg("large video initialized")
}

// Destroy tears the manager down. In-flight transitions are discarded.
func (m *Manager) Destroy() {
	m.mu.Lock()
	m.resetLocked()
	m.mu.Unlock()
	m.notify(core.Selection{}, false)
}

func (m *Manager) resetLocked() {
	if m.cancel != nil {
		m.cancel()
	}
	m.bound = false
	m.current = nil
	m.displayed = nil
	m.seq++
}

func (m *Manager) Initialized() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bound
}

// Selection returns the current selection, including one still in flight.
func (m *Manager) Selection() (core.Selection, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return core.Selection{}, false
	}
	return *m.current, true
}

// Displayed returns what the renderer last confirmed.
func (m *Manager) Displayed() (core.Selection, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.displayed == nil {
		return core.Selection{}, false
	}
	return *m.displayed, true
}

func (m *Manager) IsCurrentlyOnLarge(id domain.ParticipantID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current != nil && m.current.ParticipantID == id
}

// Update refreshes the large video for id if, and only if, id is on large.
func (m *Manager) Update(id domain.ParticipantID, force bool) {
	if m.IsCurrentlyOnLarge(id) {
		m.updateLargeVideo(id, force)
	}
}

// Select puts id on large unless it is already there.
func (m *Manager) Select(id domain.ParticipantID) {
	m.updateLargeVideo(id, false)
}

func (m *Manager) updateLargeVideo(id domain.ParticipantID, force bool) {
	m.mu.Lock()
	if !m.bound {
		m.mu.Unlock()
		return
	}
	next, ok := m.resolve(id)
	if !ok {
		m.mu.Unlock()
		m.logger.Warn().Str("participant", string(id)).Msg("no participant to show on large")
		return
	}

	onLarge := m.current != nil && m.current.ParticipantID == id
	if onLarge && !force && m.current.Container.IsVideo() && next.StreamID != "" &&
		m.current.StreamID != next.StreamID {
		m.logger.Debug().Str("participant", string(id)).Msg("enforcing large video update for stream change")
		force = true
	}
	if onLarge && !force {
		m.mu.Unlock()
		return
	}
	m.transitionLocked(next)
}

// resolve maps a participant onto a container. A participant without a
// live, unmuted video track on an active connection degrades to an avatar.
func (m *Manager) resolve(id domain.ParticipantID) (core.Selection, bool) {
	if m.opts.Store == nil {
		return core.Selection{}, false
	}
	p, ok := m.opts.Store.Participant(id)
	if !ok {
		return core.Selection{}, false
	}
	sel := core.Selection{ParticipantID: id, FlipX: p.Local && m.flipX}
	if p.IsFake {
		sel.Container = core.ContainerSharedVideo
		return sel, true
	}
	t, ok := m.opts.Store.Track(id, domain.MediaVideo)
	if !ok || t.Muted || t.StreamID == "" || !p.IsActive() {
		sel.Container = core.ContainerAvatar
		if ok {
			sel.VideoType = t.VideoType
		}
		return sel, true
	}
	sel.Container = core.ContainerVideo
	sel.VideoType = t.VideoType
	if sel.VideoType == "" {
		sel.VideoType = domain.VideoCamera
	}
	sel.StreamID = t.StreamID
	return sel, true
}

// transitionLocked must be called with mu held; it releases it before
// handing the selection to the renderer.
func (m *Manager) transitionLocked(next core.Selection) {
	m.seq++
	seq := m.seq
	m.current = &next
	ctx := m.ctx
	m.mu.Unlock()

	m.logger.Debug().
		Str("participant", string(next.ParticipantID)).
		Str("container", string(next.Container)).
		Str("stream", next.StreamID).
		Uint64("seq", seq).
		Msg("show container")
	m.opts.Render.ShowContainer(ctx, next, func(err error) { m.finish(seq, next, err) })
}

func (m *Manager) finish(seq uint64, sel core.Selection, err error) {
	m.mu.Lock()
	if seq != m.seq {
		m.mu.Unlock()
		m.logger.Debug().Uint64("seq", seq).Msg("stale container transition ignored")
		return
	}
	if err != nil {
		m.current = m.displayed
		var prev core.Selection
		ok := m.current != nil
		if ok {
			prev = *m.current
		}
		m.mu.Unlock()
		m.logger.Warn().Err(err).Str("participant", string(sel.ParticipantID)).Msg("container transition failed, keeping previous")
		m.notify(prev, ok)
		return
	}
	m.displayed = &sel
	m.mu.Unlock()
	m.notify(sel, true)
}

// ShowContainer shows or hides a container type on large. Hiding falls back
// to the pinned participant, then the current one; with neither left the
// selection is cleared.
func (m *Manager) ShowContainer(ct core.ContainerType, show bool) error {
	m.mu.Lock()
	if !m.bound {
		m.mu.Unlock()
		return ErrNotInitialized
	}
	visible := m.current != nil && m.current.Container == ct
	if visible == show {
		m.mu.Unlock()
		return nil
	}

	next := core.Selection{Container: ct}
	if m.current != nil {
		next = *m.current
		next.Container = ct
	}
	if show {
		next.StreamID = ""
		if sel, ok := m.resolve(next.ParticipantID); ok && sel.Container == ct {
			next = sel
		}
	} else {
		sel, ok := m.fallbackLocked()
		if !ok {
			m.current = nil
			m.seq++
			m.mu.Unlock()
			m.logger.Debug().Str("container", string(ct)).Msg("nothing to show after hiding container")
			m.notify(core.Selection{}, false)
			return nil
		}
		next = sel
	}
	m.transitionLocked(next)
	return nil
}

func (m *Manager) fallbackLocked() (core.Selection, bool) {
	candidates := []domain.ParticipantID{m.pinned()}
	if m.current != nil {
		candidates = append(candidates, m.current.ParticipantID)
	}
	for _, id := range candidates {
		if id == "" {
			continue
		}
		if sel, ok := m.resolve(id); ok {
			return sel, true
		}
	}
	return core.Selection{}, false
}

// OnPinChange puts a newly pinned participant on large. Unpinning keeps the
// current selection.
func (m *Manager) OnPinChange(pinned domain.ParticipantID) {
	if pinned == "" {
		return
	}
	m.Select(pinned)
}

// OnParticipantRemoved drops a selection that points at id. It reports
// whether the selection was cleared.
func (m *Manager) OnParticipantRemoved(id domain.ParticipantID) bool {
	m.mu.Lock()
	if m.displayed != nil && m.displayed.ParticipantID == id {
		m.displayed = nil
	}
	if m.current == nil || m.current.ParticipantID != id {
		m.mu.Unlock()
		return false
	}
	m.current = nil
	m.seq++
	m.mu.Unlock()

	m.logger.Info().Str("participant", string(id)).Msg("large video owner removed")
	m.notify(core.Selection{}, false)
	return true
}

func (m *Manager) SetLocalFlipX(v bool) {
	m.mu.Lock()
	m.flipX = v
	m.mu.Unlock()
}

func (m *Manager) FlipX() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flipX
}

func (m *Manager) Resize(vp core.Viewport) {
	m.mu.Lock()
	m.viewport = vp
	m.mu.Unlock()
}

func (m *Manager) Viewport() core.Viewport {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.viewport
}

func (m *Manager) pinned() domain.ParticipantID {
	if m.opts.Store == nil {
		return ""
	}
	return m.opts.Store.PinnedID()
}

func (m *Manager) notify(sel core.Selection, ok bool) {
	if m.opts.OnChange != nil {
		m.opts.OnChange(sel, ok)
	}
}
