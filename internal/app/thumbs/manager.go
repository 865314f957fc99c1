// Package thumbs owns the set of live filmstrip thumbnails.
package thumbs

import (
	"maps"
	"slices"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/salza80/jitsi-meet/internal/core"
	"github.com/salza80/jitsi-meet/internal/domain"
)

type Options struct {
	Store  core.Store
	Render core.Renderer
	// Unpin clears the process-wide pin. It is called when the pinned
	// participant's thumbnail goes away.
	Unpin func()
	// DominantSpeakerIndicator shows the talker indicator on thumbnails.
	DominantSpeakerIndicator bool
}

// Manager keeps exactly one thumbnail per displayed participant and buffers
// tracks that arrive before their participant's thumbnail.
type Manager struct {
	opts     Options
	logger   zerolog.Logger
	local    *Thumbnail
	remote   map[domain.ParticipantID]*Thumbnail
	buffered map[domain.ParticipantID]map[domain.MediaType]domain.Track
}

func NewManager(opts Options) *Manager {
	if opts.Render == nil {
		opts.Render = core.NopRenderer{}
	}
	if opts.Unpin == nil {
		opts.Unpin = func() {}
	}
	return &Manager{
		opts:     opts,
		logger:   log.With().Str("module", "thumbs").Logger(),
		remote:   make(map[domain.ParticipantID]*Thumbnail),
		buffered: make(map[domain.ParticipantID]map[domain.MediaType]domain.Track),
	}
}

// InitLocal creates the local thumbnail if it does not exist yet.
func (m *Manager) InitLocal(p domain.Participant, visible bool) {
	if m.local == nil {
		m.local = newThumbnail(p, core.ThumbnailLocal)
	} else {
		m.local.refreshParticipant(p)
	}
	m.local.visible = visible
	m.updateMuted(m.local)
	m.render(m.local)
}

// MarkLocalJoined binds the local thumbnail to the joined conference.
func (m *Manager) MarkLocalJoined(p domain.Participant) {
	if m.local == nil {
		m.InitLocal(p, false)
	}
	m.local.id = p.ID
	m.local.refreshParticipant(p)
	m.local.initialized = true
	m.render(m.local)
}

func (m *Manager) SetLocalVisible(visible bool) {
	if m.local == nil || m.local.visible == visible {
		return
	}
	m.local.visible = visible
	m.render(m.local)
}

// AddRemote creates a thumbnail for p. Local participants and ids that
// already have a thumbnail are ignored.
func (m *Manager) AddRemote(p domain.Participant) bool {
	if p.ID == "" || p.Local {
		return false
	}
	if _, ok := m.remote[p.ID]; ok {
		return false
	}

	if p.IsFake {
		t := newThumbnail(p, core.ThumbnailSharedVideo)
		m.remote[p.ID] = t
		m.logger.Info().Str("participant", string(p.ID)).Msg("shared video thumbnail added")
		m.render(t)
		return true
	}

	t := newThumbnail(p, core.ThumbnailRemote)
	m.remote[p.ID] = t
	m.logger.Info().Str("participant", string(p.ID)).Msg("remote thumbnail added")
	for _, mt := range slices.Sorted(maps.Keys(m.buffered[p.ID])) {
		t.attach(m.buffered[p.ID][mt])
	}
	m.updateMuted(t)
	m.render(t)
	return true
}

// Remove destroys the thumbnail for id and clears the pin if it pointed
// there. A missing thumbnail is an expected race.
func (m *Manager) Remove(id domain.ParticipantID) {
	if m.opts.Store != nil && m.opts.Store.PinnedID() == id {
		m.logger.Info().Str("participant", string(id)).Msg("focused video owner has left")
		m.opts.Unpin()
	}
	if _, ok := m.remote[id]; !ok {
		m.logger.Warn().Str("participant", string(id)).Msg("no remote thumbnail to remove")
		return
	}
	delete(m.remote, id)
	m.logger.Info().Str("participant", string(id)).Msg("remote thumbnail removed")
	m.opts.Render.ThumbnailRemoved(id)
}

// Forget drops buffered tracks of a participant that left the conference.
func (m *Manager) Forget(id domain.ParticipantID) {
	delete(m.buffered, id)
}

func (m *Manager) OnTrackAdded(tr domain.Track) {
	m.bufferTrack(tr)

	t, ok := m.remote[tr.ParticipantID]
	if !ok {
		m.logger.Debug().Str("participant", string(tr.ParticipantID)).Str("stream", tr.StreamID).Msg("no thumbnail yet, track buffered")
		return
	}
	t.attach(tr)
	m.updateMuted(t)
	m.render(t)
}

func (m *Manager) OnTrackRemoved(tr domain.Track) {
	if byType, ok := m.buffered[tr.ParticipantID]; ok {
		if cur, ok := byType[tr.MediaType]; ok && (tr.StreamID == "" || cur.StreamID == tr.StreamID) {
			delete(byType, tr.MediaType)
		}
		if len(byType) == 0 {
			delete(m.buffered, tr.ParticipantID)
		}
	}

	t, ok := m.remote[tr.ParticipantID]
	if !ok {
		return
	}
	t.detach(tr)
	m.updateMuted(t)
	m.render(t)
}

// OnVideoMute refreshes the muted indicators of id.
func (m *Manager) OnVideoMute(id domain.ParticipantID) {
	t := m.thumbnail(id)
	if t == nil {
		return
	}
	if tr, ok := m.track(id, domain.MediaVideo); ok && t.kind != core.ThumbnailLocal {
		t.attach(tr)
		m.bufferTrack(tr)
	}
	m.updateMuted(t)
	m.render(t)
}

func (m *Manager) OnDisplayNameChanged(id domain.ParticipantID) {
	t := m.thumbnail(id)
	if t == nil {
		return
	}
	if p, ok := m.participant(id); ok {
		t.refreshParticipant(p)
	}
	m.render(t)
}

func (m *Manager) OnConnectionStatusChanged(id domain.ParticipantID) {
	if m.local != nil && m.local.id == id {
		return
	}
	t, ok := m.remote[id]
	if !ok {
		return
	}
	if p, ok := m.participant(id); ok {
		t.status = p.ConnectionStatus
	}
	m.render(t)
}

// OnPinChange focuses exactly the thumbnail owned by pinned.
func (m *Manager) OnPinChange(pinned domain.ParticipantID) {
	for _, t := range m.all() {
		focus := pinned != "" && t.id == pinned
		if t.pinned != focus {
			t.pinned = focus
			m.render(t)
		}
	}
}

// OnDominantSpeakerChanged is a no-op unless the indicator is enabled.
func (m *Manager) OnDominantSpeakerChanged(id domain.ParticipantID) {
	if !m.opts.DominantSpeakerIndicator {
		return
	}
	for _, t := range m.all() {
		on := t.id == id
		if t.dominant != on {
			t.dominant = on
			m.render(t)
		}
	}
}

// ApplyLayout copies order keys and hidden flags from a computed layout.
func (m *Manager) ApplyLayout(l core.LayoutDTO) {
	seen := make(map[domain.ParticipantID]bool, len(l.Remote))
	for _, e := range l.Remote {
		seen[e.ID] = true
		if t, ok := m.remote[e.ID]; ok {
			m.setPlacement(t, e.Order, e.Hidden)
		}
	}
	for _, id := range l.Trainers {
		seen[id] = true
		if t, ok := m.remote[id]; ok {
			m.setPlacement(t, t.orderHint, false)
		}
	}
	for id, t := range m.remote {
		if !seen[id] {
			m.setPlacement(t, t.orderHint, false)
		}
	}
}

func (m *Manager) setPlacement(t *Thumbnail, order int, hidden bool) {
	if t.order == order && t.hidden == hidden {
		return
	}
	t.order, t.hidden = order, hidden
	m.render(t)
}

// Reset destroys every thumbnail, local included.
func (m *Manager) Reset() {
	for _, id := range slices.Sorted(maps.Keys(m.remote)) {
		m.Remove(id)
	}
	clear(m.buffered)
	if m.local != nil {
		m.opts.Render.ThumbnailRemoved(m.local.id)
		m.local = nil
	}
}

func (m *Manager) Has(id domain.ParticipantID) bool {
	_, ok := m.remote[id]
	return ok
}

func (m *Manager) Count() int { return len(m.remote) }

// RemoteIDs returns the ids of remote thumbnails, sorted.
func (m *Manager) RemoteIDs() []domain.ParticipantID {
	return slices.Sorted(maps.Keys(m.remote))
}

func (m *Manager) Thumbnail(id domain.ParticipantID) (core.ThumbnailDTO, bool) {
	t := m.thumbnail(id)
	if t == nil {
		return core.ThumbnailDTO{}, false
	}
	return t.DTO(), true
}

// Snapshot returns the local thumbnail first, then remotes sorted by id.
func (m *Manager) Snapshot() []core.ThumbnailDTO {
	all := m.all()
	out := make([]core.ThumbnailDTO, 0, len(all))
	for _, t := range all {
		out = append(out, t.DTO())
	}
	return out
}

func (m *Manager) all() []*Thumbnail {
	out := make([]*Thumbnail, 0, len(m.remote)+1)
	if m.local != nil {
		out = append(out, m.local)
	}
	for _, id := range slices.Sorted(maps.Keys(m.remote)) {
		out = append(out, m.remote[id])
	}
	return out
}

func (m *Manager) thumbnail(id domain.ParticipantID) *Thumbnail {
	if m.local != nil && m.local.id == id {
		return m.local
	}
	return m.remote[id]
}

// updateMuted treats a missing track of a media type as muted.
func (m *Manager) updateMuted(t *Thumbnail) {
	if t.kind == core.ThumbnailSharedVideo {
		return
	}
	a, ok := m.track(t.id, domain.MediaAudio)
	t.audioMuted = !ok || a.Muted
	v, ok := m.track(t.id, domain.MediaVideo)
	t.videoMuted = !ok || v.Muted
}

func (m *Manager) bufferTrack(tr domain.Track) {
	byType, ok := m.buffered[tr.ParticipantID]
	if !ok {
		byType = make(map[domain.MediaType]domain.Track)
		m.buffered[tr.ParticipantID] = byType
	}
	byType[tr.MediaType] = tr
}

func (m *Manager) track(id domain.ParticipantID, mt domain.MediaType) (domain.Track, bool) {
	if m.opts.Store == nil {
		return domain.Track{}, false
	}
	return m.opts.Store.Track(id, mt)
}

func (m *Manager) participant(id domain.ParticipantID) (domain.Participant, bool) {
	if m.opts.Store == nil {
		return domain.Participant{}, false
	}
	return m.opts.Store.Participant(id)
}

func (m *Manager) render(t *Thumbnail) { m.opts.Render.ThumbnailUpdated(t.DTO()) }
