package app

import (
	"slices"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/salza80/jitsi-meet/internal/core"
	"github.com/salza80/jitsi-meet/internal/domain"
)

// Registry is an in-memory conference store: participants, tracks, recency,
// pin and layout settings. It implements core.Store and core.Reducer.
type Registry struct {
	mu           sync.RWMutex
	participants map[domain.ParticipantID]*domain.Participant
	joinOrder    []domain.ParticipantID
	tracks       map[domain.ParticipantID]map[domain.MediaType]domain.Track
	recent       []domain.ParticipantID
	pinned       domain.ParticipantID
	dominant     domain.ParticipantID
	lastN        int
	tileView     bool
	filmstrip    bool
}

type RegistryOptions struct {
	LastN    int
	TileView bool
}

func NewRegistry(opts RegistryOptions) *Registry {
	return &Registry{
		participants: make(map[domain.ParticipantID]*domain.Participant),
		tracks:       make(map[domain.ParticipantID]map[domain.MediaType]domain.Track),
		lastN:        opts.LastN,
		tileView:     opts.TileView,
		filmstrip:    true,
	}
}

func (r *Registry) Participant(id domain.ParticipantID) (domain.Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.participants[id]
	if !ok {
		return domain.Participant{}, false
	}
	return *p, true
}

func (r *Registry) Participants() []domain.Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Participant, 0, len(r.joinOrder))
	for _, id := range r.joinOrder {
		if p, ok := r.participants[id]; ok {
			out = append(out, *p)
		}
	}
	return out
}

func (r *Registry) LocalParticipant() (domain.Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, id := range r.joinOrder {
		if p := r.participants[id]; p != nil && p.Local {
			return *p, true
		}
	}
	return domain.Participant{}, false
}

func (r *Registry) Track(id domain.ParticipantID, mt domain.MediaType) (domain.Track, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tracks[id][mt]
	return t, ok
}

func (r *Registry) RecentActive() []domain.ParticipantID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.recent)
}

func (r *Registry) PinnedID() domain.ParticipantID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.pinned
}

func (r *Registry) DominantSpeakerID() domain.ParticipantID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.dominant
}

func (r *Registry) LastN() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastN
}

func (r *Registry) TileView() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tileView
}

func (r *Registry) FilmstripVisible() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.filmstrip
}

// Reduce applies ev to the store. Unknown participants are logged and ignored.
func (r *Registry) Reduce(ev core.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch e := ev.(type) {
	case core.ConferenceJoined:
		p := e.Local
		p.Local = true
		r.upsert(p)
	case core.ConferenceWillLeave:
		r.reset()
	case core.ParticipantJoined:
		r.upsert(e.Participant)
	case core.ParticipantLeft:
		r.remove(e.ID)
	case core.ParticipantUpdated:
		r.update(e)
	case core.DominantSpeakerChanged:
		r.setDominant(e.ID)
	case core.PinParticipant:
		if e.ID != "" {
			if _, ok := r.participants[e.ID]; !ok {
				log.Warn().Str("module", "app.registry").Str("participant", string(e.ID)).Msg("pin for unknown participant")
				return
			}
		}
		r.pinned = e.ID
	case core.TrackAdded:
		r.putTrack(e.Track)
	case core.TrackUpdated:
		r.putTrack(e.Track)
	case core.TrackRemoved:
		r.removeTrack(e.Track)
	case core.FilmstripVisibilityChanged:
		r.filmstrip = e.Visible
	case core.TileViewChanged:
		r.tileView = e.Enabled
	case core.LastNChanged:
		r.lastN = e.LastN
	case core.RecentActiveChanged:
		r.recent = slices.Clone(e.IDs)
	case core.ClientResized, core.LocalFlipXChanged:
	}
}

func (r *Registry) upsert(p domain.Participant) {
	if p.ID == "" {
		log.Warn().Str("module", "app.registry").Msg("participant without id ignored")
		return
	}
	if p.ConnectionStatus == "" {
		p.ConnectionStatus = domain.ConnectionActive
	}
	if p.Role == domain.RoleUnknown && !p.RoleExplicit {
		p.Role = domain.RoleFromName(p.Name)
	}
	if _, ok := r.participants[p.ID]; !ok {
		r.joinOrder = append(r.joinOrder, p.ID)
		log.Info().Str("module", "app.registry").Str("participant", string(p.ID)).Bool("local", p.Local).Msg("participant added")
	}
	p.DominantSpeaker = p.ID == r.dominant
	r.participants[p.ID] = &p
}

func (r *Registry) remove(id domain.ParticipantID) {
	if _, ok := r.participants[id]; !ok {
		log.Warn().Str("module", "app.registry").Str("participant", string(id)).Msg("leave for unknown participant")
		return
	}
	delete(r.participants, id)
	delete(r.tracks, id)
	r.joinOrder = slices.DeleteFunc(r.joinOrder, func(x domain.ParticipantID) bool { return x == id })
	r.recent = slices.DeleteFunc(r.recent, func(x domain.ParticipantID) bool { return x == id })
	if r.dominant == id {
		r.dominant = ""
	}
	log.Info().Str("module", "app.registry").Str("participant", string(id)).Msg("participant removed")
}

func (r *Registry) update(e core.ParticipantUpdated) {
	p, ok := r.participants[e.ID]
	if !ok {
		log.Warn().Str("module", "app.registry").Str("participant", string(e.ID)).Msg("update for unknown participant")
		return
	}
	if e.Role != nil {
		p.SetRole(*e.Role)
	}
	if e.Name != nil {
		if err := p.SetName(*e.Name); err != nil {
			log.Warn().Err(err).Str("module", "app.registry").Str("participant", string(e.ID)).Msg("rejected name")
		}
	}
	if e.ConnectionStatus != nil {
		p.ConnectionStatus = *e.ConnectionStatus
	}
}

// setDominant also moves a remote speaker to the front of the recency list.
func (r *Registry) setDominant(id domain.ParticipantID) {
	if old, ok := r.participants[r.dominant]; ok {
		old.DominantSpeaker = false
	}
	r.dominant = id
	p, ok := r.participants[id]
	if !ok {
		return
	}
	p.DominantSpeaker = true
	if p.Local {
		return
	}
	r.recent = slices.DeleteFunc(r.recent, func(x domain.ParticipantID) bool { return x == id })
	r.recent = slices.Insert(r.recent, 0, id)
}

func (r *Registry) putTrack(t domain.Track) {
	if t.ParticipantID == "" {
		log.Warn().Str("module", "app.registry").Str("stream", t.StreamID).Msg("track without participant ignored")
		return
	}
	byType, ok := r.tracks[t.ParticipantID]
	if !ok {
		byType = make(map[domain.MediaType]domain.Track)
		r.tracks[t.ParticipantID] = byType
	}
	if t.MediaType == domain.MediaVideo && t.VideoType == "" {
		t.VideoType = domain.VideoCamera
	}
	byType[t.MediaType] = t
}

// removeTrack ignores removals for a stream that was already replaced.
func (r *Registry) removeTrack(t domain.Track) {
	byType, ok := r.tracks[t.ParticipantID]
	if !ok {
		return
	}
	cur, ok := byType[t.MediaType]
	if !ok || (t.StreamID != "" && cur.StreamID != t.StreamID) {
		return
	}
	delete(byType, t.MediaType)
	if len(byType) == 0 {
		delete(r.tracks, t.ParticipantID)
	}
}

func (r *Registry) reset() {
	clear(r.participants)
	clear(r.tracks)
	r.joinOrder = nil
	r.recent = nil
	r.pinned = ""
	r.dominant = ""
	log.Info().Str("module", "app.registry").Msg("store reset")
}

var (
	_ core.Store   = (*Registry)(nil)
	_ core.Reducer = (*Registry)(nil)
)
