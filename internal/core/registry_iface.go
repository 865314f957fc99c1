package core

import "github.com/salza80/jitsi-meet/internal/domain"

// ParticipantRegistry is the read side of the external participant store.
type ParticipantRegistry interface {
	Participant(id domain.ParticipantID) (domain.Participant, bool)
	// Participants returns every known participant in join order.
	Participants() []domain.Participant
	LocalParticipant() (domain.Participant, bool)
}

// TrackRegistry is the read side of the external track store.
type TrackRegistry interface {
	Track(id domain.ParticipantID, mt domain.MediaType) (domain.Track, bool)
}

// Store is everything the layout core reads from the conference store.
// It is never mutated by the core except through dispatched events.
type Store interface {
	ParticipantRegistry
	TrackRegistry

	// RecentActive is ordered most-recent-first.
	RecentActive() []domain.ParticipantID
	PinnedID() domain.ParticipantID
	DominantSpeakerID() domain.ParticipantID
	// LastN below 1 means unlimited.
	LastN() int
	TileView() bool
	FilmstripVisible() bool
}

// Reducer folds an event into the store before the core reacts to it.
type Reducer interface {
	Reduce(ev Event)
}

// Dispatcher accepts events for the core.
type Dispatcher interface {
	Dispatch(ev Event)
}
