package core

import "github.com/salza80/jitsi-meet/internal/domain"

type EventKind string

const (
	KindConferenceJoined           EventKind = "conference-joined"
	KindConferenceWillLeave        EventKind = "conference-will-leave"
	KindParticipantJoined          EventKind = "participant-joined"
	KindParticipantLeft            EventKind = "participant-left"
	KindParticipantUpdated         EventKind = "participant-updated"
	KindDominantSpeakerChanged     EventKind = "dominant-speaker-changed"
	KindPinParticipant             EventKind = "pin-participant"
	KindTrackAdded                 EventKind = "track-added"
	KindTrackRemoved               EventKind = "track-removed"
	KindTrackUpdated               EventKind = "track-updated"
	KindFilmstripVisibilityChanged EventKind = "filmstrip-visibility-changed"
	KindClientResized              EventKind = "client-resized"
	KindTileViewChanged            EventKind = "tile-view-changed"
	KindLastNChanged               EventKind = "last-n-changed"
	KindRecentActiveChanged        EventKind = "recent-active-changed"
	KindLocalFlipXChanged          EventKind = "local-flipx-changed"
)

// Event is the closed set of inbound store events. Only types in this
// package implement it.
type Event interface {
	Kind() EventKind
	isEvent()
}

type ConferenceJoined struct {
	Local domain.Participant
}

type ConferenceWillLeave struct{}

type ParticipantJoined struct {
	Participant domain.Participant
}

type ParticipantLeft struct {
	ID domain.ParticipantID
}

// ParticipantUpdated carries only the fields that changed.
type ParticipantUpdated struct {
	ID               domain.ParticipantID
	Name             *string
	Role             *domain.Role
	ConnectionStatus *domain.ConnectionStatus
}

type DominantSpeakerChanged struct {
	ID domain.ParticipantID
}

// PinParticipant with an empty ID clears the pin.
type PinParticipant struct {
	ID domain.ParticipantID
}

type TrackAdded struct {
	Track domain.Track
}

type TrackRemoved struct {
	Track domain.Track
}

// TrackUpdated reports a mute or video type change on a live track.
type TrackUpdated struct {
	Track domain.Track
}

type FilmstripVisibilityChanged struct {
	Visible bool
}

type ClientResized struct {
	Viewport Viewport
}

type TileViewChanged struct {
	Enabled bool
}

type LastNChanged struct {
	LastN int
}

type RecentActiveChanged struct {
	IDs []domain.ParticipantID
}

type LocalFlipXChanged struct {
	FlipX bool
}

func (ConferenceJoined) Kind() EventKind           { return KindConferenceJoined }
func (ConferenceWillLeave) Kind() EventKind        { return KindConferenceWillLeave }
func (ParticipantJoined) Kind() EventKind          { return KindParticipantJoined }
func (ParticipantLeft) Kind() EventKind            { return KindParticipantLeft }
func (ParticipantUpdated) Kind() EventKind         { return KindParticipantUpdated }
func (DominantSpeakerChanged) Kind() EventKind     { return KindDominantSpeakerChanged }
func (PinParticipant) Kind() EventKind             { return KindPinParticipant }
func (TrackAdded) Kind() EventKind                 { return KindTrackAdded }
func (TrackRemoved) Kind() EventKind               { return KindTrackRemoved }
func (TrackUpdated) Kind() EventKind               { return KindTrackUpdated }
func (FilmstripVisibilityChanged) Kind() EventKind { return KindFilmstripVisibilityChanged }
func (ClientResized) Kind() EventKind              { return KindClientResized }
func (TileViewChanged) Kind() EventKind            { return KindTileViewChanged }
func (LastNChanged) Kind() EventKind               { return KindLastNChanged }
func (RecentActiveChanged) Kind() EventKind        { return KindRecentActiveChanged }
func (LocalFlipXChanged) Kind() EventKind          { return KindLocalFlipXChanged }

func (ConferenceJoined) isEvent()           {}
func (ConferenceWillLeave) isEvent()        {}
func (ParticipantJoined) isEvent()          {}
func (ParticipantLeft) isEvent()            {}
func (ParticipantUpdated) isEvent()         {}
func (DominantSpeakerChanged) isEvent()     {}
func (PinParticipant) isEvent()             {}
func (TrackAdded) isEvent()                 {}
func (TrackRemoved) isEvent()               {}
func (TrackUpdated) isEvent()               {}
func (FilmstripVisibilityChanged) isEvent() {}
func (ClientResized) isEvent()              {}
func (TileViewChanged) isEvent()            {}
func (LastNChanged) isEvent()               {}
func (RecentActiveChanged) isEvent()        {}
func (LocalFlipXChanged) isEvent()          {}
