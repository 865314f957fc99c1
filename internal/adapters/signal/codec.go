package signal

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/salza80/jitsi-meet/internal/core"
	"github.com/salza80/jitsi-meet/internal/domain"
)

var (
	ErrUnknownEvent = errors.New("unknown event type")
	ErrBadPayload   = errors.New("bad payload")
)

type envelope struct {
	Type string `json:"type"`
}

type wireParticipant struct {
	ID               domain.ParticipantID    `json:"id"`
	Name             string                  `json:"name"`
	Role             *domain.Role            `json:"role"`
	ConnectionStatus domain.ConnectionStatus `json:"connectionStatus"`
	IsFake           bool                    `json:"isFakeParticipant"`
}

func (w *wireParticipant) participant(local bool) (domain.Participant, error) {
	if w == nil {
		return domain.Participant{}, fmt.Errorf("%w: participant missing", ErrBadPayload)
	}
	if w.ID == "" && !local {
		return domain.Participant{}, fmt.Errorf("%w: participant id empty", ErrBadPayload)
	}
	p, err := domain.NewParticipant(w.ID, w.Name, local)
	if err != nil {
		return domain.Participant{}, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	if w.Role != nil {
		p.SetRole(*w.Role)
	}
	if w.ConnectionStatus != "" {
		if !validStatus(w.ConnectionStatus) {
			return domain.Participant{}, fmt.Errorf("%w: connection status %q", ErrBadPayload, w.ConnectionStatus)
		}
		p.ConnectionStatus = w.ConnectionStatus
	}
	p.IsFake = w.IsFake
	return *p, nil
}

func validStatus(s domain.ConnectionStatus) bool {
	switch s {
	case domain.ConnectionActive, domain.ConnectionInterrupted, domain.ConnectionInactive:
		return true
	}
	return false
}

type idPayload struct {
	ID domain.ParticipantID `json:"id"`
}

type participantPayload struct {
	Participant *wireParticipant `json:"participant"`
}

type updatePayload struct {
	ID               domain.ParticipantID     `json:"id"`
	Name             *string                  `json:"name"`
	Role             *domain.Role             `json:"role"`
	ConnectionStatus *domain.ConnectionStatus `json:"connectionStatus"`
}

type trackPayload struct {
	Track *domain.Track `json:"track"`
}

func (p trackPayload) track() (domain.Track, error) {
	if p.Track == nil || p.Track.ParticipantID == "" {
		return domain.Track{}, fmt.Errorf("%w: track without participant", ErrBadPayload)
	}
	if _, err := domain.ParseMediaType(string(p.Track.MediaType)); err != nil {
		return domain.Track{}, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	switch p.Track.VideoType {
	case "", domain.VideoCamera, domain.VideoDesktop:
	default:
		return domain.Track{}, fmt.Errorf("%w: video type %q", ErrBadPayload, p.Track.VideoType)
	}
	return *p.Track, nil
}

// MessageType returns the "type" field of an inbound message.
func MessageType(data []byte) (string, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	return env.Type, nil
}

// Decode turns a JSON message of the form {"type": <event kind>, ...} into
// an event for the router.
func Decode(data []byte) (core.Event, error) {
	typ, err := MessageType(data)
	if err != nil {
		return nil, err
	}

	switch core.EventKind(typ) {
	case core.KindConferenceJoined:
		var p participantPayload
		if err := unmarshal(data, &p); err != nil {
			return nil, err
		}
		local, err := p.Participant.participant(true)
		if err != nil {
			return nil, err
		}
		return core.ConferenceJoined{Local: local}, nil

	case core.KindConferenceWillLeave:
		return core.ConferenceWillLeave{}, nil

	case core.KindParticipantJoined:
		var p participantPayload
		if err := unmarshal(data, &p); err != nil {
			return nil, err
		}
		remote, err := p.Participant.participant(false)
		if err != nil {
			return nil, err
		}
		return core.ParticipantJoined{Participant: remote}, nil

	case core.KindParticipantLeft:
		id, err := decodeID(data, true)
		if err != nil {
			return nil, err
		}
		return core.ParticipantLeft{ID: id}, nil

	case core.KindParticipantUpdated:
		var p updatePayload
		if err := unmarshal(data, &p); err != nil {
			return nil, err
		}
		if p.ID == "" {
			return nil, fmt.Errorf("%w: id empty", ErrBadPayload)
		}
		if p.ConnectionStatus != nil && !validStatus(*p.ConnectionStatus) {
			return nil, fmt.Errorf("%w: connection status %q", ErrBadPayload, *p.ConnectionStatus)
		}
		if p.Name != nil && len(*p.Name) > domain.MaxNameLen {
			return nil, fmt.Errorf("%w: %v", ErrBadPayload, domain.ErrNameTooLong)
		}
		return core.ParticipantUpdated{ID: p.ID, Name: p.Name, Role: p.Role, ConnectionStatus: p.ConnectionStatus}, nil

	case core.KindDominantSpeakerChanged:
		id, err := decodeID(data, false)
		if err != nil {
			return nil, err
		}
		return core.DominantSpeakerChanged{ID: id}, nil

	case core.KindPinParticipant:
		id, err := decodeID(data, false)
		if err != nil {
			return nil, err
		}
		return core.PinParticipant{ID: id}, nil

	case core.KindTrackAdded, core.KindTrackRemoved, core.KindTrackUpdated:
		var p trackPayload
		if err := unmarshal(data, &p); err != nil {
			return nil, err
		}
		tr, err := p.track()
		if err != nil {
			return nil, err
		}
		switch core.EventKind(typ) {
		case core.KindTrackAdded:
			return core.TrackAdded{Track: tr}, nil
		case core.KindTrackRemoved:
			return core.TrackRemoved{Track: tr}, nil
		}
		return core.TrackUpdated{Track: tr}, nil

	case core.KindFilmstripVisibilityChanged:
		var p struct {
			Visible bool `json:"visible"`
		}
		if err := unmarshal(data, &p); err != nil {
			return nil, err
		}
		return core.FilmstripVisibilityChanged{Visible: p.Visible}, nil

	case core.KindClientResized:
		var p core.Viewport
		if err := unmarshal(data, &p); err != nil {
			return nil, err
		}
		if p.Width <= 0 || p.Height <= 0 {
			return nil, fmt.Errorf("%w: viewport %dx%d", ErrBadPayload, p.Width, p.Height)
		}
		return core.ClientResized{Viewport: p}, nil

	case core.KindTileViewChanged:
		var p struct {
			Enabled bool `json:"enabled"`
		}
		if err := unmarshal(data, &p); err != nil {
			return nil, err
		}
		return core.TileViewChanged{Enabled: p.Enabled}, nil

	case core.KindLastNChanged:
		var p struct {
			LastN *int `json:"lastN"`
		}
		if err := unmarshal(data, &p); err != nil {
			return nil, err
		}
		if p.LastN == nil || *p.LastN < -1 {
			return nil, fmt.Errorf("%w: lastN", ErrBadPayload)
		}
		return core.LastNChanged{LastN: *p.LastN}, nil

	case core.KindRecentActiveChanged:
		var p struct {
			IDs []domain.ParticipantID `json:"ids"`
		}
		if err := unmarshal(data, &p); err != nil {
			return nil, err
		}
		return core.RecentActiveChanged{IDs: p.IDs}, nil

	case core.KindLocalFlipXChanged:
		var p struct {
			FlipX bool `json:"flipX"`
		}
		if err := unmarshal(data, &p); err != nil {
			return nil, err
		}
		return core.LocalFlipXChanged{FlipX: p.FlipX}, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, typ)
}

func unmarshal(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	return nil
}

func decodeID(data []byte, required bool) (domain.ParticipantID, error) {
	var p idPayload
	if err := unmarshal(data, &p); err != nil {
		return "", err
	}
	if required && p.ID == "" {
		return "", fmt.Errorf("%w: id empty", ErrBadPayload)
	}
	return p.ID, nil
}

// outbound is every message the server pushes to subscribers.
type outbound struct {
	Type string `json:"type"`
	Seq  uint64 `json:"seq,omitempty"`
	Data any    `json:"data,omitempty"`
}

const (
	msgSnapshot         = "snapshot"
	msgThumbnail        = "thumbnail"
	msgThumbnailRemoved = "thumbnail-removed"
	msgLayout           = "layout"
	msgRemeasure        = "remeasure"
	msgShowContainer    = "show-container"
	msgContainerShown   = "container-shown"
	msgError            = "error"
	msgPong             = "pong"
)
