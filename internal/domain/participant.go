// Package domain contains entities without logic, just meta-data
package domain

import (
	"errors"

	"github.com/google/uuid"
)

const MaxNameLen = 64

var (
	ErrParticipantIDEmpty = errors.New("participant id empty")
	ErrNameTooLong        = errors.New("name too long")
)

type ParticipantID string

type ConnectionStatus string

const (
	ConnectionActive      ConnectionStatus = "active"
	ConnectionInterrupted ConnectionStatus = "interrupted"
	ConnectionInactive    ConnectionStatus = "inactive"
)

// Participant is a read-only snapshot owned by the participant registry.
type Participant struct {
	ID               ParticipantID    `json:"id"`
	Local            bool             `json:"local"`
	Name             string           `json:"name"`
	Role             Role             `json:"role"`
	ConnectionStatus ConnectionStatus `json:"connectionStatus"`
	IsFake           bool             `json:"isFakeParticipant"`
	DominantSpeaker  bool             `json:"dominantSpeaker"`

	// RoleExplicit is set once a role was assigned directly rather than
	// derived from the name.
	RoleExplicit bool `json:"-"`
}

// NewParticipant builds a participant with its role resolved once, up front.
// An empty id gets a generated one.
func NewParticipant(id ParticipantID, name string, local bool) (*Participant, error) {
	if len(name) > MaxNameLen {
		return nil, ErrNameTooLong
	}
	if id == "" {
		id = ParticipantID(uuid.NewString())
	}
	return &Participant{
		ID:               id,
		Local:            local,
		Name:             name,
		Role:             RoleFromName(name),
		ConnectionStatus: ConnectionActive,
	}, nil
}

// SetName updates the display name. A name-derived role follows the name.
func (p *Participant) SetName(name string) error {
	if len(name) > MaxNameLen {
		return ErrNameTooLong
	}
	p.Name = name
	if !p.RoleExplicit {
		p.Role = RoleFromName(name)
	}
	return nil
}

func (p *Participant) SetRole(r Role) {
	p.Role = r
	p.RoleExplicit = true
}

func (p *Participant) IsActive() bool {
	return p.ConnectionStatus == "" || p.ConnectionStatus == ConnectionActive
}

func (p *Participant) IsRemote() bool { return !p.Local && !p.IsFake }
