package app

import (
	"fmt"

	"github.com/salza80/jitsi-meet/internal/domain"
)

// Policy decides which participants get a thumbnail.
type Policy interface {
	// Eligible reports whether a remote participant gets a thumbnail.
	Eligible(p domain.Participant) bool
	// LocalVisible reports whether the local thumbnail is shown.
	LocalVisible(p domain.Participant) bool
}

// RolePolicy admits trainers and active participants only. Fake
// participants (shared media) are always admitted.
type RolePolicy struct{}

func (RolePolicy) Eligible(p domain.Participant) bool {
	if p.Local {
		return false
	}
	return p.IsFake || privileged(p.Role)
}

func (RolePolicy) LocalVisible(p domain.Participant) bool { return privileged(p.Role) }

// OpenPolicy admits every remote participant.
type OpenPolicy struct{}

func (OpenPolicy) Eligible(p domain.Participant) bool   { return !p.Local }
func (OpenPolicy) LocalVisible(domain.Participant) bool { return true }

func privileged(r domain.Role) bool {
	return r == domain.RoleTrainer || r == domain.RoleActive
}

func PolicyFor(name string) (Policy, error) {
	switch name {
	case "", "role":
		return RolePolicy{}, nil
	case "all":
		return OpenPolicy{}, nil
	}
	return nil, fmt.Errorf("unknown eligibility policy %q", name)
}
