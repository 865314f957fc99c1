package domain

import (
	"fmt"
	"strings"
)

// Role tags a participant for layout decisions. It is resolved when the
// participant is created so that display text is never matched later on.
type Role int

const (
	RoleUnknown Role = iota
	RoleAttendee
	RoleActive
	RoleTrainer
)

func (r Role) String() string {
	switch r {
	case RoleAttendee:
		return "attendee"
	case RoleActive:
		return "active"
	case RoleTrainer:
		return "trainer"
	default:
		return "unknown"
	}
}

func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "attendee":
		return RoleAttendee, nil
	case "active":
		return RoleActive, nil
	case "trainer":
		return RoleTrainer, nil
	case "", "unknown":
		return RoleUnknown, nil
	}
	return RoleUnknown, fmt.Errorf("unknown role %q", s)
}

// RoleFromName maps the legacy name convention onto a role: names starting
// with "trainer" and the literal "active" are privileged.
func RoleFromName(name string) Role {
	n := strings.ToLower(strings.TrimSpace(name))
	switch {
	case n == "":
		return RoleUnknown
	case strings.HasPrefix(n, "trainer"):
		return RoleTrainer
	case n == "active":
		return RoleActive
	default:
		return RoleAttendee
	}
}

func (r Role) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

func (r *Role) UnmarshalText(b []byte) error {
	v, err := ParseRole(string(b))
	if err != nil {
		return err
	}
	*r = v
	return nil
}
