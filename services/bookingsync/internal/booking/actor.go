package booking

import "strings"

type Role string

const (
	RoleNone  Role = ""
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Actor is the opaque "current actor" signal handed over by the authentication
// collaborator.
type Actor struct {
	ID    string `json:"id"`
	Role  Role   `json:"role"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

func Anonymous() Actor {
	return Actor{}
}

func ParseRole(s string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleNone:
		return RoleNone, true
	case RoleUser:
		return RoleUser, true
	case RoleAdmin:
		return RoleAdmin, true
	}
	return RoleNone, false
}

func (a Actor) IsAuthenticated() bool {
	return a.Role == RoleUser || a.Role == RoleAdmin
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// Same reports whether both values identify the same signed-in actor.
func (a Actor) Same(other Actor) bool {
	return a.ID == other.ID && a.Role == other.Role
}

// Owns matches by owner id first and falls back to the denormalized client
// email for records created before owner ids existed.
func (a Actor) Owns(b *Booking) bool {
	if b == nil || !a.IsAuthenticated() {
		return false
	}
	if b.OwnerID != "" {
		return b.OwnerID == a.ID
	}
	return a.Email != "" && strings.EqualFold(b.Client.Email, a.Email)
}
