package models

import (
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleOrganizer Role = "organizer"
	RoleAdmin     Role = "admin"
)

// Profile is the app-level user record kept in the Supabase profiles table.
type Profile struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	FullName  string    `json:"fullname"`
	Role      Role      `json:"role"`
	City      string    `json:"location"`
	AvatarURL string    `json:"avatar_url"`
	CreatedAt time.Time `json:"created_at"`
}

// Viewer is the caller of an operation. The zero value is an anonymous
// viewer.
type Viewer struct {
	UserID string
	Role   Role
	City   string
	// SessionKey identifies the client session for location persistence and
	// feed supersession. Falls back to UserID.
	SessionKey string
}

func (v Viewer) Authenticated() bool { return v.UserID != "" }

func (v Viewer) IsAdmin() bool { return v.Role == RoleAdmin }

func (v Viewer) IsOrganizer() bool { return v.Role == RoleOrganizer || v.Role == RoleAdmin }

// Key returns the session key, or the user id when no session was supplied.
func (v Viewer) Key() string {
	if v.SessionKey != "" {
		return v.SessionKey
	}
	return v.UserID
}
