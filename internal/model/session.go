package model

import "time"

// SessionUser is the denormalised copy of a Student kept inside a session.
// It is refreshed when the account changes, so fields such as Bio may lag
// behind the database between refreshes.
type SessionUser struct {
	ID                   string    `json:"id"`
	FirstName            string    `json:"first_name"`
	LastName             string    `json:"last_name"`
	Email                string    `json:"email"`
	Username             string    `json:"username"`
	Bio                  string    `json:"bio"`
	ProfileImageURL      string    `json:"profile_image_url"`
	Timezone             string    `json:"timezone"`
	NotificationsEnabled bool      `json:"notifications_enabled"`
	IsAdmin              bool      `json:"is_admin"`
	MemberSince          time.Time `json:"member_since"`
}

// NewSessionUser snapshots the public fields of s.
func NewSessionUser(s *Student) SessionUser {
	return SessionUser{
		ID:                   s.ID,
		FirstName:            s.FirstName,
		LastName:             s.LastName,
		Email:                s.Email,
		Username:             s.Username,
		Bio:                  s.Bio,
		ProfileImageURL:      s.ProfileImageURL,
		Timezone:             s.Timezone,
		NotificationsEnabled: s.NotificationsEnabled,
		IsAdmin:              s.IsAdmin,
		MemberSince:          s.CreatedAt,
	}
}

// Session is server-side state keyed by the id carried in the session cookie.
type Session struct {
	ID        string      `json:"id"`
	User      SessionUser `json:"user"`
	ExpiresAt time.Time   `json:"expires_at"`
}

// Expired reports whether the session is past its expiry at time now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
