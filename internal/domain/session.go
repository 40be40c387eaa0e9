package domain

import "time"

// Session is an authenticated user's identity. A nil *Session means signed out.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Provider  string    `json:"provider"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the session is past its expiry at now.
// A zero ExpiresAt never expires.
func (s *Session) Expired(now time.Time) bool {
	if s == nil {
		return true
	}
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// DisplayName returns Name, then Email, then "User".
func (s *Session) DisplayName() string {
	switch {
	case s == nil:
		return ""
	case s.Name != "":
		return s.Name
	case s.Email != "":
		return s.Email
	default:
		return "User"
	}
}

// User is a registered account.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
}
