package models

import "time"

// Session is an opaque bearer credential issued at login. A user may hold
// any number of concurrent sessions; expiry is checked lazily wherever the
// token is presented.
type Session struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID    string    `json:"user_id" gorm:"index;type:varchar(36)"`
	Token     string    `json:"-" gorm:"uniqueIndex;type:varchar(64)"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Expired reports whether the session is past its validity window.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
