package models

import "gorm.io/gorm"

// User represents a confirmed account holder.
// The row is created only by the confirmation flow, never by registration
// directly. DeletedAt (via gorm.Model) marks a disabled account; the email
// stays reserved while the row exists, soft-deleted or not.
type User struct {
	ID         string `json:"id" gorm:"primaryKey;type:varchar(36)" validate:"omitempty,uuid"`
	Name       string `json:"name" gorm:"type:varchar(100)" validate:"omitempty,max=100"`
	Email      string `json:"email" gorm:"uniqueIndex;type:varchar(255)" validate:"required,email"`
	Password   string `gorm:"type:varchar(255)" validate:"required"` // bcrypt hash; no json tag for security
	gorm.Model        // Embed gorm.Model for CreatedAt, UpdatedAt, DeletedAt
}

// PublicUser is the subset of User safe to return to callers.
type PublicUser struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
}

// Public strips everything but the caller-visible fields.
func (u *User) Public() PublicUser {
	return PublicUser{ID: u.ID, Name: u.Name, Email: u.Email}
}
