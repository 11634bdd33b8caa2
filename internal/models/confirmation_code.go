package models

import "time"

// ConfirmationCode is a one-time 6-digit code mailed to an address during
// registration. Rows are replaced on re-registration and deleted on use or
// on first access after expiry; the newest row by CreatedAt is the one that
// counts if several linger.
type ConfirmationCode struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Email     string    `json:"email" gorm:"index;type:varchar(255)"`
	Code      string    `json:"-" gorm:"type:varchar(6)"`
	CreatedAt time.Time `json:"created_at"`
}
