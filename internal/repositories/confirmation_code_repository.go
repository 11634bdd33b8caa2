package repositories

import "vestra/internal/models"

// ConfirmationCodeRepository defines the interface for confirmation-code
// data access and for promoting a pending registration into a user row.
type ConfirmationCodeRepository interface {
	// Replace removes every code row for the email and inserts the new
	// one, atomically, so a re-registration invalidates earlier codes.
	Replace(email, code string) (*models.ConfirmationCode, error)
	// FindLatest returns the newest row matching the email and the exact
	// code string, or ErrNotFound.
	FindLatest(email, code string) (*models.ConfirmationCode, error)
	Delete(id string) error
	DeleteAllForEmail(email string) error
	// PromotePending creates the user and deletes the consumed code row in
	// one transaction. The email unique index is the correctness mechanism
	// for the confirm race: a violation comes back as ErrDuplicateEmail and
	// nothing is committed.
	PromotePending(code *models.ConfirmationCode, user *models.User) error
}
