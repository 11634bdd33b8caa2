package repositories

import "vestra/internal/models"

// UserRepository defines the interface for user data access.
// Email lookups include soft-deleted rows: a disabled account still owns
// its address and must block re-registration.
type UserRepository interface {
	Create(user *models.User) error
	GetByEmail(email string) (*models.User, error)
	GetByID(id string) (*models.User, error)
}
