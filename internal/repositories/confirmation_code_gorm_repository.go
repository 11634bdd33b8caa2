package repositories

import (
	"errors"
	"fmt"

	"vestra/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GORMConfirmationCodeRepository is a GORM implementation of
// ConfirmationCodeRepository.
type GORMConfirmationCodeRepository struct {
	db *gorm.DB
}

// NewGORMConfirmationCodeRepository creates a new instance of
// GORMConfirmationCodeRepository.
func NewGORMConfirmationCodeRepository(db *gorm.DB) *GORMConfirmationCodeRepository {
	return &GORMConfirmationCodeRepository{
		db: db,
	}
}

// Replace deletes any prior code rows for the email and inserts the new
// code inside a single transaction.
func (r *GORMConfirmationCodeRepository) Replace(email, code string) (*models.ConfirmationCode, error) {
	row := &models.ConfirmationCode{
		ID:    uuid.New().String(),
		Email: email,
		Code:  code,
	}
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("email = ?", email).Delete(&models.ConfirmationCode{}).Error; err != nil {
			return err
		}
		return tx.Create(row).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to replace confirmation code for %s: %w", email, err)
	}
	return row, nil
}

// FindLatest returns the most recently created row matching the email and
// exact code string.
func (r *GORMConfirmationCodeRepository) FindLatest(email, code string) (*models.ConfirmationCode, error) {
	var row models.ConfirmationCode
	err := r.db.Where("email = ? AND code = ?", email, code).
		Order("created_at DESC").
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to look up confirmation code for %s: %w", email, err)
	}
	return &row, nil
}

// Delete removes a single code row by ID.
func (r *GORMConfirmationCodeRepository) Delete(id string) error {
	if err := r.db.Delete(&models.ConfirmationCode{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("failed to delete confirmation code %s: %w", id, err)
	}
	return nil
}

// DeleteAllForEmail removes every code row for the email. Used to back out
// of a registration whose confirmation email could not be delivered.
func (r *GORMConfirmationCodeRepository) DeleteAllForEmail(email string) error {
	if err := r.db.Where("email = ?", email).Delete(&models.ConfirmationCode{}).Error; err != nil {
		return fmt.Errorf("failed to delete confirmation codes for %s: %w", email, err)
	}
	return nil
}

// PromotePending creates the user and deletes the consumed code row in one
// transaction. A unique-index clash on the user email rolls the whole thing
// back and is reported as ErrDuplicateEmail.
func (r *GORMConfirmationCodeRepository) PromotePending(code *models.ConfirmationCode, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			return err
		}
		return tx.Delete(&models.ConfirmationCode{}, "id = ?", code.ID).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("failed to promote pending registration for %s: %w", user.Email, err)
	}
	return nil
}
