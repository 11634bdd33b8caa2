package repositories

import "vestra/internal/models"

// PendingStore holds registrations that are waiting on email confirmation,
// keyed by normalized email. Implementations are injected so tests never
// share state through a process-wide map.
type PendingStore interface {
	Put(pending models.PendingRegistration)
	Get(email string) (*models.PendingRegistration, bool)
	Delete(email string)
}
