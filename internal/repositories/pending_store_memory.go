package repositories

import (
	"sync"

	"vestra/internal/models"
)

// MemoryPendingStore is an in-memory implementation of PendingStore.
// Entries do not survive a restart; the workflow treats that as "register
// again". The mutex covers the check/insert/delete sequences that the
// confirmation path runs concurrently.
type MemoryPendingStore struct {
	pending map[string]models.PendingRegistration
	mu      sync.RWMutex
}

// NewMemoryPendingStore creates a new instance of MemoryPendingStore.
func NewMemoryPendingStore() *MemoryPendingStore {
	return &MemoryPendingStore{
		pending: make(map[string]models.PendingRegistration),
	}
}

// Put stores a pending registration, replacing any earlier one for the
// same email.
func (s *MemoryPendingStore) Put(pending models.PendingRegistration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending[pending.Email] = pending
}

// Get returns the pending registration for the email, if any.
func (s *MemoryPendingStore) Get(email string) (*models.PendingRegistration, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pending, ok := s.pending[email]
	if !ok {
		return nil, false
	}
	return &pending, true
}

// Delete removes the pending registration for the email, if present.
func (s *MemoryPendingStore) Delete(email string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.pending, email)
}
