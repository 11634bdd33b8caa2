package repositories

import "errors"

// Sentinel errors returned by repository implementations so callers can
// branch with errors.Is instead of matching message text.
var (
	// ErrNotFound means the requested row does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateEmail means a user row already holds the email; the
	// database unique index is the authority behind this error.
	ErrDuplicateEmail = errors.New("email already registered")
)
