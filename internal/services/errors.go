package services

import "errors"

// Expected failure modes of the auth workflow. Handlers translate these
// into status codes; anything not listed here is an unexpected server
// error.
var (
	// ErrEmailTaken: a user row (disabled ones included) already owns the
	// email, at registration or discovered during confirmation.
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidCode: no stored code matches the email/code pair. Covers
	// "wrong code" and "never registered" alike, so callers cannot probe
	// which emails exist.
	ErrInvalidCode = errors.New("invalid confirmation code")
	// ErrCodeExpired: the code aged past its window and has been removed;
	// the caller must register again.
	ErrCodeExpired = errors.New("confirmation code expired")
	// ErrPendingNotFound: no pending registration for the email, typically
	// after a process restart.
	ErrPendingNotFound = errors.New("pending registration not found")
	// ErrEmailDelivery: the confirmation email could not be sent; the
	// registration attempt has been rolled back.
	ErrEmailDelivery = errors.New("failed to send confirmation email")
	// ErrInvalidCredentials: unknown email or wrong password, deliberately
	// indistinguishable.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountDisabled: the account exists but is soft-deleted.
	ErrAccountDisabled = errors.New("account disabled")
	// ErrInvalidSession: the bearer token resolves to no live session.
	ErrInvalidSession = errors.New("invalid or expired session")
	// ErrStoreUnavailable: the durable store could not be reached.
	ErrStoreUnavailable = errors.New("store unavailable")
)
