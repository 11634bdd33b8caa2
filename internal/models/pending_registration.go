package models

// PendingRegistration holds the not-yet-committed account data between a
// successful confirmation email and the confirmation itself. It lives only
// in process memory, keyed by normalized email, and is lost on restart —
// the caller then simply registers again.
type PendingRegistration struct {
	Name     string
	Email    string
	Password string // bcrypt hash, never the plaintext
}
