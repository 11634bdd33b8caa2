// Package mailer delivers registration confirmation codes. Delivery failure
// is fatal to the registration attempt; nothing here retries.
package mailer

// Mailer sends a confirmation code to a recipient address.
type Mailer interface {
	SendConfirmationCode(to, code string) error
}
