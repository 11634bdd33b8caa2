package mailer

import "log"

// LogMailer writes codes to the process log instead of sending mail.
// Used for local development when SMTP is disabled.
type LogMailer struct{}

// NewLogMailer creates a new LogMailer.
func NewLogMailer() *LogMailer {
	return &LogMailer{}
}

// SendConfirmationCode logs the code and reports success.
func (m *LogMailer) SendConfirmationCode(to, code string) error {
	log.Printf("SMTP disabled; confirmation code for %s: %s", to, code)
	return nil
}
