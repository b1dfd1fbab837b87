// Package mailer defines the one-shot notification collaborator. Rendering
// and transport live outside the core; the core only supplies the recipient
// and the per-event context. Deliveries are dispatched after the enclosing
// database transaction commits and are advisory: a failure is logged by the
// caller and never fails the request.
package mailer

import "log"

// Mailer delivers the one-shot events the core emits.
type Mailer interface {
	// SendActivation mails the account-activation link to a new account.
	SendActivation(email, name, link string) error
	// SendInvitation tells a user they were added to an organization.
	SendInvitation(email, name, orgName string) error
	// SendPasswordReset mails the password-reset link.
	SendPasswordReset(email, name, link string) error
	// SendPasswordResetDone confirms a completed password reset.
	SendPasswordResetDone(email, name string) error
}

// LogMailer writes every event to the process log. It is the default
// collaborator for development and tests.
type LogMailer struct{}

// NewLogMailer returns the logging mailer.
func NewLogMailer() Mailer {
	return LogMailer{}
}

func (LogMailer) SendActivation(email, name, link string) error {
	log.Printf("mail: activation for %s <%s>: %s", name, email, link)
	return nil
}

func (LogMailer) SendInvitation(email, name, orgName string) error {
	log.Printf("mail: invitation for %s <%s> to organization %q", name, email, orgName)
	return nil
}

func (LogMailer) SendPasswordReset(email, name, link string) error {
	log.Printf("mail: password reset for %s <%s>: %s", name, email, link)
	return nil
}

func (LogMailer) SendPasswordResetDone(email, name string) error {
	log.Printf("mail: password reset confirmed for %s <%s>", name, email)
	return nil
}

// Dispatch runs fn and logs a failure instead of propagating it.
func Dispatch(fn func() error) {
	if err := fn(); err != nil {
		log.Printf("mail: delivery failed: %v", err)
	}
}
