package notify

import (
	"context"
	"log"
)

// ConsoleSender logs outbound notifications instead of sending them. Used in
// local development when Twilio/SendGrid credentials are not configured.
type ConsoleSender struct{}

// SendSMS logs the message that would have been texted.
func (ConsoleSender) SendSMS(_ context.Context, to, body string) error {
	log.Printf("notify: [sms -> %s] %s", to, body)
	return nil
}

// SendEmail logs the message that would have been emailed.
func (ConsoleSender) SendEmail(_ context.Context, to, subject, body string) error {
	log.Printf("notify: [email -> %s] %s: %s", to, subject, body)
	return nil
}
