package notify

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

// SendgridSender sends transactional email through the SendGrid v3 API.
type SendgridSender struct {
	client *sendgrid.Client
	from   *sgmail.Email
}

// NewSendgridSender returns a sender using the given API key and from
// address.
func NewSendgridSender(apiKey, fromName, fromEmail string) *SendgridSender {
	return &SendgridSender{
		client: sendgrid.NewSendClient(apiKey),
		from:   sgmail.NewEmail(fromName, fromEmail),
	}
}

// SendEmail delivers one plain-text email.
func (s *SendgridSender) SendEmail(_ context.Context, to, subject, body string) error {
	msg := sgmail.NewSingleEmail(s.from, subject, sgmail.NewEmail("", to), body, body)

	resp, err := s.client.Send(msg)
	if err != nil {
		return fmt.Errorf("sendgrid send to %s: %w", to, err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid send to %s: status %d", to, resp.StatusCode)
	}
	return nil
}
