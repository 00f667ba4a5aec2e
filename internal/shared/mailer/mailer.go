// Package mailer sends outbound email through SendGrid. Fire-and-forget from
// the workflow's point of view: errors are surfaced to the caller, never
// retried here.
package mailer

import (
	"errors"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// Message is one outbound email.
type Message struct {
	To      []string
	CC      []string
	Subject string
	HTML    string
}

// Sender is the outbound email contract.
type Sender interface {
	Send(msg Message) error
}

// SendgridMailer implements Sender over the SendGrid API.
type SendgridMailer struct {
	client      *sendgrid.Client
	fromName    string
	fromAddress string
}

// New creates a mailer. Returns nil (disabled) when no API key is configured.
func New(apiKey, fromName, fromAddress string) *SendgridMailer {
	if apiKey == "" {
		return nil
	}
	return &SendgridMailer{
		client:      sendgrid.NewSendClient(apiKey),
		fromName:    fromName,
		fromAddress: fromAddress,
	}
}

// Send delivers one message.
func (m *SendgridMailer) Send(msg Message) error {
	if len(msg.To) == 0 {
		return errors.New("mailer: no recipients")
	}

	from := mail.NewEmail(m.fromName, m.fromAddress)
	p := mail.NewPersonalization()
	for _, to := range msg.To {
		p.AddTos(mail.NewEmail("", to))
	}
	for _, cc := range msg.CC {
		p.AddCCs(mail.NewEmail("", cc))
	}

	v3 := mail.NewV3Mail()
	v3.SetFrom(from)
	v3.Subject = msg.Subject
	v3.AddPersonalizations(p)
	v3.AddContent(mail.NewContent("text/html", msg.HTML))

	resp, err := m.client.Send(v3)
	if err != nil {
		return fmt.Errorf("mailer: send failed: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("mailer: sendgrid returned %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}
