// Package mailer delivers outbound email.
package mailer

import (
	"context"
	"log/slog"
	"time"

	mg "github.com/mailgun/mailgun-go/v4"
)

// Sender delivers one message. html may be empty.
type Sender interface {
	Send(ctx context.Context, to, subject, text, html string) error
}

// Mailgun sends through the Mailgun HTTP API.
type Mailgun struct {
	client  *mg.MailgunImpl
	sender  string
	timeout time.Duration
}

// NewMailgun builds a Mailgun sender for domain.
func NewMailgun(domain, apiKey, sender string) *Mailgun {
	return &Mailgun{client: mg.NewMailgun(domain, apiKey), sender: sender, timeout: 10 * time.Second}
}

// Send sends an email via Mailgun.
func (m *Mailgun) Send(ctx context.Context, to, subject, text, html string) error {
	msg := m.client.NewMessage(m.sender, subject, text, to)
	if html != "" {
		msg.SetHtml(html)
	}
	c, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	_, _, err := m.client.Send(c, msg)
	return err
}

// Log writes messages to the logger instead of sending them. Used when no
// provider is configured.
type Log struct {
	Logger *slog.Logger
}

// Send logs the message envelope.
func (l Log) Send(ctx context.Context, to, subject, text, html string) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "email (not sent, mailer disabled)",
		slog.String("to", to),
		slog.String("subject", subject),
		slog.Int("text_bytes", len(text)),
		slog.Int("html_bytes", len(html)))
	return nil
}

var (
	_ Sender = (*Mailgun)(nil)
	_ Sender = Log{}
)
