// Package notify abstracts the outbound channels the auth flows use for
// verification links, reset links, and login alerts.
package notify

import "context"

// Email is a single outbound email message.
type Email struct {
	To      string
	Subject string
	Plain   string
	HTML    string
}

// Mailer delivers transactional email.
type Mailer interface {
	Send(ctx context.Context, msg Email) error
}

// SMSSender delivers a short text message.
type SMSSender interface {
	Send(ctx context.Context, to, body string) error
}

// NopMailer drops mail on the floor. Used when no provider is configured so
// local development does not need SendGrid credentials.
type NopMailer struct{}

func (NopMailer) Send(context.Context, Email) error { return nil }

// NopSMSSender drops messages. Used when Twilio is not configured.
type NopSMSSender struct{}

func (NopSMSSender) Send(context.Context, string, string) error { return nil }
