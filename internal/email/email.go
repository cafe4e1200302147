// Package email provides campaign email delivery.
//
// This package defines a Sender interface with an SMTP implementation that
// works with Mailhog in development and any authenticated SMTP relay in
// production.
package email

import "context"

// Sender defines the interface for delivering campaign emails.
type Sender interface {
	// Send delivers a single rendered message.
	Send(ctx context.Context, msg Message) error
}

// Message represents a single outbound email.
type Message struct {
	To        string // Recipient email address
	FromName  string // Sender display name
	FromEmail string // Sender address
	Subject   string // Subject line
	HTMLBody  string // HTML content
	TextBody  string // Plain text fallback
}

// SMTPConfig holds SMTP server configuration.
type SMTPConfig struct {
	Host     string // SMTP server hostname (e.g., "localhost" for Mailhog)
	Port     int    // SMTP server port (e.g., 1025 for Mailhog)
	Username string // Authentication username (empty for Mailhog)
	Password string // Authentication password (empty for Mailhog)
	From     string // Fallback sender address
	FromName string // Fallback sender display name
}
