package email

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
)

// SMTPSender sends emails via SMTP.
type SMTPSender struct {
	config SMTPConfig
	logger *slog.Logger
}

// NewSMTPSender creates an SMTP-based sender.
func NewSMTPSender(config SMTPConfig, logger *slog.Logger) *SMTPSender {
	return &SMTPSender{
		config: config,
		logger: logger,
	}
}

// Send delivers a single message.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if msg.FromEmail == "" {
		msg.FromEmail = s.config.From
	}
	if msg.FromName == "" {
		msg.FromName = s.config.FromName
	}

	body := s.buildMessage(msg)
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	// Mailhog takes unauthenticated connections.
	var auth smtp.Auth
	if s.config.Username != "" && s.config.Password != "" {
		auth = smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.Host)
	}

	if err := smtp.SendMail(addr, auth, msg.FromEmail, []string{msg.To}, body); err != nil {
		s.logger.Error("failed to send email",
			"to", msg.To,
			"subject", msg.Subject,
			"error", err,
		)
		return fmt.Errorf("send email: %w", err)
	}

	s.logger.Debug("email sent", "to", msg.To, "subject", msg.Subject)
	return nil
}

// buildMessage constructs the raw multipart message with headers.
func (s *SMTPSender) buildMessage(msg Message) []byte {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("From: %s <%s>\r\n", msg.FromName, msg.FromEmail))
	buf.WriteString(fmt.Sprintf("To: %s\r\n", msg.To))
	buf.WriteString(fmt.Sprintf("Subject: %s\r\n", msg.Subject))
	buf.WriteString("MIME-Version: 1.0\r\n")

	boundary := "===============MAILWARD_BOUNDARY==============="
	buf.WriteString(fmt.Sprintf("Content-Type: multipart/alternative; boundary=\"%s\"\r\n", boundary))
	buf.WriteString("\r\n")

	buf.WriteString(fmt.Sprintf("--%s\r\n", boundary))
	buf.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	buf.WriteString("Content-Transfer-Encoding: quoted-printable\r\n")
	buf.WriteString("\r\n")
	buf.WriteString(msg.TextBody)
	buf.WriteString("\r\n")

	buf.WriteString(fmt.Sprintf("--%s\r\n", boundary))
	buf.WriteString("Content-Type: text/html; charset=utf-8\r\n")
	buf.WriteString("Content-Transfer-Encoding: quoted-printable\r\n")
	buf.WriteString("\r\n")
	buf.WriteString(msg.HTMLBody)
	buf.WriteString("\r\n")

	buf.WriteString(fmt.Sprintf("--%s--\r\n", boundary))

	return buf.Bytes()
}
