// Package mailer sends transactional mail for the application.
package mailer

import (
	"fmt"
	"net/smtp"

	"ripple/internal/config"
)

// Mailer delivers outbound mail. Implementations must be safe for concurrent
// use.
type Mailer interface {
	SendPasswordReset(to, resetURL string) error
}

// SMTPMailer sends mail through a plain SMTP relay.
type SMTPMailer struct {
	host     string
	port     string
	user     string
	password string
	from     string
}

func NewSMTPMailer(cfg *config.Config) *SMTPMailer {
	return &SMTPMailer{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		user:     cfg.SMTPUser,
		password: cfg.SMTPPassword,
		from:     cfg.SMTPUser,
	}
}

func (m *SMTPMailer) SendPasswordReset(to, resetURL string) error {
	if m.host == "" {
		return fmt.Errorf("smtp is not configured")
	}

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: Reset your password\r\n\r\n"+
		"Someone requested a password reset for your account.\r\n\r\n"+
		"Open this link within the next hour to choose a new password:\r\n%s\r\n\r\n"+
		"If this wasn't you, ignore this message.\r\n", m.from, to, resetURL)

	var auth smtp.Auth
	if m.user != "" {
		auth = smtp.PlainAuth("", m.user, m.password, m.host)
	}
	return smtp.SendMail(m.host+":"+m.port, auth, m.from, []string{to}, []byte(msg))
}
