package notify

import (
	"context"

	"gopkg.in/gomail.v2"

	"github.com/servicecenter/api/internal/config"
)

// SMTPSender delivers email notifications over SMTP
type SMTPSender struct {
	dialer *gomail.Dialer
	from   string
}

// NewSMTPSender creates an email sender from SMTP configuration
func NewSMTPSender(cfg config.SMTPConfig) *SMTPSender {
	return &SMTPSender{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

// Send delivers a single plain-text email
func (s *SMTPSender) Send(_ context.Context, recipient, subject, body string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", recipient)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	return s.dialer.DialAndSend(m)
}
