package mail

import (
	"fmt"

	gomail "gopkg.in/gomail.v2"

	"libris/pkg/logger"
)

// Mailer delivers one message to a batch of recipients over SMTP. It does
// no retrying; a failed dial or send surfaces to the caller as-is.
type Mailer struct {
	dialer  *gomail.Dialer
	from    string
	subject string
	log     *logger.Logger
}

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Subject  string
}

func NewMailer(cfg Config, log *logger.Logger) *Mailer {
	return &Mailer{
		dialer:  gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:    cfg.From,
		subject: cfg.Subject,
		log:     log,
	}
}

func (m *Mailer) Send(body string, recipients []string) error {
	if len(recipients) == 0 {
		return fmt.Errorf("no recipients")
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", recipients...)
	msg.SetHeader("Subject", m.subject)
	msg.SetBody("text/plain", body)

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("failed to send mail: %w", err)
	}

	m.log.Info("Mail sent", "recipients", len(recipients))
	return nil
}
