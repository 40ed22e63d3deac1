package mail

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"

	"AssignmentPilot/internal/config"
	"AssignmentPilot/internal/ports"
)

// Notifier delivers plain-text notification mail over SMTP.
type Notifier struct {
	host   string
	port   int
	from   string
	dialer *gomail.Dialer
}

var _ ports.Notifier = (*Notifier)(nil)

// NewNotifier registers SMTP connection details.
func NewNotifier(cfg config.SMTPConfig) *Notifier {
	from := cfg.From
	if from == "" {
		from = cfg.Username
	}
	return &Notifier{
		host:   cfg.Host,
		port:   cfg.Port,
		from:   from,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}
}

// Send delivers one message. Delivery is best effort from the caller's
// perspective; an error here is logged upstream and never fatal.
func (n *Notifier) Send(ctx context.Context, subject, body, recipient string) error {
	if n.host == "" || n.from == "" {
		return fmt.Errorf("smtp notifier misconfigured")
	}
	if recipient == "" {
		return fmt.Errorf("no recipient configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", n.from)
	m.SetHeader("To", recipient)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	if err := n.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}
