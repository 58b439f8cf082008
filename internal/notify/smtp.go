package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"
)

// SMTPConfig holds SMTP connection parameters.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string // optional, some relays are unauthenticated
	Password string // optional
	From     string
}

// SMTPSender implements Sender over SMTP using go-mail.
type SMTPSender struct {
	config SMTPConfig
}

// NewSMTPSender creates an SMTP-backed sender.
func NewSMTPSender(config SMTPConfig) *SMTPSender {
	return &SMTPSender{config: config}
}

func (s *SMTPSender) Send(ctx context.Context, m *Message) error {
	msg := mail.NewMsg()

	from := m.From
	if from == "" {
		from = s.config.From
	}
	if err := msg.From(from); err != nil {
		return fmt.Errorf("invalid from address: %w", err)
	}
	if err := msg.To(m.To...); err != nil {
		return fmt.Errorf("invalid to address: %w", err)
	}
	msg.Subject(m.Subject)

	if m.HTMLBody != "" && m.TextBody != "" {
		msg.SetBodyString(mail.TypeTextPlain, m.TextBody)
		msg.AddAlternativeString(mail.TypeTextHTML, m.HTMLBody)
	} else if m.HTMLBody != "" {
		msg.SetBodyString(mail.TypeTextHTML, m.HTMLBody)
	} else {
		msg.SetBodyString(mail.TypeTextPlain, m.TextBody)
	}

	client, err := mail.NewClient(s.config.Host, s.clientOptions()...)
	if err != nil {
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

func (s *SMTPSender) clientOptions() []mail.Option {
	opts := []mail.Option{
		mail.WithPort(s.config.Port),
		mail.WithTimeout(30 * time.Second),
	}

	// TLS mode by port: 465 implicit, 587 mandatory STARTTLS, anything
	// else (25, Mailhog's 1025) opportunistic.
	switch s.config.Port {
	case 465:
		opts = append(opts, mail.WithSSL())
	case 587:
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	default:
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}

	if s.config.Username != "" && s.config.Password != "" {
		opts = append(opts,
			mail.WithUsername(s.config.Username),
			mail.WithPassword(s.config.Password),
			mail.WithSMTPAuth(mail.SMTPAuthAutoDiscover),
		)
	}

	return opts
}
