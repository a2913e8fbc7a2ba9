package services

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/wneessen/go-mail"
)

// Email is a single HTML message.
type Email struct {
	To      []string
	Subject string
	HTML    string
}

// Mailer delivers email.
type Mailer interface {
	Send(ctx context.Context, email Email) error
}

// SMTPSettings configures SMTPMailer.
type SMTPSettings struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPMailer sends mail through an authenticated SMTP relay.
type SMTPMailer struct {
	settings SMTPSettings
}

// NewSMTPMailer constructs an SMTPMailer.
func NewSMTPMailer(settings SMTPSettings) *SMTPMailer {
	if settings.From == "" {
		settings.From = settings.Username
	}
	return &SMTPMailer{settings: settings}
}

func (m *SMTPMailer) Send(ctx context.Context, email Email) error {
	if len(email.To) == 0 {
		return nil
	}

	msg := mail.NewMsg()
	if err := msg.From(m.settings.From); err != nil {
		return fmt.Errorf("from address: %w", err)
	}
	if err := msg.To(email.To...); err != nil {
		return fmt.Errorf("to address: %w", err)
	}
	msg.Subject(email.Subject)
	msg.SetBodyString(mail.TypeTextHTML, email.HTML)

	opts := []mail.Option{
		mail.WithPort(m.settings.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(m.settings.Username),
		mail.WithPassword(m.settings.Password),
	}
	if m.settings.Port == 465 {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	}

	client, err := mail.NewClient(m.settings.Host, opts...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send %q: %w", email.Subject, err)
	}

	log.Printf("[Mail] sent %q to %s", email.Subject, strings.Join(email.To, ", "))
	return nil
}

// LogMailer only logs outgoing mail. It is used when SMTP is not configured.
type LogMailer struct{}

func (LogMailer) Send(_ context.Context, email Email) error {
	log.Printf("[Mail] SMTP not configured, dropping %q to %s", email.Subject, strings.Join(email.To, ", "))
	return nil
}
