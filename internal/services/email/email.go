// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package email delivers verification codes and magic links.
package email

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"codeberg.org/oliverandrich/studyhub/internal/config"
	"codeberg.org/oliverandrich/studyhub/internal/i18n"
	"codeberg.org/oliverandrich/studyhub/internal/models"
	"github.com/wneessen/go-mail"
)

// Mailer is what the auth services need from an email backend.
type Mailer interface {
	SendCode(ctx context.Context, to, code, purpose string, ttl time.Duration) error
	SendMagicLink(ctx context.Context, to, name, link string, ttl time.Duration) error
}

// Service sends email via SMTP.
type Service struct {
	cfg     *config.SMTPConfig
	deliver func(*mail.Msg) error
}

var _ Mailer = (*Service)(nil)

// Option configures a Service.
type Option func(*Service)

// WithDeliver replaces SMTP delivery, e.g. to capture messages in tests.
func WithDeliver(fn func(*mail.Msg) error) Option {
	return func(s *Service) {
		s.deliver = fn
	}
}

// NewService creates a new email service.
func NewService(cfg *config.SMTPConfig, opts ...Option) (*Service, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("SMTP host is required")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("SMTP from address is required")
	}

	s := &Service{cfg: cfg}
	s.deliver = s.dialAndSend
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// SendCode sends a six digit verification code.
func (s *Service) SendCode(ctx context.Context, to, code, purpose string, ttl time.Duration) error {
	subjectID, bodyID := "email_code_subject", "email_code_body"
	if purpose == models.PurposeReset {
		subjectID, bodyID = "email_reset_subject", "email_reset_body"
	}

	data := map[string]any{"Code": code, "Minutes": int(ttl.Minutes())}
	d := messageData{
		Greeting:  i18n.TData(ctx, "email_greeting", map[string]any{"Name": to}),
		Body:      i18n.TData(ctx, bodyID, data),
		Code:      code,
		Footer:    i18n.T(ctx, "email_ignore"),
		Signature: i18n.T(ctx, "email_signature"),
	}

	return s.send(ctx, to, i18n.T(ctx, subjectID), d)
}

// SendMagicLink sends a one-time sign-in link.
func (s *Service) SendMagicLink(ctx context.Context, to, name, link string, ttl time.Duration) error {
	if name == "" {
		name = to
	}

	d := messageData{
		Greeting:   i18n.TData(ctx, "email_greeting", map[string]any{"Name": name}),
		Body:       i18n.TData(ctx, "email_magic_link_body", map[string]any{"Minutes": int(ttl.Minutes())}),
		Link:       link,
		LinkAction: i18n.T(ctx, "email_magic_link_action"),
		Footer:     i18n.T(ctx, "email_ignore"),
		Signature:  i18n.T(ctx, "email_signature"),
	}

	return s.send(ctx, to, i18n.T(ctx, "email_magic_link_subject"), d)
}

func (s *Service) send(ctx context.Context, to, subject string, d messageData) error {
	msg := mail.NewMsg()

	if s.cfg.FromName != "" {
		if err := msg.FromFormat(s.cfg.FromName, s.cfg.From); err != nil {
			return fmt.Errorf("setting from address: %w", err)
		}
	} else {
		if err := msg.From(s.cfg.From); err != nil {
			return fmt.Errorf("setting from address: %w", err)
		}
	}

	if err := msg.To(to); err != nil {
		return fmt.Errorf("setting to address: %w", err)
	}

	var html bytes.Buffer
	if err := htmlMessage(d).Render(ctx, &html); err != nil {
		return fmt.Errorf("rendering email: %w", err)
	}

	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, d.Text())
	msg.AddAlternativeString(mail.TypeTextHTML, html.String())

	return s.deliver(msg)
}

// dialAndSend sends an email via SMTP using go-mail.
func (s *Service) dialAndSend(msg *mail.Msg) error {
	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
		mail.WithTimeout(10 * time.Second),
	}

	// Configure TLS based on config and port
	if s.cfg.TLS {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
		// Use implicit TLS (SSL) for port 465, STARTTLS for others
		if s.cfg.Port == 465 {
			opts = append(opts, mail.WithSSL())
		}
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	}

	if s.cfg.Username != "" && s.cfg.Password != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
		)
	}

	client, err := mail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("creating mail client: %w", err)
	}

	if err := client.DialAndSend(msg); err != nil {
		return fmt.Errorf("sending email: %w", err)
	}

	return nil
}

// LogMailer writes messages to the log instead of sending them. Used in
// development when SMTP is not configured.
type LogMailer struct{}

var _ Mailer = LogMailer{}

func (LogMailer) SendCode(ctx context.Context, to, code, purpose string, ttl time.Duration) error {
	slog.InfoContext(ctx, "email_not_sent", "kind", "code", "to", to, "purpose", purpose, "code", code, "ttl", ttl)
	return nil
}

func (LogMailer) SendMagicLink(ctx context.Context, to, _, link string, ttl time.Duration) error {
	slog.InfoContext(ctx, "email_not_sent", "kind", "magic_link", "to", to, "link", link, "ttl", ttl)
	return nil
}

// messageData fills both the text and the HTML body.
type messageData struct {
	Greeting   string
	Body       string
	Code       string
	Link       string
	LinkAction string
	Footer     string
	Signature  string
}

// Text renders the plain text alternative.
func (d messageData) Text() string {
	var b bytes.Buffer
	b.WriteString(d.Greeting + "\n\n")
	b.WriteString(d.Body + "\n\n")
	if d.Code != "" {
		b.WriteString("    " + d.Code + "\n\n")
	}
	if d.Link != "" {
		b.WriteString(d.Link + "\n\n")
	}
	b.WriteString(d.Footer + "\n\n")
	b.WriteString(d.Signature + "\n")
	return b.String()
}
