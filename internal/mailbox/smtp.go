package mailbox

import (
	"context"
	"fmt"
	"time"

	gomail "github.com/wneessen/go-mail"

	"github.com/tbourn/go-habit-mail/internal/config"
)

// Sender delivers plain-text mail through the mailbox's SMTP server.
type Sender struct {
	Config  config.MailboxConfig
	Timeout time.Duration
}

// NewSender returns a Sender for mc.
func NewSender(mc config.MailboxConfig) *Sender {
	return &Sender{Config: mc, Timeout: 30 * time.Second}
}

// Send replies to a message. When inReplyTo is set the reply carries
// In-Reply-To and References so mail clients thread it.
func (s *Sender) Send(ctx context.Context, to, subject, body, inReplyTo string) error {
	m, err := s.message(to, subject, body)
	if err != nil {
		return err
	}
	if inReplyTo != "" {
		m.SetGenHeader(gomail.HeaderInReplyTo, inReplyTo)
		m.SetGenHeader(gomail.HeaderReferences, inReplyTo)
	}
	return s.deliver(ctx, m)
}

// SendFresh sends a message that starts a new thread.
func (s *Sender) SendFresh(ctx context.Context, to, subject, body string) error {
	m, err := s.message(to, subject, body)
	if err != nil {
		return err
	}
	return s.deliver(ctx, m)
}

func (s *Sender) message(to, subject, body string) (*gomail.Msg, error) {
	m := gomail.NewMsg()
	if err := m.From(s.Config.Email); err != nil {
		return nil, fmt.Errorf("smtp from: %w", err)
	}
	if err := m.To(to); err != nil {
		return nil, fmt.Errorf("smtp to %q: %w", to, err)
	}
	m.Subject(subject)
	m.SetBodyString(gomail.TypeTextPlain, body)
	return m, nil
}

func (s *Sender) client() (*gomail.Client, error) {
	ep := s.Config.SMTP
	opts := []gomail.Option{
		gomail.WithPort(ep.Port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(s.Config.Email),
		gomail.WithPassword(s.Config.Password),
		gomail.WithTimeout(s.Timeout),
	}
	if ep.SSL {
		opts = append(opts, gomail.WithSSL())
	} else {
		opts = append(opts, gomail.WithTLSPortPolicy(gomail.TLSMandatory))
	}
	return gomail.NewClient(ep.Host, opts...)
}

func (s *Sender) deliver(ctx context.Context, m *gomail.Msg) error {
	c, err := s.client()
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	if err := c.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}
