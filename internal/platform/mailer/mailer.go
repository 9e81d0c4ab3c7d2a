// Package mailer sends transactional email through an SMTP relay.
package mailer

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"sync"

	"github.com/domodwyer/mailyak/v3"
)

// ErrInvalidMessage marks messages that can never be delivered.
var ErrInvalidMessage = errors.New("mailer: invalid message")

// Attachment is a file sent along with a message.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Message is a single outbound email.
type Message struct {
	To          []string
	ReplyTo     string
	Subject     string
	HTML        string
	Text        string
	Attachments []Attachment
}

// Validate reports structural problems with the message.
func (m Message) Validate() error {
	if len(m.To) == 0 {
		return fmt.Errorf("%w: recipient required", ErrInvalidMessage)
	}
	for _, to := range m.To {
		if !strings.Contains(to, "@") {
			return fmt.Errorf("%w: bad recipient %q", ErrInvalidMessage, to)
		}
	}
	if strings.TrimSpace(m.Subject) == "" {
		return fmt.Errorf("%w: subject required", ErrInvalidMessage)
	}
	if m.HTML == "" && m.Text == "" {
		return fmt.Errorf("%w: body required", ErrInvalidMessage)
	}
	return nil
}

// Sender delivers messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Config describes the SMTP relay.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
	// TLSMode is none, starttls or tls. STARTTLS is negotiated whenever the
	// server offers it, so none and starttls only differ in intent.
	TLSMode string
}

// SMTP sends mail with mailyak.
type SMTP struct {
	cfg Config
}

// NewSMTP returns an SMTP sender.
func NewSMTP(cfg Config) *SMTP {
	return &SMTP{cfg: cfg}
}

func (s *SMTP) addr() string {
	return net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
}

func (s *SMTP) client() (*mailyak.MailYak, error) {
	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}
	if strings.EqualFold(s.cfg.TLSMode, "tls") {
		return mailyak.NewWithTLS(s.addr(), auth, &tls.Config{ServerName: s.cfg.Host, MinVersion: tls.VersionTLS12})
	}
	return mailyak.New(s.addr(), auth), nil
}

// Send validates and delivers msg. Context cancellation is checked before the
// SMTP exchange starts.
func (s *SMTP) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	mail, err := s.client()
	if err != nil {
		return fmt.Errorf("mailer: client: %w", err)
	}
	mail.From(s.cfg.From)
	if s.cfg.FromName != "" {
		mail.FromName(s.cfg.FromName)
	}
	mail.To(msg.To...)
	if msg.ReplyTo != "" {
		mail.ReplyTo(msg.ReplyTo)
	}
	mail.Subject(msg.Subject)
	if msg.HTML != "" {
		mail.HTML().Set(msg.HTML)
	}
	if msg.Text != "" {
		mail.Plain().Set(msg.Text)
	}
	for _, att := range msg.Attachments {
		if att.ContentType != "" {
			mail.AttachWithMimeType(att.Filename, bytes.NewReader(att.Data), att.ContentType)
		} else {
			mail.Attach(att.Filename, bytes.NewReader(att.Data))
		}
	}
	if err := mail.Send(); err != nil {
		return fmt.Errorf("mailer: send via %s: %w", s.addr(), err)
	}
	return nil
}

// Memory records messages instead of sending them. Used in test mode.
type Memory struct {
	mu   sync.Mutex
	sent []Message
	Err  error
}

func (m *Memory) Send(_ context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.sent = append(m.sent, msg)
	return nil
}

// Sent returns a copy of the recorded messages.
func (m *Memory) Sent() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Message, len(m.sent))
	copy(out, m.sent)
	return out
}
