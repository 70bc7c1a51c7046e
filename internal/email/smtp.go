// Package email delivers outreach messages over SMTP.
package email

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"outreach_backend/platform/apperr"
	"outreach_backend/platform/config"

	"github.com/google/uuid"
	gomail "github.com/wneessen/go-mail"
)

// Message is one plain-text outbound email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers a message and returns the Message-ID it was sent with
// (without angle brackets).
type Sender interface {
	Send(ctx context.Context, msg Message) (string, error)
}

// SMTPSender implements Sender using a direct SMTP connection via go-mail.
type SMTPSender struct {
	host      string
	port      int
	username  string
	password  string
	fromName  string
	fromEmail string
	timeout   time.Duration
}

// NewSMTPSender creates a new SMTPSender from the SMTP settings.
func NewSMTPSender(cfg config.SMTPConfig) *SMTPSender {
	timeout := cfg.GetSMTPTimeout()
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &SMTPSender{
		host:      cfg.GetSMTPHost(),
		port:      cfg.GetSMTPPort(),
		username:  cfg.GetSMTPUser(),
		password:  cfg.GetSMTPPass(),
		fromName:  cfg.GetFromName(),
		fromEmail: cfg.GetFromEmail(),
		timeout:   timeout,
	}
}

// NewMessageID returns a globally unique id in the sender's mail domain.
func NewMessageID(fromEmail string) string {
	domain := "outreach.local"
	if at := strings.LastIndex(fromEmail, "@"); at >= 0 && at < len(fromEmail)-1 {
		domain = fromEmail[at+1:]
	}
	return fmt.Sprintf("%s@%s", uuid.NewString(), domain)
}

func (s *SMTPSender) Send(ctx context.Context, m Message) (string, error) {
	messageID := NewMessageID(s.fromEmail)

	msg := gomail.NewMsg()
	if err := msg.FromFormat(s.fromName, s.fromEmail); err != nil {
		return "", apperr.Wrap(apperr.KindConfig, "smtp from", err)
	}
	if err := msg.To(m.To); err != nil {
		return "", apperr.Wrap(apperr.KindValidation, "smtp to", err)
	}
	if err := msg.ReplyTo(s.fromEmail); err != nil {
		return "", apperr.Wrap(apperr.KindConfig, "smtp reply-to", err)
	}
	msg.Subject(m.Subject)
	msg.SetMessageIDWithValue(messageID)
	msg.SetBodyString(gomail.TypeTextPlain, m.Body)

	client, err := gomail.NewClient(s.host,
		gomail.WithPort(s.port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(s.username),
		gomail.WithPassword(s.password),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(s.timeout),
		gomail.WithDialContextFunc(func(dctx context.Context, _ string, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(dctx, "tcp4", addr)
		}),
	)
	if err != nil {
		return "", apperr.Wrap(apperr.KindConfig, "smtp client", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return "", apperr.Transient("smtp send", err)
	}

	return messageID, nil
}
