// Package inbox polls the outreach mailbox for unseen replies.
package inbox

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"outreach_backend/internal/replies"
	"outreach_backend/platform/apperr"
	"outreach_backend/platform/config"
	"outreach_backend/platform/logger"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/jhillyerd/enmime"
)

const mailbox = "INBOX"

// Poller returns inbound messages not seen by an earlier poll.
type Poller interface {
	Poll(ctx context.Context) ([]replies.Inbound, error)
}

// IMAPPoller is a Poller over IMAP with implicit TLS. Fetching a message
// body marks it seen, so each message is returned once.
type IMAPPoller struct {
	host    string
	port    int
	user    string
	pass    string
	timeout time.Duration
	log     *logger.Logger
}

// NewIMAPPoller creates a poller from the IMAP settings.
func NewIMAPPoller(cfg config.IMAPConfig, log *logger.Logger) *IMAPPoller {
	timeout := cfg.GetIMAPTimeout()
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &IMAPPoller{
		host:    cfg.GetIMAPHost(),
		port:    cfg.GetIMAPPort(),
		user:    cfg.GetIMAPUser(),
		pass:    cfg.GetIMAPPass(),
		timeout: timeout,
		log:     log,
	}
}

func (p *IMAPPoller) Poll(ctx context.Context) ([]replies.Inbound, error) {
	addr := net.JoinHostPort(p.host, fmt.Sprint(p.port))
	dialer := &net.Dialer{Timeout: p.timeout}
	c, err := client.DialWithDialerTLS(dialer, addr, &tls.Config{ServerName: p.host})
	if err != nil {
		return nil, apperr.Transient("imap connect failed", err).WithOp("inbox.Poll")
	}
	c.Timeout = p.timeout

	// the client is not context aware; closing the connection unblocks it
	stop := context.AfterFunc(ctx, func() { _ = c.Terminate() })
	defer stop()
	defer func() {
		_ = c.Logout()
	}()

	if err := c.Login(p.user, p.pass); err != nil {
		return nil, apperr.Transient("imap login failed", err).WithOp("inbox.Poll")
	}
	if _, err := c.Select(mailbox, false); err != nil {
		return nil, apperr.Transient("imap select failed", err).WithOp("inbox.Poll")
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	seqNums, err := c.Search(criteria)
	if err != nil {
		return nil, apperr.Transient("imap search failed", err).WithOp("inbox.Poll")
	}
	if len(seqNums) == 0 {
		return []replies.Inbound{}, nil
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(seqNums...)
	section := &imap.BodySectionName{}

	messages := make(chan *imap.Message, 16)
	done := make(chan error, 1)
	go func() {
		done <- c.Fetch(seqset, []imap.FetchItem{section.FetchItem()}, messages)
	}()

	out := make([]replies.Inbound, 0, len(seqNums))
	for msg := range messages {
		body := msg.GetBody(section)
		if body == nil {
			out = append(out, replies.Inbound{Malformed: fmt.Errorf("message %d has no body", msg.SeqNum)})
			continue
		}
		out = append(out, Parse(body))
	}
	if err := <-done; err != nil {
		return out, apperr.Transient("imap fetch failed", err).WithOp("inbox.Poll")
	}

	p.log.Info("imap poll complete", "unseen", len(seqNums), "fetched", len(out))
	return out, nil
}

// Parse reads one RFC 822 message. Parse failures come back as a Malformed
// item instead of an error so the caller can skip it.
func Parse(r io.Reader) replies.Inbound {
	env, err := enmime.ReadEnvelope(r)
	if err != nil {
		return replies.Inbound{Malformed: err}
	}

	from := ""
	if addrs, err := env.AddressList("From"); err == nil && len(addrs) > 0 {
		from = addrs[0].Address
	} else {
		from = strings.TrimSpace(env.GetHeader("From"))
	}
	from = strings.ToLower(strings.TrimSpace(from))
	if from == "" {
		return replies.Inbound{Malformed: fmt.Errorf("message has no sender")}
	}

	return replies.Inbound{
		From:       from,
		Subject:    env.GetHeader("Subject"),
		Body:       strings.TrimSpace(env.Text),
		InReplyTo:  replies.NormalizeMessageID(env.GetHeader("In-Reply-To")),
		References: SplitReferences(env.GetHeader("References")),
	}
}

// SplitReferences splits a References header into bare message ids, in order.
func SplitReferences(header string) []string {
	fields := strings.Fields(strings.ReplaceAll(header, "><", "> <"))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if id := replies.NormalizeMessageID(f); id != "" {
			out = append(out, id)
		}
	}
	return out
}
