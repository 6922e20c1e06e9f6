package mailbox

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-habit-mail/internal/config"
	"github.com/tbourn/go-habit-mail/internal/queue"
)

// Fetcher reads the INBOX over IMAP. The mailbox is opened read-only and
// bodies are fetched with PEEK, so server-side flags are left alone; the
// queue is the record of what was handled.
type Fetcher struct {
	Config  config.MailboxConfig
	Timeout time.Duration
}

// NewFetcher returns a Fetcher for mc.
func NewFetcher(mc config.MailboxConfig) *Fetcher {
	return &Fetcher{Config: mc, Timeout: 30 * time.Second}
}

func (f *Fetcher) dial() (*client.Client, error) {
	ep := f.Config.IMAP
	addr := net.JoinHostPort(ep.Host, strconv.Itoa(ep.Port))
	dialer := &net.Dialer{Timeout: f.Timeout}
	var (
		c   *client.Client
		err error
	)
	if ep.SSL {
		c, err = client.DialWithDialerTLS(dialer, addr, &tls.Config{ServerName: ep.Host})
	} else {
		c, err = client.DialWithDialer(dialer, addr)
	}
	if err != nil {
		return nil, fmt.Errorf("imap dial %s: %w", addr, err)
	}
	c.Timeout = f.Timeout
	if err := c.Login(f.Config.Email, f.Config.Password); err != nil {
		_ = c.Logout()
		return nil, fmt.Errorf("imap login: %w", err)
	}
	return c, nil
}

// Ping opens and closes an authenticated session.
func (f *Fetcher) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c, err := f.dial()
	if err != nil {
		return err
	}
	return c.Logout()
}

// Fetch returns every INBOX message whose id seen does not know. Messages
// without a sender or text are skipped.
func (f *Fetcher) Fetch(ctx context.Context, seen func(context.Context, string) (bool, error)) ([]queue.Email, error) {
	c, err := f.dial()
	if err != nil {
		return nil, err
	}
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = c.Terminate()
		case <-stop:
		}
	}()
	defer func() { _ = c.Logout() }()

	mbox, err := c.Select("INBOX", true)
	if err != nil {
		return nil, fmt.Errorf("imap select: %w", err)
	}
	if mbox.Messages == 0 {
		return nil, nil
	}

	all := new(imap.SeqSet)
	all.AddRange(1, mbox.Messages)
	envelopes, err := collect(func(ch chan *imap.Message) error {
		return c.Fetch(all, []imap.FetchItem{imap.FetchEnvelope, imap.FetchUid}, ch)
	})
	if err != nil {
		return nil, fmt.Errorf("imap fetch envelopes: %w", err)
	}

	ids := make(map[uint32]string)
	unseen := new(imap.SeqSet)
	for _, m := range envelopes {
		id := envelopeID(m, mbox.UidValidity, f.Config.IMAP.Host)
		known, err := seen(ctx, id)
		if err != nil {
			return nil, err
		}
		if known {
			continue
		}
		ids[m.Uid] = id
		unseen.AddNum(m.Uid)
	}
	if unseen.Empty() {
		return nil, nil
	}

	section := &imap.BodySectionName{Peek: true}
	bodies, err := collect(func(ch chan *imap.Message) error {
		return c.UidFetch(unseen, []imap.FetchItem{section.FetchItem(), imap.FetchUid}, ch)
	})
	if err != nil {
		return nil, fmt.Errorf("imap fetch bodies: %w", err)
	}

	out := make([]queue.Email, 0, len(bodies))
	for _, m := range bodies {
		r := m.GetBody(section)
		if r == nil {
			continue
		}
		e, err := ParseMessage(r, ids[m.Uid])
		if err != nil {
			lvl := log.Warn()
			if errors.Is(err, ErrSkip) {
				lvl = log.Debug()
			}
			lvl.Str("component", "mailbox").Err(err).Uint32("uid", m.Uid).Msg("message not queued")
			continue
		}
		e.MessageID = ids[m.Uid]
		out = append(out, e)
	}
	return out, nil
}

// collect drains a go-imap fetch into a slice.
func collect(fetch func(chan *imap.Message) error) ([]*imap.Message, error) {
	ch := make(chan *imap.Message, 16)
	done := make(chan error, 1)
	go func() { done <- fetch(ch) }()
	var out []*imap.Message
	for m := range ch {
		out = append(out, m)
	}
	return out, <-done
}

// envelopeID is the dedup key of a message: its Message-ID, or a stable
// id built from the UID when the header is missing.
func envelopeID(m *imap.Message, validity uint32, host string) string {
	if m.Envelope != nil && m.Envelope.MessageId != "" {
		return m.Envelope.MessageId
	}
	return fmt.Sprintf("<%d.%d@%s>", m.Uid, validity, host)
}
