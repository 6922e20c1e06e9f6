// Package mailbox connects the queue to the service mailbox: an IMAP fetcher
// that lists messages not yet queued, and an SMTP sender for replies and
// reminders.
package mailbox

import (
	"errors"
	"fmt"
	"html"
	"io"
	"regexp"
	"strings"
	"time"

	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"github.com/microcosm-cc/bluemonday"

	"github.com/tbourn/go-habit-mail/internal/queue"
)

// DefaultSubject replaces an empty subject.
const DefaultSubject = "(no subject)"

// ErrSkip marks a message that parsed but carries nothing to process: no
// sender address or no text.
var ErrSkip = errors.New("mailbox: message skipped")

var (
	stripPolicy = newStripPolicy()
	spaces      = regexp.MustCompile(`[\s\p{Zs}]+`)
)

func newStripPolicy() *bluemonday.Policy {
	p := bluemonday.StrictPolicy()
	p.AddSpaceWhenStrippingTag(true)
	return p
}

// ParseMessage reads an RFC 5322 message. fallbackID is used when the
// message has no Message-ID header. The body is the first text/plain part,
// or the first text/html part with tags removed.
func ParseMessage(r io.Reader, fallbackID string) (queue.Email, error) {
	var e queue.Email
	mr, err := mail.CreateReader(r)
	if err != nil {
		return e, fmt.Errorf("read message: %w", err)
	}
	defer mr.Close()

	h := mr.Header
	from, err := h.AddressList("From")
	if err != nil || len(from) == 0 || strings.TrimSpace(from[0].Address) == "" {
		return e, fmt.Errorf("%w: no sender", ErrSkip)
	}
	e.From = from[0].Address
	e.FromName = from[0].Name

	if id, err := h.MessageID(); err == nil && id != "" {
		e.MessageID = queue.NormalizeMessageID(id)
	} else {
		e.MessageID = fallbackID
	}
	if e.Subject, err = h.Subject(); err != nil || strings.TrimSpace(e.Subject) == "" {
		e.Subject = DefaultSubject
	}
	if d, err := h.Date(); err == nil && !d.IsZero() {
		e.ReceivedAt = d.UTC()
	} else {
		e.ReceivedAt = time.Now().UTC()
	}

	var plain, rich string
	for {
		p, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// Unknown charsets and broken parts still leave earlier text usable.
			if plain == "" && rich == "" {
				return e, fmt.Errorf("read part: %w", err)
			}
			break
		}
		ih, ok := p.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		ct, _, err := ih.ContentType()
		if err != nil {
			ct = "text/plain"
		}
		switch ct {
		case "text/plain":
			if plain == "" {
				b, err := io.ReadAll(p.Body)
				if err == nil {
					plain = string(b)
				}
			}
		case "text/html":
			if rich == "" {
				b, err := io.ReadAll(p.Body)
				if err == nil {
					rich = string(b)
				}
			}
		}
	}

	e.Body = strings.TrimSpace(plain)
	if e.Body == "" && rich != "" {
		e.Body = StripHTML(rich)
	}
	if e.Body == "" {
		return e, fmt.Errorf("%w: empty body", ErrSkip)
	}
	return e, nil
}

// StripHTML reduces markup to its text with whitespace collapsed.
func StripHTML(s string) string {
	text := stripPolicy.Sanitize(s)
	text = html.UnescapeString(text)
	return strings.TrimSpace(spaces.ReplaceAllString(text, " "))
}
