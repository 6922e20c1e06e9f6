package mailbox

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-imap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbourn/go-habit-mail/internal/config"
)

func crlf(s string) string { return strings.ReplaceAll(s, "\n", "\r\n") }

func TestParseMessage_Plain(t *testing.T) {
	raw := crlf(`From: Sam Lee <Sam@Example.com>
To: habits@example.com
Subject: Re: Daily check-in: 1/8/25
Date: Wed, 08 Jan 2025 21:14:00 -0600
Message-ID: <abc123@mail.example.com>
Content-Type: text/plain; charset=utf-8

water 6, skipped yoga

`)
	e, err := ParseMessage(strings.NewReader(raw), "<fallback@x>")
	require.NoError(t, err)
	assert.Equal(t, "<abc123@mail.example.com>", e.MessageID)
	assert.Equal(t, "Sam@Example.com", e.From)
	assert.Equal(t, "Sam Lee", e.FromName)
	assert.Equal(t, "Re: Daily check-in: 1/8/25", e.Subject)
	assert.Equal(t, "water 6, skipped yoga", e.Body)
	assert.Equal(t, time.Date(2025, 1, 9, 3, 14, 0, 0, time.UTC), e.ReceivedAt)
}

func TestParseMessage_MultipartPrefersPlain(t *testing.T) {
	raw := crlf(`From: a@example.com
Subject: today
Content-Type: multipart/alternative; boundary="b1"

--b1
Content-Type: text/html; charset=utf-8

<p>ignored</p>
--b1
Content-Type: text/plain; charset=utf-8

ran 3 miles
--b1--
`)
	e, err := ParseMessage(strings.NewReader(raw), "<fallback@x>")
	require.NoError(t, err)
	assert.Equal(t, "ran 3 miles", e.Body)
	assert.Equal(t, "<fallback@x>", e.MessageID)
}

func TestParseMessage_HTMLOnly(t *testing.T) {
	raw := crlf(`From: a@example.com
Subject:
Content-Type: text/html; charset=utf-8

<div><b>water</b> 4&nbsp;glasses<br>meditated &amp; stretched</div>
`)
	e, err := ParseMessage(strings.NewReader(raw), "<f@x>")
	require.NoError(t, err)
	assert.Equal(t, DefaultSubject, e.Subject)
	assert.Equal(t, "water 4 glasses meditated & stretched", e.Body)
}

func TestParseMessage_Skips(t *testing.T) {
	noFrom := crlf("Subject: x\nContent-Type: text/plain\n\nhello\n")
	_, err := ParseMessage(strings.NewReader(noFrom), "<f@x>")
	assert.True(t, errors.Is(err, ErrSkip))

	empty := crlf("From: a@example.com\nSubject: x\nContent-Type: text/plain\n\n   \n")
	_, err = ParseMessage(strings.NewReader(empty), "<f@x>")
	assert.True(t, errors.Is(err, ErrSkip))
}

func TestStripHTML(t *testing.T) {
	assert.Equal(t, "a b", StripHTML("<p>a</p><p>b</p>"))
	assert.Equal(t, "", StripHTML("<br/>"))
}

func TestEnvelopeID(t *testing.T) {
	m := &imap.Message{Uid: 42, Envelope: &imap.Envelope{MessageId: "<x@y>"}}
	assert.Equal(t, "<x@y>", envelopeID(m, 7, "imap.example.com"))
	m.Envelope.MessageId = ""
	assert.Equal(t, "<42.7@imap.example.com>", envelopeID(m, 7, "imap.example.com"))
}

func TestSender_RejectsBadRecipient(t *testing.T) {
	s := NewSender(config.MailboxConfig{Email: "habits@example.com", SMTP: config.Endpoint{Host: "localhost", Port: 2525}})
	err := s.SendFresh(context.Background(), "not an address", "s", "b")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "smtp to")
}
