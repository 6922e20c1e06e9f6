// Package queue is the durable processing queue for inbound email.
//
// Rows live in the inbound_emails table and move through
// new -> processing -> replied | failed. Failed rows become eligible again
// after a linear backoff of retry_count+1 minutes measured from the last
// attempt, until retry_count reaches MaxRetries; after that they are
// dead-lettered and only visible in Stats.
//
// The queue keeps every row forever: the message id column is also the dedup
// ledger for the mailbox fetcher and the inbound webhook.
package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-habit-mail/internal/domain"
	"github.com/tbourn/go-habit-mail/internal/repo"
)

// DefaultMaxRetries is the number of failed attempts after which an item is
// dead-lettered.
const DefaultMaxRetries = 3

// StatusDeadLetter is the reported status of failed items that exhausted
// their retries. It is never stored.
const StatusDeadLetter = "dead_letter"

var (
	// ErrNotClaimable is returned by MarkProcessing when the item is no longer
	// new or retryable, typically because another consumer claimed it.
	ErrNotClaimable = errors.New("queue item not claimable")
	// ErrNotFound is returned for unknown item ids.
	ErrNotFound = repo.ErrNotFound
)

// Email is a message to enqueue.
type Email struct {
	MessageID  string
	From       string
	FromName   string
	Subject    string
	Body       string
	ReceivedAt time.Time
}

// NormalizeMessageID trims id and wraps it in angle brackets, the form
// stored in the dedup ledger.
func NormalizeMessageID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return ""
	}
	return "<" + strings.TrimSuffix(strings.TrimPrefix(id, "<"), ">") + ">"
}

// Item is a queued email.
type Item = domain.InboundEmail

// Stats counts items per effective status.
type Stats struct {
	New        int64 `json:"new"`
	Processing int64 `json:"processing"`
	Failed     int64 `json:"failed"`
	Replied    int64 `json:"replied"`
	DeadLetter int64 `json:"dead_letter"`
}

// Queue operates on DB. Now is the clock used for backoff and timestamps.
type Queue struct {
	DB         *gorm.DB
	MaxRetries int
	Now        func() time.Time
}

// New returns a Queue with the default retry ceiling and the wall clock.
func New(db *gorm.DB) *Queue {
	return &Queue{DB: db, MaxRetries: DefaultMaxRetries, Now: time.Now}
}

func (q *Queue) maxRetries() int {
	if q.MaxRetries <= 0 {
		return DefaultMaxRetries
	}
	return q.MaxRetries
}

func (q *Queue) now() time.Time {
	if q.Now == nil {
		return time.Now().UTC()
	}
	return q.Now().UTC()
}

// Enqueue stores e as a new item. It reports false without error when the
// message id was already seen.
func (q *Queue) Enqueue(ctx context.Context, e Email) (bool, error) {
	if strings.TrimSpace(e.MessageID) == "" {
		return false, fmt.Errorf("enqueue: empty message id")
	}
	received := e.ReceivedAt
	if received.IsZero() {
		received = q.now()
	}
	row := &domain.InboundEmail{
		ID:         uuid.NewString(),
		MessageID:  e.MessageID,
		FromEmail:  strings.ToLower(strings.TrimSpace(e.From)),
		Subject:    e.Subject,
		Body:       e.Body,
		Status:     domain.EmailStatusNew,
		ReceivedAt: received.UTC(),
	}
	if e.FromName != "" {
		name := e.FromName
		row.FromName = &name
	}
	err := repo.InsertInbound(ctx, q.DB, row)
	switch {
	case errors.Is(err, repo.ErrDuplicate):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("enqueue %s: %w", e.MessageID, err)
	}
	log.Debug().Str("component", "queue").Str("message_id", e.MessageID).Str("item.id", row.ID).Msg("enqueued")
	return true, nil
}

// Seen reports whether messageID is already in the queue.
func (q *Queue) Seen(ctx context.Context, messageID string) (bool, error) {
	return repo.InboundExists(ctx, q.DB, messageID)
}

// Get returns an item by id.
func (q *Queue) Get(ctx context.Context, id string) (*Item, error) {
	return repo.GetInbound(ctx, q.DB, id)
}

// List returns a page of items, newest first, filtered by effective status
// when status is non-empty, with the total matching count.
func (q *Queue) List(ctx context.Context, status string, page, pageSize int) ([]Item, int64, error) {
	if page < 1 {
		page = 1
	}
	items, total, err := repo.ListInboundPage(ctx, q.DB, status, q.maxRetries(), (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("queue list: %w", err)
	}
	return items, total, nil
}

// RecoverInterrupted returns items left in processing by a crashed run to new
// and reports how many were recovered. Call it once at startup, before any
// consumer runs.
func (q *Queue) RecoverInterrupted(ctx context.Context) (int64, error) {
	n, err := repo.ResetInboundStatus(ctx, q.DB, domain.EmailStatusProcessing, domain.EmailStatusNew)
	if err != nil {
		return 0, fmt.Errorf("recover interrupted: %w", err)
	}
	if n > 0 {
		log.Info().Str("component", "queue").Int64("count", n).Msg("recovered interrupted items")
	}
	return n, nil
}

// Dequeue returns up to limit items ready to process, oldest received first:
// every new item, plus failed items below the retry ceiling whose backoff has
// elapsed. It does not claim them; see MarkProcessing.
func (q *Queue) Dequeue(ctx context.Context, limit int) ([]Item, error) {
	now := q.now()
	cutoffs := make([]time.Time, q.maxRetries())
	for k := range cutoffs {
		cutoffs[k] = now.Add(-Backoff(k))
	}
	rows, err := repo.InboundCandidates(ctx, q.DB, limit, cutoffs)
	if err != nil {
		return nil, fmt.Errorf("dequeue: %w", err)
	}
	return rows, nil
}

// Backoff returns the wait before retrying an item whose stored retry count
// is retryCount: retryCount+1 minutes.
func Backoff(retryCount int) time.Duration {
	if retryCount < 0 {
		retryCount = 0
	}
	return time.Duration(retryCount+1) * time.Minute
}

// MarkProcessing claims id for this consumer.
func (q *Queue) MarkProcessing(ctx context.Context, id string) error {
	ok, err := repo.ClaimInbound(ctx, q.DB, id, q.maxRetries())
	if err != nil {
		return fmt.Errorf("claim %s: %w", id, err)
	}
	if !ok {
		return ErrNotClaimable
	}
	return nil
}

// MarkReplied finishes id successfully.
func (q *Queue) MarkReplied(ctx context.Context, id string) error {
	return repo.MarkInboundReplied(ctx, q.DB, id, q.now())
}

// MarkFailed records cause on id and counts the attempt. The item is retried
// after its backoff or dead-lettered once it reaches MaxRetries.
func (q *Queue) MarkFailed(ctx context.Context, id string, cause error) error {
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	if err := repo.MarkInboundFailed(ctx, q.DB, id, msg, q.now()); err != nil {
		return err
	}
	if it, err := repo.GetInbound(ctx, q.DB, id); err == nil && it.RetryCount >= q.maxRetries() {
		log.Warn().Str("component", "queue").Str("item.id", id).Int("retries", it.RetryCount).Str("error", msg).Msg("dead-lettered")
	}
	return nil
}

// Stats returns item counts per effective status.
func (q *Queue) Stats(ctx context.Context) (Stats, error) {
	rows, err := repo.CountInboundByStatus(ctx, q.DB, q.maxRetries())
	if err != nil {
		return Stats{}, fmt.Errorf("queue stats: %w", err)
	}
	var s Stats
	for _, r := range rows {
		switch r.Status {
		case domain.EmailStatusNew:
			s.New = r.Count
		case domain.EmailStatusProcessing:
			s.Processing = r.Count
		case domain.EmailStatusFailed:
			s.Failed = r.Count
		case domain.EmailStatusReplied:
			s.Replied = r.Count
		case StatusDeadLetter:
			s.DeadLetter = r.Count
		}
	}
	return s, nil
}
