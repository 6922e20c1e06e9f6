// Package worker moves inbound email through the processing queue.
//
// Poll asks a Fetcher for messages the queue has not seen and enqueues them.
// Drain takes a batch of ready items, claims each one, runs the pipeline,
// sends the reply and records the outcome. Items in a batch are handled
// sequentially so check-ins for the same user apply in receipt order.
//
// Worker also keeps the process counters reported by /health.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-habit-mail/internal/queue"
	"github.com/tbourn/go-habit-mail/internal/services"
)

// DefaultBatchSize is the number of items handled per Drain.
const DefaultBatchSize = 5

// Fetcher lists mailbox messages whose message id seen reports as unknown.
type Fetcher interface {
	Fetch(ctx context.Context, seen func(context.Context, string) (bool, error)) ([]queue.Email, error)
}

// Sender delivers a reply. inReplyTo threads it under the original message
// when non-empty.
type Sender interface {
	Send(ctx context.Context, to, subject, body, inReplyTo string) error
}

// Processor runs the pipeline for one email.
type Processor interface {
	Process(ctx context.Context, email services.InboundEmail) (*services.Output, error)
}

// Stats are the process counters shown on /health.
type Stats struct {
	StartedAt       time.Time  `json:"started_at"`
	EmailsProcessed int64      `json:"emails_processed"`
	EmailsFailed    int64      `json:"emails_failed"`
	LastPollAt      *time.Time `json:"last_poll_at"`
	LastEmailAt     *time.Time `json:"last_email_at"`
	LastError       string     `json:"last_error,omitempty"`
}

// Worker polls and drains the queue.
type Worker struct {
	Queue     *queue.Queue
	Pipeline  Processor
	Fetcher   Fetcher
	Sender    Sender
	BatchSize int
	Now       func() time.Time

	mu    sync.Mutex
	stats Stats
}

// New returns a Worker. fetcher may be nil when mail arrives only through
// the inbound webhook.
func New(q *queue.Queue, p Processor, fetcher Fetcher, sender Sender, batchSize int) *Worker {
	if batchSize < 1 {
		batchSize = DefaultBatchSize
	}
	w := &Worker{Queue: q, Pipeline: p, Fetcher: fetcher, Sender: sender, BatchSize: batchSize, Now: time.Now}
	w.stats.StartedAt = w.now()
	return w
}

func (w *Worker) now() time.Time {
	if w.Now == nil {
		return time.Now().UTC()
	}
	return w.Now().UTC()
}

// Stats returns a snapshot of the counters.
func (w *Worker) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

// Poll fetches unseen messages and enqueues them. It returns how many were
// new. Fetch failures skip the cycle and are returned.
func (w *Worker) Poll(ctx context.Context) (int, error) {
	now := w.now()
	w.mu.Lock()
	w.stats.LastPollAt = &now
	w.mu.Unlock()

	if w.Fetcher == nil {
		return 0, nil
	}
	emails, err := w.Fetcher.Fetch(ctx, w.Queue.Seen)
	if err != nil {
		pollErrors.Inc()
		w.recordError(fmt.Errorf("poll: %w", err))
		return 0, err
	}

	added := 0
	for _, e := range emails {
		ok, err := w.Queue.Enqueue(ctx, e)
		if err != nil {
			log.Error().Str("component", "worker").Err(err).Str("message_id", e.MessageID).Msg("enqueue failed")
			continue
		}
		if ok {
			added++
		}
	}
	emailsFetched.Add(float64(added))
	if added > 0 {
		log.Info().Str("component", "worker").Int("count", added).Msg("new emails queued")
	}
	return added, nil
}

// Drain handles up to BatchSize ready items and returns how many were
// attempted.
func (w *Worker) Drain(ctx context.Context) (int, error) {
	items, err := w.Queue.Dequeue(ctx, w.BatchSize)
	if err != nil {
		w.recordError(err)
		return 0, err
	}
	n := 0
	for _, it := range items {
		if ctx.Err() != nil {
			break
		}
		if w.handle(ctx, it) {
			n++
		}
	}
	return n, ctx.Err()
}

// handle processes one item and reports whether this worker attempted it.
func (w *Worker) handle(ctx context.Context, it queue.Item) bool {
	logger := log.With().Str("component", "worker").Str("item.id", it.ID).Str("message_id", it.MessageID).Logger()

	if err := w.Queue.MarkProcessing(ctx, it.ID); err != nil {
		if errors.Is(err, queue.ErrNotClaimable) {
			logger.Debug().Msg("item claimed elsewhere")
			emailsHandled.WithLabelValues(outcomeSkipped).Inc()
			return false
		}
		logger.Error().Err(err).Msg("claim failed")
		return false
	}

	start := time.Now()
	err := w.process(ctx, it)
	pipelineDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		logger.Error().Err(err).Int("retry_count", it.RetryCount).Msg("processing failed")
		emailsHandled.WithLabelValues(outcomeFailed).Inc()
		w.recordError(err)
		w.mu.Lock()
		w.stats.EmailsFailed++
		w.mu.Unlock()
		if merr := w.Queue.MarkFailed(context.WithoutCancel(ctx), it.ID, err); merr != nil {
			logger.Error().Err(merr).Msg("mark failed")
		}
		return true
	}

	if err := w.Queue.MarkReplied(context.WithoutCancel(ctx), it.ID); err != nil {
		logger.Error().Err(err).Msg("mark replied")
	}
	emailsHandled.WithLabelValues(outcomeReplied).Inc()
	now := w.now()
	w.mu.Lock()
	w.stats.EmailsProcessed++
	w.stats.LastEmailAt = &now
	w.mu.Unlock()
	return true
}

func (w *Worker) process(ctx context.Context, it queue.Item) error {
	in := services.InboundEmail{
		ID:        it.ID,
		MessageID: it.MessageID,
		From:      it.FromEmail,
		Subject:   it.Subject,
		Body:      it.Body,
	}
	if it.FromName != nil {
		in.FromName = *it.FromName
	}
	out, err := w.Pipeline.Process(ctx, in)
	if err != nil {
		return err
	}
	if !out.ShouldReply {
		return nil
	}
	if w.Sender == nil {
		return errors.New("no sender configured")
	}
	if err := w.Sender.Send(ctx, it.FromEmail, out.Subject, out.Body, it.MessageID); err != nil {
		return fmt.Errorf("send reply: %w", err)
	}
	log.Info().Str("component", "worker").Str("item.id", it.ID).Str("source", out.Source).
		Int("intents", len(out.Intents)).Msg("reply sent")
	return nil
}

func (w *Worker) recordError(err error) {
	w.mu.Lock()
	w.stats.LastError = fmt.Sprintf("%s (%s)", err, w.now().Format(time.RFC3339))
	w.mu.Unlock()
}

// LogSender writes replies to the log instead of sending them. It stands in
// for SMTP when no mailbox is configured.
type LogSender struct{}

// Send logs the reply.
func (LogSender) Send(_ context.Context, to, subject, body, inReplyTo string) error {
	log.Info().Str("component", "worker").Str("to", to).Str("subject", subject).
		Str("in_reply_to", inReplyTo).Str("body", body).Msg("reply (not sent, no mailbox configured)")
	return nil
}

// SendFresh logs a message that starts a new thread, such as a reminder.
func (s LogSender) SendFresh(ctx context.Context, to, subject, body string) error {
	return s.Send(ctx, to, subject, body, "")
}
