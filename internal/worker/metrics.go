package worker

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-habit-mail/internal/queue"
)

const (
	outcomeReplied = "replied"
	outcomeFailed  = "failed"
	outcomeSkipped = "skipped"
)

var (
	// emailsFetched counts messages newly enqueued by Poll.
	emailsFetched = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "habitmail_emails_fetched_total",
			Help: "Total number of new emails enqueued from the mailbox.",
		},
	)

	// pollErrors counts failed mailbox fetches.
	pollErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "habitmail_poll_errors_total",
			Help: "Total number of failed mailbox polls.",
		},
	)

	// emailsHandled counts queue items by outcome (replied, failed, skipped).
	emailsHandled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "habitmail_emails_handled_total",
			Help: "Total number of queue items handled, by outcome.",
		},
		[]string{"outcome"},
	)

	// pipelineDuration records end-to-end handling time per item, LLM calls
	// and SMTP included.
	pipelineDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "habitmail_pipeline_duration_seconds",
			Help:    "Duration of processing one queued email in seconds.",
			Buckets: []float64{0.05, 0.25, 1, 2.5, 5, 10, 20, 40, 60, 120},
		},
	)
)

func init() {
	prometheus.MustRegister(emailsFetched, pollErrors, emailsHandled, pipelineDuration)
}

// QueueCollector exports queue depth per effective status, read from the
// store at scrape time.
type QueueCollector struct {
	Queue   *queue.Queue
	Timeout time.Duration
	desc    *prometheus.Desc
}

// NewQueueCollector returns a collector for q. Register it once.
func NewQueueCollector(q *queue.Queue) *QueueCollector {
	return &QueueCollector{
		Queue:   q,
		Timeout: 2 * time.Second,
		desc: prometheus.NewDesc(
			"habitmail_queue_items",
			"Number of inbound queue items by effective status.",
			[]string{"status"}, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *QueueCollector) Describe(ch chan<- *prometheus.Desc) { ch <- c.desc }

// Collect implements prometheus.Collector.
func (c *QueueCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), c.Timeout)
	defer cancel()
	s, err := c.Queue.Stats(ctx)
	if err != nil {
		log.Warn().Str("component", "worker").Err(err).Msg("queue stats for metrics")
		return
	}
	emit := func(status string, n int64) {
		ch <- prometheus.MustNewConstMetric(c.desc, prometheus.GaugeValue, float64(n), status)
	}
	emit("new", s.New)
	emit("processing", s.Processing)
	emit("failed", s.Failed)
	emit("replied", s.Replied)
	emit(queue.StatusDeadLetter, s.DeadLetter)
}
