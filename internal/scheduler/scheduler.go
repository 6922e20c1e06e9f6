// Package scheduler runs the background jobs on a gocron scheduler: mailbox
// polling, queue draining and the daily reminder. Every job runs in
// singleton mode, so a slow run delays the next one instead of overlapping
// it.
package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog/log"
)

// Worker is the queue side driven by the poll and drain jobs.
type Worker interface {
	Poll(ctx context.Context) (int, error)
	Drain(ctx context.Context) (int, error)
}

// Options selects the jobs to register. A nil Worker or Reminder skips its
// jobs.
type Options struct {
	PollInterval time.Duration
	Worker       Worker
	Reminder     *Reminder
}

// Start registers the jobs and starts the scheduler. Jobs receive ctx; cancel
// it and call Shutdown on the returned scheduler to stop.
func Start(ctx context.Context, opts Options) (gocron.Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	if opts.Worker != nil {
		interval := opts.PollInterval
		if interval <= 0 {
			interval = 30 * time.Second
		}
		if _, err := s.NewJob(
			gocron.DurationJob(interval),
			gocron.NewTask(func() { cycle(ctx, opts.Worker) }),
			gocron.WithName("poll-and-drain"),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
			gocron.WithStartAt(gocron.WithStartImmediately()),
		); err != nil {
			_ = s.Shutdown()
			return nil, err
		}
	}

	if opts.Reminder != nil {
		if _, err := s.NewJob(
			gocron.DurationJob(time.Minute),
			gocron.NewTask(func() {
				if _, err := opts.Reminder.Tick(ctx); err != nil {
					log.Error().Str("component", "scheduler").Err(err).Msg("reminder tick")
				}
			}),
			gocron.WithName("daily-reminder"),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		); err != nil {
			_ = s.Shutdown()
			return nil, err
		}
	}

	s.Start()
	log.Info().Str("component", "scheduler").Int("jobs", len(s.Jobs())).Msg("scheduler started")
	return s, nil
}

// cycle polls the mailbox, then drains the queue until no ready items
// remain. A failed poll still drains what is already queued.
func cycle(ctx context.Context, w Worker) {
	if ctx.Err() != nil {
		return
	}
	if _, err := w.Poll(ctx); err != nil {
		log.Warn().Str("component", "scheduler").Err(err).Msg("poll failed")
	}
	for ctx.Err() == nil {
		n, err := w.Drain(ctx)
		if err != nil {
			if ctx.Err() == nil {
				log.Error().Str("component", "scheduler").Err(err).Msg("drain failed")
			}
			return
		}
		if n == 0 {
			return
		}
	}
}
