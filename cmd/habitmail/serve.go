package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/tbourn/go-habit-mail/internal/config"
	httpapi "github.com/tbourn/go-habit-mail/internal/http"
	"github.com/tbourn/go-habit-mail/internal/mailbox"
	"github.com/tbourn/go-habit-mail/internal/observability"
	"github.com/tbourn/go-habit-mail/internal/parser"
	"github.com/tbourn/go-habit-mail/internal/queue"
	"github.com/tbourn/go-habit-mail/internal/repo"
	"github.com/tbourn/go-habit-mail/internal/scheduler"
	"github.com/tbourn/go-habit-mail/internal/services"
	"github.com/tbourn/go-habit-mail/internal/worker"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server, mailbox poller and reminder scheduler",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.Setup(ctx, cfg.OTEL, version)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	db, err := openStore(cfg, cfg.OTEL.Enabled)
	if err != nil {
		return err
	}
	defer closeStore(db)

	q := newQueue(db)
	n, err := q.RecoverInterrupted(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		log.Warn().Int64("items", n).Msg("recovered items interrupted mid-processing")
	}

	pipe, err := newPipeline(db)
	if err != nil {
		return err
	}

	var (
		fetcher worker.Fetcher
		sender  interface {
			worker.Sender
			scheduler.Mailer
		} = worker.LogSender{}
	)
	if cfg.MailboxCredentials != "" {
		mc, err := config.LoadMailbox(cfg.MailboxCredentials)
		if err != nil {
			return err
		}
		fetcher = mailbox.NewFetcher(mc)
		sender = mailbox.NewSender(mc)
		log.Info().Str("mailbox", mc.Email).Msg("mailbox configured")
	} else {
		log.Warn().Msg("MAILBOX_CREDENTIALS not set: webhook intake only, replies are logged")
	}

	w := worker.New(q, pipe, fetcher, sender, cfg.Worker.BatchSize)
	if err := prometheus.Register(worker.NewQueueCollector(q)); err != nil {
		return fmt.Errorf("register queue collector: %w", err)
	}

	deps := httpapi.Deps{Queue: q}
	if cfg.Worker.Enabled {
		deps.Worker = w
		opts := scheduler.Options{PollInterval: cfg.Worker.PollInterval, Worker: w}
		if cfg.Reminder.Enabled {
			loc, err := time.LoadLocation(cfg.Reminder.Timezone)
			if err != nil {
				return fmt.Errorf("reminder timezone: %w", err)
			}
			opts.Reminder = scheduler.NewReminder(db, sender, cfg.Reminder.Hour, loc)
		}
		sched, err := scheduler.Start(ctx, opts)
		if err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
		defer func() {
			if err := sched.Shutdown(); err != nil {
				log.Warn().Err(err).Msg("scheduler shutdown")
			}
		}()
	}

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, deps, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}

func openStore(cfg config.Config, tracing bool) (*gorm.DB, error) {
	db, err := repo.OpenSQLite(cfg.DBPath, repo.Options{Tracing: tracing, Quiet: cfg.LogLevel != "debug"})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.DBPath, err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		closeStore(db)
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

func closeStore(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func newQueue(db *gorm.DB) *queue.Queue {
	q := queue.New(db)
	if cfg.Worker.MaxRetries > 0 {
		q.MaxRetries = cfg.Worker.MaxRetries
	}
	return q
}

func newPipeline(db *gorm.DB) (*services.Pipeline, error) {
	c, err := newCompleter(cfg.LLM)
	if err != nil {
		return nil, err
	}
	p := parser.New(c, cfg.LLM.ParseModel)
	if cfg.LLM.ParseTimeout > 0 {
		p.Timeout = cfg.LLM.ParseTimeout
	}
	resp := services.NewResponder(c, cfg.LLM.ResponseModel)
	if cfg.LLM.ResponseTimeout > 0 {
		resp.Timeout = cfg.LLM.ResponseTimeout
	}
	return services.NewPipeline(db, p, resp, cfg.ServiceName), nil
}
