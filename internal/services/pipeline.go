// Package services – Pipeline
//
// This file implements Pipeline, which takes one inbound email from raw text
// to a reply: quoted-text stripping, subject/body combination, user lookup
// and onboarding, pre-parse or LLM extraction, validation, execution, context
// building and response generation. Both directions are recorded in the email
// audit log.
//
// Extraction failures are returned so the caller can retry the email; nothing
// has been written at that point. Once intents have executed, a failed
// response generation degrades to FallbackReply instead of an error, since a
// retry would apply the same check-ins twice.
//
// Observability: Process is OpenTelemetry-instrumented.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-habit-mail/internal/domain"
	"github.com/tbourn/go-habit-mail/internal/executor"
	"github.com/tbourn/go-habit-mail/internal/intent"
	"github.com/tbourn/go-habit-mail/internal/parser"
	"github.com/tbourn/go-habit-mail/internal/preparse"
	"github.com/tbourn/go-habit-mail/internal/repo"
	"github.com/tbourn/go-habit-mail/internal/validation"
)

// IntentParser extracts intents from free text.
type IntentParser interface {
	Parse(ctx context.Context, text string, opts parser.Options) (parser.Result, error)
}

// ReplyGenerator writes a reply from a structured context.
type ReplyGenerator interface {
	Respond(ctx context.Context, structuredContext string) (string, error)
}

// InboundEmail is one message to process.
type InboundEmail struct {
	// ID is the queue item id, recorded on suggestions made while processing.
	ID        string
	MessageID string
	From      string
	FromName  string
	Subject   string
	Body      string
}

// Output is the outcome of processing one email.
type Output struct {
	UserID      string
	IsNewUser   bool
	ShouldReply bool
	Subject     string
	Body        string
	// Source is "preparse" or "llm", empty for welcome emails.
	Source  string
	Intents intent.List
	Results []executor.Result
}

// Pipeline processes inbound emails end to end.
type Pipeline struct {
	DB        *gorm.DB
	Parser    IntentParser
	Executor  *executor.Executor
	Responder ReplyGenerator
	// ServiceName is the product name used in onboarding copy.
	ServiceName string
	Now         func() time.Time
}

// NewPipeline wires a Pipeline with an executor on db and the wall clock.
func NewPipeline(db *gorm.DB, p IntentParser, r ReplyGenerator, serviceName string) *Pipeline {
	return &Pipeline{
		DB:          db,
		Parser:      p,
		Executor:    executor.New(db),
		Responder:   r,
		ServiceName: serviceName,
		Now:         time.Now,
	}
}

// Process runs the pipeline for one email.
func (p *Pipeline) Process(ctx context.Context, email InboundEmail) (*Output, error) {
	tr := otel.Tracer("services/Pipeline")
	ctx, span := tr.Start(ctx, "Process",
		trace.WithAttributes(attribute.String("email.message_id", email.MessageID)),
	)
	defer span.End()

	if strings.TrimSpace(email.From) == "" || !strings.Contains(email.From, "@") {
		return nil, ErrInvalidSender
	}

	body := StripQuotedText(email.Body)
	input := CombineInput(email.Subject, body)
	logger := log.With().Str("component", "pipeline").Str("message_id", email.MessageID).Logger()

	var name *string
	if n := strings.TrimSpace(email.FromName); n != "" {
		name = &n
	}
	user, created, err := repo.GetOrCreateUser(ctx, p.DB, email.From, name)
	if err != nil {
		return nil, fmt.Errorf("get or create user: %w", err)
	}
	// A user stays new until an exchange is logged, so a first email that
	// failed and is retried still gets the welcome treatment.
	isNew := created
	if !created {
		seen, err := repo.HasEmailLog(ctx, p.DB, user.ID)
		if err != nil {
			return nil, fmt.Errorf("load email history: %w", err)
		}
		isNew = !seen
	}
	span.SetAttributes(attribute.String("user.id", user.ID), attribute.Bool("user.new", isNew))
	logger.Info().Str("user.id", user.ID).Bool("new_user", isNew).Int("input_len", len(input)).Msg("processing email")

	if isNew && LooksLikeFirstMessage(input) {
		return p.welcome(ctx, user, email.Subject, body, nil)
	}

	intents, source, err := p.extract(ctx, user.ID, input)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "extraction failed")
		return nil, err
	}
	if isNew && !hasAny(intents, intent.TypeCheckin, intent.TypeAddHabit) {
		return p.welcome(ctx, user, email.Subject, body, intents)
	}

	valid, verrs := validation.Validate(intents)
	for _, ve := range verrs {
		logger.Warn().Str("field", ve.Field).Str("reason", ve.Message).Msg("dropped invalid intent")
	}

	date := p.today(user)
	var emailID *string
	if email.ID != "" {
		emailID = &email.ID
	}
	results := p.Executor.Execute(ctx, executor.Request{
		UserID:  user.ID,
		Date:    date,
		Intents: valid,
		EmailID: emailID,
	})

	reply, err := p.reply(ctx, user.ID, date, results, input)
	if err != nil {
		logger.Error().Err(err).Msg("response generation failed, sending fallback")
		reply = FallbackReply(results)
	}
	if isNew && hasAny(valid, intent.TypeCheckin) {
		reply = AugmentFirstCheckin(reply, p.ServiceName)
	}

	subject := ReplySubject(email.Subject)
	p.audit(ctx, user.ID, domain.DirectionInbound, email.Subject, body, valid)
	p.audit(ctx, user.ID, domain.DirectionOutbound, subject, reply, nil)

	return &Output{
		UserID:      user.ID,
		IsNewUser:   isNew,
		ShouldReply: true,
		Subject:     subject,
		Body:        reply,
		Source:      source,
		Intents:     valid,
		Results:     results,
	}, nil
}

// extract tries the pre-parser first and falls back to the LLM parser with
// the user's active habit names.
func (p *Pipeline) extract(ctx context.Context, userID, input string) (intent.List, string, error) {
	if l := preparse.Parse(input); l != nil {
		return l, "preparse", nil
	}
	habits, err := repo.ActiveHabits(ctx, p.DB, userID)
	if err != nil {
		return nil, "", fmt.Errorf("load habits: %w", err)
	}
	names := make([]string, len(habits))
	for i, h := range habits {
		names[i] = h.Name
	}
	res, err := p.Parser.Parse(ctx, input, parser.Options{HabitNames: names})
	if err != nil {
		return nil, "", fmt.Errorf("parse intents: %w", err)
	}
	log.Debug().Str("component", "pipeline").Dur("latency", res.Latency).
		Interface("types", res.Intents.Types()).Msg("parsed intents")
	return res.Intents, "llm", nil
}

func (p *Pipeline) reply(ctx context.Context, userID, date string, results []executor.Result, input string) (string, error) {
	sc, err := BuildContext(ctx, p.DB, ContextInput{UserID: userID, Date: date, Results: results, Original: input})
	if err != nil {
		return "", err
	}
	if p.Responder == nil {
		return "", errors.New("no response generator configured")
	}
	return p.Responder.Respond(ctx, sc)
}

func (p *Pipeline) welcome(ctx context.Context, u *domain.User, subject, body string, intents intent.List) (*Output, error) {
	name := ""
	if u.Name != nil {
		name = *u.Name
	}
	w := WelcomeEmail(name, p.ServiceName)
	p.audit(ctx, u.ID, domain.DirectionInbound, subject, body, intents)
	p.audit(ctx, u.ID, domain.DirectionOutbound, w.Subject, w.Body, nil)
	log.Info().Str("component", "pipeline").Str("user.id", u.ID).Msg("sending welcome email")
	return &Output{
		UserID:      u.ID,
		IsNewUser:   true,
		ShouldReply: true,
		Subject:     w.Subject,
		Body:        w.Body,
		Intents:     intents,
	}, nil
}

// audit writes an email log row. Failures are logged and never fail the
// pipeline.
func (p *Pipeline) audit(ctx context.Context, userID, direction, subject, body string, intents intent.List) {
	var parsed any
	if intents != nil {
		parsed = intents
	}
	uid := userID
	if _, err := repo.LogEmail(ctx, p.DB, &uid, direction, subject, body, parsed); err != nil {
		log.Error().Str("component", "pipeline").Err(err).Str("direction", direction).Msg("email log write failed")
	}
}

// today is the current date in the user's time zone.
func (p *Pipeline) today(u *domain.User) string {
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	loc, err := time.LoadLocation(u.Timezone)
	if err != nil || u.Timezone == "" {
		loc = time.UTC
	}
	return now().In(loc).Format(dateLayout)
}

func hasAny(l intent.List, types ...intent.Type) bool {
	for _, in := range l {
		for _, t := range types {
			if in.Type() == t {
				return true
			}
		}
	}
	return false
}

func isMutation(t intent.Type) bool {
	switch t {
	case intent.TypeCheckin, intent.TypeAddHabit, intent.TypeRemoveHabit,
		intent.TypeUpdateHabit, intent.TypeAffirm, intent.TypeDecline:
		return true
	}
	return false
}
