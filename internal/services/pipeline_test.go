package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-habit-mail/internal/domain"
	"github.com/tbourn/go-habit-mail/internal/intent"
	"github.com/tbourn/go-habit-mail/internal/parser"
	"github.com/tbourn/go-habit-mail/internal/repo"
)

func newServicesDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:services_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	require.NoError(t, repo.AutoMigrate(db))
	return db
}

type fakeParser struct {
	out   intent.List
	err   error
	calls int
	got   parser.Options
	text  string
}

func (f *fakeParser) Parse(_ context.Context, text string, opts parser.Options) (parser.Result, error) {
	f.calls++
	f.got = opts
	f.text = text
	if f.err != nil {
		return parser.Result{}, f.err
	}
	return parser.Result{Intents: f.out}, nil
}

type fakeResponder struct {
	reply   string
	err     error
	context string
}

func (f *fakeResponder) Respond(_ context.Context, sc string) (string, error) {
	f.context = sc
	return f.reply, f.err
}

// 03:00 UTC on the 9th is still the 8th in America/Chicago.
var pipelineNow = time.Date(2025, 1, 9, 3, 0, 0, 0, time.UTC)

func newPipeline(t *testing.T, p *fakeParser, r *fakeResponder) *Pipeline {
	t.Helper()
	db := newServicesDB(t)
	pl := NewPipeline(db, p, r, "Maintainable")
	pl.Now = func() time.Time { return pipelineNow }
	pl.Executor.Now = pl.Now
	return pl
}

// existingUser creates a user with one logged exchange behind them.
func existingUser(t *testing.T, pl *Pipeline, email string) *domain.User {
	t.Helper()
	ctx := context.Background()
	u, _, err := repo.GetOrCreateUser(ctx, pl.DB, email, nil)
	require.NoError(t, err)
	_, err = repo.LogEmail(ctx, pl.DB, &u.ID, domain.DirectionInbound, "hello", "hi", nil)
	require.NoError(t, err)
	return u
}

func emailLog(t *testing.T, pl *Pipeline, userID string) []domain.EmailLog {
	t.Helper()
	rows, err := repo.ListEmailLog(context.Background(), pl.DB, userID)
	require.NoError(t, err)
	return rows
}

func water(v float64) *intent.Checkin {
	return &intent.Checkin{Entries: []intent.CheckinEntry{{Habit: "water", Status: intent.StatusFull, Value: intent.Float(v)}}}
}

func TestProcess_NewUserGreetingGetsWelcome(t *testing.T) {
	fp := &fakeParser{}
	fr := &fakeResponder{reply: "unused"}
	pl := newPipeline(t, fp, fr)

	out, err := pl.Process(context.Background(), InboundEmail{MessageID: "<1@x>", From: "new@example.com", FromName: "Nia", Subject: "hello", Body: "hi there!"})
	require.NoError(t, err)

	assert.True(t, out.IsNewUser)
	assert.True(t, out.ShouldReply)
	assert.Equal(t, "Welcome to Maintainable", out.Subject)
	assert.True(t, strings.HasPrefix(out.Body, "Hey Nia!"))
	assert.Zero(t, fp.calls)
	assert.Empty(t, fr.context)

	logs := emailLog(t, pl, out.UserID)
	require.Len(t, logs, 2)
	assert.Equal(t, domain.DirectionInbound, logs[0].Direction)
	assert.Equal(t, domain.DirectionOutbound, logs[1].Direction)
}

func TestProcess_NewUserFirstCheckinIsAugmented(t *testing.T) {
	fp := &fakeParser{out: intent.List{water(2)}}
	fr := &fakeResponder{reply: "Two glasses logged."}
	pl := newPipeline(t, fp, fr)

	out, err := pl.Process(context.Background(), InboundEmail{MessageID: "<1@x>", From: "New@Example.com", Subject: "today", Body: "drank 2 glasses of water today"})
	require.NoError(t, err)

	assert.Equal(t, "llm", out.Source)
	assert.Equal(t, "Re: today", out.Subject)
	assert.True(t, strings.HasPrefix(out.Body, "Welcome to Maintainable!"))
	assert.Contains(t, out.Body, "Two glasses logged.")
	assert.Contains(t, fr.context, "WHAT JUST HAPPENED:\n  - Auto-created \"water\"\n  - water: 2")
	assert.Contains(t, fr.context, "drank 2 glasses of water today")

	u, err := repo.GetUserByEmail(context.Background(), pl.DB, "new@example.com")
	require.NoError(t, err)
	require.NotNil(t, u.LastCheckinAt)
	assert.Equal(t, "2025-01-08", *u.LastCheckinAt, "date follows the user's zone")

	logs := emailLog(t, pl, out.UserID)
	require.Len(t, logs, 2)
	assert.JSONEq(t, `[{"type":"checkin","entries":[{"habit":"water","status":"full","value":2}]}]`, string(logs[0].ParsedIntents))
	assert.Empty(t, logs[1].ParsedIntents)
}

func TestProcess_NewUserWithoutHabitsGetsWelcome(t *testing.T) {
	fp := &fakeParser{out: intent.List{&intent.Query{Question: "what is this service about"}}}
	pl := newPipeline(t, fp, &fakeResponder{reply: "x"})

	out, err := pl.Process(context.Background(), InboundEmail{MessageID: "<1@x>", From: "q@example.com", Subject: "question", Body: "what is this service about exactly"})
	require.NoError(t, err)
	assert.Equal(t, 1, fp.calls)
	assert.Equal(t, "Welcome to Maintainable", out.Subject)

	var n int64
	pl.DB.Model(&domain.Habit{}).Count(&n)
	assert.Zero(t, n)
}

func TestProcess_NewUserRetryAfterFailureKeepsWelcome(t *testing.T) {
	fp := &fakeParser{err: &parser.ExtractionError{Stage: parser.StageCompletion, Err: context.DeadlineExceeded}}
	fr := &fakeResponder{reply: "Two glasses logged."}
	pl := newPipeline(t, fp, fr)
	email := InboundEmail{MessageID: "<1@x>", From: "new@example.com", Subject: "today", Body: "drank 2 glasses of water today"}

	_, err := pl.Process(context.Background(), email)
	require.Error(t, err)
	_, err = repo.GetUserByEmail(context.Background(), pl.DB, "new@example.com")
	require.NoError(t, err, "the user row survives the failed attempt")

	fp.err, fp.out = nil, intent.List{water(2)}
	out, err := pl.Process(context.Background(), email)
	require.NoError(t, err)
	assert.True(t, out.IsNewUser)
	assert.True(t, strings.HasPrefix(out.Body, "Welcome to Maintainable!"))

	// Once an exchange is logged the user is no longer new.
	out, err = pl.Process(context.Background(), InboundEmail{MessageID: "<2@x>", From: "new@example.com", Subject: "Re: today", Body: "drank 1 more glass of water"})
	require.NoError(t, err)
	assert.False(t, out.IsNewUser)
	assert.Equal(t, "Two glasses logged.", out.Body)
}

func TestProcess_AccumulatesAcrossEmails(t *testing.T) {
	fp := &fakeParser{out: intent.List{water(2)}}
	fr := &fakeResponder{reply: "ok"}
	pl := newPipeline(t, fp, fr)
	u := existingUser(t, pl, "a@example.com")
	ctx := context.Background()

	_, err := pl.Process(ctx, InboundEmail{MessageID: "<1@x>", From: "a@example.com", Subject: "Re: check-in", Body: "water 2 glasses please"})
	require.NoError(t, err)
	fp.out = intent.List{water(3)}
	out, err := pl.Process(ctx, InboundEmail{MessageID: "<2@x>", From: "a@example.com", Subject: "Re: check-in", Body: "water 3 more glasses\n> quoted"})
	require.NoError(t, err)

	assert.Equal(t, "water 3 more glasses", fp.text)
	assert.Equal(t, []string{"water"}, fp.got.HabitNames)
	assert.Equal(t, "ok", out.Body, "existing users get no welcome")
	assert.Contains(t, fr.context, "water: 5 [full]")

	views, err := repo.CheckinsOn(ctx, pl.DB, u.ID, "2025-01-08")
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, 5.0, *views[0].Value)
}

func TestProcess_PreparseShortCircuits(t *testing.T) {
	fp := &fakeParser{}
	fr := &fakeResponder{reply: "Done!"}
	pl := newPipeline(t, fp, fr)
	u := existingUser(t, pl, "a@example.com")
	ctx := context.Background()

	_, err := repo.CreatePending(ctx, pl.DB, u.ID, string(intent.TypeAddHabit),
		&intent.AddHabit{Habits: []intent.HabitSpec{{Name: "reading"}}}, nil)
	require.NoError(t, err)

	out, err := pl.Process(ctx, InboundEmail{MessageID: "<1@x>", From: "a@example.com", Subject: "Re: hi", Body: "Yes!"})
	require.NoError(t, err)
	assert.Zero(t, fp.calls)
	assert.Equal(t, "preparse", out.Source)
	assert.Equal(t, []intent.Type{intent.TypeAffirm}, out.Intents.Types())
	require.Len(t, out.Results, 1)
	assert.Equal(t, `Confirmed: Added "reading"`, out.Results[0].Detail)

	_, err = repo.FindHabit(ctx, pl.DB, u.ID, "reading")
	assert.NoError(t, err)
}

func TestProcess_ExtractionErrorPropagates(t *testing.T) {
	perr := &parser.ExtractionError{Stage: parser.StageCompletion, Err: context.DeadlineExceeded}
	fp := &fakeParser{err: perr}
	pl := newPipeline(t, fp, &fakeResponder{reply: "x"})
	u := existingUser(t, pl, "a@example.com")

	_, err := pl.Process(context.Background(), InboundEmail{MessageID: "<1@x>", From: "a@example.com", Subject: "Re: x", Body: "ran three miles this morning"})
	require.Error(t, err)
	var xe *parser.ExtractionError
	assert.True(t, errors.As(err, &xe))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Len(t, emailLog(t, pl, u.ID), 1, "failed runs write nothing")
}

func TestProcess_ResponderFailureFallsBack(t *testing.T) {
	fp := &fakeParser{out: intent.List{water(2)}}
	fr := &fakeResponder{err: errors.New("connection refused")}
	pl := newPipeline(t, fp, fr)
	existingUser(t, pl, "a@example.com")

	out, err := pl.Process(context.Background(), InboundEmail{MessageID: "<1@x>", From: "a@example.com", Subject: "Re: x", Body: "water 2 glasses"})
	require.NoError(t, err)
	assert.Contains(t, out.Body, "- water: 2")
	assert.NotContains(t, out.Body, "connection refused")
}

func TestProcess_ValidationDropsInvalidIntents(t *testing.T) {
	fp := &fakeParser{out: intent.List{
		water(2),
		&intent.AddHabit{Habits: []intent.HabitSpec{{Name: "bad!name"}}},
	}}
	pl := newPipeline(t, fp, &fakeResponder{reply: "ok"})
	existingUser(t, pl, "a@example.com")

	out, err := pl.Process(context.Background(), InboundEmail{MessageID: "<1@x>", From: "a@example.com", Subject: "Re: x", Body: "water 2 and add bad name"})
	require.NoError(t, err)
	assert.Equal(t, []intent.Type{intent.TypeCheckin}, out.Intents.Types())
}

func TestProcess_InvalidSender(t *testing.T) {
	pl := newPipeline(t, &fakeParser{}, &fakeResponder{})
	_, err := pl.Process(context.Background(), InboundEmail{MessageID: "<1@x>", From: "  ", Body: "hi"})
	assert.ErrorIs(t, err, ErrInvalidSender)
}
