package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbourn/go-habit-mail/internal/domain"
	"github.com/tbourn/go-habit-mail/internal/executor"
	"github.com/tbourn/go-habit-mail/internal/intent"
	"github.com/tbourn/go-habit-mail/internal/repo"
)

func TestWeekStart(t *testing.T) {
	cases := map[string]string{
		"2025-01-06": "2025-01-06", // Monday
		"2025-01-08": "2025-01-06",
		"2025-01-12": "2025-01-06", // Sunday
		"2025-01-01": "2024-12-30",
		"garbage":    "garbage",
	}
	for in, want := range cases {
		assert.Equal(t, want, WeekStart(in), in)
	}
}

func TestBuildContext_NewUser(t *testing.T) {
	db := newServicesDB(t)
	ctx := context.Background()
	u, _, err := repo.GetOrCreateUser(ctx, db, "jordan@example.com", nil)
	require.NoError(t, err)

	out, err := BuildContext(ctx, db, ContextInput{UserID: u.ID, Date: "2025-01-08", Original: "hey"})
	require.NoError(t, err)

	assert.Contains(t, out, "USER PROFILE:\n  Name: Jordan\n  Tracking since: 2025-01-08 (1 days)\n  Active habits: none yet")
	assert.Contains(t, out, "TODAY'S CHECK-IN:\n  No check-ins recorded yet today.")
	assert.NotContains(t, out, "THIS WEEK")
	assert.NotContains(t, out, "WHAT JUST HAPPENED")
	assert.NotContains(t, out, "PENDING SUGGESTION")
	assert.True(t, strings.HasSuffix(out, "USER'S ORIGINAL MESSAGE:\n  \"hey\""))
}

func TestBuildContext_WithHistory(t *testing.T) {
	db := newServicesDB(t)
	ctx := context.Background()
	name := "Sam"
	u, _, err := repo.GetOrCreateUser(ctx, db, "sam@example.com", &name)
	require.NoError(t, err)

	ex := executor.New(db)
	ex.Now = func() time.Time { return time.Date(2025, 1, 8, 12, 0, 0, 0, time.UTC) }
	run := func(date string, in ...intent.Intent) []executor.Result {
		return ex.Execute(ctx, executor.Request{UserID: u.ID, Date: date, Intents: in})
	}

	run("2025-01-06", &intent.AddHabit{Habits: []intent.HabitSpec{
		{Name: "water", Unit: intent.String("glasses"), Goal: intent.Float(8)},
		{Name: "yoga"},
		{Name: "vitamins"},
	}})
	run("2025-01-06", &intent.Checkin{Entries: []intent.CheckinEntry{{Habit: "water", Status: intent.StatusFull, Value: intent.Float(9)}}})
	run("2025-01-07", &intent.Checkin{Entries: []intent.CheckinEntry{{Habit: "water", Status: intent.StatusPartial, Value: intent.Float(4)}}})
	results := run("2025-01-08",
		&intent.Checkin{Entries: []intent.CheckinEntry{
			{Habit: "water", Status: intent.StatusPartial, Value: intent.Float(5)},
			{Habit: "yoga", Status: intent.StatusSkip},
		}},
		&intent.RemoveHabit{Habits: []string{"ghost"}},
	)
	_, err = repo.CreatePending(ctx, db, u.ID, string(intent.TypeAddHabit),
		&intent.AddHabit{Habits: []intent.HabitSpec{{Name: "reading", Goal: intent.Float(20), Unit: intent.String("pages")}}}, nil)
	require.NoError(t, err)

	out, err := BuildContext(ctx, db, ContextInput{UserID: u.ID, Date: "2025-01-08", Results: results, Original: "water 5, no yoga"})
	require.NoError(t, err)

	assert.Contains(t, out, "  Name: Sam\n  Tracking since: 2025-01-06 (3 days)\n  Active habits: water (goal: 8 glasses), yoga, vitamins")
	assert.Contains(t, out, "TODAY'S CHECK-IN:\n  water: 5 glasses [partial] (goal: 8)\n  yoga: ✗ [skip]\n  vitamins: (not reported)")
	assert.Contains(t, out, "THIS WEEK (2025-01-06 to 2025-01-08):\n  water: 9, 4, 5 (avg 6.0, goal met 1/3 days)\n  yoga: ✗")
	assert.Contains(t, out, "WHAT JUST HAPPENED:\n  - water: 5 glasses (goal: 8)\n  - yoga: ✗")
	assert.NotContains(t, out, "ghost")
	assert.Contains(t, out, "PENDING SUGGESTION (ask the user to reply yes or no):\n  - start tracking \"reading\" with goal 20 pages")
}

func TestBuildContext_UnknownUser(t *testing.T) {
	db := newServicesDB(t)
	_, err := BuildContext(context.Background(), db, ContextInput{UserID: "nope", Date: "2025-01-08"})
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

func TestFallbackReply(t *testing.T) {
	assert.Contains(t, FallbackReply(nil), "Got your message")

	out := FallbackReply([]executor.Result{
		{Action: intent.TypeCheckin, Success: true, Detail: "water: 2"},
		{Action: intent.TypeQuery, Success: true, Detail: "how am I doing?"},
		{Action: intent.TypeRemoveHabit, Success: false, Detail: `"ghost" not found or already removed`},
	})
	assert.Equal(t, "Got it! Here's what I logged:\n- water: 2\n\nA few things I couldn't do:\n- \"ghost\" not found or already removed", out)
}

func TestDisplayName(t *testing.T) {
	n := "  Alex "
	assert.Equal(t, "Alex", displayName(&domain.User{Name: &n, Email: "x@y.z"}))
	assert.Equal(t, "Pat", displayName(&domain.User{Email: "pat@example.com"}))
}
