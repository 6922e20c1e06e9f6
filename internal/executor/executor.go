// Package executor applies validated intents to the store.
//
// Execution is deterministic: intents are stably sorted into a fixed priority
// order, then dispatched by type. Every outcome, good or bad, is reported as a
// Result; one intent failing never stops its siblings, and store errors are
// logged and surfaced as unsuccessful results rather than returned.
//
// Check-ins run one transaction per entry covering habit resolution
// (reactivate or auto-create), the accumulating upsert and the user's
// last_checkin_at, so a crash cannot leave a habit without its check-in.
//
// Observability: Execute is OpenTelemetry-instrumented.
package executor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-habit-mail/internal/intent"
	"github.com/tbourn/go-habit-mail/internal/repo"
)

const dateLayout = "2006-01-02"

// Result is the outcome of one action.
type Result struct {
	Action  intent.Type `json:"action"`
	Success bool        `json:"success"`
	Detail  string      `json:"detail"`
}

// Request is one message's worth of intents for a user.
type Request struct {
	UserID string
	// Date is the user's current day (YYYY-MM-DD); relative check-in dates
	// resolve against it.
	Date    string
	Intents intent.List
	// EmailID is the inbound email that produced the intents, recorded on
	// any suggestion created while executing.
	EmailID *string
}

// Executor runs intents against DB.
type Executor struct {
	DB  *gorm.DB
	Now func() time.Time
}

// New returns an Executor using the wall clock.
func New(db *gorm.DB) *Executor {
	return &Executor{DB: db, Now: time.Now}
}

var priority = map[intent.Type]int{
	intent.TypeAffirm:      0,
	intent.TypeDecline:     1,
	intent.TypeAddHabit:    2,
	intent.TypeRemoveHabit: 3,
	intent.TypeUpdateHabit: 4,
	intent.TypeSettings:    5,
	intent.TypeCheckin:     6,
	intent.TypeQuery:       7,
	intent.TypeCorrection:  8,
	intent.TypeGreeting:    9,
	intent.TypeHelp:        10,
}

// Order returns a stably sorted copy of l in execution order. Types without
// a priority sort last.
func Order(l intent.List) intent.List {
	out := append(intent.List(nil), l...)
	rank := func(t intent.Type) int {
		if p, ok := priority[t]; ok {
			return p
		}
		return len(priority)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return rank(out[i].Type()) < rank(out[j].Type())
	})
	return out
}

// Execute applies req.Intents in priority order and returns every result.
func (e *Executor) Execute(ctx context.Context, req Request) []Result {
	tr := otel.Tracer("executor")
	ctx, span := tr.Start(ctx, "Execute",
		trace.WithAttributes(
			attribute.String("user.id", req.UserID),
			attribute.String("date", req.Date),
			attribute.Int("intents.count", len(req.Intents)),
		),
	)
	defer span.End()

	var results []Result
	for _, it := range Order(req.Intents) {
		switch v := it.(type) {
		case *intent.Affirm:
			results = append(results, e.affirm(ctx, req)...)
		case *intent.Decline:
			results = append(results, e.decline(ctx, req))
		case *intent.AddHabit:
			results = append(results, e.addHabits(ctx, req.UserID, v)...)
		case *intent.RemoveHabit:
			results = append(results, e.removeHabits(ctx, req.UserID, v)...)
		case *intent.UpdateHabit:
			results = append(results, e.updateHabit(ctx, req, v))
		case *intent.Settings:
			results = append(results, Result{Action: intent.TypeSettings, Success: true, Detail: "Settings update noted"})
		case *intent.Checkin:
			results = append(results, e.checkin(ctx, req, v)...)
		case *intent.Query:
			results = append(results, Result{Action: intent.TypeQuery, Success: true, Detail: v.Question})
		case *intent.Correction:
			results = append(results, Result{Action: intent.TypeCorrection, Success: true, Detail: "User says this is wrong: " + v.Claim})
		case *intent.Greeting:
			results = append(results, Result{Action: intent.TypeGreeting, Success: true, Detail: "User greeted the assistant, respond warmly and mention habits if relevant"})
		case *intent.Help:
			results = append(results, Result{Action: intent.TypeHelp, Success: true, Detail: "Help requested"})
		default:
			log.Warn().Str("component", "executor").Str("type", string(it.Type())).Msg("no handler for intent")
		}
	}

	ok := 0
	for _, r := range results {
		if r.Success {
			ok++
		}
	}
	span.SetAttributes(attribute.Int("results.count", len(results)), attribute.Int("results.ok", ok))
	return results
}

// storeFailure logs err and returns the user-safe result for it.
func storeFailure(action intent.Type, subject string, err error) Result {
	log.Error().Str("component", "executor").Str("action", string(action)).Str("subject", subject).Err(err).Msg("store error")
	return Result{Action: action, Success: false, Detail: fmt.Sprintf("Could not save changes for %q", subject)}
}

func (e *Executor) addHabits(ctx context.Context, userID string, in *intent.AddHabit) []Result {
	out := make([]Result, 0, len(in.Habits))
	for _, h := range in.Habits {
		out = append(out, e.addHabit(ctx, userID, h))
	}
	return out
}

func (e *Executor) addHabit(ctx context.Context, userID string, h intent.HabitSpec) Result {
	existing, err := repo.FindHabit(ctx, e.DB, userID, h.Name)
	switch {
	case err == nil && existing.Active:
		return Result{Action: intent.TypeAddHabit, Success: false, Detail: fmt.Sprintf("%q already exists", h.Name)}
	case err == nil:
		if err := repo.ReactivateHabit(ctx, e.DB, existing.ID); err != nil {
			return storeFailure(intent.TypeAddHabit, h.Name, err)
		}
		return Result{Action: intent.TypeAddHabit, Success: true, Detail: fmt.Sprintf("Reactivated %q", h.Name)}
	case !errors.Is(err, repo.ErrNotFound):
		return storeFailure(intent.TypeAddHabit, h.Name, err)
	}

	if _, err := repo.CreateHabit(ctx, e.DB, userID, h.Name, h.Unit, h.Goal); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return Result{Action: intent.TypeAddHabit, Success: false, Detail: fmt.Sprintf("%q already exists", h.Name)}
		}
		return storeFailure(intent.TypeAddHabit, h.Name, err)
	}
	detail := fmt.Sprintf("Added %q", h.Name)
	if h.Unit != nil && *h.Unit != "" {
		detail += " (" + *h.Unit + ")"
	}
	if h.Goal != nil && *h.Goal != 0 {
		detail += " goal: " + formatNumber(*h.Goal)
	}
	return Result{Action: intent.TypeAddHabit, Success: true, Detail: detail}
}

func (e *Executor) removeHabits(ctx context.Context, userID string, in *intent.RemoveHabit) []Result {
	out := make([]Result, 0, len(in.Habits))
	for _, name := range in.Habits {
		h, err := repo.FindHabit(ctx, e.DB, userID, name)
		if err != nil && !errors.Is(err, repo.ErrNotFound) {
			out = append(out, storeFailure(intent.TypeRemoveHabit, name, err))
			continue
		}
		if h == nil || !h.Active {
			out = append(out, Result{Action: intent.TypeRemoveHabit, Success: false, Detail: fmt.Sprintf("%q not found or already removed", name)})
			continue
		}
		if err := repo.DeactivateHabit(ctx, e.DB, h.ID, e.Now()); err != nil {
			out = append(out, storeFailure(intent.TypeRemoveHabit, name, err))
			continue
		}
		out = append(out, Result{Action: intent.TypeRemoveHabit, Success: true, Detail: fmt.Sprintf("Removed %q", name)})
	}
	return out
}

// updateHabit changes goal/unit of an active habit. When the habit is
// missing, a pending add_habit carrying the requested fields is recorded so a
// later "yes" creates it.
func (e *Executor) updateHabit(ctx context.Context, req Request, in *intent.UpdateHabit) Result {
	h, err := repo.FindHabit(ctx, e.DB, req.UserID, in.Habit)
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return storeFailure(intent.TypeUpdateHabit, in.Habit, err)
	}
	if h == nil || !h.Active {
		suggestion := &intent.AddHabit{Habits: []intent.HabitSpec{{Name: in.Habit, Unit: in.Unit, Goal: in.Goal}}}
		if _, err := repo.CreatePending(ctx, e.DB, req.UserID, string(intent.TypeAddHabit), suggestion, req.EmailID); err != nil {
			log.Error().Str("component", "executor").Err(err).Msg("record suggestion")
		}
		return Result{Action: intent.TypeUpdateHabit, Success: false, Detail: fmt.Sprintf("%q not found", in.Habit)}
	}
	if in.Goal == nil && in.Unit == nil {
		return Result{Action: intent.TypeUpdateHabit, Success: false, Detail: "No changes specified"}
	}
	if err := repo.UpdateHabitFields(ctx, e.DB, h.ID, in.Goal, in.Unit); err != nil {
		return storeFailure(intent.TypeUpdateHabit, in.Habit, err)
	}
	detail := fmt.Sprintf("Updated %q", in.Habit)
	if in.Goal != nil {
		detail += " goal: " + formatNumber(*in.Goal)
	}
	if in.Unit != nil && *in.Unit != "" {
		detail += " unit: " + *in.Unit
	}
	return Result{Action: intent.TypeUpdateHabit, Success: true, Detail: detail}
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// resolveDate maps a check-in's date onto a calendar day relative to today.
func resolveDate(date, today string) string {
	switch strings.ToLower(strings.TrimSpace(date)) {
	case "", "today":
		return today
	case "yesterday":
		t, err := time.Parse(dateLayout, today)
		if err != nil {
			return today
		}
		return t.AddDate(0, 0, -1).Format(dateLayout)
	}
	if _, err := time.Parse(dateLayout, date); err != nil {
		return today
	}
	return date
}

// statusDone derives the stored done flag.
func statusDone(s intent.Status) bool { return s != intent.StatusSkip }
