package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	"github.com/tbourn/go-habit-mail/internal/domain"
	"github.com/tbourn/go-habit-mail/internal/executor"
	"github.com/tbourn/go-habit-mail/internal/intent"
	"github.com/tbourn/go-habit-mail/internal/repo"
)

const dateLayout = "2006-01-02"

// ContextInput is everything the context builder needs besides the store.
type ContextInput struct {
	UserID   string
	Date     string
	Results  []executor.Result
	Original string
}

// BuildContext renders the fact sheet handed to the response generator.
// Every number in it comes from the store, so the model has nothing to
// invent. Sections:
//
//	USER PROFILE, TODAY'S CHECK-IN, THIS WEEK (when there is data),
//	WHAT JUST HAPPENED (successful results only), PENDING SUGGESTION (when a
//	suggestion awaits a yes/no), USER'S ORIGINAL MESSAGE.
func BuildContext(ctx context.Context, db *gorm.DB, in ContextInput) (string, error) {
	u, err := repo.GetUser(ctx, db, in.UserID)
	if err != nil {
		return "", fmt.Errorf("load user: %w", err)
	}
	habits, err := repo.ActiveHabits(ctx, db, in.UserID)
	if err != nil {
		return "", fmt.Errorf("load habits: %w", err)
	}
	today, err := repo.CheckinsOn(ctx, db, in.UserID, in.Date)
	if err != nil {
		return "", fmt.Errorf("load today: %w", err)
	}
	weekStart := WeekStart(in.Date)
	week, err := repo.CheckinsBetween(ctx, db, in.UserID, weekStart, in.Date)
	if err != nil {
		return "", fmt.Errorf("load week: %w", err)
	}
	first, err := repo.FirstCheckinDate(ctx, db, in.UserID)
	if err != nil {
		return "", fmt.Errorf("load first check-in: %w", err)
	}
	pending, err := repo.LatestOpenPending(ctx, db, in.UserID)
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return "", fmt.Errorf("load pending: %w", err)
	}

	sections := []string{
		profileSection(u, habits, first, in.Date),
		todaySection(today, habits),
	}
	if len(week) > 0 {
		sections = append(sections, weekSection(week, weekStart, in.Date))
	}
	if s := happenedSection(in.Results); s != "" {
		sections = append(sections, s)
	}
	if pending != nil {
		sections = append(sections, pendingSection(pending))
	}
	sections = append(sections, fmt.Sprintf("USER'S ORIGINAL MESSAGE:\n  %q", in.Original))
	return strings.Join(sections, "\n\n"), nil
}

// WeekStart returns the Monday on or before date.
func WeekStart(date string) string {
	t, err := time.Parse(dateLayout, date)
	if err != nil {
		return date
	}
	offset := (int(t.Weekday()) + 6) % 7
	return t.AddDate(0, 0, -offset).Format(dateLayout)
}

// displayName is the user's name, or the title-cased local part of their
// address.
func displayName(u *domain.User) string {
	if u.Name != nil && strings.TrimSpace(*u.Name) != "" {
		return strings.TrimSpace(*u.Name)
	}
	local, _, _ := strings.Cut(u.Email, "@")
	return cases.Title(language.English).String(local)
}

func profileSection(u *domain.User, habits []domain.Habit, first, date string) string {
	days := 1
	since := date
	if first != "" {
		since = first
		if a, err := time.Parse(dateLayout, first); err == nil {
			if b, err := time.Parse(dateLayout, date); err == nil {
				days = int(b.Sub(a).Hours()/24) + 1
			}
		}
	}

	names := make([]string, 0, len(habits))
	for _, h := range habits {
		s := h.Name
		if h.Goal != nil && *h.Goal != 0 {
			s += " (goal: " + num(*h.Goal)
			if h.Unit != nil && *h.Unit != "" {
				s += " " + *h.Unit
			}
			s += ")"
		}
		names = append(names, s)
	}
	active := strings.Join(names, ", ")
	if active == "" {
		active = "none yet"
	}

	return fmt.Sprintf("USER PROFILE:\n  Name: %s\n  Tracking since: %s (%d days)\n  Active habits: %s",
		displayName(u), since, days, active)
}

func todaySection(today []repo.CheckinView, habits []domain.Habit) string {
	if len(today) == 0 {
		return "TODAY'S CHECK-IN:\n  No check-ins recorded yet today."
	}
	lines := make([]string, 0, len(today)+len(habits))
	reported := make(map[string]struct{}, len(today))
	for _, c := range today {
		reported[c.HabitName] = struct{}{}
		goal := ""
		if c.Goal != nil && *c.Goal != 0 && c.Value != nil {
			if *c.Value >= *c.Goal {
				goal = " (goal met ✓)"
			} else {
				goal = " (goal: " + num(*c.Goal) + ")"
			}
		}
		lines = append(lines, fmt.Sprintf("  %s: %s [%s]%s", c.HabitName, valueWithUnit(c), c.Status, goal))
	}
	for _, h := range habits {
		if _, ok := reported[h.Name]; !ok {
			lines = append(lines, "  "+h.Name+": (not reported)")
		}
	}
	return "TODAY'S CHECK-IN:\n" + strings.Join(lines, "\n")
}

func weekSection(week []repo.CheckinView, from, to string) string {
	var order []string
	byHabit := map[string][]repo.CheckinView{}
	for _, c := range week {
		if _, ok := byHabit[c.HabitName]; !ok {
			order = append(order, c.HabitName)
		}
		byHabit[c.HabitName] = append(byHabit[c.HabitName], c)
	}

	lines := make([]string, 0, len(order))
	for _, name := range order {
		entries := byHabit[name]
		values := make([]string, 0, len(entries))
		var sum float64
		var numeric []float64
		for _, e := range entries {
			values = append(values, mark(e))
			if e.Value != nil {
				numeric = append(numeric, *e.Value)
				sum += *e.Value
			}
		}

		var extras []string
		if len(numeric) > 0 {
			extras = append(extras, fmt.Sprintf("avg %.1f", sum/float64(len(numeric))))
		}
		if g := entries[0].Goal; g != nil && *g != 0 {
			met := 0
			for _, v := range numeric {
				if v >= *g {
					met++
				}
			}
			extras = append(extras, fmt.Sprintf("goal met %d/%d days", met, len(entries)))
		}

		line := "  " + name + ": " + strings.Join(values, ", ")
		if len(extras) > 0 {
			line += " (" + strings.Join(extras, ", ") + ")"
		}
		lines = append(lines, line)
	}
	return fmt.Sprintf("THIS WEEK (%s to %s):\n%s", from, to, strings.Join(lines, "\n"))
}

func happenedSection(results []executor.Result) string {
	var lines []string
	for _, r := range results {
		if r.Success {
			lines = append(lines, "  - "+r.Detail)
		}
	}
	if len(lines) == 0 {
		return ""
	}
	return "WHAT JUST HAPPENED:\n" + strings.Join(lines, "\n")
}

// pendingSection asks the model to put the open suggestion to the user as a
// yes/no question.
func pendingSection(p *domain.PendingAction) string {
	desc := p.ActionType
	if in, err := intent.Decode(json.RawMessage(p.ActionData)); err == nil {
		if add, ok := in.(*intent.AddHabit); ok && len(add.Habits) > 0 {
			h := add.Habits[0]
			desc = fmt.Sprintf("start tracking %q", h.Name)
			if h.Goal != nil {
				desc += " with goal " + num(*h.Goal)
				if h.Unit != nil && *h.Unit != "" {
					desc += " " + *h.Unit
				}
			}
		}
	}
	return "PENDING SUGGESTION (ask the user to reply yes or no):\n  - " + desc
}

func valueWithUnit(c repo.CheckinView) string {
	if c.Value == nil {
		return mark(c)
	}
	s := num(*c.Value)
	if c.Unit != nil && *c.Unit != "" {
		s += " " + *c.Unit
	}
	return s
}

func mark(c repo.CheckinView) string {
	switch {
	case c.Value != nil:
		return num(*c.Value)
	case c.Done:
		return "✓"
	default:
		return "✗"
	}
}

func num(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
