// Package validation checks extracted intents before they reach the executor
// and sanitizes the ones it accepts.
//
// Invalid intents are dropped one at a time; every violation is reported as
// an Error with the offending field. Validate has no side effects.
package validation

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tbourn/go-habit-mail/internal/intent"
)

const (
	MaxHabitName = 50
	MaxValue     = 10000
	MaxNote      = 500
	MaxUnit      = 50
	MaxText      = 2000
)

var habitNameRE = regexp.MustCompile(`^[a-z0-9 _-]+$`)

// Error is a single rule violation.
type Error struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e Error) Error() string { return e.Field + ": " + e.Message }

// Validate returns the accepted (sanitized) intents in their original order
// and all violations found in the rejected ones.
func Validate(in intent.List) (intent.List, []Error) {
	valid := make(intent.List, 0, len(in))
	var errs []Error
	for _, it := range in {
		if e := check(it); len(e) > 0 {
			errs = append(errs, e...)
			continue
		}
		valid = append(valid, sanitize(it))
	}
	return valid, errs
}

func check(it intent.Intent) []Error {
	var errs []Error
	switch v := it.(type) {
	case *intent.Checkin:
		if len(v.Entries) == 0 {
			errs = append(errs, Error{"checkin.entries", "No entries"})
		}
		for _, e := range v.Entries {
			if strings.TrimSpace(e.Habit) == "" {
				errs = append(errs, Error{"checkin.habit", "Missing habit name"})
				continue
			}
			errs = append(errs, checkName("checkin.habit", e.Habit)...)
			if e.InvalidValue != "" {
				errs = append(errs, Error{"checkin.value", fmt.Sprintf("Non-numeric value for %s", e.Habit)})
			} else if e.Value != nil && !inRange(*e.Value) {
				errs = append(errs, Error{"checkin.value", fmt.Sprintf("Value out of range for %s: %v", e.Habit, *e.Value)})
			}
			if e.Status != "" && !e.Status.Valid() {
				errs = append(errs, Error{"checkin.status", fmt.Sprintf("Invalid status for %s: %s", e.Habit, e.Status)})
			}
		}
	case *intent.AddHabit:
		if len(v.Habits) == 0 {
			errs = append(errs, Error{"add_habit.habits", "No habits"})
		}
		for _, h := range v.Habits {
			if strings.TrimSpace(h.Name) == "" {
				errs = append(errs, Error{"add_habit.name", "Missing habit name"})
				continue
			}
			errs = append(errs, checkName("add_habit.name", h.Name)...)
			errs = append(errs, checkGoal("add_habit.goal", h.Goal, h.InvalidGoal)...)
		}
	case *intent.RemoveHabit:
		if len(v.Habits) == 0 {
			errs = append(errs, Error{"remove_habit.habits", "No habits"})
		}
		for _, name := range v.Habits {
			if strings.TrimSpace(name) == "" {
				errs = append(errs, Error{"remove_habit.name", "Missing habit name"})
				continue
			}
			errs = append(errs, checkName("remove_habit.name", name)...)
		}
	case *intent.UpdateHabit:
		if strings.TrimSpace(v.Habit) == "" {
			errs = append(errs, Error{"update_habit.habit", "Missing habit name"})
		} else {
			errs = append(errs, checkName("update_habit.habit", v.Habit)...)
		}
		errs = append(errs, checkGoal("update_habit.goal", v.Goal, v.InvalidGoal)...)
	case *intent.Note:
		errs = append(errs, Error{"note", "Stray note outside a check-in"})
	case *intent.Query, *intent.Greeting, *intent.Help, *intent.Settings,
		*intent.Correction, *intent.Affirm, *intent.Decline:
	default:
		errs = append(errs, Error{"type", fmt.Sprintf("Unsupported intent %T", it)})
	}
	return errs
}

// checkName applies the length and charset rules to the normalized name.
func checkName(field, name string) []Error {
	n := intent.NormalizeName(name)
	var errs []Error
	if utf8.RuneCountInString(n) > MaxHabitName {
		errs = append(errs, Error{field, fmt.Sprintf("Habit name too long: %s...", clip(n, 20))})
	}
	if !habitNameRE.MatchString(n) {
		errs = append(errs, Error{field, fmt.Sprintf("Invalid habit name chars: %s", clip(n, 20))})
	}
	return errs
}

func checkGoal(field string, goal *float64, invalid string) []Error {
	switch {
	case invalid != "":
		return []Error{{field, fmt.Sprintf("Invalid goal: %s", clip(invalid, 20))}}
	case goal != nil && !inRange(*goal):
		return []Error{{field, fmt.Sprintf("Invalid goal: %v", *goal)}}
	}
	return nil
}

func inRange(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0) && f >= 0 && f <= MaxValue
}

func sanitize(it intent.Intent) intent.Intent {
	out := intent.Clone(it)
	switch v := out.(type) {
	case *intent.Checkin:
		v.Date = sanitizeDate(v.Date)
		for i := range v.Entries {
			e := &v.Entries[i]
			e.Habit = sanitizeName(e.Habit)
			e.Unit = sanitizeOptional(e.Unit, MaxUnit)
			e.Note = sanitizeOptional(e.Note, MaxNote)
			if !e.Status.Valid() {
				e.Status = intent.StatusFull
			}
			e.Done = nil
		}
	case *intent.AddHabit:
		for i := range v.Habits {
			v.Habits[i].Name = sanitizeName(v.Habits[i].Name)
			v.Habits[i].Unit = sanitizeOptional(v.Habits[i].Unit, MaxUnit)
		}
	case *intent.RemoveHabit:
		for i, n := range v.Habits {
			v.Habits[i] = sanitizeName(n)
		}
	case *intent.UpdateHabit:
		v.Habit = sanitizeName(v.Habit)
		v.Unit = sanitizeOptional(v.Unit, MaxUnit)
	case *intent.Query:
		v.Question = clip(strings.TrimSpace(v.Question), MaxText)
	case *intent.Correction:
		v.Claim = clip(strings.TrimSpace(v.Claim), MaxText)
	}
	return out
}

func sanitizeName(s string) string {
	return intent.NormalizeName(clip(s, MaxHabitName))
}

// sanitizeOptional trims and clips; blank strings become nil.
func sanitizeOptional(p *string, max int) *string {
	if p == nil {
		return nil
	}
	s := clip(strings.TrimSpace(*p), max)
	if s == "" {
		return nil
	}
	return &s
}

// sanitizeDate keeps "today", "yesterday" and YYYY-MM-DD; anything else means today.
func sanitizeDate(d string) string {
	d = strings.ToLower(strings.TrimSpace(d))
	switch d {
	case "", "today":
		return ""
	case "yesterday":
		return d
	}
	if _, err := time.Parse(time.DateOnly, d); err == nil {
		return d
	}
	return ""
}

// clip truncates s to at most n runes.
func clip(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
