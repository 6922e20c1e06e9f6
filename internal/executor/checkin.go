package executor

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/tbourn/go-habit-mail/internal/domain"
	"github.com/tbourn/go-habit-mail/internal/intent"
	"github.com/tbourn/go-habit-mail/internal/repo"
)

func (e *Executor) checkin(ctx context.Context, req Request, in *intent.Checkin) []Result {
	date := resolveDate(in.Date, req.Date)
	var out []Result
	for _, entry := range in.Entries {
		out = append(out, e.checkinEntry(ctx, req.UserID, date, entry)...)
	}
	return out
}

// checkinEntry records one entry atomically. Auxiliary add_habit results for
// a reactivated or auto-created habit are only reported if the whole entry
// commits.
func (e *Executor) checkinEntry(ctx context.Context, userID, date string, entry intent.CheckinEntry) []Result {
	var (
		aux    *Result
		habit  *domain.Habit
		stored *domain.Checkin
	)
	err := e.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		h, err := repo.FindHabit(ctx, tx, userID, entry.Habit)
		switch {
		case err == nil && !h.Active:
			if err := repo.ReactivateHabit(ctx, tx, h.ID); err != nil {
				return err
			}
			h.Active = true
			aux = &Result{Action: intent.TypeAddHabit, Success: true, Detail: fmt.Sprintf("Reactivated %q (was removed)", entry.Habit)}
		case errors.Is(err, repo.ErrNotFound):
			h, err = repo.CreateHabit(ctx, tx, userID, entry.Habit, entry.Unit, nil)
			if err != nil {
				return err
			}
			detail := fmt.Sprintf("Auto-created %q", entry.Habit)
			if entry.Unit != nil && *entry.Unit != "" {
				detail += " (" + *entry.Unit + ")"
			}
			aux = &Result{Action: intent.TypeAddHabit, Success: true, Detail: detail}
		case err != nil:
			return err
		}
		habit = h

		stored, err = repo.UpsertCheckin(ctx, tx, &domain.Checkin{
			UserID:  userID,
			HabitID: h.ID,
			Date:    date,
			Value:   entry.Value,
			Status:  string(entry.Status),
			Done:    statusDone(entry.Status),
			Note:    entry.Note,
		})
		if err != nil {
			return err
		}
		return repo.SetLastCheckin(ctx, tx, userID, date)
	})
	if err != nil {
		return []Result{storeFailure(intent.TypeCheckin, entry.Habit, err)}
	}

	var out []Result
	if aux != nil {
		out = append(out, *aux)
	}
	return append(out, Result{Action: intent.TypeCheckin, Success: true, Detail: checkinDetail(entry, habit, stored)})
}

// checkinDetail renders "habit: value unit" or a tick/cross, followed by a
// goal annotation when the habit has a goal and the day has a numeric value.
func checkinDetail(entry intent.CheckinEntry, h *domain.Habit, c *domain.Checkin) string {
	unit := h.Unit
	if unit == nil || *unit == "" {
		unit = entry.Unit
	}

	var value string
	switch {
	case c.Value != nil:
		value = formatNumber(*c.Value)
		if unit != nil && *unit != "" {
			value += " " + *unit
		}
	case c.Done:
		value = "✓"
	default:
		value = "✗"
	}

	goal := ""
	if h.Goal != nil && *h.Goal != 0 && c.Value != nil {
		if *c.Value >= *h.Goal {
			goal = " (goal met ✓)"
		} else {
			goal = " (goal: " + formatNumber(*h.Goal) + ")"
		}
	}
	return entry.Habit + ": " + value + goal
}
