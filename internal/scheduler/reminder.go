package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-habit-mail/internal/repo"
)

// Mailer sends a message that starts a new thread.
type Mailer interface {
	SendFresh(ctx context.Context, to, subject, body string) error
}

// Reminder sends each user with active habits one check-in email per day
// during the configured hour. It owns the "already reminded today" set and
// resets it when the local date changes.
type Reminder struct {
	DB       *gorm.DB
	Mailer   Mailer
	Hour     int
	Location *time.Location
	Now      func() time.Time

	mu   sync.Mutex
	day  string
	sent map[string]struct{}
}

// NewReminder returns a Reminder firing at hour in loc.
func NewReminder(db *gorm.DB, m Mailer, hour int, loc *time.Location) *Reminder {
	if loc == nil {
		loc = time.UTC
	}
	return &Reminder{DB: db, Mailer: m, Hour: hour, Location: loc, Now: time.Now, sent: map[string]struct{}{}}
}

// Tick runs one reminder pass and returns how many emails were sent. Outside
// the reminder hour it only tracks the day rollover.
func (r *Reminder) Tick(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.Now().In(r.Location)
	today := now.Format(time.DateOnly)
	if today != r.day {
		r.sent = map[string]struct{}{}
		r.day = today
		log.Info().Str("component", "scheduler").Str("date", today).Msg("new day")
	}
	if now.Hour() != r.Hour {
		return 0, nil
	}

	users, err := repo.ListUsers(ctx, r.DB)
	if err != nil {
		return 0, fmt.Errorf("list users: %w", err)
	}
	n := 0
	for _, u := range users {
		if _, done := r.sent[u.ID]; done {
			continue
		}
		habits, err := repo.ActiveHabits(ctx, r.DB, u.ID)
		if err != nil {
			log.Error().Str("component", "scheduler").Err(err).Str("user.id", u.ID).Msg("load habits")
			continue
		}
		if len(habits) == 0 {
			continue
		}
		count, err := repo.CountCheckinsOn(ctx, r.DB, u.ID, today)
		if err != nil {
			log.Error().Str("component", "scheduler").Err(err).Str("user.id", u.ID).Msg("count check-ins")
			continue
		}

		names := make([]string, len(habits))
		for i, h := range habits {
			names[i] = h.DisplayName
		}
		name := strings.SplitN(u.Email, "@", 2)[0]
		if u.Name != nil && strings.TrimSpace(*u.Name) != "" {
			name = strings.TrimSpace(*u.Name)
		}

		body := ReminderBody(name, names, count > 0)
		if err := r.Mailer.SendFresh(ctx, u.Email, ReminderSubject(now), body); err != nil {
			log.Error().Str("component", "scheduler").Err(err).Str("to", u.Email).Msg("reminder failed")
			continue
		}
		r.sent[u.ID] = struct{}{}
		n++
		log.Info().Str("component", "scheduler").Str("to", u.Email).Int("habits", len(habits)).
			Bool("checked_in", count > 0).Msg("reminder sent")
	}
	return n, nil
}

// ReminderSubject formats the subject for the reminder sent on day, e.g.
// "Daily check-in: 1/8/25".
func ReminderSubject(day time.Time) string {
	return "Daily check-in: " + day.Format("1/2/06")
}

// ReminderBody nudges a user who has not checked in, or acknowledges one who
// has.
func ReminderBody(name string, habits []string, checkedIn bool) string {
	if checkedIn {
		return fmt.Sprintf("Hey %s! You already checked in today. Nice work. If you did anything else, just reply with an update. Otherwise, see you tomorrow!", name)
	}
	example := habits[0] + " done"
	if len(habits) > 1 {
		example += ", " + habits[1] + " done"
	}
	return fmt.Sprintf("Hey %s! How did today go?\n\nYour habits: %s\n\nJust reply with what you did, like %q or whatever feels natural.",
		name, strings.Join(habits, ", "), example)
}
