// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the check-in upsert and day-level reads.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-habit-mail/internal/domain"
)

// accumulateValue sums numeric values when both sides are present and keeps
// whichever side is non-null otherwise.
const accumulateValue = `CASE
	WHEN excluded.value IS NOT NULL AND checkins.value IS NOT NULL THEN checkins.value + excluded.value
	ELSE COALESCE(excluded.value, checkins.value)
END`

// UpsertCheckin writes the day's row for (user_id, habit_id, date). On
// conflict the value accumulates while status, done and note take the
// incoming values. The stored row is returned.
func UpsertCheckin(ctx context.Context, db *gorm.DB, c *domain.Checkin) (*domain.Checkin, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	err := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "habit_id"}, {Name: "date"}},
			DoUpdates: clause.Assignments(map[string]any{
				"value":  gorm.Expr(accumulateValue),
				"status": gorm.Expr("excluded.status"),
				"done":   gorm.Expr("excluded.done"),
				"note":   gorm.Expr("excluded.note"),
			}),
		}).
		Omit(clause.Associations).
		Create(c).Error
	if err != nil {
		return nil, err
	}

	var stored domain.Checkin
	err = db.WithContext(ctx).
		Where("user_id = ? AND habit_id = ? AND date = ?", c.UserID, c.HabitID, c.Date).
		First(&stored).Error
	if err != nil {
		return nil, err
	}
	return &stored, nil
}

// CheckinView is a check-in joined with the habit it belongs to.
type CheckinView struct {
	HabitID   string
	HabitName string
	Unit      *string
	Goal      *float64
	Date      string
	Value     *float64
	Status    string
	Done      bool
	Note      *string
}

// CheckinsOn returns the user's check-ins for one date.
func CheckinsOn(ctx context.Context, db *gorm.DB, userID, date string) ([]CheckinView, error) {
	return CheckinsBetween(ctx, db, userID, date, date)
}

// CheckinsBetween returns check-ins with from <= date <= to, oldest first.
// Dates are YYYY-MM-DD strings so lexical order is calendar order.
func CheckinsBetween(ctx context.Context, db *gorm.DB, userID, from, to string) ([]CheckinView, error) {
	var out []CheckinView
	err := db.WithContext(ctx).
		Table("checkins AS c").
		Select("c.habit_id, h.name AS habit_name, h.unit, h.goal, c.date, c.value, c.status, c.done, c.note").
		Joins("JOIN habits h ON h.id = c.habit_id").
		Where("c.user_id = ? AND c.date >= ? AND c.date <= ?", userID, from, to).
		Order("c.date ASC, h.sort_order ASC, h.created_at ASC").
		Scan(&out).Error
	return out, err
}
