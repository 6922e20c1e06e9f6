// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Habit
// model. Habits are looked up by their normalized name and are soft-deleted,
// never removed.
package repo

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-habit-mail/internal/domain"
)

func normalizeHabitName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// FindHabit returns the habit named name for userID, active or not.
func FindHabit(ctx context.Context, db *gorm.DB, userID, name string) (*domain.Habit, error) {
	var h domain.Habit
	err := db.WithContext(ctx).
		Where("user_id = ? AND name = ?", userID, normalizeHabitName(name)).
		First(&h).Error
	if err != nil {
		return nil, err
	}
	return &h, nil
}

// ActiveHabits lists the user's active habits in display order.
func ActiveHabits(ctx context.Context, db *gorm.DB, userID string) ([]domain.Habit, error) {
	var out []domain.Habit
	err := db.WithContext(ctx).
		Where("user_id = ? AND active = ?", userID, true).
		Order("sort_order ASC, created_at ASC").
		Find(&out).Error
	return out, err
}

// CreateHabit inserts an active habit at the end of the user's list.
// displayName keeps the user's original spelling; the stored name is
// normalized. Returns ErrDuplicate when the (user_id, name) pair already
// exists.
func CreateHabit(ctx context.Context, db *gorm.DB, userID, displayName string, unit *string, goal *float64) (*domain.Habit, error) {
	var next int
	if err := db.WithContext(ctx).Model(&domain.Habit{}).
		Where("user_id = ?", userID).
		Select("COALESCE(MAX(sort_order) + 1, 0)").
		Scan(&next).Error; err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	h := &domain.Habit{
		ID:          uuid.NewString(),
		UserID:      userID,
		Name:        normalizeHabitName(displayName),
		DisplayName: strings.TrimSpace(displayName),
		Unit:        unit,
		Goal:        goal,
		Active:      true,
		SortOrder:   next,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := db.WithContext(ctx).Omit("User").Create(h).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return h, nil
}

// ReactivateHabit clears the soft-delete markers of a habit.
func ReactivateHabit(ctx context.Context, db *gorm.DB, id string) error {
	return setHabitFields(ctx, db, id, map[string]any{
		"active":     true,
		"removed_at": nil,
	})
}

// DeactivateHabit soft-deletes a habit at the given instant.
func DeactivateHabit(ctx context.Context, db *gorm.DB, id string, at time.Time) error {
	return setHabitFields(ctx, db, id, map[string]any{
		"active":     false,
		"removed_at": at.UTC(),
	})
}

// UpdateHabitFields sets goal and/or unit. Nil arguments are left unchanged.
func UpdateHabitFields(ctx context.Context, db *gorm.DB, id string, goal *float64, unit *string) error {
	fields := map[string]any{}
	if goal != nil {
		fields["goal"] = *goal
	}
	if unit != nil {
		fields["unit"] = *unit
	}
	if len(fields) == 0 {
		return nil
	}
	return setHabitFields(ctx, db, id, fields)
}

func setHabitFields(ctx context.Context, db *gorm.DB, id string, fields map[string]any) error {
	fields["updated_at"] = time.Now().UTC()
	res := db.WithContext(ctx).Model(&domain.Habit{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
