// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate queries used when
// building reply context and deciding on reminders. Each function is
// context-aware and safe to call from services or jobs.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/go-habit-mail/internal/domain"
)

// FirstCheckinDate returns the earliest check-in date for userID, or "" when
// the user has never checked in.
//
// The date column is a fixed-width YYYY-MM-DD string, so ordering it
// lexically is safe and avoids MIN() over TEXT in SQLite.
func FirstCheckinDate(ctx context.Context, db *gorm.DB, userID string) (string, error) {
	var rows []string
	err := db.WithContext(ctx).Model(&domain.Checkin{}).
		Where("user_id = ?", userID).
		Order("date ASC").
		Limit(1).
		Pluck("date", &rows).Error
	if err != nil || len(rows) == 0 {
		return "", err
	}
	return rows[0], nil
}

// CountCheckinsOn returns how many check-ins the user recorded on date.
func CountCheckinsOn(ctx context.Context, db *gorm.DB, userID, date string) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.Checkin{}).
		Where("user_id = ? AND date = ?", userID, date).
		Count(&n).Error
	return n, err
}
