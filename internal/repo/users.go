// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the User model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a row is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - Unique violations on insert are reported as ErrDuplicate.
//   - Other DB errors are propagated unchanged.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tbourn/go-habit-mail/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrDuplicate indicates an insert collided with a unique key.
var ErrDuplicate = errors.New("duplicate")

// isUniqueViolation detects UNIQUE failures. glebarez/sqlite often returns
// plain-text errors for them instead of gorm.ErrDuplicatedKey.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	low := strings.ToLower(err.Error())
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique")
}

// GetUserByEmail fetches a user by (lowercased) address.
func GetUserByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUser fetches a user by id.
func GetUser(ctx context.Context, db *gorm.DB, id string) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// GetOrCreateUser returns the user for email, creating it on first contact.
// The boolean reports whether the row was created by this call. A concurrent
// insert of the same address is resolved by re-reading the winner.
func GetOrCreateUser(ctx context.Context, db *gorm.DB, email string, name *string) (*domain.User, bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := GetUserByEmail(ctx, db, email)
	if err == nil {
		return u, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	now := time.Now().UTC()
	u = &domain.User{
		ID:          uuid.NewString(),
		Email:       email,
		Name:        name,
		Preferences: datatypes.JSON("{}"),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := db.WithContext(ctx).Create(u).Error; err != nil {
		if isUniqueViolation(err) {
			u, err = GetUserByEmail(ctx, db, email)
			return u, false, err
		}
		return nil, false, err
	}
	// Reload so DB defaults (timezone) are populated.
	u, err = GetUser(ctx, db, u.ID)
	return u, err == nil, err
}

// ListUsers returns every user ordered by creation time.
func ListUsers(ctx context.Context, db *gorm.DB) ([]domain.User, error) {
	var out []domain.User
	err := db.WithContext(ctx).Order("created_at ASC").Find(&out).Error
	return out, err
}

// SetLastCheckin advances the user's most recent check-in date
// (YYYY-MM-DD). Older dates leave the stored value unchanged.
func SetLastCheckin(ctx context.Context, db *gorm.DB, userID, date string) error {
	return db.WithContext(ctx).Model(&domain.User{}).
		Where("id = ? AND (last_checkin_at IS NULL OR last_checkin_at < ?)", userID, date).
		Updates(map[string]any{"last_checkin_at": date, "updated_at": time.Now().UTC()}).Error
}
