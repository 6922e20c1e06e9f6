// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the email audit log.
package repo

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tbourn/go-habit-mail/internal/domain"
)

// LogEmail appends one message to the audit log. intents may be nil; when
// set it is stored as JSON in parsed_intents.
func LogEmail(ctx context.Context, db *gorm.DB, userID *string, direction, subject, body string, intents any) (*domain.EmailLog, error) {
	e := &domain.EmailLog{
		ID:        uuid.NewString(),
		UserID:    userID,
		Direction: direction,
		Subject:   subject,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	}
	if intents != nil {
		raw, err := json.Marshal(intents)
		if err != nil {
			return nil, err
		}
		e.ParsedIntents = datatypes.JSON(raw)
	}
	if err := db.WithContext(ctx).Create(e).Error; err != nil {
		return nil, err
	}
	return e, nil
}

// HasEmailLog reports whether any message was logged for the user.
func HasEmailLog(ctx context.Context, db *gorm.DB, userID string) (bool, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.EmailLog{}).
		Where("user_id = ?", userID).
		Limit(1).
		Count(&n).Error
	return n > 0, err
}

// ListEmailLog returns the user's logged messages, oldest first.
func ListEmailLog(ctx context.Context, db *gorm.DB, userID string) ([]domain.EmailLog, error) {
	var out []domain.EmailLog
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&out).Error
	return out, err
}
