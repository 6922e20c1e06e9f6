// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for pending
// actions: suggestions that wait for a yes/no reply.
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

// CreatePending stores a suggested action and expires the user's older open
// ones, so at most one suggestion is open at a time. payload is marshaled to
// JSON.
func CreatePending(ctx context.Context, db *gorm.DB, userID, actionType string, payload any, emailID *string) (*domain.PendingAction, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	p := &domain.PendingAction{
		ID:                 uuid.NewString(),
		UserID:             userID,
		ActionType:         actionType,
		ActionData:         datatypes.JSON(raw),
		SuggestedInEmailID: emailID,
		CreatedAt:          now,
	}
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&domain.PendingAction{}).
			Where("user_id = ? AND resolved_at IS NULL", userID).
			Updates(map[string]any{
				"resolved_at":     now,
				"resolved_action": domain.ResolvedExpired,
			}).Error; err != nil {
			return err
		}
		return tx.Create(p).Error
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// LatestOpenPending returns the user's most recent unresolved action or
// ErrNotFound.
func LatestOpenPending(ctx context.Context, db *gorm.DB, userID string) (*domain.PendingAction, error) {
	var p domain.PendingAction
	err := db.WithContext(ctx).
		Where("user_id = ? AND resolved_at IS NULL", userID).
		Order("created_at DESC").
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ResolvePending marks an open action resolved. Resolving twice returns
// ErrNotFound, which keeps the action single-use.
func ResolvePending(ctx context.Context, db *gorm.DB, id, resolution string, at time.Time) error {
	res := db.WithContext(ctx).Model(&domain.PendingAction{}).
		Where("id = ? AND resolved_at IS NULL", id).
		Updates(map[string]any{
			"resolved_at":     at.UTC(),
			"resolved_action": resolution,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
