// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the row-level operations behind the
// inbound mail queue. Policy (retry ceiling, backoff, clock) lives in the
// queue package.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-habit-mail/internal/domain"
)

// InsertInbound stores a newly discovered email. Returns ErrDuplicate when
// the message id is already known.
func InsertInbound(ctx context.Context, db *gorm.DB, e *domain.InboundEmail) error {
	if err := db.WithContext(ctx).Create(e).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// InboundExists reports whether messageID has been recorded.
func InboundExists(ctx context.Context, db *gorm.DB, messageID string) (bool, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.InboundEmail{}).
		Where("message_id = ?", messageID).
		Count(&n).Error
	return n > 0, err
}

// GetInbound fetches a queue row by id.
func GetInbound(ctx context.Context, db *gorm.DB, id string) (*domain.InboundEmail, error) {
	var e domain.InboundEmail
	if err := db.WithContext(ctx).First(&e, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &e, nil
}

// ResetInboundStatus moves every row in status from to status to and returns
// the number of rows changed.
func ResetInboundStatus(ctx context.Context, db *gorm.DB, from, to string) (int64, error) {
	res := db.WithContext(ctx).Model(&domain.InboundEmail{}).
		Where("status = ?", from).
		Update("status", to)
	return res.RowsAffected, res.Error
}

// InboundCandidates returns up to limit rows ready to process, oldest
// received first: every new row, plus failed rows whose retry_count k is
// below len(retryCutoffs) and whose last attempt is at or before
// retryCutoffs[k]. A limit <= 0 means no limit.
func InboundCandidates(ctx context.Context, db *gorm.DB, limit int, retryCutoffs []time.Time) ([]domain.InboundEmail, error) {
	ready := db.Where("status = ?", domain.EmailStatusNew)
	for k, cutoff := range retryCutoffs {
		ready = ready.Or("status = ? AND retry_count = ? AND (processed_at IS NULL OR processed_at <= ?)",
			domain.EmailStatusFailed, k, cutoff.UTC())
	}
	q := db.WithContext(ctx).Where(ready).Order("received_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []domain.InboundEmail
	err := q.Find(&out).Error
	return out, err
}

// ClaimInbound moves a row to processing only if it is still new or
// retryable. It reports whether this caller won the claim.
func ClaimInbound(ctx context.Context, db *gorm.DB, id string, maxRetries int) (bool, error) {
	res := db.WithContext(ctx).Model(&domain.InboundEmail{}).
		Where("id = ? AND (status = ? OR (status = ? AND retry_count < ?))",
			id, domain.EmailStatusNew, domain.EmailStatusFailed, maxRetries).
		Update("status", domain.EmailStatusProcessing)
	return res.RowsAffected == 1, res.Error
}

// MarkInboundReplied finishes a row successfully and clears its error.
func MarkInboundReplied(ctx context.Context, db *gorm.DB, id string, at time.Time) error {
	return finishInbound(ctx, db, id, map[string]any{
		"status":       domain.EmailStatusReplied,
		"processed_at": at.UTC(),
		"error":        nil,
	})
}

// MarkInboundFailed records a failure and bumps retry_count.
func MarkInboundFailed(ctx context.Context, db *gorm.DB, id, msg string, at time.Time) error {
	return finishInbound(ctx, db, id, map[string]any{
		"status":       domain.EmailStatusFailed,
		"processed_at": at.UTC(),
		"error":        msg,
		"retry_count":  gorm.Expr("retry_count + 1"),
	})
}

func finishInbound(ctx context.Context, db *gorm.DB, id string, fields map[string]any) error {
	res := db.WithContext(ctx).Model(&domain.InboundEmail{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// InboundStatusCount is one bucket of CountInboundByStatus.
type InboundStatusCount struct {
	Status string `gorm:"column:effective_status"`
	Count  int64  `gorm:"column:count"`
}

// CountInboundByStatus groups rows by effective status, where failed rows at
// or above maxRetries are reported as "dead_letter".
func CountInboundByStatus(ctx context.Context, db *gorm.DB, maxRetries int) ([]InboundStatusCount, error) {
	var out []InboundStatusCount
	err := db.WithContext(ctx).Model(&domain.InboundEmail{}).
		Select("CASE WHEN status = ? AND retry_count >= ? THEN 'dead_letter' ELSE status END AS effective_status, COUNT(*) AS count",
			domain.EmailStatusFailed, maxRetries).
		Group("effective_status").
		Scan(&out).Error
	return out, err
}

// ListInboundPage returns rows newest first, optionally filtered by effective
// status, with the total matching count.
func ListInboundPage(ctx context.Context, db *gorm.DB, status string, maxRetries, offset, limit int) ([]domain.InboundEmail, int64, error) {
	q := db.WithContext(ctx).Model(&domain.InboundEmail{})
	switch status {
	case "":
	case "dead_letter":
		q = q.Where("status = ? AND retry_count >= ?", domain.EmailStatusFailed, maxRetries)
	case domain.EmailStatusFailed:
		q = q.Where("status = ? AND retry_count < ?", domain.EmailStatusFailed, maxRetries)
	default:
		q = q.Where("status = ?", status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var out []domain.InboundEmail
	err := q.Order("received_at DESC").Offset(offset).Limit(limit).Find(&out).Error
	return out, total, err
}
