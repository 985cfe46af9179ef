// Package repo implements the data persistence layer for the notification
// journal, backed by GORM. This file provides repository helpers for the
// Dispatch model used to suppress repeated notifications within a window.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-grocy-bot/internal/domain"
)

// ErrDuplicate indicates that a dispatch record already exists for the given
// (chat_id, digest) pair.
var ErrDuplicate = errors.New("duplicate")

// CreateDispatch inserts a record live until now+ttl and returns
// ErrDuplicate on unique violation.
func CreateDispatch(ctx context.Context, db *gorm.DB, chatID int64, digest string, now time.Time, ttl time.Duration) (*domain.Dispatch, error) {
	rec := &domain.Dispatch{
		ID:        uuid.NewString(),
		ChatID:    chatID,
		Digest:    digest,
		CreatedAt: now.UTC(),
		ExpiresAt: now.UTC().Add(ttl),
	}
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return rec, nil
}

// ReclaimDispatch renews an expired record for (chatID, digest) until
// now+ttl in a single statement. It reports false when the record is still
// live or no longer exists.
func ReclaimDispatch(ctx context.Context, db *gorm.DB, chatID int64, digest string, now time.Time, ttl time.Duration) (bool, error) {
	now = now.UTC()
	res := db.WithContext(ctx).
		Model(&domain.Dispatch{}).
		Where("chat_id = ? AND digest = ? AND expires_at <= ?", chatID, digest, now).
		Updates(map[string]any{"created_at": now, "expires_at": now.Add(ttl)})
	return res.RowsAffected == 1, res.Error
}

// DeleteDispatch removes the record for (chatID, digest), live or not.
func DeleteDispatch(ctx context.Context, db *gorm.DB, chatID int64, digest string) error {
	return db.WithContext(ctx).
		Where("chat_id = ? AND digest = ?", chatID, digest).
		Delete(&domain.Dispatch{}).Error
}

// PurgeExpiredDispatches deletes records that expired at or before now and
// returns how many were removed.
func PurgeExpiredDispatches(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Where("expires_at <= ?", now).
		Delete(&domain.Dispatch{})
	return res.RowsAffected, res.Error
}

// isUniqueViolation recognizes UNIQUE failures; glebarez/sqlite often
// returns them as plain-text errors.
func isUniqueViolation(err error) bool {
	low := strings.ToLower(err.Error())
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique")
}
