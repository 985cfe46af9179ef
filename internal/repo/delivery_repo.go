// Package repo implements the data persistence layer for the notification
// journal, backed by GORM. This file provides repository functions for the
// Delivery model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations. They
// follow the "thin repository" approach: no business logic, only persistence
// and query composition.
//
// Error semantics:
//   - When a delivery is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors the raw gorm error is propagated.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-grocy-bot/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = gorm.ErrRecordNotFound

// DeliveryFilter narrows delivery queries. Zero values match everything.
type DeliveryFilter struct {
	ChatID int64
	Status string
}

func (f DeliveryFilter) apply(q *gorm.DB) *gorm.DB {
	if f.ChatID != 0 {
		q = q.Where("chat_id = ?", f.ChatID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	return q
}

// CreateDelivery appends one delivery attempt. The ID is a random UUID and
// CreatedAt is set to UTC now when unset.
func CreateDelivery(ctx context.Context, db *gorm.DB, d *domain.Delivery) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Create(d).Error
}

// GetDelivery fetches a delivery by ID.
func GetDelivery(ctx context.Context, db *gorm.DB, id string) (*domain.Delivery, error) {
	var d domain.Delivery
	if err := db.WithContext(ctx).Where("id = ?", id).First(&d).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

// CountDeliveries returns the number of deliveries matching f.
func CountDeliveries(ctx context.Context, db *gorm.DB, f DeliveryFilter) (int64, error) {
	var total int64
	err := f.apply(db.WithContext(ctx).Model(&domain.Delivery{})).Count(&total).Error
	return total, err
}

// ListDeliveriesPage returns a page of deliveries matching f, most recent
// first. The caller computes offset and limit.
func ListDeliveriesPage(ctx context.Context, db *gorm.DB, f DeliveryFilter, offset, limit int) ([]domain.Delivery, error) {
	var out []domain.Delivery
	err := f.apply(db.WithContext(ctx)).
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// PurgeDeliveries deletes deliveries created before cutoff.
func PurgeDeliveries(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&domain.Delivery{})
	return res.RowsAffected, res.Error
}
