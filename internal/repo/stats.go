// Package repo implements the data persistence layer for the notification
// journal, backed by GORM. This file provides small aggregate queries used
// for conditional responses (ETag generation) in the HTTP layer and for the
// /stats bot command.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-grocy-bot/internal/domain"
)

// DeliveriesStats returns the number of deliveries matching f and the
// greatest CreatedAt among them. When nothing matches, count is 0 and
// latest is nil.
func DeliveriesStats(ctx context.Context, db *gorm.DB, f DeliveryFilter) (count int64, latest *time.Time, err error) {
	q := f.apply(db.WithContext(ctx).Model(&domain.Delivery{}))

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest created_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		CreatedAt time.Time
	}
	if err = f.apply(db.WithContext(ctx).Model(&domain.Delivery{})).
		Select("created_at").Order("created_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.CreatedAt, nil
}

// StatusCount is one row of DeliveriesByStatus.
type StatusCount struct {
	Status string
	Total  int64
}

// DeliveriesByStatus groups all deliveries by status.
func DeliveriesByStatus(ctx context.Context, db *gorm.DB) ([]StatusCount, error) {
	var out []StatusCount
	err := db.WithContext(ctx).
		Model(&domain.Delivery{}).
		Select("status, COUNT(*) AS total").
		Group("status").
		Order("status").
		Scan(&out).Error
	return out, err
}
