package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-grocy-bot/internal/domain"
)

// Store adapts the repository free functions to the method set expected by
// services.JournalService, so callers can inject repo.Store{} while tests
// inject fakes.
type Store struct{}

// CreateDispatch proxies CreateDispatch.
func (Store) CreateDispatch(ctx context.Context, db *gorm.DB, chatID int64, digest string, now time.Time, ttl time.Duration) (*domain.Dispatch, error) {
	return CreateDispatch(ctx, db, chatID, digest, now, ttl)
}

// ReclaimDispatch proxies ReclaimDispatch.
func (Store) ReclaimDispatch(ctx context.Context, db *gorm.DB, chatID int64, digest string, now time.Time, ttl time.Duration) (bool, error) {
	return ReclaimDispatch(ctx, db, chatID, digest, now, ttl)
}

// DeleteDispatch proxies DeleteDispatch.
func (Store) DeleteDispatch(ctx context.Context, db *gorm.DB, chatID int64, digest string) error {
	return DeleteDispatch(ctx, db, chatID, digest)
}

// CreateDelivery proxies CreateDelivery.
func (Store) CreateDelivery(ctx context.Context, db *gorm.DB, d *domain.Delivery) error {
	return CreateDelivery(ctx, db, d)
}

// CountDeliveries proxies CountDeliveries (pagination support).
func (Store) CountDeliveries(ctx context.Context, db *gorm.DB, f DeliveryFilter) (int64, error) {
	return CountDeliveries(ctx, db, f)
}

// ListDeliveriesPage proxies ListDeliveriesPage (pagination support).
func (Store) ListDeliveriesPage(ctx context.Context, db *gorm.DB, f DeliveryFilter, offset, limit int) ([]domain.Delivery, error) {
	return ListDeliveriesPage(ctx, db, f, offset, limit)
}

// DeliveriesStats proxies DeliveriesStats (ETag support).
func (Store) DeliveriesStats(ctx context.Context, db *gorm.DB, f DeliveryFilter) (int64, *time.Time, error) {
	return DeliveriesStats(ctx, db, f)
}

// DeliveriesByStatus proxies DeliveriesByStatus.
func (Store) DeliveriesByStatus(ctx context.Context, db *gorm.DB) ([]StatusCount, error) {
	return DeliveriesByStatus(ctx, db)
}

// PurgeExpiredDispatches proxies PurgeExpiredDispatches.
func (Store) PurgeExpiredDispatches(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	return PurgeExpiredDispatches(ctx, db, now)
}

// PurgeDeliveries proxies PurgeDeliveries.
func (Store) PurgeDeliveries(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error) {
	return PurgeDeliveries(ctx, db, cutoff)
}
