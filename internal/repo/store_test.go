package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tbourn/go-grocy-bot/internal/domain"
)

func TestStore_ProxiesRepository(t *testing.T) {
	db := newMemDB(t, &domain.Delivery{}, &domain.Dispatch{})
	ctx := context.Background()
	now := time.Now().UTC()
	var s Store

	if _, err := s.CreateDispatch(ctx, db, 1, "d", now, time.Minute); err != nil {
		t.Fatalf("CreateDispatch: %v", err)
	}
	if ok, err := s.ReclaimDispatch(ctx, db, 1, "d", now, time.Minute); err != nil || ok {
		t.Fatalf("ReclaimDispatch on a live record = %v, %v", ok, err)
	}
	if err := s.DeleteDispatch(ctx, db, 1, "d"); err != nil {
		t.Fatalf("DeleteDispatch: %v", err)
	}
	if _, err := s.CreateDispatch(ctx, db, 1, "d", now, time.Minute); errors.Is(err, ErrDuplicate) {
		t.Fatalf("record must be gone after delete, got %v", err)
	}

	if err := s.CreateDelivery(ctx, db, &domain.Delivery{ChatID: 1, Digest: "d", Status: domain.DeliverySent, Message: "m"}); err != nil {
		t.Fatalf("CreateDelivery: %v", err)
	}
	n, err := s.CountDeliveries(ctx, db, DeliveryFilter{ChatID: 1})
	if err != nil || n != 1 {
		t.Fatalf("CountDeliveries = %d, %v", n, err)
	}
	page, err := s.ListDeliveriesPage(ctx, db, DeliveryFilter{}, 0, 10)
	if err != nil || len(page) != 1 {
		t.Fatalf("ListDeliveriesPage = %v, %v", page, err)
	}

	count, latest, err := s.DeliveriesStats(ctx, db, DeliveryFilter{})
	if err != nil || count != 1 || latest == nil {
		t.Fatalf("DeliveriesStats = %d, %v, %v", count, latest, err)
	}
	byStatus, err := s.DeliveriesByStatus(ctx, db)
	if err != nil || len(byStatus) != 1 || byStatus[0].Status != domain.DeliverySent {
		t.Fatalf("DeliveriesByStatus = %v, %v", byStatus, err)
	}
	if _, err := s.PurgeExpiredDispatches(ctx, db, now); err != nil {
		t.Fatalf("PurgeExpiredDispatches: %v", err)
	}
	if n, err := s.PurgeDeliveries(ctx, db, now.Add(time.Hour)); err != nil || n != 1 {
		t.Fatalf("PurgeDeliveries = %d, %v", n, err)
	}
}
