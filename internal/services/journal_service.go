// Package services – JournalService
//
// This file implements JournalService, which persists the outcome of every
// notification attempt and decides whether a message is a repeat. A message
// counts as a repeat when the same digest was claimed for the same chat
// within the de-duplication window. Claims are Dispatch rows with an expiry;
// outcomes are append-only Delivery rows listed by the admin API.
//
// Observability: public methods are OpenTelemetry-instrumented; spans carry
// the chat id and digest prefix.
package services

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-grocy-bot/internal/domain"
	"github.com/tbourn/go-grocy-bot/internal/repo"
)

// JournalRepo defines the repository contract required by JournalService.
type JournalRepo interface {
	// CreateDispatch inserts a claim; repo.ErrDuplicate on conflict.
	CreateDispatch(ctx context.Context, db *gorm.DB, chatID int64, digest string, now time.Time, ttl time.Duration) (*domain.Dispatch, error)
	// ReclaimDispatch atomically renews an expired claim; false if it is live.
	ReclaimDispatch(ctx context.Context, db *gorm.DB, chatID int64, digest string, now time.Time, ttl time.Duration) (bool, error)
	// DeleteDispatch drops a claim.
	DeleteDispatch(ctx context.Context, db *gorm.DB, chatID int64, digest string) error
	// CreateDelivery appends a delivery row.
	CreateDelivery(ctx context.Context, db *gorm.DB, d *domain.Delivery) error
	// CountDeliveries returns the total for pagination.
	CountDeliveries(ctx context.Context, db *gorm.DB, f repo.DeliveryFilter) (int64, error)
	// ListDeliveriesPage returns one page, newest first.
	ListDeliveriesPage(ctx context.Context, db *gorm.DB, f repo.DeliveryFilter, offset, limit int) ([]domain.Delivery, error)
	// DeliveriesStats returns count and newest CreatedAt for ETags.
	DeliveriesStats(ctx context.Context, db *gorm.DB, f repo.DeliveryFilter) (int64, *time.Time, error)
	// DeliveriesByStatus groups the journal by status.
	DeliveriesByStatus(ctx context.Context, db *gorm.DB) ([]repo.StatusCount, error)
	// PurgeExpiredDispatches drops claims that expired at or before now.
	PurgeExpiredDispatches(ctx context.Context, db *gorm.DB, now time.Time) (int64, error)
	// PurgeDeliveries drops deliveries created before cutoff.
	PurgeDeliveries(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error)
}

// JournalService records notification deliveries.
type JournalService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the journal repository used by this service.
	Repo JournalRepo
	// Window is how long a digest stays claimed per chat. Zero disables
	// de-duplication; every Claim then succeeds.
	Window time.Duration
	// MaxMessageRunes caps stored message bodies.
	MaxMessageRunes int

	now func() time.Time
}

// NewJournalService constructs a JournalService.
func NewJournalService(db *gorm.DB, r JournalRepo, window time.Duration) *JournalService {
	return &JournalService{
		DB:              db,
		Repo:            r,
		Window:          window,
		MaxMessageRunes: 2000,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

func (s *JournalService) span(ctx context.Context, name string, chatID int64, digest string) (context.Context, trace.Span) {
	if len(digest) > 12 {
		digest = digest[:12]
	}
	return otel.Tracer("services/JournalService").Start(ctx, name,
		trace.WithAttributes(
			attribute.Int64("chat.id", chatID),
			attribute.String("digest", digest),
		),
	)
}

// Claim reserves (chatID, digest) for the window. It returns false when a
// live claim already exists.
func (s *JournalService) Claim(ctx context.Context, chatID int64, digest string) (bool, error) {
	if s.Window <= 0 {
		return true, nil
	}
	ctx, span := s.span(ctx, "Claim", chatID, digest)
	defer span.End()

	now := s.now()
	_, err := s.Repo.CreateDispatch(ctx, s.DB, chatID, digest, now, s.Window)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, repo.ErrDuplicate) {
		span.RecordError(err)
		return false, err
	}

	// The pair is taken; it is ours only if the existing claim has expired.
	ok, err := s.Repo.ReclaimDispatch(ctx, s.DB, chatID, digest, now, s.Window)
	if err != nil {
		span.RecordError(err)
		return false, err
	}
	return ok, nil
}

// Release drops a claim so the next identical message is delivered.
func (s *JournalService) Release(ctx context.Context, chatID int64, digest string) error {
	if s.Window <= 0 {
		return nil
	}
	ctx, span := s.span(ctx, "Release", chatID, digest)
	defer span.End()
	return s.Repo.DeleteDispatch(ctx, s.DB, chatID, digest)
}

// Record appends one delivery outcome.
func (s *JournalService) Record(ctx context.Context, chatID int64, digest, status, message string, sendErr error) error {
	ctx, span := s.span(ctx, "Record", chatID, digest)
	defer span.End()
	span.SetAttributes(attribute.String("status", status))

	d := &domain.Delivery{
		ChatID:    chatID,
		Digest:    digest,
		Status:    status,
		Message:   clipRunes(message, s.MaxMessageRunes),
		CreatedAt: s.now(),
	}
	if sendErr != nil {
		d.Error = clipRunes(sendErr.Error(), 500)
	}
	return s.Repo.CreateDelivery(ctx, s.DB, d)
}

// ListPage returns a page of deliveries matching f and the total count.
// Invalid page/pageSize fall back to 1 and 20.
func (s *JournalService) ListPage(ctx context.Context, f repo.DeliveryFilter, page, pageSize int) ([]domain.Delivery, int64, error) {
	ctx, span := otel.Tracer("services/JournalService").Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.Int64("chat.id", f.ChatID),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	total, err := s.Repo.CountDeliveries(ctx, s.DB, f)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Delivery{}, 0, nil
	}
	items, err := s.Repo.ListDeliveriesPage(ctx, s.DB, f, offset, pageSize)
	return items, total, err
}

// Version returns the number of deliveries matching f and the newest
// CreatedAt among them; together they change whenever the listing does.
func (s *JournalService) Version(ctx context.Context, f repo.DeliveryFilter) (int64, *time.Time, error) {
	return s.Repo.DeliveriesStats(ctx, s.DB, f)
}

// Summary counts deliveries per status.
func (s *JournalService) Summary(ctx context.Context) ([]repo.StatusCount, error) {
	ctx, span := otel.Tracer("services/JournalService").Start(ctx, "Summary")
	defer span.End()
	return s.Repo.DeliveriesByStatus(ctx, s.DB)
}

// Purge drops expired claims and deliveries older than retention. A
// non-positive retention keeps every delivery.
func (s *JournalService) Purge(ctx context.Context, retention time.Duration) (dispatches, deliveries int64, err error) {
	ctx, span := otel.Tracer("services/JournalService").Start(ctx, "Purge")
	defer span.End()

	now := s.now()
	if dispatches, err = s.Repo.PurgeExpiredDispatches(ctx, s.DB, now); err != nil {
		span.RecordError(err)
		return 0, 0, err
	}
	if retention <= 0 {
		return dispatches, 0, nil
	}
	if deliveries, err = s.Repo.PurgeDeliveries(ctx, s.DB, now.Add(-retention)); err != nil {
		span.RecordError(err)
		return dispatches, 0, err
	}
	return dispatches, deliveries, nil
}

func clipRunes(s string, max int) string {
	if max <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
