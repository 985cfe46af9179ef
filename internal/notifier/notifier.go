// Package notifier fans a text message out to every configured chat.
//
// Delivery to one chat never blocks or cancels delivery to the others.
// Failures are logged, counted in grocybot_notifications_total and joined
// into the returned error. An optional Journal records every attempt and
// suppresses repeats of the same message to the same chat.
package notifier

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-grocy-bot/internal/domain"
	"github.com/tbourn/go-grocy-bot/internal/observability"
)

// ErrNoDestinations is returned by New when no chat is configured.
var ErrNoDestinations = errors.New("notifier: no destinations configured")

// Sender delivers a text message to a single chat.
type Sender interface {
	SendText(ctx context.Context, chatID int64, text string) error
}

// Journal records deliveries and de-duplicates them.
type Journal interface {
	// Claim reserves (chatID, digest). It returns false when the same digest
	// was already claimed for chatID within the journal's window.
	Claim(ctx context.Context, chatID int64, digest string) (bool, error)
	// Release drops a claim so a failed delivery can be retried.
	Release(ctx context.Context, chatID int64, digest string) error
	// Record stores the outcome of one attempt.
	Record(ctx context.Context, chatID int64, digest, status, message string, sendErr error) error
}

// Notifier delivers messages to a fixed set of chats.
type Notifier struct {
	sender  Sender
	chatIDs []int64
	journal Journal
	lg      zerolog.Logger
}

// Option customizes a Notifier.
type Option func(*Notifier)

// WithJournal enables delivery recording and de-duplication.
func WithJournal(j Journal) Option {
	return func(n *Notifier) { n.journal = j }
}

// New returns a Notifier delivering through sender to chatIDs. Duplicate
// chat ids are collapsed.
func New(sender Sender, chatIDs []int64, opts ...Option) (*Notifier, error) {
	if len(chatIDs) == 0 {
		return nil, ErrNoDestinations
	}
	seen := make(map[int64]struct{}, len(chatIDs))
	ids := make([]int64, 0, len(chatIDs))
	for _, id := range chatIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	n := &Notifier{
		sender:  sender,
		chatIDs: ids,
		lg:      log.With().Str("component", "notifier").Logger(),
	}
	for _, o := range opts {
		o(n)
	}
	return n, nil
}

// Destinations returns the configured chat ids.
func (n *Notifier) Destinations() []int64 {
	return append([]int64(nil), n.chatIDs...)
}

// Digest identifies a message body for de-duplication.
func Digest(message string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(message)))
	return hex.EncodeToString(sum[:])
}

// Notify sends message to every destination and returns the joined errors
// of the failed ones.
func (n *Notifier) Notify(ctx context.Context, message string) error {
	digest := Digest(message)
	var errs []error
	for _, chatID := range n.chatIDs {
		if err := n.deliver(ctx, chatID, digest, message); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (n *Notifier) deliver(ctx context.Context, chatID int64, digest, message string) error {
	lg := n.lg.With().Int64("chat_id", chatID).Logger()

	if n.journal != nil {
		fresh, err := n.journal.Claim(ctx, chatID, digest)
		if err != nil {
			// the journal is advisory; deliver anyway
			lg.Warn().Err(err).Msg("journal claim failed")
		} else if !fresh {
			observability.Notifications.WithLabelValues(domain.DeliverySuppressed).Inc()
			lg.Debug().Str("digest", digest[:12]).Msg("duplicate notification suppressed")
			n.record(ctx, lg, chatID, digest, domain.DeliverySuppressed, message, nil)
			return nil
		}
	}

	err := n.sender.SendText(ctx, chatID, message)
	if err != nil {
		observability.Notifications.WithLabelValues(domain.DeliveryFailed).Inc()
		lg.Error().Err(err).Msg("notification failed")
		if n.journal != nil {
			if rerr := n.journal.Release(ctx, chatID, digest); rerr != nil {
				lg.Warn().Err(rerr).Msg("journal release failed")
			}
		}
		n.record(ctx, lg, chatID, digest, domain.DeliveryFailed, message, err)
		return fmt.Errorf("chat %d: %w", chatID, err)
	}
	observability.Notifications.WithLabelValues(domain.DeliverySent).Inc()
	lg.Debug().Msg("notification sent")
	n.record(ctx, lg, chatID, digest, domain.DeliverySent, message, nil)
	return nil
}

func (n *Notifier) record(ctx context.Context, lg zerolog.Logger, chatID int64, digest, status, message string, sendErr error) {
	if n.journal == nil {
		return
	}
	if err := n.journal.Record(ctx, chatID, digest, status, message, sendErr); err != nil {
		lg.Warn().Err(err).Msg("journal record failed")
	}
}
