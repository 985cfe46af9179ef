package monitor

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-grocy-bot/internal/domain"
	"github.com/tbourn/go-grocy-bot/internal/grocy"
	"github.com/tbourn/go-grocy-bot/internal/observability"
	"github.com/tbourn/go-grocy-bot/internal/services"
)

// Watcher names, also used as worker metric labels.
const (
	WatchChores       = "chores"
	WatchStock        = "stock"
	WatchVolatile     = "volatile_stock"
	WatchShoppingList = "shopping_list"
	WatchTasks        = "tasks"
)

// Notification headers.
const (
	HeaderChoresOverdue    = "Chore(s) overdue:"
	HeaderProductsExpired  = "Product(s) expired:"
	HeaderProductsExpiring = "Product(s) expiring soon:"
)

// Notifier delivers a text message to every configured destination.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// Config tunes the monitor.
type Config struct {
	// Interval between the end of one poll and the start of the next.
	Interval time.Duration
	// DueSoonDays is the look-ahead window for expiring products.
	DueSoonDays int
	// RunTimeout bounds a single poll. Zero means no bound.
	RunTimeout time.Duration
	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time
	// Formatter renders notification lines. Defaults to English.
	Formatter *services.Formatter
}

type watcher interface {
	Start()
	Stop()
	Poll(ctx context.Context) error
	Status() Status
}

// Monitor owns one watcher per entity type.
type Monitor struct {
	cfg      Config
	api      grocy.API
	notifier Notifier
	fmt      *services.Formatter
	lg       zerolog.Logger

	watchers []watcher

	// Evaluation times of the previous chore and volatile snapshots. When
	// membership changes, old snapshots are filtered at the time they were
	// taken. Each is only touched by its own watcher's handlers.
	choresAt   time.Time
	volatileAt time.Time
}

// New builds a stopped monitor polling api and reporting through n.
func New(cfg Config, api grocy.API, n Notifier) *Monitor {
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.DueSoonDays < 0 {
		cfg.DueSoonDays = 0
	}
	if cfg.Formatter == nil {
		cfg.Formatter = services.NewFormatter("en", cfg.Clock)
	}
	m := &Monitor{
		cfg:      cfg,
		api:      api,
		notifier: n,
		fmt:      cfg.Formatter,
		lg:       log.With().Str("component", "monitor").Logger(),
	}

	m.watchers = []watcher{
		NewWatcher(WatcherConfig[domain.Chore]{
			Name:     WatchChores,
			Interval: cfg.Interval,
			Timeout:  cfg.RunTimeout,
			Fetch:    api.Chores,
			Identity: ChoreID,
			OnChange: m.onChores,
			OnPrime:  func(_ context.Context, items []domain.Chore) { m.choreGauges(items, cfg.Clock()) },
		}),
		NewWatcher(WatcherConfig[domain.Product]{
			Name:     WatchStock,
			Interval: cfg.Interval,
			Timeout:  cfg.RunTimeout,
			Fetch:    api.Stock,
			Identity: ProductID,
			OnChange: m.onStock,
			OnPrime:  func(_ context.Context, items []domain.Product) { stockGauges(items) },
		}),
		NewWatcher(WatcherConfig[domain.VolatileProduct]{
			Name:     WatchVolatile,
			Interval: cfg.Interval,
			Timeout:  cfg.RunTimeout,
			Fetch: func(ctx context.Context) ([]domain.VolatileProduct, error) {
				return api.VolatileStock(ctx, cfg.DueSoonDays)
			},
			Identity: VolatileProductID,
			OnChange: m.onVolatile,
			OnPrime: func(_ context.Context, items []domain.VolatileProduct) {
				m.volatileGauges(items, cfg.Clock())
			},
		}),
		NewWatcher(WatcherConfig[domain.ShoppingListItem]{
			Name:     WatchShoppingList,
			Interval: cfg.Interval,
			Timeout:  cfg.RunTimeout,
			Fetch:    api.ShoppingList,
			Identity: ShoppingListItemID,
			OnChange: m.onShoppingList,
			OnPrime:  func(_ context.Context, items []domain.ShoppingListItem) { shoppingGauges(items) },
		}),
		NewWatcher(WatcherConfig[domain.Task]{
			Name:     WatchTasks,
			Interval: cfg.Interval,
			Timeout:  cfg.RunTimeout,
			Fetch:    api.Tasks,
			Identity: TaskID,
			OnChange: m.onTasks,
			OnPrime:  func(_ context.Context, items []domain.Task) { observability.TasksTotal.Set(float64(len(items))) },
		}),
	}
	return m
}

// Start starts every watcher. Each one polls immediately.
func (m *Monitor) Start() {
	m.lg.Info().Dur("interval", m.cfg.Interval).Int("watchers", len(m.watchers)).Msg("monitor starting")
	for _, w := range m.watchers {
		w.Start()
	}
}

// Stop stops every watcher. In-flight polls finish but do not reschedule.
func (m *Monitor) Stop() {
	for _, w := range m.watchers {
		w.Stop()
	}
	m.lg.Info().Msg("monitor stopped")
}

// Status reports every watcher in a fixed order.
func (m *Monitor) Status() []Status {
	out := make([]Status, 0, len(m.watchers))
	for _, w := range m.watchers {
		out = append(out, w.Status())
	}
	return out
}

// PollAll runs one cycle of every watcher and joins their errors.
func (m *Monitor) PollAll(ctx context.Context) error {
	var errs []error
	for _, w := range m.watchers {
		if err := w.Poll(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// notifyItems sends header plus one line per item; empty deltas send nothing.
func notifyItems[T any](ctx context.Context, m *Monitor, header string, items []T, render func(T) string) error {
	if len(items) == 0 {
		return nil
	}
	return m.notifier.Notify(ctx, services.Message(header, services.Lines(items, render)))
}

func (m *Monitor) choreGauges(chores []domain.Chore, now time.Time) []domain.Chore {
	m.choresAt = now
	overdue := domain.OverdueChores(chores, now)
	observability.ChoresTotal.Set(float64(len(chores)))
	observability.ChoresOverdue.Set(float64(len(overdue)))
	return overdue
}

func (m *Monitor) onChores(ctx context.Context, old, new []domain.Chore) error {
	prev, now := m.choresAt, m.cfg.Clock()
	overdue := m.choreGauges(new, now)

	fresh, err := NewItems(domain.OverdueChores(old, prev), overdue, ChoreID)
	if err != nil {
		return err
	}
	return notifyItems(ctx, m, HeaderChoresOverdue, fresh, m.fmt.Chore)
}

func stockGauges(products []domain.Product) {
	observability.ProductInventory.Reset()
	for _, p := range products {
		observability.ProductInventory.WithLabelValues(p.Name).Set(p.AvailableAmount)
	}
}

func (m *Monitor) onStock(_ context.Context, _, new []domain.Product) error {
	stockGauges(new)
	return nil
}

// stocked drops missing entries; they carry no amount or best-before date.
func stocked(items []domain.VolatileProduct) []domain.Product {
	kept := make([]domain.VolatileProduct, 0, len(items))
	for _, it := range items {
		if it.Status != domain.StatusMissing {
			kept = append(kept, it)
		}
	}
	return domain.Products(kept)
}

// volatileGauges returns the expired and expiring products of items.
func (m *Monitor) volatileGauges(items []domain.VolatileProduct, now time.Time) (expired, expiring []domain.Product) {
	m.volatileAt = now
	products := stocked(items)
	for _, p := range products {
		observability.ProductInventory.WithLabelValues(p.Name).Set(p.AvailableAmount)
	}
	expired = domain.ExpiredProducts(products, now)
	expiring = domain.ExpiringProducts(products, now, m.cfg.DueSoonDays)
	observability.ProductsExpired.Set(float64(len(expired)))
	observability.ProductsExpiring.Set(float64(len(expiring)))
	return expired, expiring
}

func (m *Monitor) onVolatile(ctx context.Context, old, new []domain.VolatileProduct) error {
	prev, now := m.volatileAt, m.cfg.Clock()
	expired, expiring := m.volatileGauges(new, now)
	oldProducts := stocked(old)

	var errs []error
	freshExpired, err := NewItems(domain.ExpiredProducts(oldProducts, prev), expired, ProductID)
	if err != nil {
		return err
	}
	if err := notifyItems(ctx, m, HeaderProductsExpired, freshExpired, m.fmt.Product); err != nil {
		errs = append(errs, err)
	}

	freshExpiring, err := NewItems(domain.ExpiringProducts(oldProducts, prev, m.cfg.DueSoonDays), expiring, ProductID)
	if err != nil {
		return errors.Join(append(errs, err)...)
	}
	if err := notifyItems(ctx, m, HeaderProductsExpiring, freshExpiring, m.fmt.Product); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ShoppingListName labels a shopping list in gauges and messages.
func ShoppingListName(id int) string {
	if id <= grocy.DefaultShoppingListID {
		return "Shopping List"
	}
	return "Shopping List " + strconv.Itoa(id)
}

func shoppingGauges(items []domain.ShoppingListItem) {
	counts := map[string]int{ShoppingListName(grocy.DefaultShoppingListID): 0}
	for _, it := range items {
		counts[ShoppingListName(it.ShoppingListID)]++
	}
	observability.ShoppingListItems.Reset()
	for name, n := range counts {
		observability.ShoppingListItems.WithLabelValues(name).Set(float64(n))
	}
}

func (m *Monitor) onShoppingList(_ context.Context, _, new []domain.ShoppingListItem) error {
	shoppingGauges(new)
	return nil
}

func (m *Monitor) onTasks(_ context.Context, _, new []domain.Task) error {
	observability.TasksTotal.Set(float64(len(new)))
	return nil
}
