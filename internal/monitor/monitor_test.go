package monitor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tbourn/go-grocy-bot/internal/domain"
	"github.com/tbourn/go-grocy-bot/internal/grocy"
	"github.com/tbourn/go-grocy-bot/internal/observability"
	"github.com/tbourn/go-grocy-bot/internal/worker"
)

// ----- Fakes -----

type fakeAPI struct {
	mu       sync.Mutex
	chores   []domain.Chore
	stock    []domain.Product
	volatile []domain.VolatileProduct
	shopping []domain.ShoppingListItem
	tasks    []domain.Task
	dueSoon  int
}

var _ grocy.API = (*fakeAPI)(nil)

func (a *fakeAPI) Chores(context.Context) ([]domain.Chore, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]domain.Chore(nil), a.chores...), nil
}
func (a *fakeAPI) Chore(context.Context, int) (*domain.Chore, error) { return nil, grocy.ErrNotFound }
func (a *fakeAPI) Stock(context.Context) ([]domain.Product, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]domain.Product(nil), a.stock...), nil
}
func (a *fakeAPI) Products(context.Context) ([]domain.Product, error) { return nil, nil }
func (a *fakeAPI) Product(context.Context, int) (*domain.Product, error) {
	return nil, grocy.ErrNotFound
}
func (a *fakeAPI) VolatileStock(_ context.Context, days int) ([]domain.VolatileProduct, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.dueSoon = days
	return append([]domain.VolatileProduct(nil), a.volatile...), nil
}
func (a *fakeAPI) ExpiringProducts(context.Context, int) ([]domain.Product, error) { return nil, nil }
func (a *fakeAPI) ExpiredProducts(context.Context) ([]domain.Product, error)       { return nil, nil }
func (a *fakeAPI) MissingProducts(context.Context) ([]domain.Product, error)       { return nil, nil }
func (a *fakeAPI) ShoppingList(context.Context) ([]domain.ShoppingListItem, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]domain.ShoppingListItem(nil), a.shopping...), nil
}
func (a *fakeAPI) Tasks(context.Context) ([]domain.Task, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]domain.Task(nil), a.tasks...), nil
}
func (a *fakeAPI) LastDBChanged(context.Context) (time.Time, error) { return time.Time{}, nil }
func (a *fakeAPI) AddProduct(context.Context, int, float64, time.Time) error {
	return nil
}
func (a *fakeAPI) AddProductToShoppingList(context.Context, int, int, float64) error {
	return nil
}
func (a *fakeAPI) RemoveProductInShoppingList(context.Context, int, int, float64) error {
	return nil
}
func (a *fakeAPI) AddMissingProductsToShoppingList(context.Context, int) error { return nil }

type fakeNotifier struct {
	mu   sync.Mutex
	msgs []string
	err  error
}

func (n *fakeNotifier) Notify(_ context.Context, msg string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, msg)
	return n.err
}

func (n *fakeNotifier) messages() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.msgs...)
}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func at(y int, m time.Month, d, h int) *time.Time {
	t := time.Date(y, m, d, h, 0, 0, 0, time.UTC)
	return &t
}

func newTestMonitor(api *fakeAPI, n *fakeNotifier) (*Monitor, *testClock) {
	clk := &testClock{t: time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)}
	return New(Config{Interval: time.Hour, DueSoonDays: 5, Clock: clk.Now}, api, n), clk
}

func (m *Monitor) pollOne(t *testing.T, name string) {
	t.Helper()
	for _, w := range m.watchers {
		if w.Status().Name == name {
			if err := w.Poll(context.Background()); err != nil {
				t.Fatalf("poll %s: %v", name, err)
			}
			return
		}
	}
	t.Fatalf("no watcher %q", name)
}

// ----- Tests -----

func TestMonitor_PrimingSetsGaugesOnly(t *testing.T) {
	api := &fakeAPI{
		chores: []domain.Chore{
			{ID: 1, Name: "Vacuum", NextEstimatedExecutionTime: at(2024, 5, 9, 10)},
			{ID: 2, Name: "Windows", NextEstimatedExecutionTime: at(2024, 6, 1, 10)},
		},
		tasks: []domain.Task{{ID: 1, Name: "Call plumber"}},
	}
	n := &fakeNotifier{}
	m, _ := newTestMonitor(api, n)

	if err := m.PollAll(context.Background()); err != nil {
		t.Fatalf("PollAll: %v", err)
	}
	if msgs := n.messages(); len(msgs) != 0 {
		t.Fatalf("priming sent notifications: %q", msgs)
	}
	if got := testutil.ToFloat64(observability.ChoresTotal); got != 2 {
		t.Fatalf("chores_total = %v", got)
	}
	if got := testutil.ToFloat64(observability.ChoresOverdue); got != 1 {
		t.Fatalf("chores_overdue = %v", got)
	}
	if got := testutil.ToFloat64(observability.TasksTotal); got != 1 {
		t.Fatalf("tasks_total = %v", got)
	}
	if api.dueSoon != 5 {
		t.Fatalf("volatile stock fetched with due_soon_days=%d", api.dueSoon)
	}
}

func TestMonitor_NewlyOverdueChoreNotifiesOnce(t *testing.T) {
	api := &fakeAPI{chores: []domain.Chore{
		{ID: 1, Name: "Vacuum", NextEstimatedExecutionTime: at(2024, 5, 9, 10)},
	}}
	n := &fakeNotifier{}
	m, _ := newTestMonitor(api, n)

	m.pollOne(t, WatchChores)
	api.chores = append(api.chores, domain.Chore{ID: 2, Name: "Dishes", NextEstimatedExecutionTime: at(2024, 5, 10, 8)})
	m.pollOne(t, WatchChores)
	m.pollOne(t, WatchChores)

	msgs := n.messages()
	if len(msgs) != 1 {
		t.Fatalf("messages = %q, want one", msgs)
	}
	if !strings.HasPrefix(msgs[0], HeaderChoresOverdue) || !strings.Contains(msgs[0], "Dishes") {
		t.Fatalf("unexpected message %q", msgs[0])
	}
	if strings.Contains(msgs[0], "Vacuum") {
		t.Fatalf("already overdue chore re-announced: %q", msgs[0])
	}
}

func TestMonitor_SameIdentitiesFireNoCallback(t *testing.T) {
	api := &fakeAPI{
		chores: []domain.Chore{{ID: 1, Name: "Laundry", NextEstimatedExecutionTime: at(2024, 5, 9, 10)}},
		stock:  []domain.Product{{ID: 1, Name: "Flour", AvailableAmount: 2}},
	}
	n := &fakeNotifier{}
	m, clk := newTestMonitor(api, n)

	m.pollOne(t, WatchChores)
	m.pollOne(t, WatchStock)

	api.chores[0].NextEstimatedExecutionTime = at(2024, 5, 17, 10)
	api.stock[0].AvailableAmount = 5
	clk.Advance(7 * time.Hour)
	m.pollOne(t, WatchChores)
	m.pollOne(t, WatchStock)

	for _, s := range m.Status() {
		if (s.Name == WatchChores || s.Name == WatchStock) && s.Changes != 0 {
			t.Fatalf("%s: changes=%d with an identical identity set", s.Name, s.Changes)
		}
	}
	if msgs := n.messages(); len(msgs) != 0 {
		t.Fatalf("messages = %q", msgs)
	}
	if got := testutil.ToFloat64(observability.ProductInventory.WithLabelValues("Flour")); got != 2 {
		t.Fatalf("inventory(Flour) = %v, want the primed value", got)
	}
}

func TestMonitor_NewChoreNotOverdueSendsNothing(t *testing.T) {
	api := &fakeAPI{chores: []domain.Chore{{ID: 1, Name: "Vacuum"}}}
	n := &fakeNotifier{}
	m, _ := newTestMonitor(api, n)

	m.pollOne(t, WatchChores)
	api.chores = append(api.chores, domain.Chore{ID: 2, Name: "Future", NextEstimatedExecutionTime: at(2024, 7, 1, 0)})
	m.pollOne(t, WatchChores)

	if msgs := n.messages(); len(msgs) != 0 {
		t.Fatalf("messages = %q", msgs)
	}
	if got := testutil.ToFloat64(observability.ChoresTotal); got != 2 {
		t.Fatalf("chores_total = %v", got)
	}
}

func TestMonitor_VolatileExpiredAndExpiring(t *testing.T) {
	api := &fakeAPI{volatile: []domain.VolatileProduct{
		{Product: domain.Product{ID: 1, Name: "Milk", AvailableAmount: 1, BestBeforeDate: *at(2024, 5, 12, 0)}, Status: domain.StatusExpiring},
	}}
	n := &fakeNotifier{}
	m, _ := newTestMonitor(api, n)

	m.pollOne(t, WatchVolatile)
	api.volatile = append(api.volatile,
		domain.VolatileProduct{Product: domain.Product{ID: 2, Name: "Yogurt", AvailableAmount: 2, BestBeforeDate: *at(2024, 5, 1, 0)}, Status: domain.StatusExpired},
		domain.VolatileProduct{Product: domain.Product{ID: 3, Name: "Cheese", AvailableAmount: 1, BestBeforeDate: *at(2024, 5, 14, 0)}, Status: domain.StatusExpiring},
		domain.VolatileProduct{Product: domain.Product{ID: 4, Name: "Eggs"}, Status: domain.StatusMissing},
	)
	m.pollOne(t, WatchVolatile)

	msgs := n.messages()
	if len(msgs) != 2 {
		t.Fatalf("messages = %q, want expired and expiring", msgs)
	}
	if !strings.HasPrefix(msgs[0], HeaderProductsExpired) || !strings.Contains(msgs[0], "Yogurt") {
		t.Fatalf("expired message = %q", msgs[0])
	}
	if !strings.HasPrefix(msgs[1], HeaderProductsExpiring) || !strings.Contains(msgs[1], "Cheese") || strings.Contains(msgs[1], "Milk") {
		t.Fatalf("expiring message = %q", msgs[1])
	}
	if got := testutil.ToFloat64(observability.ProductsExpired); got != 1 {
		t.Fatalf("products_expired = %v", got)
	}
	if got := testutil.ToFloat64(observability.ProductsExpiring); got != 2 {
		t.Fatalf("products_expiring = %v", got)
	}
	if got := testutil.ToFloat64(observability.ProductInventory.WithLabelValues("Yogurt")); got != 2 {
		t.Fatalf("inventory(Yogurt) = %v", got)
	}
}

func TestMonitor_ProductPassingBestBeforeIsAnnouncedAsExpired(t *testing.T) {
	milk := domain.Product{ID: 1, Name: "Milk", AvailableAmount: 1, BestBeforeDate: *at(2024, 5, 11, 0)}
	api := &fakeAPI{volatile: []domain.VolatileProduct{{Product: milk, Status: domain.StatusExpiring}}}
	n := &fakeNotifier{}
	m, clk := newTestMonitor(api, n)

	m.pollOne(t, WatchVolatile)
	clk.Advance(48 * time.Hour)
	api.volatile = []domain.VolatileProduct{{Product: milk, Status: domain.StatusExpired}}
	m.pollOne(t, WatchVolatile)

	msgs := n.messages()
	if len(msgs) != 1 || !strings.HasPrefix(msgs[0], HeaderProductsExpired) || !strings.Contains(msgs[0], "Milk") {
		t.Fatalf("messages = %q", msgs)
	}
}

func TestMonitor_StockAndShoppingGauges(t *testing.T) {
	api := &fakeAPI{
		stock: []domain.Product{{ID: 1, Name: "Rice", AvailableAmount: 3}},
		shopping: []domain.ShoppingListItem{
			{ID: 1, ShoppingListID: 1, Amount: 1},
			{ID: 2, ShoppingListID: 1, Amount: 2},
			{ID: 3, ShoppingListID: 2, Amount: 1},
		},
	}
	m, _ := newTestMonitor(api, &fakeNotifier{})

	m.pollOne(t, WatchStock)
	api.stock = append(api.stock, domain.Product{ID: 2, Name: "Oats", AvailableAmount: 4})
	api.stock[0].AvailableAmount = 1
	m.pollOne(t, WatchStock)
	if got := testutil.ToFloat64(observability.ProductInventory.WithLabelValues("Rice")); got != 1 {
		t.Fatalf("inventory(Rice) = %v, want amounts refreshed on a membership change", got)
	}
	if got := testutil.ToFloat64(observability.ProductInventory.WithLabelValues("Oats")); got != 4 {
		t.Fatalf("inventory(Oats) = %v", got)
	}

	m.pollOne(t, WatchShoppingList)
	if got := testutil.ToFloat64(observability.ShoppingListItems.WithLabelValues("Shopping List")); got != 2 {
		t.Fatalf("shopping_list_items = %v", got)
	}
	if got := testutil.ToFloat64(observability.ShoppingListItems.WithLabelValues("Shopping List 2")); got != 1 {
		t.Fatalf("shopping_list_items(2) = %v", got)
	}
}

func TestMonitor_NotifierFailureIsAbsorbed(t *testing.T) {
	api := &fakeAPI{}
	n := &fakeNotifier{err: errors.New("telegram down")}
	m, _ := newTestMonitor(api, n)
	base := testutil.ToFloat64(observability.WorkerErrors.WithLabelValues(WatchChores, worker.StageCallback))

	m.pollOne(t, WatchChores)
	api.chores = []domain.Chore{{ID: 9, Name: "Trash", NextEstimatedExecutionTime: at(2024, 5, 1, 0)}}
	m.pollOne(t, WatchChores)

	if got := testutil.ToFloat64(observability.WorkerErrors.WithLabelValues(WatchChores, worker.StageCallback)) - base; got != 1 {
		t.Fatalf("callback errors delta = %v", got)
	}
}

func TestMonitor_StartStopStatus(t *testing.T) {
	m, _ := newTestMonitor(&fakeAPI{}, &fakeNotifier{})
	m.Start()
	defer m.Stop()

	// let every first poll finish so no run outlives the test
	deadline := time.Now().Add(2 * time.Second)
	for {
		done := true
		for _, s := range m.Status() {
			done = done && s.Runs >= 1
		}
		if done {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("watchers did not poll after Start")
		}
		time.Sleep(5 * time.Millisecond)
	}

	st := m.Status()
	if len(st) != 5 {
		t.Fatalf("watchers = %d", len(st))
	}
	want := []string{WatchChores, WatchStock, WatchVolatile, WatchShoppingList, WatchTasks}
	for i, s := range st {
		if s.Name != want[i] || !s.Running {
			t.Fatalf("status[%d] = %+v", i, s)
		}
	}
	m.Stop()
	for _, s := range m.Status() {
		if s.Running {
			t.Fatalf("%s still running", s.Name)
		}
	}
}

func TestShoppingListName(t *testing.T) {
	if ShoppingListName(1) != "Shopping List" || ShoppingListName(3) != "Shopping List 3" {
		t.Fatal("unexpected list names")
	}
}
