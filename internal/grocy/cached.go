package grocy

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-grocy-bot/internal/cache"
	"github.com/tbourn/go-grocy-bot/internal/domain"
	"github.com/tbourn/go-grocy-bot/internal/observability"
)

// Operation names. They key the cache, label metrics and name spans.
const (
	OpStock                            = "stock"
	OpVolatileStock                    = "volatile_stock"
	OpChore                            = "chore"
	OpChores                           = "chores"
	OpProduct                          = "product"
	OpProducts                         = "products"
	OpShoppingList                     = "shopping_list"
	OpTasks                            = "tasks"
	OpLastDBChanged                    = "last_db_changed"
	OpExpiredProducts                  = "expired_products"
	OpExpiringProducts                 = "expiring_products"
	OpMissingProducts                  = "missing_products"
	OpAddProduct                       = "add_product"
	OpAddProductToShoppingList         = "add_product_to_shopping_list"
	OpRemoveProductInShoppingList      = "remove_product_in_shopping_list"
	OpAddMissingProductsToShoppingList = "add_missing_products_to_shopping_list"
)

// cacheable lists the read operations whose results may be served from the
// cache. Any operation outside this set clears the whole cache before it
// reaches Grocy, so a read following a write never sees pre-write data.
var cacheable = map[string]bool{
	OpStock:            true,
	OpVolatileStock:    true,
	OpChore:            true,
	OpChores:           true,
	OpProduct:          true,
	OpProducts:         true,
	OpShoppingList:     true,
	OpTasks:            true,
	OpLastDBChanged:    true,
	OpExpiredProducts:  true,
	OpExpiringProducts: true,
	OpMissingProducts:  true,
}

// Cacheable reports whether op is served from the cache.
func Cacheable(op string) bool { return cacheable[op] }

// CachedClient decorates an API with a TTL cache keyed by operation name
// and arguments. It is safe for concurrent use.
type CachedClient struct {
	api   API
	store *cache.TTL[string, any]
	lg    zerolog.Logger
}

var _ API = (*CachedClient)(nil)

// NewCached wraps api. Entries live for ttl; at most maxEntries are kept.
func NewCached(api API, ttl time.Duration, maxEntries int, opts ...cache.Option) *CachedClient {
	return &CachedClient{
		api:   api,
		store: cache.New[string, any](ttl, maxEntries, opts...),
		lg:    log.With().Str("component", "grocy_cache").Logger(),
	}
}

// TTL returns the lifetime of cached results.
func (c *CachedClient) TTL() time.Duration { return c.store.TTL() }

// Len returns the number of cached results.
func (c *CachedClient) Len() int { return c.store.Len() }

// Invalidate drops every cached result. reason labels the metric.
func (c *CachedClient) Invalidate(reason string) {
	c.store.Clear()
	observability.CacheInvalidations.WithLabelValues(reason).Inc()
	c.lg.Debug().Str("reason", reason).Msg("cache invalidated")
}

func cacheKey(op string, args ...any) string {
	if len(args) == 0 {
		return op
	}
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = fmt.Sprint(a)
	}
	return op + "_" + strings.Join(parts, "_")
}

// cachedCall serves op from the cache when it is cacheable and a live entry
// exists; otherwise it calls fetch. Non-cacheable operations clear the
// cache before and after they run and are never stored. A read is only
// stored if no clear happened while it was in flight.
func cachedCall[T any](c *CachedClient, op string, args []any, fetch func() (T, error)) (T, error) {
	if !cacheable[op] {
		c.Invalidate(op)
		defer c.store.Clear()
		return fetch()
	}

	key := cacheKey(op, args...)
	if v, ok := c.store.Get(key); ok {
		if t, ok := v.(T); ok {
			observability.CacheRequests.WithLabelValues(op, "hit").Inc()
			return t, nil
		}
	}
	observability.CacheRequests.WithLabelValues(op, "miss").Inc()

	gen := c.store.Generation()
	res, err := fetch()
	if err != nil {
		var zero T
		return zero, err
	}
	if !c.store.SetIfGeneration(gen, key, res) {
		c.lg.Debug().Str("op", op).Msg("cache cleared during read; result not stored")
	}
	return res, nil
}

// cachedSlice is cachedCall for slice results; callers always receive their
// own copy so sorting or filtering never leaks into the cache.
func cachedSlice[E any](c *CachedClient, op string, args []any, fetch func() ([]E, error)) ([]E, error) {
	res, err := cachedCall(c, op, args, fetch)
	if err != nil {
		return nil, err
	}
	return slices.Clone(res), nil
}

// cachedPtr is cachedCall for pointer results, returning a shallow copy.
func cachedPtr[E any](c *CachedClient, op string, args []any, fetch func() (*E, error)) (*E, error) {
	res, err := cachedCall(c, op, args, fetch)
	if err != nil || res == nil {
		return res, err
	}
	cp := *res
	return &cp, nil
}

func (c *CachedClient) mutate(op string, call func() error) error {
	_, err := cachedCall(c, op, nil, func() (struct{}, error) { return struct{}{}, call() })
	return err
}

func (c *CachedClient) Chores(ctx context.Context) ([]domain.Chore, error) {
	return cachedSlice(c, OpChores, nil, func() ([]domain.Chore, error) { return c.api.Chores(ctx) })
}

func (c *CachedClient) Chore(ctx context.Context, id int) (*domain.Chore, error) {
	return cachedPtr(c, OpChore, []any{id}, func() (*domain.Chore, error) { return c.api.Chore(ctx, id) })
}

func (c *CachedClient) Stock(ctx context.Context) ([]domain.Product, error) {
	return cachedSlice(c, OpStock, nil, func() ([]domain.Product, error) { return c.api.Stock(ctx) })
}

func (c *CachedClient) Products(ctx context.Context) ([]domain.Product, error) {
	return cachedSlice(c, OpProducts, nil, func() ([]domain.Product, error) { return c.api.Products(ctx) })
}

func (c *CachedClient) Product(ctx context.Context, id int) (*domain.Product, error) {
	return cachedPtr(c, OpProduct, []any{id}, func() (*domain.Product, error) { return c.api.Product(ctx, id) })
}

func (c *CachedClient) VolatileStock(ctx context.Context, dueSoonDays int) ([]domain.VolatileProduct, error) {
	return cachedSlice(c, OpVolatileStock, []any{dueSoonDays}, func() ([]domain.VolatileProduct, error) {
		return c.api.VolatileStock(ctx, dueSoonDays)
	})
}

func (c *CachedClient) ExpiringProducts(ctx context.Context, dueSoonDays int) ([]domain.Product, error) {
	return cachedSlice(c, OpExpiringProducts, []any{dueSoonDays}, func() ([]domain.Product, error) {
		return c.api.ExpiringProducts(ctx, dueSoonDays)
	})
}

func (c *CachedClient) ExpiredProducts(ctx context.Context) ([]domain.Product, error) {
	return cachedSlice(c, OpExpiredProducts, nil, func() ([]domain.Product, error) { return c.api.ExpiredProducts(ctx) })
}

func (c *CachedClient) MissingProducts(ctx context.Context) ([]domain.Product, error) {
	return cachedSlice(c, OpMissingProducts, nil, func() ([]domain.Product, error) { return c.api.MissingProducts(ctx) })
}

func (c *CachedClient) ShoppingList(ctx context.Context) ([]domain.ShoppingListItem, error) {
	return cachedSlice(c, OpShoppingList, nil, func() ([]domain.ShoppingListItem, error) { return c.api.ShoppingList(ctx) })
}

func (c *CachedClient) Tasks(ctx context.Context) ([]domain.Task, error) {
	return cachedSlice(c, OpTasks, nil, func() ([]domain.Task, error) { return c.api.Tasks(ctx) })
}

func (c *CachedClient) LastDBChanged(ctx context.Context) (time.Time, error) {
	return cachedCall(c, OpLastDBChanged, nil, func() (time.Time, error) { return c.api.LastDBChanged(ctx) })
}

func (c *CachedClient) AddProduct(ctx context.Context, productID int, amount float64, bestBefore time.Time) error {
	return c.mutate(OpAddProduct, func() error { return c.api.AddProduct(ctx, productID, amount, bestBefore) })
}

func (c *CachedClient) AddProductToShoppingList(ctx context.Context, productID, listID int, amount float64) error {
	return c.mutate(OpAddProductToShoppingList, func() error {
		return c.api.AddProductToShoppingList(ctx, productID, listID, amount)
	})
}

func (c *CachedClient) RemoveProductInShoppingList(ctx context.Context, productID, listID int, amount float64) error {
	return c.mutate(OpRemoveProductInShoppingList, func() error {
		return c.api.RemoveProductInShoppingList(ctx, productID, listID, amount)
	})
}

func (c *CachedClient) AddMissingProductsToShoppingList(ctx context.Context, listID int) error {
	return c.mutate(OpAddMissingProductsToShoppingList, func() error {
		return c.api.AddMissingProductsToShoppingList(ctx, listID)
	})
}
