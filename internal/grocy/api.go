// Package grocy talks to the Grocy REST API.
//
// API is the data-source contract consumed by the monitor and the bot.
// Client implements it over HTTP; CachedClient decorates any API with a
// short-lived cache so that several watchers and chat commands polling the
// same entity within one cache window share a single upstream request.
package grocy

import (
	"context"
	"time"

	"github.com/tbourn/go-grocy-bot/internal/domain"
)

// DefaultShoppingListID is the list Grocy creates on installation.
const DefaultShoppingListID = 1

// API is the subset of Grocy used by the bot. Implementations must be safe
// for concurrent use and honor ctx for cancellation.
type API interface {
	// Reads.
	Chores(ctx context.Context) ([]domain.Chore, error)
	Chore(ctx context.Context, id int) (*domain.Chore, error)
	Stock(ctx context.Context) ([]domain.Product, error)
	Products(ctx context.Context) ([]domain.Product, error)
	Product(ctx context.Context, id int) (*domain.Product, error)
	VolatileStock(ctx context.Context, dueSoonDays int) ([]domain.VolatileProduct, error)
	ExpiringProducts(ctx context.Context, dueSoonDays int) ([]domain.Product, error)
	ExpiredProducts(ctx context.Context) ([]domain.Product, error)
	MissingProducts(ctx context.Context) ([]domain.Product, error)
	ShoppingList(ctx context.Context) ([]domain.ShoppingListItem, error)
	Tasks(ctx context.Context) ([]domain.Task, error)
	LastDBChanged(ctx context.Context) (time.Time, error)

	// Mutations.
	AddProduct(ctx context.Context, productID int, amount float64, bestBefore time.Time) error
	AddProductToShoppingList(ctx context.Context, productID, listID int, amount float64) error
	RemoveProductInShoppingList(ctx context.Context, productID, listID int, amount float64) error
	AddMissingProductsToShoppingList(ctx context.Context, listID int) error
}
