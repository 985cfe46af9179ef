// Package domain defines the entities shared by the Grocy client, the
// change monitor, the Telegram bot and the persistence layer.
//
// The Grocy entities in this file are plain values decoded from the Grocy
// REST API. They carry only the attributes the bot actually renders or
// compares; identity is always the Grocy row id.
package domain

import (
	"sort"
	"strings"
	"time"
)

// NeverExpires is the best-before date Grocy assigns to products that do not
// expire. Products carrying it are excluded from expiry filters.
var NeverExpires = time.Date(2999, 12, 31, 0, 0, 0, 0, time.UTC)

// DefaultDueSoonDays is the look-ahead used to classify products as expiring.
const DefaultDueSoonDays = 5

// Chore is a recurring household chore.
type Chore struct {
	ID                         int        `json:"id"`
	Name                       string     `json:"name"`
	LastTrackedTime            *time.Time `json:"last_tracked_time,omitempty"`
	NextEstimatedExecutionTime *time.Time `json:"next_estimated_execution_time,omitempty"`
}

// Product is a stock entry for a single product.
type Product struct {
	ID              int       `json:"id"`
	Name            string    `json:"name"`
	AvailableAmount float64   `json:"available_amount"`
	BestBeforeDate  time.Time `json:"best_before_date"`
}

// HasExpiry reports whether the product carries a real best-before date.
func (p Product) HasExpiry() bool {
	return !p.BestBeforeDate.IsZero() && p.BestBeforeDate.Before(NeverExpires)
}

// ProductStatus classifies an entry of the volatile stock.
type ProductStatus string

const (
	StatusExpiring ProductStatus = "expiring"
	StatusExpired  ProductStatus = "expired"
	StatusMissing  ProductStatus = "missing"
)

// VolatileProduct is a product reported by Grocy as expiring, expired or
// below its minimum stock amount.
type VolatileProduct struct {
	Product
	Status ProductStatus `json:"status"`
}

// ShoppingListItem is a single line on a shopping list.
type ShoppingListItem struct {
	ID             int      `json:"id"`
	ProductID      int      `json:"product_id"`
	ShoppingListID int      `json:"shopping_list_id"`
	Amount         float64  `json:"amount"`
	Note           string   `json:"note,omitempty"`
	Product        *Product `json:"product,omitempty"`
}

// ProductName returns the resolved product name, falling back to the note.
func (i ShoppingListItem) ProductName() string {
	if i.Product != nil && i.Product.Name != "" {
		return i.Product.Name
	}
	return i.Note
}

// Task is a one-off Grocy task.
type Task struct {
	ID      int        `json:"id"`
	Name    string     `json:"name"`
	DueDate *time.Time `json:"due_date,omitempty"`
	Done    bool       `json:"done"`
}

// civilDate strips the clock from t, keeping its calendar day.
func civilDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// OverdueChores returns the chores whose next estimated execution time is
// set and not after now. Input order is preserved.
func OverdueChores(chores []Chore, now time.Time) []Chore {
	out := make([]Chore, 0, len(chores))
	for _, c := range chores {
		if c.NextEstimatedExecutionTime != nil && !c.NextEstimatedExecutionTime.After(now) {
			out = append(out, c)
		}
	}
	return out
}

// ExpiredProducts returns the products whose best-before day lies strictly
// before today. Products that never expire are skipped.
func ExpiredProducts(products []Product, now time.Time) []Product {
	today := civilDate(now)
	out := make([]Product, 0, len(products))
	for _, p := range products {
		if p.HasExpiry() && civilDate(p.BestBeforeDate).Before(today) {
			out = append(out, p)
		}
	}
	return out
}

// ExpiringProducts returns the products expiring today or within the next
// days days. Already expired and never-expiring products are skipped.
func ExpiringProducts(products []Product, now time.Time, days int) []Product {
	if days < 0 {
		days = 0
	}
	today := civilDate(now)
	limit := today.AddDate(0, 0, days)
	out := make([]Product, 0, len(products))
	for _, p := range products {
		if !p.HasExpiry() {
			continue
		}
		d := civilDate(p.BestBeforeDate)
		if !d.Before(today) && !d.After(limit) {
			out = append(out, p)
		}
	}
	return out
}

// Products unwraps volatile entries, dropping duplicates of the same product
// id (a product can be missing and expiring at once).
func Products(items []VolatileProduct) []Product {
	seen := make(map[int]struct{}, len(items))
	out := make([]Product, 0, len(items))
	for _, it := range items {
		if _, ok := seen[it.ID]; ok {
			continue
		}
		seen[it.ID] = struct{}{}
		out = append(out, it.Product)
	}
	return out
}

// SortProductsByName sorts products case-insensitively by name.
func SortProductsByName(products []Product) {
	sort.SliceStable(products, func(i, j int) bool {
		return strings.ToLower(products[i].Name) < strings.ToLower(products[j].Name)
	})
}

// SortChoresByDue sorts chores by next estimated execution time; chores
// without one go last.
func SortChoresByDue(chores []Chore) {
	sort.SliceStable(chores, func(i, j int) bool {
		a, b := chores[i].NextEstimatedExecutionTime, chores[j].NextEstimatedExecutionTime
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.Before(*b)
		}
	})
}
