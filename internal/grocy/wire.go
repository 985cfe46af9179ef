package grocy

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tbourn/go-grocy-bot/internal/domain"
)

// Grocy serializes numbers as JSON numbers or as strings depending on the
// server version and database driver; both decode through these types.

type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := string(bytes.Trim(b, `"`))
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		*f = flexInt(n)
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid integer %q", s)
	}
	*f = flexInt(int(v))
	return nil
}

type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	s := string(bytes.Trim(b, `"`))
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid number %q", s)
	}
	*f = flexFloat(v)
	return nil
}

const (
	layoutDateTime = "2006-01-02 15:04:05"
	layoutDate     = "2006-01-02"
)

// parseTime accepts Grocy date and datetime strings in loc.
func parseTime(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{layoutDateTime, layoutDate, time.RFC3339} {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func parseTimePtr(s *string, loc *time.Location) *time.Time {
	if s == nil {
		return nil
	}
	if t, ok := parseTime(*s, loc); ok {
		return &t
	}
	return nil
}

type productDTO struct {
	ID   flexInt `json:"id"`
	Name string  `json:"name"`
}

type choreDTO struct {
	ChoreID                    flexInt `json:"chore_id"`
	ChoreName                  string  `json:"chore_name"`
	LastTrackedTime            *string `json:"last_tracked_time"`
	NextEstimatedExecutionTime *string `json:"next_estimated_execution_time"`
}

func (d choreDTO) toDomain(loc *time.Location) domain.Chore {
	name := d.ChoreName
	if name == "" {
		name = fmt.Sprintf("Chore #%d", int(d.ChoreID))
	}
	return domain.Chore{
		ID:                         int(d.ChoreID),
		Name:                       name,
		LastTrackedTime:            parseTimePtr(d.LastTrackedTime, loc),
		NextEstimatedExecutionTime: parseTimePtr(d.NextEstimatedExecutionTime, loc),
	}
}

type choreDetailsDTO struct {
	Chore                      productDTO `json:"chore"`
	LastTracked                *string    `json:"last_tracked"`
	NextEstimatedExecutionTime *string    `json:"next_estimated_execution_time"`
}

type stockDTO struct {
	ProductID      flexInt    `json:"product_id"`
	Amount         flexFloat  `json:"amount"`
	BestBeforeDate string     `json:"best_before_date"`
	Product        productDTO `json:"product"`
}

func (d stockDTO) toDomain(loc *time.Location) domain.Product {
	p := domain.Product{
		ID:              int(d.ProductID),
		Name:            d.Product.Name,
		AvailableAmount: float64(d.Amount),
	}
	if p.ID == 0 {
		p.ID = int(d.Product.ID)
	}
	if t, ok := parseTime(d.BestBeforeDate, loc); ok {
		p.BestBeforeDate = t
	}
	return p
}

type stockDetailsDTO struct {
	Product            productDTO `json:"product"`
	StockAmount        flexFloat  `json:"stock_amount"`
	NextBestBeforeDate string     `json:"next_best_before_date"`
	NextDueDate        string     `json:"next_due_date"`
}

type missingDTO struct {
	ID            flexInt   `json:"id"`
	Name          string    `json:"name"`
	AmountMissing flexFloat `json:"amount_missing"`
}

// volatileDTO covers both the pre-3.0 (expiring_products) and the current
// (due_products/overdue_products) response shapes.
type volatileDTO struct {
	DueProducts      []stockDTO   `json:"due_products"`
	ExpiringProducts []stockDTO   `json:"expiring_products"`
	OverdueProducts  []stockDTO   `json:"overdue_products"`
	ExpiredProducts  []stockDTO   `json:"expired_products"`
	MissingProducts  []missingDTO `json:"missing_products"`
}

func (d volatileDTO) toDomain(loc *time.Location) []domain.VolatileProduct {
	out := make([]domain.VolatileProduct, 0,
		len(d.DueProducts)+len(d.ExpiringProducts)+len(d.OverdueProducts)+len(d.ExpiredProducts)+len(d.MissingProducts))
	add := func(items []stockDTO, status domain.ProductStatus) {
		for _, it := range items {
			out = append(out, domain.VolatileProduct{Product: it.toDomain(loc), Status: status})
		}
	}
	add(d.DueProducts, domain.StatusExpiring)
	add(d.ExpiringProducts, domain.StatusExpiring)
	add(d.OverdueProducts, domain.StatusExpired)
	add(d.ExpiredProducts, domain.StatusExpired)
	for _, m := range d.MissingProducts {
		out = append(out, domain.VolatileProduct{
			Product: domain.Product{ID: int(m.ID), Name: m.Name},
			Status:  domain.StatusMissing,
		})
	}
	return out
}

type shoppingListDTO struct {
	ID             flexInt   `json:"id"`
	ProductID      flexInt   `json:"product_id"`
	ShoppingListID flexInt   `json:"shopping_list_id"`
	Amount         flexFloat `json:"amount"`
	Note           string    `json:"note"`
	Done           flexInt   `json:"done"`
}

type taskDTO struct {
	ID      flexInt `json:"id"`
	Name    string  `json:"name"`
	DueDate *string `json:"due_date"`
	Done    flexInt `json:"done"`
}

type dbChangedDTO struct {
	ChangedTime string `json:"changed_time"`
}

type addProductRequest struct {
	Amount          float64 `json:"amount"`
	BestBeforeDate  string  `json:"best_before_date"`
	TransactionType string  `json:"transaction_type"`
}

type shoppingListProductRequest struct {
	ProductID     int     `json:"product_id"`
	ListID        int     `json:"list_id"`
	ProductAmount float64 `json:"product_amount"`
}

type shoppingListRequest struct {
	ListID int `json:"list_id"`
}
