package monitor

import (
	"fmt"
	"strconv"

	"github.com/tbourn/go-grocy-bot/internal/domain"
)

// Identity accessors. Grocy ids start at 1, so a zero or negative id means
// the record could not be decoded into something trackable.

func ChoreID(c domain.Chore) (string, error) {
	if c.ID <= 0 {
		return "", fmt.Errorf("%w: chore %q", ErrIdentity, c.Name)
	}
	return strconv.Itoa(c.ID), nil
}

func ProductID(p domain.Product) (string, error) {
	if p.ID <= 0 {
		return "", fmt.Errorf("%w: product %q", ErrIdentity, p.Name)
	}
	return strconv.Itoa(p.ID), nil
}

// VolatileProductID keys volatile entries by status and product so that a
// product moving from expiring to expired counts as a change.
func VolatileProductID(v domain.VolatileProduct) (string, error) {
	id, err := ProductID(v.Product)
	if err != nil {
		return "", err
	}
	return string(v.Status) + ":" + id, nil
}

func ShoppingListItemID(i domain.ShoppingListItem) (string, error) {
	if i.ID <= 0 {
		return "", fmt.Errorf("%w: shopping list item %q", ErrIdentity, i.ProductName())
	}
	return strconv.Itoa(i.ID), nil
}

func TaskID(t domain.Task) (string, error) {
	if t.ID <= 0 {
		return "", fmt.Errorf("%w: task %q", ErrIdentity, t.Name)
	}
	return strconv.Itoa(t.ID), nil
}
