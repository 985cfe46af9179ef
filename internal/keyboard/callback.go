package keyboard

import (
	"encoding/json"
	"fmt"
)

// CommandShopping identifies inline keyboards produced by /shopping.
const CommandShopping = "shopping"

var shoppingFields = []string{"command_id", "shopping_list_item_id", "button_click_count", "shopping_list_amount"}

// ShoppingButton is the payload of one /shopping inline button.
type ShoppingButton struct {
	CommandID          string
	ShoppingListItemID int
	ButtonClickCount   int
	ShoppingListAmount int
}

// NewShoppingButton returns an unclicked button for a shopping list item.
func NewShoppingButton(itemID, amount int) ShoppingButton {
	return ShoppingButton{CommandID: CommandShopping, ShoppingListItemID: itemID, ShoppingListAmount: amount}
}

// Done reports whether the button was clicked once per listed unit.
func (b ShoppingButton) Done() bool {
	return b.ButtonClickCount >= b.ShoppingListAmount
}

// Minify encodes the button as callback data, e.g.
// {"c":"shopping","s":12,"b":0,"sh":3}.
func (b ShoppingButton) Minify() (string, error) {
	return Minify([]Field{
		{shoppingFields[0], b.CommandID},
		{shoppingFields[1], b.ShoppingListItemID},
		{shoppingFields[2], b.ButtonClickCount},
		{shoppingFields[3], b.ShoppingListAmount},
	})
}

// ParseShoppingButton decodes callback data produced by Minify.
func ParseShoppingButton(text string) (ShoppingButton, error) {
	vals, err := Expand(text, shoppingFields)
	if err != nil {
		return ShoppingButton{}, err
	}
	var b ShoppingButton
	targets := []any{&b.CommandID, &b.ShoppingListItemID, &b.ButtonClickCount, &b.ShoppingListAmount}
	for i, name := range shoppingFields {
		v, ok := vals[name]
		if !ok {
			return ShoppingButton{}, fmt.Errorf("%w: missing %s", ErrInvalidPayload, name)
		}
		if err := json.Unmarshal(v, targets[i]); err != nil {
			return ShoppingButton{}, fmt.Errorf("%w: %s: %v", ErrInvalidPayload, name, err)
		}
	}
	if b.CommandID != CommandShopping {
		return ShoppingButton{}, fmt.Errorf("%w: command %q", ErrInvalidPayload, b.CommandID)
	}
	return b, nil
}
