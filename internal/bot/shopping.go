package bot

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/tbourn/go-grocy-bot/internal/domain"
	"github.com/tbourn/go-grocy-bot/internal/grocy"
	"github.com/tbourn/go-grocy-bot/internal/keyboard"
	"github.com/tbourn/go-grocy-bot/internal/services"
)

const (
	msgNotOnList   = "The item is not on the shopping list anymore."
	shoppingHeader = "=> Shopping List <="
	maxSuggestions = 4
	minMatchScore  = 50
)

// shoppingKeyboard is the state behind one /shopping message.
type shoppingKeyboard struct {
	items   map[int]domain.ShoppingListItem
	buttons []keyboard.ShoppingButton
}

func (k *shoppingKeyboard) index(itemID int) int {
	for i, btn := range k.buttons {
		if btn.ShoppingListItemID == itemID {
			return i
		}
	}
	return -1
}

func (k *shoppingKeyboard) title(btn keyboard.ShoppingButton) string {
	return fmt.Sprintf("%s (%d/%d)", k.items[btn.ShoppingListItemID].ProductName(), btn.ButtonClickCount, btn.ShoppingListAmount)
}

// markup renders one button per row, ordered by title ignoring case.
func (b *Bot) shoppingMarkup(k *shoppingKeyboard) (tgbotapi.InlineKeyboardMarkup, error) {
	services.SortByName(b.fmt, k.buttons, k.title)
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(k.buttons))
	for _, btn := range k.buttons {
		data, err := btn.Minify()
		if err != nil {
			return tgbotapi.InlineKeyboardMarkup{}, err
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(k.title(btn), data)))
	}
	return tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows}, nil
}

func (b *Bot) shopping(ctx context.Context, m *tgbotapi.Message) error {
	items, err := b.grocy.ShoppingList(ctx)
	if err != nil {
		return err
	}
	k := &shoppingKeyboard{items: make(map[int]domain.ShoppingListItem, len(items))}
	for _, it := range items {
		if it.ShoppingListID != 0 && it.ShoppingListID != grocy.DefaultShoppingListID {
			continue
		}
		k.items[it.ID] = it
		// fractional amounts still need one click
		k.buttons = append(k.buttons, keyboard.NewShoppingButton(it.ID, int(math.Ceil(it.Amount))))
	}
	markup, err := b.shoppingMarkup(k)
	if err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(m.Chat.ID, shoppingHeader)
	msg.ReplyMarkup = markup
	sent, err := b.tg.send(ctx, msg)
	if err != nil {
		return err
	}
	b.inline.Register(m.Chat.ID, sent.MessageID, keyboard.CommandShopping, b.onShoppingClick, k)
	return nil
}

// onShoppingClick checks off one unit: it is removed from the shopping list
// and added to stock, and the button's counter advances. A button disappears
// once clicked as often as the listed amount.
func (b *Bot) onShoppingClick(ctx context.Context, c keyboard.Click, data any) error {
	k, ok := data.(*shoppingKeyboard)
	if !ok {
		return fmt.Errorf("unexpected keyboard state %T", data)
	}
	pressed, err := keyboard.ParseShoppingButton(c.Data)
	if err != nil {
		return err
	}
	item, ok := k.items[pressed.ShoppingListItemID]
	idx := k.index(pressed.ShoppingListItemID)
	if !ok || idx < 0 {
		b.answer(ctx, c.QueryID, msgNotOnList)
		return nil
	}

	if err := b.grocy.RemoveProductInShoppingList(ctx, item.ProductID, grocy.DefaultShoppingListID, 1); err != nil {
		return err
	}
	btn := &k.buttons[idx]
	btn.ButtonClickCount++
	clicked := *btn
	if clicked.Done() {
		k.buttons = append(k.buttons[:idx], k.buttons[idx+1:]...)
	}

	if err := b.grocy.AddProduct(ctx, item.ProductID, 1, domain.NeverExpires); err != nil {
		return err
	}

	markup, err := b.shoppingMarkup(k)
	if err != nil {
		return err
	}
	if err := b.tg.request(ctx, tgbotapi.NewEditMessageReplyMarkup(c.ChatID, c.MessageID, markup)); err != nil {
		return err
	}
	b.answer(ctx, c.QueryID, fmt.Sprintf("Checked off '%s' (%d/%d)", item.ProductName(), clicked.ButtonClickCount, clicked.ShoppingListAmount))
	return nil
}

// addRequest is the pending /shopping_list_add selection.
type addRequest struct {
	amount   int
	products map[string]domain.Product
}

// parseAddArgs splits "<name> [amount]".
func parseAddArgs(args string) (string, int) {
	fields := strings.Fields(args)
	if len(fields) > 1 {
		if n, err := strconv.Atoi(fields[len(fields)-1]); err == nil && n > 0 {
			return strings.Join(fields[:len(fields)-1], " "), n
		}
	}
	return strings.Join(fields, " "), 1
}

func (b *Bot) shoppingListAdd(ctx context.Context, m *tgbotapi.Message) error {
	name, amount := parseAddArgs(m.CommandArguments())
	if name == "" {
		return b.reply(ctx, m, "Usage: /shopping_list_add <name> [amount]")
	}
	products, err := b.grocy.Products(ctx)
	if err != nil {
		return err
	}

	byName := make(map[string]domain.Product, len(products))
	names := make([]string, 0, len(products))
	for _, p := range products {
		if _, dup := byName[p.Name]; dup || p.Name == "" {
			continue
		}
		byName[p.Name] = p
		names = append(names, p.Name)
	}

	matches := keyboard.FuzzyMatch(name, names, maxSuggestions, minMatchScore)
	if len(matches) == 0 {
		return b.reply(ctx, m, fmt.Sprintf("No product matching '%s' found.", name))
	}
	options := make([]string, len(matches))
	rows := make([][]tgbotapi.KeyboardButton, len(matches))
	for i, mt := range matches {
		options[i] = mt.Text
		rows[i] = tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(mt.Text))
	}
	rows = append(rows, tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton("/cancel")))

	err = b.responses.Await(m.From.ID, options, addRequest{amount: amount, products: byName}, b.onProductSelected)
	if errors.Is(err, keyboard.ErrAlreadyAwaiting) {
		return b.reply(ctx, m, "Please answer the previous question first, or /cancel it.")
	}
	if err != nil {
		return err
	}

	markup := tgbotapi.NewOneTimeReplyKeyboard(rows...)
	markup.Selective = true
	if err := b.replyMarkup(ctx, m, "Please select a product:", markup); err != nil {
		b.responses.Cancel(m.From.ID)
		return err
	}
	return nil
}

func (b *Bot) onProductSelected(ctx context.Context, r keyboard.Reply, data any) error {
	req, ok := data.(addRequest)
	if !ok {
		return fmt.Errorf("unexpected selection state %T", data)
	}
	p, ok := req.products[r.Text]
	if !ok {
		return fmt.Errorf("unknown product %q", r.Text)
	}
	if err := b.grocy.AddProductToShoppingList(ctx, p.ID, grocy.DefaultShoppingListID, float64(req.amount)); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(r.ChatID, fmt.Sprintf("Added %dx %s", req.amount, p.Name))
	msg.ReplyToMessageID = r.MessageID
	msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
	_, err := b.tg.send(ctx, msg)
	return err
}
