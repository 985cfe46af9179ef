package bot

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/tbourn/go-grocy-bot/internal/domain"
	"github.com/tbourn/go-grocy-bot/internal/grocy"
	"github.com/tbourn/go-grocy-bot/internal/services"
)

type command struct {
	names       []string
	args        string
	description string
	admin       bool
	private     bool
	run         func(ctx context.Context, m *tgbotapi.Message) error
}

func (b *Bot) commandTable() []command {
	return []command{
		{names: []string{"start"}, description: "Greeting.", run: b.start},
		{names: []string{"chat_id"}, description: "Print the id of this chat.", admin: true, run: b.chatID},
		{names: []string{"inventory", "i"}, args: "[missing]", description: "List product inventory.", admin: true, run: b.inventory},
		{names: []string{"chores", "ch"}, args: "[all]", description: "List overdue chores.", admin: true, run: b.chores},
		{names: []string{"shopping_list", "sl"}, args: "[add_missing]", description: "List shopping list items.", admin: true, run: b.shoppingList},
		{names: []string{"shopping"}, description: "Print shopping list with buttons to check off items.", admin: true, run: b.shopping},
		{names: []string{"shopping_list_add"}, args: "<name> [amount]", description: "Add an item to the shopping list.", admin: true, run: b.shoppingListAdd},
		{names: []string{"stats"}, description: "List statistics of this bot.", admin: true, run: b.stats},
		{names: []string{"version", "v"}, description: "Show the version of this bot.", admin: true, run: b.version},
		{names: []string{"config", "c"}, description: "Show the current configuration (private chat only).", admin: true, private: true, run: b.config},
		{names: []string{"help", "h"}, description: "List commands supported by this bot.", admin: true, run: b.help},
		{names: []string{"cancel"}, description: "Cancel the current selection.", admin: true, run: b.cancel},
	}
}

func (b *Bot) lookup(name string) (command, bool) {
	for _, c := range b.commands {
		for _, n := range c.names {
			if n == name {
				return c, true
			}
		}
	}
	return command{}, false
}

// hasFlag reports whether the command arguments contain flag, accepted as
// "flag", "-f", "--flag" or its first letter.
func hasFlag(m *tgbotapi.Message, flag string) bool {
	for _, a := range strings.Fields(m.CommandArguments()) {
		a = strings.TrimLeft(strings.ToLower(a), "-")
		if a == flag || a == flag[:1] {
			return true
		}
	}
	return false
}

func (b *Bot) start(ctx context.Context, m *tgbotapi.Message) error {
	if !b.isAdmin(m.From) {
		return b.reply(ctx, m, msgNoPermission)
	}
	return b.reply(ctx, m, fmt.Sprintf("Welcome %s,\nthis is your grocy-telegram-bot instance, ready to go!", m.From.FirstName))
}

func (b *Bot) chatID(ctx context.Context, m *tgbotapi.Message) error {
	return b.reply(ctx, m, fmt.Sprintf("This chat's id is: %d", m.Chat.ID))
}

func (b *Bot) inventory(ctx context.Context, m *tgbotapi.Message) error {
	var (
		products []domain.Product
		err      error
	)
	if hasFlag(m, "missing") {
		products, err = b.grocy.MissingProducts(ctx)
	} else {
		products, err = b.grocy.Stock(ctx)
	}
	if err != nil {
		return err
	}
	services.SortByName(b.fmt, products, func(p domain.Product) string { return p.Name })
	return b.reply(ctx, m, services.Message("=> Inventory <=", services.Lines(products, b.fmt.Product)))
}

func (b *Bot) chores(ctx context.Context, m *tgbotapi.Message) error {
	chores, err := b.grocy.Chores(ctx)
	if err != nil {
		return err
	}
	now := b.cfg.Now()
	due := func(c domain.Chore) time.Time {
		if c.NextEstimatedExecutionTime == nil {
			return now
		}
		return *c.NextEstimatedExecutionTime
	}
	sort.SliceStable(chores, func(i, j int) bool { return due(chores[i]).Before(due(chores[j])) })

	overdue := domain.OverdueChores(chores, now)
	overdueIDs := make(map[int]struct{}, len(overdue))
	for _, c := range overdue {
		overdueIDs[c.ID] = struct{}{}
	}

	lines := []string{}
	if hasFlag(m, "all") {
		var other []string
		for _, c := range chores {
			if _, ok := overdueIDs[c.ID]; !ok {
				other = append(other, b.fmt.Chore(c))
			}
		}
		if len(other) > 0 {
			lines = append(append(lines, ""), other...)
		}
	}
	if len(overdue) > 0 {
		lines = append(append(lines, "", "Overdue:"), services.Lines(overdue, b.fmt.Chore)...)
	}
	return b.reply(ctx, m, services.Message("=> Chores <=", lines))
}

func (b *Bot) shoppingList(ctx context.Context, m *tgbotapi.Message) error {
	if hasFlag(m, "add_missing") {
		if err := b.grocy.AddMissingProductsToShoppingList(ctx, grocy.DefaultShoppingListID); err != nil {
			return err
		}
	}
	items, err := b.grocy.ShoppingList(ctx)
	if err != nil {
		return err
	}
	services.SortByName(b.fmt, items, domain.ShoppingListItem.ProductName)
	return b.reply(ctx, m, services.Message("=> Shopping List <=", services.Lines(items, b.fmt.ShoppingListItem)))
}

func (b *Bot) stats(ctx context.Context, m *tgbotapi.Message) error {
	text, err := services.FormatMetrics(b.cfg.Gatherer)
	if err != nil {
		return err
	}
	return b.reply(ctx, m, text)
}

func (b *Bot) version(ctx context.Context, m *tgbotapi.Message) error {
	return b.reply(ctx, m, b.cfg.Version)
}

func (b *Bot) config(ctx context.Context, m *tgbotapi.Message) error {
	if b.cfg.Settings == "" {
		return b.reply(ctx, m, "No configuration available.")
	}
	return b.reply(ctx, m, strings.TrimRight(b.cfg.Settings, "\n"))
}

func (b *Bot) help(ctx context.Context, m *tgbotapi.Message) error {
	lines := make([]string, 0, len(b.commands))
	for _, c := range b.commands {
		usage := "/" + strings.Join(c.names, ", /")
		if c.args != "" {
			usage += " " + c.args
		}
		lines = append(lines, usage+"\n  "+c.description)
	}
	return b.reply(ctx, m, services.Message("=> Commands <=", lines))
}

func (b *Bot) cancel(ctx context.Context, m *tgbotapi.Message) error {
	if m.From != nil {
		b.responses.Cancel(m.From.ID)
	}
	return b.replyMarkup(ctx, m, "Cancelled", tgbotapi.NewRemoveKeyboard(true))
}
