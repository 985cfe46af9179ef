package bot

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/tbourn/go-grocy-bot/internal/domain"
	"github.com/tbourn/go-grocy-bot/internal/grocy"
	"github.com/tbourn/go-grocy-bot/internal/services"
)

// ----- Telegram fake -----

type fakeTG struct {
	mu       sync.Mutex
	sent     []tgbotapi.MessageConfig
	requests []tgbotapi.Chattable
	nextID   int
	sendErr  error
	updates  chan tgbotapi.Update
	stopped  bool
}

func newFakeTG() *fakeTG { return &fakeTG{nextID: 100, updates: make(chan tgbotapi.Update, 4)} }

func (f *fakeTG) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return tgbotapi.Message{}, f.sendErr
	}
	mc, ok := c.(tgbotapi.MessageConfig)
	if !ok {
		return tgbotapi.Message{}, fmt.Errorf("unexpected chattable %T", c)
	}
	f.sent = append(f.sent, mc)
	f.nextID++
	return tgbotapi.Message{MessageID: f.nextID, Chat: &tgbotapi.Chat{ID: mc.ChatID}, Text: mc.Text}, nil
}

func (f *fakeTG) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeTG) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel { return f.updates }

func (f *fakeTG) StopReceivingUpdates() {
	f.mu.Lock()
	f.stopped = true
	f.mu.Unlock()
}

func (f *fakeTG) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sent))
	for i, m := range f.sent {
		out[i] = m.Text
	}
	return out
}

func (f *fakeTG) last() tgbotapi.MessageConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sent[len(f.sent)-1]
}

// answers returns the texts of answered callback queries.
func (f *fakeTG) answers() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, r := range f.requests {
		if cb, ok := r.(tgbotapi.CallbackConfig); ok {
			out = append(out, cb.Text)
		}
	}
	return out
}

// edits returns the inline keyboards of every reply markup edit.
func (f *fakeTG) edits() []tgbotapi.InlineKeyboardMarkup {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []tgbotapi.InlineKeyboardMarkup
	for _, r := range f.requests {
		if e, ok := r.(tgbotapi.EditMessageReplyMarkupConfig); ok && e.ReplyMarkup != nil {
			out = append(out, *e.ReplyMarkup)
		}
	}
	return out
}

// ----- Grocy fake -----

// fakeGrocy implements the calls the bot makes; any other grocy.API method
// panics through the nil embedded interface.
type fakeGrocy struct {
	grocy.API

	mu       sync.Mutex
	stock    []domain.Product
	missing  []domain.Product
	products []domain.Product
	chores   []domain.Chore
	shopping []domain.ShoppingListItem
	calls    []string
}

func (g *fakeGrocy) record(format string, args ...any) {
	g.mu.Lock()
	g.calls = append(g.calls, fmt.Sprintf(format, args...))
	g.mu.Unlock()
}

func (g *fakeGrocy) Stock(context.Context) ([]domain.Product, error) {
	g.record("Stock")
	return append([]domain.Product(nil), g.stock...), nil
}
func (g *fakeGrocy) MissingProducts(context.Context) ([]domain.Product, error) {
	g.record("MissingProducts")
	return append([]domain.Product(nil), g.missing...), nil
}
func (g *fakeGrocy) Products(context.Context) ([]domain.Product, error) {
	g.record("Products")
	return append([]domain.Product(nil), g.products...), nil
}
func (g *fakeGrocy) Chores(context.Context) ([]domain.Chore, error) {
	g.record("Chores")
	return append([]domain.Chore(nil), g.chores...), nil
}
func (g *fakeGrocy) ShoppingList(context.Context) ([]domain.ShoppingListItem, error) {
	g.record("ShoppingList")
	return append([]domain.ShoppingListItem(nil), g.shopping...), nil
}
func (g *fakeGrocy) AddProduct(_ context.Context, productID int, amount float64, bestBefore time.Time) error {
	g.record("AddProduct(%d,%v,%s)", productID, amount, bestBefore.Format("2006-01-02"))
	return nil
}
func (g *fakeGrocy) AddProductToShoppingList(_ context.Context, productID, listID int, amount float64) error {
	g.record("AddProductToShoppingList(%d,%d,%v)", productID, listID, amount)
	return nil
}
func (g *fakeGrocy) RemoveProductInShoppingList(_ context.Context, productID, listID int, amount float64) error {
	g.record("RemoveProductInShoppingList(%d,%d,%v)", productID, listID, amount)
	return nil
}
func (g *fakeGrocy) AddMissingProductsToShoppingList(_ context.Context, listID int) error {
	g.record("AddMissingProductsToShoppingList(%d)", listID)
	return nil
}

func (g *fakeGrocy) called() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return strings.Join(g.calls, " ")
}

// ----- Helpers -----

const testChat = int64(42)

var (
	admin    = &tgbotapi.User{ID: 1, UserName: "alice", FirstName: "Alice"}
	stranger = &tgbotapi.User{ID: 2, UserName: "eve", FirstName: "Eve"}
)

func testNow() time.Time { return time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC) }

func newTestBot(g *fakeGrocy) (*Bot, *fakeTG) {
	tg := newFakeTG()
	b := New(tg, NewTelegram(tg, 0, 0), g, Config{
		Admins:    []string{"@alice"},
		Now:       testNow,
		Formatter: services.NewFormatter("en", testNow),
	})
	return b, tg
}

func commandMsg(text string, from *tgbotapi.User) *tgbotapi.Message {
	end := strings.IndexByte(text, ' ')
	if end < 0 {
		end = len(text)
	}
	return &tgbotapi.Message{
		MessageID: 7,
		From:      from,
		Chat:      &tgbotapi.Chat{ID: testChat},
		Text:      text,
		Entities:  []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: end}},
	}
}

func textMsg(text string, from *tgbotapi.User) *tgbotapi.Message {
	return &tgbotapi.Message{MessageID: 8, From: from, Chat: &tgbotapi.Chat{ID: testChat}, Text: text}
}

func (b *Bot) send(m *tgbotapi.Message) {
	b.HandleUpdate(context.Background(), tgbotapi.Update{Message: m})
}

func (b *Bot) click(messageID int, data string) {
	b.HandleUpdate(context.Background(), tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "q",
		From:    admin,
		Message: &tgbotapi.Message{MessageID: messageID, Chat: &tgbotapi.Chat{ID: testChat}},
		Data:    data,
	}})
}
