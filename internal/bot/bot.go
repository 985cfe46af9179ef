package bot

import (
	"context"
	"errors"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-grocy-bot/internal/grocy"
	"github.com/tbourn/go-grocy-bot/internal/keyboard"
	"github.com/tbourn/go-grocy-bot/internal/observability"
	"github.com/tbourn/go-grocy-bot/internal/services"
)

const (
	msgNoPermission   = "Sorry, you do not have permissions to use this bot."
	msgUnknownMessage = "Unknown message"
	msgError          = "Error"
	msgPrivateOnly    = "This command is only available in a private chat."
)

// Config tunes the command loop.
type Config struct {
	// Admins are the Telegram usernames allowed to use commands.
	Admins []string
	// PollTimeout is the long-poll timeout in seconds.
	PollTimeout int
	// CommandTimeout bounds the handling of a single update.
	CommandTimeout time.Duration
	// Gatherer feeds /stats. Defaults to prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer
	// Formatter renders entities. Defaults to English.
	Formatter *services.Formatter
	// Now is the clock used for chores. Defaults to time.Now.
	Now func() time.Time
	// Version is reported by /version.
	Version string
	// Settings is the configuration summary printed by /config.
	Settings string
}

// Bot dispatches Telegram updates to command handlers.
type Bot struct {
	tg        *Telegram
	api       API
	grocy     grocy.API
	cfg       Config
	fmt       *services.Formatter
	admins    map[string]struct{}
	responses *keyboard.Responses
	inline    *keyboard.Inline
	commands  []command
	lg        zerolog.Logger
}

// New wires a Bot. tg must wrap api.
func New(api API, tg *Telegram, g grocy.API, cfg Config) *Bot {
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 60
	}
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = 30 * time.Second
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	if cfg.Formatter == nil {
		cfg.Formatter = services.NewFormatter("en", cfg.Now)
	}
	admins := make(map[string]struct{}, len(cfg.Admins))
	for _, a := range cfg.Admins {
		if a = strings.TrimPrefix(strings.TrimSpace(a), "@"); a != "" {
			admins[a] = struct{}{}
		}
	}
	b := &Bot{
		tg:        tg,
		api:       api,
		grocy:     g,
		cfg:       cfg,
		fmt:       cfg.Formatter,
		admins:    admins,
		responses: keyboard.NewResponses(),
		inline:    keyboard.NewInline(),
		lg:        log.With().Str("component", "bot").Logger(),
	}
	b.commands = b.commandTable()
	return b
}

// Run long-polls for updates until ctx is done.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.cfg.PollTimeout
	updates := b.api.GetUpdatesChan(u)
	b.lg.Info().Int("admins", len(b.admins)).Msg("bot polling for updates")

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case upd, ok := <-updates:
			if !ok {
				return errors.New("telegram update channel closed")
			}
			b.HandleUpdate(ctx, upd)
		}
	}
}

// HandleUpdate processes a single update. Errors are logged and reported to
// the user; they never stop the loop.
func (b *Bot) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	ctx, cancel := context.WithTimeout(ctx, b.cfg.CommandTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			b.lg.Error().Interface("panic", r).Int("update_id", upd.UpdateID).Msg("update handler panicked")
		}
	}()

	switch {
	case upd.CallbackQuery != nil:
		b.handleClick(ctx, upd.CallbackQuery)
	case upd.Message != nil:
		b.handleMessage(ctx, upd.Message)
	}
}

func (b *Bot) isAdmin(u *tgbotapi.User) bool {
	if u == nil {
		return false
	}
	_, ok := b.admins[u.UserName]
	return ok
}

func (b *Bot) handleMessage(ctx context.Context, m *tgbotapi.Message) {
	if m.ForwardFrom != nil || m.ForwardFromChat != nil || m.Chat == nil {
		return
	}
	if !m.IsCommand() {
		b.handleReply(ctx, m)
		return
	}
	if m.ReplyToMessage != nil {
		return
	}

	name := m.Command()
	cmd, ok := b.lookup(name)
	admin := b.isAdmin(m.From)
	lg := b.lg.With().Str("command", name).Int64("chat_id", m.Chat.ID).Logger()

	if !ok {
		if admin {
			b.reportErr(ctx, m, b.help(ctx, m))
		}
		return
	}
	if cmd.admin && !admin {
		lg.Warn().Str("user", userName(m.From)).Msg("command denied")
		b.reportErr(ctx, m, b.reply(ctx, m, msgNoPermission))
		return
	}
	if cmd.private && !m.Chat.IsPrivate() {
		b.reportErr(ctx, m, b.reply(ctx, m, msgPrivateOnly))
		return
	}

	timer := prometheus.NewTimer(observability.CommandSeconds.WithLabelValues(cmd.names[0]))
	err := cmd.run(ctx, m)
	timer.ObserveDuration()
	if err != nil {
		lg.Error().Err(err).Msg("command failed")
	}
	b.reportErr(ctx, m, err)
}

func (b *Bot) handleReply(ctx context.Context, m *tgbotapi.Message) {
	if m.From == nil {
		return
	}
	ok, err := b.responses.Handle(ctx, keyboard.Reply{
		UserID:    m.From.ID,
		ChatID:    m.Chat.ID,
		MessageID: m.MessageID,
		Text:      m.Text,
	})
	if !ok {
		return
	}
	if err != nil {
		b.lg.Error().Err(err).Int64("user_id", m.From.ID).Msg("reply keyboard callback failed")
	}
	b.reportErr(ctx, m, err)
}

func (b *Bot) handleClick(ctx context.Context, q *tgbotapi.CallbackQuery) {
	if q.Message == nil || q.Message.Chat == nil {
		b.answer(ctx, q.ID, msgUnknownMessage)
		return
	}
	click := keyboard.Click{
		QueryID:   q.ID,
		ChatID:    q.Message.Chat.ID,
		MessageID: q.Message.MessageID,
		Data:      q.Data,
	}
	if q.From != nil {
		click.UserID = q.From.ID
	}

	err := b.inline.Handle(ctx, click)
	switch {
	case errors.Is(err, keyboard.ErrUnknownMessage):
		b.answer(ctx, q.ID, msgUnknownMessage)
	case err != nil:
		b.lg.Error().Err(err).Int64("chat_id", click.ChatID).Int("message_id", click.MessageID).
			Msg("inline keyboard click failed")
		b.answer(ctx, q.ID, msgError)
	}
}

// reply answers m in its chat, quoting it.
func (b *Bot) reply(ctx context.Context, m *tgbotapi.Message, text string) error {
	return b.replyMarkup(ctx, m, text, nil)
}

func (b *Bot) replyMarkup(ctx context.Context, m *tgbotapi.Message, text string, markup any) error {
	parts := splitMessage(text, MaxMessageRunes)
	for i, part := range parts {
		msg := tgbotapi.NewMessage(m.Chat.ID, part)
		msg.ReplyToMessageID = m.MessageID
		if i == len(parts)-1 && markup != nil {
			msg.ReplyMarkup = markup
		}
		if _, err := b.tg.send(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bot) answer(ctx context.Context, queryID, text string) {
	if err := b.tg.request(ctx, tgbotapi.NewCallback(queryID, text)); err != nil {
		b.lg.Warn().Err(err).Msg("answer callback query")
	}
}

// reportErr tells the user that handling their message failed.
func (b *Bot) reportErr(ctx context.Context, m *tgbotapi.Message, err error) {
	if err == nil {
		return
	}
	if rerr := b.reply(ctx, m, "Error: "+err.Error()); rerr != nil {
		b.lg.Warn().Err(rerr).Msg("report error to user")
	}
}

func userName(u *tgbotapi.User) string {
	if u == nil {
		return "N/A"
	}
	return u.UserName
}
