// Package bot is the Telegram front-end: a rate-limited sender used by the
// notifier and by command replies, and a long-polling command loop that maps
// chat commands and keyboard interactions to Grocy calls.
package bot

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"
)

// MaxMessageRunes keeps outgoing texts below Telegram's 4096 character limit.
const MaxMessageRunes = 4000

// API is the subset of *tgbotapi.BotAPI used by the bot.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Telegram sends messages through the Bot API, throttled by a token bucket
// shared between notifications and command replies.
type Telegram struct {
	api     API
	limiter *rate.Limiter
}

// NewTelegram wraps api. rps <= 0 disables throttling.
func NewTelegram(api API, rps float64, burst int) *Telegram {
	lim := rate.NewLimiter(rate.Inf, 0)
	if rps > 0 {
		if burst < 1 {
			burst = 1
		}
		lim = rate.NewLimiter(rate.Limit(rps), burst)
	}
	return &Telegram{api: api, limiter: lim}
}

// SendText delivers text to chatID, split into several messages on line
// boundaries when it is too long for one.
func (t *Telegram) SendText(ctx context.Context, chatID int64, text string) error {
	for _, part := range splitMessage(text, MaxMessageRunes) {
		if _, err := t.send(ctx, tgbotapi.NewMessage(chatID, part)); err != nil {
			return err
		}
	}
	return nil
}

func (t *Telegram) send(ctx context.Context, c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return tgbotapi.Message{}, err
	}
	msg, err := t.api.Send(c)
	if err != nil {
		return msg, fmt.Errorf("telegram send: %w", err)
	}
	return msg, nil
}

func (t *Telegram) request(ctx context.Context, c tgbotapi.Chattable) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return err
	}
	if _, err := t.api.Request(c); err != nil {
		return fmt.Errorf("telegram request: %w", err)
	}
	return nil
}

// splitMessage cuts text into chunks of at most max runes, preferring line
// breaks. A single line longer than max is hard-wrapped.
func splitMessage(text string, max int) []string {
	if utf8.RuneCountInString(text) <= max {
		return []string{text}
	}
	var (
		parts []string
		cur   strings.Builder
		n     int
	)
	flush := func() {
		if part := strings.Trim(cur.String(), "\n"); part != "" {
			parts = append(parts, part)
		}
		cur.Reset()
		n = 0
	}
	for _, line := range strings.SplitAfter(text, "\n") {
		r := []rune(line)
		for len(r) > max {
			flush()
			parts = append(parts, string(r[:max]))
			r = r[max:]
		}
		if n+len(r) > max {
			flush()
		}
		cur.WriteString(string(r))
		n += len(r)
	}
	flush()
	return parts
}
