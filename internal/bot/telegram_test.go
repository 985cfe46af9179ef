package bot

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSplitMessage(t *testing.T) {
	if got := splitMessage("short", 10); len(got) != 1 || got[0] != "short" {
		t.Fatalf("short = %q", got)
	}

	got := splitMessage("aaaa\nbbbb\ncccc", 10)
	if len(got) != 2 || got[0] != "aaaa\nbbbb" || got[1] != "cccc" {
		t.Fatalf("lines = %q", got)
	}

	long := strings.Repeat("ä", 25)
	got = splitMessage(long, 10)
	if len(got) != 3 {
		t.Fatalf("hard wrap = %q", got)
	}
	for _, p := range got {
		if utf8.RuneCountInString(p) > 10 || !utf8.ValidString(p) {
			t.Fatalf("bad chunk %q", p)
		}
	}
	if strings.Join(got, "") != long {
		t.Fatal("content lost while wrapping")
	}
}

func TestTelegram_SendText(t *testing.T) {
	tg := newFakeTG()
	s := NewTelegram(tg, 100, 1)

	text := strings.Repeat("x", MaxMessageRunes) + "\n" + "tail"
	if err := s.SendText(context.Background(), 9, text); err != nil {
		t.Fatalf("SendText: %v", err)
	}
	sent := tg.texts()
	if len(sent) != 2 || sent[1] != "tail" {
		t.Fatalf("sent %d parts", len(sent))
	}
	if tg.last().ChatID != 9 {
		t.Fatalf("chat = %d", tg.last().ChatID)
	}
}

func TestTelegram_SendTextHonorsContext(t *testing.T) {
	tg := newFakeTG()
	s := NewTelegram(tg, 0.001, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// The first token is available; the limiter still refuses a cancelled ctx.
	if err := s.SendText(ctx, 1, "a"); err == nil {
		t.Fatal("expected context error")
	}
}
