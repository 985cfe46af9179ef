package keyboard

import (
	"context"
	"fmt"
	"sync"
)

// Click is an inline button press.
type Click struct {
	QueryID   string
	UserID    int64
	ChatID    int64
	MessageID int
	Data      string
}

// ClickFunc handles a click on a registered keyboard. data is the value given
// to Register and may be mutated; clicks on the same message are serialized.
type ClickFunc func(ctx context.Context, c Click, data any) error

type listener struct {
	mu        sync.Mutex
	commandID string
	cb        ClickFunc
	data      any
}

// Inline maps sent inline keyboards to the listener handling their buttons.
// Listeners are keyed by chat and message id. Safe for concurrent use.
type Inline struct {
	mu        sync.RWMutex
	listeners map[string]*listener
}

// NewInline returns an empty registry.
func NewInline() *Inline {
	return &Inline{listeners: make(map[string]*listener)}
}

func messageKey(chatID int64, messageID int) string {
	return fmt.Sprintf("%d_%d", chatID, messageID)
}

// Register routes clicks on message (chatID, messageID) to cb. A second
// registration for the same message replaces the first.
func (in *Inline) Register(chatID int64, messageID int, commandID string, cb ClickFunc, data any) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.listeners[messageKey(chatID, messageID)] = &listener{commandID: commandID, cb: cb, data: data}
}

// Forget removes the listener of a message.
func (in *Inline) Forget(chatID int64, messageID int) {
	in.mu.Lock()
	defer in.mu.Unlock()
	delete(in.listeners, messageKey(chatID, messageID))
}

// CommandID returns the command that registered the message's keyboard.
func (in *Inline) CommandID(chatID int64, messageID int) (string, bool) {
	in.mu.RLock()
	defer in.mu.RUnlock()
	l, ok := in.listeners[messageKey(chatID, messageID)]
	if !ok {
		return "", false
	}
	return l.commandID, true
}

// Len returns the number of registered keyboards.
func (in *Inline) Len() int {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return len(in.listeners)
}

// Handle dispatches c to its listener or returns ErrUnknownMessage.
func (in *Inline) Handle(ctx context.Context, c Click) error {
	in.mu.RLock()
	l, ok := in.listeners[messageKey(c.ChatID, c.MessageID)]
	in.mu.RUnlock()
	if !ok {
		return ErrUnknownMessage
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cb(ctx, c, l.data)
}
