package keyboard

import (
	"context"
	"fmt"
	"sync"
)

// Reply is a plain text message received while a selection is pending.
type Reply struct {
	UserID    int64
	ChatID    int64
	MessageID int
	Text      string
}

// ResponseFunc handles the option chosen by the user. data is the value
// given to Await.
type ResponseFunc func(ctx context.Context, r Reply, data any) error

type pendingResponse struct {
	options map[string]struct{}
	data    any
	cb      ResponseFunc
}

// Responses remembers which users owe an answer to a reply keyboard. Each
// user can have at most one pending selection. Safe for concurrent use.
type Responses struct {
	mu      sync.Mutex
	pending map[int64]pendingResponse
}

// NewResponses returns an empty registry.
func NewResponses() *Responses {
	return &Responses{pending: make(map[int64]pendingResponse)}
}

// Await registers cb to run when userID sends one of options.
func (r *Responses) Await(userID int64, options []string, data any, cb ResponseFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.pending[userID]; ok {
		return fmt.Errorf("%w to a previous query from user %d", ErrAlreadyAwaiting, userID)
	}
	set := make(map[string]struct{}, len(options))
	for _, o := range options {
		set[o] = struct{}{}
	}
	r.pending[userID] = pendingResponse{options: set, data: data, cb: cb}
	return nil
}

// Awaiting reports whether userID has a pending selection.
func (r *Responses) Awaiting(userID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.pending[userID]
	return ok
}

// Handle runs the pending callback when rep.Text is one of the registered
// options. It reports whether rep was consumed. The registration is removed
// before the callback runs, so the callback may Await again.
func (r *Responses) Handle(ctx context.Context, rep Reply) (bool, error) {
	r.mu.Lock()
	p, ok := r.pending[rep.UserID]
	if ok {
		_, ok = p.options[rep.Text]
	}
	if !ok {
		r.mu.Unlock()
		return false, nil
	}
	delete(r.pending, rep.UserID)
	r.mu.Unlock()

	return true, p.cb(ctx, rep, p.data)
}

// Cancel drops the pending selection of userID and reports whether there
// was one.
func (r *Responses) Cancel(userID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.pending[userID]
	delete(r.pending, userID)
	return ok
}
