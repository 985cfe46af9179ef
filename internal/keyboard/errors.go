package keyboard

import "errors"

var (
	// ErrAlreadyAwaiting is returned by Responses.Await when the user still
	// has an unanswered selection pending.
	ErrAlreadyAwaiting = errors.New("already awaiting response")
	// ErrUnknownMessage is returned by Inline.Handle for a click on a message
	// that has no registered listener.
	ErrUnknownMessage = errors.New("unknown message")
	// ErrPayloadTooLarge is returned when a minified button payload exceeds
	// MaxCallbackData bytes.
	ErrPayloadTooLarge = errors.New("callback payload too large")
	// ErrInvalidPayload is returned when a button payload cannot be decoded.
	ErrInvalidPayload = errors.New("invalid callback payload")
)
