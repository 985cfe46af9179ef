package grocy

import "errors"

var (
	// ErrNotFound is returned when Grocy answers 404 for an entity.
	ErrNotFound = errors.New("grocy: not found")

	// ErrUnauthorized is returned for 401/403, usually a wrong API key.
	ErrUnauthorized = errors.New("grocy: unauthorized")

	// ErrAPIFailure wraps transport errors and unexpected status codes.
	ErrAPIFailure = errors.New("grocy: api failure")

	// ErrDecode is returned when a response body does not match the
	// expected shape.
	ErrDecode = errors.New("grocy: decode response")
)
