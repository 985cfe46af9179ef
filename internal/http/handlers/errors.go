package handlers

// Error codes of the admin API. Clients branch on these, not on messages.
const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeNotFound         = "not_found"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeInternal         = "internal_error"

	// ErrCodeMonitorDisabled: no NOTIFICATION_CHAT_IDS configured.
	ErrCodeMonitorDisabled = "monitor_disabled"
	// ErrCodePollFailed: at least one watcher failed; the message joins them.
	ErrCodePollFailed = "poll_failed"
	ErrCodeListFailed = "list_failed"
)
