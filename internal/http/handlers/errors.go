package handlers

// Error codes returned in ErrorResponse.Code. Clients branch on these, not on
// messages.
const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeNotFound         = "not_found"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeInternal         = "internal_error"

	ErrCodeEnqueueFailed = "enqueue_failed"
	ErrCodeStatsFailed   = "stats_failed"
	ErrCodeListFailed    = "list_failed"
)
