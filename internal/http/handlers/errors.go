// Package handlers defines the HTTP error codes used across all endpoints.
//
// Codes are lowercase snake_case and stable; clients branch on them rather
// than on messages. Generic codes mirror the HTTP status, domain codes name
// the failing dependency or input.
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "missing_event_id",
//	  "message": "Missing eventId"
//	}
package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeNotFound         = "not_found"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeInternal         = "internal_error"

	// Domain-specific:
	ErrCodeMissingEventID   = "missing_event_id"
	ErrCodeInvalidEventID   = "invalid_event_id"
	ErrCodeProcessingFailed = "processing_failed"
	ErrCodeStoreUnavailable = "store_unavailable"
	ErrCodeUpstreamTimeout  = "upstream_timeout"
	ErrCodeNotReady         = "not_ready"
)
