package errors

import v1 "github.com/aevon-lab/pulse/internal/api/v1"

// Machine-readable codes returned in ErrorResponse.Code.
const (
	CodeInvalidAppID      = "INVALID_APP_ID"
	CodeAuthRequired      = "AUTH_REQUIRED"
	CodeAdminRequired     = "ADMIN_REQUIRED"
	CodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
	CodeInvalidPayload    = "INVALID_PAYLOAD"
	CodePayloadTooLarge   = "PAYLOAD_TOO_LARGE"
	CodeEmptyEventArray   = "EMPTY_EVENT_ARRAY"
	CodeBatchSizeExceeded = "BATCH_SIZE_EXCEEDED"
	CodeNoValidEvents     = "NO_VALID_EVENTS"
	CodeInvalidDateRange  = "INVALID_DATE_RANGE"
	CodeInvalidQuery      = "INVALID_QUERY"
	CodeInternalError     = "INTERNAL_ERROR"
)

// ErrorResponse is the error body shared by every endpoint.
type ErrorResponse struct {
	Error         string            `json:"error"`
	Code          string            `json:"code"`
	RetryAfter    *int              `json:"retryAfter,omitempty"`
	InvalidEvents []v1.InvalidEvent `json:"invalidEvents,omitempty"`
	Details       interface{}       `json:"details,omitempty"`
}
