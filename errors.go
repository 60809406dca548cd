package subconscious

import (
	"errors"
	"fmt"
)

// ErrMaxAttemptsExceeded is returned by Wait when the run is still not
// terminal after the configured number of polls.
var ErrMaxAttemptsExceeded = errors.New("subconscious: max poll attempts exceeded")

// API error codes. Responses that carry no code are assigned one from the
// HTTP status.
const (
	CodeInvalidRequest       = "invalid_request"
	CodeAuthenticationFailed = "authentication_failed"
	CodePermissionDenied     = "permission_denied"
	CodeNotFound             = "not_found"
	CodeRateLimited          = "rate_limited"
	CodeTimeout              = "timeout"
	CodeInternalError        = "internal_error"
	CodeServiceUnavailable   = "service_unavailable"
)

// codeForStatus maps an HTTP status to a default error code.
func codeForStatus(status int) string {
	switch status {
	case 400, 422:
		return CodeInvalidRequest
	case 401:
		return CodeAuthenticationFailed
	case 403:
		return CodePermissionDenied
	case 404:
		return CodeNotFound
	case 408, 504:
		return CodeTimeout
	case 429:
		return CodeRateLimited
	case 502, 503:
		return CodeServiceUnavailable
	}
	if status >= 500 {
		return CodeInternalError
	}
	return CodeInvalidRequest
}

// APIError is a non-2xx response from the API.
type APIError struct {
	Status  int
	Code    string
	Message string
	Details map[string]any
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("subconscious: %s (status %d, code %s)", e.Message, e.Status, e.Code)
	}
	return fmt.Sprintf("subconscious: %s (status %d)", e.Message, e.Status)
}

// IsNotFound reports whether err is an APIError with HTTP status 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == 404
}

// IsRateLimited reports whether err is an APIError with HTTP status 429.
func IsRateLimited(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == 429
}
