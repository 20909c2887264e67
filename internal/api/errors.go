package api

import (
	"errors"
	"fmt"
)

const fallbackMessage = "API request failed"

// SessionExpiredMessage is shown to the shopper when a refresh fails.
const SessionExpiredMessage = "Session expired. Please login again."

var (
	ErrSessionExpired = errors.New("api: session expired")
	ErrNoRefreshToken = errors.New("api: no refresh token available")
)

// APIError is a non-2xx response or an envelope with status "error". Message
// is the backend's human-readable reason.
type APIError struct {
	StatusCode int
	Message    string
	RequestID  string
}

func (e *APIError) Error() string {
	return e.Message
}

// IsStatus reports whether err carries an *APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}

// sessionExpiredError wraps ErrSessionExpired and keeps the failure that
// ended the session reachable through errors.As.
type sessionExpiredError struct {
	cause error
}

func (e *sessionExpiredError) Error() string {
	return fmt.Sprintf("%v: %v", ErrSessionExpired, e.cause)
}

func (e *sessionExpiredError) Unwrap() []error {
	return []error{ErrSessionExpired, e.cause}
}
