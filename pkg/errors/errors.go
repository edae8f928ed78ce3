package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound       = errors.New("resource not found")
	ErrInvalidInput   = errors.New("invalid input")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrInternal       = errors.New("internal error")
	ErrServiceUnavail = errors.New("service unavailable")

	// ErrAuthRequired means no identity or no upstream OAuth token is present.
	ErrAuthRequired = errors.New("authentication required")
	// ErrAuthExpired means the upstream OAuth refresh failed and the user must reconnect.
	ErrAuthExpired = errors.New("authentication expired")
)

// sentinelStatus is checked in order; the first sentinel found in the chain wins.
var sentinelStatus = []struct {
	err    error
	status int
}{
	{ErrNotFound, http.StatusNotFound},
	{ErrInvalidInput, http.StatusBadRequest},
	{ErrAuthExpired, http.StatusUnauthorized},
	{ErrAuthRequired, http.StatusUnauthorized},
	{ErrUnauthorized, http.StatusUnauthorized},
	{ErrForbidden, http.StatusForbidden},
	{ErrServiceUnavail, http.StatusServiceUnavailable},
}

// AppError is an error with a client-facing code and message and the HTTP
// status it maps to. Err stays server-side.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func newAppError(code string, status int, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Status: status, Err: err}
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Code + ": " + e.Message
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
}

func (e *AppError) Unwrap() error { return e.Err }

// NotFound reports a missing resource, e.g. NotFound("store", id).
func NotFound(resource, id string) *AppError {
	return newAppError("NOT_FOUND", http.StatusNotFound,
		fmt.Sprintf("%s with id %s not found", resource, id), ErrNotFound)
}

func InvalidInput(message string) *AppError {
	return newAppError("INVALID_INPUT", http.StatusBadRequest, message, ErrInvalidInput)
}

// AuthRequired is returned when the caller has no identity or has never
// connected an upstream account.
func AuthRequired(message string) *AppError {
	return newAppError("AUTH_REQUIRED", http.StatusUnauthorized, message, ErrAuthRequired)
}

// AuthExpired is returned when the upstream token could not be refreshed.
// cause is the refresh failure and may be nil.
func AuthExpired(message string, cause error) *AppError {
	err := ErrAuthExpired
	if cause != nil {
		err = fmt.Errorf("%w: %w", ErrAuthExpired, cause)
	}
	return newAppError("AUTH_EXPIRED", http.StatusUnauthorized, message, err)
}

func ServiceUnavailable(message string) *AppError {
	return newAppError("SERVICE_UNAVAILABLE", http.StatusServiceUnavailable, message, ErrServiceUnavail)
}

// Internal hides err behind a generic message.
func Internal(err error) *AppError {
	return newAppError("INTERNAL_ERROR", http.StatusInternalServerError, "an internal error occurred", err)
}

// IsAuthExpired reports whether err carries ErrAuthExpired anywhere in its chain.
func IsAuthExpired(err error) bool {
	return errors.Is(err, ErrAuthExpired)
}

// HTTPStatus maps err to a response status. An *AppError's own status wins
// over any sentinel it wraps; unknown errors are 500.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}
	for _, s := range sentinelStatus {
		if errors.Is(err, s.err) {
			return s.status
		}
	}
	return http.StatusInternalServerError
}
