package httpclient

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	apperrors "github.com/utafrali/ReviewPulse/pkg/errors"
)

// maxErrorBody bounds how much of a failed response body is kept in a StatusError.
const maxErrorBody = 512

// StatusError describes a non-2xx response from an upstream service.
type StatusError struct {
	Service    string
	StatusCode int
	// Code is the upstream's machine-readable error status, when it sent one.
	Code    string
	Message string
}

func (e *StatusError) Error() string {
	msg := e.Message
	if e.Code != "" {
		msg = e.Code + ": " + msg
	}
	return fmt.Sprintf("%s returned status %d: %s", e.Service, e.StatusCode, msg)
}

// Unwrap maps the status onto the application sentinel errors so callers can use errors.Is.
func (e *StatusError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusBadRequest:
		return apperrors.ErrInvalidInput
	case e.StatusCode == http.StatusUnauthorized:
		return apperrors.ErrUnauthorized
	case e.StatusCode == http.StatusForbidden:
		return apperrors.ErrForbidden
	case e.StatusCode == http.StatusNotFound:
		return apperrors.ErrNotFound
	case e.StatusCode == http.StatusTooManyRequests, e.StatusCode >= 500:
		return apperrors.ErrServiceUnavail
	default:
		return nil
	}
}

// upstreamErrorBody covers both the `{"error":{"code":"X","message":"..."}}` envelope
// and the `{"error":{"code":403,"message":"...","status":"PERMISSION_DENIED"}}` shape.
type upstreamErrorBody struct {
	Error *struct {
		Code    json.RawMessage `json:"code"`
		Message string          `json:"message"`
		Status  string          `json:"status"`
	} `json:"error"`
}

// ParseResponseError reads the body of a non-2xx HTTP response and turns it into
// a *StatusError. The response body is fully consumed and closed.
func ParseResponseError(resp *http.Response, serviceName string) error {
	defer func() { _ = resp.Body.Close() }()

	statusErr := &StatusError{Service: serviceName, StatusCode: resp.StatusCode}

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20)) // 1 MB limit
	if err != nil {
		statusErr.Message = fmt.Sprintf("failed to read body: %v", err)
		return statusErr
	}

	var parsed upstreamErrorBody
	if json.Unmarshal(bodyBytes, &parsed) == nil && parsed.Error != nil {
		statusErr.Code = parsed.Error.Status
		if statusErr.Code == "" {
			statusErr.Code = strings.Trim(string(parsed.Error.Code), `"`)
		}
		statusErr.Message = parsed.Error.Message
		return statusErr
	}

	body := bytes.TrimSpace(bodyBytes)
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	statusErr.Message = string(body)
	if statusErr.Message == "" {
		statusErr.Message = http.StatusText(resp.StatusCode)
	}
	return statusErr
}

// StatusCode returns the upstream status carried by err, or 0 when err holds no StatusError.
func StatusCode(err error) int {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode
	}
	return 0
}
