package httpclient

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"

	apperrors "github.com/utafrali/ReviewPulse/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// makeResponse creates an *http.Response with the given status code and body string.
func makeResponse(statusCode int, body string) *http.Response {
	return &http.Response{
		StatusCode: statusCode,
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func asStatusError(t *testing.T, err error) *StatusError {
	t.Helper()
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr), "expected StatusError, got %T: %v", err, err)
	return statusErr
}

func TestParseResponseError_EnvelopeWithStringCode(t *testing.T) {
	resp := makeResponse(http.StatusNotFound, `{"error":{"code":"NOT_FOUND","message":"location not found"}}`)
	err := ParseResponseError(resp, "directory")

	statusErr := asStatusError(t, err)
	assert.Equal(t, "directory", statusErr.Service)
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
	assert.Equal(t, "NOT_FOUND", statusErr.Code)
	assert.Equal(t, "location not found", statusErr.Message)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	assert.Equal(t, "directory returned status 404: NOT_FOUND: location not found", err.Error())
}

func TestParseResponseError_EnvelopeWithNumericCodeAndStatus(t *testing.T) {
	body := `{"error":{"code":403,"message":"The caller does not have permission","status":"PERMISSION_DENIED"}}`
	err := ParseResponseError(makeResponse(http.StatusForbidden, body), "directory")

	statusErr := asStatusError(t, err)
	assert.Equal(t, "PERMISSION_DENIED", statusErr.Code)
	assert.Equal(t, "The caller does not have permission", statusErr.Message)
	assert.True(t, errors.Is(err, apperrors.ErrForbidden))
}

func TestParseResponseError_NumericCodeWithoutStatus(t *testing.T) {
	err := ParseResponseError(makeResponse(http.StatusUnauthorized, `{"error":{"code":401,"message":"expired"}}`), "directory")

	statusErr := asStatusError(t, err)
	assert.Equal(t, "401", statusErr.Code)
	assert.True(t, errors.Is(err, apperrors.ErrUnauthorized))
}

func TestParseResponseError_UnstructuredBody(t *testing.T) {
	err := ParseResponseError(makeResponse(http.StatusBadGateway, "  upstream connect error  "), "directory")

	statusErr := asStatusError(t, err)
	assert.Empty(t, statusErr.Code)
	assert.Equal(t, "upstream connect error", statusErr.Message)
	assert.True(t, errors.Is(err, apperrors.ErrServiceUnavail))
}

func TestParseResponseError_EmptyBodyUsesStatusText(t *testing.T) {
	err := ParseResponseError(makeResponse(http.StatusServiceUnavailable, ""), "directory")
	assert.Equal(t, "Service Unavailable", asStatusError(t, err).Message)
}

func TestParseResponseError_TruncatesLongBody(t *testing.T) {
	err := ParseResponseError(makeResponse(http.StatusInternalServerError, strings.Repeat("x", 4096)), "directory")
	assert.Len(t, asStatusError(t, err).Message, maxErrorBody)
}

func TestParseResponseError_NullErrorFallsBackToBody(t *testing.T) {
	err := ParseResponseError(makeResponse(http.StatusBadRequest, `{"error":null}`), "directory")

	statusErr := asStatusError(t, err)
	assert.Equal(t, `{"error":null}`, statusErr.Message)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
}

func TestStatusError_UnwrapUnknownStatus(t *testing.T) {
	err := &StatusError{Service: "directory", StatusCode: http.StatusTeapot, Message: "teapot"}
	assert.Nil(t, err.Unwrap())
	assert.Equal(t, http.StatusInternalServerError, apperrors.HTTPStatus(err))
}

func TestStatusError_TooManyRequestsIsUnavailable(t *testing.T) {
	err := &StatusError{Service: "directory", StatusCode: http.StatusTooManyRequests}
	assert.True(t, errors.Is(err, apperrors.ErrServiceUnavail))
}

func TestStatusCode(t *testing.T) {
	wrapped := fmt.Errorf("list reviews: %w", &StatusError{Service: "directory", StatusCode: http.StatusForbidden})
	assert.Equal(t, http.StatusForbidden, StatusCode(wrapped))
	assert.Equal(t, 0, StatusCode(errors.New("dial tcp: connection refused")))
	assert.Equal(t, 0, StatusCode(nil))
}
