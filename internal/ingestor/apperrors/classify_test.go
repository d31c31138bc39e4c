package apperrors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	_, numErr := strconv.ParseFloat("abc", 64)
	var jsonTarget struct{ V int }
	jsonErr := json.Unmarshal([]byte("{"), &jsonTarget)

	tests := []struct {
		name string
		err  error
		want ErrorCategory
	}{
		{"connector error keeps category", New(CategoryValidationError, "fundamentals", "MSFT", nil), CategoryValidationError},
		{"wrapped connector error", fmt.Errorf("fetch: %w", New(CategoryNoData, "filings", "ZZZZ", nil)), CategoryNoData},
		{"deadline exceeded", context.DeadlineExceeded, CategoryTimeoutError},
		{"http 429", &StatusError{StatusCode: http.StatusTooManyRequests, Status: "429 Too Many Requests"}, CategoryRateLimitError},
		{"http 503", &StatusError{StatusCode: http.StatusServiceUnavailable, Status: "503"}, CategoryNetworkError},
		{"http 404", &StatusError{StatusCode: http.StatusNotFound, Status: "404"}, CategoryNoData},
		{"http 400", &StatusError{StatusCode: http.StatusBadRequest, Status: "400"}, CategoryAPIFormatError},
		{"connection refused", syscall.ECONNREFUSED, CategoryNetworkError},
		{"connection reset", fmt.Errorf("dial: %w", syscall.ECONNRESET), CategoryNetworkError},
		{"json syntax", jsonErr, CategoryAPIFormatError},
		{"numeric conversion", numErr, CategoryConversionError},
		{"unknown", errors.New("boom"), CategoryUnexpectedError},
		{"nil", nil, CategoryUnexpectedError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestRetryable(t *testing.T) {
	retryable := []ErrorCategory{CategoryNetworkError, CategoryTimeoutError, CategoryRateLimitError}
	terminal := []ErrorCategory{
		CategoryDataQualityError, CategoryConversionError, CategoryAPIFormatError,
		CategoryValidationError, CategoryNoData, CategoryUnexpectedError,
	}

	for _, c := range retryable {
		assert.True(t, c.Retryable(), "category %s", c)
	}
	for _, c := range terminal {
		assert.False(t, c.Retryable(), "category %s", c)
	}
}

func TestConnectorErrorUnwrap(t *testing.T) {
	inner := errors.New("socket closed")
	err := New(CategoryNetworkError, "equity_quote", "AAPL", inner)

	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "equity_quote")
	assert.Contains(t, err.Error(), "network_error")
}
