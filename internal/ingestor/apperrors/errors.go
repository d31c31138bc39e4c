package apperrors

import (
	"errors"
	"fmt"
)

// ErrorCategory buckets a connector failure for retry decisions and run
// reporting.
type ErrorCategory string

const (
	CategoryNetworkError     ErrorCategory = "network_error"
	CategoryTimeoutError     ErrorCategory = "timeout_error"
	CategoryRateLimitError   ErrorCategory = "rate_limit_error"
	CategoryDataQualityError ErrorCategory = "data_quality_error"
	CategoryConversionError  ErrorCategory = "conversion_error"
	CategoryAPIFormatError   ErrorCategory = "api_format_error"
	CategoryValidationError  ErrorCategory = "validation_error"
	CategoryNoData           ErrorCategory = "no_data"
	CategoryUnexpectedError  ErrorCategory = "unexpected_error"
)

// Retryable reports whether a failure in this category is worth retrying.
// Only transport-level trouble is transient; everything else would fail the
// same way again.
func (c ErrorCategory) Retryable() bool {
	switch c {
	case CategoryNetworkError, CategoryTimeoutError, CategoryRateLimitError:
		return true
	default:
		return false
	}
}

// ConnectorError is a classified failure from a source connector. Retries is
// filled in by the retry policy when the error finally propagates.
type ConnectorError struct {
	Category ErrorCategory
	Source   string
	Ticker   string
	Retries  int
	Err      error
}

func (e *ConnectorError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s for %s: %v", e.Source, e.Category, e.Ticker, e.Err)
	}
	return fmt.Sprintf("%s: %s for %s", e.Source, e.Category, e.Ticker)
}

func (e *ConnectorError) Unwrap() error {
	return e.Err
}

// New creates a classified connector error.
func New(category ErrorCategory, source, ticker string, err error) *ConnectorError {
	return &ConnectorError{Category: category, Source: source, Ticker: ticker, Err: err}
}

// Newf creates a classified connector error from a formatted message.
func Newf(category ErrorCategory, source, ticker, format string, args ...interface{}) *ConnectorError {
	return &ConnectorError{Category: category, Source: source, Ticker: ticker, Err: fmt.Errorf(format, args...)}
}

// StatusError represents a non-OK HTTP response from a provider.
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %s", e.Status)
}

// AsConnectorError extracts a *ConnectorError from err when present.
func AsConnectorError(err error) (*ConnectorError, bool) {
	var ce *ConnectorError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}
