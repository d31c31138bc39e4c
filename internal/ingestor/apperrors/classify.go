package apperrors

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"syscall"
)

// Classify assigns an error to one of the fixed categories. Already
// classified connector errors keep their category; everything else is
// inspected for the usual transport and decoding failure shapes.
func Classify(err error) ErrorCategory {
	if err == nil {
		return CategoryUnexpectedError
	}

	var ce *ConnectorError
	if errors.As(err, &ce) {
		return ce.Category
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return CategoryTimeoutError
	}

	var se *StatusError
	if errors.As(err, &se) {
		switch {
		case se.StatusCode == http.StatusTooManyRequests:
			return CategoryRateLimitError
		case se.StatusCode >= http.StatusInternalServerError:
			return CategoryNetworkError
		case se.StatusCode == http.StatusNotFound:
			return CategoryNoData
		default:
			return CategoryAPIFormatError
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return CategoryTimeoutError
		}
		return CategoryNetworkError
	}

	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) {
		return CategoryNetworkError
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return CategoryAPIFormatError
	}

	var numErr *strconv.NumError
	if errors.As(err, &numErr) {
		return CategoryConversionError
	}

	return CategoryUnexpectedError
}
