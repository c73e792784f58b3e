package binance

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrMalformedResponse is returned when a 2xx body is not the expected JSON shape.
var ErrMalformedResponse = errors.New("malformed response")

// APIError is a non-success HTTP status returned by the exchange.
type APIError struct {
	StatusCode int    // HTTP status code
	Status     string // HTTP status text, e.g. "Bad Request"
	Code       int64  // Binance error code from the body, 0 when absent
	Message    string // Binance error message from the body
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("API Error: %s (code %d: %s)", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("API Error: %s", e.Status)
}

// RateLimited reports whether the exchange asked the client to back off.
func (e *APIError) RateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// IsRateLimited reports whether err carries an HTTP 429 from the exchange.
func IsRateLimited(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.RateLimited()
}
