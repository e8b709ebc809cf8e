package shared

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedInterval is returned when a candle fetch requests a
	// timeframe the vendor does not recognize.
	ErrUnsupportedInterval = errors.New("unsupported interval")
	// ErrRateLimited is returned when a provider rejects a request with a
	// rate limit response.
	ErrRateLimited = errors.New("rate limited")
)

// StatusError represents a non-2xx provider response.
type StatusError struct {
	StatusCode int
	URL        string
}

// Error satisfies the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

// NewStatusError initializes a status error from the provided response details.
// Rate limit responses map to ErrRateLimited so callers can abort a cycle early.
func NewStatusError(statusCode int, url string) error {
	if statusCode == 429 {
		return fmt.Errorf("%w: %s", ErrRateLimited, url)
	}
	return &StatusError{StatusCode: statusCode, URL: url}
}
